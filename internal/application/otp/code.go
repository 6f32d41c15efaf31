package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// GenerateCode returns a six digit code drawn uniformly from 100000-999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
