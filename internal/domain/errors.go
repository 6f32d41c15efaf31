package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking why a code failed.
var (
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrCooldown            = errors.New("verification code requested too recently")
	ErrDelivery            = errors.New("verification code could not be delivered")
	ErrUnsupportedIdentity = errors.New("unsupported identity")
)

// CooldownError is returned when a new code is requested inside the resend window.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry in %ds", ErrCooldown, e.RetryAfterSeconds())
}

func (e *CooldownError) Unwrap() error { return ErrCooldown }

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1.
func (e *CooldownError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
