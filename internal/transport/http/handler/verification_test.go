package handler

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/festhive-otp/internal/config"
	jwtinfra "github.com/festhive-otp/internal/infrastructure/jwt"
	"github.com/festhive-otp/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         30 * time.Minute,
	})
	require.NoError(t, err)
	return p
}

func TestVerification_MissingClaims(t *testing.T) {
	rr := httptest.NewRecorder()
	Verification(rr, httptest.NewRequest(http.MethodGet, "/v1/verification", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestVerification_ReturnsClaims(t *testing.T) {
	p := newTestJWTProvider(t)
	token, err := p.Sign("a@x.io", "email", "01HZX0000000000000000000")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/v1/verification", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	middleware.Auth(p)(http.HandlerFunc(Verification)).ServeHTTP(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp VerificationEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "a@x.io", resp.Identity)
	assert.Equal(t, "email", resp.Channel)
	assert.Equal(t, "01HZX0000000000000000000", resp.IssuanceID)
	assert.Greater(t, resp.ExpiresAt, time.Now().Unix())
}
