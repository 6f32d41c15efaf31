package handler

import (
	"net/http"

	"github.com/festhive-otp/internal/transport/http/middleware"
)

// Verification reports the identity proven by the Bearer verification token.
func Verification(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	env := VerificationEnvelope{
		Identity:   claims.Identity(),
		Channel:    claims.Channel,
		IssuanceID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		env.ExpiresAt = claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, env)
}
