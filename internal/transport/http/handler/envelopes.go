package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/festhive-otp/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// CooldownEnvelope is returned with 429 when a code was requested too recently.
type CooldownEnvelope struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// VerificationEnvelope describes the holder of a valid verification token.
type VerificationEnvelope struct {
	Identity   string `json:"identity"`
	Channel    string `json:"channel"`
	IssuanceID string `json:"issuance_id,omitempty"`
	ExpiresAt  int64  `json:"expires_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps service errors to status codes. Unknown errors become 500
// without leaking their text.
func httpError(w http.ResponseWriter, err error) {
	var cd *domain.CooldownError
	switch {
	case errors.As(err, &cd):
		w.Header().Set("Retry-After", strconv.Itoa(cd.RetryAfterSeconds()))
		writeJSON(w, http.StatusTooManyRequests, CooldownEnvelope{
			Error:             domain.ErrCooldown.Error(),
			RetryAfterSeconds: cd.RetryAfterSeconds(),
		})
	case errors.Is(err, domain.ErrInvalidCode):
		writeError(w, http.StatusUnauthorized, domain.ErrInvalidCode.Error())
	case errors.Is(err, domain.ErrUnsupportedIdentity):
		writeError(w, http.StatusUnprocessableEntity, domain.ErrUnsupportedIdentity.Error())
	case errors.Is(err, domain.ErrDelivery):
		writeError(w, http.StatusBadGateway, domain.ErrDelivery.Error())
	default:
		slog.Error("unhandled service error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
