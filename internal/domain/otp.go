package domain

import "time"

// OTPRecord is the pending one-time code for a single identity.
// A store holds at most one record per Identity.
type OTPRecord struct {
	Identity   string    `json:"identity"`
	Code       string    `json:"-"`
	IssuanceID string    `json:"issuance_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the record is no longer valid at now.
// A record is invalid from ExpiresAt onwards.
func (r OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// RequestOTPRequest is the body of the request and resend endpoints.
type RequestOTPRequest struct {
	Identity string `json:"identity" validate:"required,max=254,email|e164"`
}

// VerifyOTPRequest is the body of the verify endpoint.
type VerifyOTPRequest struct {
	Identity string `json:"identity" validate:"required,max=254,email|e164"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}
