package http

import (
	"github.com/festhive-otp/internal/application/verification"
	"github.com/festhive-otp/internal/transport/http/middleware"
)

// Deps holds the services and infrastructure the router wires into handlers.
type Deps struct {
	Verification verification.Service
	// TokenVerifier guards GET /v1/verification. nil leaves the route unmounted.
	TokenVerifier middleware.TokenVerifier
	// PendingCodes reports the store size for the stats health action.
	PendingCodes func() int
}
