package http

import (
	"context"
	"net/http"

	"github.com/festhive-otp/internal/config"
	"github.com/festhive-otp/internal/transport/http/handler"
	appmiddleware "github.com/festhive-otp/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// background work of the rate limiter.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	healthH := handler.NewHealthHandler(deps.PendingCodes)
	otpH := handler.NewOTPHandler(deps.Verification)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes ────────────────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(otpRL.Limit).Post("/otp/{action}", otpH.Action)

		// ── Verification-token routes ────────────────────────────────────────
		if deps.TokenVerifier != nil {
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Auth(deps.TokenVerifier))
				r.Get("/verification", handler.Verification)
			})
		}
	})

	return r
}
