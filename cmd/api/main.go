package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/festhive-otp/internal/application/otp"
	"github.com/festhive-otp/internal/application/verification"
	"github.com/festhive-otp/internal/config"
	jwtinfra "github.com/festhive-otp/internal/infrastructure/jwt"
	"github.com/festhive-otp/internal/infrastructure/memory"
	"github.com/festhive-otp/internal/infrastructure/notify"
	"github.com/festhive-otp/internal/infrastructure/smtp"
	"github.com/festhive-otp/internal/infrastructure/sns"
	"github.com/festhive-otp/internal/pkg/clock"
	transporthttp "github.com/festhive-otp/internal/transport/http"
	"github.com/joho/godotenv"
)

const notifyRetryBase = 200 * time.Millisecond

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OTP store and its janitor.
	clk := clock.New()
	store := memory.NewOTPStore(cfg.OTPMaxRecords)
	go store.Run(ctx, cfg.OTPSweepInterval, clk.Now)

	manager := otp.NewManager(store,
		otp.WithClock(clk),
		otp.WithTTL(cfg.OTPTTL),
		otp.WithCooldown(cfg.OTPCooldown),
	)

	notifier := newNotifier(ctx, cfg)

	opts := []verification.Option{verification.WithExposeCode(cfg.OTPExposeCode)}

	// JWT provider (optional, verification tokens are skipped if keys are missing).
	var tokenVerifier *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		tokenVerifier = p
		opts = append(opts, verification.WithTokenSigner(p))
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}
	if cfg.OTPExposeCode {
		log.Println("WARN: OTP_EXPOSE_CODE is on, issued codes are returned to clients")
	}

	deps := &transporthttp.Deps{
		Verification: verification.NewService(manager, notifier, opts...),
		PendingCodes: store.Len,
	}
	if tokenVerifier != nil {
		deps.TokenVerifier = tokenVerifier
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, delivery=%s)", cfg.AppPort, cfg.AppEnv, cfg.OTPDelivery)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// newNotifier builds the delivery chain for cfg.OTPDelivery. In log mode both
// channels are simulated; otherwise email goes through SMTP and phones through
// SNS when it is reachable.
func newNotifier(ctx context.Context, cfg *config.Config) notify.Notifier {
	if cfg.OTPDelivery != config.DeliverySMTP {
		l := notify.NewLog(slog.Default())
		return notify.NewRouter(l, l)
	}

	retries := uint64(0)
	if cfg.NotifyRetryAttempts > 1 {
		retries = uint64(cfg.NotifyRetryAttempts - 1)
	}

	email := notify.WithRetry(smtp.NewMailer(cfg), retries, notifyRetryBase)

	var phone notify.Notifier
	if sender, err := sns.NewSender(ctx, cfg); err == nil {
		phone = notify.WithRetry(sender, retries, notifyRetryBase)
	} else {
		log.Printf("WARN: SNS sender not available, phone identities are rejected: %v", err)
	}
	return notify.NewRouter(email, phone)
}
