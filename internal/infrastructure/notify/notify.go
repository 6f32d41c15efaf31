// Package notify routes verification codes to a delivery channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/festhive-otp/internal/domain"
	"github.com/sethvargo/go-retry"
)

// Notifier delivers code to identity.
type Notifier interface {
	Send(ctx context.Context, identity, code string) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, identity, code string) error

func (f Func) Send(ctx context.Context, identity, code string) error { return f(ctx, identity, code) }

// Log is the simulated notifier: it writes the code to the log instead of
// delivering it.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, identity, code string) error {
	l.logger.InfoContext(ctx, "simulated otp delivery", "identity", identity, "code", code)
	return nil
}

// Router picks the notifier matching the identity kind.
type Router struct {
	email Notifier
	sms   Notifier
}

// NewRouter returns a Router. A nil notifier disables that channel.
func NewRouter(email, sms Notifier) *Router {
	return &Router{email: email, sms: sms}
}

func (r *Router) Send(ctx context.Context, identity, code string) error {
	ch := domain.ChannelOf(identity)
	var n Notifier
	switch ch {
	case domain.ChannelEmail:
		n = r.email
	case domain.ChannelSMS:
		n = r.sms
	}
	if n == nil {
		return fmt.Errorf("%w: no delivery channel for %q", domain.ErrUnsupportedIdentity, identity)
	}
	return n.Send(ctx, identity, code)
}

// WithRetry retries failed sends with Fibonacci backoff starting at base,
// giving up after maxRetries extra attempts. Unsupported identities and
// context errors are not retried.
func WithRetry(n Notifier, maxRetries uint64, base time.Duration) Notifier {
	if maxRetries == 0 {
		return n
	}
	return Func(func(ctx context.Context, identity, code string) error {
		b := retry.NewFibonacci(base)
		b = retry.WithCappedDuration(5*time.Second, b)
		b = retry.WithMaxRetries(maxRetries, b)

		attempt := 0
		return retry.Do(ctx, b, func(ctx context.Context) error {
			attempt++
			err := n.Send(ctx, identity, code)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, domain.ErrUnsupportedIdentity),
				errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				return err
			}
			slog.Warn("otp delivery failed, retrying", "identity", identity, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		})
	})
}
