package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/festhive-otp/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/festhive-otp/verification"

// Codes is the OTP core the flow runs against.
type Codes interface {
	Issue(identity string) (domain.OTPRecord, error)
	Redeem(identity, code string, commit func(domain.OTPRecord) error) (domain.OTPRecord, error)
	Revoke(identity, issuanceID string) bool
	Cooldown() time.Duration
}

// Notifier delivers a code to its identity.
type Notifier interface {
	Send(ctx context.Context, identity, code string) error
}

// TokenSigner issues the token handed out after a successful verification.
type TokenSigner interface {
	Sign(identity, channel, issuanceID string) (string, error)
}

type RequestResult struct {
	Message     string    `json:"message"`
	ExpiresAt   time.Time `json:"expires_at"`
	ResendAfter time.Time `json:"resend_after"`
	Code        string    `json:"code,omitempty"`
}

type ConfirmResult struct {
	Message  string         `json:"message"`
	Identity string         `json:"identity"`
	Channel  domain.Channel `json:"channel"`
	Token    string         `json:"token,omitempty"`
}

type Service interface {
	Request(ctx context.Context, identity string, resend bool) (*RequestResult, error)
	Confirm(ctx context.Context, identity, code string) (*ConfirmResult, error)
}

type Option func(*service)

// WithTokenSigner enables verification tokens on Confirm.
func WithTokenSigner(s TokenSigner) Option {
	return func(svc *service) { svc.signer = s }
}

// WithExposeCode returns issued codes to the caller. Development only.
func WithExposeCode(expose bool) Option {
	return func(svc *service) { svc.exposeCode = expose }
}

// WithMeterProvider replaces the global otel meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(svc *service) { svc.meterProvider = mp }
}

type service struct {
	codes         Codes
	notifier      Notifier
	signer        TokenSigner
	exposeCode    bool
	meterProvider metric.MeterProvider

	issued   metric.Int64Counter
	verified metric.Int64Counter
	delivery metric.Int64Counter
}

func NewService(codes Codes, notifier Notifier, opts ...Option) Service {
	s := &service{codes: codes, notifier: notifier}
	for _, opt := range opts {
		opt(s)
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	meter := s.meterProvider.Meter(meterName)

	var err error
	if s.issued, err = meter.Int64Counter("otp.issued", metric.WithDescription("OTP issuance attempts by outcome")); err != nil {
		slog.Error("failed to create otp.issued counter", "err", err)
	}
	if s.verified, err = meter.Int64Counter("otp.verified", metric.WithDescription("OTP verification attempts by result")); err != nil {
		slog.Error("failed to create otp.verified counter", "err", err)
	}
	if s.delivery, err = meter.Int64Counter("otp.delivery", metric.WithDescription("OTP deliveries by channel and outcome")); err != nil {
		slog.Error("failed to create otp.delivery counter", "err", err)
	}
	return s
}

func (s *service) Request(ctx context.Context, identity string, resend bool) (*RequestResult, error) {
	rec, err := s.codes.Issue(identity)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrCooldown) {
			outcome = "cooldown"
		}
		s.count(ctx, s.issued, attribute.String("outcome", outcome))
		return nil, err
	}
	s.count(ctx, s.issued, attribute.String("outcome", "issued"))

	channel := domain.ChannelOf(rec.Identity)
	if err := s.notifier.Send(ctx, rec.Identity, rec.Code); err != nil {
		s.count(ctx, s.delivery, attribute.String("channel", channelLabel(channel)), attribute.String("outcome", "failed"))
		s.codes.Revoke(rec.Identity, rec.IssuanceID)
		slog.Error("otp delivery failed", "identity", rec.Identity, "issuance_id", rec.IssuanceID, "err", err)
		if errors.Is(err, domain.ErrUnsupportedIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	s.count(ctx, s.delivery, attribute.String("channel", channelLabel(channel)), attribute.String("outcome", "sent"))

	verb := "sent"
	if resend {
		verb = "resent"
	}
	res := &RequestResult{
		Message:     fmt.Sprintf("Verification code %s to %s", verb, rec.Identity),
		ExpiresAt:   rec.ExpiresAt,
		ResendAfter: rec.IssuedAt.Add(s.codes.Cooldown()),
	}
	if s.exposeCode {
		res.Code = rec.Code
	}
	return res, nil
}

// Confirm redeems code for identity. The verification token is signed before
// the code is consumed, so a signing failure leaves the code usable.
func (s *service) Confirm(ctx context.Context, identity, code string) (*ConfirmResult, error) {
	var token string
	sign := func(rec domain.OTPRecord) error {
		if s.signer == nil {
			return nil
		}
		t, err := s.signer.Sign(rec.Identity, string(domain.ChannelOf(rec.Identity)), rec.IssuanceID)
		if err != nil {
			return fmt.Errorf("sign verification token: %w", err)
		}
		token = t
		return nil
	}

	rec, err := s.codes.Redeem(identity, code, sign)
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		s.count(ctx, s.verified, attribute.String("result", "rejected"))
		slog.Info("otp rejected", "identity", domain.NormalizeIdentity(identity), "reason", err)
		return nil, domain.ErrInvalidCode
	case err != nil:
		s.count(ctx, s.verified, attribute.String("result", "error"))
		slog.Error("otp verification not completed", "identity", domain.NormalizeIdentity(identity), "err", err)
		return nil, err
	}
	s.count(ctx, s.verified, attribute.String("result", "verified"))

	channel := domain.ChannelOf(rec.Identity)
	return &ConfirmResult{
		Message:  confirmMessage(channel),
		Identity: rec.Identity,
		Channel:  channel,
		Token:    token,
	}, nil
}

func (s *service) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func channelLabel(c domain.Channel) string {
	if c == domain.ChannelUnknown {
		return "unknown"
	}
	return string(c)
}

func confirmMessage(c domain.Channel) string {
	if c == domain.ChannelSMS {
		return "Phone number verified successfully"
	}
	return "Email verified successfully"
}
