// Package otp issues and verifies one-time codes bound to an identity.
package otp

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/festhive-otp/internal/domain"
	"github.com/festhive-otp/internal/infrastructure/memory"
	"github.com/festhive-otp/internal/pkg/clock"
	"github.com/festhive-otp/internal/pkg/id"
)

const (
	DefaultTTL      = 10 * time.Minute
	DefaultCooldown = 30 * time.Second
)

// Reasons a submitted code is rejected. All of them wrap domain.ErrInvalidCode.
var (
	ErrNotFound = fmt.Errorf("%w: no pending code", domain.ErrInvalidCode)
	ErrExpired  = fmt.Errorf("%w: code expired", domain.ErrInvalidCode)
	ErrMismatch = fmt.Errorf("%w: code mismatch", domain.ErrInvalidCode)
)

// Store is the per-identity record store the manager works against.
type Store interface {
	Upsert(identity string, fn memory.UpsertFunc) (domain.OTPRecord, error)
	Consume(identity string, fn memory.ConsumeFunc) error
}

type Option func(*Manager)

// WithClock replaces the system clock.
func WithClock(c clock.Clocker) Option {
	return func(m *Manager) { m.clock = c }
}

// WithTTL sets how long an issued code stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithCooldown sets the minimum gap between two issuances for one identity.
// Zero disables the check.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.cooldown = d
		}
	}
}

// WithGenerator replaces the code generator.
func WithGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.generate = gen }
}

type Manager struct {
	store    Store
	clock    clock.Clocker
	ttl      time.Duration
	cooldown time.Duration
	generate func() (string, error)
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		clock:    clock.New(),
		ttl:      DefaultTTL,
		cooldown: DefaultCooldown,
		generate: GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the validity window of issued codes.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Cooldown returns the minimum gap between issuances for one identity.
func (m *Manager) Cooldown() time.Duration { return m.cooldown }

// Issue generates a fresh code for identity and replaces any pending one.
// It fails with *domain.CooldownError when the pending code is younger than the cooldown.
func (m *Manager) Issue(identity string) (domain.OTPRecord, error) {
	key := domain.NormalizeIdentity(identity)
	code, err := m.generate()
	if err != nil {
		return domain.OTPRecord{}, err
	}

	now := m.clock.Now()
	rec, err := m.store.Upsert(key, func(current *domain.OTPRecord) (domain.OTPRecord, error) {
		if current != nil && m.cooldown > 0 && !current.Expired(now) {
			if wait := current.IssuedAt.Add(m.cooldown).Sub(now); wait > 0 {
				return domain.OTPRecord{}, &domain.CooldownError{RetryAfter: wait}
			}
		}
		return domain.OTPRecord{
			Identity:   key,
			Code:       code,
			IssuanceID: id.NewAt(now),
			IssuedAt:   now,
			ExpiresAt:  now.Add(m.ttl),
		}, nil
	})
	if err != nil {
		return domain.OTPRecord{}, err
	}
	slog.Info("otp issued", "identity", key, "issuance_id", rec.IssuanceID, "expires_at", rec.ExpiresAt)
	return rec, nil
}

// Verify reports whether code matches the pending code for identity.
// A match consumes the code.
func (m *Manager) Verify(identity, code string) bool {
	return m.Check(identity, code) == nil
}

// Check is Verify with the rejection reason. On success the record is removed
// and nil is returned. A mismatch keeps the record; an expired record is purged.
func (m *Manager) Check(identity, code string) error {
	_, err := m.Redeem(identity, code, nil)
	return err
}

// Redeem is Check returning the consumed record on success. When commit is
// non-nil it runs on a matching record before removal; if it fails the record
// stays pending and its error is returned.
func (m *Manager) Redeem(identity, code string, commit func(domain.OTPRecord) error) (domain.OTPRecord, error) {
	key := domain.NormalizeIdentity(identity)
	now := m.clock.Now()
	var redeemed domain.OTPRecord
	err := m.store.Consume(key, func(current *domain.OTPRecord) (bool, error) {
		switch {
		case current == nil:
			return false, ErrNotFound
		case current.Expired(now):
			return true, ErrExpired
		case subtle.ConstantTimeCompare([]byte(current.Code), []byte(code)) != 1:
			return false, ErrMismatch
		}
		if commit != nil {
			if err := commit(*current); err != nil {
				return false, err
			}
		}
		redeemed = *current
		return true, nil
	})
	if err != nil {
		return domain.OTPRecord{}, err
	}
	return redeemed, nil
}

// Revoke removes the pending record for identity only when it is still the
// issuance identified by issuanceID.
func (m *Manager) Revoke(identity, issuanceID string) bool {
	key := domain.NormalizeIdentity(identity)
	revoked := false
	_ = m.store.Consume(key, func(current *domain.OTPRecord) (bool, error) {
		revoked = current != nil && current.IssuanceID == issuanceID
		return revoked, nil
	})
	if revoked {
		slog.Info("otp revoked", "identity", key, "issuance_id", issuanceID)
	}
	return revoked
}
