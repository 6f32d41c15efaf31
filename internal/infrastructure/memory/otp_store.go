// Package memory keeps pending one-time codes in process memory.
//
// Records are spread over a fixed number of shards. The shard is picked from
// the identity hash, so every operation on one identity runs under the same
// lock while unrelated identities proceed in parallel.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/festhive-otp/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const (
	defaultShards = 32
	meterName     = "github.com/festhive-otp/memory"
)

// ConsumeFunc inspects the current record (nil when absent) and decides
// whether it is removed. Its error is returned to the caller of Consume.
type ConsumeFunc func(current *domain.OTPRecord) (remove bool, err error)

// UpsertFunc receives the current record (nil when absent) and returns the
// record that replaces it. Returning an error leaves the store unchanged.
type UpsertFunc func(current *domain.OTPRecord) (domain.OTPRecord, error)

type shard struct {
	mu      sync.Mutex
	records map[string]domain.OTPRecord
}

// OTPStore is a bounded, sharded map of identity to its pending OTP record.
type OTPStore struct {
	shards   []*shard
	perShard int

	meterProvider metric.MeterProvider
	evicted       metric.Int64Counter
	evictLog      rate.Sometimes
}

type Option func(*OTPStore)

// WithMeterProvider replaces the global otel meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *OTPStore) { s.meterProvider = mp }
}

// NewOTPStore creates a store holding at most maxRecords records.
// maxRecords <= 0 means unbounded.
func NewOTPStore(maxRecords int, opts ...Option) *OTPStore {
	return newOTPStore(maxRecords, defaultShards, opts...)
}

func newOTPStore(maxRecords, shards int, opts ...Option) *OTPStore {
	s := &OTPStore{
		shards:   make([]*shard, shards),
		evictLog: rate.Sometimes{Interval: time.Minute},
	}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]domain.OTPRecord)}
	}
	if maxRecords > 0 {
		s.perShard = (maxRecords + shards - 1) / shards
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	var err error
	s.evicted, err = s.meterProvider.Meter(meterName).Int64Counter("otp.evicted",
		metric.WithDescription("Pending OTP records evicted before expiry because the store was full"))
	if err != nil {
		slog.Error("failed to create otp.evicted counter", "err", err)
	}
	return s
}

func (s *OTPStore) shardFor(identity string) *shard {
	return s.shards[xxhash.Sum64String(identity)%uint64(len(s.shards))]
}

// Upsert atomically replaces the record for identity with the result of fn.
func (s *OTPStore) Upsert(identity string, fn UpsertFunc) (domain.OTPRecord, error) {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var current *domain.OTPRecord
	if rec, ok := sh.records[identity]; ok {
		current = &rec
	}
	next, err := fn(current)
	if err != nil {
		return domain.OTPRecord{}, err
	}
	if current == nil && s.perShard > 0 && len(sh.records) >= s.perShard {
		if victim, ok := sh.makeRoom(next.IssuedAt); ok {
			s.recordEviction(victim)
		}
	}
	sh.records[identity] = next
	return next, nil
}

// Consume atomically hands the record for identity to fn and deletes it when fn asks to.
func (s *OTPStore) Consume(identity string, fn ConsumeFunc) error {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var current *domain.OTPRecord
	if rec, ok := sh.records[identity]; ok {
		current = &rec
	}
	remove, err := fn(current)
	if remove && current != nil {
		delete(sh.records, identity)
	}
	return err
}

// Sweep removes every record expired at now and returns how many were removed.
func (s *OTPStore) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += sh.sweep(now)
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of records currently held, expired ones included.
func (s *OTPStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}

// Run sweeps expired records every interval until ctx is done.
func (s *OTPStore) Run(ctx context.Context, interval time.Duration, now func() time.Time) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(now()); n > 0 {
				slog.Info("swept expired otp records", "removed", n, "remaining", s.Len())
			}
		}
	}
}

func (sh *shard) sweep(now time.Time) int {
	removed := 0
	for k, rec := range sh.records {
		if rec.Expired(now) {
			delete(sh.records, k)
			removed++
		}
	}
	return removed
}

// makeRoom drops expired records and, if the shard is still full, evicts the
// live record closest to expiry and returns its identity. Caller holds sh.mu.
func (sh *shard) makeRoom(now time.Time) (string, bool) {
	if sh.sweep(now) > 0 {
		return "", false
	}
	var (
		victim string
		oldest time.Time
		found  bool
	)
	for k, rec := range sh.records {
		if !found || rec.ExpiresAt.Before(oldest) {
			victim, oldest, found = k, rec.ExpiresAt, true
		}
	}
	if found {
		delete(sh.records, victim)
	}
	return victim, found
}

// recordEviction counts every eviction and logs at most once a minute.
// Caller holds the shard lock of identity.
func (s *OTPStore) recordEviction(identity string) {
	if s.evicted != nil {
		s.evicted.Add(context.Background(), 1)
	}
	s.evictLog.Do(func() {
		slog.Warn("otp store full, evicting pending codes before expiry", "identity", identity, "per_shard_limit", s.perShard)
	})
}
