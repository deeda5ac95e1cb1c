package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// Well-known slot keys. Every slot is rewritten by each recomputation pass
// so they always describe the same snapshot.
const (
	KeyDashboard = "sla:dashboard"
	KeyRiskList  = "sla:risk"
	KeyBreaches  = "sla:breaches"
)

// MetricsKey names the aggregate slot for a period label such as "30d".
func MetricsKey(period string) string {
	return "sla:metrics:" + period
}

// TicketKey names the per-ticket result slot.
func TicketKey(ticketID string) string {
	return "sla:ticket:" + ticketID
}

// Backend stores serialized slot values with a TTL.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// SetMulti replaces all given slots in one step so readers never observe
	// a half-written snapshot.
	SetMulti(ctx context.Context, values map[string]Value) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Value is one serialized slot plus its TTL.
type Value struct {
	Data []byte
	TTL  time.Duration
}

// envelope is the stored wire form of a slot.
type envelope struct {
	ComputedAt time.Time       `json:"computed_at"`
	TTLSeconds int             `json:"ttl_seconds"`
	Payload    json.RawMessage `json:"payload"`
}

// Entry is a decoded slot read.
type Entry struct {
	Payload    json.RawMessage
	ComputedAt time.Time
	TTL        time.Duration
	// Stale means the TTL elapsed. The payload is still the last full
	// snapshot, never partial or wrong-period data.
	Stale bool
}

// Store is the typed cache facade used by the API layer and the batch pass.
type Store struct {
	backend Backend
	clock   func() time.Time
	logger  *zap.Logger
}

// NewStore builds a store over a backend with an injected clock.
func NewStore(backend Backend, clock func() time.Time, logger *zap.Logger) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{backend: backend, clock: clock, logger: logger}
}

// Get reads one slot. Distinguishes never-computed (NOT_FOUND code
// NEVER_COMPUTED), backend failure (CACHE_UNAVAILABLE), and staleness
// (returned entry flagged Stale).
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, apperrors.NewCacheUnavailable(err)
	}
	if !ok {
		return nil, apperrors.NewNeverComputed(key)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.NewCacheUnavailable(err)
	}

	ttl := time.Duration(env.TTLSeconds) * time.Second
	entry := &Entry{
		Payload:    env.Payload,
		ComputedAt: env.ComputedAt,
		TTL:        ttl,
		Stale:      s.clock().Sub(env.ComputedAt) > ttl,
	}
	return entry, nil
}

// Snapshot accumulates slot writes for one recomputation pass.
type Snapshot struct {
	computedAt time.Time
	values     map[string]Value
}

// NewSnapshot starts a snapshot stamped with the pass's single now.
func NewSnapshot(computedAt time.Time) *Snapshot {
	return &Snapshot{computedAt: computedAt, values: make(map[string]Value)}
}

// Put serializes one slot payload into the snapshot.
func (sn *Snapshot) Put(key string, payload any, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{
		ComputedAt: sn.computedAt,
		TTLSeconds: int(ttl / time.Second),
		Payload:    raw,
	})
	if err != nil {
		return err
	}
	sn.values[key] = Value{Data: data, TTL: ttl}
	return nil
}

// Len returns the number of slots staged in the snapshot.
func (sn *Snapshot) Len() int {
	return len(sn.values)
}

// Publish atomically replaces all staged slots. Nothing is written on error.
func (s *Store) Publish(ctx context.Context, snapshot *Snapshot) error {
	if err := s.backend.SetMulti(ctx, snapshot.values); err != nil {
		return apperrors.NewCacheUnavailable(err)
	}
	if s.logger != nil {
		s.logger.Debug("cache snapshot published",
			zap.Int("slots", len(snapshot.values)),
			zap.Time("computed_at", snapshot.computedAt),
		)
	}
	return nil
}

// Invalidate drops one slot.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return apperrors.NewCacheUnavailable(err)
	}
	return nil
}

// Clear drops every slot.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Clear(ctx); err != nil {
		return apperrors.NewCacheUnavailable(err)
	}
	return nil
}
