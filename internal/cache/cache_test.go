package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

type failingBackend struct{}

func (failingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingBackend) SetMulti(ctx context.Context, values map[string]Value) error {
	return errors.New("connection refused")
}
func (failingBackend) Delete(ctx context.Context, key string) error { return errors.New("down") }
func (failingBackend) Clear(ctx context.Context) error              { return errors.New("down") }

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestStoreNeverComputed(t *testing.T) {
	store := NewStore(NewMemoryBackend(), nil, zap.NewNop())

	_, err := store.Get(context.Background(), KeyDashboard)
	require.True(t, apperrors.HasCode(err, "NEVER_COMPUTED"))
}

func TestStoreUnavailable(t *testing.T) {
	store := NewStore(failingBackend{}, nil, zap.NewNop())

	_, err := store.Get(context.Background(), KeyDashboard)
	require.True(t, apperrors.HasCode(err, "CACHE_UNAVAILABLE"))

	snapshot := NewSnapshot(time.Now())
	require.NoError(t, snapshot.Put(KeyDashboard, map[string]int{"total": 1}, time.Minute))
	err = store.Publish(context.Background(), snapshot)
	require.True(t, apperrors.HasCode(err, "CACHE_UNAVAILABLE"))
}

func TestStoreFreshAndStaleReads(t *testing.T) {
	computedAt := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend()

	snapshot := NewSnapshot(computedAt)
	require.NoError(t, snapshot.Put(MetricsKey("30d"), map[string]int{"total": 7}, 15*time.Minute))

	writer := NewStore(backend, fixedClock(computedAt), zap.NewNop())
	require.NoError(t, writer.Publish(context.Background(), snapshot))

	// inside the TTL the entry is fresh
	fresh := NewStore(backend, fixedClock(computedAt.Add(10*time.Minute)), zap.NewNop())
	entry, err := fresh.Get(context.Background(), MetricsKey("30d"))
	require.NoError(t, err)
	require.False(t, entry.Stale)
	require.True(t, entry.ComputedAt.Equal(computedAt))

	var payload map[string]int
	require.NoError(t, json.Unmarshal(entry.Payload, &payload))
	require.Equal(t, 7, payload["total"])

	// past the TTL the same payload is served, flagged stale
	stale := NewStore(backend, fixedClock(computedAt.Add(20*time.Minute)), zap.NewNop())
	entry, err = stale.Get(context.Background(), MetricsKey("30d"))
	require.NoError(t, err)
	require.True(t, entry.Stale)
}

func TestSnapshotPublishReplacesAllSlots(t *testing.T) {
	backend := NewMemoryBackend()
	now := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	store := NewStore(backend, fixedClock(now), zap.NewNop())

	first := NewSnapshot(now)
	require.NoError(t, first.Put(KeyRiskList, []string{"t1"}, time.Minute))
	require.NoError(t, first.Put(KeyBreaches, []string{"t2"}, time.Minute))
	require.NoError(t, store.Publish(context.Background(), first))

	later := now.Add(5 * time.Minute)
	second := NewSnapshot(later)
	require.NoError(t, second.Put(KeyRiskList, []string{"t3"}, time.Minute))
	require.NoError(t, second.Put(KeyBreaches, []string{}, time.Minute))
	require.NoError(t, store.Publish(context.Background(), second))

	// every slot now carries the second snapshot's stamp
	for _, key := range []string{KeyRiskList, KeyBreaches} {
		entry, err := store.Get(context.Background(), key)
		require.NoError(t, err)
		require.True(t, entry.ComputedAt.Equal(later), "slot %s kept the old snapshot", key)
	}
}

func TestStoreInvalidate(t *testing.T) {
	backend := NewMemoryBackend()
	now := time.Now()
	store := NewStore(backend, fixedClock(now), zap.NewNop())

	snapshot := NewSnapshot(now)
	require.NoError(t, snapshot.Put(TicketKey("t1"), map[string]string{"state": "ON_TRACK"}, time.Minute))
	require.NoError(t, store.Publish(context.Background(), snapshot))

	require.NoError(t, store.Invalidate(context.Background(), TicketKey("t1")))
	_, err := store.Get(context.Background(), TicketKey("t1"))
	require.True(t, apperrors.HasCode(err, "NEVER_COMPUTED"))
}

func TestMemoryBackendStats(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	_, _, _ = backend.Get(ctx, "missing")
	require.NoError(t, backend.SetMulti(ctx, map[string]Value{"k": {Data: []byte("{}")}}))
	_, ok, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	hits, misses, size := backend.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(1), misses)
	require.Equal(t, 1, size)
}
