package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/sla"
)

type memTicketRepo struct {
	tickets []domain.Ticket
	release chan struct{}
	calls   int32
}

func (m *memTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	for i := range m.tickets {
		if m.tickets[i].ID == id {
			ticket := m.tickets[i]
			return &ticket, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memTicketRepo) ListForRecompute(ctx context.Context, accountingStart, closedSince time.Time) ([]domain.Ticket, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.release != nil {
		<-m.release
	}
	out := make([]domain.Ticket, len(m.tickets))
	copy(out, m.tickets)
	return out, nil
}

type memConfigRepo struct {
	configs []domain.SlaConfiguration
}

func (m *memConfigRepo) ListActive(ctx context.Context) ([]domain.SlaConfiguration, error) {
	return m.configs, nil
}

func (m *memConfigRepo) GetByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SlaConfiguration, error) {
	for i := range m.configs {
		if m.configs[i].Priority == priority {
			return &m.configs[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memResultRepo struct {
	mu      sync.Mutex
	results map[string]domain.SlaResult
	upserts int
}

func (m *memResultRepo) UpsertMany(ctx context.Context, results []domain.SlaResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string]domain.SlaResult)
	}
	for _, res := range results {
		m.results[res.TicketID] = res
	}
	m.upserts++
	return nil
}

type memRunLog struct {
	mu   sync.Mutex
	runs []domain.RecomputeRun
}

func (m *memRunLog) Create(ctx context.Context, run *domain.RecomputeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memRunLog) ListRecent(ctx context.Context, limit int) ([]domain.RecomputeRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RecomputeRun, len(m.runs))
	copy(out, m.runs)
	return out, nil
}

type recomputeFixture struct {
	svc     *RecomputeService
	tickets *memTicketRepo
	results *memResultRepo
	runLog  *memRunLog
	store   *cache.Store
	now     time.Time
}

func newRecomputeFixture(t *testing.T, tickets []domain.Ticket) *recomputeFixture {
	t.Helper()
	now := at(2025, time.June, 3, 12, 0)

	cal := sla.NewCalendar(fixedRules{}, noHolidays{}, time.UTC, zap.NewNop())
	engine := sla.NewEngine(cal)
	pauses := NewPauseService(PauseDependencies{
		PauseRepo: &memPauseRepo{},
		Engine:    engine,
		Clock:     func() time.Time { return now },
		Logger:    zap.NewNop(),
	})
	evaluator := sla.NewEvaluator(engine, pauses, zap.NewNop())

	ticketRepo := &memTicketRepo{tickets: tickets}
	resultRepo := &memResultRepo{}
	runLog := &memRunLog{}
	store := cache.NewStore(cache.NewMemoryBackend(), func() time.Time { return now }, zap.NewNop())

	svc := NewRecomputeService(RecomputeDependencies{
		TicketRepo: ticketRepo,
		ConfigRepo: &memConfigRepo{configs: []domain.SlaConfiguration{
			{Priority: domain.TicketPriorityHigh, ResponseHours: 2, ResolutionHours: 8, RiskThresholdPercent: 80, IsActive: true},
			{Priority: domain.TicketPriorityMedium, ResponseHours: 4, ResolutionHours: 24, RiskThresholdPercent: 80, IsActive: true},
		}},
		ResultRepo: resultRepo,
		RunLogRepo: runLog,
		Evaluator:  evaluator,
		Store:      store,
		Metrics:    observability.NewMetrics(),
		SlaConfig: config.SlaConfig{
			Timezone:                "UTC",
			RecomputeTimeoutSeconds: 30,
			RecentlyClosedDays:      90,
		},
		CacheCfg: config.CacheConfig{MetricsTTLSec: 900, ListTTLSec: 600, DashboardTTLSec: 900, TicketTTLSec: 900},
		Clock:    func() time.Time { return now },
		Logger:   zap.NewNop(),
	})
	return &recomputeFixture{svc: svc, tickets: ticketRepo, results: resultRepo, runLog: runLog, store: store, now: now}
}

func sampleTickets() []domain.Ticket {
	return []domain.Ticket{
		{
			// response breached at exactly the 2h budget, resolution running
			ID:              "t1",
			ExternalKey:     "TCK-1",
			Status:          domain.TicketStatusInProgress,
			Priority:        domain.TicketPriorityHigh,
			OpenedAt:        at(2025, time.June, 2, 16, 0),
			FirstResponseAt: timeRef(at(2025, time.June, 3, 8, 0)),
		},
		{
			// opened Tuesday 08:00, 4h into a 24h resolution budget
			ID:       "t2",
			Status:   domain.TicketStatusOpen,
			Priority: domain.TicketPriorityMedium,
			OpenedAt: at(2025, time.June, 3, 8, 0),
		},
		{
			// no configuration for LOW in this fixture
			ID:       "t3",
			Status:   domain.TicketStatusOpen,
			Priority: domain.TicketPriorityLow,
			OpenedAt: at(2025, time.June, 3, 8, 0),
		},
	}
}

func timeRef(t time.Time) *time.Time { return &t }

func TestRecomputeAllAggregatesAndPublishes(t *testing.T) {
	f := newRecomputeFixture(t, sampleTickets())

	outcome, err := f.svc.RecomputeAll(context.Background(), "manual")
	require.NoError(t, err)

	require.True(t, outcome.Run.Succeeded)
	require.Equal(t, 2, outcome.Run.Processed)
	require.Equal(t, 1, outcome.Run.Errored)

	metrics := outcome.Metrics["30d"]
	require.Equal(t, 2, metrics.Total)
	require.Equal(t, 1, metrics.Errored)
	require.Equal(t, 0, metrics.Paused)
	require.Equal(t, 1, metrics.ByPriority[domain.TicketPriorityHigh].Total)
	require.Equal(t, 1, metrics.ByPriority[domain.TicketPriorityMedium].Total)
	// only t1 has a recorded first response: exactly 2h
	require.InDelta(t, 2.0, metrics.MeanResponseHours, 1e-9)
	require.Equal(t, "2h", metrics.MeanResponseDisplay)

	// every period slot plus dashboard, lists, and per-ticket slots exist
	for _, period := range []string{"7d", "30d", "60d", "90d"} {
		entry, err := f.store.Get(context.Background(), cache.MetricsKey(period))
		require.NoError(t, err, "period %s", period)
		require.False(t, entry.Stale)
		require.True(t, entry.ComputedAt.Equal(f.now))
	}
	for _, key := range []string{cache.KeyDashboard, cache.KeyRiskList, cache.KeyBreaches, cache.TicketKey("t1"), cache.TicketKey("t2")} {
		_, err := f.store.Get(context.Background(), key)
		require.NoError(t, err, "slot %s", key)
	}
	// the errored ticket gets no slot
	_, err = f.store.Get(context.Background(), cache.TicketKey("t3"))
	require.Error(t, err)

	// persisted results and run log mirror the pass
	require.Len(t, f.results.results, 2)
	require.Len(t, f.runLog.runs, 1)
	require.True(t, f.runLog.runs[0].Succeeded)
}

func TestRecomputeAllBreachListsAndRounding(t *testing.T) {
	f := newRecomputeFixture(t, sampleTickets())

	outcome, err := f.svc.RecomputeAll(context.Background(), "manual")
	require.NoError(t, err)

	// t1's response breached but its resolution is on track, so neither
	// list carries it; breach lists track the resolution window.
	require.Empty(t, outcome.RiskList)
	require.Empty(t, outcome.BreachList)

	entry, err := f.store.Get(context.Background(), cache.TicketKey("t1"))
	require.NoError(t, err)
	var res domain.SlaResult
	require.NoError(t, json.Unmarshal(entry.Payload, &res))
	require.Equal(t, domain.ComplianceBreached, res.ResponseState)
	require.InDelta(t, 100.0, res.ResponsePercentConsumed, 1e-9)
	require.InDelta(t, 75.0, res.ResolutionPercentConsumed, 1e-9)
}

func TestRecomputeAllDeterministic(t *testing.T) {
	f := newRecomputeFixture(t, sampleTickets())

	first, err := f.svc.RecomputeAll(context.Background(), "manual")
	require.NoError(t, err)
	second, err := f.svc.RecomputeAll(context.Background(), "manual")
	require.NoError(t, err)

	require.Equal(t, first.PerTicket, second.PerTicket)
	require.Equal(t, first.Metrics, second.Metrics)
	require.Equal(t, first.RiskList, second.RiskList)
	require.Equal(t, first.BreachList, second.BreachList)
}

func TestRecomputeAllCoalescesConcurrentTriggers(t *testing.T) {
	f := newRecomputeFixture(t, sampleTickets())
	f.tickets.release = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.svc.RecomputeAll(context.Background(), "scheduled")
		firstDone <- err
	}()

	// wait for the first pass to reach the repository, then join it
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.tickets.calls) == 1
	}, time.Second, time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		_, err := f.svc.RecomputeAll(context.Background(), "manual")
		secondDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	close(f.tickets.release)

	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	// one pass served both callers
	require.Equal(t, int32(1), atomic.LoadInt32(&f.tickets.calls))
	require.Len(t, f.runLog.runs, 1)
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0, "—"},
		{-1, "—"},
		{0.5, "30min"},
		{2, "2h"},
		{2.5, "2h 30min"},
		{25.25, "25h 15min"},
	}
	for _, tt := range tests {
		if got := FormatHours(tt.hours); got != tt.want {
			t.Errorf("FormatHours(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}
