package service

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/sla"
)

// MetricsPeriods are the rolling windows the batch pass aggregates over.
var MetricsPeriods = []struct {
	Label string
	Days  int
}{
	{"7d", 7},
	{"30d", 30},
	{"60d", 60},
	{"90d", 90},
}

const listLimit = 50

// DashboardPayload is the aggregate slot served to the dashboard.
type DashboardPayload struct {
	Metrics    domain.Metrics     `json:"metrics"`
	RiskList   []domain.SlaResult `json:"risk_list"`
	BreachList []domain.SlaResult `json:"breach_list"`
	ComputedAt time.Time          `json:"computed_at"`
}

// ListPayload is a risk or breach list slot.
type ListPayload struct {
	Tickets    []domain.SlaResult `json:"tickets"`
	ComputedAt time.Time          `json:"computed_at"`
}

// RecomputeOutcome is the full product of one batch pass.
type RecomputeOutcome struct {
	Run        domain.RecomputeRun
	PerTicket  []domain.SlaResult
	Metrics    map[string]domain.Metrics
	RiskList   []domain.SlaResult
	BreachList []domain.SlaResult
}

// RecomputeService runs the batch SLA pass: evaluate every ticket, reduce
// aggregates, and publish all cache slots from one snapshot. Concurrent
// triggers coalesce onto the in-flight pass.
type RecomputeService struct {
	tickets   repository.TicketRepository
	configs   repository.SlaConfigRepository
	results   repository.SlaResultRepository
	runLog    repository.RunLogRepository
	evaluator *sla.Evaluator
	store     *cache.Store
	metrics   *observability.Metrics
	slaCfg    config.SlaConfig
	cacheCfg  config.CacheConfig
	clock     func() time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight bool
	done     chan struct{}
	last     *RecomputeOutcome
	lastErr  error
}

// RecomputeDependencies bundles collaborators for the batch pass.
type RecomputeDependencies struct {
	TicketRepo repository.TicketRepository
	ConfigRepo repository.SlaConfigRepository
	ResultRepo repository.SlaResultRepository
	RunLogRepo repository.RunLogRepository
	Evaluator  *sla.Evaluator
	Store      *cache.Store
	Metrics    *observability.Metrics
	SlaConfig  config.SlaConfig
	CacheCfg   config.CacheConfig
	Clock      func() time.Time
	Logger     *zap.Logger
}

// NewRecomputeService constructs the service.
func NewRecomputeService(deps RecomputeDependencies) *RecomputeService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &RecomputeService{
		tickets:   deps.TicketRepo,
		configs:   deps.ConfigRepo,
		results:   deps.ResultRepo,
		runLog:    deps.RunLogRepo,
		evaluator: deps.Evaluator,
		store:     deps.Store,
		metrics:   deps.Metrics,
		slaCfg:    deps.SlaConfig,
		cacheCfg:  deps.CacheCfg,
		clock:     clock,
		logger:    deps.Logger,
	}
}

// RecomputeAll runs one batch pass, or joins the pass already in flight.
func (s *RecomputeService) RecomputeAll(ctx context.Context, kind string) (*RecomputeOutcome, error) {
	s.mu.Lock()
	if s.inFlight {
		done := s.done
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.mu.Lock()
		outcome, err := s.last, s.lastErr
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return outcome, nil
	}
	s.inFlight = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	outcome, err := s.runPass(ctx, kind)

	s.mu.Lock()
	s.inFlight = false
	if err == nil {
		s.last = outcome
	}
	s.lastErr = err
	close(s.done)
	s.mu.Unlock()

	return outcome, err
}

// Trigger runs one pass and discards the outcome. Satisfies the scheduler's
// Recomputer interface.
func (s *RecomputeService) Trigger(ctx context.Context, kind string) error {
	_, err := s.RecomputeAll(ctx, kind)
	return err
}

// LastOutcome returns the most recent successful pass, if any.
func (s *RecomputeService) LastOutcome() *RecomputeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *RecomputeService) runPass(ctx context.Context, kind string) (*RecomputeOutcome, error) {
	if timeout := s.slaCfg.RecomputeTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	now := s.clock()
	started := time.Now()
	run := domain.RecomputeRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: now,
	}

	outcome, err := s.compute(ctx, now)
	run.Duration = time.Since(started)

	if err != nil {
		run.Succeeded = false
		run.ErrMessage = err.Error()
		s.metrics.RecordRecompute(run.Duration, 0, false)
		s.writeRunLog(ctx, &run)
		s.logger.Error("recompute pass failed, nothing published",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
		return nil, err
	}

	run.Succeeded = true
	run.Processed = len(outcome.PerTicket)
	run.Errored = outcome.Metrics["30d"].Errored
	for _, res := range outcome.PerTicket {
		if res.CurrentlyPaused {
			run.Paused++
		}
		switch res.ResolutionState {
		case domain.ComplianceAtRisk:
			run.AtRisk++
		case domain.ComplianceBreached:
			run.Breached++
		}
	}
	outcome.Run = run

	if err := s.publish(ctx, now, outcome); err != nil {
		run.Succeeded = false
		run.ErrMessage = err.Error()
		s.metrics.RecordRecompute(run.Duration, run.Errored, false)
		s.writeRunLog(ctx, &run)
		return nil, err
	}

	s.persist(ctx, outcome)
	s.metrics.RecordRecompute(run.Duration, run.Errored, true)
	s.writeRunLog(ctx, &run)

	s.logger.Info("recompute pass finished",
		zap.String("run_id", run.ID),
		zap.String("kind", kind),
		zap.Int("processed", run.Processed),
		zap.Int("at_risk", run.AtRisk),
		zap.Int("breached", run.Breached),
		zap.Int("paused", run.Paused),
		zap.Int("errored", run.Errored),
		zap.Duration("duration", run.Duration),
	)
	return outcome, nil
}

func (s *RecomputeService) compute(ctx context.Context, now time.Time) (*RecomputeOutcome, error) {
	accountingStart, err := s.slaCfg.AccountingStart(s.evaluator.Location())
	if err != nil {
		return nil, err
	}
	closedSince := now.AddDate(0, 0, -s.slaCfg.RecentlyClosedDays)

	tickets, err := s.tickets.ListForRecompute(ctx, accountingStart, closedSince)
	if err != nil {
		return nil, err
	}
	configs, err := s.loadConfigs(ctx)
	if err != nil {
		return nil, err
	}

	// Sharded evaluation: each slot is written by exactly one goroutine and
	// read only after Wait, so no partial aggregate is ever observed.
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	results := make([]*domain.SlaResult, len(tickets))
	errored := make([]bool, len(tickets))

	workers := runtime.GOMAXPROCS(0)
	if workers > 8 {
		workers = 8
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range tickets {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ticket := &tickets[i]
			res, err := s.evaluator.Evaluate(gctx, ticket, configs[ticket.Priority], now)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("ticket evaluation failed, skipping",
					zap.String("ticket_id", ticket.ID),
					zap.String("priority", string(ticket.Priority)),
					zap.Error(err),
				)
				errored[i] = true
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcome := &RecomputeOutcome{Metrics: make(map[string]domain.Metrics, len(MetricsPeriods))}
	erroredCount := 0
	for i := range results {
		if errored[i] {
			erroredCount++
			continue
		}
		if results[i] != nil {
			outcome.PerTicket = append(outcome.PerTicket, *results[i])
		}
	}

	for _, period := range MetricsPeriods {
		start := now.AddDate(0, 0, -period.Days)
		metrics := s.reduce(outcome.PerTicket, tickets, start, now, erroredCount)
		outcome.Metrics[period.Label] = metrics
	}

	outcome.RiskList = filterByState(outcome.PerTicket, domain.ComplianceAtRisk)
	outcome.BreachList = filterByState(outcome.PerTicket, domain.ComplianceBreached)

	return outcome, nil
}

// reduce aggregates per-ticket results for one period. Active tickets always
// count; completed tickets count only when opened inside the period.
func (s *RecomputeService) reduce(results []domain.SlaResult, tickets []domain.Ticket, periodStart, now time.Time, errored int) domain.Metrics {
	byID := make(map[string]*domain.Ticket, len(tickets))
	for i := range tickets {
		byID[tickets[i].ID] = &tickets[i]
	}

	metrics := domain.Metrics{
		Errored:     errored,
		ByPriority:  make(map[domain.TicketPriority]domain.PriorityMetrics),
		PeriodStart: periodStart,
		PeriodEnd:   now,
		ComputedAt:  now,
	}

	var responseSum, resolutionSum float64
	var responseCount, resolutionCount int

	for i := range results {
		res := &results[i]
		ticket := byID[res.TicketID]
		if ticket == nil {
			continue
		}
		if ticket.IsFinal() && ticket.OpenedAt.Before(periodStart) {
			continue
		}

		metrics.Total++
		prio := metrics.ByPriority[res.Priority]
		prio.Priority = res.Priority
		prio.Total++

		if res.CurrentlyPaused {
			metrics.Paused++
			prio.Paused++
		}
		switch res.ResolutionState {
		case domain.ComplianceAtRisk:
			metrics.AtRisk++
			prio.AtRisk++
		case domain.ComplianceBreached:
			metrics.Breached++
			prio.Breached++
		}
		metrics.ByPriority[res.Priority] = prio

		if ticket.FirstResponseAt != nil {
			responseSum += res.ResponseElapsedHours
			responseCount++
		}
		if ticket.CompletedAt != nil {
			resolutionSum += res.ResolutionElapsedHours
			resolutionCount++
		}
	}

	if responseCount > 0 {
		metrics.MeanResponseHours = round2(responseSum / float64(responseCount))
	}
	if resolutionCount > 0 {
		metrics.MeanResolutionHours = round2(resolutionSum / float64(resolutionCount))
	}
	metrics.MeanResponseDisplay = FormatHours(metrics.MeanResponseHours)
	metrics.MeanResolutionDisplay = FormatHours(metrics.MeanResolutionHours)

	return metrics
}

func (s *RecomputeService) publish(ctx context.Context, now time.Time, outcome *RecomputeOutcome) error {
	snapshot := cache.NewSnapshot(now)

	metricsTTL := time.Duration(s.cacheCfg.MetricsTTLSec) * time.Second
	listTTL := time.Duration(s.cacheCfg.ListTTLSec) * time.Second
	dashboardTTL := time.Duration(s.cacheCfg.DashboardTTLSec) * time.Second
	ticketTTL := time.Duration(s.cacheCfg.TicketTTLSec) * time.Second

	for label, metrics := range outcome.Metrics {
		if err := snapshot.Put(cache.MetricsKey(label), metrics, metricsTTL); err != nil {
			return err
		}
	}
	riskList := displayResults(outcome.RiskList)
	breachList := displayResults(outcome.BreachList)
	if err := snapshot.Put(cache.KeyRiskList, ListPayload{Tickets: riskList, ComputedAt: now}, listTTL); err != nil {
		return err
	}
	if err := snapshot.Put(cache.KeyBreaches, ListPayload{Tickets: breachList, ComputedAt: now}, listTTL); err != nil {
		return err
	}
	if err := snapshot.Put(cache.KeyDashboard, DashboardPayload{
		Metrics:    outcome.Metrics["30d"],
		RiskList:   riskList,
		BreachList: breachList,
		ComputedAt: now,
	}, dashboardTTL); err != nil {
		return err
	}
	for i := range outcome.PerTicket {
		res := displayResult(outcome.PerTicket[i])
		if err := snapshot.Put(cache.TicketKey(res.TicketID), &res, ticketTTL); err != nil {
			return err
		}
	}

	return s.store.Publish(ctx, snapshot)
}

// persist mirrors the snapshot into Postgres. A database failure here is
// logged but does not unpublish the cache snapshot.
func (s *RecomputeService) persist(ctx context.Context, outcome *RecomputeOutcome) {
	if s.results == nil {
		return
	}
	if err := s.results.UpsertMany(ctx, outcome.PerTicket); err != nil {
		s.logger.Warn("failed to persist per-ticket results", zap.Error(err))
	}
}

func (s *RecomputeService) writeRunLog(ctx context.Context, run *domain.RecomputeRun) {
	if s.runLog == nil {
		return
	}
	// run log survives pass timeouts; use a fresh context bound only by a
	// short deadline
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runLog.Create(logCtx, run); err != nil {
		s.logger.Warn("failed to record recompute run", zap.Error(err))
	}
}

func (s *RecomputeService) loadConfigs(ctx context.Context) (map[domain.TicketPriority]*domain.SlaConfiguration, error) {
	list, err := s.configs.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	configs := make(map[domain.TicketPriority]*domain.SlaConfiguration, len(list))
	for i := range list {
		configs[list[i].Priority] = &list[i]
	}
	return configs, nil
}

func filterByState(results []domain.SlaResult, state domain.ComplianceState) []domain.SlaResult {
	filtered := make([]domain.SlaResult, 0)
	for i := range results {
		if results[i].ResolutionState == state {
			filtered = append(filtered, results[i])
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].ResolutionPercentConsumed != filtered[j].ResolutionPercentConsumed {
			return filtered[i].ResolutionPercentConsumed > filtered[j].ResolutionPercentConsumed
		}
		return filtered[i].TicketID < filtered[j].TicketID
	})
	if len(filtered) > listLimit {
		filtered = filtered[:listLimit]
	}
	return filtered
}

// displayResult rounds a result for cached payloads. Internal accounting and
// persistence keep the unrounded values.
func displayResult(res domain.SlaResult) domain.SlaResult {
	res.ResponseElapsedHours = round2(res.ResponseElapsedHours)
	res.ResponsePausedHours = round2(res.ResponsePausedHours)
	res.ResponsePercentConsumed = sla.RoundPercent(res.ResponsePercentConsumed)
	res.ResolutionElapsedHours = round2(res.ResolutionElapsedHours)
	res.ResolutionPausedHours = round2(res.ResolutionPausedHours)
	res.ResolutionPercentConsumed = sla.RoundPercent(res.ResolutionPercentConsumed)
	return res
}

func displayResults(results []domain.SlaResult) []domain.SlaResult {
	out := make([]domain.SlaResult, len(results))
	for i := range results {
		out[i] = displayResult(results[i])
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatHours renders fractional hours as "2h 30min" for display.
func FormatHours(hours float64) string {
	if hours <= 0 {
		return "—"
	}
	h := int(hours)
	m := int((hours - float64(h)) * 60)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dmin", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dmin", m)
	}
}
