package domain

import "time"

// ComplianceState classifies consumed SLA budget.
type ComplianceState string

const (
	ComplianceOnTrack  ComplianceState = "ON_TRACK"
	ComplianceAtRisk   ComplianceState = "AT_RISK"
	ComplianceBreached ComplianceState = "BREACHED"
)

// PauseTrigger identifies what opened a pause interval.
type PauseTrigger string

const (
	PauseTriggerStatus PauseTrigger = "STATUS"
	PauseTriggerManual PauseTrigger = "MANUAL"
)

// SlaConfiguration holds the time budgets for one priority.
type SlaConfiguration struct {
	ID                   string
	Priority             TicketPriority
	ResponseHours        float64
	ResolutionHours      float64
	RiskThresholdPercent float64
	Description          string
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// BusinessHoursRule defines the working window for one weekday.
// Weekday follows time.Weekday numbering (Sunday = 0).
type BusinessHoursRule struct {
	ID        string
	Weekday   time.Weekday
	StartHour int
	StartMin  int
	EndHour   int
	EndMin    int
	IsActive  bool
}

// Holiday excludes a whole calendar date from SLA accounting.
type Holiday struct {
	ID        string
	Date      time.Time // midnight in the business calendar's location
	Name      string
	Movable   bool
	IsActive  bool
	CreatedAt time.Time
}

// PauseInterval suspends SLA accrual for one ticket. EndedAt nil means the
// pause is still open; at most one open pause may exist per ticket.
type PauseInterval struct {
	ID            string
	TicketID      string
	StartedAt     time.Time
	EndedAt       *time.Time
	Trigger       PauseTrigger
	CausingStatus *TicketStatus
	Reason        string
	CreatedAt     time.Time
}

// SlaResult is the computed SLA standing of one ticket. It is replaced
// wholesale on every recomputation pass, never merged.
type SlaResult struct {
	TicketID                  string          `json:"ticket_id"`
	ExternalKey               string          `json:"external_key"`
	Priority                  TicketPriority  `json:"priority"`
	Status                    TicketStatus    `json:"status"`
	ResponseBudgetHours       float64         `json:"response_budget_hours"`
	ResponseElapsedHours      float64         `json:"response_elapsed_hours"`
	ResponsePausedHours       float64         `json:"response_paused_hours"`
	ResponsePercentConsumed   float64         `json:"response_percent_consumed"`
	ResponseState             ComplianceState `json:"response_state"`
	ResponseFrozen            bool            `json:"response_frozen"`
	ResolutionBudgetHours     float64         `json:"resolution_budget_hours"`
	ResolutionElapsedHours    float64         `json:"resolution_elapsed_hours"`
	ResolutionPausedHours     float64         `json:"resolution_paused_hours"`
	ResolutionPercentConsumed float64         `json:"resolution_percent_consumed"`
	ResolutionState           ComplianceState `json:"resolution_state"`
	ResolutionFrozen          bool            `json:"resolution_frozen"`
	CurrentlyPaused           bool            `json:"currently_paused"`
	ComputedAt                time.Time       `json:"computed_at"`
}

// PriorityMetrics aggregates ticket standing for one priority.
type PriorityMetrics struct {
	Priority TicketPriority `json:"priority"`
	Total    int            `json:"total"`
	AtRisk   int            `json:"at_risk"`
	Breached int            `json:"breached"`
	Paused   int            `json:"paused"`
}

// Metrics is the fleet-wide aggregate produced by one recomputation pass.
type Metrics struct {
	Total                 int                                `json:"total"`
	AtRisk                int                                `json:"at_risk"`
	Breached              int                                `json:"breached"`
	Paused                int                                `json:"paused"`
	Errored               int                                `json:"errored"`
	MeanResponseHours     float64                            `json:"mean_response_hours"`
	MeanResolutionHours   float64                            `json:"mean_resolution_hours"`
	MeanResponseDisplay   string                             `json:"mean_response_display"`
	MeanResolutionDisplay string                             `json:"mean_resolution_display"`
	ByPriority            map[TicketPriority]PriorityMetrics `json:"by_priority"`
	PeriodStart           time.Time                          `json:"period_start"`
	PeriodEnd             time.Time                          `json:"period_end"`
	ComputedAt            time.Time                          `json:"computed_at"`
}

// RecomputeRun records one batch recomputation pass.
type RecomputeRun struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"` // "scheduled" or "manual"
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Processed  int           `json:"processed"`
	AtRisk     int           `json:"at_risk"`
	Breached   int           `json:"breached"`
	Paused     int           `json:"paused"`
	Errored    int           `json:"errored"`
	Succeeded  bool          `json:"succeeded"`
	ErrMessage string        `json:"error_message,omitempty"`
}
