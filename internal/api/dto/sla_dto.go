package dto

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// StatusChangeRequest is the webhook payload the ticketing subsystem sends
// when a ticket changes status.
type StatusChangeRequest struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	ChangedAt *time.Time          `json:"changed_at"`
}

// ManualPauseRequest opens a manual pause.
type ManualPauseRequest struct {
	Reason    string     `json:"reason"`
	StartedAt *time.Time `json:"started_at"`
}

// ManualUnpauseRequest closes the open pause.
type ManualUnpauseRequest struct {
	EndedAt *time.Time `json:"ended_at"`
}

// PauseResponse describes one pause interval.
type PauseResponse struct {
	ID            string               `json:"id"`
	TicketID      string               `json:"ticket_id"`
	StartedAt     time.Time            `json:"started_at"`
	EndedAt       *time.Time           `json:"ended_at"`
	Trigger       domain.PauseTrigger  `json:"trigger"`
	CausingStatus *domain.TicketStatus `json:"causing_status,omitempty"`
	Reason        string               `json:"reason,omitempty"`
}

// RecomputeRunResponse summarizes one batch pass.
type RecomputeRunResponse struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Processed  int       `json:"processed"`
	AtRisk     int       `json:"at_risk"`
	Breached   int       `json:"breached"`
	Paused     int       `json:"paused"`
	Errored    int       `json:"errored"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
}

// FromRun maps a run-log record to its response form.
func FromRun(run *domain.RecomputeRun) RecomputeRunResponse {
	return RecomputeRunResponse{
		ID:         run.ID,
		Kind:       run.Kind,
		StartedAt:  run.StartedAt,
		DurationMs: run.Duration.Milliseconds(),
		Processed:  run.Processed,
		AtRisk:     run.AtRisk,
		Breached:   run.Breached,
		Paused:     run.Paused,
		Errored:    run.Errored,
		Succeeded:  run.Succeeded,
		Error:      run.ErrMessage,
	}
}

// FromPause maps a pause interval to its response form.
func FromPause(pause *domain.PauseInterval) PauseResponse {
	return PauseResponse{
		ID:            pause.ID,
		TicketID:      pause.TicketID,
		StartedAt:     pause.StartedAt,
		EndedAt:       pause.EndedAt,
		Trigger:       pause.Trigger,
		CausingStatus: pause.CausingStatus,
		Reason:        pause.Reason,
	}
}

// HolidayResponse describes one calendar date.
type HolidayResponse struct {
	Date    string `json:"date"`
	Name    string `json:"name"`
	Movable bool   `json:"movable"`
}

// FromHoliday maps a holiday to its response form.
func FromHoliday(h *domain.Holiday) HolidayResponse {
	return HolidayResponse{
		Date:    h.Date.Format("2006-01-02"),
		Name:    h.Name,
		Movable: h.Movable,
	}
}
