package models

import "time"

const (
	RunKindRefresh = "refresh"
	RunKindRelay   = "relay"

	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// RunRecord is one entry of the refresh/relay history
type RunRecord struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       string    `json:"status"`
	Detail       string    `json:"detail,omitempty"`
	Target       string    `json:"target,omitempty"`
	TicketCount  int       `json:"ticket_count"`
	RatingCount  int       `json:"rating_count"`
	MetricErrors int       `json:"metric_errors,omitempty"`
}

// Duration is the wall time the run took
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
