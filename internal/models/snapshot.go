package models

import "time"

// Snapshot is the aggregate produced by one refresh cycle.
// TicketMetrics is keyed by the ids present in Feedback.
type Snapshot struct {
	Feedback            []Ticket               `json:"feedback"`
	SatisfactionRatings []SatisfactionRating   `json:"satisfaction_ratings"`
	TicketMetrics       map[int64]TicketMetric `json:"ticket_metrics"`
	LastUpdated         time.Time              `json:"last_updated"`
	RatingsError        string                 `json:"ratings_error,omitempty"`
}

// MetricErrorCount returns how many metric entries are error markers.
func (s *Snapshot) MetricErrorCount() int {
	count := 0
	for _, metric := range s.TicketMetrics {
		if metric.IsError() {
			count++
		}
	}
	return count
}
