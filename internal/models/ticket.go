package models

import "strconv"

// NoCommentPlaceholder replaces a satisfaction rating comment Zendesk did not send.
const NoCommentPlaceholder = "No comment"

// Ticket is the projection of a Zendesk ticket kept in a snapshot
type Ticket struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Status  string `json:"status"`
}

// SatisfactionRating is the projection of a Zendesk CSAT rating
type SatisfactionRating struct {
	ID      int64   `json:"id"`
	Score   *string `json:"score"`
	Comment string  `json:"comment"`
}

// ScoreOrDefault returns the rating score, or "unrated" when Zendesk sent null.
func (r SatisfactionRating) ScoreOrDefault() string {
	if r.Score == nil {
		return "unrated"
	}
	return *r.Score
}

// TicketMetric holds the upstream ticket_metric object verbatim, or an
// error marker of the form {"error": "..."} when the fetch failed.
type TicketMetric map[string]interface{}

// NewMetricError builds the error marker stored in place of a failed metric.
func NewMetricError(message string) TicketMetric {
	return TicketMetric{"error": message}
}

// Error returns the marker message, or "" for a real metric.
func (m TicketMetric) Error() string {
	if msg, ok := m["error"].(string); ok {
		return msg
	}
	return ""
}

// IsError reports whether the entry is an error marker.
func (m TicketMetric) IsError() bool {
	return m.Error() != ""
}

// TicketID returns the ticket_id field when it is present and numeric.
func (m TicketMetric) TicketID() (int64, bool) {
	switch v := m["ticket_id"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case interface{ String() string }:
		id, err := strconv.ParseInt(v.String(), 10, 64)
		return id, err == nil
	}
	return 0, false
}
