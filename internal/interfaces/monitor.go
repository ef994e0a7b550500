package interfaces

import (
	"context"
	"net/http"
	"time"

	"zendesk-feedback-monitor/internal/models"
)

// ZendeskClient performs the three read calls the monitor needs. Every
// failure, HTTP or transport, is returned as a *common.MonitorError.
type ZendeskClient interface {
	ListTickets(ctx context.Context, creds models.Credentials) ([]models.Ticket, error)
	ListSatisfactionRatings(ctx context.Context, creds models.Credentials) ([]models.SatisfactionRating, error)
	GetTicketMetrics(ctx context.Context, creds models.Credentials, ticketID int64) (models.TicketMetric, error)
}

// SnapshotStore owns the single live snapshot.
type SnapshotStore interface {
	Load() (*models.Snapshot, bool)
	Publish(snapshot *models.Snapshot)
}

// CredentialSource decides which credentials drive scheduled refreshes.
type CredentialSource interface {
	Credentials() (models.Credentials, bool)
	Remember(creds models.Credentials)
	Mode() string
}

// Monitor is the refresh/relay orchestrator.
type Monitor interface {
	Refresh(ctx context.Context) (*models.Snapshot, error)
	RefreshSnapshot(ctx context.Context, creds models.Credentials) (*models.Snapshot, error)
	RelayFeedback(ctx context.Context, returnURL string, creds models.Credentials) error
}

// Scheduler drives periodic refreshes.
type Scheduler interface {
	Serve(ctx context.Context) error
	SetInterval(interval time.Duration) error
	Interval() time.Duration
	TriggerRefresh()
}

// HistoryStore persists refresh and relay run records.
type HistoryStore interface {
	RecordRun(record *models.RunRecord) error
	ListRuns(kind string, limit int) ([]*models.RunRecord, error)
	ClearRuns() error
	Prune(before time.Time) (int, error)
	Close() error
}

// EventBroadcaster pushes live events to connected websocket clients.
type EventBroadcaster interface {
	SendEvent(eventType string, data interface{})
}

type WebService interface {
	Serve(ctx context.Context) error
	Handler() http.Handler
	IsRunning() bool
}
