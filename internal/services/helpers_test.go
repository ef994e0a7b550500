package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ternarybob/arbor"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/models"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.DefaultConfig()
	cfg.Storage.DatabasePath = t.TempDir() + "/history.db"
	cfg.Zendesk.TimeoutSeconds = 5
	cfg.Relay.TimeoutSeconds = 5
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

// fakeZendesk is an in-memory ZendeskClient
type fakeZendesk struct {
	mu          sync.Mutex
	tickets     []models.Ticket
	ticketsErr  error
	ratings     []models.SatisfactionRating
	ratingsErr  error
	metricErrs  map[int64]error
	metricCalls atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	block       chan struct{}
}

func (f *fakeZendesk) ListTickets(ctx context.Context, creds models.Credentials) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticketsErr != nil {
		return nil, f.ticketsErr
	}
	return append([]models.Ticket(nil), f.tickets...), nil
}

func (f *fakeZendesk) ListSatisfactionRatings(ctx context.Context, creds models.Credentials) ([]models.SatisfactionRating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ratingsErr != nil {
		return nil, f.ratingsErr
	}
	return append([]models.SatisfactionRating(nil), f.ratings...), nil
}

func (f *fakeZendesk) GetTicketMetrics(ctx context.Context, creds models.Credentials, ticketID int64) (models.TicketMetric, error) {
	f.metricCalls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if current <= seen || f.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	err := f.metricErrs[ticketID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return models.TicketMetric{"id": ticketID * 100, "ticket_id": ticketID}, nil
}

func (f *fakeZendesk) setTicketsErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketsErr = err
}

// recordingEvents captures broadcast events
type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) SendEvent(eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func testCredentials(baseURL string) models.Credentials {
	return models.Credentials{BaseURL: baseURL, Email: "agent@acme.test", APIToken: "token"}
}

func stringPtr(s string) *string {
	return &s
}

func ticketFixture(id int64, subject, status string) models.Ticket {
	return models.Ticket{ID: id, Subject: subject, Status: status}
}
