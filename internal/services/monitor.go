package services

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/metrics"
	"zendesk-feedback-monitor/internal/models"
)

// Websocket event types
const (
	EventSnapshotUpdated = "snapshot_updated"
	EventRefreshFailed   = "refresh_failed"
	EventRelaySent       = "relay_sent"
	EventRelayFailed     = "relay_failed"
)

type monitor struct {
	config      *common.Config
	client      interfaces.ZendeskClient
	store       interfaces.SnapshotStore
	credentials interfaces.CredentialSource
	history     interfaces.HistoryStore
	events      interfaces.EventBroadcaster
	relayClient *resty.Client
	logger      arbor.ILogger
	now         func() time.Time
}

// NewMonitor wires the refresh and relay flows. history and events may be nil.
func NewMonitor(
	config *common.Config,
	client interfaces.ZendeskClient,
	store interfaces.SnapshotStore,
	credentials interfaces.CredentialSource,
	history interfaces.HistoryStore,
	events interfaces.EventBroadcaster,
	logger arbor.ILogger,
) interfaces.Monitor {
	relayClient := resty.New().
		SetTimeout(time.Duration(config.Relay.TimeoutSeconds)*time.Second).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &monitor{
		config:      config,
		client:      client,
		store:       store,
		credentials: credentials,
		history:     history,
		events:      events,
		relayClient: relayClient,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Refresh runs one refresh cycle with the credential source's credentials.
func (m *monitor) Refresh(ctx context.Context) (*models.Snapshot, error) {
	creds, ok := m.credentials.Credentials()
	if !ok {
		m.logger.Warn().Str("mode", m.credentials.Mode()).Msg("No Zendesk credentials available, skipping refresh")
		return nil, common.NewConfigurationError("NO_CREDENTIALS", "No Zendesk credentials available for refresh")
	}
	return m.RefreshSnapshot(ctx, creds)
}

// RefreshSnapshot builds a new snapshot and publishes it. A ticket listing
// failure aborts the cycle and leaves the previous snapshot in place.
func (m *monitor) RefreshSnapshot(ctx context.Context, creds models.Credentials) (*models.Snapshot, error) {
	started := m.now()
	record := m.newRunRecord(models.RunKindRefresh, creds.BaseURL, started)

	m.logger.Debug().Str("zendesk", creds.BaseURL).Msg("Refreshing feedback snapshot")

	tickets, err := m.client.ListTickets(ctx, creds)
	if err != nil {
		m.logger.Error().Err(err).Str("zendesk", creds.BaseURL).Msg("Snapshot refresh aborted, keeping previous snapshot")
		metrics.RecordRefresh(m.now().Sub(started), 0, err)
		m.finishRun(record, err)
		m.broadcast(EventRefreshFailed, map[string]interface{}{
			"error":     common.ErrorMessage(err),
			"timestamp": m.now(),
		})
		return nil, err
	}

	if tickets == nil {
		tickets = []models.Ticket{}
	}

	snapshot := &models.Snapshot{
		Feedback:            tickets,
		TicketMetrics:       m.fetchTicketMetrics(ctx, creds, tickets),
		SatisfactionRatings: []models.SatisfactionRating{},
	}

	ratings, err := m.client.ListSatisfactionRatings(ctx, creds)
	if err != nil {
		m.logger.Warn().Err(err).Str("zendesk", creds.BaseURL).Msg("Satisfaction ratings unavailable for this refresh")
		snapshot.RatingsError = common.ErrorMessage(err)
	} else if ratings != nil {
		snapshot.SatisfactionRatings = ratings
	}

	snapshot.LastUpdated = m.now()
	m.store.Publish(snapshot)

	metricErrors := snapshot.MetricErrorCount()
	metrics.RecordRefresh(m.now().Sub(started), len(snapshot.Feedback), nil)

	record.TicketCount = len(snapshot.Feedback)
	record.RatingCount = len(snapshot.SatisfactionRatings)
	record.MetricErrors = metricErrors
	record.Detail = snapshot.RatingsError
	m.finishRun(record, nil)

	m.broadcast(EventSnapshotUpdated, map[string]interface{}{
		"tickets":       len(snapshot.Feedback),
		"ratings":       len(snapshot.SatisfactionRatings),
		"metric_errors": metricErrors,
		"ratings_error": snapshot.RatingsError,
		"last_updated":  snapshot.LastUpdated,
	})

	m.logger.Info().
		Int("tickets", len(snapshot.Feedback)).
		Int("ratings", len(snapshot.SatisfactionRatings)).
		Int("metric_errors", metricErrors).
		Dur("duration", record.Duration()).
		Msg("Feedback snapshot published")

	return snapshot, nil
}

// fetchTicketMetrics loads metrics for every ticket with bounded concurrency.
// Failures are stored as error markers and never fail the refresh.
func (m *monitor) fetchTicketMetrics(ctx context.Context, creds models.Credentials, tickets []models.Ticket) map[int64]models.TicketMetric {
	results := make([]models.TicketMetric, len(tickets))

	limit := m.config.Zendesk.MetricsConcurrency
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, ticket := range tickets {
		g.Go(func() error {
			metric, err := m.client.GetTicketMetrics(ctx, creds, ticket.ID)
			if err != nil {
				m.logger.Warn().Err(err).Int("ticket_id", int(ticket.ID)).Msg("Ticket metrics unavailable")
				results[i] = models.NewMetricError(common.ErrorMessage(err))
				return nil
			}
			if metric == nil {
				metric = models.TicketMetric{}
			}
			if _, ok := metric.TicketID(); !ok {
				metric["ticket_id"] = ticket.ID
			}
			results[i] = metric
			return nil
		})
	}
	_ = g.Wait()

	byTicket := make(map[int64]models.TicketMetric, len(tickets))
	for i, ticket := range tickets {
		byTicket[ticket.ID] = results[i]
	}
	return byTicket
}

func (m *monitor) newRunRecord(kind, target string, started time.Time) *models.RunRecord {
	return &models.RunRecord{
		ID:        uuid.New().String(),
		Kind:      kind,
		StartedAt: started,
		Target:    target,
	}
}

// finishRun stamps the record and persists it. History is best effort.
func (m *monitor) finishRun(record *models.RunRecord, err error) {
	record.FinishedAt = m.now()
	record.Status = models.RunStatusSuccess
	if err != nil {
		record.Status = models.RunStatusFailed
		record.Detail = common.ErrorMessage(err)
	}

	if m.history == nil {
		return
	}
	if err := m.history.RecordRun(record); err != nil {
		m.logger.Warn().Err(err).Str("kind", record.Kind).Msg("Failed to record run history")
	}
}

func (m *monitor) broadcast(eventType string, data interface{}) {
	if m.events == nil {
		return
	}
	m.events.SendEvent(eventType, data)
}
