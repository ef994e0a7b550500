package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/ternarybob/arbor"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/metrics"
	"zendesk-feedback-monitor/internal/models"
)

const (
	endpointTickets       = "tickets"
	endpointRatings       = "satisfaction_ratings"
	endpointTicketMetrics = "ticket_metrics"
)

type zendeskClient struct {
	client *resty.Client
	logger arbor.ILogger
}

type ticketsResponse struct {
	Tickets []models.Ticket `json:"tickets"`
}

type satisfactionRatingsResponse struct {
	SatisfactionRatings []struct {
		ID      int64   `json:"id"`
		Score   *string `json:"score"`
		Comment *string `json:"comment"`
	} `json:"satisfaction_ratings"`
}

type ticketMetricResponse struct {
	TicketMetric map[string]interface{} `json:"ticket_metric"`
}

// NewZendeskClient creates a client for the Zendesk Support API. Credentials
// are not bound to the client; every call carries its own.
func NewZendeskClient(config *common.ZendeskConfig, logger arbor.ILogger) interfaces.ZendeskClient {
	client := resty.New().
		SetTimeout(time.Duration(config.TimeoutSeconds)*time.Second).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &zendeskClient{
		client: client,
		logger: logger,
	}
}

func (zc *zendeskClient) ListTickets(ctx context.Context, creds models.Credentials) ([]models.Ticket, error) {
	body, err := zc.get(ctx, creds, endpointTickets, "/api/v2/tickets.json", "Failed to fetch tickets")
	if err != nil {
		return nil, err
	}

	var response ticketsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, common.WrapError(err, common.ErrorTypeUpstream, "DECODE", "Failed to decode tickets response").
			WithStatus(http.StatusOK)
	}

	tickets := response.Tickets
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

func (zc *zendeskClient) ListSatisfactionRatings(ctx context.Context, creds models.Credentials) ([]models.SatisfactionRating, error) {
	body, err := zc.get(ctx, creds, endpointRatings, "/api/v2/satisfaction_ratings.json", "Failed to fetch ratings")
	if err != nil {
		return nil, err
	}

	var response satisfactionRatingsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, common.WrapError(err, common.ErrorTypeUpstream, "DECODE", "Failed to decode satisfaction ratings response").
			WithStatus(http.StatusOK)
	}

	ratings := make([]models.SatisfactionRating, 0, len(response.SatisfactionRatings))
	for _, raw := range response.SatisfactionRatings {
		comment := models.NoCommentPlaceholder
		if raw.Comment != nil {
			comment = *raw.Comment
		}
		ratings = append(ratings, models.SatisfactionRating{
			ID:      raw.ID,
			Score:   raw.Score,
			Comment: comment,
		})
	}
	return ratings, nil
}

func (zc *zendeskClient) GetTicketMetrics(ctx context.Context, creds models.Credentials, ticketID int64) (models.TicketMetric, error) {
	path := fmt.Sprintf("/api/v2/tickets/%d/metrics.json", ticketID)
	failure := fmt.Sprintf("Failed to fetch metrics for ticket %d", ticketID)

	body, err := zc.get(ctx, creds, endpointTicketMetrics, path, failure)
	if err != nil {
		return nil, err
	}

	// UseNumber keeps integer metric fields (minutes, counts) exact.
	var response ticketMetricResponse
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&response); err != nil {
		return nil, common.WrapError(err, common.ErrorTypeUpstream, "DECODE", "Failed to decode ticket metrics response").
			WithStatus(http.StatusOK).
			WithContext("ticket_id", ticketID)
	}

	metric := models.TicketMetric(response.TicketMetric)
	if metric == nil {
		metric = models.TicketMetric{}
	}
	return metric, nil
}

// get issues one authenticated GET and returns the body of a 200 response.
// Any other status becomes an upstream error carrying the status code.
func (zc *zendeskClient) get(ctx context.Context, creds models.Credentials, endpoint, path, failure string) ([]byte, error) {
	if creds.BaseURL == "" {
		return nil, common.NewValidationError("MISSING_BASE_URL", "Zendesk base URL is required")
	}

	start := time.Now()
	resp, err := zc.client.R().
		SetContext(ctx).
		SetBasicAuth(creds.Login(), creds.APIToken).
		Get(creds.BaseURL + path)

	if err != nil {
		metrics.RecordUpstream(endpoint, time.Since(start), err)
		zc.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Zendesk request failed")
		return nil, common.NewNetworkError("REQUEST_FAILED", failure).
			WithCause(err).
			WithContext("endpoint", endpoint)
	}

	if resp.StatusCode() != http.StatusOK {
		upstreamErr := common.NewUpstreamError("HTTP_STATUS", fmt.Sprintf("%s. Status: %d", failure, resp.StatusCode()), resp.StatusCode()).
			WithContext("endpoint", endpoint)
		metrics.RecordUpstream(endpoint, time.Since(start), upstreamErr)
		return nil, upstreamErr
	}

	metrics.RecordUpstream(endpoint, time.Since(start), nil)
	return resp.Body(), nil
}
