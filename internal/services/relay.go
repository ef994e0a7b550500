package services

import (
	"context"
	"fmt"
	"strings"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/metrics"
	"zendesk-feedback-monitor/internal/models"
)

const (
	relayStatusSuccess = "success"
	relayStatusError   = "error"
)

// RelayFeedback fetches tickets and ratings with the tick's credentials and
// posts them to returnURL exactly once. The cached snapshot is not used.
func (m *monitor) RelayFeedback(ctx context.Context, returnURL string, creds models.Credentials) error {
	started := m.now()
	record := m.newRunRecord(models.RunKindRelay, returnURL, started)

	if strings.TrimSpace(returnURL) == "" {
		err := common.NewValidationError("MISSING_RETURN_URL", "Missing return_url")
		m.finishRun(record, err)
		return err
	}

	tickets, ticketsErr := m.client.ListTickets(ctx, creds)
	if ticketsErr != nil {
		m.logger.Warn().Err(ticketsErr).Str("zendesk", creds.BaseURL).Msg("Relay could not list tickets")
	}
	ratings, ratingsErr := m.client.ListSatisfactionRatings(ctx, creds)
	if ratingsErr != nil {
		m.logger.Warn().Err(ratingsErr).Str("zendesk", creds.BaseURL).Msg("Relay could not list satisfaction ratings")
	}

	payload := m.buildRelayPayload(tickets, ticketsErr, ratings, ratingsErr)
	record.TicketCount = len(tickets)
	record.RatingCount = len(ratings)

	err := m.postRelay(ctx, returnURL, payload)
	metrics.RecordRelay(err)
	m.finishRun(record, err)

	if err != nil {
		m.logger.Error().Err(err).Str("return_url", returnURL).Msg("Failed to deliver feedback to Telex")
		m.broadcast(EventRelayFailed, map[string]interface{}{
			"return_url": returnURL,
			"error":      common.ErrorMessage(err),
		})
		return err
	}

	m.logger.Info().
		Str("return_url", returnURL).
		Str("status", payload.Status).
		Int("tickets", len(tickets)).
		Int("ratings", len(ratings)).
		Dur("duration", record.Duration()).
		Msg("Feedback delivered to Telex")
	m.broadcast(EventRelaySent, map[string]interface{}{
		"return_url": returnURL,
		"status":     payload.Status,
	})
	return nil
}

func (m *monitor) postRelay(ctx context.Context, returnURL string, payload models.RelayPayload) error {
	resp, err := m.relayClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(returnURL)
	if err != nil {
		return common.WrapError(err, common.ErrorTypeRelay, "POST_FAILED", "Failed to post feedback to return URL")
	}
	if !resp.IsSuccess() {
		return common.NewRelayError("HTTP_STATUS", fmt.Sprintf("Return URL responded with status %d", resp.StatusCode())).
			WithStatus(resp.StatusCode())
	}
	return nil
}

func (m *monitor) buildRelayPayload(tickets []models.Ticket, ticketsErr error, ratings []models.SatisfactionRating, ratingsErr error) models.RelayPayload {
	status := relayStatusSuccess
	if ticketsErr != nil || ratingsErr != nil {
		status = relayStatusError
	}

	eventName := m.config.Relay.EventName
	if eventName == "" {
		eventName = "Zendesk feedback"
	}

	return models.RelayPayload{
		EventName: eventName,
		Message:   renderFeedbackMessage(tickets, ticketsErr, ratings, ratingsErr),
		Status:    status,
		Username:  m.config.Relay.Username,
	}
}

// renderFeedbackMessage formats tickets and ratings as the Telex message text.
func renderFeedbackMessage(tickets []models.Ticket, ticketsErr error, ratings []models.SatisfactionRating, ratingsErr error) string {
	var b strings.Builder

	if ticketsErr != nil {
		fmt.Fprintf(&b, "Tickets: error: %s\n", common.ErrorMessage(ticketsErr))
	} else {
		fmt.Fprintf(&b, "Tickets (%d):\n", len(tickets))
		if len(tickets) == 0 {
			b.WriteString("- none\n")
		}
		for _, ticket := range tickets {
			fmt.Fprintf(&b, "- #%d [%s] %s\n", ticket.ID, ticket.Status, ticket.Subject)
		}
	}

	if ratingsErr != nil {
		fmt.Fprintf(&b, "Satisfaction ratings: error: %s", common.ErrorMessage(ratingsErr))
	} else {
		fmt.Fprintf(&b, "Satisfaction ratings (%d):", len(ratings))
		if len(ratings) == 0 {
			b.WriteString("\n- none")
		}
		for _, rating := range ratings {
			fmt.Fprintf(&b, "\n- #%d %s: %s", rating.ID, rating.ScoreOrDefault(), rating.Comment)
		}
	}

	return b.String()
}
