package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/ternarybob/arbor"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/metrics"
	"zendesk-feedback-monitor/internal/models"
)

var _ interfaces.ZendeskClient = (*circuitBreakerClient)(nil)

const defaultMaxAccounts = 64

// circuitBreakerClient wraps a ZendeskClient with one breaker per Zendesk
// account, so an unreachable tenant cannot block calls for another. Base URLs
// arrive on unauthenticated ticks, so only the most recently used
// max_accounts breakers are kept.
type circuitBreakerClient struct {
	inner    interfaces.ZendeskClient
	config   *common.CircuitBreakerConfig
	logger   arbor.ILogger
	mu       sync.Mutex
	breakers *lru.Cache[string, *gobreaker.CircuitBreaker[interface{}]]
}

// NewCircuitBreakerClient returns inner guarded by circuit breakers. Only
// transport failures and 5xx responses count towards tripping; 4xx means the
// account is reachable but the request was refused.
func NewCircuitBreakerClient(inner interfaces.ZendeskClient, config *common.CircuitBreakerConfig, logger arbor.ILogger) interfaces.ZendeskClient {
	size := config.MaxAccounts
	if size <= 0 {
		size = defaultMaxAccounts
	}

	c := &circuitBreakerClient{
		inner:  inner,
		config: config,
		logger: logger,
	}
	// NewWithEvict only fails for a non-positive size.
	c.breakers, _ = lru.NewWithEvict(size, c.evicted)
	return c
}

func (c *circuitBreakerClient) ListTickets(ctx context.Context, creds models.Credentials) ([]models.Ticket, error) {
	result, err := c.execute(creds.BaseURL, func() (interface{}, error) {
		return c.inner.ListTickets(ctx, creds)
	})
	if err != nil {
		return nil, err
	}
	tickets, _ := result.([]models.Ticket)
	return tickets, nil
}

func (c *circuitBreakerClient) ListSatisfactionRatings(ctx context.Context, creds models.Credentials) ([]models.SatisfactionRating, error) {
	result, err := c.execute(creds.BaseURL, func() (interface{}, error) {
		return c.inner.ListSatisfactionRatings(ctx, creds)
	})
	if err != nil {
		return nil, err
	}
	ratings, _ := result.([]models.SatisfactionRating)
	return ratings, nil
}

func (c *circuitBreakerClient) GetTicketMetrics(ctx context.Context, creds models.Credentials, ticketID int64) (models.TicketMetric, error) {
	result, err := c.execute(creds.BaseURL, func() (interface{}, error) {
		return c.inner.GetTicketMetrics(ctx, creds, ticketID)
	})
	if err != nil {
		return nil, err
	}
	metric, _ := result.(models.TicketMetric)
	return metric, nil
}

func (c *circuitBreakerClient) execute(baseURL string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.breaker(baseURL).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn().Str("zendesk", baseURL).Msg("Zendesk request rejected by circuit breaker")
		return nil, common.NewNetworkError("CIRCUIT_OPEN", "Zendesk API temporarily unavailable").
			WithCause(err).
			WithContext("base_url", baseURL)
	}
	return result, err
}

func (c *circuitBreakerClient) breaker(baseURL string) *gobreaker.CircuitBreaker[interface{}] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers.Get(baseURL); ok {
		return cb
	}

	name := breakerName(baseURL)
	maxFailures := uint32(c.config.MaxFailures)
	if maxFailures == 0 {
		maxFailures = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	var cb *gobreaker.CircuitBreaker[interface{}]
	cb = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     time.Duration(c.config.OpenTimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return !isBreakerFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			if current, ok := c.breakers.Peek(baseURL); !ok || current != cb {
				return
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	c.breakers.Add(baseURL, cb)
	return cb
}

// evicted drops the metric series of a breaker pushed out of the cache.
func (c *circuitBreakerClient) evicted(baseURL string, _ *gobreaker.CircuitBreaker[interface{}]) {
	name := breakerName(baseURL)
	metrics.CircuitBreakerState.DeleteLabelValues(name)
	metrics.CircuitBreakerTransitions.DeletePartialMatch(prometheus.Labels{"name": name})
	c.logger.Debug().Str("zendesk", baseURL).Msg("Circuit breaker evicted")
}

func breakerName(baseURL string) string {
	return "zendesk:" + baseURL
}

// isBreakerFailure reports whether err says the Zendesk account is unhealthy.
func isBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if common.IsErrorType(err, common.ErrorTypeNetwork) {
		return true
	}
	return common.StatusCodeOf(err) >= http.StatusInternalServerError
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
