package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/ternarybob/arbor"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/models"
)

const (
	appName        = "Zendesk Feedback Monitor"
	appDescription = "Fetches and displays user feedback from Zendesk"
	appLogo        = "https://i.imgur.com/lzyyfp.png"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// Telex tick payloads are a few settings; anything larger is rejected.
	maxTickBodyBytes = 64 << 10
)

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config      *common.Config
	monitor     interfaces.Monitor
	store       interfaces.SnapshotStore
	scheduler   interfaces.Scheduler
	credentials interfaces.CredentialSource
	history     interfaces.HistoryStore
	logger      arbor.ILogger
	validate    *validator.Validate
	startTime   time.Time

	// background runs work that must outlive the request
	background func(fn func())
	relays     sync.WaitGroup
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	Version     string     `json:"version"`
	Build       string     `json:"build"`
	Uptime      float64    `json:"uptime_seconds"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Services    struct {
		Snapshot bool `json:"snapshot"`
		History  bool `json:"history"`
	} `json:"services"`
}

// VersionResponse represents server version information
type VersionResponse struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// HistoryResponse represents run history operation responses
type HistoryResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Runs    []*models.RunRecord `json:"runs,omitempty"`
	Count   int                 `json:"count"`
}

// NewAPIHandlers creates a new API handlers instance. history may be nil.
func NewAPIHandlers(
	config *common.Config,
	monitor interfaces.Monitor,
	store interfaces.SnapshotStore,
	scheduler interfaces.Scheduler,
	credentials interfaces.CredentialSource,
	history interfaces.HistoryStore,
	logger arbor.ILogger,
) *APIHandlers {
	h := &APIHandlers{
		config:      config,
		monitor:     monitor,
		store:       store,
		scheduler:   scheduler,
		credentials: credentials,
		history:     history,
		logger:      logger,
		validate:    validator.New(),
		startTime:   time.Now(),
	}
	h.background = h.track
	return h
}

// track runs fn in its own goroutine and counts it until it returns
func (h *APIHandlers) track(fn func()) {
	h.relays.Add(1)
	go func() {
		defer h.relays.Done()
		fn()
	}()
}

// WaitForRelays blocks until every relay started by an accepted tick has
// finished, or timeout passes. It reports whether all of them finished.
func (h *APIHandlers) WaitForRelays(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		h.relays.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// FeedbackHandler returns the live snapshot. With no snapshot yet it runs
// one refresh first and answers {} when that is impossible.
func (h *APIHandlers) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.store.Load()
	if !ok {
		refreshed, err := h.monitor.Refresh(context.WithoutCancel(r.Context()))
		if err != nil {
			h.logger.Warn().Err(err).Msg("No feedback snapshot available")
			h.writeJSON(w, http.StatusOK, map[string]interface{}{})
			return
		}
		snapshot = refreshed
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

// IntegrationHandler serves the Telex integration descriptor
func (h *APIHandlers) IntegrationHandler(w http.ResponseWriter, r *http.Request) {
	base := h.publicBaseURL(r)
	today := time.Now().UTC().Format("2006-01-02")

	descriptor := models.IntegrationDescriptor{
		Data: models.IntegrationData{
			Date: models.IntegrationDate{
				CreatedAt: today,
				UpdatedAt: today,
			},
			Descriptions: models.IntegrationDescriptions{
				AppName:         appName,
				AppDescription:  appDescription,
				AppURL:          base,
				AppLogo:         appLogo,
				BackgroundColor: "#fff",
			},
			IntegrationCategory: "Monitoring & Logging",
			IntegrationType:     "interval",
			IsActive:            true,
			KeyFeatures: []string{
				"Fetches recent Zendesk tickets",
				"Collects customer satisfaction ratings",
				"Reports per-ticket metrics",
				"Posts feedback summaries to a Telex channel",
			},
			Author:  appName,
			Website: base,
			Settings: []models.Setting{
				{Label: models.SettingSubdomain, Type: "text", Required: true, Default: ""},
				{Label: models.SettingEmail, Type: "text", Required: true, Default: ""},
				{Label: models.SettingAPIToken, Type: "text", Required: true, Default: ""},
				{Label: models.SettingInterval, Type: "text", Required: true, Default: intervalExpression(h.scheduler.Interval())},
			},
			TickURL: base + "/tick",
		},
	}

	h.writeJSON(w, http.StatusOK, descriptor)
}

// TickHandler accepts a Telex trigger and relays feedback after responding
func (h *APIHandlers) TickHandler(w http.ResponseWriter, r *http.Request) {
	var request models.TickRequest
	body := http.MaxBytesReader(w, r.Body, maxTickBodyBytes)
	if err := json.NewDecoder(body).Decode(&request); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to decode tick payload")
		h.writeError(w, http.StatusBadRequest, "Invalid payload format")
		return
	}

	creds := request.Credentials()
	if err := h.validate.Struct(creds); err != nil {
		h.logger.Warn().Str("channel_id", request.ChannelID).Msg("Tick rejected, Zendesk credentials incomplete")
		h.writeError(w, http.StatusBadRequest, "Missing Zendesk credentials")
		return
	}

	returnURL := strings.TrimSpace(request.ReturnURL)
	if returnURL == "" {
		h.writeError(w, http.StatusBadRequest, "Missing return_url")
		return
	}

	h.credentials.Remember(creds)

	h.logger.Info().
		Str("channel_id", request.ChannelID).
		Str("zendesk", creds.BaseURL).
		Msg("Tick accepted, relaying feedback")

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})

	h.background(func() {
		if err := h.monitor.RelayFeedback(context.Background(), returnURL, creds); err != nil {
			h.logger.Debug().Err(err).Str("return_url", returnURL).Msg("Relay finished with error")
		}
	})
}

// UpdateIntervalHandler changes the refresh period and refreshes once now
func (h *APIHandlers) UpdateIntervalHandler(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("minutes")))
	if err != nil || minutes <= 0 {
		h.writeError(w, http.StatusBadRequest, "minutes must be a positive integer")
		return
	}

	if err := h.scheduler.SetInterval(time.Duration(minutes) * time.Minute); err != nil {
		h.writeError(w, http.StatusBadRequest, common.ErrorMessage(err))
		return
	}
	h.scheduler.TriggerRefresh()

	h.logger.Info().Int("minutes", minutes).Msg("Fetch interval updated")

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Fetch interval updated to %d minutes.", minutes),
	})
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	if snapshot, ok := h.store.Load(); ok {
		health.Services.Snapshot = true
		lastUpdated := snapshot.LastUpdated
		health.LastUpdated = &lastUpdated
	}

	health.Services.History = h.testHistoryStore()
	if h.history != nil && !health.Services.History {
		health.Status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, health)
}

// VersionHandler returns version information
func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, VersionResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Commit:  common.GetGitCommit(),
	})
}

// HistoryHandler lists (GET) or clears (DELETE) refresh and relay runs
func (h *APIHandlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, HistoryResponse{
			Success: false,
			Message: "Run history is not available",
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleListHistory(w, r)
	case http.MethodDelete:
		h.handleClearHistory(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandlers) handleListHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	kind := query.Get("kind")
	if kind != "" && kind != models.RunKindRefresh && kind != models.RunKindRelay {
		h.writeError(w, http.StatusBadRequest, "kind must be refresh or relay")
		return
	}

	limit := defaultHistoryLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	runs, err := h.history.ListRuns(kind, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load run history")
		h.writeJSON(w, http.StatusInternalServerError, HistoryResponse{
			Success: false,
			Message: "Failed to load run history",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{
		Success: true,
		Runs:    runs,
		Count:   len(runs),
	})
}

func (h *APIHandlers) handleClearHistory(w http.ResponseWriter) {
	h.logger.Info().Msg("Clearing run history")

	if err := h.history.ClearRuns(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear run history")
		h.writeJSON(w, http.StatusInternalServerError, HistoryResponse{
			Success: false,
			Message: "Failed to clear run history",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{
		Success: true,
		Message: "Run history cleared",
	})
}

func (h *APIHandlers) testHistoryStore() bool {
	if h.history == nil {
		return false
	}
	_, err := h.history.ListRuns("", 1)
	return err == nil
}

// publicBaseURL is the externally visible origin used in the descriptor
func (h *APIHandlers) publicBaseURL(r *http.Request) string {
	if h.config.Server.PublicURL != "" {
		return strings.TrimRight(h.config.Server.PublicURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return scheme + "://" + r.Host
}

// intervalExpression renders a refresh period as the Telex interval setting
func intervalExpression(interval time.Duration) string {
	minutes := int(interval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if minutes >= 60 {
		return fmt.Sprintf("@every %dm", minutes)
	}
	return fmt.Sprintf("*/%d * * * *", minutes)
}

func (h *APIHandlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
