package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/handlers"
	"zendesk-feedback-monitor/internal/interfaces"
)

type serverFixture struct {
	server  *httptest.Server
	zendesk *httptest.Server
	history interfaces.HistoryStore
	store   interfaces.SnapshotStore
}

// newServerFixture wires the real stack against a fake Zendesk account.
func newServerFixture(t *testing.T, mutate func(*common.Config)) *serverFixture {
	t.Helper()

	zendesk := newZendeskServer(t, map[string]http.HandlerFunc{
		"/api/v2/tickets.json":              writeBody(`{"tickets":[{"id":1,"subject":"Test Ticket","status":"open"}]}`),
		"/api/v2/satisfaction_ratings.json": writeBody(`{"satisfaction_ratings":[{"id":101,"score":"good","comment":"Great service!"}]}`),
		"/api/v2/tickets/1/metrics.json":    writeBody(`{"ticket_metric":{"id":11,"ticket_id":1,"reopens":0}}`),
	})

	cfg := testConfig(t)
	cfg.Zendesk.BaseURL = zendesk.URL
	cfg.Zendesk.Email = "agent@acme.test"
	cfg.Zendesk.APIToken = "token"
	if mutate != nil {
		mutate(cfg)
	}

	logger := testLogger()
	history, err := NewHistoryStorage(&cfg.Storage, logger)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	t.Cleanup(func() { history.Close() })

	client := NewCircuitBreakerClient(NewZendeskClient(&cfg.Zendesk, logger), &cfg.CircuitBreaker, logger)
	store := NewSnapshotStore()
	credentials := NewCredentialSource(cfg)
	hub := handlers.NewWebSocketHub(logger)
	monitor := NewMonitor(cfg, client, store, credentials, history, hub, logger)
	scheduler := NewScheduler(&cfg.Scheduler, func(ctx context.Context) { monitor.Refresh(ctx) }, logger)
	api := handlers.NewAPIHandlers(cfg, monitor, store, scheduler, credentials, history, logger)

	web, err := NewWebServer(cfg, api, hub, logger)
	if err != nil {
		t.Fatalf("NewWebServer() error = %v", err)
	}

	server := httptest.NewServer(web.Handler())
	t.Cleanup(server.Close)

	return &serverFixture{server: server, zendesk: zendesk, history: history, store: store}
}

func (f *serverFixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestWebServerFeedbackRefreshesOnDemand(t *testing.T) {
	f := newServerFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/zendesk-feedback", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var snapshot map[string]interface{}
	if err := json.Unmarshal(body, &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"feedback", "satisfaction_ratings", "ticket_metrics", "last_updated"} {
		if _, ok := snapshot[key]; !ok {
			t.Errorf("snapshot missing %q: %s", key, body)
		}
	}
	metrics, _ := snapshot["ticket_metrics"].(map[string]interface{})
	if _, ok := metrics["1"]; !ok {
		t.Errorf("ticket_metrics keys = %v, want ticket 1", metrics)
	}
	if _, ok := f.store.Load(); !ok {
		t.Error("eager refresh did not publish")
	}
}

func TestWebServerFeedbackWithoutCredentials(t *testing.T) {
	f := newServerFixture(t, func(cfg *common.Config) {
		cfg.Zendesk.Credentials = common.CredentialsTrigger
	})

	resp, body := f.do(t, http.MethodGet, "/zendesk-feedback", "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "{}" {
		t.Errorf("response = %d %s, want 200 {}", resp.StatusCode, body)
	}
}

func TestWebServerTickRelaysToReturnURL(t *testing.T) {
	receiver, telex := newTelexReceiver(t, http.StatusOK)
	f := newServerFixture(t, nil)

	payload := `{"return_url":"` + telex.URL + `","settings":[
		{"label":"zendesk_subdomain","type":"text","required":true,"default":"` + f.zendesk.URL + `"},
		{"label":"zendesk_email","type":"text","required":true,"default":"agent@acme.test"},
		{"label":"zendesk_api_token","type":"text","required":true,"default":"token"}]}`

	resp, body := f.do(t, http.MethodPost, "/tick", payload)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d %s", resp.StatusCode, body)
	}

	waitFor(t, func() bool { return len(receiver.received()) == 1 })
	got := receiver.received()[0]
	if got.Status != "success" || !strings.Contains(got.Message, "Test Ticket") {
		t.Errorf("relay payload = %+v", got)
	}
}

func TestWebServerOperationalRoutes(t *testing.T) {
	f := newServerFixture(t, nil)

	tests := []struct {
		method string
		path   string
		status int
		want   string
	}{
		{http.MethodGet, "/health", http.StatusOK, `"status":"healthy"`},
		{http.MethodGet, "/version", http.StatusOK, `"version"`},
		{http.MethodGet, "/integration.json", http.StatusOK, `"tick_url":"` + f.server.URL + `/tick"`},
		{http.MethodGet, "/history", http.StatusOK, `"success":true`},
		{http.MethodDelete, "/history", http.StatusOK, `"success":true`},
		{http.MethodPost, "/update-interval?minutes=0", http.StatusBadRequest, "minutes must be a positive integer"},
		{http.MethodGet, "/metrics", http.StatusOK, "http_requests_total"},
		{http.MethodGet, "/nope", http.StatusNotFound, ""},
		{http.MethodGet, "/tick", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, "")
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, body)
			}
			if tt.want != "" && !bytes.Contains(body, []byte(tt.want)) {
				t.Errorf("body %s does not contain %s", body, tt.want)
			}
		})
	}
}

func TestWebServerCORSPreflight(t *testing.T) {
	f := newServerFixture(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, f.server.URL+"/tick", nil)
	req.Header.Set("Origin", "https://telex.im")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("preflight missing Access-Control-Allow-Origin")
	}
}

func TestWebServerTickRateLimit(t *testing.T) {
	f := newServerFixture(t, func(cfg *common.Config) {
		cfg.Server.RateLimitRequests = 1
		cfg.Server.RateLimitWindowSeconds = 60
	})

	first, _ := f.do(t, http.MethodPost, "/tick", `{}`)
	if first.StatusCode != http.StatusBadRequest {
		t.Fatalf("first status = %d, want 400", first.StatusCode)
	}
	second, body := f.do(t, http.MethodPost, "/tick", `{}`)
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status = %d %s, want 429", second.StatusCode, body)
	}
}

func TestWebServerServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)
	logger := testLogger()

	store := NewSnapshotStore()
	credentials := NewCredentialSource(cfg)
	hub := handlers.NewWebSocketHub(logger)
	monitor := NewMonitor(cfg, &fakeZendesk{}, store, credentials, nil, hub, logger)
	scheduler := NewScheduler(&cfg.Scheduler, func(context.Context) {}, logger)
	api := handlers.NewAPIHandlers(cfg, monitor, store, scheduler, credentials, nil, logger)

	web, err := NewWebServer(cfg, api, hub, logger)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- web.Serve(ctx) }()

	waitFor(t, func() bool { return web.IsRunning() })
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if web.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestNewWebServerRequiresHandlers(t *testing.T) {
	if _, err := NewWebServer(testConfig(t), nil, nil, testLogger()); err == nil {
		t.Error("expected error without handlers")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}
