package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/models"
)

func newZendeskServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "agent@acme.test/token" || pass != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if handler, ok := routes[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func newTestClient(t *testing.T) *zendeskClient {
	t.Helper()
	return NewZendeskClient(&testConfig(t).Zendesk, testLogger()).(*zendeskClient)
}

func TestListTicketsProjectsFields(t *testing.T) {
	server := newZendeskServer(t, map[string]http.HandlerFunc{
		"/api/v2/tickets.json": writeBody(`{"tickets":[
			{"id":1,"subject":"Test Ticket","status":"open","priority":"high","description":"ignored"},
			{"id":2,"subject":"Login broken","status":"solved"}]}`),
	})

	tickets, err := newTestClient(t).ListTickets(context.Background(), testCredentials(server.URL))
	if err != nil {
		t.Fatalf("ListTickets() error = %v", err)
	}

	want := []models.Ticket{
		{ID: 1, Subject: "Test Ticket", Status: "open"},
		{ID: 2, Subject: "Login broken", Status: "solved"},
	}
	if len(tickets) != len(want) {
		t.Fatalf("got %d tickets, want %d", len(tickets), len(want))
	}
	for i := range want {
		if tickets[i] != want[i] {
			t.Errorf("ticket[%d] = %+v, want %+v", i, tickets[i], want[i])
		}
	}
}

func TestListTicketsEmpty(t *testing.T) {
	server := newZendeskServer(t, map[string]http.HandlerFunc{
		"/api/v2/tickets.json": writeBody(`{"tickets":[]}`),
	})

	tickets, err := newTestClient(t).ListTickets(context.Background(), testCredentials(server.URL))
	if err != nil {
		t.Fatalf("ListTickets() error = %v", err)
	}
	if tickets == nil || len(tickets) != 0 {
		t.Errorf("tickets = %#v, want empty non-nil slice", tickets)
	}
}

func TestListTicketsNonOKStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := newZendeskServer(t, map[string]http.HandlerFunc{
				"/api/v2/tickets.json": func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(status)
				},
			})

			_, err := newTestClient(t).ListTickets(context.Background(), testCredentials(server.URL))
			if err == nil {
				t.Fatal("expected error")
			}
			if !common.IsErrorType(err, common.ErrorTypeUpstream) {
				t.Errorf("error type = %v, want upstream", err)
			}
			if got := common.StatusCodeOf(err); got != status {
				t.Errorf("status = %d, want %d", got, status)
			}
			wantMsg := "Failed to fetch tickets. Status: " + strconv.Itoa(status)
			if got := common.ErrorMessage(err); got != wantMsg {
				t.Errorf("message = %q, want %q", got, wantMsg)
			}
		})
	}
}

func TestListTicketsRejectsWrongCredentials(t *testing.T) {
	server := newZendeskServer(t, map[string]http.HandlerFunc{
		"/api/v2/tickets.json": writeBody(`{"tickets":[]}`),
	})

	creds := testCredentials(server.URL)
	creds.APIToken = "wrong"

	_, err := newTestClient(t).ListTickets(context.Background(), creds)
	if got := common.StatusCodeOf(err); got != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", got)
	}
}

func TestListTicketsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	_, err := newTestClient(t).ListTickets(context.Background(), testCredentials(baseURL))
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if !common.IsErrorType(err, common.ErrorTypeNetwork) {
		t.Errorf("error = %v, want network type", err)
	}
	var me *common.MonitorError
	if !errors.As(err, &me) || me.Code != "REQUEST_FAILED" || me.Message != "Failed to fetch tickets" {
		t.Errorf("error = %+v, want REQUEST_FAILED", me)
	}
	if errors.Unwrap(err) == nil {
		t.Error("transport error dropped its cause")
	}
}

func TestListTicketsMalformedBody(t *testing.T) {
	server := newZendeskServer(t, map[string]http.HandlerFunc{
		"/api/v2/tickets.json": writeBody(`{"tickets": [`),
	})

	_, err := newTestClient(t).ListTickets(context.Background(), testCredentials(server.URL))
	if err == nil || !strings.Contains(err.Error(), "DECODE") {
		t.Fatalf("error = %v, want DECODE", err)
	}
}

func TestListSatisfactionRatings(t *testing.T) {
	server := newZendeskServer(t, map[string]http.HandlerFunc{
		"/api/v2/satisfaction_ratings.json": writeBody(`{"satisfaction_ratings":[
			{"id":101,"score":"good","comment":"Great service!"},
			{"id":102,"score":"bad","comment":null},
			{"id":103,"score":"offered"},
			{"id":104,"score":null,"comment":""}]}`),
	})

	ratings, err := newTestClient(t).ListSatisfactionRatings(context.Background(), testCredentials(server.URL))
	if err != nil {
		t.Fatalf("ListSatisfactionRatings() error = %v", err)
	}
	if len(ratings) != 4 {
		t.Fatalf("got %d ratings, want 4", len(ratings))
	}

	checks := []struct {
		id      int64
		score   string
		comment string
	}{
		{101, "good", "Great service!"},
		{102, "bad", models.NoCommentPlaceholder},
		{103, "offered", models.NoCommentPlaceholder},
		{104, "unrated", ""},
	}
	for i, want := range checks {
		got := ratings[i]
		if got.ID != want.id || got.ScoreOrDefault() != want.score || got.Comment != want.comment {
			t.Errorf("rating[%d] = {%d %s %q}, want {%d %s %q}", i, got.ID, got.ScoreOrDefault(), got.Comment, want.id, want.score, want.comment)
		}
	}
	if ratings[3].Score != nil {
		t.Error("null score should stay nil")
	}
}

func TestListSatisfactionRatingsNonOKStatus(t *testing.T) {
	server := newZendeskServer(t, map[string]http.HandlerFunc{
		"/api/v2/satisfaction_ratings.json": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
	})

	_, err := newTestClient(t).ListSatisfactionRatings(context.Background(), testCredentials(server.URL))
	if got := common.ErrorMessage(err); got != "Failed to fetch ratings. Status: 403" {
		t.Errorf("message = %q", got)
	}
}

func TestGetTicketMetrics(t *testing.T) {
	server := newZendeskServer(t, map[string]http.HandlerFunc{
		"/api/v2/tickets/42/metrics.json": writeBody(`{"ticket_metric":{
			"id":9001,"ticket_id":42,"reopens":1,
			"reply_time_in_minutes":{"calendar":35,"business":12}}}`),
	})

	metric, err := newTestClient(t).GetTicketMetrics(context.Background(), testCredentials(server.URL), 42)
	if err != nil {
		t.Fatalf("GetTicketMetrics() error = %v", err)
	}

	if id, ok := metric.TicketID(); !ok || id != 42 {
		t.Errorf("TicketID() = %d, %v", id, ok)
	}
	if _, ok := metric["reply_time_in_minutes"].(map[string]interface{}); !ok {
		t.Errorf("nested metric object lost: %#v", metric["reply_time_in_minutes"])
	}

	// the object round-trips unchanged
	encoded, err := json.Marshal(metric)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(encoded), `"reopens":1`) {
		t.Errorf("encoded metric = %s", encoded)
	}
}

func TestGetTicketMetricsNotFound(t *testing.T) {
	server := newZendeskServer(t, nil)

	_, err := newTestClient(t).GetTicketMetrics(context.Background(), testCredentials(server.URL), 7)
	if got := common.ErrorMessage(err); got != "Failed to fetch metrics for ticket 7. Status: 404" {
		t.Errorf("message = %q", got)
	}
}

func TestClientRequiresBaseURL(t *testing.T) {
	_, err := newTestClient(t).ListTickets(context.Background(), models.Credentials{Email: "a", APIToken: "b"})
	if !common.IsErrorType(err, common.ErrorTypeValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}
