package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hray3182/CalBuddy/internal/models"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "session-token", TokenType: "Bearer"})
	return New(srv.URL, tokens, opts...)
}

func TestListEventsSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" || r.Method != http.MethodGet {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer session-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id")
		}
		w.Write([]byte(`[{"_id":"e1","title":"Standup","startDate":"2024-06-15T09:00:00+08:00","endDate":"2024-06-15T09:30:00+08:00","eventType":"meeting","priority":"medium","participants":["Sam"]}]`))
	})

	events, err := c.ListEvents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ID != "e1" || events[0].Participants[0] != "Sam" {
		t.Errorf("events = %+v", events)
	}
	if events[0].EndDate.Sub(events[0].StartDate) != 30*time.Minute {
		t.Errorf("duration = %v", events[0].EndDate.Sub(events[0].StartDate))
	}
}

func TestCreateAndUpdateBodies(t *testing.T) {
	var got map[string]any
	var method, path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &got)
		w.Write([]byte(`{"_id":"e9","title":"Planning"}`))
	})

	draft := models.EventDraft{Title: "Planning", StartDate: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)}
	draft.Normalize()
	e, err := c.CreateEvent(context.Background(), draft)
	if err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPost || path != "/events" || e.ID != "e9" {
		t.Errorf("create = %s %s -> %+v", method, path, e)
	}
	if got["priority"] != "medium" || got["eventType"] != "meeting" || got["title"] != "Planning" {
		t.Errorf("body = %v", got)
	}

	if _, err := c.UpdateEvent(context.Background(), "e 9", draft); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPatch || path != "/events/e 9" {
		t.Errorf("update = %s %s", method, path)
	}
}

func TestDeleteAcceptsEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.DeleteEvent(context.Background(), "e1"); err != nil {
		t.Errorf("delete: %v", err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("server rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"End date must be after start date"}`))
		})
		_, err := c.ListEvents(context.Background())
		if !errors.Is(err, ErrServerRejected) || IsUnauthorized(err) {
			t.Fatalf("err = %v", err)
		}
		if err.Error() != "End date must be after start date" {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		calls := 0
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}, WithUnauthorizedHandler(func() { calls++ }))
		err := c.DeleteEvent(context.Background(), "e1")
		if !IsUnauthorized(err) {
			t.Fatalf("err = %v", err)
		}
		var apiErr *Error
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
			t.Errorf("error = %#v", err)
		}
		if calls != 1 {
			t.Errorf("handler calls = %d", calls)
		}
	})

	t.Run("network", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := New(url, nil, WithTimeout(time.Second))
		if _, err := c.ListEvents(context.Background()); !errors.Is(err, ErrNetwork) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("token source failure", func(t *testing.T) {
		calls := 0
		c := New("http://127.0.0.1:1", failingSource{}, WithUnauthorizedHandler(func() { calls++ }))
		if _, err := c.ListEvents(context.Background()); !IsUnauthorized(err) {
			t.Errorf("err = %v", err)
		}
		if calls != 1 {
			t.Errorf("handler calls = %d, want 1", calls)
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("this is not json"))
		})
		_, err := c.Interpret(context.Background(), "lunch tomorrow")
		if !errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrServerRejected) {
			t.Errorf("err = %v", err)
		}
	})
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, errors.New("signed out") }

func TestAccountAndAssistantEndpoints(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		switch r.URL.Path {
		case "/subscriptions/status":
			w.Write([]byte(`{}`))
		case "/subscriptions/create-checkout-session":
			w.Write([]byte(`{"url":"https://pay.example.com/c/1"}`))
		case "/ai/query":
			w.Write([]byte(`{"success":true,"type":"EVENT_CREATION","message":"Pick a time","eventDetails":{"title":"Gym","suggestedTimeSlots":[{"startTime":"7:00 AM","endTime":"8:00 AM","date":"2024-6-17"}]}}`))
		case "/users/check-or-create":
			w.Write([]byte(`{"_id":"u1","clerkId":"user_1"}`))
		default:
			w.Write([]byte(`{"success":true}`))
		}
	})
	ctx := context.Background()

	sub, err := c.SubscriptionStatus(ctx)
	if err != nil || sub.Status != models.SubscriptionFree {
		t.Errorf("status = %+v, %v", sub, err)
	}
	session, err := c.CreateCheckoutSession(ctx, "price_pro", "pro")
	if err != nil || session.URL != "https://pay.example.com/c/1" {
		t.Errorf("checkout = %+v, %v", session, err)
	}
	resp, err := c.Interpret(ctx, "gym on monday")
	if err != nil || resp.Type != models.QueryEventCreation || len(resp.EventDetails.SuggestedTimeSlots) != 1 {
		t.Errorf("interpret = %+v, %v", resp, err)
	}
	if _, err := c.CheckOrCreateUser(ctx, models.UserProfile{ClerkID: "user_1", Email: "a@b.c"}); err != nil {
		t.Error(err)
	}
	if err := c.GenerateEmbeddings(ctx); err != nil {
		t.Error(err)
	}
	if err := c.GenerateEventEmbedding(ctx, "e1"); err != nil {
		t.Error(err)
	}

	want := []string{
		"GET /subscriptions/status",
		"POST /subscriptions/create-checkout-session",
		"POST /ai/query",
		"POST /users/check-or-create",
		"POST /rag/generate-embeddings",
		"POST /rag/generate-embedding/e1",
	}
	for i, p := range want {
		if i >= len(paths) || paths[i] != p {
			t.Fatalf("calls = %v, want %v", paths, want)
		}
	}
	if bodies[1]["priceId"] != "price_pro" || bodies[1]["plan"] != "pro" {
		t.Errorf("checkout body = %v", bodies[1])
	}
	if bodies[2]["message"] != "gym on monday" {
		t.Errorf("query body = %v", bodies[2])
	}
	if bodies[3]["clerkId"] != "user_1" {
		t.Errorf("user body = %v", bodies[3])
	}
}
