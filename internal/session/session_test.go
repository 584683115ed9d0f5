package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hray3182/CalBuddy/internal/api"
	"github.com/hray3182/CalBuddy/internal/auth"
	"github.com/hray3182/CalBuddy/internal/models"
	"github.com/hray3182/CalBuddy/internal/query"
)

func token(t *testing.T, sub string) string {
	t.Helper()
	return tokenFor(t, sub, time.Hour)
}

func tokenFor(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl))}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unused"))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

type backend struct {
	mu           sync.Mutex
	unauthorized bool
	queryBody    string
	events       []models.Event
	synced       []string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unauthorized {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.Method + " " + r.URL.Path {
	case "POST /users/check-or-create":
		var p models.UserProfile
		json.NewDecoder(r.Body).Decode(&p)
		b.synced = append(b.synced, p.ClerkID)
		json.NewEncoder(w).Encode(map[string]string{"_id": "u1", "clerkId": p.ClerkID})
	case "GET /events":
		json.NewEncoder(w).Encode(b.events)
	case "POST /events":
		var d models.EventDraft
		json.NewDecoder(r.Body).Decode(&d)
		e := models.Event{ID: "srv-1", Title: d.Title, StartDate: d.StartDate, EndDate: d.EndDate,
			EventType: d.EventType, Priority: d.Priority, Participants: d.Participants}
		b.events = append(b.events, e)
		json.NewEncoder(w).Encode(e)
	case "POST /ai/query":
		if b.queryBody != "" {
			w.Write([]byte(b.queryBody))
			return
		}
		w.Write([]byte(`{"success":true,"type":"EVENT_CREATION","message":"When works?","eventDetails":{"title":"Standup","suggestedTimeSlots":[{"startTime":"9:00 AM","endTime":"9:30 AM","date":"2030-1-2"}]}}`))
	default:
		w.Write([]byte(`{}`))
	}
}

type memTokens struct {
	mu    sync.Mutex
	saved map[int64]*models.ChatSession
}

func (m *memTokens) Save(ctx context.Context, s *models.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.saved[s.TelegramID] = &c
	return nil
}

func (m *memTokens) Get(ctx context.Context, id int64) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.saved[id]; ok {
		return s, nil
	}
	return nil, errors.New("not found")
}

func (m *memTokens) ListActive(ctx context.Context, now time.Time) ([]*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatSession
	for _, s := range m.saved {
		out = append(out, s)
	}
	return out, nil
}

func (m *memTokens) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	return nil
}

func (m *memTokens) has(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.saved[id]
	return ok
}

func setup(t *testing.T) (*Registry, *backend, *memTokens, *[]int64) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	tokens := &memTokens{saved: make(map[int64]*models.ChatSession)}
	var mu sync.Mutex
	invalidated := &[]int64{}
	reg := NewRegistry(Deps{
		BaseURL:  srv.URL,
		Location: time.UTC,
		Tokens:   tokens,
		Invalidated: func(id int64) {
			mu.Lock()
			defer mu.Unlock()
			*invalidated = append(*invalidated, id)
		},
	})
	return reg, b, tokens, invalidated
}

func TestSignInCreateAndInvalidate(t *testing.T) {
	reg, b, tokens, invalidated := setup(t)
	ctx := context.Background()
	s := reg.Get(42)
	if reg.Get(42) != s {
		t.Fatal("registry returned a second session for the same user")
	}

	id, res, err := s.SignIn(ctx, token(t, "user_1"))
	if err != nil || res.Err != nil {
		t.Fatalf("SignIn = %v, %v", err, res.Err)
	}
	if id.UserID != "user_1" {
		t.Errorf("identity = %+v", id)
	}
	b.mu.Lock()
	synced := append([]string(nil), b.synced...)
	b.mu.Unlock()
	if len(synced) != 1 || synced[0] != "user_1" {
		t.Errorf("user sync = %v", synced)
	}
	if !tokens.has(42) {
		t.Error("token not persisted")
	}

	reply := s.Chat.Submit(ctx, "standup on jan 2nd")
	if len(reply.Slots) != 1 {
		t.Fatalf("reply = %+v", reply)
	}
	if _, err := s.Chat.AcceptSlot(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if e, ok := s.Store.Event("srv-1"); !ok || e.Title != "Standup" {
		t.Errorf("created event = %+v, %v", e, ok)
	}
	if bucket := s.Store.Day(models.DateKey{Year: 2030, Month: time.January, Day: 2}); bucket == nil || bucket.Count != 1 {
		t.Errorf("calendar bucket = %+v", bucket)
	}

	b.mu.Lock()
	b.unauthorized = true
	b.mu.Unlock()

	res = s.Store.Delete(ctx, "srv-1")
	if res.Err == nil {
		t.Fatal("expected 401")
	}
	if s.Gate.State() != auth.SignedOut {
		t.Error("gate still signed in")
	}
	if len(*invalidated) != 1 || (*invalidated)[0] != 42 {
		t.Errorf("invalidated = %v", *invalidated)
	}
	if tokens.has(42) {
		t.Error("token kept after invalidation")
	}
	if _, ok := s.Store.Event("srv-1"); !ok {
		t.Error("401 removed the event from the store")
	}
}

func TestExpiredTokenInvalidatesOnChat(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the token to expire")
	}
	reg, _, tokens, invalidated := setup(t)
	ctx := context.Background()
	s := reg.Get(9)

	// Tokens are refused ten seconds before their expiry
	if _, res, err := s.SignIn(ctx, tokenFor(t, "user_9", 12*time.Second)); err != nil || res.Err != nil {
		t.Fatalf("SignIn = %v, %v", err, res.Err)
	}
	time.Sleep(3 * time.Second)

	reply := s.Chat.Submit(ctx, "lunch tomorrow")
	if !api.IsUnauthorized(reply.Err) {
		t.Fatalf("err = %v, want unauthorized", reply.Err)
	}
	if s.Gate.State() != auth.SignedOut {
		t.Error("gate still signed in")
	}
	if len(*invalidated) != 1 || (*invalidated)[0] != 9 {
		t.Errorf("invalidated = %v", *invalidated)
	}
	if tokens.has(9) {
		t.Error("token kept after expiry")
	}
}

func TestUndecodableQueryAnswerIsNotUnderstood(t *testing.T) {
	reg, b, _, invalidated := setup(t)
	b.queryBody = "this is not json"
	ctx := context.Background()
	s := reg.Get(11)
	if _, _, err := s.SignIn(ctx, token(t, "user_11")); err != nil {
		t.Fatal(err)
	}

	reply := s.Chat.Submit(ctx, "lunch tomorrow")
	if !errors.Is(reply.Err, query.ErrParse) {
		t.Errorf("err = %v, want ErrParse", reply.Err)
	}
	if !strings.Contains(reply.Message.Text, "couldn't understand") {
		t.Errorf("reply = %q", reply.Message.Text)
	}
	if s.Gate.State() != auth.SignedIn || len(*invalidated) != 0 {
		t.Error("parse failure ended the session")
	}
}

func TestSignOutResetsStore(t *testing.T) {
	reg, b, tokens, _ := setup(t)
	b.events = []models.Event{{ID: "a", Title: "A", StartDate: time.Now(), EndDate: time.Now().Add(time.Hour)}}
	ctx := context.Background()
	s := reg.Get(7)
	if _, _, err := s.SignIn(ctx, token(t, "user_7")); err != nil {
		t.Fatal(err)
	}
	if len(s.Store.Items()) != 1 {
		t.Fatalf("items = %d", len(s.Store.Items()))
	}

	s.SignOut(ctx)
	if len(s.Store.Items()) != 0 || len(s.Store.CalendarData()) != 0 {
		t.Error("store not reset")
	}
	if tokens.has(7) {
		t.Error("token kept after sign out")
	}
}

func TestRestore(t *testing.T) {
	reg, _, tokens, _ := setup(t)
	ctx := context.Background()
	tokens.Save(ctx, &models.ChatSession{TelegramID: 1, Token: token(t, "user_a")})
	tokens.Save(ctx, &models.ChatSession{TelegramID: 2, Token: "garbage"})

	n, err := reg.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("restored = %d, want 1", n)
	}
	if s, ok := reg.Lookup(1); !ok || s.Gate.State() != auth.SignedIn {
		t.Error("valid session not restored")
	}
	if tokens.has(2) {
		t.Error("rejected token not removed")
	}
	if all := reg.All(); len(all) != 2 || all[0].TelegramID != 1 {
		t.Errorf("all = %d sessions", len(all))
	}
}

func TestGateLedgerFollowsSignedInUser(t *testing.T) {
	ledgers := map[string]*query.MemoryLedger{
		"user_a": query.NewMemoryLedger(),
		"user_b": query.NewMemoryLedger(),
	}
	g := auth.NewGate(nil, auth.Hooks{})
	l := &gateLedger{gate: g, ledgers: func(id string) query.EmbeddingLedger { return ledgers[id] }}
	ctx := context.Background()

	if err := l.MarkSeen(ctx, "k"); !errors.Is(err, auth.ErrSignedOut) {
		t.Errorf("signed out err = %v", err)
	}

	g.SignIn(ctx, token(t, "user_a"))
	if err := l.MarkSeen(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	g.SignIn(ctx, token(t, "user_b"))
	if seen, _ := l.Seen(ctx, "k"); seen {
		t.Error("ledger shared between users")
	}
	if seen, _ := ledgers["user_a"].Seen(ctx, "k"); !seen {
		t.Error("mark not recorded for user_a")
	}
}
