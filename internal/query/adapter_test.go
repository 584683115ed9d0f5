package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hray3182/CalBuddy/internal/api"
	"github.com/hray3182/CalBuddy/internal/models"
)

type interpreterFunc func(ctx context.Context, message string) (*models.QueryResponse, error)

func (f interpreterFunc) Interpret(ctx context.Context, message string) (*models.QueryResponse, error) {
	return f(ctx, message)
}

func respond(resp *models.QueryResponse) interpreterFunc {
	return func(ctx context.Context, message string) (*models.QueryResponse, error) {
		return resp, nil
	}
}

func boolPtr(b bool) *bool { return &b }

func TestDecodeVariants(t *testing.T) {
	tests := []struct {
		name string
		resp *models.QueryResponse
		want models.QueryType
	}{
		{"update", &models.QueryResponse{Type: models.QueryEventUpdate, Message: "updated"}, models.QueryEventUpdate},
		{"deletion", &models.QueryResponse{Type: models.QueryEventDeletion, Message: "deleted"}, models.QueryEventDeletion},
		{"other", &models.QueryResponse{Type: models.QueryOther, Message: "hi"}, models.QueryOther},
		{"unknown type", &models.QueryResponse{Type: "SMALL_TALK", Message: "hi"}, models.QueryOther},
		{"missing type", &models.QueryResponse{Message: "hi"}, models.QueryOther},
		{"retrieval", &models.QueryResponse{Type: models.QueryEventRetrieval, Events: []models.Event{{ID: "a"}}}, models.QueryEventRetrieval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.resp)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if res.Type() != tt.want {
				t.Errorf("type = %s, want %s", res.Type(), tt.want)
			}
		})
	}
}

func TestDecodeCreation(t *testing.T) {
	res, err := Decode(&models.QueryResponse{
		Success: boolPtr(true),
		Type:    models.QueryEventCreation,
		Message: "How about these?",
		EventDetails: &models.EventDetails{
			Title:    "Dentist",
			Priority: models.PriorityHigh,
			SuggestedTimeSlots: []models.Slot{
				{StartTime: "9:00 AM", EndTime: "10:00 AM", Date: "2024-6-17"},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	c, ok := res.(Creation)
	if !ok {
		t.Fatalf("result is %T, want Creation", res)
	}
	if len(c.Slots) != 1 || c.Details.Title != "Dentist" {
		t.Errorf("creation = %+v", c)
	}

	start := time.Date(2024, 6, 17, 9, 0, 0, 0, time.UTC)
	d := c.Draft(start, start.Add(time.Hour))
	if d.Priority != models.PriorityHigh || d.EventType != models.EventTypeMeeting || d.Participants == nil {
		t.Errorf("draft defaults not applied: %+v", d)
	}
}

func TestDecodeFailures(t *testing.T) {
	_, err := Decode(&models.QueryResponse{Type: models.QueryEventCreation, Message: "no details"})
	if !errors.Is(err, ErrParse) {
		t.Errorf("creation without details err = %v, want ErrParse", err)
	}

	_, err = Decode(&models.QueryResponse{Success: boolPtr(false), Message: "Quota exceeded"})
	if !errors.Is(err, api.ErrServerRejected) || err.Error() != "Quota exceeded" {
		t.Errorf("unsuccessful response err = %v", err)
	}

	if _, err := Decode(nil); !errors.Is(err, ErrParse) {
		t.Errorf("nil response err = %v", err)
	}
}

func TestSubmitRoutesSearchResults(t *testing.T) {
	var resp *models.QueryResponse
	a := New(interpreterFunc(func(ctx context.Context, message string) (*models.QueryResponse, error) {
		return resp, nil
	}))
	ctx := context.Background()

	resp = &models.QueryResponse{
		Type:    models.QueryEventRetrieval,
		Message: "Found 2 events",
		Events:  []models.Event{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}},
	}
	if _, err := a.Submit(ctx, "what is on friday?"); err != nil {
		t.Fatal(err)
	}
	if got := a.SearchEvents(); len(got) != 2 {
		t.Fatalf("search = %d events, want 2", len(got))
	}
	if a.LastQuery() != "what is on friday?" || a.LastType() != models.QueryEventRetrieval {
		t.Errorf("last query/type = %q/%s", a.LastQuery(), a.LastType())
	}

	resp = &models.QueryResponse{Type: models.QueryOther, Message: "Hello!"}
	if _, err := a.Submit(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	if got := a.SearchEvents(); len(got) != 0 {
		t.Errorf("search not cleared by a non-retrieval result: %+v", got)
	}

	resp = &models.QueryResponse{Type: models.QueryEventRetrieval, Events: []models.Event{{ID: "c"}}}
	a.Submit(ctx, "again")
	a.ClearResults()
	if len(a.SearchEvents()) != 0 || a.LastQuery() != "" || a.LastType() != "" {
		t.Error("ClearResults left state behind")
	}
}

func TestSubmitErrorClearsSearch(t *testing.T) {
	fail := false
	a := New(interpreterFunc(func(ctx context.Context, message string) (*models.QueryResponse, error) {
		if fail {
			return nil, &api.Error{Kind: api.ErrNetwork, Err: errors.New("timeout")}
		}
		return &models.QueryResponse{Type: models.QueryEventRetrieval, Events: []models.Event{{ID: "a"}}}, nil
	}))
	ctx := context.Background()
	a.Submit(ctx, "find")

	fail = true
	res, err := a.Submit(ctx, "find again")
	if res != nil || !errors.Is(err, api.ErrNetwork) {
		t.Fatalf("Submit = %v, %v", res, err)
	}
	if len(a.SearchEvents()) != 0 {
		t.Error("search kept after failure")
	}
	if a.Err() == nil {
		t.Error("error not recorded")
	}
	if a.Processing() {
		t.Error("processing still set")
	}
}

func TestSubmitUndecodableAnswerIsParseFailure(t *testing.T) {
	a := New(interpreterFunc(func(ctx context.Context, message string) (*models.QueryResponse, error) {
		return nil, &api.Error{Kind: api.ErrMalformedResponse, Err: errors.New("invalid character 'h'")}
	}))
	_, err := a.Submit(context.Background(), "lunch with Sam")
	if !errors.Is(err, ErrParse) || !errors.Is(err, api.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	called := false
	a := New(interpreterFunc(func(ctx context.Context, message string) (*models.QueryResponse, error) {
		called = true
		return nil, nil
	}))
	if _, err := a.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
	if called {
		t.Error("interpreter called for empty text")
	}
}

func TestSubmitIgnoresOvertakenAnswer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	a := New(interpreterFunc(func(ctx context.Context, message string) (*models.QueryResponse, error) {
		if message == "slow" {
			close(started)
			<-release
			return &models.QueryResponse{Type: models.QueryEventRetrieval, Events: []models.Event{{ID: "old"}}}, nil
		}
		return &models.QueryResponse{Type: models.QueryEventRetrieval, Events: []models.Event{{ID: "new"}}}, nil
	}))

	done := make(chan struct{})
	go func() {
		a.Submit(context.Background(), "slow")
		close(done)
	}()
	<-started
	a.Submit(context.Background(), "fast")
	close(release)
	<-done

	got := a.SearchEvents()
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("search = %+v, want the newer answer", got)
	}
	if a.LastQuery() != "fast" {
		t.Errorf("last query = %q", a.LastQuery())
	}
}

type fakeEmbedder struct {
	mu       sync.Mutex
	bulk     int
	perEvent []string
	err      error
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk++
	return f.err
}

func (f *fakeEmbedder) GenerateEventEmbedding(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perEvent = append(f.perEvent, id)
	return f.err
}

func TestEnsureEmbeddingsOncePerWindow(t *testing.T) {
	now := time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)
	emb := &fakeEmbedder{}
	a := New(respond(nil), WithEmbeddings(emb, NewMemoryLedger()), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if !a.EnsureEmbeddings(ctx) {
		t.Fatal("first run skipped")
	}
	now = now.Add(23 * time.Hour)
	if a.EnsureEmbeddings(ctx) {
		t.Error("second run inside the window")
	}
	now = now.Add(2 * time.Hour)
	if !a.EnsureEmbeddings(ctx) {
		t.Error("run after the window skipped")
	}
	if emb.bulk != 2 {
		t.Errorf("bulk calls = %d, want 2", emb.bulk)
	}
}

func TestEnsureEmbeddingsFailureIsRetried(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("backend down")}
	a := New(respond(nil), WithEmbeddings(emb, NewMemoryLedger()))
	ctx := context.Background()

	if a.EnsureEmbeddings(ctx) {
		t.Error("failed run reported success")
	}
	emb.err = nil
	if !a.EnsureEmbeddings(ctx) {
		t.Error("failed run was recorded in the ledger")
	}
}

func TestEmbedLatestKeysOnModification(t *testing.T) {
	emb := &fakeEmbedder{}
	a := New(respond(nil), WithEmbeddings(emb, NewMemoryLedger()))
	ctx := context.Background()

	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	events := []models.Event{
		{ID: "a", CreatedAt: &t1},
		{ID: "b", CreatedAt: &t1, UpdatedAt: &t2},
	}

	if !a.EmbedLatest(ctx, events) {
		t.Fatal("latest event not embedded")
	}
	if a.EmbedLatest(ctx, events) {
		t.Error("same version embedded twice")
	}

	t3 := t2.Add(time.Hour)
	events[1].UpdatedAt = &t3
	if !a.EmbedLatest(ctx, events) {
		t.Error("modified event not re-embedded")
	}
	if len(emb.perEvent) != 2 || emb.perEvent[0] != "b" || emb.perEvent[1] != "b" {
		t.Errorf("embedded = %v", emb.perEvent)
	}
}

func TestEnsureWithoutEmbeddingsIsNoop(t *testing.T) {
	a := New(respond(nil))
	if a.EnsureEmbeddings(context.Background()) || a.EmbedLatest(context.Background(), []models.Event{{ID: "a"}}) {
		t.Error("embedding ran without a backend")
	}
}
