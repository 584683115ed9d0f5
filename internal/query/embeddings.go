package query

import (
	"context"
	"sync"
	"time"

	"github.com/hray3182/CalBuddy/internal/models"
)

// EmbeddingWindow is the minimum age of the last bulk rebuild before another
// one is requested.
const EmbeddingWindow = 24 * time.Hour

// EmbeddingLedger remembers which embeddings were already generated for one
// user.
type EmbeddingLedger interface {
	LastBulk(ctx context.Context) (time.Time, bool, error)
	MarkBulk(ctx context.Context, at time.Time) error
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string) error
}

// EmbeddingKey identifies one version of an event.
func EmbeddingKey(e *models.Event) string {
	ts := ""
	if m := e.LastModified(); !m.IsZero() {
		ts = m.UTC().Format(time.RFC3339Nano)
	}
	return e.ID + "-" + ts
}

// EnsureEmbeddings rebuilds all embeddings at most once per EmbeddingWindow.
// Failures are logged and reported as false.
func (a *Adapter) EnsureEmbeddings(ctx context.Context) bool {
	if a.embed == nil || a.ledger == nil {
		return false
	}
	now := a.now()
	last, ok, err := a.ledger.LastBulk(ctx)
	if err != nil {
		a.logf("read embedding ledger: %v", err)
		return false
	}
	if ok && now.Sub(last) < EmbeddingWindow {
		return false
	}
	if err := a.embed.GenerateEmbeddings(ctx); err != nil {
		a.logf("generate embeddings: %v", err)
		return false
	}
	if err := a.ledger.MarkBulk(ctx, now); err != nil {
		a.logf("record embedding run: %v", err)
	}
	return true
}

// EnsureEventEmbedding generates the embedding of e unless this version of
// it was already indexed.
func (a *Adapter) EnsureEventEmbedding(ctx context.Context, e *models.Event) bool {
	if a.embed == nil || a.ledger == nil || e == nil || e.ID == "" {
		return false
	}
	key := EmbeddingKey(e)
	seen, err := a.ledger.Seen(ctx, key)
	if err != nil {
		a.logf("read embedding ledger: %v", err)
		return false
	}
	if seen {
		return false
	}
	if err := a.embed.GenerateEventEmbedding(ctx, e.ID); err != nil {
		a.logf("generate embedding for %s: %v", e.ID, err)
		return false
	}
	if err := a.ledger.MarkSeen(ctx, key); err != nil {
		a.logf("record embedding for %s: %v", e.ID, err)
	}
	return true
}

// EmbedLatest indexes the most recently modified event of events.
func (a *Adapter) EmbedLatest(ctx context.Context, events []models.Event) bool {
	if len(events) == 0 {
		return false
	}
	latest := &events[0]
	for i := 1; i < len(events); i++ {
		if events[i].LastModified().After(latest.LastModified()) {
			latest = &events[i]
		}
	}
	return a.EnsureEventEmbedding(ctx, latest)
}

// MemoryLedger is an EmbeddingLedger kept in process memory.
type MemoryLedger struct {
	mu      sync.Mutex
	bulk    time.Time
	hasBulk bool
	seen    map[string]bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]bool)}
}

func (l *MemoryLedger) LastBulk(ctx context.Context) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bulk, l.hasBulk, nil
}

func (l *MemoryLedger) MarkBulk(ctx context.Context, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bulk = at
	l.hasBulk = true
	return nil
}

func (l *MemoryLedger) Seen(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[key], nil
}

func (l *MemoryLedger) MarkSeen(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key] = true
	return nil
}
