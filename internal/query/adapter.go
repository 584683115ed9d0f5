// Package query submits free-text scheduling queries and keeps the ephemeral
// search result list. It never touches the event store.
package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/hray3182/CalBuddy/internal/api"
	"github.com/hray3182/CalBuddy/internal/models"
)

// Interpreter turns free text into a typed query response. The backend API
// client and the local AI client both implement it.
type Interpreter interface {
	Interpret(ctx context.Context, message string) (*models.QueryResponse, error)
}

// EmbeddingBackend rebuilds search embeddings on the backend.
type EmbeddingBackend interface {
	GenerateEmbeddings(ctx context.Context) error
	GenerateEventEmbedding(ctx context.Context, eventID string) error
}

type Adapter struct {
	interp Interpreter
	embed  EmbeddingBackend
	ledger EmbeddingLedger
	now    func() time.Time

	mu         sync.RWMutex
	seq        uint64
	processing int
	lastQuery  string
	lastType   models.QueryType
	search     []models.Event
	err        error
}

type Option func(*Adapter)

// WithEmbeddings enables the embedding bookkeeping. Without it the Ensure
// methods do nothing.
func WithEmbeddings(backend EmbeddingBackend, ledger EmbeddingLedger) Option {
	return func(a *Adapter) {
		a.embed = backend
		a.ledger = ledger
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func New(interp Interpreter, opts ...Option) *Adapter {
	a := &Adapter{interp: interp, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit sends text to the interpreter. Only the most recently submitted
// query updates the adapter state; older answers are still returned.
func (a *Adapter) Submit(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.processing++
	a.lastQuery = text
	a.mu.Unlock()

	resp, err := a.interp.Interpret(ctx, text)
	if errors.Is(err, api.ErrMalformedResponse) {
		err = fmt.Errorf("%w: %w", ErrParse, err)
	}
	var res Result
	if err == nil {
		res, err = Decode(resp)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.processing--
	if seq != a.seq {
		return res, err
	}
	if err != nil {
		a.err = fmt.Errorf("query: %w", err)
		a.search = nil
		a.lastType = ""
		return nil, err
	}
	a.err = nil
	a.lastType = res.Type()
	if r, ok := res.(Retrieval); ok {
		a.search = r.Events
	} else {
		a.search = nil
	}
	return res, nil
}

// ClearResults drops the search list and the last query.
func (a *Adapter) ClearResults() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.search = nil
	a.lastQuery = ""
	a.lastType = ""
	a.err = nil
}

// SearchEvents returns a copy of the last retrieval results.
func (a *Adapter) SearchEvents() []models.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Event, len(a.search))
	for i, e := range a.search {
		out[i] = e.Clone()
	}
	return out
}

func (a *Adapter) Processing() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.processing > 0
}

func (a *Adapter) LastQuery() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastQuery
}

func (a *Adapter) LastType() models.QueryType {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastType
}

func (a *Adapter) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

func (a *Adapter) logf(format string, args ...any) {
	log.Printf("query: "+format, args...)
}
