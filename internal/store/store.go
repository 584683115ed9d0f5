// Package store holds the canonical event list of a signed-in user and the
// projections derived from it: the today and tomorrow agendas and the
// calendar index keyed by local date.
//
// Every operation takes a sequence number when it is issued. Responses that
// have been overtaken by a later-issued operation are discarded instead of
// being applied in arrival order.
package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/hray3182/CalBuddy/internal/api"
	"github.com/hray3182/CalBuddy/internal/models"
)

// EventBackend is the subset of the API client the store needs.
type EventBackend interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	CreateEvent(ctx context.Context, draft models.EventDraft) (*models.Event, error)
	UpdateEvent(ctx context.Context, id string, fields models.EventDraft) (*models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Result is the outcome of one store operation.
type Result struct {
	Seq   uint64
	Stale bool
	Event *models.Event
	Err   error
}

type mutationKind int

const (
	mutationCreate mutationKind = iota
	mutationUpdate
	mutationDelete
)

// journalEntry records a mutation applied while a fetch was outstanding so it
// can be replayed on top of that fetch's snapshot.
type journalEntry struct {
	seq   uint64
	kind  mutationKind
	id    string
	event models.Event
}

type Store struct {
	backend        EventBackend
	now            func() time.Time
	onUnauthorized func()

	mu           sync.RWMutex
	seq          uint64
	resetAt      uint64
	lastFetch    uint64
	fetchPending bool
	baseline     uint64
	appliedSeq   map[string]uint64
	journal      []journalEntry
	inflight     int

	items     []models.Event
	proj      projections
	err       error
	selected  *models.Event
	modalOpen bool
}

type Option func(*Store)

// WithClock overrides the wall clock. Its location decides what "local" means.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithUnauthorizedHook is called once per operation that fails with 401.
func WithUnauthorizedHook(fn func()) Option {
	return func(s *Store) { s.onUnauthorized = fn }
}

func New(backend EventBackend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.appliedSeq = make(map[string]uint64)
	s.journal = nil
	s.fetchPending = false
	s.resetAt = s.seq
	s.baseline = s.seq
	s.lastFetch = 0
	s.items = []models.Event{}
	s.proj = rebuild(nil, s.now())
	s.err = nil
	s.selected = nil
	s.modalOpen = false
}

// Reset drops all state. Responses of operations issued before the reset are
// discarded when they arrive.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Init is the sign-in entry point: it resets and performs the initial fetch.
func (s *Store) Init(ctx context.Context) Result {
	s.Reset()
	return s.Fetch(ctx)
}

func (s *Store) begin() uint64 {
	s.seq++
	s.inflight++
	return s.seq
}

func (s *Store) finish(err error, stale bool) {
	s.inflight--
	if err != nil && !stale {
		s.err = err
	}
}

func (s *Store) handleError(err error) {
	if err == nil || !api.IsUnauthorized(err) || s.onUnauthorized == nil {
		return
	}
	s.onUnauthorized()
}

// Fetch replaces the canonical list and rebuilds every projection.
func (s *Store) Fetch(ctx context.Context) Result {
	s.mu.Lock()
	seq := s.begin()
	s.lastFetch = seq
	s.fetchPending = true
	s.mu.Unlock()

	events, err := s.backend.ListEvents(ctx)

	s.mu.Lock()
	stale := seq != s.lastFetch || seq <= s.baseline
	if !stale {
		s.fetchPending = false
		if err == nil {
			s.applyFetchLocked(seq, events)
		}
		s.journal = nil
	}
	s.finish(wrap("fetch events", err), stale)
	s.mu.Unlock()

	s.handleError(err)
	if stale {
		log.Printf("store: discarded stale fetch #%d", seq)
	}
	return Result{Seq: seq, Stale: stale, Err: err}
}

func (s *Store) applyFetchLocked(seq uint64, events []models.Event) {
	items := make([]models.Event, 0, len(events))
	for _, e := range events {
		items = append(items, e.Clone())
	}

	for _, j := range s.journal {
		if j.seq <= seq {
			continue
		}
		switch j.kind {
		case mutationCreate:
			if indexOf(items, j.id) < 0 {
				items = append(items, j.event.Clone())
			}
		case mutationUpdate:
			if i := indexOf(items, j.id); i >= 0 {
				items[i] = j.event.Clone()
			}
		case mutationDelete:
			if i := indexOf(items, j.id); i >= 0 {
				items = append(items[:i], items[i+1:]...)
			}
		}
	}

	s.items = items
	s.proj = rebuild(s.items, s.now())
	s.baseline = seq
}

func (s *Store) recordLocked(entry journalEntry) {
	s.appliedSeq[entry.id] = entry.seq
	if s.fetchPending {
		s.journal = append(s.journal, entry)
	}
}

// Create sends draft to the backend and patches the projections with the
// confirmed event. The modal is closed only on success.
func (s *Store) Create(ctx context.Context, draft models.EventDraft) Result {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return Result{Err: err}
	}

	s.mu.Lock()
	seq := s.begin()
	s.mu.Unlock()

	event, err := s.backend.CreateEvent(ctx, draft)

	s.mu.Lock()
	stale := false
	if err == nil {
		// A create is final on the server, so it is applied even when a fetch
		// issued later has landed, unless that fetch already holds the id.
		stale = seq <= s.resetAt || indexOf(s.items, event.ID) >= 0
		if !stale {
			created := event.Clone()
			s.items = append(s.items, created)
			s.proj.add(&s.items[len(s.items)-1], s.now())
			s.recordLocked(journalEntry{seq: seq, kind: mutationCreate, id: created.ID, event: created})
			s.closeModalLocked()
		}
	}
	s.finish(wrap("create event", err), seq <= s.resetAt)
	s.mu.Unlock()

	s.handleError(err)
	return Result{Seq: seq, Stale: stale, Event: event, Err: err}
}

// Update replaces event id with fields. The event is removed from every
// projection and re-inserted wherever its (possibly new) date belongs.
func (s *Store) Update(ctx context.Context, id string, fields models.EventDraft) Result {
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return Result{Err: err}
	}

	s.mu.Lock()
	seq := s.begin()
	s.mu.Unlock()

	event, err := s.backend.UpdateEvent(ctx, id, fields)

	s.mu.Lock()
	stale := false
	if err == nil {
		idx := indexOf(s.items, event.ID)
		stale = seq <= s.resetAt || idx < 0 || seq <= s.baseline || seq < s.appliedSeq[event.ID]
		if !stale {
			updated := event.Clone()
			s.items[idx] = updated
			s.proj.remove(updated.ID)
			s.proj.add(&s.items[idx], s.now())
			s.recordLocked(journalEntry{seq: seq, kind: mutationUpdate, id: updated.ID, event: updated})
			s.closeModalLocked()
		}
	}
	s.finish(wrap("update event", err), seq <= s.resetAt)
	s.mu.Unlock()

	s.handleError(err)
	if stale {
		log.Printf("store: discarded stale update #%d for event %s", seq, id)
	}
	return Result{Seq: seq, Stale: stale, Event: event, Err: err}
}

// Delete removes id from the canonical list and every projection.
func (s *Store) Delete(ctx context.Context, id string) Result {
	s.mu.Lock()
	seq := s.begin()
	s.mu.Unlock()

	err := s.backend.DeleteEvent(ctx, id)

	s.mu.Lock()
	stale := seq <= s.resetAt
	if err == nil && !stale {
		if idx := indexOf(s.items, id); idx >= 0 {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
		}
		s.proj.remove(id)
		s.recordLocked(journalEntry{seq: seq, kind: mutationDelete, id: id})
		s.closeModalLocked()
	}
	s.finish(wrap("delete event", err), stale)
	s.mu.Unlock()

	s.handleError(err)
	return Result{Seq: seq, Stale: stale, Err: err}
}

func (s *Store) closeModalLocked() {
	s.selected = nil
	s.modalOpen = false
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// SelectEvent marks e as the event being edited.
func (s *Store) SelectEvent(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := e.Clone()
	s.selected = &c
}

func (s *Store) OpenModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalOpen = true
}

// CloseModal closes the editor and clears the selection.
func (s *Store) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeModalLocked()
}

func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

// Items returns a copy of the canonical list.
func (s *Store) Items() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.items))
	for i, e := range s.items {
		out[i] = e.Clone()
	}
	return out
}

// Event looks up a canonical event by id.
func (s *Store) Event(id string) (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i].Clone(), true
	}
	return models.Event{}, false
}

func (s *Store) TodayEvents() []models.DisplayEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DisplayEvent{}, s.proj.today...)
}

func (s *Store) TomorrowEvents() []models.DisplayEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DisplayEvent{}, s.proj.tomorrow...)
}

// CalendarData returns a deep copy of the date-keyed index.
func (s *Store) CalendarData() map[models.DateKey]*models.DayBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.DateKey]*models.DayBucket, len(s.proj.calendar))
	for k, b := range s.proj.calendar {
		out[k] = b.Clone()
	}
	return out
}

// Day returns the bucket of one date, or nil.
func (s *Store) Day(key models.DateKey) *models.DayBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.proj.calendar[key]; ok {
		return b.Clone()
	}
	return nil
}

// DateKeys lists the populated dates in chronological order.
func (s *Store) DateKeys() []models.DateKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]models.DateKey, 0, len(s.proj.calendar))
	for k := range s.proj.calendar {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) SelectedEvent() (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return models.Event{}, false
	}
	return s.selected.Clone(), true
}

func (s *Store) ModalOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modalOpen
}
