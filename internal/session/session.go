// Package session bundles the per-user client components (auth gate, API
// client, event store, query adapter, conversation) and keeps one bundle per
// chat user.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hray3182/CalBuddy/internal/ai"
	"github.com/hray3182/CalBuddy/internal/api"
	"github.com/hray3182/CalBuddy/internal/auth"
	"github.com/hray3182/CalBuddy/internal/conversation"
	"github.com/hray3182/CalBuddy/internal/models"
	"github.com/hray3182/CalBuddy/internal/query"
	"github.com/hray3182/CalBuddy/internal/store"
)

// TokenStore persists session tokens across restarts.
type TokenStore interface {
	Save(ctx context.Context, s *models.ChatSession) error
	Get(ctx context.Context, telegramID int64) (*models.ChatSession, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.ChatSession, error)
	Delete(ctx context.Context, telegramID int64) error
}

// LedgerFactory returns the embedding ledger of an identity provider user.
type LedgerFactory func(userID string) query.EmbeddingLedger

// Deps is shared by every session of a registry.
type Deps struct {
	BaseURL     string
	HTTPTimeout time.Duration
	Verifier    *auth.Verifier
	Location    *time.Location
	// LocalAI replaces the backend interpreter when set.
	LocalAI *ai.Client
	Ledgers LedgerFactory
	Tokens  TokenStore
	// Invalidated runs once per session torn down by a 401.
	Invalidated func(telegramID int64)
	// Transport overrides the HTTP client, mainly for tests.
	Transport api.Option
}

type Session struct {
	TelegramID int64
	Gate       *auth.Gate
	API        *api.Client
	Store      *store.Store
	Queries    *query.Adapter
	Chat       *conversation.Controller

	deps *Deps
}

func newSession(telegramID int64, deps *Deps) *Session {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Session{TelegramID: telegramID, deps: deps}
	s.Gate = auth.NewGate(deps.Verifier, auth.Hooks{})

	opts := []api.Option{api.WithUnauthorizedHandler(func() { s.Gate.Invalidate() })}
	if deps.HTTPTimeout > 0 {
		opts = append(opts, api.WithTimeout(deps.HTTPTimeout))
	}
	if deps.Transport != nil {
		opts = append(opts, deps.Transport)
	}
	s.API = api.New(deps.BaseURL, s.Gate, opts...)

	s.Store = store.New(s.API,
		store.WithClock(func() time.Time { return time.Now().In(loc) }),
		store.WithUnauthorizedHook(func() { s.Gate.Invalidate() }),
	)

	var interp query.Interpreter = s.API
	if deps.LocalAI != nil {
		interp = deps.LocalAI.Interpreter(s.Store.Items, loc)
	}
	qopts := []query.Option{}
	if deps.Ledgers != nil {
		qopts = append(qopts, query.WithEmbeddings(s.API, &gateLedger{gate: s.Gate, ledgers: deps.Ledgers}))
	}
	s.Queries = query.New(interp, qopts...)
	s.Chat = conversation.New(s.Queries, s.Store, loc)

	s.Gate.SetHooks(auth.Hooks{
		SignedIn:    s.syncUser,
		SignedOut:   s.teardown,
		Invalidated: s.invalidated,
	})
	return s
}

// SignIn admits raw, loads the events and persists the token. Embeddings are
// refreshed in the background.
func (s *Session) SignIn(ctx context.Context, raw string) (*auth.Identity, store.Result, error) {
	id, err := s.Gate.SignIn(ctx, raw)
	if err != nil {
		return nil, store.Result{}, err
	}

	res := s.Store.Init(ctx)
	if res.Err != nil {
		log.Printf("session %d: initial fetch failed: %v", s.TelegramID, res.Err)
	}

	if s.deps.Tokens != nil && s.Gate.State() == auth.SignedIn {
		cs := &models.ChatSession{TelegramID: s.TelegramID, Token: s.Gate.RawToken(), ClerkID: id.UserID, ExpiresAt: id.ExpiresAt}
		if err := s.deps.Tokens.Save(ctx, cs); err != nil {
			log.Printf("session %d: failed to persist token: %v", s.TelegramID, err)
		}
	}

	if res.Err == nil {
		go s.RefreshEmbeddings(context.WithoutCancel(ctx))
	}
	return id, res, nil
}

// SignOut tears the session down and forgets the stored token.
func (s *Session) SignOut(ctx context.Context) {
	s.Gate.SignOut()
	s.forgetToken(ctx)
}

func (s *Session) forgetToken(ctx context.Context) {
	if s.deps.Tokens == nil {
		return
	}
	if err := s.deps.Tokens.Delete(ctx, s.TelegramID); err != nil {
		log.Printf("session %d: failed to delete token: %v", s.TelegramID, err)
	}
}

func (s *Session) syncUser(ctx context.Context, id auth.Identity) {
	profile := models.UserProfile{
		ClerkID:   id.UserID,
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
	}
	if _, err := s.API.CheckOrCreateUser(ctx, profile); err != nil {
		log.Printf("session %d: user sync failed: %v", s.TelegramID, err)
	}
}

func (s *Session) teardown() {
	s.Store.Reset()
	s.Queries.ClearResults()
	s.Chat.CancelSlots()
}

func (s *Session) invalidated() {
	s.Queries.ClearResults()
	s.Chat.CancelSlots()
	s.forgetToken(context.Background())
	if s.deps.Invalidated != nil {
		s.deps.Invalidated(s.TelegramID)
	}
}

// RefreshEmbeddings runs the daily bulk rebuild and indexes the most recently
// changed event.
func (s *Session) RefreshEmbeddings(ctx context.Context) {
	if s.Gate.State() != auth.SignedIn {
		return
	}
	s.Queries.EnsureEmbeddings(ctx)
	s.Queries.EmbedLatest(ctx, s.Store.Items())
}

// IndexLatest indexes the most recently changed event in the background.
func (s *Session) IndexLatest(ctx context.Context) {
	items := s.Store.Items()
	go s.Queries.EmbedLatest(context.WithoutCancel(ctx), items)
}

// gateLedger resolves the ledger of whoever is signed in at call time.
type gateLedger struct {
	gate    *auth.Gate
	ledgers LedgerFactory
}

func (l *gateLedger) current() (query.EmbeddingLedger, error) {
	id, ok := l.gate.Identity()
	if !ok {
		return nil, fmt.Errorf("embedding ledger: %w", auth.ErrSignedOut)
	}
	return l.ledgers(id.UserID), nil
}

func (l *gateLedger) LastBulk(ctx context.Context) (time.Time, bool, error) {
	led, err := l.current()
	if err != nil {
		return time.Time{}, false, err
	}
	return led.LastBulk(ctx)
}

func (l *gateLedger) MarkBulk(ctx context.Context, at time.Time) error {
	led, err := l.current()
	if err != nil {
		return err
	}
	return led.MarkBulk(ctx, at)
}

func (l *gateLedger) Seen(ctx context.Context, key string) (bool, error) {
	led, err := l.current()
	if err != nil {
		return false, err
	}
	return led.Seen(ctx, key)
}

func (l *gateLedger) MarkSeen(ctx context.Context, key string) error {
	led, err := l.current()
	if err != nil {
		return err
	}
	return led.MarkSeen(ctx, key)
}
