package session

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// Registry owns one Session per chat user.
type Registry struct {
	deps *Deps

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     &deps,
		sessions: make(map[int64]*Session),
	}
}

// Get returns the session of telegramID, creating a signed-out one if needed.
func (r *Registry) Get(telegramID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[telegramID]
	if !ok {
		s = newSession(telegramID, r.deps)
		r.sessions[telegramID] = s
	}
	return s
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(telegramID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[telegramID]
	return s, ok
}

// All returns every session ordered by Telegram id.
func (r *Registry) All() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TelegramID < out[j].TelegramID })
	return out
}

// Restore signs in every persisted, unexpired session. It returns how many
// were restored.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.deps.Tokens == nil {
		return 0, nil
	}
	stored, err := r.deps.Tokens.ListActive(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cs := range stored {
		s := r.Get(cs.TelegramID)
		if _, _, err := s.SignIn(ctx, cs.Token); err != nil {
			log.Printf("session %d: stored token rejected: %v", cs.TelegramID, err)
			s.forgetToken(ctx)
			continue
		}
		n++
	}
	return n, nil
}
