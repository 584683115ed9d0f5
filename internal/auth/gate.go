// Package auth gates a chat session on a valid identity provider token and
// hands that token to the API client as an oauth2.TokenSource.
package auth

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/oauth2"
)

var ErrSignedOut = errors.New("not signed in")

type State int

const (
	SignedOut State = iota
	SignedIn
)

func (s State) String() string {
	if s == SignedIn {
		return "signed-in"
	}
	return "signed-out"
}

// Hooks run outside the gate lock.
type Hooks struct {
	// SignedIn runs after every successful SignIn.
	SignedIn func(ctx context.Context, id Identity)
	// SignedOut runs after an explicit SignOut.
	SignedOut func()
	// Invalidated runs once when the backend rejects the current token.
	Invalidated func()
}

type Gate struct {
	verifier *Verifier
	hooks    Hooks

	mu       sync.Mutex
	state    State
	identity *Identity
	raw      string
	source   oauth2.TokenSource
}

func NewGate(verifier *Verifier, hooks Hooks) *Gate {
	if verifier == nil {
		verifier, _ = NewVerifier("")
	}
	return &Gate{verifier: verifier, hooks: hooks}
}

// SetHooks replaces the hooks. Used when the hooked components are built
// after the gate.
func (g *Gate) SetHooks(h Hooks) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = h
}

// SignIn admits the session holding raw. A token that fails to parse leaves
// the gate unchanged.
func (g *Gate) SignIn(ctx context.Context, raw string) (*Identity, error) {
	id, err := g.verifier.Parse(raw)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer", Expiry: id.ExpiresAt}

	g.mu.Lock()
	g.state = SignedIn
	g.identity = id
	g.raw = raw
	g.source = oauth2.StaticTokenSource(tok)
	hook := g.hooks.SignedIn
	g.mu.Unlock()

	log.Printf("auth: user %s signed in", id.UserID)
	if hook != nil {
		hook(ctx, *id)
	}
	return id, nil
}

// Token implements oauth2.TokenSource.
func (g *Gate) Token() (*oauth2.Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != SignedIn || g.source == nil {
		return nil, ErrSignedOut
	}
	tok, err := g.source.Token()
	if err != nil {
		return nil, err
	}
	if !tok.Valid() {
		return nil, ErrTokenExpired
	}
	return tok, nil
}

// Invalidate tears the session down after a 401. It reports whether this call
// performed the transition; later calls for the same session are no-ops.
func (g *Gate) Invalidate() bool {
	g.mu.Lock()
	if g.state != SignedIn {
		g.mu.Unlock()
		return false
	}
	user := g.identity.UserID
	g.clearLocked()
	hook := g.hooks.Invalidated
	g.mu.Unlock()

	log.Printf("auth: session of %s invalidated", user)
	if hook != nil {
		hook()
	}
	return true
}

// SignOut ends the session on request.
func (g *Gate) SignOut() {
	g.mu.Lock()
	g.clearLocked()
	hook := g.hooks.SignedOut
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (g *Gate) clearLocked() {
	g.state = SignedOut
	g.identity = nil
	g.raw = ""
	g.source = nil
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Identity returns the signed-in user, if any.
func (g *Gate) Identity() (Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return Identity{}, false
	}
	return *g.identity, true
}

// RawToken returns the session token for persistence.
func (g *Gate) RawToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.raw
}
