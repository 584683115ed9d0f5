// Package conversation keeps the chat transcript and turns accepted slot
// suggestions into event creations.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/CalBuddy/internal/models"
	"github.com/hray3182/CalBuddy/internal/query"
	"github.com/hray3182/CalBuddy/internal/slot"
	"github.com/hray3182/CalBuddy/internal/store"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

const (
	fallbackText      = "I'm not sure how to help with that yet."
	notUnderstoodText = "Sorry, I couldn't understand that. Could you rephrase it?"
	failureText       = "Sorry, something went wrong while handling your request."
	apologyText       = "Sorry, I couldn't schedule that event. Please try again."
)

var (
	ErrNoPendingSlots = errors.New("no time slots to choose from")
	ErrSlotIndex      = errors.New("time slot index out of range")
)

type Message struct {
	ID      string
	Speaker Speaker
	Text    string
	At      time.Time
}

// Querier submits free text. Implemented by *query.Adapter.
type Querier interface {
	Submit(ctx context.Context, text string) (query.Result, error)
}

// Creator creates events. Implemented by *store.Store.
type Creator interface {
	Create(ctx context.Context, draft models.EventDraft) store.Result
}

// Reply is what the assistant answered to one submission.
type Reply struct {
	Message Message
	Result  query.Result
	Slots   []models.Slot
	Err     error
}

type Controller struct {
	queries Querier
	events  Creator
	loc     *time.Location
	now     func() time.Time

	mu         sync.Mutex
	transcript []Message
	pending    *query.Creation
}

func New(queries Querier, events Creator, loc *time.Location) *Controller {
	if loc == nil {
		loc = time.Local
	}
	return &Controller{
		queries: queries,
		events:  events,
		loc:     loc,
		now:     time.Now,
	}
}

func (c *Controller) appendLocked(speaker Speaker, text string) Message {
	m := Message{
		ID:      uuid.NewString(),
		Speaker: speaker,
		Text:    text,
		At:      c.now(),
	}
	c.transcript = append(c.transcript, m)
	return m
}

func (c *Controller) append(speaker Speaker, text string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(speaker, text)
}

// Submit records text, asks the query adapter and records the answer. A
// creation answer opens the slot picker.
func (c *Controller) Submit(ctx context.Context, text string) Reply {
	c.append(SpeakerUser, text)

	res, err := c.queries.Submit(ctx, text)
	if err != nil {
		reply := failureText
		if errors.Is(err, query.ErrParse) || errors.Is(err, query.ErrEmptyQuery) {
			reply = notUnderstoodText
		}
		return Reply{Message: c.append(SpeakerAssistant, reply), Err: err}
	}

	msg := res.Message()
	if msg == "" {
		msg = fallbackText
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	reply := Reply{Result: res}
	if creation, ok := res.(query.Creation); ok && len(creation.Slots) > 0 {
		c.pending = &creation
		reply.Slots = append([]models.Slot(nil), creation.Slots...)
	} else {
		c.pending = nil
	}
	reply.Message = c.appendLocked(SpeakerAssistant, msg)
	return reply
}

// PendingSlots returns the suggestions of the open picker, or nil.
func (c *Controller) PendingSlots() []models.Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	return append([]models.Slot(nil), c.pending.Slots...)
}

// CancelSlots closes the picker without creating anything.
func (c *Controller) CancelSlots() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// AcceptSlot creates the pending event at the slot with the given index.
// The picker stays open if creation fails.
func (c *Controller) AcceptSlot(ctx context.Context, index int) (Message, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return Message{}, ErrNoPendingSlots
	}
	if index < 0 || index >= len(c.pending.Slots) {
		c.mu.Unlock()
		return Message{}, ErrSlotIndex
	}
	creation := *c.pending
	chosen := creation.Slots[index]
	c.mu.Unlock()

	start, end, err := slot.ParseSlot(chosen, c.loc)
	if err != nil {
		return c.append(SpeakerAssistant, notUnderstoodText), err
	}

	res := c.events.Create(ctx, creation.Draft(start, end))
	if res.Err != nil {
		return c.append(SpeakerAssistant, apologyText), res.Err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	text := fmt.Sprintf("Done! %q is scheduled for %s.", creation.Details.Title, chosen.String())
	return c.appendLocked(SpeakerAssistant, text), nil
}

// Transcript returns a copy of every message so far.
func (c *Controller) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.transcript...)
}
