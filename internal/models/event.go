package models

import (
	"errors"
	"time"
)

type EventType string

const (
	EventTypeMeeting EventType = "meeting"
	EventTypeFocus   EventType = "focus"
	EventTypeBreak   EventType = "break"
	EventTypeOther   EventType = "other"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeMeeting, EventTypeFocus, EventTypeBreak, EventTypeOther:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DefaultDuration is applied when a draft has no end date.
const DefaultDuration = time.Hour

var (
	ErrEmptyTitle   = errors.New("event title is required")
	ErrMissingStart = errors.New("event start date is required")
)

// Event is the server-owned calendar item. ID is assigned by the backend.
type Event struct {
	ID           string     `json:"_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	EventType    EventType  `json:"eventType"`
	Priority     Priority   `json:"priority"`
	Participants []string   `json:"participants"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// LastModified returns UpdatedAt, falling back to CreatedAt. Zero if neither is set.
func (e *Event) LastModified() time.Time {
	if e.UpdatedAt != nil {
		return *e.UpdatedAt
	}
	if e.CreatedAt != nil {
		return *e.CreatedAt
	}
	return time.Time{}
}

// Clone returns a copy that shares no slices with e.
func (e Event) Clone() Event {
	if e.Participants != nil {
		e.Participants = append([]string(nil), e.Participants...)
	}
	return e
}

// Draft converts the event back into a payload suitable for a full update.
func (e *Event) Draft() EventDraft {
	return EventDraft{
		Title:        e.Title,
		Description:  e.Description,
		StartDate:    e.StartDate,
		EndDate:      e.EndDate,
		EventType:    e.EventType,
		Priority:     e.Priority,
		Participants: append([]string(nil), e.Participants...),
	}
}

// EventDraft is a client-built event payload that has no backend id yet.
type EventDraft struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	EventType    EventType `json:"eventType"`
	Priority     Priority  `json:"priority"`
	Participants []string  `json:"participants"`
}

// Normalize fills defaults: medium priority, meeting type, empty participants
// and a one hour duration when the end date is missing.
func (d *EventDraft) Normalize() {
	if !d.Priority.Valid() {
		d.Priority = PriorityMedium
	}
	if !d.EventType.Valid() {
		d.EventType = EventTypeMeeting
	}
	if d.Participants == nil {
		d.Participants = []string{}
	}
	if d.EndDate.IsZero() && !d.StartDate.IsZero() {
		d.EndDate = d.StartDate.Add(DefaultDuration)
	}
}

// Validate checks the fields the backend requires.
func (d *EventDraft) Validate() error {
	if d.Title == "" {
		return ErrEmptyTitle
	}
	if d.StartDate.IsZero() {
		return ErrMissingStart
	}
	return nil
}
