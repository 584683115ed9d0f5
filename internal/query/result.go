package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/CalBuddy/internal/api"
	"github.com/hray3182/CalBuddy/internal/models"
)

var (
	ErrEmptyQuery = errors.New("query text is empty")
	// ErrParse marks a response that could not be understood.
	ErrParse = errors.New("could not understand the response")
)

// Result is one of Creation, Retrieval, Update, Deletion or Other.
type Result interface {
	Type() models.QueryType
	Message() string
	isResult()
}

// Creation proposes a new event. Nothing is created until a slot is chosen.
type Creation struct {
	Text    string
	Details models.EventDetails
	Slots   []models.Slot
}

// Retrieval carries events matching the query.
type Retrieval struct {
	Text   string
	Events []models.Event
}

type Update struct{ Text string }

type Deletion struct{ Text string }

type Other struct{ Text string }

func (Creation) Type() models.QueryType  { return models.QueryEventCreation }
func (Retrieval) Type() models.QueryType { return models.QueryEventRetrieval }
func (Update) Type() models.QueryType    { return models.QueryEventUpdate }
func (Deletion) Type() models.QueryType  { return models.QueryEventDeletion }
func (Other) Type() models.QueryType     { return models.QueryOther }

func (r Creation) Message() string  { return r.Text }
func (r Retrieval) Message() string { return r.Text }
func (r Update) Message() string    { return r.Text }
func (r Deletion) Message() string  { return r.Text }
func (r Other) Message() string     { return r.Text }

func (Creation) isResult()  {}
func (Retrieval) isResult() {}
func (Update) isResult()    {}
func (Deletion) isResult()  {}
func (Other) isResult()     {}

// Draft builds the event to create for the chosen window.
func (c Creation) Draft(start, end time.Time) models.EventDraft {
	d := models.EventDraft{
		Title:        c.Details.Title,
		Description:  c.Details.Description,
		StartDate:    start,
		EndDate:      end,
		EventType:    c.Details.EventType,
		Priority:     c.Details.Priority,
		Participants: append([]string(nil), c.Details.Participants...),
	}
	d.Normalize()
	return d
}

// Decode turns the wire response into a Result. An unknown type is Other.
func Decode(resp *models.QueryResponse) (Result, error) {
	if resp == nil {
		return nil, ErrParse
	}
	if resp.Success != nil && !*resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "query failed"
		}
		return nil, &api.Error{Kind: api.ErrServerRejected, Message: msg}
	}

	switch resp.Type {
	case models.QueryEventCreation:
		if resp.EventDetails == nil || resp.EventDetails.Title == "" {
			return nil, fmt.Errorf("%w: creation without event details", ErrParse)
		}
		details := *resp.EventDetails
		slots := append([]models.Slot(nil), details.SuggestedTimeSlots...)
		details.SuggestedTimeSlots = nil
		return Creation{Text: resp.Message, Details: details, Slots: slots}, nil
	case models.QueryEventRetrieval:
		events := make([]models.Event, 0, len(resp.Events))
		for _, e := range resp.Events {
			events = append(events, e.Clone())
		}
		return Retrieval{Text: resp.Message, Events: events}, nil
	case models.QueryEventUpdate:
		return Update{Text: resp.Message}, nil
	case models.QueryEventDeletion:
		return Deletion{Text: resp.Message}, nil
	default:
		return Other{Text: resp.Message}, nil
	}
}
