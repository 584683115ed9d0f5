package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/CalBuddy/internal/models"
	"github.com/hray3182/CalBuddy/internal/query"
	"github.com/sashabaranov/go-openai"
)

// Client interprets scheduling queries with an OpenAI-compatible model. It is
// the local stand-in for the backend /ai/query endpoint.
type Client struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		now:    time.Now,
	}
}

// EventLister returns the user's current events.
type EventLister func() []models.Event

// Interpreter binds the client to one user's events.
type Interpreter struct {
	client *Client
	events EventLister
	loc    *time.Location
}

func (c *Client) Interpreter(events EventLister, loc *time.Location) *Interpreter {
	if loc == nil {
		loc = time.Local
	}
	return &Interpreter{client: c, events: events, loc: loc}
}

const systemPromptTemplate = `You are CalBuddy, a scheduling assistant. Classify the user's message and answer it.

Current time: %s

Query types:
- EVENT_CREATION: the user wants to schedule something. Fill title, description, event_type (meeting, focus, break, other), priority (low, medium, high), participants and suggest up to 3 free slots.
- EVENT_RETRIEVAL: the user asks about existing events. Put the ids of matching events in event_ids.
- EVENT_UPDATE: the user wants to change an event.
- EVENT_DELETION: the user wants to remove an event.
- OTHER: anything else.

Rules:
1. Slots use start_time and end_time like "2:00 PM" and date like "2024-6-15" (no zero padding).
2. Never suggest a slot that overlaps an existing event.
3. message is a short friendly reply shown to the user.
4. Unused fields are empty strings or empty arrays.

Existing events:
%s`

func (i *Interpreter) systemPrompt(events []models.Event) string {
	now := i.client.now().In(i.loc)
	var sb strings.Builder
	if len(events) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, e := range events {
		fmt.Fprintf(&sb, "- id=%s %q %s to %s\n", e.ID, e.Title,
			e.StartDate.In(i.loc).Format("2006-01-02 15:04"),
			e.EndDate.In(i.loc).Format("15:04"))
	}
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02 15:04 (Monday)"), sb.String())
}

var querySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"type": {
			"type": "string",
			"enum": ["EVENT_CREATION", "EVENT_RETRIEVAL", "EVENT_UPDATE", "EVENT_DELETION", "OTHER"]
		},
		"message": {"type": "string"},
		"title": {"type": "string"},
		"description": {"type": "string"},
		"event_type": {"type": "string", "enum": ["meeting", "focus", "break", "other", ""]},
		"priority": {"type": "string", "enum": ["low", "medium", "high", ""]},
		"participants": {"type": "array", "items": {"type": "string"}},
		"slots": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"start_time": {"type": "string"},
					"end_time": {"type": "string"},
					"date": {"type": "string"}
				},
				"required": ["start_time", "end_time", "date"],
				"additionalProperties": false
			}
		},
		"event_ids": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["type", "message", "title", "description", "event_type", "priority", "participants", "slots", "event_ids"],
	"additionalProperties": false
}`)

type answer struct {
	Type         models.QueryType `json:"type"`
	Message      string           `json:"message"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	EventType    models.EventType `json:"event_type"`
	Priority     models.Priority  `json:"priority"`
	Participants []string         `json:"participants"`
	Slots        []struct {
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Date      string `json:"date"`
	} `json:"slots"`
	EventIDs []string `json:"event_ids"`
}

// Interpret implements query.Interpreter.
func (i *Interpreter) Interpret(ctx context.Context, message string) (*models.QueryResponse, error) {
	var events []models.Event
	if i.events != nil {
		events = i.events()
	}

	resp, err := i.client.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: i.client.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: i.systemPrompt(events),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: message,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "calbuddy_query",
				Schema: querySchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from AI", query.ErrParse)
	}

	var a answer
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &a); err != nil {
		return nil, fmt.Errorf("%w: failed to parse AI response: %v", query.ErrParse, err)
	}
	return a.toResponse(events), nil
}

func (a *answer) toResponse(events []models.Event) *models.QueryResponse {
	ok := true
	out := &models.QueryResponse{Success: &ok, Type: a.Type, Message: a.Message}

	switch a.Type {
	case models.QueryEventCreation:
		details := &models.EventDetails{
			Title:        a.Title,
			Description:  a.Description,
			EventType:    a.EventType,
			Priority:     a.Priority,
			Participants: a.Participants,
		}
		for _, s := range a.Slots {
			details.SuggestedTimeSlots = append(details.SuggestedTimeSlots, models.Slot{
				StartTime: s.StartTime,
				EndTime:   s.EndTime,
				Date:      s.Date,
			})
		}
		out.EventDetails = details
	case models.QueryEventRetrieval:
		byID := make(map[string]models.Event, len(events))
		for _, e := range events {
			byID[e.ID] = e
		}
		out.Events = []models.Event{}
		for _, id := range a.EventIDs {
			if e, found := byID[id]; found {
				out.Events = append(out.Events, e.Clone())
			}
		}
	}
	return out
}
