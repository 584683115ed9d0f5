package models

import "fmt"

type QueryType string

const (
	QueryEventCreation  QueryType = "EVENT_CREATION"
	QueryEventRetrieval QueryType = "EVENT_RETRIEVAL"
	QueryEventUpdate    QueryType = "EVENT_UPDATE"
	QueryEventDeletion  QueryType = "EVENT_DELETION"
	QueryOther          QueryType = "OTHER"
)

// Slot is a candidate time window suggested by the backend.
type Slot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Date      string `json:"date"`
}

// String renders "<startTime> - <endTime> on <date>".
func (s Slot) String() string {
	if s.EndTime == "" {
		return fmt.Sprintf("%s on %s", s.StartTime, s.Date)
	}
	return fmt.Sprintf("%s - %s on %s", s.StartTime, s.EndTime, s.Date)
}

// EventDetails is the creation payload of an AI query response.
type EventDetails struct {
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	EventType          EventType `json:"eventType,omitempty"`
	Priority           Priority  `json:"priority,omitempty"`
	Participants       []string  `json:"participants,omitempty"`
	SuggestedTimeSlots []Slot    `json:"suggestedTimeSlots,omitempty"`
}

// QueryResponse is the wire shape of POST /ai/query.
type QueryResponse struct {
	Success      *bool         `json:"success,omitempty"`
	Type         QueryType     `json:"type"`
	Message      string        `json:"message"`
	EventDetails *EventDetails `json:"eventDetails,omitempty"`
	Events       []Event       `json:"events,omitempty"`
}
