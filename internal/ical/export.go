// Package ical writes the user's events as an iCalendar document.
package ical

import (
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/hray3182/CalBuddy/internal/models"
)

const productID = "-//CalBuddy//Calendar Export//EN"

// PropertyParticipants holds the free-text participant names, which are not
// calendar addresses and so cannot be ATTENDEEs.
const PropertyParticipants ics.ComponentProperty = "X-CALBUDDY-PARTICIPANTS"

// icalPriority maps to RFC 5545 PRIORITY: 1 highest, 9 lowest.
func icalPriority(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return "1"
	case models.PriorityLow:
		return "9"
	default:
		return "5"
	}
}

// Build converts events into a calendar. stamp is used as DTSTAMP.
func Build(events []models.Event, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetName("CalBuddy")

	for i := range events {
		e := &events[i]
		ev := cal.AddEvent(e.ID + "@calbuddy")
		ev.SetDtStampTime(stamp)
		if e.CreatedAt != nil {
			ev.SetCreatedTime(*e.CreatedAt)
		}
		if e.UpdatedAt != nil {
			ev.SetModifiedAt(*e.UpdatedAt)
		}
		ev.SetStartAt(e.StartDate)
		end := e.EndDate
		if end.IsZero() {
			end = e.StartDate.Add(models.DefaultDuration)
		}
		ev.SetEndAt(end)
		ev.SetSummary(e.Title)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		ev.SetProperty(ics.ComponentPropertyPriority, icalPriority(e.Priority))
		if e.EventType != "" {
			ev.SetProperty(ics.ComponentPropertyCategories, strings.ToUpper(string(e.EventType)))
		}
		if len(e.Participants) > 0 {
			ev.SetProperty(PropertyParticipants, strings.Join(e.Participants, ", "))
		}
	}
	return cal
}

// Export writes events to w as an .ics document.
func Export(w io.Writer, events []models.Event, stamp time.Time) error {
	_, err := io.WriteString(w, Build(events, stamp).Serialize())
	return err
}
