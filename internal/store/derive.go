package store

import (
	"time"

	"github.com/hray3182/CalBuddy/internal/models"
)

const timeLayout = "03:04 PM"

// TodayColor maps priority to the color used in the today agenda.
func TodayColor(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return "red"
	case models.PriorityMedium:
		return "blue"
	default:
		return "green"
	}
}

// TomorrowColor maps priority to the color used in the tomorrow agenda.
// High priority is purple here, not red.
func TomorrowColor(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return "purple"
	case models.PriorityMedium:
		return "blue"
	default:
		return "green"
	}
}

type day int

const (
	dayOther day = iota
	dayToday
	dayTomorrow
)

// classify compares the local calendar date of the event start with now's
// date. Both are evaluated in now's location.
func classify(e *models.Event, now time.Time) day {
	key := models.KeyOf(e.StartDate.In(now.Location()))
	switch key {
	case models.KeyOf(now):
		return dayToday
	case models.KeyOf(now.AddDate(0, 0, 1)):
		return dayTomorrow
	}
	return dayOther
}

func displayEvent(e *models.Event, loc *time.Location, color func(models.Priority) string) models.DisplayEvent {
	return models.DisplayEvent{
		ID:    e.ID,
		Time:  e.StartDate.In(loc).Format(timeLayout),
		Title: e.Title,
		Color: color(e.Priority),
	}
}

func calendarEntry(e *models.Event, loc *time.Location) models.CalendarEntry {
	note := e.Description
	if note == "" {
		note = models.NoDescription
	}
	return models.CalendarEntry{
		ID:        e.ID,
		Time:      e.StartDate.In(loc).Format(timeLayout),
		Title:     e.Title,
		Note:      note,
		Organizer: models.DefaultOrganizer,
		Event:     e.Clone(),
	}
}

type projections struct {
	today    []models.DisplayEvent
	tomorrow []models.DisplayEvent
	calendar map[models.DateKey]*models.DayBucket
}

// rebuild derives every projection from scratch.
func rebuild(items []models.Event, now time.Time) projections {
	p := projections{
		today:    []models.DisplayEvent{},
		tomorrow: []models.DisplayEvent{},
		calendar: make(map[models.DateKey]*models.DayBucket),
	}
	for i := range items {
		p.add(&items[i], now)
	}
	return p
}

// add places e in the agenda it belongs to and in its calendar day.
func (p *projections) add(e *models.Event, now time.Time) {
	loc := now.Location()
	switch classify(e, now) {
	case dayToday:
		p.today = append(p.today, displayEvent(e, loc, TodayColor))
	case dayTomorrow:
		p.tomorrow = append(p.tomorrow, displayEvent(e, loc, TomorrowColor))
	}

	key := models.KeyOf(e.StartDate.In(loc))
	bucket, ok := p.calendar[key]
	if !ok {
		bucket = &models.DayBucket{Events: []models.CalendarEntry{}}
		p.calendar[key] = bucket
	}
	bucket.Events = append(bucket.Events, calendarEntry(e, loc))
	bucket.Count++
}

// remove drops id from both agendas and from every calendar day, deleting
// days that become empty. The old date is not known, so every key is searched.
func (p *projections) remove(id string) {
	p.today = filterDisplay(p.today, id)
	p.tomorrow = filterDisplay(p.tomorrow, id)

	for key, bucket := range p.calendar {
		kept := bucket.Events[:0]
		for _, entry := range bucket.Events {
			if entry.ID != id {
				kept = append(kept, entry)
			}
		}
		bucket.Events = kept
		bucket.Count = len(kept)
		if bucket.Count == 0 {
			delete(p.calendar, key)
		}
	}
}

func filterDisplay(list []models.DisplayEvent, id string) []models.DisplayEvent {
	out := list[:0]
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func indexOf(items []models.Event, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
