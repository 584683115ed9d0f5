package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateKey identifies a local calendar day.
type DateKey struct {
	Year  int
	Month time.Month
	Day   int
}

// KeyOf returns the key of t's calendar date in t's own location.
func KeyOf(t time.Time) DateKey {
	y, m, d := t.Date()
	return DateKey{Year: y, Month: m, Day: d}
}

// String renders year-month-day with a 1-based month and no zero padding.
func (k DateKey) String() string {
	return fmt.Sprintf("%d-%d-%d", k.Year, int(k.Month), k.Day)
}

// Time returns midnight of the day in loc.
func (k DateKey) Time(loc *time.Location) time.Time {
	return time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, loc)
}

// Before orders keys chronologically.
func (k DateKey) Before(o DateKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Month != o.Month {
		return k.Month < o.Month
	}
	return k.Day < o.Day
}

// ParseDateKey accepts YYYY-M-D with or without zero padding.
func ParseDateKey(s string) (DateKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return DateKey{}, fmt.Errorf("invalid date %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return DateKey{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		nums[i] = n
	}
	if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 {
		return DateKey{}, fmt.Errorf("invalid date %q", s)
	}
	k := DateKey{Year: nums[0], Month: time.Month(nums[1]), Day: nums[2]}
	// Reject dates time.Date would normalise, such as 2024-2-31.
	if KeyOf(k.Time(time.UTC)) != k {
		return DateKey{}, fmt.Errorf("invalid date %q", s)
	}
	return k, nil
}

// DisplayEvent is the lightweight record shown in the today/tomorrow agendas.
type DisplayEvent struct {
	ID    string `json:"id"`
	Time  string `json:"time"`
	Title string `json:"title"`
	Color string `json:"color"`
}

const (
	NoDescription    = "No description provided"
	DefaultOrganizer = "You"
)

// CalendarEntry is one event inside a calendar day. Event is the full
// canonical record so an editor can be opened from here.
type CalendarEntry struct {
	ID        string `json:"id"`
	Time      string `json:"time"`
	Title     string `json:"title"`
	Note      string `json:"note"`
	Organizer string `json:"organizer"`
	Event     Event  `json:"fullEvent"`
}

type DayBucket struct {
	Count  int             `json:"count"`
	Events []CalendarEntry `json:"events"`
}

// Clone deep-copies the bucket.
func (b *DayBucket) Clone() *DayBucket {
	out := &DayBucket{Count: b.Count, Events: make([]CalendarEntry, len(b.Events))}
	for i, e := range b.Events {
		e.Event = e.Event.Clone()
		out.Events[i] = e
	}
	return out
}
