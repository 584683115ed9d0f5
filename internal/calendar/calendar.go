// Package calendar lays out the store's calendar index as a month grid and a
// day drawer. It only reads projections.
package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hray3182/CalBuddy/internal/models"
)

type Cell struct {
	Key     models.DateKey
	InMonth bool
	Today   bool
	Count   int
}

type Month struct {
	Year      int
	Month     time.Month
	WeekStart time.Weekday
	Weeks     [][7]Cell
}

// BuildMonth returns full weeks covering the month, starting on weekStart.
func BuildMonth(year int, month time.Month, data map[models.DateKey]*models.DayBucket, today models.DateKey, weekStart time.Weekday) Month {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	cursor := first.AddDate(0, 0, -offset)

	m := Month{Year: year, Month: month, WeekStart: weekStart}
	for {
		var week [7]Cell
		for i := range week {
			key := models.KeyOf(cursor)
			cell := Cell{Key: key, InMonth: cursor.Month() == month, Today: key == today}
			if b, ok := data[key]; ok {
				cell.Count = b.Count
			}
			week[i] = cell
			cursor = cursor.AddDate(0, 0, 1)
		}
		m.Weeks = append(m.Weeks, week)
		if cursor.Month() != month {
			break
		}
	}
	return m
}

// Total is the number of events inside the month.
func (m Month) Total() int {
	n := 0
	for _, w := range m.Weeks {
		for _, c := range w {
			if c.InMonth {
				n += c.Count
			}
		}
	}
	return n
}

// Render draws the grid as monospace text. Days with events carry a dot,
// today is bracketed.
func (m Month) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s %d**\n```\n", m.Month, m.Year)
	for i := 0; i < 7; i++ {
		day := time.Weekday((int(m.WeekStart) + i) % 7)
		fmt.Fprintf(&sb, " %-3s", day.String()[:2])
	}
	sb.WriteString("\n")
	for _, w := range m.Weeks {
		for _, c := range w {
			if !c.InMonth {
				sb.WriteString("    ")
				continue
			}
			mark := " "
			if c.Count > 0 {
				mark = "•"
			}
			if c.Today {
				fmt.Fprintf(&sb, "[%2d]", c.Key.Day)
			} else {
				fmt.Fprintf(&sb, " %2d%s", c.Key.Day, mark)
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("```")
	if total := m.Total(); total > 0 {
		fmt.Fprintf(&sb, "\n%d event(s) this month", total)
	}
	return sb.String()
}

// Day is the drawer content of one date.
type Day struct {
	Key     models.DateKey
	Entries []models.CalendarEntry
}

// BuildDay sorts the bucket entries by start time. bucket may be nil.
func BuildDay(key models.DateKey, bucket *models.DayBucket) Day {
	d := Day{Key: key}
	if bucket == nil {
		return d
	}
	d.Entries = append(d.Entries, bucket.Events...)
	sort.SliceStable(d.Entries, func(i, j int) bool {
		return d.Entries[i].Event.StartDate.Before(d.Entries[j].Event.StartDate)
	})
	return d
}

func (d Day) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 **%s**\n", d.Key)
	if len(d.Entries) == 0 {
		sb.WriteString("\nNo events scheduled")
		return sb.String()
	}
	for _, e := range d.Entries {
		fmt.Fprintf(&sb, "\n%s  **%s**\n", e.Time, e.Title)
		fmt.Fprintf(&sb, "   %s · %s · `%s`\n", e.Note, e.Organizer, e.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

var colorMarks = map[string]string{
	"red":    "🔴",
	"blue":   "🔵",
	"green":  "🟢",
	"purple": "🟣",
}

// Agenda renders a today or tomorrow list.
func Agenda(title string, events []models.DisplayEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", title)
	if len(events) == 0 {
		sb.WriteString("\nNo events scheduled")
		return sb.String()
	}
	for _, e := range events {
		mark, ok := colorMarks[e.Color]
		if !ok {
			mark = "⚪"
		}
		fmt.Fprintf(&sb, "\n%s %s  %s  `%s`", mark, e.Time, e.Title, e.ID)
	}
	return sb.String()
}

// ParseMonth reads "YYYY-M".
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-1", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return t.Year(), t.Month(), nil
}
