// Package slot converts the backend's suggested time slot strings,
// "<startTime> - <endTime> on <date>", into concrete start and end times.
package slot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hray3182/CalBuddy/internal/models"
)

// ErrMalformed is returned for any string that does not follow the slot format.
var ErrMalformed = errors.New("malformed time slot")

// Parse reads display in loc. A missing end time defaults to one hour after
// the start and a slot ending past midnight ends on the next day.
func Parse(display string, loc *time.Location) (start, end time.Time, err error) {
	left, date, ok := strings.Cut(strings.TrimSpace(display), " on ")
	if !ok {
		return start, end, fmt.Errorf("%w: %q has no date", ErrMalformed, display)
	}

	day, err := models.ParseDateKey(date)
	if err != nil {
		return start, end, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	startText, endText, hasEnd := strings.Cut(left, " - ")
	sh, sm, err := parseClock(startText)
	if err != nil {
		return start, end, err
	}
	start = time.Date(day.Year, day.Month, day.Day, sh, sm, 0, 0, loc)

	if !hasEnd || strings.TrimSpace(endText) == "" {
		return start, start.Add(models.DefaultDuration), nil
	}
	eh, em, err := parseClock(endText)
	if err != nil {
		return start, end, err
	}
	end = time.Date(day.Year, day.Month, day.Day, eh, em, 0, 0, loc)
	// An end at or before the start belongs to the next day
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// ParseSlot parses s using its display form.
func ParseSlot(s models.Slot, loc *time.Location) (time.Time, time.Time, error) {
	return Parse(s.String(), loc)
}

// parseClock converts "H:MM AM" or "HH:MM PM" to a 24-hour hour and minute.
func parseClock(s string) (int, int, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: bad time %q", ErrMalformed, s)
	}

	hh, mm, ok := strings.Cut(fields[0], ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: bad time %q", ErrMalformed, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrMalformed, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrMalformed, s)
	}

	switch strings.ToUpper(fields[1]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	default:
		return 0, 0, fmt.Errorf("%w: missing AM/PM in %q", ErrMalformed, s)
	}
	return hour, minute, nil
}
