package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/CalBuddy/internal/models"
)

var (
	errUsageNew  = errors.New("usage: /new <title> | <start> | <end> [| priority | type | participants]")
	errUsageEdit = errors.New("usage: /edit <id> <key>=<value>; ...")
)

var timeLayouts = []string{
	"2006-1-2 15:04",
	"2006-1-2 3:04 PM",
	"2006-1-2 3:04PM",
	"2006-1-2T15:04",
}

// parseWhen reads a date and time in loc. The date may be "today" or
// "tomorrow" relative to now.
func parseWhen(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, errors.New("missing time")
	}

	day, rest, _ := strings.Cut(s, " ")
	local := now.In(loc)
	switch strings.ToLower(day) {
	case "today":
		s = local.Format("2006-1-2") + " " + rest
	case "tomorrow":
		s = local.AddDate(0, 0, 1).Format("2006-1-2") + " " + rest
	}
	s = strings.ToUpper(s)

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, use 2024-6-15 14:00", s)
}

// parseNewArgs reads "title | start | end [| priority | type | participants]".
// The end may be left empty for the default duration.
func parseNewArgs(args string, now time.Time, loc *time.Location) (models.EventDraft, error) {
	fields := strings.Split(args, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 2 || fields[0] == "" {
		return models.EventDraft{}, errUsageNew
	}

	d := models.EventDraft{Title: fields[0]}
	var err error
	if d.StartDate, err = parseWhen(fields[1], now, loc); err != nil {
		return models.EventDraft{}, fmt.Errorf("start: %w", err)
	}
	if len(fields) > 2 && fields[2] != "" {
		if d.EndDate, err = parseWhen(fields[2], now, loc); err != nil {
			return models.EventDraft{}, fmt.Errorf("end: %w", err)
		}
	}
	if len(fields) > 3 && fields[3] != "" {
		if err := setField(&d, "priority", fields[3], now, loc); err != nil {
			return models.EventDraft{}, err
		}
	}
	if len(fields) > 4 && fields[4] != "" {
		if err := setField(&d, "type", fields[4], now, loc); err != nil {
			return models.EventDraft{}, err
		}
	}
	if len(fields) > 5 {
		d.Participants = splitList(fields[5])
	}
	if !d.EndDate.IsZero() && d.EndDate.Before(d.StartDate) {
		return models.EventDraft{}, errors.New("end is before start")
	}
	d.Normalize()
	return d, nil
}

// parseEditArgs reads "<id> key=value; key=value".
func parseEditArgs(args string) (string, map[string]string, error) {
	id, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	if id == "" || strings.TrimSpace(rest) == "" {
		return "", nil, errUsageEdit
	}
	changes := make(map[string]string)
	for _, pair := range strings.Split(rest, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return "", nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		changes[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	if len(changes) == 0 {
		return "", nil, errUsageEdit
	}
	return id, changes, nil
}

// applyEdit merges changes into d. Moving the start keeps the duration unless
// the end is changed as well.
func applyEdit(d *models.EventDraft, changes map[string]string, now time.Time, loc *time.Location) error {
	duration := d.EndDate.Sub(d.StartDate)
	for k, v := range changes {
		if err := setField(d, k, v, now, loc); err != nil {
			return err
		}
	}
	if _, ok := changes["start"]; ok {
		if _, endSet := changes["end"]; !endSet && duration > 0 {
			d.EndDate = d.StartDate.Add(duration)
		}
	}
	if d.EndDate.Before(d.StartDate) {
		return errors.New("end is before start")
	}
	return nil
}

func setField(d *models.EventDraft, key, value string, now time.Time, loc *time.Location) error {
	switch key {
	case "title":
		if value == "" {
			return models.ErrEmptyTitle
		}
		d.Title = value
	case "description", "desc":
		d.Description = value
	case "start":
		t, err := parseWhen(value, now, loc)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		d.StartDate = t
	case "end":
		t, err := parseWhen(value, now, loc)
		if err != nil {
			return fmt.Errorf("end: %w", err)
		}
		d.EndDate = t
	case "priority":
		p := models.Priority(strings.ToLower(value))
		if !p.Valid() {
			return fmt.Errorf("invalid priority %q, use low, medium or high", value)
		}
		d.Priority = p
	case "type":
		t := models.EventType(strings.ToLower(value))
		if !t.Valid() {
			return fmt.Errorf("invalid type %q, use meeting, focus, break or other", value)
		}
		d.EventType = t
	case "participants":
		d.Participants = splitList(value)
	default:
		return fmt.Errorf("unknown field %q", key)
	}
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
