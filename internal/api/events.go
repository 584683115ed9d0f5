package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hray3182/CalBuddy/internal/models"
)

func (c *Client) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := c.do(ctx, http.MethodGet, "/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) CreateEvent(ctx context.Context, draft models.EventDraft) (*models.Event, error) {
	event := &models.Event{}
	if err := c.do(ctx, http.MethodPost, "/events", draft, event); err != nil {
		return nil, err
	}
	return event, nil
}

// UpdateEvent sends the full field set; the backend replaces the event.
func (c *Client) UpdateEvent(ctx context.Context, id string, fields models.EventDraft) (*models.Event, error) {
	event := &models.Event{}
	if err := c.do(ctx, http.MethodPatch, "/events/"+url.PathEscape(id), fields, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id), nil, nil)
}
