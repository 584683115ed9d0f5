package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hray3182/CalBuddy/internal/models"
)

type queryRequest struct {
	Message string `json:"message"`
}

// Interpret submits free text to the backend AI endpoint.
func (c *Client) Interpret(ctx context.Context, message string) (*models.QueryResponse, error) {
	resp := &models.QueryResponse{}
	if err := c.do(ctx, http.MethodPost, "/ai/query", queryRequest{Message: message}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GenerateEmbeddings asks the backend to (re)index every event of the user.
func (c *Client) GenerateEmbeddings(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/rag/generate-embeddings", nil, nil)
}

func (c *Client) GenerateEventEmbedding(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodPost, "/rag/generate-embedding/"+url.PathEscape(eventID), nil, nil)
}
