package api

import (
	"context"
	"net/http"

	"github.com/hray3182/CalBuddy/internal/models"
)

func (c *Client) SubscriptionStatus(ctx context.Context) (*models.Subscription, error) {
	sub := &models.Subscription{}
	if err := c.do(ctx, http.MethodGet, "/subscriptions/status", nil, sub); err != nil {
		return nil, err
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionFree
	}
	return sub, nil
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
	Plan    string `json:"plan"`
}

// CreateCheckoutSession returns the payment page the user should be sent to.
func (c *Client) CreateCheckoutSession(ctx context.Context, priceID, plan string) (*models.CheckoutSession, error) {
	session := &models.CheckoutSession{}
	req := checkoutRequest{PriceID: priceID, Plan: plan}
	if err := c.do(ctx, http.MethodPost, "/subscriptions/create-checkout-session", req, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CheckOrCreateUser is an idempotent upsert keyed by the identity provider id.
func (c *Client) CheckOrCreateUser(ctx context.Context, profile models.UserProfile) (*models.User, error) {
	user := &models.User{}
	if err := c.do(ctx, http.MethodPost, "/users/check-or-create", profile, user); err != nil {
		return nil, err
	}
	return user, nil
}
