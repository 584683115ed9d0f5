package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionFree    SubscriptionStatus = "free"
	SubscriptionBasic   SubscriptionStatus = "basic"
	SubscriptionPremium SubscriptionStatus = "premium"
)

type Subscription struct {
	Status SubscriptionStatus `json:"status"`
}

type CheckoutSession struct {
	URL string `json:"url"`
}

// UserProfile is the body of the idempotent check-or-create call.
type UserProfile struct {
	ClerkID   string `json:"clerkId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type User struct {
	ID        string    `json:"_id"`
	ClerkID   string    `json:"clerkId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatSession binds a Telegram user to a CalBuddy session token.
type ChatSession struct {
	TelegramID int64     `json:"telegram_id"`
	Token      string    `json:"token"`
	ClerkID    string    `json:"clerk_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
