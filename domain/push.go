package domain

import "time"

// PushSubscription binds a provider device token to a user.
// Unique per token; deleted when the provider reports the token invalid
// or when the user unsubscribes explicitly.
type PushSubscription struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
}
