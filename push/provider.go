//go:generate go run go.uber.org/mock/mockgen -source=provider.go -destination=../mocks/mock_push_provider.go -package=mocks

// Package push abstracts the offline notification provider. The core
// only knows how to hand a payload to a token; credentials and provider
// choice live outside this repository.
package push

import (
	"context"

	"directory-chat/domain"
)

// Payload is the provider-agnostic notification content.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Provider sends one payload to one device token.
//
// A permanent token fault is reported as errors.ErrTokenUnregistered
// (wrapped or bare); callers delete the subscription in response. Any
// other error is transient from the core's point of view: logged,
// never retried here.
type Provider interface {
	Send(ctx context.Context, token string, payload Payload) error
}

// SubscriptionStore is the token storage the dispatcher consumes.
// Implemented by repositories.PushSubscriptionRepository.
type SubscriptionStore interface {
	Save(sub domain.PushSubscription) error
	TokensForUser(userID string) ([]domain.PushSubscription, error)
	DeleteToken(token string) error
}
