package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionEntitlement is a read-only fact consumed, not owned, by this
// core: whether a user's subscription currently grants reminder delivery.
type SubscriptionEntitlement struct {
	UserID    uuid.UUID `json:"user_id"`
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Entitled reports whether delivery is granted at the given instant.
func (e *SubscriptionEntitlement) Entitled(now time.Time) bool {
	return e.Active && now.Before(e.ExpiresAt)
}

// EntitlementProvider answers entitlement checks for the dispatcher.
type EntitlementProvider interface {
	IsActivePremium(ctx context.Context, userID uuid.UUID) (bool, error)
}
