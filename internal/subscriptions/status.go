package subscriptions

import (
	"time"

	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/enums"
)

// Status is the subscription a user holds at a point in time.
type Status struct {
	Tier       enums.SubscriptionTier
	StoredTier enums.SubscriptionTier
	ExpiresAt  *time.Time
	Active     bool
}

// Effective resolves the tier a user is entitled to. A paid tier whose expiry
// has passed reads as free; the stored tier is left for the next renewal to overwrite.
func Effective(user *models.User, now time.Time) Status {
	status := Status{
		Tier:       enums.SubscriptionTierFree,
		StoredTier: user.SubscriptionTier,
		ExpiresAt:  user.SubscriptionExpiresAt,
	}
	if !user.SubscriptionTier.IsPaid() || user.SubscriptionExpiresAt == nil {
		return status
	}
	if user.SubscriptionExpiresAt.After(now) {
		status.Tier = user.SubscriptionTier
		status.Active = true
	}
	return status
}
