package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hireloop-backend/internal/users"
	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/enums"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
)

type userRepository interface {
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, tier enums.SubscriptionTier, expiresAt time.Time) error
}

// Applier grants the subscription purchased by a completed payment attempt.
type Applier struct {
	users func(tx *gorm.DB) userRepository
	logg  *logger.Logger
}

// NewApplier binds the applier to the users repository.
func NewApplier(repo *users.Repository, logg *logger.Logger) (*Applier, error) {
	if repo == nil {
		return nil, errors.New("users repository required")
	}
	return &Applier{
		users: func(tx *gorm.DB) userRepository { return repo.WithTx(tx) },
		logg:  logg,
	}, nil
}

// Apply must run inside the transaction that moved the attempt to completed.
// The new expiry stacks onto any time the user has left.
func (a *Applier) Apply(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, now time.Time) error {
	if attempt == nil {
		return errors.New("payment attempt required")
	}
	if attempt.Status != enums.PaymentStatusCompleted {
		return fmt.Errorf("attempt %s is %s, not completed", attempt.ID, attempt.Status)
	}
	if attempt.SubscriptionMonths <= 0 {
		return fmt.Errorf("attempt %s has no subscription months", attempt.ID)
	}

	repo := a.users(tx)
	user, err := repo.FindForUpdate(ctx, attempt.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", attempt.UserID, err)
	}

	expiresAt := ExtendExpiry(now, user.SubscriptionExpiresAt, attempt.SubscriptionMonths)
	if err := repo.UpdateSubscription(ctx, user.ID, attempt.SubscriptionTier, expiresAt); err != nil {
		return fmt.Errorf("update user %s subscription: %w", user.ID, err)
	}

	if a.logg != nil {
		logCtx := a.logg.WithFields(ctx, map[string]any{
			"user_id":    user.ID.String(),
			"tier":       attempt.SubscriptionTier.String(),
			"expires_at": expiresAt.Format(time.RFC3339),
		})
		a.logg.Info(logCtx, "subscription.applied")
	}
	return nil
}

// ExtendExpiry adds calendar months to the later of now and the current expiry.
func ExtendExpiry(now time.Time, current *time.Time, months int) time.Time {
	base := now.UTC()
	if current != nil && current.After(base) {
		base = current.UTC()
	}
	return base.AddDate(0, months, 0)
}
