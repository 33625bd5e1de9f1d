package subscriptions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hireloop-backend/api/middleware"
	"github.com/angelmondragon/hireloop-backend/api/responses"
	subsvc "github.com/angelmondragon/hireloop-backend/internal/subscriptions"
	"github.com/angelmondragon/hireloop-backend/internal/users"
	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/hireloop-backend/pkg/errors"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
)

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type subscriptionResponse struct {
	Tier       string     `json:"tier"`
	StoredTier string     `json:"stored_tier"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Active     bool       `json:"active"`
}

// SubscriptionFetch reports the caller's effective subscription.
func SubscriptionFetch(reader userReader, clock func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if clock == nil {
		clock = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users repository unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := reader.FindByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user"))
			return
		}

		status := subsvc.Effective(user, clock().UTC())
		responses.WriteSuccess(w, subscriptionResponse{
			Tier:       status.Tier.String(),
			StoredTier: status.StoredTier.String(),
			ExpiresAt:  status.ExpiresAt,
			Active:     status.Active,
		})
	}
}
