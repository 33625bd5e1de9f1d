package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/hireloop-backend/api/responses"
	paymentsvc "github.com/angelmondragon/hireloop-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/hireloop-backend/pkg/errors"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/hireloop-backend/pkg/stripe"
)

const maxWebhookBodyBytes = 1 << 20

type webhookVerifier interface {
	VerifyWebhook(ctx context.Context, payload []byte, signatureHeader string) (*pkgstripe.Event, error)
}

type webhookEventHandler interface {
	HandleWebhookEvent(ctx context.Context, event *pkgstripe.Event) (paymentsvc.Result, error)
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// StripeWebhook handles Stripe payment intent and refund events.
// The guard is optional; a nil guard or an unavailable store falls through to the database.
func StripeWebhook(svc webhookEventHandler, verifier webhookVerifier, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodePayloadTooLarge, "webhook body exceeds limit"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		ctx = logg.WithField(ctx, "remote_addr", r.RemoteAddr)

		event, err := verifier.VerifyWebhook(ctx, payload, r.Header.Get(pkgstripe.SignatureHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "invalid signature"))
			return
		}

		ctx = logg.WithFields(ctx, map[string]any{
			"event_id":            event.EventID,
			"event_type":          event.Type,
			"provider_payment_id": event.ProviderPaymentID,
		})

		guarded := false
		if guard != nil {
			alreadyProcessed, err := guard.CheckAndMark(ctx, event.EventID)
			switch {
			case err != nil:
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "webhook.guard_unavailable")
			case alreadyProcessed:
				logg.Info(ctx, "webhook.duplicate_delivery")
				responses.WriteSuccess(w, receivedResponse{Received: true})
				return
			default:
				guarded = true
			}
		}

		result, err := svc.HandleWebhookEvent(ctx, event)
		if err != nil {
			if guarded {
				if releaseErr := guard.Release(ctx, event.EventID); releaseErr != nil {
					logg.Warn(logg.WithField(ctx, "error", releaseErr.Error()), "webhook.guard_release_failed")
				}
			}
			ctx = logg.WithField(ctx, "retryable", pkgerrors.Retryable(err))
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logg.Info(logg.WithField(ctx, "result", string(result)), "webhook.processed")
		responses.WriteSuccess(w, receivedResponse{Received: true})
	}
}
