package payments

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/hireloop-backend/api/middleware"
	"github.com/angelmondragon/hireloop-backend/api/responses"
	"github.com/angelmondragon/hireloop-backend/api/validators"
	paymentsvc "github.com/angelmondragon/hireloop-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/hireloop-backend/pkg/errors"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
	"github.com/angelmondragon/hireloop-backend/pkg/pagination"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxUserAgentLength   = 512
)

type createIntentRequest struct {
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=255,printascii"`
	Amount         int64  `json:"amount" validate:"required,min=1"`
	Currency       string `json:"currency" validate:"required,len=3"`
	Tier           string `json:"tier" validate:"required,paid_tier"`
	Months         int    `json:"months" validate:"required,min=1"`
}

// CreateIntent records a payment attempt and returns the Stripe client secret.
// A replayed idempotency key answers 200 with the original attempt.
func CreateIntent(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(payload.IdempotencyKey)
		if key == "" {
			key = strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
		}

		attempt, created, err := svc.CreateIntent(r.Context(), paymentsvc.CreateIntentInput{
			UserID:         userID,
			IdempotencyKey: key,
			Amount:         payload.Amount,
			Currency:       payload.Currency,
			Tier:           payload.Tier,
			Months:         payload.Months,
			IPAddress:      clientIP(r),
			UserAgent:      validators.SanitizeString(r.UserAgent(), maxUserAgentLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, paymentsvc.NewAttemptDTO(attempt))
	}
}

// Get returns one of the caller's payment attempts.
func Get(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attemptID, err := attemptIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempt, err := svc.Get(r.Context(), userID, attemptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentsvc.NewAttemptDTO(attempt))
	}
}

// List pages through the caller's payment history via ?limit= and ?cursor=.
func List(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		params, err := pagination.ParseParams(query.Get("limit"), query.Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination"))
			return
		}

		result, err := svc.List(r.Context(), paymentsvc.ListParams{UserID: userID, Params: params})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Cancel abandons one of the caller's attempts while it is still pending.
func Cancel(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attemptID, err := attemptIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempt, err := svc.Cancel(r.Context(), userID, attemptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentsvc.NewAttemptDTO(attempt))
	}
}

// AdminRefund marks a completed attempt as refunded. Role checks happen in the router.
func AdminRefund(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		attemptID, err := attemptIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempt, err := svc.Refund(r.Context(), attemptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentsvc.NewRedactedAttemptDTO(attempt))
	}
}

func attemptIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "attemptId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "attempt id is required")
	}
	attemptID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attempt id")
	}
	return attemptID, nil
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
