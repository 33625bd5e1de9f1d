package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/pagination"
)

// AttemptDTO is the transport shape of a payment attempt.
type AttemptDTO struct {
	AttemptID            uuid.UUID  `json:"attempt_id"`
	ProviderClientSecret *string    `json:"provider_client_secret,omitempty"`
	Status               string     `json:"status"`
	Amount               int64      `json:"amount"`
	Currency             string     `json:"currency"`
	AmountDisplay        string     `json:"amount_display"`
	SubscriptionTier     string     `json:"subscription_tier"`
	SubscriptionMonths   int        `json:"subscription_months"`
	ErrorCode            *string    `json:"error_code,omitempty"`
	ErrorMessage         *string    `json:"error_message,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	RefundedAt           *time.Time `json:"refunded_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewAttemptDTO maps the persisted attempt for its owner.
func NewAttemptDTO(attempt *models.PaymentAttempt) AttemptDTO {
	return AttemptDTO{
		AttemptID:            attempt.ID,
		ProviderClientSecret: attempt.ProviderClientSecret,
		Status:               attempt.Status.String(),
		Amount:               attempt.Amount,
		Currency:             attempt.Currency.String(),
		AmountDisplay:        FormatAmount(attempt),
		SubscriptionTier:     attempt.SubscriptionTier.String(),
		SubscriptionMonths:   attempt.SubscriptionMonths,
		ErrorCode:            attempt.ErrorCode,
		ErrorMessage:         attempt.ErrorMessage,
		CompletedAt:          attempt.CompletedAt,
		RefundedAt:           attempt.RefundedAt,
		CreatedAt:            attempt.CreatedAt,
		UpdatedAt:            attempt.UpdatedAt,
	}
}

// ListParams selects one page of a user's payment history.
type ListParams struct {
	UserID uuid.UUID
	pagination.Params
}

// ListResult is one page of attempts plus the cursor for the next page.
type ListResult struct {
	Items  []AttemptDTO `json:"items"`
	Cursor string       `json:"cursor"`
}

// NewRedactedAttemptDTO omits the client secret. Only the create and get
// responses to the paying user carry it.
func NewRedactedAttemptDTO(attempt *models.PaymentAttempt) AttemptDTO {
	dto := NewAttemptDTO(attempt)
	dto.ProviderClientSecret = nil
	return dto
}

// FormatAmount renders minor units in major units, e.g. 50000 USD -> "500.00".
func FormatAmount(attempt *models.PaymentAttempt) string {
	exp := attempt.Currency.MinorUnitExponent()
	return decimal.New(attempt.Amount, -exp).StringFixed(exp)
}
