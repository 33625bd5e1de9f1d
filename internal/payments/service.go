package payments

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hireloop-backend/pkg/config"
	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hireloop-backend/pkg/errors"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
	"github.com/angelmondragon/hireloop-backend/pkg/pagination"
	pkgstripe "github.com/angelmondragon/hireloop-backend/pkg/stripe"
)

const maxIdempotencyKeyLength = 255

// Result classifies how a webhook event was handled. None of them is an error for the provider.
type Result string

const (
	ResultApplied           Result = "applied"
	ResultDuplicate         Result = "duplicate"
	ResultIgnored           Result = "ignored"
	ResultNotFound          Result = "not_found"
	ResultInvalidTransition Result = "invalid_transition"
)

type gateway interface {
	CreateIntent(ctx context.Context, req pkgstripe.IntentRequest) (*pkgstripe.Intent, error)
}

type subscriptionApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, now time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type metricsRecorder interface {
	IncTransition(from, to string)
	IncWebhookResult(outcome, result string)
}

// Service is the payment attempt state machine.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*models.PaymentAttempt, bool, error)
	HandleWebhookEvent(ctx context.Context, event *pkgstripe.Event) (Result, error)
	Cancel(ctx context.Context, userID, attemptID uuid.UUID) (*models.PaymentAttempt, error)
	Refund(ctx context.Context, attemptID uuid.UUID) (*models.PaymentAttempt, error)
	Get(ctx context.Context, userID, attemptID uuid.UUID) (*models.PaymentAttempt, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Repo              Repository
	Gateway           gateway
	Applier           subscriptionApplier
	TransactionRunner txRunner
	Config            config.PaymentsConfig
	Logger            *logger.Logger
	Metrics           metricsRecorder
	Clock             func() time.Time
}

// CreateIntentInput captures a checkout request.
type CreateIntentInput struct {
	UserID         uuid.UUID
	IdempotencyKey string
	Amount         int64
	Currency       string
	Tier           string
	Months         int
	IPAddress      string
	UserAgent      string
}

type service struct {
	repo     Repository
	gateway  gateway
	applier  subscriptionApplier
	txRunner txRunner
	cfg      config.PaymentsConfig
	logg     *logger.Logger
	metrics  metricsRecorder
	now      func() time.Time
}

type webhookRule struct {
	to     enums.PaymentStatus
	fields func(event *pkgstripe.Event, now time.Time) TransitionFields
}

var webhookRules = map[pkgstripe.Outcome]webhookRule{
	pkgstripe.OutcomeSuccess: {
		to: enums.PaymentStatusCompleted,
		fields: func(_ *pkgstripe.Event, now time.Time) TransitionFields {
			return TransitionFields{CompletedAt: &now}
		},
	},
	pkgstripe.OutcomeFailure: {
		to: enums.PaymentStatusFailed,
		fields: func(event *pkgstripe.Event, _ time.Time) TransitionFields {
			code := event.ErrorCode
			message := event.ErrorMessage
			return TransitionFields{ErrorCode: &code, ErrorMessage: &message}
		},
	},
	pkgstripe.OutcomeProcessing: {
		to: enums.PaymentStatusProcessing,
		fields: func(*pkgstripe.Event, time.Time) TransitionFields {
			return TransitionFields{}
		},
	},
	pkgstripe.OutcomeRefunded: {
		to: enums.PaymentStatusRefunded,
		fields: func(_ *pkgstripe.Event, now time.Time) TransitionFields {
			return TransitionFields{RefundedAt: &now}
		},
	},
}

// NewService validates dependencies and builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if params.Applier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription applier required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Config.MaxMonths <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "max subscription months required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		gateway:  params.Gateway,
		applier:  params.Applier,
		txRunner: params.TransactionRunner,
		cfg:      params.Config,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      func() time.Time { return now().UTC() },
	}, nil
}

// CreateIntent returns the attempt for the idempotency key, creating it with the
// provider when the key is new. The bool reports whether this call created it.
func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*models.PaymentAttempt, bool, error) {
	currency, tier, err := s.validateCreate(&input)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
	switch {
	case err == nil:
		replay, replayErr := ownedReplay(existing, input.UserID)
		return replay, false, replayErr
	case !errors.Is(err, ErrRecordNotFound):
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment attempt")
	}

	// Racing requests reach the provider with the same Idempotency-Key and get the same intent back.
	intent, err := s.gateway.CreateIntent(ctx, pkgstripe.IntentRequest{
		Amount:         input.Amount,
		Currency:       currency.String(),
		IdempotencyKey: input.IdempotencyKey,
		Metadata: map[string]string{
			"user_id":             input.UserID.String(),
			"subscription_tier":   tier.String(),
			"subscription_months": strconv.Itoa(input.Months),
		},
	})
	if err != nil {
		if errors.Is(err, pkgstripe.ErrIdempotencyKeyReused) {
			return s.resolveReusedKey(ctx, input)
		}
		if errors.Is(err, pkgstripe.ErrGatewayUnavailable) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider unavailable")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment request")
	}

	attempt := &models.PaymentAttempt{
		ID:                 uuid.New(),
		IdempotencyKey:     input.IdempotencyKey,
		Provider:           enums.PaymentProviderStripe,
		ProviderPaymentID:  optionalString(intent.ProviderPaymentID),
		Status:             enums.PaymentStatusPending,
		UserID:             input.UserID,
		Amount:             input.Amount,
		Currency:           currency,
		SubscriptionTier:   tier,
		SubscriptionMonths: input.Months,
		IPAddress:          optionalString(input.IPAddress),
		UserAgent:          optionalString(input.UserAgent),
	}
	if intent.ClientSecret != "" {
		attempt.ProviderClientSecret = &intent.ClientSecret
	}

	if err := s.repo.Create(ctx, attempt); err != nil {
		if !errors.Is(err, ErrDuplicateIdempotencyKey) {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment attempt")
		}
		winner, findErr := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
		if findErr != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load winning payment attempt")
		}
		replay, replayErr := ownedReplay(winner, input.UserID)
		return replay, false, replayErr
	}

	if s.logg != nil {
		logCtx := s.logg.WithAttemptID(ctx, attempt.ID.String())
		logCtx = s.logg.WithField(logCtx, "provider_payment_id", intent.ProviderPaymentID)
		s.logg.Info(logCtx, "payment.intent_created")
	}
	return attempt, true, nil
}

func (s *service) validateCreate(input *CreateIntentInput) (enums.Currency, enums.SubscriptionTier, error) {
	input.IdempotencyKey = strings.TrimSpace(input.IdempotencyKey)
	if input.UserID == uuid.Nil {
		return "", "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if input.IdempotencyKey == "" || len(input.IdempotencyKey) > maxIdempotencyKeyLength {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "idempotency_key must be 1-255 characters")
	}
	if input.Amount <= 0 {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive number of minor units")
	}
	currency, err := enums.ParseCurrency(input.Currency)
	if err != nil || !s.cfg.CurrencyAllowed(currency.String()) {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "currency not supported").
			WithDetails(map[string]any{"currency": input.Currency})
	}
	tier, err := enums.ParseSubscriptionTier(strings.ToLower(strings.TrimSpace(input.Tier)))
	if err != nil || !tier.IsPaid() {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "tier must be a paid subscription tier").
			WithDetails(map[string]any{"tier": input.Tier})
	}
	if input.Months < 1 || input.Months > s.cfg.MaxMonths {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "months out of range").
			WithDetails(map[string]any{"min": 1, "max": s.cfg.MaxMonths})
	}
	return currency, tier, nil
}

// resolveReusedKey handles the provider rejecting a key it saw with other
// parameters. A persisted winner is replayed; otherwise the key cannot be used.
func (s *service) resolveReusedKey(ctx context.Context, input CreateIntentInput) (*models.PaymentAttempt, bool, error) {
	winner, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
	switch {
	case err == nil:
		replay, replayErr := ownedReplay(winner, input.UserID)
		return replay, false, replayErr
	case errors.Is(err, ErrRecordNotFound):
		s.warn(ctx, "payment.idempotency_key_reused")
		return nil, false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used with different parameters")
	default:
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment attempt")
	}
}

// ownedReplay returns the stored attempt unchanged, unless it belongs to someone else.
func ownedReplay(attempt *models.PaymentAttempt, userID uuid.UUID) (*models.PaymentAttempt, error) {
	if attempt.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used")
	}
	return attempt, nil
}

// HandleWebhookEvent applies a verified provider event. Business outcomes are
// reported through Result; only infrastructure failures return an error.
func (s *service) HandleWebhookEvent(ctx context.Context, event *pkgstripe.Event) (Result, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_id":            event.EventID,
			"provider_payment_id": event.ProviderPaymentID,
			"outcome":             string(event.Outcome),
		})
	}

	rule, ok := webhookRules[event.Outcome]
	if !ok {
		return s.webhookResult(event, ResultIgnored), nil
	}

	attempt, err := s.repo.FindByProviderPaymentID(ctx, event.ProviderPaymentID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			s.warn(ctx, "payment.webhook_unknown_payment")
			return s.webhookResult(event, ResultNotFound), nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment attempt")
	}
	if s.logg != nil {
		ctx = s.logg.WithAttemptID(ctx, attempt.ID.String())
	}

	now := s.now()
	previous := attempt.Status
	won, err := s.transition(ctx, attempt, SourcesFor(rule.to), rule.to, rule.fields(event, now), now)
	if err != nil {
		return "", err
	}
	if won {
		s.recordTransition(previous, rule.to)
		return s.webhookResult(event, ResultApplied), nil
	}

	current, err := s.repo.FindByID(ctx, attempt.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment attempt")
	}
	if current.Status == rule.to {
		return s.webhookResult(event, ResultDuplicate), nil
	}

	if s.logg != nil {
		s.warn(s.logg.WithField(ctx, "status", current.Status.String()), "payment.webhook_invalid_transition")
	}
	return s.webhookResult(event, ResultInvalidTransition), nil
}

// transition runs the conditional update and, when it reaches completed, the
// subscription applier inside one transaction. A failing applier rolls the status back.
func (s *service) transition(ctx context.Context, attempt *models.PaymentAttempt, from []enums.PaymentStatus, to enums.PaymentStatus, fields TransitionFields, now time.Time) (bool, error) {
	var won bool
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.repo.WithTx(tx).TransitionStatus(ctx, attempt.ID, from, to, fields)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		won = true
		applyFields(attempt, to, fields, now)
		if to != enums.PaymentStatusCompleted {
			return nil
		}
		return s.applier.Apply(ctx, tx, attempt, now)
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition payment attempt")
	}
	return won, nil
}

func applyFields(attempt *models.PaymentAttempt, to enums.PaymentStatus, fields TransitionFields, now time.Time) {
	attempt.Status = to
	attempt.UpdatedAt = now
	if fields.ProviderPaymentID != nil {
		attempt.ProviderPaymentID = fields.ProviderPaymentID
	}
	if fields.ErrorCode != nil {
		attempt.ErrorCode = fields.ErrorCode
	}
	if fields.ErrorMessage != nil {
		attempt.ErrorMessage = fields.ErrorMessage
	}
	if fields.CompletedAt != nil {
		attempt.CompletedAt = fields.CompletedAt
	}
	if fields.RefundedAt != nil {
		attempt.RefundedAt = fields.RefundedAt
	}
}

// Cancel is only valid while the attempt is still pending.
func (s *service) Cancel(ctx context.Context, userID, attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	attempt, err := s.Get(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.clientTransition(ctx, attempt, enums.PaymentStatusCancelled, TransitionFields{})
}

// Refund records a refund issued from the provider dashboard. The subscription is left untouched.
func (s *service) Refund(ctx context.Context, attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	attempt, err := s.find(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return s.clientTransition(ctx, attempt, enums.PaymentStatusRefunded, TransitionFields{RefundedAt: &now})
}

func (s *service) clientTransition(ctx context.Context, attempt *models.PaymentAttempt, to enums.PaymentStatus, fields TransitionFields) (*models.PaymentAttempt, error) {
	previous := attempt.Status
	won, err := s.transition(ctx, attempt, SourcesFor(to), to, fields, s.now())
	if err != nil {
		return nil, err
	}
	if !won {
		current, findErr := s.find(ctx, attempt.ID)
		if findErr != nil {
			return nil, findErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrInvalidStateTransition, "payment attempt cannot change status").
			WithDetails(map[string]any{"status": current.Status.String(), "requested": to.String()})
	}
	s.recordTransition(previous, to)
	if s.logg != nil {
		logCtx := s.logg.WithAttemptID(ctx, attempt.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "status", to.String()), "payment.status_changed")
	}
	return attempt, nil
}

// Get returns the attempt when it belongs to the user. Other users see not found.
func (s *service) Get(ctx context.Context, userID, attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	attempt, err := s.find(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrRecordNotFound, "payment attempt not found")
	}
	return attempt, nil
}

// List pages through the user's attempts, newest first.
func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, params.UserID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment attempts")
	}
	rows, next := pagination.Page(rows, params.Limit, func(row models.PaymentAttempt) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})

	items := make([]AttemptDTO, len(rows))
	for i := range rows {
		items[i] = NewRedactedAttemptDTO(&rows[i])
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) find(ctx context.Context, attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	attempt, err := s.repo.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}
	return attempt, nil
}

func (s *service) webhookResult(event *pkgstripe.Event, result Result) Result {
	if s.metrics != nil {
		s.metrics.IncWebhookResult(string(event.Outcome), string(result))
	}
	return result
}

func (s *service) recordTransition(from, to enums.PaymentStatus) {
	if s.metrics != nil {
		s.metrics.IncTransition(from.String(), to.String())
	}
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
