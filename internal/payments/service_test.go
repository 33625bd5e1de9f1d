package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/hireloop-backend/internal/subscriptions"
	"github.com/angelmondragon/hireloop-backend/internal/users"
	"github.com/angelmondragon/hireloop-backend/pkg/config"
	"github.com/angelmondragon/hireloop-backend/pkg/db"
	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hireloop-backend/pkg/errors"
	"github.com/angelmondragon/hireloop-backend/pkg/pagination"
	pkgstripe "github.com/angelmondragon/hireloop-backend/pkg/stripe"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type serviceFixture struct {
	db      *gorm.DB
	svc     Service
	repo    Repository
	gateway *fakeGateway
	applier *countingApplier
	metrics *fakeMetrics
	users   *users.Repository
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	conn := setupPaymentsTestDB(t)
	userRepo := users.NewRepository(conn)
	realApplier, err := subscriptions.NewApplier(userRepo, nil)
	require.NoError(t, err)

	f := &serviceFixture{
		db:      conn,
		repo:    NewRepository(conn),
		gateway: newFakeGateway(),
		applier: &countingApplier{next: realApplier},
		metrics: newFakeMetrics(),
		users:   userRepo,
	}
	svc, err := NewService(ServiceParams{
		Repo:              f.repo,
		Gateway:           f.gateway,
		Applier:           f.applier,
		TransactionRunner: db.NewFromConn(conn),
		Config: config.PaymentsConfig{
			AllowedCurrencies: []string{"USD", "EUR"},
			MaxMonths:         24,
		},
		Metrics: f.metrics,
		Clock:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func createInput(userID uuid.UUID, key string) CreateIntentInput {
	return CreateIntentInput{
		UserID:         userID,
		IdempotencyKey: key,
		Amount:         50000,
		Currency:       "USD",
		Tier:           "premium",
		Months:         1,
		IPAddress:      "203.0.113.7",
		UserAgent:      "hireloop-web/1.0",
	}
}

func successEvent(providerID string) *pkgstripe.Event {
	return &pkgstripe.Event{EventID: "evt_" + providerID, ProviderPaymentID: providerID, Outcome: pkgstripe.OutcomeSuccess}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestEndToEndPremiumPurchase(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	attempt, created, err := f.svc.CreateIntent(ctx, createInput(userID, "abc123"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enums.PaymentStatusPending, attempt.Status)
	require.NotNil(t, attempt.ProviderPaymentID)
	require.NotNil(t, attempt.ProviderClientSecret)
	assert.Equal(t, enums.CurrencyUSD, attempt.Currency)
	require.NotNil(t, attempt.IPAddress)
	assert.Equal(t, "203.0.113.7", *attempt.IPAddress)

	result, err := f.svc.HandleWebhookEvent(ctx, successEvent(*attempt.ProviderPaymentID))
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)

	stored, err := f.repo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	user, err := f.users.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionTierPremium, user.SubscriptionTier)
	require.NotNil(t, user.SubscriptionExpiresAt)
	assert.True(t, fixedNow.AddDate(0, 1, 0).Equal(*user.SubscriptionExpiresAt))

	assert.Equal(t, 1, f.metrics.transitions["pending->completed"])
	assert.Equal(t, 1, f.metrics.webhooks["success:applied"])
}

func TestCreateIntentReplayReturnsOriginal(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	first, created, err := f.svc.CreateIntent(ctx, createInput(userID, "replay"))
	require.NoError(t, err)
	require.True(t, created)

	second := createInput(userID, "replay")
	second.Amount = 99999
	replayed, created, err := f.svc.CreateIntent(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replayed.ID)
	assert.Equal(t, int64(50000), replayed.Amount)
	assert.Equal(t, 1, f.gateway.callCount())
}

func TestCreateIntentReplayIgnoresStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "done"))
	require.NoError(t, err)
	_, err = f.svc.HandleWebhookEvent(ctx, successEvent(*attempt.ProviderPaymentID))
	require.NoError(t, err)

	replayed, created, err := f.svc.CreateIntent(ctx, createInput(userID, "done"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, enums.PaymentStatusCompleted, replayed.Status)
	assert.Equal(t, 1, f.applier.count())
}

func TestCreateIntentKeyOwnedByAnotherUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := seedUser(t, f.db, nil)
	other := seedUser(t, f.db, nil)

	_, _, err := f.svc.CreateIntent(ctx, createInput(owner, "shared"))
	require.NoError(t, err)

	_, _, err = f.svc.CreateIntent(ctx, createInput(other, "shared"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency))
}

func TestCreateIntentConcurrentSameKey(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	const callers = 10
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "burst"))
			errs[i] = err
			if attempt != nil {
				ids[i] = attempt.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	require.NoError(t, f.db.Model(&models.PaymentAttempt{}).Where("idempotency_key = ?", "burst").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateIntentGatewayUnavailablePersistsNothing(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)
	f.gateway.err = fmt.Errorf("%w: timeout", pkgstripe.ErrGatewayUnavailable)

	_, _, err := f.svc.CreateIntent(ctx, createInput(userID, "down"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, pkgerrors.MetadataFor(pkgerrors.CodeDependency).Retryable)

	_, err = f.repo.FindByIdempotencyKey(ctx, "down")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestCreateIntentReusedKeyIsNotRetryable(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)
	f.gateway.err = fmt.Errorf("%w: idempotency_error", pkgstripe.ErrIdempotencyKeyReused)

	_, _, err := f.svc.CreateIntent(ctx, createInput(userID, "reused"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency))
	assert.False(t, pkgerrors.Retryable(err))

	_, err = f.repo.FindByIdempotencyKey(ctx, "reused")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestCreateIntentReusedKeyReplaysPersistedWinner(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	// the winning request persists while this one is still at the provider
	winner := newPendingAttempt(userID, "raced", "pi_winner")
	f.gateway.beforeErr = func() { require.NoError(t, f.repo.Create(ctx, winner)) }
	f.gateway.err = fmt.Errorf("%w: idempotency_error", pkgstripe.ErrIdempotencyKeyReused)

	input := createInput(userID, "raced")
	input.Amount = 90000
	attempt, created, err := f.svc.CreateIntent(ctx, input)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, attempt.ID)
	assert.Equal(t, int64(50000), attempt.Amount)
}

func TestCreateIntentValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	cases := map[string]func(in *CreateIntentInput){
		"missing key":       func(in *CreateIntentInput) { in.IdempotencyKey = "  " },
		"zero amount":       func(in *CreateIntentInput) { in.Amount = 0 },
		"unknown currency":  func(in *CreateIntentInput) { in.Currency = "XYZ" },
		"disabled currency": func(in *CreateIntentInput) { in.Currency = "GBP" },
		"free tier":         func(in *CreateIntentInput) { in.Tier = "free" },
		"unknown tier":      func(in *CreateIntentInput) { in.Tier = "gold" },
		"zero months":       func(in *CreateIntentInput) { in.Months = 0 },
		"too many months":   func(in *CreateIntentInput) { in.Months = 25 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := createInput(userID, "validation")
			mutate(&input)
			_, _, err := f.svc.CreateIntent(ctx, input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), err.Error())
		})
	}
	assert.Zero(t, f.gateway.callCount())
}

func TestConcurrentSuccessWebhooksApplyOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	current := fixedNow.AddDate(0, 0, 10)
	userID := seedUser(t, f.db, &current)

	attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "webhook-burst"))
	require.NoError(t, err)
	event := successEvent(*attempt.ProviderPaymentID)

	const deliveries = 10
	var wg sync.WaitGroup
	results := make([]Result, deliveries)
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.HandleWebhookEvent(ctx, event)
		}(i)
	}
	wg.Wait()

	applied := 0
	for i := 0; i < deliveries; i++ {
		require.NoError(t, errs[i])
		switch results[i] {
		case ResultApplied:
			applied++
		case ResultDuplicate:
		default:
			t.Fatalf("unexpected result %s", results[i])
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, f.applier.count())

	user, err := f.users.FindByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user.SubscriptionExpiresAt)
	assert.True(t, current.AddDate(0, 1, 0).Equal(*user.SubscriptionExpiresAt), "stacked expiry, got %s", user.SubscriptionExpiresAt)
}

func TestWebhookFailureThenLateSuccess(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "declined"))
	require.NoError(t, err)
	providerID := *attempt.ProviderPaymentID

	result, err := f.svc.HandleWebhookEvent(ctx, &pkgstripe.Event{
		EventID:           "evt_fail",
		ProviderPaymentID: providerID,
		Outcome:           pkgstripe.OutcomeFailure,
		ErrorCode:         "card_declined",
		ErrorMessage:      "Your card was declined.",
	})
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)

	result, err = f.svc.HandleWebhookEvent(ctx, successEvent(providerID))
	require.NoError(t, err)
	assert.Equal(t, ResultInvalidTransition, result)
	assert.Zero(t, f.applier.count())

	stored, err := f.repo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorCode)
	assert.Equal(t, "card_declined", *stored.ErrorCode)

	user, err := f.users.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionTierFree, user.SubscriptionTier)
}

func TestWebhookProcessingThenSuccess(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "slow"))
	require.NoError(t, err)
	providerID := *attempt.ProviderPaymentID
	processing := &pkgstripe.Event{EventID: "evt_proc", ProviderPaymentID: providerID, Outcome: pkgstripe.OutcomeProcessing}

	result, err := f.svc.HandleWebhookEvent(ctx, processing)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)

	result, err = f.svc.HandleWebhookEvent(ctx, processing)
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, result)

	result, err = f.svc.HandleWebhookEvent(ctx, successEvent(providerID))
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)
	assert.Equal(t, 1, f.metrics.transitions["processing->completed"])

	result, err = f.svc.HandleWebhookEvent(ctx, processing)
	require.NoError(t, err)
	assert.Equal(t, ResultInvalidTransition, result)
}

func TestWebhookUnknownAndIgnoredEvents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result, err := f.svc.HandleWebhookEvent(ctx, successEvent("pi_forged"))
	require.NoError(t, err)
	assert.Equal(t, ResultNotFound, result)

	result, err = f.svc.HandleWebhookEvent(ctx, &pkgstripe.Event{EventID: "evt_x", Outcome: pkgstripe.OutcomeIgnored})
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, result)

	var count int64
	require.NoError(t, f.db.Model(&models.PaymentAttempt{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = f.svc.HandleWebhookEvent(ctx, nil)
	assert.Error(t, err)
}

func TestWebhookApplierFailureRollsBackTransition(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// attempt for a user row that does not exist
	attempt := newPendingAttempt(uuid.New(), "orphan", "pi_orphan")
	require.NoError(t, f.repo.Create(ctx, attempt))

	_, err := f.svc.HandleWebhookEvent(ctx, successEvent("pi_orphan"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, errors.Is(err, users.ErrUserNotFound))

	stored, err := f.repo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, stored.Status)
	assert.Nil(t, stored.CompletedAt)
}

func TestCancel(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "cancel-me"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, uuid.New(), attempt.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	cancelled, err := f.svc.Cancel(ctx, userID, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCancelled, cancelled.Status)

	result, err := f.svc.HandleWebhookEvent(ctx, successEvent(*attempt.ProviderPaymentID))
	require.NoError(t, err)
	assert.Equal(t, ResultInvalidTransition, result)
	assert.Zero(t, f.applier.count())
}

func TestCancelAfterCompletionFails(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "too-late"))
	require.NoError(t, err)
	_, err = f.svc.HandleWebhookEvent(ctx, successEvent(*attempt.ProviderPaymentID))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, userID, attempt.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	stored, err := f.repo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.Status)
}

func TestRefundLeavesSubscriptionAndConverges(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "refund"))
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, attempt.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = f.svc.HandleWebhookEvent(ctx, successEvent(*attempt.ProviderPaymentID))
	require.NoError(t, err)

	refunded, err := f.svc.Refund(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)

	result, err := f.svc.HandleWebhookEvent(ctx, &pkgstripe.Event{
		EventID:           "evt_refund",
		ProviderPaymentID: *attempt.ProviderPaymentID,
		Outcome:           pkgstripe.OutcomeRefunded,
	})
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, result)

	user, err := f.users.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionTierPremium, user.SubscriptionTier)

	_, err = f.svc.Refund(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetHidesOtherUsersAttempts(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	attempt, _, err := f.svc.CreateIntent(ctx, createInput(userID, "mine"))
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, userID, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, got.ID)

	_, err = f.svc.Get(ctx, uuid.New(), attempt.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAttemptDTOFormatsAmount(t *testing.T) {
	secret := "pi_1_secret"
	attempt := &models.PaymentAttempt{
		ID:                   uuid.New(),
		Amount:               50000,
		Currency:             enums.CurrencyUSD,
		Status:               enums.PaymentStatusPending,
		SubscriptionTier:     enums.SubscriptionTierPremium,
		SubscriptionMonths:   1,
		ProviderClientSecret: &secret,
	}
	dto := NewAttemptDTO(attempt)
	assert.Equal(t, "500.00", dto.AmountDisplay)
	assert.Equal(t, &secret, dto.ProviderClientSecret)
	assert.Nil(t, NewRedactedAttemptDTO(attempt).ProviderClientSecret)

	attempt.Currency = enums.CurrencyJPY
	attempt.Amount = 1200
	assert.Equal(t, "1200", FormatAmount(attempt))
}

func TestListPagesNewestFirstWithoutSecrets(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)
	other := seedUser(t, f.db, nil)

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		attempt := newPendingAttempt(userID, fmt.Sprintf("list-%d", i), fmt.Sprintf("pi_list_%d", i))
		attempt.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		secret := "secret"
		attempt.ProviderClientSecret = &secret
		require.NoError(t, f.repo.Create(ctx, attempt))
		ids = append(ids, attempt.ID)
	}
	require.NoError(t, f.repo.Create(ctx, newPendingAttempt(other, "other", "pi_other")))

	first, err := f.svc.List(ctx, ListParams{UserID: userID, Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, ids[2], first.Items[0].AttemptID)
	assert.Equal(t, ids[1], first.Items[1].AttemptID)
	assert.Nil(t, first.Items[0].ProviderClientSecret)
	require.NotEmpty(t, first.Cursor)

	second, err := f.svc.List(ctx, ListParams{UserID: userID, Params: pagination.Params{Limit: 2, Cursor: first.Cursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, ids[0], second.Items[0].AttemptID)
	assert.Empty(t, second.Cursor)
}

func TestListWalksEveryAttemptExactlyOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := seedUser(t, f.db, nil)

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	want := map[uuid.UUID]bool{}
	for i := 0; i < 5; i++ {
		attempt := newPendingAttempt(userID, fmt.Sprintf("walk-%d", i), fmt.Sprintf("pi_walk_%d", i))
		// two pairs share a timestamp so the id tiebreak is exercised
		attempt.CreatedAt = base.Add(time.Duration(i/2) * time.Hour)
		require.NoError(t, f.repo.Create(ctx, attempt))
		want[attempt.ID] = true
	}

	seen := map[uuid.UUID]int{}
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		page, err := f.svc.List(ctx, ListParams{UserID: userID, Params: pagination.Params{Limit: 2, Cursor: cursor}})
		require.NoError(t, err)
		for _, item := range page.Items {
			seen[item.AttemptID]++
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	require.Len(t, seen, len(want))
	for id, count := range seen {
		assert.True(t, want[id])
		assert.Equal(t, 1, count, "attempt %s returned more than once", id)
	}
}

func TestListRejectsBadInput(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.List(ctx, ListParams{UserID: uuid.New(), Params: pagination.Params{Cursor: "not-a-cursor"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
