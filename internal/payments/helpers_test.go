package payments

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/enums"
	pkgstripe "github.com/angelmondragon/hireloop-backend/pkg/stripe"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:payments_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ddl := []string{`
CREATE TABLE payment_attempts (
  id TEXT PRIMARY KEY,
  idempotency_key TEXT NOT NULL,
  provider TEXT NOT NULL DEFAULT 'stripe',
  provider_payment_id TEXT,
  provider_client_secret TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  user_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  currency TEXT NOT NULL,
  subscription_tier TEXT NOT NULL,
  subscription_months INTEGER NOT NULL,
  ip_address TEXT,
  user_agent TEXT,
  error_code TEXT,
  error_message TEXT,
  completed_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX ux_payment_attempts_idempotency_key ON payment_attempts (idempotency_key);`,
		`CREATE INDEX ix_payment_attempts_provider_payment_id ON payment_attempts (provider_payment_id);`,
		`
CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  subscription_tier TEXT NOT NULL DEFAULT 'free',
  subscription_expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, expiresAt *time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Create(&models.User{
		ID:                    id,
		Email:                 id.String() + "@example.com",
		SubscriptionTier:      enums.SubscriptionTierFree,
		SubscriptionExpiresAt: expiresAt,
	}).Error)
	return id
}

func newPendingAttempt(userID uuid.UUID, key, providerID string) *models.PaymentAttempt {
	return &models.PaymentAttempt{
		IdempotencyKey:     key,
		Provider:           enums.PaymentProviderStripe,
		ProviderPaymentID:  &providerID,
		Status:             enums.PaymentStatusPending,
		UserID:             userID,
		Amount:             50000,
		Currency:           enums.CurrencyUSD,
		SubscriptionTier:   enums.SubscriptionTierPremium,
		SubscriptionMonths: 1,
	}
}

// fakeGateway hands out one intent per idempotency key, like the provider does.
type fakeGateway struct {
	mu      sync.Mutex
	intents map[string]*pkgstripe.Intent
	calls   int
	err     error
	// beforeErr runs while the lock is held, just before err is returned.
	beforeErr func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*pkgstripe.Intent{}}
}

func (g *fakeGateway) CreateIntent(_ context.Context, req pkgstripe.IntentRequest) (*pkgstripe.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		if g.beforeErr != nil {
			g.beforeErr()
		}
		return nil, g.err
	}
	if intent, ok := g.intents[req.IdempotencyKey]; ok {
		return intent, nil
	}
	id := fmt.Sprintf("pi_%d", len(g.intents)+1)
	intent := &pkgstripe.Intent{ProviderPaymentID: id, ClientSecret: id + "_secret"}
	g.intents[req.IdempotencyKey] = intent
	return intent, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type countingApplier struct {
	mu    sync.Mutex
	next  subscriptionApplier
	calls int
}

func (c *countingApplier) Apply(ctx context.Context, tx *gorm.DB, attempt *models.PaymentAttempt, now time.Time) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.Apply(ctx, tx, attempt, now)
}

func (c *countingApplier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
	webhooks    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{transitions: map[string]int{}, webhooks: map[string]int{}}
}

func (m *fakeMetrics) IncTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[from+"->"+to]++
}

func (m *fakeMetrics) IncWebhookResult(outcome, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[outcome+":"+result]++
}
