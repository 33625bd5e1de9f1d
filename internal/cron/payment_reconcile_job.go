package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/hireloop-backend/internal/payments"
	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/enums"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/hireloop-backend/pkg/stripe"
)

const (
	defaultStaleAfter     = 30 * time.Minute
	defaultReconcileBatch = 100

	resultLookupFailed = "lookup_failed"
	resultError        = "error"
)

var reconcileStatuses = []enums.PaymentStatus{
	enums.PaymentStatusPending,
	enums.PaymentStatusProcessing,
}

type staleAttemptStore interface {
	ListStale(ctx context.Context, statuses []enums.PaymentStatus, updatedBefore time.Time, limit int) ([]models.PaymentAttempt, error)
	MarkReconciled(ctx context.Context, id uuid.UUID, statuses []enums.PaymentStatus, at time.Time) (bool, error)
}

type intentLookup interface {
	LookupIntent(ctx context.Context, providerPaymentID string) (*pkgstripe.Event, error)
}

type eventHandler interface {
	HandleWebhookEvent(ctx context.Context, event *pkgstripe.Event) (payments.Result, error)
}

type reconcileRecorder interface {
	IncReconciled(result string)
}

// PaymentReconcileJobParams configures the stale payment attempt sweep.
type PaymentReconcileJobParams struct {
	Logger     *logger.Logger
	Attempts   staleAttemptStore
	Gateway    intentLookup
	Payments   eventHandler
	Metrics    reconcileRecorder
	StaleAfter time.Duration
	BatchSize  int
	Now        func() time.Time
}

// NewPaymentReconcileJob builds the job that asks the provider about attempts
// whose webhook never arrived and feeds the answer through the state machine.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Attempts == nil {
		return nil, fmt.Errorf("payment attempt store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &paymentReconcileJob{
		logg:       params.Logger,
		attempts:   params.Attempts,
		gateway:    params.Gateway,
		payments:   params.Payments,
		metrics:    params.Metrics,
		staleAfter: staleAfter,
		batch:      batch,
		now:        now,
	}, nil
}

type paymentReconcileJob struct {
	logg       *logger.Logger
	attempts   staleAttemptStore
	gateway    intentLookup
	payments   eventHandler
	metrics    reconcileRecorder
	staleAfter time.Duration
	batch      int
	now        func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	stale, err := j.attempts.ListStale(ctx, reconcileStatuses, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list stale payment attempts: %w", err)
	}

	var errs error
	counts := map[string]int{}
	for i := range stale {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		result, err := j.reconcile(ctx, &stale[i])
		counts[result]++
		j.record(result)
		errs = multierr.Append(errs, err)
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"cutoff":     cutoff.Format(time.RFC3339),
		"results":    counts,
	})
	j.logg.Info(reportCtx, "payment.reconcile_complete")
	return errs
}

func (j *paymentReconcileJob) reconcile(ctx context.Context, attempt *models.PaymentAttempt) (string, error) {
	ctx = j.logg.WithAttemptID(ctx, attempt.ID.String())
	providerID := ""
	if attempt.ProviderPaymentID != nil {
		providerID = *attempt.ProviderPaymentID
	}

	event, err := j.gateway.LookupIntent(ctx, providerID)
	if err != nil {
		// the next cycle picks the attempt up again
		j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "payment.reconcile_lookup_failed")
		return resultLookupFailed, nil
	}

	result, err := j.payments.HandleWebhookEvent(ctx, event)
	if err != nil {
		return resultError, fmt.Errorf("reconcile attempt %s: %w", attempt.ID, err)
	}
	if result == payments.ResultIgnored {
		// Provider still has nothing to report (abandoned checkout). Rotate the
		// attempt behind newer candidates instead of re-selecting it every cycle.
		if _, err := j.attempts.MarkReconciled(ctx, attempt.ID, reconcileStatuses, j.now()); err != nil {
			return resultError, fmt.Errorf("mark attempt %s reconciled: %w", attempt.ID, err)
		}
	}
	if result == payments.ResultApplied {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"from":    attempt.Status.String(),
			"outcome": string(event.Outcome),
		})
		j.logg.Info(logCtx, "payment.reconcile_applied")
	}
	return string(result), nil
}

func (j *paymentReconcileJob) record(result string) {
	if j.metrics == nil {
		return
	}
	j.metrics.IncReconciled(result)
}
