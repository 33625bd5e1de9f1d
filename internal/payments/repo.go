package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hireloop-backend/pkg/db"
	"github.com/angelmondragon/hireloop-backend/pkg/db/models"
	"github.com/angelmondragon/hireloop-backend/pkg/enums"
	"github.com/angelmondragon/hireloop-backend/pkg/pagination"
)

const (
	idempotencyKeyConstraint = "ux_payment_attempts_idempotency_key"
	defaultStaleLimit        = 100
)

// Repository is the durable store of payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.PaymentAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentAttempt, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.PaymentAttempt, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, fields TransitionFields) (bool, error)
	ListStale(ctx context.Context, statuses []enums.PaymentStatus, updatedBefore time.Time, limit int) ([]models.PaymentAttempt, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PaymentAttempt, error)
	MarkReconciled(ctx context.Context, id uuid.UUID, statuses []enums.PaymentStatus, at time.Time) (bool, error)
}

// TransitionFields are written in the same statement as the status change.
type TransitionFields struct {
	ProviderPaymentID *string
	ErrorCode         *string
	ErrorMessage      *string
	CompletedAt       *time.Time
	RefundedAt        *time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt == nil {
		return errors.New("payment attempt required")
	}
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		if db.IsUniqueViolation(err, idempotencyKeyConstraint) || isIdempotencyKeyViolation(err) {
			return ErrDuplicateIdempotencyKey
		}
		return err
	}
	return nil
}

// isIdempotencyKeyViolation covers drivers that report the column rather than the index name.
func isIdempotencyKeyViolation(err error) bool {
	return db.IsUniqueViolation(err, "") && strings.Contains(err.Error(), "idempotency_key")
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentAttempt, error) {
	return r.first(ctx, "idempotency_key = ?", key)
}

func (r *repository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.PaymentAttempt, error) {
	if strings.TrimSpace(providerPaymentID) == "" {
		return nil, ErrRecordNotFound
	}
	return r.first(ctx, "provider_payment_id = ?", providerPaymentID)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).Where(query, args...).First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// TransitionStatus is a compare-and-set on status: the row changes only while its
// status is one of from. It reports whether this call performed the change.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, fields TransitionFields) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	sources := make([]string, 0, len(from))
	for _, status := range from {
		sources = append(sources, status.String())
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if fields.ProviderPaymentID != nil {
		updates["provider_payment_id"] = *fields.ProviderPaymentID
	}
	if fields.ErrorCode != nil {
		updates["error_code"] = *fields.ErrorCode
	}
	if fields.ErrorMessage != nil {
		updates["error_message"] = *fields.ErrorMessage
	}
	if fields.CompletedAt != nil {
		updates["completed_at"] = fields.CompletedAt.UTC()
	}
	if fields.RefundedAt != nil {
		updates["refunded_at"] = fields.RefundedAt.UTC()
	}

	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND status IN ?", id, sources).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListStale returns provider-backed attempts in one of statuses that have not
// changed since updatedBefore, oldest first.
func (r *repository) ListStale(ctx context.Context, statuses []enums.PaymentStatus, updatedBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultStaleLimit
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}

	var attempts []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ? AND provider_payment_id IS NOT NULL", values, updatedBefore.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// MarkReconciled moves updated_at forward for an attempt the sweep checked
// without changing it, so ListStale rotates to other candidates. The row is left
// alone once its status has left statuses.
func (r *repository) MarkReconciled(ctx context.Context, id uuid.UUID, statuses []enums.PaymentStatus, at time.Time) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND status IN ?", id, values).
		UpdateColumn("updated_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByUser returns the user's attempts newest first, strictly after cursor when set.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PaymentAttempt, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var attempts []models.PaymentAttempt
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
