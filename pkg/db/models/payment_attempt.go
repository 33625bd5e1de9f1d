package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hireloop-backend/pkg/enums"
)

// PaymentAttempt is the auditable record of a single subscription charge.
type PaymentAttempt struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IdempotencyKey       string                 `gorm:"column:idempotency_key;type:text;not null;uniqueIndex:ux_payment_attempts_idempotency_key"`
	Provider             enums.PaymentProvider  `gorm:"column:provider;type:payment_provider;not null;default:'stripe'"`
	ProviderPaymentID    *string                `gorm:"column:provider_payment_id;index:ix_payment_attempts_provider_payment_id"`
	ProviderClientSecret *string                `gorm:"column:provider_client_secret"`
	Status               enums.PaymentStatus    `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	UserID               uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Amount               int64                  `gorm:"column:amount;not null"`
	Currency             enums.Currency         `gorm:"column:currency;type:char(3);not null"`
	SubscriptionTier     enums.SubscriptionTier `gorm:"column:subscription_tier;type:subscription_tier;not null"`
	SubscriptionMonths   int                    `gorm:"column:subscription_months;not null"`
	IPAddress            *string                `gorm:"column:ip_address"`
	UserAgent            *string                `gorm:"column:user_agent"`
	ErrorCode            *string                `gorm:"column:error_code"`
	ErrorMessage         *string                `gorm:"column:error_message"`
	CompletedAt          *time.Time             `gorm:"column:completed_at"`
	RefundedAt           *time.Time             `gorm:"column:refunded_at"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by migrations.
func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}
