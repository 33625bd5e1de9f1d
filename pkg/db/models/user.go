package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hireloop-backend/pkg/enums"
)

// User is owned by the accounts service; payments only touch the subscription columns.
type User struct {
	ID                    uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                 string                 `gorm:"type:text;not null;uniqueIndex"`
	SubscriptionTier      enums.SubscriptionTier `gorm:"column:subscription_tier;type:subscription_tier;not null;default:'free'"`
	SubscriptionExpiresAt *time.Time             `gorm:"column:subscription_expires_at"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
