package models

import "time"

// Site is one provisioned tenant in the registry. Rows are maintained by
// registration and admin flows; the reconciliation engine only touches
// BillingBlocked.
//
// The block flag is intentionally split: AdminBlocked carries human intent,
// BillingBlocked carries the engine's auto-cancellation verdict. A manual
// unblock therefore survives the next recompute.
type Site struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Slug           string    `gorm:"type:varchar(100);uniqueIndex" json:"slug" validate:"required,min=2,max=100"`
	OwnerEmail     string    `gorm:"type:varchar(200);index" json:"owner_email" validate:"required,email"`
	SubscriptionID string    `gorm:"type:varchar(191);index;default:''" json:"subscription_id"`
	Plan           string    `gorm:"type:varchar(50);default:'basic'" json:"plan"`
	AdminBlocked   bool      `gorm:"default:false" json:"admin_blocked"`
	BillingBlocked bool      `gorm:"default:false" json:"billing_blocked"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EffectiveBlocked combines admin intent and the engine's billing verdict.
func (s *Site) EffectiveBlocked() bool {
	return s.AdminBlocked || s.BillingBlocked
}
