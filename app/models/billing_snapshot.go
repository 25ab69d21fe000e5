package models

import "time"

// BillingSnapshot is one row of the per-run materialized view of all
// subscriptions' billing state. The table is fully replaced on every
// reconciliation run; there is no row-level history.
type BillingSnapshot struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID  string     `gorm:"type:varchar(191);index" json:"subscription_id"`
	Email           string     `gorm:"type:varchar(200);index" json:"email"`
	SiteSlug        string     `gorm:"type:varchar(100);default:''" json:"site_slug"`
	Plan            string     `gorm:"type:varchar(50);default:''" json:"plan"`
	Status          string     `gorm:"type:varchar(64);default:''" json:"status"`
	Amount          float64    `gorm:"type:decimal(12,2);default:0" json:"amount"`
	Currency        string     `gorm:"type:varchar(8);default:''" json:"currency"`
	Provider        string     `gorm:"type:varchar(20);default:''" json:"provider"`
	LastPaymentDate *time.Time `gorm:"type:timestamp;default:null" json:"last_payment_date,omitempty"`
	NextRenewalDate *time.Time `gorm:"type:timestamp;default:null" json:"next_renewal_date,omitempty"`
	Overdue         bool       `gorm:"default:false" json:"overdue"`
	DaysOverdue     int        `gorm:"default:0" json:"days_overdue"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
