package models

import "time"

// Billing status constants shared by the reconciliation engine and the
// query service. The engine stores provider statuses verbatim; these cover
// the values it writes itself.
const (
	BillingStatusApproved  = "approved"
	BillingStatusPending   = "pending"
	BillingStatusCancelled = "cancelled"
	BillingStatusPaused    = "paused"
)

// UserBilling is the durable per-account billing cache. It reflects the
// last successful reconciliation pass that touched this account and is the
// source of the "previous status" used for transition detection. Only the
// engine and the query service write these fields.
//
// UserID is nullable: the engine creates rows keyed by payer email for
// accounts that pay before they register. The registration flow links the
// user id later.
type UserBilling struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          *uint      `gorm:"uniqueIndex" json:"user_id,omitempty"`
	Email           string     `gorm:"type:varchar(200);index" json:"email"`
	SiteSlug        string     `gorm:"type:varchar(100);default:''" json:"site_slug"`
	Plan            string     `gorm:"type:varchar(50);default:''" json:"plan"`
	BillingStatus   string     `gorm:"type:varchar(64);default:''" json:"billing_status"`
	BillingNext     *time.Time `gorm:"type:timestamp;default:null" json:"billing_next,omitempty"`
	BillingAmount   float64    `gorm:"type:decimal(12,2);default:0" json:"billing_amount"`
	BillingCurrency string     `gorm:"type:varchar(8);default:''" json:"billing_currency"`
	BillingProvider string     `gorm:"type:varchar(20);default:''" json:"billing_provider"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
