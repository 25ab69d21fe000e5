package models

import "time"

// Payment provider constants used across billing-related models.
const (
	PaymentProviderMercadoPago = "mercadopago"
	PaymentProviderStripe      = "stripe"
)

// PaymentEvent is one raw payment lifecycle event as delivered by the
// provider after upstream signature checking. Rows are append-only; the
// reconciliation engine treats the table as an immutable log.
type PaymentEvent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID string    `gorm:"type:varchar(191);index;default:''" json:"subscription_id"`
	PaymentID      string    `gorm:"type:varchar(191);index;default:''" json:"payment_id"`
	Provider       string    `gorm:"type:varchar(20);not null;default:'mercadopago'" json:"provider"`
	RawStatus      string    `gorm:"type:varchar(64);not null;default:''" json:"raw_status"`
	PayerEmail     string    `gorm:"type:varchar(200);index;default:''" json:"payer_email"`
	Amount         float64   `gorm:"type:decimal(12,2);default:0" json:"amount"`
	Currency       string    `gorm:"type:varchar(8);default:''" json:"currency"`
	RawPayloadJSON string    `gorm:"type:longtext" json:"raw_payload_json"`
	EventTimestamp time.Time `gorm:"type:timestamp;index" json:"event_timestamp"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// HasSubscription reports whether the event can be attributed to a
// subscription at all. Unattributable events are skipped, not errors.
func (e *PaymentEvent) HasSubscription() bool {
	return e.SubscriptionID != ""
}
