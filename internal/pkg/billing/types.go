package billing

import (
	"context"
	"time"
)

// Notifier executes the side effects requested by the engine: the tenant
// toggle call and the notice emails. Implementations live outside the
// engine; every call is best-effort and may fail without consequence for
// the batch.
type Notifier interface {
	ToggleSite(ctx context.Context, toggleURL, slug string, active bool) error
	SendRenewalPending(to, slug string, nextRenewal time.Time) error
	SendCancellation(to, slug string) error
}

// RunReport summarizes one reconciliation run.
type RunReport struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
	Subscriptions int       `json:"subscriptions"`
	Cancelled     int       `json:"cancelled"`
	Reactivated   int       `json:"reactivated"`
	TogglesSent   int       `json:"toggles_sent"`
	NoticesSent   int       `json:"notices_sent"`
	Skipped       int       `json:"skipped"`
}

// AccountStatus is the query service answer for a single account.
type AccountStatus struct {
	Email       string     `json:"email"`
	Plan        string     `json:"plan"`
	Status      string     `json:"status"`
	Provider    string     `json:"provider"`
	NextRenewal *time.Time `json:"next_renewal,omitempty"`
	LastPayment *time.Time `json:"last_payment,omitempty"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	// Source names the fallback step that answered: cache, registry,
	// events or default.
	Source string `json:"source"`
}

// AdmissionRequest is the input to the onboarding admission gate.
type AdmissionRequest struct {
	Email          string `json:"email"`
	PaymentID      string `json:"payment_id"`
	SubscriptionID string `json:"subscription_id"`
	SiteSlug       string `json:"site_slug"`
}

// AdmissionDecision is the gate verdict.
type AdmissionDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}
