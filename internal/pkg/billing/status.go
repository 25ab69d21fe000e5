package billing

import (
	"strings"
	"time"

	"github.com/siteforge/SiteForge/app/models"
)

// Provider status strings classified as "current/paid". The allow-list is
// fixed; anything else counts as not paid.
var activeStatuses = map[string]struct{}{
	"approved":          {},
	"authorized":        {},
	"accredited":        {},
	"recurring_charges": {},
	"active":            {},
}

// Statuses the grace policy must never overwrite.
var terminalStatuses = map[string]struct{}{
	models.BillingStatusCancelled: {},
	"canceled":                    {},
	models.BillingStatusPaused:    {},
}

// NormalizeStatus lowercases and trims a raw provider status.
func NormalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsActiveStatus reports whether a raw provider status is active-class.
func IsActiveStatus(raw string) bool {
	_, ok := activeStatuses[NormalizeStatus(raw)]
	return ok
}

func isTerminalStatus(raw string) bool {
	_, ok := terminalStatuses[NormalizeStatus(raw)]
	return ok
}

// activeStatusList returns the allow-list for SQL IN clauses.
func activeStatusList() []string {
	out := make([]string, 0, len(activeStatuses))
	for s := range activeStatuses {
		out = append(out, s)
	}
	return out
}

// Derivation is the outcome of applying the renewal and grace policy to one
// subscription at a fixed point in time.
type Derivation struct {
	Status      string
	NextRenewal *time.Time
	Overdue     bool
	DaysOverdue int
	// GraceForced marks a status that became cancelled purely because the
	// grace period elapsed, the only time-driven status change.
	GraceForced bool
}

// DeriveStatus applies the renewal interval and grace policy to the given
// status and last approved payment. Deterministic and idempotent for a
// fixed "today" reference and fixed inputs.
func DeriveStatus(status string, lastApproved *time.Time, today time.Time, p Policy) Derivation {
	d := Derivation{Status: NormalizeStatus(status)}
	if lastApproved == nil {
		// Never paid: no renewal date, never overdue.
		return d
	}

	next := lastApproved.AddDate(0, 0, p.RenewalIntervalDays)
	d.NextRenewal = &next

	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if overdueBy := midnight.Sub(next); overdueBy > 0 {
		d.DaysOverdue = int(overdueBy / (24 * time.Hour))
	}
	d.Overdue = d.DaysOverdue > 0

	if d.Overdue && d.DaysOverdue > p.GraceDays && !isTerminalStatus(d.Status) {
		d.Status = models.BillingStatusCancelled
		d.GraceForced = true
	}
	return d
}
