package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteforge/SiteForge/app/models"
)

func TestIsActiveStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"approved", true},
		{"Authorized", true},
		{" accredited ", true},
		{"recurring_charges", true},
		{"active", true},
		{"pending", false},
		{"cancelled", false},
		{"rejected", false},
		{"in_process", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsActiveStatus(tt.raw); got != tt.want {
			t.Fatalf("IsActiveStatus(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestDeriveStatusNeverPaid(t *testing.T) {
	today := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	d := DeriveStatus("pending", nil, today, DefaultPolicy())

	assert.Equal(t, "pending", d.Status)
	assert.Nil(t, d.NextRenewal)
	assert.False(t, d.Overdue)
	assert.Zero(t, d.DaysOverdue)
	assert.False(t, d.GraceForced)
}

func TestDeriveStatusCurrent(t *testing.T) {
	lastApproved := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

	d := DeriveStatus("approved", &lastApproved, today, DefaultPolicy())

	require.NotNil(t, d.NextRenewal)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), *d.NextRenewal)
	assert.Equal(t, "approved", d.Status)
	assert.False(t, d.Overdue)
	assert.Zero(t, d.DaysOverdue)
}

func TestDeriveStatusWithinGrace(t *testing.T) {
	lastApproved := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 2, 1, 18, 45, 0, 0, time.UTC)

	d := DeriveStatus("approved", &lastApproved, today, DefaultPolicy())

	assert.Equal(t, "approved", d.Status)
	assert.True(t, d.Overdue)
	assert.Equal(t, 1, d.DaysOverdue)
	assert.False(t, d.GraceForced)
}

func TestDeriveStatusGraceBoundary(t *testing.T) {
	lastApproved := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)

	d := DeriveStatus("approved", &lastApproved, today, DefaultPolicy())

	// Exactly at the grace limit the status survives; only beyond it flips.
	assert.Equal(t, 3, d.DaysOverdue)
	assert.Equal(t, "approved", d.Status)
	assert.False(t, d.GraceForced)
}

func TestDeriveStatusGraceExpired(t *testing.T) {
	lastApproved := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 2, 5, 8, 0, 0, 0, time.UTC)

	d := DeriveStatus("approved", &lastApproved, today, DefaultPolicy())

	assert.Equal(t, 5, d.DaysOverdue)
	assert.Equal(t, models.BillingStatusCancelled, d.Status)
	assert.True(t, d.GraceForced)
	assert.True(t, d.Overdue)
}

func TestDeriveStatusKeepsTerminal(t *testing.T) {
	lastApproved := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, status := range []string{"paused", "cancelled", "canceled"} {
		d := DeriveStatus(status, &lastApproved, today, DefaultPolicy())
		assert.Equal(t, NormalizeStatus(status), d.Status)
		assert.False(t, d.GraceForced, "terminal status %q must not be grace-forced", status)
		assert.True(t, d.Overdue)
	}
}

func TestDeriveStatusIsIdempotent(t *testing.T) {
	lastApproved := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	first := DeriveStatus("approved", &lastApproved, today, DefaultPolicy())
	second := DeriveStatus(first.Status, &lastApproved, today, DefaultPolicy())

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.DaysOverdue, second.DaysOverdue)
	// The forced flag marks the transition itself; re-deriving from an
	// already cancelled status must not report it again.
	assert.True(t, first.GraceForced)
	assert.False(t, second.GraceForced)
}
