package billing

import (
	"strconv"
	"time"

	"github.com/siteforge/SiteForge/internal/pkg/env"
)

// Policy carries the process-wide reconciliation tunables. It is built once
// from configuration and passed into the engine, query service and
// admission gate; nothing in this package reads ambient globals.
type Policy struct {
	// GraceDays is how many days a subscription may stay overdue before the
	// engine forces it to cancelled.
	GraceDays int
	// RenewalIntervalDays is the assumed subscription period.
	RenewalIntervalDays int
	// AutoBlock controls whether a grace-expiry cancellation also sets the
	// registry billing-block flag.
	AutoBlock bool
	// StrictAdmission requires payment proof at the onboarding checkpoint.
	StrictAdmission bool
	// AdmissionWindowDays is the lookback window for email-only admission.
	AdmissionWindowDays int
	// RequireEmailMatch cross-checks the event payer email against the
	// requester during id-based admission.
	RequireEmailMatch bool
	// EnforceSingleTenant denies admission when the email is already bound
	// to a different site in the registry.
	EnforceSingleTenant bool
	// RunTimeout bounds a full recompute; exceeding it aborts the run.
	RunTimeout time.Duration
}

// DefaultPolicy returns the reference tunables.
func DefaultPolicy() Policy {
	return Policy{
		GraceDays:           3,
		RenewalIntervalDays: 30,
		AutoBlock:           true,
		StrictAdmission:     false,
		AdmissionWindowDays: 7,
		RequireEmailMatch:   true,
		EnforceSingleTenant: false,
		RunTimeout:          5 * time.Minute,
	}
}

// PolicyFromEnv builds a policy from environment configuration, falling
// back to the defaults for anything unset.
func PolicyFromEnv() Policy {
	p := DefaultPolicy()
	p.GraceDays = envInt("BILLING_GRACE_DAYS", p.GraceDays)
	p.RenewalIntervalDays = envInt("BILLING_RENEWAL_INTERVAL_DAYS", p.RenewalIntervalDays)
	p.AutoBlock = envBool("BILLING_AUTO_BLOCK", p.AutoBlock)
	p.StrictAdmission = envBool("BILLING_STRICT_ADMISSION", p.StrictAdmission)
	p.AdmissionWindowDays = envInt("BILLING_ADMISSION_WINDOW_DAYS", p.AdmissionWindowDays)
	p.RequireEmailMatch = envBool("BILLING_ADMISSION_EMAIL_MATCH", p.RequireEmailMatch)
	p.EnforceSingleTenant = envBool("BILLING_ADMISSION_SINGLE_TENANT", p.EnforceSingleTenant)
	if v := envInt("BILLING_RUN_TIMEOUT_SECONDS", 0); v > 0 {
		p.RunTimeout = time.Duration(v) * time.Second
	}
	return p
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(env.GetEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.GetEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}
