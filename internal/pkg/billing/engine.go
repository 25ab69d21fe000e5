package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/siteforge/SiteForge/app/models"
	"gorm.io/gorm"
)

// Engine is the reconciliation orchestrator. One Reconcile call performs a
// full batch: fold the stores into aggregates, derive status under the
// grace policy, detect transitions against the account cache, persist the
// snapshot and the cache, and dispatch side effects.
type Engine struct {
	repo     Repository
	notifier Notifier
	policy   Policy

	// now is injectable for deterministic derivation in tests.
	now func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(repo Repository, notifier Notifier, policy Policy) *Engine {
	return &Engine{
		repo:     repo,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}
}

// NewEngineFromDB creates an engine over a GORM handle.
func NewEngineFromDB(db *gorm.DB, notifier Notifier, policy Policy) *Engine {
	return NewEngine(NewRepository(db), notifier, policy)
}

// Reconcile runs one full recompute. The pipeline is idempotent: rerunning
// with unchanged stores produces an identical snapshot and no repeated
// transition side effects. Side-effect failures are logged and never abort
// the batch; a persistence failure skips only the affected subscription.
func (e *Engine) Reconcile(ctx context.Context) (*RunReport, error) {
	if e.policy.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.policy.RunTimeout)
		defer cancel()
	}

	started := e.now()
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}

	sites, err := e.repo.ListSites()
	if err != nil {
		return report, fmt.Errorf("reconcile %s: list sites: %w", report.RunID, err)
	}
	events, err := e.repo.ListEvents()
	if err != nil {
		return report, fmt.Errorf("reconcile %s: list events: %w", report.RunID, err)
	}
	cacheRows, err := e.repo.ListUserBilling()
	if err != nil {
		return report, fmt.Errorf("reconcile %s: list account cache: %w", report.RunID, err)
	}

	// Nothing to reconcile is a clean exit, not an error.
	if len(sites) == 0 && len(events) == 0 {
		log.Infof("[Reconcile %s] no registry rows and no events, skipping", report.RunID)
		return report, nil
	}

	// prevByEmail freezes the persisted statuses at run start: transition
	// detection always compares against the previous run, even when several
	// subscriptions share one cache row within this run.
	cacheByEmail := make(map[string]*models.UserBilling, len(cacheRows))
	prevByEmail := make(map[string]string, len(cacheRows))
	for i := range cacheRows {
		email := normalizeEmail(cacheRows[i].Email)
		cacheByEmail[email] = &cacheRows[i]
		prevByEmail[email] = cacheRows[i].BillingStatus
	}

	aggregates := BuildAggregates(sites, events, cacheByEmail)
	report.Subscriptions = len(aggregates)

	today := started
	snapshots := make([]models.BillingSnapshot, 0, len(aggregates))

	for _, agg := range aggregates {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("reconcile %s aborted: %w", report.RunID, err)
		}

		d := DeriveStatus(agg.Status, agg.LastApprovedPaymentAt, today, e.policy)

		cached := cacheByEmail[agg.Email]
		if cached == nil && agg.Email != "" {
			// The account never registered but its payments still arrive.
			// Create the cache row now so the next run sees the persisted
			// status and does not re-fire the transition side effects.
			cached = &models.UserBilling{Email: agg.Email}
			cacheByEmail[agg.Email] = cached
		}
		prevStatus := prevByEmail[agg.Email]

		// With no email there is no durable previous-status record, so a
		// transition could never be marked as handled. Skip the transition
		// side effects rather than repeat them every run.
		tracked := cached != nil
		justCancelled := tracked && d.GraceForced && (prevStatus == "" || IsActiveStatus(prevStatus))
		justReactivated := tracked && !IsActiveStatus(prevStatus) && IsActiveStatus(d.Status)

		// Write-through the account cache before side effects; this is what
		// keeps single-account lookups fast and transitions detectable on
		// the next run.
		if cached != nil {
			cached.SiteSlug = agg.SiteSlug
			cached.Plan = agg.Plan
			cached.BillingStatus = d.Status
			cached.BillingNext = d.NextRenewal
			cached.BillingAmount = agg.Amount
			cached.BillingCurrency = agg.Currency
			cached.BillingProvider = agg.Provider
			if err := e.repo.SaveUserBilling(cached); err != nil {
				log.Errorf("[Reconcile %s] account cache write failed for %s: %v", report.RunID, agg.Email, err)
				report.Skipped++
				continue
			}
		}

		e.dispatchSideEffects(ctx, report, agg, d, justCancelled, justReactivated)

		if justCancelled {
			report.Cancelled++
		}
		if justReactivated {
			report.Reactivated++
		}

		snapshots = append(snapshots, models.BillingSnapshot{
			SubscriptionID:  agg.SubscriptionID,
			Email:           agg.Email,
			SiteSlug:        agg.SiteSlug,
			Plan:            agg.Plan,
			Status:          d.Status,
			Amount:          agg.Amount,
			Currency:        agg.Currency,
			Provider:        agg.Provider,
			LastPaymentDate: agg.LastApprovedPaymentAt,
			NextRenewalDate: d.NextRenewal,
			Overdue:         d.Overdue,
			DaysOverdue:     d.DaysOverdue,
		})
	}

	if err := e.repo.ReplaceSnapshots(snapshots); err != nil {
		return report, fmt.Errorf("reconcile %s: replace snapshots: %w", report.RunID, err)
	}

	report.Duration = e.now().Sub(started).String()
	log.Infof("[Reconcile %s] %d subscriptions, %d cancelled, %d reactivated, %d skipped",
		report.RunID, report.Subscriptions, report.Cancelled, report.Reactivated, report.Skipped)
	return report, nil
}

// dispatchSideEffects executes the toggle call, the auto-block write and
// the notice emails for one subscription. Each effect is independently
// fallible; an error is logged and the batch moves on.
func (e *Engine) dispatchSideEffects(ctx context.Context, report *RunReport, agg *Aggregate, d Derivation, justCancelled, justReactivated bool) {
	if (justCancelled || justReactivated) && agg.SiteSlug != "" {
		hook, err := e.repo.GetHookBySlug(agg.SiteSlug)
		switch {
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			log.Errorf("[Reconcile] hook lookup failed for %s: %v", agg.SiteSlug, err)
		case hook != nil:
			if err := e.notifier.ToggleSite(ctx, hook.ToggleURL, agg.SiteSlug, !justCancelled); err != nil {
				log.Errorf("[Reconcile] toggle call failed for %s: %v", agg.SiteSlug, err)
			} else {
				report.TogglesSent++
			}
		}
	}

	if e.policy.AutoBlock && agg.SiteSlug != "" {
		if justCancelled {
			if err := e.repo.SetSiteBillingBlocked(agg.SiteSlug, true); err != nil {
				log.Errorf("[Reconcile] auto-block failed for %s: %v", agg.SiteSlug, err)
			}
		}
		if justReactivated {
			if err := e.repo.SetSiteBillingBlocked(agg.SiteSlug, false); err != nil {
				log.Errorf("[Reconcile] auto-unblock failed for %s: %v", agg.SiteSlug, err)
			}
		}
	}

	if agg.Email == "" {
		return
	}
	// The renewal-pending notice fires only on the first overdue day.
	if d.Overdue && d.DaysOverdue == 1 && d.NextRenewal != nil {
		if err := e.notifier.SendRenewalPending(agg.Email, agg.SiteSlug, *d.NextRenewal); err != nil {
			log.Errorf("[Reconcile] renewal notice failed for %s: %v", agg.Email, err)
		} else {
			report.NoticesSent++
		}
	}
	if justCancelled {
		if err := e.notifier.SendCancellation(agg.Email, agg.SiteSlug); err != nil {
			log.Errorf("[Reconcile] cancellation notice failed for %s: %v", agg.Email, err)
		} else {
			report.NoticesSent++
		}
	}
}
