package billing

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/siteforge/SiteForge/app/models"
	"github.com/siteforge/SiteForge/internal/pkg/plans"
	"gorm.io/gorm"
)

// QueryService answers single-account status lookups through a fallback
// chain, independent of a full recompute. It never fails for a known
// account; the final step always degrades to a default answer. It is safe
// to call concurrently with a recompute, with eventual consistency.
type QueryService struct {
	repo   Repository
	policy Policy
	now    func() time.Time
}

// NewQueryService creates a query service.
func NewQueryService(repo Repository, policy Policy) *QueryService {
	return &QueryService{repo: repo, policy: policy, now: time.Now}
}

// AccountStatus resolves the billing state for one account email. The
// resolution order is: account cache, registry-derived state for that one
// tenant, newest active-class event by email, then defaults. Derived and
// default answers are persisted into the cache so later calls hit step one.
func (q *QueryService) AccountStatus(ctx context.Context, email string) *AccountStatus {
	_ = ctx
	email = normalizeEmail(email)

	cached, err := q.repo.GetUserBillingByEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[BillingQuery] cache read failed for %s: %v", email, err)
	}

	// 1. Durable account cache.
	if cached != nil && IsActiveStatus(cached.BillingStatus) {
		return statusFromCache(email, cached, "cache")
	}

	// 2. Re-derive from the registry for this one tenant.
	if st := q.deriveFromRegistry(email, cached); st != nil {
		return st
	}

	// 3. Newest active-class event for this email, any subscription.
	if st := q.deriveFromEvents(email, cached); st != nil {
		return st
	}

	// 4. Defaults; persisted so the next call is O(1).
	return q.defaultStatus(email, cached)
}

func (q *QueryService) deriveFromRegistry(email string, cached *models.UserBilling) *AccountStatus {
	site, err := q.repo.GetSiteByOwnerEmail(email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[BillingQuery] registry read failed for %s: %v", email, err)
		}
		return nil
	}
	if site.SubscriptionID == "" {
		return nil
	}

	events, err := q.repo.ListEventsBySubscription(site.SubscriptionID)
	if err != nil {
		log.Errorf("[BillingQuery] event read failed for %s: %v", site.SubscriptionID, err)
		return nil
	}

	aggs := BuildAggregates([]models.Site{*site}, events, nil)
	if len(aggs) == 0 {
		return nil
	}
	agg := aggs[0]
	d := DeriveStatus(agg.Status, agg.LastApprovedPaymentAt, q.now(), q.policy)
	if !IsActiveStatus(d.Status) {
		return nil
	}

	st := &AccountStatus{
		Email:       email,
		Plan:        agg.Plan,
		Status:      d.Status,
		Provider:    agg.Provider,
		NextRenewal: d.NextRenewal,
		LastPayment: agg.LastApprovedPaymentAt,
		Amount:      agg.Amount,
		Currency:    agg.Currency,
		Source:      "registry",
	}
	q.persist(cached, st)
	return st
}

func (q *QueryService) deriveFromEvents(email string, cached *models.UserBilling) *AccountStatus {
	ev, err := q.repo.FindLatestActiveEventByEmail(email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[BillingQuery] event scan failed for %s: %v", email, err)
		}
		return nil
	}

	last := ev.EventTimestamp
	st := &AccountStatus{
		Email:       email,
		Status:      NormalizeStatus(ev.RawStatus),
		Provider:    ev.Provider,
		LastPayment: &last,
		Amount:      ev.Amount,
		Currency:    ev.Currency,
		Source:      "events",
	}
	if cached != nil {
		st.Plan = cached.Plan
	}
	if cached != nil && cached.BillingNext != nil {
		st.NextRenewal = cached.BillingNext
	} else {
		next := last.AddDate(0, 0, q.policy.RenewalIntervalDays)
		st.NextRenewal = &next
	}
	q.persist(cached, st)
	return st
}

func (q *QueryService) defaultStatus(email string, cached *models.UserBilling) *AccountStatus {
	plan := ""
	if cached != nil {
		plan = cached.Plan
	}
	next := q.now().AddDate(0, 0, q.policy.RenewalIntervalDays)
	st := &AccountStatus{
		Email:       email,
		Plan:        string(plans.Normalize(plan)),
		Status:      models.BillingStatusPending,
		NextRenewal: &next,
		Amount:      plans.DefaultAmount(plans.Normalize(plan)),
		Source:      "default",
	}
	q.persist(cached, st)
	return st
}

// persist write-throughs a resolved answer into the account cache,
// best-effort. A nil cache row means the account is unknown to the engine
// yet; nothing to persist then.
func (q *QueryService) persist(cached *models.UserBilling, st *AccountStatus) {
	if cached == nil {
		return
	}
	cached.BillingStatus = st.Status
	cached.BillingNext = st.NextRenewal
	if st.Amount != 0 {
		cached.BillingAmount = st.Amount
	}
	if st.Currency != "" {
		cached.BillingCurrency = st.Currency
	}
	if st.Provider != "" {
		cached.BillingProvider = st.Provider
	}
	if st.Plan != "" && cached.Plan == "" {
		cached.Plan = st.Plan
	}
	if err := q.repo.SaveUserBilling(cached); err != nil {
		log.Errorf("[BillingQuery] cache write failed for %s: %v", st.Email, err)
	}
}

func statusFromCache(email string, ub *models.UserBilling, source string) *AccountStatus {
	return &AccountStatus{
		Email:       email,
		Plan:        ub.Plan,
		Status:      ub.BillingStatus,
		Provider:    ub.BillingProvider,
		NextRenewal: ub.BillingNext,
		Amount:      ub.BillingAmount,
		Currency:    ub.BillingCurrency,
		Source:      source,
	}
}
