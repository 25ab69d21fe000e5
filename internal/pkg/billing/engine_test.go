package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/siteforge/SiteForge/app/models"
)

// fakeRepo is an in-memory Repository shared by the engine, query service
// and admission gate tests.
type fakeRepo struct {
	sites     []models.Site
	events    []models.PaymentEvent
	cache     []models.UserBilling
	hooks     map[string]models.SiteHook
	snapshots []models.BillingSnapshot

	blocked        map[string]bool
	replaceCalls   int
	saveCalls      int
	saveErrFor     string
	eventLookupErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		hooks:   make(map[string]models.SiteHook),
		blocked: make(map[string]bool),
	}
}

func (r *fakeRepo) ListSites() ([]models.Site, error) { return r.sites, nil }

func (r *fakeRepo) ListEvents() ([]models.PaymentEvent, error) { return r.events, nil }

func (r *fakeRepo) ListUserBilling() ([]models.UserBilling, error) {
	out := make([]models.UserBilling, len(r.cache))
	copy(out, r.cache)
	return out, nil
}

func (r *fakeRepo) GetUserBillingByEmail(email string) (*models.UserBilling, error) {
	for i := range r.cache {
		if r.cache[i].Email == email {
			ub := r.cache[i]
			return &ub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) SaveUserBilling(ub *models.UserBilling) error {
	if r.saveErrFor != "" && ub.Email == r.saveErrFor {
		return fmt.Errorf("save failed for %s", ub.Email)
	}
	r.saveCalls++
	for i := range r.cache {
		if r.cache[i].Email == ub.Email {
			r.cache[i] = *ub
			return nil
		}
	}
	r.cache = append(r.cache, *ub)
	return nil
}

func (r *fakeRepo) GetSiteByOwnerEmail(email string) (*models.Site, error) {
	for i := range r.sites {
		if r.sites[i].OwnerEmail == email {
			site := r.sites[i]
			return &site, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) SetSiteBillingBlocked(slug string, blocked bool) error {
	r.blocked[slug] = blocked
	return nil
}

func (r *fakeRepo) GetHookBySlug(slug string) (*models.SiteHook, error) {
	hook, ok := r.hooks[slug]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &hook, nil
}

func (r *fakeRepo) ReplaceSnapshots(rows []models.BillingSnapshot) error {
	r.snapshots = rows
	r.replaceCalls++
	return nil
}

func (r *fakeRepo) ListEventsBySubscription(subscriptionID string) ([]models.PaymentEvent, error) {
	var out []models.PaymentEvent
	for _, ev := range r.events {
		if ev.SubscriptionID == subscriptionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindLatestActiveEventByEmail(email string) (*models.PaymentEvent, error) {
	if r.eventLookupErr != nil {
		return nil, r.eventLookupErr
	}
	return r.latestActive(func(ev models.PaymentEvent) bool {
		return normalizeEmail(ev.PayerEmail) == email
	})
}

func (r *fakeRepo) FindActiveEventByIDs(paymentID, subscriptionID string) (*models.PaymentEvent, error) {
	if r.eventLookupErr != nil {
		return nil, r.eventLookupErr
	}
	return r.latestActive(func(ev models.PaymentEvent) bool {
		if paymentID != "" && ev.PaymentID == paymentID {
			return true
		}
		return subscriptionID != "" && ev.SubscriptionID == subscriptionID
	})
}

func (r *fakeRepo) FindRecentActiveEventByEmail(email string, since time.Time) (*models.PaymentEvent, error) {
	if r.eventLookupErr != nil {
		return nil, r.eventLookupErr
	}
	return r.latestActive(func(ev models.PaymentEvent) bool {
		return normalizeEmail(ev.PayerEmail) == email && !ev.EventTimestamp.Before(since)
	})
}

func (r *fakeRepo) latestActive(match func(models.PaymentEvent) bool) (*models.PaymentEvent, error) {
	var found *models.PaymentEvent
	for i := range r.events {
		ev := r.events[i]
		if !IsActiveStatus(ev.RawStatus) || !match(ev) {
			continue
		}
		if found == nil || ev.EventTimestamp.After(found.EventTimestamp) ||
			(ev.EventTimestamp.Equal(found.EventTimestamp) && ev.ID > found.ID) {
			found = &ev
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return found, nil
}

type toggleCall struct {
	url    string
	slug   string
	active bool
}

type fakeNotifier struct {
	toggles       []toggleCall
	renewals      []string
	cancellations []string
	failAll       bool
}

func (n *fakeNotifier) ToggleSite(_ context.Context, toggleURL, slug string, active bool) error {
	if n.failAll {
		return errors.New("toggle endpoint down")
	}
	n.toggles = append(n.toggles, toggleCall{url: toggleURL, slug: slug, active: active})
	return nil
}

func (n *fakeNotifier) SendRenewalPending(to, _ string, _ time.Time) error {
	if n.failAll {
		return errors.New("smtp down")
	}
	n.renewals = append(n.renewals, to)
	return nil
}

func (n *fakeNotifier) SendCancellation(to, _ string) error {
	if n.failAll {
		return errors.New("smtp down")
	}
	n.cancellations = append(n.cancellations, to)
	return nil
}

func newTestEngine(repo Repository, notifier Notifier, now time.Time) *Engine {
	e := NewEngine(repo, notifier, DefaultPolicy())
	e.now = func() time.Time { return now }
	return e
}

// graceExpiredRepo seeds one subscription whose last approved payment lies
// beyond the renewal interval plus grace.
func graceExpiredRepo() *fakeRepo {
	repo := newFakeRepo()
	repo.sites = []models.Site{
		{ID: 1, Slug: "floreria", OwnerEmail: "ana@example.com", SubscriptionID: "sub-1", Plan: "vip"},
	}
	repo.events = []models.PaymentEvent{
		{ID: 1, SubscriptionID: "sub-1", PaymentID: "pay-1", Provider: "mercadopago", RawStatus: "approved",
			PayerEmail: "ana@example.com", Amount: 99.9, Currency: "ARS",
			EventTimestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	repo.cache = []models.UserBilling{
		{ID: 1, Email: "ana@example.com", SiteSlug: "floreria", Plan: "vip", BillingStatus: "approved"},
	}
	repo.hooks["floreria"] = models.SiteHook{Slug: "floreria", ToggleURL: "http://hooks.internal/floreria"}
	return repo
}

func TestReconcileEmptyStoresIsCleanExit(t *testing.T) {
	repo := newFakeRepo()
	engine := newTestEngine(repo, &fakeNotifier{}, time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC))

	report, err := engine.Reconcile(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Zero(t, report.Subscriptions)
	assert.Zero(t, repo.replaceCalls, "empty stores must not touch the snapshot table")
}

func TestReconcileGraceExpiryCancels(t *testing.T) {
	repo := graceExpiredRepo()
	notifier := &fakeNotifier{}
	engine := newTestEngine(repo, notifier, time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC))

	report, err := engine.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Subscriptions)
	assert.Equal(t, 1, report.Cancelled)
	assert.Zero(t, report.Reactivated)
	assert.Equal(t, 1, report.TogglesSent)
	assert.Equal(t, 1, report.NoticesSent)

	// Side effects: site disabled, registry auto-blocked, owner notified.
	require.Len(t, notifier.toggles, 1)
	assert.Equal(t, "http://hooks.internal/floreria", notifier.toggles[0].url)
	assert.False(t, notifier.toggles[0].active)
	assert.True(t, repo.blocked["floreria"])
	assert.Equal(t, []string{"ana@example.com"}, notifier.cancellations)
	assert.Empty(t, notifier.renewals)

	// Account cache write-through.
	assert.Equal(t, models.BillingStatusCancelled, repo.cache[0].BillingStatus)

	// Snapshot rewrite.
	require.Len(t, repo.snapshots, 1)
	snap := repo.snapshots[0]
	assert.Equal(t, "sub-1", snap.SubscriptionID)
	assert.Equal(t, models.BillingStatusCancelled, snap.Status)
	assert.True(t, snap.Overdue)
	assert.Equal(t, 5, snap.DaysOverdue)
	require.NotNil(t, snap.NextRenewalDate)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), *snap.NextRenewalDate)
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := graceExpiredRepo()
	notifier := &fakeNotifier{}
	now := time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC)

	_, err := newTestEngine(repo, notifier, now).Reconcile(context.Background())
	require.NoError(t, err)

	second, err := newTestEngine(repo, notifier, now).Reconcile(context.Background())
	require.NoError(t, err)

	// The cancellation already happened; the rerun detects no transition
	// and repeats no side effect.
	assert.Zero(t, second.Cancelled)
	assert.Zero(t, second.Reactivated)
	assert.Len(t, notifier.toggles, 1)
	assert.Len(t, notifier.cancellations, 1)
	require.Len(t, repo.snapshots, 1)
	assert.Equal(t, models.BillingStatusCancelled, repo.snapshots[0].Status)
}

func TestReconcileReactivation(t *testing.T) {
	repo := graceExpiredRepo()
	repo.cache[0].BillingStatus = models.BillingStatusCancelled
	repo.blocked["floreria"] = true
	repo.events = append(repo.events, models.PaymentEvent{
		ID: 2, SubscriptionID: "sub-1", PaymentID: "pay-2", Provider: "mercadopago", RawStatus: "approved",
		PayerEmail: "ana@example.com", Amount: 99.9, Currency: "ARS",
		EventTimestamp: time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC),
	})
	notifier := &fakeNotifier{}
	engine := newTestEngine(repo, notifier, time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC))

	report, err := engine.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Reactivated)
	assert.Zero(t, report.Cancelled)
	require.Len(t, notifier.toggles, 1)
	assert.True(t, notifier.toggles[0].active)
	assert.False(t, repo.blocked["floreria"], "reactivation must clear the billing block")
	assert.Equal(t, "approved", repo.cache[0].BillingStatus)
	assert.Empty(t, notifier.cancellations)
}

func TestReconcileSideEffectFailuresDoNotAbort(t *testing.T) {
	repo := graceExpiredRepo()
	notifier := &fakeNotifier{failAll: true}
	engine := newTestEngine(repo, notifier, time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC))

	report, err := engine.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Cancelled)
	assert.Zero(t, report.TogglesSent)
	assert.Zero(t, report.NoticesSent)
	assert.Equal(t, 1, repo.replaceCalls, "snapshot rewrite must survive notifier failures")
	assert.Equal(t, models.BillingStatusCancelled, repo.cache[0].BillingStatus)
}

func TestReconcileCacheWriteFailureSkipsOnlyThatAccount(t *testing.T) {
	repo := graceExpiredRepo()
	repo.sites = append(repo.sites, models.Site{
		ID: 2, Slug: "taller", OwnerEmail: "beto@example.com", SubscriptionID: "sub-2", Plan: "basic",
	})
	repo.events = append(repo.events, models.PaymentEvent{
		ID: 2, SubscriptionID: "sub-2", Provider: "mercadopago", RawStatus: "approved",
		PayerEmail: "beto@example.com", Amount: 39.9, Currency: "ARS",
		EventTimestamp: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	repo.cache = append(repo.cache, models.UserBilling{
		ID: 2, Email: "beto@example.com", SiteSlug: "taller", Plan: "basic", BillingStatus: "approved",
	})
	repo.saveErrFor = "ana@example.com"
	engine := newTestEngine(repo, &fakeNotifier{}, time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC))

	report, err := engine.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Subscriptions)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, repo.snapshots, 1)
	assert.Equal(t, "sub-2", repo.snapshots[0].SubscriptionID)
}

func TestReconcileRenewalNoticeOnlyOnFirstOverdueDay(t *testing.T) {
	tests := []struct {
		name        string
		today       time.Time
		wantNotices int
	}{
		{"first overdue day", time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), 1},
		{"second overdue day", time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC), 0},
		{"not overdue", time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := graceExpiredRepo()
			notifier := &fakeNotifier{}
			engine := newTestEngine(repo, notifier, tt.today)

			_, err := engine.Reconcile(context.Background())
			require.NoError(t, err)
			assert.Len(t, notifier.renewals, tt.wantNotices)
		})
	}
}

func TestReconcileUnknownAccountCreatesCacheRow(t *testing.T) {
	repo := newFakeRepo()
	repo.events = []models.PaymentEvent{
		{ID: 1, SubscriptionID: "sub-x", Provider: "stripe", RawStatus: "approved",
			PayerEmail: "nuevo@example.com", Amount: 39.9, Currency: "USD",
			EventTimestamp: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	engine := newTestEngine(repo, &fakeNotifier{}, time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC))

	report, err := engine.Reconcile(context.Background())
	require.NoError(t, err)

	// The email never registered: the engine still creates the cache row so
	// the status is durable, and the subscription lands in the snapshot.
	assert.Equal(t, 1, report.Subscriptions)
	require.Len(t, repo.cache, 1)
	assert.Equal(t, "nuevo@example.com", repo.cache[0].Email)
	assert.Equal(t, "approved", repo.cache[0].BillingStatus)
	assert.Nil(t, repo.cache[0].UserID)
	require.Len(t, repo.snapshots, 1)
	assert.Equal(t, "nuevo@example.com", repo.snapshots[0].Email)
}

func TestReconcileUnknownAccountTransitionFiresOnce(t *testing.T) {
	repo := graceExpiredRepo()
	// Same expired subscription, but the account never registered.
	repo.cache = nil
	notifier := &fakeNotifier{}
	now := time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC)

	first, err := newTestEngine(repo, notifier, now).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Cancelled)

	second, err := newTestEngine(repo, notifier, now).Reconcile(context.Background())
	require.NoError(t, err)

	// The first run persisted the status in a fresh cache row, so the
	// rerun must not repeat the cancellation side effects.
	assert.Zero(t, second.Cancelled)
	assert.Len(t, notifier.cancellations, 1)
	assert.Len(t, notifier.toggles, 1)
	require.Len(t, repo.cache, 1)
	assert.Equal(t, models.BillingStatusCancelled, repo.cache[0].BillingStatus)
}

func TestReconcileNoEmailSuppressesTransitionEffects(t *testing.T) {
	repo := newFakeRepo()
	repo.sites = []models.Site{
		{ID: 1, Slug: "anonimo", SubscriptionID: "sub-1", Plan: "basic"},
	}
	repo.events = []models.PaymentEvent{
		{ID: 1, SubscriptionID: "sub-1", RawStatus: "approved",
			EventTimestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	repo.hooks["anonimo"] = models.SiteHook{Slug: "anonimo", ToggleURL: "http://hooks.internal/anonimo"}
	notifier := &fakeNotifier{}
	engine := newTestEngine(repo, notifier, time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC))

	report, err := engine.Reconcile(context.Background())
	require.NoError(t, err)

	// With no payer email there is nowhere to persist a previous status,
	// so transition effects would repeat forever; they are suppressed and
	// only the snapshot reflects the derived cancellation.
	assert.Zero(t, report.Cancelled)
	assert.Empty(t, notifier.toggles)
	assert.Empty(t, notifier.cancellations)
	require.Len(t, repo.snapshots, 1)
	assert.Equal(t, models.BillingStatusCancelled, repo.snapshots[0].Status)
}

func TestReconcileSharedEmailComparesAgainstPreviousRun(t *testing.T) {
	repo := graceExpiredRepo()
	repo.sites = append(repo.sites, models.Site{
		ID: 2, Slug: "vivero", OwnerEmail: "ana@example.com", SubscriptionID: "sub-2", Plan: "basic",
	})
	repo.events = append(repo.events, models.PaymentEvent{
		ID: 2, SubscriptionID: "sub-2", Provider: "mercadopago", RawStatus: "approved",
		PayerEmail: "ana@example.com", Amount: 39.9, Currency: "ARS",
		EventTimestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	notifier := &fakeNotifier{}
	now := time.Date(2025, 2, 5, 10, 0, 0, 0, time.UTC)

	first, err := newTestEngine(repo, notifier, now).Reconcile(context.Background())
	require.NoError(t, err)

	// Both subscriptions share the email; both must see the previous run's
	// "approved", not the status their sibling just wrote in this run.
	assert.Equal(t, 2, first.Cancelled)
	assert.Len(t, notifier.cancellations, 2)

	second, err := newTestEngine(repo, notifier, now).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Cancelled)
	assert.Len(t, notifier.cancellations, 2)
}
