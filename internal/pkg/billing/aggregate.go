package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/siteforge/SiteForge/app/models"
)

// Aggregate is the transient per-run view of one subscription, built by
// folding the registry, the event log and the account billing cache. It is
// created and discarded within a single reconciliation run.
type Aggregate struct {
	SubscriptionID        string
	Email                 string
	SiteSlug              string
	Plan                  string
	Status                string
	Amount                float64
	Currency              string
	Provider              string
	LastApprovedPaymentAt *time.Time
}

// BuildAggregates folds the three stores into per-subscription aggregates.
//
// Registry rows seed slug/plan/email (last registry row wins on a
// subscription id collision). Events are folded in chronological order
// (event timestamp, then insertion id): the last event wins for
// status/amount/email while the maximum timestamp among active-class events
// becomes LastApprovedPaymentAt. Events without a subscription id are
// unattributable and skipped. A subscription with zero events is a valid
// "never paid" aggregate. Missing slug/plan is backfilled from the account
// cache by email.
func BuildAggregates(sites []models.Site, events []models.PaymentEvent, cacheByEmail map[string]*models.UserBilling) []*Aggregate {
	byID := make(map[string]*Aggregate)

	for _, site := range sites {
		if site.SubscriptionID == "" {
			continue
		}
		byID[site.SubscriptionID] = &Aggregate{
			SubscriptionID: site.SubscriptionID,
			Email:          normalizeEmail(site.OwnerEmail),
			SiteSlug:       site.Slug,
			Plan:           site.Plan,
		}
	}

	ordered := make([]models.PaymentEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].EventTimestamp.Equal(ordered[j].EventTimestamp) {
			return ordered[i].EventTimestamp.Before(ordered[j].EventTimestamp)
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, ev := range ordered {
		if !ev.HasSubscription() {
			continue
		}
		agg := byID[ev.SubscriptionID]
		if agg == nil {
			agg = &Aggregate{SubscriptionID: ev.SubscriptionID}
			byID[ev.SubscriptionID] = agg
		}

		agg.Status = ev.RawStatus
		if ev.Amount != 0 {
			agg.Amount = ev.Amount
		}
		if ev.Currency != "" {
			agg.Currency = ev.Currency
		}
		if ev.Provider != "" {
			agg.Provider = ev.Provider
		}
		if email := normalizeEmail(ev.PayerEmail); email != "" {
			agg.Email = email
		}
		if IsActiveStatus(ev.RawStatus) {
			ts := ev.EventTimestamp
			if agg.LastApprovedPaymentAt == nil || ts.After(*agg.LastApprovedPaymentAt) {
				agg.LastApprovedPaymentAt = &ts
			}
		}
	}

	out := make([]*Aggregate, 0, len(byID))
	for _, agg := range byID {
		if cached := cacheByEmail[agg.Email]; cached != nil {
			if agg.SiteSlug == "" {
				agg.SiteSlug = cached.SiteSlug
			}
			if agg.Plan == "" {
				agg.Plan = cached.Plan
			}
		}
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscriptionID < out[j].SubscriptionID })
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
