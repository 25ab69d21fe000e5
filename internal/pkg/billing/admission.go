package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Gate is the onboarding admission checkpoint: a pure predicate over the
// stores deciding whether a user may proceed past the payment step. It
// never writes.
type Gate struct {
	repo   Repository
	policy Policy
	now    func() time.Time
}

// NewGate creates an admission gate.
func NewGate(repo Repository, policy Policy) *Gate {
	return &Gate{repo: repo, policy: policy, now: time.Now}
}

// Admit decides admission for one request. In non-strict mode everyone
// passes. Strict mode requires an active-class event matched by explicit
// payment/subscription id (optionally cross-checked against the requester
// email), or, lacking ids, a recent active-class event for the email.
// Store errors deny in strict mode; the gate fails closed.
func (g *Gate) Admit(ctx context.Context, req AdmissionRequest) AdmissionDecision {
	_ = ctx
	if !g.policy.StrictAdmission {
		return AdmissionDecision{Allowed: true, Reason: "strict admission disabled"}
	}

	email := normalizeEmail(req.Email)

	if req.PaymentID != "" || req.SubscriptionID != "" {
		ev, err := g.repo.FindActiveEventByIDs(strings.TrimSpace(req.PaymentID), strings.TrimSpace(req.SubscriptionID))
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Errorf("[Admission] event lookup failed: %v", err)
				return AdmissionDecision{Reason: "payment verification unavailable"}
			}
			return AdmissionDecision{Reason: "no approved payment found for the given ids"}
		}
		if g.policy.RequireEmailMatch && ev.PayerEmail != "" && normalizeEmail(ev.PayerEmail) != email {
			return AdmissionDecision{Reason: "payment email does not match requester"}
		}
		return g.checkTenantBinding(email, req.SiteSlug)
	}

	since := g.now().AddDate(0, 0, -g.policy.AdmissionWindowDays)
	if _, err := g.repo.FindRecentActiveEventByEmail(email, since); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Admission] recent event lookup failed for %s: %v", email, err)
			return AdmissionDecision{Reason: "payment verification unavailable"}
		}
		return AdmissionDecision{Reason: "no recent approved payment for this email"}
	}
	return g.checkTenantBinding(email, req.SiteSlug)
}

// checkTenantBinding optionally rejects an email that is already bound to
// a different site in the registry.
func (g *Gate) checkTenantBinding(email, slug string) AdmissionDecision {
	if !g.policy.EnforceSingleTenant || slug == "" {
		return AdmissionDecision{Allowed: true, Reason: "payment verified"}
	}
	site, err := g.repo.GetSiteByOwnerEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AdmissionDecision{Allowed: true, Reason: "payment verified"}
		}
		log.Errorf("[Admission] registry lookup failed for %s: %v", email, err)
		return AdmissionDecision{Reason: "registry verification unavailable"}
	}
	if site.Slug != slug {
		return AdmissionDecision{Reason: "email already bound to another site"}
	}
	return AdmissionDecision{Allowed: true, Reason: "payment verified"}
}
