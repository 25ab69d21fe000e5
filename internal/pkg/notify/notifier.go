package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/siteforge/SiteForge/internal/pkg/env"
	"github.com/siteforge/SiteForge/internal/pkg/mail"
)

// Service bundles the side effects the reconciliation engine may request:
// the tenant toggle call and the notice emails. It implements
// billing.Notifier.
type Service struct {
	toggle *ToggleClient
	send   func(to, subject, body string) error
}

// NewService creates a notifier backed by the SMTP mailer.
func NewService() *Service {
	return &Service{
		toggle: NewToggleClient(),
		send:   mail.SendMail,
	}
}

// ToggleSite enables or disables a tenant site via its hook endpoint.
func (s *Service) ToggleSite(ctx context.Context, toggleURL, slug string, active bool) error {
	return s.toggle.Toggle(ctx, toggleURL, slug, active)
}

// SendRenewalPending emails the account that its subscription renewal is
// overdue and the site will be suspended after the grace period.
func (s *Service) SendRenewalPending(to, slug string, nextRenewal time.Time) error {
	appName := env.GetEnv("APP_NAME", "SiteForge")
	subject := fmt.Sprintf("%s: your subscription renewal is pending", appName)
	body := fmt.Sprintf(`<h2>Renewal pending</h2>
<p>The renewal for your site <strong>%s</strong> was due on %s and we have not received a payment yet.</p>
<p>Please renew soon, otherwise the site will be suspended automatically.</p>`,
		slug, nextRenewal.Format("2006-01-02"))
	return s.send(to, subject, body)
}

// SendCancellation emails the account that its subscription was cancelled
// and the site disabled.
func (s *Service) SendCancellation(to, slug string) error {
	appName := env.GetEnv("APP_NAME", "SiteForge")
	subject := fmt.Sprintf("%s: your subscription was cancelled", appName)
	body := fmt.Sprintf(`<h2>Subscription cancelled</h2>
<p>Your subscription stayed unpaid past the grace period, so your site <strong>%s</strong> has been disabled.</p>
<p>Renewing your subscription will re-enable it.</p>`, slug)
	return s.send(to, subject, body)
}
