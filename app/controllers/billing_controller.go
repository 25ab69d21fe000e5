package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/siteforge/SiteForge/app/models"
	"github.com/siteforge/SiteForge/app/repository"
	"github.com/siteforge/SiteForge/internal/pkg/billing"
	"github.com/siteforge/SiteForge/internal/pkg/plans"
	"github.com/siteforge/SiteForge/internal/pkg/scheduler"
)

var (
	queryService     *billing.QueryService
	admissionGate    *billing.Gate
	reconcileManager *scheduler.Manager
	eventRepo        repository.EventRepository

	validate = validator.New()
)

// InitializeBillingController wires the billing endpoints to their
// collaborators. Must be called during router installation.
func InitializeBillingController(q *billing.QueryService, g *billing.Gate, m *scheduler.Manager, events repository.EventRepository) {
	queryService = q
	admissionGate = g
	reconcileManager = m
	eventRepo = events
}

// IngestEventRequest is the normalized event shape appended by upstream
// webhook handling after signature verification.
type IngestEventRequest struct {
	SubscriptionID string  `json:"subscription_id"`
	PaymentID      string  `json:"payment_id"`
	Provider       string  `json:"provider" validate:"required"`
	RawStatus      string  `json:"raw_status" validate:"required"`
	PayerEmail     string  `json:"payer_email" validate:"omitempty,email"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency" validate:"omitempty,len=3"`
	EventTimestamp string  `json:"event_timestamp"`
	RawPayload     string  `json:"raw_payload"`
}

// HandleIngestEvent appends one payment event to the log and triggers an
// asynchronous recompute.
func HandleIngestEvent(c *fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	ts := time.Now()
	if req.EventTimestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.EventTimestamp)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "event_timestamp must be RFC3339"})
		}
		ts = parsed
	}

	event := &models.PaymentEvent{
		SubscriptionID: strings.TrimSpace(req.SubscriptionID),
		PaymentID:      strings.TrimSpace(req.PaymentID),
		Provider:       strings.ToLower(strings.TrimSpace(req.Provider)),
		RawStatus:      strings.TrimSpace(req.RawStatus),
		PayerEmail:     strings.ToLower(strings.TrimSpace(req.PayerEmail)),
		Amount:         req.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
		RawPayloadJSON: req.RawPayload,
		EventTimestamp: ts,
	}
	if err := eventRepo.Append(event); err != nil {
		log.Errorf("event append failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not store event"})
	}

	// A new event makes the current snapshot stale; recompute out of band.
	// Detached context: the request context dies with this handler.
	go func() {
		_, _ = reconcileManager.RunOnce(context.Background())
	}()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": event.ID})
}

// HandleRecompute runs a full reconciliation immediately and returns the
// run report.
func HandleRecompute(c *fiber.Ctx) error {
	report, err := reconcileManager.RunOnce(c.UserContext())
	if err != nil {
		log.Errorf("recompute failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Recompute failed"})
	}
	if report == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Another reconcile run is in progress"})
	}
	return c.JSON(report)
}

// HandleAccountStatus answers a single-account billing lookup.
func HandleAccountStatus(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "email query parameter is required"})
	}

	st := queryService.AccountStatus(c.UserContext(), email)
	customDomain, analytics, prioritySupport := plans.Features(plans.Normalize(st.Plan))
	return c.JSON(fiber.Map{
		"status": st,
		"features": fiber.Map{
			"custom_domain":    customDomain,
			"analytics":        analytics,
			"priority_support": prioritySupport,
		},
	})
}

// HandleAdmission answers the onboarding payment checkpoint.
func HandleAdmission(c *fiber.Ctx) error {
	var req billing.AdmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": "email is required"})
	}

	decision := admissionGate.Admit(c.UserContext(), req)
	return c.JSON(decision)
}
