package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/siteforge/SiteForge/app/models"
	"github.com/siteforge/SiteForge/app/repository"
	"github.com/siteforge/SiteForge/internal/pkg/metrics/counter"
)

var (
	siteRepo     repository.SiteRepository
	hookRepo     repository.HookRepository
	snapshotRepo repository.SnapshotRepository
)

// InitializeAdminController wires the admin endpoints to the repositories.
func InitializeAdminController(sites repository.SiteRepository, hooks repository.HookRepository, snapshots repository.SnapshotRepository) {
	siteRepo = sites
	hookRepo = hooks
	snapshotRepo = snapshots
}

// HandleAdminSnapshots lists the current reconciliation snapshot table.
func HandleAdminSnapshots(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 100)
	if limit > 500 {
		limit = 500
	}

	rows, err := snapshotRepo.List(offset, limit)
	if err != nil {
		log.Errorf("snapshot listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not read snapshots"})
	}
	total, err := snapshotRepo.Count()
	if err != nil {
		log.Errorf("snapshot count failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not read snapshots"})
	}

	return c.JSON(fiber.Map{"total": total, "rows": rows})
}

// HandleAdminMetrics returns the reconcile counters.
func HandleAdminMetrics(c *fiber.Ctx) error {
	snap, err := counter.Snapshot()
	if err != nil {
		log.Errorf("counter snapshot failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not read counters"})
	}
	return c.JSON(snap)
}

// HandleAdminBlockSite sets the admin block flag for a site. Admin intent
// is kept apart from the engine's billing block.
func HandleAdminBlockSite(c *fiber.Ctx) error {
	return setAdminBlocked(c, true)
}

// HandleAdminUnblockSite clears the admin block flag for a site.
func HandleAdminUnblockSite(c *fiber.Ctx) error {
	return setAdminBlocked(c, false)
}

func setAdminBlocked(c *fiber.Ctx, blocked bool) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "site slug is required"})
	}

	if _, err := siteRepo.GetBySlug(slug); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown site"})
		}
		log.Errorf("site lookup failed for %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not read site"})
	}

	if err := siteRepo.SetAdminBlocked(slug, blocked); err != nil {
		log.Errorf("admin block update failed for %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not update site"})
	}
	return c.JSON(fiber.Map{"slug": slug, "admin_blocked": blocked})
}

// UpsertHookRequest creates or updates a toggle-endpoint mapping.
type UpsertHookRequest struct {
	Slug      string `json:"slug" validate:"required,min=2,max=100"`
	ToggleURL string `json:"toggle_url" validate:"required,url,max=500"`
}

// HandleAdminUpsertHook registers the toggle endpoint for a site.
func HandleAdminUpsertHook(c *fiber.Ctx) error {
	var req UpsertHookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	hook := &models.SiteHook{Slug: strings.TrimSpace(req.Slug), ToggleURL: strings.TrimSpace(req.ToggleURL)}
	if err := hookRepo.Upsert(hook); err != nil {
		log.Errorf("hook upsert failed for %s: %v", hook.Slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not store hook"})
	}
	return c.JSON(hook)
}

// HandleAdminListHooks lists all registered toggle endpoints.
func HandleAdminListHooks(c *fiber.Ctx) error {
	hooks, err := hookRepo.List()
	if err != nil {
		log.Errorf("hook listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not read hooks"})
	}
	return c.JSON(fiber.Map{"hooks": hooks})
}
