package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/siteforge/SiteForge/app/controllers"
	"github.com/siteforge/SiteForge/app/repository"
	"github.com/siteforge/SiteForge/internal/pkg/billing"
	"github.com/siteforge/SiteForge/internal/pkg/constants"
	"github.com/siteforge/SiteForge/internal/pkg/database"
	"github.com/siteforge/SiteForge/internal/pkg/middleware"
	"github.com/siteforge/SiteForge/internal/pkg/scheduler"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	db := database.GetDB()
	factory := repository.NewFactory(db)
	repository.SetGlobalFactory(factory)
	repos := factory.GetRepositories()

	policy := billing.PolicyFromEnv()
	billingRepo := billing.NewRepository(db)
	controllers.InitializeBillingController(
		billing.NewQueryService(billingRepo, policy),
		billing.NewGate(billingRepo, policy),
		scheduler.GetManager(),
		repos.Event,
	)
	controllers.InitializeAdminController(repos.Site, repos.Hook, repos.Snapshot)

	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group(constants.APIV1Route)

	bill := v1.Group(constants.BillingRoute)
	bill.Get("/status", controllers.HandleAccountStatus)
	bill.Post("/admission", controllers.HandleAdmission)
	bill.Post("/events", middleware.APIKeyAuthMiddleware(), controllers.HandleIngestEvent)
	bill.Post("/recompute", middleware.APIKeyAuthMiddleware(), controllers.HandleRecompute)

	admin := v1.Group(constants.AdminRoute, middleware.APIKeyAuthMiddleware(), middleware.RequireAdmin())
	admin.Get("/billing/snapshots", controllers.HandleAdminSnapshots)
	admin.Get("/billing/metrics", controllers.HandleAdminMetrics)
	admin.Post("/sites/:slug/block", controllers.HandleAdminBlockSite)
	admin.Post("/sites/:slug/unblock", controllers.HandleAdminUnblockSite)
	admin.Post("/hooks", controllers.HandleAdminUpsertHook)
	admin.Get("/hooks", controllers.HandleAdminListHooks)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
