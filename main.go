package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/siteforge/SiteForge/internal/pkg/billing"
	"github.com/siteforge/SiteForge/internal/pkg/cache"
	"github.com/siteforge/SiteForge/internal/pkg/constants"
	"github.com/siteforge/SiteForge/internal/pkg/database"
	"github.com/siteforge/SiteForge/internal/pkg/env"
	"github.com/siteforge/SiteForge/internal/pkg/notify"
	"github.com/siteforge/SiteForge/internal/pkg/router"
	"github.com/siteforge/SiteForge/internal/pkg/scheduler"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	setupReconciler()

	app := fiber.New(fiber.Config{
		AppName: env.GetEnv("APP_NAME", "SiteForge"),
	})
	app.Use(recover.New(), logger.New())
	app.Get(constants.MetricsRoute, monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}

// setupReconciler builds the reconcile engine and starts the periodic loop.
// The run lease TTL stays above the engine timeout so a crashed holder
// cannot block the next run forever while a live one still owns it.
func setupReconciler() {
	policy := billing.PolicyFromEnv()
	engine := billing.NewEngineFromDB(database.GetDB(), notify.NewService(), policy)
	lease := billing.NewRunLease(cache.GetClient(), policy.RunTimeout+time.Minute)

	interval := 6 * time.Hour
	if raw := env.GetEnv("BILLING_RECONCILE_INTERVAL_MINUTES", ""); raw != "" {
		if minutes, err := time.ParseDuration(raw + "m"); err == nil && minutes > 0 {
			interval = minutes
		}
	}

	scheduler.Setup(engine, lease, interval).Start()
}
