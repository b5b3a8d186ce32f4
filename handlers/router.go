// handlers/router.go
package handlers

import (
	"habit-progression-engine/logger"
	"habit-progression-engine/middleware"
	"habit-progression-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles everything the routes call into.
type Services struct {
	Progression *services.ProgressionService
	Badges      *services.BadgeService
	Catalog     *services.CatalogService
	Dungeons    *services.DungeonService
	Pets        *services.PetService
	Guilds      *services.GuildService
	Treasury    *services.TreasuryService
	Raids       *services.RaidService
}

type AppConfig struct {
	GatewayToken   string
	AllowedOrigins string
}

// NewApp builds the fiber app with gateway auth, CORS, metrics and every route.
func NewApp(cfg AppConfig, svc Services, log *logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "habit-progression-engine",
		BodyLimit: 1 * 1024 * 1024,
	})

	app.Use(recover.New())

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, log))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Registered before the user group so they need no X-User-ID.
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	secured := app.Group("/", middleware.UserContextMiddleware(log))

	SetupProgressionRoutes(secured, svc.Progression, svc.Badges, svc.Catalog)
	SetupDungeonRoutes(secured, svc.Dungeons, svc.Pets)
	SetupGuildRoutes(secured, svc.Guilds, svc.Treasury, svc.Raids)

	admin := secured.Group("/admin", middleware.RequireRole("admin", log))
	SetupAdminRoutes(admin, svc.Catalog, svc.Pets)

	return app
}
