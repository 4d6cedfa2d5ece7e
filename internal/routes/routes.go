package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-pay/custodia/internal/account"
	"github.com/custodia-pay/custodia/internal/config"
	"github.com/custodia-pay/custodia/internal/custodian"
	"github.com/custodia-pay/custodia/internal/faucet"
	"github.com/custodia-pay/custodia/internal/identity"
	"github.com/custodia-pay/custodia/internal/middleware"
	"github.com/custodia-pay/custodia/internal/notification"
	"github.com/custodia-pay/custodia/internal/provision"
	"github.com/custodia-pay/custodia/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes. Backend and
// Identity may be injected; when nil the simulated backend and JWT provider
// are used.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Backend  custodian.Backend
	Identity identity.Provider
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	// Health
	RegisterHealthRoutes(app, d)

	// Stores and external collaborators
	var store account.Store
	if d.DB != nil {
		store = account.NewPostgresStore(d.DB)
	} else {
		store = account.NewMemoryStore()
	}

	backend := d.Backend
	if backend == nil {
		backend = custodian.NewSimulator()
	}

	provider := d.Identity
	if provider == nil {
		provider = identity.NewJWTProvider(d.Cfg.JWTSecret, d.Cfg.JWTIssuer)
	}

	var locks provision.Locker
	if d.Cache != nil {
		locks = provision.NewRedisLocker(d.Cache, d.Cfg.ProvisionLockTTL)
	} else {
		locks = provision.NewLocalLocker()
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	provisionSvc := provision.NewService(store, backend, locks, d.Cfg.Faucet, d.Logger)
	faucetSvc := faucet.NewService(store, backend, d.Cfg.Faucet, notifier, d.Logger)
	transferSvc := transfer.NewService(store, backend, notifier)

	provisionHandler := provision.NewHandler(provisionSvc)
	faucetHandler := faucet.NewHandler(faucetSvc)
	transferHandler := transfer.NewHandler(transferSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Everything else requires a resolved identity. Idempotency caching is
	// scoped to that identity, so it runs inside the authenticated group.
	protected := api.Group("", middleware.Auth(provider), middleware.Audit(d.Logger))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterAccountRoutes(protected, provisionHandler)
	RegisterFaucetRoutes(protected, faucetHandler)
	RegisterTransferRoutes(protected, transferHandler)

	return nil
}
