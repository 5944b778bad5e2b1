package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"zinara-backend/internal/audit"
	"zinara-backend/internal/certificates"
	"zinara-backend/internal/config"
	"zinara-backend/internal/health"
	"zinara-backend/internal/infrastructure/database"
	"zinara-backend/internal/manifests"
	"zinara-backend/internal/masters"
	"zinara-backend/internal/middleware"
	"zinara-backend/internal/reports"
	"zinara-backend/internal/thresholds"
)

// CreateApp builds the Fiber app with all global middleware, services and
// routes. The returned DB and Redis handles let the entrypoint verify
// connectivity before listening.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opts)
		middleware.MarkStartTime(rdb)
	}

	app.Use(middleware.CORS(cfg.FrontendOrigin))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	healthHandlers := &health.Handlers{
		Service:  &health.Service{DB: db, Rdb: rdb},
		AdminKey: cfg.HealthAdminKey,
	}
	healthHandlers.RegisterRoutes(app)

	if db != nil {
		auditService := &audit.Service{DB: db}
		certService := &certificates.Service{DB: db, Audit: auditService}
		manifestService := &manifests.Service{DB: db, Audit: auditService}
		thresholdService := &thresholds.Service{DB: db, Manifests: manifestService, Audit: auditService}
		reportService := &reports.Service{DB: db, Thresholds: thresholdService}
		masterService := &masters.Service{DB: db}

		api := app.Group("/api/v1", middleware.Actor())
		(&certificates.Handlers{Service: certService}).RegisterRoutes(api)
		(&manifests.Handlers{Service: manifestService}).RegisterRoutes(api)
		(&thresholds.Handlers{Service: thresholdService}).RegisterRoutes(api)
		(&audit.Handlers{Service: auditService}).RegisterRoutes(api)
		(&reports.Handlers{Service: reportService}).RegisterRoutes(api)
		(&masters.Handlers{Service: masterService}).RegisterRoutes(api)
	}

	return app, db, rdb, nil
}
