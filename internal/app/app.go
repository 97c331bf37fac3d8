package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/jomaguevco/chatdex-sub001/internal/config"
	httpserver "github.com/jomaguevco/chatdex-sub001/internal/http"
	"github.com/jomaguevco/chatdex-sub001/internal/infrastructure/auth"
	"github.com/jomaguevco/chatdex-sub001/internal/infrastructure/database"
)

// Run starts the application: it opens infrastructure, wires the container,
// warms the catalog index, launches the session sweeper and serves HTTP.
func Run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.Open(cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	cas, err := auth.NewCasbinService(db, cfg.CasbinModelPath)
	if err != nil {
		return fmt.Errorf("init casbin: %w", err)
	}

	redisClient := database.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx := context.Background()
	if err := database.Ping(ctx, redisClient); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	c := NewContainer(cfg, db, redisClient, cas, logger)

	if err := c.Resolver.Reindex(ctx); err != nil {
		// The index warms lazily through the admin reindex if the first load
		// fails; the bot still answers with degraded matching.
		logger.Warn("initial catalog index load failed", slog.String("error", err.Error()))
	}

	seedDefaultPolicies(c)
	c.Sweeper.Start(ctx)

	router := httpserver.BuildRouter(c.WebhookHandler, c.AdminHandler, c.AuthMW)
	addr := ":" + cfg.Port
	logger.Info("server listening", slog.String("addr", addr))
	return router.Run(addr)
}

// seedDefaultPolicies grants the admin role access to the operational API on
// first boot. AddPolicy is idempotent; existing rules are left untouched.
func seedDefaultPolicies(c *Container) {
	if err := c.Policies.AddPolicy("role_admin", "/admin/*", "(GET|POST|PUT|DELETE)"); err != nil {
		c.Logger.Warn("seeding admin policy failed", slog.String("error", err.Error()))
	}
}
