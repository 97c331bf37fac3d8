package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jomaguevco/chatdex-sub001/domain"
	"github.com/jomaguevco/chatdex-sub001/internal/config"
	"github.com/jomaguevco/chatdex-sub001/internal/http/handlers"
	"github.com/jomaguevco/chatdex-sub001/internal/http/middleware"
	"github.com/jomaguevco/chatdex-sub001/internal/infrastructure/auth"
	"github.com/jomaguevco/chatdex-sub001/internal/infrastructure/nlu"
	"github.com/jomaguevco/chatdex-sub001/internal/infrastructure/notifications"
	"github.com/jomaguevco/chatdex-sub001/internal/infrastructure/repositories"
	"github.com/jomaguevco/chatdex-sub001/internal/infrastructure/speech"
	"github.com/jomaguevco/chatdex-sub001/internal/services"
)

// Container holds every wired collaborator for the running application.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	DB    *gorm.DB
	Redis *redis.Client

	Sessions  domain.SessionRepository
	Clients   domain.ClientRepository
	Catalog   *repositories.CatalogRepositoryImpl
	Orders    *repositories.OrderRepositoryImpl
	Messenger domain.Messenger

	Resolver  domain.ProductResolver
	Validator domain.OrderValidator
	Guard     *services.FlowGuard
	Recovery  *services.ErrorRecovery
	Flow      *services.SalesFlowEngine
	Sweeper   *services.SessionSweeper
	Policies  domain.PolicyService
	Tokens    domain.TokenService

	WebhookHandler *handlers.WebhookHandler
	AdminHandler   *handlers.AdminHandler
	AuthMW         *middleware.AuthMW

	CasbinService *auth.CasbinService
}

// NewContainer wires services onto already-opened infrastructure handles.
func NewContainer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, cas *auth.CasbinService, logger *slog.Logger) *Container {
	sessions := repositories.NewSessionRepository(redisClient, cfg.SessionTTL)
	clients := repositories.NewClientRepository(db)
	catalog := repositories.NewCatalogRepository(db)
	orders := repositories.NewOrderRepository(db)

	normalizer := services.NewNormalizer()
	index := services.NewCatalogIndex(catalog, normalizer, services.CatalogIndexConfig{
		CacheSize: cfg.ResolverCacheSize,
		CacheTTL:  cfg.ResolverCacheTTL,
	}, logger)
	resolver := services.NewProductResolver(index, normalizer, services.ResolverConfig{
		Threshold: cfg.ResolverThreshold,
	})
	validator := services.NewOrderValidator(catalog, catalog, resolver, services.DefaultOrderValidatorConfig(), logger)
	fallback := services.NewFallbackClassifier(normalizer)

	guard := services.NewFlowGuard(services.FlowGuardConfig{
		HistorySize:         cfg.FlowHistorySize,
		LoopThreshold:       cfg.FlowLoopThreshold,
		DisconnectionWindow: cfg.DisconnectionWindow,
	}, logger)
	recovery := services.NewErrorRecovery(0, logger)

	var nluService domain.NLUService
	if cfg.NLUBaseURL != "" {
		nluService = nlu.NewHTTPClient(cfg.NLUBaseURL, cfg.NLUAPIKey, cfg.NLUTimeout)
	}
	transcriber := speech.NewHTTPTranscriber(cfg.SpeechBaseURL, cfg.SpeechAPIKey, cfg.SpeechTimeout)

	passwords := auth.NewPasswordService()
	tokens := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer)
	policies := services.NewPolicyService(cas.E)

	flow := services.NewSalesFlowEngine(
		sessions, clients, orders, orders, catalog, catalog,
		resolver, validator, nluService, fallback, guard, recovery, passwords,
		services.SalesFlowConfig{
			NLUTimeout:     cfg.NLUTimeout,
			BackendTimeout: cfg.BackendTimeout,
			RetryAttempts:  cfg.RetryAttempts,
			RetryDelay:     cfg.RetryDelay,
			MaxOptions:     cfg.MaxOptions,
			SessionTTL:     cfg.SessionTTL,
		},
		logger,
	)
	sweeper := services.NewSessionSweeper(sessions, guard, cfg.SweepInterval, logger)

	messenger := notifications.NewTwilioMessenger(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, logger)
	webhookHandler := handlers.NewWebhookHandler(flow, transcriber, messenger, logger)
	adminHandler := handlers.NewAdminHandler(
		tokens, resolver, recovery, sessions, policies, catalog,
		cfg.AdminUser, cfg.AdminPassword, cfg.TokenTTL, logger,
	)
	authMW := middleware.NewAuthMW(tokens, policies)

	return &Container{
		Config: cfg,
		Logger: logger,

		DB:    db,
		Redis: redisClient,

		Sessions:  sessions,
		Clients:   clients,
		Catalog:   catalog,
		Orders:    orders,
		Messenger: messenger,

		Resolver:  resolver,
		Validator: validator,
		Guard:     guard,
		Recovery:  recovery,
		Flow:      flow,
		Sweeper:   sweeper,
		Policies:  policies,
		Tokens:    tokens,

		WebhookHandler: webhookHandler,
		AdminHandler:   adminHandler,
		AuthMW:         authMW,

		CasbinService: cas,
	}
}
