package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/matthewebeebe/observations-to-insights/pkg/auth"
	"github.com/matthewebeebe/observations-to-insights/pkg/config"
	"github.com/matthewebeebe/observations-to-insights/pkg/database"
	"github.com/matthewebeebe/observations-to-insights/pkg/handlers"
	"github.com/matthewebeebe/observations-to-insights/pkg/llm"
	"github.com/matthewebeebe/observations-to-insights/pkg/middleware"
	"github.com/matthewebeebe/observations-to-insights/pkg/prompts"
	"github.com/matthewebeebe/observations-to-insights/pkg/repositories"
	"github.com/matthewebeebe/observations-to-insights/pkg/retry"
	"github.com/matthewebeebe/observations-to-insights/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Bool("database_configured", cfg.Database.Configured()),
		zap.Bool("ai_configured", cfg.AI.Configured()))

	store := openStore(cfg, logger)

	registry, err := prompts.NewRegistryFromFile(cfg.PromptOverridesPath)
	if err != nil {
		logger.Fatal("Failed to load prompt overrides", zap.Error(err))
	}

	var client llm.Client
	if cfg.AI.Configured() {
		client, err = llm.NewClient(cfg.AI.Provider, &llm.Config{
			Endpoint: cfg.AI.Endpoint,
			Model:    cfg.AI.Model,
			APIKey:   cfg.AI.APIKey,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create completion client", zap.Error(err))
		}
	} else {
		logger.Warn("Completion service not configured; suggestions and coaching resolve empty")
	}

	suggestions := services.NewSuggestionService(registry, client, cfg.AI.Temperature, logger)
	synthesis := services.NewSynthesisService(store, suggestions, logger)
	cache := services.NewSuggestionCache(synthesis, suggestions, logger)
	coaching := services.NewCoachingService(suggestions, cfg.Coaching.Debounce(), cfg.Coaching.MinLength, logger)
	export := services.NewExportService(synthesis)

	sessionStore := auth.NewSessionStore(cfg.Auth.SessionSecret)
	authMiddleware := auth.NewMiddleware(cfg.Auth, sessionStore, logger)
	authService := auth.NewService(cfg.Auth, sessionStore, cfg.SignInWebhookURL, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg.Version, store.Mode, logger).RegisterRoutes(mux)
	handlers.NewProjectsHandler(synthesis, export, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewObservationsHandler(synthesis, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewEntitiesHandler(synthesis, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewSuggestionsHandler(cache, synthesis, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewCoachingHandler(coaching, logger).RegisterRoutes(mux, authMiddleware)
	mux.HandleFunc("POST /api/auth/sign-in", authService.HandleSignIn)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting server", zap.String("addr", addr), zap.String("store_mode", store.Mode))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// openStore connects to PostgreSQL when configured, falling back to the
// in-memory store for local-only use.
func openStore(cfg *config.Config, logger *zap.Logger) *repositories.Store {
	if !cfg.Database.Configured() {
		logger.Warn("No database configured; using in-memory store (data is lost on restart)")
		return repositories.NewMemoryStore()
	}

	ctx := context.Background()
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.URL(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	migrationDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	defer migrationDB.Close()

	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	return repositories.NewPostgresStore(db)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
