// Package app wires together all dependencies and runs the service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/WajidAliShah2004/slack-bot/internal/config"
	"github.com/WajidAliShah2004/slack-bot/internal/event"
	handler "github.com/WajidAliShah2004/slack-bot/internal/handler/http"
	"github.com/WajidAliShah2004/slack-bot/internal/oauth"
	"github.com/WajidAliShah2004/slack-bot/internal/repository/postgres"
	redisrepo "github.com/WajidAliShah2004/slack-bot/internal/repository/redis"
	"github.com/WajidAliShah2004/slack-bot/internal/service"
	"github.com/WajidAliShah2004/slack-bot/internal/token"
	"github.com/WajidAliShah2004/slack-bot/internal/webhook"
	"github.com/WajidAliShah2004/slack-bot/migrations"
	"github.com/WajidAliShah2004/slack-bot/pkg/database"
	"github.com/WajidAliShah2004/slack-bot/pkg/health"
	pkgkafka "github.com/WajidAliShah2004/slack-bot/pkg/kafka"
	"github.com/WajidAliShah2004/slack-bot/pkg/tracing"
)

// App holds the running components of the service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "slack-bot")

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	provider, err := oauth.New(oauth.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		TenantID:     cfg.OAuthTenantID,
		RedirectURL:  cfg.OAuthRedirectURL,
		Scopes:       cfg.OAuthScopes,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("configure oauth provider: %w", err)
	}

	cipherKey := cfg.TokenCipherKey
	if cipherKey == "" && cfg.Environment == "development" {
		// All-zero key so the service starts without configuration.
		// Load() rejects an empty key outside development.
		cipherKey = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	}
	cipher, err := token.NewCipher(cipherKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("configure token cipher: %w", err)
	}

	// Build the dependency graph.
	tokens := token.NewManager(cfg.SessionSecret, cfg.SessionTokenLifetime)
	userRepo := postgres.NewUserRepository(pool)
	grantRepo := postgres.NewGrantRepository(pool)
	eventRepo := postgres.NewAuthEventRepository(pool)
	stateStore := redisrepo.NewStateStore(redisClient)
	eventProducer := event.NewProducer(producer, logger)

	authService := service.NewAuthService(
		userRepo, grantRepo, eventRepo, stateStore,
		tokens, cipher, provider, eventProducer,
		cfg.StateTTL, logger,
	)

	verifier := webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	cookieSecure := cfg.Environment != "development"
	authHandler := handler.NewAuthHandler(authService, cfg.FrontendURL, cfg.SessionTokenLifetime, cookieSecure, logger)
	adminHandler := handler.NewAdminHandler(authService, logger)
	webhookHandler := handler.NewWebhookHandler(verifier, handler.NewLoggingSink(logger), logger)

	router := handler.NewRouter(authHandler, adminHandler, webhookHandler, authService, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops all components in order: drain HTTP, flush tracer, close
// Kafka, then close the data stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application stopped")
	return errors.Join(errs...)
}
