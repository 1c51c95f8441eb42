// @title           Evaluator Server API
// @version         1.0
// @description     Chat evaluation backend. Stores guest and account conversations, dispatches
// @description     user turns to inference workers over Redis Streams and streams replies back
// @description     over websockets.

// @contact.name   Jan Team
// @contact.url    https://github.com/janhq/evaluator-server

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token from /v1/auth/guest, /v1/auth/signup or /v1/auth/login

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/janhq/evaluator-server/internal/config"
	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/domain/migration"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/infrastructure/auth"
	"github.com/janhq/evaluator-server/internal/infrastructure/crontab"
	"github.com/janhq/evaluator-server/internal/infrastructure/database"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/repository/chatrepo"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/repository/userrepo"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/transaction"
	"github.com/janhq/evaluator-server/internal/infrastructure/logger"
	"github.com/janhq/evaluator-server/internal/infrastructure/realtime"
	"github.com/janhq/evaluator-server/internal/infrastructure/redisstream"
	"github.com/janhq/evaluator-server/internal/infrastructure/store"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/handlers"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/routes"
	"github.com/janhq/evaluator-server/pkg/observability"
	"github.com/janhq/evaluator-server/pkg/observability/worker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Application holds the main application components.
type Application struct {
	httpServer *httpserver.HTTPServer
	consumer   *redisstream.Consumer
	crontab    *crontab.Crontab
	log        zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(httpServer *httpserver.HTTPServer, consumer *redisstream.Consumer, ctab *crontab.Crontab, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		consumer:   consumer,
		crontab:    ctab,
		log:        log,
	}
}

// Start runs the HTTP server, the result stream consumer and the guest eviction job until
// ctx is cancelled or one of them fails.
func (a *Application) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.httpServer.Run(ctx) })
	g.Go(func() error { return a.consumer.Run(ctx) })
	g.Go(func() error { return a.crontab.Run(ctx) })
	return g.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup observability
	obs, err := observability.Init(ctx, observability.FromAppConfig(cfg, version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	// Durable store
	gormDB, err := database.Connect(database.Config{
		DatabaseURL: cfg.DatabaseURL,
		TablePrefix: cfg.DBTablePrefix,
		MaxIdle:     cfg.DBMaxIdle,
		MaxOpen:     cfg.DBMaxOpen,
		MaxLifetime: cfg.DBMaxLifetime,
		LogLevel:    database.ParseLogLevel(cfg.DBQueryLogLevel),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	if cfg.DBAutoMigrate {
		if err := database.Migration(gormDB, cfg.DBTablePrefix); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}
	db := transaction.NewDatabase(gormDB)

	// Broker
	rdb, err := redisstream.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create redis client")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}()

	// Repositories and stores
	guests := store.NewMemoryStore(log)
	chatRepo := chatrepo.NewChatGormRepository(db)
	userRepo := userrepo.NewUserGormRepository(db)
	tokens := auth.NewTokenManager(cfg.JWTSecret)
	hub := realtime.NewHub(log)
	dispatcher := redisstream.NewDispatcher(rdb, cfg.RequestStream, cfg.RequestStreamMaxLen, log)

	// Domain services
	chatService := chat.NewService(guests, chatRepo, log)
	inferenceService := inference.NewService(chatService, dispatcher, log)
	mergeService := migration.NewService(guests, chatRepo, log)
	userService := user.NewService(userRepo, tokens, mergeService, user.ServiceConfig{
		GuestTokenTTL: cfg.GuestTokenTTL,
		UserTokenTTL:  cfg.UserTokenTTL,
	}, log)

	aggregator, err := inference.NewAggregator(chatService, hub, inference.AggregatorConfig{
		SessionTTL:         cfg.StreamSessionTTL,
		FinalizedCacheSize: cfg.FinalizedCacheSize,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stream aggregator")
	}

	instrumenter, err := worker.NewWorkerInstrumenter(obs.Tracer, obs.Meter, cfg.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create worker instrumenter")
	}
	consumer := redisstream.NewConsumer(
		rdb,
		redisstream.NewRedsyncLocker(rdb, consumerLockName(cfg), cfg.ConsumerLockTTL),
		aggregator,
		instrumenter,
		consumerConfig(cfg),
		log,
	)

	// Initialize HTTP server
	handlerProvider := handlers.NewDefaultProvider(chatService, inferenceService, userService, hub, log)
	routeProvider := routes.NewProvider(cfg, handlerProvider, tokens, log)
	httpServer := httpserver.New(cfg, log, routeProvider, obs, readinessChecks(chatRepo, rdb))

	// Create and start application
	app := NewApplication(httpServer, consumer, crontab.NewCrontab(guests, cfg.GuestSessionTTL, log), log)

	log.Info().
		Str("service", cfg.ServiceName).
		Str("version", version).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Bool("auth_enabled", cfg.AuthEnabled).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func consumerConfig(cfg *config.Config) redisstream.ConsumerConfig {
	return redisstream.ConsumerConfig{
		Stream:      cfg.ResultStream,
		OffsetKey:   cfg.ResultStreamOffsetKey,
		StartOffset: cfg.ResultStartOffset,
		BatchSize:   cfg.ConsumerBatchSize,
		Block:       cfg.ConsumerBlock,
		Cooldown:    cfg.ConsumerCooldown,
		LockTTL:     cfg.ConsumerLockTTL,
	}
}

func consumerLockName(cfg *config.Config) string {
	return cfg.ResultStream + ":consumer-lock"
}

func readinessChecks(chatRepo *chatrepo.ChatGormRepository, rdb redis.UniversalClient) httpserver.ReadinessChecks {
	return httpserver.ReadinessChecks{
		{Name: "database", Check: chatRepo.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
