//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/janhq/evaluator-server/internal/config"
	"github.com/janhq/evaluator-server/internal/domain"
	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/domain/migration"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/infrastructure/auth"
	"github.com/janhq/evaluator-server/internal/infrastructure/crontab"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/repository"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/repository/chatrepo"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/transaction"
	"github.com/janhq/evaluator-server/internal/infrastructure/realtime"
	"github.com/janhq/evaluator-server/internal/infrastructure/redisstream"
	"github.com/janhq/evaluator-server/internal/infrastructure/store"
	"github.com/janhq/evaluator-server/internal/interfaces"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/evaluator-server/pkg/observability"
	"github.com/janhq/evaluator-server/pkg/observability/worker"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	transaction.NewDatabase,
	repository.RepositoryProvider,
	wire.Bind(new(migration.Importer), new(*chatrepo.ChatGormRepository)),
	store.NewMemoryStore,
	wire.Bind(new(chat.GuestRepository), new(*store.MemoryStore)),
	wire.Bind(new(crontab.IdleEvicter), new(*store.MemoryStore)),
	ProvideTokenManager,
	wire.Bind(new(user.TokenIssuer), new(*auth.TokenManager)),
	wire.Bind(new(middlewares.TokenParser), new(*auth.TokenManager)),
	realtime.NewHub,
	wire.Bind(new(inference.Notifier), new(*realtime.Hub)),
	ProvideDispatcher,
	wire.Bind(new(inference.Dispatcher), new(*redisstream.Dispatcher)),
	ProvideInstrumenter,
	ProvideConsumer,
	ProvideCrontab,
	ProvideReadinessChecks,

	// Domain providers
	domain.ServiceProvider,

	// Interface providers
	interfaces.InterfacesProvider,

	// Application
	NewApplication,
)

// ProvideTokenManager provides the principal token signer.
func ProvideTokenManager(cfg *config.Config) *auth.TokenManager {
	return auth.NewTokenManager(cfg.JWTSecret)
}

// ProvideDispatcher provides the request stream dispatcher.
func ProvideDispatcher(rdb redis.UniversalClient, cfg *config.Config, log zerolog.Logger) *redisstream.Dispatcher {
	return redisstream.NewDispatcher(rdb, cfg.RequestStream, cfg.RequestStreamMaxLen, log)
}

// ProvideInstrumenter provides the consumer job instrumenter.
func ProvideInstrumenter(obs *observability.Provider, cfg *config.Config) (*worker.WorkerInstrumenter, error) {
	return worker.NewWorkerInstrumenter(obs.Tracer, obs.Meter, cfg.ServiceName)
}

// ProvideConsumer provides the result stream consumer.
func ProvideConsumer(
	rdb redis.UniversalClient,
	aggregator *inference.Aggregator,
	instrumenter *worker.WorkerInstrumenter,
	cfg *config.Config,
	log zerolog.Logger,
) *redisstream.Consumer {
	locker := redisstream.NewRedsyncLocker(rdb, consumerLockName(cfg), cfg.ConsumerLockTTL)
	return redisstream.NewConsumer(rdb, locker, aggregator, instrumenter, consumerConfig(cfg), log)
}

// ProvideCrontab provides the guest eviction job.
func ProvideCrontab(guests crontab.IdleEvicter, cfg *config.Config, log zerolog.Logger) *crontab.Crontab {
	return crontab.NewCrontab(guests, cfg.GuestSessionTTL, log)
}

// ProvideReadinessChecks provides the /readyz dependency checks.
func ProvideReadinessChecks(chatRepo *chatrepo.ChatGormRepository, rdb redis.UniversalClient) httpserver.ReadinessChecks {
	return readinessChecks(chatRepo, rdb)
}

// CreateApplication creates the application with all dependencies wired.
func CreateApplication(
	cfg *config.Config,
	log zerolog.Logger,
	db *gorm.DB,
	rdb redis.UniversalClient,
	obs *observability.Provider,
) (*Application, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
