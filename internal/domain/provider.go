package domain

import (
	"github.com/google/wire"

	"github.com/janhq/evaluator-server/internal/config"
	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/domain/migration"
	"github.com/janhq/evaluator-server/internal/domain/user"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	// Conversation store
	chat.NewService,
	wire.Bind(new(inference.MessageSaver), new(chat.Service)),

	// Inference
	inference.NewService,
	ProvideAggregatorConfig,
	inference.NewAggregator,

	// Guest session merge
	migration.NewService,
	wire.Bind(new(user.SessionMerger), new(*migration.Service)),

	// Auth
	ProvideUserServiceConfig,
	user.NewService,
)

func ProvideAggregatorConfig(cfg *config.Config) inference.AggregatorConfig {
	return inference.AggregatorConfig{
		SessionTTL:         cfg.StreamSessionTTL,
		FinalizedCacheSize: cfg.FinalizedCacheSize,
	}
}

func ProvideUserServiceConfig(cfg *config.Config) user.ServiceConfig {
	return user.ServiceConfig{
		GuestTokenTTL: cfg.GuestTokenTTL,
		UserTokenTTL:  cfg.UserTokenTTL,
	}
}
