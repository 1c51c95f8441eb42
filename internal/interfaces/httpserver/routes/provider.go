package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/config"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/handlers"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/middlewares"
	v1 "github.com/janhq/evaluator-server/internal/interfaces/httpserver/routes/v1"
)

// Provider holds all route providers.
type Provider struct {
	V1          *v1.Routes
	tokens      middlewares.TokenParser
	authEnabled bool
	log         zerolog.Logger
}

// NewProvider creates a new route provider.
func NewProvider(cfg *config.Config, handlerProvider *handlers.Provider, tokens middlewares.TokenParser, log zerolog.Logger) *Provider {
	return &Provider{
		V1:          v1.NewRoutes(handlerProvider),
		tokens:      tokens,
		authEnabled: cfg.AuthEnabled,
		log:         log,
	}
}

// Register registers all routes on the engine.
func (p *Provider) Register(engine *gin.Engine) {
	optional := middlewares.OptionalAuth(p.tokens)
	if !p.authEnabled {
		p.log.Warn().Msg("AUTH_ENABLED is false, trusting X-User-Id headers")
		p.V1.Register(engine, middlewares.HeaderAuth(), optional)
		return
	}
	p.V1.Register(engine, middlewares.RequireAuth(p.tokens, p.log), optional)
}

// RouteProvider provides all routes for wire.
var RouteProvider = wire.NewSet(
	NewProvider,
)
