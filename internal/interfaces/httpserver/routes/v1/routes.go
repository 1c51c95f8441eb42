package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/handlers"
)

// Routes holds the v1 route configuration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes creates a new v1 routes instance.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{
		handlers: handlerProvider,
	}
}

// Register registers all v1 routes on the engine. Login routes get optionalAuth so a guest
// token can be picked up for merging; everything else requires authMiddleware.
func (r *Routes) Register(engine *gin.Engine, authMiddleware, optionalAuth gin.HandlerFunc) {
	v1 := engine.Group("/v1")

	public := v1.Group("")
	if optionalAuth != nil {
		public.Use(optionalAuth)
	}
	RegisterAuthRoutes(public, r.handlers.Auth)

	protected := v1.Group("")
	if authMiddleware != nil {
		protected.Use(authMiddleware)
	}
	RegisterAccountRoutes(protected, r.handlers.Auth)
	RegisterChatRoutes(protected, r.handlers.Chat, r.handlers.WS)
}
