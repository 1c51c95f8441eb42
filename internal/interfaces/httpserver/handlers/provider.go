package handlers

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/infrastructure/realtime"
)

// Provider holds all HTTP handlers.
type Provider struct {
	Chat *ChatHandler
	Auth *AuthHandler
	WS   *WSHandler
}

// NewProvider creates a new handler provider.
func NewProvider(chatHandler *ChatHandler, authHandler *AuthHandler, wsHandler *WSHandler) *Provider {
	return &Provider{
		Chat: chatHandler,
		Auth: authHandler,
		WS:   wsHandler,
	}
}

// NewDefaultProvider assembles every handler from the domain services.
func NewDefaultProvider(chats chat.Service, turns TurnSubmitter, users Authenticator, hub *realtime.Hub, log zerolog.Logger) *Provider {
	chatHandler := NewChatHandler(chats, turns)
	return NewProvider(
		chatHandler,
		NewAuthHandler(users),
		NewWSHandler(hub, chatHandler, turns, log),
	)
}

// HandlerProvider provides all handlers for wire.
var HandlerProvider = wire.NewSet(
	NewChatHandler,
	NewAuthHandler,
	NewWSHandler,
	NewProvider,
	wire.Bind(new(TurnSubmitter), new(*inference.Service)),
	wire.Bind(new(Authenticator), new(*user.Service)),
)
