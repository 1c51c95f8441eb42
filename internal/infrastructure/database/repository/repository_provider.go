package repository

import (
	"github.com/google/wire"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/repository/chatrepo"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/repository/userrepo"
)

var RepositoryProvider = wire.NewSet(
	chatrepo.NewChatGormRepository,
	wire.Bind(new(chat.ConversationRepository), new(*chatrepo.ChatGormRepository)),
	userrepo.NewUserGormRepository,
)
