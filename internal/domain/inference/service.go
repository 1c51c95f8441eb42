package inference

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/infrastructure/metrics"
	"github.com/janhq/evaluator-server/internal/utils/idgen"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// SubmitInput is one user turn.
type SubmitInput struct {
	ConversationID string
	Content        chat.Content
}

// Service turns user messages into inference tasks.
type Service struct {
	store      MessageSaver
	dispatcher Dispatcher
	log        zerolog.Logger
}

// NewService creates the turn submission service.
func NewService(store MessageSaver, dispatcher Dispatcher, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		log:        log.With().Str("component", "inference-service").Logger(),
	}
}

// SubmitTurn persists the user message and dispatches an inference task for it. When the
// dispatch fails the message stays persisted and the broker error is returned.
func (s *Service) SubmitTurn(ctx context.Context, principal user.Principal, input SubmitInput) (*chat.MessageEnvelope, error) {
	if strings.TrimSpace(input.Content.Text) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"content text is required", nil, "")
	}

	correlationID := idgen.NewUUID()
	envelope, err := s.store.SaveMessage(ctx, chat.SaveMessageInput{
		Sender:         chat.SenderUser,
		Content:        input.Content,
		ConversationID: input.ConversationID,
		UserID:         principal.UserID,
		CorrelationID:  correlationID,
		IsGuest:        principal.IsGuest,
	})
	if err != nil {
		return nil, err
	}

	position, err := s.dispatcher.Dispatch(ctx, Task{
		CorrelationID:  correlationID,
		UserID:         principal.UserID,
		ConversationID: envelope.ConversationID,
		RoomID:         envelope.ConversationID,
		Message:        input.Content.Text,
		Context:        EmptyContext,
		IsGuest:        principal.IsGuest,
	})
	metrics.RecordDispatch(err)
	if err != nil {
		s.log.Error().Err(err).
			Str("correlation_id", correlationID).
			Str("message_id", envelope.ID).
			Msg("failed to dispatch inference task")
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to dispatch inference task")
	}

	s.log.Debug().
		Str("correlation_id", correlationID).
		Str("conversation_id", envelope.ConversationID).
		Str("position", position).
		Msg("inference task dispatched")
	return envelope, nil
}
