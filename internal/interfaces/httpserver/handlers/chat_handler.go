package handlers

import (
	"context"
	"errors"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// TurnSubmitter persists a user turn and dispatches it for inference.
type TurnSubmitter interface {
	SubmitTurn(ctx context.Context, principal user.Principal, input inference.SubmitInput) (*chat.MessageEnvelope, error)
}

// SendMessageInput is a message posted over HTTP.
type SendMessageInput struct {
	ConversationID string
	Sender         chat.Sender
	Content        chat.Content
}

// ChatHandler handles conversation and message requests.
type ChatHandler struct {
	chats chat.Service
	turns TurnSubmitter
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chats chat.Service, turns TurnSubmitter) *ChatHandler {
	return &ChatHandler{chats: chats, turns: turns}
}

// SendMessage stores a message. User messages are also dispatched for inference; assistant
// messages are stored as-is.
func (h *ChatHandler) SendMessage(ctx context.Context, principal user.Principal, input SendMessageInput) (*chat.MessageEnvelope, error) {
	if input.Sender == "" || input.Sender == chat.SenderUser {
		return h.turns.SubmitTurn(ctx, principal, inference.SubmitInput{
			ConversationID: input.ConversationID,
			Content:        input.Content,
		})
	}
	return h.chats.SaveMessage(ctx, chat.SaveMessageInput{
		Sender:         input.Sender,
		Content:        input.Content,
		ConversationID: input.ConversationID,
		UserID:         principal.UserID,
		IsGuest:        principal.IsGuest,
	})
}

// EvaluateMessage rates a message owned by the principal. It returns nil when the message
// does not exist.
func (h *ChatHandler) EvaluateMessage(ctx context.Context, principal user.Principal, messageID string, eval chat.Evaluation) (*chat.MessageEnvelope, error) {
	envelope, err := h.chats.GetMessageByID(ctx, messageID)
	if errors.Is(err, chat.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if envelope.UserID != principal.UserID {
		return nil, forbidden(ctx)
	}
	return h.chats.UpdateMessageEvaluation(ctx, messageID, eval)
}

// GetMessage returns one message owned by the principal.
func (h *ChatHandler) GetMessage(ctx context.Context, principal user.Principal, messageID string) (*chat.MessageEnvelope, error) {
	envelope, err := h.chats.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if envelope.UserID != principal.UserID {
		return nil, forbidden(ctx)
	}
	return envelope, nil
}

// History returns every conversation of the principal with its messages.
func (h *ChatHandler) History(ctx context.Context, principal user.Principal) ([]*chat.ConversationView, error) {
	return h.chats.GetConversationsByUser(ctx, principal.UserID, principal.IsGuest)
}

// Sidebar returns the principal's conversations with their latest message.
func (h *ChatHandler) Sidebar(ctx context.Context, principal user.Principal) ([]*chat.SidebarEntry, error) {
	return h.chats.GetSidebarHistory(ctx, principal.UserID, principal.IsGuest)
}

// Conversation returns a conversation the principal owns.
func (h *ChatHandler) Conversation(ctx context.Context, principal user.Principal, conversationID string) (*chat.ConversationView, error) {
	if _, err := h.chats.AuthorizeConversation(ctx, conversationID, principal.UserID, principal.IsGuest); err != nil {
		return nil, err
	}
	return h.chats.GetFullConversation(ctx, conversationID, principal.IsGuest)
}

// ConversationMessages returns the ordered messages of a conversation the principal owns.
func (h *ChatHandler) ConversationMessages(ctx context.Context, principal user.Principal, conversationID string) ([]*chat.MessageEnvelope, error) {
	if _, err := h.chats.AuthorizeConversation(ctx, conversationID, principal.UserID, principal.IsGuest); err != nil {
		return nil, err
	}
	return h.chats.GetConversationHistory(ctx, conversationID, principal.IsGuest)
}

// Authorize checks that the principal owns the conversation.
func (h *ChatHandler) Authorize(ctx context.Context, principal user.Principal, conversationID string) error {
	_, err := h.chats.AuthorizeConversation(ctx, conversationID, principal.UserID, principal.IsGuest)
	return err
}

func forbidden(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeForbidden,
		"message belongs to another user", chat.ErrForbidden, "")
}
