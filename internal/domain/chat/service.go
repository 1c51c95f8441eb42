package chat

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/utils/idgen"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// SaveMessageInput carries one message to persist. IsGuest selects the backend.
type SaveMessageInput struct {
	Sender         Sender
	Content        Content
	ConversationID string
	UserID         string
	CorrelationID  string
	IsGuest        bool
	ExplicitID     string
	Status         MessageStatus
}

// Service is the dual-mode conversation store. Guest sessions live in memory, authenticated
// sessions in the relational database.
type Service interface {
	SaveMessage(ctx context.Context, input SaveMessageInput) (*MessageEnvelope, error)
	GetMessageByID(ctx context.Context, messageID string) (*MessageEnvelope, error)
	// UpdateMessageEvaluation returns nil without error when the message is unknown.
	UpdateMessageEvaluation(ctx context.Context, messageID string, eval Evaluation) (*MessageEnvelope, error)
	GetConversationsByUser(ctx context.Context, userID string, isGuest bool) ([]*ConversationView, error)
	GetSidebarHistory(ctx context.Context, userID string, isGuest bool) ([]*SidebarEntry, error)
	GetConversationHistory(ctx context.Context, conversationID string, isGuest bool) ([]*MessageEnvelope, error)
	GetFullConversation(ctx context.Context, conversationID string, isGuest bool) (*ConversationView, error)
	// AuthorizeConversation loads a conversation from the caller's backend and checks it
	// belongs to userID.
	AuthorizeConversation(ctx context.Context, conversationID, userID string, isGuest bool) (*Conversation, error)
}

type service struct {
	guests  GuestRepository
	durable ConversationRepository
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates the conversation store service.
func NewService(guests GuestRepository, durable ConversationRepository, log zerolog.Logger) Service {
	return &service{
		guests:  guests,
		durable: durable,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With().Str("component", "chat-service").Logger(),
	}
}

func (s *service) SaveMessage(ctx context.Context, input SaveMessageInput) (*MessageEnvelope, error) {
	if !input.Sender.Valid() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"sender must be user or assistant", nil, "")
	}
	if input.UserID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"userId is required", nil, "")
	}

	now := s.now()
	msg := &Message{
		ID:            input.ExplicitID,
		Sender:        input.Sender,
		Content:       input.Content,
		CorrelationID: input.CorrelationID,
		Status:        input.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if msg.ID == "" {
		msg.ID = idgen.NewUUID()
	}
	if msg.Status == "" {
		msg.Status = MessageStatusCompleted
	}

	if input.IsGuest {
		return s.saveGuestMessage(ctx, input, msg, now)
	}
	return s.saveDurableMessage(ctx, input, msg, now)
}

func (s *service) saveGuestMessage(ctx context.Context, input SaveMessageInput, msg *Message, now time.Time) (*MessageEnvelope, error) {
	var (
		conv   *Conversation
		stored *Message
		err    error
	)
	if input.ConversationID == "" {
		msg.ConversationID = idgen.NewUUID()
		conv, stored, err = s.guests.Create(ctx, &Conversation{
			ID:        msg.ConversationID,
			UserID:    input.UserID,
			Title:     DeriveTitle(input.Content.Text, DefaultGuestTitle),
			CreatedAt: now,
			UpdatedAt: now,
		}, msg)
	} else {
		msg.ConversationID = input.ConversationID
		conv, stored, err = s.guests.Append(ctx, input.ConversationID, input.UserID, msg)
	}

	switch {
	case errors.Is(err, ErrForbidden):
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"conversation belongs to another user", err, "")
	case errors.Is(err, ErrConversationNotFound):
		if input.Sender == SenderAssistant {
			if target, owner, ok := s.guests.Forwarded(ctx, input.ConversationID); ok {
				return s.saveForwardedReply(ctx, input, msg, target, owner)
			}
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"conversation not found", err, "")
	case err != nil:
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to save guest message")
	}

	s.log.Debug().
		Str("conversation_id", conv.ID).
		Str("message_id", stored.ID).
		Str("sender", string(stored.Sender)).
		Msg("guest message saved")
	return NewEnvelope(stored, conv), nil
}

// saveForwardedReply lands an assistant reply whose guest conversation was merged while the
// answer was streaming.
func (s *service) saveForwardedReply(ctx context.Context, input SaveMessageInput, msg *Message, conversationID, ownerID string) (*MessageEnvelope, error) {
	msg.ConversationID = conversationID
	conv, stored, err := s.durable.AppendMessage(ctx, msg)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to save forwarded reply")
	}
	s.log.Info().
		Str("guest_conversation_id", input.ConversationID).
		Str("conversation_id", conversationID).
		Str("message_id", stored.ID).
		Msg("reply forwarded to merged conversation")
	if conv.UserID != ownerID {
		s.log.Warn().Str("conversation_id", conversationID).Msg("forwarded conversation changed owner")
	}
	return NewEnvelope(stored, conv), nil
}

func (s *service) saveDurableMessage(ctx context.Context, input SaveMessageInput, msg *Message, now time.Time) (*MessageEnvelope, error) {
	if input.ConversationID == "" {
		conv := &Conversation{
			ID:        idgen.NewUUID(),
			UserID:    input.UserID,
			Title:     DeriveTitle(input.Content.Text, DefaultTitle),
			CreatedAt: now,
			UpdatedAt: now,
		}
		msg.ConversationID = conv.ID
		if err := s.durable.CreateWithMessage(ctx, conv, msg); err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
		}
		return NewEnvelope(msg, conv), nil
	}

	existing, err := s.durable.FindConversation(ctx, input.ConversationID, false)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversation")
	}
	if existing.UserID != input.UserID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"conversation belongs to another user", ErrForbidden, "")
	}

	msg.ConversationID = input.ConversationID
	conv, stored, err := s.durable.AppendMessage(ctx, msg)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to save message")
	}
	return NewEnvelope(stored, conv), nil
}

func (s *service) GetMessageByID(ctx context.Context, messageID string) (*MessageEnvelope, error) {
	if conv, msg, ok := s.guests.FindMessage(ctx, messageID); ok {
		return NewEnvelope(msg, conv), nil
	}

	conv, msg, err := s.durable.FindMessage(ctx, messageID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to get message")
	}
	return NewEnvelope(msg, conv), nil
}

func (s *service) UpdateMessageEvaluation(ctx context.Context, messageID string, eval Evaluation) (*MessageEnvelope, error) {
	if err := eval.Validate(); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, err.Error(), err, "")
	}

	now := s.now()
	if conv, msg, ok := s.guests.UpdateEvaluation(ctx, messageID, eval, now); ok {
		return NewEnvelope(msg, conv), nil
	}

	conv, msg, err := s.durable.UpdateEvaluation(ctx, messageID, eval, now)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			s.log.Debug().Str("message_id", messageID).Msg("evaluation target not found")
			return nil, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update evaluation")
	}
	return NewEnvelope(msg, conv), nil
}

func (s *service) GetConversationsByUser(ctx context.Context, userID string, isGuest bool) ([]*ConversationView, error) {
	convs, err := s.listConversations(ctx, userID, isGuest)
	if err != nil {
		return nil, err
	}

	views := make([]*ConversationView, 0, len(convs))
	for _, conv := range convs {
		sortMessages(conv.Messages)
		views = append(views, NewConversationView(conv))
	}
	return views, nil
}

func (s *service) GetSidebarHistory(ctx context.Context, userID string, isGuest bool) ([]*SidebarEntry, error) {
	var (
		convs []*Conversation
		err   error
	)
	if isGuest {
		convs = s.guests.ListByOwner(ctx, userID)
	} else {
		convs, err = s.durable.ListSidebar(ctx, userID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load sidebar")
		}
	}
	sortConversations(convs)

	entries := make([]*SidebarEntry, 0, len(convs))
	for _, conv := range convs {
		sortMessages(conv.Messages)
		entries = append(entries, NewSidebarEntry(conv))
	}
	return entries, nil
}

func (s *service) GetConversationHistory(ctx context.Context, conversationID string, isGuest bool) ([]*MessageEnvelope, error) {
	view, err := s.GetFullConversation(ctx, conversationID, isGuest)
	if err != nil {
		return nil, err
	}
	return view.Messages, nil
}

func (s *service) GetFullConversation(ctx context.Context, conversationID string, isGuest bool) (*ConversationView, error) {
	conv, err := s.findConversation(ctx, conversationID, isGuest)
	if err != nil {
		return nil, err
	}
	sortMessages(conv.Messages)
	return NewConversationView(conv), nil
}

func (s *service) AuthorizeConversation(ctx context.Context, conversationID, userID string, isGuest bool) (*Conversation, error) {
	conv, err := s.findConversation(ctx, conversationID, isGuest)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"conversation belongs to another user", ErrForbidden, "")
	}
	return conv, nil
}

// findConversation only looks in the backend the caller's sessions live in.
func (s *service) findConversation(ctx context.Context, conversationID string, isGuest bool) (*Conversation, error) {
	if isGuest {
		conv, ok := s.guests.FindConversation(ctx, conversationID)
		if !ok {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"conversation not found", ErrConversationNotFound, "")
		}
		return conv, nil
	}
	conv, err := s.durable.FindConversation(ctx, conversationID, true)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to get conversation")
	}
	return conv, nil
}

func (s *service) listConversations(ctx context.Context, userID string, isGuest bool) ([]*Conversation, error) {
	if isGuest {
		convs := s.guests.ListByOwner(ctx, userID)
		sortConversations(convs)
		return convs, nil
	}

	convs, err := s.durable.ListByOwner(ctx, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	sortConversations(convs)
	return convs, nil
}

// sortConversations orders by updatedAt descending.
func sortConversations(convs []*Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}

// sortMessages orders by createdAt ascending.
func sortMessages(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
