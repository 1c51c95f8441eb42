package chat

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConversationNotFound is returned when a conversation does not exist in either backend.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound is returned when a message does not exist in either backend.
	ErrMessageNotFound = errors.New("message not found")
	// ErrConversationExists is returned when a new conversation reuses a known id.
	ErrConversationExists = errors.New("conversation already exists")
	// ErrForbidden is returned when a principal touches a conversation it does not own.
	ErrForbidden = errors.New("conversation belongs to another user")
)

// ===============================================
// Message Types
// ===============================================

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Valid reports whether the sender is one of the known roles.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusStreaming MessageStatus = "streaming"
	MessageStatusCompleted MessageStatus = "completed"
	MessageStatusFailed    MessageStatus = "failed"
)

const (
	// DefaultLanguage is reported for content without an explicit language.
	DefaultLanguage = "none"
	// TitleMaxLength bounds conversation titles derived from the first message.
	TitleMaxLength = 50
	// DefaultGuestTitle names guest conversations whose first message has no text.
	DefaultGuestTitle = "New Guest Chat"
	// DefaultTitle names durable conversations whose first message has no text.
	DefaultTitle = "New Conversation"
)

// Content is the normalized message body.
type Content struct {
	Text     string         `json:"text"`
	Language string         `json:"language,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message is one turn inside a conversation.
type Message struct {
	ID                string
	ConversationID    string
	Sender            Sender
	Content           Content
	CorrelationID     string
	Status            MessageStatus
	Rating            *int
	EvaluationComment *string
	EvaluatedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep copy so callers never alias repository state.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	if m.Content.Metadata != nil {
		out.Content.Metadata = make(map[string]any, len(m.Content.Metadata))
		for k, v := range m.Content.Metadata {
			out.Content.Metadata[k] = v
		}
	}
	if m.Rating != nil {
		rating := *m.Rating
		out.Rating = &rating
	}
	if m.EvaluationComment != nil {
		comment := *m.EvaluationComment
		out.EvaluationComment = &comment
	}
	if m.EvaluatedAt != nil {
		at := *m.EvaluatedAt
		out.EvaluatedAt = &at
	}
	return &out
}

// ===============================================
// Conversation Structure
// ===============================================

type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Messages  []*Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the conversation and its messages.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		out.Messages[i] = msg.Clone()
	}
	return &out
}

// DeriveTitle truncates the first message text to TitleMaxLength runes.
func DeriveTitle(text, fallback string) string {
	if text == "" {
		return fallback
	}
	runes := []rune(text)
	if len(runes) > TitleMaxLength {
		runes = runes[:TitleMaxLength]
	}
	return string(runes)
}

// Evaluation is a user's rating of an assistant turn.
type Evaluation struct {
	Rating  int
	Comment *string
}

// Validate checks the rating range.
func (e Evaluation) Validate() error {
	if e.Rating < 1 || e.Rating > 5 {
		return errors.New("rating must be a number between 1 and 5")
	}
	return nil
}

// ===============================================
// Repositories
// ===============================================

// GuestRepository is the in-memory backend for unauthenticated sessions.
type GuestRepository interface {
	// Create stores a new conversation with its first message. Returns ErrConversationExists
	// when the id is already in use.
	Create(ctx context.Context, conv *Conversation, msg *Message) (*Conversation, *Message, error)
	// Append stores msg in an existing conversation owned by ownerID. A message with an existing
	// id is replaced in place. Returns ErrConversationNotFound or ErrForbidden.
	Append(ctx context.Context, conversationID, ownerID string, msg *Message) (*Conversation, *Message, error)
	FindConversation(ctx context.Context, conversationID string) (*Conversation, bool)
	FindMessage(ctx context.Context, messageID string) (*Conversation, *Message, bool)
	UpdateEvaluation(ctx context.Context, messageID string, eval Evaluation, at time.Time) (*Conversation, *Message, bool)
	ListByOwner(ctx context.Context, ownerID string) []*Conversation
	// BeginMerge snapshots the owner's conversations and holds writes to them until EndMerge.
	BeginMerge(ctx context.Context, ownerID string) ([]*Conversation, error)
	// EndMerge releases the hold, removing the conversations in moved and forwarding each to
	// its durable id owned by newOwnerID. A nil moved keeps the guest data.
	EndMerge(ctx context.Context, ownerID string, moved map[string]string, newOwnerID string)
	// Forwarded returns the durable conversation and owner a merged guest conversation moved to.
	Forwarded(ctx context.Context, conversationID string) (string, string, bool)
	EvictIdle(ctx context.Context, before time.Time) int
}

// ConversationRepository is the durable relational backend.
type ConversationRepository interface {
	// CreateWithMessage creates a conversation and its first message in one transaction.
	CreateWithMessage(ctx context.Context, conv *Conversation, msg *Message) error
	// AppendMessage upserts msg by id and touches the conversation's updatedAt in one
	// transaction. It returns the stored row, which keeps the original createdAt of a replayed
	// id. Returns ErrConversationNotFound when the conversation does not exist.
	AppendMessage(ctx context.Context, msg *Message) (*Conversation, *Message, error)
	FindConversation(ctx context.Context, conversationID string, withMessages bool) (*Conversation, error)
	FindMessage(ctx context.Context, messageID string) (*Conversation, *Message, error)
	UpdateEvaluation(ctx context.Context, messageID string, eval Evaluation, at time.Time) (*Conversation, *Message, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Conversation, error)
	// ListSidebar returns the owner's conversations, each carrying only its latest message.
	ListSidebar(ctx context.Context, ownerID string) ([]*Conversation, error)
}
