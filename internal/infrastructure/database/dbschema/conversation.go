package dbschema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Conversation{})
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Conversation represents the database schema for conversations
type Conversation struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);index:idx_conversation_user_updated;not null"`
	Title     string    `gorm:"type:varchar(256);not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index:idx_conversation_user_updated;not null"`

	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// Message represents the database schema for conversation messages
type Message struct {
	ID                string                           `gorm:"type:varchar(64);primaryKey"`
	ConversationID    string                           `gorm:"type:varchar(64);index:idx_message_conversation_created;not null"`
	Conversation      *Conversation                    `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	Sender            string                           `gorm:"type:varchar(20);not null"`
	Content           datatypes.JSONType[chat.Content] `gorm:"type:jsonb"`
	CorrelationID     string                           `gorm:"type:varchar(64);index"`
	Status            string                           `gorm:"type:varchar(20);not null;default:'completed'"`
	Rating            *int
	EvaluationComment *string    `gorm:"type:text"`
	EvaluatedAt       *time.Time `gorm:"type:timestamp"`
	CreatedAt         time.Time  `gorm:"index:idx_message_conversation_created;not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// NewSchemaConversation converts a domain conversation without its messages.
func NewSchemaConversation(c *chat.Conversation) *Conversation {
	if c == nil {
		return nil
	}
	return &Conversation{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// EtoD converts a schema conversation and any loaded messages to the domain model.
func (c *Conversation) EtoD() *chat.Conversation {
	if c == nil {
		return nil
	}
	conv := &chat.Conversation{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]*chat.Message, 0, len(c.Messages)),
	}
	for i := range c.Messages {
		conv.Messages = append(conv.Messages, c.Messages[i].EtoD())
	}
	return conv
}

// NewSchemaMessage converts a domain message into a schema instance.
func NewSchemaMessage(m *chat.Message) *Message {
	if m == nil {
		return nil
	}
	return &Message{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		Sender:            string(m.Sender),
		Content:           datatypes.NewJSONType(m.Content),
		CorrelationID:     m.CorrelationID,
		Status:            string(m.Status),
		Rating:            m.Rating,
		EvaluationComment: m.EvaluationComment,
		EvaluatedAt:       m.EvaluatedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// EtoD converts a schema message back to the domain representation.
func (m *Message) EtoD() *chat.Message {
	if m == nil {
		return nil
	}
	return &chat.Message{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		Sender:            chat.Sender(m.Sender),
		Content:           m.Content.Data(),
		CorrelationID:     m.CorrelationID,
		Status:            chat.MessageStatus(m.Status),
		Rating:            m.Rating,
		EvaluationComment: m.EvaluationComment,
		EvaluatedAt:       m.EvaluatedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
