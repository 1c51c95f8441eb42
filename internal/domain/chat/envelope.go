package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MessageEnvelope is the backend-agnostic read model returned across the application boundary.
type MessageEnvelope struct {
	ID                string        `json:"id"`
	CorrelationID     string        `json:"correlationId"`
	ConversationID    string        `json:"conversationId"`
	UserID            string        `json:"userId"`
	Title             string        `json:"title"`
	Sender            Sender        `json:"sender"`
	Status            MessageStatus `json:"status"`
	Content           Content       `json:"content"`
	Rating            *int          `json:"rating,omitempty"`
	EvaluationComment *string       `json:"evaluationComment,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// ConversationView is a conversation with its messages as envelopes.
type ConversationView struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Title     string             `json:"title"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Messages  []*MessageEnvelope `json:"messages"`
}

// SidebarEntry is a compact conversation listing with the latest message as preview.
type SidebarEntry struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Preview   *SidebarPreview `json:"preview,omitempty"`
}

type SidebarPreview struct {
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEnvelope flattens a message and its parent conversation. Unset language, status and
// metadata are filled so callers never observe empty values in those fields.
func NewEnvelope(msg *Message, conv *Conversation) *MessageEnvelope {
	if msg == nil || conv == nil {
		return nil
	}

	env := &MessageEnvelope{
		ID:             msg.ID,
		CorrelationID:  msg.CorrelationID,
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Title:          conv.Title,
		Sender:         msg.Sender,
		Status:         msg.Status,
		Content:        normalizedContent(msg.Content),
		CreatedAt:      msg.CreatedAt,
	}
	if env.Status == "" {
		env.Status = MessageStatusCompleted
	}
	if msg.Rating != nil {
		rating := *msg.Rating
		env.Rating = &rating
	}
	if msg.EvaluationComment != nil {
		comment := *msg.EvaluationComment
		env.EvaluationComment = &comment
	}
	return env
}

// NewConversationView converts a conversation and all of its messages.
func NewConversationView(conv *Conversation) *ConversationView {
	if conv == nil {
		return nil
	}
	view := &ConversationView{
		ID:        conv.ID,
		UserID:    conv.UserID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Messages:  make([]*MessageEnvelope, 0, len(conv.Messages)),
	}
	for _, msg := range conv.Messages {
		view.Messages = append(view.Messages, NewEnvelope(msg, conv))
	}
	return view
}

// NewSidebarEntry uses the last message of conv as preview.
func NewSidebarEntry(conv *Conversation) *SidebarEntry {
	entry := &SidebarEntry{
		ID:        conv.ID,
		Title:     conv.Title,
		UpdatedAt: conv.UpdatedAt,
	}
	if n := len(conv.Messages); n > 0 {
		latest := conv.Messages[n-1]
		entry.Preview = &SidebarPreview{
			Content:   normalizedContent(latest.Content),
			CreatedAt: latest.CreatedAt,
		}
	}
	return entry
}

func normalizedContent(c Content) Content {
	out := Content{
		Text:     c.Text,
		Language: c.Language,
		Metadata: c.Metadata,
	}
	if out.Language == "" {
		out.Language = DefaultLanguage
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	return out
}

// NormalizeContent converts the client's string-or-object content into Content.
func NormalizeContent(raw json.RawMessage) (Content, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Content{}, fmt.Errorf("content is required")
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return Content{}, fmt.Errorf("content must be a string or valid JSON object: %w", err)
		}
		return Content{Text: text}, nil
	case '{':
		var content Content
		if err := json.Unmarshal(trimmed, &content); err != nil {
			return Content{}, fmt.Errorf("content must be a string or valid JSON object: %w", err)
		}
		return content, nil
	default:
		return Content{}, fmt.Errorf("content must be a string or valid JSON object")
	}
}
