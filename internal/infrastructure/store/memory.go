package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/metrics"
)

// ErrInvalidMessage is returned when a write is missing its conversation or message id.
var ErrInvalidMessage = errors.New("conversation and message are required")

// forward records where a merged guest conversation now lives.
type forward struct {
	conversationID string
	ownerID        string
	movedAt        time.Time
}

// MemoryStore is a mutex-based in-memory guest conversation store.
// Every read-modify-write holds the lock; returned values are deep copies.
// While a guest's session is being merged, writes to that guest's conversations wait for
// the merge to finish.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*chat.Conversation
	messageIndex  map[string]string // message ID -> conversation ID
	merging       map[string]chan struct{}
	forwards      map[string]forward // merged guest conversation ID -> durable target
	now           func() time.Time
	log           zerolog.Logger
}

var _ chat.GuestRepository = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory guest store.
func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*chat.Conversation),
		messageIndex:  make(map[string]string),
		merging:       make(map[string]chan struct{}),
		forwards:      make(map[string]forward),
		now:           time.Now,
		log:           log.With().Str("component", "guest-store").Logger(),
	}
}

// Create stores a new conversation seeded from conv together with its first message.
func (s *MemoryStore) Create(ctx context.Context, conv *chat.Conversation, msg *chat.Message) (*chat.Conversation, *chat.Message, error) {
	if conv == nil || msg == nil || conv.ID == "" || msg.ID == "" {
		return nil, nil, ErrInvalidMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.waitMerge(ctx, conv.UserID); err != nil {
		return nil, nil, err
	}
	if _, exists := s.conversations[conv.ID]; exists {
		return nil, nil, chat.ErrConversationExists
	}
	if _, moved := s.forwards[conv.ID]; moved {
		return nil, nil, chat.ErrConversationExists
	}

	stored := &chat.Conversation{
		ID:        conv.ID,
		UserID:    conv.UserID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	s.conversations[conv.ID] = stored
	metrics.GuestConversations.Set(float64(len(s.conversations)))

	entry := s.put(stored, msg)
	return stored.Clone(), entry.Clone(), nil
}

// Append stores msg in an existing conversation owned by ownerID. A message with an existing
// id is replaced in place and keeps its creation time.
func (s *MemoryStore) Append(ctx context.Context, conversationID, ownerID string, msg *chat.Message) (*chat.Conversation, *chat.Message, error) {
	if conversationID == "" || msg == nil || msg.ID == "" {
		return nil, nil, ErrInvalidMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.waitMerge(ctx, ownerID); err != nil {
		return nil, nil, err
	}
	stored, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil, chat.ErrConversationNotFound
	}
	if stored.UserID != ownerID {
		return nil, nil, chat.ErrForbidden
	}

	entry := s.put(stored, msg)
	return stored.Clone(), entry.Clone(), nil
}

// FindConversation returns a copy of the conversation with its messages.
func (s *MemoryStore) FindConversation(ctx context.Context, conversationID string) (*chat.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// FindMessage returns copies of a message and its conversation.
func (s *MemoryStore) FindMessage(ctx context.Context, messageID string) (*chat.Conversation, *chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, msg := s.lookup(messageID)
	if msg == nil {
		return nil, nil, false
	}
	return conv.Clone(), msg.Clone(), true
}

// UpdateEvaluation stores a rating and, when supplied, a comment on a guest message.
func (s *MemoryStore) UpdateEvaluation(ctx context.Context, messageID string, eval chat.Evaluation, at time.Time) (*chat.Conversation, *chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, _ := s.lookup(messageID)
	if conv == nil {
		return nil, nil, false
	}
	if err := s.waitMerge(ctx, conv.UserID); err != nil {
		return nil, nil, false
	}
	// The merge may have moved the message while this call waited.
	conv, msg := s.lookup(messageID)
	if msg == nil {
		return nil, nil, false
	}

	rating := eval.Rating
	msg.Rating = &rating
	if eval.Comment != nil {
		comment := *eval.Comment
		msg.EvaluationComment = &comment
	}
	evaluatedAt := at
	msg.EvaluatedAt = &evaluatedAt
	msg.UpdatedAt = at

	return conv.Clone(), msg.Clone(), true
}

// ListByOwner returns copies of every conversation owned by ownerID.
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) []*chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listByOwner(ownerID)
}

// BeginMerge snapshots ownerID's conversations and holds every write to them until EndMerge.
// A second merge of the same owner waits for the first to end.
func (s *MemoryStore) BeginMerge(ctx context.Context, ownerID string) ([]*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.waitMerge(ctx, ownerID); err != nil {
		return nil, err
	}
	s.merging[ownerID] = make(chan struct{})
	return s.listByOwner(ownerID), nil
}

// EndMerge releases the hold taken by BeginMerge. Conversations named in moved are removed
// and forwarded to their durable id under newOwnerID; a nil moved keeps everything.
func (s *MemoryStore) EndMerge(ctx context.Context, ownerID string, moved map[string]string, newOwnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	for guestConvID, durableID := range moved {
		if s.remove(guestConvID) {
			s.forwards[guestConvID] = forward{conversationID: durableID, ownerID: newOwnerID, movedAt: at}
		}
	}
	metrics.GuestConversations.Set(float64(len(s.conversations)))

	if done, ok := s.merging[ownerID]; ok {
		delete(s.merging, ownerID)
		close(done)
	}
}

// Forwarded returns the durable conversation and owner a merged guest conversation moved to.
func (s *MemoryStore) Forwarded(ctx context.Context, conversationID string) (string, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fwd, ok := s.forwards[conversationID]
	if !ok {
		return "", "", false
	}
	return fwd.conversationID, fwd.ownerID, true
}

// EvictIdle removes conversations last updated before the cutoff, and forwards older than it.
func (s *MemoryStore) EvictIdle(ctx context.Context, before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, conv := range s.conversations {
		if _, held := s.merging[conv.UserID]; held {
			continue
		}
		if conv.UpdatedAt.Before(before) && s.remove(id) {
			removed++
		}
	}
	for id, fwd := range s.forwards {
		if fwd.movedAt.Before(before) {
			delete(s.forwards, id)
		}
	}
	metrics.GuestConversations.Set(float64(len(s.conversations)))

	if removed > 0 {
		s.log.Info().Int("evicted", removed).Time("cutoff", before).Msg("evicted idle guest conversations")
	}
	return removed
}

// Len returns the number of guest conversations held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// waitMerge blocks while ownerID is being merged. It must be called with the write lock
// held and returns with it held.
func (s *MemoryStore) waitMerge(ctx context.Context, ownerID string) error {
	for {
		done, ok := s.merging[ownerID]
		if !ok {
			return nil
		}
		s.mu.Unlock()
		select {
		case <-done:
			s.mu.Lock()
		case <-ctx.Done():
			s.mu.Lock()
			return ctx.Err()
		}
	}
}

// put stores msg in conv and touches its updatedAt. It must be called with the lock held.
func (s *MemoryStore) put(conv *chat.Conversation, msg *chat.Message) *chat.Message {
	entry := msg.Clone()
	entry.ConversationID = conv.ID

	replaced := false
	if owner, exists := s.messageIndex[entry.ID]; exists {
		if owner == conv.ID {
			for i, existing := range conv.Messages {
				if existing.ID == entry.ID {
					entry.CreatedAt = existing.CreatedAt
					conv.Messages[i] = entry
					replaced = true
					break
				}
			}
		} else if other, ok := s.conversations[owner]; ok {
			other.Messages = removeMessage(other.Messages, entry.ID)
		}
	}
	if !replaced {
		conv.Messages = append(conv.Messages, entry)
	}
	s.messageIndex[entry.ID] = conv.ID

	if entry.UpdatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = entry.UpdatedAt
	}
	return entry
}

// listByOwner must be called with the lock held.
func (s *MemoryStore) listByOwner(ownerID string) []*chat.Conversation {
	var result []*chat.Conversation
	for _, conv := range s.conversations {
		if conv.UserID == ownerID {
			result = append(result, conv.Clone())
		}
	}
	return result
}

// lookup must be called with the lock held.
func (s *MemoryStore) lookup(messageID string) (*chat.Conversation, *chat.Message) {
	conversationID, ok := s.messageIndex[messageID]
	if !ok {
		return nil, nil
	}
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	for _, msg := range conv.Messages {
		if msg.ID == messageID {
			return conv, msg
		}
	}
	return nil, nil
}

// remove must be called with the lock held.
func (s *MemoryStore) remove(conversationID string) bool {
	conv, ok := s.conversations[conversationID]
	if !ok {
		return false
	}
	for _, msg := range conv.Messages {
		if s.messageIndex[msg.ID] == conversationID {
			delete(s.messageIndex, msg.ID)
		}
	}
	delete(s.conversations, conversationID)
	return true
}

func removeMessage(msgs []*chat.Message, messageID string) []*chat.Message {
	out := msgs[:0]
	for _, msg := range msgs {
		if msg.ID != messageID {
			out = append(out, msg)
		}
	}
	return out
}
