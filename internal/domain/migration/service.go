// Package migration moves guest conversations into durable storage when a guest signs in.
package migration

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/metrics"
	"github.com/janhq/evaluator-server/internal/utils/idgen"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
	"github.com/janhq/evaluator-server/pkg/telemetry"
)

// Importer writes conversations with their messages in a single transaction.
type Importer interface {
	Import(ctx context.Context, convs []*chat.Conversation) error
}

// Service merges guest sessions into registered users.
type Service struct {
	guests   chat.GuestRepository
	importer Importer
	log      zerolog.Logger
}

// NewService creates the session migration service.
func NewService(guests chat.GuestRepository, importer Importer, log zerolog.Logger) *Service {
	return &Service{
		guests:   guests,
		importer: importer,
		log:      log.With().Str("component", "session-migration").Logger(),
	}
}

// Merge copies every conversation owned by guestID to realUserID and returns the mapping of
// guest conversation ids to their new durable ids. Writes to the guest's conversations wait
// while the merge runs. On success the guest entries are removed and forwarded to their
// durable ids; on failure they stay untouched and the error is returned.
func (s *Service) Merge(ctx context.Context, realUserID, guestID string) (map[string]string, error) {
	guestConversations, err := s.guests.BeginMerge(ctx, guestID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to hold guest session")
	}
	var moved map[string]string
	defer func() { s.guests.EndMerge(ctx, guestID, moved, realUserID) }()

	if len(guestConversations) == 0 {
		s.log.Debug().Str("guest_id", telemetry.Default().UserID(guestID)).Msg("no guest conversations to merge")
		return nil, nil
	}

	mapping := make(map[string]string, len(guestConversations))
	imported := make([]*chat.Conversation, 0, len(guestConversations))
	for _, guestConv := range guestConversations {
		newID := idgen.NewUUID()
		mapping[guestConv.ID] = newID

		conv := guestConv.Clone()
		conv.ID = newID
		conv.UserID = realUserID
		for _, msg := range conv.Messages {
			msg.ConversationID = newID
		}
		imported = append(imported, conv)
	}

	if err := s.importer.Import(ctx, imported); err != nil {
		metrics.RecordMerge(err)
		s.log.Error().Err(err).
			Str("guest_id", telemetry.Default().UserID(guestID)).
			Str("user_id", telemetry.Default().UserID(realUserID)).
			Int("conversations", len(imported)).
			Msg("failed to merge guest session")
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to merge guest session")
	}

	moved = mapping
	metrics.RecordMerge(nil)
	s.log.Info().
		Str("guest_id", telemetry.Default().UserID(guestID)).
		Str("user_id", telemetry.Default().UserID(realUserID)).
		Int("conversations", len(imported)).
		Msg("guest session merged")
	return mapping, nil
}
