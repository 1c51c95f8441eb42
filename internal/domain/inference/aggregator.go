package inference

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/metrics"
	"github.com/janhq/evaluator-server/internal/utils/idgen"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// MessageSaver persists the final assistant message.
type MessageSaver interface {
	SaveMessage(ctx context.Context, input chat.SaveMessageInput) (*chat.MessageEnvelope, error)
}

// AggregatorConfig bounds session lifetime and replay memory.
type AggregatorConfig struct {
	SessionTTL         time.Duration
	FinalizedCacheSize int
}

// Aggregator reassembles streamed chunks per correlation id and lands the final answer in the
// store once. It is owned by the consumer goroutine and is not safe for concurrent use.
type Aggregator struct {
	saver     MessageSaver
	notifier  Notifier
	sessions  map[string]*StreamSession
	finalized *lru.Cache // correlation ID -> assistant message ID
	ttl       time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(saver MessageSaver, notifier Notifier, cfg AggregatorConfig, log zerolog.Logger) (*Aggregator, error) {
	finalized, err := lru.New(cfg.FinalizedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		saver:     saver,
		notifier:  notifier,
		sessions:  make(map[string]*StreamSession),
		finalized: finalized,
		ttl:       cfg.SessionTTL,
		now:       time.Now,
		log:       log.With().Str("component", "stream-aggregator").Logger(),
	}, nil
}

// Handle applies one result record. A returned error means the record must be retried; the
// session is left intact in that case.
func (a *Aggregator) Handle(ctx context.Context, chunk Chunk) error {
	switch chunk.Status {
	case ChunkStatusStreaming:
		a.handleStreaming(ctx, chunk)
		return nil
	case ChunkStatusDone:
		return a.handleDone(ctx, chunk)
	case ChunkStatusError:
		a.handleError(ctx, chunk)
		return nil
	default:
		a.log.Warn().Str("correlation_id", chunk.CorrelationID).Str("status", string(chunk.Status)).Msg("unknown chunk status skipped")
		return nil
	}
}

func (a *Aggregator) handleStreaming(ctx context.Context, chunk Chunk) {
	if a.finalized.Contains(chunk.CorrelationID) {
		a.log.Debug().Str("correlation_id", chunk.CorrelationID).Msg("chunk for finalized stream ignored")
		return
	}

	now := a.now()
	session, ok := a.sessions[chunk.CorrelationID]
	if !ok {
		session = &StreamSession{
			CorrelationID:      chunk.CorrelationID,
			UserID:             chunk.UserID,
			ConversationID:     chunk.ConversationID,
			RoomID:             chunk.RoomID,
			IsGuest:            chunk.IsGuest,
			AssistantMessageID: idgen.NewUUID(),
			StartedAt:          now,
		}
		if session.RoomID == "" {
			session.RoomID = session.ConversationID
		}
		a.sessions[chunk.CorrelationID] = session
		metrics.ActiveStreamSessions.Set(float64(len(a.sessions)))
	}
	if ok && session.LastStreamID != "" && !StreamIDAfter(chunk.StreamID, session.LastStreamID) {
		a.log.Debug().
			Str("correlation_id", chunk.CorrelationID).
			Str("stream_id", chunk.StreamID).
			Msg("replayed chunk ignored")
		return
	}
	session.Buffer = append(session.Buffer, chunk.Content...)
	session.LastChunkAt = now
	if chunk.StreamID != "" {
		session.LastStreamID = chunk.StreamID
	}

	a.emit(ctx, session.RoomID, ChunkEvent{
		RoomID:         session.RoomID,
		ConversationID: session.ConversationID,
		CorrelationID:  session.CorrelationID,
		MessageID:      session.AssistantMessageID,
		Content:        chunk.Content,
		Status:         ChunkStatusStreaming,
	})
}

func (a *Aggregator) handleDone(ctx context.Context, chunk Chunk) error {
	session, ok := a.sessions[chunk.CorrelationID]
	if !ok {
		// Replay of an already finalized stream, or a stream that produced no chunks.
		messageID := ""
		outcome := "empty"
		if value, seen := a.finalized.Get(chunk.CorrelationID); seen {
			messageID, _ = value.(string)
			outcome = "replayed"
		} else {
			a.finalized.Add(chunk.CorrelationID, "")
		}
		metrics.Finalizations.WithLabelValues(outcome).Inc()

		roomID := chunk.RoomID
		if roomID == "" {
			roomID = chunk.ConversationID
		}
		a.emit(ctx, roomID, ChunkEvent{
			RoomID:         roomID,
			ConversationID: chunk.ConversationID,
			CorrelationID:  chunk.CorrelationID,
			MessageID:      messageID,
			Status:         ChunkStatusDone,
			IsDone:         true,
		})
		return nil
	}

	fillIdentity(session, chunk)
	messageID := ""
	if len(session.Buffer) > 0 {
		_, err := a.saver.SaveMessage(ctx, chat.SaveMessageInput{
			Sender:         chat.SenderAssistant,
			Content:        chat.Content{Text: string(session.Buffer)},
			ConversationID: session.ConversationID,
			UserID:         session.UserID,
			CorrelationID:  session.CorrelationID,
			IsGuest:        session.IsGuest,
			ExplicitID:     session.AssistantMessageID,
		})
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to save assistant message")
		}
		messageID = session.AssistantMessageID
	}

	a.finish(session, messageID)
	metrics.Finalizations.WithLabelValues("saved").Inc()
	a.log.Info().
		Str("correlation_id", session.CorrelationID).
		Str("conversation_id", session.ConversationID).
		Int("bytes", len(session.Buffer)).
		Msg("stream finalized")

	a.emit(ctx, session.RoomID, ChunkEvent{
		RoomID:         session.RoomID,
		ConversationID: session.ConversationID,
		CorrelationID:  session.CorrelationID,
		MessageID:      messageID,
		Status:         ChunkStatusDone,
		IsDone:         true,
	})
	return nil
}

func (a *Aggregator) handleError(ctx context.Context, chunk Chunk) {
	event := ChunkEvent{
		RoomID:         chunk.RoomID,
		ConversationID: chunk.ConversationID,
		CorrelationID:  chunk.CorrelationID,
		Content:        chunk.Content,
		Status:         ChunkStatusError,
		IsDone:         true,
	}
	if session, ok := a.sessions[chunk.CorrelationID]; ok {
		fillIdentity(session, chunk)
		event.RoomID = session.RoomID
		event.ConversationID = session.ConversationID
		event.MessageID = session.AssistantMessageID
		a.finish(session, "")
	} else {
		a.finalized.Add(chunk.CorrelationID, "")
	}
	if event.RoomID == "" {
		event.RoomID = event.ConversationID
	}
	metrics.Finalizations.WithLabelValues("error").Inc()

	a.log.Warn().
		Str("correlation_id", chunk.CorrelationID).
		Str("conversation_id", event.ConversationID).
		Str("worker_error", chunk.Content).
		Msg("inference failed")
	a.emit(ctx, event.RoomID, event)
}

// Expire drops sessions idle since before now-ttl and notifies their rooms. It returns the
// number of sessions dropped.
func (a *Aggregator) Expire(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-a.ttl)
	expired := 0
	for _, session := range a.sessions {
		if !session.LastChunkAt.Before(cutoff) {
			continue
		}
		a.finish(session, "")
		expired++
		metrics.Finalizations.WithLabelValues("expired").Inc()
		a.log.Warn().
			Str("correlation_id", session.CorrelationID).
			Time("last_chunk_at", session.LastChunkAt).
			Msg("stream session expired")
		a.emit(ctx, session.RoomID, ChunkEvent{
			RoomID:         session.RoomID,
			ConversationID: session.ConversationID,
			CorrelationID:  session.CorrelationID,
			MessageID:      session.AssistantMessageID,
			Content:        ExpiredContent,
			Status:         ChunkStatusError,
			IsDone:         true,
		})
	}
	return expired
}

// Active returns the number of open sessions.
func (a *Aggregator) Active() int {
	return len(a.sessions)
}

// Session returns the open session for a correlation id.
func (a *Aggregator) Session(correlationID string) (*StreamSession, bool) {
	session, ok := a.sessions[correlationID]
	return session, ok
}

func (a *Aggregator) finish(session *StreamSession, messageID string) {
	delete(a.sessions, session.CorrelationID)
	a.finalized.Add(session.CorrelationID, messageID)
	metrics.ActiveStreamSessions.Set(float64(len(a.sessions)))
}

func (a *Aggregator) emit(ctx context.Context, roomID string, event ChunkEvent) {
	if roomID == "" || a.notifier == nil {
		return
	}
	if err := a.notifier.Emit(ctx, roomID, EventChunkReceived, event); err != nil {
		a.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to notify room")
	}
}

// fillIdentity copies identity fields the terminal record carries onto a session that
// lacks them. Fields already on the session win.
func fillIdentity(session *StreamSession, chunk Chunk) {
	if session.UserID == "" {
		session.UserID = chunk.UserID
	}
	if session.ConversationID == "" {
		session.ConversationID = chunk.ConversationID
	}
	if session.RoomID == "" {
		session.RoomID = chunk.RoomID
		if session.RoomID == "" {
			session.RoomID = session.ConversationID
		}
	}
}
