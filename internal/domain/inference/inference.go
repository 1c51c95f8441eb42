// Package inference bridges chat turns to the out-of-process inference worker.
package inference

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// ChunkStatus is the lifecycle marker the worker attaches to each result record.
type ChunkStatus string

const (
	ChunkStatusStreaming ChunkStatus = "streaming"
	ChunkStatusDone      ChunkStatus = "done"
	ChunkStatusError     ChunkStatus = "error"
)

// Valid reports whether s is a status the worker emits.
func (s ChunkStatus) Valid() bool {
	switch s {
	case ChunkStatusStreaming, ChunkStatusDone, ChunkStatusError:
		return true
	}
	return false
}

const (
	// EventChunkReceived is emitted to the conversation room for every chunk and on finalization.
	EventChunkReceived = "chunk_received"
	// EmptyContext is the reserved history payload sent with every task.
	EmptyContext = "[]"
	// ExpiredContent is the terminal event text for sessions that stopped receiving chunks.
	ExpiredContent = "inference stream timed out"
)

// Task is one inference request appended to the request stream.
type Task struct {
	CorrelationID  string
	UserID         string
	ConversationID string
	RoomID         string
	Message        string
	Context        string
	IsGuest        bool
}

// Chunk is one record read from the result stream. Error records may only carry the
// correlation id and content.
type Chunk struct {
	StreamID       string
	CorrelationID  string
	UserID         string
	ConversationID string
	RoomID         string
	Content        string
	Status         ChunkStatus
	IsGuest        bool
}

// ChunkEvent is the notification payload pushed to clients.
type ChunkEvent struct {
	RoomID         string      `json:"roomId"`
	ConversationID string      `json:"conversationId"`
	CorrelationID  string      `json:"correlationId"`
	MessageID      string      `json:"messageId"`
	Content        string      `json:"content"`
	Status         ChunkStatus `json:"status"`
	IsDone         bool        `json:"isDone"`
}

// StreamSession accumulates the chunks of one correlation id until a terminal record.
type StreamSession struct {
	CorrelationID      string
	UserID             string
	ConversationID     string
	RoomID             string
	IsGuest            bool
	AssistantMessageID string
	// LastStreamID is the result stream id of the newest chunk applied to Buffer.
	LastStreamID string
	Buffer       []byte
	StartedAt    time.Time
	LastChunkAt  time.Time
}

// Dispatcher appends tasks to the durable request log and returns the log position.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) (string, error)
}

// Notifier pushes an event to every client joined to a room.
type Notifier interface {
	Emit(ctx context.Context, roomID, event string, payload any) error
}

// StreamIDAfter reports whether stream id a was assigned after b. Ids are "<ms>-<seq>"; an
// empty or unparsable id never orders, so it is always treated as newer.
func StreamIDAfter(a, b string) bool {
	aMs, aSeq, okA := parseStreamID(a)
	bMs, bSeq, okB := parseStreamID(b)
	if !okA || !okB {
		return true
	}
	if aMs != bMs {
		return aMs > bMs
	}
	return aSeq > bSeq
}

func parseStreamID(id string) (uint64, uint64, bool) {
	msPart, seqPart, found := strings.Cut(id, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if !found {
		return ms, 0, true
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return ms, seq, true
}
