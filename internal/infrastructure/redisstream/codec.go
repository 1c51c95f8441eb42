package redisstream

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/janhq/evaluator-server/internal/domain/inference"
)

// ErrMalformedRecord marks result records that cannot be turned into a chunk. They are
// skipped and still acknowledged.
var ErrMalformedRecord = errors.New("malformed result record")

// Field names shared with the inference worker.
const (
	fieldCorrelationID  = "correlationId"
	fieldUserID         = "userId"
	fieldConversationID = "conversationId"
	fieldRoomID         = "roomId"
	fieldMessage        = "message"
	fieldContext        = "context"
	fieldIsGuest        = "isGuest"
	fieldContent        = "content"
	fieldStatus         = "status"
)

// EncodeTask flattens a task into XADD values. Every value is a string.
func EncodeTask(task inference.Task) map[string]interface{} {
	ctx := task.Context
	if ctx == "" {
		ctx = inference.EmptyContext
	}
	return map[string]interface{}{
		fieldCorrelationID:  task.CorrelationID,
		fieldUserID:         task.UserID,
		fieldConversationID: task.ConversationID,
		fieldRoomID:         task.RoomID,
		fieldMessage:        task.Message,
		fieldContext:        ctx,
		fieldIsGuest:        strconv.FormatBool(task.IsGuest),
	}
}

// DecodeChunk reads a result record. A record without a correlation id or status is malformed;
// identity fields may be absent on error records.
func DecodeChunk(msg redis.XMessage) (inference.Chunk, error) {
	chunk := inference.Chunk{
		StreamID:       msg.ID,
		CorrelationID:  stringField(msg.Values, fieldCorrelationID),
		UserID:         stringField(msg.Values, fieldUserID),
		ConversationID: stringField(msg.Values, fieldConversationID),
		RoomID:         stringField(msg.Values, fieldRoomID),
		Content:        stringField(msg.Values, fieldContent),
		Status:         inference.ChunkStatus(stringField(msg.Values, fieldStatus)),
	}
	if chunk.CorrelationID == "" {
		return chunk, fmt.Errorf("%w: %s has no %s", ErrMalformedRecord, msg.ID, fieldCorrelationID)
	}
	if chunk.Status == "" {
		return chunk, fmt.Errorf("%w: %s has no %s", ErrMalformedRecord, msg.ID, fieldStatus)
	}
	if raw := stringField(msg.Values, fieldIsGuest); raw != "" {
		isGuest, err := strconv.ParseBool(raw)
		if err != nil {
			return chunk, fmt.Errorf("%w: %s has invalid %s %q", ErrMalformedRecord, msg.ID, fieldIsGuest, raw)
		}
		chunk.IsGuest = isGuest
	}
	return chunk, nil
}

func stringField(values map[string]interface{}, key string) string {
	switch v := values[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
