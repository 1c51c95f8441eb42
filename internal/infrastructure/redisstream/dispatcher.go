package redisstream

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// Dispatcher appends inference tasks to the request stream.
type Dispatcher struct {
	client StreamClient
	stream string
	maxLen int64
	log    zerolog.Logger
}

var _ inference.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher writing to stream, trimmed to roughly maxLen entries.
func NewDispatcher(client StreamClient, stream string, maxLen int64, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		log:    log.With().Str("component", "stream-dispatcher").Logger(),
	}
}

// Dispatch implements inference.Dispatcher. It does not retry.
func (d *Dispatcher) Dispatch(ctx context.Context, task inference.Task) (string, error) {
	id, err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: d.maxLen,
		Approx: true,
		ID:     "*",
		Values: EncodeTask(task),
	}).Result()
	if err != nil {
		return "", platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"failed to dispatch inference task", err, "4f1b9c2e-7a3d-4e60-b8d5-1c9e2f7a0b36",
			map[string]any{"correlation_id": task.CorrelationID, "stream": d.stream})
	}

	d.log.Debug().
		Str("correlation_id", task.CorrelationID).
		Str("stream_id", id).
		Msg("inference task dispatched")
	return id, nil
}
