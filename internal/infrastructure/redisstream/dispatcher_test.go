package redisstream

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

func TestDispatchAppendsTrimmedRecord(t *testing.T) {
	client := newFakeStream()
	d := NewDispatcher(client, "queue:requests", 1000, zerolog.Nop())

	id, err := d.Dispatch(context.Background(), inference.Task{CorrelationID: "corr-1", Message: "hi", RoomID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-0", id)

	require.Len(t, client.added, 1)
	args := client.added[0]
	assert.Equal(t, "queue:requests", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)
	assert.Equal(t, "[]", args.Values.(map[string]interface{})["context"])
	assert.Equal(t, "false", args.Values.(map[string]interface{})["isGuest"])
}

func TestDispatchBrokerFailureIsExternal(t *testing.T) {
	client := newFakeStream()
	client.xaddErr = errors.New("connection refused")
	d := NewDispatcher(client, "queue:requests", 1000, zerolog.Nop())

	_, err := d.Dispatch(context.Background(), inference.Task{CorrelationID: "corr-1"})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	assert.ErrorContains(t, err, "connection refused")
}
