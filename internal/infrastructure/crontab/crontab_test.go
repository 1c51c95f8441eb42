package crontab

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/store"
)

func TestEvictGuestsUsesTTLCutoff(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	guests := store.NewMemoryStore(zerolog.Nop())

	seed := func(id string, at time.Time) {
		conv := &chat.Conversation{ID: id, UserID: "guest_a", Title: id, CreatedAt: at, UpdatedAt: at}
		msg := &chat.Message{ID: id + "-m", ConversationID: id, Sender: chat.SenderUser,
			Content: chat.Content{Text: "hi"}, CreatedAt: at, UpdatedAt: at}
		_, _, err := guests.Create(ctx, conv, msg)
		require.NoError(t, err)
	}
	seed("stale", now.Add(-25*time.Hour))
	seed("fresh", now.Add(-time.Hour))

	c := NewCrontab(guests, 24*time.Hour, zerolog.Nop())
	c.now = func() time.Time { return now }

	assert.Equal(t, 1, c.EvictGuests(ctx))
	_, ok := guests.FindConversation(ctx, "stale")
	assert.False(t, ok)
	_, ok = guests.FindConversation(ctx, "fresh")
	assert.True(t, ok)
	assert.Equal(t, 0, c.EvictGuests(ctx))
}

func TestRunStopsOnCancel(t *testing.T) {
	c := NewCrontab(store.NewMemoryStore(zerolog.Nop()), time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("crontab did not stop")
	}
}
