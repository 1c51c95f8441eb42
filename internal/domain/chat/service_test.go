package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/store"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

type fakeDurable struct {
	createWithMessage func(ctx context.Context, conv *chat.Conversation, msg *chat.Message) error
	appendMessage     func(ctx context.Context, msg *chat.Message) (*chat.Conversation, *chat.Message, error)
	findConversation  func(ctx context.Context, id string, withMessages bool) (*chat.Conversation, error)
	findMessage       func(ctx context.Context, id string) (*chat.Conversation, *chat.Message, error)
	updateEvaluation  func(ctx context.Context, id string, eval chat.Evaluation, at time.Time) (*chat.Conversation, *chat.Message, error)
	listByOwner       func(ctx context.Context, ownerID string) ([]*chat.Conversation, error)
	listSidebar       func(ctx context.Context, ownerID string) ([]*chat.Conversation, error)
}

var errUnexpected = errors.New("unexpected durable call")

func (f *fakeDurable) CreateWithMessage(ctx context.Context, conv *chat.Conversation, msg *chat.Message) error {
	if f.createWithMessage == nil {
		return errUnexpected
	}
	return f.createWithMessage(ctx, conv, msg)
}

func (f *fakeDurable) AppendMessage(ctx context.Context, msg *chat.Message) (*chat.Conversation, *chat.Message, error) {
	if f.appendMessage == nil {
		return nil, nil, errUnexpected
	}
	return f.appendMessage(ctx, msg)
}

func (f *fakeDurable) FindConversation(ctx context.Context, id string, withMessages bool) (*chat.Conversation, error) {
	if f.findConversation == nil {
		return nil, chat.ErrConversationNotFound
	}
	return f.findConversation(ctx, id, withMessages)
}

func (f *fakeDurable) FindMessage(ctx context.Context, id string) (*chat.Conversation, *chat.Message, error) {
	if f.findMessage == nil {
		return nil, nil, chat.ErrMessageNotFound
	}
	return f.findMessage(ctx, id)
}

func (f *fakeDurable) UpdateEvaluation(ctx context.Context, id string, eval chat.Evaluation, at time.Time) (*chat.Conversation, *chat.Message, error) {
	if f.updateEvaluation == nil {
		return nil, nil, chat.ErrMessageNotFound
	}
	return f.updateEvaluation(ctx, id, eval, at)
}

func (f *fakeDurable) ListByOwner(ctx context.Context, ownerID string) ([]*chat.Conversation, error) {
	if f.listByOwner == nil {
		return nil, errUnexpected
	}
	return f.listByOwner(ctx, ownerID)
}

func (f *fakeDurable) ListSidebar(ctx context.Context, ownerID string) ([]*chat.Conversation, error) {
	if f.listSidebar == nil {
		return nil, errUnexpected
	}
	return f.listSidebar(ctx, ownerID)
}

func newService(durable *fakeDurable) (chat.Service, *store.MemoryStore) {
	guests := store.NewMemoryStore(zerolog.Nop())
	return chat.NewService(guests, durable, zerolog.Nop()), guests
}

func TestSaveMessage_GuestNeverTouchesDurable(t *testing.T) {
	ctx := context.Background()
	svc, guests := newService(&fakeDurable{})

	env, err := svc.SaveMessage(ctx, chat.SaveMessageInput{
		Sender:  chat.SenderUser,
		Content: chat.Content{Text: "What is a goroutine?"},
		UserID:  "guest_abc",
		IsGuest: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ConversationID)
	assert.Equal(t, "What is a goroutine?", env.Title)
	assert.Equal(t, "guest_abc", env.UserID)
	assert.Equal(t, 1, guests.Len())

	env2, err := svc.SaveMessage(ctx, chat.SaveMessageInput{
		Sender:         chat.SenderAssistant,
		Content:        chat.Content{Text: "A lightweight thread."},
		ConversationID: env.ConversationID,
		UserID:         "guest_abc",
		CorrelationID:  "corr-1",
		IsGuest:        true,
		ExplicitID:     "assistant-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "assistant-1", env2.ID)
	assert.Equal(t, "corr-1", env2.CorrelationID)
	assert.Equal(t, env.Title, env2.Title)
}

func TestSaveMessage_GuestDefaultTitle(t *testing.T) {
	svc, _ := newService(&fakeDurable{})

	env, err := svc.SaveMessage(context.Background(), chat.SaveMessageInput{
		Sender:  chat.SenderUser,
		Content: chat.Content{Language: "go"},
		UserID:  "guest_abc",
		IsGuest: true,
	})
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultGuestTitle, env.Title)
}

func TestSaveMessage_UserIDThatLooksLikeGuestStillRoutesDurable(t *testing.T) {
	created := false
	svc, guests := newService(&fakeDurable{
		createWithMessage: func(ctx context.Context, conv *chat.Conversation, msg *chat.Message) error {
			created = true
			assert.Equal(t, conv.ID, msg.ConversationID)
			assert.Equal(t, chat.DefaultTitle, conv.Title)
			return nil
		},
	})

	_, err := svc.SaveMessage(context.Background(), chat.SaveMessageInput{
		Sender: chat.SenderUser,
		UserID: "guest_but_registered",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, guests.Len())
}

func TestSaveMessage_DurableUnknownConversation(t *testing.T) {
	svc, _ := newService(&fakeDurable{
		findConversation: func(ctx context.Context, id string, withMessages bool) (*chat.Conversation, error) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"conversation not found", chat.ErrConversationNotFound, "")
		},
	})

	_, err := svc.SaveMessage(context.Background(), chat.SaveMessageInput{
		Sender:         chat.SenderUser,
		Content:        chat.Content{Text: "x"},
		ConversationID: "missing",
		UserID:         "u1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestSaveMessage_DurableAppendChecksOwner(t *testing.T) {
	appended := false
	svc, _ := newService(&fakeDurable{
		findConversation: func(ctx context.Context, id string, withMessages bool) (*chat.Conversation, error) {
			return &chat.Conversation{ID: id, UserID: "owner"}, nil
		},
		appendMessage: func(ctx context.Context, msg *chat.Message) (*chat.Conversation, *chat.Message, error) {
			appended = true
			return &chat.Conversation{ID: msg.ConversationID, UserID: "owner", Title: "T"}, msg, nil
		},
	})

	_, err := svc.SaveMessage(context.Background(), chat.SaveMessageInput{
		Sender: chat.SenderUser, ConversationID: "c1", UserID: "intruder",
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
	assert.False(t, appended)

	env, err := svc.SaveMessage(context.Background(), chat.SaveMessageInput{
		Sender: chat.SenderUser, ConversationID: "c1", UserID: "owner", Content: chat.Content{Text: "ok"},
	})
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, "T", env.Title)
}

func TestSaveMessage_Validation(t *testing.T) {
	svc, _ := newService(&fakeDurable{})
	tests := []struct {
		name  string
		input chat.SaveMessageInput
	}{
		{name: "unknown sender", input: chat.SaveMessageInput{Sender: "system", UserID: "u1"}},
		{name: "missing user", input: chat.SaveMessageInput{Sender: chat.SenderUser}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveMessage(context.Background(), tt.input)
			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
		})
	}
}

func TestGuestIsolation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(&fakeDurable{})

	a, err := svc.SaveMessage(ctx, chat.SaveMessageInput{Sender: chat.SenderUser, Content: chat.Content{Text: "a"}, UserID: "guest_a", IsGuest: true})
	require.NoError(t, err)
	_, err = svc.SaveMessage(ctx, chat.SaveMessageInput{Sender: chat.SenderUser, Content: chat.Content{Text: "b"}, UserID: "guest_b", IsGuest: true})
	require.NoError(t, err)

	views, err := svc.GetConversationsByUser(ctx, "guest_a", true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, a.ConversationID, views[0].ID)

	_, err = svc.SaveMessage(ctx, chat.SaveMessageInput{
		Sender: chat.SenderUser, Content: chat.Content{Text: "hijack"}, ConversationID: a.ConversationID, UserID: "guest_b", IsGuest: true,
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	_, err = svc.AuthorizeConversation(ctx, a.ConversationID, "guest_b", true)
	assert.ErrorIs(t, err, chat.ErrForbidden)
}

func TestSaveMessage_GuestCannotSeedDurableConversationID(t *testing.T) {
	ctx := context.Background()
	durableConv := &chat.Conversation{ID: "conv-x", UserID: "user-a", Title: "mine"}
	svc, guests := newService(&fakeDurable{
		findConversation: func(ctx context.Context, id string, withMessages bool) (*chat.Conversation, error) {
			if id != durableConv.ID {
				return nil, chat.ErrConversationNotFound
			}
			return durableConv.Clone(), nil
		},
	})

	_, err := svc.SaveMessage(ctx, chat.SaveMessageInput{
		Sender: chat.SenderUser, Content: chat.Content{Text: "squat"}, ConversationID: "conv-x", UserID: "guest_evil", IsGuest: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	assert.Equal(t, 0, guests.Len())

	conv, err := svc.AuthorizeConversation(ctx, "conv-x", "user-a", false)
	require.NoError(t, err)
	assert.Equal(t, "mine", conv.Title)

	_, err = svc.AuthorizeConversation(ctx, "conv-x", "guest_evil", true)
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestAuthorizeConversation_RoutesByPrincipalKind(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(&fakeDurable{})

	guest, err := svc.SaveMessage(ctx, chat.SaveMessageInput{Sender: chat.SenderUser, Content: chat.Content{Text: "a"}, UserID: "guest_a", IsGuest: true})
	require.NoError(t, err)

	_, err = svc.AuthorizeConversation(ctx, guest.ConversationID, "guest_a", true)
	require.NoError(t, err)

	// A durable caller never sees guest memory.
	_, err = svc.AuthorizeConversation(ctx, guest.ConversationID, "guest_a", false)
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestSaveMessage_AssistantReplyFollowsMergedConversation(t *testing.T) {
	ctx := context.Background()
	var appended *chat.Message
	svc, guests := newService(&fakeDurable{
		appendMessage: func(ctx context.Context, msg *chat.Message) (*chat.Conversation, *chat.Message, error) {
			appended = msg.Clone()
			return &chat.Conversation{ID: msg.ConversationID, UserID: "user_1", Title: "merged"}, msg, nil
		},
	})

	first, err := svc.SaveMessage(ctx, chat.SaveMessageInput{Sender: chat.SenderUser, Content: chat.Content{Text: "q"}, UserID: "guest_a", IsGuest: true})
	require.NoError(t, err)

	_, err = guests.BeginMerge(ctx, "guest_a")
	require.NoError(t, err)
	guests.EndMerge(ctx, "guest_a", map[string]string{first.ConversationID: "durable-1"}, "user_1")

	env, err := svc.SaveMessage(ctx, chat.SaveMessageInput{
		Sender: chat.SenderAssistant, Content: chat.Content{Text: "late answer"}, ConversationID: first.ConversationID,
		UserID: "guest_a", IsGuest: true, ExplicitID: "assistant-1",
	})
	require.NoError(t, err)
	require.NotNil(t, appended)
	assert.Equal(t, "durable-1", appended.ConversationID)
	assert.Equal(t, "durable-1", env.ConversationID)
	assert.Equal(t, "user_1", env.UserID)
	assert.Equal(t, "assistant-1", env.ID)

	// User turns are never forwarded.
	_, err = svc.SaveMessage(ctx, chat.SaveMessageInput{
		Sender: chat.SenderUser, Content: chat.Content{Text: "more"}, ConversationID: first.ConversationID, UserID: "guest_a", IsGuest: true,
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestSaveMessage_DurableReplayReturnsStoredCreatedAt(t *testing.T) {
	original := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, _ := newService(&fakeDurable{
		findConversation: func(ctx context.Context, id string, withMessages bool) (*chat.Conversation, error) {
			return &chat.Conversation{ID: id, UserID: "u1"}, nil
		},
		appendMessage: func(ctx context.Context, msg *chat.Message) (*chat.Conversation, *chat.Message, error) {
			stored := msg.Clone()
			stored.CreatedAt = original
			return &chat.Conversation{ID: msg.ConversationID, UserID: "u1"}, stored, nil
		},
	})

	env, err := svc.SaveMessage(context.Background(), chat.SaveMessageInput{
		Sender: chat.SenderAssistant, Content: chat.Content{Text: "again"}, ConversationID: "c1", UserID: "u1", ExplicitID: "a1",
	})
	require.NoError(t, err)
	assert.True(t, env.CreatedAt.Equal(original))
}

func TestGetConversationsByUser_Ordering(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := newService(&fakeDurable{
		listByOwner: func(ctx context.Context, ownerID string) ([]*chat.Conversation, error) {
			return []*chat.Conversation{
				{ID: "older", UserID: ownerID, UpdatedAt: t0, Messages: []*chat.Message{
					{ID: "m2", CreatedAt: t0.Add(2 * time.Second)},
					{ID: "m1", CreatedAt: t0.Add(time.Second)},
				}},
				{ID: "newer", UserID: ownerID, UpdatedAt: t0.Add(time.Hour)},
			}, nil
		},
	})

	views, err := svc.GetConversationsByUser(context.Background(), "u1", false)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "newer", views[0].ID)
	assert.Equal(t, "older", views[1].ID)
	assert.Equal(t, "m1", views[1].Messages[0].ID)
	assert.Equal(t, "m2", views[1].Messages[1].ID)
	assert.NotNil(t, views[0].Messages)
}

func TestGetSidebarHistory_Preview(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(&fakeDurable{})

	first, err := svc.SaveMessage(ctx, chat.SaveMessageInput{Sender: chat.SenderUser, Content: chat.Content{Text: "question"}, UserID: "guest_a", IsGuest: true})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = svc.SaveMessage(ctx, chat.SaveMessageInput{
		Sender: chat.SenderAssistant, Content: chat.Content{Text: "answer"}, ConversationID: first.ConversationID, UserID: "guest_a", IsGuest: true,
	})
	require.NoError(t, err)

	entries, err := svc.GetSidebarHistory(ctx, "guest_a", true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "question", entries[0].Title)
	require.NotNil(t, entries[0].Preview)
	assert.Equal(t, "answer", entries[0].Preview.Content.Text)
	assert.Equal(t, "none", entries[0].Preview.Content.Language)
}

func TestUpdateMessageEvaluation(t *testing.T) {
	ctx := context.Background()
	durableCalled := false
	svc, _ := newService(&fakeDurable{
		updateEvaluation: func(ctx context.Context, id string, eval chat.Evaluation, at time.Time) (*chat.Conversation, *chat.Message, error) {
			durableCalled = true
			if id != "durable-msg" {
				return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
					"message not found", chat.ErrMessageNotFound, "")
			}
			rating := eval.Rating
			return &chat.Conversation{ID: "c9", UserID: "u1"}, &chat.Message{ID: id, Rating: &rating, EvaluatedAt: &at}, nil
		},
	})

	guest, err := svc.SaveMessage(ctx, chat.SaveMessageInput{Sender: chat.SenderAssistant, Content: chat.Content{Text: "x"}, UserID: "guest_a", IsGuest: true})
	require.NoError(t, err)

	env, err := svc.UpdateMessageEvaluation(ctx, guest.ID, chat.Evaluation{Rating: 5})
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, 5, *env.Rating)
	assert.False(t, durableCalled)

	env, err = svc.UpdateMessageEvaluation(ctx, "durable-msg", chat.Evaluation{Rating: 1})
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "c9", env.ConversationID)

	env, err = svc.UpdateMessageEvaluation(ctx, "nowhere", chat.Evaluation{Rating: 3})
	assert.NoError(t, err)
	assert.Nil(t, env)

	_, err = svc.UpdateMessageEvaluation(ctx, guest.ID, chat.Evaluation{Rating: 6})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestGetMessageByID_FallsBackToDurable(t *testing.T) {
	svc, _ := newService(&fakeDurable{
		findMessage: func(ctx context.Context, id string) (*chat.Conversation, *chat.Message, error) {
			return &chat.Conversation{ID: "c1", UserID: "u1", Title: "T"}, &chat.Message{ID: id, Sender: chat.SenderUser}, nil
		},
	})

	env, err := svc.GetMessageByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "T", env.Title)
}

func TestGetConversationHistory_NotFound(t *testing.T) {
	svc, _ := newService(&fakeDurable{})
	_, err := svc.GetConversationHistory(context.Background(), "missing", false)
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)

	_, err = svc.GetConversationHistory(context.Background(), "missing", true)
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}
