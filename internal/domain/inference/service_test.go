package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

type fakeDispatcher struct {
	dispatch func(ctx context.Context, task Task) (string, error)
}

func (f fakeDispatcher) Dispatch(ctx context.Context, task Task) (string, error) {
	return f.dispatch(ctx, task)
}

func TestSubmitTurn(t *testing.T) {
	saver := &fakeSaver{}
	var got Task
	svc := NewService(saver, fakeDispatcher{dispatch: func(ctx context.Context, task Task) (string, error) {
		got = task
		return "1700000000000-0", nil
	}}, zerolog.Nop())

	principal := user.Principal{UserID: "guest_abc", IsGuest: true, Role: user.RoleGuest}
	env, err := svc.SubmitTurn(context.Background(), principal, SubmitInput{
		ConversationID: "c1",
		Content:        chat.Content{Text: "Explain channels"},
	})
	require.NoError(t, err)
	require.NotNil(t, env)

	require.Len(t, saver.calls, 1)
	saved := saver.calls[0].input
	assert.Equal(t, chat.SenderUser, saved.Sender)
	assert.True(t, saved.IsGuest)
	assert.NotEmpty(t, saved.CorrelationID)

	assert.Equal(t, saved.CorrelationID, got.CorrelationID)
	assert.Equal(t, "c1", got.ConversationID)
	assert.Equal(t, "c1", got.RoomID)
	assert.Equal(t, "guest_abc", got.UserID)
	assert.Equal(t, "Explain channels", got.Message)
	assert.Equal(t, EmptyContext, got.Context)
	assert.True(t, got.IsGuest)
}

func TestSubmitTurnDispatchFailureKeepsMessage(t *testing.T) {
	saver := &fakeSaver{}
	brokerErr := platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure,
		platformerrors.ErrorTypeExternal, "failed to append task", errors.New("connection refused"), "")
	svc := NewService(saver, fakeDispatcher{dispatch: func(ctx context.Context, task Task) (string, error) {
		return "", brokerErr
	}}, zerolog.Nop())

	_, err := svc.SubmitTurn(context.Background(), user.Principal{UserID: "u1"}, SubmitInput{Content: chat.Content{Text: "hi"}})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	assert.Len(t, saver.calls, 1)
}

func TestSubmitTurnRequiresText(t *testing.T) {
	saver := &fakeSaver{}
	svc := NewService(saver, fakeDispatcher{}, zerolog.Nop())

	_, err := svc.SubmitTurn(context.Background(), user.Principal{UserID: "u1"}, SubmitInput{Content: chat.Content{Text: "  "}})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	assert.Empty(t, saver.calls)
}
