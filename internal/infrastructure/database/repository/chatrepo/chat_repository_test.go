package chatrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/repository/chatrepo"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
	"github.com/janhq/evaluator-server/pkg/testhelpers"
)

var base = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func message(id, convID string, sender chat.Sender, text string, at time.Time) *chat.Message {
	return &chat.Message{
		ID:             id,
		ConversationID: convID,
		Sender:         sender,
		Content:        chat.Content{Text: text, Language: "go", Metadata: map[string]any{"source": "test"}},
		Status:         chat.MessageStatusCompleted,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func seed(t *testing.T, repo *chatrepo.ChatGormRepository, convID, owner string, at time.Time) {
	t.Helper()
	conv := &chat.Conversation{ID: convID, UserID: owner, Title: "title " + convID, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, repo.CreateWithMessage(context.Background(), conv, message(convID+"-m1", convID, chat.SenderUser, "first", at)))
}

func TestCreateAndFindConversation(t *testing.T) {
	ctx := context.Background()
	repo := chatrepo.NewChatGormRepository(testhelpers.NewSQLiteDB(t))
	seed(t, repo, "c1", "u1", base)

	conv, err := repo.FindConversation(ctx, "c1", true)
	require.NoError(t, err)
	assert.Equal(t, "u1", conv.UserID)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "first", conv.Messages[0].Content.Text)
	assert.Equal(t, "go", conv.Messages[0].Content.Language)
	assert.Equal(t, "test", conv.Messages[0].Content.Metadata["source"])

	conv, err = repo.FindConversation(ctx, "c1", false)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)

	_, err = repo.FindConversation(ctx, "missing", true)
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestAppendMessageUpsertsAndTouches(t *testing.T) {
	ctx := context.Background()
	repo := chatrepo.NewChatGormRepository(testhelpers.NewSQLiteDB(t))
	seed(t, repo, "c1", "u1", base)

	later := base.Add(time.Minute)
	conv, stored, err := repo.AppendMessage(ctx, message("a1", "c1", chat.SenderAssistant, "partial", later))
	require.NoError(t, err)
	assert.True(t, conv.UpdatedAt.Equal(later))
	assert.True(t, stored.CreatedAt.Equal(later))

	// Same id again: content replaced, no duplicate row, original createdAt returned.
	again := message("a1", "c1", chat.SenderAssistant, "final answer", later.Add(time.Second))
	again.CorrelationID = "corr-1"
	_, stored, err = repo.AppendMessage(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, "final answer", stored.Content.Text)
	assert.True(t, stored.CreatedAt.Equal(later), "replayed id must keep its createdAt, got %s", stored.CreatedAt)
	assert.True(t, stored.UpdatedAt.Equal(later.Add(time.Second)))

	loaded, err := repo.FindConversation(ctx, "c1", true)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "final answer", loaded.Messages[1].Content.Text)
	assert.Equal(t, "corr-1", loaded.Messages[1].CorrelationID)
	assert.True(t, loaded.UpdatedAt.Equal(later.Add(time.Second)))
}

func TestAppendMessageUnknownConversationWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo := chatrepo.NewChatGormRepository(testhelpers.NewSQLiteDB(t))

	_, _, err := repo.AppendMessage(ctx, message("orphan", "missing", chat.SenderUser, "x", base))
	assert.ErrorIs(t, err, chat.ErrConversationNotFound)

	_, _, err = repo.FindMessage(ctx, "orphan")
	assert.ErrorIs(t, err, chat.ErrMessageNotFound)
}

func TestUpdateEvaluation(t *testing.T) {
	ctx := context.Background()
	repo := chatrepo.NewChatGormRepository(testhelpers.NewSQLiteDB(t))
	seed(t, repo, "c1", "u1", base)

	comment := "precise"
	at := base.Add(time.Hour)
	conv, msg, err := repo.UpdateEvaluation(ctx, "c1-m1", chat.Evaluation{Rating: 4, Comment: &comment}, at)
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	require.NotNil(t, msg.Rating)
	assert.Equal(t, 4, *msg.Rating)
	assert.Equal(t, "precise", *msg.EvaluationComment)
	require.NotNil(t, msg.EvaluatedAt)

	_, msg, err = repo.UpdateEvaluation(ctx, "c1-m1", chat.Evaluation{Rating: 2}, at)
	require.NoError(t, err)
	assert.Equal(t, 2, *msg.Rating)
	assert.Equal(t, "precise", *msg.EvaluationComment)

	_, _, err = repo.UpdateEvaluation(ctx, "nope", chat.Evaluation{Rating: 2}, at)
	assert.ErrorIs(t, err, chat.ErrMessageNotFound)
}

func TestListByOwnerOrdering(t *testing.T) {
	ctx := context.Background()
	repo := chatrepo.NewChatGormRepository(testhelpers.NewSQLiteDB(t))
	seed(t, repo, "old", "u1", base)
	seed(t, repo, "new", "u1", base.Add(time.Hour))
	seed(t, repo, "other", "u2", base.Add(2*time.Hour))

	_, _, err := repo.AppendMessage(ctx, message("old-m0", "old", chat.SenderAssistant, "earlier", base.Add(-time.Minute)))
	require.NoError(t, err)

	convs, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "new", convs[0].ID)
	assert.Equal(t, "old", convs[1].ID)
	require.Len(t, convs[1].Messages, 2)
	assert.Equal(t, "old-m0", convs[1].Messages[0].ID)
}

func TestListSidebarLatestMessage(t *testing.T) {
	ctx := context.Background()
	repo := chatrepo.NewChatGormRepository(testhelpers.NewSQLiteDB(t))
	seed(t, repo, "c1", "u1", base)
	seed(t, repo, "c2", "u1", base.Add(time.Minute))

	_, _, err := repo.AppendMessage(ctx, message("c1-m2", "c1", chat.SenderAssistant, "latest", base.Add(time.Hour)))
	require.NoError(t, err)

	convs, err := repo.ListSidebar(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "c1", convs[0].ID)
	require.Len(t, convs[0].Messages, 1)
	assert.Equal(t, "latest", convs[0].Messages[0].Content.Text)
	require.Len(t, convs[1].Messages, 1)
	assert.Equal(t, "first", convs[1].Messages[0].Content.Text)

	empty, err := repo.ListSidebar(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestImportSkipsExistingMessages(t *testing.T) {
	ctx := context.Background()
	repo := chatrepo.NewChatGormRepository(testhelpers.NewSQLiteDB(t))
	seed(t, repo, "c1", "u1", base)

	rating := 5
	imported := &chat.Conversation{ID: "c9", UserID: "u1", Title: "guest chat", CreatedAt: base, UpdatedAt: base}
	dup := message("c1-m1", "guest", chat.SenderUser, "dup", base)
	fresh := message("g-2", "guest", chat.SenderAssistant, "kept", base.Add(time.Second))
	fresh.Rating = &rating
	imported.Messages = []*chat.Message{dup, fresh}

	require.NoError(t, repo.Import(ctx, []*chat.Conversation{imported}))

	conv, err := repo.FindConversation(ctx, "c9", true)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "g-2", conv.Messages[0].ID)
	assert.Equal(t, 5, *conv.Messages[0].Rating)

	_, msg, err := repo.FindMessage(ctx, "c1-m1")
	require.NoError(t, err)
	assert.Equal(t, "first", msg.Content.Text)
}
