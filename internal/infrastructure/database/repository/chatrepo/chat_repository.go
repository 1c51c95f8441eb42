package chatrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/dbschema"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/transaction"
	"github.com/janhq/evaluator-server/internal/utils/functional"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// importBatchSize bounds the rows sent per INSERT when importing guest messages.
const importBatchSize = 100

type ChatGormRepository struct {
	db *transaction.Database
}

var _ chat.ConversationRepository = (*ChatGormRepository)(nil)

func NewChatGormRepository(db *transaction.Database) *ChatGormRepository {
	return &ChatGormRepository{db: db}
}

// CreateWithMessage implements chat.ConversationRepository.
func (repo *ChatGormRepository) CreateWithMessage(ctx context.Context, conv *chat.Conversation, msg *chat.Message) error {
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)
		if err := tx.Omit(clause.Associations).Create(dbschema.NewSchemaConversation(conv)).Error; err != nil {
			return err
		}
		return tx.Create(dbschema.NewSchemaMessage(msg)).Error
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation", err, "6e0c4d1b-2f93-4a58-9b7e-08a4c1d3e5f2")
	}
	return nil
}

// AppendMessage implements chat.ConversationRepository.
func (repo *ChatGormRepository) AppendMessage(ctx context.Context, msg *chat.Message) (*chat.Conversation, *chat.Message, error) {
	var (
		conv   dbschema.Conversation
		stored dbschema.Message
	)
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)
		if err := tx.Where("id = ?", msg.ConversationID).First(&conv).Error; err != nil {
			return err
		}

		model := dbschema.NewSchemaMessage(msg)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "status", "correlation_id", "updated_at"}),
		}).Create(model).Error; err != nil {
			return err
		}
		// A replayed id keeps its original created_at.
		if err := tx.Where("id = ?", msg.ID).First(&stored).Error; err != nil {
			return err
		}

		conv.UpdatedAt = msg.UpdatedAt
		return tx.Model(&dbschema.Conversation{}).
			Where("id = ?", conv.ID).
			Update("updated_at", msg.UpdatedAt).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, repo.conversationNotFound(ctx, err)
	}
	if err != nil {
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to append message", err, "b8f1e2a7-5c40-4d39-8e16-7a2d9c0b4f53")
	}
	return conv.EtoD(), stored.EtoD(), nil
}

// FindConversation implements chat.ConversationRepository.
func (repo *ChatGormRepository) FindConversation(ctx context.Context, conversationID string, withMessages bool) (*chat.Conversation, error) {
	var conv dbschema.Conversation
	query := repo.db.GetTx(ctx)
	if withMessages {
		query = query.Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
	}
	err := query.Where("id = ?", conversationID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repo.conversationNotFound(ctx, err)
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find conversation", err, "3c7a9e15-d0b6-4f82-a1e4-95b3f6c2d807")
	}
	return conv.EtoD(), nil
}

// FindMessage implements chat.ConversationRepository.
func (repo *ChatGormRepository) FindMessage(ctx context.Context, messageID string) (*chat.Conversation, *chat.Message, error) {
	var (
		msg  dbschema.Message
		conv dbschema.Conversation
	)
	tx := repo.db.GetTx(ctx)
	err := tx.Where("id = ?", messageID).First(&msg).Error
	if err == nil {
		err = tx.Where("id = ?", msg.ConversationID).First(&conv).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, repo.messageNotFound(ctx, err)
	}
	if err != nil {
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to find message", err, "f4d2b8a0-6e1c-4937-b5a8-2c0e7d9f1a64")
	}
	return conv.EtoD(), msg.EtoD(), nil
}

// UpdateEvaluation implements chat.ConversationRepository.
func (repo *ChatGormRepository) UpdateEvaluation(ctx context.Context, messageID string, eval chat.Evaluation, at time.Time) (*chat.Conversation, *chat.Message, error) {
	var (
		msg  dbschema.Message
		conv dbschema.Conversation
	)
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)
		if err := tx.Where("id = ?", messageID).First(&msg).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"rating":       eval.Rating,
			"evaluated_at": at,
			"updated_at":   at,
		}
		if eval.Comment != nil {
			updates["evaluation_comment"] = *eval.Comment
		}
		if err := tx.Model(&dbschema.Message{}).Where("id = ?", messageID).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", messageID).First(&msg).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", msg.ConversationID).First(&conv).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, repo.messageNotFound(ctx, err)
	}
	if err != nil {
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to update evaluation", err, "2a9c5f7e-81d3-4b06-9c4f-d6e0a3b1c758")
	}
	return conv.EtoD(), msg.EtoD(), nil
}

// ListByOwner implements chat.ConversationRepository.
func (repo *ChatGormRepository) ListByOwner(ctx context.Context, ownerID string) ([]*chat.Conversation, error) {
	var rows []*dbschema.Conversation
	err := repo.db.GetTx(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations", err, "7d1e3b90-c4a5-4f26-8b7d-0e5f2a9c6d31")
	}
	return functional.Map(rows, func(item *dbschema.Conversation) *chat.Conversation {
		return item.EtoD()
	}), nil
}

// ListSidebar implements chat.ConversationRepository.
func (repo *ChatGormRepository) ListSidebar(ctx context.Context, ownerID string) ([]*chat.Conversation, error) {
	tx := repo.db.GetTx(ctx)

	var rows []*dbschema.Conversation
	if err := tx.Where("user_id = ?", ownerID).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list sidebar", err, "c0b6a4e2-9f17-4d83-a5e1-3b8d7c2f0946")
	}
	if len(rows) == 0 {
		return []*chat.Conversation{}, nil
	}

	ids := functional.Map(rows, func(item *dbschema.Conversation) string { return item.ID })
	table := tx.NamingStrategy.TableName("Message")

	var latest []dbschema.Message
	err := tx.Table(table+" AS m").
		Select("m.*").
		Where("m.conversation_id IN ? AND m.created_at = (SELECT MAX(m2.created_at) FROM "+table+" m2 WHERE m2.conversation_id = m.conversation_id)", ids).
		Order("m.id ASC").
		Find(&latest).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load latest messages", err, "5e8f0a3c-2d71-4b94-86c0-f1a7e9d4b213")
	}

	byConversation := make(map[string]dbschema.Message, len(latest))
	for _, msg := range latest {
		byConversation[msg.ConversationID] = msg
	}
	for _, row := range rows {
		if msg, ok := byConversation[row.ID]; ok {
			row.Messages = []dbschema.Message{msg}
		}
	}

	return functional.Map(rows, func(item *dbschema.Conversation) *chat.Conversation {
		return item.EtoD()
	}), nil
}

// Import writes guest conversations and their messages in one transaction. Messages whose id
// already exists are skipped.
func (repo *ChatGormRepository) Import(ctx context.Context, convs []*chat.Conversation) error {
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)
		for _, conv := range convs {
			if err := tx.Omit(clause.Associations).Create(dbschema.NewSchemaConversation(conv)).Error; err != nil {
				return err
			}
			if len(conv.Messages) == 0 {
				continue
			}
			messages := functional.Map(conv.Messages, func(msg *chat.Message) *dbschema.Message {
				model := dbschema.NewSchemaMessage(msg)
				model.ConversationID = conv.ID
				return model
			})
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(messages, importBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to import conversations", err, "9b4d7e21-a0c3-4f58-bd96-4e2c8a1f7035")
	}
	return nil
}

// Ping checks the database connection.
func (repo *ChatGormRepository) Ping(ctx context.Context) error {
	sqlDB, err := repo.db.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (repo *ChatGormRepository) conversationNotFound(ctx context.Context, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		"conversation not found", errors.Join(chat.ErrConversationNotFound, err), "")
}

func (repo *ChatGormRepository) messageNotFound(ctx context.Context, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		"message not found", errors.Join(chat.ErrMessageNotFound, err), "")
}
