package testhelpers

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/evaluator-server/internal/infrastructure/database"
	_ "github.com/janhq/evaluator-server/internal/infrastructure/database/dbschema"
	"github.com/janhq/evaluator-server/internal/infrastructure/database/transaction"
)

// NewSQLiteDB opens a private in-memory database with every registered schema migrated.
// A single connection is kept open so every query sees the same memory database.
func NewSQLiteDB(t testing.TB) *transaction.Database {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migration(db, ""))
	return transaction.NewDatabase(db)
}
