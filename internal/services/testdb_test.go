package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/botlog/backend/internal/config"
	"github.com/botlog/backend/internal/db"
	"github.com/botlog/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory sqlite database with the full
// schema, including the partial unique index the dedup logic relies on.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = gdb.AutoMigrate(
		&models.User{},
		&models.MessageLog{},
		&models.TrainingExample{},
		&models.NLUModel{},
		&models.ModelTag{},
		&models.ConversationStatistic{},
		&models.ConversationIntentStatistic{},
		&models.ConversationActionStatistic{},
		&models.ConversationEntityStatistic{},
		&models.ConversationPolicyStatistic{},
		&models.AnalyticsCache{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	if err := db.EnsureCanonicalLogIndex(gdb); err != nil {
		t.Fatalf("failed to create canonical log index: %v", err)
	}
	return gdb
}

func newTestLogsService(gdb *gorm.DB) *LogsService {
	cfg := &config.Config{
		DefaultProject:       config.DefaultProject,
		DefaultEnvironment:   config.DefaultEnvironment,
		UnavailableModelName: config.UnavailableModelName,
		IntentMessagePrefix:  config.IntentMessagePrefix,
	}
	return NewLogsService(gdb, NewModelService(gdb), NewDataService(gdb), cfg)
}
