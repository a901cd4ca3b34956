package db

import (
	"fmt"
	"log"
	"os"

	"github.com/botlog/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the database connection.
func Connect() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	})

	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Println("Database connected successfully")
}

// AutoMigrate runs database migrations.
func AutoMigrate() {
	err := DB.AutoMigrate(
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
		log.Fatal("Failed to migrate database:", err)
	}

	if err := EnsureCanonicalLogIndex(DB); err != nil {
		log.Fatal("Failed to create canonical log index:", err)
	}

	log.Println("Database migrated successfully")
}

// EnsureCanonicalLogIndex creates the partial unique index that enforces at
// most one non-archived message log per (project, hash). AutoMigrate cannot
// express partial indexes, so this runs as raw SQL; the statement is valid
// on both postgres and sqlite.
func EnsureCanonicalLogIndex(db *gorm.DB) error {
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_message_logs_canonical
		 ON message_logs (project_id, hash) WHERE NOT archived`,
	).Error
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}
