package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/botlog/backend/internal/config"
	"github.com/botlog/backend/internal/logger"
	"github.com/botlog/backend/internal/models"
	"gorm.io/gorm"
)

// DataService manages the curated training examples and answers whether a
// given message is already represented in them.
type DataService struct {
	db                  *gorm.DB
	intentMessagePrefix string
}

func NewDataService(db *gorm.DB) *DataService {
	return &DataService{
		db:                  db,
		intentMessagePrefix: config.IntentMessagePrefix,
	}
}

// ExampleByHash returns the training example with the given text hash, or
// nil if the project has no such example.
func (ds *DataService) ExampleByHash(projectID, hash string) (*models.TrainingExample, error) {
	var example models.TrainingExample
	err := ds.db.Where("project_id = ? AND hash = ?", projectID, hash).First(&example).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up training example: %w", err)
	}
	return &example, nil
}

// IsInTrainingData reports whether a message is already covered by the
// curated training data. Raw-intent messages like "/greet" always count as
// covered since they bypass the NLU model entirely.
func (ds *DataService) IsInTrainingData(projectID, text, hash string) (bool, error) {
	if strings.HasPrefix(text, ds.intentMessagePrefix) {
		return true, nil
	}

	example, err := ds.ExampleByHash(projectID, hash)
	if err != nil {
		return false, err
	}
	return example != nil, nil
}

// CreateExample stores a new curated training example. The caller is
// responsible for running the training-flag resync afterwards.
func (ds *DataService) CreateExample(projectID string, example *models.TrainingExample) error {
	example.ProjectID = projectID
	example.Hash = TextHash(example.Text)

	if err := ds.db.Create(example).Error; err != nil {
		return fmt.Errorf("failed to create training example: %w", err)
	}

	logger.WithProject(projectID, "data_service").Debug("Created training example", map[string]interface{}{
		"example_id": example.ID,
		"intent":     example.Intent,
	})
	return nil
}

// DeleteExample removes a training example. Returns false if no example
// with that ID exists for the project.
func (ds *DataService) DeleteExample(projectID string, exampleID uint) (bool, error) {
	result := ds.db.Where("project_id = ? AND id = ?", projectID, exampleID).
		Delete(&models.TrainingExample{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete training example: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListExamples returns the project's training examples with the total count
// for pagination.
func (ds *DataService) ListExamples(projectID string, limit, offset int) ([]models.TrainingExample, int64, error) {
	query := ds.db.Model(&models.TrainingExample{}).Where("project_id = ?", projectID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count training examples: %w", err)
	}

	listing := query.Order("id DESC")
	if limit > 0 {
		listing = listing.Limit(limit)
	}
	if offset > 0 {
		listing = listing.Offset(offset)
	}

	var examples []models.TrainingExample
	err := listing.Find(&examples).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list training examples: %w", err)
	}
	return examples, total, nil
}
