package services

import (
	"errors"
	"fmt"

	"github.com/botlog/backend/internal/logger"
	"github.com/botlog/backend/internal/models"
	"gorm.io/gorm"
)

// ModelService is the read-mostly registry of trained model versions. The
// log ingestion path uses it to answer "which model is active for this
// environment" and "which model was trained last".
type ModelService struct {
	db *gorm.DB
}

func NewModelService(db *gorm.DB) *ModelService {
	return &ModelService{db: db}
}

// ModelForTag returns the model currently carrying the given tag for the
// project, or nil if no model is tagged.
func (ms *ModelService) ModelForTag(projectID, tag string) (*models.NLUModel, error) {
	var modelTag models.ModelTag
	err := ms.db.Preload("Model").
		Where("project_id = ? AND tag = ?", projectID, tag).
		First(&modelTag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up tag %q: %w", tag, err)
	}
	return modelTag.Model, nil
}

// LatestModel returns the most recently created model record for the
// project, or nil if the project has no models at all.
func (ms *ModelService) LatestModel(projectID string) (*models.NLUModel, error) {
	var model models.NLUModel
	err := ms.db.Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up latest model: %w", err)
	}
	return &model, nil
}

// ListModels returns all model records for a project, newest first.
func (ms *ModelService) ListModels(projectID string) ([]models.NLUModel, error) {
	var registered []models.NLUModel
	err := ms.db.Preload("Tags").
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Find(&registered).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return registered, nil
}

// RegisterModel stores a new trained model version in the registry.
func (ms *ModelService) RegisterModel(projectID string, model *models.NLUModel) error {
	model.ProjectID = projectID
	if err := ms.db.Create(model).Error; err != nil {
		return fmt.Errorf("failed to register model %q: %w", model.Name, err)
	}

	logger.WithProject(projectID, "model_service").Info("Registered model", map[string]interface{}{
		"model": model.Name,
	})
	return nil
}

// TagModel points the (project, tag) pair at the named model, replacing any
// previous assignment of that tag. Returns false if the model is unknown.
func (ms *ModelService) TagModel(projectID, name, tag string) (bool, error) {
	var model models.NLUModel
	err := ms.db.Where("project_id = ? AND name = ?", projectID, name).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up model %q: %w", name, err)
	}

	err = ms.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ? AND tag = ?", projectID, tag).
			Delete(&models.ModelTag{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.ModelTag{
			ModelID:   model.ID,
			ProjectID: projectID,
			Tag:       tag,
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to tag model %q as %q: %w", name, tag, err)
	}

	logger.WithProject(projectID, "model_service").Info("Tagged model", map[string]interface{}{
		"model": name,
		"tag":   tag,
	})
	return true, nil
}

// DeleteModel removes a model and its tags. Returns false if no model with
// that name exists for the project.
func (ms *ModelService) DeleteModel(projectID, name string) (bool, error) {
	var model models.NLUModel
	err := ms.db.Where("project_id = ? AND name = ?", projectID, name).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up model %q: %w", name, err)
	}

	err = ms.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_id = ?", model.ID).Delete(&models.ModelTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete model %q: %w", name, err)
	}
	return true, nil
}
