package models

import "time"

// NLUModel is one trained model version in the registry. The log ingestion
// path only ever reads this table; training itself happens elsewhere.
type NLUModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID string    `json:"projectId" gorm:"not null;uniqueIndex:idx_models_project_name"`
	Name      string    `json:"name" gorm:"not null;uniqueIndex:idx_models_project_name"`
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trainedAt"`
	CreatedAt time.Time `json:"createdAt"`

	// Relationships
	Tags []ModelTag `json:"tags,omitempty" gorm:"foreignKey:ModelID"`
}

// ModelTag marks a model as serving a deployment environment, e.g. the
// "production" tag identifies the active model for the default environment.
// A tag belongs to at most one model per project at a time.
type ModelTag struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ModelID   uint      `json:"modelId" gorm:"not null;index"`
	ProjectID string    `json:"projectId" gorm:"not null;uniqueIndex:idx_tags_project_tag"`
	Tag       string    `json:"tag" gorm:"not null;uniqueIndex:idx_tags_project_tag"`
	CreatedAt time.Time `json:"createdAt"`

	Model *NLUModel `json:"model,omitempty" gorm:"foreignKey:ModelID"`
}

func (NLUModel) TableName() string {
	return "nlu_models"
}

func (ModelTag) TableName() string {
	return "model_tags"
}
