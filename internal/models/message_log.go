package models

import (
	"time"

	"gorm.io/datatypes"
)

// MessageLog is one row per logically-distinct user utterance. At most one
// non-archived row exists per (project, hash) pair; duplicate ingests merge
// into the existing row instead of inserting a second one.
type MessageLog struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	ProjectID      string         `json:"projectId" gorm:"not null;index:idx_logs_project_hash"`
	Text           string         `json:"text" gorm:"type:text;not null"`
	Hash           string         `json:"hash" gorm:"not null;index:idx_logs_project_hash"`
	Intent         string         `json:"intent" gorm:"index"`
	Confidence     float64        `json:"confidence"`
	Entities       datatypes.JSON `json:"entities"`
	IntentRanking  datatypes.JSON `json:"intentRanking"`
	Model          string         `json:"model" gorm:"not null"`
	InTrainingData bool           `json:"inTrainingData" gorm:"not null;default:false"`
	Archived       bool           `json:"archived" gorm:"not null;default:false"`
	Time           time.Time      `json:"time"`

	// Back-references to the conversation/event that produced this log,
	// when known. Relation only, the log does not own them.
	ConversationID *string `json:"conversationId"`
	EventID        *uint   `json:"eventId"`
}

func (MessageLog) TableName() string {
	return "message_logs"
}

// TrainingExample is a curated NLU example. Bulk mutations of this table
// trigger a resync of MessageLog.InTrainingData.
type TrainingExample struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID string    `json:"projectId" gorm:"not null;index:idx_examples_project_hash"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	Hash      string    `json:"hash" gorm:"not null;index:idx_examples_project_hash"`
	Intent    string    `json:"intent"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (TrainingExample) TableName() string {
	return "training_examples"
}
