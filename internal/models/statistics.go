package models

import "time"

// ConversationStatistic is the per-project aggregate root for conversation
// rollups. It owns four child count collections (intents, actions, entities,
// policies) which are kept in descending-count order by the analytics
// service. Created lazily the first time a project records activity.
type ConversationStatistic struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	ProjectID         string    `json:"projectId" gorm:"not null;uniqueIndex"`
	TotalUserMessages int       `json:"totalUserMessages" gorm:"not null;default:0"`
	TotalBotMessages  int       `json:"totalBotMessages" gorm:"not null;default:0"`
	LatestEventID     *uint     `json:"latestEventId"`
	LatestEventTime   time.Time `json:"latestEventTime"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`

	// Relationships
	Intents  []ConversationIntentStatistic `json:"intents,omitempty" gorm:"foreignKey:StatisticID"`
	Actions  []ConversationActionStatistic `json:"actions,omitempty" gorm:"foreignKey:StatisticID"`
	Entities []ConversationEntityStatistic `json:"entities,omitempty" gorm:"foreignKey:StatisticID"`
	Policies []ConversationPolicyStatistic `json:"policies,omitempty" gorm:"foreignKey:StatisticID"`
}

type ConversationIntentStatistic struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StatisticID uint   `json:"statisticId" gorm:"not null;uniqueIndex:idx_intent_stat_name"`
	Name        string `json:"name" gorm:"not null;uniqueIndex:idx_intent_stat_name"`
	Count       int    `json:"count" gorm:"not null;default:0"`
}

type ConversationActionStatistic struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StatisticID uint   `json:"statisticId" gorm:"not null;uniqueIndex:idx_action_stat_name"`
	Name        string `json:"name" gorm:"not null;uniqueIndex:idx_action_stat_name"`
	Count       int    `json:"count" gorm:"not null;default:0"`
}

type ConversationEntityStatistic struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StatisticID uint   `json:"statisticId" gorm:"not null;uniqueIndex:idx_entity_stat_name"`
	Name        string `json:"name" gorm:"not null;uniqueIndex:idx_entity_stat_name"`
	Count       int    `json:"count" gorm:"not null;default:0"`
}

type ConversationPolicyStatistic struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StatisticID uint   `json:"statisticId" gorm:"not null;uniqueIndex:idx_policy_stat_name"`
	Name        string `json:"name" gorm:"not null;uniqueIndex:idx_policy_stat_name"`
	Count       int    `json:"count" gorm:"not null;default:0"`
}

func (ConversationStatistic) TableName() string {
	return "conversation_statistics"
}

func (ConversationIntentStatistic) TableName() string {
	return "conversation_intent_statistics"
}

func (ConversationActionStatistic) TableName() string {
	return "conversation_action_statistics"
}

func (ConversationEntityStatistic) TableName() string {
	return "conversation_entity_statistics"
}

func (ConversationPolicyStatistic) TableName() string {
	return "conversation_policy_statistics"
}
