package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/botlog/backend/internal/logger"
	"github.com/botlog/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatisticsReport is the response-ready snapshot of a project's
// conversation rollups. The top lists are never nil, only empty.
type StatisticsReport struct {
	UserMessages int      `json:"user_messages"`
	BotMessages  int      `json:"bot_messages"`
	TopIntents   []string `json:"top_intents"`
	TopActions   []string `json:"top_actions"`
	TopEntities  []string `json:"top_entities"`
	TopPolicies  []string `json:"top_policies"`
}

// AnalyticsService maintains the per-project conversation statistics and
// the memoized analytics results.
type AnalyticsService struct {
	db *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// statisticForProject returns the project's aggregate root, creating it
// lazily on first use.
func (as *AnalyticsService) statisticForProject(tx *gorm.DB, projectID string) (*models.ConversationStatistic, error) {
	var stat models.ConversationStatistic
	err := tx.Where("project_id = ?", projectID).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stat = models.ConversationStatistic{ProjectID: projectID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}},
			DoNothing: true,
		}).Create(&stat).Error; err != nil {
			return nil, fmt.Errorf("failed to create statistic for %q: %w", projectID, err)
		}
		// A concurrent creator may have won the upsert; re-read to get
		// the surviving row.
		if err := tx.Where("project_id = ?", projectID).First(&stat).Error; err != nil {
			return nil, fmt.Errorf("failed to reload statistic for %q: %w", projectID, err)
		}
		return &stat, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load statistic for %q: %w", projectID, err)
	}
	return &stat, nil
}

// RecordUserMessage folds one user utterance into the project rollups:
// bumps the message counter and the per-intent/per-entity counts.
func (as *AnalyticsService) RecordUserMessage(projectID, intent string, entities []string, eventID *uint) error {
	return as.db.Transaction(func(tx *gorm.DB) error {
		stat, err := as.statisticForProject(tx, projectID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"total_user_messages": gorm.Expr("total_user_messages + 1"),
			"latest_event_time":   time.Now().UTC(),
		}
		if eventID != nil {
			updates["latest_event_id"] = *eventID
		}
		if err := tx.Model(stat).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update statistic counters: %w", err)
		}

		if intent != "" {
			if err := incrementCounter(tx, &models.ConversationIntentStatistic{
				StatisticID: stat.ID, Name: intent, Count: 1,
			}); err != nil {
				return err
			}
		}
		for _, entity := range entities {
			if err := incrementCounter(tx, &models.ConversationEntityStatistic{
				StatisticID: stat.ID, Name: entity, Count: 1,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordBotMessage folds one bot response into the project rollups: bumps
// the message counter and the per-action/per-policy counts.
func (as *AnalyticsService) RecordBotMessage(projectID, action, policy string, eventID *uint) error {
	return as.db.Transaction(func(tx *gorm.DB) error {
		stat, err := as.statisticForProject(tx, projectID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"total_bot_messages": gorm.Expr("total_bot_messages + 1"),
			"latest_event_time":  time.Now().UTC(),
		}
		if eventID != nil {
			updates["latest_event_id"] = *eventID
		}
		if err := tx.Model(stat).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update statistic counters: %w", err)
		}

		if action != "" {
			if err := incrementCounter(tx, &models.ConversationActionStatistic{
				StatisticID: stat.ID, Name: action, Count: 1,
			}); err != nil {
				return err
			}
		}
		if policy != "" {
			if err := incrementCounter(tx, &models.ConversationPolicyStatistic{
				StatisticID: stat.ID, Name: policy, Count: 1,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// incrementCounter upserts one (statistic, name) counter row: insert with
// count 1, or bump the existing count on conflict.
func incrementCounter(tx *gorm.DB, counter interface{}) error {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "statistic_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count": gorm.Expr("count + 1"),
		}),
	}).Create(counter).Error
	if err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}
	return nil
}

// ProjectStatistic loads a project's aggregate root with all four child
// collections ordered by descending count, ties kept in storage order.
// Returns an empty statistic when the project has recorded nothing yet.
func (as *AnalyticsService) ProjectStatistic(projectID string) (*models.ConversationStatistic, error) {
	byCount := func(db *gorm.DB) *gorm.DB {
		return db.Order("count DESC, id ASC")
	}

	var stat models.ConversationStatistic
	err := as.db.
		Preload("Intents", byCount).
		Preload("Actions", byCount).
		Preload("Entities", byCount).
		Preload("Policies", byCount).
		Where("project_id = ?", projectID).
		First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ConversationStatistic{ProjectID: projectID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load statistic for %q: %w", projectID, err)
	}
	return &stat, nil
}

// Snapshot turns an aggregate into a response-ready report. Each top list
// holds the first topN names ordered by descending count; ties keep their
// relative storage order. Pure read, the statistic is not mutated.
func Snapshot(stat *models.ConversationStatistic, topN int) StatisticsReport {
	intents := make([]namedCount, len(stat.Intents))
	for i, row := range stat.Intents {
		intents[i] = namedCount{row.Name, row.Count}
	}
	actions := make([]namedCount, len(stat.Actions))
	for i, row := range stat.Actions {
		actions[i] = namedCount{row.Name, row.Count}
	}
	entities := make([]namedCount, len(stat.Entities))
	for i, row := range stat.Entities {
		entities[i] = namedCount{row.Name, row.Count}
	}
	policies := make([]namedCount, len(stat.Policies))
	for i, row := range stat.Policies {
		policies[i] = namedCount{row.Name, row.Count}
	}

	return StatisticsReport{
		UserMessages: stat.TotalUserMessages,
		BotMessages:  stat.TotalBotMessages,
		TopIntents:   topNames(intents, topN),
		TopActions:   topNames(actions, topN),
		TopEntities:  topNames(entities, topN),
		TopPolicies:  topNames(policies, topN),
	}
}

type namedCount struct {
	name  string
	count int
}

// topNames returns the first topN names ordered by descending count. The
// stable sort keeps ties in their incoming (storage) order.
func topNames(rows []namedCount, topN int) []string {
	sorted := make([]namedCount, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].count > sorted[j].count })

	if topN < 0 {
		topN = 0
	}
	if topN > len(sorted) {
		topN = len(sorted)
	}
	names := make([]string, 0, topN)
	for _, row := range sorted[:topN] {
		names = append(names, row.name)
	}
	return names
}

// CachedResult returns the memoized analytics result for the key and user
// variant if one exists and is younger than maxAge. A zero maxAge disables
// the staleness check.
func (as *AnalyticsService) CachedResult(cacheKey string, includePlatformUsers bool, maxAge time.Duration) (*models.AnalyticsCache, error) {
	var cached models.AnalyticsCache
	err := as.db.Where("cache_key = ? AND include_platform_users = ?", cacheKey, includePlatformUsers).
		First(&cached).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics cache: %w", err)
	}

	if maxAge > 0 && time.Since(cached.Timestamp) > maxAge {
		return nil, nil
	}
	return &cached, nil
}

// StoreResult overwrites the memoized analytics result for the key and
// user variant wholesale.
func (as *AnalyticsService) StoreResult(cacheKey string, includePlatformUsers bool, result interface{}) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize analytics result: %w", err)
	}

	err = as.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cache_key"}, {Name: "include_platform_users"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"result":    payload,
			"timestamp": time.Now().UTC(),
		}),
	}).Create(&models.AnalyticsCache{
		CacheKey:             cacheKey,
		IncludePlatformUsers: includePlatformUsers,
		Result:               datatypes.JSON(payload),
		Timestamp:            time.Now().UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to store analytics result: %w", err)
	}

	logger.Debug("Stored analytics result", map[string]interface{}{
		"cache_key": cacheKey,
	})
	return nil
}
