package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/botlog/backend/internal/config"
	"github.com/botlog/backend/internal/logger"
	"github.com/botlog/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Rejected query inputs. Invalid sort parameters are an error, never a
// silent default; only the fully-unsorted case falls back to newest-first.
var (
	ErrInvalidSortColumn = errors.New("invalid sort column for message logs")
	ErrInvalidSortOrder  = errors.New("sort order must be \"asc\" or \"desc\"")
)

// ErrInvalidParseEvent marks an inbound event that failed boundary
// validation.
var ErrInvalidParseEvent = errors.New("invalid parse event")

// sortableLogColumns are the MessageLog columns a query may sort by.
var sortableLogColumns = map[string]bool{
	"id":               true,
	"text":             true,
	"intent":           true,
	"confidence":       true,
	"model":            true,
	"time":             true,
	"in_training_data": true,
}

// LogQuery captures the filter/sort/pagination parameters of a message-log
// query. TextQuery and Intents combine with OR when both are set.
type LogQuery struct {
	TextQuery           string
	Intents             []string
	ExcludeTrainingData bool
	SortBy              string
	SortOrder           string
	Limit               int
	Offset              int
}

// LogsService deals with parsed user messages: it deduplicates them by
// content hash, attributes them to a model version and serves queries over
// the accumulated log corpus.
type LogsService struct {
	db           *gorm.DB
	modelService *ModelService
	dataService  *DataService
	cfg          *config.Config
}

func NewLogsService(db *gorm.DB, modelService *ModelService, dataService *DataService, cfg *config.Config) *LogsService {
	return &LogsService{
		db:           db,
		modelService: modelService,
		dataService:  dataService,
		cfg:          cfg,
	}
}

// IngestParseEvent stores a parsed user utterance. If a non-archived log
// with the same text hash already exists for the project the event merges
// into it, keeping the existing row's ID but refreshing its model
// attribution and payload. Otherwise a new log is inserted with the model
// resolved through the fallback chain and the training flag computed from
// the current training data.
//
// The partial unique index on (project_id, hash) makes concurrent ingests
// of the same text converge on one canonical row: the loser of an insert
// race gets a duplicate-key error and retries as a merge.
func (ls *LogsService) IngestParseEvent(projectID string, event *models.ParseEvent) (*models.MessageLog, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParseEvent, err)
	}

	saved, err := ls.upsertLog(projectID, event)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost an insert race; the canonical row exists now, so this
		// attempt is guaranteed to take the merge path.
		saved, err = ls.upsertLog(projectID, event)
	}
	if err != nil {
		return nil, err
	}

	logger.WithLog(saved.ID, saved.Hash).Debug("Saved message log", map[string]interface{}{
		"project_id": projectID,
		"intent":     saved.Intent,
		"model":      saved.Model,
	})
	return saved, nil
}

func (ls *LogsService) upsertLog(projectID string, event *models.ParseEvent) (*models.MessageLog, error) {
	hash := TextHash(event.Text)

	var saved *models.MessageLog
	err := ls.db.Transaction(func(tx *gorm.DB) error {
		existing, err := ls.canonicalLogForUpdate(tx, projectID, hash)
		if err != nil {
			return err
		}

		log, err := ls.buildLog(projectID, event, hash)
		if err != nil {
			return err
		}

		if existing != nil {
			log.ID = existing.ID
			log.Time = existing.Time
			if err := tx.Save(log).Error; err != nil {
				return fmt.Errorf("failed to merge message log %d: %w", existing.ID, err)
			}
		} else {
			if err := tx.Create(log).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return err
				}
				return fmt.Errorf("failed to insert message log: %w", err)
			}
		}

		saved = log
		return nil
	})
	return saved, err
}

// canonicalLogForUpdate reads the canonical (non-archived) row for the hash
// inside the current transaction. On postgres the row is locked so that a
// concurrent merge of the same hash serializes behind this one; sqlite has
// no row locks, where the unique index plus the duplicate-key retry covers
// the race instead.
func (ls *LogsService) canonicalLogForUpdate(tx *gorm.DB, projectID, hash string) (*models.MessageLog, error) {
	query := tx.Where("project_id = ? AND hash = ? AND archived = ?", projectID, hash, false)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var log models.MessageLog
	err := query.First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up log by hash: %w", err)
	}
	return &log, nil
}

func (ls *LogsService) buildLog(projectID string, event *models.ParseEvent, hash string) (*models.MessageLog, error) {
	entities, err := json.Marshal(event.Entities)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize entities: %w", err)
	}
	ranking, err := json.Marshal(event.IntentRanking)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize intent ranking: %w", err)
	}

	inTrainingData, err := ls.dataService.IsInTrainingData(projectID, event.Text, hash)
	if err != nil {
		return nil, err
	}

	return &models.MessageLog{
		ProjectID:      projectID,
		Text:           event.Text,
		Hash:           hash,
		Intent:         event.Intent.Name,
		Confidence:     event.Intent.Confidence,
		Entities:       datatypes.JSON(entities),
		IntentRanking:  datatypes.JSON(ranking),
		Model:          ls.modelForParseEvent(projectID, event),
		InTrainingData: inTrainingData,
		Time:           time.Now().UTC(),
		ConversationID: event.ConversationID,
		EventID:        event.EventID,
	}, nil
}

// modelForParseEvent resolves the model name a log is attributed to. The
// fallback chain is evaluated in order, first success wins: explicit model
// in the event, the model tagged for the default environment, the latest
// model in the registry, and finally the sentinel name. Failed steps log a
// diagnostic and move on; the chain itself never fails.
func (ls *LogsService) modelForParseEvent(projectID string, event *models.ParseEvent) string {
	diag := logger.WithProject(projectID, "logs_service")

	if event.Model != "" {
		return event.Model
	}
	diag.Debug("No model in the parse event, trying the active production model")

	active, err := ls.modelService.ModelForTag(projectID, ls.cfg.DefaultEnvironment)
	if err != nil {
		diag.Debug(fmt.Sprintf("Active model lookup failed: %v", err))
	}
	if active != nil {
		return active.Name
	}
	diag.Debug(fmt.Sprintf("No model tagged %q, trying the latest model", ls.cfg.DefaultEnvironment))

	latest, err := ls.modelService.LatestModel(projectID)
	if err != nil {
		diag.Debug(fmt.Sprintf("Latest model lookup failed: %v", err))
	}
	if latest != nil {
		return latest.Name
	}
	diag.Debug(fmt.Sprintf("No model found at all, attributing the log to %q", ls.cfg.UnavailableModelName))

	return ls.cfg.UnavailableModelName
}

// ReplaceLog re-parses an existing log in place: the payload is rebuilt
// from the new parse event while the row ID is preserved. Returns nil if
// the log does not exist for the project.
func (ls *LogsService) ReplaceLog(projectID string, logID uint, event *models.ParseEvent) (*models.MessageLog, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParseEvent, err)
	}

	var replaced *models.MessageLog
	err := ls.db.Transaction(func(tx *gorm.DB) error {
		var existing models.MessageLog
		err := tx.Where("project_id = ? AND id = ?", projectID, logID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up log %d: %w", logID, err)
		}

		log, err := ls.buildLog(projectID, event, TextHash(event.Text))
		if err != nil {
			return err
		}
		log.ID = existing.ID
		log.Time = existing.Time
		if err := tx.Save(log).Error; err != nil {
			return fmt.Errorf("failed to replace log %d: %w", logID, err)
		}

		replaced = log
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// Archive marks a message log as archived. Archived logs disappear from
// default queries but the rows are retained. Returns whether a log with
// this ID existed; archiving twice is a no-op.
func (ls *LogsService) Archive(logID uint) (bool, error) {
	result := ls.db.Model(&models.MessageLog{}).
		Where("id = ?", logID).
		Update("archived", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to archive log %d: %w", logID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// LogByHash returns the canonical (non-archived) log with the given text
// hash, or nil if none exists.
func (ls *LogsService) LogByHash(projectID, hash string) (*models.MessageLog, error) {
	var log models.MessageLog
	err := ls.db.Where("project_id = ? AND hash = ? AND archived = ?", projectID, hash, false).
		First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up log by hash: %w", err)
	}
	return &log, nil
}

// FetchLogs returns the message logs matching the query plus the total
// number of matches before pagination. Archived logs are always excluded.
func (ls *LogsService) FetchLogs(projectID string, q LogQuery) ([]models.MessageLog, int64, error) {
	sortOrder := q.SortOrder
	if sortOrder == "" {
		sortOrder = "desc"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		return nil, 0, fmt.Errorf("%w (got %q)", ErrInvalidSortOrder, q.SortOrder)
	}

	sortColumn := q.SortBy
	if sortColumn == "" {
		sortColumn = "id"
	}
	if !sortableLogColumns[sortColumn] {
		return nil, 0, fmt.Errorf("%w (got %q)", ErrInvalidSortColumn, q.SortBy)
	}

	query := ls.db.Model(&models.MessageLog{}).
		Where("project_id = ? AND archived = ?", projectID, false)

	switch {
	case q.TextQuery != "" && len(q.Intents) > 0:
		query = query.Where(
			ls.db.Where("text LIKE ?", "%"+q.TextQuery+"%").
				Or("intent IN ?", q.Intents),
		)
	case q.TextQuery != "":
		query = query.Where("text LIKE ?", "%"+q.TextQuery+"%")
	case len(q.Intents) > 0:
		query = query.Where("intent IN ?", q.Intents)
	}

	if q.ExcludeTrainingData {
		query = query.Where("in_training_data = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count message logs: %w", err)
	}

	query = query.Order(fmt.Sprintf("%s %s", sortColumn, sortOrder))
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var logs []models.MessageLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch message logs: %w", err)
	}
	return logs, total, nil
}

// ResyncTrainingFlags re-derives InTrainingData for every message log (or
// every log of one project when projectID is non-empty) against the current
// training data. The two bulk statements run in one transaction so callers
// either see the whole corpus updated or nothing at all; no rows are ever
// loaded into memory.
func (ls *LogsService) ResyncTrainingFlags(projectID string) error {
	err := ls.db.Transaction(func(tx *gorm.DB) error {
		clear := tx.Model(&models.MessageLog{})
		if projectID != "" {
			clear = clear.Where("project_id = ?", projectID)
		} else {
			clear = clear.Session(&gorm.Session{AllowGlobalUpdate: true})
		}
		if err := clear.Update("in_training_data", false).Error; err != nil {
			return fmt.Errorf("failed to clear training flags: %w", err)
		}

		hashes := tx.Model(&models.TrainingExample{}).Select("hash")
		if projectID != "" {
			hashes = hashes.Where("project_id = ?", projectID)
		}

		set := tx.Model(&models.MessageLog{}).
			Where(
				tx.Where("hash IN (?)", hashes).
					Or("text LIKE ?", ls.cfg.IntentMessagePrefix+"%"),
			)
		if projectID != "" {
			set = set.Where("project_id = ?", projectID)
		}
		if err := set.Update("in_training_data", true).Error; err != nil {
			return fmt.Errorf("failed to set training flags: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.WithProject(projectID, "logs_service").Info("Resynced training flags")
	return nil
}
