package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/botlog/backend/internal/logger"
	"github.com/botlog/backend/internal/models"
	"github.com/botlog/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type LogController struct {
	logsService      *services.LogsService
	analyticsService *services.AnalyticsService
}

func NewLogController(logsService *services.LogsService, analyticsService *services.AnalyticsService) *LogController {
	return &LogController{
		logsService:      logsService,
		analyticsService: analyticsService,
	}
}

// IngestLog handles an inbound parsed-utterance event. Duplicate texts
// merge into the existing canonical log, so the returned log's ID may
// belong to an earlier ingest.
func (lc *LogController) IngestLog(c *gin.Context) {
	projectID := c.Param("project")

	var event models.ParseEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log, err := lc.logsService.IngestParseEvent(projectID, &event)
	if err != nil {
		if errors.Is(err, services.ErrInvalidParseEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.WithError(err, "log_controller").Error("Failed to ingest parse event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store message log"})
		return
	}

	// Fold the utterance into the project rollups. Statistics lag behind
	// rather than failing the ingest if this goes wrong.
	entityNames := make([]string, 0, len(event.Entities))
	for _, e := range event.Entities {
		entityNames = append(entityNames, e.Entity)
	}
	if err := lc.analyticsService.RecordUserMessage(projectID, event.Intent.Name, entityNames, event.EventID); err != nil {
		logger.WithError(err, "log_controller").Warn("Failed to update conversation statistics")
	}

	c.JSON(http.StatusCreated, gin.H{"log": log})
}

// GetLogs serves the filtered, sorted, paginated query over the log corpus.
func (lc *LogController) GetLogs(c *gin.Context) {
	projectID := c.Param("project")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	query := services.LogQuery{
		TextQuery:           c.Query("q"),
		ExcludeTrainingData: c.Query("exclude_training_data") == "true",
		SortBy:              c.Query("sort_by"),
		SortOrder:           c.Query("sort_order"),
		Limit:               limit,
		Offset:              offset,
	}
	if intents := c.Query("intent"); intents != "" {
		query.Intents = strings.Split(intents, ",")
	}

	logs, total, err := lc.logsService.FetchLogs(projectID, query)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSortColumn) || errors.Is(err, services.ErrInvalidSortOrder) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.WithError(err, "log_controller").Error("Failed to fetch message logs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch message logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs": logs,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
			"total":  total,
		},
	})
}

// ReplaceLog re-parses an existing log in place, keeping its ID.
func (lc *LogController) ReplaceLog(c *gin.Context) {
	projectID := c.Param("project")

	logID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log ID"})
		return
	}

	var event models.ParseEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log, err := lc.logsService.ReplaceLog(projectID, uint(logID), &event)
	if err != nil {
		if errors.Is(err, services.ErrInvalidParseEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.WithError(err, "log_controller").Error("Failed to replace message log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to replace message log"})
		return
	}
	if log == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message log not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"log": log})
}

// ArchiveLog marks a log as archived. Archived logs drop out of default
// queries but the rows stay around.
func (lc *LogController) ArchiveLog(c *gin.Context) {
	logID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log ID"})
		return
	}

	archived, err := lc.logsService.Archive(uint(logID))
	if err != nil {
		logger.WithError(err, "log_controller").Error("Failed to archive message log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive message log"})
		return
	}
	if !archived {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message log not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
