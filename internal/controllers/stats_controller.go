package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/botlog/backend/internal/logger"
	"github.com/botlog/backend/internal/services"
	"github.com/gin-gonic/gin"
)

// statisticsCacheTTL bounds how stale a memoized statistics snapshot may
// get before it is recomputed.
const statisticsCacheTTL = 30 * time.Second

// StatsController serves the per-project conversation rollups and accepts
// bot-side conversation events that the parse-event feed does not carry.
type StatsController struct {
	analyticsService *services.AnalyticsService
}

func NewStatsController(analyticsService *services.AnalyticsService) *StatsController {
	return &StatsController{analyticsService: analyticsService}
}

type BotEventRequest struct {
	Action  string `json:"action"`
	Policy  string `json:"policy"`
	EventID *uint  `json:"event_id"`
}

// GetStatistics returns the top-N snapshot for a project. Snapshots are
// memoized in the analytics cache per (project, top_n) and variant.
func (sc *StatsController) GetStatistics(c *gin.Context) {
	projectID := c.Param("project")

	topN, err := strconv.Atoi(c.DefaultQuery("top_n", "10"))
	if err != nil || topN < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "top_n must be a non-negative integer"})
		return
	}
	includePlatformUsers := c.Query("include_platform_users") == "true"

	cacheKey := fmt.Sprintf("statistics:%s:%d", projectID, topN)
	cached, err := sc.analyticsService.CachedResult(cacheKey, includePlatformUsers, statisticsCacheTTL)
	if err != nil {
		logger.WithError(err, "stats_controller").Warn("Failed to read analytics cache")
	}
	if cached != nil {
		var report services.StatisticsReport
		if err := json.Unmarshal([]byte(cached.Result), &report); err == nil {
			c.JSON(http.StatusOK, gin.H{"statistics": report, "cached": true})
			return
		}
	}

	stat, err := sc.analyticsService.ProjectStatistic(projectID)
	if err != nil {
		logger.WithError(err, "stats_controller").Error("Failed to load conversation statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation statistics"})
		return
	}

	report := services.Snapshot(stat, topN)

	if err := sc.analyticsService.StoreResult(cacheKey, includePlatformUsers, report); err != nil {
		logger.WithError(err, "stats_controller").Warn("Failed to memoize statistics snapshot")
	}

	c.JSON(http.StatusOK, gin.H{"statistics": report, "cached": false})
}

// RecordBotEvent folds a bot response event into the project rollups.
func (sc *StatsController) RecordBotEvent(c *gin.Context) {
	projectID := c.Param("project")

	var req BotEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := sc.analyticsService.RecordBotMessage(projectID, req.Action, req.Policy, req.EventID); err != nil {
		logger.WithError(err, "stats_controller").Error("Failed to record bot event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record bot event"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}
