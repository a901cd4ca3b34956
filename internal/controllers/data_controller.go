package controllers

import (
	"net/http"
	"strconv"

	"github.com/botlog/backend/internal/logger"
	"github.com/botlog/backend/internal/models"
	"github.com/botlog/backend/internal/services"
	"github.com/gin-gonic/gin"
)

// DataController manages the curated training examples. Every mutation
// triggers a training-flag resync so the message-log corpus reflects the
// new training-data state.
type DataController struct {
	dataService *services.DataService
	logsService *services.LogsService
}

func NewDataController(dataService *services.DataService, logsService *services.LogsService) *DataController {
	return &DataController{
		dataService: dataService,
		logsService: logsService,
	}
}

type CreateExampleRequest struct {
	Text   string `json:"text" binding:"required"`
	Intent string `json:"intent"`
}

func (dc *DataController) GetExamples(c *gin.Context) {
	projectID := c.Param("project")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	examples, total, err := dc.dataService.ListExamples(projectID, limit, offset)
	if err != nil {
		logger.WithError(err, "data_controller").Error("Failed to list training examples")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list training examples"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"examples": examples,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
			"total":  total,
		},
	})
}

func (dc *DataController) CreateExample(c *gin.Context) {
	projectID := c.Param("project")

	var req CreateExampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	example := models.TrainingExample{
		Text:   req.Text,
		Intent: req.Intent,
	}
	if err := dc.dataService.CreateExample(projectID, &example); err != nil {
		logger.WithError(err, "data_controller").Error("Failed to create training example")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create training example"})
		return
	}

	dc.resyncAfterMutation(projectID)

	c.JSON(http.StatusCreated, gin.H{"example": example})
}

func (dc *DataController) DeleteExample(c *gin.Context) {
	projectID := c.Param("project")

	exampleID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid example ID"})
		return
	}

	deleted, err := dc.dataService.DeleteExample(projectID, uint(exampleID))
	if err != nil {
		logger.WithError(err, "data_controller").Error("Failed to delete training example")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete training example"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Training example not found"})
		return
	}

	dc.resyncAfterMutation(projectID)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// resyncAfterMutation re-derives the in-training-data flags after a
// training-data change. Queries between the mutation and a failed resync
// may briefly see stale flags; the failure is logged, not surfaced, since
// the mutation itself already succeeded.
func (dc *DataController) resyncAfterMutation(projectID string) {
	if err := dc.logsService.ResyncTrainingFlags(projectID); err != nil {
		logger.WithError(err, "data_controller").Error("Failed to resync training flags")
	}
}
