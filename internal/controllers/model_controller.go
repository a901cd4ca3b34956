package controllers

import (
	"net/http"
	"time"

	"github.com/botlog/backend/internal/logger"
	"github.com/botlog/backend/internal/models"
	"github.com/botlog/backend/internal/services"
	"github.com/gin-gonic/gin"
)

// ModelController exposes the model registry: the list of trained model
// versions and the tags marking which one serves which environment.
type ModelController struct {
	modelService *services.ModelService
}

func NewModelController(modelService *services.ModelService) *ModelController {
	return &ModelController{modelService: modelService}
}

type RegisterModelRequest struct {
	Name      string     `json:"name" binding:"required"`
	Version   string     `json:"version"`
	TrainedAt *time.Time `json:"trainedAt"`
}

func (mc *ModelController) GetModels(c *gin.Context) {
	projectID := c.Param("project")

	registered, err := mc.modelService.ListModels(projectID)
	if err != nil {
		logger.WithError(err, "model_controller").Error("Failed to list models")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list models"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": registered})
}

func (mc *ModelController) RegisterModel(c *gin.Context) {
	projectID := c.Param("project")

	var req RegisterModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model := models.NLUModel{
		Name:    req.Name,
		Version: req.Version,
	}
	if req.TrainedAt != nil {
		model.TrainedAt = *req.TrainedAt
	}

	if err := mc.modelService.RegisterModel(projectID, &model); err != nil {
		logger.WithError(err, "model_controller").Error("Failed to register model")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register model"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"model": model})
}

func (mc *ModelController) TagModel(c *gin.Context) {
	projectID := c.Param("project")
	name := c.Param("name")
	tag := c.Param("tag")

	tagged, err := mc.modelService.TagModel(projectID, name, tag)
	if err != nil {
		logger.WithError(err, "model_controller").Error("Failed to tag model")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to tag model"})
		return
	}
	if !tagged {
		c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (mc *ModelController) DeleteModel(c *gin.Context) {
	projectID := c.Param("project")
	name := c.Param("name")

	deleted, err := mc.modelService.DeleteModel(projectID, name)
	if err != nil {
		logger.WithError(err, "model_controller").Error("Failed to delete model")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete model"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Model not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
