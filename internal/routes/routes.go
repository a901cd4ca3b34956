package routes

import (
	"github.com/botlog/backend/internal/config"
	"github.com/botlog/backend/internal/controllers"
	"github.com/botlog/backend/internal/middleware"
	"github.com/botlog/backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes.
func SetupRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config) {
	// Initialize services
	modelService := services.NewModelService(db)
	dataService := services.NewDataService(db)
	logsService := services.NewLogsService(db, modelService, dataService, cfg)
	analyticsService := services.NewAnalyticsService(db)

	// Initialize controllers
	authController := controllers.NewAuthController(db)
	userController := controllers.NewUserController(db)
	logController := controllers.NewLogController(logsService, analyticsService)
	dataController := controllers.NewDataController(dataService, logsService)
	modelController := controllers.NewModelController(modelService)
	statsController := controllers.NewStatsController(analyticsService)

	// API routes
	api := r.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authController.Login)
			auth.POST("/register", authController.Register)
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.POST("/auth/refresh", authController.RefreshToken)

			// Users
			users := protected.Group("/users")
			{
				users.GET("/me", userController.GetCurrentUser)
				users.PUT("/me", userController.UpdateCurrentUser)
				users.GET("", userController.GetUsers)
			}

			// Per-project resources
			project := protected.Group("/projects/:project")
			{
				// Message logs
				project.POST("/logs", logController.IngestLog)
				project.GET("/logs", logController.GetLogs)
				project.PUT("/logs/:id", logController.ReplaceLog)
				project.DELETE("/logs/:id", logController.ArchiveLog)

				// Training data
				project.GET("/data", dataController.GetExamples)
				project.POST("/data", dataController.CreateExample)
				project.DELETE("/data/:id", dataController.DeleteExample)

				// Model registry
				project.GET("/models", modelController.GetModels)
				project.POST("/models", modelController.RegisterModel)
				project.PUT("/models/:name/tags/:tag", modelController.TagModel)
				project.DELETE("/models/:name", modelController.DeleteModel)

				// Conversation statistics
				project.GET("/statistics", statsController.GetStatistics)
				project.POST("/statistics/bot-events", statsController.RecordBotEvent)
			}
		}
	}
}
