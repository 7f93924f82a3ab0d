package routes

import (
	"net/http"

	"photo-qc-api/controllers"
	"photo-qc-api/middleware"
	"photo-qc-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, h *controllers.Handlers, jwtSecret string) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"status":  "ok",
				"message": "Photo QC API is running",
			})
		})

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/me/subsections", h.GetAllowedSubsections)

			submissions := protected.Group("/submissions")
			{
				submissions.GET("", h.ListSubmissions)
				submissions.POST("", h.CreateSubmission)
				submissions.POST("/review-batch", middleware.RequireRole(models.RoleReviewer, models.RoleAdmin), h.ReviewSubmissionsBatch)

				submissions.GET("/:id", h.GetSubmission)
				submissions.GET("/:id/content", h.GetSubmissionContent)
				submissions.GET("/:id/history", h.GetSubmissionHistory)
				submissions.GET("/:id/comments", h.GetSubmissionComments)
				submissions.POST("/:id/comments", h.AddSubmissionComment)
				submissions.POST("/:id/resubmit", h.ResubmitSubmission)
				submissions.POST("/:id/review", middleware.RequireRole(models.RoleReviewer, models.RoleAdmin), h.ReviewSubmission)
				submissions.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), h.DeleteSubmission)
			}

			// Admin routes
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/routes/:route_id/subsections/:subsection_id/grants", h.GetSubsectionGrants)
				admin.PUT("/routes/:route_id/subsections/:subsection_id/grants", h.ReplaceSubsectionGrants)
			}
		}
	}

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Endpoint not found",
			"path":  c.Request.URL.Path,
		})
	})
}
