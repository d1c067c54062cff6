package routes

import (
	"civicpulse-be/controllers"
	"civicpulse-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api/issue")
	issue.Use(middlewares.AuthMiddleware())
	{
		issue.POST("/create", middlewares.IssueRateLimiter(10), controllers.CreateIssue)
		issue.GET("", controllers.GetAllIssues)
		issue.GET("/:id", controllers.GetIssue)
		issue.PUT("/:id", controllers.UpdateIssue)
		issue.DELETE("/:id", controllers.DeleteIssue)
		issue.POST("/:id/vote", controllers.HandleVoteOnIssue)
	}

	notifications := r.Group("/api/notifications")
	notifications.Use(middlewares.AuthMiddleware())
	{
		notifications.GET("", controllers.GetMyNotifications)
		notifications.PUT("/:id/read", controllers.MarkNotificationRead)
	}
}
