package routes

import (
	"civicpulse-be/controllers"
	"civicpulse-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AdminRoutes sets up the staff triage and map routes
func AdminRoutes(r *gin.Engine) {
	admin := r.Group("/api/admin")
	admin.Use(middlewares.AuthMiddleware(), middlewares.StaffOnly())
	{
		admin.POST("/issue/:id/transition", controllers.TransitionIssue)
		admin.GET("/clusters", controllers.GetIssueClusters)
		admin.GET("/analytics", controllers.GetSLAAnalytics)
	}
}
