package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"civicpulse-be/config"
	"civicpulse-be/controllers"
	"civicpulse-be/models"
	"civicpulse-be/routes"
	"civicpulse-be/services"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	db := config.ConnectDB()
	if db == nil {
		log.Fatal("Failed to connect to MongoDB")
	}
	config.ConnectRedis()

	if err := models.EnsureVoteIndex(db.Collection("votes")); err != nil {
		log.WithError(err).Warn("Failed to ensure vote index")
	}

	// Proactive SLA sweep; the lazy path covers issues that get read.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := services.NewSweeper(controllers.SLA, controllers.IssueRepo, sweepInterval())
	go sweeper.Run(ctx)
	defer controllers.Writebacks.Close()

	r := gin.Default()

	routes.AuthRoutes(r)
	routes.IssueRoutes(r)
	routes.AdminRoutes(r)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if err := r.Run(":8080"); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}

func sweepInterval() time.Duration {
	raw := os.Getenv("SLA_SWEEP_INTERVAL_HOURS")
	if raw == "" {
		return services.DefaultSweepInterval
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		log.WithField("value", raw).Warn("Invalid SLA_SWEEP_INTERVAL_HOURS, using default")
		return services.DefaultSweepInterval
	}
	return time.Duration(hours) * time.Hour
}
