package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"civicpulse-be/models"
	"civicpulse-be/services"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// transitionTargets maps a staff action to the status it produces.
var transitionTargets = map[string]models.IssueStatus{
	"plan":     models.StatusInProgress,
	"escalate": models.StatusEscalated,
	"resolve":  models.StatusResolved,
	"reject":   models.StatusRejected,
}

// TransitionIssue applies a staff triage action (plan, escalate, resolve,
// reject). Resolution is judged against the actual slaEndDate at the moment
// of resolution, not the possibly stale slaStatus field, and terminal
// transitions freeze the SLA fields as they stand.
func TransitionIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	var input struct {
		Action string `json:"action" binding:"required"`
		Note   string `json:"note,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, ok := transitionTargets[input.Action]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var issue models.Issue
	err = issueCollection.FindOne(ctx, bson.M{"_id": issueID}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	if issue.Status.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "Issue is already closed"})
		return
	}

	now := time.Now()
	update := bson.M{
		"status":    target,
		"updatedAt": now,
	}

	var withinSLA bool
	if target == models.StatusResolved {
		withinSLA = services.ResolutionWithinSLA(&issue, now)
		update["resolvedAt"] = now
		update["resolvedWithinSLA"] = withinSLA
	}

	if _, err := issueCollection.UpdateOne(ctx, bson.M{"_id": issueID}, bson.M{"$set": update}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update issue"})
		return
	}

	switch target {
	case models.StatusResolved:
		body := fmt.Sprintf("Your report %q has been resolved.", issue.Title)
		if !withinSLA {
			body += " Resolution happened after the committed deadline."
		}
		notifyReporter(ctx, issue, "Issue resolved", body, models.NotifyResolution)
	case models.StatusRejected:
		body := fmt.Sprintf("Your report %q was reviewed and rejected.", issue.Title)
		if input.Note != "" {
			body += " Note: " + input.Note
		}
		notifyReporter(ctx, issue, "Issue rejected", body, models.NotifyRejection)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Issue " + string(target),
		"status":  target,
	})
}

func notifyReporter(ctx context.Context, issue models.Issue, title, body string, kind models.NotificationKind) {
	if err := Notifier.Notify(ctx, issue.ID, title, body, kind, issue.CreatedBy.Hex()); err != nil {
		log.WithError(err).WithField("issue", issue.ID.Hex()).Error("reporter notification failed")
	}
}

// GetSLAAnalytics reports how the municipality is tracking against its
// service commitments: issue counts by SLA status and category, the breach
// backlog, compliance over resolved issues, and the open issues under the
// most deadline pressure.
func GetSLAAnalytics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	statusPipeline := []bson.M{
		{"$match": bson.M{"status": bson.M{"$nin": []models.IssueStatus{models.StatusResolved, models.StatusRejected}}}},
		{"$group": bson.M{"_id": "$slaStatus", "count": bson.M{"$sum": 1}}},
		{"$project": bson.M{"name": "$_id", "value": "$count", "_id": 0}},
	}
	statusCursor, err := issueCollection.Aggregate(ctx, statusPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get SLA status analytics"})
		return
	}
	defer statusCursor.Close(ctx)

	var openBySLAStatus []bson.M
	if err := statusCursor.All(ctx, &openBySLAStatus); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode SLA status analytics"})
		return
	}

	categoryPipeline := []bson.M{
		{"$group": bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}},
		{"$project": bson.M{"name": "$_id", "value": "$count", "_id": 0}},
	}
	categoryCursor, err := issueCollection.Aggregate(ctx, categoryPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get category analytics"})
		return
	}
	defer categoryCursor.Close(ctx)

	var issuesByCategory []bson.M
	if err := categoryCursor.All(ctx, &issuesByCategory); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode category analytics"})
		return
	}

	resolvedTotal, err := issueCollection.CountDocuments(ctx, bson.M{"status": models.StatusResolved})
	if err != nil {
		resolvedTotal = 0
	}
	resolvedWithinSLA, err := issueCollection.CountDocuments(ctx, bson.M{
		"status":            models.StatusResolved,
		"resolvedWithinSLA": true,
	})
	if err != nil {
		resolvedWithinSLA = 0
	}
	complianceRate := 0.0
	if resolvedTotal > 0 {
		complianceRate = float64(resolvedWithinSLA) / float64(resolvedTotal)
	}

	breachedOpen, err := issueCollection.CountDocuments(ctx, bson.M{
		"status":    bson.M{"$nin": []models.IssueStatus{models.StatusResolved, models.StatusRejected}},
		"slaStatus": models.SLABreached,
	})
	if err != nil {
		breachedOpen = 0
	}

	// Open issues closest to (or past) their deadline.
	pressureOptions := options.Find().
		SetSort(bson.D{{Key: "daysRemaining", Value: 1}}).
		SetLimit(5).
		SetProjection(bson.M{
			"_id": 1, "title": 1, "category": 1, "priority": 1,
			"daysRemaining": 1, "slaStatus": 1, "adminEscalatedPriority": 1,
		})
	pressureCursor, err := issueCollection.Find(ctx, bson.M{
		"status":    bson.M{"$nin": []models.IssueStatus{models.StatusResolved, models.StatusRejected}},
		"slaStatus": bson.M{"$exists": true},
	}, pressureOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get deadline pressure list"})
		return
	}
	defer pressureCursor.Close(ctx)

	var underPressure []bson.M
	if err := pressureCursor.All(ctx, &underPressure); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode deadline pressure list"})
		return
	}

	totalIssues, err := issueCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalIssues = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"openBySLAStatus":   openBySLAStatus,
		"issuesByCategory":  issuesByCategory,
		"breachedOpen":      breachedOpen,
		"resolvedTotal":     resolvedTotal,
		"resolvedWithinSLA": resolvedWithinSLA,
		"complianceRate":    complianceRate,
		"underPressure":     underPressure,
		"totalIssues":       totalIssues,
	})
}
