package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"civicpulse-be/config"
	"civicpulse-be/models"
	"civicpulse-be/services"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	issueCollection        *mongo.Collection = config.GetCollection("issues")
	voteCollection         *mongo.Collection = config.GetCollection("votes")
	notificationCollection *mongo.Collection = config.GetCollection("notifications")
)

// Core engine wiring. The sweeper in main reuses IssueRepo and SLA so the
// scheduled and lazy paths share one refresh implementation.
var (
	IssueRepo  services.IssueRepository = services.NewMongoIssueRepository(issueCollection)
	Writebacks                          = services.NewWritebackQueue(2, 64)
	Notifier   services.Notifier        = services.NewMongoNotifier(notificationCollection)
	SLA                                 = services.NewSLAService(IssueRepo, Notifier, Writebacks)

	triage = services.NewTriageService(services.NewSignalClientFromEnv())
)

// CreateIssue handles a new citizen submission: it fuses the priority from
// category, description, and the optional classifier signal, derives the SLA
// deadline from that priority, and persists the issue.
func CreateIssue(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	createdByID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input struct {
		Title       string   `json:"title" binding:"required,max=200"`
		Description string   `json:"description" binding:"required,max=1000"`
		Category    string   `json:"category" binding:"required"`
		Location    string   `json:"location" binding:"required,max=200"`
		ImageURL    *string  `json:"imageUrl,omitempty"`
		Latitude    *float64 `json:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := models.IssueCategory(input.Category)
	if !models.ValidCategories[category] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	var coords *models.Coordinates
	if input.Latitude != nil && input.Longitude != nil {
		coords = &models.Coordinates{Lat: *input.Latitude, Lng: *input.Longitude}
	}

	now := time.Now()
	fusion := triage.Assess(c.Request.Context(), category, input.Description, input.ImageURL)
	sched := services.CalculateDeadline(fusion.Priority, now)

	issue := models.Issue{
		ID:                 primitive.NewObjectID(),
		Title:              input.Title,
		Description:        input.Description,
		Category:           category,
		Location:           input.Location,
		ImageURL:           input.ImageURL,
		Status:             models.StatusPending,
		CreatedBy:          createdByID,
		Coordinates:        coords,
		Priority:           fusion.Priority,
		PriorityConfidence: fusion.Confidence,
		PriorityReasoning:  fusion.Reasoning,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	sched.ApplyTo(&issue)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := issueCollection.InsertOne(ctx, issue); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create issue"})
		return
	}

	c.JSON(http.StatusCreated, issue)
}

// GetAllIssues retrieves issues with filtering, pagination, and vote counts.
// Every issue returned goes through the SLA refresh first, so listed
// daysRemaining and slaStatus are current and legacy records come back
// upgraded.
func GetAllIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	category := c.Query("category")
	status := c.Query("status")
	slaStatus := c.Query("slaStatus")
	priority := c.Query("priority")
	search := c.Query("search")
	sortBy := c.DefaultQuery("sort", "newest")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := bson.M{}
	if category != "" && category != "all" {
		filter["category"] = category
	}
	if status != "" && status != "all" {
		filter["status"] = status
	}
	if slaStatus != "" && slaStatus != "all" {
		filter["slaStatus"] = slaStatus
	}
	if priority != "" && priority != "all" {
		filter["priority"] = models.Priority(priority).Normalize()
	}
	if search != "" {
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": search, "$options": "i"}},
			{"description": bson.M{"$regex": search, "$options": "i"}},
		}
	}

	skip := (page - 1) * limit

	var sortOptions bson.D
	switch sortBy {
	case "oldest":
		sortOptions = bson.D{{Key: "createdAt", Value: 1}}
	case "deadline":
		sortOptions = bson.D{{Key: "slaEndDate", Value: 1}}
	case "newest":
		fallthrough
	default:
		sortOptions = bson.D{{Key: "createdAt", Value: -1}}
	}

	totalCount, err := issueCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count issues"})
		return
	}

	findOptions := options.Find().
		SetSort(sortOptions).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := issueCollection.Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode issues"})
		return
	}

	now := time.Now()
	for i := range issues {
		if _, err := SLA.EnsureFresh(ctx, &issues[i], now); err != nil {
			// The in-memory copy is already current; stale storage catches
			// up on the next refresh or sweep.
			log.WithError(err).WithField("issue", issues[i].ID.Hex()).Warn("sla refresh not persisted")
		}
	}

	var currentUserID *primitive.ObjectID
	if userIDStr, exists := c.Get("user_id"); exists {
		if objID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			currentUserID = &objID
		}
	}

	type IssueWithVotes struct {
		models.Issue
		Votes        int64 `json:"votes"`
		UserHasVoted bool  `json:"userHasVoted"`
	}

	issuesWithVotes := make([]IssueWithVotes, 0, len(issues))
	for _, issue := range issues {
		voteCount, err := voteCollection.CountDocuments(ctx, bson.M{"issue": issue.ID})
		if err != nil {
			voteCount = 0
		}

		userHasVoted := false
		if currentUserID != nil {
			count, err := voteCollection.CountDocuments(ctx, bson.M{
				"issue": issue.ID,
				"user":  *currentUserID,
			})
			if err == nil && count > 0 {
				userHasVoted = true
			}
		}

		issuesWithVotes = append(issuesWithVotes, IssueWithVotes{
			Issue:        issue,
			Votes:        voteCount,
			UserHasVoted: userHasVoted,
		})
	}

	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"issues":      issuesWithVotes,
		"totalIssues": totalCount,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// GetIssue retrieves a single issue by ID after refreshing its SLA state.
func GetIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
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

	if _, err := SLA.EnsureFresh(ctx, &issue, time.Now()); err != nil {
		log.WithError(err).WithField("issue", issue.ID.Hex()).Warn("sla refresh not persisted")
	}

	voteCount, err := voteCollection.CountDocuments(ctx, bson.M{"issue": issueID})
	if err != nil {
		voteCount = 0
	}

	userHasVoted := false
	if userIDStr, exists := c.Get("user_id"); exists {
		if currentUserID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			count, err := voteCollection.CountDocuments(ctx, bson.M{
				"issue": issueID,
				"user":  currentUserID,
			})
			if err == nil && count > 0 {
				userHasVoted = true
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":        issue,
		"votes":        voteCount,
		"userHasVoted": userHasVoted,
	})
}

// UpdateIssue allows the creator to edit descriptive fields. Status and SLA
// fields are off limits here: status moves only through staff transitions
// and SLA fields only through the engine.
func UpdateIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input struct {
		Title       *string  `json:"title,omitempty"`
		Description *string  `json:"description,omitempty"`
		Category    *string  `json:"category,omitempty"`
		Location    *string  `json:"location,omitempty"`
		ImageURL    *string  `json:"imageUrl,omitempty"`
		Latitude    *float64 `json:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
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

	if issue.CreatedBy != userObjID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to update this issue"})
		return
	}

	update := bson.M{"updatedAt": time.Now()}
	if input.Title != nil {
		update["title"] = *input.Title
	}
	if input.Description != nil {
		update["description"] = *input.Description
	}
	if input.Category != nil {
		if !models.ValidCategories[models.IssueCategory(*input.Category)] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
		update["category"] = *input.Category
	}
	if input.Location != nil {
		update["location"] = *input.Location
	}
	if input.ImageURL != nil {
		update["imageUrl"] = input.ImageURL
	}
	if input.Latitude != nil && input.Longitude != nil {
		update["coordinates"] = models.Coordinates{Lat: *input.Latitude, Lng: *input.Longitude}
	}

	_, err = issueCollection.UpdateOne(ctx, bson.M{"_id": issueID}, bson.M{"$set": update})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update issue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue updated successfully"})
}

// DeleteIssue allows the creator of an issue to delete it
func DeleteIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
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

	if issue.CreatedBy != userObjID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to delete this issue"})
		return
	}

	if _, err := issueCollection.DeleteOne(ctx, bson.M{"_id": issueID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete issue"})
		return
	}

	// Delete associated votes
	_, _ = voteCollection.DeleteMany(ctx, bson.M{"issue": issueID})

	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

// HandleVoteOnIssue toggles the user's vote on an issue
func HandleVoteOnIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := issueCollection.CountDocuments(ctx, bson.M{"_id": issueID})
	if err != nil || count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}

	voteFilter := bson.M{"issue": issueID, "user": userObjID}
	existing, err := voteCollection.CountDocuments(ctx, voteFilter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing votes"})
		return
	}

	voted := false
	if existing > 0 {
		if _, err := voteCollection.DeleteOne(ctx, voteFilter); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove vote"})
			return
		}
	} else {
		vote := models.Vote{
			ID:        primitive.NewObjectID(),
			Issue:     issueID,
			User:      userObjID,
			CreatedAt: time.Now(),
		}
		if _, err := voteCollection.InsertOne(ctx, vote); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cast vote"})
			return
		}
		voted = true
	}

	votes, err := voteCollection.CountDocuments(ctx, bson.M{"issue": issueID})
	if err != nil {
		votes = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"voted":        voted,
		"votes":        votes,
		"userHasVoted": voted,
	})
}

// GetIssueClusters computes hotspot clusters over currently open issues for
// the admin map. The cluster list is transient: it is recomputed per request
// and never persisted.
func GetIssueClusters(c *gin.Context) {
	radius := services.DefaultClusterRadiusMeters
	if radiusParam := c.Query("radius"); radiusParam != "" {
		parsed, err := strconv.ParseFloat(radiusParam, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid radius"})
			return
		}
		radius = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{
		"status":      bson.M{"$nin": []models.IssueStatus{models.StatusResolved, models.StatusRejected}},
		"coordinates": bson.M{"$exists": true, "$ne": nil},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := issueCollection.Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve open issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode open issues"})
		return
	}

	clusters := services.ClusterIssues(issues, radius)

	c.JSON(http.StatusOK, gin.H{
		"clusters":     clusters,
		"clusterCount": len(clusters),
		"radius":       radius,
	})
}
