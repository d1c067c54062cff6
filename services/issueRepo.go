package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"civicpulse-be/models"
)

// IssueRepository is the persistence surface the SLA engine needs. Handlers
// own full CRUD through their collections; the engine only ever touches SLA
// fields, so the interface stays narrow and easy to fake in tests.
type IssueRepository interface {
	// UpdateSLAState persists the re-evaluated SLA fields of an issue.
	UpdateSLAState(ctx context.Context, id primitive.ObjectID, daysRemaining float64, status models.SLAStatus, escalated models.Priority) error

	// SaveSLASchedule persists a freshly synthesized SLA record, including
	// the (possibly defaulted) priority, for a lazily migrated issue.
	SaveSLASchedule(ctx context.Context, id primitive.ObjectID, priority models.Priority, sched SLASchedule) error

	// FindNonTerminal returns every issue whose status is not terminal.
	FindNonTerminal(ctx context.Context) ([]models.Issue, error)
}

type mongoIssueRepo struct {
	coll *mongo.Collection
}

// NewMongoIssueRepository wraps an issues collection as an IssueRepository.
func NewMongoIssueRepository(coll *mongo.Collection) IssueRepository {
	return &mongoIssueRepo{coll: coll}
}

func (r *mongoIssueRepo) UpdateSLAState(ctx context.Context, id primitive.ObjectID, daysRemaining float64, status models.SLAStatus, escalated models.Priority) error {
	update := bson.M{"$set": bson.M{
		"daysRemaining":          daysRemaining,
		"slaStatus":              status,
		"adminEscalatedPriority": escalated,
		"updatedAt":              time.Now(),
	}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (r *mongoIssueRepo) SaveSLASchedule(ctx context.Context, id primitive.ObjectID, priority models.Priority, sched SLASchedule) error {
	update := bson.M{"$set": bson.M{
		"priority":               priority,
		"slaDays":                sched.SLADays,
		"slaStartDate":           sched.SLAStartDate,
		"slaEndDate":             sched.SLAEndDate,
		"daysRemaining":          sched.DaysRemaining,
		"slaStatus":              sched.SLAStatus,
		"adminEscalatedPriority": sched.AdminEscalatedPriority,
		"updatedAt":              time.Now(),
	}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (r *mongoIssueRepo) FindNonTerminal(ctx context.Context) ([]models.Issue, error) {
	filter := bson.M{"status": bson.M{"$nin": []models.IssueStatus{
		models.StatusResolved, models.StatusRejected,
	}}}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}
