package services

import (
	"context"
	"time"

	"github.com/apex/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"civicpulse-be/models"
)

// StaffRecipient addresses a notification to the municipal staff inbox
// rather than a single user.
const StaffRecipient = "staff"

// Notifier delivers breach and resolution notices. Implementations must be
// safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, issueID primitive.ObjectID, title, body string, kind models.NotificationKind, recipient string) error
}

type mongoNotifier struct {
	coll *mongo.Collection
}

// NewMongoNotifier stores notifications as in-app inbox records.
func NewMongoNotifier(coll *mongo.Collection) Notifier {
	return &mongoNotifier{coll: coll}
}

func (n *mongoNotifier) Notify(ctx context.Context, issueID primitive.ObjectID, title, body string, kind models.NotificationKind, recipient string) error {
	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		Issue:     issueID,
		Recipient: recipient,
		Title:     title,
		Body:      body,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	if _, err := n.coll.InsertOne(ctx, notification); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"issue":     issueID.Hex(),
		"kind":      kind,
		"recipient": recipient,
	}).Info("notification delivered")
	return nil
}
