package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationKind tags what triggered a notification.
type NotificationKind string

const (
	NotifySLABreach  NotificationKind = "sla_breach"
	NotifyResolution NotificationKind = "resolution"
	NotifyRejection  NotificationKind = "rejection"
)

// Notification is an in-app message delivered to a citizen or to staff.
// Delivery mechanics beyond the inbox record (push, email) live elsewhere.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue     primitive.ObjectID `bson:"issue" json:"issue"`
	Recipient string             `bson:"recipient" json:"recipient"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`
	Kind      NotificationKind   `bson:"kind" json:"kind"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
