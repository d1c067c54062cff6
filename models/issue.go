package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Pothole     IssueCategory = "pothole"
	Water       IssueCategory = "water"
	Garbage     IssueCategory = "garbage"
	Streetlight IssueCategory = "streetlight"
	Drainage    IssueCategory = "drainage"
	Road        IssueCategory = "road"
	Other       IssueCategory = "other"
)

// ValidCategories lists every accepted issue category.
var ValidCategories = map[IssueCategory]bool{
	Pothole: true, Water: true, Garbage: true,
	Streetlight: true, Drainage: true, Road: true, Other: true,
}

// Priority is an ordinal severity level. Stored lowercase; comparisons go
// through Rank so ordering never depends on string comparison.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Rank returns the ordinal position of p, or -1 for an unknown value.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p.Normalize()]; ok {
		return r
	}
	return -1
}

// Normalize folds any casing of a priority token to its canonical lowercase
// form. Unknown tokens pass through lowercased.
func (p Priority) Normalize() Priority {
	return Priority(strings.ToLower(string(p)))
}

// MaxPriority returns the highest-ranked of the given priorities.
func MaxPriority(ps ...Priority) Priority {
	best := PriorityLow
	for _, p := range ps {
		if p.Rank() > best.Rank() {
			best = p.Normalize()
		}
	}
	return best
}

// IssueStatus enum
type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
	StatusRejected   IssueStatus = "rejected"
	StatusEscalated  IssueStatus = "escalated"
)

// IsTerminal reports whether the status ends the issue's lifecycle. SLA
// fields freeze once a terminal status is reached.
func (s IssueStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// SLAStatus classifies how an open issue stands against its deadline.
type SLAStatus string

const (
	SLAOnTrack  SLAStatus = "ON_TRACK"
	SLAAtRisk   SLAStatus = "AT_RISK"
	SLABreached SLAStatus = "BREACHED"
)

// Coordinates is a WGS84 point attached to an issue.
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Issue represents a civic issue reported by a citizen. Issues created
// before the SLA rollout lack slaStatus; those are upgraded lazily on first
// read instead of by a batch migration.
type Issue struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    IssueCategory      `bson:"category" json:"category"`
	Location    string             `bson:"location" json:"location"`
	ImageURL    *string            `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Status      IssueStatus        `bson:"status" json:"status"`
	CreatedBy   primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	Coordinates *Coordinates       `bson:"coordinates,omitempty" json:"coordinates,omitempty"`

	Priority           Priority   `bson:"priority,omitempty" json:"priority,omitempty"`
	PriorityConfidence float64    `bson:"priorityConfidence,omitempty" json:"priorityConfidence,omitempty"`
	PriorityReasoning  string     `bson:"priorityReasoning,omitempty" json:"priorityReasoning,omitempty"`
	SLADays            int        `bson:"slaDays,omitempty" json:"slaDays,omitempty"`
	SLAStartDate       *time.Time `bson:"slaStartDate,omitempty" json:"slaStartDate,omitempty"`
	SLAEndDate         *time.Time `bson:"slaEndDate,omitempty" json:"slaEndDate,omitempty"`
	DaysRemaining      float64    `bson:"daysRemaining" json:"daysRemaining"`
	SLAStatus          SLAStatus  `bson:"slaStatus,omitempty" json:"slaStatus,omitempty"`
	// AdminEscalatedPriority reflects deadline pressure only; it is
	// independent of the priority assigned at submission.
	AdminEscalatedPriority Priority `bson:"adminEscalatedPriority,omitempty" json:"adminEscalatedPriority,omitempty"`

	ResolvedAt        *time.Time `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	ResolvedWithinSLA *bool      `bson:"resolvedWithinSLA,omitempty" json:"resolvedWithinSLA,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
