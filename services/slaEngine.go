package services

import (
	"math"
	"time"

	"civicpulse-be/models"
)

// slaWindowDays maps a priority to its resolution budget in calendar days.
var slaWindowDays = map[models.Priority]int{
	models.PriorityCritical: 1,
	models.PriorityHigh:     2,
	models.PriorityMedium:   4,
	models.PriorityLow:      7,
}

// defaultSLADays is the fail-open budget for unrecognized priorities. A
// generous window beats refusing the submission.
const defaultSLADays = 7

// daysRemainingEpsilon: refreshes whose daysRemaining moved less than this
// are treated as "no change" so near-simultaneous evaluations from the read
// path and the sweeper do not write or notify twice.
const daysRemainingEpsilon = 0.01

const hoursPerDay = 24

// SLAWindow returns the resolution budget in days for a priority.
func SLAWindow(p models.Priority) int {
	if days, ok := slaWindowDays[p.Normalize()]; ok {
		return days
	}
	return defaultSLADays
}

// SLASchedule is the initial SLA record for an issue. Produced once at
// creation (or at lazy migration) and never recomputed afterwards.
type SLASchedule struct {
	SLADays                int
	SLAStartDate           time.Time
	SLAEndDate             time.Time
	DaysRemaining          float64
	SLAStatus              models.SLAStatus
	AdminEscalatedPriority models.Priority
}

// CalculateDeadline maps a priority to its SLA schedule anchored at now.
// Pure function of its arguments, no side effects.
func CalculateDeadline(p models.Priority, now time.Time) SLASchedule {
	days := SLAWindow(p)
	return SLASchedule{
		SLADays:                days,
		SLAStartDate:           now,
		SLAEndDate:             now.AddDate(0, 0, days),
		DaysRemaining:          float64(days),
		SLAStatus:              models.SLAOnTrack,
		AdminEscalatedPriority: models.PriorityLow,
	}
}

// ApplyTo copies the schedule onto an issue.
func (s SLASchedule) ApplyTo(issue *models.Issue) {
	start, end := s.SLAStartDate, s.SLAEndDate
	issue.SLADays = s.SLADays
	issue.SLAStartDate = &start
	issue.SLAEndDate = &end
	issue.DaysRemaining = s.DaysRemaining
	issue.SLAStatus = s.SLAStatus
	issue.AdminEscalatedPriority = s.AdminEscalatedPriority
}

// ResolutionWithinSLA judges a resolution happening at now against the
// issue's recorded deadline. The possibly stale slaStatus field plays no
// part; only the deadline itself matters. An issue with no recorded deadline
// counts as within SLA rather than penalizing a legacy record.
func ResolutionWithinSLA(issue *models.Issue, now time.Time) bool {
	return issue.SLAEndDate == nil || now.Before(*issue.SLAEndDate)
}

// SLAEvaluation is the outcome of re-evaluating an open issue against the
// clock. Changed is false when nothing moved enough to persist or notify.
type SLAEvaluation struct {
	DaysRemaining          float64
	SLAStatus              models.SLAStatus
	AdminEscalatedPriority models.Priority
	Changed                bool
	// NewlyBreached marks the first observation of the deadline passing on
	// this issue; it is what gates the one-time breach notification.
	NewlyBreached bool
}

// EvaluateSLA recomputes remaining time, SLA status, and escalation priority
// for an issue at the given instant. Terminal issues and issues without a
// deadline are a defined no-op. Pure function of the issue and now, so
// overlapping evaluations from different callers are safe to interleave.
func EvaluateSLA(issue *models.Issue, now time.Time) SLAEvaluation {
	if issue.Status.IsTerminal() || issue.SLAEndDate == nil {
		return SLAEvaluation{
			DaysRemaining:          issue.DaysRemaining,
			SLAStatus:              issue.SLAStatus,
			AdminEscalatedPriority: issue.AdminEscalatedPriority.Normalize(),
		}
	}

	timeRemaining := issue.SLAEndDate.Sub(now)
	totalDuration := time.Duration(issue.SLADays) * hoursPerDay * time.Hour
	daysRemaining := timeRemaining.Hours() / hoursPerDay

	var status models.SLAStatus
	switch {
	case daysRemaining <= 0:
		status = models.SLABreached
	case timeRemaining*2 <= totalDuration:
		status = models.SLAAtRisk
	default:
		status = models.SLAOnTrack
	}

	// A malformed record can carry a deadline with slaDays == 0. Pin the
	// percentage so the escalation ladder agrees with the status ladder:
	// fully elapsed once the deadline passed, untouched before it.
	percentageLeft := 1.0
	switch {
	case totalDuration > 0:
		percentageLeft = float64(timeRemaining) / float64(totalDuration)
	case timeRemaining <= 0:
		percentageLeft = 0
	}
	escalated := models.PriorityLow
	switch {
	case percentageLeft <= 0:
		escalated = models.PriorityCritical
	case percentageLeft <= 0.25:
		escalated = models.PriorityHigh
	case percentageLeft <= 0.5:
		escalated = models.PriorityMedium
	}

	changed := status != issue.SLAStatus ||
		escalated != issue.AdminEscalatedPriority.Normalize() ||
		math.Abs(daysRemaining-issue.DaysRemaining) >= daysRemainingEpsilon

	return SLAEvaluation{
		DaysRemaining:          daysRemaining,
		SLAStatus:              status,
		AdminEscalatedPriority: escalated,
		Changed:                changed,
		NewlyBreached:          status == models.SLABreached && issue.SLAStatus != models.SLABreached,
	}
}
