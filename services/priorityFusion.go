package services

import (
	"fmt"
	"strings"

	"civicpulse-be/models"
)

const (
	// signalOverrideConfidence is the threshold above which the external
	// classifier's verdict wins outright over baseline and text signals.
	signalOverrideConfidence = 0.80

	// defaultFusionConfidence is reported when no classifier signal decided
	// the outcome.
	defaultFusionConfidence = 0.60
)

// categoryBaseline maps each category to its resting priority. Categories
// not listed here (and unknown ones) default to low.
var categoryBaseline = map[models.IssueCategory]models.Priority{
	models.Water:       models.PriorityHigh,
	models.Drainage:    models.PriorityHigh,
	models.Pothole:     models.PriorityMedium,
	models.Streetlight: models.PriorityMedium,
	models.Road:        models.PriorityMedium,
	models.Garbage:     models.PriorityLow,
	models.Other:       models.PriorityLow,
}

// urgencyTiers are scanned top-down; the first tier with a keyword hit wins,
// so "urgent broken pipe" scores high, not medium.
var urgencyTiers = []struct {
	priority models.Priority
	keywords []string
}{
	{models.PriorityCritical, []string{"fire", "flood", "collapse", "emergency", "danger", "accident"}},
	{models.PriorityHigh, []string{"urgent", "serious", "major", "severe", "hazard", "unsafe"}},
	{models.PriorityMedium, []string{"broken", "damaged", "leaking", "blocked"}},
}

// FusionResult is the outcome of priority fusion: the assigned priority plus
// the confidence and reasoning kept on the issue for audit.
type FusionResult struct {
	Priority   models.Priority `json:"priority"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// FusePriority combines the category baseline, a text-urgency scan of the
// description, and an optional classifier signal into one priority.
//
// A classifier signal with confidence above signalOverrideConfidence decides
// the result on its own. Otherwise the result is the ordinal max of all
// signals present. Pass signal == nil when the classifier was unavailable.
func FusePriority(category models.IssueCategory, description string, signal *TriageSignal) FusionResult {
	baseline, ok := categoryBaseline[category]
	if !ok {
		baseline = models.PriorityLow
	}
	text := textUrgency(description)

	if signal != nil && signal.Confidence > signalOverrideConfidence {
		return FusionResult{
			Priority:   signal.Priority.Normalize(),
			Confidence: signal.Confidence,
			Reasoning: fmt.Sprintf("classifier override at confidence %.2f (baseline=%s, text=%s): %s",
				signal.Confidence, baseline, text, signal.Reasoning),
		}
	}

	candidates := []models.Priority{baseline, text}
	parts := fmt.Sprintf("baseline=%s, text=%s", baseline, text)
	confidence := defaultFusionConfidence
	if signal != nil {
		candidates = append(candidates, signal.Priority.Normalize())
		parts += fmt.Sprintf(", classifier=%s@%.2f", signal.Priority.Normalize(), signal.Confidence)
	}

	return FusionResult{
		Priority:   models.MaxPriority(candidates...),
		Confidence: confidence,
		Reasoning:  "max of signals: " + parts,
	}
}

// textUrgency returns the priority of the first urgency tier with a keyword
// present in the description, or low when nothing matches.
func textUrgency(description string) models.Priority {
	text := strings.ToLower(description)
	for _, tier := range urgencyTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(text, kw) {
				return tier.priority
			}
		}
	}
	return models.PriorityLow
}
