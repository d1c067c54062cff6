package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse-be/models"
)

func TestFusePriorityBaselineOnly(t *testing.T) {
	tests := []struct {
		category models.IssueCategory
		want     models.Priority
	}{
		{models.Water, models.PriorityHigh},
		{models.Drainage, models.PriorityHigh},
		{models.Pothole, models.PriorityMedium},
		{models.Streetlight, models.PriorityMedium},
		{models.Road, models.PriorityMedium},
		{models.Garbage, models.PriorityLow},
		{models.Other, models.PriorityLow},
		{models.IssueCategory("sinkhole"), models.PriorityLow}, // unknown category
	}
	for _, tt := range tests {
		got := FusePriority(tt.category, "something is wrong here", nil)
		assert.Equal(t, tt.want, got.Priority, "category %s", tt.category)
		assert.Equal(t, defaultFusionConfidence, got.Confidence)
	}
}

func TestTextUrgencyTiersCheckedTopDown(t *testing.T) {
	// "urgent" (high) and "broken" (medium) both match; the higher tier wins.
	assert.Equal(t, models.PriorityHigh, textUrgency("urgent: broken water pipe"))
	assert.Equal(t, models.PriorityCritical, textUrgency("BROKEN pole caught FIRE"))
	assert.Equal(t, models.PriorityMedium, textUrgency("the drain cover is damaged"))
	assert.Equal(t, models.PriorityLow, textUrgency("please take a look sometime"))
}

func TestFusePriorityMaxRule(t *testing.T) {
	// baseline medium, text high, no signal: the max wins.
	got := FusePriority(models.Pothole, "urgent, cars are swerving", nil)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Contains(t, got.Reasoning, "baseline=medium")
	assert.Contains(t, got.Reasoning, "text=high")
}

func TestFusePriorityLowConfidenceSignalJoinsMax(t *testing.T) {
	signal := &TriageSignal{Priority: models.PriorityCritical, Confidence: 0.5}
	got := FusePriority(models.Garbage, "overflowing bin", signal)
	assert.Equal(t, models.PriorityCritical, got.Priority)
	assert.Equal(t, defaultFusionConfidence, got.Confidence)
}

func TestFusePriorityHighConfidenceSignalOverrides(t *testing.T) {
	// Classifier at 0.95 saying low beats a critical baseline+text reading.
	signal := &TriageSignal{Priority: models.PriorityLow, Confidence: 0.95, Reasoning: "stale photo"}
	got := FusePriority(models.Water, "flood danger, emergency", signal)
	assert.Equal(t, models.PriorityLow, got.Priority)
	assert.Equal(t, 0.95, got.Confidence)
	assert.Contains(t, got.Reasoning, "classifier override")
}

func TestFusePriorityOverrideThresholdIsExclusive(t *testing.T) {
	// Exactly 0.80 does not override; it only joins the max.
	signal := &TriageSignal{Priority: models.PriorityLow, Confidence: 0.80}
	got := FusePriority(models.Water, "flood emergency", signal)
	assert.Equal(t, models.PriorityCritical, got.Priority)
}

type failingSignalClient struct{}

func (failingSignalClient) Classify(ctx context.Context, category models.IssueCategory, description string, imageURL *string) (*TriageSignal, error) {
	return nil, errors.New("classifier down")
}

func TestAssessDegradesWhenClassifierFails(t *testing.T) {
	svc := NewTriageService(failingSignalClient{})
	got := svc.Assess(context.Background(), models.Pothole, "urgent safety hazard", nil)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, defaultFusionConfidence, got.Confidence)
}

func TestAssessWithoutClassifierConfigured(t *testing.T) {
	svc := NewTriageService(nil)
	got := svc.Assess(context.Background(), models.Garbage, "bin is full", nil)
	require.Equal(t, models.PriorityLow, got.Priority)
}
