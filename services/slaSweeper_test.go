package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
)

func TestSweepOnceRefreshesAndNotifies(t *testing.T) {
	repo := &fakeIssueRepo{}
	notifier := &fakeNotifier{}
	queue := NewWritebackQueue(1, 16)
	svc := NewSLAService(repo, notifier, queue)

	t0 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	breached := openIssueWithSchedule(models.PriorityCritical, t0) // deadline t0+1d
	breached.ID = primitive.NewObjectID()
	breached.CreatedBy = primitive.NewObjectID()

	onTrack := openIssueWithSchedule(models.PriorityLow, t0.Add(-time.Hour))
	onTrack.ID = primitive.NewObjectID()

	legacy := models.Issue{ID: primitive.NewObjectID(), Status: models.StatusPending}

	repo.nonTerminal = []models.Issue{breached, onTrack, legacy}
	sweeper := NewSweeper(svc, repo, 0)

	now := t0.Add(48 * time.Hour)
	require.NoError(t, sweeper.SweepOnce(context.Background(), now))
	queue.Close()

	// The breached issue was persisted and announced once to each recipient.
	sent := notifier.all()
	require.Len(t, sent, 2)
	for _, n := range sent {
		assert.Equal(t, breached.ID, n.issue)
		assert.Equal(t, models.NotifySLABreach, n.kind)
	}

	// The legacy record was synthesized through the same sweep.
	require.Len(t, repo.savedSchedules(), 1)
	assert.Equal(t, legacy.ID, repo.savedSchedules()[0].id)

	assert.NotEmpty(t, repo.stateWrites)
}

func TestSweepOnceSurfacesListFailure(t *testing.T) {
	repo := &fakeIssueRepo{fail: true}
	queue := NewWritebackQueue(1, 4)
	defer queue.Close()
	svc := NewSLAService(repo, &fakeNotifier{}, queue)
	sweeper := NewSweeper(svc, repo, 0)

	err := sweeper.SweepOnce(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestSweeperDefaultInterval(t *testing.T) {
	sweeper := NewSweeper(nil, nil, 0)
	assert.Equal(t, DefaultSweepInterval, sweeper.interval)
}
