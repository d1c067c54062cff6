package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicpulse-be/models"
)

type slaStateWrite struct {
	id            primitive.ObjectID
	daysRemaining float64
	status        models.SLAStatus
	escalated     models.Priority
}

type scheduleWrite struct {
	id       primitive.ObjectID
	priority models.Priority
	sched    SLASchedule
}

// fakeIssueRepo records engine writes in memory; set fail to exercise the
// failure paths.
type fakeIssueRepo struct {
	mu          sync.Mutex
	stateWrites []slaStateWrite
	schedWrites []scheduleWrite
	nonTerminal []models.Issue
	fail        bool
}

func (r *fakeIssueRepo) UpdateSLAState(ctx context.Context, id primitive.ObjectID, daysRemaining float64, status models.SLAStatus, escalated models.Priority) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("repo down")
	}
	r.stateWrites = append(r.stateWrites, slaStateWrite{id, daysRemaining, status, escalated})
	return nil
}

func (r *fakeIssueRepo) SaveSLASchedule(ctx context.Context, id primitive.ObjectID, priority models.Priority, sched SLASchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("repo down")
	}
	r.schedWrites = append(r.schedWrites, scheduleWrite{id, priority, sched})
	return nil
}

func (r *fakeIssueRepo) FindNonTerminal(ctx context.Context) ([]models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("repo down")
	}
	out := make([]models.Issue, len(r.nonTerminal))
	copy(out, r.nonTerminal)
	return out, nil
}

func (r *fakeIssueRepo) savedSchedules() []scheduleWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]scheduleWrite, len(r.schedWrites))
	copy(out, r.schedWrites)
	return out
}

type sentNotification struct {
	issue     primitive.ObjectID
	kind      models.NotificationKind
	recipient string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *fakeNotifier) Notify(ctx context.Context, issueID primitive.ObjectID, title, body string, kind models.NotificationKind, recipient string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{issueID, kind, recipient})
	return nil
}

func (n *fakeNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotification, len(n.sent))
	copy(out, n.sent)
	return out
}

func newTestSLAService() (*SLAService, *fakeIssueRepo, *fakeNotifier, *WritebackQueue) {
	repo := &fakeIssueRepo{}
	notifier := &fakeNotifier{}
	queue := NewWritebackQueue(1, 16)
	return NewSLAService(repo, notifier, queue), repo, notifier, queue
}

func TestRefreshPersistsOnlyOnChange(t *testing.T) {
	svc, repo, _, queue := newTestSLAService()
	defer queue.Close()

	t0 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	issue := openIssueWithSchedule(models.PriorityMedium, t0)
	issue.ID = primitive.NewObjectID()

	at := t0.Add(24 * time.Hour)
	changed, err := svc.Refresh(context.Background(), &issue, at)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, repo.stateWrites, 1)

	// Same instant again: the idempotence guard skips the write.
	changed, err = svc.Refresh(context.Background(), &issue, at)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, repo.stateWrites, 1)
}

func TestRefreshNotifiesBreachExactlyOnce(t *testing.T) {
	svc, _, notifier, queue := newTestSLAService()
	defer queue.Close()

	t0 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	issue := openIssueWithSchedule(models.PriorityCritical, t0) // 1-day window
	issue.ID = primitive.NewObjectID()
	issue.CreatedBy = primitive.NewObjectID()

	// First observation of the breach: reporter and staff each get one.
	_, err := svc.Refresh(context.Background(), &issue, t0.Add(30*time.Hour))
	require.NoError(t, err)
	sent := notifier.all()
	require.Len(t, sent, 2)
	assert.Equal(t, models.NotifySLABreach, sent[0].kind)
	assert.Equal(t, issue.CreatedBy.Hex(), sent[0].recipient)
	assert.Equal(t, StaffRecipient, sent[1].recipient)

	// Later refreshes of the already-breached issue stay quiet.
	_, err = svc.Refresh(context.Background(), &issue, t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Len(t, notifier.all(), 2)
}

func TestRefreshBackToBackCallersSingleBreachNotice(t *testing.T) {
	// The lazy read path and the sweeper may observe the same breach close
	// together; the idempotence guard makes the second observation a no-op.
	svc, _, notifier, queue := newTestSLAService()
	defer queue.Close()

	t0 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	issue := openIssueWithSchedule(models.PriorityHigh, t0)
	issue.ID = primitive.NewObjectID()
	issue.CreatedBy = primitive.NewObjectID()

	at := t0.Add(72 * time.Hour)
	_, err := svc.Refresh(context.Background(), &issue, at)
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background(), &issue, at.Add(time.Second))
	require.NoError(t, err)

	assert.Len(t, notifier.all(), 2, "one breach, two recipients, no duplicates")
}

func TestEnsureFreshMigratesLegacyRecord(t *testing.T) {
	svc, repo, _, queue := newTestSLAService()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	legacy := models.Issue{
		ID:     primitive.NewObjectID(),
		Status: models.StatusPending,
		// no priority, no SLA fields: created before the SLA rollout
	}

	changed, err := svc.EnsureFresh(context.Background(), &legacy, now)
	require.NoError(t, err)
	assert.True(t, changed)

	// The caller's copy is complete immediately, before any write-back.
	assert.Equal(t, models.PriorityMedium, legacy.Priority)
	assert.Equal(t, 4, legacy.SLADays)
	require.NotNil(t, legacy.SLAStartDate)
	require.NotNil(t, legacy.SLAEndDate)
	assert.Equal(t, now.AddDate(0, 0, 4), *legacy.SLAEndDate)
	assert.Equal(t, models.SLAOnTrack, legacy.SLAStatus)
	assert.Equal(t, models.PriorityLow, legacy.AdminEscalatedPriority)

	// Draining the queue lands exactly one schedule write.
	queue.Close()
	writes := repo.savedSchedules()
	require.Len(t, writes, 1)
	assert.Equal(t, legacy.ID, writes[0].id)
	assert.Equal(t, models.PriorityMedium, writes[0].priority)
	assert.Equal(t, 4, writes[0].sched.SLADays)
}

func TestEnsureFreshMigrationKeepsExistingPriority(t *testing.T) {
	svc, _, _, queue := newTestSLAService()
	defer queue.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	legacy := models.Issue{
		ID:       primitive.NewObjectID(),
		Status:   models.StatusInProgress,
		Priority: models.Priority("HIGH"), // legacy uppercase token
	}

	_, err := svc.EnsureFresh(context.Background(), &legacy, now)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, legacy.Priority)
	assert.Equal(t, 2, legacy.SLADays)
}

func TestEnsureFreshSkipsTerminalLegacyRecord(t *testing.T) {
	svc, repo, _, queue := newTestSLAService()

	legacy := models.Issue{ID: primitive.NewObjectID(), Status: models.StatusResolved}
	changed, err := svc.EnsureFresh(context.Background(), &legacy, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, legacy.SLAStatus)

	queue.Close()
	assert.Empty(t, repo.savedSchedules())
}

func TestEnsureFreshDelegatesWhenSLAFieldsExist(t *testing.T) {
	svc, repo, _, queue := newTestSLAService()
	defer queue.Close()

	t0 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	issue := openIssueWithSchedule(models.PriorityLow, t0)
	issue.ID = primitive.NewObjectID()

	changed, err := svc.EnsureFresh(context.Background(), &issue, t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, repo.stateWrites, 1, "existing records refresh, they do not re-migrate")
	assert.Empty(t, repo.savedSchedules())
}

func TestMigrationWritebackFailureDoesNotAffectResponse(t *testing.T) {
	repo := &fakeIssueRepo{fail: true}
	queue := NewWritebackQueue(1, 4)
	svc := NewSLAService(repo, &fakeNotifier{}, queue)

	legacy := models.Issue{ID: primitive.NewObjectID(), Status: models.StatusPending}
	changed, err := svc.EnsureFresh(context.Background(), &legacy, time.Now())
	require.NoError(t, err, "write-back failures never surface to the read path")
	assert.True(t, changed)
	assert.Equal(t, models.SLAOnTrack, legacy.SLAStatus)

	queue.Close()
	assert.Empty(t, repo.savedSchedules())
}
