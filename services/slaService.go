package services

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"civicpulse-be/models"
)

// SLAService applies the pure SLA evaluation to persisted issues: it writes
// changed fields back and fires the one-time breach notification. Both the
// lazy read path and the background sweep go through it.
type SLAService struct {
	repo     IssueRepository
	notifier Notifier
	queue    *WritebackQueue
}

func NewSLAService(repo IssueRepository, notifier Notifier, queue *WritebackQueue) *SLAService {
	return &SLAService{repo: repo, notifier: notifier, queue: queue}
}

// EnsureFresh is the single entry point for issues coming off a read or a
// sweep. Records that predate the SLA rollout get their fields synthesized;
// everything else gets a normal refresh. The issue is updated in place so the
// caller can respond with current values immediately.
func (s *SLAService) EnsureFresh(ctx context.Context, issue *models.Issue, now time.Time) (bool, error) {
	if issue.SLAStatus == "" {
		return s.migrateLegacy(issue, now), nil
	}
	return s.Refresh(ctx, issue, now)
}

// Refresh re-evaluates an issue's SLA state at now. Returns false without
// touching storage when nothing moved beyond the idempotence guard. The
// first refresh that observes a breach notifies the reporter and staff;
// later refreshes of an already-breached issue do not.
func (s *SLAService) Refresh(ctx context.Context, issue *models.Issue, now time.Time) (bool, error) {
	ev := EvaluateSLA(issue, now)
	if !ev.Changed {
		return false, nil
	}

	issue.DaysRemaining = ev.DaysRemaining
	issue.SLAStatus = ev.SLAStatus
	issue.AdminEscalatedPriority = ev.AdminEscalatedPriority

	if err := s.repo.UpdateSLAState(ctx, issue.ID, ev.DaysRemaining, ev.SLAStatus, ev.AdminEscalatedPriority); err != nil {
		return true, err
	}
	if ev.NewlyBreached {
		s.notifyBreach(ctx, issue)
	}
	return true, nil
}

func (s *SLAService) notifyBreach(ctx context.Context, issue *models.Issue) {
	title := "Resolution deadline missed"
	body := fmt.Sprintf("The issue %q was not resolved within its %d-day window.", issue.Title, issue.SLADays)

	recipients := []string{issue.CreatedBy.Hex(), StaffRecipient}
	for _, recipient := range recipients {
		if err := s.notifier.Notify(ctx, issue.ID, title, body, models.NotifySLABreach, recipient); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"issue":     issue.ID.Hex(),
				"recipient": recipient,
			}).Error("breach notification failed")
		}
	}
}
