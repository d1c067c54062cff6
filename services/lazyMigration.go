package services

import (
	"context"
	"time"

	"civicpulse-be/models"
)

// migrateLegacy upgrades an issue created before the SLA rollout: it assigns
// a default priority when none exists and synthesizes the full SLA record as
// if the issue had just been submitted, anchored at now. The caller's
// in-memory copy is updated immediately; persistence happens through the
// write-back queue so the read that triggered the upgrade never waits on it.
// Returns whether the issue was upgraded.
func (s *SLAService) migrateLegacy(issue *models.Issue, now time.Time) bool {
	if issue.Status.IsTerminal() {
		return false
	}

	priority := issue.Priority.Normalize()
	if priority.Rank() < 0 {
		priority = models.PriorityMedium
	}
	issue.Priority = priority

	sched := CalculateDeadline(priority, now)
	sched.ApplyTo(issue)

	id := issue.ID
	s.queue.Enqueue(WritebackTask{
		Name: "sla-migration:" + id.Hex(),
		Run: func(ctx context.Context) error {
			return s.repo.SaveSLASchedule(ctx, id, priority, sched)
		},
	})
	return true
}
