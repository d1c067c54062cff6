package services

import (
	"context"
	"time"

	"github.com/apex/log"
)

// DefaultSweepInterval spaces the proactive SLA sweeps. Lazy refresh on
// reads handles issues people are looking at; the sweep catches breaches on
// issues nobody has listed recently.
const DefaultSweepInterval = 12 * time.Hour

// Sweeper periodically re-evaluates every non-terminal issue. It shares the
// refresh path with lazy reads; the idempotence guard in the evaluation
// absorbs the overlap when both fire close together.
type Sweeper struct {
	sla      *SLAService
	repo     IssueRepository
	interval time.Duration
}

func NewSweeper(sla *SLAService, repo IssueRepository, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{sla: sla, repo: repo, interval: interval}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.WithField("interval", s.interval.String()).Info("sla sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info("sla sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx, time.Now()); err != nil {
				log.WithError(err).Error("sla sweep failed")
			}
		}
	}
}

// SweepOnce refreshes every non-terminal issue at the given instant.
// Per-issue failures are logged and skipped so one bad record cannot stall
// the rest of the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) error {
	issues, err := s.repo.FindNonTerminal(ctx)
	if err != nil {
		return err
	}

	refreshed := 0
	for i := range issues {
		changed, err := s.sla.EnsureFresh(ctx, &issues[i], now)
		if err != nil {
			log.WithError(err).WithField("issue", issues[i].ID.Hex()).Warn("sweep refresh failed")
			continue
		}
		if changed {
			refreshed++
		}
	}
	log.WithFields(log.Fields{
		"scanned":   len(issues),
		"refreshed": refreshed,
	}).Info("sla sweep complete")
	return nil
}
