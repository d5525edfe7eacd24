// Package scheduler runs the daily retention job: old caption history and
// expired social accounts are purged on a cron schedule.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/captionstudio/captionstudio/internal/logger"
)

// HistoryPurger drops caption history entries created before the cutoff.
type HistoryPurger interface {
	PurgeOlderThan(cutoff time.Time) (int64, error)
}

// AccountPurger drops social accounts whose tokens expired before now.
type AccountPurger interface {
	PurgeExpired(now time.Time) (int64, error)
}

type Scheduler struct {
	cron          *cron.Cron
	history       HistoryPurger
	accounts      AccountPurger
	retentionDays int
}

func New(history HistoryPurger, accounts AccountPurger, retentionDays int) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		history:       history,
		accounts:      accounts,
		retentionDays: retentionDays,
	}
}

// Start registers the retention job (daily, shortly after midnight) and runs
// one sweep immediately so restarts don't postpone cleanup by a day.
func (s *Scheduler) Start() {
	s.cron.AddFunc("10 0 * * *", s.sweep)
	s.cron.Start()
	go s.sweep()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) sweep() {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	if n, err := s.history.PurgeOlderThan(cutoff); err != nil {
		logger.Error("History retention sweep failed: %v", err)
	} else if n > 0 {
		logger.Info("Purged %d caption history entries older than %d days", n, s.retentionDays)
	}

	if s.accounts == nil {
		return
	}
	if n, err := s.accounts.PurgeExpired(time.Now()); err != nil {
		logger.Error("Account retention sweep failed: %v", err)
	} else if n > 0 {
		logger.Info("Purged %d expired social accounts", n)
	}
}
