package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SessionReaper ends driver sessions that have been idle too long.
type SessionReaper interface {
	ReapIdle() (int, error)
}

// SessionReaperJob releases the change-feed subscriptions and cached routes of
// drivers who stopped using the app without ending their session.
type SessionReaperJob struct {
	sessions SessionReaper
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewSessionReaperJob(sessions SessionReaper, schedule string, logger *slog.Logger) *SessionReaperJob {
	return &SessionReaperJob{
		sessions: sessions,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger.With("component", "session_reaper_job"),
	}
}

// Run performs one sweep. It implements cron.Job.
func (j *SessionReaperJob) Run() {
	ctx := context.Background()
	n, err := j.sessions.ReapIdle()
	if err != nil {
		j.logger.ErrorContext(ctx, "Session reaper failed", "error", err)
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "Idle sessions ended", "sessions", n)
	}
}

func (j *SessionReaperJob) Start() error {
	if _, err := j.cron.AddJob(j.schedule, j); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Session reaper job started", "schedule", j.schedule)
	return nil
}

func (j *SessionReaperJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Session reaper job stopped")
}
