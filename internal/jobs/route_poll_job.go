package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SessionRefresher asks every open driver session to refresh its route.
type SessionRefresher interface {
	RefreshAll() int
}

// RoutePollJob is the local polling fallback next to change notifications:
// on every tick each open session re-fetches its packages.
type RoutePollJob struct {
	sessions SessionRefresher
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewRoutePollJob creates the job; schedule is a cron spec with seconds.
func NewRoutePollJob(sessions SessionRefresher, schedule string, logger *slog.Logger) *RoutePollJob {
	return &RoutePollJob{
		sessions: sessions,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger.With("component", "route_poll_job"),
	}
}

// Run performs one poll. It implements cron.Job.
func (j *RoutePollJob) Run() {
	if n := j.sessions.RefreshAll(); n > 0 {
		j.logger.DebugContext(context.Background(), "Route refresh requested", "sessions", n)
	}
}

func (j *RoutePollJob) Start() error {
	if _, err := j.cron.AddJob(j.schedule, j); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Route poll job started", "schedule", j.schedule)
	return nil
}

// Stop waits for a running poll to finish.
func (j *RoutePollJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Route poll job stopped")
}
