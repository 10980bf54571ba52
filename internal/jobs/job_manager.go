package jobs

import (
	"fmt"
	"log/slog"
)

// Sessions is what the jobs need from the driver session manager.
type Sessions interface {
	SessionRefresher
	SessionReaper
}

// Schedules holds the cron specs (with seconds) of the jobs.
type Schedules struct {
	RoutePoll   string
	SessionReap string
}

func DefaultSchedules() Schedules {
	return Schedules{
		RoutePoll:   "*/30 * * * * *",
		SessionReap: "0 * * * * *",
	}
}

// JobManager coordinates all scheduled jobs in the application.
type JobManager struct {
	routePollJob     *RoutePollJob
	sessionReaperJob *SessionReaperJob
}

func NewJobManager(sessions Sessions, schedules Schedules, logger *slog.Logger) *JobManager {
	return &JobManager{
		routePollJob:     NewRoutePollJob(sessions, schedules.RoutePoll, logger),
		sessionReaperJob: NewSessionReaperJob(sessions, schedules.SessionReap, logger),
	}
}

// StartAll starts all scheduled jobs.
// Returns an error if any job fails to start.
func (jm *JobManager) StartAll() error {
	if err := jm.sessionReaperJob.Start(); err != nil {
		return fmt.Errorf("failed to start session reaper job: %w", err)
	}

	if err := jm.routePollJob.Start(); err != nil {
		// Stop already started jobs if this one fails
		jm.sessionReaperJob.Stop()
		return fmt.Errorf("failed to start route poll job: %w", err)
	}

	return nil
}

// StopAll stops all scheduled jobs gracefully.
func (jm *JobManager) StopAll() {
	jm.routePollJob.Stop()
	jm.sessionReaperJob.Stop()
}
