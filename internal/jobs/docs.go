// Package jobs provides scheduled background tasks for driver sessions.
//
// Jobs are cron-based (github.com/robfig/cron/v3, seconds enabled).
//
// # Available Jobs
//
// 1. RoutePollJob - asks every open session to refresh its packages, so routes
// converge even when a change notification was lost
// 2. SessionReaperJob - ends sessions that have been idle longer than the TTL
//
// # Usage
//
//	jobManager := jobs.NewJobManager(sessionManager, jobs.DefaultSchedules(), logger)
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//	defer jobManager.StopAll()
//
// # Error Handling
//
// - A failed poll is not an error: sessions retry and mark packages stale themselves
// - Reaper errors are logged; the session is removed regardless
// - Failed job starts will stop any already running jobs
package jobs
