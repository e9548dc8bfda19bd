// Package cron runs periodic background jobs, such as document backups, on
// 5-field cron schedules.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs. It must be unique per scheduler.
	Name() string

	// Schedule returns a 5-field cron expression (e.g. "0 3 * * *").
	Schedule() string

	// Run executes one tick. ctx is canceled when the scheduler stops.
	Run(ctx context.Context) error
}
