package scheduler

import (
	"context"

	"stardrift/server/logging"
)

const (
	// EventJobFailed is emitted when a registered job's handler returns an
	// error or panics. The job simply runs again at its next interval.
	EventJobFailed logging.EventType = "scheduler.job_failed"
	// EventJobOverrun is emitted when a handler runs longer than its own
	// interval.
	EventJobOverrun logging.EventType = "scheduler.job_overrun"
)

func JobFailed(ctx context.Context, pub logging.Publisher, jobName string, err error) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventJobFailed,
		Actor:    logging.EntityRef{ID: jobName, Kind: logging.EntityKindJob},
		Severity: logging.SeverityError,
		Category: logging.CategoryScheduler,
		Extra:    map[string]any{"error": err.Error()},
	})
}

func JobOverrun(ctx context.Context, pub logging.Publisher, jobName string, durationMillis, intervalMillis int64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventJobOverrun,
		Actor:    logging.EntityRef{ID: jobName, Kind: logging.EntityKindJob},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryScheduler,
		Extra:    map[string]any{"durationMillis": durationMillis, "intervalMillis": intervalMillis},
	})
}
