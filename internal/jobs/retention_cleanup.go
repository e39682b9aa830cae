package jobs

import (
	"context"
	"log"
	"time"

	"distill/internal/services"
)

// RetentionCleanupJob deletes analytics events older than the configured
// retention horizon. A horizon of 0 disables deletion entirely.
type RetentionCleanupJob struct {
	events        *services.EventService
	retentionDays int
}

// NewRetentionCleanupJob creates a new retention cleanup job
func NewRetentionCleanupJob(events *services.EventService, retentionDays int) *RetentionCleanupJob {
	return &RetentionCleanupJob{
		events:        events,
		retentionDays: retentionDays,
	}
}

// Name implements Job
func (j *RetentionCleanupJob) Name() string {
	return "event-retention-cleanup"
}

// Run deletes events that have aged out
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	if j.events == nil || j.retentionDays <= 0 {
		log.Println("[RETENTION] Event retention cleanup disabled")
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -j.retentionDays)
	log.Printf("[RETENTION] Deleting analytics events older than %s (%d days)",
		cutoff.Format(time.RFC3339), j.retentionDays)

	deleted, err := j.events.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("[RETENTION] Cleanup failed: %v", err)
		return err
	}

	log.Printf("[RETENTION] Cleanup complete: deleted %d events", deleted)
	return nil
}
