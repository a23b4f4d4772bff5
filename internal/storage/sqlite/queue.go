package sqlite

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/storage"
	"github.com/site-autopilot/pkg/errors"
)

// Enqueue appends a job to the named queue
func (r *Repository) Enqueue(ctx context.Context, queue string, job storage.Job) (string, error) {
	if queue == "" || job.Name == "" {
		return "", errors.New("queue and job name are required")
	}

	row := &models.QueuedJob{
		JobID:    uuid.NewString(),
		Queue:    queue,
		JobName:  job.Name,
		Payload:  datatypes.JSON(job.Payload),
		Priority: job.Priority,
		Status:   models.JobStatusQueued,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", errors.Wrapf(err, "failed to enqueue %s on %s", job.Name, queue)
	}
	return row.JobID, nil
}

// Peek lists queued jobs in the order workers take them
func (r *Repository) Peek(ctx context.Context, queue string, limit int) ([]*models.QueuedJob, error) {
	var jobs []*models.QueuedJob
	query := r.db.WithContext(ctx).
		Where("queue = ? AND status = ?", queue, models.JobStatusQueued).
		Order("priority ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to peek queue %s", queue)
	}
	return jobs, nil
}
