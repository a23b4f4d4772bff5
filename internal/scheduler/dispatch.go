package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/site-autopilot/internal/channel"
	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/storage"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
)

// Gate commits a due channel in a fixed order: next run, then enqueue, then
// cursor. A crash between enqueue and cursor commit redelivers the unit on the
// following due time; consumers dedupe on the unit key.
type Gate struct {
	repo        storage.TenantRepository
	queue       storage.JobQueue
	callTimeout time.Duration
	log         *logger.Logger
}

// NewGate creates a dispatch gate
func NewGate(repo storage.TenantRepository, queue storage.JobQueue, callTimeout time.Duration, log *logger.Logger) *Gate {
	return &Gate{
		repo:        repo,
		queue:       queue,
		callTimeout: callTimeout,
		log:         log.WithComponent("dispatch"),
	}
}

// Dispatch returns the enqueued job ID. If the next-run write fails nothing is
// enqueued. If the enqueue fails the next run stays advanced and the cursor
// is left alone so the same unit is resolved again.
func (g *Gate) Dispatch(
	ctx context.Context,
	site *models.Site,
	ch channel.Config,
	unit *models.SourceUnit,
	priority int,
	next time.Time,
) (string, error) {
	settings := ch.Settings(site)
	dueAt := settings.NextRun()

	if err := g.update(ctx, site.ID, map[string]interface{}{ch.NextRunColumn(): next.UnixMilli()}); err != nil {
		return "", errors.Wrap(err, "persist next run")
	}
	settings.NextRunAt = next.UnixMilli()

	record := models.DispatchRecord{
		ID:       uuid.NewString(),
		SiteID:   site.ID,
		UserID:   site.UserID,
		Channel:  string(ch.Kind),
		Unit:     unit,
		Priority: priority,
		DueAt:    dueAt,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", errors.Wrap(err, "encode dispatch record")
	}

	callCtx, cancel := withTimeout(ctx, g.callTimeout)
	jobID, err := g.queue.Enqueue(callCtx, ch.Queue, storage.Job{
		Name:     ch.JobName,
		Payload:  payload,
		Priority: priority,
	})
	cancel()
	if err != nil {
		return "", errors.Wrapf(err, "enqueue on %s", ch.Queue)
	}

	patch, ok := site.ApplyAdvance(unit.Advance)
	if !ok {
		return jobID, nil
	}
	if err := g.update(ctx, site.ID, patch); err != nil {
		g.log.Warn().
			Err(err).
			Str("site_id", site.ID).
			Str("channel", string(ch.Kind)).
			Str("job_id", jobID).
			Msg("Cursor commit failed after enqueue, unit may be redelivered")
	}
	return jobID, nil
}

func (g *Gate) update(ctx context.Context, siteID string, patch map[string]interface{}) error {
	callCtx, cancel := withTimeout(ctx, g.callTimeout)
	defer cancel()
	return g.repo.UpdateSite(callCtx, siteID, patch)
}
