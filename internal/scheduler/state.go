package scheduler

import (
	"context"
	"time"

	"github.com/site-autopilot/internal/channel"
	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/recurrence"
	"github.com/site-autopilot/internal/storage"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
)

// State of one channel of one site at evaluation time
type State string

const (
	StateDisabled State = "disabled"
	StateIdle     State = "idle"
	StateDue      State = "due"
)

// Outcome is what an evaluation did
type Outcome string

const (
	OutcomeDisabled     Outcome = "disabled"
	OutcomeIdle         Outcome = "idle"
	OutcomeBootstrapped Outcome = "bootstrapped"
	OutcomeDispatched   Outcome = "dispatched"
	OutcomeBackedOff    Outcome = "backed_off"
	OutcomeFailed       Outcome = "failed"
)

// Classify returns the channel's state. An uninitialized next run, zero or
// negative, is Idle: the evaluator bootstraps it without dispatching.
func Classify(s *models.ChannelSettings, now time.Time) State {
	switch {
	case !s.Enabled:
		return StateDisabled
	case !s.Initialized() || s.NextRun().After(now):
		return StateIdle
	default:
		return StateDue
	}
}

// UnitResolver finds the next unit of work for a source kind
type UnitResolver interface {
	Resolve(ctx context.Context, site *models.Site, kind models.SourceKind, now time.Time) (*models.SourceUnit, error)
}

// NextRunner computes next run instants
type NextRunner interface {
	NextRun(tz string, p recurrence.Params, now time.Time, forceFuture bool) time.Time
}

// Evaluator runs the per-channel state machine
type Evaluator struct {
	repo        storage.TenantRepository
	resolver    UnitResolver
	calc        NextRunner
	gate        *Gate
	backoff     time.Duration
	callTimeout time.Duration
	log         *logger.Logger
}

// NewEvaluator creates an evaluator
func NewEvaluator(
	repo storage.TenantRepository,
	resolver UnitResolver,
	calc NextRunner,
	gate *Gate,
	backoff, callTimeout time.Duration,
	log *logger.Logger,
) *Evaluator {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Evaluator{
		repo:        repo,
		resolver:    resolver,
		calc:        calc,
		gate:        gate,
		backoff:     backoff,
		callTimeout: callTimeout,
		log:         log.WithComponent("evaluator"),
	}
}

// Evaluate advances one channel of one site by at most one transition.
// On error nothing past the failed write happened.
func (e *Evaluator) Evaluate(ctx context.Context, site *models.Site, ch channel.Config, priority int, now time.Time) (Outcome, error) {
	settings := ch.Settings(site)
	log := e.log.WithSite(site.ID).WithChannel(string(ch.Kind))

	switch Classify(settings, now) {
	case StateDisabled:
		return OutcomeDisabled, nil

	case StateIdle:
		if settings.Initialized() {
			return OutcomeIdle, nil
		}
		next := e.calc.NextRun(site.Location(), recurrence.FromSettings(settings), now, false)
		if err := e.persistNextRun(ctx, site, ch, next); err != nil {
			return OutcomeFailed, errors.Wrap(err, "bootstrap next run")
		}
		log.Info().Time("next_run", next).Msg("Bootstrapped channel schedule")
		return OutcomeBootstrapped, nil
	}

	unit, err := e.resolve(ctx, site, settings.Source, now)
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "resolve source")
	}

	if unit == nil {
		next := now.Add(e.backoff)
		if err := e.persistNextRun(ctx, site, ch, next); err != nil {
			return OutcomeFailed, errors.Wrap(err, "persist backoff")
		}
		log.Info().
			Str("source_kind", string(settings.Source)).
			Time("next_run", next).
			Msg("Nothing pending, backing off")
		return OutcomeBackedOff, nil
	}

	next := e.calc.NextRun(site.Location(), recurrence.FromSettings(settings), now, true)
	jobID, err := e.gate.Dispatch(ctx, site, ch, unit, priority, next)
	if err != nil {
		return OutcomeFailed, err
	}

	log.Info().
		Str("job_id", jobID).
		Str("topic", unit.Topic).
		Int("priority", priority).
		Time("next_run", next).
		Msg("Dispatched")
	return OutcomeDispatched, nil
}

func (e *Evaluator) resolve(ctx context.Context, site *models.Site, kind models.SourceKind, now time.Time) (*models.SourceUnit, error) {
	callCtx, cancel := withTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.resolver.Resolve(callCtx, site, kind, now)
}

func (e *Evaluator) persistNextRun(ctx context.Context, site *models.Site, ch channel.Config, next time.Time) error {
	callCtx, cancel := withTimeout(ctx, e.callTimeout)
	defer cancel()

	ms := next.UnixMilli()
	if err := e.repo.UpdateSite(callCtx, site.ID, map[string]interface{}{ch.NextRunColumn(): ms}); err != nil {
		return err
	}
	ch.Settings(site).NextRunAt = ms
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
