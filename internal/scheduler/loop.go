// Package scheduler runs the automation cycle: take the cross-instance lock,
// scan candidate sites, and advance every channel's state machine.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/site-autopilot/internal/channel"
	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/priority"
	"github.com/site-autopilot/internal/storage"
	"github.com/site-autopilot/pkg/logger"
)

const (
	DefaultInterval    = time.Minute
	DefaultLockKey     = "automation-scheduler"
	DefaultLockMargin  = 5 * time.Second
	DefaultBackoff     = time.Hour
	DefaultCallTimeout = 20 * time.Second
	minLockTTL         = time.Second
)

// Config controls a Loop
type Config struct {
	Interval    time.Duration
	LockKey     string
	LockMargin  time.Duration
	Backoff     time.Duration
	CallTimeout time.Duration
	// Concurrency bounds how many sites are processed at once. Channels of a
	// single site always run one after another.
	Concurrency int
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.LockKey == "" {
		c.LockKey = DefaultLockKey
	}
	if c.LockMargin <= 0 {
		c.LockMargin = DefaultLockMargin
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
}

// CycleResult summarises one RunCycle call
type CycleResult struct {
	Skipped      bool
	Tenants      int
	Dispatched   int
	Bootstrapped int
	BackedOff    int
	Failed       int
	Duration     time.Duration
}

// Loop runs scheduler cycles
type Loop struct {
	cfg     Config
	repo    storage.TenantRepository
	locks   storage.LockStore
	eval    *Evaluator
	metrics *Metrics
	owner   string
	now     func() time.Time
	log     *logger.Logger
}

// NewLoop wires a loop from its collaborators. metrics may be nil.
func NewLoop(
	cfg Config,
	repo storage.TenantRepository,
	locks storage.LockStore,
	queue storage.JobQueue,
	resolver UnitResolver,
	calc NextRunner,
	metrics *Metrics,
	log *logger.Logger,
) *Loop {
	cfg.applyDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	gate := NewGate(repo, queue, cfg.CallTimeout, log)
	return &Loop{
		cfg:     cfg,
		repo:    repo,
		locks:   locks,
		eval:    NewEvaluator(repo, resolver, calc, gate, cfg.Backoff, cfg.CallTimeout, log),
		metrics: metrics,
		owner:   uuid.NewString(),
		now:     time.Now,
		log:     log.WithComponent("scheduler"),
	}
}

// Owner is the value this instance writes into the lock
func (l *Loop) Owner() string {
	return l.owner
}

// LockTTL is the interval minus the safety margin, never below one second
func (l *Loop) LockTTL() time.Duration {
	ttl := l.cfg.Interval - l.cfg.LockMargin
	if ttl < minLockTTL {
		return minLockTTL
	}
	return ttl
}

// RunCycle runs one cycle. Failures are logged and counted, never returned.
func (l *Loop) RunCycle(ctx context.Context) CycleResult {
	start := l.now()
	result := CycleResult{}

	lockCtx, cancel := withTimeout(ctx, l.cfg.CallTimeout)
	acquired, err := l.locks.SetIfAbsent(lockCtx, l.cfg.LockKey, l.owner, l.LockTTL())
	cancel()
	if err != nil {
		l.log.Warn().Err(err).Msg("Lock store unavailable, skipping cycle")
		l.metrics.Cycles.WithLabelValues("lock_error").Inc()
		result.Skipped = true
		return result
	}
	if !acquired {
		l.log.Debug().Str("lock_key", l.cfg.LockKey).Msg("Another instance holds the lock, skipping cycle")
		l.metrics.Cycles.WithLabelValues("skipped").Inc()
		result.Skipped = true
		return result
	}

	listCtx, cancel := withTimeout(ctx, l.cfg.CallTimeout)
	sites, err := l.repo.ListAutomationCandidates(listCtx)
	cancel()
	if err != nil {
		l.log.Error().Err(err).Msg("Failed to list automation candidates")
		l.metrics.Cycles.WithLabelValues("list_error").Inc()
		result.Duration = l.now().Sub(start)
		return result
	}
	l.metrics.Candidates.Set(float64(len(sites)))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(l.cfg.Concurrency)

	for _, site := range sites {
		g.Go(func() error {
			tally := l.runTenant(ctx, site, start)
			mu.Lock()
			result.add(tally)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result.Tenants = len(sites)
	result.Duration = l.now().Sub(start)
	l.metrics.Cycles.WithLabelValues("ran").Inc()
	l.metrics.CycleDuration.Observe(result.Duration.Seconds())

	if result.Duration > l.LockTTL() {
		l.log.Warn().
			Dur("duration", result.Duration).
			Dur("lock_ttl", l.LockTTL()).
			Msg("Cycle outlived its lock, another instance may have started")
	}

	l.log.Info().
		Int("tenants", result.Tenants).
		Int("dispatched", result.Dispatched).
		Int("bootstrapped", result.Bootstrapped).
		Int("backed_off", result.BackedOff).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Cycle completed")

	return result
}

func (l *Loop) runTenant(ctx context.Context, site *models.Site, now time.Time) (tally CycleResult) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Str("site_id", site.ID).Str("panic", fmt.Sprint(r)).Msg("Tenant processing panicked")
			tally.Failed++
		}
	}()

	prio := l.tenantPriority(ctx, site)

	for _, ch := range channel.All() {
		tally.count(l.runChannel(ctx, site, ch, prio, now))
	}
	return tally
}

func (l *Loop) tenantPriority(ctx context.Context, site *models.Site) int {
	callCtx, cancel := withTimeout(ctx, l.cfg.CallTimeout)
	defer cancel()

	tier, err := l.repo.GetUserTier(callCtx, site.UserID)
	if err != nil {
		l.log.Warn().
			Err(err).
			Str("site_id", site.ID).
			Str("user_id", site.UserID).
			Msg("Tier lookup failed, using default priority")
		return priority.Default
	}
	return priority.ForTier(tier)
}

// runChannel isolates one (site, channel) pair: errors and panics stop here
func (l *Loop) runChannel(ctx context.Context, site *models.Site, ch channel.Config, prio int, now time.Time) (outcome Outcome) {
	log := l.log.WithSite(site.ID).WithChannel(string(ch.Kind))

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("Channel evaluation panicked")
			l.metrics.ChannelErrors.WithLabelValues(string(ch.Kind)).Inc()
			outcome = OutcomeFailed
		}
		l.metrics.ChannelOutcomes.WithLabelValues(string(ch.Kind), string(outcome)).Inc()
	}()

	outcome, err := l.eval.Evaluate(ctx, site, ch, prio, now)
	if err != nil {
		log.Error().Err(err).Msg("Channel evaluation failed")
		l.metrics.ChannelErrors.WithLabelValues(string(ch.Kind)).Inc()
		return OutcomeFailed
	}
	if outcome == OutcomeDispatched {
		l.metrics.Dispatches.WithLabelValues(string(ch.Kind)).Inc()
	}
	return outcome
}

func (r *CycleResult) count(o Outcome) {
	switch o {
	case OutcomeDispatched:
		r.Dispatched++
	case OutcomeBootstrapped:
		r.Bootstrapped++
	case OutcomeBackedOff:
		r.BackedOff++
	case OutcomeFailed:
		r.Failed++
	}
}

func (r *CycleResult) add(o CycleResult) {
	r.Dispatched += o.Dispatched
	r.Bootstrapped += o.Bootstrapped
	r.BackedOff += o.BackedOff
	r.Failed += o.Failed
}
