// Package app wires configuration into a ready-to-run scheduler and the
// operator tooling around it.
package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/site-autopilot/internal/agent/suggest"
	"github.com/site-autopilot/internal/ai"
	"github.com/site-autopilot/internal/config"
	"github.com/site-autopilot/internal/recurrence"
	"github.com/site-autopilot/internal/scheduler"
	"github.com/site-autopilot/internal/source"
	"github.com/site-autopilot/internal/source/keywords"
	"github.com/site-autopilot/internal/source/recentpost"
	"github.com/site-autopilot/internal/source/rss"
	"github.com/site-autopilot/internal/source/sheets"
	"github.com/site-autopilot/internal/source/suggestion"
	"github.com/site-autopilot/internal/storage"
	"github.com/site-autopilot/internal/storage/sqlite"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
	"github.com/site-autopilot/pkg/ratelimit"
)

// Services holds every long-lived collaborator of a process
type Services struct {
	Config     *config.Config
	Log        *logger.Logger
	Repo       storage.Repository
	Limiter    *ratelimit.MultiLimiter
	Resolver   *source.Resolver
	Calculator *recurrence.Calculator
	Registry   *prometheus.Registry
	Metrics    *scheduler.Metrics
	Loop       *scheduler.Loop
}

// NewLogger builds the process logger from the logging section
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: cfg.Output,
	})
}

// NewLimiter builds the shared upstream rate limiter
func NewLimiter(cfg *config.Config) *ratelimit.MultiLimiter {
	return ratelimit.NewDefaultLimiter(ratelimit.Rates{
		FeedsPerSecond:     cfg.Sources.FeedRequestsPerSecond,
		FeedBurst:          cfg.Sources.FeedBurst,
		SheetsPerSecond:    cfg.Sources.SheetsRequestsPerSecond,
		AnthropicPerMinute: cfg.Anthropic.RequestsPerMinute,
	})
}

// OpenRepository opens and migrates the primary store
func OpenRepository(cfg config.DatabaseConfig) (storage.Repository, error) {
	repo, err := sqlite.New(sqlite.Config{DSN: cfg.DSN, ReplicaDSN: cfg.ReplicaDSN})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := repo.Migrate(); err != nil {
		_ = repo.Close()
		return nil, errors.Wrap(err, "migrate database")
	}
	return repo, nil
}

// BuildResolver registers a provider for every source kind. repo receives
// renewed Google credentials.
func BuildResolver(cfg config.SourcesConfig, limiter *ratelimit.MultiLimiter, repo storage.TenantRepository, log *logger.Logger) *source.Resolver {
	feeds := rss.NewFetcher(limiter, cfg.FeedTimeout)
	sheetFetcher := sheets.NewAPIFetcher(sheets.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
	}, limiter)

	return source.NewResolver(log,
		keywords.New(log),
		rss.NewFeed(feeds, log),
		rss.NewVideo(feeds, log),
		sheets.New(sheetFetcher, repo, log),
		suggestion.New(),
		recentpost.New(cfg.RecentPostWindow),
	)
}

// SchedulerConfig maps the scheduler section onto scheduler.Config
func SchedulerConfig(cfg config.SchedulerConfig) scheduler.Config {
	return scheduler.Config{
		Interval:    cfg.Interval,
		LockKey:     cfg.LockKey,
		LockMargin:  cfg.LockMargin,
		Backoff:     cfg.Backoff,
		CallTimeout: cfg.CallTimeout,
		Concurrency: cfg.Concurrency,
	}
}

// NewRegistry returns a registry carrying the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Options carries collaborators a caller already created. Zero values are
// built from config.
type Options struct {
	Registry *prometheus.Registry
	Log      *logger.Logger
}

// Build validates cfg and wires a scheduler loop over a migrated store
func Build(cfg *config.Config, opts Options) (*Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = NewLogger(cfg.Logging)
	}

	repo, err := OpenRepository(cfg.Database)
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	metrics := scheduler.NewMetrics(reg)

	limiter := NewLimiter(cfg)
	resolver := BuildResolver(cfg.Sources, limiter, repo, log)
	calc := recurrence.New(log)

	loop := scheduler.NewLoop(SchedulerConfig(cfg.Scheduler), repo, repo, repo, resolver, calc, metrics, log)

	log.Info().
		Dur("interval", cfg.Scheduler.Interval).
		Dur("lock_ttl", loop.LockTTL()).
		Str("owner", loop.Owner()).
		Bool("replica", cfg.Database.ReplicaDSN != "").
		Strs("source_kinds", kindNames(resolver)).
		Msg("Scheduler wired")

	return &Services{
		Config:     cfg,
		Log:        log,
		Repo:       repo,
		Limiter:    limiter,
		Resolver:   resolver,
		Calculator: calc,
		Registry:   reg,
		Metrics:    metrics,
		Loop:       loop,
	}, nil
}

// SuggestAgent builds the AI suggestion agent on top of s
func (s *Services) SuggestAgent() (*suggest.Agent, error) {
	if err := s.Config.RequireAnthropic(); err != nil {
		return nil, err
	}
	client := ai.NewClient(s.Config.Anthropic, s.Limiter, s.Log)
	return suggest.NewAgent(client, s.Repo, s.Log), nil
}

// Close releases the store
func (s *Services) Close() error {
	if s.Repo == nil {
		return nil
	}
	return s.Repo.Close()
}

func kindNames(r *source.Resolver) []string {
	kinds := r.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
