package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/site-autopilot/internal/app"
	"github.com/site-autopilot/internal/config"
	"github.com/site-autopilot/internal/server"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
)

var (
	cfgFile  string
	interval time.Duration
	port     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autopilot-scheduler",
		Short: "Background scheduler for site automation",
		Long: `Polls every tenant site on a fixed interval and enqueues generation jobs
for each automation channel that is due. Run one or more instances as a
service; a shared lock keeps cycles from overlapping.`,
		RunE:          runScheduler,
		SilenceUsage:  true,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.Flags().DurationVar(&interval, "interval", 0, "polling interval (overrides scheduler.interval)")
	rootCmd.Flags().IntVar(&port, "port", 0, "health server port (overrides server.port)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if interval > 0 {
		cfg.Scheduler.Interval = interval
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	// Start the probe first so orchestrators see 503 during startup
	health := &server.Health{}
	reg := app.NewRegistry()
	log := app.NewLogger(cfg.Logging)
	srv := server.New(cfg.Server.Port, server.Router(health, reg))
	go serve(srv, log)

	svc, err := app.Build(cfg, app.Options{Registry: reg, Log: log})
	if err != nil {
		shutdownServer(srv, log)
		return errors.Wrap(err, "failed to start scheduler")
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cron.New(
		cron.WithLogger(cronLogger{log}),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)

	schedule := "@every " + cfg.Scheduler.Interval.String()
	if _, err := c.AddFunc(schedule, func() { svc.Loop.RunCycle(ctx) }); err != nil {
		return errors.Wrapf(err, "failed to schedule cycle %q", schedule)
	}

	c.Start()
	health.MarkReady()
	log.Info().
		Str("schedule", schedule).
		Int("port", cfg.Server.Port).
		Msg("Scheduler started")

	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler")
	// Wait for an in-flight cycle to finish
	<-c.Stop().Done()
	shutdownServer(srv, log)

	return nil
}

func serve(srv *http.Server, log *logger.Logger) {
	log.Info().Str("addr", srv.Addr).Msg("Health server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Health server failed")
	}
}

func shutdownServer(srv *http.Server, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Health server shutdown")
	}
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
