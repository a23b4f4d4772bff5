package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/site-autopilot/internal/app"
	"github.com/site-autopilot/internal/channel"
	"github.com/site-autopilot/internal/config"
	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/recurrence"
	"github.com/site-autopilot/internal/scheduler"
	"github.com/site-autopilot/internal/storage"
	"github.com/site-autopilot/pkg/errors"
)

var (
	cfgFile string
	svc     *app.Services
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Operator tooling for the site automation scheduler",
		Long: `Inspect tenant sites and the job queue, preview channel schedules,
run a single scheduler cycle and generate AI topic suggestions.`,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	rootCmd.AddCommand(runOnceCmd())
	rootCmd.AddCommand(sitesCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	svc, err = app.Build(cfg, app.Options{})
	if err != nil {
		return errors.Wrap(err, "failed to initialize")
	}
	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if svc == nil {
		return nil
	}
	return svc.Close()
}

// ============ SCHEDULER COMMANDS ============

func runOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single scheduler cycle (still takes the shared lock)",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := svc.Loop.RunCycle(context.Background())
			if result.Skipped {
				fmt.Println("Cycle skipped: lock held by another instance or lock store unavailable")
				return nil
			}

			fmt.Printf("\n=== Cycle ===\n\n")
			fmt.Printf("Tenants:      %d\n", result.Tenants)
			fmt.Printf("Dispatched:   %d\n", result.Dispatched)
			fmt.Printf("Bootstrapped: %d\n", result.Bootstrapped)
			fmt.Printf("Backed off:   %d\n", result.BackedOff)
			fmt.Printf("Failed:       %d\n", result.Failed)
			fmt.Printf("Duration:     %s\n", result.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.Repo.Migrate(); err != nil {
				return err
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

// ============ SITES COMMANDS ============

func sitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Inspect and manage tenant sites",
	}

	cmd.AddCommand(sitesListCmd())
	cmd.AddCommand(sitesShowCmd())
	cmd.AddCommand(sitesNextRunCmd())
	cmd.AddCommand(sitesImportCmd())
	return cmd
}

func sitesListCmd() *cobra.Command {
	var userID string
	var enabledOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultSiteFilter()
			filter.UserID = userID
			filter.EnabledOnly = enabledOnly
			filter.Limit = limit

			sites, err := svc.Repo.ListSites(context.Background(), filter)
			if err != nil {
				return err
			}

			now := time.Now()
			fmt.Printf("\n=== Sites (%d) ===\n\n", len(sites))
			for _, s := range sites {
				fmt.Printf("[%s] %s | user %s | %s\n", s.ID, s.Name, s.UserID, s.Location())
				for _, ch := range channel.All() {
					settings := ch.Settings(s)
					if !settings.Enabled {
						continue
					}
					fmt.Printf("    %-15s %-10s %s\n", ch.Kind, scheduler.Classify(settings, now), describeNextRun(settings, now))
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Filter by owner")
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only sites with at least one channel enabled")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum sites to show")

	return cmd
}

func sitesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <site-id>",
		Short: "Print a site as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := svc.Repo.GetSite(context.Background(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(site)
		},
	}
}

func sitesNextRunCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "next-run <site-id> <channel>",
		Short: "Preview the next run a dispatch would schedule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := svc.Repo.GetSite(context.Background(), args[0])
			if err != nil {
				return err
			}

			ch, ok := channel.Lookup(args[1])
			if !ok {
				return errors.Newf("unknown channel %q (want one of %s)", args[1], channelNames())
			}

			now := time.Now()
			if from != "" {
				now, err = time.Parse(time.RFC3339, from)
				if err != nil {
					return errors.Wrap(err, "parse --from")
				}
			}

			settings := ch.Settings(site)
			params := recurrence.FromSettings(settings)
			bootstrap := svc.Calculator.NextRun(site.Location(), params, now, false)
			afterDispatch := svc.Calculator.NextRun(site.Location(), params, now, true)

			fmt.Printf("Site:            %s (%s)\n", site.ID, site.Location())
			fmt.Printf("Channel:         %s (%s)\n", ch.Kind, scheduler.Classify(settings, now))
			fmt.Printf("Stored next run: %s\n", describeNextRun(settings, now))
			fmt.Printf("On bootstrap:    %s\n", formatTime(bootstrap, site.Location()))
			fmt.Printf("After dispatch:  %s\n", formatTime(afterDispatch, site.Location()))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Evaluate at this RFC3339 instant instead of now")
	return cmd
}

func sitesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Create or replace sites from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var sites []*models.Site
			if err := json.Unmarshal(data, &sites); err != nil {
				return errors.Wrapf(err, "decode %s", args[0])
			}

			ctx := context.Background()
			for _, s := range sites {
				if s.ID == "" || s.UserID == "" {
					return errors.New("every site needs id and user_id")
				}
				if err := svc.Repo.SaveSite(ctx, s); err != nil {
					return errors.Wrapf(err, "save site %s", s.ID)
				}
				fmt.Printf("Saved %s (%s)\n", s.ID, s.Name)
			}
			return nil
		},
	}
}

// ============ QUEUE COMMANDS ============

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect generation queues",
	}

	cmd.AddCommand(queueListCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <queue>",
		Short: "List queued jobs in pickup order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := svc.Repo.Peek(context.Background(), args[0], limit)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== %s (%d) ===\n\n", args[0], len(jobs))
			for _, j := range jobs {
				var rec models.DispatchRecord
				_ = json.Unmarshal(j.Payload, &rec)

				topic := "N/A"
				if rec.Unit != nil {
					topic = rec.Unit.Topic
				}
				fmt.Printf("[p%d] %s | %s\n", j.Priority, j.JobName, truncateStr(topic, 60))
				fmt.Printf("    Site: %s | Job: %s | Enqueued: %s\n", rec.SiteID, j.JobID, j.CreatedAt.Format(time.RFC1123))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum jobs to show")
	return cmd
}

// ============ SUGGEST COMMANDS ============

func suggestCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "suggest <site-id>",
		Short: "Ask Claude for topic suggestions and queue them on the site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := svc.SuggestAgent()
			if err != nil {
				return err
			}

			result, err := agent.Run(context.Background(), args[0], count)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Suggestions (%d added, %d duplicates) ===\n\n", len(result.Added), result.Duplicates)
			for _, s := range result.Added {
				fmt.Printf("%s  %s\n", s.ScheduledAt.Format(time.RFC3339), s.Topic)
				if s.Angle != "" {
					fmt.Printf("    %s\n", s.Angle)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "Number of topics to request")
	return cmd
}

func describeNextRun(s *models.ChannelSettings, now time.Time) string {
	if !s.Initialized() {
		return "not scheduled"
	}
	next := s.NextRun()
	if next.After(now) {
		return fmt.Sprintf("%s (in %s)", next.Format(time.RFC3339), formatDuration(next.Sub(now)))
	}
	return fmt.Sprintf("%s (due)", next.Format(time.RFC3339))
}

func formatTime(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Mon 2006-01-02 15:04 MST")
}

func channelNames() string {
	var names []string
	for _, ch := range channel.All() {
		names = append(names, string(ch.Kind))
	}
	return strings.Join(names, ", ")
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// Helper function to format duration nicely
func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
	return fmt.Sprintf("%.1f days", d.Hours()/24)
}
