package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"llmspub/internal/api"
	"llmspub/internal/app"
	"llmspub/internal/config"
	"llmspub/internal/pub"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "llmspub",
	Short: "Publish and schedule llms.txt artifacts",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init SITE_ROOT",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		ownerID, _ := cmd.Flags().GetString("owner")
		if ownerID == "" {
			ownerID = pub.UUIDGenerator{}.New()
		}

		cfg := config.NewConfig(ownerID, args[0], defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Owner ID:  %s\n", ownerID)
		fmt.Printf("Site Root: %s\n", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Owner ID:  %s\n", cfg.OwnerID)
		fmt.Printf("Site Root: %s\n", cfg.SiteRoot)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Store:     %s\n", cfg.Database.Type)
		fmt.Printf("Mirror:    %s\n", cfg.Mirror.Type)
		return nil
	},
}

// publish command
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish artifact content from local files",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputType, _ := cmd.Flags().GetString("type")
		url, _ := cmd.Flags().GetString("url")
		summaryFile, _ := cmd.Flags().GetString("summary-file")
		fullFile, _ := cmd.Flags().GetString("full-file")
		confirm, _ := cmd.Flags().GetBool("overwrite")

		var summary, full string
		if summaryFile != "" {
			data, err := os.ReadFile(summaryFile)
			if err != nil {
				return fmt.Errorf("reading summary file: %w", err)
			}
			summary = string(data)
		}
		if fullFile != "" {
			data, err := os.ReadFile(fullFile)
			if err != nil {
				return fmt.Errorf("reading full file: %w", err)
			}
			full = string(data)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Publisher.Publish(cmd.Context(), a.OwnerID(), pub.PublishRequest{
			OutputType:       pub.OutputType(outputType),
			WebsiteURL:       url,
			ConfirmOverwrite: confirm,
			SummaryContent:   summary,
			FullContent:      full,
		})
		if err != nil {
			if errors.Is(err, pub.ErrOverwriteNotConfirmed) {
				return fmt.Errorf("%v (pass --overwrite to confirm)", err)
			}
			return err
		}

		printPublishResult(result)
		return nil
	},
}

// generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate content via the generation service and publish it",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputType, _ := cmd.Flags().GetString("type")
		url, _ := cmd.Flags().GetString("url")
		confirm, _ := cmd.Flags().GetBool("overwrite")

		if url == "" {
			return fmt.Errorf("--url is required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		gen, err := a.Generator.Run(cmd.Context(), url, pub.OutputType(outputType))
		if err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}

		result, err := a.Publisher.Publish(cmd.Context(), a.OwnerID(), pub.PublishRequest{
			OutputType:       pub.OutputType(outputType),
			WebsiteURL:       url,
			ConfirmOverwrite: confirm,
			SummaryContent:   gen.Summary,
			FullContent:      gen.Full,
		})
		if err != nil {
			if errors.Is(err, pub.ErrOverwriteNotConfirmed) {
				return fmt.Errorf("%v (pass --overwrite to confirm)", err)
			}
			return err
		}

		if err := a.Schedules.RememberSource(a.OwnerID(), url, pub.OutputType(outputType)); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not remember publish source: %v\n", err)
		}

		printPublishResult(result)
		return nil
	},
}

// check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check which artifacts already exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputType, _ := cmd.Flags().GetString("type")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		existing, err := a.Publisher.CheckExisting(pub.OutputType(outputType))
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			fmt.Println("No artifacts exist yet.")
			return nil
		}
		for _, name := range existing {
			fmt.Println(name)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage publish history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List publish history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No publish history.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("#%d  %s  %-7s  %s  %s\n",
				e.ID,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				string(e.OutputType),
				e.WebsiteURL,
				e.FilePaths,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a history entry's stored content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.Store().GetHistoryEntry(id)
		if err != nil {
			return err
		}
		if entry == nil || entry.OwnerID != a.OwnerID() {
			return fmt.Errorf("history entry %d not found", id)
		}

		fmt.Printf("Entry #%d  %s  %s\n", entry.ID, entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.WebsiteURL)
		fmt.Printf("Type:  %s\n", string(entry.OutputType))
		fmt.Printf("Paths: %s\n", entry.FilePaths)
		if entry.SummaryContent != "" {
			fmt.Printf("\n--- summary ---\n%s\n", entry.SummaryContent)
		}
		if entry.FullContent != "" {
			fmt.Printf("\n--- full ---\n%s\n", entry.FullContent)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a history entry and its unreferenced files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Ledger.Delete(a.OwnerID(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted entry #%d\n", id)
		for _, p := range res.DeletedPaths {
			fmt.Printf("  removed %s\n", p)
		}
		for _, p := range res.FailedPaths {
			fmt.Printf("  kept    %s\n", p)
		}
		return nil
	},
}

// schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the publish schedule",
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Arm or update the schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		frequency, _ := cmd.Flags().GetString("frequency")
		dayOfWeek, _ := cmd.Flags().GetInt("day-of-week")
		dayOfMonth, _ := cmd.Flags().GetInt("day-of-month")
		outputType, _ := cmd.Flags().GetString("type")
		url, _ := cmd.Flags().GetString("url")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		existing, err := a.Schedules.Get(a.OwnerID())
		if err != nil {
			return err
		}
		if url == "" {
			url = existing.WebsiteURL
		}

		cfg := &pub.ScheduleConfig{
			OwnerID:    a.OwnerID(),
			Enabled:    true,
			Frequency:  frequency,
			DayOfWeek:  dayOfWeek,
			DayOfMonth: dayOfMonth,
			OutputType: pub.OutputType(outputType),
			WebsiteURL: url,
		}
		if err := a.Schedules.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("Schedule armed: %s %s\n", frequency, outputType)
		return nil
	},
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "View schedule state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, err := a.Schedules.Get(a.OwnerID())
		if err != nil {
			return err
		}

		state := "disabled"
		switch {
		case cfg.Enabled && cfg.Paused:
			state = "paused"
		case cfg.Enabled:
			state = "armed"
		}
		fmt.Printf("State:      %s\n", state)
		fmt.Printf("Frequency:  %s", cfg.Frequency)
		switch cfg.Frequency {
		case pub.FrequencyWeekly:
			fmt.Printf(" (weekday %d)", cfg.DayOfWeek)
		case pub.FrequencyMonthly:
			fmt.Printf(" (day %d)", cfg.DayOfMonth)
		}
		fmt.Println()
		fmt.Printf("Type:       %s\n", string(cfg.OutputType))
		fmt.Printf("Source URL: %s\n", cfg.WebsiteURL)
		if !cfg.LastRunAt.IsZero() {
			fmt.Printf("Last run:   %s (%s)\n", cfg.LastRunAt.Format("2006-01-02 15:04:05"), cfg.LastRunStatus)
		}
		if cfg.ConsecutiveFailures > 0 {
			fmt.Printf("Failures:   %d consecutive\n", cfg.ConsecutiveFailures)
		}
		if cfg.AlertActive {
			fmt.Println("ALERT: schedule is failing repeatedly")
		}
		return nil
	},
}

var schedulePauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the schedule",
	RunE:  scheduleAction(func(a *app.App) error { return a.Schedules.Pause(a.OwnerID()) }, "Schedule paused."),
}

var scheduleResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused schedule",
	RunE:  scheduleAction(func(a *app.App) error { return a.Schedules.Resume(a.OwnerID()) }, "Schedule resumed."),
}

var scheduleCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Disarm the schedule, keeping its settings",
	RunE:  scheduleAction(func(a *app.App) error { return a.Schedules.Cancel(a.OwnerID()) }, "Schedule cancelled. Settings preserved."),
}

func scheduleAction(action func(*app.App) error, done string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := action(a); err != nil {
			return err
		}
		fmt.Println(done)
		return nil
	}
}

var scheduleRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "View the scheduled-run log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.RunLog(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No scheduled runs recorded.")
			return nil
		}
		for _, r := range records {
			msg := ""
			if r.Status == pub.RunStatusFailed {
				msg = "  " + r.Message
			}
			fmt.Printf("%s  %-8s  attempts:%d  %s%s\n",
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				r.Attempts,
				r.Duration.Truncate(time.Millisecond),
				msg,
			)
		}
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate the schedule once and run it if due",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.Scheduler.TickOwner(cmd.Context(), a.OwnerID())
		switch {
		case errors.Is(err, pub.ErrDisabled):
			fmt.Println("Schedule is disabled or paused; nothing to do.")
			return nil
		case errors.Is(err, pub.ErrNotDue):
			fmt.Println("Schedule is not due; nothing to do.")
			return nil
		case err != nil:
			return err
		}
		fmt.Println("Scheduled run completed.")
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduler loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ticker := api.NewTicker(a.Scheduler, a.TickInterval(), a.Logger)
		ticker.Start(ctx)
		defer ticker.Stop()

		server := api.NewServer(a)
		errCh := make(chan error, 1)
		server.Start(errCh)

		select {
		case err := <-errCh:
			return fmt.Errorf("HTTP server failed: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify EMAIL",
	Short: "Run one-time email verification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email := args[0]

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SendVerification(cmd.Context(), name, email); err != nil {
			return err
		}
		fmt.Printf("Verification code sent to %s.\n", email)

		fmt.Print("Enter code: ")
		code, err := readSecret()
		if err != nil {
			return fmt.Errorf("reading code: %w", err)
		}

		ok, err := a.ConfirmVerification(cmd.Context(), email, code)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("verification failed")
		}
		fmt.Println("Verified.")
		return nil
	},
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printPublishResult(result *pub.PublishResult) {
	for _, f := range result.SavedFiles {
		fmt.Printf("Saved %s\n", f.Path)
	}
	for _, b := range result.BackupsCreated {
		fmt.Printf("Backed up previous version as %s\n", b)
	}
	for _, e := range result.WriteErrors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", e)
	}
}

func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("owner", "", "Owner ID (generated if omitted)")

	// publish flags
	publishCmd.Flags().String("type", "both", "Output type: summary, full, or both")
	publishCmd.Flags().String("url", "", "Source website URL recorded in history")
	publishCmd.Flags().String("summary-file", "", "File holding the summary artifact content")
	publishCmd.Flags().String("full-file", "", "File holding the full artifact content")
	publishCmd.Flags().Bool("overwrite", false, "Confirm overwriting existing artifacts")

	// generate flags
	generateCmd.Flags().String("type", "both", "Output type: summary, full, or both")
	generateCmd.Flags().String("url", "", "Website URL to generate from")
	generateCmd.Flags().Bool("overwrite", false, "Confirm overwriting existing artifacts")

	checkCmd.Flags().String("type", "both", "Output type: summary, full, or both")

	// history subcommands
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyListCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")

	// schedule subcommands
	scheduleCmd.AddCommand(scheduleSetCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
	scheduleCmd.AddCommand(schedulePauseCmd)
	scheduleCmd.AddCommand(scheduleResumeCmd)
	scheduleCmd.AddCommand(scheduleCancelCmd)
	scheduleCmd.AddCommand(scheduleRunsCmd)
	scheduleSetCmd.Flags().String("frequency", "daily", "every-minute, daily, weekly, or monthly")
	scheduleSetCmd.Flags().Int("day-of-week", 0, "0=Sunday..6=Saturday (weekly)")
	scheduleSetCmd.Flags().Int("day-of-month", 1, "1..31 (monthly)")
	scheduleSetCmd.Flags().String("type", "both", "Output type: summary, full, or both")
	scheduleSetCmd.Flags().String("url", "", "Source URL (defaults to last published)")
	scheduleRunsCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")

	verifyCmd.Flags().String("name", "", "Display name for the verification email")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
}
