// Package app wires the publish engine from configuration: filesystem,
// lock, store, mirror, generation client, and the services on top of them.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"llmspub/internal/config"
	"llmspub/internal/fsio"
	"llmspub/internal/genclient"
	"llmspub/internal/mirror"
	"llmspub/internal/pub"
	"llmspub/internal/store"
)

// App is the application layer between the CLI (or HTTP API) and the
// publish services. It constructs all dependencies from config and manages
// their lifecycle on Close.
type App struct {
	cfg     *config.Config
	store   pub.Store
	logFile *os.File

	Logger    pub.Logger
	Targets   pub.TargetSet
	Publisher *pub.PublishService
	Ledger    *pub.HistoryLedger
	Schedules *pub.ScheduleService
	Scheduler *pub.Scheduler
	Generator *genclient.Client
}

// New creates a fully wired App from the given config. The caller must call
// Close when done. A .env file in the working directory, when present,
// supplies secrets the config file omits.
func New(cfg *config.Config) (*App, error) {
	// Missing .env is the normal case; only a parse failure matters.
	_ = godotenv.Load()

	if cfg.SiteRoot == "" {
		return nil, fmt.Errorf("site_root is required")
	}
	if cfg.OwnerID == "" {
		return nil, fmt.Errorf("owner_id is required")
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	st, err := store.NewFromConfig(store.Config{
		Type:    cfg.Database.Type,
		DataDir: cfg.Database.DataDir,
	})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	arch, err := mirror.NewFromConfig(mirror.Config{
		Type:            cfg.Mirror.Type,
		Root:            cfg.Mirror.FSRoot,
		Bucket:          cfg.Mirror.S3Bucket,
		Prefix:          cfg.Mirror.S3Prefix,
		Region:          cfg.Mirror.S3Region,
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	clock := pub.RealClock{}
	idgen := pub.UUIDGenerator{}
	fsm := fsio.NewOSFilesystemManager()
	targets := pub.TargetSet{SiteRoot: cfg.SiteRoot}

	lock := newLock(cfg.Lock, cfg.SiteRoot, clock, log)
	backups := pub.NewBackupStore(fsm, clock, log, arch)
	ledger := pub.NewHistoryLedger(st, fsm, clock, log, targets)
	publisher := pub.NewPublishService(lock, backups, ledger, fsm, targets, log)
	schedules := pub.NewScheduleService(st, clock, log)

	apiKey := cfg.Generator.APIKey
	if v := os.Getenv("LLMSPUB_API_KEY"); v != "" {
		apiKey = v
	}
	var genOpts []genclient.Option
	if cfg.Generator.BatchSize > 0 {
		genOpts = append(genOpts, genclient.WithBatchSize(cfg.Generator.BatchSize))
	}
	generator := genclient.New(cfg.Generator.BaseURL, apiKey, log, genOpts...)

	retry := pub.DefaultRetryPolicy()
	if cfg.Schedule.RetryDelaySec > 0 {
		retry.Delay = time.Duration(cfg.Schedule.RetryDelaySec) * time.Second
	}
	scheduler := pub.NewScheduler(st, publisher, generator, retry, clock, idgen, log, cfg.Schedule.AutoBackup)

	return &App{
		cfg:       cfg,
		store:     st,
		logFile:   logFile,
		Logger:    log,
		Targets:   targets,
		Publisher: publisher,
		Ledger:    ledger,
		Schedules: schedules,
		Scheduler: scheduler,
		Generator: generator,
	}, nil
}

// newLock builds the publish lock from config, falling back to package
// defaults for unset timings.
func newLock(cfg config.LockConfig, siteRoot string, clock pub.Clock, log pub.Logger) *fsio.FileLock {
	path := cfg.Path
	if path == "" {
		path = filepath.Join(siteRoot, ".llmspub.lock")
	}
	lock := fsio.NewFileLock(path, clock, log)
	if cfg.MaxWaitSec > 0 {
		lock.MaxWait = time.Duration(cfg.MaxWaitSec) * time.Second
	}
	if cfg.StaleSec > 0 {
		lock.StaleAfter = time.Duration(cfg.StaleSec) * time.Second
	}
	if cfg.PollMillisec > 0 {
		lock.PollInterval = time.Duration(cfg.PollMillisec) * time.Millisecond
	}
	return lock
}

// OwnerID returns the configured owner identity.
func (a *App) OwnerID() string { return a.cfg.OwnerID }

// APIToken returns the bearer token the HTTP API requires, preferring the
// environment over the config file.
func (a *App) APIToken() string {
	if v := os.Getenv("LLMSPUB_API_TOKEN"); v != "" {
		return v
	}
	return a.cfg.Server.APIToken
}

// ServerAddr returns the HTTP API listen address.
func (a *App) ServerAddr() string {
	if a.cfg.Server.Addr != "" {
		return a.cfg.Server.Addr
	}
	return ":8080"
}

// TickInterval returns the scheduler polling interval.
func (a *App) TickInterval() time.Duration {
	if a.cfg.Schedule.TickIntervalSec > 0 {
		return time.Duration(a.cfg.Schedule.TickIntervalSec) * time.Second
	}
	return time.Minute
}

// Store exposes the persistence layer for read-side queries.
func (a *App) Store() pub.Store { return a.store }

// History returns the owner's newest history entries.
func (a *App) History(limit int) ([]*pub.HistoryEntry, error) {
	return a.store.ListHistory(a.cfg.OwnerID, limit)
}

// RunLog returns the owner's newest scheduled-run records.
func (a *App) RunLog(limit int) ([]*pub.RunRecord, error) {
	return a.store.ListRunRecords(a.cfg.OwnerID, limit)
}

// SendVerification asks the verification service to email a one-time code.
func (a *App) SendVerification(ctx context.Context, name, email string) error {
	return a.Generator.SendOTP(ctx, name, email)
}

// ConfirmVerification checks a one-time code.
func (a *App) ConfirmVerification(ctx context.Context, email, otp string) (bool, error) {
	return a.Generator.VerifyOTP(ctx, email, otp)
}

// Close releases all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
