package pub_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"llmspub/internal/pub"
	"llmspub/internal/testutil"
)

type publishFixture struct {
	svc    *pub.PublishService
	lock   *testutil.FakeLock
	store  *testutil.MemoryStore
	fsm    *testutil.MockFilesystemManager
	clock  *testutil.StubClock
	ledger *pub.HistoryLedger
}

func newPublishFixture(t *testing.T) *publishFixture {
	t.Helper()
	clock := testutil.FixedClock()
	store := testutil.NewMemoryStore()
	fsm := testutil.NewMockFilesystemManager(clock)
	lock := testutil.NewFakeLock()
	targets := pub.TargetSet{SiteRoot: siteRoot}
	logger := pub.NewNopLogger()

	backups := pub.NewBackupStore(fsm, clock, logger, nil)
	ledger := pub.NewHistoryLedger(store, fsm, clock, logger, targets)
	svc := pub.NewPublishService(lock, backups, ledger, fsm, targets, logger)

	return &publishFixture{svc: svc, lock: lock, store: store, fsm: fsm, clock: clock, ledger: ledger}
}

func TestPublishService_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh publish writes targets and records history", func(t *testing.T) {
		f := newPublishFixture(t)

		result, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:     pub.OutputBoth,
			WebsiteURL:     "https://example.com",
			SummaryContent: "summary text",
			FullContent:    "full text",
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if len(result.SavedFiles) != 2 {
			t.Fatalf("saved %d files, want 2", len(result.SavedFiles))
		}
		if got := f.fsm.Content("/site/llms.txt"); string(got) != "summary text" {
			t.Errorf("llms.txt = %q, want %q", got, "summary text")
		}
		if got := f.fsm.Content("/site/llms-full.txt"); string(got) != "full text" {
			t.Errorf("llms-full.txt = %q, want %q", got, "full text")
		}
		if len(result.BackupsCreated) != 0 {
			t.Errorf("fresh publish created backups: %v", result.BackupsCreated)
		}

		entries, _ := f.store.ListHistory("owner", 10)
		if len(entries) != 1 {
			t.Fatalf("history length = %d, want 1", len(entries))
		}
		if !strings.Contains(entries[0].FilePaths, "/site/llms.txt") ||
			!strings.Contains(entries[0].FilePaths, "/site/llms-full.txt") {
			t.Errorf("history paths = %q, want both targets", entries[0].FilePaths)
		}
	})

	t.Run("overwrite without confirmation is refused before any write", func(t *testing.T) {
		f := newPublishFixture(t)
		f.fsm.WriteFile("/site/llms.txt", []byte("existing"))

		_, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:     pub.OutputSummary,
			SummaryContent: "new content",
		})
		if !errors.Is(err, pub.ErrOverwriteNotConfirmed) {
			t.Fatalf("Publish() error = %v, want ErrOverwriteNotConfirmed", err)
		}
		if got := f.fsm.Content("/site/llms.txt"); string(got) != "existing" {
			t.Errorf("target was modified despite refused overwrite: %q", got)
		}
		entries, _ := f.store.ListHistory("owner", 10)
		if len(entries) != 0 {
			t.Errorf("history length = %d, want 0 after refused overwrite", len(entries))
		}
	})

	t.Run("confirmed overwrite backs up the previous version", func(t *testing.T) {
		f := newPublishFixture(t)
		f.fsm.WriteFile("/site/llms.txt", []byte("previous version"))

		result, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:       pub.OutputSummary,
			ConfirmOverwrite: true,
			SummaryContent:   "new version",
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if len(result.BackupsCreated) != 1 {
			t.Fatalf("backups created = %d, want 1", len(result.BackupsCreated))
		}
		backups, _ := f.fsm.ListBackups("/site/llms.txt")
		if len(backups) != 1 {
			t.Fatalf("backup files = %d, want 1", len(backups))
		}
		if got := f.fsm.Content(backups[0].Path); string(got) != "previous version" {
			t.Errorf("backup content = %q, want %q", got, "previous version")
		}
		if got := f.fsm.Content("/site/llms.txt"); string(got) != "new version" {
			t.Errorf("target = %q, want %q", got, "new version")
		}
	})

	t.Run("duplicate confirmed saves create exactly one backup", func(t *testing.T) {
		f := newPublishFixture(t)
		f.fsm.WriteFile("/site/llms.txt", []byte("original"))

		req := pub.PublishRequest{
			OutputType:       pub.OutputSummary,
			ConfirmOverwrite: true,
			SummaryContent:   "replacement",
		}
		if _, err := f.svc.Publish(ctx, "owner", req); err != nil {
			t.Fatalf("first Publish() error = %v", err)
		}
		f.clock.Advance(100 * time.Millisecond)
		second, err := f.svc.Publish(ctx, "owner", req)
		if err != nil {
			t.Fatalf("second Publish() error = %v", err)
		}

		backups, _ := f.fsm.ListBackups("/site/llms.txt")
		if len(backups) != 1 {
			t.Fatalf("backup files = %d, want exactly 1", len(backups))
		}
		if got := f.fsm.Content(backups[0].Path); string(got) != "original" {
			t.Errorf("backup content = %q, want the pre-overwrite bytes", got)
		}
		if len(second.BackupsCreated) != 0 {
			t.Errorf("second call created backups: %v", second.BackupsCreated)
		}

		// The second call observes the already-updated target and performs a
		// no-op write: only the seed and the first overwrite touch the file.
		if n := f.fsm.WriteCount("/site/llms.txt"); n != 2 {
			t.Errorf("target write count = %d, want 2", n)
		}
		if len(second.SavedFiles) != 1 {
			t.Errorf("second SavedFiles = %v, want the target reported saved", second.SavedFiles)
		}
		if got := f.fsm.Content("/site/llms.txt"); string(got) != "replacement" {
			t.Errorf("target = %q, want %q", got, "replacement")
		}
	})

	t.Run("overwrite reattaches the previous entry to its backup", func(t *testing.T) {
		f := newPublishFixture(t)

		if _, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:     pub.OutputSummary,
			SummaryContent: "first",
		}); err != nil {
			t.Fatalf("first Publish() error = %v", err)
		}

		f.clock.Advance(time.Minute)
		if _, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:       pub.OutputSummary,
			ConfirmOverwrite: true,
			SummaryContent:   "second",
		}); err != nil {
			t.Fatalf("second Publish() error = %v", err)
		}

		entries, _ := f.store.ListHistory("owner", 10)
		if len(entries) != 2 {
			t.Fatalf("history length = %d, want 2", len(entries))
		}
		// Newest first: entries[1] is the first publish, now pointing at the
		// backup of its content.
		if !strings.Contains(entries[1].FilePaths, ".backup.") {
			t.Errorf("older entry paths = %q, want backup reference", entries[1].FilePaths)
		}
		if strings.Contains(entries[0].FilePaths, ".backup.") {
			t.Errorf("newest entry paths = %q, want live path", entries[0].FilePaths)
		}
	})

	t.Run("SkipBackup suppresses backup creation", func(t *testing.T) {
		f := newPublishFixture(t)
		f.fsm.WriteFile("/site/llms.txt", []byte("previous"))

		result, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:       pub.OutputSummary,
			ConfirmOverwrite: true,
			SkipBackup:       true,
			SummaryContent:   "new",
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if len(result.BackupsCreated) != 0 {
			t.Errorf("backups created = %v, want none with SkipBackup", result.BackupsCreated)
		}
	})

	t.Run("partial write failure still saves the other target", func(t *testing.T) {
		f := newPublishFixture(t)
		f.fsm.FailWrites["/site/llms.txt"] = true

		result, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:     pub.OutputBoth,
			SummaryContent: "summary",
			FullContent:    "full",
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if len(result.SavedFiles) != 1 || result.SavedFiles[0].Filename != pub.FullFilename {
			t.Errorf("SavedFiles = %v, want only %s", result.SavedFiles, pub.FullFilename)
		}
		if len(result.WriteErrors) != 1 {
			t.Errorf("WriteErrors = %v, want one", result.WriteErrors)
		}

		entries, _ := f.store.ListHistory("owner", 10)
		if len(entries) != 1 {
			t.Fatalf("history length = %d, want 1", len(entries))
		}
		if strings.Contains(entries[0].FilePaths, "/site/llms.txt,") ||
			entries[0].FilePaths == "/site/llms.txt" {
			t.Errorf("history paths = %q, must not list the failed target", entries[0].FilePaths)
		}
	})

	t.Run("total write failure is an error", func(t *testing.T) {
		f := newPublishFixture(t)
		f.fsm.FailWrites["/site/llms.txt"] = true

		_, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:     pub.OutputSummary,
			SummaryContent: "content",
		})
		if err == nil {
			t.Fatal("Publish() error = nil, want failure when nothing was saved")
		}
	})

	t.Run("busy lock rejects the publish", func(t *testing.T) {
		f := newPublishFixture(t)
		f.lock.Busy = true

		_, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:     pub.OutputSummary,
			SummaryContent: "content",
		})
		if !errors.Is(err, pub.ErrBusy) {
			t.Fatalf("Publish() error = %v, want ErrBusy", err)
		}
	})

	t.Run("lock is released on every path", func(t *testing.T) {
		f := newPublishFixture(t)

		f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:     pub.OutputSummary,
			SummaryContent: "content",
		})
		f.fsm.WriteFile("/site/llms-full.txt", []byte("x"))
		f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:  pub.OutputFull,
			FullContent: "y",
		}) // refused overwrite

		if f.lock.Acquired != f.lock.Released {
			t.Errorf("acquired %d, released %d, want equal", f.lock.Acquired, f.lock.Released)
		}
	})

	t.Run("rejects empty content", func(t *testing.T) {
		f := newPublishFixture(t)
		_, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{OutputType: pub.OutputSummary})
		if err == nil {
			t.Fatal("Publish() error = nil, want failure for empty content")
		}
		if f.lock.Acquired != 0 {
			t.Error("lock was acquired for a request with no content")
		}
	})

	t.Run("rejects invalid output type", func(t *testing.T) {
		f := newPublishFixture(t)
		_, err := f.svc.Publish(ctx, "owner", pub.PublishRequest{
			OutputType:     "everything",
			SummaryContent: "x",
		})
		if err == nil {
			t.Fatal("Publish() error = nil, want failure for invalid output type")
		}
	})
}

func TestPublishService_CheckExisting(t *testing.T) {
	f := newPublishFixture(t)
	f.fsm.WriteFile("/site/llms.txt", []byte("x"))

	existing, err := f.svc.CheckExisting(pub.OutputBoth)
	if err != nil {
		t.Fatalf("CheckExisting() error = %v", err)
	}
	if len(existing) != 1 || existing[0] != pub.SummaryFilename {
		t.Errorf("CheckExisting() = %v, want [%s]", existing, pub.SummaryFilename)
	}
}
