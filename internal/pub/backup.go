package pub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"
)

// Scope is the per-call backup registry. One Scope lives for the duration
// of a single publish request; it guarantees that a target is backed up at
// most once per request even if BackupOnce is invoked for it repeatedly.
type Scope struct {
	backedUp map[string]*BackupRecord
}

// NewScope creates an empty per-request backup registry.
func NewScope() *Scope {
	return &Scope{backedUp: make(map[string]*BackupRecord)}
}

// BackupStore preserves a target file's current bytes before it is
// overwritten. It is idempotent against duplicate and racing callers: the
// per-request Scope suppresses repeats within one call, and a scan for
// recent identical backups suppresses repeats across near-simultaneous
// requests.
type BackupStore struct {
	fsm      FilesystemManager
	clock    Clock
	logger   Logger
	archiver Archiver // optional offsite mirror, may be nil

	// RecentWindow is how far back the duplicate scan looks. A backup of
	// identical content created within this window is reused instead of
	// creating a new one.
	RecentWindow time.Duration
}

// DefaultRecentWindow is the duplicate-suppression scan window.
const DefaultRecentWindow = 5 * time.Second

// NewBackupStore creates a BackupStore. archiver may be nil to disable
// offsite mirroring.
func NewBackupStore(fsm FilesystemManager, clock Clock, logger Logger, archiver Archiver) *BackupStore {
	return &BackupStore{
		fsm:          fsm,
		clock:        clock,
		logger:       logger,
		archiver:     archiver,
		RecentWindow: DefaultRecentWindow,
	}
}

// BackupOnce preserves the current bytes of targetPath and returns the
// resulting record. It returns nil when no backup is needed (the target
// does not exist) and on backup failure: a publish must never be blocked by
// a failed backup, so failures are logged and swallowed.
func (b *BackupStore) BackupOnce(ctx context.Context, scope *Scope, targetPath string) *BackupRecord {
	key := filepath.Clean(targetPath)
	if rec, ok := scope.backedUp[key]; ok {
		return rec
	}

	exists, err := b.fsm.Exists(targetPath)
	if err != nil {
		b.logger.Warn("backup skipped, cannot stat target", "path", targetPath, "error", err)
		return nil
	}
	if !exists {
		// Fresh publish, not an overwrite.
		return nil
	}

	content, err := b.fsm.ReadFile(targetPath)
	if err != nil {
		b.logger.Warn("backup skipped, cannot read target", "path", targetPath, "error", err)
		return nil
	}
	checksum := fingerprint(content)

	// Reuse a backup created by a racing request moments ago, if its bytes
	// match what we are about to preserve.
	if rec := b.findRecent(targetPath, content, checksum); rec != nil {
		scope.backedUp[key] = rec
		b.logger.Debug("reusing recent backup", "path", rec.BackupPath)
		return rec
	}

	rec, err := b.create(targetPath, content, checksum)
	if err != nil {
		b.logger.Warn("backup failed, publish will proceed without one", "path", targetPath, "error", err)
		return nil
	}
	scope.backedUp[key] = rec
	b.logger.Info("backup created", "path", rec.BackupPath, "checksum", rec.Checksum[:12])

	if b.archiver != nil {
		if err := b.archiver.Put(ctx, filepath.Base(rec.BackupPath), content); err != nil {
			b.logger.Warn("backup mirror failed", "path", rec.BackupPath, "error", err)
		}
	}
	return rec
}

// findRecent scans existing backup siblings of targetPath for one created
// within the recent window whose bytes match content.
func (b *BackupStore) findRecent(targetPath string, content []byte, checksum string) *BackupRecord {
	backups, err := b.fsm.ListBackups(targetPath)
	if err != nil {
		return nil
	}

	now := b.clock.Now()
	for _, info := range backups {
		age := now.Sub(info.ModTime)
		if age < 0 || age > b.RecentWindow {
			continue
		}
		if info.Size != int64(len(content)) {
			continue
		}
		existing, err := b.fsm.ReadFile(info.Path)
		if err != nil {
			continue
		}
		if bytes.Equal(existing, content) {
			return &BackupRecord{
				TargetPath: targetPath,
				BackupPath: info.Path,
				CreatedAt:  info.ModTime,
				Checksum:   checksum,
			}
		}
	}
	return nil
}

// create writes a new timestamped backup file next to the target.
func (b *BackupStore) create(targetPath string, content []byte, checksum string) (*BackupRecord, error) {
	now := b.clock.Now()
	stamp := fmt.Sprintf("%s-%06d", now.Format("2006-01-02-15-04-05"), now.Nanosecond()/1000)
	backupPath := targetPath + ".backup." + stamp

	// Disambiguate on the off chance two backups land in the same
	// microsecond.
	for counter := 1; counter <= 100; counter++ {
		exists, err := b.fsm.Exists(backupPath)
		if err != nil {
			return nil, fmt.Errorf("checking backup path: %w", err)
		}
		if !exists {
			break
		}
		backupPath = fmt.Sprintf("%s.backup.%s-%d", targetPath, stamp, counter)
	}

	if err := b.fsm.WriteFile(backupPath, content); err != nil {
		return nil, fmt.Errorf("writing backup: %w", err)
	}

	return &BackupRecord{
		TargetPath: targetPath,
		BackupPath: backupPath,
		CreatedAt:  now,
		Checksum:   checksum,
	}, nil
}

// fingerprint returns the hex SHA-256 of the given bytes.
func fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
