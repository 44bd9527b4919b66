package pub

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// backupMarker appears in every backup file name and never in a live
// target path.
const backupMarker = ".backup."

// reattachGuard excludes entries younger than this from backup
// reattachment, so the entry the current publish just created is never
// rewritten by its own backup.
const reattachGuard = 3 * time.Second

// HistoryLedger is the append-only record of publish events. Entries are
// never rewritten except for path reattachment: once a backup is taken for
// a file an older entry references, that entry's live path is replaced with
// the backup path, so history always shows what each snapshot became.
type HistoryLedger struct {
	store  Store
	fsm    FilesystemManager
	clock  Clock
	logger Logger

	targets TargetSet
}

// NewHistoryLedger creates a ledger backed by the given store.
func NewHistoryLedger(store Store, fsm FilesystemManager, clock Clock, logger Logger, targets TargetSet) *HistoryLedger {
	return &HistoryLedger{
		store:   store,
		fsm:     fsm,
		clock:   clock,
		logger:  logger,
		targets: targets,
	}
}

// Record appends one entry per publish, unconditionally. Duplicate
// suppression lives at the backup layer, not here.
func (l *HistoryLedger) Record(e *HistoryEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.clock.Now()
	}
	id, err := l.store.AppendHistory(e)
	if err != nil {
		return 0, fmt.Errorf("appending history: %w", err)
	}
	l.logger.Debug("history recorded", "id", id, "paths", e.FilePaths)
	return id, nil
}

// ReattachBackup rewrites the most recent qualifying entry's reference to
// originalPath so it points at backupPath instead. Entries younger than the
// reattach guard are skipped, as are entries already referencing this
// backup. Returns false when no entry qualifies.
func (l *HistoryLedger) ReattachBackup(ownerID, originalPath, backupPath string) (bool, error) {
	entries, err := l.store.ListHistory(ownerID, 50)
	if err != nil {
		return false, fmt.Errorf("listing history: %w", err)
	}

	cutoff := l.clock.Now().Add(-reattachGuard)
	originalName := filepath.Base(originalPath)
	backupName := filepath.Base(backupPath)

	for _, e := range entries {
		if !e.CreatedAt.Before(cutoff) {
			continue
		}
		if !strings.Contains(e.FilePaths, originalName) {
			continue
		}
		if strings.Contains(e.FilePaths, backupName) {
			// This specific backup is already attached.
			continue
		}

		paths := splitPaths(e.FilePaths)
		updated := false
		for i, p := range paths {
			if strings.Contains(p, backupMarker) {
				continue // already a backup reference
			}
			if p == originalPath || filepath.Base(p) == originalName {
				paths[i] = backupPath
				updated = true
			}
		}
		if !updated {
			continue
		}

		newPaths := strings.Join(paths, ", ")
		if err := l.store.UpdateHistoryPaths(e.ID, newPaths); err != nil {
			return false, fmt.Errorf("updating history paths: %w", err)
		}
		l.logger.Debug("history reattached to backup", "id", e.ID, "backup", backupName)
		return true, nil
	}
	return false, nil
}

// DeleteResult reports the file outcomes of a history deletion.
type DeleteResult struct {
	DeletedPaths []string
	FailedPaths  []string
}

// Delete removes a history entry and best-effort deletes the files it
// references: backup files always, live target files only when no newer
// entry still references them by name. A missing entry is treated as
// already deleted.
func (l *HistoryLedger) Delete(ownerID string, id int64) (*DeleteResult, error) {
	entry, err := l.store.GetHistoryEntry(id)
	if err != nil {
		return nil, fmt.Errorf("loading history entry: %w", err)
	}
	res := &DeleteResult{}
	if entry == nil || entry.OwnerID != ownerID {
		return res, nil
	}

	targetNames := l.targets.Filenames(entry.OutputType)

	// Files listed on the entry itself: backups are unlinked outright, live
	// paths only if nothing newer references them.
	for _, path := range splitPaths(entry.FilePaths) {
		name := filepath.Base(path)
		if !matchesAny(name, targetNames) {
			continue
		}
		if strings.Contains(path, backupMarker) {
			l.removeFile(path, res)
			continue
		}
		l.removeLiveIfUnreferenced(ownerID, entry, name, path, res)
	}

	// The current artifacts for this entry's output type, even when the
	// entry's own path was already rewritten to a backup.
	for _, t := range l.targets.Select(entry.OutputType) {
		exists, err := l.fsm.Exists(t.Path)
		if err != nil || !exists {
			continue
		}
		name := filepath.Base(t.Path)
		if containsPath(res.DeletedPaths, t.Path) {
			continue
		}
		l.removeLiveIfUnreferenced(ownerID, entry, name, t.Path, res)
	}

	if err := l.store.DeleteHistoryEntry(id); err != nil {
		return res, fmt.Errorf("deleting history entry: %w", err)
	}
	l.logger.Info("history entry deleted", "id", id, "files_deleted", len(res.DeletedPaths))
	return res, nil
}

// removeLiveIfUnreferenced unlinks a live target file unless a newer
// history entry still references its name.
func (l *HistoryLedger) removeLiveIfUnreferenced(ownerID string, entry *HistoryEntry, name, path string, res *DeleteResult) {
	newer, err := l.store.ListHistorySince(ownerID, entry.CreatedAt)
	if err != nil {
		res.FailedPaths = append(res.FailedPaths, name)
		return
	}
	for _, n := range newer {
		if n.ID != entry.ID && strings.Contains(n.FilePaths, name) {
			return // still in use by later history
		}
	}
	l.removeFile(path, res)
}

// removeFile unlinks a file confined to the site root, recording the
// outcome.
func (l *HistoryLedger) removeFile(path string, res *DeleteResult) {
	name := filepath.Base(path)
	if !l.withinSiteRoot(path) {
		res.FailedPaths = append(res.FailedPaths, name+" (outside site root)")
		return
	}
	exists, err := l.fsm.Exists(path)
	if err != nil || !exists {
		res.FailedPaths = append(res.FailedPaths, name+" (not found)")
		return
	}
	if err := l.fsm.Remove(path); err != nil {
		res.FailedPaths = append(res.FailedPaths, name+" (delete failed)")
		return
	}
	res.DeletedPaths = append(res.DeletedPaths, path)
}

// withinSiteRoot reports whether path resolves under the site root.
func (l *HistoryLedger) withinSiteRoot(path string) bool {
	root := filepath.Clean(l.targets.SiteRoot)
	clean := filepath.Clean(path)
	return clean == root || strings.HasPrefix(clean, root+string(filepath.Separator))
}

// splitPaths splits a comma-joined path list, dropping empties.
func splitPaths(joined string) []string {
	var out []string
	for _, p := range strings.Split(joined, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchesAny(name string, targets []string) bool {
	for _, t := range targets {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}

func containsPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}
