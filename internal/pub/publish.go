package pub

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// PublishRequest describes one publish call. It is transient: it exists
// only for the duration of the call.
type PublishRequest struct {
	OutputType       OutputType
	WebsiteURL       string
	ConfirmOverwrite bool

	// SkipBackup suppresses backup creation for this call. The scheduler
	// sets it when auto-backup on scheduled runs is disabled by policy;
	// manual callers leave it false.
	SkipBackup bool

	SummaryContent string
	FullContent    string
}

// contentFor returns the payload for the given target, empty when the
// request carries none.
func (r PublishRequest) contentFor(t Target) string {
	switch t.Name {
	case OutputSummary:
		return r.SummaryContent
	case OutputFull:
		return r.FullContent
	}
	return ""
}

// SavedFile describes one target file written by a publish.
type SavedFile struct {
	Filename string
	Path     string
}

// PublishResult reports what a successful publish did.
type PublishResult struct {
	SavedFiles     []SavedFile
	BackupsCreated []string // backup file base names
	WriteErrors    []string // per-target write failures on a partial success
	HistoryID      int64
}

// PublishService performs the guarded overwrite of the public artifacts:
// acquire the host-wide lock, capture which targets pre-existed, back up
// and overwrite each selected target, then append one history entry. Both
// the manual path and the scheduler drive this same sequence.
type PublishService struct {
	lock    LockService
	backups *BackupStore
	ledger  *HistoryLedger
	fsm     FilesystemManager
	targets TargetSet
	logger  Logger
}

// NewPublishService wires a publish service from its collaborators.
func NewPublishService(lock LockService, backups *BackupStore, ledger *HistoryLedger, fsm FilesystemManager, targets TargetSet, logger Logger) *PublishService {
	return &PublishService{
		lock:    lock,
		backups: backups,
		ledger:  ledger,
		fsm:     fsm,
		targets: targets,
		logger:  logger,
	}
}

// CheckExisting returns the artifact filenames of the given output type
// that already exist on disk. Callers use it to decide whether to ask for
// overwrite confirmation.
func (s *PublishService) CheckExisting(outputType OutputType) ([]string, error) {
	var existing []string
	for _, t := range s.targets.Select(outputType) {
		exists, err := s.fsm.Exists(t.Path)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", t.Path, err)
		}
		if exists {
			existing = append(existing, filepath.Base(t.Path))
		}
	}
	return existing, nil
}

// Publish writes the requested artifacts. The whole existence-check →
// backup → overwrite → history sequence runs inside the publish lock, so
// two overlapping publishes are totally ordered and no write interleaves
// with another's existence check.
func (s *PublishService) Publish(ctx context.Context, ownerID string, req PublishRequest) (*PublishResult, error) {
	if !req.OutputType.Valid() {
		return nil, fmt.Errorf("invalid output type %q", req.OutputType)
	}

	selected := s.targets.Select(req.OutputType)
	hasContent := false
	for _, t := range selected {
		if req.contentFor(t) != "" {
			hasContent = true
		}
	}
	if !hasContent {
		return nil, fmt.Errorf("no content to save")
	}

	handle, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	// Capture existence before any file operation. Only files that existed
	// before this request began are overwrite candidates; a file created by
	// a racing duplicate request moments ago must not be backed up again.
	existedBefore := make(map[string]bool, len(selected))
	var preExisting []string
	for _, t := range selected {
		exists, err := s.fsm.Exists(t.Path)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", t.Path, err)
		}
		existedBefore[t.Path] = exists
		if exists {
			preExisting = append(preExisting, filepath.Base(t.Path))
		}
	}

	if len(preExisting) > 0 && !req.ConfirmOverwrite {
		return nil, fmt.Errorf("%w: %s", ErrOverwriteNotConfirmed, strings.Join(preExisting, ", "))
	}

	scope := NewScope()
	result := &PublishResult{}
	var livePaths []string

	for _, t := range selected {
		content := req.contentFor(t)
		if content == "" {
			continue
		}

		if existedBefore[t.Path] {
			// A duplicate request may have already written these exact bytes
			// moments ago. There is nothing to preserve and nothing to write;
			// backing up now would capture the new content, not the old.
			if current, err := s.fsm.ReadFile(t.Path); err == nil && bytes.Equal(current, []byte(content)) {
				result.SavedFiles = append(result.SavedFiles, SavedFile{
					Filename: filepath.Base(t.Path),
					Path:     t.Path,
				})
				livePaths = append(livePaths, t.Path)
				continue
			}
		}

		if existedBefore[t.Path] && req.ConfirmOverwrite && !req.SkipBackup {
			if rec := s.backups.BackupOnce(ctx, scope, t.Path); rec != nil {
				result.BackupsCreated = append(result.BackupsCreated, filepath.Base(rec.BackupPath))
				if _, err := s.ledger.ReattachBackup(ownerID, t.Path, rec.BackupPath); err != nil {
					s.logger.Warn("backup reattachment failed", "path", t.Path, "error", err)
				}
			}
		}

		if err := s.fsm.WriteFile(t.Path, []byte(content)); err != nil {
			s.logger.Error("target write failed", "path", t.Path, "error", err)
			result.WriteErrors = append(result.WriteErrors, fmt.Sprintf("failed to save %s", filepath.Base(t.Path)))
			continue
		}
		result.SavedFiles = append(result.SavedFiles, SavedFile{
			Filename: filepath.Base(t.Path),
			Path:     t.Path,
		})
		livePaths = append(livePaths, t.Path)
	}

	if len(result.SavedFiles) == 0 {
		return nil, fmt.Errorf("no files saved: %s", strings.Join(result.WriteErrors, "; "))
	}

	id, err := s.ledger.Record(&HistoryEntry{
		OwnerID:        ownerID,
		WebsiteURL:     orUnknown(req.WebsiteURL),
		OutputType:     req.OutputType,
		SummaryContent: req.SummaryContent,
		FullContent:    req.FullContent,
		FilePaths:      strings.Join(livePaths, ", "),
	})
	if err != nil {
		// The artifacts are already on disk; a failed ledger write must not
		// unwind the publish.
		s.logger.Warn("history record failed", "error", err)
	}
	result.HistoryID = id

	s.logger.Info("publish complete",
		"output_type", string(req.OutputType),
		"files", len(result.SavedFiles),
		"backups", len(result.BackupsCreated))
	return result, nil
}

func orUnknown(url string) string {
	if url == "" {
		return "Unknown"
	}
	return url
}
