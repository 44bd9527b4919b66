// Package fsio provides the OS-backed filesystem manager and the exclusive
// publish lock used when overwriting public artifacts.
package fsio

import (
	"fmt"
	"os"
	"path/filepath"

	"llmspub/internal/pub"
)

// OSFilesystemManager implements pub.FilesystemManager against the real
// filesystem. Writes are atomic: content lands in a temp file in the target
// directory and is renamed into place, so a reader never observes a
// half-written artifact.
type OSFilesystemManager struct{}

// NewOSFilesystemManager returns a filesystem manager over the OS.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

func (m *OSFilesystemManager) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

func (m *OSFilesystemManager) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to path atomically via temp file + rename. The temp
// file is created in the destination directory so the rename never crosses
// a filesystem boundary.
func (m *OSFilesystemManager) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

func (m *OSFilesystemManager) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// ListBackups returns the backup copies of targetPath, found by glob over
// the backup name pattern in the target's directory.
func (m *OSFilesystemManager) ListBackups(targetPath string) ([]pub.BackupFileInfo, error) {
	pattern := targetPath + ".backup.*"
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", pattern, err)
	}

	var infos []pub.BackupFileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue // removed between glob and stat
		}
		infos = append(infos, pub.BackupFileInfo{
			Path:    match,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return infos, nil
}

var _ pub.FilesystemManager = (*OSFilesystemManager)(nil)
