package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"llmspub/internal/pub"
)

// FilesystemMirror copies backups into a directory tree, typically on a
// different volume than the site root.
type FilesystemMirror struct {
	root string
}

// NewFilesystemMirror creates a mirror rooted at the given path.
func NewFilesystemMirror(root string) (*FilesystemMirror, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}
	return &FilesystemMirror{root: root}, nil
}

// Put stores data under name. Writes go through a temp file + rename so a
// crashed copy never leaves a truncated mirror file.
func (m *FilesystemMirror) Put(_ context.Context, name string, data []byte) error {
	destPath := filepath.Join(m.root, filepath.Base(name))

	tmpFile, err := os.CreateTemp(m.root, ".tmp-*")
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
		return fmt.Errorf("writing mirror copy: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

var _ pub.Archiver = (*FilesystemMirror)(nil)
