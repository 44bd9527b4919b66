package pub

import "time"

// BackupFileInfo identifies an existing backup sibling of a target file.
type BackupFileInfo struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// FilesystemManager abstracts the file operations the publish path needs so
// the engine can run against a fake filesystem in tests.
type FilesystemManager interface {
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)

	// ReadFile reads the full contents of the file at path.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the contents of the file at path. Implementations
	// should write atomically (temp file + rename) where the platform allows.
	WriteFile(path string, data []byte) error

	// Remove deletes the file at path.
	Remove(path string) error

	// ListBackups returns the existing backup siblings of targetPath, i.e.
	// files named <targetPath>.backup.*, in no particular order.
	ListBackups(targetPath string) ([]BackupFileInfo, error)
}
