package pub

import "context"

// Archiver receives an offsite copy of each backup as it is created, so a
// replaced artifact survives loss of the host. Mirroring is best-effort:
// the publish path treats Archiver failures as warnings, never errors.
type Archiver interface {
	// Put stores a named copy of the given bytes. name is the backup file's
	// base name, which is unique per backup.
	Put(ctx context.Context, name string, data []byte) error
}
