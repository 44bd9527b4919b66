// Package mirror provides best-effort off-host copies of backup files. A
// mirror failure never fails the publish that triggered it.
package mirror

import (
	"context"
	"fmt"

	"llmspub/internal/pub"
)

// Config selects and parameterizes the mirror backend.
type Config struct {
	Type string // "none", "filesystem", or "s3"

	// filesystem
	Root string

	// s3
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewFromConfig creates an Archiver implementation based on the config
// type. "none" returns a mirror that accepts and discards everything.
func NewFromConfig(cfg Config) (pub.Archiver, error) {
	switch cfg.Type {
	case "", "none":
		return NopMirror{}, nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("root required for filesystem mirror")
		}
		return NewFilesystemMirror(cfg.Root)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for s3 mirror")
		}
		return NewS3Mirror(cfg.Bucket, cfg.Prefix, cfg.Region, Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}

// NopMirror discards everything put into it.
type NopMirror struct{}

func (NopMirror) Put(_ context.Context, _ string, _ []byte) error { return nil }
