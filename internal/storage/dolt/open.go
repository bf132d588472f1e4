//go:build cgo

package dolt

import "context"

// NewFromConfig opens a DoltStore at dbPath using cfg, applying dbPath as the
// database directory when cfg.Path is unset. This mirrors the teacher's
// config-file-driven opener but reads process configuration (internal/procconfig)
// instead of a per-repo metadata.json — this system has no per-repo config
// directory, only the process-wide values spec.md §6 names.
func NewFromConfig(ctx context.Context, dbPath string, cfg *Config) (*DoltStore, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Path == "" {
		cfg.Path = dbPath
	}
	return New(ctx, cfg)
}
