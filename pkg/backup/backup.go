// Package backup implements the mutation safety guard: before any write
// or delete of tenant data, it snapshots the entire affected data
// category into a timestamp-named directory and records an audit line.
//
// The guard is advisory, not transactional. Every failure is logged and
// swallowed; a backup must never block the mutation it precedes. Nothing
// ever reads or prunes the snapshots — retention is an operational
// concern outside this service.
package backup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/engram-dev/engram/pkg/datastore"
	"github.com/engram-dev/engram/pkg/observability"
)

// DataCategory selects which whole-category directory gets snapshotted.
type DataCategory string

const (
	// DataMemory is the bulk of all tenants' memory documents.
	DataMemory DataCategory = "memory"

	// DataFiles is the bulk of all tenants' file trees.
	DataFiles DataCategory = "files"
)

// Config holds the source directories and backup roots per category.
type Config struct {
	MemorySourceDir  string
	FilesSourceDir   string
	MemoryBackupRoot string
	FilesBackupRoot  string

	// MemoryPrefix and FilesPrefix name the snapshot directories,
	// e.g. "memory_" yields memory_2026_08_28_10_15_42.
	MemoryPrefix string
	FilesPrefix  string
}

func (c *Config) defaults() {
	if c.MemoryPrefix == "" {
		c.MemoryPrefix = "memory_"
	}
	if c.FilesPrefix == "" {
		c.FilesPrefix = "files_"
	}
}

// Guard snapshots a data category before a mutation.
type Guard struct {
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	copyDir func(src, dst string) error
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source used for snapshot names.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithCopyFunc overrides the recursive copy implementation.
func WithCopyFunc(copyDir func(src, dst string) error) Option {
	return func(g *Guard) { g.copyDir = copyDir }
}

// New creates a mutation safety guard.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Guard {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		copyDir: datastore.CopyDir,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backup snapshots the category that affectedPath belongs to and records
// an audit line naming the actor. For memory mutations the audit line
// also carries the old document (read from the not-yet-overwritten file)
// and the incoming new value.
//
// Backup never returns an error and never panics past its own frame:
// data availability takes priority over backup completeness.
func (g *Guard) Backup(ctx context.Context, category DataCategory, affectedPath string, newValue []byte, actorID string) {
	outcome := "ok"
	if err := g.snapshot(category); err != nil {
		outcome = "failed"
		g.logger.Error("backup failed, continuing with mutation",
			"category", string(category),
			"path", affectedPath,
			"actor", actorID,
			"error", err,
		)
	}
	observability.BackupsTotal.WithLabelValues(string(category), outcome).Inc()

	g.audit(category, affectedPath, newValue, actorID)
}

// snapshot copies the category's live directory into a fresh
// timestamp-named backup directory. Mutations landing in the same second
// share a directory; overlapping files are last-copy-wins. That race is
// inherited behavior, accepted and documented rather than fixed.
func (g *Guard) snapshot(category DataCategory) error {
	var sourceDir, backupRoot, prefix string
	switch category {
	case DataMemory:
		sourceDir = g.cfg.MemorySourceDir
		backupRoot = g.cfg.MemoryBackupRoot
		prefix = g.cfg.MemoryPrefix
	case DataFiles:
		sourceDir = g.cfg.FilesSourceDir
		backupRoot = g.cfg.FilesBackupRoot
		prefix = g.cfg.FilesPrefix
	default:
		g.logger.Error("invalid data category for backup", "category", string(category))
		return nil
	}

	stamp := g.now().UTC().Format("2006_01_02_15_04_05")
	backupDir := filepath.Join(backupRoot, prefix+stamp)

	if err := datastore.EnsureDir(backupDir); err != nil {
		return err
	}

	if !datastore.Exists(sourceDir) {
		return nil
	}
	return g.copyDir(sourceDir, backupDir)
}

// audit logs who is about to mutate what. Read failures on the old value
// degrade the audit line, never the mutation.
func (g *Guard) audit(category DataCategory, affectedPath string, newValue []byte, actorID string) {
	if category != DataMemory {
		g.logger.Info("data mutation",
			"actor", actorID,
			"category", string(category),
			"path", affectedPath,
		)
		return
	}

	oldValue := "{}"
	if datastore.Exists(affectedPath) {
		if data, err := os.ReadFile(affectedPath); err == nil {
			oldValue = string(data)
		}
	}

	g.logger.Info("memory mutation",
		"actor", actorID,
		"path", affectedPath,
		"old_value", oldValue,
		"new_value", string(newValue),
	)
}
