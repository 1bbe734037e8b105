package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"sst-go/internal/config"
	"sst-go/internal/database"
	"sst-go/internal/fs"
	"sst-go/internal/savegame"
	"sst-go/internal/sst"
)

// SSTApp is the application layer between the CLI and the snapshot
// registry. It constructs all dependencies from config, journals the
// commands that change snapshot storage, and releases resources on Close.
type SSTApp struct {
	cfg      *config.Config
	db       *database.SQLiteDatabase
	registry *sst.Registry
	logger   sst.Logger
	op       *Operation
	logFile  *os.File
	warnings []sst.LoadWarning
}

// collaborators are the parts of an SSTApp that tests replace.
type collaborators struct {
	stderr   io.Writer
	clock    sst.Clock
	ids      sst.IDGenerator
	versions sst.VersionReader
}

// NewSSTApp creates a fully wired SSTApp from the given config and loads the
// existing snapshots. command identifies the CLI command being run (e.g.
// "create", "delete"). The caller must call Close when done.
func NewSSTApp(ctx context.Context, cfg *config.Config, command string) (*SSTApp, error) {
	return newSSTApp(ctx, cfg, command, collaborators{
		stderr:   os.Stderr,
		clock:    sst.RealClock{},
		ids:      sst.UUIDGenerator{},
		versions: fs.NewExecutableVersionReader(),
	})
}

func newSSTApp(ctx context.Context, cfg *config.Config, command string, c collaborators) (*SSTApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, c.clock)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	opID := c.clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, c.stderr)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	registry, err := sst.NewRegistry(sst.RegistryConfig{
		Root:     cfg.SnapshotRoot,
		MaxDepth: cfg.Indexer.MaxDepth,
		Indexer:  fs.NewOSIndexer(cfg.Indexer.Ignore, logger),
		Planner:  sst.NewPlanner(fs.NewMD5Hasher(), c.versions, cfg.Executables.Names, logger),
		Copier:   fs.NewOSCopier(logger),
		Links:    fs.NewOSLinkCreator(),
		Headers:  savegame.NewReader(),
		Logger:   logger,
		Clock:    c.clock,
		IDs:      c.ids,
	})
	if err != nil {
		logFile.Close()
		db.Close()
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	warnings, err := registry.Load(ctx)
	if err != nil {
		logFile.Close()
		db.Close()
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}

	return &SSTApp{
		cfg:      cfg,
		db:       db,
		registry: registry,
		logger:   logger,
		op:       NewOperation(command, ""),
		logFile:  logFile,
		warnings: warnings,
	}, nil
}

// persistOperation journals the current command, giving it an ID.
// Only commands that change snapshot storage call it.
func (a *SSTApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(a.op.Command, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// LoadWarnings lists the snapshot directories skipped while loading.
func (a *SSTApp) LoadWarnings() []sst.LoadWarning {
	return a.warnings
}

// Create snapshots the configured game and saves directories.
func (a *SSTApp) Create(ctx context.Context, observer sst.Observer) (*sst.Snapshot, error) {
	if err := a.persistOperation(a.cfg.GamePath); err != nil {
		return nil, err
	}
	snap, err := a.registry.Create(ctx, a.cfg.GamePath, a.cfg.SavesPath, observer)
	if err != nil {
		a.op.Record("", err)
		return nil, err
	}
	a.op.Record(snap.ID, nil)
	return snap, nil
}

// Delete removes a snapshot, repairing the snapshots that link to it.
func (a *SSTApp) Delete(id string) error {
	if err := a.persistOperation(id); err != nil {
		return err
	}
	err := a.registry.Delete(id)
	a.op.Record(id, err)
	return err
}

// RestoreSaves copies a snapshot's saves back into the configured saves
// directory. Returns the number of bytes copied.
func (a *SSTApp) RestoreSaves(ctx context.Context, id string, observer sst.Observer) (int64, error) {
	if a.cfg.SavesPath == "" {
		return 0, fmt.Errorf("saves_path is not set")
	}
	if err := a.persistOperation(id); err != nil {
		return 0, err
	}
	n, err := a.registry.RestoreSaves(ctx, id, a.cfg.SavesPath, observer)
	a.op.Record(id, err)
	return n, err
}

// Snapshots returns every loaded snapshot, oldest first.
func (a *SSTApp) Snapshots() []*sst.Snapshot {
	return a.registry.Snapshots()
}

// Snapshot returns the snapshot with the given id.
func (a *SSTApp) Snapshot(id string) (*sst.Snapshot, error) {
	return a.registry.Get(id)
}

// GetHistory returns the most recent journaled operations.
func (a *SSTApp) GetHistory(limit int) ([]*database.Operation, error) {
	return a.db.ListOperations(limit)
}

// Close finishes the journal entry of a persisted operation and closes all
// resources.
func (a *SSTApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.SnapshotID, a.op.Err); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
