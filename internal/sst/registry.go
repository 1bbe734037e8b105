package sst

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxDepth bounds directory recursion when indexing.
const DefaultMaxDepth = 16

const loadConcurrency = 4

// RegistryConfig holds the collaborators of a Registry.
type RegistryConfig struct {
	Root     string // directory holding one subdirectory per snapshot
	MaxDepth int    // 0 or less means DefaultMaxDepth

	Indexer Indexer
	Planner *Planner
	Copier  Copier
	Links   LinkCreator
	Headers HeaderReader // optional

	Logger Logger
	Clock  Clock
	IDs    IDGenerator
}

// LoadWarning describes a snapshot directory that could not be loaded.
type LoadWarning struct {
	Dir string
	Err error
}

func (w LoadWarning) Error() string {
	return fmt.Sprintf("%s: %v", w.Dir, w.Err)
}

// Registry owns the set of snapshots stored under a root directory and the
// dedup index derived from them.
type Registry struct {
	root     string
	maxDepth int

	indexer Indexer
	planner *Planner
	copier  Copier
	links   LinkCreator
	headers HeaderReader

	logger Logger
	clock  Clock
	ids    IDGenerator

	// opMu serializes Create, Delete and RestoreSaves.
	opMu sync.Mutex

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	index     *DedupIndex
}

// NewRegistry creates a Registry rooted at cfg.Root, creating the directory
// if needed. Call Load to pick up existing snapshots.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("registry root is required")
	}
	if cfg.Indexer == nil || cfg.Planner == nil || cfg.Copier == nil || cfg.Links == nil {
		return nil, fmt.Errorf("registry requires an indexer, planner, copier and link creator")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating registry root: %w", err)
	}
	r := &Registry{
		root:      cfg.Root,
		maxDepth:  cfg.MaxDepth,
		indexer:   cfg.Indexer,
		planner:   cfg.Planner,
		copier:    cfg.Copier,
		links:     cfg.Links,
		headers:   cfg.Headers,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		ids:       cfg.IDs,
		snapshots: make(map[string]*Snapshot),
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}
	if r.logger == nil {
		r.logger = NewNopLogger()
	}
	if r.clock == nil {
		r.clock = RealClock{}
	}
	if r.ids == nil {
		r.ids = UUIDGenerator{}
	}
	return r, nil
}

// Root returns the registry directory.
func (r *Registry) Root() string { return r.root }

func (r *Registry) snapshotDir(id string) string {
	return filepath.Join(r.root, id)
}

// GamePath returns the stored location of a game file in snapshot id.
func (r *Registry) GamePath(id, rel string) string {
	return filepath.Join(r.root, id, GameDir, filepath.FromSlash(rel))
}

// Snapshots returns copies of all snapshots, oldest first.
func (r *Registry) Snapshots() []*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Snapshot, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		out = append(out, s.Clone())
	}
	sortSnapshots(out)
	return out
}

// Get returns a copy of the snapshot with the given ID.
func (r *Registry) Get(id string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	return s.Clone(), nil
}

// Index returns the current dedup index. The returned value is immutable.
func (r *Registry) Index() *DedupIndex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index
}

// replaceLocked swaps in a new snapshot set and rebuilds the index.
// Caller must hold r.mu for writing.
func (r *Registry) replaceLocked(snapshots map[string]*Snapshot) {
	list := make([]*Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		list = append(list, s)
	}
	r.snapshots = snapshots
	r.index = BuildDedupIndex(list)
}

// Load scans the registry root and replaces the in-memory snapshot set with
// what is found on disk. Directories without a valid record are skipped and
// reported as warnings.
func (r *Registry) Load(ctx context.Context) ([]LoadWarning, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("reading registry root: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dirs = append(dirs, e.Name())
	}

	loaded := make([]*Snapshot, len(dirs))
	failures := make([]error, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, name := range dirs {
		g.Go(func() error {
			if err := CheckCancelled(gctx); err != nil {
				return err
			}
			loaded[i], failures[i] = r.loadSnapshot(name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}

	var warnings []LoadWarning
	snapshots := make(map[string]*Snapshot, len(dirs))
	for i, name := range dirs {
		if failures[i] != nil {
			r.logger.Warn("skipping snapshot directory", "dir", name, "error", failures[i])
			warnings = append(warnings, LoadWarning{Dir: name, Err: failures[i]})
			continue
		}
		snapshots[name] = loaded[i]
	}

	r.mu.Lock()
	r.replaceLocked(snapshots)
	r.mu.Unlock()

	r.logger.Info("registry loaded", "snapshots", len(snapshots), "skipped", len(warnings))
	return warnings, nil
}

func (r *Registry) loadSnapshot(id string) (*Snapshot, error) {
	dir := r.snapshotDir(id)
	data, err := os.ReadFile(filepath.Join(dir, RecordFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading record: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("reading record: %w", err)
	}
	s, err := UnmarshalRecord(id, data)
	if err != nil {
		return nil, err
	}
	s.SaveHeaders = r.readSaveHeaders(dir)
	return s, nil
}

// readSaveHeaders parses every file under the snapshot's saves directory.
// Files that are not valid saves are skipped.
func (r *Registry) readSaveHeaders(dir string) []*SaveHeader {
	if r.headers == nil {
		return nil
	}
	savesRoot := filepath.Join(dir, SavesDir)
	var headers []*SaveHeader
	err := filepath.WalkDir(savesRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == savesRoot {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		h, err := r.headers.ReadHeader(p)
		if err != nil {
			r.logger.Debug("not a save file", "path", p, "error", err)
			return nil
		}
		rel, _ := relPath(savesRoot, p)
		if slot, _, ok := strings.Cut(rel, "/"); ok {
			h.Slot = slot
		}
		h.Filename = filepath.Base(p)
		headers = append(headers, h)
		return nil
	})
	if err != nil {
		r.logger.Warn("reading save headers", "dir", dir, "error", err)
	}
	return headers
}

// renameFile is os.Rename; tests replace it to fail specific commits.
var renameFile = os.Rename

// writeRecord persists s to its directory via a temp file and rename.
func writeRecord(dir string, s *Snapshot) error {
	tmp, err := stageRecord(dir, s)
	if err != nil {
		return err
	}
	if err := renameFile(tmp, filepath.Join(dir, RecordFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing record: %w", err)
	}
	return nil
}

// stageRecord writes s next to its final record location and returns the
// temp file path.
func stageRecord(dir string, s *Snapshot) (string, error) {
	data, err := s.MarshalRecord()
	if err != nil {
		return "", err
	}
	return stageBytes(dir, data)
}

func stageBytes(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return "", fmt.Errorf("staging record: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("staging record: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("syncing record: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("closing record: %w", err)
	}
	return tmp, nil
}

func sortedIDs(m map[string]*Snapshot) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
