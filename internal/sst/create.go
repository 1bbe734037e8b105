package sst

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Create takes a new snapshot of gameRoot and savesRoot. Game files already
// stored by an earlier snapshot are hardlinked instead of copied. An empty
// savesRoot skips the saves tree. The snapshot is either fully created and
// registered or, on any failure, its directory is removed.
func (r *Registry) Create(ctx context.Context, gameRoot, savesRoot string, observer Observer) (snap *Snapshot, err error) {
	if !r.opMu.TryLock() {
		return nil, ErrBusy
	}
	defer r.opMu.Unlock()

	if observer == nil {
		observer = NopObserver{}
	}
	defer observer.StepChanged(StepIdle, 0)

	id := r.ids.New()
	dir := r.snapshotDir(id)
	if _, err := os.Lstat(dir); err == nil {
		return nil, fmt.Errorf("snapshot directory %s already exists", dir)
	}
	r.logger.Info("creating snapshot", "id", id, "game", gameRoot, "saves", savesRoot)

	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			r.logger.Error("removing incomplete snapshot", "id", id, "error", rmErr)
		}
		r.logger.Warn("snapshot creation failed", "id", id, "error", err)
	}()

	game, err := r.planRoot(ctx, gameRoot, true, r.Index(), observer)
	if err != nil {
		return nil, fmt.Errorf("planning game files: %w", err)
	}
	saves := NewFileGroup()
	if savesRoot != "" {
		saves, err = r.planRoot(ctx, savesRoot, false, nil, observer)
		if err != nil {
			return nil, fmt.Errorf("planning save files: %w", err)
		}
	}

	observer.StepChanged(StepCopyingGame, len(game.FilesToCopy()))
	gameBytes, err := r.copier.CopyGroup(ctx, game, gameRoot, filepath.Join(dir, GameDir), observer)
	if err != nil {
		return nil, fmt.Errorf("copying game files: %w", err)
	}

	snap = NewSnapshot(id)
	if err := r.linkDependencies(ctx, id, game, snap); err != nil {
		return nil, err
	}

	if savesRoot != "" {
		observer.StepChanged(StepCopyingSaves, len(saves.FilesToCopy()))
		savesBytes, err := r.copier.CopyGroup(ctx, saves, savesRoot, filepath.Join(dir, SavesDir), observer)
		if err != nil {
			return nil, fmt.Errorf("copying save files: %w", err)
		}
		gameBytes += savesBytes
	}
	if err := CheckCancelled(ctx); err != nil {
		return nil, err
	}

	snap.Branch = BranchFromVersion(game.Version)
	if game.Version != nil {
		snap.Build = game.Version.Build
	}
	snap.CreatedAt = r.clock.Now().UTC()
	snap.TotalSize = gameBytes
	snap.Checksums = game.FileChecksums()
	snap.SaveHeaders = r.readSaveHeaders(dir)

	if err := writeRecord(dir, snap); err != nil {
		return nil, fmt.Errorf("writing snapshot record: %w", err)
	}

	r.mu.Lock()
	next := make(map[string]*Snapshot, len(r.snapshots)+1)
	for k, v := range r.snapshots {
		next[k] = v
	}
	next[id] = snap
	r.replaceLocked(next)
	r.mu.Unlock()

	owners, shared := snap.DependencyCount()
	r.logger.Info("snapshot created",
		"id", id,
		"branch", snap.Branch,
		"build", snap.Build,
		"size", snap.TotalSize,
		"owners", owners,
		"shared", shared,
	)
	return snap.Clone(), nil
}

func (r *Registry) planRoot(ctx context.Context, root string, dedup bool, index *DedupIndex, observer Observer) (*FileGroup, error) {
	entries, err := r.indexer.Index(ctx, root, r.maxDepth)
	if err != nil {
		return nil, err
	}
	return r.planner.Plan(ctx, root, entries, dedup, index, observer)
}

// linkDependencies hardlinks every planned dependency into the new snapshot
// and records it on snap.
func (r *Registry) linkDependencies(ctx context.Context, id string, group *FileGroup, snap *Snapshot) error {
	deps := group.Dependencies()
	paths := make([]string, 0, len(deps))
	for p := range deps {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := CheckCancelled(ctx); err != nil {
			return err
		}
		dep := deps[p]
		target := r.GamePath(dep.SnapshotID, dep.Path)
		link := r.GamePath(id, p)
		if err := r.link(link, target); err != nil {
			return fmt.Errorf("linking %s: %w", p, err)
		}
		snap.AddDependency(dep.SnapshotID, p)
	}
	return nil
}

// link creates newPath as a hardlink of existing, creating parent
// directories as needed.
func (r *Registry) link(newPath, existing string) error {
	if _, err := os.Stat(existing); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", existing, ErrLinkTargetMissing)
		}
		return fmt.Errorf("checking link target: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("creating link directory: %w", err)
	}
	return r.links.CreateHardLink(newPath, existing)
}
