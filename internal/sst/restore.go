package sst

import (
	"context"
	"fmt"
	"path/filepath"
)

// RestoreSaves copies the save files of snapshot id into savesRoot,
// overwriting files with the same name. Returns the number of bytes copied.
func (r *Registry) RestoreSaves(ctx context.Context, id, savesRoot string, observer Observer) (int64, error) {
	if !r.opMu.TryLock() {
		return 0, ErrBusy
	}
	defer r.opMu.Unlock()

	if observer == nil {
		observer = NopObserver{}
	}
	defer observer.StepChanged(StepIdle, 0)

	if _, err := r.Get(id); err != nil {
		return 0, err
	}
	src := filepath.Join(r.snapshotDir(id), SavesDir)
	group, err := r.planRoot(ctx, src, false, nil, observer)
	if err != nil {
		return 0, fmt.Errorf("planning save restore: %w", err)
	}

	observer.StepChanged(StepCopyingSaves, len(group.FilesToCopy()))
	n, err := r.copier.CopyGroup(ctx, group, src, savesRoot, observer)
	if err != nil {
		return n, fmt.Errorf("restoring saves: %w", err)
	}
	r.logger.Info("saves restored", "id", id, "files", group.Len(), "bytes", n)
	return n, nil
}
