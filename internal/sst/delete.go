package sst

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// relink restores a file in a surviving snapshot from the doomed one.
type relink struct {
	newPath  string
	existing string
}

// repairPlan is the set of changes that keep dependents of a deleted
// snapshot intact.
type repairPlan struct {
	owner   string
	updated []*Snapshot // rewritten copies of every dependent
	relinks []relink
}

// Delete removes snapshot id. Snapshots sharing files with it are repaired
// first: the first dependent by ID takes ownership of the shared files and
// the remaining dependents are pointed at it. If the repair cannot be
// completed the registry is left unchanged and ErrDeletionRepairFailed is
// returned.
func (r *Registry) Delete(id string) error {
	if !r.opMu.TryLock() {
		return ErrBusy
	}
	defer r.opMu.Unlock()

	r.mu.RLock()
	doomed, ok := r.snapshots[id]
	var dependents []*Snapshot
	if ok {
		for _, sid := range sortedIDs(r.snapshots) {
			s := r.snapshots[sid]
			if sid != id && s.DependsOn(id) {
				dependents = append(dependents, s.Clone())
			}
		}
	}
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}

	plan, err := r.planRepair(doomed, dependents)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeletionRepairFailed, err)
	}
	if err := r.applyRepair(id, plan); err != nil {
		return fmt.Errorf("%w: %w", ErrDeletionRepairFailed, err)
	}

	r.mu.Lock()
	next := make(map[string]*Snapshot, len(r.snapshots))
	for k, v := range r.snapshots {
		if k != id {
			next[k] = v
		}
	}
	for _, s := range plan.updated {
		s.SaveHeaders = next[s.ID].SaveHeaders
		next[s.ID] = s
	}
	r.replaceLocked(next)
	r.mu.Unlock()

	r.logger.Info("snapshot deleted", "id", id, "new_owner", plan.owner, "repaired", len(plan.updated))
	return nil
}

// planRepair computes the rewritten records of every dependent and the
// hardlinks needed to make the new owner self-contained. It only reads from
// the filesystem.
func (r *Registry) planRepair(doomed *Snapshot, dependents []*Snapshot) (*repairPlan, error) {
	plan := &repairPlan{}
	if len(dependents) == 0 {
		return plan, nil
	}

	owner := dependents[0]
	plan.owner = owner.ID
	inherited := owner.Dependencies[doomed.ID]

	// own brings a file shared from doomed under s's own accounting.
	own := func(s *Snapshot, p string) error {
		stored := r.GamePath(s.ID, p)
		info, err := os.Stat(stored)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist):
			src, ok := doomedSource(doomed, s.Checksums[p], p)
			if !ok {
				return fmt.Errorf("no stored copy of %s in %s", p, doomed.ID)
			}
			existing := r.GamePath(doomed.ID, src)
			info, err = os.Stat(existing)
			if err != nil {
				return fmt.Errorf("checking %s: %w", existing, err)
			}
			plan.relinks = append(plan.relinks, relink{newPath: stored, existing: existing})
		default:
			return fmt.Errorf("checking %s: %w", stored, err)
		}
		s.TotalSize += info.Size()
		return nil
	}

	for _, p := range inherited.Sorted() {
		if err := own(owner, p); err != nil {
			return nil, err
		}
	}
	delete(owner.Dependencies, doomed.ID)
	plan.updated = append(plan.updated, owner)

	for _, s := range dependents[1:] {
		for _, p := range s.Dependencies[doomed.ID].Sorted() {
			if inherited.Has(p) && owner.Checksums[p] == s.Checksums[p] {
				s.AddDependency(owner.ID, p)
				continue
			}
			if err := own(s, p); err != nil {
				return nil, err
			}
		}
		delete(s.Dependencies, doomed.ID)
		plan.updated = append(plan.updated, s)
	}
	return plan, nil
}

// doomedSource finds the path in doomed holding checksum, preferring want.
func doomedSource(doomed *Snapshot, checksum, want string) (string, bool) {
	if sum, ok := doomed.Checksums[want]; ok && (checksum == "" || sum == checksum) {
		return want, true
	}
	if checksum == "" {
		return "", false
	}
	var candidates []string
	for p, sum := range doomed.Checksums {
		if sum == checksum {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Strings(candidates)
	return candidates[0], true
}

// applyRepair performs the physical repair, then swaps every rewritten record
// into place and removes the doomed storage. Any failure restores the links,
// records and storage it already touched.
func (r *Registry) applyRepair(id string, plan *repairPlan) error {
	var created []string
	undoLinks := func() {
		for _, p := range created {
			os.Remove(p)
		}
	}
	for _, l := range plan.relinks {
		if err := r.link(l.newPath, l.existing); err != nil {
			undoLinks()
			return fmt.Errorf("relinking %s: %w", l.newPath, err)
		}
		created = append(created, l.newPath)
	}

	previous := make(map[string][]byte, len(plan.updated))
	for _, s := range plan.updated {
		data, err := os.ReadFile(filepath.Join(r.snapshotDir(s.ID), RecordFile))
		if err != nil {
			undoLinks()
			return fmt.Errorf("reading record of %s: %w", s.ID, err)
		}
		previous[s.ID] = data
	}

	staged := make(map[string]string, len(plan.updated))
	discard := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}
	for _, s := range plan.updated {
		tmp, err := stageRecord(r.snapshotDir(s.ID), s)
		if err != nil {
			discard()
			undoLinks()
			return fmt.Errorf("staging record of %s: %w", s.ID, err)
		}
		staged[s.ID] = tmp
	}

	// Records are committed only once the doomed storage is out of the
	// registry namespace. Load skips dot directories.
	trash := filepath.Join(r.root, ".deleting-"+id)
	if err := renameFile(r.snapshotDir(id), trash); err != nil {
		discard()
		undoLinks()
		return fmt.Errorf("moving snapshot storage: %w", err)
	}

	var committed []string
	for _, s := range plan.updated {
		final := filepath.Join(r.snapshotDir(s.ID), RecordFile)
		if err := renameFile(staged[s.ID], final); err != nil {
			r.logger.Error("committing repaired record", "id", s.ID, "error", err)
			discard()
			r.restoreRecords(committed, previous)
			undoLinks()
			if rbErr := renameFile(trash, r.snapshotDir(id)); rbErr != nil {
				r.logger.Error("restoring snapshot storage", "id", id, "error", rbErr)
			}
			return fmt.Errorf("committing record of %s: %w", s.ID, err)
		}
		delete(staged, s.ID)
		committed = append(committed, s.ID)
	}

	if err := os.RemoveAll(trash); err != nil {
		r.logger.Warn("removing deleted snapshot storage", "path", trash, "error", err)
	}
	return nil
}

// restoreRecords puts back the record bytes of ids saved before a commit.
func (r *Registry) restoreRecords(ids []string, previous map[string][]byte) {
	for _, sid := range ids {
		dir := r.snapshotDir(sid)
		tmp, err := stageBytes(dir, previous[sid])
		if err == nil {
			if err = renameFile(tmp, filepath.Join(dir, RecordFile)); err != nil {
				os.Remove(tmp)
			}
		}
		if err != nil {
			r.logger.Error("restoring record", "id", sid, "error", err)
		}
	}
}
