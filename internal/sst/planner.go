package sst

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
)

// Planner turns an indexed tree into a FileGroup, deciding per file whether
// to copy it or link it to content already held by another snapshot.
type Planner struct {
	hasher      Hasher
	versions    VersionReader
	executables map[string]bool
	logger      Logger
}

// NewPlanner creates a Planner. Files whose base name matches one of
// executables (case-insensitively) are read for version information.
func NewPlanner(hasher Hasher, versions VersionReader, executables []string, logger Logger) *Planner {
	if logger == nil {
		logger = NewNopLogger()
	}
	names := make(map[string]bool, len(executables))
	for _, n := range executables {
		names[strings.ToLower(n)] = true
	}
	return &Planner{
		hasher:      hasher,
		versions:    versions,
		executables: names,
		logger:      logger,
	}
}

// Plan consumes entries produced for root and builds the copy plan. When
// dedup is true every file is hashed and matched against index.
func (p *Planner) Plan(ctx context.Context, root string, entries iter.Seq2[Entry, error], dedup bool, index *DedupIndex, observer Observer) (*FileGroup, error) {
	if observer == nil {
		observer = NopObserver{}
	}
	group := NewFileGroup()

	var files []string
	for entry, err := range entries {
		if err != nil {
			return nil, fmt.Errorf("indexing %s: %w", root, Cancelled(err))
		}
		if entry.IsDir {
			rel, err := relPath(root, entry.Path)
			if err != nil {
				return nil, err
			}
			group.AddDirectory(rel)
			continue
		}
		files = append(files, entry.Path)
	}

	observer.StepChanged(StepIndexing, len(files))

	for i, file := range files {
		if err := CheckCancelled(ctx); err != nil {
			return nil, err
		}
		rel, err := relPath(root, file)
		if err != nil {
			return nil, err
		}

		if p.executables[strings.ToLower(filepath.Base(file))] && p.versions != nil {
			info, err := p.versions.ReadVersion(file)
			if err != nil {
				p.logger.Debug("no version information", "path", file, "error", err)
			} else {
				group.Version = &info
			}
		}

		if !dedup {
			group.AddFile(rel, "")
			continue
		}

		observer.FileStarted(rel, i+1)
		sum, err := p.hash(ctx, file, observer.FileProgress)
		if errors.Is(err, ErrNotFound) {
			// Removed between indexing and hashing.
			p.logger.Warn("file vanished during indexing", "path", file)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", rel, err)
		}

		if entry, ok := index.Lookup(sum); ok && compatiblePath(file, entry.Path) {
			group.AddDependency(rel, Dependency{SnapshotID: entry.SnapshotID, Path: entry.Path}, sum)
			continue
		}
		group.AddFile(rel, sum)
	}
	return group, nil
}

// hash runs the hasher on its own goroutine so the caller can abandon it as
// soon as ctx is cancelled.
func (p *Planner) hash(ctx context.Context, path string, onProgress ProgressFunc) (string, error) {
	type result struct {
		sum string
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := p.hasher.HashFile(ctx, path, onProgress)
		done <- result{sum, err}
	}()
	select {
	case <-ctx.Done():
		return "", Cancelled(ctx.Err())
	case r := <-done:
		return r.sum, r.err
	}
}

// compatiblePath reports whether stored content may back the file at abs.
// Content is only shared when the stored relative path occurs inside the
// current path, which keeps identical files with unrelated roles apart.
// This is a heuristic: short stored paths can match unrelated files.
func compatiblePath(abs, stored string) bool {
	if stored == "" {
		return false
	}
	return strings.Contains(filepath.ToSlash(abs), stored)
}

func relPath(root, p string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", p, err)
	}
	return filepath.ToSlash(rel), nil
}
