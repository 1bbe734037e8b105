package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"sst-go/internal/sst"
)

// OSIndexer walks the real filesystem.
type OSIndexer struct {
	patterns []string
	logger   sst.Logger
}

// NewOSIndexer creates an indexer that skips entries matching patterns and
// any pattern listed in the root's .sstignore file.
func NewOSIndexer(patterns []string, logger sst.Logger) *OSIndexer {
	if logger == nil {
		logger = sst.NewNopLogger()
	}
	return &OSIndexer{patterns: patterns, logger: logger}
}

// Index validates root and returns a pre-order walk of it. Directory entries
// are visited in lexical order. A directory yields itself only when it is
// empty or deeper than maxDepth. A maxDepth of 0 lists the root without
// descending; a negative maxDepth means DefaultMaxDepth.
func (ix *OSIndexer) Index(ctx context.Context, root string, maxDepth int) (iter.Seq2[sst.Entry, error], error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("index root %s: %w", abs, sst.ErrNotFound)
		}
		return nil, fmt.Errorf("index root %s: %w: %w", abs, sst.ErrIOFailure, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("index root %s: %w", abs, sst.ErrNotADirectory)
	}
	if maxDepth < 0 {
		maxDepth = sst.DefaultMaxDepth
	}

	return func(yield func(sst.Entry, error) bool) {
		extra, err := ParseIgnoreFile(filepath.Join(abs, IgnoreFileName))
		if err != nil {
			yield(sst.Entry{}, fmt.Errorf("%w: %w", sst.ErrIOFailure, err))
			return
		}
		w := walker{
			ctx:      ctx,
			root:     abs,
			maxDepth: maxDepth,
			matcher:  NewIgnoreMatcher(append(append([]string(nil), ix.patterns...), extra...)),
			logger:   ix.logger,
			yield:    yield,
		}
		w.walk(abs, 0)
	}, nil
}

type walker struct {
	ctx      context.Context
	root     string
	maxDepth int
	matcher  *IgnoreMatcher
	logger   sst.Logger
	yield    func(sst.Entry, error) bool
}

// walk visits dir, which sits depth levels below the root. It returns false
// once the consumer has stopped or the walk was cancelled.
func (w *walker) walk(dir string, depth int) bool {
	if err := sst.CheckCancelled(w.ctx); err != nil {
		w.yield(sst.Entry{}, err)
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return w.yield(sst.Entry{}, fmt.Errorf("reading %s: %w: %w", dir, sst.ErrIOFailure, err))
	}

	var visible []os.DirEntry
	for _, e := range entries {
		rel, err := filepath.Rel(w.root, filepath.Join(dir, e.Name()))
		if err == nil && w.matcher.Match(rel, e.IsDir()) {
			continue
		}
		visible = append(visible, e)
	}
	if len(visible) == 0 {
		return w.yield(sst.Entry{Path: dir, IsDir: true}, nil)
	}

	for _, e := range visible {
		if err := sst.CheckCancelled(w.ctx); err != nil {
			w.yield(sst.Entry{}, err)
			return false
		}
		p := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			if depth+1 > w.maxDepth {
				if !w.yield(sst.Entry{Path: p, IsDir: true}, nil) {
					return false
				}
				continue
			}
			if !w.walk(p, depth+1) {
				return false
			}
		case e.Type().IsRegular():
			if !w.yield(sst.Entry{Path: p}, nil) {
				return false
			}
		default:
			w.logger.Debug("skipping non-regular file", "path", p, "mode", e.Type().String())
		}
	}
	return true
}

var _ sst.Indexer = (*OSIndexer)(nil)
