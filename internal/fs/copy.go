package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sst-go/internal/sst"
)

// OSCopier copies files on the local filesystem.
type OSCopier struct {
	logger sst.Logger
}

func NewOSCopier(logger sst.Logger) *OSCopier {
	if logger == nil {
		logger = sst.NewNopLogger()
	}
	return &OSCopier{logger: logger}
}

// CopyFile copies src to dst, replacing dst if it exists, and keeps the
// source modification time. A cancelled copy leaves the partial dst behind.
func (c *OSCopier) CopyFile(ctx context.Context, src, dst string, onProgress sst.ProgressFunc) (int64, error) {
	in, info, err := openRegular(src)
	if err != nil {
		if errors.Is(err, sst.ErrNotFound) {
			return 0, fmt.Errorf("%s: %w", src, sst.ErrSourceMissing)
		}
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("creating parent of %s: %w: %w", dst, sst.ErrIOFailure, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w: %w", dst, sst.ErrIOFailure, err)
	}

	n, err := pump(ctx, out, in, src, info.Size(), onProgress)
	if err != nil {
		out.Close()
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("closing %s: %w: %w", dst, sst.ErrIOFailure, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		c.logger.Debug("preserving modification time", "path", dst, "error", err)
	}
	return n, nil
}

// CopyGroup creates dstRoot and every needed directory, then copies the
// group's files from srcRoot in plan order.
func (c *OSCopier) CopyGroup(ctx context.Context, group *sst.FileGroup, srcRoot, dstRoot string, observer sst.Observer) (int64, error) {
	if observer == nil {
		observer = sst.NopObserver{}
	}
	if err := os.MkdirAll(dstRoot, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w: %w", dstRoot, sst.ErrIOFailure, err)
	}
	for _, dir := range group.NeededDirectories() {
		if err := os.MkdirAll(filepath.Join(dstRoot, filepath.FromSlash(dir)), 0o755); err != nil {
			return 0, fmt.Errorf("creating %s: %w: %w", dir, sst.ErrIOFailure, err)
		}
	}

	var total int64
	for i, rel := range group.FilesToCopy() {
		observer.FileStarted(rel, i+1)
		n, err := c.CopyFile(ctx,
			filepath.Join(srcRoot, filepath.FromSlash(rel)),
			filepath.Join(dstRoot, filepath.FromSlash(rel)),
			observer.FileProgress,
		)
		total += n
		if err != nil {
			return total, fmt.Errorf("copying %s: %w", rel, err)
		}
	}
	c.logger.Debug("copied file group", "src", srcRoot, "dst", dstRoot, "files", len(group.FilesToCopy()), "bytes", total)
	return total, nil
}

var _ sst.Copier = (*OSCopier)(nil)
