package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"sst-go/internal/sst"
)

// ChunkSize is the buffer size used when hashing and copying.
const ChunkSize = 64 * 1024

// progressSteps bounds how many progress notifications one file produces.
const progressSteps = 200

// openRegular opens path for reading, rejecting directories.
func openRegular(path string) (*os.File, fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%s: %w", path, sst.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("stat %s: %w: %w", path, sst.ErrIOFailure, err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("%s: %w", path, sst.ErrNotAFile)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%s: %w", path, sst.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("opening %s: %w: %w", path, sst.ErrIOFailure, err)
	}
	return f, info, nil
}

// pump copies src to dst in ChunkSize pieces, checking ctx before every
// read. Progress is reported each time at least total/progressSteps more
// bytes have been processed, and once at the end.
func pump(ctx context.Context, dst io.Writer, src io.Reader, name string, total int64, onProgress sst.ProgressFunc) (int64, error) {
	buf := make([]byte, ChunkSize)
	step := total / progressSteps
	if step < 1 {
		step = 1
	}

	var done, reported int64
	for {
		if err := sst.CheckCancelled(ctx); err != nil {
			return done, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return done, fmt.Errorf("writing %s: %w: %w", name, sst.ErrIOFailure, err)
			}
			done += int64(n)
			if onProgress != nil && done-reported >= step {
				reported = done
				onProgress(sst.Progress{Path: name, Done: done, Total: total})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return done, fmt.Errorf("reading %s: %w: %w", name, sst.ErrIOFailure, rerr)
		}
	}
	if onProgress != nil && reported != done {
		onProgress(sst.Progress{Path: name, Done: done, Total: total})
	}
	return done, nil
}
