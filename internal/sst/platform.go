package sst

import (
	"context"
	"iter"
)

// Entry is a single filesystem item produced by an Indexer.
type Entry struct {
	Path  string // absolute
	IsDir bool
}

// Progress reports how far a single file has been hashed or copied.
type Progress struct {
	Path  string
	Done  int64
	Total int64
}

// ProgressFunc receives Progress notifications. It may be nil.
type ProgressFunc func(Progress)

// Indexer produces a lazy, restartable sequence of entries under a root.
type Indexer interface {
	// Index validates root and returns a sequence that walks it on every range.
	// Returns ErrNotFound or ErrNotADirectory if root is unusable.
	// Subdirectories below maxDepth are yielded instead of walked; 0 stops
	// at the root's children and a negative value means DefaultMaxDepth.
	Index(ctx context.Context, root string, maxDepth int) (iter.Seq2[Entry, error], error)
}

// Hasher computes content checksums.
type Hasher interface {
	// HashFile returns the lowercase hex digest of the file at path.
	HashFile(ctx context.Context, path string, onProgress ProgressFunc) (string, error)
}

// Copier performs physical byte copies into snapshot storage.
type Copier interface {
	// CopyFile copies a single file and returns the number of bytes written.
	CopyFile(ctx context.Context, src, dst string, onProgress ProgressFunc) (int64, error)

	// CopyGroup materializes group.NeededDirectories under dstRoot and copies
	// every path in group.FilesToCopy from srcRoot. Returns total bytes copied.
	CopyGroup(ctx context.Context, group *FileGroup, srcRoot, dstRoot string, observer Observer) (int64, error)
}

// LinkCreator creates filesystem hardlinks.
type LinkCreator interface {
	// CreateHardLink makes newPath refer to the same file as existingPath.
	// Fails if existingPath does not exist or the filesystem lacks hardlinks.
	CreateHardLink(newPath, existingPath string) error
}

// VersionInfo is the product version embedded in a game executable.
type VersionInfo struct {
	Version string
	Build   int
}

// VersionReader extracts version metadata from executables. Best effort:
// an executable without version data returns an error wrapping ErrNotFound.
type VersionReader interface {
	ReadVersion(path string) (VersionInfo, error)
}

// HeaderReader parses the metadata header of a save file.
type HeaderReader interface {
	ReadHeader(path string) (*SaveHeader, error)
}
