package sst

import (
	"path"
	"strings"
)

// Dependency points at the identical file stored in another snapshot.
type Dependency struct {
	SnapshotID string
	Path       string // relative path inside the owner's game tree
}

// FileGroup is the copy plan for one root. Paths are relative to the root and
// slash-separated. A file is either in FilesToCopy or in Dependencies, never both.
type FileGroup struct {
	dirs     []string
	dirIndex map[string]int

	files     []string
	fileIndex PathSet

	checksumIndex map[string]string
	fileChecksums map[string]string
	dependencies  map[string]Dependency

	// Version is set when a recognised executable was read.
	Version *VersionInfo
}

func NewFileGroup() *FileGroup {
	return &FileGroup{
		dirIndex:      make(map[string]int),
		fileIndex:     make(PathSet),
		checksumIndex: make(map[string]string),
		fileChecksums: make(map[string]string),
		dependencies:  make(map[string]Dependency),
	}
}

func normalizeRel(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	if p == "." || p == "/" {
		return ""
	}
	return strings.TrimPrefix(p, "/")
}

// isAncestor reports whether dir a strictly contains b, compared by path component.
func isAncestor(a, b string) bool {
	return strings.HasPrefix(b, a+"/")
}

// AddDirectory records a directory that must exist in the destination.
// Only the deepest directories are kept; creating them creates their parents.
func (g *FileGroup) AddDirectory(dir string) {
	dir = normalizeRel(dir)
	if dir == "" {
		return
	}
	if _, ok := g.dirIndex[dir]; ok {
		return
	}
	for i, existing := range g.dirs {
		if isAncestor(dir, existing) {
			return
		}
		if isAncestor(existing, dir) {
			delete(g.dirIndex, existing)
			g.dirs[i] = dir
			g.dirIndex[dir] = i
			return
		}
	}
	g.dirIndex[dir] = len(g.dirs)
	g.dirs = append(g.dirs, dir)
}

func (g *FileGroup) contains(p string) bool {
	if g.fileIndex.Has(p) {
		return true
	}
	_, ok := g.dependencies[p]
	return ok
}

// AddFile schedules a physical copy of file. An empty checksum means the
// file was not hashed. Returns false if the path is already planned.
func (g *FileGroup) AddFile(file, checksum string) bool {
	file = normalizeRel(file)
	if file == "" || g.contains(file) {
		return false
	}
	g.AddDirectory(path.Dir(file))
	g.fileIndex.Add(file)
	g.files = append(g.files, file)
	if checksum != "" {
		g.fileChecksums[file] = checksum
		if _, ok := g.checksumIndex[checksum]; !ok {
			g.checksumIndex[checksum] = file
		}
	}
	return true
}

// AddDependency records that file will be hardlinked to dep instead of copied.
// Returns false if the path is already planned.
func (g *FileGroup) AddDependency(file string, dep Dependency, checksum string) bool {
	file = normalizeRel(file)
	if file == "" || g.contains(file) {
		return false
	}
	g.AddDirectory(path.Dir(file))
	g.dependencies[file] = dep
	if checksum != "" {
		g.fileChecksums[file] = checksum
	}
	return true
}

// NeededDirectories returns the directories to create, in insertion order.
func (g *FileGroup) NeededDirectories() []string {
	return append([]string(nil), g.dirs...)
}

// FilesToCopy returns the files needing a physical copy, in insertion order.
func (g *FileGroup) FilesToCopy() []string {
	return append([]string(nil), g.files...)
}

// Dependencies returns a copy of the planned hardlinks keyed by path.
func (g *FileGroup) Dependencies() map[string]Dependency {
	out := make(map[string]Dependency, len(g.dependencies))
	for k, v := range g.dependencies {
		out[k] = v
	}
	return out
}

// ChecksumIndex maps each checksum to the first copied path that had it.
func (g *FileGroup) ChecksumIndex() map[string]string {
	return copyStrings(g.checksumIndex)
}

// FileChecksums maps every hashed path, copied or linked, to its checksum.
func (g *FileGroup) FileChecksums() map[string]string {
	return copyStrings(g.fileChecksums)
}

// Len returns the number of planned files.
func (g *FileGroup) Len() int {
	return len(g.files) + len(g.dependencies)
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
