package sst

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Storage layout inside a snapshot directory.
const (
	GameDir    = "game"
	SavesDir   = "saves"
	RecordFile = "backup.json"
)

// Branch is the release channel a game installation belongs to.
type Branch string

const (
	BranchUnknown      Branch = "unknown"
	BranchStable       Branch = "stable"
	BranchExperimental Branch = "experimental"
)

// BranchFromVersion derives the release channel from an executable product
// version. Stable builds carry an "-ea-" marker, e.g.
// "++FactoryGame+rel-main-ea-bu1-slim-CL-109075".
func BranchFromVersion(info *VersionInfo) Branch {
	switch {
	case info == nil || info.Version == "":
		return BranchUnknown
	case strings.Contains(info.Version, "-ea-"):
		return BranchStable
	default:
		return BranchExperimental
	}
}

func (b Branch) valid() bool {
	switch b {
	case BranchUnknown, BranchStable, BranchExperimental:
		return true
	}
	return false
}

// PathSet is a set of slash-separated relative paths.
type PathSet map[string]struct{}

func (s PathSet) Add(path string) bool {
	if _, ok := s[path]; ok {
		return false
	}
	s[path] = struct{}{}
	return true
}

func (s PathSet) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Sorted returns the members in lexical order.
func (s PathSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SaveHeader is the metadata parsed from the start of a save file.
type SaveHeader struct {
	Slot          string // save slot directory the file lives in
	Filename      string
	HeaderVersion int32
	SaveVersion   int32
	BuildVersion  int32
	SessionName   string
	StartLocation string
	PlayTime      time.Duration
	SaveDate      time.Time
}

// Snapshot is the durable record of one backup. Dependencies maps another
// snapshot's ID to the game paths whose bytes live in that snapshot's storage.
type Snapshot struct {
	ID           string
	Branch       Branch
	Build        int
	CreatedAt    time.Time
	TotalSize    int64
	Checksums    map[string]string
	Dependencies map[string]PathSet

	// SaveHeaders is re-derived from the saves subtree on every load.
	SaveHeaders []*SaveHeader
}

// NewSnapshot creates an empty snapshot record.
func NewSnapshot(id string) *Snapshot {
	return &Snapshot{
		ID:           id,
		Branch:       BranchUnknown,
		Checksums:    make(map[string]string),
		Dependencies: make(map[string]PathSet),
	}
}

// AddDependency records that path is stored in the snapshot owner.
func (s *Snapshot) AddDependency(owner, path string) bool {
	set, ok := s.Dependencies[owner]
	if !ok {
		set = make(PathSet)
		s.Dependencies[owner] = set
	}
	return set.Add(path)
}

// DependsOn reports whether any of this snapshot's files live in owner.
func (s *Snapshot) DependsOn(owner string) bool {
	return len(s.Dependencies[owner]) > 0
}

// Files returns the game paths physically owned by this snapshot, sorted.
func (s *Snapshot) Files() []string {
	shared := make(PathSet)
	for _, paths := range s.Dependencies {
		for p := range paths {
			shared.Add(p)
		}
	}
	var files []string
	for p := range s.Checksums {
		if !shared.Has(p) {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	return files
}

// DependencyCount returns the number of owner snapshots and shared paths.
func (s *Snapshot) DependencyCount() (owners, paths int) {
	for _, set := range s.Dependencies {
		if len(set) == 0 {
			continue
		}
		owners++
		paths += len(set)
	}
	return owners, paths
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Checksums = make(map[string]string, len(s.Checksums))
	for k, v := range s.Checksums {
		c.Checksums[k] = v
	}
	c.Dependencies = make(map[string]PathSet, len(s.Dependencies))
	for owner, set := range s.Dependencies {
		cp := make(PathSet, len(set))
		for p := range set {
			cp.Add(p)
		}
		c.Dependencies[owner] = cp
	}
	if s.SaveHeaders != nil {
		c.SaveHeaders = make([]*SaveHeader, len(s.SaveHeaders))
		for i, h := range s.SaveHeaders {
			hc := *h
			c.SaveHeaders[i] = &hc
		}
	}
	return &c
}

// record is the persisted form of a Snapshot. The ID is the directory name
// and SaveHeaders are recomputed, so neither is stored.
type record struct {
	Branch       Branch              `json:"branch"`
	Build        int                 `json:"build"`
	CreatedAt    time.Time           `json:"created_at"`
	TotalSize    int64               `json:"total_size"`
	Checksums    map[string]string   `json:"checksums"`
	Dependencies map[string][]string `json:"dependencies"`
}

// MarshalRecord encodes the persisted fields of s as JSON.
func (s *Snapshot) MarshalRecord() ([]byte, error) {
	rec := record{
		Branch:       s.Branch,
		Build:        s.Build,
		CreatedAt:    s.CreatedAt.UTC(),
		TotalSize:    s.TotalSize,
		Checksums:    s.Checksums,
		Dependencies: make(map[string][]string, len(s.Dependencies)),
	}
	if rec.Checksums == nil {
		rec.Checksums = map[string]string{}
	}
	for owner, set := range s.Dependencies {
		if len(set) == 0 {
			continue
		}
		rec.Dependencies[owner] = set.Sorted()
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a persisted record for the snapshot with the given ID.
func UnmarshalRecord(id string, data []byte) (*Snapshot, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding snapshot record: %w", err)
	}
	if rec.Branch == "" {
		rec.Branch = BranchUnknown
	}
	if !rec.Branch.valid() {
		return nil, fmt.Errorf("invalid branch %q", rec.Branch)
	}
	if rec.CreatedAt.IsZero() {
		return nil, fmt.Errorf("record has no creation time")
	}
	if rec.TotalSize < 0 {
		return nil, fmt.Errorf("negative total size %d", rec.TotalSize)
	}

	s := NewSnapshot(id)
	s.Branch = rec.Branch
	s.Build = rec.Build
	s.CreatedAt = rec.CreatedAt.UTC()
	s.TotalSize = rec.TotalSize
	for p, sum := range rec.Checksums {
		s.Checksums[p] = sum
	}
	for owner, paths := range rec.Dependencies {
		if owner == id {
			return nil, fmt.Errorf("snapshot depends on itself")
		}
		for _, p := range paths {
			s.AddDependency(owner, p)
		}
	}
	return s, nil
}
