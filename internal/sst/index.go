package sst

import (
	"sort"
)

// IndexEntry locates stored content by checksum.
type IndexEntry struct {
	SnapshotID string
	Path       string
}

// DedupIndex maps content checksums to one stored location. It is built once
// and never modified, so it may be shared between goroutines.
type DedupIndex struct {
	entries map[string]IndexEntry
}

// BuildDedupIndex indexes every snapshot's checksums. Within a snapshot the
// first path in sorted order holds a checksum; across snapshots they are
// applied oldest first, so the newest snapshot holding a checksum wins.
func BuildDedupIndex(snapshots []*Snapshot) *DedupIndex {
	ordered := append([]*Snapshot(nil), snapshots...)
	sortSnapshots(ordered)

	ix := &DedupIndex{entries: make(map[string]IndexEntry)}
	for _, s := range ordered {
		for sum, p := range firstPaths(s.Checksums) {
			ix.entries[sum] = IndexEntry{SnapshotID: s.ID, Path: p}
		}
	}
	return ix
}

// firstPaths maps each checksum in checksums to its lowest sorted path.
func firstPaths(checksums map[string]string) map[string]string {
	paths := make([]string, 0, len(checksums))
	for p := range checksums {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	first := make(map[string]string, len(paths))
	for _, p := range paths {
		sum := checksums[p]
		if _, ok := first[sum]; !ok {
			first[sum] = p
		}
	}
	return first
}

// Lookup returns the stored location for checksum. A nil index is empty.
func (ix *DedupIndex) Lookup(checksum string) (IndexEntry, bool) {
	if ix == nil {
		return IndexEntry{}, false
	}
	e, ok := ix.entries[checksum]
	return e, ok
}

// Len returns the number of distinct checksums.
func (ix *DedupIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// sortSnapshots orders by creation time, then ID.
func sortSnapshots(s []*Snapshot) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].CreatedAt.Before(s[j].CreatedAt)
		}
		return s[i].ID < s[j].ID
	})
}
