package app

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"sst-go/internal/database"
	"sst-go/internal/sst"
)

const timeLayout = "2006-01-02 15:04:05"

// WriteSnapshotList prints one line per snapshot, oldest first.
func WriteSnapshotList(w io.Writer, snapshots []*sst.Snapshot) error {
	if len(snapshots) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots.")
		return err
	}
	for _, s := range snapshots {
		owners, paths := s.DependencyCount()
		_, err := fmt.Fprintf(w, "%s  %s  %-12s  build %-7d  %9s  %d file(s) linked from %d snapshot(s)\n",
			s.ID,
			s.CreatedAt.Local().Format(timeLayout),
			s.Branch,
			s.Build,
			humanize.IBytes(uint64(s.TotalSize)),
			paths, owners,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteSnapshotDetail prints everything known about s, including the headers
// of its save files.
func WriteSnapshotDetail(w io.Writer, s *sst.Snapshot) error {
	owners, paths := s.DependencyCount()
	fmt.Fprintf(w, "ID:        %s\n", s.ID)
	fmt.Fprintf(w, "Created:   %s\n", s.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(w, "Branch:    %s\n", s.Branch)
	fmt.Fprintf(w, "Build:     %d\n", s.Build)
	fmt.Fprintf(w, "Size:      %s (%s bytes stored)\n", humanize.IBytes(uint64(s.TotalSize)), humanize.Comma(s.TotalSize))
	fmt.Fprintf(w, "Files:     %d stored, %d linked from %d snapshot(s)\n", len(s.Files()), paths, owners)

	deps := make([]string, 0, len(s.Dependencies))
	for owner, set := range s.Dependencies {
		if len(set) > 0 {
			deps = append(deps, owner)
		}
	}
	sort.Strings(deps)
	for _, owner := range deps {
		fmt.Fprintf(w, "  %s  %d file(s)\n", owner, len(s.Dependencies[owner]))
	}

	if len(s.SaveHeaders) == 0 {
		_, err := fmt.Fprintln(w, "Saves:     none")
		return err
	}
	fmt.Fprintf(w, "Saves:     %d\n", len(s.SaveHeaders))
	for _, h := range s.SaveHeaders {
		_, err := fmt.Fprintf(w, "  %s/%s  %q at %s  played %s  saved %s  build %d\n",
			h.Slot, h.Filename,
			h.SessionName, h.StartLocation,
			formatPlayTime(h.PlayTime),
			formatSaveDate(h.SaveDate),
			h.BuildVersion,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteHistory prints journal entries as returned by the database.
func WriteHistory(w io.Writer, ops []*database.Operation) error {
	if len(ops) == 0 {
		_, err := fmt.Fprintln(w, "No operations recorded.")
		return err
	}
	for _, op := range ops {
		duration := ""
		if d := op.Duration(); d > 0 || !op.FinishedAt.IsZero() {
			duration = d.Truncate(time.Millisecond).String()
		}
		line := fmt.Sprintf("#%d  %-13s  %s  %-7s  %-8s  %s",
			op.ID,
			op.Command,
			op.StartedAt.Local().Format(timeLayout),
			op.Status,
			duration,
			op.SnapshotID,
		)
		if op.Error != "" {
			line += "  " + op.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatPlayTime(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	return fmt.Sprintf("%dh%02dm", h, m)
}

func formatSaveDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(timeLayout)
}
