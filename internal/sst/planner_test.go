package sst_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sst-go/internal/fs"
	"sst-go/internal/sst"
	"sst-go/internal/testutil"
)

func plan(t *testing.T, p *sst.Planner, root string, dedup bool, index *sst.DedupIndex) *sst.FileGroup {
	t.Helper()
	entries, err := fs.NewOSIndexer(nil, nil).Index(context.Background(), root, sst.DefaultMaxDepth)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	g, err := p.Plan(context.Background(), root, entries, dedup, index, nil)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	return g
}

func seededIndex(id string, g *sst.FileGroup) *sst.DedupIndex {
	s := sst.NewSnapshot(id)
	s.CreatedAt = time.Now()
	s.Checksums = g.FileChecksums()
	return sst.BuildDedupIndex([]*sst.Snapshot{s})
}

func TestPlanner_SameContentDifferentNames(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a.bin":     "X",
		"sub/b.bin": "X",
	})
	p := sst.NewPlanner(fs.NewMD5Hasher(), nil, nil, nil)

	first := plan(t, p, root, true, nil)
	if diff := cmp.Diff([]string{"a.bin", "sub/b.bin"}, first.FilesToCopy()); diff != "" {
		t.Errorf("first FilesToCopy() mismatch (-want +got):\n%s", diff)
	}
	sum := testutil.MD5Hex([]byte("X"))
	if diff := cmp.Diff(map[string]string{"a.bin": sum, "sub/b.bin": sum}, first.FileChecksums()); diff != "" {
		t.Errorf("first FileChecksums() mismatch (-want +got):\n%s", diff)
	}
	if len(first.Dependencies()) != 0 {
		t.Errorf("first Dependencies() = %v, want none", first.Dependencies())
	}

	// The index keeps one location per checksum (a.bin, first in path
	// order). Only paths containing it may link.
	second := plan(t, p, root, true, seededIndex("first", first))
	if diff := cmp.Diff([]string{"sub/b.bin"}, second.FilesToCopy()); diff != "" {
		t.Errorf("second FilesToCopy() mismatch (-want +got):\n%s", diff)
	}
	want := map[string]sst.Dependency{"a.bin": {SnapshotID: "first", Path: "a.bin"}}
	if diff := cmp.Diff(want, second.Dependencies()); diff != "" {
		t.Errorf("second Dependencies() mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_UnchangedTreeLinksEverything(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a.bin":     "A",
		"sub/b.bin": "B",
		"empty/":    "",
	})
	p := sst.NewPlanner(fs.NewMD5Hasher(), nil, nil, nil)

	first := plan(t, p, root, true, nil)
	second := plan(t, p, root, true, seededIndex("first", first))

	if got := second.FilesToCopy(); len(got) != 0 {
		t.Errorf("FilesToCopy() = %v, want none", got)
	}
	want := map[string]sst.Dependency{
		"a.bin":     {SnapshotID: "first", Path: "a.bin"},
		"sub/b.bin": {SnapshotID: "first", Path: "sub/b.bin"},
	}
	if diff := cmp.Diff(want, second.Dependencies()); diff != "" {
		t.Errorf("Dependencies() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first.FileChecksums(), second.FileChecksums()); diff != "" {
		t.Errorf("checksums differ between plans (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"empty", "sub"}, second.NeededDirectories()); diff != "" {
		t.Errorf("NeededDirectories() mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_NoDedup(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"slot/a.sav": "1", "slot/b.sav": "2"})
	p := sst.NewPlanner(fs.NewMD5Hasher(), nil, nil, nil)
	obs := &testutil.RecordingObserver{}

	entries, err := fs.NewOSIndexer(nil, nil).Index(context.Background(), root, sst.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	g, err := p.Plan(context.Background(), root, entries, false, nil, obs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if diff := cmp.Diff([]string{"slot/a.sav", "slot/b.sav"}, g.FilesToCopy()); diff != "" {
		t.Errorf("FilesToCopy() mismatch (-want +got):\n%s", diff)
	}
	if len(g.FileChecksums()) != 0 {
		t.Errorf("FileChecksums() = %v, want none without dedup", g.FileChecksums())
	}
	if len(obs.Started) != 0 {
		t.Errorf("files hashed without dedup: %v", obs.Started)
	}
	if diff := cmp.Diff([]sst.Step{sst.StepIndexing}, obs.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_ExecutableVersion(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"FactoryGame.exe":        "exe",
		"Engine/Binaries/x.dll":  "dll",
		"factorygame.exe.config": "cfg",
	})

	t.Run("version recorded", func(t *testing.T) {
		versions := &testutil.FakeVersionReader{Info: sst.VersionInfo{Version: "++FactoryGame+rel-main-ea-CL-109075", Build: 109075}}
		p := sst.NewPlanner(fs.NewMD5Hasher(), versions, fs.DefaultExecutableNames, nil)
		g := plan(t, p, root, true, nil)
		if g.Version == nil || g.Version.Build != 109075 {
			t.Fatalf("Version = %+v, want build 109075", g.Version)
		}
		if diff := cmp.Diff([]string{filepath.Join(root, "FactoryGame.exe")}, versions.Calls()); diff != "" {
			t.Errorf("ReadVersion calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("version failure is not fatal", func(t *testing.T) {
		versions := &testutil.FakeVersionReader{Err: sst.ErrNotFound}
		p := sst.NewPlanner(fs.NewMD5Hasher(), versions, fs.DefaultExecutableNames, nil)
		g := plan(t, p, root, true, nil)
		if g.Version != nil {
			t.Errorf("Version = %+v, want nil", g.Version)
		}
		if len(g.FilesToCopy()) != 3 {
			t.Errorf("FilesToCopy() = %v", g.FilesToCopy())
		}
	})
}

func TestPlanner_FileVanishedBeforeHashing(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a.bin":        "A",
		"sub/gone.bin": "G",
		"sub/z.bin":    "Z",
	})
	entries, err := fs.NewOSIndexer(nil, nil).Index(context.Background(), root, sst.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	obs := &testutil.RecordingObserver{OnFileStarted: func(rel string) {
		if rel == "sub/gone.bin" {
			if err := os.Remove(filepath.Join(root, "sub", "gone.bin")); err != nil {
				t.Error(err)
			}
		}
	}}

	g, err := sst.NewPlanner(fs.NewMD5Hasher(), nil, nil, nil).Plan(context.Background(), root, entries, true, nil, obs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a.bin", "sub/z.bin"}, g.FilesToCopy()); diff != "" {
		t.Errorf("FilesToCopy() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := g.Dependencies()["sub/gone.bin"]; ok {
		t.Error("vanished file planned as a dependency")
	}
	if _, ok := g.FileChecksums()["sub/gone.bin"]; ok {
		t.Error("vanished file has a checksum")
	}
	if diff := cmp.Diff([]string{"a.bin", "sub/gone.bin", "sub/z.bin"}, obs.Started); diff != "" {
		t.Errorf("started files mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_Cancelled(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"a": "1", "b": "2", "c": "3"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries, err := fs.NewOSIndexer(nil, nil).Index(ctx, root, sst.DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	obs := &testutil.RecordingObserver{OnFileStarted: func(string) { cancel() }}

	_, err = sst.NewPlanner(fs.NewMD5Hasher(), nil, nil, nil).Plan(ctx, root, entries, true, nil, obs)
	if !errors.Is(err, sst.ErrOperationCancelled) {
		t.Fatalf("Plan() error = %v, want ErrOperationCancelled", err)
	}
	if len(obs.Started) != 1 {
		t.Errorf("started %d files after cancellation, want 1", len(obs.Started))
	}
}
