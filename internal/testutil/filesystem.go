package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"sst-go/internal/sst"
)

// WriteTree creates files under root from a map of slash-separated relative
// paths to contents. A path ending in "/" creates an empty directory.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatalf("creating %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("creating parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
	}
}

// ReadFile returns the contents of a file, failing the test on error.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// FakeLinkCreator emulates hardlinks by copying the target's bytes, so tests
// do not depend on filesystem hardlink support. Set Err to make every call
// fail. Safe for concurrent use.
type FakeLinkCreator struct {
	mu    sync.Mutex
	Err   error
	links map[string]string
}

func NewFakeLinkCreator() *FakeLinkCreator {
	return &FakeLinkCreator{links: make(map[string]string)}
}

func (f *FakeLinkCreator) CreateHardLink(newPath, existingPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	data, err := os.ReadFile(existingPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", existingPath, sst.ErrLinkTargetMissing)
		}
		return err
	}
	if err := os.WriteFile(newPath, data, 0o644); err != nil {
		return err
	}
	f.links[newPath] = existingPath
	return nil
}

// Links returns the created links as new path -> existing path.
func (f *FakeLinkCreator) Links() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.links))
	for k, v := range f.links {
		out[k] = v
	}
	return out
}

// FakeVersionReader returns a fixed version for any executable. When Err is
// set every call fails with it.
type FakeVersionReader struct {
	Info  sst.VersionInfo
	Err   error
	calls []string
	mu    sync.Mutex
}

func (f *FakeVersionReader) ReadVersion(path string) (sst.VersionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	if f.Err != nil {
		return sst.VersionInfo{}, f.Err
	}
	return f.Info, nil
}

// Calls returns the paths ReadVersion was called with.
func (f *FakeVersionReader) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// RecordingObserver captures step changes and started files.
type RecordingObserver struct {
	mu       sync.Mutex
	Steps    []sst.Step
	Started  []string
	Progress int

	// OnFileStarted, when set, runs after a file start is recorded.
	OnFileStarted func(name string)
}

func (o *RecordingObserver) StepChanged(step sst.Step, items int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Steps = append(o.Steps, step)
}

// LastStep returns the most recent step, or StepIdle before any.
func (o *RecordingObserver) LastStep() sst.Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Steps) == 0 {
		return sst.StepIdle
	}
	return o.Steps[len(o.Steps)-1]
}

func (o *RecordingObserver) FileStarted(name string, ordinal int) {
	o.mu.Lock()
	o.Started = append(o.Started, name)
	hook := o.OnFileStarted
	o.mu.Unlock()
	if hook != nil {
		hook(name)
	}
}

func (o *RecordingObserver) FileProgress(sst.Progress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Progress++
}

// SortedKeys returns the keys of m in order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	_ sst.LinkCreator   = (*FakeLinkCreator)(nil)
	_ sst.VersionReader = (*FakeVersionReader)(nil)
	_ sst.Observer      = (*RecordingObserver)(nil)
)
