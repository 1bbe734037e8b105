package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseIgnoreRule(t *testing.T) {
	tests := []struct {
		line   string
		want   ignoreRule
		wantOK bool
	}{
		{line: "*.log", want: ignoreRule{glob: "*.log"}, wantOK: true},
		{line: "  Saved/  ", want: ignoreRule{glob: "Saved", dirOnly: true}, wantOK: true},
		{line: "/FactoryGame.exe", want: ignoreRule{glob: "FactoryGame.exe", anchored: true}, wantOK: true},
		{line: "FactoryGame/Saved/", want: ignoreRule{glob: "FactoryGame/Saved", anchored: true, dirOnly: true}, wantOK: true},
		{line: "Engine/*.tmp", want: ignoreRule{glob: "Engine/*.tmp", anchored: true}, wantOK: true},
		{line: "", wantOK: false},
		{line: "# comment", wantOK: false},
		{line: "/", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseIgnoreRule(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("parseIgnoreRule(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(ignoreRule{})); diff != "" {
				t.Errorf("parseIgnoreRule(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		rel      string
		isDir    bool
		want     bool
	}{
		{name: "name glob at root", patterns: []string{"*.log"}, rel: "crash.log", want: true},
		{name: "name glob in subdirectory", patterns: []string{"*.log"}, rel: "FactoryGame/Saved/Logs/crash.log", want: true},
		{name: "name glob other extension", patterns: []string{"*.log"}, rel: "FactoryGame.pak", want: false},
		{name: "root ignore file", rel: IgnoreFileName, want: true},
		{name: "nested ignore file is kept", rel: "Engine/" + IgnoreFileName, want: false},
		{name: "anchored name at root", patterns: []string{"/FactoryGame.exe"}, rel: "FactoryGame.exe", want: true},
		{name: "anchored name not nested", patterns: []string{"/FactoryGame.exe"}, rel: "Engine/FactoryGame.exe", want: false},
		{name: "directory rule matches directory", patterns: []string{"FactoryGame/Saved/"}, rel: "FactoryGame/Saved", isDir: true, want: true},
		{name: "directory rule skips file of that name", patterns: []string{"FactoryGame/Saved/"}, rel: "FactoryGame/Saved", want: false},
		{name: "directory rule covers descendants", patterns: []string{"FactoryGame/Saved/"}, rel: "FactoryGame/Saved/Logs/crash.txt", want: true},
		{name: "anchored path elsewhere", patterns: []string{"FactoryGame/Saved/"}, rel: "Engine/FactoryGame/Saved", isDir: true, want: false},
		{name: "unanchored directory name at any depth", patterns: []string{"Intermediate/"}, rel: "Engine/Plugins/Intermediate/x.obj", want: true},
		{name: "path glob", patterns: []string{"Engine/*.tmp"}, rel: "Engine/shader.tmp", want: true},
		{name: "path glob does not cross directories", patterns: []string{"Engine/*.tmp"}, rel: "Engine/Shaders/shader.tmp", want: false},
		{name: "question mark", patterns: []string{"?.txt"}, rel: "a.txt", want: true},
		{name: "question mark single char", patterns: []string{"?.txt"}, rel: "ab.txt", want: false},
		{name: "character class", patterns: []string{"*.[ld]mp"}, rel: "minidump.dmp", want: true},
		{name: "malformed pattern ignored", patterns: []string{"[", "*.tmp"}, rel: "a.tmp", want: true},
		{name: "empty path", patterns: []string{"*"}, rel: "", want: false},
		{name: "native separators", patterns: []string{"FactoryGame/Saved/"}, rel: filepath.Join("FactoryGame", "Saved", "x"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewIgnoreMatcher(tt.patterns).Match(tt.rel, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.rel, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestNewIgnoreMatcher_SkipsBlankAndComments(t *testing.T) {
	m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log"})
	want := []ignoreRule{
		{glob: IgnoreFileName, anchored: true},
		{glob: "*.log"},
	}
	if diff := cmp.Diff(want, m.rules, cmp.AllowUnexported(ignoreRule{})); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads raw lines", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), IgnoreFileName)
		content := "*.log\n# comment\n\n*.tmp\nFactoryGame/Saved/\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		lines, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(lines) != 5 {
			t.Fatalf("got %d lines, want 5", len(lines))
		}
		if got := len(NewIgnoreMatcher(lines).rules); got != 4 {
			t.Errorf("parsed %d rules, want 4", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		lines, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if lines != nil {
			t.Errorf("lines = %v, want nil", lines)
		}
	})
}
