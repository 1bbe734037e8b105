package fs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sst-go/internal/sst"
)

// versionResource builds a minimal string table entry the way it appears in
// a PE version resource: key, NUL, alignment padding, value, NUL.
func versionResource(value string, pad bool) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x30, 0x00, 0x1c, 0x00, 0x01, 0x00}) // wLength, wValueLength, wType
	b.Write(productVersionKey)
	if pad {
		b.Write([]byte{0, 0})
	}
	b.Write(mustEncodeUTF16(value + "\x00"))
	return b.Bytes()
}

func TestExecutableVersionReader_ReadVersion(t *testing.T) {
	dir := t.TempDir()
	const stable = "++FactoryGame+rel-main-ea-bu1-slim-CL-109075"

	tests := []struct {
		name    string
		content []byte
		want    sst.VersionInfo
		wantErr error
	}{
		{
			name:    "version in small file",
			content: append([]byte("MZ\x90\x00garbage"), versionResource(stable, false)...),
			want:    sst.VersionInfo{Version: stable, Build: 109075},
		},
		{
			name:    "padded value",
			content: versionResource("++FactoryGame+dev-CL-98765", true),
			want:    sst.VersionInfo{Version: "++FactoryGame+dev-CL-98765", Build: 98765},
		},
		{
			name: "key across chunk boundary",
			content: append(bytes.Repeat([]byte{0xCC}, versionScanChunk-7),
				versionResource(stable, true)...),
			want: sst.VersionInfo{Version: stable, Build: 109075},
		},
		{
			name:    "version without build number",
			content: versionResource("1.0.0.0", false),
			want:    sst.VersionInfo{Version: "1.0.0.0"},
		},
		{
			name:    "no version resource",
			content: []byte("MZ not a versioned binary"),
			wantErr: sst.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, "FactoryGame.exe")
			if err := os.WriteFile(p, tt.content, 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := NewExecutableVersionReader().ReadVersion(p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadVersion() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadVersion() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ReadVersion() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecutableVersionReader_MissingFile(t *testing.T) {
	_, err := NewExecutableVersionReader().ReadVersion(filepath.Join(t.TempDir(), "missing.exe"))
	if !errors.Is(err, sst.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		version   string
		wantBuild int
	}{
		{"++FactoryGame+rel-main-ea-bu1-slim-CL-109075", 109075},
		{"++FactoryGame+rel-main-u3-CL-1234", 0},
		{"build 123456 and 654321", 123456},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := ParseVersion(tt.version).Build; got != tt.wantBuild {
				t.Errorf("ParseVersion(%q).Build = %d, want %d", tt.version, got, tt.wantBuild)
			}
		})
	}
}
