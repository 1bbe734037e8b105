package savegame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/unicode"

	"sst-go/internal/sst"
)

// headerBuilder assembles a save header byte by byte.
type headerBuilder struct {
	bytes.Buffer
}

func (b *headerBuilder) int32(v int32) *headerBuilder {
	binary.Write(&b.Buffer, binary.LittleEndian, v)
	return b
}

func (b *headerBuilder) int64(v int64) *headerBuilder {
	binary.Write(&b.Buffer, binary.LittleEndian, v)
	return b
}

func (b *headerBuilder) str(s string) *headerBuilder {
	if s == "" {
		return b.int32(0)
	}
	data := append([]byte(s), 0)
	b.int32(int32(len(data)))
	b.Write(data)
	return b
}

func (b *headerBuilder) wide(s string) *headerBuilder {
	data, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s + "\x00"))
	if err != nil {
		panic(err)
	}
	b.int32(-int32(len(data)))
	b.Write(data)
	return b
}

// ticksFor converts t to .NET ticks.
func ticksFor(t time.Time) int64 {
	return (t.Unix()+ticksEpochOffset)*ticksPerSecond + int64(t.Nanosecond()/100)
}

func TestParse(t *testing.T) {
	saved := time.Date(2020, 3, 14, 18, 30, 5, 0, time.UTC)

	t.Run("save scenario", func(t *testing.T) {
		var b headerBuilder
		b.int32(1).int32(2).int32(12345).
			str("/Game/FactoryGame/Map/GameLevel01/Persistent_Level").
			str("?startloc=Grassland?sessionName=Save1?Visibility=SV_Private").
			str("Save1").
			int32(3600).
			int64(ticksFor(saved))
		b.Write([]byte("compressed body follows"))

		got, err := Parse(bytes.NewReader(b.Bytes()), int64(b.Len()))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		want := &sst.SaveHeader{
			HeaderVersion: 1,
			SaveVersion:   2,
			BuildVersion:  12345,
			SessionName:   "Save1",
			StartLocation: "Grassland",
			PlayTime:      time.Hour,
			SaveDate:      saved,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("utf-16 session name", func(t *testing.T) {
		var b headerBuilder
		b.int32(5).int32(21).int32(100000).
			str("world").
			str("startloc=Northern Forest;sessionName=x").
			wide("Fábrica ☃").
			int32(90).
			int64(ticksFor(saved))

		got, err := Parse(bytes.NewReader(b.Bytes()), int64(b.Len()))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if got.SessionName != "Fábrica ☃" {
			t.Errorf("SessionName = %q", got.SessionName)
		}
		if got.StartLocation != "Northern Forest" {
			t.Errorf("StartLocation = %q", got.StartLocation)
		}
		if got.PlayTime != 90*time.Second {
			t.Errorf("PlayTime = %v", got.PlayTime)
		}
	})

	t.Run("missing startloc", func(t *testing.T) {
		var b headerBuilder
		b.int32(1).int32(2).int32(3).str("w").str("?foo=bar").str("s").int32(0).int64(ticksFor(saved))
		got, err := Parse(bytes.NewReader(b.Bytes()), int64(b.Len()))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if got.StartLocation != "" {
			t.Errorf("StartLocation = %q, want empty", got.StartLocation)
		}
	})
}

func TestParse_Truncated(t *testing.T) {
	var full headerBuilder
	full.int32(1).int32(2).int32(3).str("world").str("?startloc=Grassland").str("Save1").int32(60).int64(0)
	data := full.Bytes()

	var oversize headerBuilder
	oversize.int32(1).int32(2).int32(3).int32(1 << 20)
	oversize.Write([]byte("short"))

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "inside integers", data: data[:6]},
		{name: "inside string", data: data[:20]},
		{name: "missing timestamp", data: data[:len(data)-3]},
		{name: "length exceeds data", data: oversize.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(bytes.NewReader(tt.data), int64(len(tt.data)))
			if !errors.Is(err, sst.ErrTruncatedRecord) {
				t.Errorf("Parse() error = %v, want ErrTruncatedRecord", err)
			}
		})
	}
}

func TestReader_ReadHeader(t *testing.T) {
	dir := t.TempDir()

	t.Run("sets filename", func(t *testing.T) {
		var b headerBuilder
		b.int32(1).int32(2).int32(3).str("w").str("?startloc=Dune Desert").str("s").int32(1).int64(0)
		p := filepath.Join(dir, "Save1_autosave_0.sav")
		if err := os.WriteFile(p, b.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		h, err := NewReader().ReadHeader(p)
		if err != nil {
			t.Fatalf("ReadHeader() error = %v", err)
		}
		if h.Filename != "Save1_autosave_0.sav" {
			t.Errorf("Filename = %q", h.Filename)
		}
		if h.StartLocation != "Dune Desert" {
			t.Errorf("StartLocation = %q", h.StartLocation)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewReader().ReadHeader(filepath.Join(dir, "missing.sav"))
		if !errors.Is(err, sst.ErrNotFound) {
			t.Errorf("ReadHeader() error = %v, want ErrNotFound", err)
		}
	})
}

func TestTicksToTime(t *testing.T) {
	// 2020-01-01T00:00:00Z
	const ticks = 637134336000000000
	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ticksToTime(ticks); !got.Equal(want) {
		t.Errorf("ticksToTime(%d) = %v, want %v", ticks, got, want)
	}
}
