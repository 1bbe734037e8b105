// Package savegame decodes the metadata header at the start of a save file.
package savegame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"

	"sst-go/internal/sst"
)

const (
	// .NET ticks are 100ns intervals since 0001-01-01 UTC.
	ticksPerSecond   = 10_000_000
	ticksEpochOffset = 62_135_596_800 // seconds from 0001-01-01 to 1970-01-01

	startLocationKey = "startloc"
)

// Reader reads save headers from files on disk.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// ReadHeader parses the header of the save file at path.
func (Reader) ReadHeader(path string) (*sst.SaveHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, sst.ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w: %w", path, sst.ErrIOFailure, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w: %w", path, sst.ErrIOFailure, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, sst.ErrNotAFile)
	}

	h, err := Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	h.Filename = filepath.Base(path)
	return h, nil
}

// Parse decodes a header from r, which holds size bytes.
func Parse(r io.Reader, size int64) (*sst.SaveHeader, error) {
	d := &decoder{r: r, remaining: size}

	h := &sst.SaveHeader{}
	h.HeaderVersion = d.readInt32()
	h.SaveVersion = d.readInt32()
	h.BuildVersion = d.readInt32()
	_ = d.readString() // world type
	props := d.readString()
	h.SessionName = d.readString()
	playSeconds := d.readInt32()
	ticks := d.readInt64()
	if d.err != nil {
		return nil, d.err
	}

	h.StartLocation = lookupProperty(props, startLocationKey)
	h.PlayTime = time.Duration(playSeconds) * time.Second
	h.SaveDate = ticksToTime(ticks)
	return h, nil
}

// lookupProperty finds key in a "?k=v?k=v" or "k=v;k=v" property string.
func lookupProperty(props, key string) string {
	props = strings.Trim(props, "\x00?")
	for _, pair := range strings.FieldsFunc(props, func(r rune) bool { return r == '?' || r == ';' }) {
		k, v, _ := strings.Cut(pair, "=")
		if k == key {
			return v
		}
	}
	return ""
}

func ticksToTime(ticks int64) time.Time {
	sec := ticks / ticksPerSecond
	nsec := (ticks % ticksPerSecond) * 100
	return time.Unix(sec-ticksEpochOffset, nsec).UTC()
}

// decoder reads little-endian fields and records the first error.
type decoder struct {
	r         io.Reader
	remaining int64
	err       error
}

func (d *decoder) read(n int64) []byte {
	if d.err != nil {
		return nil
	}
	if n > d.remaining {
		d.err = fmt.Errorf("need %d bytes, %d left: %w", n, d.remaining, sst.ErrTruncatedRecord)
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.err = fmt.Errorf("reading %d bytes: %w", n, sst.ErrTruncatedRecord)
		} else {
			d.err = fmt.Errorf("%w: %w", sst.ErrIOFailure, err)
		}
		return nil
	}
	d.remaining -= n
	return buf
}

func (d *decoder) readInt32() int32 {
	b := d.read(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (d *decoder) readInt64() int64 {
	b := d.read(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// readString reads a length-prefixed string. A negative length means the
// following -length bytes are UTF-16LE, otherwise they are UTF-8.
func (d *decoder) readString() string {
	length := int64(d.readInt32())
	if d.err != nil || length == 0 {
		return ""
	}
	wide := length < 0
	if wide {
		length = -length
	}
	b := d.read(length)
	if b == nil {
		return ""
	}
	if wide {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
		if err != nil {
			d.err = fmt.Errorf("decoding utf-16 string: %w", err)
			return ""
		}
		b = decoded
	}
	return strings.Trim(string(b), "\x00")
}

var _ sst.HeaderReader = (*Reader)(nil)
