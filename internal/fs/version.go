package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"

	"sst-go/internal/sst"
)

// DefaultExecutableNames are the game executables read for version data.
var DefaultExecutableNames = []string{"FactoryGame.exe"}

const (
	versionScanChunk = 1 << 20
	versionValueMax  = 256 // UTF-16 code units
)

var buildPattern = regexp.MustCompile(`(\d{5,})`)

// productVersionKey is the UTF-16LE, NUL-terminated key of the
// ProductVersion entry in a version resource string table.
var productVersionKey = mustEncodeUTF16("ProductVersion\x00")

// ExecutableVersionReader extracts the ProductVersion string from the
// version resource of a PE executable by scanning the file for it.
type ExecutableVersionReader struct{}

func NewExecutableVersionReader() *ExecutableVersionReader {
	return &ExecutableVersionReader{}
}

// ReadVersion returns the product version and the build number embedded in
// it. Build is 0 when the version string carries no build number.
func (ExecutableVersionReader) ReadVersion(path string) (sst.VersionInfo, error) {
	f, _, err := openRegular(path)
	if err != nil {
		return sst.VersionInfo{}, err
	}
	defer f.Close()

	chunk := make([]byte, versionScanChunk)
	var window []byte
	for {
		n, rerr := f.Read(chunk)
		window = append(window, chunk[:n]...)
		final := errors.Is(rerr, io.EOF)
		if rerr != nil && !final {
			return sst.VersionInfo{}, fmt.Errorf("reading %s: %w: %w", path, sst.ErrIOFailure, rerr)
		}

		value, discard, ok := scanProductVersion(window, final)
		if ok {
			return ParseVersion(value), nil
		}
		if final {
			return sst.VersionInfo{}, fmt.Errorf("product version in %s: %w", path, sst.ErrNotFound)
		}
		window = append(window[:0], window[discard:]...)
	}
}

// ParseVersion builds a VersionInfo from a product version string. The build
// is the first run of five or more digits.
func ParseVersion(version string) sst.VersionInfo {
	info := sst.VersionInfo{Version: version}
	if m := buildPattern.FindString(version); m != "" {
		if b, err := strconv.Atoi(m); err == nil {
			info.Build = b
		}
	}
	return info
}

// scanProductVersion looks for the ProductVersion entry in buf. When not
// found it reports how many leading bytes can be dropped before the next
// chunk is appended. Unless final, a key too close to the end of buf is left
// for the next round.
func scanProductVersion(buf []byte, final bool) (string, int, bool) {
	start := 0
	for {
		i := bytes.Index(buf[start:], productVersionKey)
		if i < 0 {
			discard := len(buf) - (len(productVersionKey) - 1)
			return "", min(max(discard, start, 0), len(buf)), false
		}
		i += start
		valueStart := i + len(productVersionKey)
		if !final && len(buf)-valueStart < versionValueMax*2+4 {
			return "", i, false
		}
		if v, ok := decodeVersionValue(buf[valueStart:]); ok {
			return v, 0, true
		}
		start = valueStart
	}
}

// decodeVersionValue reads the NUL-terminated UTF-16LE value following a key.
// Up to two zero code units of alignment padding are skipped.
func decodeVersionValue(b []byte) (string, bool) {
	for pad := 0; pad < 2 && len(b) >= 2 && b[0] == 0 && b[1] == 0; pad++ {
		b = b[2:]
	}
	end := -1
	for i := 0; i+1 < len(b) && i/2 < versionValueMax; i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			end = i
			break
		}
	}
	if end <= 0 {
		return "", false
	}
	decoded, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder().Bytes(b[:end])
	if err != nil {
		return "", false
	}
	s := strings.TrimSpace(string(decoded))
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return "", false
		}
	}
	return s, true
}

func mustEncodeUTF16(s string) []byte {
	b, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return b
}

var _ sst.VersionReader = (*ExecutableVersionReader)(nil)
