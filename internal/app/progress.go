package app

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"sst-go/internal/sst"
)

// ProgressRenderer prints snapshot progress. Step changes are always
// printed on their own line. Per-file progress is redrawn in place only when
// live is set, which callers do for terminals.
type ProgressRenderer struct {
	w    io.Writer
	live bool

	mu      sync.Mutex
	items   int
	name    string
	ordinal int
	drawn   bool
}

var _ sst.Observer = (*ProgressRenderer)(nil)

// NewProgressRenderer creates a renderer writing to w.
func NewProgressRenderer(w io.Writer, live bool) *ProgressRenderer {
	return &ProgressRenderer{w: w, live: live}
}

// NewTerminalProgress creates a renderer for f that draws live progress only
// when f is a terminal.
func NewTerminalProgress(f *os.File) *ProgressRenderer {
	return NewProgressRenderer(f, term.IsTerminal(int(f.Fd())))
}

func (p *ProgressRenderer) StepChanged(step sst.Step, items int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endLine()
	p.items, p.name, p.ordinal = items, "", 0
	if step == sst.StepIdle {
		return
	}
	fmt.Fprintf(p.w, "%s: %s file(s)\n", step, humanize.Comma(int64(items)))
}

func (p *ProgressRenderer) FileStarted(name string, ordinal int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name, p.ordinal = name, ordinal
}

func (p *ProgressRenderer) FileProgress(pr sst.Progress) {
	if !p.live {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// \r returns to column 0 and \x1b[K clears what the previous draw left.
	fmt.Fprintf(p.w, "\r\x1b[K[%d/%d] %s  %s / %s",
		p.ordinal, p.items, p.name,
		humanize.IBytes(uint64(max(pr.Done, 0))), humanize.IBytes(uint64(max(pr.Total, 0))))
	p.drawn = true
}

// endLine terminates a live progress line. Callers hold p.mu.
func (p *ProgressRenderer) endLine() {
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}
