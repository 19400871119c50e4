package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/nao1215/urlscan/internal/model"
)

// progressPrinter writes "[n/total] url" lines. On a terminal the line is
// rewritten in place; otherwise one line is written per URL.
type progressPrinter struct {
	mu  sync.Mutex
	w   io.Writer
	tty bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, tty: isTerminal(w)}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // File descriptors fit in int
}

// Update prints the progress for one completed row.
func (p *progressPrinter) Update(done, total int, row model.ScanRow) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tty {
		fmt.Fprintf(p.w, "[%d/%d] %s\n", done, total, row.URL)
		return
	}

	line := fmt.Sprintf("[%d/%d] %s", done, total, row.URL)
	if width := p.width(); width > 0 && len(line) > width {
		line = line[:width]
	}
	// \r returns to column 0, \x1b[K clears the rest of the line.
	fmt.Fprintf(p.w, "\r\x1b[K%s", line)
	if done == total {
		fmt.Fprintln(p.w)
	}
}

func (p *progressPrinter) width() int {
	f, ok := p.w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd())) //nolint:gosec // File descriptors fit in int
	if err != nil {
		return 0
	}
	return width - 1
}
