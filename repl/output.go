package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	chordlet "github.com/Paranoid-AF/chordlet"
	"github.com/Paranoid-AF/chordlet/session"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (needed because raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err // report original length to caller
}

// traceEntry is one [[event]] table of the trace log.
type traceEntry struct {
	Time time.Time `toml:"time"`
	session.Trace
}

// traceWriter appends session traces to w as TOML array-of-tables entries,
// so a redirected log stays a valid TOML document.
type traceWriter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func newTraceWriter(w io.Writer) *traceWriter {
	return &traceWriter{w: w, now: time.Now}
}

func (tw *traceWriter) Write(tr session.Trace) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	doc := struct {
		Event []traceEntry `toml:"event"`
	}{Event: []traceEntry{{Time: tw.now(), Trace: tr}}}

	enc := toml.NewEncoder(tw.w)
	enc.Indent = ""
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(tw.w, "\n")
	return err
}

// renderView redraws the whole screen for v.
func renderView(w io.Writer, v chordlet.View) {
	var b strings.Builder

	b.WriteString("\033[2J\033[H")
	b.WriteString("chordlet repl  (1-9 accept, Tab finish word, Ctrl-C quit)\n\n")

	b.WriteString(v.Text)
	if v.Corrected {
		b.WriteString(" \033[33m(corrected)\033[0m")
	}
	b.WriteString("\n\n")

	if v.Held != "" {
		fmt.Fprintf(&b, "held: %s\n", v.Held)
	}
	if len(v.Candidates) == 0 {
		b.WriteString("(no suggestions)\n")
	} else {
		label := "suggestions"
		if v.Final {
			label = "corrections"
		}
		fmt.Fprintf(&b, "%s:", label)
		for i, c := range v.Candidates {
			if i == 9 {
				break
			}
			fmt.Fprintf(&b, "  %d. %s", i+1, c)
		}
		b.WriteString("\n")
	}

	io.WriteString(w, strings.ReplaceAll(b.String(), "\n", "\r\n"))
}
