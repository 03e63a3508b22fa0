// Command chordlet-repl is an interactive terminal front end for chordlet.
// Terminals only report key presses, so alphabet keys typed within the
// configured chord window are treated as one chord. When stdout is
// redirected, a TOML trace of every session event is written to it.
//
// Usage:
//
//	./chordlet-repl               # interactive
//	./chordlet-repl > trace.toml  # screen on the tty, trace to file
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/term"

	chordlet "github.com/Paranoid-AF/chordlet"
	"github.com/Paranoid-AF/chordlet/service"
	"github.com/Paranoid-AF/chordlet/session"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := chordlet.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range chordlet.ValidateConfig(cfg) {
		fmt.Fprintf(os.Stderr, "config: %s\n", w)
	}

	t, err := OpenTerminal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer t.Close()

	tty := t.Tty()

	stack := service.NewStack(cfg, chordlet.ResolveUserID(cfg))
	defer stack.Close()

	opts := session.OptionsFromConfig(cfg)
	opts.OnChange = func(v chordlet.View) { renderView(tty, v) }
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		tw := newTraceWriter(termWriter(os.Stdout))
		opts.OnTrace = func(tr session.Trace) {
			if err := tw.Write(tr); err != nil {
				slog.Debug("trace write failed", "error", err)
			}
		}
	}

	sess := session.New(opts, session.NewServices(stack))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	renderView(tty, chordlet.View{})

	alphabet := make(map[string]bool, len(cfg.Input.Alphabet))
	for _, k := range cfg.Input.Alphabet {
		alphabet[k] = true
	}
	chorder := newWindowChorder(cfg.ChordWindow(), sess)

	in := bufio.NewReader(tty)
	for {
		key, err := readKey(in)
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(tty, "read error: %v\r\n", err)
			break
		}
		if handleKey(key, alphabet, chorder, sess) {
			break
		}
	}
	chorder.Flush()
}

// keyTarget is the part of a session the key loop drives.
type keyTarget interface {
	keySink
	AcceptIndex(i int) error
	Finish() error
}

// handleKey applies one terminal key to s and reports whether the REPL
// should exit. Chord keys go through c; every other key first completes the
// chord being held so events reach the session in typing order.
func handleKey(key string, alphabet map[string]bool, c *windowChorder, s keyTarget) (quit bool) {
	if alphabet[key] {
		c.Press(key)
		return false
	}

	switch key {
	case "":
		return false
	case keyInterrupt, keyEOF:
		return true
	}

	c.Flush()
	switch key {
	case keyTab:
		s.Finish()
	case chordlet.KeySpace, chordlet.KeyEnter, chordlet.KeyBackspace:
		s.KeyDown(key)
		s.KeyUp(key)
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= 9 {
			s.AcceptIndex(n - 1)
		}
	}
	return false
}
