package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	chordlet "github.com/Paranoid-AF/chordlet"
)

// Pseudo key names produced by readKey besides the chordlet control keys.
const (
	keyTab       = "Tab"
	keyInterrupt = "Interrupt"
	keyEOF       = "EOF"
)

// Terminal is the raw-mode tty the REPL reads keys from.
// It reads from /dev/tty so it works even when stdout is redirected.
type Terminal struct {
	tty      *os.File
	oldState *term.State
}

// OpenTerminal opens /dev/tty and switches to raw mode.
func OpenTerminal() (*Terminal, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}

	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	return &Terminal{tty: tty, oldState: old}, nil
}

// Close restores terminal state and closes the tty fd.
func (t *Terminal) Close() {
	term.Restore(int(t.tty.Fd()), t.oldState)
	t.tty.Close()
}

// Tty returns the tty file for writing the UI.
func (t *Terminal) Tty() *os.File {
	return t.tty
}

// readKey reads one key press from r. Escape sequences (arrows, function
// keys) are consumed and reported as "".
func readKey(r io.ByteReader) (string, error) {
	b, err := r.ReadByte()
	if err != nil {
		return "", err
	}

	switch b {
	case 3: // Ctrl-C
		return keyInterrupt, nil
	case 4: // Ctrl-D
		return keyEOF, nil
	case 13, 10:
		return chordlet.KeyEnter, nil
	case 127, 8: // Backspace / Ctrl-H
		return chordlet.KeyBackspace, nil
	case 9:
		return keyTab, nil
	case 27:
		return "", skipEscape(r)
	}

	if b < 32 {
		return "", nil
	}
	if b < 0xC0 {
		return string(rune(b)), nil
	}

	// Multi-byte UTF-8: read the continuation bytes.
	ch := []byte{b}
	for i := 1; i < utf8RuneLen(b); i++ {
		c, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		ch = append(ch, c)
	}
	return string(ch), nil
}

// skipEscape consumes a CSI sequence such as \x1b[A or \x1b[3~.
func skipEscape(r io.ByteReader) error {
	b, err := r.ReadByte()
	if err != nil || b != '[' {
		return err
	}
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b >= 0x40 && b <= 0x7E {
			return nil
		}
	}
}

// utf8RuneLen returns the expected byte length of a UTF-8 sequence
// from its leading byte.
func utf8RuneLen(lead byte) int {
	if lead < 0xC0 {
		return 1
	}
	if lead < 0xE0 {
		return 2
	}
	if lead < 0xF0 {
		return 3
	}
	return 4
}
