package truetm

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// TTY owns the outer terminal: raw-mode setup and teardown, the size query,
// and the output path the renderer writes to. Nothing else touches the
// controlling terminal.
type TTY struct {
	in       *os.File
	out      *os.File
	oldState *term.State
}

// OpenTTY puts the controlling terminal into raw mode, switches to the
// alternate screen, and enables SGR mouse reporting. On failure the terminal
// is left untouched.
func OpenTTY() (*TTY, error) {
	t := &TTY{in: os.Stdin, out: os.Stdout}

	if !term.IsTerminal(int(t.in.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}

	cols, rows, err := term.GetSize(int(t.out.Fd()))
	if err != nil {
		return nil, fmt.Errorf("query terminal size: %w", err)
	}
	if cols < MinCols || rows < MinRows {
		return nil, fmt.Errorf("terminal too small: %dx%d (minimum %dx%d)", cols, rows, MinCols, MinRows)
	}

	oldState, err := term.MakeRaw(int(t.in.Fd()))
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}
	t.oldState = oldState

	if err := syscall.SetNonblock(int(t.in.Fd()), true); err != nil {
		term.Restore(int(t.in.Fd()), t.oldState)
		return nil, fmt.Errorf("set stdin nonblocking: %w", err)
	}

	// Alternate screen, hidden cursor, SGR mouse with drag tracking.
	t.WriteString("\x1b[?1049h\x1b[?25l\x1b[?1002h\x1b[?1006h")
	return t, nil
}

// Restore undoes every terminal state change: mouse off, SGR reset, cursor
// shown, alternate screen left, cooked mode back.
func (t *TTY) Restore() {
	t.WriteString("\x1b[?1006l\x1b[?1002l\x1b[0m\x1b[?25h\x1b[?1049l")
	if t.oldState != nil {
		term.Restore(int(t.in.Fd()), t.oldState)
		syscall.SetNonblock(int(t.in.Fd()), false)
		t.oldState = nil
	}
}

// Size returns the terminal dimensions as (cols, rows).
func (t *TTY) Size() (cols, rows int, err error) {
	return term.GetSize(int(t.out.Fd()))
}

// InputFd returns the input descriptor for readiness polling.
func (t *TTY) InputFd() int {
	return int(t.in.Fd())
}

// ReadInput drains available input bytes without blocking.
func (t *TTY) ReadInput(buf []byte) (int, error) {
	n, err := unix.Read(int(t.in.Fd()), buf)
	if err == unix.EAGAIN || err == unix.EINTR {
		return 0, nil
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

// Write sends bytes to the outer terminal.
func (t *TTY) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

// WriteString sends a string to the outer terminal.
func (t *TTY) WriteString(s string) (int, error) {
	return t.out.WriteString(s)
}
