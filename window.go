package truetm

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// childEnvPassthrough lists the environment variables copied into hosted
// shells in addition to TERM and COLORTERM.
var childEnvPassthrough = []string{
	"HOME", "USER", "SHELL", "PATH", "LANG", "LC_ALL", "LC_CTYPE",
	"XDG_RUNTIME_DIR", "XDG_CONFIG_HOME", "XDG_DATA_HOME",
	"EDITOR", "VISUAL", "PAGER",
}

// Window is one hosted child: its PTY master, process, emulated screen, and
// tag membership. All cross-component references use the stable integer ID.
type Window struct {
	ID   int
	Tags TagSet

	Screen *Screen
	Parser *Parser

	ptmx *os.File
	fd   int
	pid  int

	// pending holds bytes the PTY refused with EAGAIN, flushed each tick.
	pending []byte

	// Exited is set once SIGCHLD reaped the process; EOF once the master
	// returned end-of-file. The window is removed when both output is
	// drained and the child is gone.
	Exited bool
	EOF    bool
}

// SpawnWindow forks a shell on a fresh PTY sized rows x cols and wires its
// output into a new screen. The child starts in cwd when non-empty.
func SpawnWindow(id int, tags TagSet, shell, childTerm, cwd string, rows, cols int) (*Window, error) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	cmd := exec.Command(shell)
	cmd.Dir = cwd
	cmd.Env = childEnv(childTerm)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", shell, err)
	}

	fd := int(ptmx.Fd())
	if err := syscall.SetNonblock(fd, true); err != nil {
		ptmx.Close()
		cmd.Process.Kill()
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}

	w := &Window{
		ID:     id,
		Tags:   tags,
		Screen: NewScreen(rows, cols, ScrollbackLines),
		ptmx:   ptmx,
		fd:     fd,
		pid:    cmd.Process.Pid,
	}
	w.Parser = NewParser(w.Screen)
	w.Screen.SetResponse(ptyWriter{w})
	return w, nil
}

// childEnv builds the hosted shell's environment.
func childEnv(childTerm string) []string {
	env := []string{
		"TERM=" + childTerm,
		"COLORTERM=truecolor",
	}
	for _, name := range childEnvPassthrough {
		if val, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+val)
		}
	}
	return env
}

// ptyWriter queues screen responses (DSR replies) onto the window's
// nonblocking write path.
type ptyWriter struct{ w *Window }

func (pw ptyWriter) Write(p []byte) (int, error) {
	pw.w.EnqueueWrite(p)
	return len(p), nil
}

// Fd returns the PTY master file descriptor for readiness polling.
func (w *Window) Fd() int {
	return w.fd
}

// Pid returns the child process id.
func (w *Window) Pid() int {
	return w.pid
}

// Cwd returns the child's current working directory, or "" if unknown.
func (w *Window) Cwd() string {
	if w.pid <= 0 {
		return ""
	}
	cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", w.pid))
	if err != nil {
		return ""
	}
	return cwd
}

// Title returns the child-set title, or "" when the child has set none.
func (w *Window) Title() string {
	if t := w.Screen.Title(); t != "" {
		return t
	}
	return ""
}

// ReadInto drains up to budget bytes from the PTY into the parser.
// Returns the byte count; EOF/EIO mark the window for reaping.
func (w *Window) ReadInto(buf []byte, budget int) int {
	total := 0
	for total < budget {
		n := len(buf)
		if remaining := budget - total; n > remaining {
			n = remaining
		}
		got, err := unix.Read(w.fd, buf[:n])
		if got > 0 {
			w.Parser.Parse(buf[:got])
			total += got
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				break
			}
			// EIO is the normal end-of-stream on Linux PTYs.
			w.EOF = true
			break
		}
		if got == 0 {
			w.EOF = true
			break
		}
		if got < n {
			break
		}
	}
	return total
}

// EnqueueWrite queues bytes for the child.
func (w *Window) EnqueueWrite(data []byte) {
	w.pending = append(w.pending, data...)
}

// HasPendingWrites reports whether queued bytes remain unflushed.
func (w *Window) HasPendingWrites() bool {
	return len(w.pending) > 0
}

// FlushWrites pushes queued bytes to the PTY without blocking; whatever the
// kernel refuses stays queued for the next tick.
func (w *Window) FlushWrites() {
	for len(w.pending) > 0 {
		n, err := unix.Write(w.fd, w.pending)
		if n > 0 {
			w.pending = w.pending[n:]
		}
		if err != nil {
			if err != unix.EAGAIN && err != unix.EINTR {
				// Dead PTY: drop the queue, the reaper handles the rest.
				w.pending = nil
			}
			return
		}
	}
}

// Resize propagates a new size to the PTY (raising SIGWINCH in the child)
// and the emulated screen.
func (w *Window) Resize(rows, cols int) error {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	w.Screen.Resize(rows, cols)
	if w.ptmx == nil {
		return nil
	}
	if err := pty.Setsize(w.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	return nil
}

// Hangup asks the child to terminate.
func (w *Window) Hangup() {
	if w.pid > 0 {
		syscall.Kill(w.pid, syscall.SIGHUP)
	}
}

// Close releases the PTY master.
func (w *Window) Close() {
	if w.ptmx != nil {
		w.ptmx.Close()
		w.ptmx = nil
	}
}

// Dead reports whether the window is finished: child reaped and output
// drained to EOF.
func (w *Window) Dead() bool {
	return w.Exited && w.EOF
}
