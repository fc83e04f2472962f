package truetm

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// App owns the whole multiplexer: the outer terminal, the window set, the
// layout, the renderer, and the single-threaded event loop that arbitrates
// between them. Everything mutates on the loop goroutine; the only other
// goroutine forwards signals into the self-pipe.
type App struct {
	tty        *TTY
	wm         *Manager
	layout     *Layout
	renderer   *Renderer
	dispatcher *Dispatcher
	logger     *log.Logger

	// copy is non-nil while the focused window is in copy mode.
	copy *CopyMode

	cols int
	rows int

	rects map[int]Rect

	shell     string
	childTerm string

	sigRead  *os.File
	sigWrite *os.File
	sigCh    chan os.Signal

	needsRedraw bool
	quitting    bool
	fatalErr    error
	statusMsg   string

	nextFrame time.Time

	// drag tracks an in-progress mouse selection.
	dragWindow int
	dragging   bool

	readBuf [4096]byte
}

// NewApp wires the application against an opened outer terminal.
func NewApp(tty *TTY, logger *log.Logger) (*App, error) {
	cols, rows, err := tty.Size()
	if err != nil {
		return nil, fmt.Errorf("query terminal size: %w", err)
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	childTerm := os.Getenv("TERM")
	if childTerm == "" || childTerm == "dumb" {
		childTerm = ChildTERM
	}

	a := &App{
		tty:       tty,
		wm:        NewManager(),
		layout:    NewLayout(),
		renderer:  NewRenderer(tty),
		logger:    logger,
		cols:      cols,
		rows:      rows,
		rects:     make(map[int]Rect),
		shell:     shell,
		childTerm: childTerm,
	}
	a.dispatcher = NewDispatcher(a)
	a.renderer.Resize(cols, rows)

	// Self-pipe: the signal goroutine writes a tag byte per signal, the
	// poll loop reads them. Signals stay level-triggered hints; the loop
	// also reaps and re-measures opportunistically.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("signal pipe: %w", err)
	}
	syscall.SetNonblock(int(r.Fd()), true)
	a.sigRead, a.sigWrite = r, w

	a.sigCh = make(chan os.Signal, 8)
	signal.Notify(a.sigCh, syscall.SIGWINCH, syscall.SIGCHLD, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for sig := range a.sigCh {
			var tag byte
			switch sig {
			case syscall.SIGWINCH:
				tag = 'w'
			case syscall.SIGCHLD:
				tag = 'c'
			default:
				tag = 'q'
			}
			a.sigWrite.Write([]byte{tag})
		}
	}()

	return a, nil
}

// Run spawns the initial shell and drives the event loop until quit.
func (a *App) Run() error {
	a.spawn()
	if a.wm.Len() == 0 {
		return fmt.Errorf("cannot start initial shell %s", a.shell)
	}

	a.nextFrame = time.Now()
	for !a.quitting {
		a.tick()
		if a.wm.Len() == 0 {
			a.quitting = true
		}
	}

	a.shutdown()
	return a.fatalErr
}

// tick runs one event-loop iteration: poll, drain input, drain PTYs, handle
// signals, reap, render on cadence, flush writes.
func (a *App) tick() {
	timeout := int(time.Until(a.nextFrame) / time.Millisecond)
	if timeout < 0 || !a.needsRedraw {
		if a.needsRedraw {
			timeout = 0
		} else {
			timeout = int(FramePeriod / time.Millisecond)
		}
	}

	fds := make([]unix.PollFd, 0, 2+a.wm.Len())
	fds = append(fds, unix.PollFd{Fd: int32(a.tty.InputFd()), Events: unix.POLLIN})
	fds = append(fds, unix.PollFd{Fd: int32(a.sigRead.Fd()), Events: unix.POLLIN})
	windows := a.wm.Windows()
	for _, w := range windows {
		fds = append(fds, unix.PollFd{Fd: int32(w.Fd()), Events: unix.POLLIN})
	}

	n, err := unix.Poll(fds, timeout)
	if err != nil && err != unix.EINTR {
		a.logger.Error("poll", "err", err)
		a.fatalErr = fmt.Errorf("poll: %w", err)
		a.quitting = true
		return
	}

	if n > 0 {
		// Input first: commands in tick T act before T's parsing and frame.
		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			a.drainInput()
		}
		if fds[1].Revents&unix.POLLIN != 0 {
			a.drainSignals()
		}
		for i, w := range windows {
			if fds[2+i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				if w.ReadInto(a.readBuf[:], ReadBudget) > 0 {
					a.needsRedraw = true
				}
				if w.EOF {
					a.needsRedraw = true
				}
			}
		}
	}

	// Safety net for lost signals.
	a.reapChildren()
	a.removeDead()

	if a.needsRedraw && !time.Now().Before(a.nextFrame) {
		a.render()
		a.nextFrame = time.Now().Add(FramePeriod)
	}

	for _, w := range a.wm.Windows() {
		if w.HasPendingWrites() {
			w.FlushWrites()
		}
	}
}

// drainInput feeds all pending outer-terminal bytes to the dispatcher.
func (a *App) drainInput() {
	var buf [4096]byte
	for {
		n, err := a.tty.ReadInput(buf[:])
		if n > 0 {
			a.dispatcher.HandleInput(buf[:n])
		}
		if n < len(buf) || err != nil {
			return
		}
	}
}

// drainSignals consumes the self-pipe and handles each flagged signal.
func (a *App) drainSignals() {
	var buf [64]byte
	var resize, quit bool
	for {
		n, err := unix.Read(int(a.sigRead.Fd()), buf[:])
		for _, b := range buf[:max(n, 0)] {
			switch b {
			case 'w':
				resize = true
			case 'q':
				quit = true
			}
		}
		if n < len(buf) || err != nil {
			break
		}
	}
	if resize {
		a.handleResize()
	}
	if quit {
		a.quit()
	}
}

// handleResize re-queries the outer size and lays everything out again.
func (a *App) handleResize() {
	cols, rows, err := a.tty.Size()
	if err != nil {
		a.logger.Warn("size query", "err", err)
		return
	}
	if cols == a.cols && rows == a.rows {
		return
	}
	a.logger.Info("resize", "cols", cols, "rows", rows)
	a.cols = cols
	a.rows = rows
	a.renderer.Resize(cols, rows)
	a.applyLayout()
}

// reapChildren collects exited children without blocking and marks their
// windows.
func (a *App) reapChildren() {
	for {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}
		for _, w := range a.wm.Windows() {
			if w.Pid() == pid {
				a.logger.Info("child exited", "window", w.ID, "pid", pid, "status", status.ExitStatus())
				w.Exited = true
				// Pull any final output the poll set may miss now.
				w.ReadInto(a.readBuf[:], ReadBudget)
				a.needsRedraw = true
			}
		}
	}
}

// removeDead drops windows whose child is reaped and output drained.
func (a *App) removeDead() {
	changed := false
	for _, w := range a.wm.Windows() {
		if !w.Dead() {
			continue
		}
		if f := a.wm.Focused(); f != nil && f.ID == w.ID && a.copy != nil {
			a.exitCopyMode()
		}
		a.wm.Remove(w.ID)
		w.Close()
		delete(a.rects, w.ID)
		changed = true
	}
	if changed {
		a.applyLayout()
	}
}

// render composes and commits one frame.
func (a *App) render() {
	frame := a.composeFrame()
	if err := a.renderer.Commit(frame); err != nil {
		a.logger.Error("render write", "err", err)
		a.fatalErr = fmt.Errorf("render write: %w", err)
		a.quitting = true
		return
	}
	for _, w := range a.wm.Visible() {
		w.Screen.ActiveBuffer().ClearAllDirty()
	}
	a.needsRedraw = false
}

// invalidate schedules a redraw.
func (a *App) invalidate() {
	a.needsRedraw = true
}

// applyLayout recomputes every visible window's rectangle and propagates
// sizes to the PTYs.
func (a *App) applyLayout() {
	visible := a.wm.Visible()
	viewport := Rect{X: 0, Y: 0, W: a.cols, H: a.rows - 1}
	rects := a.layout.Arrange(len(visible), viewport)

	a.rects = make(map[int]Rect, len(visible))
	for i, w := range visible {
		rect := rects[i]
		a.rects[w.ID] = rect
		// Content area excludes the one-row header.
		if err := w.Resize(rect.H-1, rect.W); err != nil {
			a.logger.Warn("window resize", "window", w.ID, "err", err)
		}
	}

	if a.copy != nil {
		if f := a.wm.Focused(); f != nil {
			a.copy.UpdateDimensions(f.Screen.Cols(), f.Screen.Rows(), f.Screen.Scrollback().Len())
		}
	}

	a.renderer.Invalidate()
	a.needsRedraw = true
}

// spawn creates a window on the current view, inheriting the focused child's
// working directory. Failure surfaces on the status bar, state unchanged.
func (a *App) spawn() {
	cwd := ""
	if f := a.wm.Focused(); f != nil {
		cwd = f.Cwd()
	}

	tags := a.wm.View()
	if tags == AllTags() {
		tags = SingleTag(1)
	}

	id := a.wm.NextID()
	contentH := a.rows - 2 // status bar and header
	if contentH < 1 {
		contentH = 1
	}
	w, err := SpawnWindow(id, tags, a.shell, a.childTerm, cwd, contentH, a.cols)
	if err != nil {
		a.logger.Error("spawn", "err", err)
		a.statusMsg = "spawn failed: " + err.Error()
		a.invalidate()
		return
	}
	a.logger.Info("spawned", "window", id, "pid", w.Pid())
	a.statusMsg = ""
	w.Screen.SetClipboardSink(a.forwardChildClipboard)
	a.wm.Add(w)
	if a.copy != nil {
		a.exitCopyMode()
	}
	a.applyLayout()
}

// closeFocused hangs up the focused child; the window disappears once the
// child is reaped and its output drained.
func (a *App) closeFocused() {
	if f := a.wm.Focused(); f != nil {
		f.Hangup()
	}
}

// quit requests a clean shutdown.
func (a *App) quit() {
	a.quitting = true
}

// shutdown tears everything down: hang up children, drain final output
// briefly, close masters, restore the terminal.
func (a *App) shutdown() {
	signal.Stop(a.sigCh)

	for _, w := range a.wm.Windows() {
		w.Hangup()
	}

	deadline := time.Now().Add(DrainTimeout)
	for time.Now().Before(deadline) {
		a.reapChildren()
		alive := false
		for _, w := range a.wm.Windows() {
			w.ReadInto(a.readBuf[:], ReadBudget)
			if !w.Dead() {
				alive = true
			}
		}
		if !alive {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, w := range a.wm.Windows() {
		w.Close()
	}
	a.logger.Info("shutdown")
}

// --- Input routing ---

// writeInput queues bytes for the focused child, or for every visible child
// when broadcast is on. Writes are independent and best-effort.
func (a *App) writeInput(data []byte) {
	if len(data) == 0 {
		return
	}
	if a.wm.Broadcast {
		for _, w := range a.wm.Visible() {
			w.EnqueueWrite(data)
			w.FlushWrites()
		}
		return
	}
	if f := a.wm.Focused(); f != nil {
		f.EnqueueWrite(data)
		f.FlushWrites()
	}
}

// --- Tags ---

// viewTag switches to a single-tag view, spawning a shell if it is empty.
func (a *App) viewTag(tag int) {
	a.wm.SetView(SingleTag(tag))
	if len(a.wm.Visible()) == 0 {
		a.spawn()
	}
	a.applyLayout()
}

// viewAll shows every tag at once.
func (a *App) viewAll() {
	a.wm.SetView(AllTags())
	a.applyLayout()
}

// setTag replaces the focused window's tags with a single tag.
func (a *App) setTag(tag int) {
	if f := a.wm.Focused(); f != nil {
		a.wm.SetTags(f.ID, SingleTag(tag))
		a.applyLayout()
	}
}

// toggleTag flips one tag on the focused window.
func (a *App) toggleTag(tag int) {
	if f := a.wm.Focused(); f != nil {
		a.wm.ToggleTag(f.ID, tag)
		a.applyLayout()
	}
}

// --- Copy mode ---

// enterCopyMode freezes the focused window's view under the modal overlay.
func (a *App) enterCopyMode() {
	f := a.wm.Focused()
	if f == nil || a.copy != nil {
		return
	}
	a.copy = NewCopyMode(f.Screen.Cols(), f.Screen.Rows(), f.Screen.Scrollback().Len())
	a.renderer.Invalidate()
	a.invalidate()
}

// exitCopyMode returns to live passthrough.
func (a *App) exitCopyMode() {
	a.copy = nil
	a.dragging = false
	a.renderer.Invalidate()
	a.invalidate()
}

// copyLineAt supplies virtual-buffer content to the copy engine: negative
// lines from scrollback, the rest from the live grid. One rune per column,
// zero for wide-char spacers.
func (a *App) copyLineAt(y int) []rune {
	f := a.wm.Focused()
	if f == nil {
		return nil
	}

	var cells []Cell
	if y < 0 {
		sb := f.Screen.Scrollback()
		cells = sb.Line(sb.Len() + y)
	} else {
		cells = f.Screen.ActiveBuffer().Row(y)
	}

	line := make([]rune, f.Screen.Cols())
	for i := range line {
		if i < len(cells) {
			line[i] = cells[i].Char
			if cells[i].IsWideSpacer() {
				line[i] = 0
			}
		} else {
			line[i] = ' '
		}
	}
	return line
}

// copyLine returns the copy cursor's current line.
func (a *App) copyLine() []rune {
	if a.copy == nil {
		return nil
	}
	return a.copyLineAt(a.copy.Cursor.Y)
}

// yankSelection copies the selection to the outer terminal's clipboard via
// OSC 52 and leaves copy mode.
func (a *App) yankSelection() {
	if a.copy == nil {
		return
	}
	text := a.copy.ExtractSelection(a.copyLineAt)
	if text != "" {
		a.copyToClipboard(text)
	}
	a.exitCopyMode()
}

// copyToClipboard emits an OSC 52 set to the outer terminal.
func (a *App) copyToClipboard(text string) {
	if _, err := osc52.New(text).WriteTo(a.tty); err != nil {
		a.logger.Warn("clipboard", "err", err)
	}
}

// forwardChildClipboard relays a child's OSC 52 payload (already base64) to
// the outer terminal.
func (a *App) forwardChildClipboard(data []byte) {
	a.tty.WriteString("\x1b]52;c;" + string(data) + "\x07")
}

// --- Mouse ---

// handleMouse routes SGR mouse events: wheel scrolls copy mode, click
// focuses, drag selects.
func (a *App) handleMouse(m Mouse) {
	switch {
	case m.WheelUp:
		if a.copy == nil {
			a.enterCopyMode()
		}
		if a.copy != nil {
			a.copy.ScrollBy(WheelScrollLines)
			a.invalidate()
		}

	case m.WheelDown:
		if a.copy != nil {
			a.copy.ScrollBy(-WheelScrollLines)
			if a.copy.ScrollOffset == 0 {
				a.exitCopyMode()
			}
			a.invalidate()
		}

	case m.Button == 0 && !m.Release && !m.Motion:
		id, x, y, ok := a.windowAt(m.Col, m.Row)
		if !ok {
			return
		}
		a.wm.FocusByID(id)
		a.dragWindow = id
		a.dragging = false
		a.dragStart(x, y)
		a.invalidate()

	case m.Button == 0 && m.Motion && !m.Release:
		id, x, y, ok := a.windowAt(m.Col, m.Row)
		if !ok || id != a.dragWindow {
			return
		}
		a.dragExtend(x, y)
		a.invalidate()

	case m.Release:
		if a.dragging && a.copy != nil {
			if text := a.copy.ExtractSelection(a.copyLineAt); text != "" {
				a.copyToClipboard(text)
			}
		}
		a.dragging = false
	}
}

// dragStart records the press position as a potential selection anchor.
func (a *App) dragStart(x, y int) {
	if a.copy != nil {
		bufY := y - a.copy.ScrollOffset
		a.copy.Visual = VisualNone
		a.copy.Selection = nil
		a.copy.Cursor = BufferPos{X: x, Y: bufY}
	}
}

// dragExtend grows a selection from the press position; the first motion
// enters copy mode.
func (a *App) dragExtend(x, y int) {
	if a.copy == nil {
		f := a.wm.Focused()
		if f == nil || f.ID != a.dragWindow {
			return
		}
		a.enterCopyMode()
		if a.copy == nil {
			return
		}
		a.copy.Cursor = BufferPos{X: x, Y: y}
	}
	cm := a.copy
	bufY := y - cm.ScrollOffset
	if !a.dragging {
		cm.Selection = &Selection{Anchor: cm.Cursor, Cursor: cm.Cursor}
		cm.Visual = VisualChar
		a.dragging = true
	}
	cm.Cursor = BufferPos{X: x, Y: bufY}
	cm.Selection.Cursor = cm.Cursor
}

// windowAt maps outer coordinates to a window and its content-relative
// position (header row excluded).
func (a *App) windowAt(col, row int) (id, x, y int, ok bool) {
	for _, w := range a.wm.Visible() {
		rect, found := a.rects[w.ID]
		if !found {
			continue
		}
		if col >= rect.X && col < rect.X+rect.W && row > rect.Y && row < rect.Y+rect.H {
			return w.ID, col - rect.X, row - (rect.Y + 1), true
		}
	}
	return 0, 0, 0, false
}
