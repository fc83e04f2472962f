package truetm

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// Frame is one composed picture of the whole outer terminal, status bar
// included.
type Frame struct {
	cols, rows int
	cells      [][]Cell

	cursorRow     int
	cursorCol     int
	cursorVisible bool
}

// NewFrame creates a blank frame.
func NewFrame(cols, rows int) *Frame {
	f := &Frame{cols: cols, rows: rows, cells: make([][]Cell, rows)}
	for i := range f.cells {
		f.cells[i] = blankRow(cols)
	}
	return f
}

// Cell returns the frame cell at (row, col), or nil out of bounds.
func (f *Frame) Cell(row, col int) *Cell {
	if row < 0 || row >= f.rows || col < 0 || col >= f.cols {
		return nil
	}
	return &f.cells[row][col]
}

// SetText writes a styled string into the frame, truncating at the frame
// edge. Returns the column after the last written cell.
func (f *Frame) SetText(row, col int, text string, fg, bg Color, flags CellFlags) int {
	for _, r := range text {
		w := runeWidth(r)
		if w == 0 {
			continue
		}
		cell := f.Cell(row, col)
		if cell == nil {
			break
		}
		cell.Char = r
		cell.Combining = nil
		cell.Fg = fg
		cell.Bg = bg
		cell.Flags = flags
		if w == 2 {
			cell.SetFlag(CellFlagWideChar)
			if spacer := f.Cell(row, col+1); spacer != nil {
				spacer.Reset()
				spacer.Char = 0
				spacer.Flags = CellFlagWideCharSpacer
			}
		}
		col += w
	}
	return col
}

// Renderer diffs composed frames against the previously committed one and
// emits the minimum escape stream to the outer terminal. It is the only
// writer of terminal output.
type Renderer struct {
	out  io.Writer
	cols int
	rows int

	prev  *Frame
	valid bool

	lastStyle Cell
	haveStyle bool
	lastRow   int
	lastCol   int
	havePos   bool
}

// NewRenderer creates a renderer writing to the outer terminal.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Resize adapts to a new outer size and forces a full repaint.
func (r *Renderer) Resize(cols, rows int) {
	r.cols = cols
	r.rows = rows
	r.Invalidate()
}

// Invalidate drops the previous frame so the next commit repaints fully.
func (r *Renderer) Invalidate() {
	r.valid = false
	r.haveStyle = false
	r.havePos = false
}

// Commit diffs the frame against the committed state and writes the delta.
func (r *Renderer) Commit(frame *Frame) error {
	var b strings.Builder

	// Hide the cursor while painting to avoid ghosting.
	b.WriteString("\x1b[?25l")

	if !r.valid || r.prev == nil || r.prev.cols != frame.cols || r.prev.rows != frame.rows {
		b.WriteString("\x1b[2J")
		r.prev = NewFrame(frame.cols, frame.rows)
		r.haveStyle = false
		r.havePos = false
	}

	for row := 0; row < frame.rows; row++ {
		for col := 0; col < frame.cols; {
			cur := frame.Cell(row, col)
			old := r.prev.Cell(row, col)
			if cur.IsWideSpacer() {
				col++
				continue
			}

			width := 1
			if cur.IsWide() {
				width = 2
			}

			if old != nil && cellEqual(cur, old) {
				col += width
				continue
			}

			r.emitCell(&b, row, col, cur)
			col += width
		}
	}

	// Park the cursor and restore its visibility.
	if frame.cursorVisible {
		fmt.Fprintf(&b, "\x1b[%d;%dH", frame.cursorRow+1, frame.cursorCol+1)
		b.WriteString("\x1b[?25h")
		r.havePos = false
	}

	if _, err := io.WriteString(r.out, b.String()); err != nil {
		return err
	}

	r.prev = frame.clone()
	r.valid = true
	return nil
}

func (r *Renderer) emitCell(b *strings.Builder, row, col int, cell *Cell) {
	if !r.havePos || row != r.lastRow || col != r.lastCol {
		fmt.Fprintf(b, "\x1b[%d;%dH", row+1, col+1)
	}
	if !r.haveStyle || !cell.SameStyle(&r.lastStyle) {
		b.WriteString(sgrTransition(&r.lastStyle, cell, r.haveStyle))
		r.lastStyle = *cell
		r.haveStyle = true
	}

	glyph := cell.Glyph()
	if glyph == "" || cell.Char == 0 {
		glyph = " "
	}
	b.WriteString(glyph)

	r.lastRow = row
	r.lastCol = col + 1
	if cell.IsWide() {
		r.lastCol = col + 2
	}
	if r.lastCol >= r.cols {
		// The terminal's own wrap state after the last column is murky;
		// force an explicit move next time.
		r.havePos = false
	} else {
		r.havePos = true
	}
}

func (f *Frame) clone() *Frame {
	c := &Frame{
		cols:          f.cols,
		rows:          f.rows,
		cells:         make([][]Cell, f.rows),
		cursorRow:     f.cursorRow,
		cursorCol:     f.cursorCol,
		cursorVisible: f.cursorVisible,
	}
	for i := range f.cells {
		c.cells[i] = make([]Cell, len(f.cells[i]))
		copy(c.cells[i], f.cells[i])
	}
	return c
}

func cellEqual(a, b *Cell) bool {
	if a.Char != b.Char || !a.SameStyle(b) {
		return false
	}
	if len(a.Combining) != len(b.Combining) {
		return false
	}
	for i := range a.Combining {
		if a.Combining[i] != b.Combining[i] {
			return false
		}
	}
	return a.IsWide() == b.IsWide() && a.IsWideSpacer() == b.IsWideSpacer()
}

// sgrTransition returns the escape string moving the terminal pen from the
// current style to the target. Attribute changes fall back to a full reset
// plus respecification; pure color changes emit only the changed color.
func sgrTransition(from, to *Cell, haveFrom bool) string {
	defaultStyle := to.Fg == DefaultColor() && to.Bg == DefaultColor() && to.Flags&CellFlagAttrMask == 0
	if defaultStyle {
		return "\x1b[0m"
	}

	var params []string
	sameAttrs := haveFrom && from.Flags&CellFlagAttrMask == to.Flags&CellFlagAttrMask
	if !sameAttrs {
		params = append(params, "0")
		flags := to.Flags
		if flags&CellFlagBold != 0 {
			params = append(params, "1")
		}
		if flags&CellFlagDim != 0 {
			params = append(params, "2")
		}
		if flags&CellFlagItalic != 0 {
			params = append(params, "3")
		}
		if flags&CellFlagUnderline != 0 {
			params = append(params, "4")
		}
		if flags&CellFlagBlink != 0 {
			params = append(params, "5")
		}
		if flags&CellFlagReverse != 0 {
			params = append(params, "7")
		}
		if flags&CellFlagHidden != 0 {
			params = append(params, "8")
		}
		if flags&CellFlagStrike != 0 {
			params = append(params, "9")
		}
		params = append(params, colorParams(to.Fg, true)...)
		params = append(params, colorParams(to.Bg, false)...)
	} else {
		if !haveFrom || from.Fg != to.Fg {
			params = append(params, colorParams(to.Fg, true)...)
		}
		if !haveFrom || from.Bg != to.Bg {
			params = append(params, colorParams(to.Bg, false)...)
		}
	}
	if len(params) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(params, ";") + "m"
}

// colorParams renders one color as SGR parameters.
func colorParams(c Color, fg bool) []string {
	switch c.Mode {
	case ColorDefault:
		if fg {
			return []string{"39"}
		}
		return []string{"49"}
	case ColorIndexed:
		n := int(c.Index)
		switch {
		case n < 8 && fg:
			return []string{strconv.Itoa(30 + n)}
		case n < 8:
			return []string{strconv.Itoa(40 + n)}
		case n < 16 && fg:
			return []string{strconv.Itoa(90 + n - 8)}
		case n < 16:
			return []string{strconv.Itoa(100 + n - 8)}
		case fg:
			return []string{"38", "5", strconv.Itoa(n)}
		default:
			return []string{"48", "5", strconv.Itoa(n)}
		}
	case ColorRGB:
		base := "48"
		if fg {
			base = "38"
		}
		return []string{base, "2", strconv.Itoa(int(c.R)), strconv.Itoa(int(c.G)), strconv.Itoa(int(c.B))}
	}
	return nil
}

// --- Frame composition ---

// Status bar and header palette, muted greens like the rest of the family.
var (
	colorFocused  = RGBColor(120, 190, 120)
	colorViewed   = RGBColor(80, 150, 80)
	colorOccupied = RGBColor(60, 100, 60)
	colorInactive = IndexedColor(8)
	colorMode     = IndexedColor(3)
	colorAlert    = IndexedColor(5)
)

// composeFrame builds the full outer picture: each visible window's header
// and content, the copy-mode overlay on the focused window, and the status
// bar.
func (a *App) composeFrame() *Frame {
	frame := NewFrame(a.cols, a.rows)

	focused := a.wm.Focused()
	visible := a.wm.Visible()

	for _, w := range visible {
		rect, ok := a.rects[w.ID]
		if !ok || rect.W <= 0 || rect.H <= 0 {
			continue
		}
		isFocused := focused != nil && w.ID == focused.ID
		a.composeHeader(frame, w, rect, isFocused)

		content := Rect{X: rect.X, Y: rect.Y + 1, W: rect.W, H: rect.H - 1}
		a.composeWindow(frame, w, content, isFocused)
	}

	a.composeStatusBar(frame)
	a.composeCursor(frame, focused)
	return frame
}

// composeHeader draws a window's title row: ──[n] title ───, with the
// copy-mode indicator on the focused window.
func (a *App) composeHeader(frame *Frame, w *Window, rect Rect, focused bool) {
	fg := colorInactive
	flags := CellFlags(0)
	if focused || a.wm.Broadcast {
		fg = colorFocused
		flags = CellFlagBold
	}

	label := fmt.Sprintf("──[%d]", w.ID)
	if title := w.Title(); title != "" {
		avail := rect.W - xansi.StringWidth(label) - 4
		if avail > 0 {
			if xansi.StringWidth(title) > avail {
				title = xansi.Truncate(title, avail, "…")
			}
			label += " " + title + " "
		}
	}

	indicator := ""
	if focused && a.copy != nil {
		switch a.copy.Visual {
		case VisualNone:
			indicator = "[COPY]"
		case VisualChar:
			indicator = "[VISUAL]"
		case VisualLine:
			indicator = "[V-LINE]"
		}
	}

	col := frame.SetText(rect.Y, rect.X, label, fg, DefaultColor(), flags)
	lineEnd := rect.X + rect.W - xansi.StringWidth(indicator)
	for col < lineEnd {
		col = frame.SetText(rect.Y, col, "─", fg, DefaultColor(), flags)
	}
	if indicator != "" {
		frame.SetText(rect.Y, col, indicator, colorMode, DefaultColor(), CellFlagBold)
	}
}

// composeWindow copies a window's visible rows into the frame. The focused
// window in copy mode shows the scrolled view with selection and search
// highlighting.
func (a *App) composeWindow(frame *Frame, w *Window, content Rect, focused bool) {
	offset := 0
	var cm *CopyMode
	if focused && a.copy != nil {
		cm = a.copy
		offset = cm.ScrollOffset
	}

	buf := w.Screen.ActiveBuffer()
	sb := w.Screen.Scrollback()

	for y := 0; y < content.H; y++ {
		// bufY counts in copy-mode coordinates: negative rows come from
		// scrollback, the rest from the live grid.
		bufY := y - offset
		var src []Cell
		if bufY < 0 {
			if sb != nil {
				src = sb.Line(sb.Len() + bufY)
			}
		} else if bufY < buf.Rows() {
			src = buf.Row(bufY)
		}

		for x := 0; x < content.W; x++ {
			dst := frame.Cell(content.Y+y, content.X+x)
			if dst == nil {
				continue
			}
			if src != nil && x < len(src) {
				*dst = src[x]
				dst.ClearDirty()
			} else {
				dst.Reset()
			}

			if cm != nil {
				if cm.IsSelected(x, bufY) {
					dst.Flags ^= CellFlagReverse
				}
				for _, m := range cm.Matches {
					if m.Y == bufY && x >= m.X && x < m.X+m.Len {
						dst.SetFlag(CellFlagUnderline)
						break
					}
				}
			}
		}
	}
}

// composeStatusBar draws the bottom row: tag indicators, broadcast flag, and
// copy-mode prompts.
func (a *App) composeStatusBar(frame *Frame) {
	row := a.rows - 1
	col := frame.SetText(row, 0, " ", DefaultColor(), DefaultColor(), 0)

	focused := a.wm.Focused()
	for tag := 1; tag <= MaxTag; tag++ {
		occupied := a.wm.AnyWithTag(tag)
		viewed := a.wm.View().Contains(tag)
		if !occupied && !viewed {
			continue
		}

		fg := colorOccupied
		flags := CellFlags(0)
		if viewed && focused != nil && focused.Tags.Contains(tag) {
			fg = colorFocused
			flags = CellFlagBold
		} else if viewed {
			fg = colorViewed
		}
		col = frame.SetText(row, col, strconv.Itoa(tag), fg, DefaultColor(), flags)
		col = frame.SetText(row, col, "  ", DefaultColor(), DefaultColor(), 0)
	}

	col = frame.SetText(row, col, "[]=", colorInactive, DefaultColor(), 0)

	if a.wm.Broadcast {
		col = frame.SetText(row, col, " [B]", colorAlert, DefaultColor(), CellFlagBold)
	}

	if cm := a.copy; cm != nil {
		prompt := ""
		switch {
		case cm.Searching && cm.SearchDir == SearchForward:
			prompt = " /" + string(cm.SearchInput)
		case cm.Searching:
			prompt = " ?" + string(cm.SearchInput)
		case cm.PendingFind != nil:
			prompt = " find:"
		case cm.PendingObject != 0:
			prompt = " " + string(cm.PendingObject) + ":"
		case cm.HasCount():
			prompt = " " + strconv.Itoa(cm.Count())
		}
		if prompt != "" {
			col = frame.SetText(row, col, prompt, colorMode, DefaultColor(), CellFlagBold)
		}
	}

	if a.statusMsg != "" {
		msg := " " + a.statusMsg
		if xansi.StringWidth(msg) < a.cols-col {
			frame.SetText(row, a.cols-xansi.StringWidth(msg), msg, colorAlert, DefaultColor(), 0)
		}
	}
}

// composeCursor parks the terminal cursor on the focused window: the
// copy-mode cursor when active, the child's cursor otherwise.
func (a *App) composeCursor(frame *Frame, focused *Window) {
	frame.cursorVisible = false
	if focused == nil {
		return
	}
	rect, ok := a.rects[focused.ID]
	if !ok || rect.W <= 0 || rect.H <= 1 {
		return
	}
	content := Rect{X: rect.X, Y: rect.Y + 1, W: rect.W, H: rect.H - 1}

	if a.copy != nil {
		if x, y, ok := a.copy.CursorScreenPos(); ok && y < content.H {
			frame.cursorRow = content.Y + y
			frame.cursorCol = content.X + clamp(x, 0, content.W-1)
			frame.cursorVisible = true
		}
		return
	}

	row, col := focused.Screen.CursorPos()
	if row >= content.H {
		row = content.H - 1
	}
	frame.cursorRow = content.Y + row
	frame.cursorCol = content.X + clamp(col, 0, content.W-1)
	frame.cursorVisible = focused.Screen.CursorVisible()
}
