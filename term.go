package truetm

import (
	"fmt"
	"io"
)

// ScreenMode is a bitmask of terminal behavior flags.
type ScreenMode uint32

const (
	// ModeCursorKeys enables application cursor key mode (DECCKM).
	ModeCursorKeys ScreenMode = 1 << iota
	// ModeAutoWrap enables automatic line wrapping at the right margin (DECAWM).
	ModeAutoWrap
	// ModeShowCursor makes the cursor visible (DECTCEM).
	ModeShowCursor
	// ModeOrigin makes cursor addressing relative to the scroll region (DECOM).
	ModeOrigin
	// ModeInsert shifts existing characters right on input (IRM).
	ModeInsert
	// ModeMouseClicks enables mouse click reporting (1000).
	ModeMouseClicks
	// ModeMouseMotion enables button-motion reporting (1002).
	ModeMouseMotion
	// ModeMouseAnyMotion enables all-motion reporting (1003).
	ModeMouseAnyMotion
	// ModeMouseSGR enables SGR mouse encoding (1006).
	ModeMouseSGR
	// ModeAltScreen is set while the alternate screen is active (1049).
	ModeAltScreen
	// ModeBracketedPaste enables bracketed paste (2004).
	ModeBracketedPaste
)

// Cursor tracks the current write position (0-based).
type Cursor struct {
	Row int
	Col int
}

// savedCursor stores position and pen state for DECSC/DECRC and the 1049
// screen switch.
type savedCursor struct {
	cursor   Cursor
	template Cell
	origin   bool
}

// Screen emulates the xterm subset one hosted child sees. It owns two grids
// (primary with scrollback, alternate without), the cursor, the current pen,
// and the scroll region. The parser drives it one action at a time; responses
// (DSR) go to the response writer, normally the window's PTY.
type Screen struct {
	rows int
	cols int

	primary   *Buffer
	alternate *Buffer
	active    *Buffer

	cursor       Cursor
	wrapPending  bool
	savedPrimary *savedCursor
	savedAlt     *savedCursor

	// template carries the SGR pen applied to newly written characters.
	template Cell

	scrollTop    int
	scrollBottom int

	modes ScreenMode

	title string

	response  io.Writer
	clipboard func(data []byte)
}

// NewScreen creates a screen of the given size with a scrollback ring of
// scrollbackMax lines behind the primary grid.
func NewScreen(rows, cols, scrollbackMax int) *Screen {
	s := &Screen{
		rows:      rows,
		cols:      cols,
		primary:   NewBufferWithScrollback(rows, cols, NewScrollback(scrollbackMax)),
		alternate: NewBuffer(rows, cols),
		template:  NewCell(),
	}
	s.active = s.primary
	s.scrollTop = 0
	s.scrollBottom = rows
	s.modes = ModeAutoWrap | ModeShowCursor
	return s
}

// SetResponse sets the writer that receives terminal replies (DSR).
func (s *Screen) SetResponse(w io.Writer) {
	s.response = w
}

// SetClipboardSink sets the receiver for OSC 52 clipboard writes from the
// child. Data arrives still base64-encoded.
func (s *Screen) SetClipboardSink(fn func(data []byte)) {
	s.clipboard = fn
}

// Rows returns the screen height.
func (s *Screen) Rows() int { return s.rows }

// Cols returns the screen width.
func (s *Screen) Cols() int { return s.cols }

// ActiveBuffer returns the grid currently addressed by the child.
func (s *Screen) ActiveBuffer() *Buffer { return s.active }

// PrimaryBuffer returns the primary grid regardless of which is active.
func (s *Screen) PrimaryBuffer() *Buffer { return s.primary }

// Scrollback returns the primary screen's history ring.
func (s *Screen) Scrollback() *Scrollback { return s.primary.Scrollback() }

// CursorPos returns the current cursor position.
func (s *Screen) CursorPos() (row, col int) { return s.cursor.Row, s.cursor.Col }

// CursorVisible reports whether the child wants the cursor shown.
func (s *Screen) CursorVisible() bool { return s.modes&ModeShowCursor != 0 }

// IsAlternate reports whether the alternate grid is active.
func (s *Screen) IsAlternate() bool { return s.active == s.alternate }

// HasMode returns true if the given mode flag is enabled.
func (s *Screen) HasMode(mode ScreenMode) bool { return s.modes&mode != 0 }

// Title returns the window title set via OSC 0/2.
func (s *Screen) Title() string { return s.title }

// ScrollRegion returns the scrolling boundaries (0-based, exclusive bottom).
func (s *Screen) ScrollRegion() (top, bottom int) { return s.scrollTop, s.scrollBottom }

// WrapPending reports whether the cursor sits logically past the last column.
func (s *Screen) WrapPending() bool { return s.wrapPending }

func (s *Screen) writeResponse(data string) {
	if s.response != nil {
		io.WriteString(s.response, data)
	}
}

// --- Printable input ---

// Input writes a character at the cursor. Handles deferred wrapping, wide
// characters, combining marks, and insert mode.
func (s *Screen) Input(r rune) {
	width := runeWidth(r)

	// Combining marks attach to the most recently written cell.
	if width == 0 {
		s.attachCombining(r)
		return
	}

	if s.wrapPending && s.modes&ModeAutoWrap != 0 {
		s.active.SetWrapped(s.cursor.Row, true)
		s.wrapPending = false
		s.cursor.Col = 0
		s.index()
	}

	// A wide character that does not fit pads the last column with a space
	// and wraps whole onto the next row.
	if width == 2 && s.cursor.Col == s.cols-1 {
		if s.modes&ModeAutoWrap != 0 {
			if cell := s.active.Cell(s.cursor.Row, s.cursor.Col); cell != nil {
				cell.Reset()
				cell.Fg = s.template.Fg
				cell.Bg = s.template.Bg
				cell.Flags = s.template.Flags &^ CellFlagDirty
				cell.MarkDirty()
			}
			s.active.SetWrapped(s.cursor.Row, true)
			s.cursor.Col = 0
			s.index()
		} else {
			return
		}
	}

	if s.modes&ModeInsert != 0 {
		s.active.InsertBlanks(s.cursor.Row, s.cursor.Col, width)
	}

	cell := s.active.Cell(s.cursor.Row, s.cursor.Col)
	if cell == nil {
		return
	}
	cell.Char = r
	cell.Combining = nil
	cell.Fg = s.template.Fg
	cell.Bg = s.template.Bg
	cell.Flags = s.template.Flags &^ CellFlagDirty
	if width == 2 {
		cell.SetFlag(CellFlagWideChar)
	}
	s.active.MarkDirty(s.cursor.Row, s.cursor.Col)

	if width == 2 && s.cursor.Col+1 < s.cols {
		spacer := s.active.Cell(s.cursor.Row, s.cursor.Col+1)
		spacer.Reset()
		spacer.Char = 0
		spacer.Fg = s.template.Fg
		spacer.Bg = s.template.Bg
		spacer.Flags = (s.template.Flags &^ CellFlagDirty) | CellFlagWideCharSpacer
		s.active.MarkDirty(s.cursor.Row, s.cursor.Col+1)
	}

	// Writing into the last column arms deferred wrap instead of advancing.
	if s.cursor.Col+width >= s.cols {
		s.cursor.Col = s.cols - 1
		s.wrapPending = s.modes&ModeAutoWrap != 0
	} else {
		s.cursor.Col += width
	}
}

// attachCombining appends a zero-width rune to the previously written cell.
func (s *Screen) attachCombining(r rune) {
	row, col := s.cursor.Row, s.cursor.Col
	if !s.wrapPending {
		col--
	}
	if col < 0 {
		return
	}
	cell := s.active.Cell(row, col)
	if cell == nil {
		return
	}
	if cell.IsWideSpacer() && col > 0 {
		cell = s.active.Cell(row, col-1)
	}
	cell.Combining = append(cell.Combining, r)
	s.active.MarkDirty(row, col)
}

// --- Control characters ---

// Backspace moves the cursor one column left, stopping at column 0.
func (s *Screen) Backspace() {
	s.wrapPending = false
	if s.cursor.Col > 0 {
		s.cursor.Col--
	}
}

// Tab advances the cursor to the next tab stop.
func (s *Screen) Tab() {
	s.wrapPending = false
	s.cursor.Col = s.active.NextTabStop(s.cursor.Col)
}

// CarriageReturn moves the cursor to column 0 of the current row.
func (s *Screen) CarriageReturn() {
	s.wrapPending = false
	s.cursor.Col = 0
}

// Linefeed moves the cursor down one row, scrolling the region when the
// cursor is on its last line. Also handles VT and FF.
func (s *Screen) Linefeed() {
	s.wrapPending = false
	s.index()
}

// NextLine implements NEL: carriage return plus index.
func (s *Screen) NextLine() {
	s.CarriageReturn()
	s.index()
}

// index moves down one row inside the scroll region, scrolling at the bottom.
func (s *Screen) index() {
	if s.cursor.Row == s.scrollBottom-1 {
		s.active.ScrollUp(s.scrollTop, s.scrollBottom, 1)
	} else if s.cursor.Row < s.rows-1 {
		s.cursor.Row++
	}
}

// ReverseIndex moves up one row, scrolling the region down at the top.
func (s *Screen) ReverseIndex() {
	s.wrapPending = false
	if s.cursor.Row == s.scrollTop {
		s.active.ScrollDown(s.scrollTop, s.scrollBottom, 1)
	} else if s.cursor.Row > 0 {
		s.cursor.Row--
	}
}

// --- Cursor addressing ---

// Goto moves the cursor to (row, col), clamped to the grid, honoring origin
// mode.
func (s *Screen) Goto(row, col int) {
	s.wrapPending = false
	if s.modes&ModeOrigin != 0 {
		row += s.scrollTop
	}
	s.cursor.Row = clamp(row, 0, s.rows-1)
	s.cursor.Col = clamp(col, 0, s.cols-1)
}

// GotoCol moves the cursor to a column on the current row (CHA).
func (s *Screen) GotoCol(col int) {
	s.wrapPending = false
	s.cursor.Col = clamp(col, 0, s.cols-1)
}

// GotoRow moves the cursor to a row keeping the column (VPA).
func (s *Screen) GotoRow(row int) {
	s.wrapPending = false
	if s.modes&ModeOrigin != 0 {
		row += s.scrollTop
	}
	s.cursor.Row = clamp(row, 0, s.rows-1)
}

// CursorUp moves the cursor up n rows without scrolling.
func (s *Screen) CursorUp(n int) {
	s.wrapPending = false
	s.cursor.Row = clamp(s.cursor.Row-n, 0, s.rows-1)
}

// CursorDown moves the cursor down n rows without scrolling.
func (s *Screen) CursorDown(n int) {
	s.wrapPending = false
	s.cursor.Row = clamp(s.cursor.Row+n, 0, s.rows-1)
}

// CursorForward moves the cursor right n columns.
func (s *Screen) CursorForward(n int) {
	s.wrapPending = false
	s.cursor.Col = clamp(s.cursor.Col+n, 0, s.cols-1)
}

// CursorBack moves the cursor left n columns.
func (s *Screen) CursorBack(n int) {
	s.wrapPending = false
	s.cursor.Col = clamp(s.cursor.Col-n, 0, s.cols-1)
}

// SaveCursor records cursor position and pen state (DECSC).
func (s *Screen) SaveCursor() {
	saved := &savedCursor{
		cursor:   s.cursor,
		template: s.template,
		origin:   s.modes&ModeOrigin != 0,
	}
	if s.IsAlternate() {
		s.savedAlt = saved
	} else {
		s.savedPrimary = saved
	}
}

// RestoreCursor restores the state saved by SaveCursor (DECRC).
func (s *Screen) RestoreCursor() {
	saved := s.savedPrimary
	if s.IsAlternate() {
		saved = s.savedAlt
	}
	if saved == nil {
		s.cursor = Cursor{}
		return
	}
	s.cursor = saved.cursor
	s.template = saved.template
	if saved.origin {
		s.modes |= ModeOrigin
	} else {
		s.modes &^= ModeOrigin
	}
	s.cursor.Row = clamp(s.cursor.Row, 0, s.rows-1)
	s.cursor.Col = clamp(s.cursor.Col, 0, s.cols-1)
	s.wrapPending = false
}

// --- Erasing and editing ---

// ClearMode selects the region affected by ED.
type ClearMode int

const (
	ClearBelow ClearMode = iota
	ClearAbove
	ClearAll
	ClearSaved
)

// ClearScreen erases screen regions relative to the cursor (ED).
// ED 3 additionally drops scrollback.
func (s *Screen) ClearScreen(mode ClearMode) {
	s.wrapPending = false
	switch mode {
	case ClearBelow:
		s.active.ClearRowRange(s.cursor.Row, s.cursor.Col, s.cols)
		for row := s.cursor.Row + 1; row < s.rows; row++ {
			s.active.ClearRow(row)
		}
	case ClearAbove:
		for row := 0; row < s.cursor.Row; row++ {
			s.active.ClearRow(row)
		}
		s.active.ClearRowRange(s.cursor.Row, 0, s.cursor.Col+1)
	case ClearAll:
		s.active.ClearAll()
	case ClearSaved:
		s.active.ClearAll()
		if sb := s.active.Scrollback(); sb != nil {
			sb.Clear()
		}
	}
}

// LineClearMode selects the region affected by EL.
type LineClearMode int

const (
	LineClearRight LineClearMode = iota
	LineClearLeft
	LineClearAll
)

// ClearLine erases part or all of the current line (EL).
func (s *Screen) ClearLine(mode LineClearMode) {
	s.wrapPending = false
	switch mode {
	case LineClearRight:
		s.active.ClearRowRange(s.cursor.Row, s.cursor.Col, s.cols)
	case LineClearLeft:
		s.active.ClearRowRange(s.cursor.Row, 0, s.cursor.Col+1)
	case LineClearAll:
		s.active.ClearRow(s.cursor.Row)
	}
}

// InsertLines inserts n blank lines at the cursor within the scroll region (IL).
func (s *Screen) InsertLines(n int) {
	s.wrapPending = false
	if s.cursor.Row >= s.scrollTop && s.cursor.Row < s.scrollBottom {
		s.active.InsertLines(s.cursor.Row, n, s.scrollBottom)
	}
}

// DeleteLines removes n lines at the cursor within the scroll region (DL).
func (s *Screen) DeleteLines(n int) {
	s.wrapPending = false
	if s.cursor.Row >= s.scrollTop && s.cursor.Row < s.scrollBottom {
		s.active.DeleteLines(s.cursor.Row, n, s.scrollBottom)
	}
}

// InsertBlanks inserts n blank cells at the cursor (ICH).
func (s *Screen) InsertBlanks(n int) {
	s.wrapPending = false
	s.active.InsertBlanks(s.cursor.Row, s.cursor.Col, n)
}

// DeleteChars removes n characters at the cursor (DCH).
func (s *Screen) DeleteChars(n int) {
	s.wrapPending = false
	s.active.DeleteChars(s.cursor.Row, s.cursor.Col, n)
}

// EraseChars blanks n characters at the cursor without shifting (ECH).
func (s *Screen) EraseChars(n int) {
	s.wrapPending = false
	s.active.EraseChars(s.cursor.Row, s.cursor.Col, n)
}

// ScrollUp scrolls the region up n lines (SU).
func (s *Screen) ScrollUp(n int) {
	s.active.ScrollUp(s.scrollTop, s.scrollBottom, n)
}

// ScrollDown scrolls the region down n lines (SD).
func (s *Screen) ScrollDown(n int) {
	s.active.ScrollDown(s.scrollTop, s.scrollBottom, n)
}

// SetScrollRegion sets the scrolling region (DECSTBM; 0-based, exclusive
// bottom) and homes the cursor. Degenerate regions reset to full screen.
func (s *Screen) SetScrollRegion(top, bottom int) {
	if top < 0 {
		top = 0
	}
	if bottom > s.rows || bottom <= 0 {
		bottom = s.rows
	}
	if top >= bottom-1 && !(top == 0 && bottom == s.rows) {
		top = 0
		bottom = s.rows
	}
	s.scrollTop = top
	s.scrollBottom = bottom
	s.Goto(0, 0)
}

// Decaln fills the screen with 'E' (DEC alignment pattern).
func (s *Screen) Decaln() {
	for row := 0; row < s.rows; row++ {
		for col := 0; col < s.cols; col++ {
			cell := s.active.Cell(row, col)
			cell.Reset()
			cell.Char = 'E'
			s.active.MarkDirty(row, col)
		}
	}
}

// HorizontalTabSet enables a tab stop at the current column (HTS).
func (s *Screen) HorizontalTabSet() {
	s.active.SetTabStop(s.cursor.Col)
}

// TabClearMode selects the scope of TBC.
type TabClearMode int

const (
	TabClearCurrent TabClearMode = iota
	TabClearAll
)

// ClearTabs removes the tab stop at the cursor or all of them (TBC).
func (s *Screen) ClearTabs(mode TabClearMode) {
	switch mode {
	case TabClearCurrent:
		s.active.ClearTabStop(s.cursor.Col)
	case TabClearAll:
		s.active.ClearAllTabStops()
	}
}

// --- Modes ---

// SetPrivateMode handles DECSET/DECRST for the supported private modes.
// Unknown modes are ignored.
func (s *Screen) SetPrivateMode(mode int, enable bool) {
	var flag ScreenMode
	switch mode {
	case 1:
		flag = ModeCursorKeys
	case 6:
		flag = ModeOrigin
		// DECOM homes the cursor on both set and reset.
		defer s.Goto(0, 0)
	case 7:
		flag = ModeAutoWrap
	case 25:
		flag = ModeShowCursor
	case 1000:
		flag = ModeMouseClicks
	case 1002:
		flag = ModeMouseMotion
	case 1003:
		flag = ModeMouseAnyMotion
	case 1006:
		flag = ModeMouseSGR
	case 1049:
		s.setAltScreen(enable)
		return
	case 2004:
		flag = ModeBracketedPaste
	default:
		return
	}
	if enable {
		s.modes |= flag
	} else {
		s.modes &^= flag
	}
}

// SetMode handles ANSI SM/RM. Only insert mode (4) is recognized.
func (s *Screen) SetMode(mode int, enable bool) {
	if mode != 4 {
		return
	}
	if enable {
		s.modes |= ModeInsert
	} else {
		s.modes &^= ModeInsert
	}
}

// setAltScreen switches between primary and alternate grids per xterm 1049:
// entering saves the cursor and clears the alternate grid; leaving restores
// the cursor on the primary grid.
func (s *Screen) setAltScreen(enable bool) {
	if enable == s.IsAlternate() {
		return
	}
	if enable {
		s.SaveCursor()
		s.active = s.alternate
		s.modes |= ModeAltScreen
		s.active.ClearAll()
		s.cursor = Cursor{}
		s.wrapPending = false
	} else {
		s.active = s.primary
		s.modes &^= ModeAltScreen
		s.RestoreCursor()
		s.active.MarkAllDirty()
	}
}

// --- SGR ---

// SGRParam is one SGR parameter with its colon-separated subparameters
// (e.g. 38:2:10:20:30 carries Base 38 and Subs [2 10 20 30]).
type SGRParam struct {
	Base int
	Subs []int
}

// ApplySGR interprets a parameter list left to right, updating the pen.
// A malformed 38/48 compound terminates that compound without disturbing
// anything already applied.
func (s *Screen) ApplySGR(params []SGRParam) {
	if len(params) == 0 {
		params = []SGRParam{{Base: 0}}
	}

	for i := 0; i < len(params); i++ {
		p := params[i]
		switch p.Base {
		case 0:
			s.template = NewCell()
		case 1:
			s.template.SetFlag(CellFlagBold)
		case 2:
			s.template.SetFlag(CellFlagDim)
		case 3:
			s.template.SetFlag(CellFlagItalic)
		case 4:
			s.template.SetFlag(CellFlagUnderline)
		case 5, 6:
			s.template.SetFlag(CellFlagBlink)
		case 7:
			s.template.SetFlag(CellFlagReverse)
		case 8:
			s.template.SetFlag(CellFlagHidden)
		case 9:
			s.template.SetFlag(CellFlagStrike)
		case 21, 22:
			s.template.ClearFlag(CellFlagBold | CellFlagDim)
		case 23:
			s.template.ClearFlag(CellFlagItalic)
		case 24:
			s.template.ClearFlag(CellFlagUnderline)
		case 25:
			s.template.ClearFlag(CellFlagBlink)
		case 27:
			s.template.ClearFlag(CellFlagReverse)
		case 28:
			s.template.ClearFlag(CellFlagHidden)
		case 29:
			s.template.ClearFlag(CellFlagStrike)
		case 30, 31, 32, 33, 34, 35, 36, 37:
			s.template.Fg = IndexedColor(uint8(p.Base - 30))
		case 38:
			color, consumed, ok := parseExtendedColor(params[i:])
			if !ok {
				return
			}
			s.template.Fg = color
			i += consumed - 1
		case 39:
			s.template.Fg = DefaultColor()
		case 40, 41, 42, 43, 44, 45, 46, 47:
			s.template.Bg = IndexedColor(uint8(p.Base - 40))
		case 48:
			color, consumed, ok := parseExtendedColor(params[i:])
			if !ok {
				return
			}
			s.template.Bg = color
			i += consumed - 1
		case 49:
			s.template.Bg = DefaultColor()
		case 90, 91, 92, 93, 94, 95, 96, 97:
			s.template.Fg = IndexedColor(uint8(p.Base - 90 + 8))
		case 100, 101, 102, 103, 104, 105, 106, 107:
			s.template.Bg = IndexedColor(uint8(p.Base - 100 + 8))
		}
	}
}

// parseExtendedColor decodes a 38/48 compound in either the semicolon form
// (38;2;r;g;b / 38;5;n across separate params) or the colon form
// (38:2:r:g:b / 38:2::r:g:b in subparameters). Returns the color, how many
// params were consumed, and whether the compound was well formed.
func parseExtendedColor(params []SGRParam) (Color, int, bool) {
	head := params[0]

	// Colon form: everything rides in the subparameters.
	if len(head.Subs) > 0 {
		subs := head.Subs
		switch subs[0] {
		case 2:
			// The ITU form carries an extra color-space id: 38:2::r:g:b.
			if len(subs) >= 5 {
				return RGBColor(clampByte(subs[2]), clampByte(subs[3]), clampByte(subs[4])), 1, true
			}
			if len(subs) == 4 {
				return RGBColor(clampByte(subs[1]), clampByte(subs[2]), clampByte(subs[3])), 1, true
			}
		case 5:
			if len(subs) >= 2 {
				return IndexedColor(clampByte(subs[1])), 1, true
			}
		}
		return Color{}, 1, false
	}

	// Semicolon form: the mode and components are separate parameters.
	if len(params) < 2 {
		return Color{}, len(params), false
	}
	switch params[1].Base {
	case 2:
		if len(params) < 5 {
			return Color{}, len(params), false
		}
		return RGBColor(clampByte(params[2].Base), clampByte(params[3].Base), clampByte(params[4].Base)), 5, true
	case 5:
		if len(params) < 3 {
			return Color{}, len(params), false
		}
		return IndexedColor(clampByte(params[2].Base)), 3, true
	}
	return Color{}, 2, false
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// --- Reports, title, clipboard ---

// DeviceStatus answers DSR: 5 reports ready, 6 reports the cursor position.
func (s *Screen) DeviceStatus(n int) {
	switch n {
	case 5:
		s.writeResponse("\x1b[0n")
	case 6:
		s.writeResponse(fmt.Sprintf("\x1b[%d;%dR", s.cursor.Row+1, s.cursor.Col+1))
	}
}

// SetTitle records the window title (OSC 0/2).
func (s *Screen) SetTitle(title string) {
	s.title = title
}

// ClipboardStore forwards an OSC 52 write to the configured sink.
func (s *Screen) ClipboardStore(data []byte) {
	if s.clipboard != nil {
		s.clipboard(data)
	}
}

// --- Resize ---

// Resize changes the screen dimensions. Shrinking pushes lines above the
// cursor into scrollback; growing pulls them back. Width changes truncate or
// pad live rows and reflow scrollback only. The scroll region resets to the
// full screen and the cursor is clamped.
func (s *Screen) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 || (rows == s.rows && cols == s.cols) {
		return
	}

	if cols != s.cols {
		s.primary.ResizeCols(cols)
		s.alternate.ResizeCols(cols)
		s.cols = cols
	}

	if rows < s.rows {
		archived := s.primary.ShrinkRows(rows, s.cursor.Row)
		// The alternate grid never archives; it just drops from the bottom.
		s.alternate.ShrinkRows(rows, 0)
		if !s.IsAlternate() {
			s.cursor.Row -= archived
		}
		s.rows = rows
	} else if rows > s.rows {
		restored := s.primary.GrowRows(rows)
		s.alternate.GrowRows(rows)
		if !s.IsAlternate() {
			s.cursor.Row += restored
		}
		s.rows = rows
	}

	s.cursor.Row = clamp(s.cursor.Row, 0, s.rows-1)
	s.cursor.Col = clamp(s.cursor.Col, 0, s.cols-1)
	s.scrollTop = 0
	s.scrollBottom = s.rows
	s.wrapPending = false
}

// clamp bounds val to [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
