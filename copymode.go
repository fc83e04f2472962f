package truetm

import (
	"regexp"
	"strings"
)

// charClass classifies characters for word motions.
type charClass int

const (
	classWhitespace charClass = iota
	classWord                 // alphanumeric and underscore
	classPunct                // everything else
)

func classOf(r rune) charClass {
	switch {
	case r == ' ' || r == '\t' || r == 0:
		return classWhitespace
	case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
		return classWord
	default:
		return classPunct
	}
}

// classOfWORD collapses everything to whitespace vs non-whitespace.
func classOfWORD(r rune) charClass {
	if classOf(r) == classWhitespace {
		return classWhitespace
	}
	return classWord
}

// BufferPos addresses the virtual buffer: X is the column, Y the line, where
// negative Y counts back into scrollback (-1 is the newest archived line)
// and 0..height-1 are the live grid rows.
type BufferPos struct {
	X int
	Y int
}

// VisualMode is the active selection kind.
type VisualMode int

const (
	VisualNone VisualMode = iota
	VisualChar
	VisualLine
)

// Selection anchors a visual range at its origin; the cursor end moves.
type Selection struct {
	Anchor BufferPos
	Cursor BufferPos
}

// bounds returns the selection normalized so start <= end.
func (s *Selection) bounds() (BufferPos, BufferPos) {
	if s.Anchor.Y < s.Cursor.Y || (s.Anchor.Y == s.Cursor.Y && s.Anchor.X <= s.Cursor.X) {
		return s.Anchor, s.Cursor
	}
	return s.Cursor, s.Anchor
}

// SearchDir is the direction of the active search.
type SearchDir int

const (
	SearchForward SearchDir = iota
	SearchBackward
)

// Match is one search hit: line, start column, and length in columns.
type Match struct {
	Y   int
	X   int
	Len int
}

// findSpec records an f/F/t/T request so `;` and `,` can repeat it.
type findSpec struct {
	char    rune
	forward bool
	till    bool
}

// LineFunc supplies the content of a virtual-buffer line as runes, one rune
// per column (spacer columns map to the zero rune).
type LineFunc func(y int) []rune

// CopyMode is the modal navigation and selection layer over one window's
// scrollback plus live grid. It freezes the viewport while the child keeps
// writing underneath.
type CopyMode struct {
	Cursor       BufferPos
	ScrollOffset int

	Visual    VisualMode
	Selection *Selection

	width         int
	height        int
	scrollbackLen int

	count int

	// PendingFind is non-nil while f/F/t/T waits for its target character.
	PendingFind *findSpec
	lastFind    *findSpec

	// PendingObject holds 'i' or 'a' while a text object waits for its kind.
	PendingObject rune

	// Search entry state; Matches holds the committed pattern's hits.
	Searching   bool
	SearchDir   SearchDir
	SearchInput []rune
	pattern     *regexp.Regexp
	Matches     []Match
}

// NewCopyMode enters copy mode over a buffer of the given live dimensions
// and scrollback depth, cursor at the bottom-left of the live view.
func NewCopyMode(width, height, scrollbackLen int) *CopyMode {
	return &CopyMode{
		Cursor:        BufferPos{X: 0, Y: max(height-1, 0)},
		width:         width,
		height:        height,
		scrollbackLen: scrollbackLen,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// UpdateDimensions re-clamps state after the underlying window resized or
// accumulated more scrollback.
func (c *CopyMode) UpdateDimensions(width, height, scrollbackLen int) {
	c.width = width
	c.height = height
	c.scrollbackLen = scrollbackLen
	c.clampCursor()
}

func (c *CopyMode) clampCursor() {
	minY := -c.scrollbackLen
	maxY := c.height - 1
	c.Cursor.Y = clamp(c.Cursor.Y, minY, maxY)
	c.Cursor.X = clamp(c.Cursor.X, 0, max(c.width-1, 0))
}

// moveTo relocates the cursor, drags the selection end in visual mode, and
// scrolls the viewport to keep the cursor visible.
func (c *CopyMode) moveTo(pos BufferPos) {
	c.Cursor = pos
	c.clampCursor()
	if c.Visual != VisualNone && c.Selection != nil {
		c.Selection.Cursor = c.Cursor
	}
	c.ensureVisible()
}

func (c *CopyMode) ensureVisible() {
	visibleTop := -c.ScrollOffset
	visibleBottom := c.height - 1 - c.ScrollOffset
	if c.Cursor.Y < visibleTop {
		c.ScrollOffset = -c.Cursor.Y
	} else if c.Cursor.Y > visibleBottom {
		c.ScrollOffset = -(c.Cursor.Y - (c.height - 1))
		if c.ScrollOffset < 0 {
			c.ScrollOffset = 0
		}
	}
	if c.ScrollOffset > c.scrollbackLen {
		c.ScrollOffset = c.scrollbackLen
	}
}

// --- Counts ---

// PushCountDigit extends the pending count; the total saturates at MaxCount.
func (c *CopyMode) PushCountDigit(d int) {
	c.count = c.count*10 + d
	if c.count > MaxCount {
		c.count = MaxCount
	}
}

// Count returns the pending count, defaulting to 1.
func (c *CopyMode) Count() int {
	if c.count == 0 {
		return 1
	}
	return c.count
}

// HasCount reports whether a count prefix is in progress.
func (c *CopyMode) HasCount() bool {
	return c.count != 0
}

// ResetCount clears the pending count.
func (c *CopyMode) ResetCount() {
	c.count = 0
}

// --- Basic motions ---

// MoveLeft moves the cursor one column left.
func (c *CopyMode) MoveLeft() {
	c.moveTo(BufferPos{X: c.Cursor.X - 1, Y: c.Cursor.Y})
}

// MoveRight moves the cursor one column right.
func (c *CopyMode) MoveRight() {
	c.moveTo(BufferPos{X: c.Cursor.X + 1, Y: c.Cursor.Y})
}

// MoveUp moves the cursor one line up, into scrollback past the top.
func (c *CopyMode) MoveUp() {
	c.moveTo(BufferPos{X: c.Cursor.X, Y: c.Cursor.Y - 1})
}

// MoveDown moves the cursor one line down, stopping at the live tail.
func (c *CopyMode) MoveDown() {
	c.moveTo(BufferPos{X: c.Cursor.X, Y: c.Cursor.Y + 1})
}

// MoveLineStart moves to column 0.
func (c *CopyMode) MoveLineStart() {
	c.moveTo(BufferPos{X: 0, Y: c.Cursor.Y})
}

// MoveLineEnd moves to the last non-blank column of the line.
func (c *CopyMode) MoveLineEnd(line []rune) {
	end := 0
	for i := len(line) - 1; i >= 0; i-- {
		if line[i] != ' ' && line[i] != 0 {
			end = i
			break
		}
	}
	c.moveTo(BufferPos{X: end, Y: c.Cursor.Y})
}

// MoveFirstNonBlank moves to the first non-whitespace column.
func (c *CopyMode) MoveFirstNonBlank(line []rune) {
	x := 0
	for i, r := range line {
		if classOf(r) != classWhitespace {
			x = i
			break
		}
	}
	c.moveTo(BufferPos{X: x, Y: c.Cursor.Y})
}

// MoveTop jumps to the oldest scrollback line.
func (c *CopyMode) MoveTop() {
	c.moveTo(BufferPos{X: 0, Y: -c.scrollbackLen})
}

// MoveBottom jumps to the live view tail.
func (c *CopyMode) MoveBottom() {
	c.moveTo(BufferPos{X: 0, Y: c.height - 1})
}

// MoveScreenTop moves to the top line of the visible page (H).
func (c *CopyMode) MoveScreenTop() {
	c.moveTo(BufferPos{X: c.Cursor.X, Y: -c.ScrollOffset})
}

// MoveScreenMiddle moves to the middle line of the visible page (M).
func (c *CopyMode) MoveScreenMiddle() {
	c.moveTo(BufferPos{X: c.Cursor.X, Y: -c.ScrollOffset + c.height/2})
}

// MoveScreenBottom moves to the bottom line of the visible page (L).
func (c *CopyMode) MoveScreenBottom() {
	c.moveTo(BufferPos{X: c.Cursor.X, Y: c.height - 1 - c.ScrollOffset})
}

// PageUp moves half a page toward scrollback.
func (c *CopyMode) PageUp() {
	half := max(c.height/2, 1)
	c.moveTo(BufferPos{X: c.Cursor.X, Y: c.Cursor.Y - half})
}

// PageDown moves half a page toward the live view.
func (c *CopyMode) PageDown() {
	half := max(c.height/2, 1)
	c.moveTo(BufferPos{X: c.Cursor.X, Y: c.Cursor.Y + half})
}

// ScrollBy adjusts the viewport without moving the cursor relative to the
// buffer (mouse wheel). Positive n scrolls into history.
func (c *CopyMode) ScrollBy(n int) {
	c.ScrollOffset = clamp(c.ScrollOffset+n, 0, c.scrollbackLen)
}

// --- Word motions ---

// MoveWordForward advances to the start of the next word (w / W).
func (c *CopyMode) MoveWordForward(line []rune, bigWord bool) {
	classify := classOf
	if bigWord {
		classify = classOfWORD
	}
	x := c.Cursor.X
	n := len(line)
	if x >= n {
		return
	}

	cur := classify(line[x])
	pos := x
	for pos < n && classify(line[pos]) == cur {
		pos++
	}
	for pos < n && classify(line[pos]) == classWhitespace {
		pos++
	}
	if pos >= n {
		pos = max(n-1, 0)
	}
	c.moveTo(BufferPos{X: pos, Y: c.Cursor.Y})
}

// MoveWordBackward retreats to the start of the previous word (b / B).
func (c *CopyMode) MoveWordBackward(line []rune, bigWord bool) {
	classify := classOf
	if bigWord {
		classify = classOfWORD
	}
	x := c.Cursor.X
	if x == 0 || len(line) == 0 {
		return
	}
	if x > len(line) {
		x = len(line)
	}

	pos := x - 1
	for pos > 0 && classify(line[pos]) == classWhitespace {
		pos--
	}
	if pos == 0 {
		c.moveTo(BufferPos{X: 0, Y: c.Cursor.Y})
		return
	}
	target := classify(line[pos])
	for pos > 0 && classify(line[pos-1]) == target {
		pos--
	}
	c.moveTo(BufferPos{X: pos, Y: c.Cursor.Y})
}

// MoveWordEnd advances to the end of the next word (e / E).
func (c *CopyMode) MoveWordEnd(line []rune, bigWord bool) {
	classify := classOf
	if bigWord {
		classify = classOfWORD
	}
	x := c.Cursor.X
	n := len(line)
	if x >= n-1 {
		return
	}

	pos := x + 1
	for pos < n && classify(line[pos]) == classWhitespace {
		pos++
	}
	if pos >= n {
		return
	}
	target := classify(line[pos])
	for pos+1 < n && classify(line[pos+1]) == target {
		pos++
	}
	c.moveTo(BufferPos{X: pos, Y: c.Cursor.Y})
}

// --- Find char ---

// StartFind arms f/F/t/T, waiting for the target character.
func (c *CopyMode) StartFind(forward, till bool) {
	c.PendingFind = &findSpec{forward: forward, till: till}
}

// DoFind completes an armed find with the typed character.
func (c *CopyMode) DoFind(ch rune, line []rune) {
	spec := c.PendingFind
	c.PendingFind = nil
	if spec == nil {
		return
	}
	spec.char = ch
	c.lastFind = spec
	c.findOnLine(spec, line)
}

// RepeatFind repeats the last find in its original direction (;).
func (c *CopyMode) RepeatFind(line []rune) {
	if c.lastFind != nil {
		c.findOnLine(c.lastFind, line)
	}
}

// RepeatFindReverse repeats the last find in the opposite direction (,).
func (c *CopyMode) RepeatFindReverse(line []rune) {
	if c.lastFind == nil {
		return
	}
	rev := *c.lastFind
	rev.forward = !rev.forward
	c.findOnLine(&rev, line)
}

func (c *CopyMode) findOnLine(spec *findSpec, line []rune) {
	x := c.Cursor.X
	if spec.forward {
		for i := x + 1; i < len(line); i++ {
			if line[i] == spec.char {
				if spec.till {
					i--
				}
				c.moveTo(BufferPos{X: i, Y: c.Cursor.Y})
				return
			}
		}
	} else {
		for i := x - 1; i >= 0; i-- {
			if line[i] == spec.char {
				if spec.till {
					i++
				}
				c.moveTo(BufferPos{X: i, Y: c.Cursor.Y})
				return
			}
		}
	}
}

// --- Visual mode ---

// ToggleVisualChar starts character-wise selection, or leaves visual mode if
// already character-wise.
func (c *CopyMode) ToggleVisualChar() {
	c.toggleVisual(VisualChar)
}

// ToggleVisualLine starts line-wise selection, or leaves visual mode if
// already line-wise.
func (c *CopyMode) ToggleVisualLine() {
	c.toggleVisual(VisualLine)
}

func (c *CopyMode) toggleVisual(mode VisualMode) {
	if c.Visual == mode {
		c.Visual = VisualNone
		c.Selection = nil
		return
	}
	if c.Selection == nil {
		c.Selection = &Selection{Anchor: c.Cursor, Cursor: c.Cursor}
	}
	c.Visual = mode
}

// ClearVisual drops the selection but stays in copy mode (Esc in visual).
func (c *CopyMode) ClearVisual() {
	c.Visual = VisualNone
	c.Selection = nil
}

// SelectionBounds returns the normalized selection corners, expanded to full
// lines in line-wise mode. ok is false without an active selection.
func (c *CopyMode) SelectionBounds() (start, end BufferPos, ok bool) {
	if c.Visual == VisualNone || c.Selection == nil {
		return BufferPos{}, BufferPos{}, false
	}
	start, end = c.Selection.bounds()
	if c.Visual == VisualLine {
		start.X = 0
		end.X = max(c.width-1, 0)
	}
	return start, end, true
}

// IsSelected reports whether the given buffer cell lies inside the selection.
func (c *CopyMode) IsSelected(x, y int) bool {
	start, end, ok := c.SelectionBounds()
	if !ok || y < start.Y || y > end.Y {
		return false
	}
	if y == start.Y && y == end.Y {
		return x >= start.X && x <= end.X
	}
	if y == start.Y {
		return x >= start.X
	}
	if y == end.Y {
		return x <= end.X
	}
	return true
}

// --- Text objects ---

// StartTextObject arms i/a, waiting for the object kind.
func (c *CopyMode) StartTextObject(modifier rune) {
	c.PendingObject = modifier
}

// SelectTextObject completes an armed text object, turning it into a
// character-wise selection. Inner excludes delimiters, around includes them
// (and trailing whitespace for words).
func (c *CopyMode) SelectTextObject(kind rune, line []rune) {
	around := c.PendingObject == 'a'
	c.PendingObject = 0

	start, end, ok := textObjectRange(line, c.Cursor.X, kind, around)
	if !ok {
		return
	}
	c.Selection = &Selection{
		Anchor: BufferPos{X: start, Y: c.Cursor.Y},
		Cursor: BufferPos{X: end, Y: c.Cursor.Y},
	}
	c.Visual = VisualChar
	c.moveTo(BufferPos{X: end, Y: c.Cursor.Y})
}

// textObjectRange resolves a text object around column x to an inclusive
// column range.
func textObjectRange(line []rune, x int, kind rune, around bool) (int, int, bool) {
	if len(line) == 0 {
		return 0, 0, false
	}
	if x >= len(line) {
		x = len(line) - 1
	}

	switch kind {
	case 'w', 'W':
		classify := classOf
		if kind == 'W' {
			classify = classOfWORD
		}
		cls := classify(line[x])
		if cls == classWhitespace {
			return 0, 0, false
		}
		start, end := x, x
		for start > 0 && classify(line[start-1]) == cls {
			start--
		}
		for end+1 < len(line) && classify(line[end+1]) == cls {
			end++
		}
		if around {
			for end+1 < len(line) && classify(line[end+1]) == classWhitespace {
				end++
			}
		}
		return start, end, true

	case '"', '\'', '`':
		return quoteRange(line, x, kind, around)

	case '(', ')', 'b':
		return pairRange(line, x, '(', ')', around)
	case '[', ']':
		return pairRange(line, x, '[', ']', around)
	case '{', '}', 'B':
		return pairRange(line, x, '{', '}', around)
	case '<', '>':
		return pairRange(line, x, '<', '>', around)
	}
	return 0, 0, false
}

// quoteRange finds the quote pair enclosing (or following) x on the line.
func quoteRange(line []rune, x int, quote rune, around bool) (int, int, bool) {
	// Walk the line pairing quotes up from the start; the pair containing x
	// wins, matching vim's left-to-right pairing.
	open := -1
	for i, r := range line {
		if r != quote {
			continue
		}
		if open < 0 {
			open = i
			continue
		}
		if x <= i {
			if around {
				return open, i, true
			}
			if open+1 > i-1 {
				return 0, 0, false
			}
			return open + 1, i - 1, true
		}
		open = -1
	}
	return 0, 0, false
}

// pairRange finds the bracket pair enclosing x, honoring nesting.
func pairRange(line []rune, x int, open, close rune, around bool) (int, int, bool) {
	depth := 0
	start := -1
	for i := x; i >= 0; i-- {
		if line[i] == close && i != x {
			depth++
		} else if line[i] == open {
			if depth == 0 {
				start = i
				break
			}
			depth--
		}
	}
	if start < 0 {
		return 0, 0, false
	}

	depth = 0
	end := -1
	for i := start + 1; i < len(line); i++ {
		if line[i] == open {
			depth++
		} else if line[i] == close {
			if depth == 0 {
				end = i
				break
			}
			depth--
		}
	}
	if end < 0 {
		return 0, 0, false
	}

	if around {
		return start, end, true
	}
	if start+1 > end-1 {
		return 0, 0, false
	}
	return start + 1, end - 1, true
}

// --- Search ---

// StartSearch opens the search entry line.
func (c *CopyMode) StartSearch(dir SearchDir) {
	c.Searching = true
	c.SearchDir = dir
	c.SearchInput = nil
}

// SearchPush appends a character to the pending pattern.
func (c *CopyMode) SearchPush(r rune) {
	c.SearchInput = append(c.SearchInput, r)
}

// SearchPop removes the last character of the pending pattern.
func (c *CopyMode) SearchPop() {
	if len(c.SearchInput) > 0 {
		c.SearchInput = c.SearchInput[:len(c.SearchInput)-1]
	}
}

// CancelSearch abandons search entry, keeping any prior pattern.
func (c *CopyMode) CancelSearch() {
	c.Searching = false
	c.SearchInput = nil
}

// ExecuteSearch compiles the entered pattern, scans the whole virtual buffer
// for matches, and jumps to the nearest one in the search direction.
// Invalid patterns cancel silently.
func (c *CopyMode) ExecuteSearch(lineAt LineFunc) {
	pattern := string(c.SearchInput)
	c.Searching = false
	c.SearchInput = nil
	if pattern == "" {
		return
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return
	}
	c.pattern = re
	c.collectMatches(lineAt)

	if c.SearchDir == SearchForward {
		c.SearchNext(lineAt)
	} else {
		c.SearchPrev(lineAt)
	}
}

// collectMatches scans every buffer line for the active pattern.
func (c *CopyMode) collectMatches(lineAt LineFunc) {
	c.Matches = nil
	if c.pattern == nil {
		return
	}
	for y := -c.scrollbackLen; y < c.height; y++ {
		line := strings.TrimRight(lineString(lineAt(y)), " ")
		for _, loc := range c.pattern.FindAllStringIndex(line, -1) {
			startX := len([]rune(line[:loc[0]]))
			length := len([]rune(line[loc[0]:loc[1]]))
			if length == 0 {
				continue
			}
			c.Matches = append(c.Matches, Match{Y: y, X: startX, Len: length})
		}
	}
}

// lineString renders a rune row as text, mapping spacer columns to spaces.
func lineString(line []rune) string {
	out := make([]rune, len(line))
	for i, r := range line {
		if r == 0 {
			out[i] = ' '
		} else {
			out[i] = r
		}
	}
	return string(out)
}

// SearchNext jumps to the first match after the cursor, wrapping (n).
func (c *CopyMode) SearchNext(lineAt LineFunc) {
	if c.pattern == nil {
		return
	}
	c.collectMatches(lineAt)
	for _, m := range c.Matches {
		if m.Y > c.Cursor.Y || (m.Y == c.Cursor.Y && m.X > c.Cursor.X) {
			c.moveTo(BufferPos{X: m.X, Y: m.Y})
			return
		}
	}
	if len(c.Matches) > 0 {
		m := c.Matches[0]
		c.moveTo(BufferPos{X: m.X, Y: m.Y})
	}
}

// SearchPrev jumps to the last match before the cursor, wrapping (N).
func (c *CopyMode) SearchPrev(lineAt LineFunc) {
	if c.pattern == nil {
		return
	}
	c.collectMatches(lineAt)
	for i := len(c.Matches) - 1; i >= 0; i-- {
		m := c.Matches[i]
		if m.Y < c.Cursor.Y || (m.Y == c.Cursor.Y && m.X < c.Cursor.X) {
			c.moveTo(BufferPos{X: m.X, Y: m.Y})
			return
		}
	}
	if len(c.Matches) > 0 {
		m := c.Matches[len(c.Matches)-1]
		c.moveTo(BufferPos{X: m.X, Y: m.Y})
	}
}

// --- Coordinate mapping ---

// ScreenY maps a buffer line to a viewport row, or false when scrolled out.
func (c *CopyMode) ScreenY(bufferY int) (int, bool) {
	sy := bufferY + c.ScrollOffset
	if sy < 0 || sy >= c.height {
		return 0, false
	}
	return sy, true
}

// CursorScreenPos returns the cursor's viewport position, or false when the
// cursor is scrolled out of view.
func (c *CopyMode) CursorScreenPos() (x, y int, ok bool) {
	sy, visible := c.ScreenY(c.Cursor.Y)
	if !visible {
		return 0, 0, false
	}
	return c.Cursor.X, sy, true
}

// ExtractSelection renders the selected region to text: cells joined per
// line, trailing blanks trimmed, lines joined with newlines.
func (c *CopyMode) ExtractSelection(lineAt LineFunc) string {
	start, end, ok := c.SelectionBounds()
	if !ok {
		return ""
	}

	var b strings.Builder
	for y := start.Y; y <= end.Y; y++ {
		line := lineAt(y)
		from, to := 0, len(line)-1
		if y == start.Y {
			from = start.X
		}
		if y == end.Y && end.X < to {
			to = end.X
		}

		var row []rune
		for x := from; x <= to && x < len(line); x++ {
			r := line[x]
			if r == 0 {
				continue
			}
			row = append(row, r)
		}
		text := strings.TrimRight(string(row), " ")
		b.WriteString(text)
		if y < end.Y {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
