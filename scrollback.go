package truetm

// ScrollbackLine is one screen row archived from the primary screen.
// Wrapped records whether the row continued onto the next one at the time it
// was evicted, which lets reflow rebuild logical lines after a width change.
type ScrollbackLine struct {
	Cells   []Cell
	Wrapped bool
}

// Scrollback is a bounded ring of lines scrolled off the top of the primary
// screen. The oldest line is evicted when capacity is exceeded. The alternate
// screen never contributes lines.
type Scrollback struct {
	lines []ScrollbackLine
	max   int
}

// NewScrollback creates a scrollback ring with the given capacity.
func NewScrollback(max int) *Scrollback {
	return &Scrollback{max: max}
}

// Push appends a line, evicting the oldest if the ring is full.
// The cells are copied so later grid mutations cannot alias into history.
func (s *Scrollback) Push(cells []Cell, wrapped bool) {
	line := ScrollbackLine{Cells: make([]Cell, len(cells)), Wrapped: wrapped}
	copy(line.Cells, cells)
	for i := range line.Cells {
		line.Cells[i].ClearDirty()
	}
	s.lines = append(s.lines, line)
	if s.max > 0 && len(s.lines) > s.max {
		excess := len(s.lines) - s.max
		s.lines = s.lines[excess:]
	}
}

// Len returns the current number of stored lines.
func (s *Scrollback) Len() int {
	return len(s.lines)
}

// Max returns the ring capacity.
func (s *Scrollback) Max() int {
	return s.max
}

// Line returns the line at index, where 0 is the oldest line.
// Returns nil if index is out of range.
func (s *Scrollback) Line(index int) []Cell {
	if index < 0 || index >= len(s.lines) {
		return nil
	}
	return s.lines[index].Cells
}

// PopNewest removes and returns the most recent line, or false if empty.
// Used when growing the grid pulls history back onto the screen.
func (s *Scrollback) PopNewest() (ScrollbackLine, bool) {
	if len(s.lines) == 0 {
		return ScrollbackLine{}, false
	}
	line := s.lines[len(s.lines)-1]
	s.lines = s.lines[:len(s.lines)-1]
	return line, true
}

// Clear removes all stored lines.
func (s *Scrollback) Clear() {
	s.lines = nil
}

// Reflow rewraps every stored line to the given width. Rows that were split
// by the old width are joined back into logical lines first, then re-split.
// Called when the primary screen width changes; children repaint the live
// grid themselves.
func (s *Scrollback) Reflow(width int) {
	if width <= 0 || len(s.lines) == 0 {
		return
	}

	// Join physical rows into logical lines using the wrap markers.
	var logical [][]Cell
	var current []Cell
	for _, line := range s.lines {
		current = append(current, trimTrailingBlank(line.Cells, line.Wrapped)...)
		if !line.Wrapped {
			logical = append(logical, current)
			current = nil
		}
	}
	if current != nil {
		logical = append(logical, current)
	}

	// Re-split at the new width. A wide cell never straddles the boundary:
	// it moves whole onto the next row and the short row is padded.
	out := make([]ScrollbackLine, 0, len(logical))
	for _, cells := range logical {
		for {
			if len(cells) <= width {
				row := make([]Cell, width)
				for i := range row {
					row[i] = NewCell()
				}
				copy(row, cells)
				out = append(out, ScrollbackLine{Cells: row})
				break
			}
			cut := width
			if cells[cut-1].IsWide() {
				cut--
			}
			row := make([]Cell, width)
			for i := range row {
				row[i] = NewCell()
			}
			copy(row, cells[:cut])
			out = append(out, ScrollbackLine{Cells: row, Wrapped: true})
			cells = cells[cut:]
		}
	}

	s.lines = out
	if s.max > 0 && len(s.lines) > s.max {
		excess := len(s.lines) - s.max
		s.lines = s.lines[excess:]
	}
}

// trimTrailingBlank drops trailing default cells from an unwrapped row so
// joining does not glue padding into the middle of a logical line. Wrapped
// rows keep their full width.
func trimTrailingBlank(cells []Cell, wrapped bool) []Cell {
	if wrapped {
		return cells
	}
	end := len(cells)
	for end > 0 {
		c := cells[end-1]
		if c.Char != ' ' || c.Flags&^CellFlagDirty != 0 || c.Fg != DefaultColor() || c.Bg != DefaultColor() {
			break
		}
		end--
	}
	return cells[:end]
}
