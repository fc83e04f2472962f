package truetm

import "testing"

func TestNewBuffer(t *testing.T) {
	b := NewBuffer(24, 80)

	if b.Rows() != 24 {
		t.Errorf("expected 24 rows, got %d", b.Rows())
	}
	if b.Cols() != 80 {
		t.Errorf("expected 80 cols, got %d", b.Cols())
	}
}

func TestBufferCellOutOfBounds(t *testing.T) {
	b := NewBuffer(24, 80)

	if b.Cell(-1, 0) != nil {
		t.Error("expected nil for negative row")
	}
	if b.Cell(0, -1) != nil {
		t.Error("expected nil for negative col")
	}
	if b.Cell(24, 0) != nil {
		t.Error("expected nil for row >= rows")
	}
	if b.Cell(0, 80) != nil {
		t.Error("expected nil for col >= cols")
	}
}

func TestBufferClearRow(t *testing.T) {
	b := NewBuffer(24, 80)

	b.Cell(0, 0).Char = 'A'
	b.Cell(0, 1).Char = 'B'

	b.ClearRow(0)

	if b.Cell(0, 0).Char != ' ' || b.Cell(0, 1).Char != ' ' {
		t.Error("expected row cleared")
	}
}

func TestBufferScrollUp(t *testing.T) {
	b := NewBuffer(5, 10)

	for row := 0; row < 5; row++ {
		b.Cell(row, 0).Char = rune('0' + row)
	}

	b.ScrollUp(0, 5, 1)

	if b.Cell(0, 0).Char != '1' {
		t.Errorf("expected '1', got %q", b.Cell(0, 0).Char)
	}
	if b.Cell(4, 0).Char != ' ' {
		t.Errorf("expected space, got %q", b.Cell(4, 0).Char)
	}
}

func TestBufferScrollDown(t *testing.T) {
	b := NewBuffer(5, 10)

	for row := 0; row < 5; row++ {
		b.Cell(row, 0).Char = rune('0' + row)
	}

	b.ScrollDown(0, 5, 1)

	if b.Cell(1, 0).Char != '0' {
		t.Errorf("expected '0', got %q", b.Cell(1, 0).Char)
	}
	if b.Cell(0, 0).Char != ' ' {
		t.Errorf("expected space, got %q", b.Cell(0, 0).Char)
	}
}

func TestBufferScrollUpArchives(t *testing.T) {
	b := NewBufferWithScrollback(5, 10, NewScrollback(100))

	for row := 0; row < 5; row++ {
		b.Cell(row, 0).Char = rune('A' + row)
	}

	b.ScrollUp(0, 5, 1)

	if b.Scrollback().Len() != 1 {
		t.Fatalf("expected 1 scrollback line, got %d", b.Scrollback().Len())
	}
	if got := cellsContent(b.Scrollback().Line(0)); got != "A" {
		t.Errorf("expected archived line %q, got %q", "A", got)
	}
}

func TestBufferRegionScrollDoesNotArchive(t *testing.T) {
	b := NewBufferWithScrollback(5, 10, NewScrollback(100))
	b.Cell(1, 0).Char = 'X'

	// A DECSTBM-style region not covering the full screen never archives.
	b.ScrollUp(1, 4, 1)

	if b.Scrollback().Len() != 0 {
		t.Errorf("expected no archived lines, got %d", b.Scrollback().Len())
	}
}

func TestBufferInsertDeleteChars(t *testing.T) {
	b := NewBuffer(2, 6)
	for i, r := range "abcdef" {
		b.Cell(0, i).Char = r
	}

	b.InsertBlanks(0, 1, 2)
	if got := b.LineContent(0); got != "a  bcd" {
		t.Errorf("after insert: %q", got)
	}

	b.DeleteChars(0, 1, 2)
	if got := b.LineContent(0); got != "abcd" {
		t.Errorf("after delete: %q", got)
	}
}

func TestBufferEraseChars(t *testing.T) {
	b := NewBuffer(1, 6)
	for i, r := range "abcdef" {
		b.Cell(0, i).Char = r
	}

	b.EraseChars(0, 2, 2)
	if got := b.LineContent(0); got != "ab  ef" {
		t.Errorf("after erase: %q", got)
	}
}

func TestBufferInsertDeleteLines(t *testing.T) {
	b := NewBuffer(4, 5)
	for row := 0; row < 4; row++ {
		b.Cell(row, 0).Char = rune('a' + row)
	}

	b.InsertLines(1, 1, 4)
	if b.Cell(1, 0).Char != ' ' || b.Cell(2, 0).Char != 'b' {
		t.Error("insert lines did not shift down")
	}

	b.DeleteLines(1, 1, 4)
	if b.Cell(1, 0).Char != 'b' {
		t.Error("delete lines did not shift up")
	}
}

func TestBufferShrinkRowsArchivesAboveCursor(t *testing.T) {
	b := NewBufferWithScrollback(5, 10, NewScrollback(100))
	for row := 0; row < 5; row++ {
		b.Cell(row, 0).Char = rune('a' + row)
	}

	// Cursor on the last row: both dropped rows must go to history.
	archived := b.ShrinkRows(3, 4)

	if archived != 2 {
		t.Fatalf("expected 2 archived rows, got %d", archived)
	}
	if b.Rows() != 3 {
		t.Errorf("expected 3 rows, got %d", b.Rows())
	}
	if b.Cell(0, 0).Char != 'c' {
		t.Errorf("expected top row 'c', got %q", b.Cell(0, 0).Char)
	}
	if got := cellsContent(b.Scrollback().Line(1)); got != "b" {
		t.Errorf("expected archived 'b', got %q", got)
	}
}

func TestBufferGrowRowsRestoresFromScrollback(t *testing.T) {
	b := NewBufferWithScrollback(5, 10, NewScrollback(100))
	for row := 0; row < 5; row++ {
		b.Cell(row, 0).Char = rune('a' + row)
	}
	b.ShrinkRows(3, 4)

	restored := b.GrowRows(5)

	if restored != 2 {
		t.Fatalf("expected 2 restored rows, got %d", restored)
	}
	if b.Cell(0, 0).Char != 'a' {
		t.Errorf("expected restored 'a', got %q", b.Cell(0, 0).Char)
	}
	if b.Scrollback().Len() != 0 {
		t.Errorf("expected scrollback drained, got %d", b.Scrollback().Len())
	}
}

func TestBufferResizeColsTruncatesWithoutReflow(t *testing.T) {
	b := NewBuffer(2, 8)
	for i, r := range "abcdefgh" {
		b.Cell(0, i).Char = r
	}

	b.ResizeCols(4)

	if b.Cols() != 4 {
		t.Fatalf("expected 4 cols, got %d", b.Cols())
	}
	if got := b.LineContent(0); got != "abcd" {
		t.Errorf("expected truncation, got %q", got)
	}
}

func TestBufferResizeColsReflowsScrollback(t *testing.T) {
	b := NewBufferWithScrollback(2, 8, NewScrollback(100))
	b.Scrollback().Push(makeLine("abcdefgh", 8), false)

	b.ResizeCols(4)

	if b.Scrollback().Len() != 2 {
		t.Fatalf("expected reflow into 2 rows, got %d", b.Scrollback().Len())
	}
	if got := cellsContent(b.Scrollback().Line(0)); got != "abcd" {
		t.Errorf("reflowed row 0 = %q", got)
	}
}

func TestBufferTabStops(t *testing.T) {
	b := NewBuffer(1, 24)

	if got := b.NextTabStop(0); got != 8 {
		t.Errorf("expected default stop at 8, got %d", got)
	}

	b.ClearAllTabStops()
	if got := b.NextTabStop(0); got != 23 {
		t.Errorf("expected last column with no stops, got %d", got)
	}

	b.SetTabStop(5)
	if got := b.NextTabStop(0); got != 5 {
		t.Errorf("expected explicit stop at 5, got %d", got)
	}

	b.ClearTabStop(5)
	if got := b.NextTabStop(0); got != 23 {
		t.Errorf("expected stop removed, got %d", got)
	}
}

func TestBufferDirtyTracking(t *testing.T) {
	b := NewBuffer(2, 4)
	if b.HasDirty() {
		t.Error("new buffer should be clean")
	}

	b.MarkDirty(0, 0)
	if !b.HasDirty() {
		t.Error("expected dirty after MarkDirty")
	}

	b.ClearAllDirty()
	if b.HasDirty() || b.Cell(0, 0).IsDirty() {
		t.Error("expected clean after ClearAllDirty")
	}
}
