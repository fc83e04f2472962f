package truetm

import (
	"bytes"
	"strings"
	"testing"
)

func TestSGRTransitionDefault(t *testing.T) {
	cell := NewCell()
	if got := sgrTransition(&Cell{}, &cell, false); got != "\x1b[0m" {
		t.Errorf("default style = %q", got)
	}
}

func TestSGRTransitionColorOnly(t *testing.T) {
	from := NewCell()
	from.Fg = RGBColor(1, 2, 3)
	to := from
	to.Fg = RGBColor(10, 20, 30)

	got := sgrTransition(&from, &to, true)
	if got != "\x1b[38;2;10;20;30m" {
		t.Errorf("fg-only transition = %q", got)
	}
}

func TestSGRTransitionAttrsFullRespec(t *testing.T) {
	from := NewCell()
	to := NewCell()
	to.SetFlag(CellFlagBold)
	to.Fg = IndexedColor(1)

	got := sgrTransition(&from, &to, true)
	if !strings.HasPrefix(got, "\x1b[0;1") {
		t.Errorf("attr change must reset and respecify, got %q", got)
	}
	if !strings.Contains(got, ";31") {
		t.Errorf("expected fg 31 in %q", got)
	}
}

func TestColorParams(t *testing.T) {
	cases := []struct {
		color Color
		fg    bool
		want  string
	}{
		{IndexedColor(1), true, "31"},
		{IndexedColor(1), false, "41"},
		{IndexedColor(9), true, "91"},
		{IndexedColor(13), false, "105"},
		{IndexedColor(200), true, "38,5,200"},
		{RGBColor(1, 2, 3), false, "48,2,1,2,3"},
		{DefaultColor(), true, "39"},
		{DefaultColor(), false, "49"},
	}
	for _, tc := range cases {
		got := strings.Join(colorParams(tc.color, tc.fg), ",")
		if got != tc.want {
			t.Errorf("colorParams(%+v, %v) = %q, want %q", tc.color, tc.fg, got, tc.want)
		}
	}
}

func TestFrameSetTextWide(t *testing.T) {
	f := NewFrame(10, 2)
	end := f.SetText(0, 0, "a世b", DefaultColor(), DefaultColor(), 0)

	if end != 4 {
		t.Errorf("expected end col 4, got %d", end)
	}
	if !f.Cell(0, 1).IsWide() || !f.Cell(0, 2).IsWideSpacer() {
		t.Error("expected wide cell and spacer")
	}
	if f.Cell(0, 3).Char != 'b' {
		t.Errorf("expected b at col 3, got %q", f.Cell(0, 3).Char)
	}
}

func TestRendererFirstCommitPaintsEverything(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	r.Resize(4, 2)

	f := NewFrame(4, 2)
	f.SetText(0, 0, "hi", DefaultColor(), DefaultColor(), 0)
	if err := r.Commit(f); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.Contains(s, "\x1b[2J") {
		t.Error("first commit must clear the screen")
	}
	if !strings.Contains(s, "hi") {
		t.Errorf("expected glyphs in %q", s)
	}
}

func TestRendererDiffEmitsOnlyChanges(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	r.Resize(10, 3)

	f := NewFrame(10, 3)
	f.SetText(0, 0, "aaaa", DefaultColor(), DefaultColor(), 0)
	if err := r.Commit(f); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	g := f.clone()
	g.Cell(1, 2).Char = 'Z'
	if err := r.Commit(g); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.Contains(s, "\x1b[2;3H") {
		t.Errorf("expected single CUP to (2;3), got %q", s)
	}
	if !strings.Contains(s, "Z") {
		t.Errorf("expected changed glyph, got %q", s)
	}
	if strings.Contains(s, "a") {
		t.Errorf("unchanged cells must not be re-emitted: %q", s)
	}
}

func TestRendererSkipsCUPForAdjacentCells(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	r.Resize(10, 2)

	f := NewFrame(10, 2)
	if err := r.Commit(f); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	g := f.clone()
	g.SetText(0, 2, "xy", DefaultColor(), DefaultColor(), 0)
	if err := r.Commit(g); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if strings.Count(s, "\x1b[1;3H") != 1 {
		t.Errorf("expected one CUP for the run start, got %q", s)
	}
	if strings.Contains(s, "\x1b[1;4H") {
		t.Errorf("adjacent cell must reuse the emit position: %q", s)
	}
}

func TestRendererCursorParking(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	r.Resize(10, 4)

	f := NewFrame(10, 4)
	f.cursorRow = 2
	f.cursorCol = 5
	f.cursorVisible = true
	if err := r.Commit(f); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.HasSuffix(s, "\x1b[3;6H\x1b[?25h") {
		t.Errorf("expected trailing park+show, got %q", s)
	}
}

func TestRendererHiddenCursorStaysHidden(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	r.Resize(10, 4)

	f := NewFrame(10, 4)
	f.cursorVisible = false
	if err := r.Commit(f); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(out.String(), "\x1b[?25h") {
		t.Error("cursor must stay hidden when the child hides it")
	}
}

func TestRendererTruecolorPassthrough(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	r.Resize(10, 2)

	f := NewFrame(10, 2)
	f.SetText(0, 0, "X", RGBColor(10, 20, 30), RGBColor(40, 50, 60), 0)
	if err := r.Commit(f); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.Contains(s, "38;2;10;20;30") || !strings.Contains(s, "48;2;40;50;60") {
		t.Errorf("expected unsampled truecolor SGR, got %q", s)
	}
}

func TestComposeFrameWindowContentAndStatusBar(t *testing.T) {
	a := newTestApp(t)
	w, _ := pipeWindow(t, 1, SingleTag(1))
	a.wm.Add(w)
	a.rects[1] = Rect{X: 0, Y: 0, W: 80, H: 23}
	w.Parser.Parse([]byte("\x1b[31mhello"))

	frame := a.composeFrame()

	// Row 0 is the header line.
	if frame.Cell(0, 0).Char != '─' {
		t.Errorf("expected header line, got %q", frame.Cell(0, 0).Char)
	}
	// Content starts on row 1.
	cell := frame.Cell(1, 0)
	if cell.Char != 'h' || cell.Fg != IndexedColor(1) {
		t.Errorf("content cell = %q fg %+v", cell.Char, cell.Fg)
	}
	// Status bar on the last row carries the viewed tag.
	if frame.Cell(23, 1).Char != '1' {
		t.Errorf("expected tag 1 on status bar, got %q", frame.Cell(23, 1).Char)
	}
}

func TestComposeFrameCopyModeSelectionReversed(t *testing.T) {
	a := newTestApp(t)
	w, _ := pipeWindow(t, 1, SingleTag(1))
	a.wm.Add(w)
	a.rects[1] = Rect{X: 0, Y: 0, W: 80, H: 23}
	w.Parser.Parse([]byte("abcdef"))

	a.enterCopyMode()
	a.copy.Cursor = BufferPos{X: 1, Y: 0}
	a.copy.ToggleVisualChar()
	a.copy.moveTo(BufferPos{X: 3, Y: 0})

	frame := a.composeFrame()

	if frame.Cell(1, 2).Flags&CellFlagReverse == 0 {
		t.Error("selected cell must render reverse-video")
	}
	if frame.Cell(1, 5).Flags&CellFlagReverse != 0 {
		t.Error("unselected cell must not be reversed")
	}
}
