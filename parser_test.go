package truetm

import (
	"bytes"
	"testing"
)

func parseString(t *testing.T, rows, cols int, input string) *Screen {
	t.Helper()
	s := NewScreen(rows, cols, 100)
	p := NewParser(s)
	p.Parse([]byte(input))
	return s
}

func TestParserPlainText(t *testing.T) {
	s := parseString(t, 4, 20, "hello")

	if got := s.ActiveBuffer().LineContent(0); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestParserIndexedColorThenReset(t *testing.T) {
	// End-to-end scenario: "\x1b[31mA\x1b[0mB".
	s := parseString(t, 4, 20, "\x1b[31mA\x1b[0mB")

	a := s.ActiveBuffer().Cell(0, 0)
	if a.Char != 'A' || a.Fg != IndexedColor(1) {
		t.Errorf("cell (0,0) = %q fg %+v", a.Char, a.Fg)
	}
	b := s.ActiveBuffer().Cell(0, 1)
	if b.Char != 'B' || b.Fg != DefaultColor() || b.Bg != DefaultColor() || b.Flags&CellFlagAttrMask != 0 {
		t.Errorf("cell (0,1) = %q style %+v/%+v", b.Char, b.Fg, b.Bg)
	}
}

func TestParserTruecolor(t *testing.T) {
	// End-to-end scenario: "\x1b[38;2;10;20;30mX".
	s := parseString(t, 4, 20, "\x1b[38;2;10;20;30mX")

	cell := s.ActiveBuffer().Cell(0, 0)
	if cell.Char != 'X' || cell.Fg != RGBColor(10, 20, 30) {
		t.Errorf("cell (0,0) = %q fg %+v", cell.Char, cell.Fg)
	}
}

func TestParserTruecolorColonForm(t *testing.T) {
	s := parseString(t, 4, 20, "\x1b[38:2:10:20:30mX")

	if got := s.ActiveBuffer().Cell(0, 0).Fg; got != RGBColor(10, 20, 30) {
		t.Errorf("colon form fg = %+v", got)
	}
}

func TestParser256Color(t *testing.T) {
	s := parseString(t, 4, 20, "\x1b[38;5;196m\x1b[48;5;21mZ")

	cell := s.ActiveBuffer().Cell(0, 0)
	if cell.Fg != IndexedColor(196) || cell.Bg != IndexedColor(21) {
		t.Errorf("cell style = %+v / %+v", cell.Fg, cell.Bg)
	}
}

func TestParserCursorMovement(t *testing.T) {
	s := parseString(t, 10, 20, "\x1b[5;7H")
	row, col := s.CursorPos()
	if row != 4 || col != 6 {
		t.Errorf("CUP: expected (4,6), got (%d,%d)", row, col)
	}

	s = parseString(t, 10, 20, "\x1b[5;7H\x1b[2A\x1b[3C\x1b[1B\x1b[4D")
	row, col = s.CursorPos()
	if row != 3 || col != 5 {
		t.Errorf("relative moves: expected (3,5), got (%d,%d)", row, col)
	}

	s = parseString(t, 10, 20, "\x1b[8G\x1b[3d")
	row, col = s.CursorPos()
	if row != 2 || col != 7 {
		t.Errorf("CHA/VPA: expected (2,7), got (%d,%d)", row, col)
	}
}

func TestParserEraseInLine(t *testing.T) {
	s := parseString(t, 2, 10, "abcdef\x1b[4G\x1b[K")
	if got := s.ActiveBuffer().LineContent(0); got != "abc" {
		t.Errorf("EL 0: got %q", got)
	}

	s = parseString(t, 2, 10, "abcdef\x1b[4G\x1b[1K")
	if got := s.ActiveBuffer().LineContent(0); got != "    ef" {
		t.Errorf("EL 1: got %q", got)
	}

	s = parseString(t, 2, 10, "abcdef\x1b[2K")
	if got := s.ActiveBuffer().LineContent(0); got != "" {
		t.Errorf("EL 2: got %q", got)
	}
}

func TestParserEraseInDisplay(t *testing.T) {
	s := parseString(t, 3, 5, "aaa\r\nbbb\r\nccc\x1b[2;2H\x1b[J")
	if got := s.ActiveBuffer().LineContent(0); got != "aaa" {
		t.Errorf("ED 0 row 0: %q", got)
	}
	if got := s.ActiveBuffer().LineContent(1); got != "b" {
		t.Errorf("ED 0 row 1: %q", got)
	}
	if got := s.ActiveBuffer().LineContent(2); got != "" {
		t.Errorf("ED 0 row 2: %q", got)
	}
}

func TestParserInsertDelete(t *testing.T) {
	s := parseString(t, 2, 10, "abcdef\x1b[2G\x1b[2@")
	if got := s.ActiveBuffer().LineContent(0); got != "a  bcdef" {
		t.Errorf("ICH: %q", got)
	}

	s = parseString(t, 2, 10, "abcdef\x1b[2G\x1b[2P")
	if got := s.ActiveBuffer().LineContent(0); got != "adef" {
		t.Errorf("DCH: %q", got)
	}

	s = parseString(t, 2, 10, "abcdef\x1b[2G\x1b[2X")
	if got := s.ActiveBuffer().LineContent(0); got != "a  def" {
		t.Errorf("ECH: %q", got)
	}
}

func TestParserScrollRegionSequence(t *testing.T) {
	s := parseString(t, 5, 10, "\x1b[2;4r")
	top, bottom := s.ScrollRegion()
	if top != 1 || bottom != 4 {
		t.Errorf("DECSTBM: expected [1,4), got [%d,%d)", top, bottom)
	}
}

func TestParserDSRResponse(t *testing.T) {
	s := NewScreen(10, 20, 100)
	var resp bytes.Buffer
	s.SetResponse(&resp)
	p := NewParser(s)

	p.Parse([]byte("\x1b[3;4H\x1b[6n"))

	if got := resp.String(); got != "\x1b[3;4R" {
		t.Errorf("DSR 6 response = %q", got)
	}
}

func TestParserOSCTitle(t *testing.T) {
	s := parseString(t, 4, 20, "\x1b]0;my title\x07")
	if s.Title() != "my title" {
		t.Errorf("BEL-terminated title = %q", s.Title())
	}

	s = parseString(t, 4, 20, "\x1b]2;other\x1b\\after")
	if s.Title() != "other" {
		t.Errorf("ST-terminated title = %q", s.Title())
	}
	if got := s.ActiveBuffer().LineContent(0); got != "after" {
		t.Errorf("text after ST lost: %q", got)
	}
}

func TestParserOSC52Clipboard(t *testing.T) {
	s := NewScreen(4, 20, 100)
	var got []byte
	s.SetClipboardSink(func(data []byte) { got = data })
	p := NewParser(s)

	p.Parse([]byte("\x1b]52;c;aGVsbG8=\x07"))

	if string(got) != "aGVsbG8=" {
		t.Errorf("clipboard payload = %q", got)
	}
}

func TestParserPrivateModes(t *testing.T) {
	s := parseString(t, 4, 20, "\x1b[?1049h")
	if !s.IsAlternate() {
		t.Error("DECSET 1049 must switch to the alternate screen")
	}

	s = parseString(t, 4, 20, "\x1b[?25l")
	if s.CursorVisible() {
		t.Error("DECRST 25 must hide the cursor")
	}

	s = parseString(t, 4, 20, "\x1b[?1000h\x1b[?1006h")
	if !s.HasMode(ModeMouseClicks) || !s.HasMode(ModeMouseSGR) {
		t.Error("mouse modes must be recorded")
	}
}

func TestParserDECSCDECRC(t *testing.T) {
	s := parseString(t, 5, 10, "\x1b[31m\x1b[3;4H\x1b7\x1b[H\x1b[0m\x1b8X")

	cell := s.ActiveBuffer().Cell(2, 3)
	if cell == nil || cell.Char != 'X' {
		t.Fatal("expected X written at the restored position")
	}
	if cell.Fg != IndexedColor(1) {
		t.Errorf("expected restored pen, got %+v", cell.Fg)
	}
}

func TestParserSplitUTF8AcrossReads(t *testing.T) {
	s := NewScreen(4, 20, 100)
	p := NewParser(s)

	full := []byte("世")
	p.Parse(full[:1])
	p.Parse(full[1:])

	cell := s.ActiveBuffer().Cell(0, 0)
	if cell.Char != '世' {
		t.Errorf("expected split rune reassembled, got %q", cell.Char)
	}
}

func TestParserInvalidUTF8(t *testing.T) {
	s := NewScreen(4, 20, 100)
	p := NewParser(s)

	p.Parse([]byte{0xFF, 'a', 0xC2, 'b'})

	if got := s.ActiveBuffer().Cell(0, 0).Char; got != '�' {
		t.Errorf("invalid starter: expected U+FFFD, got %q", got)
	}
	if got := s.ActiveBuffer().Cell(0, 1).Char; got != 'a' {
		t.Errorf("expected 'a' after recovery, got %q", got)
	}
	if got := s.ActiveBuffer().Cell(0, 2).Char; got != '�' {
		t.Errorf("truncated sequence: expected U+FFFD, got %q", got)
	}
	if got := s.ActiveBuffer().Cell(0, 3).Char; got != 'b' {
		t.Errorf("expected 'b' after recovery, got %q", got)
	}
}

func TestParserMalformedSequencesRecover(t *testing.T) {
	cases := []string{
		"\x1b[999;999;999;999zok",   // unknown final
		"\x1b[;;;;;;mok",            // empty params
		"\x1b]9999;garbage\x07ok",   // unknown OSC
		"\x1b_apc payload\x1b\\ok",  // APC ignored
		"\x1bPdcs payload\x1b\\ok",  // DCS ignored
		"\x1b[?9999hok",             // unknown private mode
		"\x1b[38;2mok",              // truncated truecolor
		"\x1b(Bok",                  // charset designation
	}

	for _, input := range cases {
		s := parseString(t, 4, 20, input)
		if got := s.ActiveBuffer().LineContent(0); got != "ok" {
			t.Errorf("input %q: expected parser back in ground with %q, got %q", input, "ok", got)
		}
	}
}

func TestParserCANAborts(t *testing.T) {
	s := parseString(t, 4, 20, "\x1b[3\x18ab")
	if got := s.ActiveBuffer().LineContent(0); got != "ab" {
		t.Errorf("CAN must abort the sequence, got %q", got)
	}
}

func TestParserTabStops(t *testing.T) {
	s := parseString(t, 4, 30, "\ta")
	if got := s.ActiveBuffer().Cell(0, 8).Char; got != 'a' {
		t.Errorf("expected tab to column 8, got %q at 8", got)
	}

	// Set a custom stop via HTS at column 4, then tab onto it from column 0.
	s = parseString(t, 4, 30, "\x1b[5G\x1bH\x1b[1G\ta")
	if got := s.ActiveBuffer().Cell(0, 4).Char; got != 'a' {
		t.Error("expected HTS stop honored")
	}
}

func TestParserLinefeedScrollArchives(t *testing.T) {
	s := parseString(t, 2, 10, "one\r\ntwo\r\nthree")

	if s.Scrollback().Len() != 1 {
		t.Fatalf("expected 1 archived line, got %d", s.Scrollback().Len())
	}
	if got := cellsContent(s.Scrollback().Line(0)); got != "one" {
		t.Errorf("archived = %q", got)
	}
	if got := s.ActiveBuffer().LineContent(0); got != "two" {
		t.Errorf("row 0 = %q", got)
	}
}

func TestParserReverseIndex(t *testing.T) {
	s := parseString(t, 3, 10, "a\r\nb\x1bM\x1bMc")

	// Two RIs from row 1: the second scrolls a blank line in on top.
	if got := s.ActiveBuffer().LineContent(0); got != " c" {
		t.Errorf("row 0 = %q", got)
	}
	if got := s.ActiveBuffer().LineContent(1); got != "a" {
		t.Errorf("row 1 = %q", got)
	}
}

func TestParserDECALN(t *testing.T) {
	s := parseString(t, 2, 3, "\x1b#8")
	for row := 0; row < 2; row++ {
		for col := 0; col < 3; col++ {
			if s.ActiveBuffer().Cell(row, col).Char != 'E' {
				t.Fatalf("expected E at (%d,%d)", row, col)
			}
		}
	}
}
