package truetm

import (
	"bytes"
	"strconv"
	"unicode/utf8"
)

// parserState enumerates the states of the escape-sequence machine.
// The transitions follow the classic DEC-compatible parser: every byte class
// has a defined action in every state, and malformed input always falls back
// to ground without side effects.
type parserState int

const (
	stateGround parserState = iota
	stateEscape
	stateEscapeIntermediate
	stateCSIEntry
	stateCSIParam
	stateCSIIntermediate
	stateCSIIgnore
	stateOSCString
	stateDCSString
	stateSOSPMAPCString
)

const (
	maxCSIParams = 32
	maxOSCLength = 4096
)

// Parser turns a child's byte stream into Screen mutations. UTF-8 decoding
// is layered over the ground state; incomplete multibyte tails survive
// across Parse calls so PTY read boundaries never split a character.
type Parser struct {
	screen *Screen
	state  parserState

	// CSI accumulator
	params       []SGRParam
	curParam     int
	curSubs      []int
	inSub        bool
	private      byte
	intermediate byte
	ignoring     bool

	// OSC accumulator
	oscBuf bytes.Buffer
	oscEsc bool // saw ESC inside the string, ST pending

	// UTF-8 accumulator
	utf8Buf  [4]byte
	utf8Len  int
	utf8Need int
}

// NewParser creates a parser driving the given screen.
func NewParser(screen *Screen) *Parser {
	return &Parser{screen: screen}
}

// Parse processes a chunk of child output.
func (p *Parser) Parse(data []byte) {
	for _, b := range data {
		p.processByte(b)
	}
}

func (p *Parser) processByte(b byte) {
	// UTF-8 continuation handling is only meaningful in ground state;
	// entering any escape state aborts a pending sequence.
	if p.utf8Need > 0 {
		if p.state == stateGround && b&0xC0 == 0x80 {
			p.utf8Buf[p.utf8Len] = b
			p.utf8Len++
			p.utf8Need--
			if p.utf8Need == 0 {
				r, _ := utf8.DecodeRune(p.utf8Buf[:p.utf8Len])
				if r == utf8.RuneError {
					r = '�'
				}
				p.screen.Input(r)
			}
			return
		}
		// Truncated sequence: emit a replacement and reprocess this byte.
		p.utf8Need = 0
		p.utf8Len = 0
		p.screen.Input('�')
	}

	switch p.state {
	case stateGround:
		p.ground(b)
	case stateEscape:
		p.escape(b)
	case stateEscapeIntermediate:
		p.escapeIntermediate(b)
	case stateCSIEntry, stateCSIParam, stateCSIIntermediate:
		p.csi(b)
	case stateCSIIgnore:
		p.csiIgnore(b)
	case stateOSCString:
		p.oscString(b)
	case stateDCSString, stateSOSPMAPCString:
		p.stringIgnore(b)
	}
}

// --- Ground ---

func (p *Parser) ground(b byte) {
	switch {
	case b == 0x1B:
		p.state = stateEscape
	case b < 0x20 || b == 0x7F:
		p.executeControl(b)
	case b < 0x80:
		p.screen.Input(rune(b))
	case b >= 0xC2 && b <= 0xDF:
		p.startUTF8(b, 1)
	case b >= 0xE0 && b <= 0xEF:
		p.startUTF8(b, 2)
	case b >= 0xF0 && b <= 0xF4:
		p.startUTF8(b, 3)
	default:
		// Stray continuation or invalid starter.
		p.screen.Input('�')
	}
}

func (p *Parser) startUTF8(b byte, need int) {
	p.utf8Buf[0] = b
	p.utf8Len = 1
	p.utf8Need = need
}

// executeControl handles C0 controls. They act immediately in ground and
// inside escape/CSI collection, per the reference parser.
func (p *Parser) executeControl(b byte) {
	switch b {
	case 0x07: // BEL
	case 0x08:
		p.screen.Backspace()
	case 0x09:
		p.screen.Tab()
	case 0x0A, 0x0B, 0x0C:
		p.screen.Linefeed()
	case 0x0D:
		p.screen.CarriageReturn()
	case 0x0E, 0x0F: // SO/SI - charset shifts, not implemented
	}
}

// --- Escape ---

func (p *Parser) escape(b byte) {
	switch {
	case b == 0x18 || b == 0x1A: // CAN/SUB abort
		p.state = stateGround
	case b == 0x1B:
		// Stay: a second ESC restarts the sequence.
	case b < 0x20:
		p.executeControl(b)
	case b >= 0x20 && b <= 0x2F:
		p.intermediate = b
		p.state = stateEscapeIntermediate
	default:
		p.state = stateGround
		p.escapeDispatch(b)
	}
}

func (p *Parser) escapeDispatch(b byte) {
	switch b {
	case '[':
		p.resetCSI()
		p.state = stateCSIEntry
	case ']':
		p.oscBuf.Reset()
		p.oscEsc = false
		p.state = stateOSCString
	case 'P':
		p.state = stateDCSString
	case 'X', '^', '_':
		p.state = stateSOSPMAPCString
	case '7':
		p.screen.SaveCursor()
	case '8':
		p.screen.RestoreCursor()
	case 'D':
		p.screen.Linefeed()
	case 'E':
		p.screen.NextLine()
	case 'M':
		p.screen.ReverseIndex()
	case 'H':
		p.screen.HorizontalTabSet()
	case 'c':
		// RIS: full reset expressed through the action set.
		p.screen.SetScrollRegion(0, p.screen.Rows())
		p.screen.ApplySGR(nil)
		p.screen.SetPrivateMode(1049, false)
		p.screen.ClearScreen(ClearAll)
		p.screen.Goto(0, 0)
		p.screen.SetPrivateMode(25, true)
	case '=', '>': // keypad modes, ignored
	}
}

func (p *Parser) escapeIntermediate(b byte) {
	switch {
	case b == 0x18 || b == 0x1A || b == 0x1B:
		p.state = stateGround
		if b == 0x1B {
			p.state = stateEscape
		}
	case b < 0x20:
		p.executeControl(b)
	case b >= 0x20 && b <= 0x2F:
		// Additional intermediates collected but unused.
	default:
		if p.intermediate == '#' && b == '8' {
			p.screen.Decaln()
		}
		// Charset designations (ESC ( X etc.) are consumed and ignored.
		p.state = stateGround
	}
}

// --- CSI ---

func (p *Parser) resetCSI() {
	p.params = p.params[:0]
	p.curParam = 0
	p.curSubs = nil
	p.inSub = false
	p.private = 0
	p.intermediate = 0
	p.ignoring = false
}

func (p *Parser) csi(b byte) {
	switch {
	case b == 0x18 || b == 0x1A:
		p.state = stateGround
	case b == 0x1B:
		p.state = stateEscape
	case b < 0x20 || b == 0x7F:
		p.executeControl(b)
	case b >= '0' && b <= '9':
		if p.inSub {
			if len(p.curSubs) > 0 {
				p.curSubs[len(p.curSubs)-1] = p.curSubs[len(p.curSubs)-1]*10 + int(b-'0')
			}
		} else {
			p.curParam = p.curParam*10 + int(b-'0')
		}
		p.state = stateCSIParam
	case b == ';':
		p.pushParam()
		p.state = stateCSIParam
	case b == ':':
		p.curSubs = append(p.curSubs, 0)
		p.inSub = true
		p.state = stateCSIParam
	case b >= '<' && b <= '?':
		// Private markers are only valid before any parameter.
		if p.state == stateCSIEntry {
			p.private = b
		} else {
			p.state = stateCSIIgnore
		}
	case b >= 0x20 && b <= 0x2F:
		p.intermediate = b
		p.state = stateCSIIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.pushParam()
		p.csiDispatch(b)
		p.state = stateGround
	default:
		p.state = stateCSIIgnore
	}
}

func (p *Parser) csiIgnore(b byte) {
	switch {
	case b == 0x18 || b == 0x1A:
		p.state = stateGround
	case b == 0x1B:
		p.state = stateEscape
	case b >= 0x40 && b <= 0x7E:
		p.state = stateGround
	}
}

func (p *Parser) pushParam() {
	if len(p.params) >= maxCSIParams {
		p.ignoring = true
		return
	}
	p.params = append(p.params, SGRParam{Base: p.curParam, Subs: p.curSubs})
	p.curParam = 0
	p.curSubs = nil
	p.inSub = false
}

// param returns the n-th numeric parameter with a default.
func (p *Parser) param(n, def int) int {
	if n >= len(p.params) {
		return def
	}
	v := p.params[n].Base
	if v == 0 {
		return def
	}
	return v
}

// paramZero is like param but keeps an explicit 0 (ED/EL modes).
func (p *Parser) paramZero(n int) int {
	if n >= len(p.params) {
		return 0
	}
	return p.params[n].Base
}

func (p *Parser) csiDispatch(final byte) {
	if p.ignoring || p.intermediate != 0 {
		// Sequences with intermediates (DECSCUSR etc.) are outside the
		// supported subset; drop them whole.
		return
	}

	if p.private == '?' {
		switch final {
		case 'h', 'l':
			for i := range p.params {
				p.screen.SetPrivateMode(p.params[i].Base, final == 'h')
			}
		}
		return
	}
	if p.private != 0 {
		return
	}

	switch final {
	case 'A':
		p.screen.CursorUp(p.param(0, 1))
	case 'B':
		p.screen.CursorDown(p.param(0, 1))
	case 'C':
		p.screen.CursorForward(p.param(0, 1))
	case 'D':
		p.screen.CursorBack(p.param(0, 1))
	case 'G':
		p.screen.GotoCol(p.param(0, 1) - 1)
	case 'H', 'f':
		p.screen.Goto(p.param(0, 1)-1, p.param(1, 1)-1)
	case 'd':
		p.screen.GotoRow(p.param(0, 1) - 1)
	case 'J':
		switch p.paramZero(0) {
		case 0:
			p.screen.ClearScreen(ClearBelow)
		case 1:
			p.screen.ClearScreen(ClearAbove)
		case 2:
			p.screen.ClearScreen(ClearAll)
		case 3:
			p.screen.ClearScreen(ClearSaved)
		}
	case 'K':
		switch p.paramZero(0) {
		case 0:
			p.screen.ClearLine(LineClearRight)
		case 1:
			p.screen.ClearLine(LineClearLeft)
		case 2:
			p.screen.ClearLine(LineClearAll)
		}
	case 'L':
		p.screen.InsertLines(p.param(0, 1))
	case 'M':
		p.screen.DeleteLines(p.param(0, 1))
	case '@':
		p.screen.InsertBlanks(p.param(0, 1))
	case 'P':
		p.screen.DeleteChars(p.param(0, 1))
	case 'X':
		p.screen.EraseChars(p.param(0, 1))
	case 'S':
		p.screen.ScrollUp(p.param(0, 1))
	case 'T':
		p.screen.ScrollDown(p.param(0, 1))
	case 'r':
		top := p.param(0, 1) - 1
		bottom := p.param(1, p.screen.Rows())
		p.screen.SetScrollRegion(top, bottom)
	case 'm':
		p.screen.ApplySGR(p.params)
	case 'n':
		p.screen.DeviceStatus(p.paramZero(0))
	case 'g':
		switch p.paramZero(0) {
		case 0:
			p.screen.ClearTabs(TabClearCurrent)
		case 3:
			p.screen.ClearTabs(TabClearAll)
		}
	case 'h', 'l':
		for i := range p.params {
			p.screen.SetMode(p.params[i].Base, final == 'h')
		}
	}
}

// --- OSC ---

func (p *Parser) oscString(b byte) {
	switch {
	case b == 0x07:
		p.oscDispatch()
		p.state = stateGround
	case b == 0x1B:
		p.oscEsc = true
	case p.oscEsc && b == '\\':
		p.oscDispatch()
		p.oscEsc = false
		p.state = stateGround
	case p.oscEsc:
		// ESC followed by anything but ST aborts the string.
		p.oscEsc = false
		p.state = stateEscape
		p.escape(b)
	case b == 0x18 || b == 0x1A:
		p.state = stateGround
	default:
		if p.oscBuf.Len() < maxOSCLength {
			p.oscBuf.WriteByte(b)
		}
	}
}

func (p *Parser) oscDispatch() {
	payload := p.oscBuf.String()
	p.oscBuf.Reset()

	cmd := payload
	arg := ""
	if idx := bytes.IndexByte([]byte(payload), ';'); idx >= 0 {
		cmd = payload[:idx]
		arg = payload[idx+1:]
	}

	n, err := strconv.Atoi(cmd)
	if err != nil {
		return
	}
	switch n {
	case 0, 2:
		p.screen.SetTitle(arg)
	case 52:
		// OSC 52 payload is "<clipboard>;<base64 data>".
		if idx := bytes.IndexByte([]byte(arg), ';'); idx >= 0 {
			p.screen.ClipboardStore([]byte(arg[idx+1:]))
		}
	}
}

// --- DCS / SOS / PM / APC ---

// stringIgnore consumes string payloads terminated by ST (or BEL for
// robustness) without acting on them.
func (p *Parser) stringIgnore(b byte) {
	switch {
	case b == 0x07:
		p.state = stateGround
	case b == 0x1B:
		p.oscEsc = true
	case p.oscEsc && b == '\\':
		p.oscEsc = false
		p.state = stateGround
	case p.oscEsc:
		p.oscEsc = false
	case b == 0x18 || b == 0x1A:
		p.state = stateGround
	}
}
