package truetm

import "unicode/utf8"

// SpecialKey names the non-printing keys the modal layers care about.
// NORMAL mode never decodes: bytes stream to the child verbatim.
type SpecialKey int

const (
	KeyNone SpecialKey = iota
	KeyEscape
	KeyEnter
	KeyBackspace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyDelete
)

// Key is one decoded keypress: either a rune or a special key.
type Key struct {
	Rune    rune
	Special SpecialKey
}

// Mouse is one decoded SGR-1006 mouse event in outer-terminal coordinates
// (0-based).
type Mouse struct {
	Col, Row  int
	Button    int
	Release   bool
	Motion    bool
	WheelUp   bool
	WheelDown bool
}

// dispatchMode is the top-level state of the key dispatcher. Copy-mode
// substates (search entry, pending find, pending text object) live on the
// CopyMode value itself.
type dispatchMode int

const (
	modeNormal dispatchMode = iota
	modePrefix
	modePrefixArg
)

// Dispatcher implements the prefix-key modal grammar. It consumes raw bytes
// from the outer terminal, forwards passthrough input to the focused PTY,
// and interprets everything else against the binding table.
type Dispatcher struct {
	app     *App
	mode    dispatchMode
	pending Command // armed by v/t/T, waiting for a tag digit

	// partial holds an escape sequence split across read boundaries.
	partial []byte
}

// NewDispatcher creates a dispatcher bound to the application.
func NewDispatcher(app *App) *Dispatcher {
	return &Dispatcher{app: app}
}

// HandleInput feeds a chunk of outer-terminal input through the modal
// grammar.
func (d *Dispatcher) HandleInput(data []byte) {
	if len(d.partial) > 0 {
		data = append(d.partial, data...)
		d.partial = nil
	}

	for len(data) > 0 {
		if d.mode == modeNormal && d.app.copy == nil {
			data = d.passthrough(data)
			continue
		}

		key, mouse, consumed, incomplete := decodeEvent(data)
		if incomplete {
			d.partial = append([]byte(nil), data...)
			return
		}
		data = data[consumed:]
		if mouse != nil {
			d.app.handleMouse(*mouse)
			continue
		}
		d.dispatchKey(key)
	}
}

// passthrough streams NORMAL-mode bytes to the focused child, intercepting
// only the prefix byte and SGR mouse reports. Returns the unprocessed tail.
func (d *Dispatcher) passthrough(data []byte) []byte {
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == PrefixKey {
			d.app.writeInput(data[:i])
			d.mode = modePrefix
			return data[i+1:]
		}
		if b != 0x1B {
			continue
		}
		// Peek for an SGR mouse report; anything else is forwarded raw.
		rest := data[i:]
		if isMousePrefix(rest) {
			mouse, consumed, incomplete := decodeMouse(rest)
			if incomplete {
				d.app.writeInput(data[:i])
				d.partial = append([]byte(nil), rest...)
				return nil
			}
			d.app.writeInput(data[:i])
			d.app.handleMouse(mouse)
			return rest[consumed:]
		}
		if len(rest) < 3 && couldBeMousePrefix(rest) {
			d.app.writeInput(data[:i])
			d.partial = append([]byte(nil), rest...)
			return nil
		}
	}
	d.app.writeInput(data)
	return nil
}

func isMousePrefix(data []byte) bool {
	return len(data) >= 3 && data[0] == 0x1B && data[1] == '[' && data[2] == '<'
}

// couldBeMousePrefix reports whether data is a proper prefix of "\x1b[<".
func couldBeMousePrefix(data []byte) bool {
	const p = "\x1b[<"
	if len(data) >= len(p) {
		return false
	}
	for i := range data {
		if data[i] != p[i] {
			return false
		}
	}
	return true
}

// dispatchKey routes one decoded key according to the current mode.
func (d *Dispatcher) dispatchKey(key Key) {
	switch {
	case d.mode == modePrefix:
		d.mode = modeNormal
		d.handlePrefix(key)
	case d.mode == modePrefixArg:
		d.mode = modeNormal
		cmd := d.pending
		d.pending = CmdNone
		d.handleTagArg(cmd, key)
	case d.app.copy != nil:
		d.handleCopy(key)
	}
}

// handlePrefix interprets the key following Ctrl+B. Unknown keys are dropped.
func (d *Dispatcher) handlePrefix(key Key) {
	d.app.statusMsg = ""
	if key.Special != KeyNone && key.Special != KeyEnter {
		return
	}

	r := key.Rune
	if key.Special == KeyEnter {
		r = '\r'
	}

	if r >= '1' && r <= '9' {
		d.app.wm.FocusByID(int(r - '0'))
		d.app.invalidate()
		return
	}

	switch prefixBindings[r] {
	case CmdSpawn:
		d.app.spawn()
	case CmdClose:
		d.app.closeFocused()
	case CmdFocusNext:
		d.app.wm.FocusNext()
		d.app.invalidate()
	case CmdFocusPrev:
		d.app.wm.FocusPrev()
		d.app.invalidate()
	case CmdSwapMaster:
		d.app.wm.SwapWithMaster()
		d.app.applyLayout()
	case CmdMasterShrink:
		d.app.layout.AdjustMaster(-MasterFractionStep)
		d.app.applyLayout()
	case CmdMasterGrow:
		d.app.layout.AdjustMaster(MasterFractionStep)
		d.app.applyLayout()
	case CmdToggleBroadcast:
		d.app.wm.Broadcast = !d.app.wm.Broadcast
		d.app.invalidate()
	case CmdQuit:
		d.app.quit()
	case CmdSendPrefix:
		d.app.writeInput([]byte{PrefixKey})
	case CmdCopyMode:
		d.app.enterCopyMode()
	case CmdViewTag, CmdSetTag, CmdToggleTag:
		d.pending = prefixBindings[r]
		d.mode = modePrefixArg
	}
}

// handleTagArg consumes the digit awaited by v/t/T. Anything else cancels.
func (d *Dispatcher) handleTagArg(cmd Command, key Key) {
	if key.Special != KeyNone {
		return
	}
	digit := int(key.Rune - '0')
	switch cmd {
	case CmdViewTag:
		if digit == 0 {
			d.app.viewAll()
		} else if digit >= 1 && digit <= MaxTag {
			d.app.viewTag(digit)
		}
	case CmdSetTag:
		if digit >= 1 && digit <= MaxTag {
			d.app.setTag(digit)
		}
	case CmdToggleTag:
		if digit >= 1 && digit <= MaxTag {
			d.app.toggleTag(digit)
		}
	}
}

// handleCopy interprets keys inside copy mode, including its search-entry,
// pending-find, and pending-text-object substates.
func (d *Dispatcher) handleCopy(key Key) {
	cm := d.app.copy
	defer d.app.invalidate()

	// Search entry line.
	if cm.Searching {
		switch {
		case key.Special == KeyEscape:
			cm.CancelSearch()
		case key.Special == KeyEnter:
			cm.ExecuteSearch(d.app.copyLineAt)
		case key.Special == KeyBackspace:
			cm.SearchPop()
		case key.Special == KeyNone:
			cm.SearchPush(key.Rune)
		}
		return
	}

	// f/F/t/T waiting for the target character.
	if cm.PendingFind != nil {
		if key.Special == KeyEscape {
			cm.PendingFind = nil
		} else if key.Special == KeyNone {
			cm.DoFind(key.Rune, d.app.copyLine())
			cm.ResetCount()
		}
		return
	}

	// i/a waiting for the object kind.
	if cm.PendingObject != 0 {
		if key.Special == KeyNone {
			switch key.Rune {
			case 'w', 'W', '"', '\'', '`', '(', ')', 'b', '[', ']', '{', '}', 'B', '<', '>':
				cm.SelectTextObject(key.Rune, d.app.copyLine())
			}
		}
		cm.PendingObject = 0
		cm.ResetCount()
		return
	}

	count := cm.Count()

	switch key.Special {
	case KeyEscape:
		if cm.Visual != VisualNone {
			cm.ClearVisual()
		} else {
			d.app.exitCopyMode()
		}
		return
	case KeyUp:
		repeat(count, cm.MoveUp)
		cm.ResetCount()
		return
	case KeyDown:
		repeat(count, cm.MoveDown)
		cm.ResetCount()
		return
	case KeyLeft:
		repeat(count, cm.MoveLeft)
		cm.ResetCount()
		return
	case KeyRight:
		repeat(count, cm.MoveRight)
		cm.ResetCount()
		return
	case KeyPageUp:
		repeat(count, cm.PageUp)
		cm.ResetCount()
		return
	case KeyPageDown:
		repeat(count, cm.PageDown)
		cm.ResetCount()
		return
	case KeyHome:
		cm.MoveLineStart()
		cm.ResetCount()
		return
	case KeyEnd:
		cm.MoveLineEnd(d.app.copyLine())
		cm.ResetCount()
		return
	}
	if key.Special != KeyNone {
		cm.ResetCount()
		return
	}

	switch key.Rune {
	case 'q':
		d.app.exitCopyMode()

	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		cm.PushCountDigit(int(key.Rune - '0'))
	case '0':
		if cm.HasCount() {
			cm.PushCountDigit(0)
		} else {
			cm.MoveLineStart()
		}

	case 'h':
		repeat(count, cm.MoveLeft)
		cm.ResetCount()
	case 'l':
		repeat(count, cm.MoveRight)
		cm.ResetCount()
	case 'k':
		repeat(count, cm.MoveUp)
		cm.ResetCount()
	case 'j':
		repeat(count, cm.MoveDown)
		cm.ResetCount()

	case '$':
		cm.MoveLineEnd(d.app.copyLine())
		cm.ResetCount()
	case '^':
		cm.MoveFirstNonBlank(d.app.copyLine())
		cm.ResetCount()

	case 'w':
		d.wordMotion(count, func() { cm.MoveWordForward(d.app.copyLine(), false) })
	case 'W':
		d.wordMotion(count, func() { cm.MoveWordForward(d.app.copyLine(), true) })
	case 'b':
		d.wordMotion(count, func() { cm.MoveWordBackward(d.app.copyLine(), false) })
	case 'B':
		d.wordMotion(count, func() { cm.MoveWordBackward(d.app.copyLine(), true) })
	case 'e':
		d.wordMotion(count, func() { cm.MoveWordEnd(d.app.copyLine(), false) })
	case 'E':
		d.wordMotion(count, func() { cm.MoveWordEnd(d.app.copyLine(), true) })

	case 'g':
		cm.MoveTop()
		cm.ResetCount()
	case 'G':
		cm.MoveBottom()
		cm.ResetCount()
	case 'H':
		cm.MoveScreenTop()
		cm.ResetCount()
	case 'M':
		cm.MoveScreenMiddle()
		cm.ResetCount()
	case 'L':
		cm.MoveScreenBottom()
		cm.ResetCount()

	case 'v':
		cm.ToggleVisualChar()
		cm.ResetCount()
	case 'V':
		cm.ToggleVisualLine()
		cm.ResetCount()

	case 'y':
		if cm.Visual != VisualNone {
			d.app.yankSelection()
		}
		cm.ResetCount()

	case '/':
		cm.StartSearch(SearchForward)
	case '?':
		cm.StartSearch(SearchBackward)
	case 'n':
		cm.SearchNext(d.app.copyLineAt)
		cm.ResetCount()
	case 'N':
		cm.SearchPrev(d.app.copyLineAt)
		cm.ResetCount()

	case 'f':
		cm.StartFind(true, false)
	case 'F':
		cm.StartFind(false, false)
	case 't':
		cm.StartFind(true, true)
	case 'T':
		cm.StartFind(false, true)
	case ';':
		cm.RepeatFind(d.app.copyLine())
		cm.ResetCount()
	case ',':
		cm.RepeatFindReverse(d.app.copyLine())
		cm.ResetCount()

	case 'i':
		cm.StartTextObject('i')
	case 'a':
		cm.StartTextObject('a')

	default:
		cm.ResetCount()
	}
}

func (d *Dispatcher) wordMotion(count int, motion func()) {
	repeat(count, motion)
	d.app.copy.ResetCount()
}

func repeat(n int, fn func()) {
	for i := 0; i < n; i++ {
		fn()
	}
}

// --- Event decoding (modal layers only) ---

// decodeEvent decodes one key or mouse event from the front of data.
// incomplete means the tail may be a split escape sequence and should be
// retried with more input.
func decodeEvent(data []byte) (Key, *Mouse, int, bool) {
	if len(data) == 0 {
		return Key{}, nil, 0, true
	}

	b := data[0]
	if b != 0x1B {
		return decodePlain(data)
	}

	// Lone ESC at the end of a read is the Escape key; terminals deliver
	// escape sequences in one burst.
	if len(data) == 1 {
		return Key{Special: KeyEscape}, nil, 1, false
	}

	switch data[1] {
	case '[':
		return decodeCSI(data)
	case 'O':
		if len(data) < 3 {
			return Key{}, nil, 0, true
		}
		switch data[2] {
		case 'A':
			return Key{Special: KeyUp}, nil, 3, false
		case 'B':
			return Key{Special: KeyDown}, nil, 3, false
		case 'C':
			return Key{Special: KeyRight}, nil, 3, false
		case 'D':
			return Key{Special: KeyLeft}, nil, 3, false
		case 'H':
			return Key{Special: KeyHome}, nil, 3, false
		case 'F':
			return Key{Special: KeyEnd}, nil, 3, false
		}
		return Key{Special: KeyEscape}, nil, 3, false
	default:
		// Alt+key and anything else collapse to Escape for the modal
		// layers; the shadowed byte is consumed with it.
		return Key{Special: KeyEscape}, nil, 2, false
	}
}

func decodePlain(data []byte) (Key, *Mouse, int, bool) {
	switch data[0] {
	case '\r', '\n':
		return Key{Special: KeyEnter}, nil, 1, false
	case 0x7F, 0x08:
		return Key{Special: KeyBackspace}, nil, 1, false
	}
	if data[0] < 0x20 {
		return Key{Rune: rune(data[0])}, nil, 1, false
	}

	r, size := utf8.DecodeRune(data)
	if r == utf8.RuneError && size == 1 {
		if !utf8.FullRune(data) {
			return Key{}, nil, 0, true
		}
		return Key{Rune: '�'}, nil, 1, false
	}
	return Key{Rune: r}, nil, size, false
}

func decodeCSI(data []byte) (Key, *Mouse, int, bool) {
	if len(data) >= 3 && data[2] == '<' {
		m, consumed, incomplete := decodeMouse(data)
		if incomplete {
			return Key{}, nil, 0, true
		}
		return Key{}, &m, consumed, false
	}

	// Find the final byte.
	i := 2
	for i < len(data) && !(data[i] >= 0x40 && data[i] <= 0x7E) {
		i++
	}
	if i >= len(data) {
		return Key{}, nil, 0, true
	}
	final := data[i]
	consumed := i + 1
	params := string(data[2:i])

	switch final {
	case 'A':
		return Key{Special: KeyUp}, nil, consumed, false
	case 'B':
		return Key{Special: KeyDown}, nil, consumed, false
	case 'C':
		return Key{Special: KeyRight}, nil, consumed, false
	case 'D':
		return Key{Special: KeyLeft}, nil, consumed, false
	case 'H':
		return Key{Special: KeyHome}, nil, consumed, false
	case 'F':
		return Key{Special: KeyEnd}, nil, consumed, false
	case '~':
		switch params {
		case "1", "7":
			return Key{Special: KeyHome}, nil, consumed, false
		case "2":
			return Key{Special: KeyNone}, nil, consumed, false
		case "3":
			return Key{Special: KeyDelete}, nil, consumed, false
		case "4", "8":
			return Key{Special: KeyEnd}, nil, consumed, false
		case "5":
			return Key{Special: KeyPageUp}, nil, consumed, false
		case "6":
			return Key{Special: KeyPageDown}, nil, consumed, false
		}
	}
	return Key{Special: KeyNone, Rune: 0}, nil, consumed, false
}

// decodeMouse parses an SGR-1006 report: ESC [ < b ; x ; y (M|m).
func decodeMouse(data []byte) (Mouse, int, bool) {
	i := 3
	nums := [3]int{}
	idx := 0
	for ; i < len(data); i++ {
		b := data[i]
		switch {
		case b >= '0' && b <= '9':
			nums[idx] = nums[idx]*10 + int(b-'0')
		case b == ';':
			idx++
			if idx > 2 {
				return Mouse{}, i + 1, false
			}
		case b == 'M' || b == 'm':
			m := Mouse{
				Col:     nums[1] - 1,
				Row:     nums[2] - 1,
				Button:  nums[0] & 3,
				Release: b == 'm',
				Motion:  nums[0]&32 != 0,
			}
			if nums[0]&64 != 0 {
				m.WheelUp = nums[0]&3 == 0
				m.WheelDown = nums[0]&3 == 1
			}
			return m, i + 1, false
		default:
			return Mouse{}, i + 1, false
		}
	}
	return Mouse{}, 0, true
}
