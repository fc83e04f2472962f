package truetm

import "time"

// Compile-time configuration. Edit and rebuild to customize.

const (
	// PrefixKey activates command mode (Ctrl+B).
	PrefixKey = 0x02

	// MaxTag is the highest tag number.
	MaxTag = 9

	// ScrollbackLines is the per-window history capacity.
	ScrollbackLines = 1000

	// DefaultMasterFraction is the initial master column width share.
	DefaultMasterFraction = 0.5
	// MasterFractionStep is the adjustment applied per keypress.
	MasterFractionStep = 0.05
	// MinMasterFraction and MaxMasterFraction clamp the adjustable range.
	MinMasterFraction = 0.10
	MaxMasterFraction = 0.90

	// FramePeriod caps the render cadence (~60 Hz).
	FramePeriod = 16 * time.Millisecond

	// ReadBudget is the most bytes drained from one PTY per loop iteration,
	// so a flooding child cannot starve input or its siblings.
	ReadBudget = 64 * 1024

	// MaxCount bounds copy-mode numeric prefixes.
	MaxCount = 10000

	// DrainTimeout bounds the shutdown loop that collects final child output.
	DrainTimeout = 500 * time.Millisecond

	// MinCols and MinRows are the smallest usable outer terminal.
	MinCols = 4
	MinRows = 4

	// WheelScrollLines is how far one mouse wheel notch scrolls in copy mode.
	WheelScrollLines = 3

	// ChildTERM is the TERM children see when the outer TERM is unusable.
	ChildTERM = "xterm-256color"
)

// Command identifies a prefix-mode action.
type Command int

const (
	CmdNone Command = iota
	CmdSpawn
	CmdClose
	CmdFocusNext
	CmdFocusPrev
	CmdSwapMaster
	CmdMasterShrink
	CmdMasterGrow
	CmdToggleBroadcast
	CmdQuit
	CmdSendPrefix
	CmdCopyMode
	CmdViewTag
	CmdSetTag
	CmdToggleTag
)

// prefixBindings maps the key after the prefix to its command.
// Digits 1-9 (focus by number) are handled separately.
var prefixBindings = map[rune]Command{
	'c':  CmdSpawn,
	'x':  CmdClose,
	'j':  CmdFocusNext,
	'k':  CmdFocusPrev,
	'\r': CmdSwapMaster,
	'h':  CmdMasterShrink,
	'l':  CmdMasterGrow,
	'a':  CmdToggleBroadcast,
	'q':  CmdQuit,
	'b':  CmdSendPrefix,
	'[':  CmdCopyMode,
	'v':  CmdViewTag,
	't':  CmdSetTag,
	'T':  CmdToggleTag,
}
