package input

// Modifiers is a bitmask of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	// ModOption is Alt (Mod1 on X11).
	ModOption
	// ModCommand is Super (Mod4 on X11).
	ModCommand
)

// reserved are the modifiers whose chords always pass through.
const reserved = ModControl | ModOption | ModCommand

// Key classifies the keys the router treats specially.
type Key int

const (
	KeyOther Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEscape
	KeyTab
	KeyDelete
	KeyReturn
)

func (k Key) navigation() bool {
	switch k {
	case KeyUp, KeyDown, KeyLeft, KeyRight, KeyEscape, KeyTab:
		return true
	}
	return false
}

// KeyEvent is one key-down as seen by either interception path.
type KeyEvent struct {
	Key  Key
	Mods Modifiers
	// Text is the character the key produces, empty for keys without one.
	Text string
}

// Verdict tells the interception path what to do with the event.
type Verdict int

const (
	// Forward delivers the event exactly as if the router did not exist.
	Forward Verdict = iota
	// Swallow keeps the event from reaching any other client.
	Swallow
)

func (v Verdict) String() string {
	if v == Swallow {
		return "swallow"
	}
	return "forward"
}
