package hotkeys

import (
	"unicode"

	"github.com/1broseidon/perch/internal/input"
	"github.com/BurntSushi/xgb/xproto"
)

// Keysyms the router treats specially.
const (
	keysymBackSpace   xproto.Keysym = 0xff08
	keysymTab         xproto.Keysym = 0xff09
	keysymReturn      xproto.Keysym = 0xff0d
	keysymEscape      xproto.Keysym = 0xff1b
	keysymLeft        xproto.Keysym = 0xff51
	keysymUp          xproto.Keysym = 0xff52
	keysymRight       xproto.Keysym = 0xff53
	keysymDown        xproto.Keysym = 0xff54
	keysymKPEnter     xproto.Keysym = 0xff8d
	keysymKPLeft      xproto.Keysym = 0xff96
	keysymKPUp        xproto.Keysym = 0xff97
	keysymKPRight     xproto.Keysym = 0xff98
	keysymKPDown      xproto.Keysym = 0xff99
	keysymISOLeftTab  xproto.Keysym = 0xfe20
	keysymUnicodeBase xproto.Keysym = 0x01000000
)

// classifyKeysym maps a keysym onto the router's key classes.
func classifyKeysym(sym xproto.Keysym) input.Key {
	switch sym {
	case keysymUp, keysymKPUp:
		return input.KeyUp
	case keysymDown, keysymKPDown:
		return input.KeyDown
	case keysymLeft, keysymKPLeft:
		return input.KeyLeft
	case keysymRight, keysymKPRight:
		return input.KeyRight
	case keysymEscape:
		return input.KeyEscape
	case keysymTab, keysymISOLeftTab:
		return input.KeyTab
	case keysymBackSpace:
		return input.KeyDelete
	case keysymReturn, keysymKPEnter:
		return input.KeyReturn
	default:
		return input.KeyOther
	}
}

// keysymRune returns the character a keysym produces. Latin-1 keysyms equal
// their code point; Unicode keysyms carry it in the low 24 bits.
func keysymRune(sym xproto.Keysym) (rune, bool) {
	switch {
	case sym >= 0x20 && sym <= 0x7e, sym >= 0xa0 && sym <= 0xff:
		return rune(sym), true
	case sym >= keysymUnicodeBase+0x20 && sym <= keysymUnicodeBase+0x10ffff:
		r := rune(sym - keysymUnicodeBase)
		return r, unicode.IsPrint(r)
	default:
		return 0, false
	}
}

// modifiers converts an X key state mask. Mod1 is Alt and Mod4 is Super on
// every common keymap.
func modifiers(state uint16) input.Modifiers {
	var m input.Modifiers
	if state&xproto.ModMaskShift != 0 {
		m |= input.ModShift
	}
	if state&xproto.ModMaskControl != 0 {
		m |= input.ModControl
	}
	if state&xproto.ModMask1 != 0 {
		m |= input.ModOption
	}
	if state&xproto.ModMask4 != 0 {
		m |= input.ModCommand
	}
	return m
}

// keyColumns are the keysyms of one keycode used for translation: group 1
// levels 1 and 2 (columns 0 and 1) and levels 3 and 4 (columns 4 and 5).
type keyColumns struct {
	base, shifted         xproto.Keysym
	level3, level3Shifted xproto.Keysym
}

// modMasks are the modifier bits bound to NumLock and the level 3 shift
// (AltGr) on the current keymap. Zero means unbound.
type modMasks struct {
	numLock uint16
	level3  uint16
}

// isKeypad reports whether sym is in the keypad keysym range.
func isKeypad(sym xproto.Keysym) bool {
	return sym >= 0xff80 && sym <= 0xffbd
}

// keypadRune maps keypad keysyms that produce text.
func keypadRune(sym xproto.Keysym) (rune, bool) {
	switch {
	case sym >= 0xffb0 && sym <= 0xffb9:
		return rune('0' + sym - 0xffb0), true
	case sym == 0xff80:
		return ' ', true
	case sym >= 0xffaa && sym <= 0xffaf:
		return rune("*+,-./"[sym-0xffaa]), true
	case sym == 0xffbd:
		return '=', true
	default:
		return 0, false
	}
}

// symRune returns the text of any keysym, keypad included.
func symRune(sym xproto.Keysym) (rune, bool) {
	if r, ok := keypadRune(sym); ok {
		return r, true
	}
	return keysymRune(sym)
}

// pickKeysym chooses the effective keysym. The level 3 modifier selects
// columns 4 and 5 when they are bound; NumLock selects the keypad column,
// inverted by Shift; otherwise the ICCCM Shift and Lock rules apply. A
// missing second column repeats the first, upper-cased for letters.
func pickKeysym(cols keyColumns, state uint16, masks modMasks) xproto.Keysym {
	lo, hi := cols.base, cols.shifted
	if masks.level3 != 0 && state&masks.level3 != 0 && cols.level3 != 0 {
		lo, hi = cols.level3, cols.level3Shifted
	}
	shift := state&xproto.ModMaskShift != 0

	if masks.numLock != 0 && state&masks.numLock != 0 && isKeypad(hi) {
		if shift {
			return lo
		}
		return hi
	}

	letter := false
	if r, ok := keysymRune(lo); ok && unicode.IsLetter(r) {
		letter = true
		if hi == 0 {
			if up := unicode.ToUpper(r); up <= 0xff {
				hi = xproto.Keysym(up)
			} else {
				hi = keysymUnicodeBase + xproto.Keysym(up)
			}
		}
	}
	if hi == 0 {
		hi = lo
	}

	lock := state&xproto.ModMaskLock != 0 && letter
	if shift != lock {
		return hi
	}
	return lo
}

// translate builds the router event for a key press.
func translate(cols keyColumns, state uint16, masks modMasks) input.KeyEvent {
	sym := pickKeysym(cols, state, masks)
	ev := input.KeyEvent{Mods: modifiers(state), Key: classifyKeysym(sym)}
	if ev.Key != input.KeyOther {
		return ev
	}
	if r, ok := symRune(sym); ok {
		ev.Text = string(r)
	}
	return ev
}

// grabbable reports whether a key is captured while the router is active:
// BackSpace, Return and every key with a text-producing keysym at any level,
// keypad digits included. Keys that are only navigation are left alone so
// they always reach the focused client without a round trip.
func grabbable(cols keyColumns) bool {
	switch classifyKeysym(cols.base) {
	case input.KeyDelete, input.KeyReturn:
		return true
	}
	for _, sym := range []xproto.Keysym{cols.base, cols.shifted, cols.level3, cols.level3Shifted} {
		if sym == 0 || classifyKeysym(sym) != input.KeyOther {
			continue
		}
		if _, ok := symRune(sym); ok {
			return true
		}
	}
	return false
}
