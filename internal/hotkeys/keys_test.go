package hotkeys

import (
	"testing"

	"github.com/1broseidon/perch/internal/input"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
)

// tr translates a key with only the first two columns bound.
func tr(col0, col1 xproto.Keysym, state uint16) input.KeyEvent {
	return translate(keyColumns{base: col0, shifted: col1}, state, modMasks{})
}

func TestTranslateLetters(t *testing.T) {
	a, A := xproto.Keysym('a'), xproto.Keysym('A')

	assert.Equal(t, input.KeyEvent{Text: "a"}, tr(a, A, 0))
	assert.Equal(t, input.KeyEvent{Text: "A", Mods: input.ModShift}, tr(a, A, xproto.ModMaskShift))
	assert.Equal(t, input.KeyEvent{Text: "A"}, tr(a, A, xproto.ModMaskLock))
	assert.Equal(t, input.KeyEvent{Text: "a", Mods: input.ModShift},
		tr(a, A, xproto.ModMaskShift|xproto.ModMaskLock))
}

func TestTranslateMissingShiftColumn(t *testing.T) {
	assert.Equal(t, "Q", tr('q', 0, xproto.ModMaskShift).Text)
	assert.Equal(t, "1", tr('1', 0, xproto.ModMaskShift).Text)
}

func TestTranslateLockDoesNotShiftDigits(t *testing.T) {
	assert.Equal(t, "1", tr('1', '!', xproto.ModMaskLock).Text)
	assert.Equal(t, "!", tr('1', '!', xproto.ModMaskShift).Text)
}

func TestTranslateSpecialKeys(t *testing.T) {
	assert.Equal(t, input.KeyEvent{Key: input.KeyDelete}, tr(keysymBackSpace, 0, 0))
	assert.Equal(t, input.KeyEvent{Key: input.KeyReturn}, tr(keysymReturn, 0, 0))
	assert.Equal(t, input.KeyEvent{Key: input.KeyReturn}, tr(keysymKPEnter, 0, 0))
	assert.Equal(t, input.KeyEvent{Key: input.KeyTab, Mods: input.ModShift}, tr(keysymTab, keysymISOLeftTab, xproto.ModMaskShift))
	assert.Equal(t, input.KeyEvent{Key: input.KeyEscape}, tr(keysymEscape, 0, 0))
	assert.Equal(t, input.KeyEvent{Key: input.KeyUp}, tr(keysymKPUp, 0, 0))
}

func TestTranslateKeysWithoutText(t *testing.T) {
	const f1 xproto.Keysym = 0xffbe
	const shiftL xproto.Keysym = 0xffe1
	assert.Equal(t, input.KeyEvent{}, tr(f1, 0, 0))
	assert.Equal(t, input.KeyEvent{}, tr(shiftL, 0, 0))
}

func TestTranslateUnicodeKeysym(t *testing.T) {
	euro := keysymUnicodeBase + 0x20ac
	assert.Equal(t, "€", tr(euro, 0, 0).Text)
}

func TestModifiers(t *testing.T) {
	assert.Equal(t, input.ModCommand, modifiers(xproto.ModMask4))
	assert.Equal(t, input.ModOption|input.ModControl, modifiers(xproto.ModMask1|xproto.ModMaskControl))
	assert.Equal(t, input.Modifiers(0), modifiers(xproto.ModMaskLock|xproto.ModMask2))
}

func TestGrabbable(t *testing.T) {
	base := func(sym xproto.Keysym) keyColumns { return keyColumns{base: sym} }

	assert.True(t, grabbable(base('a')))
	assert.True(t, grabbable(base(' ')))
	assert.True(t, grabbable(base(0xe9)))
	assert.True(t, grabbable(base(keysymBackSpace)))
	assert.True(t, grabbable(base(keysymReturn)))
	assert.True(t, grabbable(base(keysymKPEnter)))
	assert.False(t, grabbable(base(keysymUp)))
	assert.False(t, grabbable(base(keysymEscape)))
	assert.False(t, grabbable(base(keysymTab)))
	assert.False(t, grabbable(base(0xffbe)))
	assert.False(t, grabbable(base(0)))
}

const (
	keysymKPEnd     xproto.Keysym = 0xff9c
	keysymKP1       xproto.Keysym = 0xffb1
	keysymKP8       xproto.Keysym = 0xffb8
	keysymKPAdd     xproto.Keysym = 0xffab
	keysymKPDelete  xproto.Keysym = 0xff9f
	keysymKPDecimal xproto.Keysym = 0xffae
)

var testMasks = modMasks{numLock: xproto.ModMask2, level3: xproto.ModMask5}

func TestGrabbableKeypadAndLevel3(t *testing.T) {
	assert.True(t, grabbable(keyColumns{base: keysymKPEnd, shifted: keysymKP1}), "keypad digit behind navigation")
	assert.True(t, grabbable(keyColumns{base: keysymKPUp, shifted: keysymKP8}))
	assert.True(t, grabbable(keyColumns{base: keysymKPAdd, shifted: keysymKPAdd}))
	assert.True(t, grabbable(keyColumns{base: 0xffbe, level3: keysymUnicodeBase + 0x20ac}), "AltGr-only character")
}

func TestTranslateKeypadFollowsNumLock(t *testing.T) {
	kp1 := keyColumns{base: keysymKPEnd, shifted: keysymKP1}
	kp8 := keyColumns{base: keysymKPUp, shifted: keysymKP8}

	assert.Equal(t, "1", translate(kp1, xproto.ModMask2, testMasks).Text)
	assert.Equal(t, input.KeyEvent{Text: "8"}, translate(kp8, xproto.ModMask2, testMasks))
	assert.Equal(t, input.KeyUp, translate(kp8, 0, testMasks).Key, "without NumLock the key navigates")
	assert.Equal(t, input.KeyEvent{}, translate(kp1, 0, testMasks), "KP_End has no text")
	assert.Equal(t, input.KeyEvent{Mods: input.ModShift},
		translate(kp1, xproto.ModMask2|xproto.ModMaskShift, testMasks), "Shift inverts NumLock")
	assert.Equal(t, ".", translate(keyColumns{base: keysymKPDelete, shifted: keysymKPDecimal}, xproto.ModMask2, testMasks).Text)
	assert.Equal(t, "+", translate(keyColumns{base: keysymKPAdd}, 0, testMasks).Text)
}

func TestTranslateLevel3(t *testing.T) {
	e := keyColumns{base: 'e', shifted: 'E', level3: keysymUnicodeBase + 0x20ac, level3Shifted: 0xa2}

	assert.Equal(t, "€", translate(e, xproto.ModMask5, testMasks).Text)
	assert.Equal(t, "¢", translate(e, xproto.ModMask5|xproto.ModMaskShift, testMasks).Text)
	assert.Equal(t, "e", translate(e, 0, testMasks).Text)
	assert.Equal(t, input.Modifiers(0), translate(e, xproto.ModMask5, testMasks).Mods, "AltGr is not a chord")

	unbound := keyColumns{base: '1', shifted: '!'}
	assert.Equal(t, "1", translate(unbound, xproto.ModMask5, testMasks).Text)
}
