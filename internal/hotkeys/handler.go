package hotkeys

import (
	"log/slog"
	"sync"

	"github.com/1broseidon/perch/internal/fault"
	"github.com/1broseidon/perch/internal/input"
	"github.com/1broseidon/perch/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// KeyHandler decides whether a key event is forwarded or swallowed.
type KeyHandler interface {
	HandleKey(ev input.KeyEvent) input.Verdict
}

// Handler is the system-wide key interception path. While active it holds
// synchronous passive grabs on the root window for every text-producing key,
// BackSpace and Return, in the unmodified and Shift-only states. Each grabbed
// press is either replayed to the focused client or consumed. Keys with
// Control, Alt or Super held are never grabbed and reach their target
// without involving this process.
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	keys   KeyHandler
	logger *slog.Logger

	masks   modMasks
	active  bool
	grabbed []xproto.Keycode
}

var ignoreModsOnce sync.Once

// grabMods are the modifier states grabbed per key, combined with every
// entry of xevent.IgnoreMods: none, Shift, and the level 3 shift with and
// without Shift.
func grabMods(level3 uint16) []uint16 {
	mods := []uint16{0, xproto.ModMaskShift}
	if level3 != 0 {
		mods = append(mods, level3, level3|xproto.ModMaskShift)
	}
	return mods
}

// NewHandler creates the root key tap and registers its event callback. No
// grabs are held until SetActive(true).
func NewHandler(conn *x11.Connection, keys KeyHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(conn.XUtil)
	})

	h := &Handler{
		xu:     conn.XUtil,
		root:   conn.Root,
		keys:   keys,
		logger: logger,
		masks:  keymapMasks(conn.XUtil),
	}

	xevent.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		h.onGrabbedPress(ev)
	}).Connect(h.xu, h.root)

	return h
}

// SetActive installs or removes the passive grabs. Call from the X event
// loop goroutine.
func (h *Handler) SetActive(on bool) {
	if on == h.active {
		return
	}
	h.active = on
	if on {
		h.grab()
	} else {
		h.ungrab()
	}
}

func (h *Handler) grab() {
	setup := h.xu.Setup()
	states := grabMods(h.masks.level3)
	h.grabbed = h.grabbed[:0]
	for kc := int(setup.MinKeycode); kc <= int(setup.MaxKeycode); kc++ {
		keycode := xproto.Keycode(kc)
		if !grabbable(h.columns(keycode)) {
			continue
		}
		for _, mods := range states {
			for _, ignore := range xevent.IgnoreMods {
				// owner_events false: the press is reported on root even
				// when the pointer is over one of our own windows.
				xproto.GrabKey(h.xu.Conn(), false, h.root, mods|ignore, keycode,
					xproto.GrabModeAsync, xproto.GrabModeSync)
			}
		}
		h.grabbed = append(h.grabbed, keycode)
	}
	h.logger.Debug("key tap armed", "keys", len(h.grabbed))
}

func (h *Handler) ungrab() {
	states := grabMods(h.masks.level3)
	for _, keycode := range h.grabbed {
		for _, mods := range states {
			for _, ignore := range xevent.IgnoreMods {
				xproto.UngrabKey(h.xu.Conn(), keycode, h.root, mods|ignore)
			}
		}
	}
	h.logger.Debug("key tap released", "keys", len(h.grabbed))
	h.grabbed = h.grabbed[:0]
}

// onGrabbedPress runs for presses that activated one of the synchronous
// grabs. The keyboard stays frozen until AllowEvents, so it is always sent.
func (h *Handler) onGrabbedPress(ev xevent.KeyPressEvent) {
	mode := byte(xproto.AllowReplayKeyboard)
	defer func() {
		xproto.AllowEvents(h.xu.Conn(), mode, ev.Time)
	}()
	defer fault.Recover(h.logger, "key tap")

	if h.route(ev.Detail, ev.State) == input.Swallow {
		mode = xproto.AllowAsyncKeyboard
	}
}

// HandleLocal is the local interception path for presses delivered to the
// overlay window itself. Such events already reach no other client, so the
// verdict only decides whether the router consumed them.
func (h *Handler) HandleLocal(ev xevent.KeyPressEvent) {
	h.route(ev.Detail, ev.State)
}

func (h *Handler) route(keycode xproto.Keycode, state uint16) input.Verdict {
	verdict := h.keys.HandleKey(translate(h.columns(keycode), state, h.masks))
	h.logger.Debug("key routed",
		"key", keybind.LookupString(h.xu, state, keycode),
		"mods", keybind.ModifierString(state),
		"verdict", verdict)
	return verdict
}

// columns reads the keysym columns of keycode used for translation. Columns
// beyond the keymap's width read as zero.
func (h *Handler) columns(keycode xproto.Keycode) keyColumns {
	km := keybind.KeyMapGet(h.xu)
	per := km.KeysymsPerKeycode
	col := func(c byte) xproto.Keysym {
		if c >= per {
			return 0
		}
		return keybind.KeysymGetWithMap(h.xu, km, keycode, c)
	}
	return keyColumns{base: col(0), shifted: col(1), level3: col(4), level3Shifted: col(5)}
}

// keymapMasks finds the NumLock and level 3 modifier bits. AltGr is
// ISO_Level3_Shift on XKB keymaps and Mode_switch on older ones.
func keymapMasks(xu *xgbutil.XUtil) modMasks {
	numLock := modMaskForKeysym(xu, "Num_Lock")
	level3 := modMaskForKeysym(xu, "ISO_Level3_Shift")
	if level3 == 0 {
		level3 = modMaskForKeysym(xu, "Mode_switch")
	}
	return resolveMasks(numLock, level3)
}

// resolveMasks falls back to Mod5 for the level 3 shift, its usual binding,
// unless NumLock already uses it.
func resolveMasks(numLock, level3 uint16) modMasks {
	if level3 == 0 && numLock != xproto.ModMask5 {
		level3 = xproto.ModMask5
	}
	return modMasks{numLock: numLock, level3: level3}
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	xevent.IgnoreMods = ignoreMasks(base)
}

// ignoreMasks returns every combination of the given lock masks, including
// the empty one, without duplicates.
func ignoreMasks(base []uint16) []uint16 {
	unique := map[uint16]struct{}{0: {}}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		unique[mask] = struct{}{}
	}

	out := make([]uint16, 0, len(unique))
	for mask := range unique {
		out = append(out, mask)
	}
	return out
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
