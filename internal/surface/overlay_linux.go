//go:build linux

package surface

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/perch/internal/platform"
	"github.com/1broseidon/perch/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/mousebind"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// Overlay is the X11 overlay window. All methods must be called from the
// goroutine running the X event loop.
type Overlay struct {
	conn   *x11.Connection
	opts   Options
	logger *slog.Logger

	win  *xwindow.Window
	gc   xproto.Gcontext
	font xproto.Font

	x, y int
	view View

	onPointer PointerHandler
	onKey     func(xevent.KeyPressEvent)

	dragOffsetX, dragOffsetY int
}

var _ Capabilities = (*Overlay)(nil)

// CanBecomeFocused is always false: WM_HINTS.input is cleared and
// WM_TAKE_FOCUS is never advertised.
func (o *Overlay) CanBecomeFocused() bool { return false }

// AcceptsFirstClick is always true: button presses are handled on the
// surface itself without a prior activation.
func (o *Overlay) AcceptsFirstClick() bool { return true }

// Create builds, decorates and maps the overlay window. The returned overlay
// is not yet published; the caller stores Handle in a Slot.
func Create(conn *x11.Connection, opts Options, logger *slog.Logger) (*Overlay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", opts.Width, opts.Height)
	}

	o := &Overlay{conn: conn, opts: opts, logger: logger, x: opts.X, y: opts.Y}
	if o.x < 0 || o.y < 0 {
		if area, err := conn.PlacementArea(); err == nil {
			o.x, o.y = area.Centered(opts.Width, opts.Height)
		} else {
			logger.Warn("failed to resolve placement area", "error", err)
			o.x, o.y = 0, 0
		}
	}

	win, err := xwindow.Generate(conn.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate window id: %w", err)
	}
	o.win = win

	eventMask := uint32(xproto.EventMaskExposure | xproto.EventMaskButtonPress |
		xproto.EventMaskButtonRelease | xproto.EventMaskKeyPress | xproto.EventMaskStructureNotify)

	// Value list order follows the bit positions of the mask (low to high).
	mask := xproto.CwBackPixel | xproto.CwEventMask
	values := []uint32{colorBackground, eventMask}
	if opts.OverrideRedirect {
		mask |= xproto.CwOverrideRedirect
		values = []uint32{colorBackground, 1, eventMask}
	}
	if err := win.CreateChecked(conn.Root, o.x, o.y, opts.Width, opts.Height, mask, values...); err != nil {
		return nil, fmt.Errorf("failed to create overlay window: %w", err)
	}

	if err := o.decorate(); err != nil {
		win.Destroy()
		return nil, err
	}
	if opts.Spaces == AllSpaces {
		if err := conn.PinToAllDesktops(win.Id); err != nil {
			logger.Warn("failed to pin overlay to all desktops", "error", err)
		}
	}
	o.ensurePaintResources()
	o.bindEvents()

	win.Map()
	return o, nil
}

// decorate sets the ICCCM/EWMH properties that keep the window out of the
// focus chain, taskbar and pager.
func (o *Overlay) decorate() error {
	xu := o.conn.XUtil
	id := o.win.Id

	hints := &icccm.Hints{
		Flags:        icccm.HintInput | icccm.HintState,
		Input:        0,
		InitialState: icccm.StateNormal,
	}
	if err := icccm.WmHintsSet(xu, id, hints); err != nil {
		return fmt.Errorf("failed to set WM_HINTS: %w", err)
	}
	if err := icccm.WmProtocolsSet(xu, id, []string{"WM_DELETE_WINDOW"}); err != nil {
		return fmt.Errorf("failed to set WM_PROTOCOLS: %w", err)
	}

	// Best-effort cosmetics from here on.
	_ = icccm.WmNameSet(xu, id, o.opts.Title)
	_ = ewmh.WmNameSet(xu, id, o.opts.Title)
	_ = icccm.WmClassSet(xu, id, &icccm.WmClass{Instance: "perch", Class: "Perch"})
	_ = ewmh.WmPidSet(xu, id, uint(os.Getpid()))
	_ = ewmh.WmWindowTypeSet(xu, id, []string{"_NET_WM_WINDOW_TYPE_UTILITY"})
	_ = ewmh.WmStateSet(xu, id, []string{
		"_NET_WM_STATE_ABOVE",
		"_NET_WM_STATE_SKIP_TASKBAR",
		"_NET_WM_STATE_SKIP_PAGER",
	})

	if o.opts.ExcludedFromCapture {
		_ = xprop.ChangeProp32(xu, id, "_NET_WM_BYPASS_COMPOSITOR", "CARDINAL", 1)
	}
	shadow := uint(0)
	if o.opts.HasShadow {
		shadow = 1
	}
	// Honoured by picom/compton.
	_ = xprop.ChangeProp32(xu, id, "_COMPTON_SHADOW", "CARDINAL", shadow)
	return nil
}

func (o *Overlay) bindEvents() {
	xu := o.conn.XUtil
	id := o.win.Id

	xevent.ExposeFun(func(xu *xgbutil.XUtil, ev xevent.ExposeEvent) {
		if ev.Count == 0 {
			o.paint()
		}
	}).Connect(xu, id)

	xevent.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		if o.onKey != nil {
			o.onKey(ev)
		}
	}).Connect(xu, id)

	if !o.opts.Draggable {
		xevent.ButtonPressFun(func(xu *xgbutil.XUtil, ev xevent.ButtonPressEvent) {
			if ev.Detail == xproto.ButtonIndex1 {
				o.pointerDown(int(ev.EventX), int(ev.EventY))
			}
		}).Connect(xu, id)
		return
	}
	mousebind.Drag(xu, id, id, "1", true, o.dragBegin, o.dragStep, o.dragEnd)
}

// pointerDown reports the press to the handler. The first click is consumed
// here; the window manager never sees it.
func (o *Overlay) pointerDown(x, y int) bool {
	if o.onPointer == nil {
		return false
	}
	return o.onPointer(x, y)
}

func (o *Overlay) dragBegin(xu *xgbutil.XUtil, rootX, rootY, eventX, eventY int) (bool, xproto.Cursor) {
	if !o.pointerDown(eventX, eventY) {
		return false, 0
	}
	o.dragOffsetX = rootX - o.x
	o.dragOffsetY = rootY - o.y
	return true, 0
}

func (o *Overlay) dragStep(xu *xgbutil.XUtil, rootX, rootY, eventX, eventY int) {
	o.moveTo(rootX-o.dragOffsetX, rootY-o.dragOffsetY)
}

func (o *Overlay) dragEnd(xu *xgbutil.XUtil, rootX, rootY, eventX, eventY int) {
	o.moveTo(rootX-o.dragOffsetX, rootY-o.dragOffsetY)
}

func (o *Overlay) moveTo(x, y int) {
	o.x, o.y = x, y
	if o.opts.OverrideRedirect {
		o.win.Move(x, y)
		return
	}
	// Use EWMH move for better WM compatibility, direct configure otherwise.
	if err := ewmh.MoveWindow(o.conn.XUtil, o.win.Id, x, y); err != nil {
		o.win.Move(x, y)
	}
}

// Handle returns the window id.
func (o *Overlay) Handle() platform.WindowID {
	if o == nil || o.win == nil {
		return 0
	}
	return platform.WindowID(o.win.Id)
}

// Options returns the creation options.
func (o *Overlay) Options() Options {
	return o.opts
}

// OnPointerDown sets the pointer handler.
func (o *Overlay) OnPointerDown(fn PointerHandler) {
	o.onPointer = fn
}

// OnKeyPress sets the handler for key presses delivered to the window itself.
func (o *Overlay) OnKeyPress(fn func(xevent.KeyPressEvent)) {
	o.onKey = fn
}

// Render stores v and repaints.
func (o *Overlay) Render(v View) {
	o.view = v
	o.paint()
}

func (o *Overlay) paint() {
	if o.gc == 0 {
		return
	}
	c := o.conn.XUtil.Conn()
	id := o.win.Id
	region := o.opts.InputRegion
	p := resolveFieldPaint(o.view, region.Width)

	xproto.ClearArea(c, false, id, 0, 0, 0, 0)

	xproto.ChangeGC(c, o.gc, xproto.GcForeground, []uint32{p.fill})
	xproto.PolyFillRectangle(c, xproto.Drawable(id), o.gc, []xproto.Rectangle{{
		X:      int16(region.X),
		Y:      int16(region.Y),
		Width:  uint16(region.Width),
		Height: uint16(region.Height),
	}})

	if p.label == "" || o.font == 0 {
		return
	}
	xproto.ChangeGC(c, o.gc, xproto.GcForeground|xproto.GcBackground, []uint32{p.fg, p.fill})
	xproto.ImageText8(
		c,
		byte(len(p.label)),
		xproto.Drawable(id),
		o.gc,
		int16(region.X+fieldPaddingX),
		int16(region.Y+region.Height/2+fieldBaseline),
		p.label,
	)
}

// ensurePaintResources opens a core font and a GC. Failure leaves the field
// unpainted but the surface functional.
func (o *Overlay) ensurePaintResources() {
	c := o.conn.XUtil.Conn()

	gc, err := xproto.NewGcontextId(c)
	if err != nil {
		o.logger.Warn("failed to allocate graphics context", "error", err)
		return
	}

	font, err := xproto.NewFontId(c)
	if err == nil {
		opened := false
		for _, name := range []string{"fixed", "9x15", "8x13", "6x13"} {
			if xproto.OpenFontChecked(c, font, uint16(len(name)), name).Check() == nil {
				opened = true
				break
			}
		}
		if !opened {
			font = 0
		}
	} else {
		font = 0
	}

	mask := uint32(xproto.GcForeground | xproto.GcBackground | xproto.GcGraphicsExposures)
	values := []uint32{colorText, colorFieldIdle, 0}
	if font != 0 {
		mask = xproto.GcForeground | xproto.GcBackground | xproto.GcFont | xproto.GcGraphicsExposures
		values = []uint32{colorText, colorFieldIdle, uint32(font), 0}
	}
	if err := xproto.CreateGCChecked(c, gc, xproto.Drawable(o.win.Id), mask, values).Check(); err != nil {
		o.logger.Warn("failed to create graphics context", "error", err)
		if font != 0 {
			xproto.CloseFont(c, font)
		}
		return
	}
	o.gc = gc
	o.font = font
}

// Destroy releases paint resources and the window.
func (o *Overlay) Destroy() {
	if o == nil || o.win == nil {
		return
	}
	c := o.conn.XUtil.Conn()
	if o.gc != 0 {
		xproto.FreeGC(c, o.gc)
	}
	if o.font != 0 {
		xproto.CloseFont(c, o.font)
	}
	o.gc, o.font = 0, 0
	o.win.Destroy()
}
