package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/mousebind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
}

// NewConnection establishes a connection to the X11 server named by display
// (empty means $DISPLAY) and initializes the key and mouse binding modules.
func NewConnection(display string) (*Connection, error) {
	var (
		xu  *xgbutil.XUtil
		err error
	)
	if display == "" {
		xu, err = xgbutil.NewConn()
	} else {
		xu, err = xgbutil.NewConnDisplay(display)
	}
	if err != nil {
		return nil, err
	}

	// keybind: keycode/keysym tables for key translation and grabs.
	// mousebind: drag support for moving the overlay by its background.
	keybind.Initialize(xu)
	mousebind.Initialize(xu)

	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// EventLoopWith runs the event loop and, between events, each function
// received on tasks. Callbacks and tasks never run at the same time, so the
// calling goroutine shares UI affinity with the loop. It returns once the
// loop has quit.
func (c *Connection) EventLoopWith(tasks <-chan func()) {
	before, after, quit := xevent.MainPing(c.XUtil)
	for {
		select {
		case <-before:
			<-after
		case fn := <-tasks:
			fn()
		case <-quit:
			return
		}
	}
}

// Quit stops EventLoopWith after the current event is processed.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}

// Wake sends an empty client message to win so a blocked event loop returns
// to check for Quit. Safe from any goroutine.
func (c *Connection) Wake(win xproto.Window) {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   xproto.AtomNone,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{0, 0, 0, 0, 0}),
	}
	xproto.SendEvent(c.XUtil.Conn(), false, win, xproto.EventMaskNoEvent, string(ev.Bytes()))
	c.XUtil.Sync()
}
