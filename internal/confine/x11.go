package confine

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// X11 intercepts pointer motion with an active pointer grab on the root
// window. Every MotionNotify goes to this client first; positions outside the
// working area are corrected with WarpPointer.
type X11 struct {
	conn *xgb.Conn
	root xproto.Window

	mu      sync.Mutex
	filter  atomic.Pointer[MoveFilter]
	grabbed atomic.Bool
	done    chan struct{}
}

// OpenX11 connects to display, or $DISPLAY when empty
func OpenX11(display string) (*X11, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot connect to X server: %v", ErrConfinementUnavailable, err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	x := &X11{
		conn: conn,
		root: screen.Root,
		done: make(chan struct{}),
	}
	go x.eventLoop()
	return x, nil
}

func (x *X11) Pointer() (image.Point, error) {
	reply, err := xproto.QueryPointer(x.conn, x.root).Reply()
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(int(reply.RootX), int(reply.RootY)), nil
}

func (x *X11) Window() (image.Rectangle, error) {
	focus, err := xproto.GetInputFocus(x.conn).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}
	win := focus.Focus
	if win == xproto.WindowNone || win == x.root {
		return image.Rectangle{}, errors.New("no focused window")
	}

	geom, err := xproto.GetGeometry(x.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}
	origin, err := xproto.TranslateCoordinates(x.conn, win, x.root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, err
	}

	topLeft := image.Pt(int(origin.DstX), int(origin.DstY))
	return image.Rectangle{Min: topLeft, Max: topLeft.Add(image.Pt(int(geom.Width), int(geom.Height)))}, nil
}

func (x *X11) Install(filter MoveFilter) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.filter.Store(&filter)
	if x.grabbed.Load() {
		return nil
	}

	reply, err := xproto.GrabPointer(x.conn, false, x.root,
		uint16(xproto.EventMaskPointerMotion),
		xproto.GrabModeAsync, xproto.GrabModeAsync,
		xproto.WindowNone, xproto.CursorNone, xproto.TimeCurrentTime).Reply()
	if err != nil {
		x.filter.Store(nil)
		return fmt.Errorf("pointer grab failed: %v", err)
	}
	if reply.Status != xproto.GrabStatusSuccess {
		x.filter.Store(nil)
		return fmt.Errorf("pointer grab refused: %s", grabStatus(reply.Status))
	}

	x.grabbed.Store(true)
	slog.Debug("X11 pointer grab installed", "root", x.root)
	return nil
}

// Remove drops the filter first, so a motion event already in flight is not
// corrected, then ungrabs. It does not take the install lock.
func (x *X11) Remove() error {
	x.filter.Store(nil)
	err := xproto.UngrabPointerChecked(x.conn, xproto.TimeCurrentTime).Check()
	x.grabbed.Store(false)
	return err
}

func (x *X11) Warp(p image.Point) error {
	return xproto.WarpPointerChecked(x.conn, xproto.WindowNone, x.root,
		0, 0, 0, 0, int16(p.X), int16(p.Y)).Check()
}

// Close releases the grab and the connection
func (x *X11) Close() error {
	err := x.Remove()
	x.conn.Close()
	<-x.done
	return err
}

func (x *X11) eventLoop() {
	defer close(x.done)

	for {
		ev, xerr := x.conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			slog.Debug("X11 error", "error", xerr)
			continue
		}

		motion, ok := ev.(xproto.MotionNotifyEvent)
		if !ok {
			continue
		}
		f := x.filter.Load()
		if f == nil {
			continue
		}
		if q, changed := (*f)(image.Pt(int(motion.RootX), int(motion.RootY))); changed {
			xproto.WarpPointer(x.conn, xproto.WindowNone, x.root, 0, 0, 0, 0, int16(q.X), int16(q.Y))
		}
	}
}

func grabStatus(status byte) string {
	switch status {
	case xproto.GrabStatusAlreadyGrabbed:
		return "already grabbed"
	case xproto.GrabStatusInvalidTime:
		return "invalid time"
	case xproto.GrabStatusNotViewable:
		return "not viewable"
	case xproto.GrabStatusFrozen:
		return "frozen"
	default:
		return fmt.Sprintf("status %d", status)
	}
}

// unavailableInterceptor stands in when no display can be reached
type unavailableInterceptor struct {
	err error
}

// Unavailable returns an Interceptor whose Install always fails with err
func Unavailable(err error) Interceptor {
	return unavailableInterceptor{err: err}
}

func (u unavailableInterceptor) Pointer() (image.Point, error)    { return image.Point{}, u.err }
func (u unavailableInterceptor) Window() (image.Rectangle, error) { return image.Rectangle{}, u.err }
func (u unavailableInterceptor) Install(MoveFilter) error         { return u.err }
func (u unavailableInterceptor) Remove() error                    { return nil }
func (u unavailableInterceptor) Warp(image.Point) error           { return u.err }
