package confine

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrConfinementUnavailable means the pointer interception could not be
	// installed. Fader interaction continues without a cursor lock.
	ErrConfinementUnavailable = errors.New("cursor confinement unavailable")
	// ErrNotInFaderMode is returned by Engage outside fader-interaction mode
	ErrNotInFaderMode = errors.New("not in fader mode")
)

// MoveFilter receives every intercepted pointer position and returns the
// position the pointer must have instead, and whether it differs
type MoveFilter func(p image.Point) (image.Point, bool)

// Interceptor is the OS-level pointer interception
type Interceptor interface {
	// Pointer returns the current pointer position in screen coordinates
	Pointer() (image.Point, error)
	// Window returns the screen rectangle of the focused window
	Window() (image.Rectangle, error)
	// Install starts routing pointer moves through filter
	Install(filter MoveFilter) error
	// Remove stops the interception. It must be idempotent and must not wait
	// for an in-flight filter call.
	Remove() error
	// Warp moves the pointer
	Warp(p image.Point) error
}

// Session is one active cursor-lock engagement
type Session struct {
	ID      string
	Saved   image.Point
	Bounds  image.Rectangle
	Started time.Time
}

// LockState is the cursor lock state shown to the user
type LockState int

const (
	LockFree LockState = iota
	LockOff
	LockEngaged
	LockUnavailable
)

func (s LockState) String() string {
	switch s {
	case LockFree:
		return "free (browsing)"
	case LockOff:
		return "lock off"
	case LockEngaged:
		return "locked"
	case LockUnavailable:
		return "lock unavailable"
	default:
		return "unknown"
	}
}

// Options configures a Controller
type Options struct {
	// Enabled is the initial lock preference for fader mode
	Enabled bool
	// Bounds is the working rectangle; empty means the focused window
	Bounds image.Rectangle
	// RestorePosition warps the pointer back to where it was on disengage
	RestorePosition bool
}

// Controller engages and disengages cursor confinement. Engage and Disengage
// are serialized; EmergencyRelease takes no lock and can run at any time.
type Controller struct {
	ic   Interceptor
	opts Options

	mu        sync.Mutex
	faderMode atomic.Bool
	wanted    atomic.Bool
	session   atomic.Pointer[Session]
	releases  atomic.Uint64

	warnMu  sync.Mutex
	warning string
}

// NewController creates a disengaged controller over ic
func NewController(ic Interceptor, opts Options) *Controller {
	c := &Controller{ic: ic, opts: opts}
	c.wanted.Store(opts.Enabled)
	return c
}

// Clamp returns p moved to the nearest point inside r
func Clamp(p image.Point, r image.Rectangle) image.Point {
	if r.Empty() {
		return p
	}
	if p.X < r.Min.X {
		p.X = r.Min.X
	} else if p.X >= r.Max.X {
		p.X = r.Max.X - 1
	}
	if p.Y < r.Min.Y {
		p.Y = r.Min.Y
	} else if p.Y >= r.Max.Y {
		p.Y = r.Max.Y - 1
	}
	return p
}

// ClampFilter returns a MoveFilter that keeps the pointer inside r
func ClampFilter(r image.Rectangle) MoveFilter {
	return func(p image.Point) (image.Point, bool) {
		q := Clamp(p, r)
		return q, q != p
	}
}

// SetFaderMode enters or leaves fader-interaction mode. Entering engages the
// lock when it is wanted; leaving always disengages it. An engage failure is
// returned but leaves fader mode on.
func (c *Controller) SetFaderMode(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faderMode.Store(on)
	if !on {
		return c.disengageLocked()
	}
	if !c.wanted.Load() {
		return nil
	}
	_, err := c.engageLocked(c.opts.Bounds)
	return err
}

// FaderMode reports whether fader-interaction mode is active
func (c *Controller) FaderMode() bool {
	return c.faderMode.Load()
}

// Toggle flips the lock preference and applies it when in fader mode
func (c *Controller) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := !c.wanted.Load()
	c.wanted.Store(want)
	if !c.faderMode.Load() {
		return nil
	}
	if want {
		_, err := c.engageLocked(c.opts.Bounds)
		return err
	}
	return c.disengageLocked()
}

// Engage installs the interception clamping the pointer to bounds, or to the
// focused window when bounds is empty
func (c *Controller) Engage(bounds image.Rectangle) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.faderMode.Load() {
		return nil, ErrNotInFaderMode
	}
	return c.engageLocked(bounds)
}

func (c *Controller) engageLocked(bounds image.Rectangle) (*Session, error) {
	if s := c.session.Load(); s != nil {
		return s, nil
	}

	epoch := c.releases.Load()

	if bounds.Empty() {
		win, err := c.ic.Window()
		if err != nil {
			return nil, c.unavailable(fmt.Errorf("cannot resolve working area: %w", err))
		}
		bounds = win
	}
	if bounds.Empty() {
		return nil, c.unavailable(fmt.Errorf("working area is empty"))
	}

	saved, err := c.ic.Pointer()
	if err != nil {
		return nil, c.unavailable(fmt.Errorf("cannot read pointer: %w", err))
	}

	if err := c.ic.Install(ClampFilter(bounds)); err != nil {
		return nil, c.unavailable(err)
	}

	if !saved.In(bounds) {
		if err := c.ic.Warp(Clamp(saved, bounds)); err != nil {
			slog.Debug("Failed to move pointer into working area", "error", err)
		}
	}

	s := &Session{
		ID:      uuid.NewString(),
		Saved:   saved,
		Bounds:  bounds,
		Started: time.Now(),
	}
	c.session.Store(s)

	// an emergency release that ran during install wins
	if c.releases.Load() != epoch {
		c.session.CompareAndSwap(s, nil)
		c.ic.Remove()
		return nil, c.unavailable(fmt.Errorf("released during engage"))
	}

	c.setWarning("")
	slog.Info("Cursor confinement engaged", "session", s.ID, "bounds", s.Bounds)
	return s, nil
}

// Disengage removes the interception. It is idempotent.
func (c *Controller) Disengage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disengageLocked()
}

func (c *Controller) disengageLocked() error {
	s := c.session.Swap(nil)
	if s == nil {
		return nil
	}

	if err := c.ic.Remove(); err != nil {
		return fmt.Errorf("failed to remove pointer interception: %w", err)
	}
	if c.opts.RestorePosition {
		if err := c.ic.Warp(s.Saved); err != nil {
			slog.Debug("Failed to restore pointer position", "error", err)
		}
	}
	slog.Info("Cursor confinement disengaged", "session", s.ID, "duration", time.Since(s.Started).Round(time.Millisecond))
	return nil
}

// EmergencyRelease removes the interception and forces the disengaged state.
// It never fails, never blocks on the controller lock and also runs when no
// session is recorded. The lock preference is switched off so the cursor
// stays free until the user asks for the lock again.
func (c *Controller) EmergencyRelease(reason string) {
	c.releases.Add(1)
	c.wanted.Store(false)
	s := c.session.Swap(nil)

	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Pointer interception removal panicked", "panic", r)
			}
		}()
		if err := c.ic.Remove(); err != nil {
			slog.Debug("Emergency removal error ignored", "error", err)
		}
		if s != nil && c.opts.RestorePosition {
			c.ic.Warp(s.Saved)
		}
	}()

	attrs := []any{"reason", reason}
	if s != nil {
		attrs = append(attrs, "session", s.ID)
	}
	slog.Warn("Emergency cursor release", attrs...)
}

// Session returns the active session, or nil
func (c *Controller) Session() *Session {
	s := c.session.Load()
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

// Engaged reports whether a session is active
func (c *Controller) Engaged() bool {
	return c.session.Load() != nil
}

// Lock returns the current lock state
func (c *Controller) Lock() LockState {
	switch {
	case c.session.Load() != nil:
		return LockEngaged
	case !c.faderMode.Load():
		return LockFree
	case !c.wanted.Load():
		return LockOff
	default:
		return LockUnavailable
	}
}

// State returns a human-readable lock state
func (c *Controller) State() string {
	state := "Cursor " + c.Lock().String()
	if w := c.Warning(); w != "" && c.Lock() == LockUnavailable {
		state += ": " + w
	}
	return state
}

// Warning returns the last engage failure, if it has not been superseded
func (c *Controller) Warning() string {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	return c.warning
}

func (c *Controller) setWarning(w string) {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	c.warning = w
}

func (c *Controller) unavailable(err error) error {
	err = fmt.Errorf("%w: %v", ErrConfinementUnavailable, err)
	c.setWarning(err.Error())
	slog.Warn("Cursor confinement not engaged", "error", err)
	return err
}

// ParseBounds reads a working rectangle written as "x,y,width,height". An
// empty string yields the empty rectangle.
func ParseBounds(s string) (image.Rectangle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return image.Rectangle{}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid bounds %q: expected x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid bounds %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid bounds %q: width and height must be positive", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}
