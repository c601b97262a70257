package touch

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when the touch surface cannot be opened or is owned elsewhere
	ErrDeviceUnavailable = errors.New("touch device unavailable")
	// ErrAlreadyRunning is returned by Start on a monitor that is already running
	ErrAlreadyRunning = errors.New("touch monitor already running")
)

// ID identifies one physical contact for as long as it stays on the surface.
// IDs are allocated in increasing order and never handed out twice.
type ID uint64

// Point is a normalized surface position in [0,1]x[0,1]
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Touch is one finger in contact with, or hovering over, the surface
type Touch struct {
	ID       ID      `json:"id"`
	Position Point   `json:"position"`
	Pressure float64 `json:"pressure"`
	Active   bool    `json:"active"`
}

func (t Touch) String() string {
	return fmt.Sprintf("touch#%d(%.3f,%.3f p=%.2f active=%t)", t.ID, t.Position.X, t.Position.Y, t.Pressure, t.Active)
}

// Event is one discrete input notification. The concrete types are
// TouchesChanged, HoverChanged, Click and Scroll.
type Event interface {
	isEvent()
}

// TouchesChanged carries the pressing touches of one frame. Touches that lifted
// during the frame are included once with Active set to false.
type TouchesChanged struct {
	Touches []Touch
}

// HoverChanged carries touches that are near the surface without pressing
type HoverChanged struct {
	Hovers []Touch
}

// Click is a physical button press on the surface
type Click struct {
	Location Point
	Count    int
}

// Scroll is a two-axis relative scroll step
type Scroll struct {
	DX float64
	DY float64
}

func (TouchesChanged) isEvent() {}
func (HoverChanged) isEvent()   {}
func (Click) isEvent()          {}
func (Scroll) isEvent()         {}
