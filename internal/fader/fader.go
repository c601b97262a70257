package fader

import (
	"fmt"
	"math"

	"github.com/audiolibrelab/stemtouch/internal/touch"
)

// State is the drag state of a single fader
type State string

const (
	StateIdle     State = "IDLE"
	StateDragging State = "DRAGGING"
)

// Range holds the value bounds and drag behaviour shared by all faders of a bank
type Range struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Default     float64 `json:"default"`
	Sensitivity float64 `json:"sensitivity"`
}

// DefaultRange is used when no configuration overrides it
var DefaultRange = Range{Min: 0, Max: 1, Default: 0.75, Sensitivity: 1}

// Validate checks the bounds are usable
func (r Range) Validate() error {
	if !(r.Max > r.Min) {
		return fmt.Errorf("fader max (%.2f) must be greater than min (%.2f)", r.Max, r.Min)
	}
	if r.Default < r.Min || r.Default > r.Max {
		return fmt.Errorf("fader default (%.2f) must be within [%.2f, %.2f]", r.Default, r.Min, r.Max)
	}
	if r.Sensitivity <= 0 {
		return fmt.Errorf("fader sensitivity must be > 0, got: %.2f", r.Sensitivity)
	}
	return nil
}

func (r Range) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Min
	}
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Fader is the mixing state of one stem. Dragging is relative: a touch moves the
// value by its displacement from where it was acquired, it never snaps the value
// to the touch position.
type Fader struct {
	Index  int
	Label  string
	Value  float64
	Active bool
	Muted  bool

	rng    Range
	state  State
	driver touch.ID
	base   float64
	anchor float64
}

// New creates an idle fader at the range default
func New(index int, label string, rng Range) *Fader {
	return &Fader{
		Index: index,
		Label: label,
		Value: rng.Default,
		rng:   rng,
		state: StateIdle,
	}
}

// State returns the drag state
func (f *Fader) State() State {
	return f.state
}

// Driver returns the touch currently driving the fader, if any
func (f *Fader) Driver() (touch.ID, bool) {
	return f.driver, f.state == StateDragging
}

// Acquire binds a touch at coordinate x, capturing the base value. It fails if
// another touch is already driving the fader.
func (f *Fader) Acquire(id touch.ID, x float64) bool {
	if f.state == StateDragging && f.driver != id {
		return false
	}
	f.state = StateDragging
	f.driver = id
	f.base = f.Value
	f.anchor = x
	f.Active = true
	return true
}

// Drag applies the displacement of the bound touch
func (f *Fader) Drag(x float64) {
	if f.state != StateDragging {
		return
	}
	f.Value = f.rng.clamp(f.base + (x-f.anchor)*f.rng.Sensitivity)
}

// Release ends the drag, keeping the last value
func (f *Fader) Release() {
	f.state = StateIdle
	f.driver = 0
	f.Active = false
}

// Set assigns a value directly, clamped to the range
func (f *Fader) Set(v float64) {
	f.Value = f.rng.clamp(v)
	if f.state == StateDragging {
		f.base = f.Value
	}
}

// Nudge moves the value by delta. A drag in progress is rebased so it continues
// from the nudged value.
func (f *Fader) Nudge(delta float64) {
	f.Value = f.rng.clamp(f.Value + delta)
	if f.state == StateDragging {
		f.base += delta
		f.base = f.rng.clamp(f.base)
	}
}

// ToggleMute flips the mute flag without touching the value
func (f *Fader) ToggleMute() {
	f.Muted = !f.Muted
}

// Reset returns the fader to the default value, unmuted and idle
func (f *Fader) Reset() {
	f.Release()
	f.Value = f.rng.Default
	f.Muted = false
}

// Normalized maps the value into [0,1] regardless of mute
func (f *Fader) Normalized() float64 {
	return (f.Value - f.rng.Min) / (f.rng.Max - f.rng.Min)
}

// Gain is the scalar handed to the audio path: 0 when muted, the normalized value otherwise
func (f *Fader) Gain() float64 {
	if f.Muted {
		return 0
	}
	return f.Normalized()
}
