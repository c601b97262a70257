package fader

import (
	"fmt"
	"sync"

	"github.com/audiolibrelab/stemtouch/internal/touch"
)

// Snapshot is a consistent copy of one fader for display
type Snapshot struct {
	Index  int     `json:"index"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Gain   float64 `json:"gain"`
	Active bool    `json:"active"`
	Muted  bool    `json:"muted"`
	State  State   `json:"state"`
}

// Bank owns the faders of the loaded song and the touch bindings driving them.
// Every method is safe for concurrent use; value and mute are always read together.
type Bank struct {
	mu       sync.RWMutex
	rng      Range
	faders   []*Fader
	bindings map[touch.ID]int
	// touches whose drag was ended while still down; they acquire nothing until lifted
	suppressed map[touch.ID]bool
}

// NewBank creates one fader per label
func NewBank(labels []string, rng Range) (*Bank, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	b := &Bank{
		rng:      rng,
		faders:   make([]*Fader, len(labels)),
		bindings:   make(map[touch.ID]int),
		suppressed: make(map[touch.ID]bool),
	}
	for i, label := range labels {
		b.faders[i] = New(i, label, rng)
	}
	return b, nil
}

// Len returns the number of faders
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.faders)
}

// Range returns the value bounds of the bank
func (b *Bank) Range() Range {
	return b.rng
}

// Acquire binds touch id to fader index at coordinate x. A touch drives at most
// one fader and a fader is driven by at most one touch; conflicting requests fail.
func (b *Bank) Acquire(index int, id touch.ID, x float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.faders) {
		return false
	}
	if bound, ok := b.bindings[id]; ok {
		return bound == index
	}
	if b.suppressed[id] {
		return false
	}
	if !b.faders[index].Acquire(id, x) {
		return false
	}
	b.bindings[id] = index
	return true
}

// Bound returns the fader driven by the touch
func (b *Bank) Bound(id touch.ID) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx, ok := b.bindings[id]
	return idx, ok
}

// Move applies the touch displacement to the fader it drives. It reports
// whether the touch was bound.
func (b *Bank) Move(id touch.ID, x float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, ok := b.bindings[id]
	if !ok {
		return false
	}
	b.faders[idx].Drag(x)
	return true
}

// Release ends the drag of the touch, if it was driving anything
func (b *Bank) Release(id touch.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.releaseLocked(id)
}

// ReleaseMissing ends every drag whose touch is not in present. Lifted
// touches may acquire again afterwards.
func (b *Bank) ReleaseMissing(present map[touch.ID]bool) []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id := range b.suppressed {
		if !present[id] {
			delete(b.suppressed, id)
		}
	}

	var released []int
	for id, idx := range b.bindings {
		if !present[id] {
			b.releaseLocked(id)
			released = append(released, idx)
		}
	}
	return released
}

// ReleaseAll ends every drag in progress. The touches stay inert until they lift.
func (b *Bank) ReleaseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.bindings {
		b.releaseLocked(id)
		b.suppressed[id] = true
	}
}

func (b *Bank) releaseLocked(id touch.ID) bool {
	idx, ok := b.bindings[id]
	if !ok {
		return false
	}
	delete(b.bindings, id)
	b.faders[idx].Release()
	return true
}

// ToggleMute flips the mute flag of fader index, leaving its value alone
func (b *Bank) ToggleMute(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.faders) {
		return fmt.Errorf("fader index %d out of range (0-%d)", index, len(b.faders)-1)
	}
	b.faders[index].ToggleMute()
	return nil
}

// SetMuted sets the mute flag of fader index
func (b *Bank) SetMuted(index int, muted bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.faders) {
		return fmt.Errorf("fader index %d out of range (0-%d)", index, len(b.faders)-1)
	}
	b.faders[index].Muted = muted
	return nil
}

// SetValue assigns a value to fader index
func (b *Bank) SetValue(index int, v float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.faders) {
		return fmt.Errorf("fader index %d out of range (0-%d)", index, len(b.faders)-1)
	}
	b.faders[index].Set(v)
	return nil
}

// Nudge moves fader index by delta
func (b *Bank) Nudge(index int, delta float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.faders) {
		return fmt.Errorf("fader index %d out of range (0-%d)", index, len(b.faders)-1)
	}
	b.faders[index].Nudge(delta)
	return nil
}

// ResetAll forces every fader to the default value and unmutes it. Drags in
// progress are ended and their touches stay inert until they lift.
func (b *Bank) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id := range b.bindings {
		delete(b.bindings, id)
		b.suppressed[id] = true
	}
	for _, f := range b.faders {
		f.Reset()
	}
}

// Gains returns the applied gain of every fader
func (b *Bank) Gains() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	gains := make([]float64, len(b.faders))
	for i, f := range b.faders {
		gains[i] = f.Gain()
	}
	return gains
}

// Snapshot returns a consistent copy of every fader
func (b *Bank) Snapshot() []Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Snapshot, len(b.faders))
	for i, f := range b.faders {
		out[i] = Snapshot{
			Index:  f.Index,
			Label:  f.Label,
			Value:  f.Value,
			Gain:   f.Gain(),
			Active: f.Active,
			Muted:  f.Muted,
			State:  f.State(),
		}
	}
	return out
}
