package fader

import (
	"math"
	"sync"
	"testing"

	"github.com/audiolibrelab/stemtouch/internal/touch"
)

func newTestBank(t *testing.T, n int) *Bank {
	t.Helper()
	labels := make([]string, n)
	for i := range labels {
		labels[i] = "stem"
	}
	b, err := NewBank(labels, DefaultRange)
	if err != nil {
		t.Fatalf("NewBank failed: %v", err)
	}
	return b
}

func TestFader_RelativeDrag(t *testing.T) {
	f := New(0, "drums", Range{Min: 0, Max: 1, Default: 0.5, Sensitivity: 1})

	// Landing mid-zone must not snap the value to the touch position
	f.Acquire(1, 0.9)
	if f.Value != 0.5 {
		t.Errorf("Expected value 0.5 after acquisition, got %v", f.Value)
	}

	f.Drag(1.0)
	if math.Abs(f.Value-0.6) > 1e-9 {
		t.Errorf("Expected value 0.6, got %v", f.Value)
	}

	f.Release()
	if f.State() != StateIdle || math.Abs(f.Value-0.6) > 1e-9 {
		t.Errorf("Expected idle fader keeping 0.6, got %s %v", f.State(), f.Value)
	}
}

func TestFader_ClampingLaw(t *testing.T) {
	rng := Range{Min: -1, Max: 2, Default: 0, Sensitivity: 3}
	deltas := []float64{-1e9, -10, -1, -0.01, 0, 0.01, 1, 10, 1e9, math.Inf(1), math.Inf(-1)}

	for _, d := range deltas {
		f := New(0, "x", rng)
		f.Acquire(1, 0.5)
		f.Drag(0.5 + d)
		if f.Value < rng.Min || f.Value > rng.Max {
			t.Errorf("delta %v: value %v escaped [%v, %v]", d, f.Value, rng.Min, rng.Max)
		}
	}

	f := New(0, "x", rng)
	f.Acquire(1, 0)
	f.Drag(math.NaN())
	if f.Value < rng.Min || f.Value > rng.Max {
		t.Errorf("NaN drag produced %v", f.Value)
	}
}

func TestFader_MutePreservesValue(t *testing.T) {
	f := New(0, "bass", DefaultRange)
	f.Set(0.4)

	f.ToggleMute()
	if f.Gain() != 0 {
		t.Errorf("Expected gain 0 while muted, got %v", f.Gain())
	}
	if f.Value != 0.4 {
		t.Errorf("Mute changed value to %v", f.Value)
	}

	f.ToggleMute()
	if math.Abs(f.Gain()-0.4) > 1e-9 {
		t.Errorf("Expected unmuted gain 0.4, got %v", f.Gain())
	}
}

func TestFader_GainNormalizesRange(t *testing.T) {
	f := New(0, "x", Range{Min: 0, Max: 10, Default: 5, Sensitivity: 1})
	if f.Gain() != 0.5 {
		t.Errorf("Expected normalized gain 0.5, got %v", f.Gain())
	}
}

func TestBank_OneTouchPerFaderAndFaderPerTouch(t *testing.T) {
	b := newTestBank(t, 3)

	if !b.Acquire(1, 10, 0.3) {
		t.Fatal("First acquisition failed")
	}
	if b.Acquire(1, 11, 0.35) {
		t.Error("Second touch acquired an already driven fader")
	}
	if b.Acquire(2, 10, 0.6) {
		t.Error("Touch acquired a second fader")
	}
	if !b.Acquire(1, 10, 0.3) {
		t.Error("Re-acquiring the same binding should succeed")
	}

	idx, ok := b.Bound(10)
	if !ok || idx != 1 {
		t.Errorf("Expected touch 10 bound to fader 1, got %d %t", idx, ok)
	}
}

func TestBank_TouchKeepsAcquiredFaderAcrossZones(t *testing.T) {
	b := newTestBank(t, 4)

	// Acquired at x=0.30 inside [0.25, 0.50)
	b.Acquire(1, 5, 0.30)
	// Dragged into the previous zone
	b.Move(5, 0.10)

	snap := b.Snapshot()
	if snap[0].State != StateIdle || snap[0].Value != DefaultRange.Default {
		t.Errorf("Fader 0 should be untouched, got %+v", snap[0])
	}
	want := DefaultRange.Default - 0.20
	if math.Abs(snap[1].Value-want) > 1e-9 {
		t.Errorf("Expected fader 1 value %v, got %v", want, snap[1].Value)
	}
	if snap[1].State != StateDragging {
		t.Errorf("Fader 1 should still be dragging, got %s", snap[1].State)
	}

	b.Release(5)
	if _, ok := b.Bound(5); ok {
		t.Error("Touch still bound after release")
	}
}

func TestBank_ResetAllDuringDrag(t *testing.T) {
	b := newTestBank(t, 2)

	b.Acquire(0, 1, 0.1)
	b.Move(1, 0.0)
	b.ToggleMute(1)

	b.ResetAll()

	for _, s := range b.Snapshot() {
		if s.Value != DefaultRange.Default || s.Muted || s.State != StateIdle {
			t.Errorf("Fader %d not reset: %+v", s.Index, s)
		}
	}

	// The interrupted touch no longer drives anything
	if b.Move(1, 0.9) {
		t.Error("Move after reset should not find a binding")
	}
	if b.Snapshot()[0].Value != DefaultRange.Default {
		t.Error("Stale touch moved a fader after reset")
	}
}

func TestBank_InterruptedTouchStaysInertUntilLifted(t *testing.T) {
	for name, interrupt := range map[string]func(*Bank){
		"reset":   (*Bank).ResetAll,
		"release": (*Bank).ReleaseAll,
	} {
		t.Run(name, func(t *testing.T) {
			b := newTestBank(t, 2)
			b.Acquire(1, 7, 0.7)
			interrupt(b)

			if b.Acquire(0, 7, 0.25) {
				t.Error("Expected held touch to be refused after its drag was ended")
			}
			b.ReleaseMissing(map[touch.ID]bool{7: true})
			if b.Acquire(0, 7, 0.25) {
				t.Error("Expected touch still down to stay inert")
			}

			// Lift-off, then a new landing with the same id acquires normally
			b.ReleaseMissing(map[touch.ID]bool{})
			if !b.Acquire(0, 7, 0.25) {
				t.Error("Expected touch to acquire again after lifting")
			}
		})
	}
}

func TestBank_ReleaseMissing(t *testing.T) {
	b := newTestBank(t, 3)
	b.Acquire(0, 1, 0.1)
	b.Acquire(2, 2, 0.9)

	released := b.ReleaseMissing(map[touch.ID]bool{2: true})
	if len(released) != 1 || released[0] != 0 {
		t.Errorf("Expected fader 0 released, got %v", released)
	}
	if _, ok := b.Bound(2); !ok {
		t.Error("Present touch was released")
	}
}

func TestBank_IndexErrors(t *testing.T) {
	b := newTestBank(t, 2)
	if err := b.ToggleMute(5); err == nil {
		t.Error("Expected error for out of range mute")
	}
	if b.Acquire(-1, 1, 0) {
		t.Error("Expected acquisition of invalid index to fail")
	}
}

func TestNewBank_RejectsBadRange(t *testing.T) {
	bad := []Range{
		{Min: 1, Max: 1, Default: 1, Sensitivity: 1},
		{Min: 0, Max: 1, Default: 2, Sensitivity: 1},
		{Min: 0, Max: 1, Default: 0.5, Sensitivity: 0},
	}
	for _, rng := range bad {
		if _, err := NewBank([]string{"a"}, rng); err == nil {
			t.Errorf("Expected error for range %+v", rng)
		}
	}
}

func TestBank_ConcurrentReadsSeeConsistentPairs(t *testing.T) {
	b := newTestBank(t, 1)
	b.SetValue(0, 0.8)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				b.ToggleMute(0)
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		s := b.Snapshot()[0]
		if s.Muted && s.Gain != 0 {
			t.Fatalf("Torn read: muted with gain %v", s.Gain)
		}
		if !s.Muted && math.Abs(s.Gain-0.8) > 1e-9 {
			t.Fatalf("Torn read: unmuted with gain %v", s.Gain)
		}
	}
	close(stop)
	wg.Wait()
}
