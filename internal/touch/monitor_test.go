package touch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

// fakeDevice feeds scripted events to the monitor
type fakeDevice struct {
	events chan *evdev.InputEvent
	closed chan struct{}
	once   sync.Once
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		events: make(chan *evdev.InputEvent, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeDevice) Ranges() Ranges {
	return Ranges{
		X:        AxisRange{Min: 0, Max: 1000},
		Y:        AxisRange{Min: 0, Max: 1000},
		Pressure: AxisRange{Min: 0, Max: 100},
	}
}

func (f *fakeDevice) ReadOne() (*evdev.InputEvent, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeDevice) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeDevice) send(evs ...*evdev.InputEvent) {
	for _, ev := range evs {
		f.events <- ev
	}
}

func abs(code evdev.EvCode, value int32) *evdev.InputEvent {
	return &evdev.InputEvent{Type: evdev.EV_ABS, Code: code, Value: value}
}

func syn() *evdev.InputEvent {
	return &evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}
}

func key(code evdev.EvCode, value int32) *evdev.InputEvent {
	return &evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: value}
}

func rel(code evdev.EvCode, value int32) *evdev.InputEvent {
	return &evdev.InputEvent{Type: evdev.EV_REL, Code: code, Value: value}
}

func testRanges() Ranges {
	return (&fakeDevice{}).Ranges()
}

func TestDecoder_TracksContactsAcrossFrames(t *testing.T) {
	dec := newDecoder(testRanges(), 0.1)

	events := []*evdev.InputEvent{
		abs(evdev.ABS_MT_SLOT, 0),
		abs(evdev.ABS_MT_TRACKING_ID, 42),
		abs(evdev.ABS_MT_POSITION_X, 300),
		abs(evdev.ABS_MT_POSITION_Y, 500),
		abs(evdev.ABS_MT_PRESSURE, 50),
	}
	for _, ev := range events {
		if _, ok := dec.feed(ev); ok {
			t.Fatal("Frame emitted before SYN_REPORT")
		}
	}
	frame, ok := dec.feed(syn())
	if !ok {
		t.Fatal("Expected frame on SYN_REPORT")
	}
	if len(frame.Touches) != 1 {
		t.Fatalf("Expected 1 touch, got %d", len(frame.Touches))
	}
	first := frame.Touches[0]
	if !first.Active || first.Position.X != 0.3 || first.Position.Y != 0.5 || first.Pressure != 0.5 {
		t.Errorf("Unexpected touch: %v", first)
	}

	// Movement keeps the same identity
	dec.feed(abs(evdev.ABS_MT_POSITION_X, 100))
	frame, _ = dec.feed(syn())
	if len(frame.Touches) != 1 || frame.Touches[0].ID != first.ID {
		t.Fatalf("Expected stable identity, got %+v", frame.Touches)
	}
	if frame.Touches[0].Position.X != 0.1 {
		t.Errorf("Expected x=0.1, got %v", frame.Touches[0].Position.X)
	}

	// Lift-off is reported once as inactive, then the touch is gone
	dec.feed(abs(evdev.ABS_MT_TRACKING_ID, -1))
	frame, _ = dec.feed(syn())
	if len(frame.Touches) != 1 || frame.Touches[0].Active {
		t.Fatalf("Expected one inactive touch on lift-off, got %+v", frame.Touches)
	}
	frame, _ = dec.feed(syn())
	if len(frame.Touches) != 0 {
		t.Errorf("Expected no touches after lift-off, got %+v", frame.Touches)
	}
}

func TestDecoder_NeverReusesIdentity(t *testing.T) {
	dec := newDecoder(testRanges(), 0)

	dec.feed(abs(evdev.ABS_MT_TRACKING_ID, 7))
	frame, _ := dec.feed(syn())
	firstID := frame.Touches[0].ID

	dec.feed(abs(evdev.ABS_MT_TRACKING_ID, -1))
	dec.feed(syn())

	// The kernel recycles tracking id 7 for a new finger
	dec.feed(abs(evdev.ABS_MT_TRACKING_ID, 7))
	frame, _ = dec.feed(syn())
	if len(frame.Touches) != 1 {
		t.Fatalf("Expected 1 touch, got %d", len(frame.Touches))
	}
	if frame.Touches[0].ID == firstID {
		t.Errorf("Identity %d was reassigned to a new contact", firstID)
	}
}

func TestDecoder_HoverAndMultiSlot(t *testing.T) {
	dec := newDecoder(testRanges(), 0.2)

	dec.feed(abs(evdev.ABS_MT_SLOT, 0))
	dec.feed(abs(evdev.ABS_MT_TRACKING_ID, 1))
	dec.feed(abs(evdev.ABS_MT_PRESSURE, 80))
	dec.feed(abs(evdev.ABS_MT_SLOT, 1))
	dec.feed(abs(evdev.ABS_MT_TRACKING_ID, 2))
	dec.feed(abs(evdev.ABS_MT_PRESSURE, 5))
	frame, _ := dec.feed(syn())

	if len(frame.Touches) != 1 {
		t.Errorf("Expected 1 pressing touch, got %d", len(frame.Touches))
	}
	if len(frame.Hovers) != 1 {
		t.Errorf("Expected 1 hovering touch, got %d", len(frame.Hovers))
	}
}

func TestDecoder_ButtonAndScroll(t *testing.T) {
	dec := newDecoder(testRanges(), 0)

	dec.feed(key(evdev.BTN_LEFT, 1))
	dec.feed(rel(evdev.REL_WHEEL, -2))
	dec.feed(rel(evdev.REL_HWHEEL, 1))
	frame, _ := dec.feed(syn())
	if !frame.Pressed {
		t.Error("Expected button press in frame")
	}
	if frame.ScrollY != -2 || frame.ScrollX != 1 {
		t.Errorf("Unexpected scroll: %v,%v", frame.ScrollX, frame.ScrollY)
	}

	// Holding the button does not produce another press
	frame, _ = dec.feed(syn())
	if frame.Pressed || frame.ScrollX != 0 || frame.ScrollY != 0 {
		t.Errorf("Expected empty frame, got %+v", frame)
	}
}

func openerFor(dev Device) Opener {
	return func(path string, grab bool) (Device, error) {
		return dev, nil
	}
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
		return nil
	}
}

func TestMonitor_DeliversEvents(t *testing.T) {
	dev := newFakeDevice()
	m := NewMonitor(Options{Device: "/dev/input/test-deliver", HoverThreshold: 0.1}, openerFor(dev))
	events := m.Subscribe(16)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	dev.send(
		abs(evdev.ABS_MT_TRACKING_ID, 1),
		abs(evdev.ABS_MT_POSITION_X, 250),
		abs(evdev.ABS_MT_PRESSURE, 60),
		key(evdev.BTN_LEFT, 1),
		syn(),
	)

	changed, ok := receive(t, events).(TouchesChanged)
	if !ok {
		t.Fatal("Expected TouchesChanged first")
	}
	if len(changed.Touches) != 1 || changed.Touches[0].Position.X != 0.25 {
		t.Errorf("Unexpected touches: %+v", changed.Touches)
	}

	click, ok := receive(t, events).(Click)
	if !ok {
		t.Fatal("Expected Click event")
	}
	if click.Count != 1 || click.Location.X != 0.25 {
		t.Errorf("Unexpected click: %+v", click)
	}

	dev.send(key(evdev.BTN_LEFT, 0), syn(), key(evdev.BTN_LEFT, 1), syn())
	for {
		ev := receive(t, events)
		if c, ok := ev.(Click); ok {
			if c.Count != 2 {
				t.Errorf("Expected double click, got count %d", c.Count)
			}
			break
		}
	}
}

func TestMonitor_StartFailsWhenUnavailable(t *testing.T) {
	m := NewMonitor(Options{Device: "/dev/input/missing"}, func(path string, grab bool) (Device, error) {
		return nil, errors.New("no such device")
	})

	err := m.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Expected ErrDeviceUnavailable, got %v", err)
	}
	if m.Running() {
		t.Error("Monitor should not be running after failed start")
	}
}

func TestMonitor_ClaimIsExclusive(t *testing.T) {
	path := "/dev/input/test-claim"
	first := NewMonitor(Options{Device: path}, openerFor(newFakeDevice()))
	second := NewMonitor(Options{Device: path}, openerFor(newFakeDevice()))

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	if err := second.Start(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected second monitor to be refused, got %v", err)
	}
	if err := first.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Errorf("Expected device to be free after stop, got %v", err)
	}
	second.Stop()
}

func TestMonitor_StopIsIdempotentAndConcurrent(t *testing.T) {
	m := NewMonitor(Options{Device: "/dev/input/test-stop"}, openerFor(newFakeDevice()))
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Stop()
		}()
	}
	wg.Wait()

	if m.Running() {
		t.Error("Monitor still running after Stop")
	}
	if err := m.Stop(); err != nil {
		t.Errorf("Second Stop returned error: %v", err)
	}
}

func TestMonitor_SlowSubscriberMissesEvents(t *testing.T) {
	dev := newFakeDevice()
	m := NewMonitor(Options{Device: "/dev/input/test-drop"}, openerFor(dev))
	events := m.Subscribe(1)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	dev.send(abs(evdev.ABS_MT_TRACKING_ID, 1))
	for i := 0; i < 5; i++ {
		dev.send(abs(evdev.ABS_MT_POSITION_X, int32(100*i)), syn())
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.Dropped() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Dropped() < 4 {
		t.Errorf("Expected at least 4 dropped events, got %d", m.Dropped())
	}
	if _, ok := (<-events).(TouchesChanged); !ok {
		t.Error("Expected the buffered event to be a TouchesChanged")
	}
}
