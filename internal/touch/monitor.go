package touch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

// Device is an open multi-touch input device
type Device interface {
	Ranges() Ranges
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Opener opens the device at path. When grab is set the device must be
// opened exclusively.
type Opener func(path string, grab bool) (Device, error)

// Options configures a Monitor
type Options struct {
	Device         string        // device node, "" or "auto" picks the first touchpad
	Grab           bool          // take the device exclusively
	HoverThreshold float64       // normalized pressure below which a contact only hovers
	DoubleClick    time.Duration // window for counting consecutive clicks
	StopTimeout    time.Duration // upper bound for Stop waiting on the reader
}

// claims tracks which device nodes are owned by a running monitor in this process
var (
	claimsMu sync.Mutex
	claims   = make(map[string]*Monitor)
)

// Monitor owns the connection to a touch surface and pushes decoded events
// to its subscribers. A subscriber that is not ready misses the event.
type Monitor struct {
	opts Options
	open Opener

	mu      sync.Mutex
	running bool
	path    string
	dev     Device
	done    chan struct{}
	cancel  context.CancelFunc

	subMu sync.RWMutex
	subs  []chan Event

	dropped atomic.Uint64

	// click counting, only touched by the reader goroutine
	lastClick  time.Time
	clickCount int
	lastPoint  Point
	lastHovers []Touch
	hadTouches bool
}

// NewMonitor creates a monitor. A nil opener uses the evdev backend.
func NewMonitor(opts Options, open Opener) *Monitor {
	if open == nil {
		open = OpenEvdev
	}
	if opts.DoubleClick <= 0 {
		opts.DoubleClick = 400 * time.Millisecond
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = time.Second
	}
	return &Monitor{opts: opts, open: open}
}

// Subscribe returns a channel receiving every event produced from now on.
// Channels stay open across Stop/Start cycles.
func (m *Monitor) Subscribe(buffer int) <-chan Event {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

// Dropped returns how many events were not delivered because a subscriber was busy
func (m *Monitor) Dropped() uint64 {
	return m.dropped.Load()
}

// Running reports whether the monitor currently owns a device
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start opens the device and begins decoding frames in the background.
// It fails fast when the device cannot be opened or is already claimed.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	path := m.opts.Device
	if path == "" || path == "auto" {
		found, err := FindTouchpad()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		path = found
	}

	if err := claim(path, m); err != nil {
		return err
	}

	dev, err := m.open(path, m.opts.Grab)
	if err != nil {
		release(path, m)
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.path = path
	m.dev = dev
	m.cancel = cancel
	m.done = make(chan struct{})
	m.lastHovers = nil
	m.hadTouches = false

	go m.readLoop(runCtx, dev, m.done)

	slog.Info("Touch monitoring started", "device", path, "grab", m.opts.Grab)
	return nil
}

// Stop releases the device. It is idempotent and safe to call from any goroutine.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	dev, done, cancel, path := m.dev, m.done, m.cancel, m.path
	m.dev = nil
	m.mu.Unlock()

	cancel()
	err := dev.Close()

	// Closing the device unblocks the reader; don't hang if the driver misbehaves
	select {
	case <-done:
	case <-time.After(m.opts.StopTimeout):
		slog.Warn("Touch reader did not exit in time", "device", path)
	}

	release(path, m)
	slog.Info("Touch monitoring stopped", "device", path)

	if err != nil {
		return fmt.Errorf("failed to close touch device %s: %w", path, err)
	}
	return nil
}

func (m *Monitor) readLoop(ctx context.Context, dev Device, done chan struct{}) {
	defer close(done)

	dec := newDecoder(dev.Ranges(), m.opts.HoverThreshold)

	for {
		ev, err := dev.ReadOne()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("Touch device read failed", "error", err)
			m.abandon(dev)
			return
		}

		frame, ok := dec.feed(ev)
		if !ok {
			continue
		}
		m.dispatch(frame, time.Now())
	}
}

// abandon marks the monitor stopped after the device vanished underneath it
func (m *Monitor) abandon(dev Device) {
	m.mu.Lock()
	if !m.running || m.dev != dev {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.dev = nil
	path, cancel := m.path, m.cancel
	m.mu.Unlock()

	cancel()
	dev.Close()
	release(path, m)
}

// dispatch converts a decoded frame into events
func (m *Monitor) dispatch(f Frame, now time.Time) {
	for _, t := range f.Touches {
		if t.Active {
			m.lastPoint = t.Position
			break
		}
	}

	if len(f.Touches) > 0 || m.hadTouches {
		m.emit(TouchesChanged{Touches: f.Touches})
	}
	m.hadTouches = false
	for _, t := range f.Touches {
		if t.Active {
			m.hadTouches = true
			break
		}
	}

	if !sameTouches(m.lastHovers, f.Hovers) {
		m.lastHovers = f.Hovers
		m.emit(HoverChanged{Hovers: f.Hovers})
	}

	if f.Pressed {
		if now.Sub(m.lastClick) <= m.opts.DoubleClick {
			m.clickCount++
		} else {
			m.clickCount = 1
		}
		m.lastClick = now
		m.emit(Click{Location: m.lastPoint, Count: m.clickCount})
	}

	if f.ScrollX != 0 || f.ScrollY != 0 {
		m.emit(Scroll{DX: f.ScrollX, DY: f.ScrollY})
	}
}

func (m *Monitor) emit(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.dropped.Add(1)
		}
	}
}

func sameTouches(a, b []Touch) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func claim(path string, m *Monitor) error {
	claimsMu.Lock()
	defer claimsMu.Unlock()

	if owner, ok := claims[path]; ok && owner != m {
		return fmt.Errorf("%w: %s is already claimed by another monitor", ErrDeviceUnavailable, path)
	}
	claims[path] = m
	return nil
}

func release(path string, m *Monitor) {
	claimsMu.Lock()
	defer claimsMu.Unlock()

	if claims[path] == m {
		delete(claims, path)
	}
}
