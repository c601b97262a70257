package confine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Watchdog fires a release when the UI loop stops beating. It runs on its own
// goroutine so a stalled UI cannot keep the pointer trapped.
type Watchdog struct {
	timeout  time.Duration
	interval time.Duration
	release  func(reason string)

	last  atomic.Int64
	fired atomic.Bool
	count atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewWatchdog creates a stopped watchdog. release is called once per stall.
func NewWatchdog(timeout, interval time.Duration, release func(reason string)) *Watchdog {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if interval <= 0 || interval > timeout {
		interval = timeout / 4
	}
	w := &Watchdog{
		timeout:  timeout,
		interval: interval,
		release:  release,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.last.Store(time.Now().UnixNano())
	return w
}

// Beat records that the UI loop is alive
func (w *Watchdog) Beat() {
	w.last.Store(time.Now().UnixNano())
	w.fired.Store(false)
}

// Start launches the liveness check
func (w *Watchdog) Start() {
	w.startOnce.Do(func() {
		w.Beat()
		go w.run()
	})
}

// Stop ends the liveness check. It is idempotent.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.startOnce.Do(func() { close(w.done) })
	<-w.done
}

// Fired returns how many times the watchdog released
func (w *Watchdog) Fired() int {
	return int(w.count.Load())
}

func (w *Watchdog) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case now := <-ticker.C:
			w.check(now)
		}
	}
}

func (w *Watchdog) check(now time.Time) {
	silent := now.Sub(time.Unix(0, w.last.Load()))
	if silent < w.timeout {
		return
	}
	if !w.fired.CompareAndSwap(false, true) {
		return
	}
	w.count.Add(1)
	slog.Warn("UI loop unresponsive", "silent", silent.Round(time.Millisecond), "timeout", w.timeout)
	w.release("liveness timeout")
}
