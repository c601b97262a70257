package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the aggregate playback state of all stems
type State string

const (
	StateStopped State = "STOPPED"
	StatePlaying State = "PLAYING"
	StatePaused  State = "PAUSED"
)

var (
	// ErrTransportStart is wrapped by every failed group start
	ErrTransportStart = errors.New("transport start failed")
	// ErrNoSong is returned by transport commands before any song is loaded
	ErrNoSong = errors.New("no song loaded")
)

// StartError reports which stem prevented a group start
type StartError struct {
	Index int
	Stem  string
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("stem %d (%s) failed to start: %v", e.Index, e.Stem, e.Err)
}

func (e *StartError) Unwrap() []error {
	return []error{ErrTransportStart, e.Err}
}

// Transport runs one player per stem on a shared engine clock. Play, Pause and
// Stop apply to all stems at once: either every stem transitions or none does.
type Transport struct {
	engine       Engine
	startTimeout time.Duration

	mu      sync.Mutex
	state   State
	players []StemPlayer
	stems   []*Stem
}

// NewTransport creates a transport on engine. startTimeout bounds how long Play
// waits for the device.
func NewTransport(engine Engine, startTimeout time.Duration) *Transport {
	if startTimeout <= 0 {
		startTimeout = 2 * time.Second
	}
	return &Transport{
		engine:       engine,
		startTimeout: startTimeout,
		state:        StateStopped,
	}
}

// Load replaces the current song. If the stem count is invalid or any player
// cannot be created, the previous song stays loaded.
func (t *Transport) Load(stems []*Stem) error {
	if err := ValidateStemCount(len(stems)); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	players := make([]StemPlayer, 0, len(stems))
	for _, stem := range stems {
		p, err := t.engine.NewPlayer(stem)
		if err != nil {
			t.engine.Release(players)
			return fmt.Errorf("failed to create player for stem %s: %w", stem.Name, err)
		}
		players = append(players, p)
	}

	t.teardownLocked()
	t.players = players
	t.stems = stems
	t.state = StateStopped
	t.engine.Seek(0)

	slog.Info("Transport loaded song", "stems", len(stems), "length", t.engine.Length().Round(time.Second))
	return nil
}

// Unload stops playback and releases every player
func (t *Transport) Unload() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
}

func (t *Transport) teardownLocked() {
	if len(t.players) == 0 {
		return
	}
	t.engine.Batch(func() {
		for _, p := range t.players {
			p.Pause()
		}
	})
	t.engine.Release(t.players)
	t.engine.Seek(0)
	t.players = nil
	t.stems = nil
	t.state = StateStopped
}

// Play starts every stem on the same clock frame. If the device or any stem
// fails to start, all stems are halted, the position and state stay what they
// were, and the error wraps ErrTransportStart.
func (t *Transport) Play(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.players) == 0 {
		return ErrNoSong
	}
	if t.state == StatePlaying {
		return nil
	}

	startCtx, cancel := context.WithTimeout(ctx, t.startTimeout)
	defer cancel()
	if err := t.engine.Start(startCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportStart, err)
	}

	// the batch holds the clock, so a failed start never advances the position
	var startErr error
	t.engine.Batch(func() {
		for i, p := range t.players {
			if err := p.Start(); err != nil {
				startErr = &StartError{Index: i, Stem: p.Name(), Err: err}
				for _, q := range t.players {
					q.Pause()
				}
				return
			}
		}
	})

	if startErr != nil {
		slog.Error("Group start aborted, all stems halted", "error", startErr, "state", t.state)
		return startErr
	}

	t.state = StatePlaying
	slog.Debug("Transport playing", "stems", len(t.players), "position", t.engine.Position())
	return nil
}

// Pause halts every stem, keeping the shared position
func (t *Transport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.players) == 0 {
		return ErrNoSong
	}
	if t.state != StatePlaying {
		return nil
	}
	t.pauseAllLocked()
	t.state = StatePaused
	return nil
}

// Toggle plays when paused or stopped and pauses when playing
func (t *Transport) Toggle(ctx context.Context) error {
	if t.State() == StatePlaying {
		return t.Pause()
	}
	return t.Play(ctx)
}

// Stop halts every stem and rewinds to the start
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.players) == 0 {
		return ErrNoSong
	}
	t.pauseAllLocked()
	t.engine.Seek(0)
	t.state = StateStopped
	return nil
}

func (t *Transport) pauseAllLocked() {
	t.engine.Batch(func() {
		for _, p := range t.players {
			p.Pause()
		}
	})
}

// Refresh stops the transport once the clock has passed the end of the song.
// It reports whether that happened.
func (t *Transport) Refresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePlaying || !t.engine.Ended() {
		return false
	}
	t.pauseAllLocked()
	t.engine.Seek(0)
	t.state = StateStopped
	slog.Info("Song finished")
	return true
}

// SetGains hands the final per-stem gains to the render path. Extra values are
// ignored and missing ones leave the stem unchanged.
func (t *Transport) SetGains(gains []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, p := range t.players {
		if i >= len(gains) {
			break
		}
		p.SetGain(gains[i])
	}
}

// Gains returns the gains currently applied
func (t *Transport) Gains() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]float64, len(t.players))
	for i, p := range t.players {
		out[i] = p.Gain()
	}
	return out
}

// State returns the aggregate playback state
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Playing returns how many stem players are running
func (t *Transport) Playing() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, p := range t.players {
		if p.Playing() {
			n++
		}
	}
	return n
}

// Stems returns the loaded stems
func (t *Transport) Stems() []*Stem {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Stem, len(t.stems))
	copy(out, t.stems)
	return out
}

// Position returns the shared clock position
func (t *Transport) Position() time.Duration {
	return t.engine.Position()
}

// Length returns the duration of the longest stem
func (t *Transport) Length() time.Duration {
	return t.engine.Length()
}

// Close unloads the song and closes the engine
func (t *Transport) Close() error {
	t.Unload()
	return t.engine.Close()
}
