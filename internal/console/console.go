package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/stemtouch/internal/audio"
	"github.com/audiolibrelab/stemtouch/internal/catalog"
	"github.com/audiolibrelab/stemtouch/internal/config"
	"github.com/audiolibrelab/stemtouch/internal/confine"
	"github.com/audiolibrelab/stemtouch/internal/fader"
	"github.com/audiolibrelab/stemtouch/internal/touch"
	"github.com/audiolibrelab/stemtouch/internal/zone"
)

// ErrNoSong is returned by fader operations before a song is loaded
var ErrNoSong = errors.New("no song loaded")

// Service is the console as seen by the UI
type Service interface {
	// Song operations
	ListSongs() ([]catalog.Song, error)
	LoadSong(ctx context.Context, name string) error

	// Transport operations
	Play(ctx context.Context) error
	Pause() error
	Stop() error
	TogglePlay(ctx context.Context) error

	// Fader operations
	SetFaderMode(on bool) error
	ToggleMute(index int) error
	ResetFaders() error
	ToggleCursorLock() error
	EmergencyRelease(reason string)

	// Liveness and display
	Tick()
	Snapshot() Snapshot
	GetLastError() string
}

// InputSource produces touch events
type InputSource interface {
	Start(ctx context.Context) error
	Stop() error
	Subscribe(buffer int) <-chan touch.Event
	Dropped() uint64
}

// Snapshot is everything the UI draws in one frame
type Snapshot struct {
	Song       string
	Faders     []fader.Snapshot
	Zones      []zone.Zone
	Axis       zone.Axis
	Transport  audio.State
	Position   time.Duration
	Length     time.Duration
	FaderMode  bool
	Lock       confine.LockState
	CursorLock string
	Hovers     []touch.Touch
	HoverZone  int
	InputReady bool
	InputError string
	Dropped    uint64
	LastError  string
}

// Console routes touch input through the zone layout into the fader bank and
// hands the resulting gains to the transport
type Console struct {
	cfg       *config.Config
	library   *catalog.Library
	transport *audio.Transport
	input     InputSource
	lock      *confine.Controller
	watchdog  *confine.Watchdog

	events <-chan touch.Event
	dirty  chan struct{}

	mu         sync.RWMutex
	song       *catalog.Song
	bank       *fader.Bank
	layout     zone.Layout
	hovers     []touch.Touch
	hoverZone  int
	inputReady bool
	inputError string

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a console. The watchdog releases the cursor lock when Tick
// stops being called for longer than the configured liveness timeout.
func New(cfg *config.Config, library *catalog.Library, transport *audio.Transport, input InputSource, lock *confine.Controller) *Console {
	c := &Console{
		cfg:       cfg,
		library:   library,
		transport: transport,
		input:     input,
		lock:      lock,
		dirty:     make(chan struct{}, 1),
		hoverZone: -1,
	}
	c.watchdog = confine.NewWatchdog(cfg.Confine.LivenessTimeout, cfg.Confine.CheckInterval, lock.EmergencyRelease)
	if input != nil {
		c.events = input.Subscribe(cfg.Touch.Buffer)
	}
	return c
}

// Run starts touch monitoring, the gain applier and the liveness watchdog, and
// processes input until ctx is done. An unavailable touch device leaves the
// console running with inert faders.
func (c *Console) Run(ctx context.Context) error {
	c.watchdog.Start()
	defer c.watchdog.Stop()

	applierDone := make(chan struct{})
	go c.applyGains(ctx, applierDone)
	defer func() { <-applierDone }()

	if c.input != nil {
		if err := c.input.Start(ctx); err != nil {
			c.setInputState(false, err.Error())
			c.setLastError(fmt.Sprintf("touch input unavailable: %v", err))
		} else {
			c.setInputState(true, "")
			defer c.input.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.events:
			if !ok {
				<-ctx.Done()
				return nil
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Console) handleEvent(ev touch.Event) {
	switch e := ev.(type) {
	case touch.TouchesChanged:
		c.handleTouches(e.Touches)
	case touch.HoverChanged:
		c.handleHovers(e.Hovers)
	case touch.Click:
		c.handleClick(e)
	case touch.Scroll:
		c.handleScroll(e)
	default:
		slog.Debug("Unhandled input event", "event", fmt.Sprintf("%T", ev))
	}
}

// handleTouches binds new touches to the zone they land in and drags bound
// touches. A touch keeps its fader until it lifts, whatever zone it crosses.
func (c *Console) handleTouches(touches []touch.Touch) {
	bank, layout := c.current()
	if bank == nil || !c.lock.FaderMode() {
		return
	}

	present := make(map[touch.ID]bool, len(touches))
	for _, t := range touches {
		if !t.Active {
			continue
		}
		present[t.ID] = true

		pos := layout.Coord(t.Position.X, t.Position.Y)
		if bank.Move(t.ID, pos) {
			continue
		}
		idx := layout.ZoneForX(pos)
		if bank.Acquire(idx, t.ID, pos) {
			slog.Debug("Touch acquired fader", "touch", t.ID, "fader", idx, "at", pos)
		}
	}

	if released := bank.ReleaseMissing(present); len(released) > 0 {
		slog.Debug("Faders released", "faders", released)
	}
	c.markDirty()
}

func (c *Console) handleHovers(hovers []touch.Touch) {
	_, layout := c.current()

	hz := -1
	if len(hovers) > 0 && layout.Len() > 0 {
		h := hovers[0]
		hz = layout.ZoneForX(layout.Coord(h.Position.X, h.Position.Y))
	}

	c.mu.Lock()
	c.hovers = hovers
	c.hoverZone = hz
	c.mu.Unlock()
}

func (c *Console) handleClick(click touch.Click) {
	bank, layout := c.current()
	if bank == nil || !c.lock.FaderMode() || click.Count < 2 {
		return
	}

	idx := layout.ZoneForX(layout.Coord(click.Location.X, click.Location.Y))
	if err := bank.ToggleMute(idx); err != nil {
		slog.Debug("Double click outside faders", "error", err)
		return
	}
	slog.Debug("Fader mute toggled by double click", "fader", idx)
	c.markDirty()
}

// handleScroll nudges the fader under the hovering finger
func (c *Console) handleScroll(s touch.Scroll) {
	bank, _ := c.current()
	if bank == nil || !c.lock.FaderMode() {
		return
	}

	c.mu.RLock()
	idx := c.hoverZone
	c.mu.RUnlock()
	if idx < 0 {
		return
	}

	steps := s.DY
	if steps == 0 {
		steps = s.DX
	}
	if steps == 0 {
		return
	}
	if err := bank.Nudge(idx, steps*c.cfg.Faders.ScrollStep); err == nil {
		c.markDirty()
	}
}

func (c *Console) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// applyGains computes gains off the input path and hands them to the transport
func (c *Console) applyGains(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.dirty:
			bank, _ := c.current()
			if bank == nil {
				continue
			}
			c.transport.SetGains(bank.Gains())
		}
	}
}

func (c *Console) current() (*fader.Bank, zone.Layout) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bank, c.layout
}

// ListSongs returns the song library
func (c *Console) ListSongs() ([]catalog.Song, error) {
	return c.library.List()
}

// LoadSong decodes the stems of name and replaces the current song. On any
// failure the previous song stays loaded.
func (c *Console) LoadSong(ctx context.Context, name string) error {
	c.clearLastError()

	song, err := c.library.Find(name)
	if err != nil {
		c.setLastError(err.Error())
		return err
	}

	stems, err := catalog.Load(ctx, song, c.cfg.Audio.SampleRate)
	if err != nil {
		c.setLastError(err.Error())
		return err
	}

	bank, layout, err := BuildMix(c.cfg, stems)
	if err != nil {
		c.setLastError(err.Error())
		return err
	}

	if err := c.transport.Load(stems); err != nil {
		c.setLastError(err.Error())
		return err
	}

	c.mu.Lock()
	c.song = song
	c.bank = bank
	c.layout = layout
	c.hovers = nil
	c.hoverZone = -1
	c.mu.Unlock()

	c.transport.SetGains(bank.Gains())

	if err := c.library.SetSelected(name); err != nil {
		slog.Warn("Failed to remember selected song", "song", name, "error", err)
	}
	slog.Info("Song loaded", "song", name, "stems", len(stems), "zones", layout.Len())
	return nil
}

// BuildMix creates the fader bank and zone layout for stems using the
// configured ranges, stem defaults and zone weights
func BuildMix(cfg *config.Config, stems []*audio.Stem) (*fader.Bank, zone.Layout, error) {
	rng := fader.Range{
		Min:         cfg.Faders.Min,
		Max:         cfg.Faders.Max,
		Default:     cfg.FaderDefault(),
		Sensitivity: cfg.Faders.Sensitivity,
	}

	labels := make([]string, len(stems))
	for i, s := range stems {
		labels[i] = s.Name
		if set, ok := cfg.StemSetting(s.Name); ok && set.Label != "" {
			labels[i] = set.Label
		}
	}

	bank, err := fader.NewBank(labels, rng)
	if err != nil {
		return nil, zone.Layout{}, fmt.Errorf("invalid fader range: %w", err)
	}
	for i, s := range stems {
		if set, ok := cfg.StemSetting(s.Name); ok {
			if set.Gain != nil {
				bank.SetValue(i, *set.Gain)
			}
			bank.SetMuted(i, set.Muted)
		}
	}

	weights := cfg.Zones.Weights
	if len(weights) != 0 && len(weights) != len(stems) {
		slog.Debug("Zone weights ignored, count does not match stems", "weights", len(weights), "stems", len(stems))
		weights = nil
	}
	layout, err := zone.NewOnAxis(len(stems), weights, zone.Axis(cfg.Zones.Axis))
	if err != nil {
		return nil, zone.Layout{}, err
	}
	return bank, layout, nil
}

// Play starts every stem together
func (c *Console) Play(ctx context.Context) error {
	if err := c.transport.Play(ctx); err != nil {
		c.setLastError(err.Error())
		return err
	}
	c.clearLastError()
	return nil
}

// Pause halts every stem
func (c *Console) Pause() error {
	if err := c.transport.Pause(); err != nil {
		c.setLastError(err.Error())
		return err
	}
	return nil
}

// Stop halts every stem and rewinds
func (c *Console) Stop() error {
	if err := c.transport.Stop(); err != nil {
		c.setLastError(err.Error())
		return err
	}
	return nil
}

// TogglePlay plays or pauses
func (c *Console) TogglePlay(ctx context.Context) error {
	if c.transport.State() == audio.StatePlaying {
		return c.Pause()
	}
	return c.Play(ctx)
}

// SetFaderMode enters or leaves fader-interaction mode. Entering engages the
// cursor lock when wanted; a lock failure is only a warning. Leaving releases
// every drag, disengages the lock and stops playback.
func (c *Console) SetFaderMode(on bool) error {
	err := c.lock.SetFaderMode(on)
	if err != nil && errors.Is(err, confine.ErrConfinementUnavailable) {
		slog.Warn("Fader mode without cursor lock", "error", err)
		err = nil
	}
	if err != nil {
		c.setLastError(err.Error())
	}

	if on {
		return err
	}

	if bank, _ := c.current(); bank != nil {
		bank.ReleaseAll()
	}
	if stopErr := c.transport.Stop(); stopErr != nil && !errors.Is(stopErr, audio.ErrNoSong) {
		c.setLastError(stopErr.Error())
		return stopErr
	}
	return err
}

// ToggleMute flips the mute of fader index
func (c *Console) ToggleMute(index int) error {
	bank, _ := c.current()
	if bank == nil {
		return ErrNoSong
	}
	if err := bank.ToggleMute(index); err != nil {
		return err
	}
	c.markDirty()
	return nil
}

// ResetFaders forces every fader back to the default, unmuted
func (c *Console) ResetFaders() error {
	bank, _ := c.current()
	if bank == nil {
		return ErrNoSong
	}
	bank.ResetAll()
	c.markDirty()
	return nil
}

// ToggleCursorLock flips the cursor lock. An unavailable lock is reported but
// does not fail the call.
func (c *Console) ToggleCursorLock() error {
	if err := c.lock.Toggle(); err != nil {
		if errors.Is(err, confine.ErrConfinementUnavailable) {
			return nil
		}
		c.setLastError(err.Error())
		return err
	}
	return nil
}

// EmergencyRelease frees the cursor from any goroutine
func (c *Console) EmergencyRelease(reason string) {
	c.lock.EmergencyRelease(reason)
}

// Tick is called by the UI loop on every frame. It feeds the watchdog and
// stops the transport at the end of the song.
func (c *Console) Tick() {
	c.watchdog.Beat()
	c.transport.Refresh()
}

// Snapshot returns a consistent view for display
func (c *Console) Snapshot() Snapshot {
	c.mu.RLock()
	s := Snapshot{
		Axis:       c.layout.Axis,
		Zones:      c.layout.Zones(),
		Hovers:     append([]touch.Touch(nil), c.hovers...),
		HoverZone:  c.hoverZone,
		InputReady: c.inputReady,
		InputError: c.inputError,
	}
	if c.song != nil {
		s.Song = c.song.Name
	}
	bank := c.bank
	c.mu.RUnlock()

	if bank != nil {
		s.Faders = bank.Snapshot()
	}
	s.Transport = c.transport.State()
	s.Position = c.transport.Position()
	s.Length = c.transport.Length()
	s.FaderMode = c.lock.FaderMode()
	s.Lock = c.lock.Lock()
	s.CursorLock = c.lock.State()
	if c.input != nil {
		s.Dropped = c.input.Dropped()
	}
	s.LastError = c.GetLastError()
	return s
}

// Close leaves fader mode and releases the audio engine
func (c *Console) Close() error {
	if err := c.lock.SetFaderMode(false); err != nil {
		c.lock.EmergencyRelease("close")
	}
	return c.transport.Close()
}

func (c *Console) setInputState(ready bool, errText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputReady = ready
	c.inputError = errText
}

// GetLastError returns the last error message (thread-safe)
func (c *Console) GetLastError() string {
	c.lastErrorMutex.RLock()
	defer c.lastErrorMutex.RUnlock()
	return c.lastError
}

// setLastError sets the last error message (thread-safe)
func (c *Console) setLastError(err string) {
	c.lastErrorMutex.Lock()
	defer c.lastErrorMutex.Unlock()
	c.lastError = err

	slog.Error("Console error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (c *Console) clearLastError() {
	c.lastErrorMutex.Lock()
	defer c.lastErrorMutex.Unlock()
	c.lastError = ""
}
