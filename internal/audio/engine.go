package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EngineType selects the audio output implementation
type EngineType string

const (
	EngineTypeOto  EngineType = "oto"
	EngineTypeNull EngineType = "null"
	EngineTypeAuto EngineType = "auto"
)

var errPlayerReleased = errors.New("stem player released")

// StemPlayer plays one stem on the engine clock
type StemPlayer interface {
	Name() string
	Start() error
	Pause()
	Playing() bool
	SetGain(g float64)
	Gain() float64
}

// Engine owns the shared clock and the output device the stem players feed
type Engine interface {
	// NewPlayer attaches a stem to the clock, stopped
	NewPlayer(stem *Stem) (StemPlayer, error)
	// Release detaches players and frees their sample data
	Release(players []StemPlayer)
	// Start makes the output device pull from the clock; it is idempotent and
	// gives up when ctx is done
	Start(ctx context.Context) error
	// Batch applies every change made in fn on the same clock frame
	Batch(fn func())
	Seek(frame int64)
	Position() time.Duration
	Length() time.Duration
	Ended() bool
	Close() error
}

// mixerPlayer is a StemPlayer backed by a mixer track
type mixerPlayer struct {
	t *track
}

func (p *mixerPlayer) Name() string {
	return p.t.stem.Name
}

func (p *mixerPlayer) Start() error {
	if p.t.released.Load() {
		return errPlayerReleased
	}
	if len(p.t.stem.Samples) == 0 {
		return fmt.Errorf("stem %s has no audio", p.t.stem.Name)
	}
	p.t.playing.Store(true)
	return nil
}

func (p *mixerPlayer) Pause() {
	p.t.playing.Store(false)
}

func (p *mixerPlayer) Playing() bool {
	return p.t.playing.Load()
}

func (p *mixerPlayer) SetGain(g float64) {
	p.t.setGain(g)
}

func (p *mixerPlayer) Gain() float64 {
	return float64(p.t.loadGain())
}

// MixerEngine drives the mixer clock without an output device. The clock only
// advances when Render is called, which makes it suitable for offline mixdown.
type MixerEngine struct {
	mixer *Mixer
}

// NewMixerEngine creates a device-less engine at sampleRate
func NewMixerEngine(sampleRate int) *MixerEngine {
	return &MixerEngine{mixer: NewMixer(sampleRate)}
}

// Mixer exposes the underlying clock
func (e *MixerEngine) Mixer() *Mixer {
	return e.mixer
}

func (e *MixerEngine) NewPlayer(stem *Stem) (StemPlayer, error) {
	return newMixerPlayer(e.mixer, stem)
}

func (e *MixerEngine) Release(players []StemPlayer) {
	releasePlayers(e.mixer, players)
}

func (e *MixerEngine) Start(ctx context.Context) error {
	return ctx.Err()
}

func (e *MixerEngine) Batch(fn func())          { e.mixer.Batch(fn) }
func (e *MixerEngine) Seek(frame int64)         { e.mixer.Seek(frame) }
func (e *MixerEngine) Position() time.Duration  { return e.mixer.Position() }
func (e *MixerEngine) Length() time.Duration    { return e.mixer.frameTime(e.mixer.Length()) }
func (e *MixerEngine) Ended() bool              { return e.mixer.Ended() }
func (e *MixerEngine) Close() error             { return nil }
func (e *MixerEngine) Render(dst []float32) int { return e.mixer.Render(dst) }

func newMixerPlayer(m *Mixer, stem *Stem) (StemPlayer, error) {
	if stem == nil {
		return nil, fmt.Errorf("nil stem")
	}
	if stem.SampleRate != m.SampleRate() {
		return nil, fmt.Errorf("stem %s sample rate %d does not match engine rate %d", stem.Name, stem.SampleRate, m.SampleRate())
	}
	return &mixerPlayer{t: m.attach(stem)}, nil
}

func releasePlayers(m *Mixer, players []StemPlayer) {
	tracks := make([]*track, 0, len(players))
	for _, p := range players {
		if mp, ok := p.(*mixerPlayer); ok {
			tracks = append(tracks, mp.t)
		}
	}
	m.detach(tracks)
}

// NewEngine creates the engine selected by name
func NewEngine(name string, sampleRate int, bufferSize time.Duration) (Engine, error) {
	switch determineEngine(name) {
	case EngineTypeNull:
		return NewMixerEngine(sampleRate), nil
	case EngineTypeOto:
		return NewOtoEngine(sampleRate, bufferSize), nil
	default:
		return nil, fmt.Errorf("unknown audio engine: %s", name)
	}
}

// determineEngine resolves the configured engine name
func determineEngine(name string) EngineType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "oto":
		return EngineTypeOto
	case "null", "none":
		return EngineTypeNull
	default:
		return EngineType(name)
	}
}

// GetAvailableEngines returns the engines compiled into this binary
func GetAvailableEngines() []EngineType {
	return []EngineType{EngineTypeOto, EngineTypeNull}
}
