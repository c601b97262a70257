package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoEngine plays the mixer clock through the system audio device
type OtoEngine struct {
	mixer      *Mixer
	bufferSize time.Duration

	mu     sync.Mutex
	ctx    *oto.Context
	ready  chan struct{}
	player *oto.Player
}

// NewOtoEngine creates an engine; the device is opened lazily by Start
func NewOtoEngine(sampleRate int, bufferSize time.Duration) *OtoEngine {
	return &OtoEngine{
		mixer:      NewMixer(sampleRate),
		bufferSize: bufferSize,
	}
}

func (e *OtoEngine) NewPlayer(stem *Stem) (StemPlayer, error) {
	return newMixerPlayer(e.mixer, stem)
}

func (e *OtoEngine) Release(players []StemPlayer) {
	releasePlayers(e.mixer, players)
}

// Start opens the device on first use and waits for it to become ready, but
// never longer than ctx allows
func (e *OtoEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   e.mixer.SampleRate(),
			ChannelCount: ChannelCount,
			Format:       oto.FormatFloat32LE,
			BufferSize:   e.bufferSize,
		}
		otoCtx, ready, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("cannot create oto context: %w", err)
		}
		e.ctx = otoCtx
		e.ready = ready
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return fmt.Errorf("audio device not ready: %w", ctx.Err())
	}

	if err := e.ctx.Err(); err != nil {
		return fmt.Errorf("audio device failed: %w", err)
	}

	if e.player == nil {
		e.player = e.ctx.NewPlayer(e.mixer)
		slog.Debug("Audio output player created", "sample_rate", e.mixer.SampleRate(), "buffer", e.bufferSize)
	}
	if !e.player.IsPlaying() {
		e.player.Play()
	}
	return nil
}

func (e *OtoEngine) Batch(fn func())         { e.mixer.Batch(fn) }
func (e *OtoEngine) Seek(frame int64)        { e.mixer.Seek(frame) }
func (e *OtoEngine) Position() time.Duration { return e.mixer.Position() }
func (e *OtoEngine) Length() time.Duration   { return e.mixer.frameTime(e.mixer.Length()) }
func (e *OtoEngine) Ended() bool             { return e.mixer.Ended() }

// Close pauses the output. oto allows a single context per process, so the
// context itself stays alive.
func (e *OtoEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player != nil {
		e.player.Pause()
	}
	return nil
}
