package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const bytesPerFrame = ChannelCount * 4

// track is one stem attached to the mixer clock. Its flags and gain are atomics
// so the render path only loads them.
type track struct {
	stem     *Stem
	playing  atomic.Bool
	released atomic.Bool
	gain     atomic.Uint64
}

func (t *track) setGain(g float64) {
	t.gain.Store(math.Float64bits(g))
}

func (t *track) loadGain() float32 {
	return float32(math.Float64frombits(t.gain.Load()))
}

// Mixer is the shared playback clock. Every playing track is read at the same
// frame index, so stems cannot drift apart. Output is interleaved float32 LE stereo.
type Mixer struct {
	sampleRate int

	mu      sync.Mutex
	frame   int64
	length  int64
	tracks  []*track
	scratch []float32

	ended atomic.Bool
}

// NewMixer creates an empty mixer running at sampleRate
func NewMixer(sampleRate int) *Mixer {
	return &Mixer{sampleRate: sampleRate}
}

// SampleRate returns the clock rate
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// attach adds a stem to the clock with unity gain, stopped
func (m *Mixer) attach(stem *Stem) *track {
	t := &track{stem: stem}
	t.setGain(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks = append(m.tracks, t)
	if n := stem.Frames(); n > m.length {
		m.length = n
	}
	return t
}

// detach removes tracks from the clock and releases their sample data
func (m *Mixer) detach(remove []*track) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[*track]bool, len(remove))
	for _, t := range remove {
		t.playing.Store(false)
		t.released.Store(true)
		drop[t] = true
	}

	kept := m.tracks[:0]
	m.length = 0
	for _, t := range m.tracks {
		if drop[t] {
			continue
		}
		kept = append(kept, t)
		if n := t.stem.Frames(); n > m.length {
			m.length = n
		}
	}
	for i := len(kept); i < len(m.tracks); i++ {
		m.tracks[i] = nil
	}
	m.tracks = kept
	if m.frame > m.length {
		m.frame = m.length
	}
}

// Batch runs fn between two render cycles, so every state change made inside
// fn takes effect on the same frame
func (m *Mixer) Batch(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// Seek moves the clock to frame
func (m *Mixer) Seek(frame int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if frame < 0 {
		frame = 0
	}
	m.frame = frame
	m.ended.Store(frame >= m.length && m.length > 0)
}

// Frame returns the clock position
func (m *Mixer) Frame() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// Length returns the frame count of the longest attached stem
func (m *Mixer) Length() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.length
}

// Position returns the clock position as time
func (m *Mixer) Position() time.Duration {
	return m.frameTime(m.Frame())
}

func (m *Mixer) frameTime(frame int64) time.Duration {
	if m.sampleRate <= 0 {
		return 0
	}
	return time.Duration(frame) * time.Second / time.Duration(m.sampleRate)
}

// Ended reports whether the clock ran past the longest stem
func (m *Mixer) Ended() bool {
	return m.ended.Load()
}

// Render mixes len(dst)/2 frames into dst and advances the clock when at least
// one track is playing. It returns the number of frames written.
func (m *Mixer) Render(dst []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renderLocked(dst)
}

func (m *Mixer) renderLocked(dst []float32) int {
	frames := len(dst) / ChannelCount
	clear(dst[:frames*ChannelCount])

	active := false
	for _, t := range m.tracks {
		if !t.playing.Load() || t.released.Load() {
			continue
		}
		active = true

		g := t.loadGain()
		if g == 0 {
			continue
		}
		src := t.stem.Samples
		start := m.frame * ChannelCount
		for i := 0; i < frames*ChannelCount; i++ {
			j := start + int64(i)
			if j >= int64(len(src)) {
				break
			}
			dst[i] += src[j] * g
		}
	}

	if !active {
		return frames
	}

	for i := range dst[:frames*ChannelCount] {
		if dst[i] > 1 {
			dst[i] = 1
		} else if dst[i] < -1 {
			dst[i] = -1
		}
	}

	m.frame += int64(frames)
	if m.frame >= m.length {
		m.ended.Store(true)
	}
	return frames
}

// Read implements io.Reader for an audio device pulling float32 LE stereo.
// It never returns io.EOF: a stopped clock produces silence.
func (m *Mixer) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.scratch) < frames*ChannelCount {
		m.scratch = make([]float32, frames*ChannelCount)
	}
	buf := m.scratch[:frames*ChannelCount]
	m.renderLocked(buf)

	for i, v := range buf {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return frames * bytesPerFrame, nil
}
