package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func constantStem(name string, rate, frames int, v float32) *Stem {
	s := &Stem{Name: name, SampleRate: rate, Samples: make([]float32, frames*ChannelCount)}
	for i := range s.Samples {
		s.Samples[i] = v
	}
	return s
}

// rampStem encodes the frame index in every sample so the test can check which
// frame each stem was read from
func rampStem(name string, frames int) *Stem {
	s := &Stem{Name: name, SampleRate: 1000, Samples: make([]float32, frames*ChannelCount)}
	for i := 0; i < frames; i++ {
		s.Samples[2*i] = float32(i) / 1000
		s.Samples[2*i+1] = float32(i) / 1000
	}
	return s
}

func TestMixerStemsShareClock(t *testing.T) {
	engine := NewMixerEngine(1000)
	a, _ := engine.NewPlayer(rampStem("a", 200))
	b, _ := engine.NewPlayer(rampStem("b", 200))

	engine.Batch(func() {
		a.Start()
		b.Start()
	})
	buf := make([]float32, 2*50)
	engine.Render(buf)

	// pause b, keep rendering, bring b back: both still read the same frame
	b.Pause()
	engine.Render(buf)
	b.Start()
	a.SetGain(0.5)
	b.SetGain(0.5)
	engine.Render(buf)

	for i := 0; i < 50; i++ {
		want := float32(100+i) / 1000
		if diff := math.Abs(float64(buf[2*i] - want)); diff > 1e-6 {
			t.Fatalf("Frame %d: expected %v, got %v", i, want, buf[2*i])
		}
	}
}

func TestMixerGainAndMute(t *testing.T) {
	engine := NewMixerEngine(48000)
	a, _ := engine.NewPlayer(constantStem("a", 48000, 10, 0.4))
	b, _ := engine.NewPlayer(constantStem("b", 48000, 10, 0.4))
	engine.Batch(func() {
		a.Start()
		b.Start()
	})

	a.SetGain(0.5)
	b.SetGain(0)

	buf := make([]float32, 4)
	engine.Render(buf)
	if math.Abs(float64(buf[0])-0.2) > 1e-6 {
		t.Errorf("Expected 0.2, got %v", buf[0])
	}
}

func TestMixerClipsSum(t *testing.T) {
	engine := NewMixerEngine(48000)
	for _, n := range []string{"a", "b", "c"} {
		p, _ := engine.NewPlayer(constantStem(n, 48000, 4, 0.6))
		p.Start()
	}

	buf := make([]float32, 8)
	engine.Render(buf)
	for i, v := range buf {
		if v != 1 {
			t.Errorf("Expected clipped sample %d to be 1, got %v", i, v)
		}
	}
}

func TestMixerSilentWhenStopped(t *testing.T) {
	m := NewMixer(48000)
	m.attach(constantStem("a", 48000, 10, 0.9))

	p := make([]byte, 4*bytesPerFrame)
	for i := range p {
		p[i] = 0xff
	}
	n, err := m.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(p) {
		t.Errorf("Expected %d bytes, got %d", len(p), n)
	}
	for i := 0; i < n; i += 4 {
		if v := math.Float32frombits(binary.LittleEndian.Uint32(p[i:])); v != 0 {
			t.Fatalf("Expected silence, got %v at byte %d", v, i)
		}
	}
	if m.Frame() != 0 {
		t.Errorf("Expected stopped clock to stay at 0, got %d", m.Frame())
	}
}

func TestMixerEndsAtLongestStem(t *testing.T) {
	engine := NewMixerEngine(1000)
	short, _ := engine.NewPlayer(constantStem("short", 1000, 10, 0.1))
	long, _ := engine.NewPlayer(constantStem("long", 1000, 30, 0.1))
	engine.Batch(func() {
		short.Start()
		long.Start()
	})

	if engine.Length() != 30*time.Millisecond {
		t.Errorf("Expected length 30ms, got %v", engine.Length())
	}

	buf := make([]float32, 2*20)
	engine.Render(buf)
	if engine.Ended() {
		t.Error("Expected clock not to end before the longest stem")
	}
	engine.Render(buf)
	if !engine.Ended() {
		t.Error("Expected clock to end after the longest stem")
	}

	engine.Seek(0)
	if engine.Ended() {
		t.Error("Expected Seek(0) to clear the ended flag")
	}
}

func TestMixerRejectsRateMismatch(t *testing.T) {
	engine := NewMixerEngine(48000)
	if _, err := engine.NewPlayer(constantStem("a", 44100, 10, 0)); err == nil {
		t.Error("Expected error for mismatched sample rate")
	}
}

func TestMixerReleasedPlayerCannotStart(t *testing.T) {
	engine := NewMixerEngine(48000)
	p, _ := engine.NewPlayer(constantStem("a", 48000, 10, 0.5))
	engine.Release([]StemPlayer{p})

	if err := p.Start(); err == nil {
		t.Error("Expected error starting a released player")
	}
	if engine.Length() != 0 {
		t.Errorf("Expected empty clock after release, got %v", engine.Length())
	}
}

func TestDetermineEngine(t *testing.T) {
	tests := []struct {
		name     string
		expected EngineType
	}{
		{"", EngineTypeOto},
		{"auto", EngineTypeOto},
		{"OTO", EngineTypeOto},
		{"null", EngineTypeNull},
		{"none", EngineTypeNull},
		{"jack", EngineType("jack")},
	}

	for _, tt := range tests {
		if got := determineEngine(tt.name); got != tt.expected {
			t.Errorf("determineEngine(%q): expected %s, got %s", tt.name, tt.expected, got)
		}
	}

	if _, err := NewEngine("jack", 48000, 0); err == nil {
		t.Error("Expected error for unknown engine")
	}
}
