package config

import (
	"os"
	"strings"
	"testing"
)

func TestValidateConfigurationFormat_ValidConfig(t *testing.T) {
	validConfig := `
active_config: test

definitions:
  stems:
    - id: drums
      name: drums
      gain: 0.8
    - id: vox
      name: vocals
      label: VOX
      gain: 0.9

configs:
  test:
    stems:
      - ref: drums
        gain: 0.6
      - ref: vox
        muted: true

supported_audio_extensions:
  - wav
  - mp3
`

	configFile := createTempConfig(t, validConfig)
	defer os.Remove(configFile)

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if rootConfig.Definitions == nil || len(rootConfig.Definitions.Stems) != 2 {
		t.Fatalf("Expected 2 stem definitions, got %+v", rootConfig.Definitions)
	}
	if rootConfig.ActiveConfig != "test" {
		t.Errorf("Expected active config 'test', got %s", rootConfig.ActiveConfig)
	}

	refs := rootConfig.Configs["test"].Stems
	if len(refs) != 2 {
		t.Fatalf("Expected 2 stem references, got %d", len(refs))
	}
	if refs[0].Gain == nil || *refs[0].Gain != 0.6 {
		t.Errorf("Expected gain override 0.6, got %v", refs[0].Gain)
	}
	if refs[1].Muted == nil || !*refs[1].Muted {
		t.Errorf("Expected muted override, got %v", refs[1].Muted)
	}
}

func TestValidateConfigurationFormat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "missing configs",
			content: "active_config: x\n",
			errText: "configs section is required",
		},
		{
			name: "missing id",
			content: `
definitions:
  stems:
    - name: drums
configs:
  default: {audio: {sample_rate: 48000}}
`,
			errText: "'id' is required",
		},
		{
			name: "duplicate id",
			content: `
definitions:
  stems:
    - id: d
      name: drums
    - id: d
      name: bass
configs:
  default: {audio: {sample_rate: 48000}}
`,
			errText: "duplicate ID",
		},
		{
			name: "negative gain",
			content: `
definitions:
  stems:
    - id: d
      name: drums
      gain: -1
configs:
  default: {audio: {sample_rate: 48000}}
`,
			errText: "'gain' must be >= 0",
		},
		{
			name: "undefined reference",
			content: `
definitions:
  stems:
    - id: d
      name: drums
configs:
  default:
    stems:
      - ref: nope
`,
			errText: "undefined stem definition",
		},
		{
			name: "negative override",
			content: `
definitions:
  stems:
    - id: d
      name: drums
configs:
  default:
    stems:
      - ref: d
        gain: -0.5
`,
			errText: "gain override must be >= 0",
		},
		{
			name: "undecodable extension",
			content: `
supported_audio_extensions: [wav, flac]
configs:
  default: {audio: {sample_rate: 48000}}
`,
			errText: "cannot be decoded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := createTempConfig(t, tt.content)
			defer os.Remove(configFile)

			_, err := ValidateConfigurationFormat(configFile)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got: %v", tt.errText, err)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		errText string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad sample rate", func(c *Config) { c.Audio.SampleRate = -1 }, "audio.sample_rate"},
		{"bad engine", func(c *Config) { c.Audio.Engine = "jack" }, "audio.engine"},
		{"bad axis", func(c *Config) { c.Zones.Axis = "z" }, "zones.axis"},
		{"bad weight", func(c *Config) { c.Zones.Weights = []float64{1, 0} }, "zones.weights[1]"},
		{"too many weights", func(c *Config) { c.Zones.Weights = []float64{1, 1, 1, 1, 1, 1, 1, 1, 1} }, "at most 8"},
		{"inverted range", func(c *Config) { c.Faders.Min, c.Faders.Max = 1, 0 }, "faders.min"},
		{"default outside", func(c *Config) { c.Faders.Default = floatPtr(2) }, "faders.default"},
		{"bad sensitivity", func(c *Config) { c.Faders.Sensitivity = -1 }, "faders.sensitivity"},
		{"stem gain outside", func(c *Config) { c.Stems = []StemSetting{{Name: "x", Gain: floatPtr(3)}} }, "stem 'x'"},
		{"hover threshold", func(c *Config) { c.Touch.HoverThreshold = 1 }, "touch.hover_threshold"},
		{"short liveness", func(c *Config) { c.Confine.LivenessTimeout = 0 }, "confine.liveness_timeout"},
		{"interval above timeout", func(c *Config) { c.Confine.CheckInterval = c.Confine.LivenessTimeout * 2 }, "confine.check_interval"},
		{"bad bounds", func(c *Config) { c.Confine.Bounds = "1,2" }, "confine.bounds"},
		{"bad tick", func(c *Config) { c.UI.Tick = -1 }, "ui.tick"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)

			err := validateConfig(c)
			if tt.errText == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got: %v", tt.errText, err)
			}
		})
	}
}

func TestConvertProfileToConfig_ValidProfile(t *testing.T) {
	definitions := &DefinitionsConfig{
		Stems: []StemDefinition{
			{ID: "drums", Name: "drums", Label: "DRM", Gain: floatPtr(0.8)},
			{ID: "bass", Name: "bass", Gain: floatPtr(0.7), Muted: true},
			{ID: "keys", Name: "keys", Label: "KEYS"},
		},
	}
	gain := 0.5
	unmute := false
	profile := &ConfigProfile{
		Audio: AudioConfig{SampleRate: 44100},
		Stems: []StemReference{
			{Ref: "drums", Gain: &gain},
			{Ref: "bass", Muted: &unmute},
			{Ref: "keys"},
		},
	}

	cfg, err := convertProfileToConfig(profile, definitions)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", cfg.Audio.SampleRate)
	}
	if len(cfg.Stems) != 3 {
		t.Fatalf("Expected 3 stems, got %d", len(cfg.Stems))
	}
	if cfg.Stems[0].Gain == nil || *cfg.Stems[0].Gain != 0.5 || cfg.Stems[0].Label != "DRM" {
		t.Errorf("Expected drums with overridden gain, got %+v", cfg.Stems[0])
	}
	if cfg.Stems[1].Muted || cfg.Stems[1].Gain == nil || *cfg.Stems[1].Gain != 0.7 {
		t.Errorf("Expected bass unmuted with definition gain, got %+v", cfg.Stems[1])
	}
	if cfg.Stems[2].Gain != nil || cfg.Stems[2].Label != "KEYS" {
		t.Errorf("Expected keys without gain so the fader default applies, got %+v", cfg.Stems[2])
	}
}

func TestConvertProfileToConfig_MissingReference(t *testing.T) {
	profile := &ConfigProfile{Stems: []StemReference{{Ref: "ghost"}}}

	if _, err := convertProfileToConfig(profile, &DefinitionsConfig{}); err == nil {
		t.Error("Expected error for missing reference")
	}
	if _, err := convertProfileToConfig(&ConfigProfile{Stems: []StemReference{{}}}, nil); err == nil {
		t.Error("Expected error for empty ref")
	}
	if _, err := convertProfileToConfig(nil, nil); err == nil {
		t.Error("Expected error for nil profile")
	}
}

// Helper function to create temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	tmpfile, err := os.CreateTemp("", "stemtouch-test-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}

	if err := tmpfile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	return tmpfile.Name()
}
