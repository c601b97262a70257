package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DefinitionsConfig struct {
	Stems []StemDefinition `mapstructure:"stems" yaml:"stems"`
}

// StemDefinition describes how a stem file is presented and mixed by default.
// Name matches the stem file name without extension, case-insensitively.
type StemDefinition struct {
	ID    string  `mapstructure:"id" yaml:"id"`
	Name  string  `mapstructure:"name" yaml:"name"`
	Label string   `mapstructure:"label" yaml:"label"`
	Gain  *float64 `mapstructure:"gain" yaml:"gain,omitempty"` // nil = faders.default
	Muted bool     `mapstructure:"muted" yaml:"muted"`
}

type StemReference struct {
	Ref   string   `mapstructure:"ref" yaml:"ref"`
	Gain  *float64 `mapstructure:"gain,omitempty" yaml:"gain,omitempty"`
	Muted *bool    `mapstructure:"muted,omitempty" yaml:"muted,omitempty"`
}

type GlobalsConfig struct {
	Library LibraryConfig `mapstructure:"library" yaml:"library"`
}

type RootConfig struct {
	ActiveConfig             string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals                  *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Audio                    *AudioConfig              `mapstructure:"audio,omitempty" yaml:"audio,omitempty"`
	Definitions              *DefinitionsConfig        `mapstructure:"definitions,omitempty" yaml:"definitions,omitempty"`
	Configs                  map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
	SupportedAudioExtensions []string                  `mapstructure:"supported_audio_extensions" yaml:"supported_audio_extensions"`
}

type Config struct {
	Library LibraryConfig `mapstructure:"library" yaml:"library"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Touch   TouchConfig   `mapstructure:"touch" yaml:"touch"`
	Zones   ZonesConfig   `mapstructure:"zones" yaml:"zones"`
	Faders  FadersConfig  `mapstructure:"faders" yaml:"faders"`
	Confine ConfineConfig `mapstructure:"confine" yaml:"confine"`
	UI      UIConfig      `mapstructure:"ui" yaml:"ui"`

	// Stems resolved from the profile's references
	Stems []StemSetting `mapstructure:"-" yaml:"stems,omitempty"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type ConfigProfile struct {
	Library LibraryConfig `mapstructure:"library" yaml:"library"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Touch   TouchConfig   `mapstructure:"touch" yaml:"touch"`
	Zones   ZonesConfig   `mapstructure:"zones" yaml:"zones"`
	Faders  FadersConfig  `mapstructure:"faders" yaml:"faders"`
	Confine ConfineConfig `mapstructure:"confine" yaml:"confine"`
	UI      UIConfig      `mapstructure:"ui" yaml:"ui"`

	Stems []StemReference `mapstructure:"stems" yaml:"stems"`
}

// InheritanceInfo records, per setting key, whether the value came from the
// selected profile or was inherited from default
type InheritanceInfo struct {
	Settings map[string]string
}

// Source returns "profile-specific", "inherited" or "" for key
func (i *InheritanceInfo) Source(key string) string {
	if i == nil {
		return ""
	}
	return i.Settings[key]
}

type LibraryConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type AudioConfig struct {
	Engine       string        `mapstructure:"engine" yaml:"engine"` // "oto", "null", "auto"
	SampleRate   int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	BufferMs     int           `mapstructure:"buffer_ms" yaml:"buffer_ms"`
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
}

type TouchConfig struct {
	Device         string        `mapstructure:"device" yaml:"device"` // empty = first multi-touch device
	Grab           *bool         `mapstructure:"grab" yaml:"grab,omitempty"`
	HoverThreshold float64       `mapstructure:"hover_threshold" yaml:"hover_threshold"`
	DoubleClick    time.Duration `mapstructure:"double_click" yaml:"double_click"`
	Buffer         int           `mapstructure:"buffer" yaml:"buffer"`
}

type ZonesConfig struct {
	Axis    string    `mapstructure:"axis" yaml:"axis"` // "x" or "y"
	Weights []float64 `mapstructure:"weights" yaml:"weights,omitempty"`
}

type FadersConfig struct {
	Min         float64  `mapstructure:"min" yaml:"min"`
	Max         float64  `mapstructure:"max" yaml:"max"`
	Default     *float64 `mapstructure:"default" yaml:"default,omitempty"`
	Sensitivity float64  `mapstructure:"sensitivity" yaml:"sensitivity"`
	ScrollStep  float64  `mapstructure:"scroll_step" yaml:"scroll_step"`
}

type ConfineConfig struct {
	Enabled         *bool         `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Bounds          string        `mapstructure:"bounds" yaml:"bounds"` // "x,y,width,height"; empty = focused window
	RestorePosition *bool         `mapstructure:"restore_position" yaml:"restore_position,omitempty"`
	LivenessTimeout time.Duration `mapstructure:"liveness_timeout" yaml:"liveness_timeout"`
	CheckInterval   time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
}

type UIConfig struct {
	Tick time.Duration `mapstructure:"tick" yaml:"tick"`
}

// StemSetting is the resolved default mix for stems whose file name matches Name.
// A nil Gain leaves the fader at faders.default.
type StemSetting struct {
	Name  string   `yaml:"name"`
	Label string   `yaml:"label,omitempty"`
	Gain  *float64 `yaml:"gain,omitempty"`
	Muted bool     `yaml:"muted"`
}

var defaultConfig = Config{
	Library: LibraryConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Audio", "StemTouch"),
	},
	Audio: AudioConfig{
		Engine:       "auto",
		SampleRate:   48000,
		BufferMs:     40,
		StartTimeout: 2 * time.Second,
	},
	Touch: TouchConfig{
		HoverThreshold: 0.05,
		DoubleClick:    400 * time.Millisecond,
		Buffer:         64,
	},
	Zones: ZonesConfig{
		Axis: "x",
	},
	Faders: FadersConfig{
		Min:         0,
		Max:         1,
		Default:     floatPtr(0.75),
		Sensitivity: 1,
		ScrollStep:  0.02,
	},
	Confine: ConfineConfig{
		LivenessTimeout: 2 * time.Second,
		CheckInterval:   250 * time.Millisecond,
	},
	UI: UIConfig{
		Tick: 50 * time.Millisecond,
	},
}

// Default returns the built-in configuration
func Default() *Config {
	c := defaultConfig
	c.Faders.Default = floatPtr(*defaultConfig.Faders.Default)
	return &c
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	// Validate configuration format first
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	selectedConfig, err := convertProfileToConfig(selectedProfile, rootConfig.Definitions)
	if err != nil {
		return nil, fmt.Errorf("error resolving configuration profile '%s': %w", configName, err)
	}

	// Global audio settings are the base for any profile
	if rootConfig.Audio != nil {
		selectedConfig.Audio = mergeAudio(*rootConfig.Audio, selectedConfig.Audio, nil)
	}

	if configName != "default" {
		if defaultProfile, exists := rootConfig.Configs["default"]; exists {
			base, err := convertProfileToConfig(defaultProfile, rootConfig.Definitions)
			if err != nil {
				return nil, fmt.Errorf("error resolving default configuration: %w", err)
			}
			if rootConfig.Audio != nil {
				base.Audio = mergeAudio(*rootConfig.Audio, base.Audio, nil)
			}
			selectedConfig = mergeConfigs(base, selectedConfig)
		}
	}

	// Global library directory takes priority over any profile
	if rootConfig.Globals != nil && rootConfig.Globals.Library.Directory != "" {
		selectedConfig.Library.Directory = rootConfig.Globals.Library.Directory
	}

	applyDefaults(selectedConfig)
	selectedConfig.Library.Directory = expandPath(selectedConfig.Library.Directory)

	if err := validateConfig(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, ok := rootConfig.Configs[newActiveConfig]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// ProfileNames lists the profiles of a config file
func ProfileNames(configFile string) (names []string, active string, err error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, "", fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	return names, rootConfig.ActiveConfig, nil
}

// convertProfileToConfig converts a ConfigProfile to Config by resolving stem references
func convertProfileToConfig(profile *ConfigProfile, definitions *DefinitionsConfig) (*Config, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}

	config := &Config{
		Library: profile.Library,
		Audio:   profile.Audio,
		Touch:   profile.Touch,
		Zones:   profile.Zones,
		Faders:  profile.Faders,
		Confine: profile.Confine,
		UI:      profile.UI,
	}

	for i, ref := range profile.Stems {
		if ref.Ref == "" {
			return nil, fmt.Errorf("stems[%d]: 'ref' is required", i)
		}

		definition := findDefinition(definitions, ref.Ref)
		if definition == nil {
			return nil, fmt.Errorf("stems[%d]: reference '%s' not found in definitions", i, ref.Ref)
		}

		setting := StemSetting{
			Name:  definition.Name,
			Label: definition.Label,
			Gain:  definition.Gain,
			Muted: definition.Muted,
		}
		if ref.Gain != nil {
			setting.Gain = ref.Gain
		}
		if ref.Muted != nil {
			setting.Muted = *ref.Muted
		}

		config.Stems = append(config.Stems, setting)
	}

	return config, nil
}

func findDefinition(definitions *DefinitionsConfig, id string) *StemDefinition {
	if definitions == nil {
		return nil
	}
	for i := range definitions.Stems {
		if definitions.Stems[i].ID == id {
			return &definitions.Stems[i]
		}
	}
	return nil
}

// mergeConfigs implements the "Selection & Fallback" inheritance model:
// - Stems: the profile's stem list replaces the default list when it has one
// - Every other setting uses the profile value or falls back to default
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{}
	inh := &InheritanceInfo{Settings: make(map[string]string)}
	result.Inheritance = inh

	if base != nil {
		*result = *base
		result.Inheritance = inh
	}
	if profile == nil {
		return result
	}

	pick := func(key string, set bool) bool {
		if set {
			inh.Settings[key] = "profile-specific"
		} else if base != nil {
			inh.Settings[key] = "inherited"
		}
		return set
	}

	if pick("library.directory", profile.Library.Directory != "") {
		result.Library.Directory = profile.Library.Directory
	}

	result.Audio = mergeAudio(result.Audio, profile.Audio, pick)

	if pick("touch.device", profile.Touch.Device != "") {
		result.Touch.Device = profile.Touch.Device
	}
	if pick("touch.grab", profile.Touch.Grab != nil) {
		result.Touch.Grab = profile.Touch.Grab
	}
	if pick("touch.hover_threshold", profile.Touch.HoverThreshold != 0) {
		result.Touch.HoverThreshold = profile.Touch.HoverThreshold
	}
	if pick("touch.double_click", profile.Touch.DoubleClick != 0) {
		result.Touch.DoubleClick = profile.Touch.DoubleClick
	}
	if pick("touch.buffer", profile.Touch.Buffer != 0) {
		result.Touch.Buffer = profile.Touch.Buffer
	}

	if pick("zones.axis", profile.Zones.Axis != "") {
		result.Zones.Axis = profile.Zones.Axis
	}
	if pick("zones.weights", len(profile.Zones.Weights) > 0) {
		result.Zones.Weights = profile.Zones.Weights
	}

	// min and max move together so a profile never mixes ranges
	if pick("faders.range", profile.Faders.Min != 0 || profile.Faders.Max != 0) {
		result.Faders.Min = profile.Faders.Min
		result.Faders.Max = profile.Faders.Max
	}
	if pick("faders.default", profile.Faders.Default != nil) {
		result.Faders.Default = profile.Faders.Default
	}
	if pick("faders.sensitivity", profile.Faders.Sensitivity != 0) {
		result.Faders.Sensitivity = profile.Faders.Sensitivity
	}
	if pick("faders.scroll_step", profile.Faders.ScrollStep != 0) {
		result.Faders.ScrollStep = profile.Faders.ScrollStep
	}

	if pick("confine.enabled", profile.Confine.Enabled != nil) {
		result.Confine.Enabled = profile.Confine.Enabled
	}
	if pick("confine.bounds", profile.Confine.Bounds != "") {
		result.Confine.Bounds = profile.Confine.Bounds
	}
	if pick("confine.restore_position", profile.Confine.RestorePosition != nil) {
		result.Confine.RestorePosition = profile.Confine.RestorePosition
	}
	if pick("confine.liveness_timeout", profile.Confine.LivenessTimeout != 0) {
		result.Confine.LivenessTimeout = profile.Confine.LivenessTimeout
	}
	if pick("confine.check_interval", profile.Confine.CheckInterval != 0) {
		result.Confine.CheckInterval = profile.Confine.CheckInterval
	}

	if pick("ui.tick", profile.UI.Tick != 0) {
		result.UI.Tick = profile.UI.Tick
	}

	if pick("stems", len(profile.Stems) > 0) {
		result.Stems = profile.Stems
	}

	return result
}

func mergeAudio(base, profile AudioConfig, pick func(string, bool) bool) AudioConfig {
	if pick == nil {
		pick = func(_ string, set bool) bool { return set }
	}
	if pick("audio.engine", profile.Engine != "") {
		base.Engine = profile.Engine
	}
	if pick("audio.sample_rate", profile.SampleRate != 0) {
		base.SampleRate = profile.SampleRate
	}
	if pick("audio.buffer_ms", profile.BufferMs != 0) {
		base.BufferMs = profile.BufferMs
	}
	if pick("audio.start_timeout", profile.StartTimeout != 0) {
		base.StartTimeout = profile.StartTimeout
	}
	return base
}

// applyDefaults fills every unset value from the built-in configuration
func applyDefaults(c *Config) {
	d := Default()

	if c.Library.Directory == "" {
		c.Library.Directory = d.Library.Directory
	}
	c.Audio = mergeAudio(d.Audio, c.Audio, nil)

	if c.Touch.HoverThreshold == 0 {
		c.Touch.HoverThreshold = d.Touch.HoverThreshold
	}
	if c.Touch.DoubleClick == 0 {
		c.Touch.DoubleClick = d.Touch.DoubleClick
	}
	if c.Touch.Buffer == 0 {
		c.Touch.Buffer = d.Touch.Buffer
	}

	if c.Zones.Axis == "" {
		c.Zones.Axis = d.Zones.Axis
	}

	if c.Faders.Min == 0 && c.Faders.Max == 0 {
		c.Faders.Min, c.Faders.Max = d.Faders.Min, d.Faders.Max
	}
	if c.Faders.Default == nil {
		c.Faders.Default = d.Faders.Default
	}
	if c.Faders.Sensitivity == 0 {
		c.Faders.Sensitivity = d.Faders.Sensitivity
	}
	if c.Faders.ScrollStep == 0 {
		c.Faders.ScrollStep = d.Faders.ScrollStep
	}

	if c.Confine.LivenessTimeout == 0 {
		c.Confine.LivenessTimeout = d.Confine.LivenessTimeout
	}
	if c.Confine.CheckInterval == 0 {
		c.Confine.CheckInterval = d.Confine.CheckInterval
	}

	if c.UI.Tick == 0 {
		c.UI.Tick = d.UI.Tick
	}
}

// validateConfig checks a resolved configuration
func validateConfig(c *Config) error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got: %d", c.Audio.SampleRate)
	}
	if c.Audio.BufferMs < 0 {
		return fmt.Errorf("audio.buffer_ms must be >= 0, got: %d", c.Audio.BufferMs)
	}
	switch strings.ToLower(c.Audio.Engine) {
	case "auto", "oto", "null", "none":
	default:
		return fmt.Errorf("audio.engine must be 'auto', 'oto' or 'null', got: %s", c.Audio.Engine)
	}

	if c.Touch.HoverThreshold < 0 || c.Touch.HoverThreshold >= 1 {
		return fmt.Errorf("touch.hover_threshold must be in [0,1), got: %.2f", c.Touch.HoverThreshold)
	}
	if c.Touch.Buffer < 0 {
		return fmt.Errorf("touch.buffer must be >= 0, got: %d", c.Touch.Buffer)
	}

	if c.Zones.Axis != "x" && c.Zones.Axis != "y" {
		return fmt.Errorf("zones.axis must be 'x' or 'y', got: %s", c.Zones.Axis)
	}
	for i, w := range c.Zones.Weights {
		if w <= 0 {
			return fmt.Errorf("zones.weights[%d] must be > 0, got: %.2f", i, w)
		}
	}
	if len(c.Zones.Weights) > 8 {
		return fmt.Errorf("zones.weights has %d entries, at most 8 zones are supported", len(c.Zones.Weights))
	}

	if c.Faders.Min >= c.Faders.Max {
		return fmt.Errorf("faders.min (%.2f) must be below faders.max (%.2f)", c.Faders.Min, c.Faders.Max)
	}
	if d := *c.Faders.Default; d < c.Faders.Min || d > c.Faders.Max {
		return fmt.Errorf("faders.default %.2f is outside [%.2f, %.2f]", d, c.Faders.Min, c.Faders.Max)
	}
	if c.Faders.Sensitivity <= 0 {
		return fmt.Errorf("faders.sensitivity must be > 0, got: %.2f", c.Faders.Sensitivity)
	}
	for _, s := range c.Stems {
		if s.Gain != nil && (*s.Gain < c.Faders.Min || *s.Gain > c.Faders.Max) {
			return fmt.Errorf("stem '%s' gain %.2f is outside [%.2f, %.2f]", s.Name, *s.Gain, c.Faders.Min, c.Faders.Max)
		}
	}

	if c.Confine.LivenessTimeout < 100*time.Millisecond {
		return fmt.Errorf("confine.liveness_timeout must be at least 100ms, got: %s", c.Confine.LivenessTimeout)
	}
	if c.Confine.CheckInterval <= 0 || c.Confine.CheckInterval > c.Confine.LivenessTimeout {
		return fmt.Errorf("confine.check_interval must be in (0, liveness_timeout], got: %s", c.Confine.CheckInterval)
	}
	if c.Confine.Bounds != "" && len(strings.Split(c.Confine.Bounds, ",")) != 4 {
		return fmt.Errorf("confine.bounds must be 'x,y,width,height', got: %s", c.Confine.Bounds)
	}

	if c.UI.Tick <= 0 {
		return fmt.Errorf("ui.tick must be > 0, got: %s", c.UI.Tick)
	}

	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func floatPtr(v float64) *float64 {
	return &v
}

// GrabDevice reports whether the touch device is grabbed exclusively
func (c *Config) GrabDevice() bool {
	return c.Touch.Grab != nil && *c.Touch.Grab
}

// ConfineEnabled reports whether the cursor lock starts engaged in fader mode
func (c *Config) ConfineEnabled() bool {
	return c.Confine.Enabled == nil || *c.Confine.Enabled
}

// RestorePointer reports whether disengaging warps the pointer back
func (c *Config) RestorePointer() bool {
	return c.Confine.RestorePosition == nil || *c.Confine.RestorePosition
}

// FaderDefault returns the value faders reset to
func (c *Config) FaderDefault() float64 {
	if c.Faders.Default == nil {
		return *defaultConfig.Faders.Default
	}
	return *c.Faders.Default
}

// BufferSize returns the audio device buffer length
func (c *Config) BufferSize() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

// StemSetting returns the configured default mix for a stem file name
func (c *Config) StemSetting(name string) (StemSetting, bool) {
	for _, s := range c.Stems {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return StemSetting{}, false
}

// GetSupportedAudioExtensions returns the supported audio extensions from config or defaults
func GetSupportedAudioExtensions(configFile string) []string {
	defaultExtensions := []string{"wav", "mp3"}

	if configFile == "" {
		return defaultExtensions
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return defaultExtensions
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return defaultExtensions
	}

	if len(rootConfig.SupportedAudioExtensions) == 0 {
		return defaultExtensions
	}

	return rootConfig.SupportedAudioExtensions
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	viper.SetConfigFile(configFile)

	// Set environment variable prefix
	viper.SetEnvPrefix("STEMTOUCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := viper.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required")
	}

	if err := validateDefinitions(rootConfig.Definitions); err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	for configName, configProfile := range rootConfig.Configs {
		if configProfile == nil {
			continue
		}
		if err := validateStemReferences(configProfile.Stems, rootConfig.Definitions); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}

	for i, ext := range rootConfig.SupportedAudioExtensions {
		switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
		case "wav", "mp3":
		default:
			return nil, fmt.Errorf("supported_audio_extensions[%d]: '%s' cannot be decoded", i, ext)
		}
	}

	return &rootConfig, nil
}

// validateDefinitions validates the optional definitions section
func validateDefinitions(definitions *DefinitionsConfig) error {
	if definitions == nil {
		return nil
	}

	seenIDs := make(map[string]bool)

	for i, def := range definitions.Stems {
		prefix := fmt.Sprintf("definitions.stems[%d]", i)

		if def.ID == "" {
			return fmt.Errorf("%s: 'id' is required", prefix)
		}
		if seenIDs[def.ID] {
			return fmt.Errorf("%s: duplicate ID '%s'", prefix, def.ID)
		}
		seenIDs[def.ID] = true

		if def.Name == "" {
			return fmt.Errorf("%s: 'name' is required", prefix)
		}
		if def.Gain != nil && *def.Gain < 0 {
			return fmt.Errorf("%s: 'gain' must be >= 0, got: %.2f", prefix, *def.Gain)
		}
	}

	return nil
}

// validateStemReferences validates stem references in a config profile
func validateStemReferences(stems []StemReference, definitions *DefinitionsConfig) error {
	for i, ref := range stems {
		prefix := fmt.Sprintf("stems[%d]", i)

		if ref.Ref == "" {
			return fmt.Errorf("%s: 'ref' is required", prefix)
		}
		if findDefinition(definitions, ref.Ref) == nil {
			return fmt.Errorf("%s: references undefined stem definition '%s'", prefix, ref.Ref)
		}
		if ref.Gain != nil && *ref.Gain < 0 {
			return fmt.Errorf("%s: gain override must be >= 0, got %.2f", prefix, *ref.Gain)
		}
	}

	return nil
}
