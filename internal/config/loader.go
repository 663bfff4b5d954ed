package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultLanguage        = "id-ID"
	DefaultServiceName     = "voxportal"
	DefaultMetricsPath     = "/metrics"
	DefaultShutdownTimeout = 15 * time.Second
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued settings that have no component default.
// Voice, speech and playback timings left at zero are defaulted by the
// components that use them.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = LogFormatText
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Voice.Language == "" {
		cfg.Voice.Language = DefaultLanguage
	}
	if cfg.Voice.GuidanceEnabled == nil {
		cfg.Voice.GuidanceEnabled = boolPtr(true)
	}
	if cfg.Voice.AutoPlayAfterGuidance == nil {
		cfg.Voice.AutoPlayAfterGuidance = boolPtr(true)
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = DefaultMetricsPath
	}
}

func boolPtr(b bool) *bool { return &b }

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	for i, p := range cfg.Server.AllowedOrigins {
		if _, err := path.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("server.allowed_origins[%d] %q is not a valid pattern: %w", i, p, err))
		}
	}
	if cfg.Server.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("server.max_pages %d must not be negative", cfg.Server.MaxPages))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Voice
	v := cfg.Voice
	seen := make(map[string]int, len(v.WakePhrases))
	for i, p := range v.WakePhrases {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			errs = append(errs, fmt.Errorf("voice.wake_phrases[%d] is empty", i))
			continue
		}
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("voice.wake_phrases[%d] %q is a duplicate of voice.wake_phrases[%d]", i, p, prev))
		}
		seen[key] = i
	}
	if v.WakeFuzzyThreshold < 0 || v.WakeFuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("voice.wake_fuzzy_threshold %.2f is out of range [0, 1]", v.WakeFuzzyThreshold))
	} else if v.WakeFuzzyThreshold != 0 && v.WakeFuzzyThreshold < 0.7 {
		slog.Warn("voice.wake_fuzzy_threshold is low; ordinary speech may trigger the wake phrase",
			"threshold", v.WakeFuzzyThreshold)
	}
	errs = appendNegative(errs, "voice.restart_delay", v.RestartDelay)
	errs = appendNegative(errs, "voice.error_backoff", v.ErrorBackoff)
	errs = appendNegative(errs, "voice.command_timeout", v.CommandTimeout)
	errs = appendNegative(errs, "voice.consent_timeout", v.ConsentTimeout)
	errs = appendNegative(errs, "voice.breaker_reset_timeout", v.BreakerResetTimeout)
	if v.BreakerMaxFailures < 0 {
		errs = append(errs, fmt.Errorf("voice.breaker_max_failures %d must not be negative", v.BreakerMaxFailures))
	}

	// Speech
	s := cfg.Speech
	if s.Rate != 0 && (s.Rate < 0.1 || s.Rate > 10) {
		errs = append(errs, fmt.Errorf("speech.rate %.2f is out of range [0.1, 10]", s.Rate))
	}
	if s.Volume < 0 || s.Volume > 1 {
		errs = append(errs, fmt.Errorf("speech.volume %.2f is out of range [0, 1]", s.Volume))
	}
	errs = appendNegative(errs, "speech.watchdog_base", s.WatchdogBase)
	errs = appendNegative(errs, "speech.watchdog_per_char", s.WatchdogPerChar)

	// Playback
	p := cfg.Playback
	if p.RateMin < 0 {
		errs = append(errs, fmt.Errorf("playback.rate_min %.2f must not be negative", p.RateMin))
	}
	if p.RateMax < 0 {
		errs = append(errs, fmt.Errorf("playback.rate_max %.2f must not be negative", p.RateMax))
	}
	if p.RateMin > 0 && p.RateMax > 0 && p.RateMin > p.RateMax {
		errs = append(errs, fmt.Errorf("playback.rate_min %.2f is greater than playback.rate_max %.2f", p.RateMin, p.RateMax))
	}
	if p.RateStep < 0 {
		errs = append(errs, fmt.Errorf("playback.rate_step %.2f must not be negative", p.RateStep))
	}
	if p.VolumeStep < 0 || p.VolumeStep > 1 {
		errs = append(errs, fmt.Errorf("playback.volume_step %.2f is out of range [0, 1]", p.VolumeStep))
	}
	errs = appendNegative(errs, "playback.seek_step", p.SeekStep)

	// Telemetry
	if mp := cfg.Telemetry.MetricsPath; mp != "" && !strings.HasPrefix(mp, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", mp))
	}

	return errors.Join(errs...)
}

func appendNegative(errs []error, field string, d time.Duration) []error {
	if d < 0 {
		return append(errs, fmt.Errorf("%s %s must not be negative", field, d))
	}
	return errs
}
