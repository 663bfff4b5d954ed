// Package config provides the configuration schema, loader and file watcher
// for the voxportal server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Voice     VoiceConfig     `yaml:"voice"`
	Speech    SpeechConfig    `yaml:"speech"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel  LogLevel  `yaml:"log_level"`
	LogFormat LogFormat `yaml:"log_format"`

	// AllowedOrigins lists host patterns allowed to open the page websocket,
	// in the syntax of path.Match (e.g., "portal.example.go.id",
	// "*.example.go.id"). Empty allows same-origin pages only.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxPages limits concurrently connected pages. Zero means no limit.
	MaxPages int `yaml:"max_pages"`
}

// VoiceConfig holds the recognition vocabulary and the voice cycle timings.
// The vocabulary fields can be changed without a restart.
type VoiceConfig struct {
	// Language is the recognition locale, e.g. "id-ID".
	Language string `yaml:"language"`

	WakePhrases        []string `yaml:"wake_phrases"`
	FillerPrefixes     []string `yaml:"filler_prefixes"`
	WakeFuzzyThreshold float64  `yaml:"wake_fuzzy_threshold"`

	RestartDelay   time.Duration `yaml:"restart_delay"`
	ErrorBackoff   time.Duration `yaml:"error_backoff"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	ConsentTimeout time.Duration `yaml:"consent_timeout"`

	// GuidanceEnabled and AutoPlayAfterGuidance default to true when unset.
	GuidanceEnabled       *bool `yaml:"guidance_enabled"`
	AutoPlayAfterGuidance *bool `yaml:"auto_play_after_guidance"`

	// BreakerMaxFailures and BreakerResetTimeout tune the circuit breaker
	// guarding recognition starts.
	BreakerMaxFailures  int           `yaml:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout"`
}

// SpeechConfig holds spoken feedback settings.
type SpeechConfig struct {
	// Rate and Volume are passed to the browser synthesiser.
	Rate   float64 `yaml:"rate"`
	Volume float64 `yaml:"volume"`

	// An utterance that has not ended after WatchdogBase plus WatchdogPerChar
	// per character is treated as completed.
	WatchdogBase    time.Duration `yaml:"watchdog_base"`
	WatchdogPerChar time.Duration `yaml:"watchdog_per_char"`
}

// PlaybackConfig holds the audio adjustment limits.
type PlaybackConfig struct {
	RateMin    float64       `yaml:"rate_min"`
	RateMax    float64       `yaml:"rate_max"`
	RateStep   float64       `yaml:"rate_step"`
	VolumeStep float64       `yaml:"volume_step"`
	SeekStep   time.Duration `yaml:"seek_step"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	// ServiceName is the OTel resource service name.
	ServiceName string `yaml:"service_name"`

	// MetricsPath is where the Prometheus scrape handler is mounted.
	MetricsPath string `yaml:"metrics_path"`
}
