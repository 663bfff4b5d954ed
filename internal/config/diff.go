package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VocabularyChanged is set when the wake phrases, filler prefixes or
	// fuzzy threshold changed. Live pages pick up the new grammar.
	VocabularyChanged bool

	// SessionChanged is set when any other voice, speech or playback setting
	// changed. Only pages opened after the reload use the new values.
	SessionChanged bool

	// OriginsChanged is set when the websocket origin allow-list changed.
	OriginsChanged bool

	// RestartRequired names the changed fields that take effect only after a
	// restart.
	RestartRequired []string
}

// Changed reports whether d records any change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.VocabularyChanged || d.SessionChanged ||
		d.OriginsChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.OriginsChanged = true
	}

	if !slices.Equal(old.Voice.WakePhrases, new.Voice.WakePhrases) ||
		!slices.Equal(old.Voice.FillerPrefixes, new.Voice.FillerPrefixes) ||
		old.Voice.WakeFuzzyThreshold != new.Voice.WakeFuzzyThreshold {
		d.VocabularyChanged = true
	}

	oldSession, newSession := old.Coordinator(), new.Coordinator()
	if !reflect.DeepEqual(oldSession, newSession) {
		d.SessionChanged = true
	}

	restart := []struct {
		field   string
		changed bool
	}{
		{"server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr},
		{"server.log_format", old.Server.LogFormat != new.Server.LogFormat},
		{"server.max_pages", old.Server.MaxPages != new.Server.MaxPages},
		{"telemetry.service_name", old.Telemetry.ServiceName != new.Telemetry.ServiceName},
		{"telemetry.metrics_path", old.Telemetry.MetricsPath != new.Telemetry.MetricsPath},
	}
	for _, r := range restart {
		if r.changed {
			d.RestartRequired = append(d.RestartRequired, r.field)
		}
	}
	return d
}
