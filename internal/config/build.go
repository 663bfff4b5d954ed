package config

import (
	"github.com/MrWong99/voxportal/internal/coordinator"
	"github.com/MrWong99/voxportal/internal/dispatch"
	"github.com/MrWong99/voxportal/internal/grammar"
	"github.com/MrWong99/voxportal/internal/resilience"
	"github.com/MrWong99/voxportal/internal/speech"
)

// GrammarConfig returns the vocabulary settings for [grammar.New].
func (v VoiceConfig) GrammarConfig() grammar.Config {
	return grammar.Config{
		WakePhrases:        v.WakePhrases,
		FillerPrefixes:     v.FillerPrefixes,
		WakeFuzzyThreshold: v.WakeFuzzyThreshold,
	}
}

// Grammar builds the command grammar described by the voice section.
func (c *Config) Grammar() *grammar.Grammar {
	return grammar.New(c.Voice.GrammarConfig())
}

// Coordinator returns the per-page voice cycle settings.
func (c *Config) Coordinator() coordinator.Config {
	out := coordinator.DefaultConfig()
	v := c.Voice
	out.Language = v.Language
	out.RestartDelay = v.RestartDelay
	out.ErrorBackoff = v.ErrorBackoff
	if v.CommandTimeout > 0 {
		out.CommandTimeout = v.CommandTimeout
	}
	if v.ConsentTimeout > 0 {
		out.ConsentTimeout = v.ConsentTimeout
	}
	if v.GuidanceEnabled != nil {
		out.GuidanceEnabled = *v.GuidanceEnabled
	}
	if v.AutoPlayAfterGuidance != nil {
		out.AutoPlay = *v.AutoPlayAfterGuidance
	}
	out.Speech = speech.Config{
		Locale:          v.Language,
		Rate:            c.Speech.Rate,
		Volume:          c.Speech.Volume,
		WatchdogBase:    c.Speech.WatchdogBase,
		WatchdogPerChar: c.Speech.WatchdogPerChar,
	}
	out.Playback = dispatch.Config{
		RateMin:    c.Playback.RateMin,
		RateMax:    c.Playback.RateMax,
		RateStep:   c.Playback.RateStep,
		VolumeStep: c.Playback.VolumeStep,
		SeekStep:   c.Playback.SeekStep,
	}
	out.Breaker = resilience.CircuitBreakerConfig{
		MaxFailures:  v.BreakerMaxFailures,
		ResetTimeout: v.BreakerResetTimeout,
	}
	return out
}
