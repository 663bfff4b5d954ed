// Package grammar turns free-form Indonesian transcripts into structured
// voice command intents.
//
// Matching is a pure function of the normalised text: a [Grammar] owns one
// ordered rule table and evaluates it top to bottom, returning the first
// match. The table order encodes precedence:
//
//  1. wake phrases (wake mode only, see [Grammar.MatchWake])
//  2. numbered document commands ("putar dokumen nomor 3", "dokumen kedua")
//  3. time jumps ("maju 10 detik", "pindah ke 2:30", "pindah ke menit 5")
//  4. bare transport verbs (play, pause, speed, volume, download)
//  5. filters ("filter tahun 2023", "reset filter", "filter inflasi")
//  6. pagination ("halaman selanjutnya")
//  7. information, help and exit
//  8. [KindUnrecognized]
//
// A separate two-answer sub-grammar handles the guidance consent prompt (see
// [Grammar.MatchConsent]).
//
// A Grammar is immutable after construction and safe for concurrent use.
package grammar

import (
	"strings"
)

const defaultWakeFuzzyThreshold = 0.88

// DefaultWakePhrases are the trigger phrases used when none are configured.
var DefaultWakePhrases = []string{
	"hai audio statistik",
	"halo audio statistik",
	"hai audio",
}

// Config holds the vocabulary a [Grammar] is built from. Zero values select
// the defaults.
type Config struct {
	// WakePhrases switch the engine from wake listening to command listening.
	WakePhrases []string

	// FillerPrefixes are stripped from the start of every transcript.
	FillerPrefixes []string

	// WakeFuzzyThreshold is the minimum Jaro-Winkler similarity for a fuzzy
	// wake phrase match. Default: 0.88.
	WakeFuzzyThreshold float64
}

// Grammar is the consolidated command grammar.
type Grammar struct {
	norm      normalizer
	rules     []Rule
	wake      []wakePhrase
	threshold float64
}

// New builds a Grammar from cfg.
func New(cfg Config) *Grammar {
	phrases := cfg.WakePhrases
	if len(phrases) == 0 {
		phrases = DefaultWakePhrases
	}
	fillers := cfg.FillerPrefixes
	if fillers == nil {
		fillers = DefaultFillerPrefixes
	}
	threshold := cfg.WakeFuzzyThreshold
	if threshold <= 0 {
		threshold = defaultWakeFuzzyThreshold
	}

	g := &Grammar{
		norm:      newNormalizer(fillers),
		rules:     defaultRules(),
		threshold: threshold,
	}
	for _, p := range phrases {
		// Wake phrases are normalised without filler stripping so a phrase
		// that starts with a filler word still matches itself.
		n := normalizer{}.normalize(p)
		if n == "" {
			continue
		}
		g.wake = append(g.wake, newWakePhrase(n))
	}
	return g
}

// Default returns a Grammar with the built-in vocabulary.
func Default() *Grammar {
	return New(Config{})
}

// Normalize lowercases text, removes punctuation (keeping decimal separators
// and clock colons between digits), collapses whitespace and strips filler
// words. It is idempotent.
func (g *Grammar) Normalize(text string) string {
	return g.norm.normalize(text)
}

// Rules returns a copy of the rule table in evaluation order.
func (g *Grammar) Rules() []Rule {
	out := make([]Rule, len(g.rules))
	copy(out, g.rules)
	return out
}

// Match normalises text and returns the intent of the first matching rule.
// Text that matches nothing yields [KindUnrecognized]. Wake phrases are not
// considered here.
func (g *Grammar) Match(text string) Intent {
	n := g.Normalize(text)
	if n == "" {
		return Intent{Kind: KindUnrecognized}
	}
	for _, r := range g.rules {
		m := r.Regex.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		in, ok := r.Build(m)
		if !ok {
			continue
		}
		in.Rule = r.Name
		in.ArgumentText = n
		return in
	}
	return Intent{Kind: KindUnrecognized, ArgumentText: n}
}

var (
	// Negative answers are tested first so "tidak mau" is a refusal even
	// though "mau" alone is consent.
	consentNo = []string{
		"tidak usah", "tidak perlu", "tidak mau", "tidak", "nggak", "enggak", "engga",
		"gak", "ga", "tak", "jangan", "lewati", "lewat", "skip", "no", "nanti saja",
		"langsung putar", "langsung saja",
	}
	consentYes = []string{
		"ya", "iya", "yes", "yup", "boleh", "mau", "oke", "ok", "baik", "silakan",
		"tentu", "bacakan", "dengarkan", "setuju",
	}
)

// MatchConsent classifies an answer to the guidance prompt.
func (g *Grammar) MatchConsent(text string) Consent {
	n := " " + g.Normalize(text) + " "
	if strings.TrimSpace(n) == "" {
		return ConsentNone
	}
	for _, w := range consentNo {
		if strings.Contains(n, " "+w+" ") {
			return ConsentNo
		}
	}
	for _, w := range consentYes {
		if strings.Contains(n, " "+w+" ") {
			return ConsentYes
		}
	}
	return ConsentNone
}
