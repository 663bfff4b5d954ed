package grammar

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// wakePhrase is a normalised wake phrase with its precomputed tokens and
// Double Metaphone codes.
type wakePhrase struct {
	text   string
	tokens []string
	codes  map[string]struct{}
}

func newWakePhrase(text string) wakePhrase {
	tokens := strings.Fields(text)
	return wakePhrase{text: text, tokens: tokens, codes: codesForTokens(tokens)}
}

// MatchWake reports whether text contains a wake phrase.
//
// Every window of the transcript with the same word count as a wake phrase is
// compared with it. An identical window scores 1; otherwise the window must
// reach the configured Jaro-Winkler threshold and share a Double Metaphone
// code with the phrase.
// Speech recognisers routinely drift on proper nouns ("audio statistic"), so
// the fuzzy pass matters in practice.
//
// Words after the matched phrase are returned as [WakeMatch.Remainder] so a
// command spoken in the same breath can be executed directly.
func (g *Grammar) MatchWake(text string) WakeMatch {
	tokens := strings.Fields(g.norm.normalize(text))
	if len(tokens) == 0 {
		return WakeMatch{}
	}

	// Longer phrases win over shorter ones so "hai audio statistik" is
	// preferred to "hai audio" even when only the shorter one is exact.
	var best WakeMatch
	bestWords := 0
	for _, p := range g.wake {
		k := len(p.tokens)
		if k < bestWords {
			continue
		}
		for start := 0; start+k <= len(tokens); start++ {
			window := tokens[start : start+k]
			joined := strings.Join(window, " ")
			score := 1.0
			if joined != p.text {
				score = matchr.JaroWinkler(joined, p.text, false)
				if score < g.threshold || !codesOverlap(codesForTokens(window), p.codes) {
					continue
				}
			}
			if k == bestWords && score <= best.Score {
				continue
			}
			best = WakeMatch{
				Matched:   true,
				Phrase:    p.text,
				Score:     score,
				Remainder: strings.Join(tokens[start+k:], " "),
			}
			bestWords = k
		}
	}
	return best
}

// codesForTokens returns the union of all Double Metaphone codes for tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
