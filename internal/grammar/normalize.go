package grammar

import (
	"slices"
	"strings"
	"unicode"
)

// DefaultFillerPrefixes are polite lead-ins stripped from the start of a
// transcript before rule matching.
var DefaultFillerPrefixes = []string{
	"tolong",
	"saya mau",
	"saya ingin",
	"coba",
	"mohon",
	"bisa",
	"bisakah",
	"silakan",
}

// fillerSuffixes are stripped from the end of a transcript. "ya" on its own is
// deliberately absent; it is a consent answer.
var fillerSuffixes = []string{
	"ya dong",
	"dong",
	"deh",
	"please",
}

// normalizer lowercases, cleans punctuation and strips filler words. The zero
// value strips suffixes only.
type normalizer struct {
	// prefixes are normalised and sorted longest first so "saya ingin" wins
	// over a hypothetical "saya".
	prefixes []string
}

func newNormalizer(prefixes []string) normalizer {
	var n normalizer
	for _, p := range prefixes {
		p = collapseSpaces(cleanPunctuation(strings.ToLower(p)))
		if p != "" && !slices.Contains(n.prefixes, p) {
			n.prefixes = append(n.prefixes, p)
		}
	}
	slices.SortStableFunc(n.prefixes, func(a, b string) int { return len(b) - len(a) })
	return n
}

// normalize applies one cleaning pass repeatedly until the text stops
// changing. After the first pass only filler stripping can alter the text and
// it always shortens it, so the loop terminates.
func (n normalizer) normalize(s string) string {
	for {
		next := n.pass(s)
		if next == s {
			return next
		}
		s = next
	}
}

func (n normalizer) pass(s string) string {
	s = collapseSpaces(cleanPunctuation(strings.ToLower(s)))
	return n.stripFillers(s)
}

// stripFillers removes leading filler prefixes and trailing filler suffixes as
// long as something remains afterwards.
func (n normalizer) stripFillers(s string) string {
	for changed := true; changed; {
		changed = false
		for _, p := range n.prefixes {
			if rest, ok := strings.CutPrefix(s, p+" "); ok && rest != "" {
				s = rest
				changed = true
				break
			}
		}
		for _, suf := range fillerSuffixes {
			if rest, ok := strings.CutSuffix(s, " "+suf); ok && rest != "" {
				s = rest
				changed = true
				break
			}
		}
	}
	return s
}

// cleanPunctuation replaces every rune that is not a letter, digit or space
// with a space. Decimal separators between digits and the colon of a clock
// time ("2:30") survive.
func cleanPunctuation(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case (r == '.' || r == ',' || r == ':') && betweenDigits(runes, i):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func betweenDigits(runes []rune, i int) bool {
	return i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1])
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
