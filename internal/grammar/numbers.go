package grammar

import (
	"strconv"
	"strings"
)

var numberWords = map[string]int{
	"nol":      0,
	"satu":     1,
	"dua":      2,
	"tiga":     3,
	"empat":    4,
	"lima":     5,
	"enam":     6,
	"tujuh":    7,
	"delapan":  8,
	"sembilan": 9,
	"sepuluh":  10,
}

var ordinalWords = map[string]int{
	"pertama":    1,
	"kesatu":     1,
	"kedua":      2,
	"ketiga":     3,
	"keempat":    4,
	"kelima":     5,
	"keenam":     6,
	"ketujuh":    7,
	"kedelapan":  8,
	"kesembilan": 9,
	"kesepuluh":  10,
}

// Regex fragments shared by the rule table. Each one is a single group-free
// alternation so it can be wrapped in a capturing group by the caller.
const (
	numberPattern  = `\d{1,4}|nol|satu|dua|tiga|empat|lima|enam|tujuh|delapan|sembilan|sepuluh`
	ordinalPattern = `pertama|kesatu|kedua|ketiga|keempat|kelima|keenam|ketujuh|kedelapan|kesembilan|kesepuluh`
	decimalPattern = `\d+(?:[.,]\d+)?|satu|dua|tiga`
)

// parseNumber converts digits, a number word or an ordinal word to an int.
func parseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	if n, ok := ordinalWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDecimal converts "1,5", "0.75" or a number word to a float. The comma
// is the Indonesian decimal separator.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if n, ok := numberWords[s]; ok {
		return float64(n), true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
