package grammar

import (
	"regexp"
	"strings"
)

// Rule pairs a compiled pattern with the extractor that turns its submatches
// into an [Intent]. Rules are evaluated in table order; the first rule whose
// pattern matches and whose extractor accepts the groups wins.
type Rule struct {
	// Name is a stable label used in logs and metrics.
	Name string

	// Regex is matched against normalised text with FindStringSubmatch.
	Regex *regexp.Regexp

	// Build converts the submatch slice into an intent. Returning false lets
	// evaluation continue with the next rule.
	Build func(m []string) (Intent, bool)
}

// Rule group names in precedence order. The wake group is handled separately
// by [Grammar.MatchWake].
const (
	GroupDocument   = "document"
	GroupTimeJump   = "time"
	GroupTransport  = "transport"
	GroupFilter     = "filter"
	GroupNavigation = "navigation"
	GroupInfo       = "info"
)

func re(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

func fixed(in Intent) func([]string) (Intent, bool) {
	return func([]string) (Intent, bool) { return in, true }
}

// defaultRules returns the built-in command table. Order is significant: more
// specific multi-word patterns precede the bare verbs they contain.
func defaultRules() []Rule {
	var rules []Rule
	rules = append(rules, documentRules()...)
	rules = append(rules, timeJumpRules()...)
	// "atur ulang filter" contains the bare restart verb.
	rules = append(rules, filterResetRule())
	rules = append(rules, transportRules()...)
	rules = append(rules, filterRules()...)
	rules = append(rules, navigationRules()...)
	rules = append(rules, infoRules()...)
	return rules
}

func documentRules() []Rule {
	return []Rule{
		{
			Name:  GroupDocument + ".ordinal",
			Regex: re(`\b(?:(pilih|buka|putar|mainkan|dengarkan|play)\s+)?dokumen\s+(?:(?:nomor|no|ke)\s+)?(` + numberPattern + `|` + ordinalPattern + `)\b`),
			Build: func(m []string) (Intent, bool) {
				n, ok := parseNumber(m[2])
				if !ok {
					return Intent{}, false
				}
				kind := KindSelectDocument
				switch m[1] {
				case "putar", "mainkan", "dengarkan", "play":
					kind = KindPlayDocument
				}
				return Intent{Kind: kind, Ordinal: n}, true
			},
		},
	}
}

func timeJumpRules() []Rule {
	const jump = `\b(?:pindah|loncat|lompat|lompati|pergi)(?:\s+ke)?\s+`
	return []Rule{
		{
			// Clock form is checked before the bare minute form.
			Name:  GroupTimeJump + ".clock",
			Regex: re(jump + `(?:menit\s+)?(\d{1,3}):([0-5]\d)\b`),
			Build: func(m []string) (Intent, bool) {
				min, ok1 := parseNumber(m[1])
				sec, ok2 := parseNumber(m[2])
				if !ok1 || !ok2 {
					return Intent{}, false
				}
				return Intent{Kind: KindTimeJump, Absolute: true, Seconds: float64(min*60 + sec)}, true
			},
		},
		{
			Name:  GroupTimeJump + ".minute",
			Regex: re(jump + `menit\s+(?:ke\s+)?(` + numberPattern + `)(?:\s+(?:lebih\s+)?(?:detik\s+)?(` + numberPattern + `)(?:\s+detik)?)?\b`),
			Build: func(m []string) (Intent, bool) {
				min, ok := parseNumber(m[1])
				if !ok {
					return Intent{}, false
				}
				secs := min * 60
				if m[2] != "" {
					sec, ok := parseNumber(m[2])
					if !ok {
						return Intent{}, false
					}
					secs += sec
				}
				return Intent{Kind: KindTimeJump, Absolute: true, Seconds: float64(secs)}, true
			},
		},
		{
			Name:  GroupTimeJump + ".second",
			Regex: re(`\b(?:(?:pindah|loncat|lompat|pergi)\s+)?ke\s+detik\s+(?:ke\s+)?(` + numberPattern + `)\b`),
			Build: func(m []string) (Intent, bool) {
				sec, ok := parseNumber(m[1])
				if !ok {
					return Intent{}, false
				}
				return Intent{Kind: KindTimeJump, Absolute: true, Seconds: float64(sec)}, true
			},
		},
		{
			Name:  GroupTimeJump + ".relative",
			Regex: re(`\b(maju|mundur)\s+(` + numberPattern + `)\s*(detik|menit)?\b`),
			Build: func(m []string) (Intent, bool) {
				n, ok := parseNumber(m[2])
				if !ok {
					return Intent{}, false
				}
				secs := float64(n)
				if m[3] == "menit" {
					secs *= 60
				}
				if m[1] == "mundur" {
					secs = -secs
				}
				return Intent{Kind: KindTimeJump, Seconds: secs}, true
			},
		},
	}
}

func transportRules() []Rule {
	const vol = `(?:volume|suara)`
	return []Rule{
		{Name: GroupTransport + ".restart", Regex: re(`\b(?:putar ulang|ulangi|ulang|dari awal|mulai dari awal|kembali ke awal)\b`), Build: fixed(Intent{Kind: KindPlaybackControl, Action: ActionRestart})},
		{Name: GroupTransport + ".download", Regex: re(`\b(?:unduh|download)\b`), Build: fixed(Intent{Kind: KindPlaybackControl, Action: ActionDownload})},

		{
			Name:  GroupTransport + ".volume_level",
			Regex: re(`\b` + vol + `\s+(?:ke\s+)?(\d{1,3})(?:\s*persen)?\b`),
			Build: func(m []string) (Intent, bool) {
				n, ok := parseNumber(m[1])
				if !ok {
					return Intent{}, false
				}
				return Intent{Kind: KindVolumeChange, Volume: VolumeAdjust, Absolute: true, Value: float64(n) / 100}, true
			},
		},
		{Name: GroupTransport + ".unmute", Regex: re(`\b(?:bunyikan|unmute|nyalakan suara|aktifkan suara)\b`), Build: fixed(Intent{Kind: KindVolumeChange, Volume: VolumeUnmute})},
		{Name: GroupTransport + ".mute", Regex: re(`\b(?:bisukan|mute|senyapkan)\b`), Build: fixed(Intent{Kind: KindVolumeChange, Volume: VolumeMute})},
		{Name: GroupTransport + ".volume_up", Regex: re(`\b(?:` + vol + `\s+(?:naik|tambah|lebih keras|keras|besar|kencang)|(?:naikkan|besarkan|tambah|kencangkan)\s+` + vol + `|keraskan)\b`), Build: fixed(Intent{Kind: KindVolumeChange, Volume: VolumeAdjust, Steps: 1})},
		{Name: GroupTransport + ".volume_down", Regex: re(`\b(?:` + vol + `\s+(?:turun|kurang|lebih pelan|pelan|kecil)|(?:turunkan|kecilkan|kurangi|pelankan)\s+` + vol + `|pelankan)\b`), Build: fixed(Intent{Kind: KindVolumeChange, Volume: VolumeAdjust, Steps: -1})},

		{Name: GroupTransport + ".speed_normal", Regex: re(`\b(?:kecepatan normal|kecepatan biasa|normal)\b`), Build: fixed(Intent{Kind: KindSpeedChange, Absolute: true, Value: 1})},
		{
			Name:  GroupTransport + ".speed_level",
			Regex: re(`\bkecepatan\s+(?:ke\s+)?(` + decimalPattern + `)(?:\s*(?:kali|x))?\b`),
			Build: func(m []string) (Intent, bool) {
				f, ok := parseDecimal(m[1])
				if !ok {
					return Intent{}, false
				}
				return Intent{Kind: KindSpeedChange, Absolute: true, Value: f}, true
			},
		},
		{Name: GroupTransport + ".speed_up", Regex: re(`\b(?:percepat|lebih cepat|cepatkan)\b`), Build: fixed(Intent{Kind: KindSpeedChange, Steps: 1})},
		{Name: GroupTransport + ".speed_down", Regex: re(`\b(?:perlambat|lebih lambat|lambatkan)\b`), Build: fixed(Intent{Kind: KindSpeedChange, Steps: -1})},

		{Name: GroupTransport + ".pause", Regex: re(`\b(?:pause|jeda|tunda)\b`), Build: fixed(Intent{Kind: KindPlaybackControl, Action: ActionPause})},
		{Name: GroupTransport + ".stop", Regex: re(`\b(?:stop|berhenti|hentikan)\b`), Build: fixed(Intent{Kind: KindPlaybackControl, Action: ActionStop})},
		{Name: GroupTransport + ".forward", Regex: re(`\b(?:maju|majukan)\b`), Build: fixed(Intent{Kind: KindPlaybackControl, Action: ActionForward})},
		{Name: GroupTransport + ".backward", Regex: re(`\b(?:mundur|mundurkan)\b`), Build: fixed(Intent{Kind: KindPlaybackControl, Action: ActionBackward})},
		{Name: GroupTransport + ".play", Regex: re(`\b(?:play|putar|mainkan|lanjutkan)\b`), Build: fixed(Intent{Kind: KindPlaybackControl, Action: ActionPlay})},
	}
}

func filterResetRule() Rule {
	return Rule{Name: GroupFilter + ".reset", Regex: re(`\b(?:reset|hapus|bersihkan|atur ulang)\s+(?:semua\s+)?filter\b`), Build: fixed(Intent{Kind: KindFilter, Reset: true})}
}

func filterRules() []Rule {
	return []Rule{
		{
			Name:  GroupFilter + ".year",
			Regex: re(`\b(?:filter|tampilkan|saring)\s+tahun\s+(\d{4})\b`),
			Build: func(m []string) (Intent, bool) {
				return Intent{Kind: KindFilter, Dimension: DimensionYear, FilterValue: m[1]}, true
			},
		},
		{
			Name:  GroupFilter + ".indicator",
			Regex: re(`\b(?:filter|saring)\s+(?:indikator\s+)?(.+)$`),
			Build: func(m []string) (Intent, bool) {
				v := strings.TrimSpace(m[1])
				if v == "" {
					return Intent{}, false
				}
				return Intent{Kind: KindFilter, Dimension: DimensionIndicator, FilterValue: v}, true
			},
		},
	}
}

func navigationRules() []Rule {
	return []Rule{
		{Name: GroupNavigation + ".next", Regex: re(`\b(?:halaman\s+(?:selanjutnya|berikutnya|lanjut|depan)|next page)\b`), Build: fixed(Intent{Kind: KindNavigation, Direction: DirectionNext})},
		{Name: GroupNavigation + ".previous", Regex: re(`\b(?:halaman\s+(?:sebelumnya|kembali|belakang)|previous page)\b`), Build: fixed(Intent{Kind: KindNavigation, Direction: DirectionPrevious})},
	}
}

func infoRules() []Rule {
	return []Rule{
		{Name: GroupInfo + ".count", Regex: re(`\b(?:berapa|jumlah)\s+(?:banyak\s+)?dokumen\b`), Build: fixed(Intent{Kind: KindInfo, Topic: InfoDocumentCount})},
		{Name: GroupInfo + ".position", Regex: re(`\b(?:(?:posisi|waktu)\s+(?:sekarang|saat ini)|sudah berapa menit|durasi)\b`), Build: fixed(Intent{Kind: KindInfo, Topic: InfoPosition})},
		{Name: GroupInfo + ".help", Regex: re(`\b(?:bantuan|help|panduan)\b`), Build: fixed(Intent{Kind: KindHelp})},
		{Name: GroupInfo + ".exit", Regex: re(`\b(?:keluar|matikan suara|matikan perintah suara|nonaktifkan suara)\b`), Build: fixed(Intent{Kind: KindExit})},
	}
}
