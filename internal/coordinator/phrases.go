package coordinator

import "github.com/MrWong99/voxportal/internal/dispatch"

const (
	PromptWake    = "Ya, silakan sebutkan perintah."
	PromptConsent = "Dokumen sedang dimuat. Apakah Anda ingin mendengar panduan perintah suara? Jawab ya atau tidak."

	PhrasePermissionDenied = "Izin mikrofon ditolak. Perintah suara tidak dapat digunakan di halaman ini."
	PhraseUnsupported      = "Browser ini tidak mendukung pengenalan suara. Perintah suara tidak dapat digunakan."
)

// GuideText is the guidance monologue spoken after the user consents.
const GuideText = "Untuk memberi perintah, ucapkan hai audio statistik, lalu tunggu jawaban. " +
	dispatch.HelpText +
	" Audio akan diputar sekarang."
