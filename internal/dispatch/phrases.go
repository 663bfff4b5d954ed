package dispatch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Spoken feedback. All phrases are Indonesian.
const (
	PhraseUnrecognized = "Maaf, perintah tidak dikenali. Ucapkan bantuan untuk mendengar daftar perintah."
	PhraseFailed       = "Maaf, perintah gagal dijalankan."
	PhraseNoAudio      = "Belum ada audio yang dimuat."
	PhraseNotReady     = "Audio belum siap. Coba lagi sebentar lagi."
	PhraseExit         = "Perintah suara dinonaktifkan. Tekan pintasan keyboard untuk mengaktifkan kembali."

	phrasePlay        = "Memutar audio."
	phrasePause       = "Audio dijeda."
	phraseStop        = "Audio dihentikan."
	phraseRestart     = "Memutar dari awal."
	phraseDownload    = "Mengunduh dokumen."
	phraseMute        = "Suara dibisukan."
	phraseUnmute      = "Suara diaktifkan kembali."
	phraseNextPage    = "Halaman berikutnya."
	phrasePrevPage    = "Halaman sebelumnya."
	phraseFilterReset = "Semua filter dihapus."
)

// HelpText lists the available commands.
const HelpText = "Perintah yang tersedia. " +
	"Putar dokumen nomor satu, atau pilih dokumen kedua. " +
	"Putar, jeda, berhenti, putar ulang. " +
	"Maju atau mundur sepuluh detik, pindah ke menit dua, atau pindah ke dua titik tiga puluh. " +
	"Percepat, perlambat, kecepatan normal, atau kecepatan satu koma lima. " +
	"Naikkan volume, kecilkan volume, volume lima puluh persen, bisukan, bunyikan. " +
	"Filter tahun dua ribu dua puluh tiga, filter diikuti nama indikator, atau hapus filter. " +
	"Halaman selanjutnya dan halaman sebelumnya. " +
	"Berapa dokumen, posisi sekarang, unduh, dan keluar untuk menonaktifkan perintah suara."

func phraseDocumentNotFound(n int) string {
	return fmt.Sprintf("Dokumen nomor %d tidak ditemukan.", n)
}

func phraseDocumentOpened(n int, title string) string {
	return fmt.Sprintf("Membuka dokumen nomor %d, %s.", n, title)
}

func phraseDocumentPlaying(n int, title string) string {
	return fmt.Sprintf("Memutar dokumen nomor %d, %s.", n, title)
}

func phraseOutOfRange(target, duration float64, known bool) string {
	if !known {
		return fmt.Sprintf("Tidak bisa pindah ke %s, durasi audio belum diketahui.", spokenTime(target))
	}
	return fmt.Sprintf("Waktu %s di luar durasi audio, yaitu %s.", spokenTime(target), spokenTime(duration))
}

func phraseSeeked(position float64) string {
	return fmt.Sprintf("Posisi %s.", spokenTime(position))
}

func phraseRate(rate float64, atLimit bool) string {
	if atLimit {
		return fmt.Sprintf("Kecepatan sudah batas, %s kali.", spokenDecimal(rate))
	}
	return fmt.Sprintf("Kecepatan %s kali.", spokenDecimal(rate))
}

func phraseVolume(volume float64, atLimit bool) string {
	pct := int(math.Round(volume * 100))
	if atLimit {
		return fmt.Sprintf("Volume sudah batas, %d persen.", pct)
	}
	return fmt.Sprintf("Volume %d persen.", pct)
}

func phraseFilterApplied(dimension, label string) string {
	return fmt.Sprintf("Filter %s %s diterapkan.", dimension, label)
}

func phraseFilterNotFound(dimension, value string) string {
	return fmt.Sprintf("Pilihan %s untuk filter %s tidak ditemukan.", value, dimension)
}

func phraseDocumentCount(n int) string {
	if n == 0 {
		return "Tidak ada dokumen di halaman ini."
	}
	return fmt.Sprintf("Ada %d dokumen di halaman ini.", n)
}

func phrasePosition(current, duration float64, known bool) string {
	if !known {
		return fmt.Sprintf("Posisi %s.", spokenTime(current))
	}
	return fmt.Sprintf("Posisi %s dari %s.", spokenTime(current), spokenTime(duration))
}

// spokenTime renders seconds as "2 menit 30 detik".
func spokenTime(seconds float64) string {
	total := int(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	m, s := total/60, total%60
	switch {
	case m == 0:
		return fmt.Sprintf("%d detik", s)
	case s == 0:
		return fmt.Sprintf("%d menit", m)
	default:
		return fmt.Sprintf("%d menit %d detik", m, s)
	}
}

// spokenDecimal renders 1.25 as "1,25".
func spokenDecimal(v float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', -1, 64), ".", ",")
}
