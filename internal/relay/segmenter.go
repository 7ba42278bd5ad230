package relay

import (
	"strings"
	"unicode/utf8"
)

// Sentence boundary markers for the streamed response: the Devanagari danda,
// exclamation and question marks, the pipe separator some models emit in its
// place, and the Latin full stop.
var sentenceBoundaryMarkers = map[rune]struct{}{
	'।': {},
	'!': {},
	'?': {},
	'|': {},
	'.': {},
}

const (
	// Completed sentences shorter than this (trimmed) are not synthesized;
	// they still appear in the transcript.
	minSynthesisRunes = 6
	// The residual carry left when the stream ends is synthesized when at
	// least this long.
	minResidualRunes = 4
)

// SegmentSentences scans carry+fragment for sentence boundaries. Each
// completed sentence retains its boundary marker; trailing text with no
// marker becomes the new carry. Pure and restartable: feeding fragments
// incrementally yields the same sentences as feeding their concatenation.
func SegmentSentences(carry, fragment string) (completed []string, newCarry string) {
	text := carry + fragment
	start := 0
	for i, r := range text {
		if _, ok := sentenceBoundaryMarkers[r]; !ok {
			continue
		}
		end := i + utf8.RuneLen(r)
		completed = append(completed, text[start:end])
		start = end
	}
	return completed, text[start:]
}

// speakable reports whether a completed sentence is worth a synthesis call,
// and returns the trimmed text to speak.
func speakable(sentence string, minRunes int) (string, bool) {
	trimmed := strings.TrimSpace(sentence)
	if utf8.RuneCountInString(trimmed) < minRunes {
		return "", false
	}
	return trimmed, true
}
