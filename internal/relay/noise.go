package relay

import (
	"strings"
	"unicode/utf8"
)

// Whisper-style models hallucinate these phrases on silence or noise; a match
// means the whole cycle is skipped with no transcript and no history change.
var transcriptArtifacts = []string{
	"thank you.",
	"bye.",
	"thanks.",
	"subtitle by",
	"thanks for watching",
}

// IsNoise reports whether a transcription result should be discarded.
func IsNoise(text string) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < 2 {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range transcriptArtifacts {
		if lower == phrase {
			return true
		}
	}
	return false
}
