// Package flow provides the streaming text chunker.
package flow

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

// Default chunk window bounds, in words.
const (
	DefaultChunkMinWords = 5
	DefaultChunkMaxWords = 20
)

// sentenceBoundary marks sentence-terminal punctuation followed by
// whitespace. Go's regexp has no lookbehind, so the punctuation is captured
// and re-emitted with a marker instead.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// ChunkText splits text into realistic streaming fragments. Splitting is
// sentence-aware; sentences longer than maxWords are grouped into word
// windows whose size is re-randomized per window within [minWords,
// maxWords]. Every chunk except the last gets a trailing space so the
// concatenation reads naturally. Returns nil for empty input.
func ChunkText(text string, minWords, maxWords int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if minWords <= 0 {
		minWords = DefaultChunkMinWords
	}
	if maxWords < minWords {
		maxWords = minWords
	}

	marked := sentenceBoundary.ReplaceAllString(trimmed, "$1\n")
	sentences := strings.Split(marked, "\n")

	var chunks []string
	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}
		if len(words) <= maxWords {
			chunks = append(chunks, strings.Join(words, " "))
			continue
		}
		for i := 0; i < len(words); {
			n := minWords + rand.IntN(maxWords-minWords+1)
			if i+n > len(words) {
				n = len(words) - i
			}
			chunks = append(chunks, strings.Join(words[i:i+n], " "))
			i += n
		}
	}

	for i := range chunks {
		if i < len(chunks)-1 {
			chunks[i] += " "
		}
	}
	return chunks
}
