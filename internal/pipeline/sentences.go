package pipeline

import (
	"strings"
	"unicode"
)

// splitSentences returns the complete sentences at the start of text and
// the unterminated remainder. A sentence ends at '.', '!' or '?' followed
// by whitespace, or at a newline. Terminal punctuation at the very end of
// text is not yet a boundary since more fragments may follow ("3." + "5").
func splitSentences(text string) (sentences []string, rest string) {
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		boundary := false
		switch r {
		case '\n':
			boundary = true
		case '.', '!', '?':
			boundary = i+1 < len(runes) && unicode.IsSpace(runes[i+1])
		}
		if !boundary {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	return sentences, string(runes[start:])
}

// sentencesOf splits a finished text, keeping an unterminated tail.
func sentencesOf(text string) []string {
	sentences, rest := splitSentences(text)
	if tail := strings.TrimSpace(rest); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
