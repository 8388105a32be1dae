package pipeline

import (
	"slices"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		sentences []string
		rest      string
	}{
		{"empty", "", nil, ""},
		{"no boundary", "Tell me about", nil, "Tell me about"},
		{"one sentence", "Hello there. How", []string{"Hello there."}, " How"},
		{"mixed punctuation", "Great! Why? Okay. ", []string{"Great!", "Why?", "Okay."}, " "},
		{"trailing period is not final", "It costs 3.", nil, "It costs 3."},
		{"decimal", "It costs 3.5 dollars. Next", []string{"It costs 3.5 dollars."}, " Next"},
		{"newline", "First line\nsecond", []string{"First line"}, "second"},
		{"blank lines skipped", "\n\nHi.\n", []string{"Hi."}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest := splitSentences(tt.in)
			if !slices.Equal(got, tt.sentences) {
				t.Errorf("sentences = %q, want %q", got, tt.sentences)
			}
			if rest != tt.rest {
				t.Errorf("rest = %q, want %q", rest, tt.rest)
			}
		})
	}
}

func TestSentencesOfKeepsTail(t *testing.T) {
	got := sentencesOf("Thanks for coming in. Let's start with your background")
	want := []string{"Thanks for coming in.", "Let's start with your background"}
	if !slices.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := sentencesOf("   "); len(got) != 0 {
		t.Errorf("blank text gave %q", got)
	}
}

// Fragments split anywhere must yield the same sentences as the whole text.
func TestSplitSentencesAcrossFragments(t *testing.T) {
	text := "Nice to meet you. What did you build at 3.5 scale? Tell me!"
	fragments := []string{"Nice to", " meet you", ". What did you build at 3", ".5 scale", "? Tell", " me!"}

	var got []string
	pending := ""
	for _, f := range fragments {
		s, rest := splitSentences(pending + f)
		got = append(got, s...)
		pending = rest
	}
	got = append(got, sentencesOf(pending)...)

	if want := sentencesOf(text); !slices.Equal(got, want) {
		t.Errorf("fragmented = %q, whole = %q", got, want)
	}
}
