package code

import (
	"strings"

	goaway "github.com/TwiN/go-away"
)

// Filter screens codes against the go-away dictionary plus operator supplied
// words from referral.yml.
type Filter struct {
	detector *goaway.ProfanityDetector
	extra    []string
}

func NewFilter(extra []string) *Filter {
	words := make([]string, 0, len(extra))
	for _, word := range extra {
		word = NormalizeCode(word)
		if word != "" {
			words = append(words, word)
		}
	}
	return &Filter{
		detector: goaway.NewProfanityDetector().
			WithSanitizeSpecialCharacters(true).
			WithSanitizeLeetSpeak(true),
		extra: words,
	}
}

// IsProfane compares the compact form of the code, so separators cannot be
// used to smuggle a blocked word.
func (f *Filter) IsProfane(value string) bool {
	compact := strings.ReplaceAll(NormalizeCode(value), "-", "")
	if compact == "" {
		return false
	}
	for _, word := range f.extra {
		if strings.Contains(compact, word) {
			return true
		}
	}
	return f.detector.IsProfane(compact)
}
