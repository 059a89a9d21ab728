package code

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"strings"

	"github.com/gosimple/slug"
)

const (
	// Alphabet excludes 0, O, 1, I and l so printed codes cannot be misread.
	Alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

	GlobalCodeLength = 7
	VanityMinLength  = 3
	VanityMaxLength  = 50

	DefaultMaxAttempts = 10
)

var (
	ErrExhausted          = errors.New("code_generation_exhausted")
	ErrTooShort           = errors.New("code_too_short")
	ErrTooLong            = errors.New("code_too_long")
	ErrInvalidCharacters  = errors.New("code_invalid_characters")
	ErrProfane            = errors.New("code_profane")
	ErrEmptySuggestion    = errors.New("code_empty_suggestion")
	errNilExistenceCheck  = errors.New("code existence check is required")
	alphabetSize          = big.NewInt(int64(len(Alphabet)))
	defaultGeneratorState = NewGenerator(nil, nil)
)

// NormalizeCode is the canonical comparison form of a code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Generator produces global codes. The zero value is not usable; use NewGenerator.
type Generator struct {
	random io.Reader
	filter *Filter
}

// NewGenerator builds a generator. A nil random source uses crypto/rand and a
// nil filter uses the default profanity dictionary.
func NewGenerator(random io.Reader, filter *Filter) *Generator {
	if random == nil {
		random = rand.Reader
	}
	if filter == nil {
		filter = NewFilter(nil)
	}
	return &Generator{random: random, filter: filter}
}

// GenerateGlobalCode returns a profanity-free code using the default generator.
func GenerateGlobalCode(maxAttempts int) (string, error) {
	return defaultGeneratorState.Generate(maxAttempts)
}

// Generate draws fresh candidates until one passes the profanity filter.
func (g *Generator) Generate(maxAttempts int) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := g.candidate()
		if err != nil {
			return "", err
		}
		if !g.filter.IsProfane(candidate) {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// GenerateUnique is Generate plus a storage check. Candidates that already
// exist count against the same attempt budget.
func (g *Generator) GenerateUnique(ctx context.Context, maxAttempts int, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	if exists == nil {
		return "", errNilExistenceCheck
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := g.Generate(1)
		if errors.Is(err, ErrExhausted) {
			continue
		}
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

func (g *Generator) candidate() (string, error) {
	var b strings.Builder
	b.Grow(GlobalCodeLength)
	for i := 0; i < GlobalCodeLength; i++ {
		n, err := rand.Int(g.random, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidateVanityCode checks a user-chosen code. Input must already be in
// canonical lowercase form; surrounding whitespace is ignored.
func ValidateVanityCode(code string) error {
	return defaultGeneratorState.ValidateVanity(code)
}

func (g *Generator) ValidateVanity(code string) error {
	trimmed := strings.TrimSpace(code)
	switch {
	case len(trimmed) < VanityMinLength:
		return ErrTooShort
	case len(trimmed) > VanityMaxLength:
		return ErrTooLong
	}
	for i := 0; i < len(trimmed); i++ {
		if !isVanityChar(trimmed[i]) {
			return ErrInvalidCharacters
		}
	}
	if g.filter.IsProfane(NormalizeCode(trimmed)) {
		return ErrProfane
	}
	return nil
}

// SuggestVanityCode derives a vanity code from a display name. It returns an
// empty string when nothing valid can be derived.
func SuggestVanityCode(name string) string {
	return defaultGeneratorState.Suggest(name)
}

func (g *Generator) Suggest(name string) string {
	suggestion := slug.Make(strings.TrimSpace(name))
	if len(suggestion) > VanityMaxLength {
		suggestion = strings.TrimRight(suggestion[:VanityMaxLength], "-")
	}
	if g.ValidateVanity(suggestion) != nil {
		return ""
	}
	return suggestion
}

func isVanityChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '-'
}
