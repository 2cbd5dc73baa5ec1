package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidReviewCount = errors.New("invalid review count")
	ErrInvalidVariant     = errors.New("invalid variant value")
)

var digitRun = regexp.MustCompile(`\d+`)

// ParsePrice strips exactly one leading currency symbol and parses the
// remainder as a non-negative decimal: "$100.00" -> 100.
func ParsePrice(text string) (float64, error) {
	text = strings.TrimSpace(text)

	r, size := utf8.DecodeRuneInString(text)
	if r != utf8.RuneError && unicode.Is(unicode.Sc, r) {
		text = strings.TrimSpace(text[size:])
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: negative amount %q", ErrInvalidPrice, text)
	}

	return value, nil
}

// ParseReviewCount returns the first run of digits in text:
// "12 reviews" -> 12, "(3)" -> 3.
func ParseReviewCount(text string) (int, error) {
	match := digitRun.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("%w: no digits in %q", ErrInvalidReviewCount, text)
	}

	count, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidReviewCount, err)
	}

	return count, nil
}

// ParseMemory reads the capacity tag of a variant control, e.g. the
// value attribute "128" or a label like "128GB".
func ParseMemory(text string) (int, error) {
	match := digitRun.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("%w: no digits in %q", ErrInvalidVariant, text)
	}

	memory, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidVariant, err)
	}
	if memory <= 0 {
		return 0, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidVariant, memory)
	}

	return memory, nil
}

// CleanText collapses runs of whitespace the way rendered text reads.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
