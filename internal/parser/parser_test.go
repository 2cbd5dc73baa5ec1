package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		hasError bool
	}{
		{"Dollar amount", "$100.00", 100.00, false},
		{"Cents", "$24.99", 24.99, false},
		{"Surrounding whitespace", "  $1139.54 ", 1139.54, false},
		{"Euro sign", "€9.50", 9.50, false},
		{"No symbol", "42.5", 42.5, false},
		{"Zero", "$0.00", 0, false},
		{"Two symbols", "$$5.00", 0, true},
		{"Negative", "$-5.00", 0, true},
		{"Text only", "free", 0, true},
		{"Empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParsePrice(tt.input)

			if tt.hasError {
				assert.ErrorIs(t, err, ErrInvalidPrice)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, result, 1e-9)
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		hasError bool
	}{
		{"Plural", "12 reviews", 12, false},
		{"Parenthesised", "(3)", 3, false},
		{"Singular", "1 review", 1, false},
		{"First run wins", "7 reviews out of 10", 7, false},
		{"Zero", "0 reviews", 0, false},
		{"No digits", "no reviews", 0, true},
		{"Empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseReviewCount(tt.input)

			if tt.hasError {
				assert.ErrorIs(t, err, ErrInvalidReviewCount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseMemory(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		hasError bool
	}{
		{"Value attribute", "128", 128, false},
		{"Label", "64GB", 64, false},
		{"Zero", "0", 0, true},
		{"Missing", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseMemory(tt.input)

			if tt.hasError {
				assert.ErrorIs(t, err, ErrInvalidVariant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Asus VivoBook X441NA-GA190", CleanText("\n  Asus VivoBook\t X441NA-GA190 \n"))
	assert.Equal(t, "", CleanText("   "))
}
