package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"$426,100", 426_100_00},
		{"426100", 426_100_00},
		{"$1,250,000.50", 1_250_000_50},
		{"USD 175000", 175_000_00},
		{"US$99", 99_00},
		{"  $65,000  ", 65_000_00},
		{"0.25", 25},
	}
	for _, tt := range tests {
		got, err := ParseCents(tt.in)
		require.NoError(t, err, tt.in)
		require.NotNil(t, got, tt.in)
		assert.Equal(t, tt.want, *got, tt.in)
	}
}

func TestParseCents_AbsentValues(t *testing.T) {
	for _, in := range []string{"", "   ", "TBD", "tbd", "Not Available"} {
		got, err := ParseCents(in)
		require.NoError(t, err, in)
		assert.Nil(t, got, in)
	}
}

func TestParseCents_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "$12.3", "$1.2345", "12a4", "$-50", "."} {
		_, err := ParseCents(in)
		assert.Error(t, err, in)
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$426,100.00", FormatCents(426_100_00))
	assert.Equal(t, "$0.25", FormatCents(25))
	assert.Equal(t, "-$1,500.50", FormatCents(-1_500_50))
}
