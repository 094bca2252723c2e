package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditsString(t *testing.T) {
	tests := []struct {
		name  string
		milli int64
		want  string
	}{
		{"zero", 0, "0.000"},
		{"sub credit", 60, "0.060"},
		{"whole", 10000, "10.000"},
		{"mixed", 9940, "9.940"},
		{"negative", -60, "-0.060"},
		{"single milli", 1, "0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CreditsFromMilli(tt.milli).String())
		})
	}
}

func TestParseCredits(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"10", 10000, false},
		{"10.5", 10500, false},
		{"0.060", 60, false},
		{"0.06", 60, false},
		{"-1.5", -1500, false},
		{".5", 500, false},
		{" 2.000 ", 2000, false},
		{"", 0, true},
		{"abc", 0, true},
		{"1.0001", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCredits(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Credits(tt.want), got)
		})
	}
}

func TestParseCreditsRoundTrip(t *testing.T) {
	for _, milli := range []int64{0, 1, 60, 999, 1000, 9940, -60} {
		c := CreditsFromMilli(milli)
		parsed, err := ParseCredits(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestCostFromTokens(t *testing.T) {
	tests := []struct {
		name            string
		tokens          int
		tokensPerCredit int
		wantMilli       int64
	}{
		{"60 tokens at 1000", 60, 1000, 60},
		{"zero tokens", 0, 1000, 0},
		{"rounds half up", 1500, 1000000, 2},
		{"rounds down below half", 1499, 1000000, 1},
		{"exact credit", 1000, 1000, 1000},
		{"invalid ratio falls back", 60, 0, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CostFromTokens(tt.tokens, tt.tokensPerCredit)
			assert.Equal(t, Credits(tt.wantMilli), got)
		})
	}
}

func TestCreditsArithmetic(t *testing.T) {
	a := CreditsFromWhole(10)
	b := CreditsFromMilli(60)

	assert.Equal(t, CreditsFromMilli(10060), a.Add(b))
	assert.Equal(t, CreditsFromMilli(-60), b.Neg())
	assert.True(t, b.Neg().IsNegative())
	assert.False(t, b.IsNegative())
}
