package cryptox

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateHex(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"128-bit value", TokenSize128},
		{"256-bit value", TokenSize256},
		{"custom size", 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := GenerateHex(tt.size)
			require.NoError(t, err)
			require.Len(t, value, tt.size*2)

			raw, err := hex.DecodeString(value)
			require.NoError(t, err)
			require.Len(t, raw, tt.size)

			value2, err := GenerateHex(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, value, value2, "values should be unique")
		})
	}
}

func TestGenerateHex_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		value, err := GenerateHex(size)
		require.Error(t, err)
		require.Empty(t, value)
	}
}

func TestHexSource(t *testing.T) {
	value, err := HexSource{}.Hex(TokenSize128)
	require.NoError(t, err)
	require.Len(t, value, 32)
}

func TestGenerateHex_EntropyQuality(t *testing.T) {
	const count = 100
	seen := make(map[string]bool, count)

	for range count {
		value, err := GenerateHex(TokenSize128)
		require.NoError(t, err)
		require.NotContains(t, seen, value, "duplicate value generated")
		seen[value] = true
	}
}

func TestEqualConstantTime(t *testing.T) {
	require.True(t, EqualConstantTime("abc123", "abc123"))
	require.False(t, EqualConstantTime("abc123", "abc124"))
	require.False(t, EqualConstantTime("abc123", "abc12"))
	require.True(t, EqualConstantTime("", ""))
}
