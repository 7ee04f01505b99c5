package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"", 0},
		{"0", 0},
		{"512", 512},
		{"100B", 100},
		{"1kb", 1000},
		{"1KiB", 1024},
		{"1.5MB", 1_500_000},
		{"10MiB", 10_485_760},
		{"2 GB", 2_000_000_000},
		{"1GiB", 1_073_741_824},
		{"1TB", 1_000_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Invalid(t *testing.T) {
	for _, input := range []string{"abc", "MB", "-1", "-5MB"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSize(input)
			assert.Error(t, err)
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"", 0},
		{"5MB/s", 5_000_000},
		{"100kb/S", 100_000},
		{"10MiB/s", 10_485_760},
		{"5MB", 5_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseRate("-1MB/s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid rate "-1MB/s"`)
}
