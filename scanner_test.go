package rttiscanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScanner() *Scanner {
	data := make([]byte, 0x40)
	copy(data[0x04:], "WeChat")
	copy(data[0x1A:], "WeXhat")
	copy(data[0x30:], "WeChat")
	return NewScanner(NewImage("test.dll", testBase, data))
}

func TestScannerScan(t *testing.T) {
	tests := []struct {
		name     string
		opts     ScanOptions
		expected []Address
	}{
		{
			name:     "all regions",
			opts:     ScanOptions{Pattern: StringToPattern("We?hat", 0)},
			expected: []Address{testBase + 0x04, testBase + 0x1A, testBase + 0x30},
		},
		{
			name: "clipped",
			opts: ScanOptions{
				Pattern:    StringToPattern("We?hat", 0),
				MinAddress: testBase + 0x05,
				MaxAddress: testBase + 0x36,
			},
			expected: []Address{testBase + 0x1A, testBase + 0x30},
		},
		{
			name: "clipped before the last byte",
			opts: ScanOptions{
				Pattern:    StringToPattern("We?hat", 0),
				MaxAddress: testBase + 0x35,
				PageSize:   4,
			},
			expected: []Address{testBase + 0x04, testBase + 0x1A},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []Address
			tt.opts.Handler = func(match Match) bool {
				got = append(got, match.Address)
				return true
			}
			require.NoError(t, testScanner().Scan(context.Background(), tt.opts))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestScannerHandlerStops(t *testing.T) {
	var matches []Match
	err := testScanner().Scan(context.Background(), ScanOptions{
		Pattern: StringToPattern("WeChat", 0),
		Handler: func(match Match) bool {
			matches = append(matches, match)
			return false
		},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, testBase+0x04, matches[0].Address)
	assert.Equal(t, "WeChat", matches[0].Content())
}

func TestScannerErrors(t *testing.T) {
	s := testScanner()

	err := s.Scan(context.Background(), ScanOptions{Pattern: "XY", Handler: func(Match) bool { return true }})
	assert.ErrorIs(t, err, ErrInvalidHexString)

	err = s.Scan(context.Background(), ScanOptions{Pattern: "AA"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Scan(ctx, ScanOptions{Pattern: "AA", Handler: func(Match) bool { return true }})
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, s.Close())
}
