package rttiscanner

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToPattern(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		length   int
		expected string
	}{
		{
			name:     "basic string",
			input:    "WeChat",
			length:   6,
			expected: "57 65 43 68 61 74",
		},
		{
			name:     "string with padding",
			input:    "WeChat",
			length:   10,
			expected: "57 65 43 68 61 74 ?? ?? ?? ??",
		},
		{
			name:     "string with wildcard",
			input:    "We?Chat",
			length:   7,
			expected: "57 65 ?? 43 68 61 74",
		},
		{
			name:     "empty string",
			input:    "",
			length:   5,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StringToPattern(tt.input, tt.length))
		})
	}
}

func TestBytesToPattern(t *testing.T) {
	assert.Equal(t, "08 10 00 40 01 00 00 00", BytesToPattern([]byte{0x08, 0x10, 0x00, 0x40, 0x01, 0x00, 0x00, 0x00}))
	assert.Equal(t, "", BytesToPattern(nil))
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		data      []byte
		findFirst bool
		expected  []int
	}{
		{
			name:     "wildcard in the middle",
			pattern:  "AA ?? CC",
			data:     []byte{0x11, 0xAA, 0xBB, 0xCC, 0x22},
			expected: []int{1},
		},
		{
			name:     "empty buffer",
			pattern:  "AA BB",
			data:     []byte{},
			expected: nil,
		},
		{
			name:     "empty pattern",
			pattern:  "",
			data:     []byte{0xAA},
			expected: nil,
		},
		{
			name:     "pattern longer than buffer",
			pattern:  "AA BB CC",
			data:     []byte{0xAA, 0xBB},
			expected: nil,
		},
		{
			name:     "leading wildcard",
			pattern:  "?? BB",
			data:     []byte{0xBB, 0x00, 0xBB, 0x01, 0xBB},
			expected: []int{1, 3},
		},
		{
			name:     "match at both ends",
			pattern:  "de ad",
			data:     []byte{0xDE, 0xAD, 0x00, 0x00, 0xDE, 0xAD},
			expected: []int{0, 4},
		},
		{
			name:     "non-overlapping",
			pattern:  "AA AA",
			data:     []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA},
			expected: []int{0, 2},
		},
		{
			name:      "first only",
			pattern:   "AA",
			data:      []byte{0x00, 0xAA, 0xAA},
			findFirst: true,
			expected:  []int{1},
		},
		{
			name:     "question mark byte is literal",
			pattern:  "3F 3F",
			data:     []byte{0x3F, 0x00, 0x3F, 0x3F},
			expected: []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Search(tt.pattern, tt.data, tt.findFirst)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSearchInvalidPattern(t *testing.T) {
	tests := []struct {
		pattern string
		err     error
	}{
		{"A", ErrInvalidPattern},
		{"AA BBB", ErrInvalidPattern},
		{"?", ErrInvalidPattern},
		{"GG", ErrInvalidHexString},
		{"AA ?A", ErrInvalidHexString},
		{"0x", ErrInvalidHexString},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			_, err := Search(tt.pattern, []byte{0xAA, 0xBB}, false)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSearchBytes(t *testing.T) {
	data := []byte{0x00, 0x08, 0x10, 0x00, 0x40, 0x01, 0x00, 0x00, 0x00, 0xFF}
	got, err := SearchBytes([]byte{0x40, 0x01, 0x00, 0x00}, data, false)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, got)
}

func randomCase(r *rand.Rand, wildcards bool) (string, []byte, []bool, []byte) {
	alphabet := []byte{0xAA, 0xBB, 0xCC}

	m := 1 + r.IntN(5)
	pattern := make([]byte, m)
	wild := make([]bool, m)
	tokens := make([]byte, 0, m)
	for i := range pattern {
		if wildcards && r.IntN(4) == 0 {
			wild[i] = true
		} else {
			pattern[i] = alphabet[r.IntN(2)]
		}
		tokens = append(tokens, pattern[i])
	}

	text := BytesToPattern(tokens)
	if wildcards {
		text = ""
		for i := range pattern {
			if i > 0 {
				text += " "
			}
			if wild[i] {
				text += Wildcard
			} else {
				text += BytesToPattern(pattern[i : i+1])
			}
		}
	}

	data := make([]byte, r.IntN(64))
	for i := range data {
		data[i] = alphabet[r.IntN(len(alphabet))]
	}

	return text, pattern, wild, data
}

func TestSearchMatchesNaive(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 2000; i++ {
		text, pattern, wild, data := randomCase(r, false)
		got, err := Search(text, data, false)
		require.NoError(t, err)
		require.Equal(t, naiveFind(pattern, wild, data), got, "pattern %q data % X", text, data)
	}
}

func TestSearchWildcardProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 2000; i++ {
		text, pattern, wild, data := randomCase(r, true)

		all, err := Search(text, data, false)
		require.NoError(t, err)
		require.Equal(t, naiveFind(pattern, wild, data), all, "pattern %q data % X", text, data)

		for _, off := range all {
			for j := range pattern {
				if !wild[j] {
					require.Equal(t, pattern[j], data[off+j])
				}
			}
		}

		first, err := Search(text, data, true)
		require.NoError(t, err)
		if len(all) == 0 {
			require.Empty(t, first)
		} else {
			require.Equal(t, all[:1], first)
		}
	}
}

func BenchmarkPatternFind(b *testing.B) {
	p, err := ParsePattern("57 65 ?? 68 61 74")
	if err != nil {
		b.Fatalf("ParsePattern failed: %v", err)
	}

	data := make([]byte, 1<<20)
	for i := range data {
		data[i] = byte(i % 251)
	}

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Find(data, false)
	}
}
