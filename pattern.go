package rttiscanner

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Wildcard is the pattern token that matches any byte.
const Wildcard = "??"

// StringToPattern converts a search string to an AOB (Array of Bytes) pattern.
// Wildcard characters (?) are converted to "??". The pattern is padded to the specified length.
func StringToPattern(searchStr string, minLength int) string {
	if searchStr == "" {
		return ""
	}

	var builder strings.Builder
	bytes := []byte(searchStr)
	patternLength := len(bytes)
	if minLength > patternLength {
		patternLength = minLength
	}

	for i := 0; i < patternLength; i++ {
		if i > 0 {
			builder.WriteString(" ")
		}

		if i < len(bytes) {
			b := bytes[i]
			if b == '?' {
				builder.WriteString(Wildcard)
			} else {
				builder.WriteString(fmt.Sprintf("%02X", b))
			}
		} else {
			builder.WriteString(Wildcard)
		}
	}

	return builder.String()
}

// BytesToPattern renders raw bytes as an AOB pattern without wildcards.
func BytesToPattern(data []byte) string {
	var builder strings.Builder
	for i, b := range data {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(fmt.Sprintf("%02X", b))
	}
	return builder.String()
}

// Pattern is a compiled AOB pattern with its skip table.
type Pattern struct {
	patternBytes []byte
	wildcardMask []bool
	lastWildcard int
	skip         [256]int
}

// ParsePattern compiles an AOB pattern such as "48 8B ?? ?? 89".
// An empty pattern compiles to a pattern that never matches.
func ParsePattern(pattern string) (*Pattern, error) {
	parts := strings.Fields(pattern)

	p := &Pattern{
		patternBytes: make([]byte, len(parts)),
		wildcardMask: make([]bool, len(parts)),
	}

	for i, part := range parts {
		if len(part) != 2 {
			return nil, errors.Wrapf(ErrInvalidPattern, "token %q", part)
		}
		if part == Wildcard {
			p.wildcardMask[i] = true
			p.lastWildcard = i
			continue
		}
		decoded, err := hex.DecodeString(part)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidHexString, "token %q", part)
		}
		p.patternBytes[i] = decoded[0]
	}

	p.buildSkipTable()

	return p, nil
}

// buildSkipTable seeds the shift for the byte after the current window.
// Bytes right of the last wildcard shift to align their rightmost
// occurrence, everything else can only align with the wildcard itself.
func (p *Pattern) buildSkipTable() {
	n := len(p.patternBytes)
	for i := range p.skip {
		p.skip[i] = n - p.lastWildcard
	}
	for i := p.lastWildcard; i < n; i++ {
		if p.wildcardMask[i] {
			continue
		}
		p.skip[p.patternBytes[i]] = n - i
	}
}

// Len returns the length of the pattern in bytes
func (p *Pattern) Len() int {
	return len(p.patternBytes)
}

// Find returns the offsets of all non-overlapping matches in data, or only
// the first one when findFirst is set.
func (p *Pattern) Find(data []byte, findFirst bool) []int {
	n, m := len(data), len(p.patternBytes)
	if m == 0 || m > n {
		return nil
	}

	var matches []int
	for i := 0; i <= n-m; {
		if p.matchesAt(data, i) {
			matches = append(matches, i)
			if findFirst {
				return matches
			}
			i += m
			continue
		}
		if i+m >= n {
			break
		}
		i += p.skip[data[i+m]]
	}

	return matches
}

// matchesAt checks if the pattern matches at the given position
func (p *Pattern) matchesAt(data []byte, pos int) bool {
	for j, b := range p.patternBytes {
		if p.wildcardMask[j] {
			continue
		}
		if data[pos+j] != b {
			return false
		}
	}
	return true
}

// Search finds pattern in data. Syntax errors are returned before any matching.
func Search(pattern string, data []byte, findFirst bool) ([]int, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}
	return p.Find(data, findFirst), nil
}

// SearchBytes finds a literal byte sequence (an address, an offset) in data.
func SearchBytes(needle []byte, data []byte, findFirst bool) ([]int, error) {
	return Search(BytesToPattern(needle), data, findFirst)
}
