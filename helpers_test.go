package rttiscanner

import (
	"sync/atomic"
)

// faultyImage is an Image whose reads can be made to fail
type faultyImage struct {
	*Image
	fail  func(addr Address, n int) bool
	reads atomic.Int64
}

func (f *faultyImage) ReadMemory(addr Address, buf []byte) error {
	f.reads.Add(1)
	if f.fail != nil && f.fail(addr, len(buf)) {
		return &ReadMemoryError{Address: addr}
	}
	return f.Image.ReadMemory(addr, buf)
}

// naiveFind is the reference matcher: leftmost, non-overlapping
func naiveFind(pattern []byte, wildcard []bool, data []byte) []int {
	var out []int
	for i := 0; i+len(pattern) <= len(data); {
		ok := true
		for j := range pattern {
			if !wildcard[j] && data[i+j] != pattern[j] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, i)
			i += len(pattern)
		} else {
			i++
		}
	}
	return out
}
