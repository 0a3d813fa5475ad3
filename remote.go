package rttiscanner

import (
	"github.com/apex/log"
)

// DefaultPageSize is the size of a single remote read while scanning.
const DefaultPageSize = 0x100000

// RemoteSearch scans [start, start+size) of the target for pattern, reading
// pageSize bytes at a time. The last len(pattern)-1 bytes of every page are
// carried in front of the next one so matches across a page boundary are
// found. Pages that cannot be read are skipped. Only pattern syntax errors
// are returned.
func RemoteSearch(a Accessor, start Address, size, pageSize uint64, pattern string, findFirst bool) ([]Address, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}
	return RemoteSearchPattern(a, start, size, pageSize, p, findFirst), nil
}

// RemoteSearchBytes scans for a literal byte sequence.
func RemoteSearchBytes(a Accessor, start Address, size, pageSize uint64, needle []byte, findFirst bool) ([]Address, error) {
	return RemoteSearch(a, start, size, pageSize, BytesToPattern(needle), findFirst)
}

// RemoteSearchPattern is RemoteSearch for an already compiled pattern.
func RemoteSearchPattern(a Accessor, start Address, size, pageSize uint64, p *Pattern, findFirst bool) []Address {
	if p.Len() == 0 || size == 0 {
		return nil
	}
	if pageSize == 0 {
		pageSize = size
	}

	tail := p.Len() - 1
	pages := (size + pageSize - 1) / pageSize
	buf := make([]byte, int(pageSize)+tail)

	var (
		results []Address
		// bytes of the previous page still valid at the front of buf
		prevLen int
		// end of the last reported match
		nextAllowed Address
	)

	for i := uint64(0); i < pages; i++ {
		begin := start.Add(i * pageSize)
		n := int(min(pageSize, size-i*pageSize))

		carried := 0
		if prevLen > 0 {
			carried = min(tail, prevLen)
			copy(buf, buf[prevLen-carried:prevLen])
		}

		if err := a.ReadMemory(begin, buf[carried:carried+n]); err != nil {
			log.WithFields(log.Fields{
				"address": begin,
				"size":    n,
			}).Debugf("skipping page: %v", err)
			prevLen = 0
			continue
		}

		// resume after the last reported match so paging does not change
		// which non-overlapping matches are found
		origin := begin - Address(carried)
		skip := 0
		if nextAllowed > origin {
			skip = int(nextAllowed - origin)
		}
		hits := p.Find(buf[skip:carried+n], findFirst)
		for _, off := range hits {
			addr := origin.Add(uint64(skip + off))
			results = append(results, addr)
			nextAllowed = addr.Add(uint64(p.Len()))
		}
		if findFirst && len(hits) > 0 {
			return results[:1]
		}

		prevLen = carried + n
	}

	return results
}
