package rttiscanner

import (
	"fmt"
	"strings"
)

// Address represents an address in the target process
type Address uint64

// String returns the hexadecimal representation of the address
func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// MarshalText renders the address in hex for JSON and YAML output
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Add returns the address moved forward by n bytes
func (a Address) Add(n uint64) Address {
	return a + Address(n)
}

// Region is a (base, size) range inside the target process.
type Region struct {
	Base Address
	Size uint64
}

// End returns the first address past the region
func (r Region) End() Address {
	return r.Base.Add(r.Size)
}

// Contains reports whether [addr, addr+n) lies inside the region
func (r Region) Contains(addr Address, n uint64) bool {
	return addr >= r.Base && uint64(addr-r.Base)+n <= r.Size
}

// Module is a loaded image in the target process.
type Module struct {
	Name string
	Region
}

// Match represents a single memory match result
type Match struct {
	Address Address
	Data    []byte
}

// Content returns the data as a UTF-8 string, replacing invalid UTF-8 sequences
func (m Match) Content() string {
	return strings.ToValidUTF8(string(m.Data), "")
}

// MatchHandler is called for each memory match found during scanning.
// Return false to stop the scan, true to continue.
type MatchHandler func(match Match) bool

// ScanOptions contains configuration options for memory scanning
type ScanOptions struct {
	// Pattern to search for (AOB format)
	Pattern string
	// Minimum address to start scanning from (inclusive)
	MinAddress Address
	// Maximum address to scan to (exclusive), zero means no limit
	MaxAddress Address
	// PageSize is the size of a single remote read, zero means DefaultPageSize
	PageSize uint64
	// Handler called for each match found
	Handler MatchHandler
}
