package rttiscanner

import (
	"encoding/binary"
	"io"
)

// Accessor reads memory of a target process. Addresses are target addresses
// and are never dereferenced locally.
type Accessor interface {
	// ReadMemory fills buf with len(buf) bytes starting at addr.
	// A short or failed read returns a *ReadMemoryError.
	ReadMemory(addr Address, buf []byte) error

	// FindModule returns the loaded module with the given name.
	FindModule(name string) (Module, error)
}

// RegionLister enumerates the readable memory regions of a target.
type RegionLister interface {
	Regions() ([]Region, error)
}

// Target is an opened process or a saved module image.
type Target interface {
	Accessor
	RegionLister
	io.Closer
}

// ReadUint32 reads a little endian uint32 at addr
func ReadUint32(a Accessor, addr Address) (uint32, error) {
	var buf [4]byte
	if err := a.ReadMemory(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a little endian uint64 at addr
func ReadUint64(a Accessor, addr Address) (uint64, error) {
	var buf [8]byte
	if err := a.ReadMemory(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadPointer reads a 64-bit pointer at addr
func ReadPointer(a Accessor, addr Address) (Address, error) {
	v, err := ReadUint64(a, addr)
	return Address(v), err
}

// ReadRemoteString reads maxLength bytes at addr and returns them up to the
// first zero byte or any of the stop bytes. Other bytes, printable or not,
// are kept verbatim.
func ReadRemoteString(a Accessor, addr Address, maxLength int, stop ...byte) (string, error) {
	if maxLength <= 0 {
		return "", nil
	}
	buf := make([]byte, maxLength)
	if err := a.ReadMemory(addr, buf); err != nil {
		return "", err
	}

	end := len(buf)
scan:
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
		for _, s := range stop {
			if b == s {
				end = i
				break scan
			}
		}
	}

	return string(buf[:end]), nil
}
