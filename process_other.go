//go:build !windows

package rttiscanner

// Process is an opened target process. Live processes can only be opened on Windows.
type Process struct {
	Image
}

// OpenProcess opens the process with the specified ID for reading
func OpenProcess(pid uint32) (*Process, error) {
	return nil, ErrUnsupportedPlatform
}

// OpenProcessByName opens the first process whose executable name contains name
func OpenProcessByName(name string) (*Process, error) {
	return nil, ErrUnsupportedPlatform
}

// FindProcessesByName finds all processes with the specified name
func FindProcessesByName(name string) ([]uint32, error) {
	return nil, ErrUnsupportedPlatform
}

// PID returns the process ID
func (p *Process) PID() uint32 {
	return 0
}

// IsWow64 reports whether the target is a 32-bit process on 64-bit Windows
func (p *Process) IsWow64() bool {
	return false
}
