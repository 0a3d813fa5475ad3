//go:build windows

package rttiscanner

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Process is an opened target process. It only ever reads memory.
type Process struct {
	pid           uint32
	wow64         bool
	processHandle windows.Handle
}

// OpenProcess opens the process with the specified ID for reading
func OpenProcess(pid uint32) (*Process, error) {
	hProcess, err := windows.OpenProcess(
		windows.PROCESS_VM_READ|windows.PROCESS_QUERY_INFORMATION,
		false,
		pid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	var wow64 bool
	if err := windows.IsWow64Process(hProcess, &wow64); err != nil {
		windows.CloseHandle(hProcess)
		return nil, fmt.Errorf("failed to query process %d: %w", pid, err)
	}

	return &Process{
		pid:           pid,
		wow64:         wow64,
		processHandle: hProcess,
	}, nil
}

// OpenProcessByName opens the first process whose executable name contains name
func OpenProcessByName(name string) (*Process, error) {
	var found uint32
	err := walkProcesses(func(pe *windows.ProcessEntry32) bool {
		if strings.Contains(windows.UTF16ToString(pe.ExeFile[:]), name) {
			found = pe.ProcessID
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, errors.Wrapf(ErrProcessNotFound, "%s", name)
	}
	return OpenProcess(found)
}

// FindProcessesByName finds all processes with the specified name
func FindProcessesByName(name string) ([]uint32, error) {
	var pids []uint32
	err := walkProcesses(func(pe *windows.ProcessEntry32) bool {
		if strings.EqualFold(windows.UTF16ToString(pe.ExeFile[:]), name) {
			pids = append(pids, pe.ProcessID)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if len(pids) == 0 {
		return nil, errors.Wrapf(ErrProcessNotFound, "%s", name)
	}

	return pids, nil
}

func walkProcesses(fn func(pe *windows.ProcessEntry32) bool) error {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return fmt.Errorf("failed to create process snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var pe32 windows.ProcessEntry32
	pe32.Size = uint32(unsafe.Sizeof(pe32))

	if err := windows.Process32First(snapshot, &pe32); err != nil {
		return fmt.Errorf("failed to enumerate processes: %w", err)
	}

	for {
		if !fn(&pe32) {
			return nil
		}
		if err := windows.Process32Next(snapshot, &pe32); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				return nil
			}
			return fmt.Errorf("failed to enumerate processes: %w", err)
		}
	}
}

// Close closes the process handle
func (p *Process) Close() error {
	if p.processHandle != 0 {
		windows.CloseHandle(p.processHandle)
		p.processHandle = 0
	}
	return nil
}

// PID returns the process ID
func (p *Process) PID() uint32 {
	return p.pid
}

// IsWow64 reports whether the target is a 32-bit process on 64-bit Windows
func (p *Process) IsWow64() bool {
	return p.wow64
}

// ReadMemory implements Accessor
func (p *Process) ReadMemory(addr Address, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	var bytesRead uintptr
	err := windows.ReadProcessMemory(p.processHandle, uintptr(addr), &buf[0], uintptr(len(buf)), &bytesRead)
	if err != nil {
		return &ReadMemoryError{Address: addr, Err: err}
	}
	if bytesRead != uintptr(len(buf)) {
		return &ReadMemoryError{Address: addr, Err: fmt.Errorf("short read: %d of %d bytes", bytesRead, len(buf))}
	}
	return nil
}

// FindModule implements Accessor. Module names compare case-insensitively.
func (p *Process) FindModule(name string) (Module, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, p.pid)
	if err != nil {
		return Module{}, fmt.Errorf("failed to create module snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))

	if err := windows.Module32First(snapshot, &me); err != nil {
		return Module{}, errors.Wrapf(ErrModuleNotFound, "%s", name)
	}

	for {
		moduleName := windows.UTF16ToString(me.Module[:])
		if strings.EqualFold(moduleName, name) {
			return Module{
				Name: moduleName,
				Region: Region{
					Base: Address(me.ModBaseAddr),
					Size: uint64(me.ModBaseSize),
				},
			}, nil
		}

		if err := windows.Module32Next(snapshot, &me); err != nil {
			break
		}
	}

	return Module{}, errors.Wrapf(ErrModuleNotFound, "%s", name)
}

// Regions implements RegionLister. Only committed, readable, non-guard
// regions are returned.
func (p *Process) Regions() ([]Region, error) {
	var (
		regions []Region
		mbi     windows.MemoryBasicInformation
		address uintptr
	)

	for {
		if err := windows.VirtualQueryEx(p.processHandle, address, &mbi, unsafe.Sizeof(mbi)); err != nil {
			break
		}

		baseAddr := mbi.BaseAddress
		regionSize := mbi.RegionSize
		if regionSize == 0 {
			break
		}

		if isReadableRegion(&mbi) {
			regions = append(regions, Region{Base: Address(baseAddr), Size: uint64(regionSize)})
		}

		// Move to next region
		next := baseAddr + regionSize
		if next <= address {
			break
		}
		address = next
	}

	return regions, nil
}

// isReadableRegion checks if a memory region is readable
func isReadableRegion(mbi *windows.MemoryBasicInformation) bool {
	isReadable := mbi.Protect&(windows.PAGE_READONLY|windows.PAGE_READWRITE|windows.PAGE_WRITECOPY|
		windows.PAGE_EXECUTE_READ|windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0
	isCommitted := mbi.State == windows.MEM_COMMIT
	isGuard := mbi.Protect&windows.PAGE_GUARD != 0

	return isReadable && isCommitted && !isGuard
}
