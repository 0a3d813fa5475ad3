package rttiscanner

import (
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SnapshotPageSize is the read size used when a module cannot be read in one go.
const SnapshotPageSize = 0x1000

// Image is a point-in-time copy of a module. It serves reads from the copy
// at the module's original addresses, so it can stand in for the process.
type Image struct {
	Name string
	Base Address
	Data []byte
}

type imageMeta struct {
	Name string `yaml:"name"`
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// NewImage wraps data that was loaded at base.
func NewImage(name string, base Address, data []byte) *Image {
	return &Image{Name: name, Base: base, Data: data}
}

// Snapshot copies a module out of the target. The whole module is read at
// once; if that fails it is read page by page and unreadable pages are left
// zeroed. It returns the number of pages that could not be read.
func Snapshot(a Accessor, m Module) (*Image, int, error) {
	data := make([]byte, m.Size)
	img := NewImage(m.Name, m.Base, data)
	if m.Size == 0 {
		return img, 0, nil
	}

	if err := a.ReadMemory(m.Base, data); err == nil {
		return img, 0, nil
	}

	var ok, failed int
	for off := uint64(0); off < m.Size; off += SnapshotPageSize {
		n := min(uint64(SnapshotPageSize), m.Size-off)
		if err := a.ReadMemory(m.Base.Add(off), data[off:off+n]); err != nil {
			clear(data[off : off+n])
			failed++
			continue
		}
		ok++
	}

	log.WithFields(log.Fields{
		"module": m.Name,
		"ok":     ok,
		"failed": failed,
	}).Debug("Read module page by page")

	if ok == 0 {
		return nil, failed, &ReadMemoryError{Address: m.Base}
	}

	return img, failed, nil
}

// Module returns the module the image was taken from
func (img *Image) Module() Module {
	return Module{Name: img.Name, Region: Region{Base: img.Base, Size: uint64(len(img.Data))}}
}

// ReadMemory implements Accessor
func (img *Image) ReadMemory(addr Address, buf []byte) error {
	if !img.Module().Contains(addr, uint64(len(buf))) {
		return &ReadMemoryError{Address: addr}
	}
	off := uint64(addr - img.Base)
	copy(buf, img.Data[off:])
	return nil
}

// FindModule implements Accessor
func (img *Image) FindModule(name string) (Module, error) {
	if !strings.EqualFold(name, img.Name) {
		return Module{}, errors.Wrapf(ErrModuleNotFound, "%s", name)
	}
	return img.Module(), nil
}

// Regions implements RegionLister
func (img *Image) Regions() ([]Region, error) {
	return []Region{img.Module().Region}, nil
}

// Close implements io.Closer
func (img *Image) Close() error {
	return nil
}

// Save writes the image bytes to path and its load address to path+".yaml".
func (img *Image) Save(path string) error {
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write image")
	}
	meta, err := yaml.Marshal(imageMeta{
		Name: img.Name,
		Base: uint64(img.Base),
		Size: uint64(len(img.Data)),
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path+".yaml", meta, 0o644); err != nil {
		return errors.Wrap(err, "failed to write image metadata")
	}
	return nil
}

// LoadImage reads an image written by Save.
func LoadImage(path string) (*Image, error) {
	raw, err := os.ReadFile(path + ".yaml")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image metadata")
	}
	var meta imageMeta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, errors.Wrap(err, "failed to parse image metadata")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	if uint64(len(data)) != meta.Size {
		return nil, errors.Errorf("image %s is %d bytes, metadata says %d", path, len(data), meta.Size)
	}
	return NewImage(meta.Name, Address(meta.Base), data), nil
}
