package rttiscanner

import (
	"context"
	"encoding/binary"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// TypeInfoSignature is the decorated name of the root type_info class.
const TypeInfoSignature = ".?AVtype_info@@"

// x64 MSVC RTTI layout. All "rva" fields are 32-bit offsets from the module base.
const (
	typeDescriptorNameOffset = 0x10 // TypeDescriptor.name
	locatorTypeOffset        = 0x0C // CompleteObjectLocator.pTypeDescriptor (rva)
	locatorHierarchyOffset   = 0x10 // CompleteObjectLocator.pClassDescriptor (rva)
	hierarchyCountOffset     = 0x08 // ClassHierarchyDescriptor.numBaseClasses
	hierarchyArrayOffset     = 0x0C // ClassHierarchyDescriptor.pBaseClassArray (rva)
	vtableMetaSize           = 0x08 // locator pointer stored right before the vtable

	maxBaseClasses = 1024
)

// RTTIInfo is one class recovered from a module.
type RTTIInfo struct {
	// VTable is the address of the first virtual function slot.
	VTable Address `json:"vtable" yaml:"vtable"`
	// VTableMeta is the slot before the vtable holding the locator pointer.
	VTableMeta Address `json:"vtable_meta" yaml:"vtable_meta"`
	// TypeName is the decorated class name, e.g. ".?AVFoo@@".
	TypeName string `json:"type_name" yaml:"type_name"`
	// BaseClasses is the flattened base class list, starting with the class itself.
	BaseClasses []string `json:"base_classes" yaml:"base_classes"`
}

// TypeDescriptor is the compiler's per-type record.
type TypeDescriptor struct {
	VTable Address
	Spare  uint64
	Name   string
}

// ReadTypeDescriptor reads the TypeDescriptor at addr.
func ReadTypeDescriptor(a Accessor, addr Address, maxNameLength int) (TypeDescriptor, error) {
	var hdr [16]byte
	if err := a.ReadMemory(addr, hdr[:]); err != nil {
		return TypeDescriptor{}, err
	}
	name, err := ReadRemoteString(a, addr.Add(typeDescriptorNameOffset), maxNameLength)
	if err != nil {
		return TypeDescriptor{}, err
	}
	return TypeDescriptor{
		VTable: Address(binary.LittleEndian.Uint64(hdr[:8])),
		Spare:  binary.LittleEndian.Uint64(hdr[8:]),
		Name:   name,
	}, nil
}

// DumpConfig tunes Dump. Zero values select the defaults.
type DumpConfig struct {
	// Workers is the number of candidates resolved in parallel (default: NumCPU).
	Workers int
	// PageSize is the read size used when scanning the snapshot.
	PageSize uint64
	// MaxNameLength bounds every type name read.
	MaxNameLength int
	// NameCacheSize is the number of type names kept in memory.
	NameCacheSize int
	// OnProgress is called from worker goroutines after each candidate.
	OnProgress func(done, total int)
}

func (c *DumpConfig) withDefaults() DumpConfig {
	var conf DumpConfig
	if c != nil {
		conf = *c
	}
	if conf.Workers <= 0 {
		conf.Workers = runtime.NumCPU()
	}
	if conf.PageSize == 0 {
		conf.PageSize = DefaultPageSize
	}
	if conf.MaxNameLength <= 0 {
		conf.MaxNameLength = 255
	}
	if conf.NameCacheSize <= 0 {
		conf.NameCacheSize = 4096
	}
	return conf
}

// Dump recovers the classes of a module from its RTTI. A missing module is an
// error; a module without RTTI, or one that cannot be read, yields no
// results. Failures on single candidates are skipped. Cancelling ctx stops
// the dump once running workers return.
func Dump(ctx context.Context, a Accessor, moduleName string, conf *DumpConfig) ([]RTTIInfo, error) {
	c := conf.withDefaults()

	mod, err := a.FindModule(moduleName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	img, failed, err := Snapshot(a, mod)
	if err != nil {
		if IsReadMemoryError(err) {
			log.WithField("module", mod.Name).Debugf("module unreadable: %v", err)
			return nil, nil
		}
		return nil, err
	}
	log.WithFields(log.Fields{
		"module":       mod.Name,
		"base":         mod.Base,
		"size":         mod.Size,
		"failed_pages": failed,
		"took":         time.Since(start),
	}).Debug("Snapshot")

	names, err := lru.New[Address, string](c.NameCacheSize)
	if err != nil {
		return nil, err
	}

	d := &dumper{
		live:  a,
		img:   img,
		mod:   mod,
		conf:  c,
		names: names,
	}

	anchor := d.find([]byte(TypeInfoSignature), true)
	if len(anchor) == 0 {
		log.WithField("module", mod.Name).Debug("no RTTI signature")
		return nil, nil
	}

	typeInfo, err := ReadTypeDescriptor(a, anchor[0]-typeDescriptorNameOffset, c.MaxNameLength)
	if err != nil {
		log.WithField("anchor", anchor[0]).Debugf("failed to read type_info descriptor: %v", err)
		return nil, nil
	}

	candidates := d.find(le64(uint64(typeInfo.VTable)), false)
	slices.Sort(candidates)
	candidates = slices.Compact(candidates)

	log.WithFields(log.Fields{
		"anchor":     anchor[0],
		"type_info":  typeInfo.VTable,
		"candidates": len(candidates),
	}).Debug("Resolving type descriptors")

	col := newCollector(c.Workers)
	total := len(candidates)
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)
	for _, td := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				n := completed.Add(1)
				if c.OnProgress != nil {
					c.OnProgress(int(n), total)
				}
			}()
			return d.resolve(gctx, td, col.publish)
		})
	}

	werr := g.Wait()
	results := col.close()
	if werr == nil {
		werr = ctx.Err()
	}
	if werr != nil {
		return nil, werr
	}

	log.WithFields(log.Fields{
		"module":     mod.Name,
		"classes":    len(results),
		"duplicates": col.dropped,
		"took":       time.Since(start),
	}).Debug("Dumped RTTI")

	return results, nil
}

type dumper struct {
	live  Accessor
	img   *Image
	mod   Module
	conf  DumpConfig
	names *lru.Cache[Address, string]
}

// find scans the snapshot for a literal byte sequence
func (d *dumper) find(needle []byte, findFirst bool) []Address {
	p, err := ParsePattern(BytesToPattern(needle))
	if err != nil {
		return nil
	}
	return RemoteSearchPattern(d.img, d.mod.Base, d.mod.Size, d.conf.PageSize, p, findFirst)
}

// resolve follows every reference to the type descriptor at td and publishes
// the classes whose locator is referenced from exactly one vtable.
func (d *dumper) resolve(ctx context.Context, td Address, publish func(RTTIInfo)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	refs := d.find(le32(uint32(td-d.mod.Base)), false)
	slices.Sort(refs)
	refs = slices.Compact(refs)

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if v, err := ReadUint64(d.live, td); err != nil || v == 0 {
			continue
		}
		if uint64(ref-d.mod.Base) < locatorTypeOffset {
			continue
		}

		locator := ref - locatorTypeOffset
		metas := d.find(le64(uint64(locator)), false)
		if len(metas) != 1 {
			continue
		}

		info, err := d.readInfo(td, locator)
		if err != nil {
			log.WithFields(log.Fields{
				"type_descriptor": td,
				"locator":         locator,
			}).Debugf("skipping candidate: %v", err)
			continue
		}
		info.VTableMeta = metas[0]
		info.VTable = metas[0].Add(vtableMetaSize)

		publish(info)
	}

	return nil
}

func (d *dumper) readInfo(td, locator Address) (RTTIInfo, error) {
	name, err := d.typeName(td)
	if err != nil {
		return RTTIInfo{}, err
	}

	hierarchy, err := d.rva(locator.Add(locatorHierarchyOffset))
	if err != nil {
		return RTTIInfo{}, err
	}
	count, err := ReadUint32(d.live, hierarchy.Add(hierarchyCountOffset))
	if err != nil {
		return RTTIInfo{}, err
	}
	if count > maxBaseClasses {
		return RTTIInfo{}, errors.Errorf("implausible base class count %d", count)
	}
	array, err := d.rva(hierarchy.Add(hierarchyArrayOffset))
	if err != nil {
		return RTTIInfo{}, err
	}

	bases := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		descriptor, err := d.rva(array.Add(uint64(i) * 4))
		if err != nil {
			return RTTIInfo{}, err
		}
		// BaseClassDescriptor starts with the rva of its TypeDescriptor
		baseType, err := d.rva(descriptor)
		if err != nil {
			return RTTIInfo{}, err
		}
		baseName, err := d.typeName(baseType)
		if err != nil {
			return RTTIInfo{}, err
		}
		bases = append(bases, baseName)
	}

	return RTTIInfo{TypeName: name, BaseClasses: bases}, nil
}

// rva reads a module-relative offset at addr and returns the absolute address
func (d *dumper) rva(addr Address) (Address, error) {
	off, err := ReadUint32(d.live, addr)
	if err != nil {
		return 0, err
	}
	return d.mod.Base.Add(uint64(off)), nil
}

func (d *dumper) typeName(td Address) (string, error) {
	if name, ok := d.names.Get(td); ok {
		return name, nil
	}
	name, err := ReadRemoteString(d.live, td.Add(typeDescriptorNameOffset), d.conf.MaxNameLength)
	if err != nil {
		return "", err
	}
	d.names.Add(td, name)
	return name, nil
}

func le32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func le64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}
