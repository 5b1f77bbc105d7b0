package graph

import (
	"fmt"

	"github.com/starford/raido/internal/models"
)

type block struct {
	name    string
	kind    models.Kind
	lib     LibHandle // LocalLib for local blocks
	props   map[string]string
	invalid bool
}

type library struct {
	path    string
	missing bool
	props   map[string]string
}

type resource struct {
	name string
	cat  models.ResourceCategory
	path string
}

// Memory is an in-memory Graph implementation. It serves as the reference
// host for the engine and as the test double for every resolver.
type Memory struct {
	nextBlock Handle
	nextLib   LibHandle
	nextRes   ResHandle

	blocks    map[Handle]*block
	libs      map[LibHandle]*library
	resources map[ResHandle]*resource

	reloadErr          map[LibHandle]error
	missingAfterReload map[LibHandle]bool

	// Counters observable by tests.
	Reloads        map[LibHandle]int
	ImageReloads   map[ResHandle]int
	TextReimports  map[ResHandle]int
	NormalizeCalls int
}

// Verify *Memory satisfies the full capability surface at compile time.
var _ Graph = (*Memory)(nil)

// NewMemory creates an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{
		blocks:             make(map[Handle]*block),
		libs:               make(map[LibHandle]*library),
		resources:          make(map[ResHandle]*resource),
		reloadErr:          make(map[LibHandle]error),
		missingAfterReload: make(map[LibHandle]bool),
		Reloads:            make(map[LibHandle]int),
		ImageReloads:       make(map[ResHandle]int),
		TextReimports:      make(map[ResHandle]int),
	}
}

// AddLocal adds a datablock owned by the main file.
func (m *Memory) AddLocal(name string, kind models.Kind) Handle {
	return m.add(name, kind, LocalLib)
}

// AddLinked adds a datablock referenced from the given library.
func (m *Memory) AddLinked(lib LibHandle, name string, kind models.Kind) Handle {
	return m.add(name, kind, lib)
}

func (m *Memory) add(name string, kind models.Kind, lib LibHandle) Handle {
	m.nextBlock++
	h := m.nextBlock
	m.blocks[h] = &block{name: name, kind: kind, lib: lib, props: make(map[string]string)}
	return h
}

// AddLibrary opens a library at the given path.
func (m *Memory) AddLibrary(path string) LibHandle {
	m.nextLib++
	l := m.nextLib
	m.libs[l] = &library{path: path, props: make(map[string]string)}
	return l
}

// AddResource adds an external resource.
func (m *Memory) AddResource(cat models.ResourceCategory, name, path string) ResHandle {
	m.nextRes++
	h := m.nextRes
	m.resources[h] = &resource{name: name, cat: cat, path: path}
	return h
}

// SetMissing flags a library as broken.
func (m *Memory) SetMissing(l LibHandle, missing bool) {
	if lib := m.libs[l]; lib != nil {
		lib.missing = missing
	}
}

// FailReload makes ReloadLibrary return err for the given library.
func (m *Memory) FailReload(l LibHandle, err error) {
	m.reloadErr[l] = err
}

// MissingAfterReload keeps the missing flag set even after a reload.
func (m *Memory) MissingAfterReload(l LibHandle) {
	m.missingAfterReload[l] = true
}

// InvalidateHandle simulates a reload dropping an in-memory reference.
func (m *Memory) InvalidateHandle(h Handle) {
	if b := m.blocks[h]; b != nil {
		b.invalid = true
	}
}

// ListByKind enumerates datablocks of a kind in handle order.
func (m *Memory) ListByKind(kind models.Kind) []Handle {
	var out []Handle
	for h := Handle(1); h <= m.nextBlock; h++ {
		if b, ok := m.blocks[h]; ok && !b.invalid && b.kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// Name returns the display name, or false for a stale handle.
func (m *Memory) Name(h Handle) (string, bool) {
	b, ok := m.blocks[h]
	if !ok || b.invalid {
		return "", false
	}
	return b.name, true
}

// KindOf returns the datablock's kind.
func (m *Memory) KindOf(h Handle) models.Kind {
	if b, ok := m.blocks[h]; ok {
		return b.kind
	}
	return ""
}

// LibraryOf returns the owning library; ok is false for local blocks.
func (m *Memory) LibraryOf(h Handle) (LibHandle, bool) {
	b, ok := m.blocks[h]
	if !ok || b.lib == LocalLib {
		return LocalLib, false
	}
	return b.lib, true
}

// GetProp reads a datablock custom property.
func (m *Memory) GetProp(h Handle, key string) (string, bool) {
	b, ok := m.blocks[h]
	if !ok || b.invalid {
		return "", false
	}
	v, ok := b.props[key]
	return v, ok
}

// SetProp writes a datablock custom property.
func (m *Memory) SetProp(h Handle, key, value string) {
	if b, ok := m.blocks[h]; ok && !b.invalid {
		b.props[key] = value
	}
}

// Find locates a datablock by owning library, kind, and name.
func (m *Memory) Find(lib LibHandle, kind models.Kind, name string) (Handle, bool) {
	for h := Handle(1); h <= m.nextBlock; h++ {
		b, ok := m.blocks[h]
		if ok && !b.invalid && b.lib == lib && b.kind == kind && b.name == name {
			return h, true
		}
	}
	return 0, false
}

// FindByProp locates a datablock by custom property value.
func (m *Memory) FindByProp(key, value string) (Handle, bool) {
	for h := Handle(1); h <= m.nextBlock; h++ {
		b, ok := m.blocks[h]
		if ok && !b.invalid && b.props[key] == value {
			return h, true
		}
	}
	return 0, false
}

// RelocateReference re-points a linked datablock to a new name within its
// owning library.
func (m *Memory) RelocateReference(h Handle, newName string) error {
	b, ok := m.blocks[h]
	if !ok || b.invalid {
		return fmt.Errorf("graph: stale handle %d", h)
	}
	if b.lib == LocalLib {
		return fmt.Errorf("graph: datablock %q is local, not a linked reference", b.name)
	}
	b.name = newName
	return nil
}

// Libraries enumerates every open library in handle order.
func (m *Memory) Libraries() []LibHandle {
	var out []LibHandle
	for l := LibHandle(1); l <= m.nextLib; l++ {
		if _, ok := m.libs[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// LibraryPath returns the library's current path.
func (m *Memory) LibraryPath(l LibHandle) string {
	if lib, ok := m.libs[l]; ok {
		return lib.path
	}
	return ""
}

// SetLibraryPath repoints the library.
func (m *Memory) SetLibraryPath(l LibHandle, path string) {
	if lib, ok := m.libs[l]; ok {
		lib.path = path
	}
}

// ReloadLibrary reloads the library, honoring injected test failures.
func (m *Memory) ReloadLibrary(l LibHandle) error {
	lib, ok := m.libs[l]
	if !ok {
		return fmt.Errorf("graph: unknown library %d", l)
	}
	m.Reloads[l]++
	if err := m.reloadErr[l]; err != nil {
		return err
	}
	lib.missing = m.missingAfterReload[l]
	return nil
}

// LibraryMissing reports the broken-reference flag.
func (m *Memory) LibraryMissing(l LibHandle) bool {
	lib, ok := m.libs[l]
	return ok && lib.missing
}

// GetLibProp reads a library custom property.
func (m *Memory) GetLibProp(l LibHandle, key string) (string, bool) {
	lib, ok := m.libs[l]
	if !ok {
		return "", false
	}
	v, ok := lib.props[key]
	return v, ok
}

// SetLibProp writes a library custom property.
func (m *Memory) SetLibProp(l LibHandle, key, value string) {
	if lib, ok := m.libs[l]; ok {
		lib.props[key] = value
	}
}

// NormalizePaths is a no-op for the in-memory graph beyond counting calls;
// paths are already stored vault-relative.
func (m *Memory) NormalizePaths() {
	m.NormalizeCalls++
}

// ListResources enumerates resources of one category in handle order.
func (m *Memory) ListResources(cat models.ResourceCategory) []ResHandle {
	var out []ResHandle
	for h := ResHandle(1); h <= m.nextRes; h++ {
		if r, ok := m.resources[h]; ok && r.cat == cat {
			out = append(out, h)
		}
	}
	return out
}

// ResourceName returns the display name.
func (m *Memory) ResourceName(h ResHandle) (string, bool) {
	r, ok := m.resources[h]
	if !ok {
		return "", false
	}
	return r.name, true
}

// ResourcePath returns the resource's current path.
func (m *Memory) ResourcePath(h ResHandle) string {
	if r, ok := m.resources[h]; ok {
		return r.path
	}
	return ""
}

// SetResourcePath repoints the resource.
func (m *Memory) SetResourcePath(h ResHandle, path string) {
	if r, ok := m.resources[h]; ok {
		r.path = path
	}
}

// ReloadImage re-reads an image resource.
func (m *Memory) ReloadImage(h ResHandle) error {
	if _, ok := m.resources[h]; !ok {
		return fmt.Errorf("graph: unknown resource %d", h)
	}
	m.ImageReloads[h]++
	return nil
}

// ReimportText replaces the in-memory text with the file's content.
func (m *Memory) ReimportText(h ResHandle) error {
	if _, ok := m.resources[h]; !ok {
		return fmt.Errorf("graph: unknown resource %d", h)
	}
	m.TextReimports[h]++
	return nil
}
