// Package graph defines the live-asset-graph capability surface the relink
// engine consumes from its host, hiding the host's per-kind container
// irregularities behind one uniform interface.
package graph

import "github.com/starford/raido/internal/models"

// Handle is a stable session handle for a datablock. It survives renames
// but may be invalidated by a library reload.
type Handle int64

// LibHandle is a session handle for a linked library.
type LibHandle int64

// ResHandle is a session handle for an external resource.
type ResHandle int64

// LocalLib is the LibHandle of datablocks owned by the main file.
const LocalLib LibHandle = 0

// Datablocks is the datablock capability group.
type Datablocks interface {
	// ListByKind enumerates every datablock of one kind, local and linked.
	ListByKind(kind models.Kind) []Handle
	// Name returns the display name, or false if the handle is no longer
	// valid (e.g. after a library reload).
	Name(h Handle) (string, bool)
	// KindOf returns the datablock's kind.
	KindOf(h Handle) models.Kind
	// LibraryOf returns the owning library; ok is false for local blocks.
	LibraryOf(h Handle) (LibHandle, bool)
	// GetProp reads a string custom property.
	GetProp(h Handle, key string) (string, bool)
	// SetProp writes a string custom property.
	SetProp(h Handle, key, value string)
	// Find locates a datablock by owning library, kind, and name.
	// LocalLib matches local blocks.
	Find(lib LibHandle, kind models.Kind, name string) (Handle, bool)
	// FindByProp locates a datablock whose custom property equals value.
	FindByProp(key, value string) (Handle, bool)
	// RelocateReference re-points a linked datablock to a different name
	// within its owning library.
	RelocateReference(h Handle, newName string) error
}

// Libraries is the linked-library capability group.
type Libraries interface {
	// Libraries enumerates every open library.
	Libraries() []LibHandle
	// LibraryPath returns the library's current path as the host stores it.
	LibraryPath(l LibHandle) string
	// SetLibraryPath repoints the library without reloading it.
	SetLibraryPath(l LibHandle, path string)
	// ReloadLibrary reloads the library from its current path.
	ReloadLibrary(l LibHandle) error
	// LibraryMissing reports the host's broken-reference flag.
	LibraryMissing(l LibHandle) bool
	// GetLibProp reads a string custom property on the library.
	GetLibProp(l LibHandle, key string) (string, bool)
	// SetLibProp writes a string custom property on the library.
	SetLibProp(l LibHandle, key, value string)
	// NormalizePaths re-normalizes every external path to the
	// vault-relative form. Idempotent batch operation.
	NormalizePaths()
}

// Resources is the external-resource capability group.
type Resources interface {
	// ListResources enumerates resources of one category.
	ListResources(cat models.ResourceCategory) []ResHandle
	// ResourceName returns the display name, or false for a stale handle.
	ResourceName(h ResHandle) (string, bool)
	// ResourcePath returns the resource's current file path.
	ResourcePath(h ResHandle) string
	// SetResourcePath repoints the resource without reloading it.
	SetResourcePath(h ResHandle, path string)
	// ReloadImage re-reads an image resource from its current path.
	ReloadImage(h ResHandle) error
	// ReimportText replaces the in-memory text with the file's content.
	ReimportText(h ResHandle) error
}

// Graph is the full capability surface of the host's live asset graph.
type Graph interface {
	Datablocks
	Libraries
	Resources
}
