// Package models defines the domain types for Raido.
package models

// Kind identifies the type of a datablock in the live asset graph.
type Kind string

// Datablock kinds tracked in sidecars.
const (
	KindCollection Kind = "Collection"
	KindObject     Kind = "Object"
	KindWorld      Kind = "World"
	KindMaterial   Kind = "Material"
	KindBrush      Kind = "Brush"
	KindAction     Kind = "Action"
	KindNodeTree   Kind = "NodeTree"
	KindScene      Kind = "Scene"
)

// Kinds lists every tracked datablock kind in a stable order.
var Kinds = []Kind{
	KindCollection, KindObject, KindWorld, KindMaterial,
	KindBrush, KindAction, KindNodeTree, KindScene,
}

// Valid reports whether k is a tracked kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ResourceCategory identifies a class of external resource files.
type ResourceCategory string

// Resource categories tracked in sidecars.
const (
	ResourceTexture ResourceCategory = "texture"
	ResourceVideo   ResourceCategory = "video"
	ResourceAudio   ResourceCategory = "audio"
	ResourceText    ResourceCategory = "text"
	ResourceCache   ResourceCategory = "cache"
)

// ResourceCategories lists every category in a stable order.
var ResourceCategories = []ResourceCategory{
	ResourceTexture, ResourceVideo, ResourceAudio, ResourceText, ResourceCache,
}

// AssetRecord is a frozen snapshot of a datablock as last observed by the
// file that wrote the record. Records are regenerated wholesale on every
// sidecar write, never merged.
type AssetRecord struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// ResourceRecord describes an external resource file. Resources carry no
// stable identity; they are matched by display name within their category.
type ResourceRecord struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// LibraryRecord is the sidecar snapshot of one linked library: its stable
// UUID plus the assets referenced from it, as cached by the writing file.
type LibraryRecord struct {
	UUID   string        `json:"uuid"`
	Assets []AssetRecord `json:"assets"`
}

// FileRecord is the sidecar snapshot of the writing file itself. It is the
// authoritative record for every datablock local to that file.
type FileRecord struct {
	UUID   string        `json:"uuid"`
	Assets []AssetRecord `json:"assets"`
}

// RenameOp is one detected divergence between a library's authoritative
// record of an asset and the main file's cached record of it.
type RenameOp struct {
	UUID        string `json:"uuid"`
	LibraryPath string `json:"library_path"`
	Kind        Kind   `json:"kind"`
	OldName     string `json:"old_name"`
	NewName     string `json:"new_name"`
}
