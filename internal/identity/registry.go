// Package identity assigns and propagates the stable UUIDs that let
// sidecars agree on what an asset is while its name and path drift.
package identity

import (
	"github.com/google/uuid"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/sidecar"
)

// Custom property keys stamped on datablocks and libraries.
const (
	PropUUID    = "raido_uuid"
	PropLibUUID = "raido_lib_uuid"
)

// Registry mediates UUID assignment against the live graph. Local
// datablocks get generated UUIDs; linked datablocks only ever adopt the
// UUID recorded by the file that owns them.
type Registry struct {
	g graph.Graph
}

// New creates a Registry over the given graph.
func New(g graph.Graph) *Registry {
	return &Registry{g: g}
}

// FileUUID returns the stable UUID for the main file itself, reusing the
// previous sidecar's value when one exists.
func (r *Registry) FileUUID(prev *sidecar.Document) string {
	if prev != nil && prev.CurrentFile != nil && prev.CurrentFile.Record.UUID != "" {
		return prev.CurrentFile.Record.UUID
	}
	return uuid.NewString()
}

// EnsureLocalUUID returns the UUID for a local datablock, assigning one if
// needed. Before generating, the previous sidecar is consulted by
// (name, kind): a re-save after an external edit stripped the stored
// property must not churn the UUID.
func (r *Registry) EnsureLocalUUID(h graph.Handle, prev *sidecar.Document) string {
	if v, ok := r.g.GetProp(h, PropUUID); ok && v != "" {
		return v
	}
	name, ok := r.g.Name(h)
	if !ok {
		return ""
	}
	if prev != nil {
		if rec, found := prev.AssetByNameKind(name, r.g.KindOf(h)); found && rec.UUID != "" {
			r.g.SetProp(h, PropUUID, rec.UUID)
			return rec.UUID
		}
	}
	id := uuid.NewString()
	r.g.SetProp(h, PropUUID, id)
	return id
}

// AdoptLinkedUUID resolves a linked datablock's UUID from the owning
// library's authoritative record, matched by (name, kind). It never
// generates: until the owner's sidecar supplies a UUID the identity stays
// unresolved and ok is false.
func (r *Registry) AdoptLinkedUUID(h graph.Handle, owner *sidecar.Document) (string, bool) {
	if v, found := r.g.GetProp(h, PropUUID); found && v != "" {
		return v, true
	}
	if owner == nil {
		return "", false
	}
	name, valid := r.g.Name(h)
	if !valid {
		return "", false
	}
	rec, found := owner.AssetByNameKind(name, r.g.KindOf(h))
	if !found || rec.UUID == "" {
		return "", false
	}
	r.g.SetProp(h, PropUUID, rec.UUID)
	return rec.UUID, true
}

// LibraryUUID returns the stable identity for a library. A stored UUID
// always wins; the library's own sidecar is the next authority; until
// either exists, a deterministic hash of the path stands in.
func (r *Registry) LibraryUUID(l graph.LibHandle, own *sidecar.Document) string {
	if v, ok := r.g.GetLibProp(l, PropLibUUID); ok && v != "" {
		return v
	}
	if own != nil && own.CurrentFile != nil && own.CurrentFile.Record.UUID != "" {
		id := own.CurrentFile.Record.UUID
		r.g.SetLibProp(l, PropLibUUID, id)
		return id
	}
	return checksum.PathID(r.g.LibraryPath(l))
}

// CollectLocalAssets snapshots every local datablock as an AssetRecord,
// ensuring each has a UUID first. This is the authoritative record the
// sidecar writer emits for the Current File section.
func (r *Registry) CollectLocalAssets(prev *sidecar.Document) []models.AssetRecord {
	var out []models.AssetRecord
	for _, kind := range models.Kinds {
		for _, h := range r.g.ListByKind(kind) {
			if _, linked := r.g.LibraryOf(h); linked {
				continue
			}
			name, ok := r.g.Name(h)
			if !ok {
				continue
			}
			id := r.EnsureLocalUUID(h, prev)
			if id == "" {
				continue
			}
			out = append(out, models.AssetRecord{UUID: id, Name: name, Kind: kind})
		}
	}
	return out
}

// CollectLinkedAssets snapshots the datablocks referenced from one library.
// Unresolved identities (no stored UUID and no authoritative record yet)
// are omitted: a cache entry without a UUID cannot participate in rename
// comparison and would only churn.
func (r *Registry) CollectLinkedAssets(l graph.LibHandle, owner *sidecar.Document) []models.AssetRecord {
	var out []models.AssetRecord
	for _, kind := range models.Kinds {
		for _, h := range r.g.ListByKind(kind) {
			lib, linked := r.g.LibraryOf(h)
			if !linked || lib != l {
				continue
			}
			name, ok := r.g.Name(h)
			if !ok {
				continue
			}
			id, resolved := r.AdoptLinkedUUID(h, owner)
			if !resolved {
				continue
			}
			out = append(out, models.AssetRecord{UUID: id, Name: name, Kind: kind})
		}
	}
	return out
}
