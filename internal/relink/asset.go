package relink

import (
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/identity"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

// AssetResolver repairs renamed linked assets by comparing the main
// sidecar's cached records against each library's own authoritative
// Current File record. It must run before any library reload in the same
// cycle: a reload invalidates the in-memory references it inspects.
type AssetResolver struct {
	g     graph.Graph
	store storage.Provider
	log   *slog.Logger
}

// NewAssetResolver creates an AssetResolver.
func NewAssetResolver(g graph.Graph, store storage.Provider, log *slog.Logger) *AssetResolver {
	return &AssetResolver{g: g, store: store, log: log}
}

// nameKind is the pair identity comparisons run over.
type nameKind struct {
	name string
	kind models.Kind
}

// Resolve runs the two-pass comparison for every library referenced by the
// main sidecar and applies the resulting rename operations.
func (r *AssetResolver) Resolve(main *sidecar.Document) ([]models.RenameOp, []Diagnostic, error) {
	if r.store == nil {
		return nil, nil, apperr.ErrVaultRootUnconfigured
	}

	var renames []models.RenameOp
	var diags []Diagnostic

	for _, entry := range main.Libraries {
		if len(entry.Record.Assets) == 0 {
			continue
		}

		// Pass 2: the library's own sidecar is the authority for current
		// names. No sidecar, or no Current File data, means this library's
		// assets are simply not compared this cycle.
		authoritative, libDiags := r.authoritativeRecords(entry.Path)
		diags = append(diags, libDiags...)
		if authoritative == nil {
			continue
		}

		live, haveLive := r.liveLibrary(entry.Path, entry.Record.UUID)
		if !haveLive {
			// Nothing to apply renames to; the library resolver deals
			// with missing live libraries.
			continue
		}

		// Pass 1 data is the main sidecar's cached view of this library,
		// iterated in record order for deterministic operations.
		for _, cached := range entry.Record.Assets {
			if cached.UUID == "" {
				continue
			}
			current, tracked := authoritative[cached.UUID]
			if !tracked {
				// No longer tracked upstream. Not an error, not a rename.
				continue
			}
			if current.name == cached.Name {
				continue
			}
			op := models.RenameOp{
				UUID:        cached.UUID,
				LibraryPath: entry.Path,
				Kind:        current.kind,
				OldName:     cached.Name,
				NewName:     current.name,
			}
			applied, diag := r.apply(live, op)
			if diag != nil {
				diags = append(diags, *diag)
			}
			if applied {
				renames = append(renames, op)
			}
		}
	}

	return renames, diags, nil
}

// authoritativeRecords parses a library's own sidecar and returns its
// Current File records keyed by UUID. A nil map means no data this cycle.
// Identity collisions in the authoritative file are surfaced as conflicts
// and the colliding entries are withheld from comparison.
func (r *AssetResolver) authoritativeRecords(libPath string) (map[string]nameKind, []Diagnostic) {
	raw, err := r.store.Read(sidecar.SidecarPath(libPath))
	if err != nil {
		return nil, nil
	}
	doc := sidecar.Parse(raw)

	var diags []Diagnostic
	for _, d := range doc.Diags {
		diags = append(diags, Diagnostic{
			Class:   ClassParse,
			Path:    sidecar.SidecarPath(libPath),
			Message: fmt.Sprintf("line %d: %s", d.Line, d.Message),
		})
	}
	if doc.CurrentFile == nil {
		return nil, diags
	}

	out := make(map[string]nameKind)
	conflicted := make(map[string]bool)
	pairs := make(map[nameKind]string)
	for _, a := range doc.CurrentFile.Record.Assets {
		if a.UUID == "" {
			continue
		}
		nk := nameKind{name: a.Name, kind: a.Kind}
		if prev, dup := pairs[nk]; dup && prev != a.UUID {
			// Two assets in the same file collide on (name, kind); no
			// tie-break is defined, so surface it instead of guessing.
			diags = append(diags, Diagnostic{
				Class:   ClassConflict,
				Path:    sidecar.SidecarPath(libPath),
				Message: fmt.Sprintf("assets %s and %s collide on (%s, %s)", prev, a.UUID, a.Name, a.Kind),
			})
			conflicted[prev] = true
			conflicted[a.UUID] = true
		}
		pairs[nk] = a.UUID
		if _, exists := out[a.UUID]; exists {
			diags = append(diags, Diagnostic{
				Class:   ClassConflict,
				Path:    sidecar.SidecarPath(libPath),
				Message: fmt.Sprintf("duplicate identity %s in authoritative record", a.UUID),
			})
			conflicted[a.UUID] = true
			continue
		}
		out[a.UUID] = nk
	}
	for uuid := range conflicted {
		delete(out, uuid)
	}
	return out, diags
}

// liveLibrary finds the open library for a sidecar entry, by path first,
// then by stored UUID.
func (r *AssetResolver) liveLibrary(libPath, uuid string) (graph.LibHandle, bool) {
	for _, l := range r.g.Libraries() {
		if sidecar.StripSidecarSuffix(r.g.LibraryPath(l)) == libPath {
			return l, true
		}
	}
	if uuid != "" {
		for _, l := range r.g.Libraries() {
			if v, ok := r.g.GetLibProp(l, identity.PropLibUUID); ok && v == uuid {
				return l, true
			}
		}
	}
	return 0, false
}

// apply locates the live datablock, restamps its UUID, relocates the
// reference to the new name, and verifies the result. It reports whether a
// rename was actually performed: a reference already at the new name, or
// one with no live counterpart, produces no operation, which is what keeps
// a second cycle over unchanged state at zero operations.
func (r *AssetResolver) apply(lib graph.LibHandle, op models.RenameOp) (bool, *Diagnostic) {
	h, found := r.g.Find(lib, op.Kind, op.OldName)
	if found {
		// Opportunistic restamp lets future cycles match by UUID directly.
		r.g.SetProp(h, identity.PropUUID, op.UUID)
	} else {
		h, found = r.g.FindByProp(identity.PropUUID, op.UUID)
	}
	if !found {
		// Identity has no live counterpart this cycle; skipped silently.
		r.log.Debug("asset: no live datablock for rename",
			slog.String("uuid", op.UUID),
			slog.String("old", op.OldName))
		return false, nil
	}
	if name, ok := r.g.Name(h); ok && name == op.NewName {
		return false, nil
	}

	if err := r.g.RelocateReference(h, op.NewName); err != nil {
		return false, &Diagnostic{
			Class:   ClassUnresolved,
			Path:    op.LibraryPath,
			Message: fmt.Sprintf("relocate %s -> %s: %v", op.OldName, op.NewName, err),
		}
	}

	r.log.Info("asset: renamed",
		slog.String("library", op.LibraryPath),
		slog.String("old", op.OldName),
		slog.String("new", op.NewName))

	if !r.verify(lib, h, op) {
		return true, &Diagnostic{
			Class:   ClassUnverifiedRename,
			Path:    op.LibraryPath,
			Message: fmt.Sprintf("rename %s -> %s applied but not verified", op.OldName, op.NewName),
		}
	}
	return true, nil
}

// verify re-fetches the renamed datablock: by session handle first, then
// by UUID, then by (library, new name).
func (r *AssetResolver) verify(lib graph.LibHandle, h graph.Handle, op models.RenameOp) bool {
	if name, ok := r.g.Name(h); ok && name == op.NewName {
		return true
	}
	if byID, ok := r.g.FindByProp(identity.PropUUID, op.UUID); ok {
		if name, valid := r.g.Name(byID); valid && name == op.NewName {
			return true
		}
	}
	_, ok := r.g.Find(lib, op.Kind, op.NewName)
	return ok
}
