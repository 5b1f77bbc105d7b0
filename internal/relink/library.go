package relink

import (
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/identity"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

// LibraryResolver repairs the on-disk paths of linked libraries from the
// main sidecar's Linked Libraries entries.
type LibraryResolver struct {
	g     graph.Graph
	reg   *identity.Registry
	store storage.Provider
	log   *slog.Logger
}

// NewLibraryResolver creates a LibraryResolver.
func NewLibraryResolver(g graph.Graph, reg *identity.Registry, store storage.Provider, log *slog.Logger) *LibraryResolver {
	return &LibraryResolver{g: g, reg: reg, store: store, log: log}
}

// Resolve processes every Linked Libraries entry of the main sidecar.
// It returns the applied operations and per-entry diagnostics. A missing
// vault root aborts the whole pass.
func (r *LibraryResolver) Resolve(main *sidecar.Document) ([]Op, []Diagnostic, error) {
	if r.store == nil {
		return nil, nil, apperr.ErrVaultRootUnconfigured
	}

	var ops []Op
	var diags []Diagnostic
	claimed := make(map[graph.LibHandle]bool)

	for _, entry := range main.Libraries {
		// Legacy sidecars linked libraries through their sidecar document;
		// both encodings resolve to the blend path.
		target := sidecar.StripSidecarSuffix(entry.Path)

		if !r.store.Exists(target) {
			diags = append(diags, Diagnostic{
				Class:   ClassMissingFile,
				Path:    target,
				Message: "library file not found on disk",
			})
			continue
		}

		live, found := r.match(entry.Record.UUID, target, claimed)
		if !found {
			live, found = r.repurposeBroken(claimed)
			if !found {
				diags = append(diags, Diagnostic{
					Class:   ClassUnresolved,
					Path:    target,
					Message: "no open library matches and none is broken; manual action required",
				})
				continue
			}
			claimed[live] = true
			if entry.Record.UUID != "" {
				r.g.SetLibProp(live, identity.PropLibUUID, entry.Record.UUID)
			}
			if op, diag := r.repoint(live, target, OpLibraryRepurposed); diag != nil {
				diags = append(diags, *diag)
			} else if op != nil {
				ops = append(ops, *op)
			}
			continue
		}

		claimed[live] = true
		if r.g.LibraryPath(live) == target {
			continue
		}
		if op, diag := r.repoint(live, target, OpLibraryRelinked); diag != nil {
			diags = append(diags, *diag)
		} else if op != nil {
			ops = append(ops, *op)
		}
	}

	// Batch, idempotent: the host re-normalizes all external paths to the
	// vault-relative form after the pass.
	r.g.NormalizePaths()

	return ops, diags, nil
}

// match finds an open library for a sidecar entry: first by stored UUID,
// then by filename. First match wins.
func (r *LibraryResolver) match(uuid, target string, claimed map[graph.LibHandle]bool) (graph.LibHandle, bool) {
	if uuid != "" {
		for _, l := range r.g.Libraries() {
			if claimed[l] {
				continue
			}
			if r.reg.LibraryUUID(l, nil) == uuid {
				return l, true
			}
		}
	}
	base := path.Base(target)
	for _, l := range r.g.Libraries() {
		if claimed[l] {
			continue
		}
		if path.Base(r.g.LibraryPath(l)) == base {
			return l, true
		}
	}
	return 0, false
}

// repurposeBroken returns a currently-missing library that can take over
// the entry. Creating a brand-new link is an explicit non-goal.
func (r *LibraryResolver) repurposeBroken(claimed map[graph.LibHandle]bool) (graph.LibHandle, bool) {
	for _, l := range r.g.Libraries() {
		if !claimed[l] && r.g.LibraryMissing(l) {
			return l, true
		}
	}
	return 0, false
}

// repoint moves a live library to target and reloads it. On failure the
// previous path is restored so no partial state is left behind.
func (r *LibraryResolver) repoint(l graph.LibHandle, target, opType string) (*Op, *Diagnostic) {
	prior := r.g.LibraryPath(l)
	r.g.SetLibraryPath(l, target)

	err := r.g.ReloadLibrary(l)
	if err == nil && !r.g.LibraryMissing(l) {
		r.log.Info("library: relinked",
			slog.String("from", prior),
			slog.String("to", target))
		return &Op{Type: opType, Path: target, Detail: fmt.Sprintf("was %s", prior)}, nil
	}

	r.g.SetLibraryPath(l, prior)
	msg := "library still missing after reload"
	if err != nil {
		msg = err.Error()
	}
	r.log.Warn("library: reload failed",
		slog.String("path", target),
		slog.String("error", msg))
	return nil, &Diagnostic{Class: ClassReloadFailure, Path: target, Message: msg}
}
