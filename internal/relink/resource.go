package relink

import (
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

// ResourceResolver repairs moved external resource files. Resources have
// no stable identity; matching is by exact display name within a category.
type ResourceResolver struct {
	g     graph.Graph
	store storage.Provider
	log   *slog.Logger
}

// NewResourceResolver creates a ResourceResolver.
func NewResourceResolver(g graph.Graph, store storage.Provider, log *slog.Logger) *ResourceResolver {
	return &ResourceResolver{g: g, store: store, log: log}
}

// Resolve repoints live resources whose sidecar-recorded path differs from
// the live one, with category-specific reload behavior.
func (r *ResourceResolver) Resolve(main *sidecar.Document) ([]Op, []Diagnostic, error) {
	if r.store == nil {
		return nil, nil, apperr.ErrVaultRootUnconfigured
	}

	var ops []Op
	var diags []Diagnostic

	for _, cat := range models.ResourceCategories {
		for _, rec := range main.Resources[cat] {
			h, found := r.findByName(cat, rec.Name)
			if !found {
				diags = append(diags, Diagnostic{
					Class:   ClassUnresolved,
					Path:    rec.Path,
					Message: fmt.Sprintf("%s resource %q not present in live graph", cat, rec.Name),
				})
				continue
			}
			livePath := r.g.ResourcePath(h)
			if livePath == rec.Path {
				continue
			}
			if !r.store.Exists(rec.Path) {
				diags = append(diags, Diagnostic{
					Class:   ClassMissingFile,
					Path:    rec.Path,
					Message: fmt.Sprintf("%s resource %q target does not exist", cat, rec.Name),
				})
				continue
			}

			r.g.SetResourcePath(h, rec.Path)
			if diag := r.refresh(cat, rec, h, livePath); diag != nil {
				diags = append(diags, *diag)
				continue
			}

			r.log.Info("resource: repointed",
				slog.String("category", string(cat)),
				slog.String("name", rec.Name),
				slog.String("from", livePath),
				slog.String("to", rec.Path))
			ops = append(ops, Op{
				Type:   OpResourceRepointed,
				Path:   rec.Path,
				Detail: fmt.Sprintf("%s %q was %s", cat, rec.Name, livePath),
			})
		}
	}

	return ops, diags, nil
}

// refresh applies the category-specific reload after a repoint: images are
// reloaded, text is re-imported (its in-memory content is not a pointer),
// video/audio/cache only need the path. On failure the prior path is
// restored.
func (r *ResourceResolver) refresh(cat models.ResourceCategory, rec models.ResourceRecord, h graph.ResHandle, prior string) *Diagnostic {
	var err error
	switch cat {
	case models.ResourceTexture:
		err = r.g.ReloadImage(h)
	case models.ResourceText:
		err = r.g.ReimportText(h)
	}
	if err == nil {
		return nil
	}
	r.g.SetResourcePath(h, prior)
	return &Diagnostic{
		Class:   ClassReloadFailure,
		Path:    rec.Path,
		Message: fmt.Sprintf("%s resource %q: %v", cat, rec.Name, err),
	}
}

// findByName locates a live resource by display name within a category.
func (r *ResourceResolver) findByName(cat models.ResourceCategory, name string) (graph.ResHandle, bool) {
	for _, h := range r.g.ListResources(cat) {
		if n, ok := r.g.ResourceName(h); ok && n == name {
			return h, true
		}
	}
	return 0, false
}
