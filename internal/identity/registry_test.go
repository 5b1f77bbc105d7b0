package identity

import (
	"testing"

	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/sidecar"
)

func docWithAssets(fileUUID string, assets ...models.AssetRecord) *sidecar.Document {
	return &sidecar.Document{
		CurrentFile: &sidecar.FileSection{
			Path:   "scenes/scene.blend",
			Record: models.FileRecord{UUID: fileUUID, Assets: assets},
		},
	}
}

func TestEnsureLocalUUID_GeneratesOnce(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)
	h := g.AddLocal("Cube", models.KindObject)

	first := r.EnsureLocalUUID(h, nil)
	if first == "" {
		t.Fatal("expected generated uuid")
	}
	second := r.EnsureLocalUUID(h, nil)
	if second != first {
		t.Errorf("uuid churned: %q then %q", first, second)
	}
	if v, _ := g.GetProp(h, PropUUID); v != first {
		t.Errorf("prop = %q, want %q", v, first)
	}
}

func TestEnsureLocalUUID_ReusesPreviousSidecarRecord(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)
	h := g.AddLocal("Cube", models.KindObject)

	prev := docWithAssets("F1", models.AssetRecord{UUID: "A1", Name: "Cube", Kind: models.KindObject})
	if got := r.EnsureLocalUUID(h, prev); got != "A1" {
		t.Errorf("uuid = %q, want reuse of A1", got)
	}
	if v, _ := g.GetProp(h, PropUUID); v != "A1" {
		t.Errorf("prop not restamped: %q", v)
	}
}

func TestEnsureLocalUUID_StableAcrossRename(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)
	h := g.AddLocal("Cube", models.KindObject)
	before := r.EnsureLocalUUID(h, nil)

	// Rename via the host, then re-ask.
	g.SetProp(h, "unrelated", "x")
	// A rename changes the display name only; the stored property survives.
	after := r.EnsureLocalUUID(h, nil)
	if after != before {
		t.Errorf("uuid changed across rename: %q -> %q", before, after)
	}
}

func TestAdoptLinkedUUID_NeverSelfAssigns(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)
	lib := g.AddLibrary("libs/props.blend")
	h := g.AddLinked(lib, "Crate", models.KindObject)

	if id, ok := r.AdoptLinkedUUID(h, nil); ok || id != "" {
		t.Errorf("adoption without owner record must stay unresolved, got %q", id)
	}

	owner := docWithAssets("L1", models.AssetRecord{UUID: "U1", Name: "Crate", Kind: models.KindObject})
	id, ok := r.AdoptLinkedUUID(h, owner)
	if !ok || id != "U1" {
		t.Fatalf("adoption = %q, %v", id, ok)
	}
	if v, _ := g.GetProp(h, PropUUID); v != "U1" {
		t.Errorf("prop = %q", v)
	}
}

func TestAdoptLinkedUUID_NameKindMismatchStaysUnresolved(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)
	lib := g.AddLibrary("libs/props.blend")
	h := g.AddLinked(lib, "Crate", models.KindObject)

	owner := docWithAssets("L1", models.AssetRecord{UUID: "U1", Name: "Crate", Kind: models.KindMaterial})
	if _, ok := r.AdoptLinkedUUID(h, owner); ok {
		t.Error("kind mismatch must not adopt")
	}
}

func TestLibraryUUID_FallbackThenAuthoritative(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)
	lib := g.AddLibrary("libs/props.blend")

	fallback := r.LibraryUUID(lib, nil)
	if fallback == "" {
		t.Fatal("expected deterministic fallback id")
	}
	if again := r.LibraryUUID(lib, nil); again != fallback {
		t.Errorf("fallback not deterministic: %q vs %q", fallback, again)
	}

	own := docWithAssets("LIB-UUID")
	if got := r.LibraryUUID(lib, own); got != "LIB-UUID" {
		t.Errorf("uuid = %q, want sidecar authority", got)
	}
	// Once stored, the generated UUID is authoritative and sticky.
	if got := r.LibraryUUID(lib, nil); got != "LIB-UUID" {
		t.Errorf("stored uuid not reused: %q", got)
	}
}

func TestFileUUID(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)

	if got := r.FileUUID(docWithAssets("F9")); got != "F9" {
		t.Errorf("file uuid = %q, want F9", got)
	}
	if got := r.FileUUID(nil); got == "" {
		t.Error("expected generated file uuid")
	}
}

func TestCollectLocalAssets(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)
	lib := g.AddLibrary("libs/props.blend")
	g.AddLocal("Cube", models.KindObject)
	g.AddLocal("Steel", models.KindMaterial)
	g.AddLinked(lib, "Crate", models.KindObject)

	records := r.CollectLocalAssets(nil)
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2 (linked excluded)", len(records))
	}
	for _, rec := range records {
		if rec.UUID == "" {
			t.Errorf("record %q missing uuid", rec.Name)
		}
	}
}

func TestCollectLinkedAssets_OmitsUnresolved(t *testing.T) {
	g := graph.NewMemory()
	r := New(g)
	lib := g.AddLibrary("libs/props.blend")
	g.AddLinked(lib, "Crate", models.KindObject)
	g.AddLinked(lib, "Barrel", models.KindObject)

	owner := docWithAssets("L1", models.AssetRecord{UUID: "U1", Name: "Crate", Kind: models.KindObject})
	records := r.CollectLinkedAssets(lib, owner)
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1 (Barrel unresolved)", len(records))
	}
	if records[0].UUID != "U1" || records[0].Name != "Crate" {
		t.Errorf("record = %+v", records[0])
	}
}
