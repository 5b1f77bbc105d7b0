package relink

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/identity"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

// writeLibSidecar writes a library's own sidecar whose Current File section
// is the authoritative record for its assets.
func writeLibSidecar(t *testing.T, store storage.Provider, libPath string, assets ...models.AssetRecord) {
	t.Helper()
	data := sidecar.Render(nil, sidecar.Data{
		FilePath:  libPath,
		File:      models.FileRecord{UUID: "LIB-" + libPath, Assets: assets},
		Libraries: nil,
		Resources: nil,
	})
	if err := store.Write(sidecar.SidecarPath(libPath), data); err != nil {
		t.Fatalf("write lib sidecar: %v", err)
	}
}

// mainDocWithLibrary builds the main file's parsed sidecar with one cached
// library entry.
func mainDocWithLibrary(libPath string, cached ...models.AssetRecord) *sidecar.Document {
	return &sidecar.Document{
		Libraries: []sidecar.LibrarySection{
			{Path: libPath, Record: models.LibraryRecord{UUID: "L1", Assets: cached}},
		},
	}
}

func TestAssetResolver_RenamePropagation(t *testing.T) {
	store := testStore(t)
	g := graph.NewMemory()
	lib := g.AddLibrary("libs/props.blend")
	block := g.AddLinked(lib, "Crate_v1", models.KindObject)

	writeLibSidecar(t, store, "libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v2", Kind: models.KindObject})
	main := mainDocWithLibrary("libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v1", Kind: models.KindObject})

	r := NewAssetResolver(g, store, testLogger())
	ops, diags, err := r.Resolve(main)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if len(ops) != 1 {
		t.Fatalf("ops = %+v, want exactly one rename", ops)
	}
	op := ops[0]
	if op.UUID != "U1" || op.OldName != "Crate_v1" || op.NewName != "Crate_v2" || op.Kind != models.KindObject {
		t.Errorf("op = %+v", op)
	}
	if name, _ := g.Name(block); name != "Crate_v2" {
		t.Errorf("live name = %q, want Crate_v2", name)
	}
	// Opportunistic restamp for direct UUID matching next cycle.
	if v, _ := g.GetProp(block, identity.PropUUID); v != "U1" {
		t.Errorf("uuid prop = %q", v)
	}

	// Second run over unchanged state: zero operations.
	ops, diags, err = r.Resolve(main)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("second run emitted %+v, want none", ops)
	}
	if len(diags) != 0 {
		t.Errorf("second run diags = %v", diags)
	}
}

func TestAssetResolver_UntrackedUpstreamIsNotARename(t *testing.T) {
	store := testStore(t)
	g := graph.NewMemory()
	lib := g.AddLibrary("libs/props.blend")
	g.AddLinked(lib, "Crate_v1", models.KindObject)

	// Authoritative record no longer lists U1 at all.
	writeLibSidecar(t, store, "libs/props.blend",
		models.AssetRecord{UUID: "U9", Name: "Other", Kind: models.KindObject})
	main := mainDocWithLibrary("libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v1", Kind: models.KindObject})

	ops, diags, err := NewAssetResolver(g, store, testLogger()).Resolve(main)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ops) != 0 || len(diags) != 0 {
		t.Errorf("ops = %+v diags = %v, want none", ops, diags)
	}
}

func TestAssetResolver_NoSidecarContributesNothing(t *testing.T) {
	store := testStore(t)
	g := graph.NewMemory()
	lib := g.AddLibrary("libs/props.blend")
	block := g.AddLinked(lib, "Crate_v1", models.KindObject)

	main := mainDocWithLibrary("libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v1", Kind: models.KindObject})

	ops, _, err := NewAssetResolver(g, store, testLogger()).Resolve(main)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("ops = %+v, want none without authoritative data", ops)
	}
	if name, _ := g.Name(block); name != "Crate_v1" {
		t.Errorf("name = %q, should be untouched", name)
	}
}

func TestAssetResolver_MalformedLibSidecarYieldsParseDiag(t *testing.T) {
	store := testStore(t)
	g := graph.NewMemory()
	g.AddLibrary("libs/props.blend")

	bad := "# Raido Sync Data\n## Current File\n[props.blend](libs/props.blend)\n```json\n{not json\n```\n"
	if err := store.Write("libs/props.blend.side.md", []byte(bad)); err != nil {
		t.Fatal(err)
	}
	main := mainDocWithLibrary("libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v1", Kind: models.KindObject})

	ops, diags, err := NewAssetResolver(g, store, testLogger()).Resolve(main)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("ops = %+v", ops)
	}
	if len(diags) == 0 || diags[0].Class != ClassParse {
		t.Errorf("diags = %v, want parse diagnostic", diags)
	}
}

func TestAssetResolver_LocateFallsBackToUUID(t *testing.T) {
	store := testStore(t)
	g := graph.NewMemory()
	lib := g.AddLibrary("libs/props.blend")
	// Live name matches neither cached nor authoritative, but the stored
	// UUID property identifies it.
	block := g.AddLinked(lib, "Crate_tmp", models.KindObject)
	g.SetProp(block, identity.PropUUID, "U1")

	writeLibSidecar(t, store, "libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v2", Kind: models.KindObject})
	main := mainDocWithLibrary("libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v1", Kind: models.KindObject})

	ops, _, err := NewAssetResolver(g, store, testLogger()).Resolve(main)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("ops = %+v", ops)
	}
	if name, _ := g.Name(block); name != "Crate_v2" {
		t.Errorf("name = %q", name)
	}
}

func TestAssetResolver_IdentityCollisionSurfacedNotGuessed(t *testing.T) {
	store := testStore(t)
	g := graph.NewMemory()
	lib := g.AddLibrary("libs/props.blend")
	block := g.AddLinked(lib, "Crate_v1", models.KindObject)

	// Two authoritative assets collide on (name, kind).
	writeLibSidecar(t, store, "libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v2", Kind: models.KindObject},
		models.AssetRecord{UUID: "U2", Name: "Crate_v2", Kind: models.KindObject})
	main := mainDocWithLibrary("libs/props.blend",
		models.AssetRecord{UUID: "U1", Name: "Crate_v1", Kind: models.KindObject})

	ops, diags, err := NewAssetResolver(g, store, testLogger()).Resolve(main)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("colliding identities must not produce renames: %+v", ops)
	}
	foundConflict := false
	for _, d := range diags {
		if d.Class == ClassConflict {
			foundConflict = true
		}
	}
	if !foundConflict {
		t.Errorf("diags = %v, want conflict", diags)
	}
	if name, _ := g.Name(block); name != "Crate_v1" {
		t.Errorf("live name = %q, should be untouched", name)
	}
}

func TestAssetResolver_VaultRootUnconfigured(t *testing.T) {
	g := graph.NewMemory()
	r := NewAssetResolver(g, nil, testLogger())
	if _, _, err := r.Resolve(&sidecar.Document{}); err == nil {
		t.Fatal("expected vault-root precondition error")
	}
}
