package relink

import (
	"errors"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/identity"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

func libResolver(g graph.Graph, store storage.Provider) *LibraryResolver {
	return NewLibraryResolver(g, identity.New(g), store, testLogger())
}

func docWithLibEntry(path, uuid string) *sidecar.Document {
	return &sidecar.Document{
		Libraries: []sidecar.LibrarySection{
			{Path: path, Record: models.LibraryRecord{UUID: uuid}},
		},
	}
}

func TestLibraryResolver_RelinkByStoredUUID(t *testing.T) {
	store := testStore(t)
	if err := store.Write("libs/new/props.blend", []byte("blend")); err != nil {
		t.Fatal(err)
	}

	g := graph.NewMemory()
	lib := g.AddLibrary("libs/old/props.blend")
	g.SetLibProp(lib, identity.PropLibUUID, "L1")

	ops, diags, err := libResolver(g, store).Resolve(docWithLibEntry("libs/new/props.blend", "L1"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if len(ops) != 1 || ops[0].Type != OpLibraryRelinked {
		t.Fatalf("ops = %+v", ops)
	}
	if got := g.LibraryPath(lib); got != "libs/new/props.blend" {
		t.Errorf("path = %q", got)
	}
	if g.Reloads[lib] != 1 {
		t.Errorf("reloads = %d", g.Reloads[lib])
	}
	if g.NormalizeCalls != 1 {
		t.Errorf("normalize calls = %d, want batch re-normalization", g.NormalizeCalls)
	}
}

func TestLibraryResolver_MatchByFilenameFallback(t *testing.T) {
	store := testStore(t)
	_ = store.Write("moved/props.blend", []byte("blend"))

	g := graph.NewMemory()
	lib := g.AddLibrary("libs/props.blend")

	// Record UUID matches nothing stored; the filename does.
	ops, diags, err := libResolver(g, store).Resolve(docWithLibEntry("moved/props.blend", "UNKNOWN"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if len(ops) != 1 {
		t.Fatalf("ops = %+v", ops)
	}
	if got := g.LibraryPath(lib); got != "moved/props.blend" {
		t.Errorf("path = %q", got)
	}
}

func TestLibraryResolver_MissingOnDisk(t *testing.T) {
	store := testStore(t)
	g := graph.NewMemory()
	lib := g.AddLibrary("libs/props.blend")

	ops, diags, err := libResolver(g, store).Resolve(docWithLibEntry("libs/gone.blend", "L1"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("ops = %+v", ops)
	}
	if len(diags) != 1 || diags[0].Class != ClassMissingFile {
		t.Fatalf("diags = %v, want missing_file", diags)
	}
	if got := g.LibraryPath(lib); got != "libs/props.blend" {
		t.Errorf("live path must be untouched, got %q", got)
	}
}

func TestLibraryResolver_ReloadFailureRestoresPath(t *testing.T) {
	store := testStore(t)
	_ = store.Write("libs/new.blend", []byte("blend"))

	g := graph.NewMemory()
	lib := g.AddLibrary("libs/old.blend")
	g.SetLibProp(lib, identity.PropLibUUID, "L1")
	g.FailReload(lib, errors.New("datablock read error"))

	ops, diags, err := libResolver(g, store).Resolve(docWithLibEntry("libs/new.blend", "L1"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("ops = %+v", ops)
	}
	if len(diags) != 1 || diags[0].Class != ClassReloadFailure {
		t.Fatalf("diags = %v, want reload_failure", diags)
	}
	if got := g.LibraryPath(lib); got != "libs/old.blend" {
		t.Errorf("path = %q, want prior path restored", got)
	}
}

func TestLibraryResolver_StillMissingAfterReload(t *testing.T) {
	store := testStore(t)
	_ = store.Write("libs/new.blend", []byte("blend"))

	g := graph.NewMemory()
	lib := g.AddLibrary("libs/old.blend")
	g.SetLibProp(lib, identity.PropLibUUID, "L1")
	g.MissingAfterReload(lib)

	_, diags, err := libResolver(g, store).Resolve(docWithLibEntry("libs/new.blend", "L1"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(diags) != 1 || diags[0].Class != ClassReloadFailure {
		t.Fatalf("diags = %v", diags)
	}
	if got := g.LibraryPath(lib); got != "libs/old.blend" {
		t.Errorf("path = %q", got)
	}
}

func TestLibraryResolver_NoMatchNeverCreatesLink(t *testing.T) {
	store := testStore(t)
	_ = store.Write("libs/brand_new.blend", []byte("blend"))

	g := graph.NewMemory()
	g.AddLibrary("libs/other.blend") // healthy, unrelated

	before := len(g.Libraries())
	ops, diags, err := libResolver(g, store).Resolve(docWithLibEntry("libs/brand_new.blend", "L9"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("ops = %+v", ops)
	}
	if len(diags) != 1 || diags[0].Class != ClassUnresolved {
		t.Fatalf("diags = %v, want unresolved", diags)
	}
	if len(g.Libraries()) != before {
		t.Error("resolver must never create a new library link")
	}
}

func TestLibraryResolver_RepurposesBrokenReference(t *testing.T) {
	store := testStore(t)
	_ = store.Write("libs/found.blend", []byte("blend"))

	g := graph.NewMemory()
	broken := g.AddLibrary("libs/vanished.blend")
	g.SetMissing(broken, true)

	ops, diags, err := libResolver(g, store).Resolve(docWithLibEntry("libs/found.blend", "L1"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if len(ops) != 1 || ops[0].Type != OpLibraryRepurposed {
		t.Fatalf("ops = %+v", ops)
	}
	if got := g.LibraryPath(broken); got != "libs/found.blend" {
		t.Errorf("path = %q", got)
	}
	if v, _ := g.GetLibProp(broken, identity.PropLibUUID); v != "L1" {
		t.Errorf("uuid prop = %q", v)
	}
}

func TestLibraryResolver_LegacySidecarSuffixStripped(t *testing.T) {
	store := testStore(t)
	_ = store.Write("libs/props.blend", []byte("blend"))

	g := graph.NewMemory()
	lib := g.AddLibrary("old/props.blend")
	g.SetLibProp(lib, identity.PropLibUUID, "L1")

	_, diags, err := libResolver(g, store).Resolve(docWithLibEntry("libs/props.blend.side.md", "L1"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if got := g.LibraryPath(lib); got != "libs/props.blend" {
		t.Errorf("path = %q", got)
	}
}

func TestLibraryResolver_SecondRunIsNoop(t *testing.T) {
	store := testStore(t)
	_ = store.Write("libs/new.blend", []byte("blend"))

	g := graph.NewMemory()
	lib := g.AddLibrary("libs/old.blend")
	g.SetLibProp(lib, identity.PropLibUUID, "L1")

	doc := docWithLibEntry("libs/new.blend", "L1")
	r := libResolver(g, store)
	if _, _, err := r.Resolve(doc); err != nil {
		t.Fatal(err)
	}
	ops, diags, err := r.Resolve(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 || len(diags) != 0 {
		t.Errorf("second run: ops=%+v diags=%v, want none", ops, diags)
	}
	if g.Reloads[lib] != 1 {
		t.Errorf("reloads = %d, want 1", g.Reloads[lib])
	}
}

func TestLibraryResolver_VaultRootUnconfigured(t *testing.T) {
	g := graph.NewMemory()
	r := NewLibraryResolver(g, identity.New(g), nil, testLogger())
	_, _, err := r.Resolve(&sidecar.Document{})
	if !errors.Is(err, apperr.ErrVaultRootUnconfigured) {
		t.Fatalf("err = %v, want ErrVaultRootUnconfigured", err)
	}
}
