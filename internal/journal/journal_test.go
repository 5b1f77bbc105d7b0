package journal

import (
	"os"
	"testing"

	"github.com/starford/raido/internal/relink"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"cycles", "operations", "diagnostics"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestCycleLifecycle(t *testing.T) {
	db := testDB(t)

	id, err := db.BeginCycle("poll", "scenes/shot.blend")
	if err != nil {
		t.Fatalf("BeginCycle: %v", err)
	}
	ops := []relink.Op{
		{Type: relink.OpAssetRenamed, UUID: "u-1", Path: "libs/props.blend", Detail: "Crate_v1 -> Crate_v2"},
		{Type: relink.OpLibraryRelinked, Path: "libs/props.blend"},
	}
	if err := db.RecordOps(id, ops); err != nil {
		t.Fatalf("RecordOps: %v", err)
	}
	diags := []relink.Diagnostic{
		{Class: relink.ClassMissingFile, Path: "libs/gone.blend", Message: "not on disk"},
	}
	if err := db.RecordDiags(id, diags); err != nil {
		t.Fatalf("RecordDiags: %v", err)
	}
	if err := db.FinishCycle(id); err != nil {
		t.Fatalf("FinishCycle: %v", err)
	}

	hist, err := db.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(hist))
	}
	c := hist[0]
	if c.Trigger != "poll" || c.FilePath != "scenes/shot.blend" {
		t.Errorf("cycle = %+v, want poll trigger for scenes/shot.blend", c)
	}
	if c.OpCount != 2 || c.DiagCount != 1 {
		t.Errorf("counts = (%d ops, %d diags), want (2, 1)", c.OpCount, c.DiagCount)
	}
	if c.FinishedAt == nil {
		t.Error("finished cycle has no finish time")
	}
}

func TestOperations_InsertOrder(t *testing.T) {
	db := testDB(t)
	id, _ := db.BeginCycle("manual", "shot.blend")
	_ = db.RecordOps(id, []relink.Op{
		{Type: relink.OpAssetRenamed, Path: "a"},
		{Type: relink.OpLibraryRelinked, Path: "b"},
		{Type: relink.OpResourceRepointed, Path: "c"},
	})

	ops, err := db.Operations(id)
	if err != nil {
		t.Fatalf("Operations: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(ops))
	}
	if ops[0].Path != "a" || ops[2].Path != "c" {
		t.Errorf("operations out of order: %+v", ops)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	db := testDB(t)
	first, _ := db.BeginCycle("poll", "shot.blend")
	second, _ := db.BeginCycle("save", "shot.blend")

	hist, err := db.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(hist))
	}
	if hist[0].ID != second || hist[1].ID != first {
		t.Errorf("history order = [%d, %d], want [%d, %d]", hist[0].ID, hist[1].ID, second, first)
	}
	if hist[0].FinishedAt != nil {
		t.Error("open cycle should have nil finish time")
	}
}

func TestRecentDiagnostics(t *testing.T) {
	db := testDB(t)
	a, _ := db.BeginCycle("poll", "shot.blend")
	b, _ := db.BeginCycle("poll", "shot.blend")
	_ = db.RecordDiags(a, []relink.Diagnostic{{Class: relink.ClassUnresolved, Path: "x", Message: "m1"}})
	_ = db.RecordDiags(b, []relink.Diagnostic{{Class: relink.ClassConflict, Path: "y", Message: "m2"}})

	diags, err := db.RecentDiagnostics(1)
	if err != nil {
		t.Fatalf("RecentDiagnostics: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].CycleID != b || diags[0].Class != string(relink.ClassConflict) {
		t.Errorf("diagnostic = %+v, want newest (cycle %d, conflict)", diags[0], b)
	}
}

func TestRecordOps_Empty(t *testing.T) {
	db := testDB(t)
	id, _ := db.BeginCycle("poll", "shot.blend")
	if err := db.RecordOps(id, nil); err != nil {
		t.Fatalf("RecordOps(nil): %v", err)
	}
	hist, _ := db.History(1)
	if hist[0].OpCount != 0 {
		t.Errorf("op count = %d, want 0", hist[0].OpCount)
	}
}
