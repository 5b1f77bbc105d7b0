package journal

import "github.com/starford/raido/internal/relink"

// Journal defines the interface for relink history persistence.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Journal interface {
	BeginCycle(trigger, filePath string) (int64, error)
	RecordOps(cycleID int64, ops []relink.Op) error
	RecordDiags(cycleID int64, diags []relink.Diagnostic) error
	FinishCycle(cycleID int64) error
	History(limit int) ([]CycleRow, error)
	Operations(cycleID int64) ([]OpRow, error)
	RecentDiagnostics(limit int) ([]DiagRow, error)
	Close() error
}

// Verify *DB satisfies Journal at compile time.
var _ Journal = (*DB)(nil)
