package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/starford/raido/internal/relink"
)

// CycleRow represents a row in the cycles table.
type CycleRow struct {
	ID         int64      `json:"id"`
	Trigger    string     `json:"trigger"`
	FilePath   string     `json:"file_path"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	OpCount    int        `json:"op_count"`
	DiagCount  int        `json:"diag_count"`
}

// OpRow represents one recorded repair operation.
type OpRow struct {
	CycleID int64  `json:"cycle_id"`
	Type    string `json:"type"`
	UUID    string `json:"uuid,omitempty"`
	Path    string `json:"path"`
	Detail  string `json:"detail,omitempty"`
}

// DiagRow represents one recorded diagnostic.
type DiagRow struct {
	CycleID int64  `json:"cycle_id"`
	Class   string `json:"class"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// BeginCycle inserts a new open cycle and returns its id.
func (db *DB) BeginCycle(trigger, filePath string) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO cycles (trigger, file_path, started_at) VALUES (?, ?, ?)`,
		trigger, filePath, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: begin cycle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal: cycle id: %w", err)
	}
	return id, nil
}

// RecordOps appends applied operations to a cycle within a transaction.
func (db *DB) RecordOps(cycleID int64, ops []relink.Op) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.Prepare(`INSERT INTO operations (cycle_id, type, uuid, path, detail) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal: prepare op insert: %w", err)
	}
	defer stmt.Close()
	for _, op := range ops {
		if _, err := stmt.Exec(cycleID, op.Type, op.UUID, op.Path, op.Detail); err != nil {
			return fmt.Errorf("journal: insert op: %w", err)
		}
	}
	if _, err := tx.Exec(`UPDATE cycles SET op_count = op_count + ? WHERE id = ?`, len(ops), cycleID); err != nil {
		return fmt.Errorf("journal: bump op count: %w", err)
	}
	return tx.Commit()
}

// RecordDiags appends diagnostics to a cycle within a transaction.
func (db *DB) RecordDiags(cycleID int64, diags []relink.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO diagnostics (cycle_id, class, path, message) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal: prepare diag insert: %w", err)
	}
	defer stmt.Close()
	for _, d := range diags {
		if _, err := stmt.Exec(cycleID, string(d.Class), d.Path, d.Message); err != nil {
			return fmt.Errorf("journal: insert diag: %w", err)
		}
	}
	if _, err := tx.Exec(`UPDATE cycles SET diag_count = diag_count + ? WHERE id = ?`, len(diags), cycleID); err != nil {
		return fmt.Errorf("journal: bump diag count: %w", err)
	}
	return tx.Commit()
}

// FinishCycle stamps the cycle's finish time.
func (db *DB) FinishCycle(cycleID int64) error {
	_, err := db.conn.Exec(`UPDATE cycles SET finished_at = ? WHERE id = ?`, time.Now().UTC(), cycleID)
	if err != nil {
		return fmt.Errorf("journal: finish cycle: %w", err)
	}
	return nil
}

// History returns the most recent cycles, newest first.
func (db *DB) History(limit int) ([]CycleRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, trigger, file_path, started_at, finished_at, op_count, diag_count
		FROM cycles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: history: %w", err)
	}
	defer rows.Close()

	var out []CycleRow
	for rows.Next() {
		var c CycleRow
		var finished sql.NullTime
		if err := rows.Scan(&c.ID, &c.Trigger, &c.FilePath, &c.StartedAt, &finished, &c.OpCount, &c.DiagCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			c.FinishedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Operations returns the recorded operations of one cycle in insert order.
func (db *DB) Operations(cycleID int64) ([]OpRow, error) {
	rows, err := db.conn.Query(`
		SELECT cycle_id, type, uuid, path, detail
		FROM operations WHERE cycle_id = ? ORDER BY id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("journal: operations: %w", err)
	}
	defer rows.Close()

	var out []OpRow
	for rows.Next() {
		var o OpRow
		if err := rows.Scan(&o.CycleID, &o.Type, &o.UUID, &o.Path, &o.Detail); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecentDiagnostics returns the newest diagnostics across all cycles.
func (db *DB) RecentDiagnostics(limit int) ([]DiagRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(`
		SELECT cycle_id, class, path, message
		FROM diagnostics ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent diagnostics: %w", err)
	}
	defer rows.Close()

	var out []DiagRow
	for rows.Next() {
		var d DiagRow
		if err := rows.Scan(&d.CycleID, &d.Class, &d.Path, &d.Message); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
