package api

import (
	"github.com/starford/raido/internal/engine"
	"github.com/starford/raido/internal/journal"
)

// StatusResponse describes the session's current state.
type StatusResponse struct {
	FilePath            string `json:"file_path" example:"scenes/shot01.blend"`
	RelocationState     string `json:"relocation_state" example:"clean"`
	RelocationCandidate string `json:"relocation_candidate,omitempty" example:"new/shot01.blend"`
	Subscribers         int    `json:"subscribers" example:"2"`
}

// CycleResult is the outcome of one relink cycle (aliased from the engine).
type CycleResult = engine.CycleResult

// HistoryResponse wraps the journal's cycle listing.
type HistoryResponse struct {
	Cycles []journal.CycleRow `json:"cycles" validate:"required"`
}

// OperationsResponse wraps one cycle's recorded operations.
type OperationsResponse struct {
	Operations []journal.OpRow `json:"operations" validate:"required"`
}

// DiagnosticsResponse wraps the newest recorded diagnostics.
type DiagnosticsResponse struct {
	Diagnostics []journal.DiagRow `json:"diagnostics" validate:"required"`
}

// RelocationResponse describes the pending relocation, if any.
type RelocationResponse struct {
	FilePath string `json:"file_path" example:"old/shot01.blend"`
	State    string `json:"state" example:"pending"`
	NewPath  string `json:"new_path,omitempty" example:"new/shot01.blend"`
}

// ConfirmResponse is returned after a confirmed relocation.
type ConfirmResponse struct {
	NewPath string `json:"new_path" example:"new/shot01.blend" validate:"required"`
}
