package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/engine"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	session *engine.Session
	jrnl    journal.Journal
	broker  *sse.Broker
}

// NewHandler creates a new Handler. jrnl and broker may be nil; the
// endpoints they back then report accordingly.
func NewHandler(session *engine.Session, jrnl journal.Journal, broker *sse.Broker) *Handler {
	return &Handler{session: session, jrnl: jrnl, broker: broker}
}

// Status handles GET /api/status.
//
//	@Summary		Session status: open file and relocation state
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	state, candidate := h.session.Relocation()
	resp := StatusResponse{
		FilePath:            h.session.State().FilePath(),
		RelocationState:     state.String(),
		RelocationCandidate: candidate,
	}
	if h.broker != nil {
		resp.Subscribers = h.broker.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sync handles POST /api/sync.
//
//	@Summary		Run an immediate relink cycle
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	CycleResult
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, _ *http.Request) {
	res, err := h.session.SyncNow()
	if err != nil {
		if errors.Is(err, apperr.ErrVaultRootUnconfigured) {
			writeJSON(w, http.StatusConflict, errorBody("vault root is not configured"))
			return
		}
		slog.Error("sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History handles GET /api/history.
//
//	@Summary		List recent relink cycles, newest first
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max cycles"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.jrnl == nil {
		writeJSON(w, http.StatusOK, HistoryResponse{Cycles: []journal.CycleRow{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cycles, err := h.jrnl.History(limit)
	if err != nil {
		slog.Error("history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if cycles == nil {
		cycles = []journal.CycleRow{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Cycles: cycles})
}

// Operations handles GET /api/history/{id}/operations.
//
//	@Summary		List the operations one cycle applied
//	@Tags			history
//	@Produce		json
//	@Param			id	path		int	true	"Cycle id"
//	@Success		200	{object}	OperationsResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{id}/operations [get]
func (h *Handler) Operations(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid cycle id"))
		return
	}
	if h.jrnl == nil {
		writeJSON(w, http.StatusOK, OperationsResponse{Operations: []journal.OpRow{}})
		return
	}
	ops, err := h.jrnl.Operations(id)
	if err != nil {
		slog.Error("operations failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if ops == nil {
		ops = []journal.OpRow{}
	}
	writeJSON(w, http.StatusOK, OperationsResponse{Operations: ops})
}

// Diagnostics handles GET /api/diagnostics.
//
//	@Summary		List the newest recorded diagnostics
//	@Tags			diagnostics
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries"
//	@Success		200		{object}	DiagnosticsResponse
//	@Security		BearerAuth
//	@Router			/diagnostics [get]
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	if h.jrnl == nil {
		writeJSON(w, http.StatusOK, DiagnosticsResponse{Diagnostics: []journal.DiagRow{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	diags, err := h.jrnl.RecentDiagnostics(limit)
	if err != nil {
		slog.Error("diagnostics failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if diags == nil {
		diags = []journal.DiagRow{}
	}
	writeJSON(w, http.StatusOK, DiagnosticsResponse{Diagnostics: diags})
}

// Relocation handles GET /api/relocation.
//
//	@Summary		Pending relocation for the open file
//	@Tags			relocation
//	@Produce		json
//	@Success		200	{object}	RelocationResponse
//	@Security		BearerAuth
//	@Router			/relocation [get]
func (h *Handler) Relocation(w http.ResponseWriter, _ *http.Request) {
	state, candidate := h.session.Relocation()
	writeJSON(w, http.StatusOK, RelocationResponse{
		FilePath: h.session.State().FilePath(),
		State:    state.String(),
		NewPath:  candidate,
	})
}

// ConfirmRelocation handles POST /api/relocation/confirm.
//
//	@Summary		Accept the pending relocation
//	@Tags			relocation
//	@Produce		json
//	@Success		200	{object}	ConfirmResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/relocation/confirm [post]
func (h *Handler) ConfirmRelocation(w http.ResponseWriter, _ *http.Request) {
	newPath, err := h.session.ConfirmRelocation()
	if err != nil {
		if errors.Is(err, apperr.ErrNoPendingRelocation) {
			writeJSON(w, http.StatusNotFound, errorBody("no pending relocation"))
			return
		}
		slog.Error("confirm relocation failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ConfirmResponse{NewPath: newPath})
}

// IgnoreRelocation handles POST /api/relocation/ignore.
//
//	@Summary		Decline the pending relocation for this session
//	@Tags			relocation
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/relocation/ignore [post]
func (h *Handler) IgnoreRelocation(w http.ResponseWriter, _ *http.Request) {
	if err := h.session.IgnoreRelocation(); err != nil {
		if errors.Is(err, apperr.ErrNoPendingRelocation) {
			writeJSON(w, http.StatusNotFound, errorBody("no pending relocation"))
			return
		}
		slog.Error("ignore relocation failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
