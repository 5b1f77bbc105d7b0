package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/relink"
	"github.com/starford/raido/internal/sidecar"
)

// CycleResult summarizes one relink cycle.
type CycleResult struct {
	CycleID int64               `json:"cycle_id,omitempty"`
	Trigger string              `json:"trigger"`
	Ops     []relink.Op         `json:"ops"`
	Diags   []relink.Diagnostic `json:"diags"`
}

// runCycle executes one full relink pass. Resolver order is fixed: the
// asset resolver must see the sidecar's cached names before any library
// reload invalidates the handles it compares against, so it runs first;
// resources run last. Caller holds s.mu.
func (s *Session) runCycle(trigger string) (*CycleResult, error) {
	fp := s.state.FilePath()
	if fp == "" {
		return nil, fmt.Errorf("engine: no file loaded")
	}

	raw, err := s.store.Read(sidecar.SidecarPath(fp))
	if err != nil {
		// No sidecar yet; nothing to reconcile against.
		s.resyncMTimes()
		return &CycleResult{Trigger: trigger}, nil
	}
	main := sidecar.Parse(raw)

	res := &CycleResult{Trigger: trigger}
	for _, d := range main.Diags {
		res.Diags = append(res.Diags, relink.Diagnostic{
			Class:   relink.ClassParse,
			Path:    sidecar.SidecarPath(fp),
			Message: fmt.Sprintf("line %d: %s", d.Line, d.Message),
		})
	}

	renames, diags, err := s.assets.Resolve(main)
	if err != nil {
		return nil, s.abort(trigger, err)
	}
	for _, op := range renames {
		res.Ops = append(res.Ops, relink.Op{
			Type:   relink.OpAssetRenamed,
			UUID:   op.UUID,
			Path:   op.LibraryPath,
			Detail: fmt.Sprintf("%s %s -> %s", op.Kind, op.OldName, op.NewName),
		})
	}
	res.Diags = append(res.Diags, diags...)

	ops, diags, err := s.libraries.Resolve(main)
	if err != nil {
		return nil, s.abort(trigger, err)
	}
	res.Ops = append(res.Ops, ops...)
	res.Diags = append(res.Diags, diags...)

	ops, diags, err = s.resources.Resolve(main)
	if err != nil {
		return nil, s.abort(trigger, err)
	}
	res.Ops = append(res.Ops, ops...)
	res.Diags = append(res.Diags, diags...)

	s.record(res, fp)
	s.refreshWatchlist(main)
	s.resyncMTimes()

	s.log.Info("engine: cycle completed",
		slog.String("trigger", trigger),
		slog.Int("ops", len(res.Ops)),
		slog.Int("diags", len(res.Diags)))
	return res, nil
}

// record persists the cycle to the journal and streams it to subscribers.
// Both sinks are optional and failures are logged, never raised: a broken
// journal must not stop relinking.
func (s *Session) record(res *CycleResult, fp string) {
	if s.jrnl != nil {
		id, err := s.jrnl.BeginCycle(res.Trigger, fp)
		if err != nil {
			s.log.Warn("engine: journal begin failed", slog.Any("error", err))
		} else {
			res.CycleID = id
			if err := s.jrnl.RecordOps(id, res.Ops); err != nil {
				s.log.Warn("engine: journal ops failed", slog.Any("error", err))
			}
			if err := s.jrnl.RecordDiags(id, res.Diags); err != nil {
				s.log.Warn("engine: journal diags failed", slog.Any("error", err))
			}
			if err := s.jrnl.FinishCycle(id); err != nil {
				s.log.Warn("engine: journal finish failed", slog.Any("error", err))
			}
		}
	}
	if s.brk != nil {
		for _, op := range res.Ops {
			s.brk.PublishOp(op)
		}
		for _, d := range res.Diags {
			s.brk.PublishDiagnostic(d)
		}
		s.brk.PublishCycle(res.CycleID, res.Trigger, len(res.Ops), len(res.Diags))
	}
}

// abort wraps the only fatal resolver error with cycle context.
func (s *Session) abort(trigger string, err error) error {
	if errors.Is(err, apperr.ErrVaultRootUnconfigured) {
		s.log.Error("engine: cycle aborted", slog.String("trigger", trigger), slog.Any("error", err))
	}
	return fmt.Errorf("engine: %s cycle: %w", trigger, err)
}
