// Package relocation implements the redirect protocol that detects the
// primary blend file being moved by an external tool while the engine is
// running against it.
//
// Every save writes a redirect document next to the blend file whose single
// link points at the file's own vault-relative path. Vault tools that track
// renames rewrite links inside markdown files when their targets move, so
// after an external move the redirect document's declared path no longer
// matches the path the engine is editing. The watcher reads that divergence
// on every poll tick and reports it without acting on it; repathing is a
// user decision.
package relocation

import (
	"log/slog"
	"path"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

// Marker is the first content line of every redirect document. It
// distinguishes a redirect from an ordinary note so a stray markdown file
// with a single link never triggers a relocation prompt.
const Marker = "%%raido-redirect%%"

// State is the per-file relocation state.
type State int

const (
	// Clean means the redirect document agrees with the live path.
	Clean State = iota
	// Pending means a divergent path was detected and awaits a decision.
	Pending
	// Ignored means the user declined the move for this session. The
	// candidate path keeps tracking the redirect document so status
	// surfaces can still show it, but no further notifications fire.
	Ignored
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ignored:
		return "ignored"
	default:
		return "clean"
	}
}

// Candidate describes a detected relocation: the path the engine has open
// and the vault-relative path the redirect document now declares.
type Candidate struct {
	FilePath string `json:"file_path"`
	NewPath  string `json:"new_path"`
}

// NotifyFunc receives a candidate when a file enters Pending or when the
// declared path changes while already Pending.
type NotifyFunc func(Candidate)

type fileState struct {
	state     State
	candidate string
}

// Watcher tracks redirect documents for the files a session has open.
// It is not safe for concurrent use; the owning session serializes access.
type Watcher struct {
	store  storage.Provider
	log    *slog.Logger
	notify NotifyFunc
	files  map[string]*fileState
}

// NewWatcher creates a watcher over the given vault store. notify may be
// nil when no surface wants live prompts.
func NewWatcher(store storage.Provider, log *slog.Logger, notify NotifyFunc) *Watcher {
	return &Watcher{
		store:  store,
		log:    log,
		notify: notify,
		files:  make(map[string]*fileState),
	}
}

// WriteRedirect writes the redirect document for blendPath so its declared
// path equals blendPath. Called on load and after every save; this is what
// makes the detection work even though the moved file itself never saves.
func (w *Watcher) WriteRedirect(blendPath string) error {
	if w.store == nil {
		return apperr.ErrVaultRootUnconfigured
	}
	name := path.Base(blendPath)
	content := Marker + "\n\n[" + name + "](" + blendPath + ")\n"
	if err := w.store.Write(sidecar.RedirectPath(blendPath), []byte(content)); err != nil {
		return err
	}
	w.log.Debug("relocation: redirect written", slog.String("file", blendPath))
	return nil
}

// DeleteRedirect removes the redirect document for blendPath and drops its
// tracked state. Called on quit and before loading a different file so a
// stale "I am here" pointer never outlives the session.
func (w *Watcher) DeleteRedirect(blendPath string) error {
	if w.store == nil {
		return apperr.ErrVaultRootUnconfigured
	}
	delete(w.files, blendPath)
	redirect := sidecar.RedirectPath(blendPath)
	if !w.store.Exists(redirect) {
		return nil
	}
	return w.store.Delete(redirect)
}

// Check compares the redirect document's declared path against blendPath
// and advances the state machine. Called on load and on every poll tick.
func (w *Watcher) Check(blendPath string) error {
	if w.store == nil {
		return apperr.ErrVaultRootUnconfigured
	}
	fs := w.files[blendPath]
	if fs == nil {
		fs = &fileState{}
		w.files[blendPath] = fs
	}

	redirect := sidecar.RedirectPath(blendPath)
	data, err := w.store.Read(redirect)
	if err != nil {
		// No redirect document means nothing moved it; the next save
		// recreates it. A divergence already awaiting a decision stays.
		if fs.state == Clean {
			fs.candidate = ""
		}
		return nil
	}

	declared, ok := parseRedirect(string(data))
	if !ok {
		w.log.Warn("relocation: malformed redirect document", slog.String("path", redirect))
		return nil
	}
	candidate := resolveDeclared(declared, redirect)
	if candidate == blendPath {
		// A matching redirect only confirms Clean. Pending and Ignored
		// exit through user action alone, so a rewrite that lands back on
		// the live path leaves them untouched.
		if fs.state == Clean {
			fs.candidate = ""
		}
		return nil
	}

	switch fs.state {
	case Ignored:
		// Keep the record current for status surfaces, stay quiet.
		fs.candidate = candidate
	case Pending:
		if fs.candidate != candidate {
			fs.candidate = candidate
			w.fire(blendPath, candidate)
		}
	default:
		fs.state = Pending
		fs.candidate = candidate
		w.log.Info("relocation: pending",
			slog.String("file", blendPath), slog.String("candidate", candidate))
		w.fire(blendPath, candidate)
	}
	return nil
}

// Confirm accepts the pending relocation for blendPath. saveAs is invoked
// with the candidate path and must persist the live file there; on success
// the old redirect document is deleted and the state resets. Returns the
// path the file now lives at.
func (w *Watcher) Confirm(blendPath string, saveAs func(newPath string) error) (string, error) {
	fs := w.files[blendPath]
	if fs == nil || fs.candidate == "" {
		return "", apperr.ErrNoPendingRelocation
	}
	candidate := fs.candidate
	if err := saveAs(candidate); err != nil {
		return "", err
	}
	if err := w.DeleteRedirect(blendPath); err != nil {
		w.log.Warn("relocation: stale redirect not deleted",
			slog.String("file", blendPath), slog.Any("error", err))
	}
	w.log.Info("relocation: confirmed",
		slog.String("from", blendPath), slog.String("to", candidate))
	return candidate, nil
}

// Ignore declines the pending relocation for blendPath for the rest of the
// session. The candidate record is kept so status surfaces can show it.
func (w *Watcher) Ignore(blendPath string) error {
	fs := w.files[blendPath]
	if fs == nil || fs.state != Pending {
		return apperr.ErrNoPendingRelocation
	}
	fs.state = Ignored
	w.log.Info("relocation: ignored", slog.String("file", blendPath))
	return nil
}

// Status returns the current state and candidate path for blendPath.
func (w *Watcher) Status(blendPath string) (State, string) {
	fs := w.files[blendPath]
	if fs == nil {
		return Clean, ""
	}
	return fs.state, fs.candidate
}

// parseRedirect extracts the declared path from a redirect document: the
// marker line followed by exactly one link line.
func parseRedirect(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	sawMarker := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !sawMarker {
			if trimmed != Marker {
				return "", false
			}
			sawMarker = true
			continue
		}
		if link, ok := sidecar.ParseLink(trimmed); ok {
			return link.Path, true
		}
		return "", false
	}
	return "", false
}

// resolveDeclared turns the declared link target into a vault-relative
// path. Vault tools that rewrite links on move may emit paths relative to
// the redirect document itself; those are resolved against its directory.
// Everything else is already vault-relative.
func resolveDeclared(declared, redirectPath string) string {
	if strings.HasPrefix(declared, "./") || strings.HasPrefix(declared, "../") {
		return path.Clean(path.Join(path.Dir(redirectPath), declared))
	}
	return path.Clean(declared)
}

func (w *Watcher) fire(blendPath, candidate string) {
	if w.notify == nil {
		return
	}
	w.notify(Candidate{FilePath: blendPath, NewPath: candidate})
}
