// Package relink repairs stale references after external drift: library
// paths, renamed linked assets, and moved resource files.
//
// Resolvers never raise out of a per-entry operation: every per-entry
// failure is classified and accumulated into the returned diagnostics.
// Only a missing vault root aborts a resolver as a whole.
package relink

import "fmt"

// Class labels a diagnostic with its failure taxonomy entry.
type Class string

const (
	ClassParse            Class = "parse_error"
	ClassMissingFile      Class = "missing_file"
	ClassReloadFailure    Class = "reload_failure"
	ClassUnresolved       Class = "unresolved"
	ClassConflict         Class = "conflict"
	ClassUnverifiedRename Class = "unverified_rename"
)

// Diagnostic is one classified per-entry failure, surfaced to the caller
// instead of raised.
type Diagnostic struct {
	Class   Class  `json:"class"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Class, d.Path, d.Message)
}

// Op types recorded by the resolvers.
const (
	OpLibraryRelinked   = "library_relinked"
	OpLibraryRepurposed = "library_repurposed"
	OpAssetRenamed      = "asset_renamed"
	OpResourceRepointed = "resource_repointed"
)

// Op is one applied repair, recorded for the journal and event stream.
type Op struct {
	Type   string `json:"type"`
	UUID   string `json:"uuid,omitempty"`
	Path   string `json:"path"`
	Detail string `json:"detail,omitempty"`
}
