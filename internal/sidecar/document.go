// Package sidecar parses and writes the plain-text sidecar documents that
// mirror a blend file's structure for external inspection and editing.
package sidecar

import (
	"strings"

	"github.com/starford/raido/internal/models"
)

// Marker headings. Everything above the marker is user content and is
// preserved byte-for-byte; everything below is regenerated on every write.
const (
	MarkerHeading = "Raido Sync Data"
	// legacyMarkerHeading is accepted on read so documents written before
	// the rename keep their user content through the first rewrite.
	legacyMarkerHeading = "Blend Sync Data"
)

// Section headings inside the generated block.
const (
	SectionCurrentFile = "Current File"
	SectionLibraries   = "Linked Libraries"
	SectionResources   = "Resources"
)

// File name suffixes for companion documents.
const (
	SidecarSuffix  = ".side.md"
	RedirectSuffix = ".redirect.md"
)

// SidecarPath returns the sidecar path for a blend file.
func SidecarPath(blendPath string) string {
	return blendPath + SidecarSuffix
}

// RedirectPath returns the redirect-document path for a blend file.
func RedirectPath(blendPath string) string {
	return blendPath + RedirectSuffix
}

// StripSidecarSuffix removes a sidecar suffix from a stored path. Legacy
// sidecars sometimes linked libraries through their sidecar document rather
// than the blend file itself; both encodings resolve to the blend path.
func StripSidecarSuffix(path string) string {
	return strings.TrimSuffix(path, SidecarSuffix)
}

// Link is a parsed markdown link in either supported syntax:
// inline [name](path) or wiki [[path|name]].
type Link struct {
	Path string
	Name string
}

// Heading is a parsed markdown heading. Text carries the display text in
// all three surface forms (plain, inline link, wiki link); Link is set when
// the heading wraps a link.
type Heading struct {
	Level int
	Text  string
	Link  *Link
}

// TagStyle is the surface syntax of the frontmatter tags entry. The writer
// reuses the detected style so human formatting edits survive rewrites.
type TagStyle int

const (
	TagStyleFlow   TagStyle = iota // tags: [a, b]
	TagStyleInline                 // tags: a, b
	TagStyleBlock                  // tags:\n  - a\n  - b
)

// Frontmatter is the parsed YAML frontmatter block of a sidecar.
type Frontmatter struct {
	Tags    []string
	Preview string
	Style   TagStyle
	// Raw holds the exact lines between the --- delimiters; the writer
	// edits the tags entry in place and leaves every other line alone.
	Raw string
}

// FileSection is the parsed Current File section: the writing file's own
// declared path plus its authoritative asset records.
type FileSection struct {
	Path   string
	Record models.FileRecord
}

// LibrarySection is one entry of the Linked Libraries section.
type LibrarySection struct {
	Path   string
	Record models.LibraryRecord
}

// Diag is a non-fatal parse diagnostic. Parsing continues past the block
// that produced it so the rest of the document stays usable.
type Diag struct {
	Line    int
	Message string
}

// Document is the parsed section tree of one sidecar file.
type Document struct {
	Frontmatter Frontmatter
	// UserContent is everything between the frontmatter block and the
	// marker heading, verbatim.
	UserContent string
	CurrentFile *FileSection
	Libraries   []LibrarySection
	Resources   map[models.ResourceCategory][]models.ResourceRecord
	Diags       []Diag
}

// Library returns the linked-library entry for path, or nil.
func (d *Document) Library(path string) *LibrarySection {
	for i := range d.Libraries {
		if d.Libraries[i].Path == path {
			return &d.Libraries[i]
		}
	}
	return nil
}

// AssetByNameKind returns the Current File record matching (name, kind).
// This is the lookup the identity registry uses for UUID reuse and adoption.
func (d *Document) AssetByNameKind(name string, kind models.Kind) (models.AssetRecord, bool) {
	if d.CurrentFile == nil {
		return models.AssetRecord{}, false
	}
	for _, a := range d.CurrentFile.Record.Assets {
		if a.Name == name && a.Kind == kind {
			return a, true
		}
	}
	return models.AssetRecord{}, false
}
