package sidecar

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/models"
)

// Link syntax patterns. Each syntax is recognized only here; callers work
// with the typed Link node and never match link formats themselves.
var (
	inlineLinkRe = regexp.MustCompile(`^\[([^\]]*)\]\(([^)]+)\)$`)
	wikiLinkRe   = regexp.MustCompile(`^\[\[([^\]|]+)(?:\|([^\]]*))?\]\]$`)
)

// ParseLink recognizes a single markdown link in inline or wiki syntax.
func ParseLink(s string) (*Link, bool) {
	s = strings.TrimSpace(s)
	if m := inlineLinkRe.FindStringSubmatch(s); m != nil {
		name := strings.TrimSpace(m[1])
		path := strings.TrimSpace(m[2])
		if path == "" {
			return nil, false
		}
		return &Link{Path: path, Name: name}, true
	}
	if m := wikiLinkRe.FindStringSubmatch(s); m != nil {
		path := strings.TrimSpace(m[1])
		name := strings.TrimSpace(m[2])
		if name == "" {
			name = path
		}
		return &Link{Path: path, Name: name}, true
	}
	return nil, false
}

// parseHeading recognizes a markdown ATX heading in any of the three
// surface forms: plain text, inline link, or wiki link.
func parseHeading(line string) (*Heading, bool) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level >= len(trimmed) || trimmed[level] != ' ' {
		return nil, false
	}
	rest := strings.TrimSpace(trimmed[level+1:])
	if rest == "" {
		return nil, false
	}
	h := &Heading{Level: level, Text: rest}
	if link, ok := ParseLink(rest); ok {
		h.Link = link
		h.Text = link.Name
	}
	return h, true
}

// Matches reports whether the heading displays the given text, in any of
// the three surface forms.
func (h *Heading) Matches(text string) bool {
	return h.Text == text
}

// isMarker reports whether h is the generated-block marker, accepting the
// legacy spelling for migration.
func isMarker(h *Heading) bool {
	return h.Matches(MarkerHeading) || h.Matches(legacyMarkerHeading)
}

// recordEnvelope is the JSON shape shared by Current File and Linked
// Libraries blocks.
type recordEnvelope struct {
	UUID   string               `json:"uuid"`
	Assets []models.AssetRecord `json:"assets"`
}

// Parse turns raw sidecar text into a section tree. Parsing never fails:
// malformed blocks produce diagnostics and are skipped, so the rest of the
// document stays usable.
func Parse(data []byte) *Document {
	doc := &Document{
		Resources: make(map[models.ResourceCategory][]models.ResourceRecord),
	}

	body, fmLines := splitFrontmatter(string(data), doc)

	lines := strings.SplitAfter(body, "\n")

	// Locate the marker heading. Everything before it is user content.
	markerIdx := -1
	for i, raw := range lines {
		if h, ok := parseHeading(raw); ok && isMarker(h) {
			markerIdx = i
			break
		}
	}
	if markerIdx < 0 {
		doc.UserContent = body
		return doc
	}
	doc.UserContent = strings.Join(lines[:markerIdx], "")

	type sectionKind int
	const (
		secNone sectionKind = iota
		secCurrentFile
		secLibraries
		secResources
	)

	section := secNone
	sectionLevel := 0
	var lastLink *Link
	var category models.ResourceCategory
	haveCategory := false

	inFence := false
	fenceIsJSON := false
	var fenceBuf strings.Builder
	fenceStart := 0

	attach := func(link *Link, payload string, line int) {
		var env recordEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			doc.Diags = append(doc.Diags, Diag{
				Line:    line,
				Message: fmt.Sprintf("malformed JSON block for %q: %v", link.Path, err),
			})
			return
		}
		switch section {
		case secCurrentFile:
			doc.CurrentFile = &FileSection{
				Path:   link.Path,
				Record: models.FileRecord{UUID: env.UUID, Assets: env.Assets},
			}
		case secLibraries:
			doc.Libraries = append(doc.Libraries, LibrarySection{
				Path:   StripSidecarSuffix(link.Path),
				Record: models.LibraryRecord{UUID: env.UUID, Assets: env.Assets},
			})
		}
	}

	for i := markerIdx + 1; i < len(lines); i++ {
		ln := fmLines + i + 1
		line := strings.TrimRight(lines[i], "\n")
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, "```") {
				if fenceIsJSON && section != secNone && section != secResources {
					if lastLink == nil {
						doc.Diags = append(doc.Diags, Diag{
							Line:    fenceStart,
							Message: "JSON block has no preceding link; skipped",
						})
					} else {
						attach(lastLink, fenceBuf.String(), fenceStart)
						lastLink = nil
					}
				}
				inFence = false
				fenceBuf.Reset()
				continue
			}
			if fenceIsJSON {
				fenceBuf.WriteString(line)
				fenceBuf.WriteString("\n")
			}
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			inFence = true
			fenceIsJSON = strings.TrimSpace(strings.TrimPrefix(trimmed, "```")) == "json"
			fenceStart = ln
			continue
		}

		if h, ok := parseHeading(line); ok {
			// A heading at or above the open section's level closes it.
			if section != secNone && h.Level <= sectionLevel {
				section = secNone
				lastLink = nil
				haveCategory = false
			}
			switch {
			case h.Matches(SectionCurrentFile):
				section = secCurrentFile
				sectionLevel = h.Level
			case h.Matches(SectionLibraries):
				section = secLibraries
				sectionLevel = h.Level
			case h.Matches(SectionResources):
				section = secResources
				sectionLevel = h.Level
			case section == secResources:
				// Sub-heading inside Resources names a category.
				cat, ok := resourceCategory(h.Text)
				if !ok {
					doc.Diags = append(doc.Diags, Diag{
						Line:    ln,
						Message: fmt.Sprintf("unrecognized resource category %q", h.Text),
					})
					haveCategory = false
					continue
				}
				category = cat
				haveCategory = true
			case section == secNone && h.Level <= 2:
				doc.Diags = append(doc.Diags, Diag{
					Line:    ln,
					Message: fmt.Sprintf("unrecognized heading %q in generated block", h.Text),
				})
			}
			continue
		}

		if section == secNone || trimmed == "" {
			continue
		}

		if link, ok := ParseLink(trimmed); ok {
			switch section {
			case secCurrentFile, secLibraries:
				lastLink = link
			case secResources:
				if !haveCategory {
					doc.Diags = append(doc.Diags, Diag{
						Line:    ln,
						Message: fmt.Sprintf("resource link %q outside any category", link.Name),
					})
					continue
				}
				doc.Resources[category] = append(doc.Resources[category], models.ResourceRecord{
					Name: link.Name,
					Path: link.Path,
				})
			}
		}
	}

	return doc
}

// resourceCategory maps a category heading to its canonical value,
// case-insensitively. Both the singular and the natural plural spelling
// are accepted ("Texture" and "Textures").
func resourceCategory(text string) (models.ResourceCategory, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, c := range models.ResourceCategories {
		if lowered == string(c) || lowered == string(c)+"s" {
			return c, true
		}
	}
	return "", false
}

// splitFrontmatter separates the YAML frontmatter block (between leading
// --- delimiters) from the document body and records the parsed tags,
// preview, and detected tag syntax on doc. It returns the body and the
// number of lines consumed by the frontmatter block.
func splitFrontmatter(text string, doc *Document) (string, int) {
	const delim = "---"
	if !strings.HasPrefix(text, delim+"\n") && text != delim {
		return text, 0
	}
	rest := text[len(delim)+1:]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		// No closing delimiter; the whole thing is body.
		return text, 0
	}
	raw := rest[:idx+1]
	after := rest[idx+1+len(delim):]
	after = strings.TrimPrefix(after, "\n")

	doc.Frontmatter.Raw = raw
	doc.Frontmatter.Style = detectTagStyle(raw)

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		doc.Diags = append(doc.Diags, Diag{Line: 1, Message: fmt.Sprintf("invalid frontmatter YAML: %v", err)})
		return after, strings.Count(raw, "\n") + 2
	}
	if rawTags, ok := fm["tags"]; ok {
		doc.Frontmatter.Tags = tagList(rawTags)
	}
	if p, ok := fm["preview"].(string); ok {
		doc.Frontmatter.Preview = p
	}
	return after, strings.Count(raw, "\n") + 2
}

// tagList normalizes the YAML tags value: a sequence, or a comma-separated
// scalar (the inline style).
func tagList(raw any) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			add(part)
		}
	}
	return out
}

// detectTagStyle inspects the raw frontmatter text and reports which
// surface syntax the tags entry uses. Flow is the default for documents
// without a tags entry.
func detectTagStyle(raw string) TagStyle {
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "tags:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(trimmed, "tags:"))
		switch {
		case value == "":
			return TagStyleBlock
		case strings.HasPrefix(value, "["):
			return TagStyleFlow
		default:
			return TagStyleInline
		}
	}
	return TagStyleFlow
}
