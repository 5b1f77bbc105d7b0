package sidecar

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/raido/internal/models"
)

// Data is everything the writer needs to regenerate a sidecar's generated
// block. Records are rendered wholesale from these values; the previous
// generated block is discarded, never patched.
type Data struct {
	// FilePath is the vault-relative path of the blend file the sidecar
	// belongs to.
	FilePath  string
	File      models.FileRecord
	Libraries map[string]models.LibraryRecord
	Resources map[models.ResourceCategory][]models.ResourceRecord
	// RequiredTags are unioned into the frontmatter tag set.
	RequiredTags []string
	// Preview is written only when the frontmatter has no preview entry.
	Preview string
}

// Render produces the full sidecar document: the existing file's
// frontmatter (tags merged) and user content preserved, followed by the
// regenerated block. existing may be nil for a fresh document.
func Render(existing []byte, d Data) []byte {
	prev := Parse(existing)

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString(renderFrontmatter(prev.Frontmatter, d))
	b.WriteString("---\n")

	user := prev.UserContent
	if user == "" {
		user = "\n"
	} else if !strings.HasSuffix(user, "\n") {
		user += "\n"
	}
	b.WriteString(user)

	b.WriteString("# " + MarkerHeading + "\n\n")

	// Current File.
	b.WriteString("## " + SectionCurrentFile + "\n")
	writeLinkedRecord(&b, d.FilePath, recordEnvelope{UUID: d.File.UUID, Assets: d.File.Assets})

	// Linked Libraries, sorted by path for deterministic output.
	b.WriteString("\n## " + SectionLibraries + "\n")
	libPaths := make([]string, 0, len(d.Libraries))
	for p := range d.Libraries {
		libPaths = append(libPaths, p)
	}
	sort.Strings(libPaths)
	for _, p := range libPaths {
		rec := d.Libraries[p]
		writeLinkedRecord(&b, p, recordEnvelope{UUID: rec.UUID, Assets: rec.Assets})
	}

	// Resources, categories in canonical order, records sorted by name.
	b.WriteString("\n## " + SectionResources + "\n")
	for _, cat := range models.ResourceCategories {
		records := d.Resources[cat]
		if len(records) == 0 {
			continue
		}
		sorted := make([]models.ResourceRecord, len(records))
		copy(sorted, records)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

		b.WriteString("### " + categoryHeading(cat) + "\n")
		for _, r := range sorted {
			fmt.Fprintf(&b, "[%s](%s)\n", r.Name, r.Path)
		}
	}

	return []byte(b.String())
}

// writeLinkedRecord emits a link line followed by the record's JSON block.
func writeLinkedRecord(b *strings.Builder, p string, env recordEnvelope) {
	assets := make([]models.AssetRecord, len(env.Assets))
	copy(assets, env.Assets)
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].Kind != assets[j].Kind {
			return assets[i].Kind < assets[j].Kind
		}
		return assets[i].Name < assets[j].Name
	})
	env.Assets = assets

	fmt.Fprintf(b, "[%s](%s)\n", path.Base(p), p)
	payload, _ := json.MarshalIndent(env, "", "  ")
	b.WriteString("```json\n")
	b.Write(payload)
	b.WriteString("\n```\n")
}

// categoryHeading renders a resource category as a heading word.
func categoryHeading(cat models.ResourceCategory) string {
	s := string(cat)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// renderFrontmatter merges the required tags into the existing frontmatter
// text, preserving every unrelated line and the original tag syntax. A
// missing frontmatter block is created in flow style.
func renderFrontmatter(fm Frontmatter, d Data) string {
	merged := unionTags(fm.Tags, d.RequiredTags)

	if fm.Raw == "" {
		var b strings.Builder
		b.WriteString(renderTags(merged, TagStyleFlow))
		if d.Preview != "" {
			b.WriteString("preview: " + d.Preview + "\n")
		}
		return b.String()
	}

	lines := strings.Split(strings.TrimSuffix(fm.Raw, "\n"), "\n")
	var out []string
	replaced := false
	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if !replaced && strings.HasPrefix(trimmed, "tags:") {
			out = append(out, strings.TrimSuffix(renderTags(merged, fm.Style), "\n"))
			replaced = true
			i++
			// Consume the list items of a block-style entry.
			for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "- ") {
				i++
			}
			continue
		}
		out = append(out, lines[i])
		i++
	}
	if !replaced {
		out = append(out, strings.TrimSuffix(renderTags(merged, fm.Style), "\n"))
	}
	if d.Preview != "" && fm.Preview == "" {
		out = append(out, "preview: "+d.Preview)
	}
	return strings.Join(out, "\n") + "\n"
}

// unionTags returns existing ∪ required, keeping the existing order and
// appending missing required tags at the end.
func unionTags(existing, required []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(required))
	for _, t := range existing {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range required {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// renderTags emits the tags entry in the given surface syntax, with a
// trailing newline.
func renderTags(tags []string, style TagStyle) string {
	switch style {
	case TagStyleInline:
		return "tags: " + strings.Join(tags, ", ") + "\n"
	case TagStyleBlock:
		var b strings.Builder
		b.WriteString("tags:\n")
		for _, t := range tags {
			b.WriteString("  - " + t + "\n")
		}
		return b.String()
	default:
		return "tags: [" + strings.Join(tags, ", ") + "]\n"
	}
}
