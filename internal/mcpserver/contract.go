package mcpserver

// SidecarFormatContract describes the canonical sidecar document format
// that external tools and LLM consumers must follow when reading or
// editing sidecar files.
const SidecarFormatContract = `# Raido Sidecar Format Contract

Every blend file tracked by Raido has a companion sidecar document at
` + "`" + `<file>.blend.side.md` + "`" + `. Sidecars are ordinary Markdown and safe to edit by
hand; Raido rewrites only the sections it owns and preserves everything else.

## Structure

` + "```" + `markdown
---
tags: [raido]
---

User notes go here. Raido never touches content outside its marker.

# Raido Sync Data

## Current File

[shot.blend](shot.blend)
` + "```" + `json
{"uuid": "…", "assets": [{"uuid": "…", "name": "Crate", "kind": "object"}]}
` + "```" + `

## Linked Libraries

[props.blend](libs/props.blend)
` + "```" + `json
{"uuid": "…", "assets": [{"uuid": "…", "name": "Crate", "kind": "object"}]}
` + "```" + `

## Resources

### Texture

[wood.png](textures/wood.png)
` + "```" + `

## Rules

1. **The marker heading** ` + "`" + `# Raido Sync Data` + "`" + ` separates user content (above)
   from machine-owned data (below). Never write below the marker; Raido
   regenerates that region on every save.
2. **Paths are vault-relative** with forward slashes. A legacy sidecar may
   link a library through its own sidecar path (` + "`" + `…blend.side.md` + "`" + `); both
   encodings resolve to the blend path.
3. **UUIDs are stable identity.** Renaming an asset in its home file keeps
   its UUID; consumers must match by UUID, never by name.
4. **The Current File section is authoritative** for every datablock local
   to that file. Linked Libraries entries are only the writing file's cache.
5. **Resource categories** are level-3 headings: Texture, Video, Audio,
   Text, Cache. Resources carry no UUID and are matched by display name.
6. **Relocation redirects** live next to the blend file as
   ` + "`" + `<file>.blend.redirect.md` + "`" + `: the line ` + "`" + `%%raido-redirect%%` + "`" + ` followed by one
   Markdown link naming the file's current path. Tools that move a blend
   file should rewrite that link and leave the rest alone; Raido notices
   the divergence and asks the user to confirm.
`
