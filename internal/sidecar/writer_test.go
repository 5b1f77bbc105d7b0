package sidecar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/starford/raido/internal/models"
)

func sampleData() Data {
	return Data{
		FilePath: "scenes/scene.blend",
		File: models.FileRecord{
			UUID: "F1",
			Assets: []models.AssetRecord{
				{UUID: "A2", Name: "Lamp", Kind: models.KindObject},
				{UUID: "A1", Name: "Cube", Kind: models.KindObject},
			},
		},
		Libraries: map[string]models.LibraryRecord{
			"libs/props.blend": {
				UUID:   "L1",
				Assets: []models.AssetRecord{{UUID: "U1", Name: "Crate_v1", Kind: models.KindObject}},
			},
		},
		Resources: map[models.ResourceCategory][]models.ResourceRecord{
			models.ResourceTexture: {{Name: "wood.png", Path: "textures/wood.png"}},
		},
		RequiredTags: []string{"raido"},
	}
}

func TestRender_RoundTrip(t *testing.T) {
	d := sampleData()
	out := Render(nil, d)
	doc := Parse(out)

	if len(doc.Diags) != 0 {
		t.Fatalf("round-trip diagnostics: %v", doc.Diags)
	}
	if doc.CurrentFile == nil || doc.CurrentFile.Path != d.FilePath {
		t.Fatalf("current file = %+v", doc.CurrentFile)
	}
	if doc.CurrentFile.Record.UUID != "F1" || len(doc.CurrentFile.Record.Assets) != 2 {
		t.Errorf("file record = %+v", doc.CurrentFile.Record)
	}
	// Writer sorts assets by kind then name.
	if doc.CurrentFile.Record.Assets[0].Name != "Cube" {
		t.Errorf("assets not sorted: %+v", doc.CurrentFile.Record.Assets)
	}
	lib := doc.Library("libs/props.blend")
	if lib == nil || lib.Record.UUID != "L1" {
		t.Fatalf("library = %+v", lib)
	}
	if got := doc.Resources[models.ResourceTexture]; len(got) != 1 || got[0].Path != "textures/wood.png" {
		t.Errorf("textures = %+v", got)
	}
	if len(doc.Frontmatter.Tags) != 1 || doc.Frontmatter.Tags[0] != "raido" {
		t.Errorf("tags = %v", doc.Frontmatter.Tags)
	}
}

func TestRender_Deterministic(t *testing.T) {
	d := sampleData()
	first := Render(nil, d)
	second := Render(first, d)
	third := Render(second, d)
	if !bytes.Equal(second, third) {
		t.Errorf("rewriting without changes must be byte-stable:\n%q\n%q", second, third)
	}
}

func TestRender_PreservesUserContent(t *testing.T) {
	existing := []byte(`---
tags: [mine]
custom_field: kept
---
# My notes

Important paragraph with a [[wikilink]].

# Raido Sync Data

## Current File
stale generated stuff
`)
	out := string(Render(existing, sampleData()))

	if !strings.Contains(out, "# My notes\n\nImportant paragraph with a [[wikilink]].\n") {
		t.Errorf("user content lost:\n%s", out)
	}
	if !strings.Contains(out, "custom_field: kept") {
		t.Errorf("unrelated frontmatter line lost:\n%s", out)
	}
	if strings.Contains(out, "stale generated stuff") {
		t.Errorf("old generated block should be discarded:\n%s", out)
	}
}

func TestRender_TagUnionAndStylePreserved(t *testing.T) {
	existing := []byte("---\ntags:\n  - mine\n  - raido\n---\nbody\n")
	out := string(Render(existing, sampleData()))

	// Block style reused, existing tag kept, required tag not duplicated.
	if !strings.Contains(out, "tags:\n  - mine\n  - raido\n") {
		t.Errorf("tag style/union wrong:\n%s", out)
	}
	if strings.Count(out, "- raido") != 1 {
		t.Errorf("tag duplicated:\n%s", out)
	}
}

func TestRender_InlineTagStylePreserved(t *testing.T) {
	existing := []byte("---\ntags: mine\n---\nbody\n")
	out := string(Render(existing, sampleData()))
	if !strings.Contains(out, "tags: mine, raido\n") {
		t.Errorf("inline style not preserved:\n%s", out)
	}
}

func TestRender_NoMarkerAppendsGeneratedBlock(t *testing.T) {
	existing := []byte("just some text, no frontmatter, no marker\n")
	out := string(Render(existing, sampleData()))

	if !strings.Contains(out, "just some text, no frontmatter, no marker\n") {
		t.Errorf("user content lost:\n%s", out)
	}
	idxUser := strings.Index(out, "just some text")
	idxMarker := strings.Index(out, "# "+MarkerHeading)
	if idxMarker < idxUser {
		t.Errorf("generated block must come after user content:\n%s", out)
	}
}

func TestRender_PreviewOnlyWhenAbsent(t *testing.T) {
	d := sampleData()
	d.Preview = "previews/scene.png"
	out := string(Render(nil, d))
	if !strings.Contains(out, "preview: previews/scene.png") {
		t.Errorf("preview not written:\n%s", out)
	}

	existing := []byte("---\ntags: [raido]\npreview: custom.png\n---\nbody\n")
	out = string(Render(existing, d))
	if strings.Contains(out, "previews/scene.png") {
		t.Errorf("existing preview must not be overridden:\n%s", out)
	}
	if !strings.Contains(out, "preview: custom.png") {
		t.Errorf("existing preview lost:\n%s", out)
	}
}
