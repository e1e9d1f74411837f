package metadata_test

import (
	"errors"
	"testing"

	"archflow/internal/metadata"
	"archflow/internal/services"
)

const sampleMODS = `<?xml version="1.0" encoding="UTF-8"?>
<mods:mods xmlns:mods="http://www.loc.gov/mods/v3">
  <mods:titleInfo type="alternative"><mods:title>Alt</mods:title></mods:titleInfo>
  <mods:titleInfo>
    <mods:title>Pražské   noviny</mods:title>
    <mods:subTitle>Ročník</mods:subTitle>
    <mods:partNumber>12</mods:partNumber>
  </mods:titleInfo>
  <mods:identifier type="barcode">2610012345</mods:identifier>
  <mods:identifier type="ISBN" invalid="yes">bad</mods:identifier>
  <mods:identifier type="isbn">80-01-00001-1</mods:identifier>
</mods:mods>`

func TestParseMODS(t *testing.T) {
	summary, err := metadata.ParseMODS(sampleMODS)
	if err != nil {
		t.Fatalf("ParseMODS returned error: %v", err)
	}
	if summary.Title != "Pražské noviny" {
		t.Fatalf("unexpected title %q", summary.Title)
	}
	if got := summary.Label(); got != "Pražské noviny, Ročník, 12" {
		t.Fatalf("unexpected label %q", got)
	}
	if summary.Identifier("barcode") != "2610012345" {
		t.Fatalf("unexpected barcode %q", summary.Identifier("barcode"))
	}
	if summary.Identifier("ISBN") != "80-01-00001-1" {
		t.Fatalf("invalid identifiers must be skipped, got %q", summary.Identifier("isbn"))
	}
}

func TestParseMODSCollection(t *testing.T) {
	doc := `<modsCollection xmlns="http://www.loc.gov/mods/v3">
  <mods><titleInfo><title>First</title></titleInfo></mods>
  <mods><titleInfo><title>Second</title></titleInfo></mods>
</modsCollection>`
	summary, err := metadata.ParseMODS(doc)
	if err != nil {
		t.Fatalf("ParseMODS returned error: %v", err)
	}
	if summary.Label() != "First" {
		t.Fatalf("expected first record, got %q", summary.Label())
	}
}

func TestParseMODSRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":        "  ",
		"unclosed":     "<mods><titleInfo>",
		"wrong root":   "<record/>",
		"two roots":    "<mods/><mods/>",
		"trailing":     "<mods/>junk",
		"leading text": "junk<mods/>",
		"empty coll":   "<modsCollection/>",
	}
	for name, doc := range cases {
		err := metadata.Validate(doc)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
