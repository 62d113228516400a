package ontology

import "testing"

func TestValidateTaxonID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"tx:animalia", false},
		{"tx:animalia:chordata:mammalia", false},
		{"tx:plantae:rosales:rosaceae:malus:domestica", false},
		{"tx:animalia:bos_taurus", false},
		{"", true},
		{"animalia", true},           // missing prefix
		{"tx:", true},                // empty path
		{"tx:Animalia", true},        // uppercase
		{"tx:animalia::bos", true},   // empty segment
		{"tx:animalia:9bos", true},   // segment starts with digit
		{"tx:animalia:bos-taurus", true}, // hyphen not allowed
	}

	for _, tt := range tests {
		err := ValidateTaxonID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTaxonID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestValidateFlatIDs(t *testing.T) {
	if err := ValidatePartID("part:milk"); err != nil {
		t.Errorf("part:milk should be valid: %v", err)
	}
	if err := ValidatePartID("tf:milk"); err == nil {
		t.Error("part id with transform prefix should fail")
	}
	if err := ValidateTransformID("tf:ferment"); err != nil {
		t.Errorf("tf:ferment should be valid: %v", err)
	}
	if err := ValidateTransformID("tf:milk:skim"); err == nil {
		t.Error("transform ids are single-segment")
	}
}

func TestValidateFamilyID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"DAIRY_YOGURT", false},
		{"CHEESE_FRESH", false},
		{"X9", false},
		{"dairy_yogurt", true},
		{"9DAIRY", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFamilyID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFamilyID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestTaxonKingdom(t *testing.T) {
	if got := TaxonKingdom("tx:animalia:chordata"); got != "animalia" {
		t.Errorf("kingdom = %q, want animalia", got)
	}
	if got := TaxonKingdom("bogus"); got != "" {
		t.Errorf("malformed id kingdom = %q, want empty", got)
	}
}

func TestTPTID(t *testing.T) {
	id := TPTID("tx:animalia:bos", "part:milk", "DAIRY_YOGURT", "abc123def456")
	want := "tpt:tx:animalia:bos:part:milk:DAIRY_YOGURT:abc123def456"
	if id != want {
		t.Errorf("TPTID = %q, want %q", id, want)
	}

	// Empty family falls back to the "unknown" segment.
	id = TPTID("tx:animalia:bos", "part:milk", "", "abc123def456")
	want = "tpt:tx:animalia:bos:part:milk:unknown:abc123def456"
	if id != want {
		t.Errorf("TPTID = %q, want %q", id, want)
	}
}

func TestNextRank(t *testing.T) {
	next, ok := NextRank("animalia", "genus")
	if !ok || next != "species" {
		t.Errorf("NextRank(animalia, genus) = %q, %v", next, ok)
	}

	// Terminal rank has no successor.
	if _, ok := NextRank("animalia", "subspecies"); ok {
		t.Error("terminal rank should have no successor")
	}

	// Unknown kingdom.
	if _, ok := NextRank("mineralia", "kingdom"); ok {
		t.Error("unknown kingdom should have no ladder")
	}
}

func TestBiologicalAncestor(t *testing.T) {
	parts := []Part{
		{ID: "part:milk", Kind: PartKindAnimal, Category: "cat:fluid"},
		{ID: "part:cream", Kind: PartKindDerived, Category: "cat:fluid", Parent: "part:milk"},
		{ID: "part:butter", Kind: PartKindDerived, Category: "cat:fat", Parent: "part:cream"},
		{ID: "part:orphan", Kind: PartKindDerived, Category: "cat:fat"},
	}
	r := NewRegistry(nil, parts, nil, []string{"cat:fluid", "cat:fat"})

	anc, ok := r.BiologicalAncestor("part:butter")
	if !ok || anc.ID != "part:milk" {
		t.Errorf("BiologicalAncestor(part:butter) = %v, %v, want part:milk", anc, ok)
	}

	if _, ok := r.BiologicalAncestor("part:orphan"); ok {
		t.Error("derived part without biological chain should not resolve")
	}
}
