package expand

import (
	"testing"

	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/source"
	"github.com/larderlab/larder/pkg/substrate"
)

func testRegistry() *ontology.Registry {
	transforms := []ontology.Transform{
		{ID: "tf:ferment", Identity: true, Order: 10, Params: []ontology.ParamSpec{
			{Name: "starter", Type: ontology.ParamEnum, Identity: true, Enum: []string{"yogurt_thermo"}},
		}},
		{ID: "tf:strain", Identity: true, Order: 20},
		{ID: "tf:wash", Identity: false, Order: 1},
	}
	families := []ontology.Family{
		{
			ID:    "DAIRY_YOGURT",
			Steps: []ontology.Step{{Transform: "tf:ferment", Params: map[string]any{"starter": "yogurt_thermo"}}},
			Applies: []ontology.Applicability{
				{TaxonPrefix: "tx:animalia:bovidae", Part: "part:milk"},
			},
		},
		{
			ID:    "DAIRY_YOGURT_STRAINED",
			Steps: []ontology.Step{{Transform: "tf:ferment"}, {Transform: "tf:strain"}},
		},
	}
	return ontology.NewRegistry(transforms, nil, families, nil)
}

func testSubstrates() *substrate.Result {
	return substrate.FromPairs([]ontology.Substrate{
		{Taxon: "tx:animalia:bovidae", Part: "part:milk"},
		{Taxon: "tx:animalia:bovidae:bos", Part: "part:milk"},
		{Taxon: "tx:animalia:bovidae:capra", Part: "part:milk"},
	}, nil)
}

func seedRecord(line int, s ontology.Seed) source.Record[ontology.Seed] {
	return source.Record[ontology.Seed]{Line: line, Value: s}
}

func TestExpandSeedMissingSubstrate(t *testing.T) {
	e := Expand([]source.Record[ontology.Seed]{
		seedRecord(3, ontology.Seed{Taxon: "tx:animalia:bovidae:bos", Part: "part:leaf"}),
	}, testRegistry(), testSubstrates())

	if len(e.Candidates) != 0 {
		t.Fatalf("candidates = %d, want 0 (batch has no family expansion sources here)", len(e.Candidates))
	}
	if len(e.Rejections) != 1 {
		t.Fatalf("rejections = %d, want 1", len(e.Rejections))
	}
	r := e.Rejections[0]
	if r.Code != errors.CodeMissingSubstrate {
		t.Errorf("code = %s, want %s", r.Code, errors.CodeMissingSubstrate)
	}
	if r.Origin != "seeds.ndjson:3" {
		t.Errorf("origin = %q, want line locator", r.Origin)
	}
}

func TestExpandSeedStripsNonIdentityBeforeFamilyMatch(t *testing.T) {
	// The wash step is non-identity; after stripping, the set {ferment}
	// matches DAIRY_YOGURT exactly.
	e := Expand([]source.Record[ontology.Seed]{
		seedRecord(1, ontology.Seed{
			Taxon: "tx:animalia:bovidae:bos", Part: "part:milk",
			Steps: []ontology.Step{
				{Transform: "tf:wash"},
				{Transform: "tf:ferment", Params: map[string]any{"starter": "yogurt_thermo"}},
			},
		}),
	}, testRegistry(), testSubstrates())

	if len(e.Rejections) != 0 {
		t.Fatalf("rejections: %+v", e.Rejections)
	}
	seed := e.Candidates[0]
	if seed.Family != "DAIRY_YOGURT" {
		t.Errorf("family = %q, want DAIRY_YOGURT", seed.Family)
	}
	if len(seed.Steps) != 1 || seed.Steps[0].Transform != "tf:ferment" {
		t.Errorf("steps = %+v, want the ferment step only", seed.Steps)
	}
}

func TestExpandSeedExplicitFamily(t *testing.T) {
	e := Expand([]source.Record[ontology.Seed]{
		seedRecord(1, ontology.Seed{
			Taxon: "tx:animalia:bovidae:bos", Part: "part:milk",
			Family: "DAIRY_YOGURT_STRAINED",
			Steps:  []ontology.Step{{Transform: "tf:ferment"}},
		}),
		seedRecord(2, ontology.Seed{
			Taxon: "tx:animalia:bovidae:bos", Part: "part:milk",
			Family: "NO_SUCH_FAMILY",
		}),
	}, testRegistry(), testSubstrates())

	if e.Candidates[0].Family != "DAIRY_YOGURT_STRAINED" {
		t.Errorf("explicit family ignored: %q", e.Candidates[0].Family)
	}
	if len(e.Rejections) != 1 || e.Rejections[0].Code != errors.CodeUnresolvedFamily {
		t.Errorf("nonexistent explicit family should reject, got %+v", e.Rejections)
	}
}

func TestExpandSeedUnmatchedFamilyIsUnknown(t *testing.T) {
	// {strain} alone matches no family's transform set; that is legal and
	// leaves the family unresolved rather than rejecting.
	e := Expand([]source.Record[ontology.Seed]{
		seedRecord(1, ontology.Seed{
			Taxon: "tx:animalia:bovidae:bos", Part: "part:milk",
			Steps: []ontology.Step{{Transform: "tf:strain"}},
		}),
	}, testRegistry(), testSubstrates())

	if len(e.Rejections) != 0 {
		t.Fatalf("rejections: %+v", e.Rejections)
	}
	if e.Candidates[0].Family != "" {
		t.Errorf("family = %q, want unresolved", e.Candidates[0].Family)
	}
}

func TestExpandSeedAmbiguousFamilyRejects(t *testing.T) {
	transforms := []ontology.Transform{{ID: "tf:ferment", Identity: true, Order: 10}}
	families := []ontology.Family{
		{ID: "FAM_A", Steps: []ontology.Step{{Transform: "tf:ferment"}}},
		{ID: "FAM_B", Steps: []ontology.Step{{Transform: "tf:ferment"}}},
	}
	reg := ontology.NewRegistry(transforms, nil, families, nil)

	e := Expand([]source.Record[ontology.Seed]{
		seedRecord(1, ontology.Seed{
			Taxon: "tx:animalia:bovidae", Part: "part:milk",
			Steps: []ontology.Step{{Transform: "tf:ferment"}},
		}),
	}, reg, testSubstrates())

	if len(e.Rejections) != 1 {
		t.Fatalf("rejections = %d, want 1", len(e.Rejections))
	}
	if e.Rejections[0].Code != errors.CodeUnresolvedFamily {
		t.Errorf("code = %s, want %s", e.Rejections[0].Code, errors.CodeUnresolvedFamily)
	}
}

func TestExpandFamilies(t *testing.T) {
	e := Expand(nil, testRegistry(), testSubstrates())

	// DAIRY_YOGURT applies to (tx:animalia:bovidae, part:milk) by prefix:
	// the anchor itself plus bos and capra. DAIRY_YOGURT_STRAINED has no
	// allowlist and expands to nothing.
	if len(e.Candidates) != 3 {
		t.Fatalf("candidates = %d, want 3: %+v", len(e.Candidates), e.Candidates)
	}
	wantTaxa := []string{"tx:animalia:bovidae", "tx:animalia:bovidae:bos", "tx:animalia:bovidae:capra"}
	for i, c := range e.Candidates {
		if c.Taxon != wantTaxa[i] {
			t.Errorf("candidate %d taxon = %q, want %q", i, c.Taxon, wantTaxa[i])
		}
		if c.Family != "DAIRY_YOGURT" || c.Part != "part:milk" {
			t.Errorf("candidate %d = %+v", i, c)
		}
		if c.Origin != "family:DAIRY_YOGURT" {
			t.Errorf("candidate %d origin = %q", i, c.Origin)
		}
	}
}

func TestExpandPrefixMatchIsSegmentAware(t *testing.T) {
	subs := substrate.FromPairs([]ontology.Substrate{
		{Taxon: "tx:animalia:bovidae_other", Part: "part:milk"},
	}, nil)
	e := Expand(nil, testRegistry(), subs)
	if len(e.Candidates) != 0 {
		t.Errorf("prefix %q must not match %q", "tx:animalia:bovidae", "tx:animalia:bovidae_other")
	}
}
