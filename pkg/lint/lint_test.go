package lint

import (
	"strings"
	"testing"

	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/source"
)

func taxonRecords(taxa ...ontology.Taxon) []source.Record[ontology.Taxon] {
	out := make([]source.Record[ontology.Taxon], len(taxa))
	for i, t := range taxa {
		out[i] = source.Record[ontology.Taxon]{Line: i + 1, Value: t}
	}
	return out
}

// fixtureTree returns a minimal valid source tree that individual tests
// then break in targeted ways.
func fixtureTree() *source.Tree {
	return &source.Tree{
		Taxa: taxonRecords(
			ontology.Taxon{ID: "tx:animalia", Rank: "kingdom", DisplayName: "Animals"},
			ontology.Taxon{ID: "tx:animalia:chordata", Parent: "tx:animalia", Rank: "phylum", DisplayName: "Chordates"},
			ontology.Taxon{ID: "tx:animalia:chordata:mammalia", Parent: "tx:animalia:chordata", Rank: "class", DisplayName: "Mammals"},
		),
		Parts: []ontology.Part{
			{ID: "part:milk", Kind: ontology.PartKindAnimal, Category: "cat:fluid", DisplayName: "Milk"},
		},
		Transforms: []ontology.Transform{
			{ID: "tf:ferment", Identity: true, Order: 10, DisplayName: "Ferment"},
		},
		Families: []ontology.Family{
			{
				ID: "DAIRY_FERMENTED", DisplayName: "Fermented dairy",
				Steps:   []ontology.Step{{Transform: "tf:ferment"}},
				Applies: []ontology.Applicability{{TaxonPrefix: "tx:animalia:chordata:mammalia", Part: "part:milk"}},
			},
		},
		Categories: []string{"cat:fluid"},
		Rules: []source.Record[ontology.Rule]{
			{Line: 1, Value: ontology.Rule{Part: "part:milk", Taxon: "tx:animalia:chordata:mammalia"}},
		},
	}
}

func hasFinding(findings []Finding, code string, recordID string) bool {
	for _, f := range findings {
		if f.Code == code && f.RecordID == recordID {
			return true
		}
	}
	return false
}

func TestValidateCleanTree(t *testing.T) {
	res := Validate(fixtureTree())
	if !res.Passed() {
		t.Fatalf("clean tree should pass, got findings: %v", res.Findings)
	}
}

func TestValidateCycleCitesAnchor(t *testing.T) {
	tree := fixtureTree()
	// Splice a synthetic parent cycle below mammalia.
	tree.Taxa = append(tree.Taxa,
		source.Record[ontology.Taxon]{Line: 10, Value: ontology.Taxon{
			ID: "tx:animalia:chordata:mammalia:carnivora", Parent: "tx:animalia:chordata:mammalia:carnivora:felidae", Rank: "order",
		}},
		source.Record[ontology.Taxon]{Line: 11, Value: ontology.Taxon{
			ID: "tx:animalia:chordata:mammalia:carnivora:felidae", Parent: "tx:animalia:chordata:mammalia:carnivora", Rank: "family",
		}},
	)

	res := Validate(tree)
	if res.Passed() {
		t.Fatal("cycle should fail validation")
	}

	found := false
	for _, f := range res.Findings {
		if f.Code == CodeCycle {
			found = true
			if !strings.HasPrefix(f.RecordID, "tx:animalia:chordata:mammalia:carnivora") {
				t.Errorf("cycle finding should cite a taxon on the cycle, got %q", f.RecordID)
			}
		}
	}
	if !found {
		t.Error("expected a cycle finding")
	}
}

func TestValidateRankLadder(t *testing.T) {
	tree := fixtureTree()
	// Skipping class: phylum -> order is illegal.
	tree.Taxa = append(tree.Taxa, source.Record[ontology.Taxon]{Line: 9, Value: ontology.Taxon{
		ID: "tx:animalia:chordata:carnivora", Parent: "tx:animalia:chordata", Rank: "order",
	}})

	res := Validate(tree)
	if !hasFinding(res.Findings, CodeRankLadder, "tx:animalia:chordata:carnivora") {
		t.Errorf("skipped rank should be flagged, findings: %v", res.Findings)
	}
}

func TestValidateParentlessNonKingdom(t *testing.T) {
	tree := fixtureTree()
	tree.Taxa = append(tree.Taxa, source.Record[ontology.Taxon]{Line: 9, Value: ontology.Taxon{
		ID: "tx:animalia:stray", Rank: "phylum",
	}})

	res := Validate(tree)
	if !hasFinding(res.Findings, CodeRankLadder, "tx:animalia:stray") {
		t.Error("parentless non-kingdom taxon should be flagged")
	}
}

func TestValidateDanglingParent(t *testing.T) {
	tree := fixtureTree()
	tree.Taxa = append(tree.Taxa, source.Record[ontology.Taxon]{Line: 9, Value: ontology.Taxon{
		ID: "tx:animalia:mollusca:bivalvia", Parent: "tx:animalia:mollusca", Rank: "class",
	}})

	res := Validate(tree)
	if !hasFinding(res.Findings, CodeDanglingRef, "tx:animalia:mollusca:bivalvia") {
		t.Error("dangling parent should be flagged")
	}
}

func TestValidateMissingCategory(t *testing.T) {
	tree := fixtureTree()
	tree.Parts = append(tree.Parts, ontology.Part{
		ID: "part:liver", Kind: ontology.PartKindAnimal, DisplayName: "Liver",
	})

	res := Validate(tree)
	if !hasFinding(res.Findings, CodeBadCategory, "part:liver") {
		t.Error("part without category should be a hard error")
	}
	if res.Passed() {
		t.Error("missing category must block")
	}
}

func TestValidateDerivedWithoutBiologicalAncestor(t *testing.T) {
	tree := fixtureTree()
	tree.Parts = append(tree.Parts, ontology.Part{
		ID: "part:extract", Kind: ontology.PartKindDerived, Category: "cat:fluid", DisplayName: "Extract",
	})

	res := Validate(tree)
	if !hasFinding(res.Findings, CodeNoBioAncestor, "part:extract") {
		t.Error("derived part without biological ancestor should be flagged")
	}
}

func TestValidateBannedTermIsWarningOnly(t *testing.T) {
	tree := fixtureTree()
	tree.Taxa[2].Value.DisplayName = "Organic Mammals"

	res := Validate(tree)
	if !res.Passed() {
		t.Fatalf("banned term must not block, findings: %v", res.Findings)
	}
	if !hasFinding(res.Findings, CodeBannedTerm, "tx:animalia:chordata:mammalia") {
		t.Error("banned term should still be reported")
	}
}

func TestValidateExclusionOutsideAnchor(t *testing.T) {
	tree := fixtureTree()
	tree.Rules = append(tree.Rules, source.Record[ontology.Rule]{Line: 2, Value: ontology.Rule{
		Part:    "part:milk",
		Taxon:   "tx:animalia:chordata:mammalia",
		Exclude: []string{"tx:animalia:chordata"}, // ancestor, not descendant
	}})

	res := Validate(tree)
	if !hasFinding(res.Findings, CodeBadExclusion, "tx:animalia:chordata") {
		t.Error("exclusion outside the anchor subtree should be flagged")
	}
}

func TestValidateAmbiguousFamilyStepParam(t *testing.T) {
	tree := fixtureTree()
	tree.Families[0].Steps[0].Params = map[string]any{"starter": "thermo"}

	res := Validate(tree)
	if !hasFinding(res.Findings, CodeBadParam, "DAIRY_FERMENTED") {
		t.Error("family setting an undeclared parameter should be flagged")
	}
}

func TestValidateDeprecationForwarding(t *testing.T) {
	tree := fixtureTree()
	tree.Taxa[2].Value.Status = ontology.TaxonDeprecated

	res := Validate(tree)
	if !hasFinding(res.Findings, CodeBadDeprecation, "tx:animalia:chordata:mammalia") {
		t.Error("deprecated taxon without succeeded_by should be flagged")
	}
}
