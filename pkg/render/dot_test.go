package render

import (
	"strings"
	"testing"

	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/stage"
)

func TestTaxaDOT(t *testing.T) {
	dot := TaxaDOT([]ontology.Taxon{
		{ID: "tx:animalia", Rank: "kingdom", DisplayName: "Animals"},
		{ID: "tx:animalia:bos", Parent: "tx:animalia", Rank: "genus", DisplayName: "Cattle"},
		{ID: "tx:animalia:old", Parent: "tx:animalia", Rank: "genus", DisplayName: "Old", Status: ontology.TaxonDeprecated},
	})

	if !strings.Contains(dot, `"tx:animalia" -> "tx:animalia:bos";`) {
		t.Errorf("missing parent edge:\n%s", dot)
	}
	if !strings.Contains(dot, "dashed") {
		t.Error("deprecated taxon should render dashed")
	}
	if !strings.HasPrefix(dot, "digraph G {") {
		t.Error("not a digraph")
	}
}

func TestPartsDOT(t *testing.T) {
	dot := PartsDOT([]ontology.Part{
		{ID: "part:milk", Kind: ontology.PartKindAnimal, DisplayName: "Milk"},
		{ID: "part:curd", Kind: ontology.PartKindDerived, Parent: "part:milk", DisplayName: "Curd"},
	})

	if !strings.Contains(dot, `"part:milk" -> "part:curd";`) {
		t.Errorf("missing hierarchy edge:\n%s", dot)
	}
	if !strings.Contains(dot, "lightyellow") {
		t.Error("derived part should be tinted")
	}
}

func TestStagesDOT(t *testing.T) {
	dot := StagesDOT(stage.Stages())

	if !strings.Contains(dot, `"validate" -> "substrates";`) {
		t.Errorf("missing stage dependency edge:\n%s", dot)
	}
	if !strings.Contains(dot, `"canonicalize" -> "pack";`) {
		t.Errorf("missing stage dependency edge:\n%s", dot)
	}
}

func TestTaxaDOTDeterministic(t *testing.T) {
	taxa := []ontology.Taxon{
		{ID: "tx:b", Rank: "kingdom", DisplayName: "B"},
		{ID: "tx:a", Rank: "kingdom", DisplayName: "A"},
	}
	if TaxaDOT(taxa) != TaxaDOT([]ontology.Taxon{taxa[1], taxa[0]}) {
		t.Error("input order must not affect output")
	}
}
