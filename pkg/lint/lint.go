package lint

import (
	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/source"
)

// Result holds all findings of a validation pass plus the normalized tables,
// which are only safe to consume when Passed reports true.
type Result struct {
	Findings []Finding

	// Taxa maps taxon id to its source record. Populated regardless of
	// findings so reports can still locate records.
	Taxa map[string]source.Record[ontology.Taxon]
}

// Passed reports whether the pass produced zero error-severity findings.
// Hard errors block all downstream stages.
func (r *Result) Passed() bool {
	return CountErrors(r.Findings) == 0
}

// Errors returns only the error-severity findings.
func (r *Result) Errors() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Validate runs every schema and cross-reference check over the source tree.
// It never stops at the first problem: authors get the complete finding list
// in one pass.
func Validate(tree *source.Tree) *Result {
	fs := &findings{}

	categories := make(map[string]bool, len(tree.Categories))
	for _, c := range tree.Categories {
		categories[c] = true
	}
	partIDs := make(map[string]bool, len(tree.Parts))
	for _, p := range tree.Parts {
		partIDs[p.ID] = true
	}
	transformsByID := make(map[string]*ontology.Transform, len(tree.Transforms))
	for i := range tree.Transforms {
		transformsByID[tree.Transforms[i].ID] = &tree.Transforms[i]
	}
	taxaByID := make(map[string]source.Record[ontology.Taxon], len(tree.Taxa))
	for _, rec := range tree.Taxa {
		if _, dup := taxaByID[rec.Value.ID]; !dup {
			taxaByID[rec.Value.ID] = rec
		}
	}

	checkTaxa(fs, tree.Taxa)
	checkParts(fs, tree.Parts, categories)
	checkTransforms(fs, tree.Transforms)
	checkFamilies(fs, tree.Families, transformsByID, partIDs)
	checkRules(fs, tree.Rules, taxaByID, partIDs)

	return &Result{
		Findings: fs.all,
		Taxa:     taxaByID,
	}
}
