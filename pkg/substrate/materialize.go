package substrate

import (
	"sort"

	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/ontology"
)

// Result is the materializer output: the full substrate set and the
// ancestor-closure tables for both hierarchies.
type Result struct {
	Substrates  []ontology.Substrate
	TaxonRows   []ClosureRow
	PartRows    []ClosureRow
	substrates  map[string]bool
	taxonClose  *Closure
}

// Has reports whether (taxon, part) is a legal substrate.
func (r *Result) Has(taxon, part string) bool {
	return r.substrates[ontology.Substrate{Taxon: taxon, Part: part}.Key()]
}

// TaxonClosure exposes the taxon closure for downstream prefix/ancestor
// queries (family expansion, packing).
func (r *Result) TaxonClosure() *Closure { return r.taxonClose }

// Materialize computes the substrate set from validated taxa, parts, and
// applicability rules.
//
// Each rule anchors a part at a taxon and applies to the anchor and all of
// its descendants, minus the subtrees rooted at the rule's exclusions.
// Membership is decided by closure lookup, never a recursive walk.
//
// Preconditions (part categories present, derived parts rooted) were already
// enforced by validation; Materialize re-checks them and fails closed rather
// than defaulting, in case it is invoked on an unvalidated registry.
func Materialize(taxa []ontology.Taxon, reg *ontology.Registry, rules []ontology.Rule) (*Result, error) {
	for _, id := range reg.PartIDs() {
		p, _ := reg.Part(id)
		if p.Category == "" {
			return nil, errors.New(errors.CodeInvalidSource, "part %s has no category", id)
		}
		if p.Kind == ontology.PartKindDerived {
			if _, ok := reg.BiologicalAncestor(id); !ok {
				return nil, errors.New(errors.CodeInvalidSource,
					"derived part %s has no biological-kind ancestor", id)
			}
		}
	}

	taxonParents := make(map[string]string, len(taxa))
	for _, t := range taxa {
		taxonParents[t.ID] = t.Parent
	}
	partParents := make(map[string]string)
	for _, id := range reg.PartIDs() {
		p, _ := reg.Part(id)
		partParents[p.ID] = p.Parent
	}

	taxonClose := BuildClosure(taxonParents)
	partClose := BuildClosure(partParents)

	set := make(map[string]bool)
	var substrates []ontology.Substrate
	for _, rule := range rules {
		for _, desc := range taxonClose.Descendants(rule.Taxon) {
			excluded := false
			for _, ex := range rule.Exclude {
				if taxonClose.HasAncestor(desc, ex) {
					excluded = true
					break
				}
			}
			if excluded {
				continue
			}
			s := ontology.Substrate{Taxon: desc, Part: rule.Part}
			if !set[s.Key()] {
				set[s.Key()] = true
				substrates = append(substrates, s)
			}
		}
	}

	sort.Slice(substrates, func(i, j int) bool {
		if substrates[i].Taxon != substrates[j].Taxon {
			return substrates[i].Taxon < substrates[j].Taxon
		}
		return substrates[i].Part < substrates[j].Part
	})

	return &Result{
		Substrates: substrates,
		TaxonRows:  taxonClose.Rows(),
		PartRows:   partClose.Rows(),
		substrates: set,
		taxonClose: taxonClose,
	}, nil
}

// FromPairs rebuilds a queryable substrate set from previously materialized
// pairs, for stages that load the substrate artifact instead of recomputing.
func FromPairs(pairs []ontology.Substrate, taxonRows []ClosureRow) *Result {
	set := make(map[string]bool, len(pairs))
	for _, s := range pairs {
		set[s.Key()] = true
	}
	c := &Closure{ancestors: make(map[string]map[string]int)}
	for _, row := range taxonRows {
		if c.ancestors[row.Descendant] == nil {
			c.ancestors[row.Descendant] = make(map[string]int)
		}
		c.ancestors[row.Descendant][row.Ancestor] = row.Depth
		c.rows = append(c.rows, row)
	}
	return &Result{
		Substrates: pairs,
		TaxonRows:  taxonRows,
		substrates: set,
		taxonClose: c,
	}
}
