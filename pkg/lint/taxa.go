package lint

import (
	"slices"
	"strings"

	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/source"
)

// bannedTerms are marketing adjectives that do not belong in ontology
// display names. Their presence is advisory only.
var bannedTerms = []string{"organic", "natural", "artisanal", "gourmet", "premium"}

// checkTaxa validates the taxon collection: id grammar, uniqueness, parent
// resolution, per-kingdom rank ladders without skipped ranks, deprecation
// forwarding, and hierarchy acyclicity.
func checkTaxa(fs *findings, taxa []source.Record[ontology.Taxon]) {
	byID := make(map[string]source.Record[ontology.Taxon], len(taxa))

	for _, rec := range taxa {
		t := rec.Value
		if err := ontology.ValidateTaxonID(t.ID); err != nil {
			fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeBadID, "%s", err.Error())
			continue
		}
		if _, dup := byID[t.ID]; dup {
			fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeDuplicateID, "taxon %s defined more than once", t.ID)
			continue
		}
		byID[t.ID] = rec
	}

	for _, rec := range taxa {
		t := rec.Value
		if _, ok := byID[t.ID]; !ok {
			continue // already reported above
		}

		kingdom := ontology.TaxonKingdom(t.ID)
		if !ontology.KnownKingdom(kingdom) {
			fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeRankLadder, "unknown kingdom %q", kingdom)
			continue
		}

		if t.Parent == "" {
			// Only kingdom roots may lack a parent.
			if t.Rank != "kingdom" {
				fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeRankLadder,
					"taxon %s has no parent but rank %q (only kingdom roots are parentless)", t.ID, t.Rank)
			}
		} else {
			parent, ok := byID[t.Parent]
			if !ok {
				fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeDanglingRef, "parent %s does not exist", t.Parent)
			} else if next, ok := ontology.NextRank(kingdom, parent.Value.Rank); !ok || next != t.Rank {
				fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeRankLadder,
					"rank %q cannot follow parent rank %q in the %s ladder", t.Rank, parent.Value.Rank, kingdom)
			}
		}

		switch t.Status {
		case "", ontology.TaxonActive:
		case ontology.TaxonDeprecated:
			if t.SucceededBy == "" {
				fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeBadDeprecation,
					"deprecated taxon %s needs a succeeded_by forwarding reference", t.ID)
			} else if _, ok := byID[t.SucceededBy]; !ok {
				fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeBadDeprecation,
					"succeeded_by %s does not exist", t.SucceededBy)
			}
		default:
			fs.errorf(source.FileTaxa, rec.Line, t.ID, CodeBadID, "unknown status %q", t.Status)
		}

		checkDisplayName(fs, source.FileTaxa, rec.Line, t.ID, t.DisplayName)
	}

	checkTaxonCycles(fs, byID)
}

// checkTaxonCycles runs a depth-first search with an explicit recursion
// stack over parent edges and reports the anchor node of the first cycle
// found.
func checkTaxonCycles(fs *findings, byID map[string]source.Record[ontology.Taxon]) {
	const (
		white = 0 // unvisited
		gray  = 1 // on the recursion stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(byID))

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	// Deterministic visit order so the reported anchor is stable.
	slices.Sort(ids)

	for _, start := range ids {
		if color[start] != white {
			continue
		}
		id := start
		var stack []string
		for id != "" {
			if color[id] == gray {
				// id is the anchor: the first node revisited on the stack.
				rec := byID[id]
				fs.errorf(source.FileTaxa, rec.Line, id, CodeCycle,
					"taxon hierarchy cycle anchored at %s", id)
				break
			}
			if color[id] == black {
				break
			}
			color[id] = gray
			stack = append(stack, id)

			rec, ok := byID[id]
			if !ok {
				break // dangling parent, reported elsewhere
			}
			id = rec.Value.Parent
		}
		for _, s := range stack {
			color[s] = black
		}
	}
}

func checkDisplayName(fs *findings, file string, line int, recordID, name string) {
	lower := strings.ToLower(name)
	for _, term := range bannedTerms {
		if strings.Contains(lower, term) {
			fs.warnf(file, line, recordID, CodeBannedTerm,
				"display name %q contains banned term %q", name, term)
		}
	}
}
