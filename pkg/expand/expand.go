// Package expand produces TPT candidates from two sources that union
// downstream: hand-authored seeds checked against the substrate set, and
// family templates instantiated over their applicability allowlists.
//
// Failures here are per-record: a rejected candidate is collected into the
// rejection report with a structured code and the rest of the batch
// proceeds. Rejected candidates never reach the canonicalizer.
package expand

import (
	"fmt"
	"sort"
	"strings"

	"github.com/larderlab/larder/pkg/canonical"
	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/source"
	"github.com/larderlab/larder/pkg/substrate"
)

// Rejection is one dropped candidate with its structured code.
type Rejection struct {
	Origin  string      `json:"origin"` // e.g. "seeds.ndjson:12" or "family:DAIRY_YOGURT"
	Taxon   string      `json:"taxon,omitempty"`
	Part    string      `json:"part,omitempty"`
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// Expansion is the expander output: candidates ready for canonicalization
// plus everything that was dropped on the way.
type Expansion struct {
	Candidates []canonical.Candidate
	Rejections []Rejection
}

// Expand runs both producer paths and unions their candidates.
// Candidate order is deterministic: curated seeds in source order, then
// family expansion sorted by (family, taxon, part).
func Expand(seeds []source.Record[ontology.Seed], reg *ontology.Registry, subs *substrate.Result) *Expansion {
	e := &Expansion{}
	e.expandSeeds(seeds, reg, subs)
	e.expandFamilies(reg, subs)
	return e
}

func (e *Expansion) reject(origin, taxon, part string, code errors.Code, format string, args ...any) {
	e.Rejections = append(e.Rejections, Rejection{
		Origin: origin, Taxon: taxon, Part: part,
		Code: code, Message: fmt.Sprintf(format, args...),
	})
}

// expandSeeds validates each curated candidate against the substrate set,
// strips non-identity steps, and resolves its family.
func (e *Expansion) expandSeeds(seeds []source.Record[ontology.Seed], reg *ontology.Registry, subs *substrate.Result) {
	for _, rec := range seeds {
		origin := fmt.Sprintf("%s:%d", source.FileSeeds, rec.Line)
		cand, err := FromSeed(rec.Value, origin, reg, subs)
		if err != nil {
			e.reject(origin, rec.Value.Taxon, rec.Value.Part, errors.GetCode(err), "%s", errors.UserMessage(err))
			continue
		}
		e.Candidates = append(e.Candidates, cand)
	}
}

// FromSeed turns one curated seed into a candidate: substrate membership
// check, non-identity stripping, family resolution. The curation boundary
// runs external proposals through this same path so nothing external gets a
// laxer treatment than authored data.
func FromSeed(s ontology.Seed, origin string, reg *ontology.Registry, subs *substrate.Result) (canonical.Candidate, error) {
	if !subs.Has(s.Taxon, s.Part) {
		return canonical.Candidate{}, errors.New(errors.CodeMissingSubstrate,
			"(%s, %s) is not a legal substrate", s.Taxon, s.Part)
	}

	// Strip non-identity steps before family resolution so curated prep
	// detail never influences which family matches.
	kept, err := stripNonIdentity(s.Steps, reg)
	if err != nil {
		return canonical.Candidate{}, err
	}
	family, err := resolveFamily(s.Family, kept, reg)
	if err != nil {
		return canonical.Candidate{}, err
	}
	return canonical.Candidate{
		Taxon:  s.Taxon,
		Part:   s.Part,
		Family: family,
		Steps:  kept,
		Origin: origin,
	}, nil
}

// expandFamilies instantiates exactly one candidate per (family, allowlist
// entry, matching substrate) triple, using only the family's declared
// identity transforms and defaults. The cross-product of optional
// parameters is deliberately never generated.
func (e *Expansion) expandFamilies(reg *ontology.Registry, subs *substrate.Result) {
	var out []canonical.Candidate
	seen := make(map[string]bool)

	for _, famID := range reg.FamilyIDs() {
		fam, _ := reg.Family(famID)
		for _, app := range fam.Applies {
			for _, sub := range subs.Substrates {
				if sub.Part != app.Part || !taxonHasPrefix(sub.Taxon, app.TaxonPrefix) {
					continue
				}
				key := famID + "|" + sub.Key()
				if seen[key] {
					continue // overlapping allowlist entries collapse to one candidate
				}
				seen[key] = true
				out = append(out, canonical.Candidate{
					Taxon:  sub.Taxon,
					Part:   sub.Part,
					Family: famID,
					Steps:  fam.Steps,
					Origin: "family:" + famID,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		if out[i].Taxon != out[j].Taxon {
			return out[i].Taxon < out[j].Taxon
		}
		return out[i].Part < out[j].Part
	})
	e.Candidates = append(e.Candidates, out...)
}

// stripNonIdentity drops steps whose transform is not identity-bearing.
// An unknown transform anywhere in the chain rejects the whole candidate.
func stripNonIdentity(steps []ontology.Step, reg *ontology.Registry) ([]ontology.Step, error) {
	var kept []ontology.Step
	for _, st := range steps {
		tr, ok := reg.Transform(st.Transform)
		if !ok {
			return nil, errors.New(errors.CodeInvalidTransform, "unknown transform %s", st.Transform)
		}
		if tr.Identity {
			kept = append(kept, st)
		}
	}
	return kept, nil
}

// resolveFamily resolves a candidate's family from its explicit field or by
// exact match of its identity-transform set against each family's declared
// set.
//
// Zero matches is legal (the TPT carries the "unknown" family segment).
// Two or more equally matching families is a hard per-record error that
// requires manual disambiguation; there is intentionally no first-match
// fallback.
func resolveFamily(explicit string, steps []ontology.Step, reg *ontology.Registry) (string, error) {
	if explicit != "" {
		if _, ok := reg.Family(explicit); !ok {
			return "", errors.New(errors.CodeUnresolvedFamily, "family %s does not exist", explicit)
		}
		return explicit, nil
	}

	set := make(map[string]bool, len(steps))
	for _, st := range steps {
		set[st.Transform] = true
	}

	var matches []string
	for _, famID := range reg.FamilyIDs() {
		fam, _ := reg.Family(famID)
		if sameSet(set, fam.TransformSet()) {
			matches = append(matches, famID)
		}
	}

	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	default:
		return "", errors.New(errors.CodeUnresolvedFamily,
			"transform set matches families %s equally; disambiguate with an explicit family",
			strings.Join(matches, ", "))
	}
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// taxonHasPrefix reports whether taxon is prefix itself or a path
// descendant of it. Plain string prefixing is not enough: "tx:a:bo" must
// not match "tx:a:bos".
func taxonHasPrefix(taxon, prefix string) bool {
	return taxon == prefix || strings.HasPrefix(taxon, prefix+":")
}
