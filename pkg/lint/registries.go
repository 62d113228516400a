package lint

import (
	"slices"

	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/source"
)

var validParamTypes = map[ontology.ParamType]bool{
	ontology.ParamBool:   true,
	ontology.ParamNumber: true,
	ontology.ParamString: true,
	ontology.ParamEnum:   true,
}

var validPartKinds = map[ontology.PartKind]bool{
	ontology.PartKindPlant:   true,
	ontology.PartKindAnimal:  true,
	ontology.PartKindFungus:  true,
	ontology.PartKindDerived: true,
}

// checkParts validates the part registry: id grammar, uniqueness, category
// membership, parent resolution, acyclicity, and the derived-part rule that
// every derived part traces to a biological-kind ancestor. A part without a
// category is a hard error, never silently defaulted.
func checkParts(fs *findings, parts []ontology.Part, categories map[string]bool) {
	byID := make(map[string]ontology.Part, len(parts))
	for _, p := range parts {
		if err := ontology.ValidatePartID(p.ID); err != nil {
			fs.errorf(source.FileParts, 0, p.ID, CodeBadID, "%s", err.Error())
			continue
		}
		if _, dup := byID[p.ID]; dup {
			fs.errorf(source.FileParts, 0, p.ID, CodeDuplicateID, "part %s defined more than once", p.ID)
			continue
		}
		byID[p.ID] = p
	}

	for _, p := range parts {
		if !validPartKinds[p.Kind] {
			fs.errorf(source.FileParts, 0, p.ID, CodeBadID, "unknown part kind %q", p.Kind)
		}
		if p.Category == "" {
			fs.errorf(source.FileParts, 0, p.ID, CodeBadCategory, "part %s has no category", p.ID)
		} else if !categories[p.Category] {
			fs.errorf(source.FileParts, 0, p.ID, CodeBadCategory,
				"category %q is not in the category registry", p.Category)
		}
		if p.Parent != "" {
			if _, ok := byID[p.Parent]; !ok {
				fs.errorf(source.FileParts, 0, p.ID, CodeDanglingRef, "parent %s does not exist", p.Parent)
			}
		}
		checkDisplayName(fs, source.FileParts, 0, p.ID, p.DisplayName)
	}

	checkPartCycles(fs, byID)

	// The biological-ancestor rule needs an acyclic hierarchy to terminate,
	// so it runs over a registry snapshot after the cycle check.
	reg := ontology.NewRegistry(nil, parts, nil, nil)
	for _, p := range parts {
		if p.Kind != ontology.PartKindDerived {
			continue
		}
		if _, ok := reg.BiologicalAncestor(p.ID); !ok {
			fs.errorf(source.FileParts, 0, p.ID, CodeNoBioAncestor,
				"derived part %s has no biological-kind ancestor", p.ID)
		}
	}
}

func checkPartCycles(fs *findings, byID map[string]ontology.Part) {
	color := make(map[string]int, len(byID))

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, start := range ids {
		if color[start] != 0 {
			continue
		}
		id := start
		var stack []string
		for id != "" {
			if color[id] == 1 {
				fs.errorf(source.FileParts, 0, id, CodeCycle, "part hierarchy cycle anchored at %s", id)
				break
			}
			if color[id] == 2 {
				break
			}
			color[id] = 1
			stack = append(stack, id)
			p, ok := byID[id]
			if !ok {
				break
			}
			id = p.Parent
		}
		for _, s := range stack {
			color[s] = 2
		}
	}
}

// checkTransforms validates the transform registry: id grammar, uniqueness,
// parameter schema sanity.
func checkTransforms(fs *findings, transforms []ontology.Transform) {
	seen := make(map[string]bool, len(transforms))
	for _, tr := range transforms {
		if err := ontology.ValidateTransformID(tr.ID); err != nil {
			fs.errorf(source.FileTransforms, 0, tr.ID, CodeBadID, "%s", err.Error())
			continue
		}
		if seen[tr.ID] {
			fs.errorf(source.FileTransforms, 0, tr.ID, CodeDuplicateID,
				"transform %s defined more than once", tr.ID)
			continue
		}
		seen[tr.ID] = true

		paramNames := make(map[string]bool, len(tr.Params))
		for _, p := range tr.Params {
			if p.Name == "" {
				fs.errorf(source.FileTransforms, 0, tr.ID, CodeBadParam, "transform %s has an unnamed parameter", tr.ID)
				continue
			}
			if paramNames[p.Name] {
				fs.errorf(source.FileTransforms, 0, tr.ID, CodeBadParam,
					"transform %s declares parameter %q twice", tr.ID, p.Name)
			}
			paramNames[p.Name] = true
			if !validParamTypes[p.Type] {
				fs.errorf(source.FileTransforms, 0, tr.ID, CodeBadParam,
					"transform %s parameter %q has unknown type %q", tr.ID, p.Name, p.Type)
			}
			if p.Type == ontology.ParamEnum && len(p.Enum) == 0 {
				fs.errorf(source.FileTransforms, 0, tr.ID, CodeBadParam,
					"transform %s enum parameter %q declares no values", tr.ID, p.Name)
			}
			if p.Type != ontology.ParamEnum && len(p.Enum) > 0 {
				fs.errorf(source.FileTransforms, 0, tr.ID, CodeBadParam,
					"transform %s parameter %q is not enum but declares values", tr.ID, p.Name)
			}
		}
	}
}

// checkFamilies validates the family registry: id grammar, uniqueness, step
// references (identity-bearing transforms with declared parameters only),
// and applicability allowlist references.
func checkFamilies(fs *findings, families []ontology.Family, transforms map[string]*ontology.Transform, parts map[string]bool) {
	seen := make(map[string]bool, len(families))
	for _, fam := range families {
		if err := ontology.ValidateFamilyID(fam.ID); err != nil {
			fs.errorf(source.FileFamilies, 0, fam.ID, CodeBadID, "%s", err.Error())
			continue
		}
		if seen[fam.ID] {
			fs.errorf(source.FileFamilies, 0, fam.ID, CodeDuplicateID, "family %s defined more than once", fam.ID)
			continue
		}
		seen[fam.ID] = true

		for _, step := range fam.Steps {
			tr, ok := transforms[step.Transform]
			if !ok {
				fs.errorf(source.FileFamilies, 0, fam.ID, CodeDanglingRef,
					"family %s references unknown transform %s", fam.ID, step.Transform)
				continue
			}
			if !tr.Identity {
				fs.errorf(source.FileFamilies, 0, fam.ID, CodeNonIdentity,
					"family %s declares non-identity transform %s in its identity set", fam.ID, step.Transform)
			}
			for name := range step.Params {
				if _, ok := tr.Param(name); !ok {
					fs.errorf(source.FileFamilies, 0, fam.ID, CodeBadParam,
						"family %s sets unknown parameter %q on %s", fam.ID, name, step.Transform)
				}
			}
		}

		if len(fam.Applies) == 0 {
			fs.warnf(source.FileFamilies, 0, fam.ID, CodeBadExclusion,
				"family %s has an empty applicability allowlist and will never expand", fam.ID)
		}
		for _, app := range fam.Applies {
			if err := ontology.ValidateTaxonID(app.TaxonPrefix); err != nil {
				fs.errorf(source.FileFamilies, 0, fam.ID, CodeBadID,
					"family %s allowlist prefix: %s", fam.ID, err.Error())
			}
			if !parts[app.Part] {
				fs.errorf(source.FileFamilies, 0, fam.ID, CodeDanglingRef,
					"family %s allowlist references unknown part %s", fam.ID, app.Part)
			}
		}
	}
}

// checkRules validates applicability rules: both endpoints must resolve, and
// every exclusion must be a descendant of the rule's anchor taxon.
func checkRules(fs *findings, rules []source.Record[ontology.Rule], taxa map[string]source.Record[ontology.Taxon], parts map[string]bool) {
	for _, rec := range rules {
		r := rec.Value
		if !parts[r.Part] {
			fs.errorf(source.FileRules, rec.Line, r.Part, CodeDanglingRef, "rule references unknown part %s", r.Part)
		}
		if _, ok := taxa[r.Taxon]; !ok {
			fs.errorf(source.FileRules, rec.Line, r.Taxon, CodeDanglingRef, "rule references unknown taxon %s", r.Taxon)
			continue
		}
		for _, ex := range r.Exclude {
			if _, ok := taxa[ex]; !ok {
				fs.errorf(source.FileRules, rec.Line, ex, CodeDanglingRef, "rule excludes unknown taxon %s", ex)
				continue
			}
			if !descendsFrom(taxa, ex, r.Taxon) {
				fs.errorf(source.FileRules, rec.Line, ex, CodeBadExclusion,
					"exclusion %s is not a descendant of anchor %s", ex, r.Taxon)
			}
		}
	}
}

// descendsFrom walks parent links from id and reports whether ancestor is on
// the chain. id counts as its own descendant.
func descendsFrom(taxa map[string]source.Record[ontology.Taxon], id, ancestor string) bool {
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		if id == ancestor {
			return true
		}
		seen[id] = true
		rec, ok := taxa[id]
		if !ok {
			return false
		}
		id = rec.Value.Parent
	}
	return false
}
