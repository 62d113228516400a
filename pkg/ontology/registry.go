package ontology

import (
	"slices"
)

// Registry is an immutable snapshot of the definition tables: transforms,
// parts, families, and the closed part-category registry.
//
// A Registry is built once per run from validated sources and passed
// explicitly into every stage that needs definition lookups. Mutating the
// source slices after construction is not supported.
type Registry struct {
	transforms map[string]*Transform
	parts      map[string]*Part
	families   map[string]*Family
	categories map[string]bool

	transformIDs []string
	partIDs      []string
	familyIDs    []string
}

// NewRegistry builds a registry snapshot from definition slices.
// Later duplicates win; duplicate detection is the validator's job.
func NewRegistry(transforms []Transform, parts []Part, families []Family, categories []string) *Registry {
	r := &Registry{
		transforms: make(map[string]*Transform, len(transforms)),
		parts:      make(map[string]*Part, len(parts)),
		families:   make(map[string]*Family, len(families)),
		categories: make(map[string]bool, len(categories)),
	}
	for i := range transforms {
		t := transforms[i]
		r.transforms[t.ID] = &t
	}
	for i := range parts {
		p := parts[i]
		r.parts[p.ID] = &p
	}
	for i := range families {
		f := families[i]
		r.families[f.ID] = &f
	}
	for _, c := range categories {
		r.categories[c] = true
	}
	for id := range r.transforms {
		r.transformIDs = append(r.transformIDs, id)
	}
	for id := range r.parts {
		r.partIDs = append(r.partIDs, id)
	}
	for id := range r.families {
		r.familyIDs = append(r.familyIDs, id)
	}
	slices.Sort(r.transformIDs)
	slices.Sort(r.partIDs)
	slices.Sort(r.familyIDs)
	return r
}

// Transform returns the transform definition for id, or false.
func (r *Registry) Transform(id string) (*Transform, bool) {
	t, ok := r.transforms[id]
	return t, ok
}

// Part returns the part definition for id, or false.
func (r *Registry) Part(id string) (*Part, bool) {
	p, ok := r.parts[id]
	return p, ok
}

// Family returns the family definition for id, or false.
func (r *Registry) Family(id string) (*Family, bool) {
	f, ok := r.families[id]
	return f, ok
}

// Category reports whether the category is in the closed registry.
func (r *Registry) Category(id string) bool {
	return r.categories[id]
}

// TransformIDs returns all transform ids in sorted order.
func (r *Registry) TransformIDs() []string { return r.transformIDs }

// PartIDs returns all part ids in sorted order.
func (r *Registry) PartIDs() []string { return r.partIDs }

// FamilyIDs returns all family ids in sorted order.
func (r *Registry) FamilyIDs() []string { return r.familyIDs }

// BiologicalAncestor walks parent links from the part with the given id and
// returns the first ancestor (or the part itself) whose kind is biological.
// Returns false when the chain ends, cycles, or crosses a missing part
// without reaching one.
func (r *Registry) BiologicalAncestor(id string) (*Part, bool) {
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		seen[id] = true
		p, ok := r.parts[id]
		if !ok {
			return nil, false
		}
		if p.Kind.biological() {
			return p, true
		}
		id = p.Parent
	}
	return nil, false
}
