// Package ontology defines the core data model of the larder compiler:
// taxa, parts, transforms, families, applicability rules, curated seeds,
// derived substrates, and the terminal TPT identity records.
//
// Authored entities (Taxon, Part, Transform, Family, Rule, Seed) are loaded
// from git-versioned source files. Derived entities (Substrate, TPT) are
// recomputed on every run and hold no independent state between runs.
//
// All lookups go through an immutable [Registry] snapshot that is built once
// per run and passed explicitly into each stage. Stages never consult ambient
// global state, so they remain independently testable with fixture registries.
package ontology

// TaxonStatus marks whether a taxon is live or has been superseded.
// Taxa are never deleted, only deprecated with a forwarding reference.
type TaxonStatus string

const (
	// TaxonActive is a live taxon.
	TaxonActive TaxonStatus = "active"
	// TaxonDeprecated is a superseded taxon; SucceededBy names its replacement.
	TaxonDeprecated TaxonStatus = "deprecated"
)

// Taxon is a node in the biological classification hierarchy.
//
// The ID is a stable path-encoded string (e.g. "tx:animalia:chordata:...:bos:taurus").
// Every taxon except a kingdom root has exactly one parent.
type Taxon struct {
	ID          string      `json:"id"`
	Parent      string      `json:"parent,omitempty"`
	Rank        string      `json:"rank"`
	DisplayName string      `json:"display_name"`
	Status      TaxonStatus `json:"status,omitempty"`
	SucceededBy string      `json:"succeeded_by,omitempty"`
}

// PartKind classifies a part as anatomical (per biological kingdom) or as a
// derived product.
type PartKind string

const (
	PartKindPlant   PartKind = "plant"
	PartKindAnimal  PartKind = "animal"
	PartKindFungus  PartKind = "fungus"
	PartKindDerived PartKind = "derived"
)

// biological reports whether the kind is a biological (non-derived) kind.
func (k PartKind) biological() bool {
	return k == PartKindPlant || k == PartKindAnimal || k == PartKindFungus
}

// Part is a node in the anatomical/derived-product hierarchy.
//
// Derived parts must trace, through Parent links, to an ancestor with a
// biological kind; this is a hard validation error when unsatisfiable.
type Part struct {
	ID          string   `toml:"id" json:"id"`
	Kind        PartKind `toml:"kind" json:"kind"`
	Category    string   `toml:"category" json:"category"`
	Parent      string   `toml:"parent,omitempty" json:"parent,omitempty"`
	DisplayName string   `toml:"display_name" json:"display_name"`
}

// ParamType is the declared type of a transform parameter.
type ParamType string

const (
	ParamBool   ParamType = "bool"
	ParamNumber ParamType = "number"
	ParamString ParamType = "string"
	ParamEnum   ParamType = "enum"
)

// ParamSpec declares one typed parameter of a transform.
// Only identity-bearing parameters participate in TPT hashing.
type ParamSpec struct {
	Name     string    `toml:"name" json:"name"`
	Type     ParamType `toml:"type" json:"type"`
	Identity bool      `toml:"identity" json:"identity"`
	Enum     []string  `toml:"enum,omitempty" json:"enum,omitempty"`
}

// Transform is a named processing operation.
//
// Identity marks whether instances of the transform participate in TPT
// identity at all; Order is its declared total-order rank used for
// deterministic chain sorting (ties broken by ID).
type Transform struct {
	ID          string      `toml:"id" json:"id"`
	DisplayName string      `toml:"display_name" json:"display_name"`
	Identity    bool        `toml:"identity" json:"identity"`
	Order       int         `toml:"order" json:"order"`
	Params      []ParamSpec `toml:"params,omitempty" json:"params,omitempty"`
}

// Param returns the parameter spec with the given name, or false.
func (t *Transform) Param(name string) (ParamSpec, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Step is one transform application with raw (not yet validated) parameters.
// Authoring order of steps never affects identity.
type Step struct {
	Transform string         `toml:"transform" json:"transform"`
	Params    map[string]any `toml:"params,omitempty" json:"params,omitempty"`
}

// Applicability is one allowlist entry of a family: the family applies to
// every substrate whose taxon id starts with TaxonPrefix and whose part
// matches Part exactly.
type Applicability struct {
	TaxonPrefix string `toml:"taxon_prefix" json:"taxon_prefix"`
	Part        string `toml:"part" json:"part"`
}

// Family is a named product archetype used to mass-generate TPT candidates.
//
// Steps declares the family's identity-bearing transform set with default
// parameters. Expansion instantiates exactly the declared set, never the
// cross-product of optional parameters.
type Family struct {
	ID          string          `toml:"id" json:"id"`
	DisplayName string          `toml:"display_name" json:"display_name"`
	Steps       []Step          `toml:"steps" json:"steps"`
	Applies     []Applicability `toml:"applies" json:"applies"`
}

// TransformSet returns the set of transform ids the family declares.
func (f *Family) TransformSet() map[string]bool {
	set := make(map[string]bool, len(f.Steps))
	for _, s := range f.Steps {
		set[s.Transform] = true
	}
	return set
}

// Rule anchors a part at a taxon: the part applies to the anchor and all of
// its descendants, minus the subtrees rooted at the Exclude entries.
type Rule struct {
	Part    string   `json:"part"`
	Taxon   string   `json:"taxon"`
	Exclude []string `json:"exclude,omitempty"`
}

// Seed is a hand-authored TPT candidate.
type Seed struct {
	Taxon  string `json:"taxon"`
	Part   string `json:"part"`
	Family string `json:"family,omitempty"`
	Steps  []Step `json:"steps"`
}

// Substrate is a derived, validated (Taxon, Part) pair. Substrates are the
// sole basis for constructing transform chains; they are never authored
// directly.
type Substrate struct {
	Taxon string `json:"taxon"`
	Part  string `json:"part"`
}

// Key returns the substrate's composite lookup key.
func (s Substrate) Key() string { return s.Taxon + "|" + s.Part }

// CanonicalStep is a validated, ordered, bucketed step of a canonical TPT.
// Params hold only identity-bearing parameters after bucketing; numeric
// values that were bucketed carry their label as a string.
type CanonicalStep struct {
	Transform string         `json:"transform"`
	Params    map[string]any `json:"params,omitempty"`
}

// UnknownFamily is the family segment used in TPT ids when no family
// resolved for a candidate.
const UnknownFamily = "unknown"

// TPT is the terminal identity record: taxon + part + ordered identity-bearing
// transform chain + resolved family.
//
// ID is "tpt:{taxon}:{part}:{family|unknown}:{identity_hash}" where the hash
// depends only on the canonicalized step payload. Identical semantic payloads
// always produce identical ids; changing a recipe yields a new TPT, never a
// mutation of an existing one.
type TPT struct {
	ID     string          `json:"id"`
	Taxon  string          `json:"taxon"`
	Part   string          `json:"part"`
	Family string          `json:"family"`
	Hash   string          `json:"hash"`
	Steps  []CanonicalStep `json:"steps"`
}
