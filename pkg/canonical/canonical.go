// Package canonical turns TPT candidates into canonical identity records.
//
// Canonicalization is the load-bearing correctness guarantee of the whole
// system: any two candidates with identical taxon, part, and semantically
// identical step sets must produce the same id, regardless of authoring
// order or numerically insignificant parameter drift. The pipeline is:
//
//  1. Drop steps whose transform is not identity-bearing.
//  2. Stable-sort remaining steps by declared order rank, ties by id.
//  3. Validate parameters against each transform's typed schema.
//  4. Bucket configured numeric identity parameters into coarse labels.
//  5. Serialize canonically and hash; the first 12 hex chars are the
//     identity hash.
//  6. Compose "tpt:{taxon}:{part}:{family|unknown}:{hash}".
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/ontology"
)

// HashLen is the length of the identity hash in hex characters.
const HashLen = 12

// Candidate is one unordered TPT candidate awaiting canonicalization.
type Candidate struct {
	Taxon  string          `json:"taxon"`
	Part   string          `json:"part"`
	Family string          `json:"family,omitempty"` // resolved family id, empty when unresolved
	Steps  []ontology.Step `json:"steps,omitempty"`
	Origin string          `json:"origin"` // provenance, e.g. "seeds.ndjson:12" or "family:DAIRY_YOGURT"
}

// Canonicalizer validates and hashes candidates against an immutable
// registry snapshot and a bucketing configuration.
type Canonicalizer struct {
	reg     *ontology.Registry
	buckets map[string]ontology.Bucket
	ledger  *CollisionLedger
}

// New creates a canonicalizer. The bucket slice is indexed by its
// "{transform}.{param}" keys.
func New(reg *ontology.Registry, buckets []ontology.Bucket) *Canonicalizer {
	byKey := make(map[string]ontology.Bucket, len(buckets))
	for _, b := range buckets {
		byKey[b.Key] = b
	}
	return &Canonicalizer{
		reg:     reg,
		buckets: byKey,
		ledger:  NewCollisionLedger(),
	}
}

// Ledger exposes the collision ledger for report generation.
func (c *Canonicalizer) Ledger() *CollisionLedger { return c.ledger }

// Canonicalize validates one candidate and returns its canonical TPT, or a
// structured rejection. Rejections are per-record: the caller drops the
// candidate and proceeds with the batch.
func (c *Canonicalizer) Canonicalize(cand Candidate) (*ontology.TPT, error) {
	steps, err := c.CanonicalSteps(cand.Steps)
	if err != nil {
		return nil, err
	}

	payload := Serialize(steps)
	sum := sha256.Sum256([]byte(payload))
	hash := hex.EncodeToString(sum[:])[:HashLen]

	family := cand.Family
	if family == "" {
		family = ontology.UnknownFamily
	}
	id := ontology.TPTID(cand.Taxon, cand.Part, family, hash)
	id = c.ledger.Register(id, payload, cand.Origin)

	return &ontology.TPT{
		ID:     id,
		Taxon:  cand.Taxon,
		Part:   cand.Part,
		Family: family,
		Hash:   hash,
		Steps:  steps,
	}, nil
}

// CanonicalSteps runs stages 1-4 of canonicalization over a raw step list:
// identity filtering, deterministic ordering, schema validation, and
// bucketing. The same path serves authored seeds, family expansion, and
// external curation proposals; nothing reaches hashing without passing it.
func (c *Canonicalizer) CanonicalSteps(raw []ontology.Step) ([]ontology.CanonicalStep, error) {
	type ordered struct {
		step  ontology.Step
		tr    *ontology.Transform
	}

	var kept []ordered
	for _, s := range raw {
		tr, ok := c.reg.Transform(s.Transform)
		if !ok {
			return nil, errors.New(errors.CodeInvalidTransform, "unknown transform %s", s.Transform)
		}
		if !tr.Identity {
			continue // non-identity detail never reaches hashing
		}
		kept = append(kept, ordered{step: s, tr: tr})
	}

	// Stable sort by declared order rank, ties broken by transform id, so
	// authoring order never affects identity.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].tr.Order != kept[j].tr.Order {
			return kept[i].tr.Order < kept[j].tr.Order
		}
		return kept[i].tr.ID < kept[j].tr.ID
	})

	out := make([]ontology.CanonicalStep, 0, len(kept))
	for _, o := range kept {
		params, err := c.canonicalParams(o.tr, o.step.Params)
		if err != nil {
			return nil, err
		}
		out = append(out, ontology.CanonicalStep{Transform: o.tr.ID, Params: params})
	}
	return out, nil
}

// canonicalParams validates raw parameters against the transform's schema
// and returns the identity-bearing subset, bucketed where configured.
// Unknown parameter names are rejected outright; there is no coercion.
func (c *Canonicalizer) canonicalParams(tr *ontology.Transform, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	for name, value := range raw {
		spec, ok := tr.Param(name)
		if !ok {
			return nil, errors.New(errors.CodeIdentityParam,
				"transform %s has no parameter %q", tr.ID, name)
		}

		typed, err := checkType(tr.ID, spec, value)
		if err != nil {
			return nil, err
		}
		if !spec.Identity {
			continue
		}

		if num, isNum := typed.(float64); isNum {
			if b, ok := c.buckets[tr.ID+"."+name]; ok {
				typed = b.Label(num)
			}
		}
		out[name] = typed
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// checkType enforces the tagged-union representation of parameter values:
// bools stay bool, numbers normalize to float64, strings stay string, enums
// are strings checked for membership.
func checkType(transformID string, spec ontology.ParamSpec, value any) (any, error) {
	switch spec.Type {
	case ontology.ParamBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case ontology.ParamNumber:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case ontology.ParamString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case ontology.ParamEnum:
		s, ok := value.(string)
		if !ok {
			break
		}
		for _, allowed := range spec.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, errors.New(errors.CodeIdentityParam,
			"%s.%s: %q is not one of the declared enum values", transformID, spec.Name, s)
	}
	return nil, errors.New(errors.CodeIdentityParam,
		"%s.%s: value %v does not match declared type %s", transformID, spec.Name, value, spec.Type)
}
