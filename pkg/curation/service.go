// Package curation is the boundary between external evidence (literature
// mining, partner data drops) and the compiled ontology.
//
// External proposals are never trusted: every proposal re-runs the exact
// validation and canonicalization path used for authored data against the
// live registry snapshot. A proposal either maps to a canonical TPT id, is
// skipped for lack of an applicable substrate, or is rejected with the same
// structured codes the build pipeline emits.
package curation

import (
	"context"
	"encoding/json"

	"github.com/larderlab/larder/pkg/cache"
	"github.com/larderlab/larder/pkg/canonical"
	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/expand"
	"github.com/larderlab/larder/pkg/observability"
	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/substrate"
)

// Disposition classifies the outcome of validating one proposal.
type Disposition string

const (
	// DispositionMapped means the proposal resolved to a canonical TPT id.
	DispositionMapped Disposition = "mapped"

	// DispositionSkipped means the proposal references no legal substrate;
	// it is not wrong, just out of the ontology's current coverage.
	DispositionSkipped Disposition = "skipped"

	// DispositionRejected means the proposal failed validation.
	DispositionRejected Disposition = "rejected"
)

// Proposal is one externally sourced TPT suggestion.
type Proposal struct {
	Description string          `json:"description"`
	Taxon       string          `json:"taxon"`
	Part        string          `json:"part"`
	Family      string          `json:"family,omitempty"`
	Steps       []ontology.Step `json:"steps,omitempty"`
	Confidence  float64         `json:"confidence,omitempty"`
}

// Result is the validation outcome for one proposal.
type Result struct {
	Disposition Disposition `json:"disposition"`
	TPTID       string      `json:"tpt_id,omitempty"`
	Family      string      `json:"family,omitempty"`
	Code        errors.Code `json:"code,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// Service validates proposals against a loaded ontology snapshot.
type Service struct {
	reg   *ontology.Registry
	subs  *substrate.Result
	canon *canonical.Canonicalizer
	cache cache.Cache
	keyer cache.Keyer
}

// NewService creates a validation service over an immutable registry
// snapshot and substrate set. A nil cache disables result caching.
func NewService(reg *ontology.Registry, subs *substrate.Result, buckets []ontology.Bucket, c cache.Cache) *Service {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Service{
		reg:   reg,
		subs:  subs,
		canon: canonical.New(reg, buckets),
		cache: c,
		keyer: cache.NewDefaultKeyer(),
	}
}

// Validate runs one proposal through the authored-data pipeline.
// Validation never mutates the ontology; a mapped disposition only asserts
// which id the proposal would compile to.
func (s *Service) Validate(ctx context.Context, p Proposal) Result {
	if cached, ok := s.lookup(ctx, p); ok {
		return cached
	}
	res := s.validate(p)
	s.store(ctx, p, res)
	return res
}

func (s *Service) validate(p Proposal) Result {
	if err := ontology.ValidateTaxonID(p.Taxon); err != nil {
		return rejected(errors.CodeInvalidTaxon, err)
	}
	if err := ontology.ValidatePartID(p.Part); err != nil {
		return rejected(errors.CodeInvalidPart, err)
	}

	seed := ontology.Seed{Taxon: p.Taxon, Part: p.Part, Family: p.Family, Steps: p.Steps}
	cand, err := expand.FromSeed(seed, "proposal", s.reg, s.subs)
	if err != nil {
		if errors.Is(err, errors.CodeMissingSubstrate) {
			return Result{
				Disposition: DispositionSkipped,
				Code:        errors.CodeMissingSubstrate,
				Message:     errors.UserMessage(err),
			}
		}
		return rejected(errors.GetCode(err), err)
	}

	tpt, err := s.canon.Canonicalize(cand)
	if err != nil {
		return rejected(errors.GetCode(err), err)
	}
	return Result{Disposition: DispositionMapped, TPTID: tpt.ID, Family: tpt.Family}
}

func rejected(code errors.Code, err error) Result {
	return Result{Disposition: DispositionRejected, Code: code, Message: errors.UserMessage(err)}
}

// lookup fetches a previously computed result for an identical proposal.
func (s *Service) lookup(ctx context.Context, p Proposal) (Result, bool) {
	data, hit, err := s.cache.Get(ctx, s.key(p))
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "proposal")
		return Result{}, false
	}
	var res Result
	if json.Unmarshal(data, &res) != nil {
		return Result{}, false
	}
	observability.Cache().OnCacheHit(ctx, "proposal")
	return res, true
}

func (s *Service) store(ctx context.Context, p Proposal, res Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if s.cache.Set(ctx, s.key(p), data, cache.TTLProposal) == nil {
		observability.Cache().OnCacheSet(ctx, "proposal", len(data))
	}
}

func (s *Service) key(p Proposal) string {
	payload, _ := json.Marshal(p)
	return s.keyer.ProposalKey(cache.Hash(payload))
}
