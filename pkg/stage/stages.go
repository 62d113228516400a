package stage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/larderlab/larder/pkg/canonical"
	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/expand"
	"github.com/larderlab/larder/pkg/lint"
	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/pack"
	"github.com/larderlab/larder/pkg/source"
	"github.com/larderlab/larder/pkg/substrate"
)

// Stage ids, in dependency order.
const (
	StageValidate     = "validate"
	StageTransforms   = "transforms"
	StageSubstrates   = "substrates"
	StageExpand       = "expand"
	StageCanonicalize = "canonicalize"
	StagePack         = "pack"
)

// Published artifact names.
const (
	FileFindings     = "findings.json"
	FileTaxa         = "taxa.ndjson"
	FileRegistry     = "registry.json"
	FileSubstrates   = "substrates.ndjson"
	FileTaxonClosure = "taxon_closure.ndjson"
	FilePartClosure  = "part_closure.ndjson"
	FileCandidates   = "candidates.ndjson"
	FileRejections   = "rejections.ndjson"
	FileTPTs         = "tpts.ndjson"
	FileCollisions   = "collisions.json"
	FileDatabase     = "larder.db"
)

// Stages returns the full pipeline in execution order. The input globs tie
// each stage's fingerprint to exactly the files whose content can change its
// output.
func Stages() []Descriptor {
	return []Descriptor{
		{
			ID:          StageValidate,
			Inputs:      []InputRef{{RootSource, "*.ndjson"}, {RootSource, "*.toml"}},
			CodeVersion: "1",
			Outputs: []Contract{
				{Path: FileFindings, Kind: ContractJSON},
				{Path: FileTaxa, Kind: ContractNDJSON, MinRecords: 1},
			},
			Run: runValidate,
		},
		{
			ID:          StageTransforms,
			Inputs:      []InputRef{{RootSource, "transforms.toml"}, {RootSource, "buckets.toml"}},
			CodeVersion: "1",
			DependsOn:   []string{StageValidate},
			Outputs:     []Contract{{Path: FileRegistry, Kind: ContractJSON}},
			Run:         runTransforms,
		},
		{
			ID:          StageSubstrates,
			Inputs:      []InputRef{{RootBuild, StageValidate + "/" + FileTaxa}, {RootSource, "rules.ndjson"}, {RootSource, "parts.toml"}, {RootSource, "categories.toml"}},
			CodeVersion: "1",
			DependsOn:   []string{StageValidate},
			Outputs: []Contract{
				{Path: FileSubstrates, Kind: ContractNDJSON},
				{Path: FileTaxonClosure, Kind: ContractNDJSON, MinRecords: 1},
				{Path: FilePartClosure, Kind: ContractNDJSON},
			},
			Run: runSubstrates,
		},
		{
			ID:          StageExpand,
			Inputs:      []InputRef{{RootBuild, StageSubstrates + "/**"}, {RootSource, "seeds.ndjson"}, {RootSource, "families.toml"}, {RootSource, "transforms.toml"}},
			CodeVersion: "1",
			DependsOn:   []string{StageSubstrates},
			Outputs: []Contract{
				{Path: FileCandidates, Kind: ContractNDJSON},
				{Path: FileRejections, Kind: ContractNDJSON},
			},
			Run: runExpand,
		},
		{
			ID:          StageCanonicalize,
			Inputs:      []InputRef{{RootBuild, StageExpand + "/" + FileCandidates}, {RootSource, "transforms.toml"}, {RootSource, "buckets.toml"}},
			CodeVersion: "1",
			DependsOn:   []string{StageExpand},
			Outputs: []Contract{
				{Path: FileTPTs, Kind: ContractNDJSON},
				{Path: FileRejections, Kind: ContractNDJSON},
				{Path: FileCollisions, Kind: ContractJSON},
			},
			Run: runCanonicalize,
		},
		{
			ID:          StagePack,
			Inputs:      []InputRef{{RootBuild, StageValidate + "/" + FileTaxa}, {RootBuild, StageSubstrates + "/**"}, {RootBuild, StageCanonicalize + "/" + FileTPTs}, {RootSource, "*.toml"}},
			CodeVersion: "1",
			DependsOn:   []string{StageCanonicalize},
			Outputs:     []Contract{{Path: FileDatabase, Kind: ContractSQLite}},
			Run:         runPack,
		},
	}
}

// ByID returns the descriptor with the given id from the standard pipeline.
func ByID(id string) (Descriptor, bool) {
	for _, d := range Stages() {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// UpTo returns the standard pipeline truncated at (and including) id.
func UpTo(id string) ([]Descriptor, bool) {
	all := Stages()
	for i, d := range all {
		if d.ID == id {
			return all[:i+1], true
		}
	}
	return nil, false
}

// runValidate lints the source tree and publishes the normalized taxa table.
// Any error-severity finding fails the stage; findings of both severities
// are always written so authors see the complete list.
func runValidate(ctx context.Context, env *Env, outDir string) (*Outcome, error) {
	tree, err := source.Load(env.SourceDir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidSource, err, "load source tree")
	}

	res := lint.Validate(tree)
	outcome := &Outcome{Findings: res.Findings, Records: len(tree.Taxa)}

	findings, err := json.MarshalIndent(res.Findings, "", "  ")
	if err != nil {
		return outcome, errors.Wrap(errors.CodeStageIO, err, "encode findings")
	}
	if err := source.WriteFileAtomic(filepath.Join(outDir, FileFindings), findings, 0o644); err != nil {
		return outcome, errors.Wrap(errors.CodeStageIO, err, "write findings")
	}

	if !res.Passed() {
		return outcome, errors.New(errors.CodeStageLint,
			"%d validation errors, see %s", len(res.Errors()), FileFindings)
	}

	taxa := make([]ontology.Taxon, 0, len(tree.Taxa))
	for _, rec := range tree.Taxa {
		taxa = append(taxa, rec.Value)
	}
	sort.Slice(taxa, func(i, j int) bool { return taxa[i].ID < taxa[j].ID })
	if err := source.WriteNDJSONAtomic(filepath.Join(outDir, FileTaxa), taxa); err != nil {
		return outcome, errors.Wrap(errors.CodeStageIO, err, "write normalized taxa")
	}
	return outcome, nil
}

// registrySnapshot is the normalized transform registry artifact.
type registrySnapshot struct {
	Transforms []ontology.Transform `json:"transforms"`
	Buckets    []ontology.Bucket    `json:"buckets,omitempty"`
}

// runTransforms publishes the normalized transform registry: transforms
// sorted by id, bucket configs re-validated against declared parameters.
func runTransforms(ctx context.Context, env *Env, outDir string) (*Outcome, error) {
	tree, err := source.Load(env.SourceDir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidSource, err, "load source tree")
	}
	reg := tree.Registry()

	for _, b := range tree.Buckets {
		trID, param, ok := ontology.SplitBucketKey(b.Key)
		if !ok {
			return nil, errors.New(errors.CodeInvalidConfig, "bucket key %q is not {transform}.{param}", b.Key)
		}
		tr, found := reg.Transform(trID)
		if !found {
			return nil, errors.New(errors.CodeInvalidConfig, "bucket %q references unknown transform", b.Key)
		}
		spec, found := tr.Param(param)
		if !found {
			return nil, errors.New(errors.CodeInvalidConfig, "bucket %q references undeclared parameter", b.Key)
		}
		if spec.Type != ontology.ParamNumber {
			return nil, errors.New(errors.CodeInvalidConfig, "bucket %q targets non-numeric parameter", b.Key)
		}
	}

	snap := registrySnapshot{Transforms: tree.Transforms, Buckets: tree.Buckets}
	sort.Slice(snap.Transforms, func(i, j int) bool { return snap.Transforms[i].ID < snap.Transforms[j].ID })
	sort.Slice(snap.Buckets, func(i, j int) bool { return snap.Buckets[i].Key < snap.Buckets[j].Key })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "encode registry")
	}
	if err := source.WriteFileAtomic(filepath.Join(outDir, FileRegistry), data, 0o644); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write registry")
	}
	return &Outcome{Records: len(snap.Transforms)}, nil
}

// runSubstrates materializes the substrate set and both closure tables from
// the normalized taxa and the applicability rules.
func runSubstrates(ctx context.Context, env *Env, outDir string) (*Outcome, error) {
	taxa, err := readPublished[ontology.Taxon](env, StageValidate, FileTaxa)
	if err != nil {
		return nil, err
	}
	tree, err := source.Load(env.SourceDir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidSource, err, "load source tree")
	}

	rules := make([]ontology.Rule, 0, len(tree.Rules))
	for _, rec := range tree.Rules {
		rules = append(rules, rec.Value)
	}
	res, err := substrate.Materialize(taxa, tree.Registry(), rules)
	if err != nil {
		return nil, err
	}

	if err := source.WriteNDJSONAtomic(filepath.Join(outDir, FileSubstrates), res.Substrates); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write substrates")
	}
	if err := source.WriteNDJSONAtomic(filepath.Join(outDir, FileTaxonClosure), res.TaxonRows); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write taxon closure")
	}
	if err := source.WriteNDJSONAtomic(filepath.Join(outDir, FilePartClosure), res.PartRows); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write part closure")
	}
	return &Outcome{Records: len(res.Substrates)}, nil
}

// runExpand produces TPT candidates from curated seeds and family templates.
func runExpand(ctx context.Context, env *Env, outDir string) (*Outcome, error) {
	subs, err := loadSubstrates(env)
	if err != nil {
		return nil, err
	}
	tree, err := source.Load(env.SourceDir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidSource, err, "load source tree")
	}

	exp := expand.Expand(tree.Seeds, tree.Registry(), subs)

	if err := source.WriteNDJSONAtomic(filepath.Join(outDir, FileCandidates), exp.Candidates); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write candidates")
	}
	if err := source.WriteNDJSONAtomic(filepath.Join(outDir, FileRejections), exp.Rejections); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write rejections")
	}
	return &Outcome{Records: len(exp.Candidates), Rejections: exp.Rejections}, nil
}

// runCanonicalize hashes every candidate into its terminal identity record.
// Duplicate ids from overlapping seed and family candidates collapse to one
// record; genuine collisions get suffixed and flagged.
func runCanonicalize(ctx context.Context, env *Env, outDir string) (*Outcome, error) {
	candidates, err := readPublished[canonical.Candidate](env, StageExpand, FileCandidates)
	if err != nil {
		return nil, err
	}
	tree, err := source.Load(env.SourceDir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidSource, err, "load source tree")
	}

	c := canonical.New(tree.Registry(), tree.Buckets)
	var tpts []*ontology.TPT
	var rejections []expand.Rejection
	seen := make(map[string]bool)

	for _, cand := range candidates {
		tpt, err := c.Canonicalize(cand)
		if err != nil {
			if !errors.IsRejection(err) {
				return nil, err
			}
			rejections = append(rejections, expand.Rejection{
				Origin: cand.Origin, Taxon: cand.Taxon, Part: cand.Part,
				Code: errors.GetCode(err), Message: errors.UserMessage(err),
			})
			continue
		}
		if seen[tpt.ID] {
			continue
		}
		seen[tpt.ID] = true
		tpts = append(tpts, tpt)
	}

	sort.Slice(tpts, func(i, j int) bool { return tpts[i].ID < tpts[j].ID })
	if err := source.WriteNDJSONAtomic(filepath.Join(outDir, FileTPTs), tpts); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write tpts")
	}
	if err := source.WriteNDJSONAtomic(filepath.Join(outDir, FileRejections), rejections); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write rejections")
	}
	collisions, err := json.MarshalIndent(c.Ledger().Collisions(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "encode collisions")
	}
	if err := source.WriteFileAtomic(filepath.Join(outDir, FileCollisions), collisions, 0o644); err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "write collisions")
	}

	return &Outcome{
		Records:    len(tpts),
		Rejections: rejections,
		Collisions: c.Ledger().Collisions(),
	}, nil
}

// runPack assembles the relational store from every published artifact.
func runPack(ctx context.Context, env *Env, outDir string) (*Outcome, error) {
	taxa, err := readPublished[ontology.Taxon](env, StageValidate, FileTaxa)
	if err != nil {
		return nil, err
	}
	substrates, err := readPublished[ontology.Substrate](env, StageSubstrates, FileSubstrates)
	if err != nil {
		return nil, err
	}
	taxonClosure, err := readPublished[substrate.ClosureRow](env, StageSubstrates, FileTaxonClosure)
	if err != nil {
		return nil, err
	}
	partClosure, err := readPublished[substrate.ClosureRow](env, StageSubstrates, FilePartClosure)
	if err != nil {
		return nil, err
	}
	tpts, err := readPublished[ontology.TPT](env, StageCanonicalize, FileTPTs)
	if err != nil {
		return nil, err
	}
	tree, err := source.Load(env.SourceDir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidSource, err, "load source tree")
	}

	data := &pack.Data{
		Taxa:         taxa,
		Parts:        tree.Parts,
		Transforms:   tree.Transforms,
		Substrates:   substrates,
		TaxonClosure: taxonClosure,
		PartClosure:  partClosure,
		TPTs:         tpts,
	}
	if err := pack.Build(ctx, filepath.Join(outDir, FileDatabase), data); err != nil {
		return nil, err
	}
	return &Outcome{Records: len(tpts)}, nil
}

// loadSubstrates rebuilds the queryable substrate set from the published
// substrates artifacts.
func loadSubstrates(env *Env) (*substrate.Result, error) {
	pairs, err := readPublished[ontology.Substrate](env, StageSubstrates, FileSubstrates)
	if err != nil {
		return nil, err
	}
	rows, err := readPublished[substrate.ClosureRow](env, StageSubstrates, FileTaxonClosure)
	if err != nil {
		return nil, err
	}
	return substrate.FromPairs(pairs, rows), nil
}

// readPublished reads a published NDJSON artifact into plain values.
func readPublished[T any](env *Env, stageID, name string) ([]T, error) {
	path := filepath.Join(env.BuildDir, stageID, name)
	records, err := source.ReadNDJSON[T](path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err,
			"read %s artifact (run the %s stage first?)", name, stageID)
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Value)
	}
	return out, nil
}
