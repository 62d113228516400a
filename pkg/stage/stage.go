// Package stage runs the build pipeline as a sequence of content-addressed
// stages.
//
// Each stage declares its inputs (glob patterns over the source tree and
// previously published artifacts), its parameters, and a code version. The
// fingerprint over those three is the cache key: an unchanged fingerprint
// with intact published outputs means the stage is skipped entirely.
//
// Publication is fail-closed. A stage writes into a temp directory, its
// outputs are contract-checked there, and only then is the directory
// promoted into the build tree, with the manifest written last. An
// interrupted run can never leave a half-written artifact looking published.
package stage

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/larderlab/larder/pkg/canonical"
	"github.com/larderlab/larder/pkg/expand"
	"github.com/larderlab/larder/pkg/lint"
)

// Status of a stage within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Input roots a glob pattern can resolve against.
const (
	RootSource = "source" // the ontology source directory
	RootBuild  = "build"  // published artifacts of earlier stages
)

// InputRef is one fingerprinted input: a doublestar glob under a root.
// Every matched file's content hash enters the stage fingerprint.
type InputRef struct {
	Root    string
	Pattern string
}

// ContractKind selects the well-formedness check applied to an output.
type ContractKind string

const (
	ContractFile   ContractKind = "file"   // exists and is non-empty
	ContractJSON   ContractKind = "json"   // parses as a JSON document
	ContractNDJSON ContractKind = "ndjson" // every line parses as a JSON object
	ContractSQLite ContractKind = "sqlite" // carries the SQLite file header
)

// Contract is one output obligation of a stage, checked before promotion.
type Contract struct {
	Path       string // relative to the stage output directory
	Kind       ContractKind
	MinRecords int // ndjson only: minimum line count
	Optional   bool
}

// Env is the execution environment shared by all stages of a run.
type Env struct {
	SourceDir string
	BuildDir  string
	Logger    *log.Logger
}

// Outcome is what a stage reports back beyond its published files.
type Outcome struct {
	Records    int                 `json:"records"`
	Findings   []lint.Finding      `json:"findings,omitempty"`
	Rejections []expand.Rejection  `json:"rejections,omitempty"`
	Collisions []canonical.Collision `json:"collisions,omitempty"`
}

// Descriptor declares one stage. Descriptors are pure data plus a Run
// function; the runner owns fingerprinting, caching, and publication.
type Descriptor struct {
	ID          string
	Inputs      []InputRef
	Params      map[string]string
	CodeVersion string
	Outputs     []Contract
	DependsOn   []string

	// Run executes the stage, writing all outputs under outDir.
	Run func(ctx context.Context, env *Env, outDir string) (*Outcome, error)
}

// StageResult is the per-stage record in the build report.
type StageResult struct {
	ID          string        `json:"id"`
	Status      Status        `json:"status"`
	CacheHit    bool          `json:"cache_hit"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Records     int           `json:"records"`
	Duration    time.Duration `json:"duration_ns"`
	Error       string        `json:"error,omitempty"`
}
