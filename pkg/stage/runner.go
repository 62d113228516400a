package stage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/larderlab/larder/pkg/cache"
	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/observability"
	"github.com/larderlab/larder/pkg/source"
)

// manifestFile is written into a stage's published directory after all
// outputs land. Its presence and fingerprint make the published artifacts
// trustworthy; a missing or stale manifest forces re-execution.
const manifestFile = "manifest.json"

// tmpDirName holds in-flight stage outputs under the build dir.
const tmpDirName = "tmp"

type manifest struct {
	Fingerprint string            `json:"fingerprint"`
	Outputs     map[string]string `json:"outputs"` // path -> content hash
	CreatedAt   time.Time         `json:"created_at"`
}

// Runner executes stage descriptors sequentially in declared order.
//
// The runner is stateless between runs except for the byte cache, which only
// stores stage outcome metadata keyed by fingerprint: correctness never
// depends on cache warmth, only re-execution cost does.
type Runner struct {
	Env     *Env
	Cache   cache.Cache
	Keyer   cache.Keyer
	Refresh bool // force re-execution regardless of fingerprints
}

// NewRunner creates a runner. A nil cache disables outcome caching via
// NullCache; a nil keyer selects the default scheme; a nil logger selects
// the package default.
func NewRunner(env *Env, c cache.Cache, keyer cache.Keyer) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if env.Logger == nil {
		env.Logger = log.Default()
	}
	return &Runner{Env: env, Cache: c, Keyer: keyer}
}

// Run executes the given stages in order, stopping at the first failure.
// The build report is written to build/report.json regardless of outcome.
// The returned error is the first stage failure, if any.
func (r *Runner) Run(ctx context.Context, stages []Descriptor) (*Report, error) {
	report := NewReport()
	var failed error

	for _, d := range stages {
		if failed != nil {
			report.Stages = append(report.Stages, StageResult{ID: d.ID, Status: StatusPending})
			continue
		}
		res := r.runStage(ctx, d, report)
		report.Stages = append(report.Stages, res)
		if res.Status == StatusFailed {
			failed = errors.New(errors.CodeStageUnknown, "stage %s failed: %s", d.ID, res.Error)
		}
	}

	report.FinishedAt = time.Now().UTC()
	if err := report.Write(r.Env.BuildDir); err != nil {
		r.Env.Logger.Error("could not write build report", "err", err)
		if failed == nil {
			failed = err
		}
	}
	return report, failed
}

func (r *Runner) runStage(ctx context.Context, d Descriptor, report *Report) StageResult {
	start := time.Now()
	logger := r.Env.Logger.With("stage", d.ID)
	observability.Build().OnStageStart(ctx, d.ID)

	res := StageResult{ID: d.ID, Status: StatusRunning}

	fp, err := fingerprint(r.Env, d)
	if err != nil {
		return r.finish(ctx, res, start, err)
	}
	res.Fingerprint = fp

	if !r.Refresh && r.published(d, fp) {
		logger.Info("cache hit, skipping", "fingerprint", fp[:12])
		observability.Cache().OnCacheHit(ctx, "stage")
		res.Status = StatusSucceeded
		res.CacheHit = true
		res.Records = r.cachedRecords(ctx, d.ID, fp)
		res.Duration = time.Since(start)
		observability.Build().OnStageComplete(ctx, d.ID, true, res.Duration, nil)
		return res
	}
	observability.Cache().OnCacheMiss(ctx, "stage")

	tmpDir := filepath.Join(r.Env.BuildDir, tmpDirName, d.ID)
	if err := os.RemoveAll(tmpDir); err != nil {
		return r.finish(ctx, res, start, errors.Wrap(errors.CodeStageIO, err, "clear tmp dir"))
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return r.finish(ctx, res, start, errors.Wrap(errors.CodeStageIO, err, "create tmp dir"))
	}

	logger.Info("running")
	outcome, err := d.Run(ctx, r.Env, tmpDir)
	if outcome != nil {
		// Findings and rejections reach the report even when the stage
		// fails, so authors see why it failed.
		res.Records = outcome.Records
		report.Absorb(ctx, d.ID, outcome)
	}
	if err != nil {
		return r.finish(ctx, res, start, err)
	}
	if err := checkContracts(tmpDir, d.Outputs); err != nil {
		return r.finish(ctx, res, start, err)
	}
	if err := r.promote(d, fp, tmpDir); err != nil {
		return r.finish(ctx, res, start, err)
	}

	if outcome != nil {
		r.storeOutcome(ctx, d.ID, fp, outcome)
	}
	res.Status = StatusSucceeded
	res.Duration = time.Since(start)
	logger.Info("published", "records", res.Records, "duration", res.Duration)
	observability.Build().OnStageComplete(ctx, d.ID, false, res.Duration, nil)
	return res
}

func (r *Runner) finish(ctx context.Context, res StageResult, start time.Time, err error) StageResult {
	res.Status = StatusFailed
	res.Error = err.Error()
	res.Duration = time.Since(start)
	r.Env.Logger.Error("stage failed", "stage", res.ID, "err", err)
	observability.Build().OnStageComplete(ctx, res.ID, false, res.Duration, err)
	return res
}

// published reports whether the stage's published directory carries a
// manifest with the current fingerprint and every recorded output intact.
// Any discrepancy is treated as a miss, never an error.
func (r *Runner) published(d Descriptor, fp string) bool {
	dir := filepath.Join(r.Env.BuildDir, d.ID)
	recoverInterrupted(dir)

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return false
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil || m.Fingerprint != fp {
		return false
	}
	for path, want := range m.Outputs {
		got, err := source.HashFile(filepath.Join(dir, path))
		if err != nil || got != want {
			return false
		}
	}
	return true
}

// promote atomically swaps the stage's tmp directory into its published
// location and writes the manifest last. If the process dies mid-swap the
// previous artifacts survive at the .old path and are restored on the next
// run; a published dir without a manifest is never trusted.
func (r *Runner) promote(d Descriptor, fp string, tmpDir string) error {
	dir := filepath.Join(r.Env.BuildDir, d.ID)
	oldDir := dir + ".old"

	outputs := make(map[string]string, len(d.Outputs))
	for _, c := range d.Outputs {
		h, err := source.HashFile(filepath.Join(tmpDir, c.Path))
		if err != nil {
			if os.IsNotExist(err) && c.Optional {
				continue
			}
			return errors.Wrap(errors.CodeStageIO, err, "hash output %s", c.Path)
		}
		outputs[c.Path] = h
	}

	_ = os.RemoveAll(oldDir)
	if _, err := os.Stat(dir); err == nil {
		if err := os.Rename(dir, oldDir); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "set aside previous artifacts")
		}
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		// Roll the previous artifacts back so the build tree stays usable.
		_ = os.Rename(oldDir, dir)
		return errors.Wrap(errors.CodeStageIO, err, "promote outputs")
	}

	m := manifest{Fingerprint: fp, Outputs: outputs, CreatedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(errors.CodeStageIO, err, "encode manifest")
	}
	if err := source.WriteFileAtomic(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return errors.Wrap(errors.CodeStageIO, err, "write manifest")
	}
	_ = os.RemoveAll(oldDir)
	return nil
}

// recoverInterrupted restores artifacts set aside by a promote that died
// between its two renames.
func recoverInterrupted(dir string) {
	oldDir := dir + ".old"
	if _, err := os.Stat(oldDir); err != nil {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = os.Rename(oldDir, dir)
		return
	}
	_ = os.RemoveAll(oldDir)
}

// storeOutcome caches outcome metadata so cache-hit runs can still report
// record counts without re-reading artifacts.
func (r *Runner) storeOutcome(ctx context.Context, stageID, fp string, outcome *Outcome) {
	data, err := json.Marshal(outcome)
	if err != nil {
		return
	}
	key := r.Keyer.StageKey(stageID, fp)
	if err := r.Cache.Set(ctx, key, data, cache.TTLStage); err == nil {
		observability.Cache().OnCacheSet(ctx, "stage", len(data))
	}
}

func (r *Runner) cachedRecords(ctx context.Context, stageID, fp string) int {
	data, hit, err := r.Cache.Get(ctx, r.Keyer.StageKey(stageID, fp))
	if err != nil || !hit {
		return 0
	}
	var outcome Outcome
	if json.Unmarshal(data, &outcome) != nil {
		return 0
	}
	return outcome.Records
}

// Clean removes all published artifacts, in-flight temp outputs, and the
// build report.
func Clean(buildDir string) error {
	return os.RemoveAll(buildDir)
}
