package stage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/larderlab/larder/pkg/canonical"
	"github.com/larderlab/larder/pkg/expand"
	"github.com/larderlab/larder/pkg/lint"
	"github.com/larderlab/larder/pkg/observability"
	"github.com/larderlab/larder/pkg/source"
)

// ReportFile is the aggregate build report, written every run whether the
// run succeeded or not.
const ReportFile = "report.json"

// Report aggregates everything a run produced beyond the artifacts:
// findings, rejections by code, collisions flagged for review, and the
// per-stage results.
type Report struct {
	RunID           string                `json:"run_id"`
	StartedAt       time.Time             `json:"started_at"`
	FinishedAt      time.Time             `json:"finished_at"`
	Stages          []StageResult         `json:"stages"`
	Findings        []lint.Finding        `json:"findings,omitempty"`
	Rejections      []expand.Rejection    `json:"rejections,omitempty"`
	RejectionCounts map[string]int        `json:"rejection_counts,omitempty"`
	Collisions      []canonical.Collision `json:"collisions,omitempty"`
}

// NewReport creates a report with a fresh run id.
func NewReport() *Report {
	return &Report{
		RunID:           uuid.NewString(),
		StartedAt:       time.Now().UTC(),
		RejectionCounts: make(map[string]int),
	}
}

// Absorb merges one stage outcome into the aggregate report.
func (r *Report) Absorb(ctx context.Context, stageID string, o *Outcome) {
	r.Findings = append(r.Findings, o.Findings...)
	r.Rejections = append(r.Rejections, o.Rejections...)
	r.Collisions = append(r.Collisions, o.Collisions...)
	for _, rej := range o.Rejections {
		r.RejectionCounts[string(rej.Code)]++
		observability.Build().OnRejection(ctx, string(rej.Code))
	}
}

// Succeeded reports whether every executed stage succeeded.
func (r *Report) Succeeded() bool {
	for _, s := range r.Stages {
		if s.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Write writes the report to buildDir/report.json atomically.
func (r *Report) Write(buildDir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return source.WriteFileAtomic(filepath.Join(buildDir, ReportFile), data, 0o644)
}
