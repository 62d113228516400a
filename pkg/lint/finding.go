// Package lint implements the schema and cross-reference validator.
//
// The validator runs per-record schema checks (id grammar, rank ladders,
// registry membership) and foreign-key resolution (parents, parts,
// transforms) over a loaded source tree. It emits findings rather than
// returning on the first problem, so authors see every offending source line
// in one pass.
//
// Findings with Severity error block all downstream stages; warnings (for
// example banned terms in display names) are reported but non-blocking.
package lint

import "fmt"

// Severity classifies a finding as blocking or advisory.
type Severity string

const (
	// SeverityError blocks every downstream stage.
	SeverityError Severity = "error"
	// SeverityWarning is reported but never blocks.
	SeverityWarning Severity = "warning"
)

// Finding is one validator observation, located at a source file and, where
// available, line and record id.
type Finding struct {
	File     string   `json:"file"`
	Line     int      `json:"line,omitempty"`
	RecordID string   `json:"record_id,omitempty"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

// String formats the finding as a one-line locator for logs.
func (f Finding) String() string {
	loc := f.File
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return fmt.Sprintf("%s: %s: [%s] %s", loc, f.Severity, f.Code, f.Message)
}

// Finding codes. These identify the failed check, not the failed record;
// the record is in RecordID.
const (
	CodeBadID          = "bad-id"
	CodeDuplicateID    = "duplicate-id"
	CodeDanglingRef    = "dangling-ref"
	CodeRankLadder     = "rank-ladder"
	CodeCycle          = "cycle"
	CodeBadCategory    = "bad-category"
	CodeNoBioAncestor  = "no-biological-ancestor"
	CodeBadParam       = "bad-param"
	CodeBannedTerm     = "banned-term"
	CodeBadExclusion   = "bad-exclusion"
	CodeBadDeprecation = "bad-deprecation"
	CodeNonIdentity    = "non-identity-transform"
)

// findings is a small helper for collecting results.
type findings struct {
	all []Finding
}

func (fs *findings) errorf(file string, line int, recordID, code, format string, args ...any) {
	fs.all = append(fs.all, Finding{
		File: file, Line: line, RecordID: recordID,
		Severity: SeverityError, Code: code,
		Message: fmt.Sprintf(format, args...),
	})
}

func (fs *findings) warnf(file string, line int, recordID, code, format string, args ...any) {
	fs.all = append(fs.all, Finding{
		File: file, Line: line, RecordID: recordID,
		Severity: SeverityWarning, Code: code,
		Message: fmt.Sprintf(format, args...),
	})
}

// CountErrors returns the number of error-severity findings.
func CountErrors(all []Finding) int {
	n := 0
	for _, f := range all {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}
