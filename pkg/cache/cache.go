// Package cache provides pluggable byte caches used by the stage runner
// (fingerprint -> stage result metadata) and the curation service (proposal
// validation results). Backends: file-based for CLI usage, Redis for shared
// deployments, and a null cache for tests and --no-cache runs.
package cache

import (
	"context"
	"time"
)

// TTLs per key class. Stage results are keyed by input fingerprint and never
// go stale, so they get a long TTL; proposal validations are advisory and
// expire quickly.
const (
	TTLStage    = 30 * 24 * time.Hour
	TTLProposal = 1 * time.Hour
)

// Cache is a byte cache with TTL semantics.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was present
	// and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A non-positive ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys for the key classes the build uses.
type Keyer interface {
	// StageKey keys a stage result by its stage id and input fingerprint.
	StageKey(stageID, fingerprint string) string

	// ProposalKey keys a curation validation result by the hash of the
	// proposal payload.
	ProposalKey(payloadHash string) string
}

// DefaultKeyer is the standard key scheme.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

// StageKey generates a key for stage result caching.
func (k *DefaultKeyer) StageKey(stageID, fingerprint string) string {
	return hashKey("stage", stageID, fingerprint)
}

// ProposalKey generates a key for proposal validation caching.
func (k *DefaultKeyer) ProposalKey(payloadHash string) string {
	return hashKey("proposal", payloadHash)
}
