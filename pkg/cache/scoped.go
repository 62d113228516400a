package cache

// ScopedKeyer wraps a Keyer with a prefix so multiple ontology checkouts can
// share one cache backend without key collisions. The stage runner scopes
// keys by source-tree root.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// StageKey generates a prefixed key for stage result caching.
func (k *ScopedKeyer) StageKey(stageID, fingerprint string) string {
	return k.prefix + k.inner.StageKey(stageID, fingerprint)
}

// ProposalKey generates a prefixed key for proposal validation caching.
func (k *ScopedKeyer) ProposalKey(payloadHash string) string {
	return k.prefix + k.inner.ProposalKey(payloadHash)
}
