package ontology

import (
	"github.com/larderlab/larder/pkg/errors"
)

// Bucket maps a numeric identity parameter onto a coarse label so the
// identity hash stays stable under nutritionally insignificant drift while
// still splitting meaningfully different recipes.
//
// Key is "{transform}.{param}" (e.g. "tf:cook.temp_c"). A value maps to the
// label of the first cutoff it is less than or equal to; values beyond the
// last cutoff map to the final label, so len(Labels) == len(Cutoffs)+1.
type Bucket struct {
	Key     string    `toml:"key"`
	Cutoffs []float64 `toml:"cutoffs"`
	Labels  []string  `toml:"labels"`
}

// Validate checks the cutoff/label arity and cutoff ordering.
func (b Bucket) Validate() error {
	if len(b.Labels) != len(b.Cutoffs)+1 {
		return errors.New(errors.CodeInvalidConfig,
			"bucket %q needs %d labels for %d cutoffs, got %d",
			b.Key, len(b.Cutoffs)+1, len(b.Cutoffs), len(b.Labels))
	}
	for i := 1; i < len(b.Cutoffs); i++ {
		if b.Cutoffs[i] <= b.Cutoffs[i-1] {
			return errors.New(errors.CodeInvalidConfig,
				"bucket %q cutoffs must be strictly increasing", b.Key)
		}
	}
	return nil
}

// Label returns the bucket label for value.
func (b Bucket) Label(value float64) string {
	for i, cutoff := range b.Cutoffs {
		if value <= cutoff {
			return b.Labels[i]
		}
	}
	return b.Labels[len(b.Labels)-1]
}

// SplitBucketKey splits a "{transform}.{param}" bucket key. Transform ids
// never contain a dot, so the first dot is the separator.
func SplitBucketKey(key string) (transform, param string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			if i == 0 || i == len(key)-1 {
				return "", "", false
			}
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}
