package canonical

import (
	"fmt"
	"sort"
)

// Collision records two semantically different candidates that hashed to the
// same id. Given the canonicalization invariant this should be impossible,
// so any entry here is a data-integrity fault needing manual review.
type Collision struct {
	ID           string `json:"id"`           // the contested id
	AssignedID   string `json:"assigned_id"`  // id actually given to the newcomer
	FirstOrigin  string `json:"first_origin"` // provenance of the record that holds ID
	SecondOrigin string `json:"second_origin"`
}

// CollisionLedger tracks every assigned id with its canonical payload and
// disambiguates collisions with a numeric suffix instead of overwriting.
type CollisionLedger struct {
	payloads   map[string]string // id -> canonical payload
	origins    map[string]string // id -> origin of the record holding it
	collisions []Collision
}

// NewCollisionLedger creates an empty ledger.
func NewCollisionLedger() *CollisionLedger {
	return &CollisionLedger{
		payloads: make(map[string]string),
		origins:  make(map[string]string),
	}
}

// Register claims id for the given canonical payload and returns the id the
// caller must use.
//
// Same id, same payload is the idempotence guarantee at work and returns id
// unchanged. Same id, different payload appends "-1", "-2", ... until free,
// records the collision, and returns the suffixed id; the earlier record is
// never silently overwritten.
func (l *CollisionLedger) Register(id, payload, origin string) string {
	existing, ok := l.payloads[id]
	if !ok {
		l.payloads[id] = payload
		l.origins[id] = origin
		return id
	}
	if existing == payload {
		return id
	}

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", id, i)
		prev, taken := l.payloads[candidate]
		if taken && prev != payload {
			continue
		}
		if !taken {
			l.payloads[candidate] = payload
			l.origins[candidate] = origin
			l.collisions = append(l.collisions, Collision{
				ID:           id,
				AssignedID:   candidate,
				FirstOrigin:  l.origins[id],
				SecondOrigin: origin,
			})
		}
		return candidate
	}
}

// Collisions returns all recorded collisions sorted by contested id.
func (l *CollisionLedger) Collisions() []Collision {
	out := make([]Collision, len(l.collisions))
	copy(out, l.collisions)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
