// Package substrate materializes the legal (Taxon, Part) pairs from the
// validated hierarchies and applicability rules, and builds the
// ancestor-closure tables that turn "is X under Y" into O(1) set membership.
package substrate

import (
	"sort"
)

// ClosureRow is one (descendant, ancestor) pair with the number of parent
// edges between them. Every node has a depth-0 row to itself.
type ClosureRow struct {
	Descendant string `json:"descendant"`
	Ancestor   string `json:"ancestor"`
	Depth      int    `json:"depth"`
}

// Closure is a materialized transitive closure over parent edges.
type Closure struct {
	rows []ClosureRow
	// ancestors maps descendant -> ancestor -> depth.
	ancestors map[string]map[string]int
}

// BuildClosure computes the full ancestor closure for a hierarchy given as
// id -> parent id (empty parent for roots). The computation is a single pass
// over nodes walking parent chains, O(N * depth); queries afterwards are map
// lookups.
//
// Cycles must have been rejected by validation; a cycle encountered here is
// broken silently by the visited guard rather than looping forever.
func BuildClosure(parents map[string]string) *Closure {
	c := &Closure{ancestors: make(map[string]map[string]int, len(parents))}

	ids := make([]string, 0, len(parents))
	for id := range parents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		anc := make(map[string]int)
		depth := 0
		node := id
		seen := make(map[string]bool)
		for node != "" && !seen[node] {
			seen[node] = true
			anc[node] = depth
			depth++
			node = parents[node]
		}
		c.ancestors[id] = anc
		for a, d := range anc {
			c.rows = append(c.rows, ClosureRow{Descendant: id, Ancestor: a, Depth: d})
		}
	}

	sort.Slice(c.rows, func(i, j int) bool {
		a, b := c.rows[i], c.rows[j]
		if a.Descendant != b.Descendant {
			return a.Descendant < b.Descendant
		}
		return a.Depth < b.Depth
	})
	return c
}

// Rows returns the closure table sorted by (descendant, depth).
func (c *Closure) Rows() []ClosureRow { return c.rows }

// HasAncestor reports whether ancestor is on the parent chain of descendant.
// A node is its own ancestor at depth 0.
func (c *Closure) HasAncestor(descendant, ancestor string) bool {
	anc, ok := c.ancestors[descendant]
	if !ok {
		return false
	}
	_, ok = anc[ancestor]
	return ok
}

// Depth returns the edge distance from descendant up to ancestor, or -1 when
// ancestor is not on the chain.
func (c *Closure) Depth(descendant, ancestor string) int {
	if anc, ok := c.ancestors[descendant]; ok {
		if d, ok := anc[ancestor]; ok {
			return d
		}
	}
	return -1
}

// Descendants returns all ids that have ancestor on their chain, sorted.
// ancestor itself is included.
func (c *Closure) Descendants(ancestor string) []string {
	var out []string
	for id, anc := range c.ancestors {
		if _, ok := anc[ancestor]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
