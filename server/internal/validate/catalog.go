package validate

import (
	"sort"

	"github.com/delaycast/delaycast/pkg/types"
)

// Catalog is the set of operator names seen during training.
type Catalog struct {
	ops map[string]struct{}
}

// NewCatalog returns the distinct operators in records.
func NewCatalog(records []types.Record) *Catalog {
	c := &Catalog{ops: make(map[string]struct{}, 32)}
	for _, r := range records {
		c.ops[r.Operator] = struct{}{}
	}
	return c
}

// Contains reports whether op was seen in training. Matching is exact.
func (c *Catalog) Contains(op string) bool {
	if c == nil {
		return false
	}
	_, ok := c.ops[op]
	return ok
}

// Len returns the number of known operators.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ops)
}

// Operators returns the known operators sorted by name.
func (c *Catalog) Operators() []string {
	if c == nil {
		return []string{}
	}
	out := make([]string, 0, len(c.ops))
	for op := range c.ops {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
