package query

import (
	"fmt"
	"strings"
)

// Builder accumulates WHERE conjuncts with positional bind parameters.
// It keeps query construction typed and composable instead of hand-assembled
// per call site.
type Builder struct {
	conds []string
	args  []any
}

// Bind registers an argument and returns its positional placeholder ($n).
func (b *Builder) Bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// Add appends a ready condition; all conditions are ANDed together.
func (b *Builder) Add(cond string) {
	b.conds = append(b.conds, cond)
}

// Where renders the conjunction, or "TRUE" when no condition was added so
// the fragment stays embeddable.
func (b *Builder) Where() string {
	if len(b.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(b.conds, " AND ")
}

// Args returns the bind arguments in placeholder order.
func (b *Builder) Args() []any {
	return b.args
}
