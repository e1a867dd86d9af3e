package bayes

import (
	"fmt"
	"strings"
)

// Factor maps each assignment of its scope variables to a non-negative
// value, stored as a dense row-major table over the cross-product of the
// scope domains: the last scope variable has stride 1, and each earlier
// variable's stride is the product of the cardinalities after it. A factor
// with empty scope holds exactly one scalar. Factors are never mutated
// after construction; every algebra operation allocates a fresh result.
type Factor struct {
	scope   []*Variable
	strides []int
	values  []float64
}

// NewFactor constructs a factor over scope with the given row-major table.
// The table length must equal the product of the scope cardinalities and
// every entry must be non-negative.
func NewFactor(scope []*Variable, values []float64) (*Factor, error) {
	size := 1
	seen := make(map[string]struct{}, len(scope))
	for _, v := range scope {
		if v == nil {
			return nil, fmt.Errorf("factor scope contains nil variable")
		}
		if _, dup := seen[v.name]; dup {
			return nil, fmt.Errorf("factor scope repeats variable %q", v.name)
		}
		seen[v.name] = struct{}{}
		size *= v.Cardinality()
	}
	if len(values) != size {
		return nil, fmt.Errorf("factor table has %d entries, scope %s requires %d",
			len(values), scopeNames(scope), size)
	}
	for i, val := range values {
		if val < 0 {
			return nil, fmt.Errorf("factor entry %d is negative: %v", i, val)
		}
	}

	owned := make([]float64, len(values))
	copy(owned, values)
	return newFactor(append([]*Variable(nil), scope...), owned), nil
}

// newFactor takes ownership of scope and values without validation.
func newFactor(scope []*Variable, values []float64) *Factor {
	strides := make([]int, len(scope))
	stride := 1
	for i := len(scope) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= scope[i].Cardinality()
	}
	return &Factor{scope: scope, strides: strides, values: values}
}

// Scope returns a copy of the ordered scope variables.
func (f *Factor) Scope() []*Variable {
	return append([]*Variable(nil), f.scope...)
}

// Values returns a copy of the row-major table.
func (f *Factor) Values() []float64 {
	return append([]float64(nil), f.values...)
}

// Size returns the number of table entries.
func (f *Factor) Size() int { return len(f.values) }

// InScope reports whether the named variable appears in the scope.
func (f *Factor) InScope(name string) bool {
	return f.scopeIndex(name) >= 0
}

// At returns the table entry for a full assignment of outcome labels to
// the scope variables.
func (f *Factor) At(assignment map[string]string) (float64, error) {
	idx := 0
	for i, v := range f.scope {
		outcome, ok := assignment[v.name]
		if !ok {
			return 0, fmt.Errorf("assignment missing variable %q", v.name)
		}
		pos, ok := v.Index(outcome)
		if !ok {
			return 0, fmt.Errorf("variable %q has no outcome %q", v.name, outcome)
		}
		idx += pos * f.strides[i]
	}
	return f.values[idx], nil
}

func (f *Factor) scopeIndex(name string) int {
	for i, v := range f.scope {
		if v.name == name {
			return i
		}
	}
	return -1
}

func (f *Factor) clone() *Factor {
	values := make([]float64, len(f.values))
	copy(values, f.values)
	return newFactor(append([]*Variable(nil), f.scope...), values)
}

func scopeNames(scope []*Variable) string {
	names := make([]string, len(scope))
	for i, v := range scope {
		names[i] = v.name
	}
	return "[" + strings.Join(names, ", ") + "]"
}
