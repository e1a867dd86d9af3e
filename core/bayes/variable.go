package bayes

import "fmt"

// Variable is an immutable named discrete random variable with an ordered
// domain of outcome labels. Domain order is fixed at construction and
// defines both the table index used by factors and the tie-break order
// used by classification. Two variables are the same variable iff their
// names are equal; instances are shared by pointer among the factors that
// mention them.
type Variable struct {
	name   string
	domain []string
	index  map[string]int
}

// NewVariable constructs a variable over the given ordered domain.
func NewVariable(name string, domain []string) (*Variable, error) {
	if name == "" {
		return nil, fmt.Errorf("variable name is empty")
	}
	if len(domain) == 0 {
		return nil, fmt.Errorf("variable %q: %w", name, ErrEmptyDomain)
	}

	index := make(map[string]int, len(domain))
	owned := make([]string, len(domain))
	for i, outcome := range domain {
		if _, seen := index[outcome]; seen {
			return nil, fmt.Errorf("variable %q: %w: %q", name, ErrDuplicateOutcome, outcome)
		}
		index[outcome] = i
		owned[i] = outcome
	}

	return &Variable{name: name, domain: owned, index: index}, nil
}

func (v *Variable) Name() string { return v.name }

// Domain returns a copy of the ordered outcome labels.
func (v *Variable) Domain() []string {
	out := make([]string, len(v.domain))
	copy(out, v.domain)
	return out
}

// Cardinality returns the number of outcomes in the domain.
func (v *Variable) Cardinality() int { return len(v.domain) }

// Index returns the position of an outcome within the domain.
func (v *Variable) Index(outcome string) (int, bool) {
	i, ok := v.index[outcome]
	return i, ok
}

// Outcome returns the label at the given domain position.
func (v *Variable) Outcome(i int) string { return v.domain[i] }

// Evidence is a partial assignment of observed outcome labels to variable
// names. It need not cover all non-query variables and must never assign
// the query variable.
type Evidence map[string]string
