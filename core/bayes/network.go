// Package bayes implements exact probabilistic inference over discrete
// Bayesian networks: the Variable/Factor algebra, the Variable Elimination
// engine, and a Naive Bayes network builder. Every operation is a pure
// transformation over immutable values, so a built Network is safe for
// concurrent readers without coordination.
package bayes

import "fmt"

// Network is an immutable collection of variables with one conditional
// probability table per variable and a designated class variable. The
// builder in this package always produces the naive-Bayes structure
// (every non-class CPT has scope [X, class]); the algebra and the
// elimination engine are structure-agnostic.
type Network struct {
	name    string
	vars    []*Variable
	byName  map[string]*Variable
	factors []*Factor
	class   *Variable
}

// NewNetwork assembles a network from variables and their CPTs, paired by
// index. Each CPT's scope must start with its own variable and reference
// only variables declared in the network.
func NewNetwork(name string, vars []*Variable, cpts []*Factor, classAttr string) (*Network, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("network %q has no variables", name)
	}
	if len(cpts) != len(vars) {
		return nil, fmt.Errorf("network %q: %d variables but %d factors", name, len(vars), len(cpts))
	}

	byName := make(map[string]*Variable, len(vars))
	for _, v := range vars {
		if _, dup := byName[v.name]; dup {
			return nil, fmt.Errorf("network %q declares variable %q twice", name, v.name)
		}
		byName[v.name] = v
	}

	class, ok := byName[classAttr]
	if !ok {
		return nil, fmt.Errorf("network %q: class %q: %w", name, classAttr, ErrUnknownVariable)
	}

	for i, f := range cpts {
		if len(f.scope) == 0 || f.scope[0].name != vars[i].name {
			return nil, fmt.Errorf("network %q: factor %d is not a CPT for %q (scope %s)",
				name, i, vars[i].name, scopeNames(f.scope))
		}
		for _, sv := range f.scope {
			if _, ok := byName[sv.name]; !ok {
				return nil, fmt.Errorf("network %q: factor for %q references undeclared %q",
					name, vars[i].name, sv.name)
			}
		}
	}

	return &Network{
		name:    name,
		vars:    append([]*Variable(nil), vars...),
		byName:  byName,
		factors: append([]*Factor(nil), cpts...),
		class:   class,
	}, nil
}

func (n *Network) Name() string { return n.name }

// Class returns the designated class variable.
func (n *Network) Class() *Variable { return n.class }

// Variables returns the variables in declaration order.
func (n *Network) Variables() []*Variable {
	return append([]*Variable(nil), n.vars...)
}

// Variable returns the named variable.
func (n *Network) Variable(name string) (*Variable, bool) {
	v, ok := n.byName[name]
	return v, ok
}

// Factors returns the CPTs in declaration order.
func (n *Network) Factors() []*Factor {
	return append([]*Factor(nil), n.factors...)
}

// CPT returns the conditional probability table for the named variable.
func (n *Network) CPT(name string) (*Factor, bool) {
	for i, v := range n.vars {
		if v.name == name {
			return n.factors[i], true
		}
	}
	return nil, false
}
