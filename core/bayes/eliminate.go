package bayes

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Posterior is a normalized distribution over a query variable's domain,
// aligned with the domain order.
type Posterior struct {
	variable *Variable
	probs    []float64
}

// Variable returns the query variable the posterior ranges over.
func (p *Posterior) Variable() *Variable { return p.variable }

// P returns the probability mass of an outcome, or 0 for a label outside
// the domain.
func (p *Posterior) P(outcome string) float64 {
	i, ok := p.variable.Index(outcome)
	if !ok {
		return 0
	}
	return p.probs[i]
}

// Probs returns a copy of the probabilities in domain order.
func (p *Posterior) Probs() []float64 {
	return append([]float64(nil), p.probs...)
}

// Top returns the outcome with maximal mass; ties resolve to the first
// outcome in domain order.
func (p *Posterior) Top() string {
	return p.variable.Outcome(floats.MaxIdx(p.probs))
}

// Map returns the distribution keyed by outcome label.
func (p *Posterior) Map() map[string]float64 {
	out := make(map[string]float64, len(p.probs))
	for i, mass := range p.probs {
		out[p.variable.Outcome(i)] = mass
	}
	return out
}

// Infer computes the exact posterior over the query variable given the
// evidence, by variable elimination: every CPT is restricted against the
// applicable evidence entries, the remaining variables are eliminated in
// declaration order (multiply the factors mentioning the variable, then
// sum it out), and the product of the surviving factors is normalized.
// The network is not mutated; concurrent calls are safe.
func (n *Network) Infer(query string, ev Evidence) (*Posterior, error) {
	return n.inferOrdered(query, ev, nil)
}

func (n *Network) inferOrdered(query string, ev Evidence, order []*Variable) (*Posterior, error) {
	qv, ok := n.byName[query]
	if !ok {
		return nil, fmt.Errorf("query %q: %w", query, ErrUnknownVariable)
	}

	names := make([]string, 0, len(ev))
	for name := range ev {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, ok := n.byName[name]
		if !ok {
			return nil, fmt.Errorf("evidence %q: %w: not in network", name, ErrInvalidEvidence)
		}
		if name == query {
			return nil, fmt.Errorf("evidence %q: %w: assigns the query variable", name, ErrInvalidEvidence)
		}
		if _, ok := v.Index(ev[name]); !ok {
			return nil, fmt.Errorf("evidence %s=%q: %w: outcome not in domain", name, ev[name], ErrInvalidEvidence)
		}
	}

	working := make([]*Factor, 0, len(n.factors))
	for _, f := range n.factors {
		g := f
		for _, name := range names {
			if !g.InScope(name) {
				continue
			}
			var err error
			g, err = Restrict(g, n.byName[name], ev[name])
			if err != nil {
				return nil, err
			}
		}
		working = append(working, g)
	}

	if order == nil {
		order = make([]*Variable, 0, len(n.vars))
		for _, v := range n.vars {
			if v.name == query {
				continue
			}
			if _, observed := ev[v.name]; observed {
				continue
			}
			order = append(order, v)
		}
	}

	for _, v := range order {
		var with, without []*Factor
		for _, f := range working {
			if f.InScope(v.name) {
				with = append(with, f)
			} else {
				without = append(without, f)
			}
		}
		if len(with) == 0 {
			continue
		}
		combined := with[0]
		for _, f := range with[1:] {
			combined = Product(combined, f)
		}
		reduced, err := SumOut(combined, v)
		if err != nil {
			return nil, err
		}
		working = append(without, reduced)
	}

	joint := working[0]
	for _, f := range working[1:] {
		joint = Product(joint, f)
	}
	if len(joint.scope) != 1 || joint.scope[0].name != query {
		return nil, fmt.Errorf("elimination left scope %s, want [%s]", scopeNames(joint.scope), query)
	}

	norm, err := Normalize(joint)
	if err != nil {
		return nil, err
	}
	return &Posterior{variable: qv, probs: norm.values}, nil
}

// Predict returns the class outcome with maximal posterior mass given the
// evidence; ties resolve to the first outcome in the class domain.
func (n *Network) Predict(ev Evidence) (string, error) {
	post, err := n.Infer(n.class.name, ev)
	if err != nil {
		return "", err
	}
	return post.Top(), nil
}
