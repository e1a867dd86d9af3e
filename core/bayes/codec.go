package bayes

import (
	"encoding/json"
	"fmt"
)

type networkSnapshot struct {
	Name      string             `json:"name"`
	Class     string             `json:"class"`
	Variables []variableSnapshot `json:"variables"`
	Factors   []factorSnapshot   `json:"factors"`
}

type variableSnapshot struct {
	Name   string   `json:"name"`
	Domain []string `json:"domain"`
}

type factorSnapshot struct {
	Scope  []string  `json:"scope"`
	Values []float64 `json:"values"`
}

// EncodeNetwork serializes a network to JSON. Domain order and factor
// tables survive the roundtrip exactly.
func EncodeNetwork(n *Network) ([]byte, error) {
	snap := networkSnapshot{
		Name:      n.name,
		Class:     n.class.name,
		Variables: make([]variableSnapshot, 0, len(n.vars)),
		Factors:   make([]factorSnapshot, 0, len(n.factors)),
	}
	for _, v := range n.vars {
		snap.Variables = append(snap.Variables, variableSnapshot{Name: v.name, Domain: v.Domain()})
	}
	for _, f := range n.factors {
		fs := factorSnapshot{Scope: make([]string, len(f.scope)), Values: f.Values()}
		for i, v := range f.scope {
			fs.Scope[i] = v.name
		}
		snap.Factors = append(snap.Factors, fs)
	}
	return json.Marshal(snap)
}

// DecodeNetwork rebuilds a network from its JSON form, revalidating every
// shape invariant on the way in.
func DecodeNetwork(data []byte) (*Network, error) {
	var snap networkSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode network: %w", err)
	}

	byName := make(map[string]*Variable, len(snap.Variables))
	vars := make([]*Variable, 0, len(snap.Variables))
	for _, vs := range snap.Variables {
		v, err := NewVariable(vs.Name, vs.Domain)
		if err != nil {
			return nil, fmt.Errorf("decode network: %w", err)
		}
		byName[vs.Name] = v
		vars = append(vars, v)
	}

	factors := make([]*Factor, 0, len(snap.Factors))
	for i, fs := range snap.Factors {
		scope := make([]*Variable, len(fs.Scope))
		for j, name := range fs.Scope {
			v, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("decode network: factor %d references unknown variable %q", i, name)
			}
			scope[j] = v
		}
		f, err := NewFactor(scope, fs.Values)
		if err != nil {
			return nil, fmt.Errorf("decode network: %w", err)
		}
		factors = append(factors, f)
	}

	net, err := NewNetwork(snap.Name, vars, factors, snap.Class)
	if err != nil {
		return nil, fmt.Errorf("decode network: %w", err)
	}
	return net, nil
}
