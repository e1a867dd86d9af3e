package bayes

import (
	"fmt"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/floats"
)

// Restrict projects the table onto the slice where v takes value, dropping
// v from the scope. The result scope is the original scope minus v in the
// original relative order.
func Restrict(f *Factor, v *Variable, value string) (*Factor, error) {
	pos := f.scopeIndex(v.name)
	if pos < 0 {
		return nil, fmt.Errorf("restrict %q: %w: variable not in scope %s",
			v.name, ErrInvalidEvidence, scopeNames(f.scope))
	}
	sv := f.scope[pos]
	k, ok := sv.Index(value)
	if !ok {
		return nil, fmt.Errorf("restrict %q: %w: outcome %q not in domain",
			v.name, ErrInvalidEvidence, value)
	}

	inner := f.strides[pos]
	block := sv.Cardinality() * inner
	outer := len(f.values) / block

	values := make([]float64, outer*inner)
	for o := 0; o < outer; o++ {
		src := f.values[o*block+k*inner:]
		copy(values[o*inner:(o+1)*inner], src[:inner])
	}
	return newFactor(scopeWithout(f.scope, pos), values), nil
}

// Product computes the pointwise product of a and b over the union of
// their scopes, with outer-join semantics: for each assignment of the
// union scope, the result is a's entry on a's scope times b's entry on
// b's scope. The result scope is a's scope followed by the variables of
// b's scope not already present, order preserved. An empty-scope operand
// degenerates to elementwise scaling.
func Product(a, b *Factor) *Factor {
	if len(a.scope) == 0 {
		out := b.clone()
		vek.MulNumber_Inplace(out.values, a.values[0])
		return out
	}
	if len(b.scope) == 0 {
		out := a.clone()
		vek.MulNumber_Inplace(out.values, b.values[0])
		return out
	}
	if sameScope(a, b) {
		out := a.clone()
		vek.Mul_Inplace(out.values, b.values)
		return out
	}

	scope := append([]*Variable(nil), a.scope...)
	for _, v := range b.scope {
		if a.scopeIndex(v.name) < 0 {
			scope = append(scope, v)
		}
	}

	size := 1
	for _, v := range scope {
		size *= v.Cardinality()
	}
	out := newFactor(scope, make([]float64, size))

	// Per-position stride contributions into each operand's table; zero
	// when the operand does not mention the variable.
	aStrides := make([]int, len(scope))
	bStrides := make([]int, len(scope))
	for i, v := range scope {
		if p := a.scopeIndex(v.name); p >= 0 {
			aStrides[i] = a.strides[p]
		}
		if p := b.scopeIndex(v.name); p >= 0 {
			bStrides[i] = b.strides[p]
		}
	}

	digits := make([]int, len(scope))
	ia, ib := 0, 0
	for i := range out.values {
		out.values[i] = a.values[ia] * b.values[ib]

		for p := len(scope) - 1; p >= 0; p-- {
			digits[p]++
			ia += aStrides[p]
			ib += bStrides[p]
			if digits[p] < scope[p].Cardinality() {
				break
			}
			digits[p] = 0
			ia -= aStrides[p] * scope[p].Cardinality()
			ib -= bStrides[p] * scope[p].Cardinality()
		}
	}
	return out
}

// SumOut eliminates v by summing the table over all its outcomes while
// holding the remaining variables fixed.
func SumOut(f *Factor, v *Variable) (*Factor, error) {
	pos := f.scopeIndex(v.name)
	if pos < 0 {
		return nil, fmt.Errorf("sum out %q: %w: scope %s",
			v.name, ErrInvalidVariable, scopeNames(f.scope))
	}
	sv := f.scope[pos]

	inner := f.strides[pos]
	card := sv.Cardinality()
	block := card * inner
	outer := len(f.values) / block

	values := make([]float64, outer*inner)
	for o := 0; o < outer; o++ {
		dst := values[o*inner : (o+1)*inner]
		base := o * block
		for k := 0; k < card; k++ {
			vek.Add_Inplace(dst, f.values[base+k*inner:base+(k+1)*inner])
		}
	}
	return newFactor(scopeWithout(f.scope, pos), values), nil
}

// Normalize divides every entry by the table total so the result sums
// to 1. A zero total means the evidence has probability zero under the
// model and fails with ErrDegenerateDistribution.
func Normalize(f *Factor) (*Factor, error) {
	total := floats.Sum(f.values)
	if total == 0 {
		return nil, fmt.Errorf("normalize scope %s: %w", scopeNames(f.scope), ErrDegenerateDistribution)
	}
	out := f.clone()
	floats.Scale(1/total, out.values)
	return out, nil
}

func sameScope(a, b *Factor) bool {
	if len(a.scope) != len(b.scope) {
		return false
	}
	for i := range a.scope {
		if a.scope[i].name != b.scope[i].name {
			return false
		}
	}
	return true
}

func scopeWithout(scope []*Variable, pos int) []*Variable {
	out := make([]*Variable, 0, len(scope)-1)
	out = append(out, scope[:pos]...)
	return append(out, scope[pos+1:]...)
}
