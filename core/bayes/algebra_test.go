package bayes

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func mustVariable(t *testing.T, name string, domain ...string) *Variable {
	t.Helper()
	v, err := NewVariable(name, domain)
	if err != nil {
		t.Fatalf("NewVariable(%q) failed: %v", name, err)
	}
	return v
}

func mustFactor(t *testing.T, scope []*Variable, values []float64) *Factor {
	t.Helper()
	f, err := NewFactor(scope, values)
	if err != nil {
		t.Fatalf("NewFactor failed: %v", err)
	}
	return f
}

func TestVariable(t *testing.T) {
	t.Run("domain order is preserved and indexed", func(t *testing.T) {
		v := mustVariable(t, "Work", "Private", "Self", "Government")

		if v.Cardinality() != 3 {
			t.Errorf("Cardinality() = %d, want 3", v.Cardinality())
		}
		for i, outcome := range []string{"Private", "Self", "Government"} {
			idx, ok := v.Index(outcome)
			if !ok || idx != i {
				t.Errorf("Index(%q) = %d, %v, want %d, true", outcome, idx, ok, i)
			}
			if v.Outcome(i) != outcome {
				t.Errorf("Outcome(%d) = %q, want %q", i, v.Outcome(i), outcome)
			}
		}
	})

	t.Run("Domain returns a copy", func(t *testing.T) {
		v := mustVariable(t, "Gender", "Female", "Male")
		d := v.Domain()
		d[0] = "mutated"
		if v.Outcome(0) != "Female" {
			t.Error("mutating the returned domain changed the variable")
		}
	})

	t.Run("construction rejects bad domains", func(t *testing.T) {
		if _, err := NewVariable("X", nil); !errors.Is(err, ErrEmptyDomain) {
			t.Errorf("empty domain: got %v, want ErrEmptyDomain", err)
		}
		if _, err := NewVariable("X", []string{"a", "b", "a"}); !errors.Is(err, ErrDuplicateOutcome) {
			t.Errorf("duplicate outcome: got %v, want ErrDuplicateOutcome", err)
		}
		if _, err := NewVariable("", []string{"a"}); err == nil {
			t.Error("empty name should fail")
		}
	})
}

func TestNewFactor(t *testing.T) {
	x := mustVariable(t, "X", "x1", "x2")
	y := mustVariable(t, "Y", "y1", "y2", "y3")

	t.Run("table length must match the scope cross-product", func(t *testing.T) {
		if _, err := NewFactor([]*Variable{x, y}, make([]float64, 5)); err == nil {
			t.Error("expected error for 5 entries over a 2x3 scope")
		}
		if _, err := NewFactor([]*Variable{x, y}, make([]float64, 6)); err != nil {
			t.Errorf("valid 2x3 table rejected: %v", err)
		}
	})

	t.Run("negative entries are rejected", func(t *testing.T) {
		if _, err := NewFactor([]*Variable{x}, []float64{0.5, -0.1}); err == nil {
			t.Error("expected error for negative entry")
		}
	})

	t.Run("repeated scope variable is rejected", func(t *testing.T) {
		if _, err := NewFactor([]*Variable{x, x}, make([]float64, 4)); err == nil {
			t.Error("expected error for duplicate scope variable")
		}
	})

	t.Run("empty scope holds one scalar", func(t *testing.T) {
		f := mustFactor(t, nil, []float64{2.5})
		if f.Size() != 1 {
			t.Errorf("Size() = %d, want 1", f.Size())
		}
	})

	t.Run("At addresses cells row-major", func(t *testing.T) {
		// Row-major over [X, Y]: x varies slowest.
		f := mustFactor(t, []*Variable{x, y}, []float64{1, 2, 3, 4, 5, 6})
		got, err := f.At(map[string]string{"X": "x2", "Y": "y1"})
		if err != nil {
			t.Fatalf("At failed: %v", err)
		}
		if got != 4 {
			t.Errorf("At(x2, y1) = %v, want 4", got)
		}
	})
}

func TestRestrict(t *testing.T) {
	x := mustVariable(t, "X", "x1", "x2")
	y := mustVariable(t, "Y", "y1", "y2", "y3")
	f := mustFactor(t, []*Variable{x, y}, []float64{1, 2, 3, 4, 5, 6})

	t.Run("slices the table and drops the variable", func(t *testing.T) {
		g, err := Restrict(f, x, "x2")
		if err != nil {
			t.Fatalf("Restrict failed: %v", err)
		}
		if len(g.Scope()) != 1 || g.Scope()[0].Name() != "Y" {
			t.Fatalf("result scope = %v, want [Y]", scopeNames(g.scope))
		}
		want := []float64{4, 5, 6}
		if !floats.Equal(g.Values(), want) {
			t.Errorf("values = %v, want %v", g.Values(), want)
		}
	})

	t.Run("restricting an inner variable keeps outer order", func(t *testing.T) {
		g, err := Restrict(f, y, "y2")
		if err != nil {
			t.Fatalf("Restrict failed: %v", err)
		}
		want := []float64{2, 5}
		if !floats.Equal(g.Values(), want) {
			t.Errorf("values = %v, want %v", g.Values(), want)
		}
	})

	t.Run("restricting twice on the same variable fails", func(t *testing.T) {
		g, err := Restrict(f, x, "x1")
		if err != nil {
			t.Fatalf("first Restrict failed: %v", err)
		}
		if _, err := Restrict(g, x, "x1"); !errors.Is(err, ErrInvalidEvidence) {
			t.Errorf("second Restrict: got %v, want ErrInvalidEvidence", err)
		}
	})

	t.Run("out-of-domain value fails", func(t *testing.T) {
		if _, err := Restrict(f, x, "x9"); !errors.Is(err, ErrInvalidEvidence) {
			t.Errorf("got %v, want ErrInvalidEvidence", err)
		}
	})

	t.Run("input factor is not mutated", func(t *testing.T) {
		before := f.Values()
		if _, err := Restrict(f, x, "x1"); err != nil {
			t.Fatalf("Restrict failed: %v", err)
		}
		if !floats.Equal(f.Values(), before) {
			t.Error("Restrict mutated its input")
		}
	})
}

func TestProduct(t *testing.T) {
	x := mustVariable(t, "X", "x1", "x2")
	y := mustVariable(t, "Y", "y1", "y2")
	z := mustVariable(t, "Z", "z1", "z2")

	t.Run("union scope keeps left-to-right order", func(t *testing.T) {
		a := mustFactor(t, []*Variable{x, y}, []float64{1, 2, 3, 4})
		b := mustFactor(t, []*Variable{y, z}, []float64{5, 6, 7, 8})

		p := Product(a, b)
		scope := p.Scope()
		if len(scope) != 3 || scope[0].Name() != "X" || scope[1].Name() != "Y" || scope[2].Name() != "Z" {
			t.Fatalf("scope = %v, want [X, Y, Z]", scopeNames(p.scope))
		}

		// a(x1,y2)*b(y2,z1) = 2*7 = 14 at (x1,y2,z1).
		got, err := p.At(map[string]string{"X": "x1", "Y": "y2", "Z": "z1"})
		if err != nil {
			t.Fatalf("At failed: %v", err)
		}
		if got != 14 {
			t.Errorf("p(x1,y2,z1) = %v, want 14", got)
		}
	})

	t.Run("disjoint scopes form the full cross-product", func(t *testing.T) {
		a := mustFactor(t, []*Variable{x}, []float64{2, 3})
		b := mustFactor(t, []*Variable{z}, []float64{5, 7})

		p := Product(a, b)
		want := []float64{10, 14, 15, 21}
		if !floats.Equal(p.Values(), want) {
			t.Errorf("values = %v, want %v", p.Values(), want)
		}
	})

	t.Run("identical scopes multiply elementwise", func(t *testing.T) {
		a := mustFactor(t, []*Variable{x}, []float64{2, 3})
		b := mustFactor(t, []*Variable{x}, []float64{10, 100})

		p := Product(a, b)
		want := []float64{20, 300}
		if !floats.Equal(p.Values(), want) {
			t.Errorf("values = %v, want %v", p.Values(), want)
		}
	})

	t.Run("empty-scope operand scales elementwise", func(t *testing.T) {
		a := mustFactor(t, []*Variable{x, y}, []float64{1, 2, 3, 4})
		scalar := mustFactor(t, nil, []float64{0.5})

		for _, p := range []*Factor{Product(a, scalar), Product(scalar, a)} {
			want := []float64{0.5, 1, 1.5, 2}
			if !floats.Equal(p.Values(), want) {
				t.Errorf("values = %v, want %v", p.Values(), want)
			}
		}
	})

	t.Run("marginals commute across operand order", func(t *testing.T) {
		a := mustFactor(t, []*Variable{x, y}, []float64{1, 2, 3, 4})
		b := mustFactor(t, []*Variable{y, z}, []float64{5, 6, 7, 8})

		ab, err := SumOut(Product(a, b), y)
		if err != nil {
			t.Fatalf("SumOut(a*b) failed: %v", err)
		}
		ba, err := SumOut(Product(b, a), y)
		if err != nil {
			t.Fatalf("SumOut(b*a) failed: %v", err)
		}

		for _, xv := range x.Domain() {
			for _, zv := range z.Domain() {
				assign := map[string]string{"X": xv, "Z": zv}
				va, err := ab.At(assign)
				if err != nil {
					t.Fatalf("At failed: %v", err)
				}
				vb, err := ba.At(assign)
				if err != nil {
					t.Fatalf("At failed: %v", err)
				}
				if math.Abs(va-vb) > 1e-9 {
					t.Errorf("marginal at (%s,%s): %v vs %v", xv, zv, va, vb)
				}
			}
		}
	})
}

func TestSumOut(t *testing.T) {
	x := mustVariable(t, "X", "x1", "x2")
	y := mustVariable(t, "Y", "y1", "y2", "y3")
	f := mustFactor(t, []*Variable{x, y}, []float64{1, 2, 3, 4, 5, 6})

	t.Run("sums over the eliminated variable", func(t *testing.T) {
		g, err := SumOut(f, x)
		if err != nil {
			t.Fatalf("SumOut failed: %v", err)
		}
		want := []float64{5, 7, 9}
		if !floats.Equal(g.Values(), want) {
			t.Errorf("values = %v, want %v", g.Values(), want)
		}
	})

	t.Run("eliminating the inner variable", func(t *testing.T) {
		g, err := SumOut(f, y)
		if err != nil {
			t.Fatalf("SumOut failed: %v", err)
		}
		want := []float64{6, 15}
		if !floats.Equal(g.Values(), want) {
			t.Errorf("values = %v, want %v", g.Values(), want)
		}
	})

	t.Run("total mass is preserved", func(t *testing.T) {
		g, err := SumOut(f, y)
		if err != nil {
			t.Fatalf("SumOut failed: %v", err)
		}
		if math.Abs(floats.Sum(g.Values())-floats.Sum(f.Values())) > 1e-9 {
			t.Error("SumOut changed the total mass")
		}
	})

	t.Run("variable outside the scope fails", func(t *testing.T) {
		z := mustVariable(t, "Z", "z1")
		if _, err := SumOut(f, z); !errors.Is(err, ErrInvalidVariable) {
			t.Errorf("got %v, want ErrInvalidVariable", err)
		}
	})
}

func TestNormalize(t *testing.T) {
	x := mustVariable(t, "X", "x1", "x2", "x3")

	t.Run("result sums to one", func(t *testing.T) {
		testCases := []struct {
			name   string
			values []float64
		}{
			{"already normalized", []float64{0.2, 0.3, 0.5}},
			{"uniform mass", []float64{1, 1, 1}},
			{"skewed mass", []float64{100, 1, 0}},
			{"tiny mass", []float64{1e-12, 3e-12, 6e-12}},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				f := mustFactor(t, []*Variable{x}, tc.values)
				g, err := Normalize(f)
				if err != nil {
					t.Fatalf("Normalize failed: %v", err)
				}
				if sum := floats.Sum(g.Values()); math.Abs(sum-1) > 1e-9 {
					t.Errorf("normalized sum = %v, want 1", sum)
				}
			})
		}
	})

	t.Run("zero total mass fails", func(t *testing.T) {
		f := mustFactor(t, []*Variable{x}, []float64{0, 0, 0})
		if _, err := Normalize(f); !errors.Is(err, ErrDegenerateDistribution) {
			t.Errorf("got %v, want ErrDegenerateDistribution", err)
		}
	})

	t.Run("input is not mutated", func(t *testing.T) {
		f := mustFactor(t, []*Variable{x}, []float64{2, 4, 6})
		if _, err := Normalize(f); err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if !floats.Equal(f.Values(), []float64{2, 4, 6}) {
			t.Error("Normalize mutated its input")
		}
	})
}

func BenchmarkProduct(b *testing.B) {
	x, _ := NewVariable("X", []string{"a", "b", "c", "d"})
	y, _ := NewVariable("Y", []string{"a", "b", "c", "d"})
	z, _ := NewVariable("Z", []string{"a", "b", "c", "d"})
	fa, _ := NewFactor([]*Variable{x, y}, make([]float64, 16))
	fb, _ := NewFactor([]*Variable{y, z}, make([]float64, 16))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Product(fa, fb)
	}
}
