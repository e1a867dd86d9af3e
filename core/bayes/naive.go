package bayes

import (
	"fmt"
	"sort"
)

// BuildOptions controls network construction.
type BuildOptions struct {
	// Smoothing is the additive (Laplace) constant applied to every CPT
	// count. Zero disables smoothing, which permits zero-probability
	// entries and therefore degenerate posteriors for evidence
	// combinations unseen in training.
	Smoothing float64
}

// DefaultBuildOptions returns add-one smoothing.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{Smoothing: 1}
}

// NewNaiveBayes builds a network from labeled rows under the naive-Bayes
// assumption: one class variable, every other attribute conditionally
// independent given it. Each variable's domain is the sorted set of
// distinct observed values. The class prior holds count(c)/N; each
// attribute CPT over scope [X, class] holds
// (count(x,c) + s) / (count(c) + s*|domain(X)|) with s = opts.Smoothing.
// Variables are declared in sorted attribute order with the class last.
func NewNaiveBayes(rows []map[string]string, classAttr string, opts BuildOptions) (*Network, error) {
	if opts.Smoothing < 0 {
		return nil, fmt.Errorf("smoothing must be non-negative, got %v", opts.Smoothing)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("build naive bayes: %w", ErrEmptyDataset)
	}

	observed := make(map[string]map[string]bool)
	for i, row := range rows {
		if _, ok := row[classAttr]; !ok {
			return nil, fmt.Errorf("row %d: %w: %q", i, ErrMissingClassColumn, classAttr)
		}
		for attr, val := range row {
			set := observed[attr]
			if set == nil {
				set = make(map[string]bool)
				observed[attr] = set
			}
			set[val] = true
		}
	}
	for i, row := range rows {
		for attr := range observed {
			if _, ok := row[attr]; !ok {
				return nil, fmt.Errorf("row %d missing attribute %q", i, attr)
			}
		}
	}

	attrs := make([]string, 0, len(observed)-1)
	for attr := range observed {
		if attr != classAttr {
			attrs = append(attrs, attr)
		}
	}
	sort.Strings(attrs)

	makeVar := func(name string) (*Variable, error) {
		domain := make([]string, 0, len(observed[name]))
		for val := range observed[name] {
			domain = append(domain, val)
		}
		sort.Strings(domain)
		return NewVariable(name, domain)
	}

	class, err := makeVar(classAttr)
	if err != nil {
		return nil, err
	}
	classCard := class.Cardinality()

	classCounts := make([]int, classCard)
	for _, row := range rows {
		ci, _ := class.Index(row[classAttr])
		classCounts[ci]++
	}

	vars := make([]*Variable, 0, len(attrs)+1)
	cpts := make([]*Factor, 0, len(attrs)+1)
	for _, attr := range attrs {
		x, err := makeVar(attr)
		if err != nil {
			return nil, err
		}
		card := x.Cardinality()

		counts := make([]int, card*classCard)
		for _, row := range rows {
			xi, _ := x.Index(row[attr])
			ci, _ := class.Index(row[classAttr])
			counts[xi*classCard+ci]++
		}

		values := make([]float64, card*classCard)
		for xi := 0; xi < card; xi++ {
			for ci := 0; ci < classCard; ci++ {
				num := float64(counts[xi*classCard+ci]) + opts.Smoothing
				den := float64(classCounts[ci]) + opts.Smoothing*float64(card)
				values[xi*classCard+ci] = num / den
			}
		}

		vars = append(vars, x)
		cpts = append(cpts, newFactor([]*Variable{x, class}, values))
	}

	prior := make([]float64, classCard)
	for ci, count := range classCounts {
		prior[ci] = float64(count) / float64(len(rows))
	}
	vars = append(vars, class)
	cpts = append(cpts, newFactor([]*Variable{class}, prior))

	return NewNetwork(fmt.Sprintf("naive_bayes(%s)", classAttr), vars, cpts, classAttr)
}
