package dataset

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Schema selects table columns by glob pattern. An empty include list
// admits every column; exclusions are applied afterwards and win.
type Schema struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewSchema compiles the include and exclude patterns.
func NewSchema(include, exclude []string) (*Schema, error) {
	in, err := compilePatterns(include)
	if err != nil {
		return nil, err
	}
	ex, err := compilePatterns(exclude)
	if err != nil {
		return nil, err
	}
	return &Schema{include: in, exclude: ex}, nil
}

// Match reports whether the column survives the include and exclude
// patterns.
func (s *Schema) Match(column string) bool {
	if len(s.include) > 0 {
		matched := false
		for _, g := range s.include {
			if g.Match(column) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, g := range s.exclude {
		if g.Match(column) {
			return false
		}
	}
	return true
}

// Apply projects the table onto the matching columns, keeping header
// order. Selecting zero columns is an error.
func (s *Schema) Apply(t *Table) (*Table, error) {
	var keep []string
	for _, column := range t.Columns() {
		if s.Match(column) {
			keep = append(keep, column)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("column patterns match nothing in %v", t.Columns())
	}
	return t.Select(keep)
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
