// Package fairness computes group-conditional fairness statistics from
// exact posteriors: demographic parity, evidence-sensitivity (separation),
// and positive-prediction accuracy (sufficiency) for a protected and a
// reference group of a sensitive attribute.
package fairness

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/openaudit/fairbayes/core/bayes"
	"github.com/openaudit/fairbayes/core/dataset"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Params configures an audit run.
type Params struct {
	// EvidenceAttrs are the attributes fed to the model as evidence for
	// every prediction. The sensitive attribute must not be among them;
	// it is added separately for the evidence-sensitivity comparison.
	EvidenceAttrs []string

	// SensitiveAttr partitions rows into groups.
	SensitiveAttr string

	// ProtectedGroup and ReferenceGroup are the two compared outcomes of
	// the sensitive attribute. Rows carrying any other outcome are
	// reported as unmatched and excluded from both groups.
	ProtectedGroup string
	ReferenceGroup string

	// PositiveOutcome is the class outcome counted as a positive
	// prediction.
	PositiveOutcome string

	// Threshold is the decision boundary: a row is predicted positive
	// when the positive posterior strictly exceeds it.
	Threshold float64

	// Workers bounds the parallel row evaluation; zero means NumCPU.
	Workers int
}

// DefaultParams returns the adult-income audit configuration.
func DefaultParams() Params {
	return Params{
		EvidenceAttrs:   []string{"Work", "Education", "Occupation", "Relationship"},
		SensitiveAttr:   "Gender",
		ProtectedGroup:  "Female",
		ReferenceGroup:  "Male",
		PositiveOutcome: ">=50K",
		Threshold:       0.5,
	}
}

// Auditor evaluates a test table against a trained network. Posteriors
// flow through a shared memo cache, since the gendered and ungendered
// passes revisit identical evidence for many rows.
type Auditor struct {
	memo   *bayes.Memo
	params Params
	logger *slog.Logger
}

// NewAuditor validates the parameters and wraps the model.
func NewAuditor(memo *bayes.Memo, params Params, logger *slog.Logger) (*Auditor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(params.EvidenceAttrs) == 0 {
		return nil, fmt.Errorf("audit: no evidence attributes")
	}
	if params.SensitiveAttr == "" {
		return nil, fmt.Errorf("audit: no sensitive attribute")
	}
	if params.ProtectedGroup == params.ReferenceGroup {
		return nil, fmt.Errorf("audit: protected and reference group are both %q", params.ProtectedGroup)
	}
	if params.Threshold < 0 || params.Threshold > 1 {
		return nil, fmt.Errorf("audit: threshold %v outside [0, 1]", params.Threshold)
	}
	for _, attr := range params.EvidenceAttrs {
		if attr == params.SensitiveAttr {
			return nil, fmt.Errorf("audit: sensitive attribute %q cannot be regular evidence", attr)
		}
	}

	net := memo.Network()
	class := net.Class()
	if _, ok := class.Index(params.PositiveOutcome); !ok {
		return nil, fmt.Errorf("audit: positive outcome %q not in class domain %v",
			params.PositiveOutcome, class.Domain())
	}
	for _, attr := range params.EvidenceAttrs {
		if attr == class.Name() {
			return nil, fmt.Errorf("audit: class %q cannot be evidence", attr)
		}
		if _, ok := net.Variable(attr); !ok {
			return nil, fmt.Errorf("audit: evidence attribute %q: %w", attr, bayes.ErrUnknownVariable)
		}
	}
	if _, ok := net.Variable(params.SensitiveAttr); !ok {
		return nil, fmt.Errorf("audit: sensitive attribute %q: %w", params.SensitiveAttr, bayes.ErrUnknownVariable)
	}

	return &Auditor{memo: memo, params: params, logger: logger}, nil
}

type tally struct {
	rows      int
	predicted int
	shifted   int
	correct   int
	klSum     float64
	klRows    int
}

func (t *tally) merge(o tally) {
	t.rows += o.rows
	t.predicted += o.predicted
	t.shifted += o.shifted
	t.correct += o.correct
	t.klSum += o.klSum
	t.klRows += o.klRows
}

type tallies struct {
	protected tally
	reference tally
	unmatched int
}

// Audit evaluates every row of the table. Rows are split into contiguous
// chunks evaluated in parallel; per-chunk tallies are merged in chunk
// order, so the result does not depend on scheduling. Any row the model
// cannot score fails the whole run.
func (a *Auditor) Audit(ctx context.Context, table *dataset.Table) (*Report, error) {
	if table.Len() == 0 {
		return nil, fmt.Errorf("audit: %w", bayes.ErrEmptyDataset)
	}
	if err := a.checkColumns(table); err != nil {
		return nil, err
	}

	n := table.Len()
	workers := a.params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	start := time.Now()
	locals := make([]tallies, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		local := &locals[w]
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := a.scoreRow(table, i, local); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total tallies
	for _, local := range locals {
		total.protected.merge(local.protected)
		total.reference.merge(local.reference)
		total.unmatched += local.unmatched
	}

	a.logger.Info("fairness audit complete",
		"rows", n,
		"protected_rows", total.protected.rows,
		"reference_rows", total.reference.rows,
		"unmatched_rows", total.unmatched,
		"workers", workers,
		"duration", time.Since(start),
	)

	report := &Report{
		Sensitive: a.params.SensitiveAttr,
		Positive:  a.params.PositiveOutcome,
		Threshold: a.params.Threshold,
		Rows:      n,
		Unmatched: total.unmatched,
		Protected: total.protected.result(a.params.ProtectedGroup),
		Reference: total.reference.result(a.params.ReferenceGroup),
	}
	if !report.Protected.Skipped && !report.Reference.Skipped {
		report.ParityGap = report.Protected.PositiveRate - report.Reference.PositiveRate
	}
	return report, nil
}

func (a *Auditor) checkColumns(table *dataset.Table) error {
	class := a.memo.Network().Class().Name()
	if !table.HasColumn(class) {
		return fmt.Errorf("audit: dataset: %w: %q", bayes.ErrMissingClassColumn, class)
	}
	if !table.HasColumn(a.params.SensitiveAttr) {
		return fmt.Errorf("audit: dataset has no %q column", a.params.SensitiveAttr)
	}
	for _, attr := range a.params.EvidenceAttrs {
		if !table.HasColumn(attr) {
			return fmt.Errorf("audit: dataset has no %q column", attr)
		}
	}
	return nil
}

// scoreRow computes the positive posterior with and without the sensitive
// attribute and folds the row into its group tally.
func (a *Auditor) scoreRow(table *dataset.Table, i int, local *tallies) error {
	group, _ := table.Cell(i, a.params.SensitiveAttr)

	var dst *tally
	switch group {
	case a.params.ProtectedGroup:
		dst = &local.protected
	case a.params.ReferenceGroup:
		dst = &local.reference
	default:
		local.unmatched++
		return nil
	}

	class := a.memo.Network().Class().Name()
	ev := make(bayes.Evidence, len(a.params.EvidenceAttrs))
	for _, attr := range a.params.EvidenceAttrs {
		ev[attr], _ = table.Cell(i, attr)
	}

	base, err := a.memo.Infer(class, ev)
	if err != nil {
		return fmt.Errorf("row %d: %w", i, err)
	}

	gendered := make(bayes.Evidence, len(ev)+1)
	for k, v := range ev {
		gendered[k] = v
	}
	gendered[a.params.SensitiveAttr] = group

	withGroup, err := a.memo.Infer(class, gendered)
	if err != nil {
		return fmt.Errorf("row %d: %w", i, err)
	}

	pBase := base.P(a.params.PositiveOutcome)
	pWithGroup := withGroup.P(a.params.PositiveOutcome)

	dst.rows++
	predicted := pBase > a.params.Threshold
	if predicted {
		dst.predicted++
	}
	if pBase > pWithGroup {
		dst.shifted++
	}
	if actual, _ := table.Cell(i, class); predicted && actual == a.params.PositiveOutcome {
		dst.correct++
	}

	kl := stat.KullbackLeibler(base.Probs(), withGroup.Probs())
	if !math.IsInf(kl, 0) && !math.IsNaN(kl) {
		dst.klSum += kl
		dst.klRows++
	}
	return nil
}

func (t tally) result(group string) GroupResult {
	r := GroupResult{Group: group, Rows: t.rows}
	if t.rows == 0 {
		r.Skipped = true
		return r
	}
	r.PositiveRate = 100 * float64(t.predicted) / float64(t.rows)
	r.EvidenceShift = 100 * float64(t.shifted) / float64(t.rows)
	if t.predicted > 0 {
		r.PositiveAccuracy = 100 * float64(t.correct) / float64(t.predicted)
	}
	if t.klRows > 0 {
		r.MeanKL = t.klSum / float64(t.klRows)
	}
	return r
}
