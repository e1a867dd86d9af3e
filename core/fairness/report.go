package fairness

import (
	"encoding/json"
	"fmt"
	"io"
)

// GroupResult holds the per-group answers: how often the group is
// predicted positive, how often hiding the sensitive attribute raises
// its score, and how accurate its positive predictions are.
type GroupResult struct {
	Group            string  `json:"group"`
	Rows             int     `json:"rows"`
	PositiveRate     float64 `json:"positive_rate_pct"`
	EvidenceShift    float64 `json:"evidence_shift_pct"`
	PositiveAccuracy float64 `json:"positive_accuracy_pct"`
	MeanKL           float64 `json:"mean_kl"`
	Skipped          bool    `json:"skipped,omitempty"`
}

// Report is the outcome of one audit run.
type Report struct {
	Sensitive string      `json:"sensitive_attribute"`
	Positive  string      `json:"positive_outcome"`
	Threshold float64     `json:"threshold"`
	Rows      int         `json:"rows"`
	Unmatched int         `json:"unmatched_rows"`
	Protected GroupResult `json:"protected"`
	Reference GroupResult `json:"reference"`

	// ParityGap is the protected positive rate minus the reference
	// positive rate, in percentage points. Negative values mean the
	// protected group is predicted positive less often.
	ParityGap float64 `json:"parity_gap_pct"`
}

// JSON renders the report for machine consumption.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Render writes the six audit questions as text. With color enabled the
// question tags are emphasized with ANSI bold.
func (r *Report) Render(w io.Writer, color bool) {
	bold := func(s string) string {
		if color {
			return "\x1b[1m" + s + "\x1b[0m"
		}
		return s
	}

	fmt.Fprintf(w, "%s audit over %d rows (positive outcome %s, threshold %.2f)\n",
		r.Sensitive, r.Rows, r.Positive, r.Threshold)
	if r.Unmatched > 0 {
		fmt.Fprintf(w, "%d rows matched neither %s nor %s and were skipped\n",
			r.Unmatched, r.Protected.Group, r.Reference.Group)
	}
	fmt.Fprintln(w)

	writeRate := func(tag string, g GroupResult) {
		if g.Skipped {
			fmt.Fprintf(w, "%s  no %s rows in dataset\n", bold(tag), g.Group)
			return
		}
		fmt.Fprintf(w, "%s  %.1f%% of %s rows are predicted %s\n",
			bold(tag), g.PositiveRate, g.Group, r.Positive)
	}
	writeShift := func(tag string, g GroupResult) {
		if g.Skipped {
			fmt.Fprintf(w, "%s  no %s rows in dataset\n", bold(tag), g.Group)
			return
		}
		fmt.Fprintf(w, "%s  %.1f%% of %s rows score lower once %s is revealed\n",
			bold(tag), g.EvidenceShift, g.Group, r.Sensitive)
	}
	writeAccuracy := func(tag string, g GroupResult) {
		if g.Skipped {
			fmt.Fprintf(w, "%s  no %s rows in dataset\n", bold(tag), g.Group)
			return
		}
		fmt.Fprintf(w, "%s  %.1f%% of positive %s predictions are correct\n",
			bold(tag), g.PositiveAccuracy, g.Group)
	}

	writeRate("Q1", r.Protected)
	writeRate("Q2", r.Reference)
	writeShift("Q3", r.Protected)
	writeShift("Q4", r.Reference)
	writeAccuracy("Q5", r.Protected)
	writeAccuracy("Q6", r.Reference)

	fmt.Fprintln(w)
	if !r.Protected.Skipped && !r.Reference.Skipped {
		fmt.Fprintf(w, "demographic parity gap: %+.1f points (%s vs %s)\n",
			r.ParityGap, r.Protected.Group, r.Reference.Group)
		fmt.Fprintf(w, "mean KL divergence (blind vs revealed): %s %.4f, %s %.4f\n",
			r.Protected.Group, r.Protected.MeanKL,
			r.Reference.Group, r.Reference.MeanKL)
	}
}
