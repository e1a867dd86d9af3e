// Package cmd provides CLI commands for the fairbayes application.
// This file implements the predict command for querying stored models.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/openaudit/fairbayes/core/bayes"
	"github.com/spf13/cobra"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// =============================================================================
// Predict Command Flags
// =============================================================================

var (
	predictSet  []string
	predictJSON bool
)

// =============================================================================
// Predict Command
// =============================================================================

// predictCmd represents the predict command.
var predictCmd = &cobra.Command{
	Use:   "predict <model>",
	Short: "Query a stored model",
	Long: `Compute the exact posterior distribution of the class column given
observed attribute values, and report the most probable outcome.

Evidence is passed as repeated --set Column=Value pairs. Columns left
unset are summed out; their values need not be known.

Examples:
  fairbayes predict adult --set Education=Bachelors --set Occupation=Sales
  fairbayes predict adult --set "Work=Private" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	// Register with root command
	rootCmd.AddCommand(predictCmd)

	// Define flags
	predictCmd.Flags().StringArrayVarP(&predictSet, "set", "e", nil, "Observed value as Column=Value (repeatable)")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "Output result as JSON")
}

// =============================================================================
// Predict Execution
// =============================================================================

// runPredict executes the predict command.
func runPredict(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	modelName := args[0]

	evidence, err := parseEvidence(predictSet)
	if err != nil {
		return err
	}

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	net, err := reg.Network(ctx, modelName)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	posterior, err := net.Infer(net.Class().Name(), evidence)
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}

	return outputPrediction(cmd.OutOrStdout(), modelName, evidence, posterior)
}

// parseEvidence converts Column=Value pairs into evidence.
func parseEvidence(pairs []string) (bayes.Evidence, error) {
	evidence := make(bayes.Evidence, len(pairs))

	for _, pair := range pairs {
		column, value, found := strings.Cut(pair, "=")
		if !found || column == "" {
			return nil, fmt.Errorf("invalid --set value %q, want Column=Value", pair)
		}
		evidence[column] = value
	}

	return evidence, nil
}

// =============================================================================
// Output Formatting
// =============================================================================

// predictOutput is the JSON output structure.
type predictOutput struct {
	Model      string             `json:"model"`
	Class      string             `json:"class"`
	Evidence   map[string]string  `json:"evidence,omitempty"`
	Prediction string             `json:"prediction"`
	Posterior  map[string]float64 `json:"posterior"`
}

// outputPrediction formats and outputs the inference result.
func outputPrediction(w io.Writer, model string, evidence bayes.Evidence, posterior *bayes.Posterior) error {
	if predictJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(&predictOutput{
			Model:      model,
			Class:      posterior.Variable().Name(),
			Evidence:   evidence,
			Prediction: posterior.Top(),
			Posterior:  posterior.Map(),
		})
	}

	fmt.Fprintf(w, "%s%sPrediction%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%sModel:%s %s\n", colorGray, colorReset, model)
	outputEvidence(w, evidence)
	fmt.Fprintln(w)

	top := posterior.Top()
	for _, outcome := range posterior.Variable().Domain() {
		marker := " "
		if outcome == top {
			marker = colorGreen + "*" + colorReset
		}
		fmt.Fprintf(w, " %s %-20s %.4f\n", marker, outcome, posterior.P(outcome))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Predicted %s: %s%s%s\n", posterior.Variable().Name(), colorBold, top, colorReset)
	return nil
}

// outputEvidence prints the observed values in a stable order.
func outputEvidence(w io.Writer, evidence bayes.Evidence) {
	if len(evidence) == 0 {
		fmt.Fprintf(w, "%sEvidence:%s none\n", colorGray, colorReset)
		return
	}

	columns := make([]string, 0, len(evidence))
	for column := range evidence {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	parts := make([]string, len(columns))
	for i, column := range columns {
		parts[i] = column + "=" + evidence[column]
	}

	fmt.Fprintf(w, "%sEvidence:%s %s\n", colorGray, colorReset, strings.Join(parts, "  "))
}
