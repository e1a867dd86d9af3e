// Package cmd provides CLI commands for the fairbayes application.
// This file implements the train command for building classifiers.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/openaudit/fairbayes/core/bayes"
	"github.com/openaudit/fairbayes/core/dataset"
	"github.com/openaudit/fairbayes/core/registry"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

// =============================================================================
// Train Command Flags
// =============================================================================

var (
	trainName      string
	trainClass     string
	trainSmoothing float64
	trainInclude   []string
	trainExclude   []string
	trainJSON      bool
)

// =============================================================================
// Train Command
// =============================================================================

// trainCmd represents the train command.
var trainCmd = &cobra.Command{
	Use:   "train <csv>",
	Short: "Train a classifier from a CSV dataset",
	Long: `Train a naive Bayes classifier from a CSV dataset and store it
in the model registry.

Every column except the class column becomes a feature. Conditional
probabilities are estimated from counts with add-one smoothing, so
outcomes never seen in training keep a small non-zero probability.

Examples:
  fairbayes train adult.csv
  fairbayes train adult.csv --name adult-v2 --class Salary
  fairbayes train adult.csv --exclude "fnlwgt" --exclude "Education-Num"
  fairbayes train adult.csv --smoothing 0.5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	// Register with root command
	rootCmd.AddCommand(trainCmd)

	// Define flags
	trainCmd.Flags().StringVarP(&trainName, "name", "n", "", "Model name (default: dataset file name)")
	trainCmd.Flags().StringVarP(&trainClass, "class", "c", "", "Class column to predict (default: from config)")
	trainCmd.Flags().Float64VarP(&trainSmoothing, "smoothing", "s", 0, "Additive smoothing pseudocount (default: from config)")
	trainCmd.Flags().StringArrayVar(&trainInclude, "include", nil, "Glob of columns to keep (repeatable)")
	trainCmd.Flags().StringArrayVar(&trainExclude, "exclude", nil, "Glob of columns to drop (repeatable)")
	trainCmd.Flags().BoolVar(&trainJSON, "json", false, "Output result as JSON")
}

// =============================================================================
// Train Execution
// =============================================================================

// runTrain executes the train command.
func runTrain(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	csvPath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Flags override layered configuration
	classAttr := cfg.Dataset.ClassAttribute
	if trainClass != "" {
		classAttr = trainClass
	}

	smoothing := cfg.Model.Smoothing
	if cmd.Flags().Changed("smoothing") {
		smoothing = trainSmoothing
	}

	include := cfg.Dataset.IncludeColumns
	if len(trainInclude) > 0 {
		include = trainInclude
	}

	exclude := cfg.Dataset.ExcludeColumns
	if len(trainExclude) > 0 {
		exclude = trainExclude
	}

	table, err := loadTrainingTable(csvPath, classAttr, include, exclude)
	if err != nil {
		return err
	}

	// Build the classifier
	opts := bayes.DefaultBuildOptions()
	opts.Smoothing = smoothing

	start := time.Now()
	net, err := bayes.NewNaiveBayes(table.Rows(), classAttr, opts)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	elapsed := time.Since(start)

	// Inference with no evidence yields the class prior.
	prior, err := net.Infer(classAttr, nil)
	if err != nil {
		return fmt.Errorf("compute class prior: %w", err)
	}

	// Store in the registry
	record, err := saveTrainedModel(ctx, csvPath, net, smoothing, table.Len())
	if err != nil {
		return err
	}

	return outputTrainResult(cmd.OutOrStdout(), record, prior, elapsed)
}

// loadTrainingTable reads the CSV and applies column filters.
func loadTrainingTable(path, classAttr string, include, exclude []string) (*dataset.Table, error) {
	table, err := dataset.LoadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	if len(include) == 0 && len(exclude) == 0 {
		return table, nil
	}

	schema, err := dataset.NewSchema(include, exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid column filter: %w", err)
	}

	filtered, err := schema.Apply(table)
	if err != nil {
		return nil, fmt.Errorf("apply column filter: %w", err)
	}

	// The class column must survive filtering or training cannot proceed.
	if table.HasColumn(classAttr) && !filtered.HasColumn(classAttr) {
		return nil, fmt.Errorf("column filter removed class column %q", classAttr)
	}

	return filtered, nil
}

// saveTrainedModel stores the network under the chosen name.
func saveTrainedModel(ctx context.Context, csvPath string, net *bayes.Network, smoothing float64, rows int) (*registry.ModelRecord, error) {
	name := trainName
	if name == "" {
		name = modelNameFromPath(csvPath)
	}

	reg, err := openRegistry()
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	record, err := reg.SaveModel(ctx, name, net, registry.ModelMeta{
		Smoothing:    smoothing,
		TrainingRows: rows,
	})
	if err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}

	return record, nil
}

// modelNameFromPath derives a model name from the dataset file name.
func modelNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// Output Formatting
// =============================================================================

// trainOutput is the JSON output structure.
type trainOutput struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	ClassAttr    string             `json:"class_attr"`
	ClassDomain  []string           `json:"class_domain"`
	Prior        map[string]float64 `json:"prior"`
	PriorEntropy float64            `json:"prior_entropy"`
	Variables    int                `json:"variables"`
	TrainingRows int                `json:"training_rows"`
	Smoothing    float64            `json:"smoothing"`
	Duration     string             `json:"duration"`
}

// outputTrainResult formats and outputs the training result. The class
// domain is printed in order because prediction ties resolve to the
// first outcome.
func outputTrainResult(w io.Writer, record *registry.ModelRecord, prior *bayes.Posterior, elapsed time.Duration) error {
	entropy := stat.Entropy(prior.Probs())

	if trainJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(&trainOutput{
			ID:           record.ID,
			Name:         record.Name,
			ClassAttr:    record.ClassAttr,
			ClassDomain:  prior.Variable().Domain(),
			Prior:        prior.Map(),
			PriorEntropy: entropy,
			Variables:    record.Variables,
			TrainingRows: record.TrainingRows,
			Smoothing:    record.Smoothing,
			Duration:     elapsed.String(),
		})
	}

	fmt.Fprintf(w, "%s%sModel Trained%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%sName:%s      %s\n", colorGray, colorReset, record.Name)
	fmt.Fprintf(w, "%sClass:%s     %s\n", colorGray, colorReset, record.ClassAttr)
	fmt.Fprintf(w, "%sDomain:%s    %s\n", colorGray, colorReset, strings.Join(prior.Variable().Domain(), ", "))
	fmt.Fprintf(w, "%sPrior:%s     %s\n", colorGray, colorReset, formatPrior(prior))
	fmt.Fprintf(w, "%sEntropy:%s   %.4f\n", colorGray, colorReset, entropy)
	fmt.Fprintf(w, "%sVariables:%s %d\n", colorGray, colorReset, record.Variables)
	fmt.Fprintf(w, "%sRows:%s      %d\n", colorGray, colorReset, record.TrainingRows)
	fmt.Fprintf(w, "%sSmoothing:%s %g\n", colorGray, colorReset, record.Smoothing)
	fmt.Fprintf(w, "%sDuration:%s  %v\n", colorGray, colorReset, elapsed.Round(time.Millisecond))
	return nil
}

// formatPrior renders outcome=probability pairs in domain order.
func formatPrior(prior *bayes.Posterior) string {
	domain := prior.Variable().Domain()
	parts := make([]string, len(domain))
	for i, outcome := range domain {
		parts[i] = fmt.Sprintf("%s=%.4f", outcome, prior.P(outcome))
	}
	return strings.Join(parts, "  ")
}
