// Package cmd provides CLI commands for the fairbayes application.
// This file implements the audit command for group fairness analysis.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openaudit/fairbayes/core/bayes"
	"github.com/openaudit/fairbayes/core/config"
	"github.com/openaudit/fairbayes/core/dataset"
	"github.com/openaudit/fairbayes/core/fairness"
	"github.com/openaudit/fairbayes/core/registry"
	"github.com/openaudit/fairbayes/core/watch"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// =============================================================================
// Audit Command Flags
// =============================================================================

var (
	auditEvidence  []string
	auditSensitive string
	auditProtected string
	auditReference string
	auditPositive  string
	auditThreshold float64
	auditWorkers   int
	auditJSON      bool
	auditNoColor   bool
	auditNoSave    bool
	auditWatch     bool
)

// =============================================================================
// Audit Command
// =============================================================================

// auditCmd represents the audit command.
var auditCmd = &cobra.Command{
	Use:   "audit <model> <csv>",
	Short: "Audit a model for group disparities",
	Long: `Score every row of a dataset with a stored model and compare how the
protected and reference groups fare.

For each group the audit reports the positive prediction rate, how often
revealing the sensitive column lowers the positive-class probability, and
the accuracy of positive predictions, plus the mean KL divergence between
the group-blind and group-aware posteriors. Results are stored in the
registry as an audit run.

Examples:
  fairbayes audit adult adult.csv
  fairbayes audit adult adult.csv --sensitive Gender --protected Female --reference Male
  fairbayes audit adult adult.csv --threshold 0.3 --json
  fairbayes audit adult adult.csv --watch`,
	Args: cobra.ExactArgs(2),
	RunE: runAudit,
}

func init() {
	// Register with root command
	rootCmd.AddCommand(auditCmd)

	// Define flags
	auditCmd.Flags().StringArrayVar(&auditEvidence, "evidence", nil, "Evidence column (repeatable, default: from config)")
	auditCmd.Flags().StringVar(&auditSensitive, "sensitive", "", "Sensitive column (default: from config)")
	auditCmd.Flags().StringVar(&auditProtected, "protected", "", "Protected group value (default: from config)")
	auditCmd.Flags().StringVar(&auditReference, "reference", "", "Reference group value (default: from config)")
	auditCmd.Flags().StringVar(&auditPositive, "positive", "", "Positive class outcome (default: from config)")
	auditCmd.Flags().Float64VarP(&auditThreshold, "threshold", "t", 0, "Positive prediction threshold (default: from config)")
	auditCmd.Flags().IntVar(&auditWorkers, "workers", 0, "Parallel workers (default: number of CPUs)")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Output report as JSON")
	auditCmd.Flags().BoolVar(&auditNoColor, "no-color", false, "Disable colored output")
	auditCmd.Flags().BoolVar(&auditNoSave, "no-save", false, "Do not record the run in the registry")
	auditCmd.Flags().BoolVarP(&auditWatch, "watch", "w", false, "Re-run the audit when the dataset changes")
}

// =============================================================================
// Audit Execution
// =============================================================================

// runAudit executes the audit command.
func runAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	modelName, csvPath := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	record, err := reg.GetModel(ctx, modelName)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	net, err := reg.Network(ctx, modelName)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	memo, err := bayes.NewMemo(net, cfg.Model.CacheSize)
	if err != nil {
		return fmt.Errorf("create posterior cache: %w", err)
	}

	auditor, err := fairness.NewAuditor(memo, auditParams(cmd, cfg), slog.Default())
	if err != nil {
		return fmt.Errorf("invalid audit parameters: %w", err)
	}

	run := func() error {
		return runAuditOnce(ctx, cmd.OutOrStdout(), auditor, reg, record, csvPath)
	}

	if !auditWatch {
		return run()
	}

	return runAuditWatch(ctx, cmd.OutOrStdout(), csvPath, cfg, run)
}

// auditParams builds audit parameters from configuration and flag overrides.
func auditParams(cmd *cobra.Command, cfg *config.Config) fairness.Params {
	params := fairness.Params{
		EvidenceAttrs:   cfg.Audit.EvidenceAttributes,
		SensitiveAttr:   cfg.Audit.SensitiveAttribute,
		ProtectedGroup:  cfg.Audit.ProtectedGroup,
		ReferenceGroup:  cfg.Audit.ReferenceGroup,
		PositiveOutcome: cfg.Audit.PositiveOutcome,
		Threshold:       cfg.Audit.Threshold,
		Workers:         cfg.Audit.Workers,
	}

	if len(auditEvidence) > 0 {
		params.EvidenceAttrs = auditEvidence
	}
	if auditSensitive != "" {
		params.SensitiveAttr = auditSensitive
	}
	if auditProtected != "" {
		params.ProtectedGroup = auditProtected
	}
	if auditReference != "" {
		params.ReferenceGroup = auditReference
	}
	if auditPositive != "" {
		params.PositiveOutcome = auditPositive
	}
	if cmd.Flags().Changed("threshold") {
		params.Threshold = auditThreshold
	}
	if cmd.Flags().Changed("workers") {
		params.Workers = auditWorkers
	}

	return params
}

// runAuditOnce loads the dataset, runs the audit, and records the run.
func runAuditOnce(
	ctx context.Context,
	w io.Writer,
	auditor *fairness.Auditor,
	reg *registry.Registry,
	record *registry.ModelRecord,
	csvPath string,
) error {
	table, err := dataset.LoadCSV(csvPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	report, err := auditor.Audit(ctx, table)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	if err := outputAuditReport(w, report); err != nil {
		return err
	}

	if auditNoSave {
		return nil
	}
	return saveAuditRun(ctx, w, reg, record, csvPath, report)
}

// outputAuditReport renders the report as JSON or formatted text.
func outputAuditReport(w io.Writer, report *fairness.Report) error {
	if auditJSON {
		data, err := report.JSON()
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	report.Render(w, useColor(w))
	return nil
}

// saveAuditRun stores the report in the registry.
func saveAuditRun(
	ctx context.Context,
	w io.Writer,
	reg *registry.Registry,
	record *registry.ModelRecord,
	csvPath string,
	report *fairness.Report,
) error {
	data, err := report.JSON()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	run, err := reg.SaveRun(ctx, record.ID, csvPath, report.Rows, data)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if !auditJSON {
		fmt.Fprintf(w, "\n%sRun recorded: %s%s\n", colorGray, run.ID, colorReset)
	}
	return nil
}

// =============================================================================
// Watch Mode
// =============================================================================

// runAuditWatch re-runs the audit each time the dataset file changes.
// Audit failures inside the loop are reported but do not stop watching;
// the next save may fix the data.
func runAuditWatch(ctx context.Context, w io.Writer, csvPath string, cfg *config.Config, run func() error) error {
	if err := run(); err != nil {
		return err
	}

	watcher, err := watch.NewFileWatcher(watch.Config{
		Path:     csvPath,
		Debounce: cfg.Watch.DebounceInterval(),
	})
	if err != nil {
		return fmt.Errorf("watch dataset: %w", err)
	}
	defer watcher.Stop()

	events, err := watcher.Start(ctx)
	if err != nil {
		return fmt.Errorf("watch dataset: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sWatch Mode%s - Press Ctrl+C to stop\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%sWatching:%s %s\n", colorGray, colorReset, watcher.Target())

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "\nWatch mode stopped.")
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			handleDatasetEvent(w, event, run)
		}
	}
}

// handleDatasetEvent reacts to a single dataset change.
func handleDatasetEvent(w io.Writer, event *watch.Event, run func() error) {
	timestamp := event.Time.Format("15:04:05")

	if event.Op == watch.OpRemove {
		fmt.Fprintf(w, "%s[%s]%s dataset removed, waiting for it to return\n",
			colorGray, timestamp, colorReset)
		return
	}

	fmt.Fprintf(w, "\n%s[%s]%s dataset changed, re-running audit\n",
		colorGray, timestamp, colorReset)

	if err := run(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(w, "%saudit error:%s %v\n", colorRed, colorReset, err)
	}
}

// =============================================================================
// Utility Functions
// =============================================================================

// useColor reports whether the writer is a terminal that should receive
// ANSI colors.
func useColor(w io.Writer) bool {
	if auditNoColor {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
