package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/openaudit/fairbayes/core/registry"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Model registry management commands",
	Long:  `List, inspect, and delete stored models and their audit runs.`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored models",
	Long:  `List all models in the registry, newest first.`,
	RunE:  runModelsList,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a model and its audit runs",
	Long:  `Show model details together with its recorded audit runs.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsShow,
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored model",
	Long:  `Delete a model and all of its audit runs from the registry.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDelete,
}

var (
	modelsJSON    bool
	modelsConfirm bool
	modelsRuns    int
)

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsDeleteCmd)

	modelsCmd.PersistentFlags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
	modelsShowCmd.Flags().IntVar(&modelsRuns, "runs", 10, "Maximum audit runs to show")
	modelsDeleteCmd.Flags().BoolVarP(&modelsConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runModelsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	models, err := reg.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	if modelsJSON {
		return outputJSON(cmd.OutOrStdout(), models)
	}

	if len(models) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No models stored. Train one with: fairbayes train <csv>")
		return nil
	}

	return outputModelTable(cmd.OutOrStdout(), models)
}

func outputModelTable(out io.Writer, models []registry.ModelRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCLASS\tVARIABLES\tROWS\tSMOOTHING\tCREATED")
	fmt.Fprintln(w, "----\t-----\t---------\t----\t---------\t-------")

	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%s\n",
			m.Name, m.ClassAttr, m.Variables, m.TrainingRows, m.Smoothing,
			m.CreatedAt.Local().Format("2006-01-02 15:04"))
	}

	return w.Flush()
}

func runModelsShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	model, err := reg.GetModel(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	runs, err := reg.ListRuns(ctx, model.ID)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if modelsRuns > 0 && len(runs) > modelsRuns {
		runs = runs[:modelsRuns]
	}

	if modelsJSON {
		return outputJSON(cmd.OutOrStdout(), modelDetail{Model: *model, Runs: runs})
	}

	printModelDetail(cmd.OutOrStdout(), model, runs)
	return nil
}

type modelDetail struct {
	Model registry.ModelRecord `json:"model"`
	Runs  []registry.RunRecord `json:"runs"`
}

func printModelDetail(w io.Writer, model *registry.ModelRecord, runs []registry.RunRecord) {
	fmt.Fprintf(w, "Model: %s\n", model.Name)
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "ID:        %s\n", model.ID)
	fmt.Fprintf(w, "Class:     %s\n", model.ClassAttr)
	fmt.Fprintf(w, "Variables: %d\n", model.Variables)
	fmt.Fprintf(w, "Rows:      %d\n", model.TrainingRows)
	fmt.Fprintf(w, "Smoothing: %g\n", model.Smoothing)
	fmt.Fprintf(w, "Created:   %s\n", model.CreatedAt.Local().Format(time.RFC3339))

	if len(runs) == 0 {
		fmt.Fprintln(w, "\nNo audit runs recorded.")
		return
	}

	fmt.Fprintf(w, "\nAudit runs (%d):\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(w, "  %s  %s  rows=%d  dataset=%s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04"), run.ID, run.Rows, run.Dataset)
	}
}

func runModelsDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := args[0]

	if !modelsConfirm {
		fmt.Fprintf(cmd.OutOrStdout(), "This will delete model %q and all of its audit runs\n", name)
		fmt.Fprint(cmd.OutOrStdout(), "Are you sure? [y/N]: ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if strings.ToLower(response) != "y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	reg, err := openRegistry()
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	if err := reg.DeleteModel(ctx, name); err != nil {
		return fmt.Errorf("delete model: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted model %q.\n", name)
	return nil
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
