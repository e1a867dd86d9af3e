package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/openaudit/fairbayes/core/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelsCmd_Definition(t *testing.T) {
	t.Run("command is defined", func(t *testing.T) {
		assert.NotNil(t, modelsCmd)
		assert.Equal(t, "models", modelsCmd.Use)
	})

	t.Run("subcommands are registered", func(t *testing.T) {
		names := make(map[string]bool)
		for _, sub := range modelsCmd.Commands() {
			names[sub.Name()] = true
		}

		assert.True(t, names["list"], "list subcommand missing")
		assert.True(t, names["show"], "show subcommand missing")
		assert.True(t, names["delete"], "delete subcommand missing")
	})

	t.Run("command has flags", func(t *testing.T) {
		require.NotNil(t, modelsCmd.PersistentFlags().Lookup("json"))
		require.NotNil(t, modelsShowCmd.Flags().Lookup("runs"))

		yesFlag := modelsDeleteCmd.Flags().Lookup("yes")
		require.NotNil(t, yesFlag)
		assert.Equal(t, "y", yesFlag.Shorthand)
	})
}

func testModelRecords() []registry.ModelRecord {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return []registry.ModelRecord{
		{
			ID:           "id-1",
			Name:         "adult",
			ClassAttr:    "Salary",
			Smoothing:    1,
			TrainingRows: 32561,
			Variables:    9,
			CreatedAt:    created,
		},
		{
			ID:           "id-2",
			Name:         "credit",
			ClassAttr:    "Approved",
			Smoothing:    0.5,
			TrainingRows: 690,
			Variables:    16,
			CreatedAt:    created.Add(time.Hour),
		},
	}
}

func TestOutputModelTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputModelTable(&buf, testModelRecords()))

	output := buf.String()
	assert.Contains(t, output, "NAME")
	assert.Contains(t, output, "CLASS")
	assert.Contains(t, output, "adult")
	assert.Contains(t, output, "Salary")
	assert.Contains(t, output, "credit")
	assert.Contains(t, output, "32561")
}

func TestPrintModelDetail(t *testing.T) {
	models := testModelRecords()

	t.Run("without runs", func(t *testing.T) {
		var buf bytes.Buffer
		printModelDetail(&buf, &models[0], nil)

		output := buf.String()
		assert.Contains(t, output, "Model: adult")
		assert.Contains(t, output, "Class:     Salary")
		assert.Contains(t, output, "No audit runs recorded.")
	})

	t.Run("with runs", func(t *testing.T) {
		runs := []registry.RunRecord{
			{
				ID:        "run-1",
				ModelID:   "id-1",
				Dataset:   "adult.csv",
				Rows:      100,
				CreatedAt: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
			},
		}

		var buf bytes.Buffer
		printModelDetail(&buf, &models[0], runs)

		output := buf.String()
		assert.Contains(t, output, "Audit runs (1):")
		assert.Contains(t, output, "run-1")
		assert.Contains(t, output, "dataset=adult.csv")
	})
}
