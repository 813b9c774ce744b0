package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ktsuji/passbook-flow/internal/learning"
	"github.com/ktsuji/passbook-flow/internal/model"
)

func correctionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corrections",
		Short: "Record user corrections and replay learned patterns",
	}

	cmd.AddCommand(correctionsRecordCmd())
	cmd.AddCommand(correctionsApplyCmd())
	cmd.AddCommand(correctionsStatsCmd())

	return cmd
}

func correctionsRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one correction and learn from it",
		Long: `Record a user edit against an extracted statement. The original and
corrected row are given as JSON objects; the correction is logged and mined
for reusable substitution patterns.`,
		RunE: runCorrectionsRecord,
	}

	cmd.Flags().String("file", "", "statement file reference the edit belongs to")
	cmd.Flags().String("type", "cell_edit", "correction type (cell_edit, row_add, row_delete, row_merge)")
	cmd.Flags().String("original", "", "original row as a JSON object")
	cmd.Flags().String("corrected", "", "corrected row as a JSON object")
	cmd.Flags().Int("row", -1, "row index of the edit")
	cmd.Flags().String("column", "", "column name of the edit")
	cmd.Flags().String("user", "", "user identifier")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("original")
	_ = cmd.MarkFlagRequired("corrected")

	return cmd
}

func runCorrectionsRecord(cmd *cobra.Command, _ []string) error {
	fileRef, _ := cmd.Flags().GetString("file")
	kind, _ := cmd.Flags().GetString("type")
	originalJSON, _ := cmd.Flags().GetString("original")
	correctedJSON, _ := cmd.Flags().GetString("corrected")
	row, _ := cmd.Flags().GetInt("row")
	column, _ := cmd.Flags().GetString("column")
	user, _ := cmd.Flags().GetString("user")

	original, err := parseFields(originalJSON)
	if err != nil {
		return fmt.Errorf("invalid --original: %w", err)
	}
	corrected, err := parseFields(correctedJSON)
	if err != nil {
		return fmt.Errorf("invalid --corrected: %w", err)
	}

	record := &model.CorrectionRecord{
		FileRef:   fileRef,
		UserID:    user,
		Type:      model.CorrectionType(kind),
		Original:  model.SnapshotFromFields(original),
		Corrected: model.SnapshotFromFields(corrected),
	}
	if row >= 0 {
		record.Position = &model.Position{Row: row, Column: column}
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}

	id, err := learning.NewService(store).RecordCorrection(cmd.Context(), record)
	if err != nil {
		return err
	}

	slog.Info("correction recorded", "id", id, "file", fileRef, "type", kind)
	return nil
}

func correctionsApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <transactions-file>",
		Short: "Apply learned corrections to a transaction list",
		Long: `Read a JSON array of transactions, replay the learned kana and
substitution patterns over their descriptions, and print the corrected
list as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: runCorrectionsApply,
	}

	cmd.Flags().String("bank", "", "source format name for bank-scoped corrections")

	return cmd
}

func runCorrectionsApply(cmd *cobra.Command, args []string) error {
	bank, _ := cmd.Flags().GetString("bank")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read transactions: %w", err)
	}

	var transactions []model.Transaction
	if err := json.Unmarshal(data, &transactions); err != nil {
		return fmt.Errorf("failed to parse transactions: %w", err)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}

	corrected := learning.NewService(store).ApplyLearnedCorrections(cmd.Context(), transactions, bank)

	encoded, err := json.MarshalIndent(corrected, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transactions: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

func correctionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show learning statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			stats, err := learning.NewService(store).Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Corrections (last 30 days): %d\n", stats.RecentCorrections)
			for kind, count := range stats.CorrectionCounts {
				fmt.Printf("  %-12s %d\n", kind, count)
			}
			fmt.Printf("Learned patterns: %d\n", stats.PatternCount)
			fmt.Printf("Average pattern confidence: %.2f\n", stats.AverageConfidence)
			if len(stats.TopPatterns) > 0 {
				fmt.Println("Most frequent patterns:")
				for _, pattern := range stats.TopPatterns {
					fmt.Printf("  %4dx  [%s] %s  (confidence %.2f)\n",
						pattern.Frequency, pattern.Type, describePattern(pattern), pattern.ConfidenceScore)
				}
			}
			return nil
		},
	}
}

// describePattern renders a stored pattern as a before/after description
// pair when its snapshots decode, falling back to the pattern id.
func describePattern(pattern model.LearningPattern) string {
	original, err := model.DecodeSnapshot(pattern.OriginalPattern)
	if err != nil {
		return fmt.Sprintf("pattern #%d", pattern.ID)
	}
	corrected, err := model.DecodeSnapshot(pattern.CorrectedPattern)
	if err != nil {
		return fmt.Sprintf("pattern #%d", pattern.ID)
	}
	from, _ := original.Description()
	to, _ := corrected.Description()
	if from == "" && to == "" {
		return fmt.Sprintf("pattern #%d", pattern.ID)
	}
	return fmt.Sprintf("%s -> %s", from, to)
}

// parseFields decodes a JSON object into a field map.
func parseFields(raw string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
