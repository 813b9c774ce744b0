package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ktsuji/passbook-flow/internal/engine"
	"github.com/ktsuji/passbook-flow/internal/learning"
	"github.com/ktsuji/passbook-flow/internal/model"
)

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <statement-file>",
		Short: "Extract transactions from a scanned statement",
		Long: `Extract transactions from a scanned bank statement (PDF, JPEG, or PNG).

Pages are analyzed with the configured vision models; learned corrections
are applied to the result unless disabled. Output is JSON on stdout or the
file given with --output.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}

	cmd.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")
	cmd.Flags().String("bank", "", "source format name for bank-scoped corrections")
	cmd.Flags().Bool("no-learning", false, "skip applying learned corrections")
	cmd.Flags().Bool("check-balance", false, "report balance inconsistencies between rows")

	return cmd
}

// extractOutput is the serialized result of one extract run.
type extractOutput struct {
	ModelAConfidence *float64              `json:"model_a_confidence,omitempty"`
	ModelBConfidence *float64              `json:"model_b_confidence,omitempty"`
	AgreementScore   *float64              `json:"agreement_score,omitempty"`
	Strategy         model.Strategy        `json:"strategy"`
	Transactions     []model.Transaction   `json:"transactions"`
	BalanceGaps      []learning.BalanceGap `json:"balance_gaps,omitempty"`
	ConfidenceScore  float64               `json:"confidence_score"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	bank, _ := cmd.Flags().GetString("bank")
	noLearning, _ := cmd.Flags().GetBool("no-learning")
	checkBalance, _ := cmd.Flags().GetBool("check-balance")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read statement: %w", err)
	}

	primary, secondary := buildExtractors()
	eng := engine.New(primary, secondary)

	result, err := eng.Process(cmd.Context(), data, newBarSink())
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	transactions := result.Transactions
	if !noLearning {
		store, storeErr := openStorage()
		if storeErr != nil {
			return storeErr
		}
		defer func() { _ = store.Close() }()

		if migrateErr := store.Migrate(cmd.Context()); migrateErr != nil {
			return migrateErr
		}

		transactions = learning.NewService(store).ApplyLearnedCorrections(cmd.Context(), transactions, bank)
	}

	output := extractOutput{
		Transactions:     transactions,
		ConfidenceScore:  result.ConfidenceScore,
		Strategy:         result.Strategy,
		ModelAConfidence: result.ModelAConfidence,
		ModelBConfidence: result.ModelBConfidence,
		AgreementScore:   result.AgreementScore,
	}
	if checkBalance {
		output.BalanceGaps = learning.CheckBalanceConsistency(transactions)
		for _, gap := range output.BalanceGaps {
			slog.Warn("balance inconsistency",
				"position", gap.Position,
				"expected", gap.Expected,
				"actual", gap.Actual)
		}
	}

	encoded, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, encoded, 0600); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		slog.Info("extraction complete",
			"transactions", len(transactions),
			"strategy", result.Strategy,
			"output", outputPath)
		return nil
	}

	fmt.Println(string(encoded))
	return nil
}
