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

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage per-bank column mappings",
	}

	cmd.AddCommand(mappingsGetCmd())
	cmd.AddCommand(mappingsSaveCmd())
	cmd.AddCommand(mappingsDetectCmd())

	return cmd
}

func mappingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <source-format>",
		Short: "Show the saved column layout for a source format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			mappings, err := learning.NewColumnMapper(store).GetMapping(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(mappings)
		},
	}
}

func mappingsSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <source-format> <mappings-file>",
		Short: "Replace the column layout for a source format",
		Long: `Replace the whole column layout for a source format with the JSON
array in the given file. Rows missing an original or standard name are
dropped silently.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read mappings: %w", err)
			}

			var mappings []model.ColumnMapping
			if err := json.Unmarshal(data, &mappings); err != nil {
				return fmt.Errorf("failed to parse mappings: %w", err)
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			if err := learning.NewColumnMapper(store).SaveMapping(cmd.Context(), args[0], mappings); err != nil {
				return err
			}

			slog.Info("column mapping saved", "source_format", args[0], "rows", len(mappings))
			return nil
		},
	}
}

func mappingsDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <text-file>",
		Short: "Detect column headers in statement text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, _ := cmd.Flags().GetString("bank")

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read text: %w", err)
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			detected := learning.NewColumnMapper(store).DetectColumnsFromText(string(data), bank)
			return printJSON(detected)
		},
	}

	cmd.Flags().String("bank", "", "source format name to tag detected columns with")

	return cmd
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
