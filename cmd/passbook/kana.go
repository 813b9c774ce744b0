package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ktsuji/passbook-flow/internal/learning"
	"github.com/ktsuji/passbook-flow/internal/model"
)

func kanaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kana",
		Short: "Convert and teach half-width katakana substitutions",
	}

	cmd.AddCommand(kanaConvertCmd())
	cmd.AddCommand(kanaLearnCmd())

	return cmd
}

func kanaConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <text>",
		Short: "Convert half-width katakana using the learned dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, _ := cmd.Flags().GetString("bank")

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			converted := learning.NewKanaConverter(store).Convert(cmd.Context(), args[0], bank)
			fmt.Println(converted)
			return nil
		},
	}

	cmd.Flags().String("bank", "", "source format name for bank-scoped entries")

	return cmd
}

func kanaLearnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn <kana-text> <converted-text>",
		Short: "Teach one kana substitution",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, _ := cmd.Flags().GetString("bank")
			scope := model.KanaScopeGeneric
			if bank != "" {
				scope = bank
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			converter := learning.NewKanaConverter(store)
			if err := converter.LearnPattern(cmd.Context(), args[0], args[1], scope); err != nil {
				return err
			}

			slog.Info("kana pattern learned", "kana", args[0], "converted", args[1], "scope", scope)
			return nil
		},
	}

	cmd.Flags().String("bank", "", "restrict the entry to one source format")

	return cmd
}
