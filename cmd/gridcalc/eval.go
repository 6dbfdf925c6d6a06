package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
)

func (a *app) evalCmd() *cobra.Command {
	var cells []string

	cmd := &cobra.Command{
		Use:   "eval FORMULA",
		Short: "Evaluate a formula against ad-hoc cells",
		Example: `  gridcalc eval '=SUM(A1:A3)' --cell A1=1 --cell A2=2 --cell A3=3
  gridcalc eval '=IF(A1>10,"big","small")' --cell A1=42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sheet := spreadsheet.NewSheet("eval", "Sheet1", a.workbookOptions()...)
			for _, assignment := range cells {
				address, raw, ok := strings.Cut(assignment, "=")
				if !ok {
					return fmt.Errorf("invalid --cell %q, expected ADDR=VALUE", assignment)
				}
				if err := sheet.Set(strings.TrimSpace(address), raw); err != nil {
					return err
				}
			}

			formula := args[0]
			if !strings.HasPrefix(formula, "=") {
				formula = "=" + formula
			}
			value := spreadsheet.Evaluate(formula, sheet)
			fmt.Fprintln(cmd.OutOrStdout(), spreadsheet.FormatValue(value))
			if err, ok := value.(*spreadsheet.SpreadsheetError); ok {
				a.logger.Debug("formula failed", zap.String("formula", formula), zap.String("reason", err.Message))
				fmt.Fprintln(cmd.ErrOrStderr(), err.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&cells, "cell", nil, "Cell assignment ADDR=VALUE, repeatable")
	return cmd
}

func (a *app) depsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps FORMULA",
		Short: "List the cells a formula reads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := spreadsheet.Dependencies(args[0])
			if err != nil {
				return err
			}
			for _, addr := range deps {
				fmt.Fprintln(cmd.OutOrStdout(), addr)
			}
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FORMULA",
		Short: "Check a formula for syntax errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := spreadsheet.ValidateFormula(args[0]); err != nil {
				return fmt.Errorf("invalid formula: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
