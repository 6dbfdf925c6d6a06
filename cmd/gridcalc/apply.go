package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
)

// cellResult is one row of apply and show output
type cellResult struct {
	Address string `json:"address"`
	Raw     string `json:"raw"`
	Display string `json:"display"`
	Error   string `json:"error,omitempty"`
}

func (a *app) applyCmd() *cobra.Command {
	var (
		asJSON bool
		name   string
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "apply [FILE]",
		Short: "Fill a sheet from ADDR<TAB>RAW or ADDR=RAW lines and print the results",
		Long: `Reads one assignment per line from FILE, or stdin when FILE is omitted
or "-". Blank lines and lines starting with # are ignored. The sheet is
recalculated after every line, so later lines may reference earlier ones.`,
		Example: `  printf 'A1\t10\nA2\t=A1*2\n' | gridcalc apply
  gridcalc apply budget.txt --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			wb := spreadsheet.NewWorkbook(name, a.workbookOptions()...)
			if err := applyLines(wb, in); err != nil {
				return err
			}

			if save {
				st, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Save(cmd.Context(), wb.Snapshot()); err != nil {
					return err
				}
				a.logger.Info("workbook saved", zap.String("id", wb.ID()))
				fmt.Fprintln(cmd.ErrOrStderr(), "saved", wb.ID())
			}

			var results []cellResult
			wb.View(func(s *spreadsheet.Sheet) {
				results = sheetResults(s)
			})
			return printResults(cmd.OutOrStdout(), results, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().StringVar(&name, "name", "Untitled", "Workbook name used with --save")
	cmd.Flags().BoolVar(&save, "save", false, "Store the resulting workbook")
	return cmd
}

// applyLines submits every assignment read from r to the active sheet
func applyLines(wb *spreadsheet.Workbook, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		address, raw, ok := strings.Cut(line, "\t")
		if !ok {
			address, raw, ok = strings.Cut(line, "=")
		}
		if !ok {
			return fmt.Errorf("line %d: expected ADDR<TAB>RAW or ADDR=RAW", lineNo)
		}
		if err := wb.Submit(strings.TrimSpace(address), raw); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

func sheetResults(s *spreadsheet.Sheet) []cellResult {
	var results []cellResult
	for _, addr := range s.Addresses() {
		cell, _ := s.CellAt(addr)
		if cell.Type == spreadsheet.CellTypeEmpty {
			continue
		}
		result := cellResult{
			Address: addr.String(),
			Raw:     cell.Raw,
			Display: s.DisplayAt(addr),
		}
		if err, ok := cell.Value.(*spreadsheet.SpreadsheetError); ok {
			result.Error = err.Message
		}
		results = append(results, result)
	}
	return results
}

func printResults(w io.Writer, results []cellResult, asJSON bool) error {
	if asJSON {
		if results == nil {
			results = []cellResult{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Address, r.Raw, r.Display})
	}
	fmt.Fprintln(w, newTable("Cell", "Input", "Value").Rows(rows...).Render())
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))).
		Headers(headers...)
}
