package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"github.com/vogtb/go-gridcalc/packages/xlsx"
	"go.uber.org/zap"
)

func (a *app) saveCmd() *cobra.Command {
	var templateKey, name string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create a workbook from a template and store it",
		Example: `  gridcalc save --template budget --name "Household 2025"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := a.newWorkbook(name, templateKey)
			if err != nil {
				return err
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Save(cmd.Context(), wb.Snapshot()); err != nil {
				return err
			}
			a.logger.Info("workbook saved", zap.String("id", wb.ID()), zap.String("template", templateKey))
			fmt.Fprintln(cmd.OutOrStdout(), wb.ID())
			return nil
		},
	}
	cmd.Flags().StringVarP(&templateKey, "template", "t", "", "Template: "+strings.Join(spreadsheet.TemplateKeys(), ", "))
	cmd.Flags().StringVarP(&name, "name", "n", "", "Workbook name (default: the template name)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

// newWorkbook creates a workbook, replacing the blank Sheet1 with the
// template's sheet when templateKey is set
func (a *app) newWorkbook(name, templateKey string) (*spreadsheet.Workbook, error) {
	if templateKey == "" {
		if name == "" {
			name = "Untitled"
		}
		wb := spreadsheet.NewWorkbook(name, a.workbookOptions()...)
		wb.SetAutoSave(a.cfg.AutoSave.Enabled)
		return wb, nil
	}

	tmpl, err := spreadsheet.LookupTemplate(templateKey)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = tmpl.Name
	}
	wb := spreadsheet.NewWorkbook(name, a.workbookOptions()...)
	wb.SetAutoSave(a.cfg.AutoSave.Enabled)
	blank := wb.ActiveSheet().ID
	if _, err := wb.ApplyTemplate(tmpl); err != nil {
		return nil, err
	}
	if err := wb.RemoveSheet(blank); err != nil {
		return nil, err
	}
	return wb, nil
}

func (a *app) listCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored workbooks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			summaries, err := st.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{s.ID, s.Name, strconv.Itoa(s.SheetCount), s.SavedAt.Local().Format(time.DateTime)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), newTable("ID", "Name", "Sheets", "Saved").Rows(rows...).Render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var (
		asJSON    bool
		sheetName string
	)

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print the cells of a stored workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			wb, err := a.loadWorkbook(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			shown := false
			for _, info := range wb.Sheets() {
				if sheetName != "" && !strings.EqualFold(info.Name, sheetName) {
					continue
				}
				shown = true

				var results []cellResult
				err := wb.Update(info.ID, func(s *spreadsheet.Sheet) error {
					results = sheetResults(s)
					return nil
				})
				if err != nil {
					return err
				}
				if !asJSON {
					fmt.Fprintf(out, "%s (%d cells, %d formulas)\n", info.Name, info.CellCount, info.FormulaCount)
				}
				if err := printResults(out, results, asJSON); err != nil {
					return err
				}
			}
			if !shown {
				return spreadsheet.NewApplicationError(spreadsheet.NotFound, fmt.Sprintf("sheet not found: %s", sheetName))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "Only show this sheet")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.logger.Info("workbook deleted", zap.String("id", args[0]))
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export ID FILE.xlsx",
		Short: "Write a stored workbook to an xlsx file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := xlsx.Export(snap, args[1]); err != nil {
				return err
			}
			a.logger.Info("workbook exported", zap.String("id", snap.ID), zap.String("path", args[1]))
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import FILE.xlsx",
		Short: "Store an xlsx file as a new workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := xlsx.Read(args[0])
			if err != nil {
				return err
			}
			if result.Skipped > 0 {
				a.logger.Warn("skipped cells beyond column Z", zap.Int("cells", result.Skipped))
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped %d cells beyond column Z\n", result.Skipped)
			}

			snap := result.Snapshot
			if name != "" {
				snap.Name = name
			}
			// reject snapshots that cannot be rebuilt
			if _, err := spreadsheet.FromSnapshot(snap, a.workbookOptions()...); err != nil {
				return err
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Save(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), snap.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Workbook name (default: the file name)")
	return cmd
}
