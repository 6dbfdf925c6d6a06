package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"github.com/vogtb/go-gridcalc/packages/store"
	"github.com/vogtb/go-gridcalc/packages/tui"
	"go.uber.org/zap"
)

func (a *app) tuiCmd() *cobra.Command {
	var openID, templateKey, name string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			var wb *spreadsheet.Workbook
			if openID != "" {
				wb, err = a.loadWorkbook(ctx, st, openID)
			} else {
				wb, err = a.newWorkbook(name, templateKey)
			}
			if err != nil {
				return err
			}

			// the grid owns the terminal, only file logging is safe
			log := a.logger
			if a.cfg.Log.File == "" {
				log = zap.NewNop()
			}

			saver := store.NewAutoSaver(st, wb, a.cfg.AutoSave.Delay, log)
			defer saver.Stop()

			model := tui.New(wb,
				tui.WithSaver(saver),
				tui.WithInterval(a.cfg.Refresh.Interval),
				tui.WithLogger(log),
			)
			if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return err
			}

			if wb.AutoSave() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := saver.Flush(flushCtx); err != nil {
					return err
				}
			}
			log.Info("tui closed", zap.String("workbook", wb.ID()), zap.Int("saves", saver.Saves()))
			return nil
		},
	}
	cmd.Flags().StringVar(&openID, "open", "", "Open a stored workbook by id")
	cmd.Flags().StringVarP(&templateKey, "template", "t", "", "Start from a template")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of a new workbook")
	cmd.MarkFlagsMutuallyExclusive("open", "template")
	return cmd
}
