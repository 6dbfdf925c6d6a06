package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errInterrupted = errors.New("interrupted")

func (a *app) watchCmd() *cobra.Command {
	var (
		interval time.Duration
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Refresh a stored workbook's NOW() and RAND() cells and print them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			wb, err := a.loadWorkbook(ctx, st, args[0])
			st.Close()
			if err != nil {
				return err
			}

			if interval <= 0 {
				interval = a.cfg.Refresh.Interval
			}
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return watch(ctx, wb, interval, a.logger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh interval (default: refresh.interval from the config)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	return cmd
}

// watch runs the volatile ticker and a signal watcher until either stops
func watch(ctx context.Context, wb *spreadsheet.Workbook, interval time.Duration, logger *zap.Logger, out io.Writer) error {
	printRefreshed := func(refreshed map[string][]spreadsheet.CellAddress) {
		for _, info := range wb.Sheets() {
			cells, ok := refreshed[info.ID]
			if !ok {
				continue
			}
			_ = wb.Update(info.ID, func(s *spreadsheet.Sheet) error {
				for _, addr := range cells {
					fmt.Fprintf(out, "%s!%s = %s\n", info.Name, addr, s.DisplayAt(addr))
				}
				return nil
			})
		}
	}

	ticker := spreadsheet.NewVolatileTicker(wb, interval, logger, printRefreshed)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ticker.Run(gctx)
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, stopping", zap.String("signal", sig.String()))
			return errInterrupted
		case <-gctx.Done():
			return nil
		}
	})

	err := g.Wait()
	switch {
	case errors.Is(err, errInterrupted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return nil
	}
	return err
}
