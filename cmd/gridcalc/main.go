// gridcalc is a terminal spreadsheet with a formula engine, workbook store
// and xlsx interchange
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vogtb/go-gridcalc/packages/config"
	"github.com/vogtb/go-gridcalc/packages/logger"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"github.com/vogtb/go-gridcalc/packages/store"
	"go.uber.org/zap"
)

// app carries the state shared by every command
type app struct {
	configPath string
	envFile    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "gridcalc",
		Short: "Terminal spreadsheet with live formulas",
		Long: `gridcalc is a spreadsheet for the terminal.

Cells hold numbers, text or formulas (=SUM(A1:A3)*2). Formulas recalculate
in dependency order, cycles show #CIRCULAR and NOW()/RAND() refresh on a
timer. Workbooks are stored as JSON files, in SQLite or in redis.

Run without arguments to open the interactive grid.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: $GRIDCALC_CONFIG or ~/.gridcalc/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	tuiCmd := a.tuiCmd()
	rootCmd.RunE = tuiCmd.RunE
	rootCmd.Flags().AddFlagSet(tuiCmd.Flags())

	rootCmd.AddCommand(
		tuiCmd,
		a.evalCmd(),
		a.depsCmd(),
		a.validateCmd(),
		a.applyCmd(),
		a.saveCmd(),
		a.listCmd(),
		a.showCmd(),
		a.deleteCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.watchCmd(),
	)
	return rootCmd
}

// setup loads .env, the config file and the environment, then builds the
// logger
func (a *app) setup(cmd *cobra.Command, args []string) error {
	envErr := godotenv.Load(a.envFile)

	cfg, err := config.Load(config.ResolvePath(a.configPath))
	if err != nil {
		return err
	}
	if a.verbose {
		logger.SetVerbose(&cfg.Log)
	}

	log, err := logger.New(cfg.Log, cfg.Environment)
	if err != nil {
		return err
	}
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn("could not load env file", zap.String("path", a.envFile), zap.Error(envErr))
	}

	a.cfg = cfg
	a.logger = log.With(zap.String("command", cmd.Name()))
	return nil
}

func (a *app) workbookOptions() []spreadsheet.Option {
	return []spreadsheet.Option{spreadsheet.WithExtents(a.cfg.Sheet.Rows, a.cfg.Sheet.Columns)}
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// loadWorkbook reads a stored workbook and recalculates it
func (a *app) loadWorkbook(ctx context.Context, st store.Store, id string) (*spreadsheet.Workbook, error) {
	snap, err := st.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return spreadsheet.FromSnapshot(snap, a.workbookOptions()...)
}
