package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdewalk/sdewalk/internal/config"
	"github.com/sdewalk/sdewalk/internal/logging"
	"github.com/sdewalk/sdewalk/internal/sim"
	"github.com/sdewalk/sdewalk/internal/store"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulation described by a run file",
		Long: `Run the simulation described by a YAML run file and print the sample
paths as one row per (scenario, time point).

Flags override the run file; environment variables (SDEWALK_*) sit between
the file and the flags.

Examples:
  sdewalk simulate -f run.yaml
  sdewalk simulate -f run.yaml --format csv --out paths.csv
  sdewalk simulate -f run.yaml --scenarios 10000 --seed 7 --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			out, _ := cmd.Flags().GetString("out")
			format, _ := cmd.Flags().GetString("format")
			save, _ := cmd.Flags().GetBool("save")

			runCfg, err := config.Load(file)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				runCfg.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if cmd.Flags().Changed("scenarios") {
				runCfg.Scenarios, _ = cmd.Flags().GetInt("scenarios")
			}
			if cmd.Flags().Changed("workers") {
				runCfg.Workers, _ = cmd.Flags().GetInt("workers")
			}

			logger := logging.NewLogger(runCfg.Logging.Level, os.Stderr)

			simCfg, err := runCfg.Sim()
			if err != nil {
				return err
			}

			logger.Debug("starting simulation",
				"equations", len(simCfg.Equations),
				"scenarios", simCfg.Scenarios,
				"steps", len(simCfg.Times)-1,
				"method", simCfg.Method,
				"scheme", simCfg.Scheme)

			started := time.Now()
			res, err := sim.Run(cmd.Context(), simCfg)
			if err != nil {
				return err
			}
			logger.Info("simulation complete",
				"scenarios", res.Scenarios,
				"rows", len(res.Rows),
				"draws", res.Draws,
				"elapsed", time.Since(started))

			if save {
				db, err := store.Open(runCfg.Store.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				id, err := db.SaveRun(cmd.Context(), simCfg, res)
				if err != nil {
					return fmt.Errorf("archive run: %w", err)
				}
				logger.Info("run archived", "id", id, "path", runCfg.Store.Path)
			}

			return writeResultTo(out, format, res)
		},
	}

	cmd.Flags().StringP("file", "f", "run.yaml", "Run file (YAML)")
	cmd.Flags().String("out", "", "Output file (default: stdout)")
	cmd.Flags().String("format", "table", "Output format (csv, arrow, table)")
	cmd.Flags().Bool("save", false, "Archive the run in the store")
	cmd.Flags().Uint64("seed", 0, "Override the run file seed")
	cmd.Flags().Int("scenarios", 0, "Override the run file scenario count")
	cmd.Flags().Int("workers", 0, "Override the run file worker count")

	return cmd
}
