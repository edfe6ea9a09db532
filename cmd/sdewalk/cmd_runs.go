package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdewalk/sdewalk/internal/config"
	"github.com/sdewalk/sdewalk/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and export archived simulation runs",
	}

	cmd.PersistentFlags().String("db", config.Default().Store.Path, "Run archive database")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsExportCmd(),
		newRunsDeleteCmd(),
	)

	return cmd
}

// openRunStore opens the archive named by --db, honoring the
// SDEWALK_STORE_PATH override.
func openRunStore(cmd *cobra.Command) (*store.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if !cmd.Flags().Changed("db") {
		if v := os.Getenv("SDEWALK_STORE_PATH"); v != "" {
			path = v
		}
	}
	return store.Open(path)
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			db, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			metas, err := db.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				type runJSON struct {
					ID        int64     `json:"id"`
					CreatedAt time.Time `json:"created_at"`
					Equations []string  `json:"equations"`
					Processes []string  `json:"processes"`
					Method    string    `json:"method"`
					Scheme    string    `json:"scheme"`
					Seed      uint64    `json:"seed"`
					Scenarios int       `json:"scenarios"`
					Steps     int       `json:"steps"`
					Draws     uint64    `json:"draws"`
				}
				out := make([]runJSON, 0, len(metas))
				for _, m := range metas {
					out = append(out, runJSON{
						ID:        m.ID,
						CreatedAt: m.CreatedAt,
						Equations: m.Equations,
						Processes: m.Processes,
						Method:    m.Method,
						Scheme:    m.Scheme,
						Seed:      m.Seed,
						Scenarios: m.Scenarios,
						Steps:     len(m.Times) - 1,
						Draws:     m.Draws,
					})
				}
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"runs":  out,
					"count": len(out),
				})
			}

			if len(metas) == 0 {
				fmt.Println("No archived runs.")
				fmt.Println("\nUse 'sdewalk simulate -f run.yaml --save' to archive a run.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tPROCESSES\tMETHOD\tSCHEME\tSCENARIOS\tSTEPS\tDRAWS")
			for _, m := range metas {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					m.ID,
					m.CreatedAt.Format(time.RFC3339),
					strings.Join(m.Processes, ","),
					m.Method,
					m.Scheme,
					m.Scenarios,
					len(m.Times)-1,
					m.Draws)
			}
			return tw.Flush()
		},
	}
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export an archived run's sample paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			format, _ := cmd.Flags().GetString("format")

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id: %s", args[0])
			}

			db, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := db.LoadResult(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeResultTo(out, format, res)
		},
	}

	cmd.Flags().String("out", "", "Output file (default: stdout)")
	cmd.Flags().String("format", "csv", "Output format (csv, arrow, table)")

	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id: %s", args[0])
			}

			db, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.DeleteRun(cmd.Context(), id); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"status": "deleted",
					"id":     id,
				})
			}
			fmt.Printf("Run %d deleted.\n", id)
			return nil
		},
	}

	return cmd
}
