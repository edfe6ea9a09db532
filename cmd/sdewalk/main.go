package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "sdewalk",
		Short: "Monte Carlo path simulation for stochastic differential equations",
		Long: `sdewalk simulates sample paths of systems of stochastic differential
equations declared in plain text, e.g.

  dX = 0.05*X*dt + 0.2*X*dW

It supports pseudo- and quasi-random sampling, first-order and corrected
integration schemes, and archives completed runs for later export.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newValidateCmd(),
		newRunsCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("sdewalk version %s\n", version)
			}
		},
	}
}
