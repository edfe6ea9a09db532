package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sdewalk/sdewalk/internal/logging"
	"github.com/sdewalk/sdewalk/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the simulator as MCP tools over stdio",
		Long: `Start a Model Context Protocol server exposing the sde_simulate and
sde_validate tools over stdio.

Intended to be launched by an MCP client; logs go to stderr so stdout
stays clean for the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			logger := logging.NewLogger(level, os.Stderr)

			server := mcp.NewServer(&mcp.Config{
				Name:    "sdewalk",
				Version: version,
				Logger:  logger,
			})

			logger.Info("starting MCP server", "version", version)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().String("log-level", "info", "Log verbosity (info, debug, trace)")

	return cmd
}
