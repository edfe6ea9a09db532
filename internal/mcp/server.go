// Package mcp exposes the simulation engine over the Model Context Protocol
// so agent clients can run and validate SDE systems as tools.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server with the simulator tools.
type Server struct {
	server *sdk.Server
	logger *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "sdewalk")
	Version string // Server version
	Logger  *slog.Logger
}

// NewServer creates an MCP server with the sde_simulate and sde_validate
// tools registered.
func NewServer(cfg *Config) *Server {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{server: mcpServer, logger: logger}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sde_simulate",
		Description: "Simulate sample paths of a system of stochastic differential equations and return one row per (scenario, time point)",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sde_validate",
		Description: "Compile and validate an SDE system without running it; performs no random draws",
	}, s.handleValidate)
}

// Run serves over stdio transport. It blocks until the client disconnects,
// the context is cancelled, or an interrupt arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		cancel()
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}
