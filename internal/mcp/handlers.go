package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sdewalk/sdewalk/internal/config"
	"github.com/sdewalk/sdewalk/internal/rng"
	"github.com/sdewalk/sdewalk/internal/sim"
)

// timeGrid materializes the request's time axis, preferring explicit points.
func timeGrid(points []float64, start, stop float64, steps int) []float64 {
	return config.TimeGrid{Points: points, Start: start, Stop: stop, Steps: steps}.Grid()
}

func scenariosOrDefault(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (*sdk.CallToolResult, SimulateOutput, error) {
	method, err := rng.ParseKind(args.Method)
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	scheme, err := sim.ParseScheme(args.Scheme)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	cfg := sim.Config{
		Equations: args.Equations,
		Times:     timeGrid(args.Times, args.Start, args.Stop, args.Steps),
		Scenarios: scenariosOrDefault(args.Scenarios),
		Initial:   args.Initial,
		Method:    method,
		Scheme:    scheme,
		Seed:      args.Seed,
	}

	res, err := sim.Run(ctx, cfg)
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	s.logger.Debug("simulate tool completed",
		"scenarios", res.Scenarios, "rows", len(res.Rows), "draws", res.Draws)

	out := SimulateOutput{
		Columns:   append([]string{"scenario", "time"}, res.Processes...),
		Rows:      make([][]float64, 0, len(res.Rows)),
		Scenarios: res.Scenarios,
		Draws:     res.Draws,
	}
	for _, row := range res.Rows {
		flat := make([]float64, 0, 2+len(row.Values))
		flat = append(flat, float64(row.Scenario), row.Time)
		flat = append(flat, row.Values...)
		out.Rows = append(out.Rows, flat)
	}
	return nil, out, nil
}

func (s *Server) handleValidate(ctx context.Context, req *sdk.CallToolRequest, args ValidateInput) (*sdk.CallToolResult, ValidateOutput, error) {
	cfg := sim.Config{
		Equations: args.Equations,
		Times:     timeGrid(args.Times, args.Start, args.Stop, args.Steps),
		Scenarios: scenariosOrDefault(args.Scenarios),
		Initial:   args.Initial,
	}

	sys, err := sim.Validate(cfg)
	if err != nil {
		// A failed validation is a successful tool call with valid=false.
		return nil, ValidateOutput{Valid: false, Error: err.Error()}, nil
	}

	sources := make([]string, len(sys.Sources))
	for i, src := range sys.Sources {
		sources[i] = src.Label
	}
	return nil, ValidateOutput{Valid: true, Processes: sys.Names(), Sources: sources}, nil
}
