// Package config loads simulation run files. A run file is YAML describing
// the equation system, the time grid, and the sampling setup; defaults are
// applied first, then the file, then SDEWALK_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sdewalk/sdewalk/internal/rng"
	"github.com/sdewalk/sdewalk/internal/sim"
)

// RunConfig is a full simulation run description.
type RunConfig struct {
	// Equations are the system declarations, one dName = ... per entry.
	Equations []string `yaml:"equations"`

	// Times defines the simulation grid, either as explicit points or as
	// a uniform start/stop/steps triple.
	Times TimeGrid `yaml:"times"`

	// Scenarios is the number of independent paths.
	Scenarios int `yaml:"scenarios"`

	// Initial maps each declared process to its starting value.
	Initial map[string]float64 `yaml:"initial_values"`

	// Method selects variate generation: "pseudo" (default) or "quasi".
	Method string `yaml:"method"`

	// Scheme selects integration: "first_order" (default) or "corrected".
	Scheme string `yaml:"scheme"`

	// Seed drives pseudo-random generation.
	Seed uint64 `yaml:"seed"`

	// Workers bounds the scenario pool; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// Logging configures operational output.
	Logging LoggingConfig `yaml:"logging"`

	// Store configures run persistence.
	Store StoreConfig `yaml:"store"`
}

// TimeGrid is the run's time axis. Points wins when both forms are given.
type TimeGrid struct {
	Points []float64 `yaml:"points,omitempty"`
	Start  float64   `yaml:"start"`
	Stop   float64   `yaml:"stop"`
	Steps  int       `yaml:"steps"`
}

// Grid materializes the time points.
func (g TimeGrid) Grid() []float64 {
	if len(g.Points) > 0 {
		return g.Points
	}
	if g.Steps < 1 {
		return nil
	}
	points := make([]float64, g.Steps+1)
	for i := range points {
		points[i] = g.Start + (g.Stop-g.Start)*float64(i)/float64(g.Steps)
	}
	return points
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level sets log verbosity: "info" (default), "debug", or "trace".
	Level string `yaml:"level"`
}

// StoreConfig configures the run archive.
type StoreConfig struct {
	// Path is the SQLite database location.
	Path string `yaml:"path"`
}

// Default returns a RunConfig with sensible defaults. Equations, times, and
// initial values have no default; they come from the file.
func Default() *RunConfig {
	return &RunConfig{
		Scenarios: 1,
		Method:    "pseudo",
		Scheme:    "first_order",
		Logging:   LoggingConfig{Level: "info"},
		Store:     StoreConfig{Path: ".sdewalk/runs.db"},
	}
}

// Load reads a run file and applies environment overrides on top of
// defaults.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing run file: %w", err)
	}

	applyEnvOverrides(config)
	return config, nil
}

// Validate checks the shape of the configuration. Deep validation of the
// equation system happens in the engine.
func (c *RunConfig) Validate() error {
	if len(c.Equations) == 0 {
		return fmt.Errorf("no equations given")
	}
	if len(c.Times.Points) == 0 && c.Times.Steps < 1 {
		return fmt.Errorf("times needs explicit points or a steps count >= 1")
	}
	if len(c.Times.Points) == 0 && !(c.Times.Stop > c.Times.Start) {
		return fmt.Errorf("times stop (%g) must exceed start (%g)", c.Times.Stop, c.Times.Start)
	}
	if c.Scenarios < 1 {
		return fmt.Errorf("scenarios must be >= 1, got %d", c.Scenarios)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if _, err := rng.ParseKind(c.Method); err != nil {
		return err
	}
	if _, err := sim.ParseScheme(c.Scheme); err != nil {
		return err
	}
	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	return nil
}

// Sim converts the run file into an engine configuration.
func (c *RunConfig) Sim() (sim.Config, error) {
	if err := c.Validate(); err != nil {
		return sim.Config{}, err
	}
	method, err := rng.ParseKind(c.Method)
	if err != nil {
		return sim.Config{}, err
	}
	scheme, err := sim.ParseScheme(c.Scheme)
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Equations: c.Equations,
		Times:     c.Times.Grid(),
		Scenarios: c.Scenarios,
		Initial:   c.Initial,
		Method:    method,
		Scheme:    scheme,
		Seed:      c.Seed,
		Workers:   c.Workers,
	}, nil
}

// applyEnvOverrides applies SDEWALK_* environment overrides to the config.
func applyEnvOverrides(config *RunConfig) {
	if v := os.Getenv("SDEWALK_METHOD"); v != "" {
		config.Method = v
	}
	if v := os.Getenv("SDEWALK_SCHEME"); v != "" {
		config.Scheme = v
	}
	if v := os.Getenv("SDEWALK_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Seed = n
		}
	}
	if v := os.Getenv("SDEWALK_SCENARIOS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Scenarios = n
		}
	}
	if v := os.Getenv("SDEWALK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Workers = n
		}
	}
	if v := os.Getenv("SDEWALK_STORE_PATH"); v != "" {
		config.Store.Path = v
	}
	if v := os.Getenv("SDEWALK_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
