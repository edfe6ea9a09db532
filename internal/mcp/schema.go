package mcp

// SimulateInput is the input schema for the sde_simulate tool.
type SimulateInput struct {
	Equations []string           `json:"equations" jsonschema:"SDE declarations in the form dName = drift*dt + diffusion*dW"`
	Times     []float64          `json:"times,omitempty" jsonschema:"Explicit strictly increasing time points (overrides start/stop/steps)"`
	Start     float64            `json:"start,omitempty" jsonschema:"Grid start time (used with stop and steps)"`
	Stop      float64            `json:"stop,omitempty" jsonschema:"Grid stop time (used with start and steps)"`
	Steps     int                `json:"steps,omitempty" jsonschema:"Number of uniform steps between start and stop"`
	Scenarios int                `json:"scenarios,omitempty" jsonschema:"Number of independent paths (default: 1)"`
	Initial   map[string]float64 `json:"initial_values" jsonschema:"Starting value per declared process"`
	Method    string             `json:"method,omitempty" jsonschema:"Variate generation: 'pseudo' (default) or 'quasi'"`
	Scheme    string             `json:"scheme,omitempty" jsonschema:"Integration scheme: 'first_order' (default) or 'corrected'"`
	Seed      uint64             `json:"seed,omitempty" jsonschema:"Seed for pseudo-random generation"`
}

// SimulateOutput is the output schema for the sde_simulate tool.
type SimulateOutput struct {
	Columns   []string    `json:"columns" jsonschema:"Column names: scenario, time, then one per process in declaration order"`
	Rows      [][]float64 `json:"rows" jsonschema:"One row per (scenario, time point), scenario-ascending then time-ascending"`
	Scenarios int         `json:"scenarios" jsonschema:"Number of simulated paths"`
	Draws     uint64      `json:"draws" jsonschema:"Number of uniform variates consumed"`
}

// ValidateInput is the input schema for the sde_validate tool.
type ValidateInput struct {
	Equations []string           `json:"equations" jsonschema:"SDE declarations to compile and check"`
	Times     []float64          `json:"times,omitempty" jsonschema:"Explicit time points (overrides start/stop/steps)"`
	Start     float64            `json:"start,omitempty" jsonschema:"Grid start time"`
	Stop      float64            `json:"stop,omitempty" jsonschema:"Grid stop time"`
	Steps     int                `json:"steps,omitempty" jsonschema:"Number of uniform steps"`
	Scenarios int                `json:"scenarios,omitempty" jsonschema:"Number of paths (default: 1)"`
	Initial   map[string]float64 `json:"initial_values" jsonschema:"Starting value per declared process"`
}

// ValidateOutput is the output schema for the sde_validate tool.
type ValidateOutput struct {
	Valid     bool     `json:"valid" jsonschema:"Whether the configuration compiles and validates"`
	Processes []string `json:"processes,omitempty" jsonschema:"Declared process names in declaration order"`
	Sources   []string `json:"sources,omitempty" jsonschema:"Stochastic source labels in first-appearance order"`
	Error     string   `json:"error,omitempty" jsonschema:"Failure description when valid is false"`
}
