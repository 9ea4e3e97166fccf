package swarm

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/geometry"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config.schema.json
var configSchema string

const configSchemaURL = "config.schema.json"

type Config struct {
	// Population
	NumAgents    int     `json:"numAgents"`
	AgentDensity float64 `json:"agentDensity"` // spawn circle radius = NumAgents * AgentDensity

	// Per-agent defaults, changeable later through the controller
	DriveFactor float64 `json:"driveFactor"`
	MaxSpeed    float64 `json:"maxSpeed"`

	// Neighborhood
	NeighborRadius            float64 `json:"neighborRadius"`
	AvoidanceRadiusMultiplier float64 `json:"avoidanceRadiusMultiplier"`

	// Lifecycle rings around Origin
	InnerRadius    float64           `json:"innerRadius"`
	OuterRadius    float64           `json:"outerRadius"`
	DestructRadius float64           `json:"destructRadius"`
	Origin         geometry.Vector2D `json:"origin"`

	// Flocking weights
	CohesionWeight  float64 `json:"cohesionWeight"`
	AlignmentWeight float64 `json:"alignmentWeight"`
	AvoidanceWeight float64 `json:"avoidanceWeight"`

	Seed    uint64 `json:"seed"`
	Workers int    `json:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		NumAgents:                 50,
		AgentDensity:              0.08,
		DriveFactor:               8,
		MaxSpeed:                  5,
		NeighborRadius:            2,
		AvoidanceRadiusMultiplier: 0.5,
		InnerRadius:               5,
		OuterRadius:               10,
		DestructRadius:            15,
		CohesionWeight:            1,
		AlignmentWeight:           1,
		AvoidanceWeight:           2,
		Seed:                      42,
		Workers:                   1,
	}
}

// Validate checks the rules the schema cannot express.
func (c *Config) Validate() error {
	switch {
	case c.NumAgents < 0:
		return fmt.Errorf("%w: numAgents must not be negative, got %d", ErrInvalidInput, c.NumAgents)
	case c.AgentDensity <= 0 || math.IsNaN(c.AgentDensity):
		return fmt.Errorf("%w: agentDensity must be positive, got %v", ErrInvalidInput, c.AgentDensity)
	case c.DriveFactor <= 0 || math.IsNaN(c.DriveFactor) || math.IsInf(c.DriveFactor, 0):
		return fmt.Errorf("%w: driveFactor must be positive, got %v", ErrInvalidInput, c.DriveFactor)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidInput, c.Workers)
	case c.MaxSpeed <= 0:
		return fmt.Errorf("%w: maxSpeed must be positive, got %v", ErrInvalidInput, c.MaxSpeed)
	case c.NeighborRadius <= 0:
		return fmt.Errorf("%w: neighborRadius must be positive, got %v", ErrInvalidInput, c.NeighborRadius)
	case c.AvoidanceRadiusMultiplier <= 0:
		return fmt.Errorf("%w: avoidanceRadiusMultiplier must be positive, got %v", ErrInvalidInput, c.AvoidanceRadiusMultiplier)
	case c.InnerRadius <= 0 || c.InnerRadius >= c.OuterRadius || c.OuterRadius >= c.DestructRadius:
		return fmt.Errorf("%w: radii must satisfy 0 < inner < outer < destruct, got %v < %v < %v",
			ErrInvalidInput, c.InnerRadius, c.OuterRadius, c.DestructRadius)
	}
	return nil
}

// LoadConfig loads configuration from a JSON file and validates it against the schema.
// An empty schemaFile uses the schema embedded in the binary.
// Fields missing from the file keep their DefaultConfig value.
func LoadConfig(configFile string, schemaFile string) (*Config, error) {
	sch, err := compileSchema(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func compileSchema(schemaFile string) (*jsonschema.Schema, error) {
	if schemaFile != "" {
		return jsonschema.Compile(schemaFile)
	}
	return jsonschema.CompileString(configSchemaURL, configSchema)
}
