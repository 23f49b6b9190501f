// Package config loads and validates engine configuration. Every field
// has a working default; a config file only overrides what it names.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kinesis/internal/plasticity"
	"kinesis/internal/solver"
)

// Duration parses YAML scalars like "2ms" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the full engine configuration.
type Config struct {
	// TickRate is the fixed simulation frequency in Hz.
	TickRate   float64          `yaml:"tick_rate"`
	Solver     SolverConfig     `yaml:"solver"`
	Plasticity PlasticityConfig `yaml:"plasticity"`
	Trajectory TrajectoryConfig `yaml:"trajectory"`
	Storage    StorageConfig    `yaml:"storage"`
}

type SolverConfig struct {
	Iterations  int      `yaml:"iterations"`
	Budget      Duration `yaml:"budget"`
	Tolerance   float64  `yaml:"tolerance"`
	RelaxWeight float64  `yaml:"relax_weight"`
}

type PlasticityConfig struct {
	ZThreshold    float64 `yaml:"z_threshold"`
	MinStd        float64 `yaml:"min_std"`
	WarmupTicks   int     `yaml:"warmup_ticks"`
	CooldownTicks uint64  `yaml:"cooldown_ticks"`
	DecayRate     float64 `yaml:"decay_rate"`
}

type TrajectoryConfig struct {
	// WindowFrames bounds the retained per-entity frame history.
	WindowFrames int `yaml:"window_frames"`
}

type StorageConfig struct {
	// Kind selects the recording backend, "memory" or "sqlite".
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	sc := solver.DefaultConfig()
	pc := plasticity.DefaultConfig()
	return Config{
		TickRate: 60,
		Solver: SolverConfig{
			Iterations:  sc.Iterations,
			Budget:      Duration(sc.Budget),
			Tolerance:   sc.Tolerance,
			RelaxWeight: sc.RelaxWeight,
		},
		Plasticity: PlasticityConfig{
			ZThreshold:    pc.ZThreshold,
			MinStd:        pc.MinStd,
			WarmupTicks:   pc.WarmupTicks,
			CooldownTicks: pc.CooldownTicks,
			DecayRate:     pc.DecayRate,
		},
		Trajectory: TrajectoryConfig{WindowFrames: 600},
		Storage:    StorageConfig{Kind: "memory"},
	}
}

// Load reads a YAML config file over the defaults. Unknown keys are
// rejected so typos fail loudly instead of silently running defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML payload over the defaults, for tests and
// embedded configs.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TickRate <= 0 || c.TickRate > 1000 {
		return fmt.Errorf("tick_rate %v outside (0, 1000]", c.TickRate)
	}
	if c.Solver.Iterations <= 0 {
		return fmt.Errorf("solver.iterations must be positive, got %d", c.Solver.Iterations)
	}
	if c.Solver.Budget < 0 {
		return fmt.Errorf("solver.budget must not be negative")
	}
	if c.Solver.Tolerance <= 0 {
		return fmt.Errorf("solver.tolerance must be positive, got %v", c.Solver.Tolerance)
	}
	if c.Solver.RelaxWeight <= 0 {
		return fmt.Errorf("solver.relax_weight must be positive, got %v", c.Solver.RelaxWeight)
	}
	if c.Plasticity.ZThreshold <= 0 {
		return fmt.Errorf("plasticity.z_threshold must be positive, got %v", c.Plasticity.ZThreshold)
	}
	if c.Plasticity.DecayRate <= 0 || c.Plasticity.DecayRate >= 1 {
		return fmt.Errorf("plasticity.decay_rate %v outside (0, 1)", c.Plasticity.DecayRate)
	}
	if c.Trajectory.WindowFrames <= 0 {
		return fmt.Errorf("trajectory.window_frames must be positive, got %d", c.Trajectory.WindowFrames)
	}
	switch c.Storage.Kind {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path required for sqlite")
		}
	default:
		return fmt.Errorf("unknown storage.kind %q", c.Storage.Kind)
	}
	return nil
}

// DT is the fixed timestep the tick rate implies.
func (c Config) DT() float64 {
	return 1.0 / c.TickRate
}

// SolverRuntime converts the file form into the solver's own config.
func (c Config) SolverRuntime() solver.Config {
	return solver.Config{
		DT:          c.DT(),
		Iterations:  c.Solver.Iterations,
		Budget:      time.Duration(c.Solver.Budget),
		Tolerance:   c.Solver.Tolerance,
		RelaxWeight: c.Solver.RelaxWeight,
	}
}

// PlasticityRuntime converts the file form into the controller config.
func (c Config) PlasticityRuntime() plasticity.Config {
	return plasticity.Config{
		Baseline:      solver.DefaultWeights(),
		Response:      plasticity.DefaultConfig().Response,
		ZThreshold:    c.Plasticity.ZThreshold,
		MinStd:        c.Plasticity.MinStd,
		WarmupTicks:   c.Plasticity.WarmupTicks,
		CooldownTicks: c.Plasticity.CooldownTicks,
		DecayRate:     c.Plasticity.DecayRate,
	}
}
