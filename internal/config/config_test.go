package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
tick_rate: 120
solver:
  iterations: 16
  budget: 4ms
storage:
  kind: sqlite
  path: /tmp/run.db
`))
	require.NoError(t, err)

	assert.Equal(t, 120.0, cfg.TickRate)
	assert.Equal(t, 16, cfg.Solver.Iterations)
	assert.Equal(t, 4*time.Millisecond, time.Duration(cfg.Solver.Budget))
	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Solver.Tolerance, cfg.Solver.Tolerance)
	assert.Equal(t, Default().Plasticity, cfg.Plasticity)
	assert.Equal(t, "sqlite", cfg.Storage.Kind)
	assert.InDelta(t, 1.0/120, cfg.DT(), 1e-12)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("tick_rte: 60\n"))
	require.Error(t, err)
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("solver:\n  budget: fast\n"))
	require.Error(t, err)
}

func TestValidateCatchesBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"zero tick rate":      func(c *Config) { c.TickRate = 0 },
		"huge tick rate":      func(c *Config) { c.TickRate = 5000 },
		"zero iterations":     func(c *Config) { c.Solver.Iterations = 0 },
		"zero tolerance":      func(c *Config) { c.Solver.Tolerance = 0 },
		"decay at one":        func(c *Config) { c.Plasticity.DecayRate = 1 },
		"unknown storage":     func(c *Config) { c.Storage.Kind = "redis" },
		"sqlite without path": func(c *Config) { c.Storage.Kind = "sqlite"; c.Storage.Path = "" },
		"zero window":         func(c *Config) { c.Trajectory.WindowFrames = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick_rate: 30\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.TickRate)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRuntimeConversions(t *testing.T) {
	cfg := Default()
	sc := cfg.SolverRuntime()
	assert.InDelta(t, 1.0/60, sc.DT, 1e-12)
	assert.Equal(t, cfg.Solver.Iterations, sc.Iterations)

	pc := cfg.PlasticityRuntime()
	assert.Equal(t, cfg.Plasticity.ZThreshold, pc.ZThreshold)
	assert.Equal(t, cfg.Plasticity.CooldownTicks, pc.CooldownTicks)
}
