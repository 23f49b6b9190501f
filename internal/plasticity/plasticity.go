// Package plasticity retunes the solver blend between ticks. It keeps a
// rolling statistical baseline of environment change magnitude and,
// when a sample deviates sharply from it, shifts the blend toward
// reactive stability, then decays back to baseline smoothly. Weight
// changes never step discontinuously outside the detection instant.
package plasticity

import (
	"math"

	"go.uber.org/zap"

	"kinesis/internal/solver"
)

// Config tunes perturbation detection and the response envelope.
type Config struct {
	// Baseline is the resting solver blend; Response is the blend
	// adopted at the moment of a detected perturbation.
	Baseline solver.Weights
	Response solver.Weights

	// ZThreshold is how many standard deviations above the rolling
	// baseline a change magnitude must land to count as a perturbation.
	ZThreshold float64
	// MinStd floors the baseline deviation so a perfectly quiet history
	// does not make the first twitch look like an earthquake.
	MinStd float64
	// WarmupTicks is the number of samples required before detection
	// activates.
	WarmupTicks int
	// CooldownTicks suppresses retriggering after a detection.
	CooldownTicks uint64
	// DecayRate is the per-tick retention of the response level, in
	// (0, 1). Higher holds the reactive blend longer.
	DecayRate float64
}

func DefaultConfig() Config {
	return Config{
		Baseline:      solver.DefaultWeights(),
		Response:      solver.Weights{Kinematic: 1, Dynamic: 1, Energetic: 0.2, CorrectionLimit: 0.3},
		ZThreshold:    3,
		MinStd:        0.02,
		WarmupTicks:   30,
		CooldownTicks: 45,
		DecayRate:     0.92,
	}
}

// Controller owns the blend for one entity. Not safe for concurrent
// use; each entity holds its own.
type Controller struct {
	cfg    Config
	logger *zap.Logger

	// Welford accumulators over every observed change magnitude.
	count float64
	mean  float64
	m2    float64

	// level is the current response intensity in [0, 1].
	level       float64
	lastTrigger uint64
	triggered   bool
}

func New(cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = def.ZThreshold
	}
	if cfg.MinStd <= 0 {
		cfg.MinStd = def.MinStd
	}
	if cfg.WarmupTicks <= 0 {
		cfg.WarmupTicks = def.WarmupTicks
	}
	if cfg.DecayRate <= 0 || cfg.DecayRate >= 1 {
		cfg.DecayRate = def.DecayRate
	}
	if cfg.Baseline == (solver.Weights{}) {
		cfg.Baseline = def.Baseline
	}
	if cfg.Response == (solver.Weights{}) {
		cfg.Response = def.Response
	}
	return &Controller{cfg: cfg, logger: logger}
}

// Observe feeds one tick's environment change magnitude and reports
// whether it registered as a perturbation. The sample joins the rolling
// baseline either way, so a sustained new regime stops looking
// anomalous on its own.
func (c *Controller) Observe(tick uint64, magnitude float64) bool {
	perturbed := false
	if c.count >= float64(c.cfg.WarmupTicks) {
		sd := math.Sqrt(c.m2 / c.count)
		if sd < c.cfg.MinStd {
			sd = c.cfg.MinStd
		}
		z := (magnitude - c.mean) / sd
		if z > c.cfg.ZThreshold && c.cooledDown(tick) {
			perturbed = true
			c.level = 1
			c.lastTrigger = tick
			c.triggered = true
			c.logger.Info("perturbation detected",
				zap.Uint64("tick", tick),
				zap.Float64("magnitude", magnitude),
				zap.Float64("z", z))
		}
	}

	c.count++
	d := magnitude - c.mean
	c.mean += d / c.count
	c.m2 += d * (magnitude - c.mean)

	if !perturbed {
		c.level *= c.cfg.DecayRate
		if c.level < 1e-3 {
			c.level = 0
		}
	}
	return perturbed
}

func (c *Controller) cooledDown(tick uint64) bool {
	if !c.triggered {
		return true
	}
	return tick-c.lastTrigger >= c.cfg.CooldownTicks
}

// Weights is the current solver blend, interpolated between baseline
// and response by the decaying level.
func (c *Controller) Weights() solver.Weights {
	b, r, t := c.cfg.Baseline, c.cfg.Response, c.level
	return solver.Weights{
		Kinematic:       lerp(b.Kinematic, r.Kinematic, t),
		Dynamic:         lerp(b.Dynamic, r.Dynamic, t),
		Energetic:       lerp(b.Energetic, r.Energetic, t),
		CorrectionLimit: lerp(b.CorrectionLimit, r.CorrectionLimit, t),
	}
}

// Level exposes the response intensity for diagnostics.
func (c *Controller) Level() float64 {
	return c.level
}

// Reset clears the baseline and response state, for a fresh session.
func (c *Controller) Reset() {
	c.count, c.mean, c.m2 = 0, 0, 0
	c.level = 0
	c.triggered = false
	c.lastTrigger = 0
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
