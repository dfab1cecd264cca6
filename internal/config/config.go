package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/tethersim/internal/vec"
	"github.com/san-kum/tethersim/internal/verlet"
)

const (
	DefaultScene      = "cloth"
	DefaultDt         = 0.02
	DefaultSteps      = 500
	DefaultIterations = 7
	DefaultWidth      = 32
	DefaultHeight     = 16
	DefaultSpacing    = 1.0
	DefaultLockEvery  = 8
	DefaultMass       = 1.0
	DefaultSlack      = 1.0
	DefaultTearRadius = 0.5
)

var DefaultGravity = vec.New(0, -9.8, 0)

var ErrInvalidConfig = errors.New("config: invalid")

var Scenes = []string{"cloth", "rope", "chain"}

type Config struct {
	Scene  string       `yaml:"scene"`
	Dt     float64      `yaml:"dt"`
	Steps  int          `yaml:"steps"`
	Solver SolverConfig `yaml:"solver"`
	Grid   GridConfig   `yaml:"grid"`
	Track  TrackConfig  `yaml:"track"`
	Tear   TearConfig   `yaml:"tear"`
}

type SolverConfig struct {
	Iterations int      `yaml:"iterations"`
	Workers    int      `yaml:"workers"`
	Gravity    vec.Vec3 `yaml:"gravity"`
	Isolation  string   `yaml:"isolation"`
}

// GridConfig lays out the scene. Rope and chain scenes use Width as their
// point count and ignore Height.
type GridConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Spacing   float64 `yaml:"spacing"`
	LockEvery int     `yaml:"lock_every"`
	Mass      float64 `yaml:"mass"`
	Slack     float64 `yaml:"slack"`
}

// TrackConfig selects the grid cell whose trajectory is written to the trace.
// Negative values count from the far edge.
type TrackConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// TearConfig breaks links near (X, Y) at step Step. Step 0 disables it.
type TearConfig struct {
	Step   int     `yaml:"step"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
	Count  int     `yaml:"count"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene: DefaultScene,
		Dt:    DefaultDt,
		Steps: DefaultSteps,
		Solver: SolverConfig{
			Iterations: DefaultIterations,
			Gravity:    DefaultGravity,
			Isolation:  verlet.KeepIsolated.String(),
		},
		Grid: GridConfig{
			Width:     DefaultWidth,
			Height:    DefaultHeight,
			Spacing:   DefaultSpacing,
			LockEvery: DefaultLockEvery,
			Mass:      DefaultMass,
			Slack:     DefaultSlack,
		},
		Track: TrackConfig{X: -1, Y: -1},
		Tear:  TearConfig{Radius: DefaultTearRadius, Count: 1},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (c *Config) Validate() error {
	known := false
	for _, s := range Scenes {
		if c.Scene == s {
			known = true
			break
		}
	}
	if !known {
		return invalid("unknown scene %q (available: %v)", c.Scene, Scenes)
	}
	if c.Dt < 0 || !finite(c.Dt) {
		return invalid("dt must be a non-negative number, got %v", c.Dt)
	}
	if c.Steps < 0 {
		return invalid("steps must be non-negative, got %d", c.Steps)
	}
	if c.Solver.Iterations < 1 {
		return invalid("solver.iterations must be at least 1, got %d", c.Solver.Iterations)
	}
	if c.Solver.Workers < 0 {
		return invalid("solver.workers must be non-negative, got %d", c.Solver.Workers)
	}
	if !c.Solver.Gravity.IsFinite() {
		return invalid("solver.gravity must be finite")
	}
	if _, err := verlet.ParseIsolationPolicy(c.Solver.Isolation); err != nil {
		return invalid("solver.isolation: %v", err)
	}
	if c.Grid.Width < 2 {
		return invalid("grid.width must be at least 2, got %d", c.Grid.Width)
	}
	if c.Scene == "cloth" && c.Grid.Height < 1 {
		return invalid("grid.height must be at least 1, got %d", c.Grid.Height)
	}
	if c.Grid.Spacing <= 0 || !finite(c.Grid.Spacing) {
		return invalid("grid.spacing must be positive, got %v", c.Grid.Spacing)
	}
	if c.Grid.LockEvery < 0 {
		return invalid("grid.lock_every must be non-negative, got %d", c.Grid.LockEvery)
	}
	if c.Grid.Mass <= 0 || !finite(c.Grid.Mass) {
		return invalid("grid.mass must be positive, got %v", c.Grid.Mass)
	}
	if c.Grid.Slack < 0 || !finite(c.Grid.Slack) {
		return invalid("grid.slack must be non-negative, got %v", c.Grid.Slack)
	}
	if c.Tear.Step < 0 || c.Tear.Count < 0 {
		return invalid("tear.step and tear.count must be non-negative")
	}
	if c.Tear.Step > 0 && (c.Tear.Radius <= 0 || !finite(c.Tear.Radius)) {
		return invalid("tear.radius must be positive, got %v", c.Tear.Radius)
	}
	return nil
}

func (c *Config) IsolationPolicy() verlet.IsolationPolicy {
	p, _ := verlet.ParseIsolationPolicy(c.Solver.Isolation)
	return p
}

// SolverOptions turns the solver section into verlet options.
func (c *Config) SolverOptions() []verlet.Option {
	opts := []verlet.Option{
		verlet.WithGravity(c.Solver.Gravity),
		verlet.WithIsolationPolicy(c.IsolationPolicy()),
	}
	if c.Solver.Workers > 0 {
		opts = append(opts, verlet.WithWorkers(c.Solver.Workers))
	}
	return opts
}
