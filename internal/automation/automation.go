package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/tethersim/internal/config"
	"github.com/san-kum/tethersim/internal/experiment"
	"github.com/san-kum/tethersim/internal/logging"
	"github.com/san-kum/tethersim/internal/metrics"
	"github.com/san-kum/tethersim/internal/storage"
)

// Scenario defines a scripted sequence of runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run. Preset is a "scene[/name]" reference; Config, when
// set, is a YAML file that replaces the preset. Zero-valued overrides keep the
// preset's value.
type ScenarioStep struct {
	Name       string             `yaml:"name"`
	Preset     string             `yaml:"preset"`
	Config     string             `yaml:"config"`
	Steps      int                `yaml:"steps"`
	Dt         float64            `yaml:"dt"`
	Iterations int                `yaml:"iterations"`
	Isolation  string             `yaml:"isolation"`
	Tear       *config.TearConfig `yaml:"tear"`
	Save       bool               `yaml:"save"`
}

// StepResult is the outcome of one scenario step. RunID is empty when the
// step was not saved.
type StepResult struct {
	Name   string
	RunID  string
	Result *experiment.Result
}

// LoadScenario loads a scenario from a YAML file. Relative step config paths
// are resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}

	dir := filepath.Dir(path)
	for i := range scenario.Steps {
		if c := scenario.Steps[i].Config; c != "" && !filepath.IsAbs(c) {
			scenario.Steps[i].Config = filepath.Join(dir, c)
		}
	}
	return &scenario, nil
}

// Resolve builds the validated config for a step.
func (s ScenarioStep) Resolve() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case s.Config != "":
		cfg, err = config.Load(s.Config)
	case s.Preset != "":
		cfg, err = config.Resolve(s.Preset)
	default:
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return nil, err
	}

	if s.Steps > 0 {
		cfg.Steps = s.Steps
	}
	if s.Dt > 0 {
		cfg.Dt = s.Dt
	}
	if s.Iterations > 0 {
		cfg.Solver.Iterations = s.Iterations
	}
	if s.Isolation != "" {
		cfg.Solver.Isolation = s.Isolation
	}
	if s.Tear != nil {
		cfg.Tear = *s.Tear
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunScenario executes all steps in order. Steps marked Save are written to
// store, which may be nil when no step saves.
func RunScenario(ctx context.Context, scenario *Scenario, store *storage.Store, logger *slog.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		logger.Info("scenario step", "scenario", scenario.Name, "step", name, "index", i+1, "of", len(scenario.Steps))

		cfg, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp := experiment.New(cfg, logger)
		if err := exp.Setup(metrics.Defaults(-cfg.Solver.Gravity.Y, cfg.Dt)); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: name, Result: result}
		if step.Save {
			if store == nil {
				return results, fmt.Errorf("step %d: save requested without a store", i+1)
			}
			sr.RunID, err = store.Save(cfg, result)
			if err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}
