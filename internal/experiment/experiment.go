package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/tethersim/internal/config"
	"github.com/san-kum/tethersim/internal/logging"
	"github.com/san-kum/tethersim/internal/metrics"
	"github.com/san-kum/tethersim/internal/scene"
	"github.com/san-kum/tethersim/internal/vec"
	"github.com/san-kum/tethersim/internal/verlet"
)

// Sample is one row of a run trace: the tracked point's position and the
// largest link strain after a step.
type Sample struct {
	Step     int      `json:"step"`
	Time     float64  `json:"time"`
	Position vec.Vec3 `json:"position"`
	Strain   float64  `json:"strain"`
}

type Result struct {
	Samples    []Sample
	Metrics    map[string]float64
	Final      verlet.Snapshot
	StepsTaken int
	Torn       int
	Degenerate int
	Elapsed    time.Duration
}

type Experiment struct {
	cfg     *config.Config
	logger  *slog.Logger
	scene   *scene.Scene
	metrics []metrics.Metric
}

func New(cfg *config.Config, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Experiment{cfg: cfg, logger: logger}
}

// Setup builds the scene. opts are passed to the solver after the config's own
// options, so observers such as a metrics collector can be attached here.
func (e *Experiment) Setup(ms []metrics.Metric, opts ...verlet.Option) error {
	sc, err := scene.Build(e.cfg, e.logger, opts...)
	if err != nil {
		return err
	}
	e.scene = sc
	e.metrics = ms
	return nil
}

func (e *Experiment) Scene() *scene.Scene { return e.scene }

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.scene == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	for _, m := range e.metrics {
		m.Reset()
	}

	s := e.scene.Solver
	tracked, hasTrack := e.scene.Tracked()
	result := &Result{
		Samples: make([]Sample, 0, e.cfg.Steps+1),
		Metrics: make(map[string]float64),
	}

	record := func() error {
		snap, err := s.Snapshot()
		if err != nil {
			return err
		}
		for _, m := range e.metrics {
			m.Observe(snap)
		}
		sample := Sample{Step: snap.Step, Time: snap.Time, Strain: maxStrain(snap)}
		if hasTrack {
			// The tracked point may have been torn away.
			if pos, err := s.Position(tracked); err == nil {
				sample.Position = pos
			}
		}
		result.Samples = append(result.Samples, sample)
		result.Final = snap
		return nil
	}

	start := time.Now()
	if err := record(); err != nil {
		return result, err
	}

	for i := 0; i < e.cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			result.Elapsed = time.Since(start)
			return result, ctx.Err()
		default:
		}

		stats, err := s.Step(e.cfg.Dt)
		if err != nil {
			return result, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.StepsTaken++
		result.Degenerate += stats.Degenerate

		if tear := e.cfg.Tear; tear.Step > 0 && stats.Step == tear.Step {
			n, err := e.scene.Tear(tear.X, tear.Y, tear.Radius, tear.Count)
			if err != nil {
				return result, fmt.Errorf("tear at step %d: %w", stats.Step, err)
			}
			result.Torn += n
			e.logger.Info("tore links", "step", stats.Step, "count", n)
		}

		if err := record(); err != nil {
			return result, err
		}
	}
	result.Elapsed = time.Since(start)

	for _, m := range e.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func maxStrain(snap verlet.Snapshot) float64 {
	worst := 0.0
	for _, l := range snap.Links {
		if s := l.Strain(); s > worst {
			worst = s
		}
	}
	return worst
}
