package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/tethersim/internal/config"
	"github.com/san-kum/tethersim/internal/metrics"
)

// SweepPoint is the outcome of one run in a sweep.
type SweepPoint struct {
	Iterations int
	Result     *Result
}

// Sweep runs base once per relaxation iteration count, concurrently, with at
// most parallel runs in flight (no limit when parallel <= 0). Points come back
// in the order of iterations.
func Sweep(ctx context.Context, base *config.Config, iterations []int, parallel int, logger *slog.Logger) ([]SweepPoint, error) {
	points := make([]SweepPoint, len(iterations))

	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, n := range iterations {
		i, n := i, n
		g.Go(func() error {
			cfg := base.Clone()
			cfg.Solver.Iterations = n

			exp := New(cfg, logger)
			if err := exp.Setup(metrics.Defaults(-cfg.Solver.Gravity.Y, cfg.Dt)); err != nil {
				return fmt.Errorf("iterations %d: %w", n, err)
			}
			result, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("iterations %d: %w", n, err)
			}
			points[i] = SweepPoint{Iterations: n, Result: result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

// Best returns the sweep point with the lowest value of the named metric.
func Best(points []SweepPoint, metric string) (SweepPoint, bool) {
	best := math.Inf(1)
	var out SweepPoint
	found := false
	for _, p := range points {
		val, ok := p.Result.Metrics[metric]
		if !ok {
			continue
		}
		if val < best {
			best, out, found = val, p, true
		}
	}
	return out, found
}
