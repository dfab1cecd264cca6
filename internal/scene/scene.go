package scene

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/tethersim/internal/config"
	"github.com/san-kum/tethersim/internal/vec"
	"github.com/san-kum/tethersim/internal/verlet"
)

// Scene is a solver populated from a config, with the grid of handles used to
// build it. Grid is indexed [row][column]; rope and chain scenes have one row.
type Scene struct {
	Name   string
	Config *config.Config
	Solver *verlet.Solver
	Grid   [][]verlet.PointID
}

// Builder populates s according to g and returns the handle grid.
type Builder func(s *verlet.Solver, g config.GridConfig) ([][]verlet.PointID, error)

var builders = map[string]Builder{
	"cloth": Cloth,
	"rope":  Rope,
	"chain": Chain,
}

func Names() []string {
	return config.Scenes
}

// Build validates cfg, creates a solver and lays out the configured scene.
func Build(cfg *config.Config, logger *slog.Logger, opts ...verlet.Option) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build, ok := builders[cfg.Scene]
	if !ok {
		return nil, fmt.Errorf("unknown scene: %s", cfg.Scene)
	}

	all := append(cfg.SolverOptions(), verlet.WithLogger(logger))
	all = append(all, opts...)
	s, err := verlet.New(cfg.Solver.Iterations, all...)
	if err != nil {
		return nil, err
	}

	grid, err := build(s, cfg.Grid)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", cfg.Scene, err)
	}
	return &Scene{Name: cfg.Scene, Config: cfg, Solver: s, Grid: grid}, nil
}

// Cloth lays out a Width x Height sheet hanging in the XY plane from the
// origin downwards. Every LockEvery-th point of the top row is locked, and each
// point links to its right and lower neighbours.
func Cloth(s *verlet.Solver, g config.GridConfig) ([][]verlet.PointID, error) {
	grid := make([][]verlet.PointID, g.Height)
	for y := 0; y < g.Height; y++ {
		grid[y] = make([]verlet.PointID, g.Width)
		for x := 0; x < g.Width; x++ {
			pos := vec.New(float64(x)*g.Spacing, -float64(y)*g.Spacing, 0)
			locked := y == 0 && g.LockEvery > 0 && x%g.LockEvery == 0
			id, err := s.AddPointMass(pos, g.Mass, locked)
			if err != nil {
				return nil, err
			}
			grid[y][x] = id
		}
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if x+1 < g.Width {
				if _, err := s.CreateLink(grid[y][x], grid[y][x+1]); err != nil {
					return nil, err
				}
			}
			if y+1 < g.Height {
				if _, err := s.CreateLink(grid[y][x], grid[y+1][x]); err != nil {
					return nil, err
				}
			}
		}
	}
	return grid, nil
}

// Rope lays out Width points along +X with the first one locked, so the rope
// swings down from horizontal.
func Rope(s *verlet.Solver, g config.GridConfig) ([][]verlet.PointID, error) {
	row := make([]verlet.PointID, g.Width)
	for i := range row {
		id, err := s.AddPointMass(vec.New(float64(i)*g.Spacing, 0, 0), g.Mass, i == 0)
		if err != nil {
			return nil, err
		}
		row[i] = id
		if i > 0 {
			if _, err := s.CreateLink(row[i-1], id); err != nil {
				return nil, err
			}
		}
	}
	return [][]verlet.PointID{row}, nil
}

// Chain lays out Width points along +X locked at both ends. Links are
// Slack times the spacing long, so a slack above one makes the chain sag.
func Chain(s *verlet.Solver, g config.GridConfig) ([][]verlet.PointID, error) {
	rest := g.Spacing * g.Slack
	row := make([]verlet.PointID, g.Width)
	for i := range row {
		locked := i == 0 || i == g.Width-1
		id, err := s.AddPointMass(vec.New(float64(i)*g.Spacing, 0, 0), g.Mass, locked)
		if err != nil {
			return nil, err
		}
		row[i] = id
		if i > 0 {
			if _, err := s.CreateLinkWithLength(row[i-1], id, rest); err != nil {
				return nil, err
			}
		}
	}
	return [][]verlet.PointID{row}, nil
}

// Tracked returns the grid point selected by the track config. Negative
// coordinates count back from the last row or column.
func (sc *Scene) Tracked() (verlet.PointID, bool) {
	if len(sc.Grid) == 0 {
		return verlet.PointID{}, false
	}
	y := wrap(sc.Config.Track.Y, len(sc.Grid))
	if y < 0 {
		return verlet.PointID{}, false
	}
	x := wrap(sc.Config.Track.X, len(sc.Grid[y]))
	if x < 0 {
		return verlet.PointID{}, false
	}
	return sc.Grid[y][x], true
}

func wrap(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return -1
	}
	return i
}

// Tear breaks up to count links whose segments pass within radius of (x, y),
// and returns how many were broken.
func (sc *Scene) Tear(x, y, radius float64, count int) (int, error) {
	at := vec.New(x, y, 0)
	broken := 0
	for broken < count {
		_, found, err := sc.Solver.BreakLinkNear(at, radius)
		if err != nil {
			return broken, err
		}
		if !found {
			break
		}
		broken++
	}
	return broken, nil
}

// Center is the midpoint of the scene's initial layout.
func (sc *Scene) Center() vec.Vec3 {
	g := sc.Config.Grid
	w := float64(g.Width-1) * g.Spacing
	h := 0.0
	if sc.Name == "cloth" {
		h = float64(g.Height-1) * g.Spacing
	}
	return vec.New(w/2, -h/2, 0)
}

// Reset rebuilds the scene from its config into a fresh solver.
func (sc *Scene) Reset(logger *slog.Logger, opts ...verlet.Option) (*Scene, error) {
	return Build(sc.Config, logger, opts...)
}
