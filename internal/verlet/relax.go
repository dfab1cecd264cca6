package verlet

import (
	"math"

	"github.com/san-kum/tethersim/internal/vec"
)

// RelaxStats summarises one call to Relax.
type RelaxStats struct {
	Passes int
	// Degenerate counts link visits skipped because the endpoints coincided.
	Degenerate int
	// MaxError is the largest |length - rest| seen during the last pass,
	// measured before each link's correction.
	MaxError float64
}

// Relax runs iterations Gauss-Seidel passes over the live links in slot
// order. Each link moves its unlocked endpoints symmetrically about their
// midpoint until they sit RestLength apart; both writes land before the next
// link is visited, so a pass is order dependent. Passes and links within a
// pass run on the calling goroutine only.
func Relax(points *Points, graph *Graph, iterations int) (RelaxStats, error) {
	var stats RelaxStats
	if iterations < 0 {
		return stats, ErrInvalidIterations
	}

	links := graph.arena.slots
	for it := 0; it < iterations; it++ {
		stats.Passes++
		stats.MaxError = 0

		for i := range links {
			s := &links[i]
			if !s.live {
				continue
			}
			link := &s.val

			a, errA := points.ref(link.A)
			b, errB := points.ref(link.B)
			if errA != nil || errB != nil {
				continue
			}
			if a.Locked && b.Locked {
				continue
			}

			diff := a.Position.Sub(b.Position)
			stats.MaxError = math.Max(stats.MaxError, math.Abs(diff.Len()-link.RestLength))

			dir, ok := diff.Normalize()
			if !ok {
				stats.Degenerate++
				continue
			}

			center := vec.Midpoint(a.Position, b.Position)
			offset := dir.Scale(link.RestLength / 2)

			nextA := center.Add(offset)
			nextB := center.Sub(offset)
			if !nextA.IsFinite() || !nextB.IsFinite() {
				stats.Degenerate++
				continue
			}

			if !a.Locked {
				a.Position = nextA
			}
			if !b.Locked {
				b.Position = nextB
			}
		}
	}

	return stats, nil
}
