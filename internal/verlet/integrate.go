package verlet

import (
	"math"

	"github.com/san-kum/tethersim/internal/vec"
)

func validDt(dt float64) bool {
	return dt >= 0 && !math.IsInf(dt, 0) && !math.IsNaN(dt)
}

// Integrate advances every live, unlocked point mass one position-Verlet step
// and clears the force on every live point, locked ones included.
//
//	next = pos + (pos - prev) + force/mass * dt^2
//
// Each point reads only its own state, so slot ranges are integrated in
// parallel across workers.
func Integrate(points *Points, dt float64, workers int) error {
	if !validDt(dt) {
		return ErrNegativeDt
	}

	slots := points.slots()
	dt2 := dt * dt

	ParallelFor(len(slots), workers, func(start, end int) {
		for i := start; i < end; i++ {
			s := &slots[i]
			if !s.live {
				continue
			}
			p := &s.val
			if !p.Locked && dt > 0 {
				acc := p.Force.Scale(1 / p.Mass)
				next := p.Position.Add(p.Position.Sub(p.PreviousPosition)).Add(acc.Scale(dt2))
				p.PreviousPosition = p.Position
				p.Position = next
			}
			p.Force = vec.Zero
		}
	})

	return nil
}

// ApplyGravity adds mass*g to the force of every live, unlocked point.
func ApplyGravity(points *Points, g vec.Vec3, workers int) {
	if g == vec.Zero {
		return
	}
	slots := points.slots()
	ParallelFor(len(slots), workers, func(start, end int) {
		for i := start; i < end; i++ {
			s := &slots[i]
			if !s.live || s.val.Locked {
				continue
			}
			s.val.Force = s.val.Force.Add(g.Scale(s.val.Mass))
		}
	})
}
