package verlet

import "github.com/san-kum/tethersim/internal/vec"

func (s *Solver) Position(p PointID) (vec.Vec3, error) {
	var pos vec.Vec3
	err := s.read(func() error {
		var err error
		pos, err = s.points.Position(p)
		return err
	})
	return pos, err
}

func (s *Solver) Point(p PointID) (PointMass, error) {
	var pm PointMass
	err := s.read(func() error {
		var err error
		pm, err = s.points.Get(p)
		return err
	})
	return pm, err
}

func (s *Solver) Link(l LinkID) (Link, error) {
	var link Link
	err := s.read(func() error {
		var err error
		link, err = s.graph.Link(l)
		return err
	})
	return link, err
}

func (s *Solver) Neighbors(p PointID) ([]LinkID, error) {
	var ids []LinkID
	err := s.read(func() error {
		var err error
		ids, err = s.graph.Neighbors(p)
		return err
	})
	return ids, err
}

func (s *Solver) PointCount() (int, error) {
	var n int
	err := s.read(func() error {
		n = s.points.Len()
		return nil
	})
	return n, err
}

func (s *Solver) LinkCount() (int, error) {
	var n int
	err := s.read(func() error {
		n = s.graph.Len()
		return nil
	})
	return n, err
}

// Points enumerates every live point mass in slot order.
func (s *Solver) Points() ([]PointState, error) {
	var out []PointState
	err := s.read(func() error {
		out = s.pointStates()
		return nil
	})
	return out, err
}

// Links enumerates every live link in slot order with endpoint positions.
func (s *Solver) Links() ([]LinkState, error) {
	var out []LinkState
	err := s.read(func() error {
		out = s.linkStates()
		return nil
	})
	return out, err
}

func (s *Solver) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.read(func() error {
		snap = Snapshot{
			Step:   s.steps,
			Time:   s.time,
			Points: s.pointStates(),
			Links:  s.linkStates(),
		}
		return nil
	})
	return snap, err
}

func (s *Solver) pointStates() []PointState {
	out := make([]PointState, 0, s.points.Len())
	s.points.arena.each(func(idx, gen uint32, p *PointMass) {
		out = append(out, PointState{
			ID:           PointID{index: idx, gen: gen},
			Position:     p.Position,
			Displacement: p.Velocity(),
			Mass:         p.Mass,
			Locked:       p.Locked,
		})
	})
	return out
}

func (s *Solver) linkStates() []LinkState {
	out := make([]LinkState, 0, s.graph.Len())
	s.graph.arena.each(func(idx, gen uint32, l *Link) {
		a, errA := s.points.ref(l.A)
		b, errB := s.points.ref(l.B)
		if errA != nil || errB != nil {
			return
		}
		out = append(out, LinkState{
			ID:         LinkID{index: idx, gen: gen},
			A:          l.A,
			B:          l.B,
			PosA:       a.Position,
			PosB:       b.Position,
			RestLength: l.RestLength,
			Length:     vec.Dist(a.Position, b.Position),
		})
	})
	return out
}
