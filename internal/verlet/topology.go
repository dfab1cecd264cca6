package verlet

import "github.com/san-kum/tethersim/internal/vec"

func (s *Solver) IsolationPolicy() IsolationPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *Solver) SetIsolationPolicy(p IsolationPolicy) error {
	return s.write(func() error {
		s.policy = p
		return nil
	})
}

func (s *Solver) AddPointMass(pos vec.Vec3, mass float64, locked bool) (PointID, error) {
	var id PointID
	err := s.write(func() error {
		var err error
		id, err = s.points.Add(pos, mass, locked)
		return err
	})
	if err == nil {
		s.logger.Debug("point added", "point", id, "locked", locked)
	}
	return id, err
}

// RemovePointMass disconnects every link incident to p, then removes p.
// Endpoints on the far side of those links are kept regardless of policy.
func (s *Solver) RemovePointMass(p PointID) error {
	var dropped int
	err := s.write(func() error {
		links, err := s.graph.RemovePoint(p)
		dropped = len(links)
		return err
	})
	if err == nil {
		s.logger.Debug("point removed", "point", p, "links", dropped)
	}
	return err
}

// CreateLink links a and b at their current distance.
func (s *Solver) CreateLink(a, b PointID) (LinkID, error) {
	var id LinkID
	err := s.write(func() error {
		var err error
		id, err = s.graph.Connect(a, b)
		return err
	})
	return id, err
}

func (s *Solver) CreateLinkWithLength(a, b PointID, length float64) (LinkID, error) {
	var id LinkID
	err := s.write(func() error {
		var err error
		id, err = s.graph.ConnectWithLength(a, b, length)
		return err
	})
	return id, err
}

// BreakLink removes l. Under RemoveIsolated, an endpoint left with no links is
// removed as well; the removed endpoints are returned.
func (s *Solver) BreakLink(l LinkID) ([]PointID, error) {
	var removed []PointID
	err := s.write(func() error {
		var err error
		removed, err = s.breakLink(l)
		return err
	})
	if err == nil {
		s.logger.Debug("link broken", "link", l, "removed_points", len(removed))
	}
	return removed, err
}

func (s *Solver) breakLink(l LinkID) ([]PointID, error) {
	link, err := s.graph.Disconnect(l)
	if err != nil {
		return nil, err
	}
	if s.policy != RemoveIsolated {
		return nil, nil
	}

	var removed []PointID
	for _, p := range [2]PointID{link.A, link.B} {
		n, err := s.graph.Degree(p)
		if err != nil || n > 0 {
			continue
		}
		if err := s.points.Remove(p); err != nil {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// BreakLinkNear breaks the first link, in slot order, whose segment passes
// within threshold of pos.
func (s *Solver) BreakLinkNear(pos vec.Vec3, threshold float64) (LinkID, bool, error) {
	var (
		hit   LinkID
		found bool
	)
	err := s.write(func() error {
		limit := threshold * threshold
		for _, id := range s.graph.IDs() {
			link, _ := s.graph.Link(id)
			a, errA := s.points.Position(link.A)
			b, errB := s.points.Position(link.B)
			if errA != nil || errB != nil {
				continue
			}
			if vec.DistSq(pos, vec.ClosestOnSegment(pos, a, b)) < limit {
				hit, found = id, true
				_, err := s.breakLink(id)
				return err
			}
		}
		return nil
	})
	return hit, found, err
}

// AddAndConnect creates a point mass at pos and links it to an existing one.
func (s *Solver) AddAndConnect(pos vec.Vec3, mass float64, to PointID) (PointID, LinkID, error) {
	var (
		p PointID
		l LinkID
	)
	err := s.write(func() error {
		if _, err := s.points.ref(to); err != nil {
			return err
		}
		var err error
		if p, err = s.points.Add(pos, mass, false); err != nil {
			return err
		}
		l, err = s.graph.Connect(p, to)
		return err
	})
	return p, l, err
}

func (s *Solver) SetLocked(p PointID, locked bool) error {
	return s.write(func() error {
		return s.points.SetLocked(p, locked)
	})
}

// ToggleLock flips the locked flag of p and returns the new value.
func (s *Solver) ToggleLock(p PointID) (bool, error) {
	var locked bool
	err := s.write(func() error {
		pm, err := s.points.ref(p)
		if err != nil {
			return err
		}
		pm.Locked = !pm.Locked
		locked = pm.Locked
		return nil
	})
	return locked, err
}

func (s *Solver) SetMass(p PointID, mass float64) error {
	return s.write(func() error {
		return s.points.SetMass(p, mass)
	})
}

// Teleport moves p to pos with zero implied velocity.
func (s *Solver) Teleport(p PointID, pos vec.Vec3) error {
	if !pos.IsFinite() {
		return ErrNonFinitePosition
	}
	return s.write(func() error {
		pm, err := s.points.ref(p)
		if err != nil {
			return err
		}
		pm.Position = pos
		pm.PreviousPosition = pos
		return nil
	})
}
