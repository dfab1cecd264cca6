package verlet

import (
	"math"

	"github.com/san-kum/tethersim/internal/vec"
)

// PointMass is the per-point simulation state.
type PointMass struct {
	Position         vec.Vec3
	PreviousPosition vec.Vec3
	Force            vec.Vec3
	Mass             float64
	Locked           bool
}

// Velocity returns the implicit per-step displacement.
func (p PointMass) Velocity() vec.Vec3 {
	return p.Position.Sub(p.PreviousPosition)
}

// Points is the point-mass store. It is not safe for concurrent use; the
// Solver serialises access to it.
type Points struct {
	arena arena[PointMass]
	// unlink is installed by the graph built over this store.
	unlink func(PointID) error
}

func NewPoints() *Points {
	return &Points{arena: newArena[PointMass](KindPoint)}
}

func validMass(m float64) bool {
	return m > 0 && !math.IsInf(m, 0) && !math.IsNaN(m)
}

// Add creates a point mass at rest at pos.
func (ps *Points) Add(pos vec.Vec3, mass float64, locked bool) (PointID, error) {
	if !validMass(mass) {
		return PointID{}, ErrInvalidMass
	}
	if !pos.IsFinite() {
		return PointID{}, ErrNonFinitePosition
	}
	idx, gen := ps.arena.insert(PointMass{
		Position:         pos,
		PreviousPosition: pos,
		Mass:             mass,
		Locked:           locked,
	})
	return PointID{index: idx, gen: gen}, nil
}

// Remove invalidates id. Links incident to id in the graph built over this
// store are disconnected first. Other handles are unaffected.
func (ps *Points) Remove(id PointID) error {
	if _, err := ps.ref(id); err != nil {
		return err
	}
	if ps.unlink != nil {
		if err := ps.unlink(id); err != nil {
			return err
		}
	}
	_, err := ps.arena.remove(id.index, id.gen)
	return err
}

func (ps *Points) ref(id PointID) (*PointMass, error) {
	return ps.arena.get(id.index, id.gen)
}

func (ps *Points) Valid(id PointID) bool {
	_, err := ps.ref(id)
	return err == nil
}

func (ps *Points) Get(id PointID) (PointMass, error) {
	p, err := ps.ref(id)
	if err != nil {
		return PointMass{}, err
	}
	return *p, nil
}

func (ps *Points) Position(id PointID) (vec.Vec3, error) {
	p, err := ps.ref(id)
	if err != nil {
		return vec.Zero, err
	}
	return p.Position, nil
}

func (ps *Points) SetPosition(id PointID, pos vec.Vec3) error {
	if !pos.IsFinite() {
		return ErrNonFinitePosition
	}
	p, err := ps.ref(id)
	if err != nil {
		return err
	}
	p.Position = pos
	return nil
}

func (ps *Points) PreviousPosition(id PointID) (vec.Vec3, error) {
	p, err := ps.ref(id)
	if err != nil {
		return vec.Zero, err
	}
	return p.PreviousPosition, nil
}

func (ps *Points) SetPreviousPosition(id PointID, pos vec.Vec3) error {
	if !pos.IsFinite() {
		return ErrNonFinitePosition
	}
	p, err := ps.ref(id)
	if err != nil {
		return err
	}
	p.PreviousPosition = pos
	return nil
}

func (ps *Points) Force(id PointID) (vec.Vec3, error) {
	p, err := ps.ref(id)
	if err != nil {
		return vec.Zero, err
	}
	return p.Force, nil
}

func (ps *Points) SetForce(id PointID, f vec.Vec3) error {
	if !f.IsFinite() {
		return ErrNonFiniteForce
	}
	p, err := ps.ref(id)
	if err != nil {
		return err
	}
	p.Force = f
	return nil
}

// AddForce accumulates f onto the point's force until the next integration.
func (ps *Points) AddForce(id PointID, f vec.Vec3) error {
	if !f.IsFinite() {
		return ErrNonFiniteForce
	}
	p, err := ps.ref(id)
	if err != nil {
		return err
	}
	p.Force = p.Force.Add(f)
	return nil
}

func (ps *Points) AddForceAll(f vec.Vec3) error {
	if !f.IsFinite() {
		return ErrNonFiniteForce
	}
	ps.arena.each(func(_, _ uint32, p *PointMass) {
		p.Force = p.Force.Add(f)
	})
	return nil
}

func (ps *Points) Mass(id PointID) (float64, error) {
	p, err := ps.ref(id)
	if err != nil {
		return 0, err
	}
	return p.Mass, nil
}

func (ps *Points) SetMass(id PointID, mass float64) error {
	if !validMass(mass) {
		return ErrInvalidMass
	}
	p, err := ps.ref(id)
	if err != nil {
		return err
	}
	p.Mass = mass
	return nil
}

func (ps *Points) Locked(id PointID) (bool, error) {
	p, err := ps.ref(id)
	if err != nil {
		return false, err
	}
	return p.Locked, nil
}

func (ps *Points) SetLocked(id PointID, locked bool) error {
	p, err := ps.ref(id)
	if err != nil {
		return err
	}
	p.Locked = locked
	return nil
}

func (ps *Points) Len() int { return ps.arena.live }

// IDs returns live handles in ascending slot order.
func (ps *Points) IDs() []PointID {
	ids := make([]PointID, 0, ps.arena.live)
	ps.arena.each(func(idx, gen uint32, _ *PointMass) {
		ids = append(ids, PointID{index: idx, gen: gen})
	})
	return ids
}

// slots exposes the backing slice for range-partitioned parallel passes.
func (ps *Points) slots() []slot[PointMass] {
	return ps.arena.slots
}
