package metrics

import (
	"math"

	"github.com/san-kum/tethersim/internal/verlet"
)

// networkEnergy is the kinetic plus gravitational potential energy of the free
// point masses. Velocity is recovered from the last step's displacement, and
// gravity is the downward magnitude along -Y.
func networkEnergy(snap verlet.Snapshot, gravity, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	total := 0.0
	for _, p := range snap.Points {
		if p.Locked {
			continue
		}
		v := p.Displacement.Scale(1 / dt)
		ke := 0.5 * p.Mass * v.LenSq()
		pe := p.Mass * gravity * p.Position.Y
		total += ke + pe
	}
	return total
}

type Energy struct {
	gravity     float64
	dt          float64
	samples     int
	totalEnergy float64
}

func NewEnergy(gravity, dt float64) *Energy {
	return &Energy{gravity: gravity, dt: dt}
}

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(snap verlet.Snapshot) {
	e.totalEnergy += networkEnergy(snap, e.gravity, e.dt)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest energy change relative to the first snapshot,
// or the absolute change when the run starts at zero energy.
type EnergyDrift struct {
	gravity       float64
	dt            float64
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(gravity, dt float64) *EnergyDrift {
	return &EnergyDrift{gravity: gravity, dt: dt}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(snap verlet.Snapshot) {
	energy := networkEnergy(snap, e.gravity, e.dt)
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	scale := math.Abs(e.initialEnergy)
	if scale == 0 {
		scale = 1
	}
	e.maxDrift = math.Max(e.maxDrift, math.Abs(energy-e.initialEnergy)/scale)
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
