package metrics

import "github.com/san-kum/tethersim/internal/verlet"

// Metric accumulates a scalar over the snapshots of a run.
type Metric interface {
	Name() string
	Observe(snap verlet.Snapshot)
	Value() float64
	Reset()
}

// Defaults is the metric set recorded for every run.
func Defaults(gravity float64, dt float64) []Metric {
	return []Metric{
		NewMaxStrain(),
		NewMeanStretch(),
		NewBroken(),
		NewEnergy(gravity, dt),
		NewEnergyDrift(gravity, dt),
	}
}

// Values collects the current value of every metric by name.
func Values(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// MaxStrain is the largest relative stretch of any link in any snapshot.
type MaxStrain struct {
	max float64
}

func NewMaxStrain() *MaxStrain { return &MaxStrain{} }

func (m *MaxStrain) Name() string { return "max_strain" }

func (m *MaxStrain) Observe(snap verlet.Snapshot) {
	for _, l := range snap.Links {
		if s := l.Strain(); s > m.max {
			m.max = s
		}
	}
}

func (m *MaxStrain) Value() float64 { return m.max }

func (m *MaxStrain) Reset() { m.max = 0 }

// MeanStretch averages the mean absolute link strain over every snapshot.
type MeanStretch struct {
	sum     float64
	samples int
}

func NewMeanStretch() *MeanStretch { return &MeanStretch{} }

func (m *MeanStretch) Name() string { return "mean_stretch" }

func (m *MeanStretch) Observe(snap verlet.Snapshot) {
	if len(snap.Links) == 0 {
		return
	}
	total := 0.0
	for _, l := range snap.Links {
		s := l.Strain()
		if s < 0 {
			s = -s
		}
		total += s
	}
	m.sum += total / float64(len(snap.Links))
	m.samples++
}

func (m *MeanStretch) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanStretch) Reset() {
	m.sum = 0
	m.samples = 0
}

// Broken counts links lost since the first observed snapshot.
type Broken struct {
	initial int
	current int
	seen    bool
}

func NewBroken() *Broken { return &Broken{} }

func (b *Broken) Name() string { return "broken_links" }

func (b *Broken) Observe(snap verlet.Snapshot) {
	if !b.seen {
		b.initial = len(snap.Links)
		b.seen = true
	}
	b.current = len(snap.Links)
}

func (b *Broken) Value() float64 {
	if b.current > b.initial {
		return 0
	}
	return float64(b.initial - b.current)
}

func (b *Broken) Reset() {
	b.initial, b.current, b.seen = 0, 0, false
}
