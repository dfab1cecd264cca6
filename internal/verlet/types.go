package verlet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/tethersim/internal/vec"
)

// StepStats describes one completed step.
type StepStats struct {
	Step          int
	Dt            float64
	Time          float64
	Points        int
	Links         int
	Iterations    int
	Degenerate    int
	MaxError      float64
	IntegrateTime time.Duration
	RelaxTime     time.Duration
}

// Observer is notified after each completed step, on the stepping goroutine.
type Observer interface {
	OnStep(stats StepStats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StepStats)

func (f ObserverFunc) OnStep(stats StepStats) { f(stats) }

// PointState is a read-only copy of one point mass. Displacement is the
// position change over the last step.
type PointState struct {
	ID           PointID  `json:"id"`
	Position     vec.Vec3 `json:"position"`
	Displacement vec.Vec3 `json:"displacement"`
	Mass         float64  `json:"mass"`
	Locked       bool     `json:"locked"`
}

type LinkState struct {
	ID         LinkID   `json:"id"`
	A          PointID  `json:"a"`
	B          PointID  `json:"b"`
	PosA       vec.Vec3 `json:"pos_a"`
	PosB       vec.Vec3 `json:"pos_b"`
	RestLength float64  `json:"rest_length"`
	Length     float64  `json:"length"`
}

// Strain is the relative deviation from rest length. Zero-length links report
// their absolute length.
func (l LinkState) Strain() float64 {
	if l.RestLength == 0 {
		return l.Length
	}
	return (l.Length - l.RestLength) / l.RestLength
}

// Snapshot is a consistent copy of the network taken between steps.
type Snapshot struct {
	Step   int          `json:"step"`
	Time   float64      `json:"time"`
	Points []PointState `json:"points"`
	Links  []LinkState  `json:"links"`
}

// IsolationPolicy decides what happens to a point mass left without links
// after BreakLink.
type IsolationPolicy int

const (
	KeepIsolated IsolationPolicy = iota
	RemoveIsolated
)

func (p IsolationPolicy) String() string {
	switch p {
	case KeepIsolated:
		return "keep"
	case RemoveIsolated:
		return "remove"
	}
	return fmt.Sprintf("IsolationPolicy(%d)", int(p))
}

func ParseIsolationPolicy(s string) (IsolationPolicy, error) {
	switch s {
	case "", "keep":
		return KeepIsolated, nil
	case "remove":
		return RemoveIsolated, nil
	}
	return KeepIsolated, fmt.Errorf("unknown isolation policy: %s", s)
}

func (p PointID) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PointID) UnmarshalText(b []byte) error {
	idx, gen, err := parseHandle("p", string(b))
	if err != nil {
		return err
	}
	p.index, p.gen = idx, gen
	return nil
}

func (l LinkID) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *LinkID) UnmarshalText(b []byte) error {
	idx, gen, err := parseHandle("l", string(b))
	if err != nil {
		return err
	}
	l.index, l.gen = idx, gen
	return nil
}

// parseHandle parses the whole of "<prefix><index>.<gen>".
func parseHandle(prefix, s string) (uint32, uint32, error) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return 0, 0, fmt.Errorf("malformed handle %q: want prefix %q", s, prefix)
	}
	is, gs, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, 0, fmt.Errorf("malformed handle %q", s)
	}
	idx, err := strconv.ParseUint(is, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed handle %q: %w", s, err)
	}
	gen, err := strconv.ParseUint(gs, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed handle %q: %w", s, err)
	}
	return uint32(idx), uint32(gen), nil
}
