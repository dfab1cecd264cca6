package verlet

import (
	"log/slog"
	"sync"
	"time"

	"github.com/san-kum/tethersim/internal/logging"
	"github.com/san-kum/tethersim/internal/vec"
)

// Solver owns the point store and link graph and drives steps over them.
//
// A step runs as an exclusive phase: from the moment Step or StepAsync
// accepts it until it completes, every query and mutation returns
// ErrStepInFlight instead of touching shared state. Observers run after the
// exclusive phase, so they may query the solver, but the next step cannot
// start until every observer has returned.
type Solver struct {
	mu       sync.RWMutex
	inFlight bool
	// stepMu is held from begin until observers return.
	stepMu sync.Mutex

	points *Points
	graph  *Graph

	iterations int
	workers    int
	gravity    vec.Vec3
	policy     IsolationPolicy
	observers  []Observer
	logger     *slog.Logger

	steps int
	time  float64
}

type Option func(*Solver)

func WithWorkers(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithGravity(g vec.Vec3) Option {
	return func(s *Solver) { s.gravity = g }
}

func WithIsolationPolicy(p IsolationPolicy) Option {
	return func(s *Solver) { s.policy = p }
}

func WithObserver(o Observer) Option {
	return func(s *Solver) { s.observers = append(s.observers, o) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty solver relaxing iterations passes per step.
func New(iterations int, opts ...Option) (*Solver, error) {
	if iterations < 1 {
		return nil, ErrInvalidIterations
	}
	points := NewPoints()
	s := &Solver{
		points:     points,
		graph:      NewGraph(points),
		iterations: iterations,
		workers:    DefaultWorkers(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Solver) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.inFlight {
		return ErrStepInFlight
	}
	return fn()
}

func (s *Solver) write(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrStepInFlight
	}
	return fn()
}

func (s *Solver) Iterations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iterations
}

func (s *Solver) SetIterations(n int) error {
	if n < 1 {
		return ErrInvalidIterations
	}
	return s.write(func() error {
		s.iterations = n
		return nil
	})
}

func (s *Solver) Gravity() vec.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gravity
}

func (s *Solver) SetGravity(g vec.Vec3) error {
	return s.write(func() error {
		s.gravity = g
		return nil
	})
}

func (s *Solver) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// AddForce accumulates f on p until the next step consumes it.
func (s *Solver) AddForce(p PointID, f vec.Vec3) error {
	return s.write(func() error {
		return s.points.AddForce(p, f)
	})
}

// AddForceAll accumulates f on every live point mass.
func (s *Solver) AddForceAll(f vec.Vec3) error {
	return s.write(func() error {
		return s.points.AddForceAll(f)
	})
}

// Step runs one full step and returns once positions are final:
// gravity is applied, every point is integrated over dt, and the link graph
// is relaxed for the configured iteration count.
func (s *Solver) Step(dt float64) (StepStats, error) {
	iterations, err := s.begin(dt)
	if err != nil {
		return StepStats{}, err
	}
	return s.run(dt, iterations), nil
}

// Pending is a step running in the background. Results are safe to read
// and mutations are accepted once Done is closed.
type Pending struct {
	done  chan struct{}
	stats StepStats
}

func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the step completes.
func (p *Pending) Wait() StepStats {
	<-p.done
	return p.stats
}

// StepAsync starts a step on a new goroutine. The exclusive phase begins
// before StepAsync returns, so a call made after it observes ErrStepInFlight
// until the step is done. A started step always runs to completion.
func (s *Solver) StepAsync(dt float64) (*Pending, error) {
	iterations, err := s.begin(dt)
	if err != nil {
		return nil, err
	}
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.stats = s.run(dt, iterations)
	}()
	return p, nil
}

func (s *Solver) begin(dt float64) (int, error) {
	if !validDt(dt) {
		return 0, ErrNegativeDt
	}
	if !s.stepMu.TryLock() {
		return 0, ErrStepInFlight
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = true
	return s.iterations, nil
}

func (s *Solver) run(dt float64, iterations int) StepStats {
	start := time.Now()
	ApplyGravity(s.points, s.gravity, s.workers)
	// dt was validated in begin, so Integrate cannot fail here.
	_ = Integrate(s.points, dt, s.workers)
	integrated := time.Now()

	relax, _ := Relax(s.points, s.graph, iterations)
	relaxed := time.Now()

	s.mu.Lock()
	s.steps++
	s.time += dt
	stats := StepStats{
		Step:          s.steps,
		Dt:            dt,
		Time:          s.time,
		Points:        s.points.Len(),
		Links:         s.graph.Len(),
		Iterations:    iterations,
		Degenerate:    relax.Degenerate,
		MaxError:      relax.MaxError,
		IntegrateTime: integrated.Sub(start),
		RelaxTime:     relaxed.Sub(integrated),
	}
	observers := append([]Observer(nil), s.observers...)
	s.inFlight = false
	s.mu.Unlock()

	if stats.Degenerate > 0 {
		s.logger.Debug("skipped degenerate links", "step", stats.Step, "count", stats.Degenerate)
	}
	for _, o := range observers {
		o.OnStep(stats)
	}
	s.stepMu.Unlock()
	return stats
}

func (s *Solver) StepCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

// Time is the accumulated simulated time in seconds.
func (s *Solver) Time() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.time
}

// InFlight reports whether a step currently holds the exclusive phase.
func (s *Solver) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}
