package verlet

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/san-kum/tethersim/internal/vec"
)

func newTestSolver(t *testing.T, opts ...Option) *Solver {
	t.Helper()
	s, err := New(7, opts...)
	if err != nil {
		t.Fatalf("new solver: %v", err)
	}
	return s
}

func TestNew_RejectsBadIterations(t *testing.T) {
	for _, n := range []int{0, -3} {
		if _, err := New(n); !errors.Is(err, ErrInvalidIterations) {
			t.Errorf("New(%d): expected ErrInvalidIterations, got %v", n, err)
		}
	}
	s := newTestSolver(t)
	if err := s.SetIterations(0); !errors.Is(err, ErrInvalidIterations) {
		t.Errorf("SetIterations(0): expected ErrInvalidIterations, got %v", err)
	}
}

func TestSolver_StepClearsForces(t *testing.T) {
	s := newTestSolver(t)
	a, _ := s.AddPointMass(vec.Zero, 1, false)
	b, _ := s.AddPointMass(vec.New(1, 0, 0), 1, true)

	_ = s.AddForce(a, vec.New(0, 5, 0))
	_ = s.AddForceAll(vec.New(1, 1, 1))

	if _, err := s.Step(0.01); err != nil {
		t.Fatal(err)
	}

	for _, id := range []PointID{a, b} {
		p, err := s.Point(id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Force != vec.Zero {
			t.Errorf("%v: expected zero force after step, got %v", id, p.Force)
		}
	}
}

func TestSolver_StepStats(t *testing.T) {
	s := newTestSolver(t, WithGravity(vec.New(0, -9.8, 0)))
	a, _ := s.AddPointMass(vec.Zero, 1, true)
	b, _ := s.AddPointMass(vec.New(0, -1, 0), 1, false)
	_, _ = s.CreateLink(a, b)

	var stats StepStats
	for i := 0; i < 3; i++ {
		var err error
		if stats, err = s.Step(0.02); err != nil {
			t.Fatal(err)
		}
	}

	if stats.Step != 3 || s.StepCount() != 3 {
		t.Errorf("expected step 3, got %d / %d", stats.Step, s.StepCount())
	}
	if math.Abs(stats.Time-0.06) > 1e-12 || math.Abs(s.Time()-0.06) > 1e-12 {
		t.Errorf("expected time 0.06, got %v / %v", stats.Time, s.Time())
	}
	if stats.Points != 2 || stats.Links != 1 || stats.Iterations != 7 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSolver_PendulumHoldsLength(t *testing.T) {
	s := newTestSolver(t, WithGravity(vec.New(0, -9.8, 0)))
	pivot, _ := s.AddPointMass(vec.Zero, 1, true)
	bob, _ := s.AddPointMass(vec.New(1, 0, 0), 1, false)
	_, _ = s.CreateLink(pivot, bob)

	for i := 0; i < 600; i++ {
		if _, err := s.Step(1.0 / 60); err != nil {
			t.Fatal(err)
		}
		pos, _ := s.Position(bob)
		// One locked end halves the error per pass.
		if d := pos.Len(); math.Abs(d-1) > 1e-2 {
			t.Fatalf("step %d: pendulum length %v", i, d)
		}
	}
	pos, _ := s.Position(pivot)
	if pos != vec.Zero {
		t.Errorf("pivot moved to %v", pos)
	}
}

func TestSolver_RejectsNegativeDt(t *testing.T) {
	s := newTestSolver(t)
	if _, err := s.Step(-1); !errors.Is(err, ErrNegativeDt) {
		t.Errorf("Step: expected ErrNegativeDt, got %v", err)
	}
	if _, err := s.StepAsync(math.NaN()); !errors.Is(err, ErrNegativeDt) {
		t.Errorf("StepAsync: expected ErrNegativeDt, got %v", err)
	}
	if s.InFlight() || s.StepCount() != 0 {
		t.Error("rejected step must not start")
	}
}

func TestSolver_InFlightRejectsAccess(t *testing.T) {
	s := newTestSolver(t)
	a, _ := s.AddPointMass(vec.Zero, 1, false)
	b, _ := s.AddPointMass(vec.New(1, 0, 0), 1, false)
	l, _ := s.CreateLink(a, b)

	iterations, err := s.begin(0.01)
	if err != nil {
		t.Fatal(err)
	}
	if !s.InFlight() {
		t.Fatal("expected step in flight")
	}

	calls := map[string]func() error{
		"Step":          func() error { _, err := s.Step(0.01); return err },
		"StepAsync":     func() error { _, err := s.StepAsync(0.01); return err },
		"AddPointMass":  func() error { _, err := s.AddPointMass(vec.Zero, 1, false); return err },
		"RemovePoint":   func() error { return s.RemovePointMass(a) },
		"CreateLink":    func() error { _, err := s.CreateLinkWithLength(a, b, 2); return err },
		"BreakLink":     func() error { _, err := s.BreakLink(l); return err },
		"BreakLinkNear": func() error { _, _, err := s.BreakLinkNear(vec.Zero, 1); return err },
		"AddForce":      func() error { return s.AddForce(a, vec.Up) },
		"AddForceAll":   func() error { return s.AddForceAll(vec.Up) },
		"SetLocked":     func() error { return s.SetLocked(a, true) },
		"Teleport":      func() error { return s.Teleport(a, vec.Up) },
		"SetGravity":    func() error { return s.SetGravity(vec.Down) },
		"Position":      func() error { _, err := s.Position(a); return err },
		"Link":          func() error { _, err := s.Link(l); return err },
		"Neighbors":     func() error { _, err := s.Neighbors(a); return err },
		"Points":        func() error { _, err := s.Points(); return err },
		"Links":         func() error { _, err := s.Links(); return err },
		"Snapshot":      func() error { _, err := s.Snapshot(); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrStepInFlight) {
			t.Errorf("%s: expected ErrStepInFlight, got %v", name, err)
		}
	}

	s.run(0.01, iterations)

	if s.InFlight() {
		t.Fatal("expected step finished")
	}
	if n, err := s.PointCount(); err != nil || n != 2 {
		t.Errorf("rejected calls must not mutate: %d points, %v", n, err)
	}
	if n, _ := s.LinkCount(); n != 1 {
		t.Errorf("rejected calls must not mutate: %d links", n)
	}
	if err := s.AddForce(a, vec.Up); err != nil {
		t.Errorf("expected mutation accepted after step, got %v", err)
	}
}

func TestSolver_StepAsyncMatchesStep(t *testing.T) {
	build := func() (*Solver, PointID) {
		s := newTestSolver(t, WithGravity(vec.New(0, -9.8, 0)))
		a, _ := s.AddPointMass(vec.Zero, 1, true)
		b, _ := s.AddPointMass(vec.New(0.7, -0.2, 0.1), 2, false)
		c, _ := s.AddPointMass(vec.New(1.4, -0.1, 0), 1, false)
		_, _ = s.CreateLink(a, b)
		_, _ = s.CreateLink(b, c)
		return s, c
	}

	sync1, c1 := build()
	async, c2 := build()

	for i := 0; i < 50; i++ {
		want, err := sync1.Step(0.016)
		if err != nil {
			t.Fatal(err)
		}
		p, err := async.StepAsync(0.016)
		if err != nil {
			t.Fatal(err)
		}
		got := p.Wait()
		if got.Step != want.Step || got.MaxError != want.MaxError {
			t.Fatalf("step %d: stats differ: %+v vs %+v", i, got, want)
		}
	}

	if async.InFlight() {
		t.Fatal("solver still in flight after Wait")
	}
	a, _ := sync1.Position(c1)
	b, _ := async.Position(c2)
	if a != b {
		t.Errorf("async diverged: %v vs %v", a, b)
	}
}

func TestSolver_ConcurrentCallersSeeOnlyInFlight(t *testing.T) {
	s := newTestSolver(t, WithGravity(vec.New(0, -9.8, 0)))
	var ids []PointID
	for i := 0; i < 64; i++ {
		id, _ := s.AddPointMass(vec.New(float64(i), 0, 0), 1, i == 0)
		if i > 0 {
			_, _ = s.CreateLink(ids[i-1], id)
		}
		ids = append(ids, id)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 1024)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				var err error
				switch (w + i) % 4 {
				case 0:
					_, err = s.Step(0.01)
				case 1:
					err = s.AddForce(ids[i%len(ids)], vec.New(0, 1, 0))
				case 2:
					_, err = s.Snapshot()
				case 3:
					var p *Pending
					if p, err = s.StepAsync(0.01); err == nil {
						p.Wait()
					}
				}
				if err != nil && !errors.Is(err, ErrStepInFlight) {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range snap.Points {
		if !p.Position.IsFinite() {
			t.Fatalf("non-finite position %v", p.Position)
		}
	}
}

func TestSolver_Observers(t *testing.T) {
	var seen []int
	s := newTestSolver(t, WithObserver(ObserverFunc(func(st StepStats) {
		seen = append(seen, st.Step)
	})))

	var inFlightDuringObserver bool
	s.AddObserver(ObserverFunc(func(StepStats) {
		inFlightDuringObserver = s.InFlight()
		// Observers may query the solver.
		if _, err := s.Snapshot(); err != nil {
			t.Errorf("observer snapshot failed: %v", err)
		}
	}))

	for i := 0; i < 3; i++ {
		_, _ = s.Step(0.1)
	}

	if len(seen) != 3 || seen[2] != 3 {
		t.Errorf("expected observer calls [1 2 3], got %v", seen)
	}
	if inFlightDuringObserver {
		t.Error("observers should run after the exclusive phase ends")
	}
}

func TestSolver_RemovePointMassCascades(t *testing.T) {
	s := newTestSolver(t)
	hub, _ := s.AddPointMass(vec.Zero, 1, false)
	var spokes []PointID
	var links []LinkID
	for i := 0; i < 4; i++ {
		p, _ := s.AddPointMass(vec.New(float64(i+1), 0, 0), 1, false)
		l, _ := s.CreateLink(hub, p)
		spokes = append(spokes, p)
		links = append(links, l)
	}
	outer, _ := s.CreateLink(spokes[0], spokes[1])

	if err := s.RemovePointMass(hub); err != nil {
		t.Fatal(err)
	}

	for _, l := range links {
		if _, err := s.Link(l); !errors.Is(err, ErrStaleHandle) {
			t.Errorf("link %v: expected ErrStaleHandle, got %v", l, err)
		}
	}
	if _, err := s.Link(outer); err != nil {
		t.Errorf("unrelated link removed: %v", err)
	}
	for _, p := range spokes {
		n, err := s.Neighbors(p)
		if err != nil {
			t.Fatalf("spoke %v removed: %v", p, err)
		}
		for _, l := range n {
			if l != outer {
				t.Errorf("spoke %v still references %v", p, l)
			}
		}
	}
	if _, err := s.Position(hub); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("expected ErrStaleHandle, got %v", err)
	}
	if err := s.RemovePointMass(hub); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("double remove: expected ErrStaleHandle, got %v", err)
	}
}

func TestSolver_BreakLinkIsolationPolicy(t *testing.T) {
	tests := []struct {
		policy      IsolationPolicy
		wantRemoved int
		wantPoints  int
	}{
		{KeepIsolated, 0, 3},
		{RemoveIsolated, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			s := newTestSolver(t, WithIsolationPolicy(tt.policy))
			a, _ := s.AddPointMass(vec.Zero, 1, false)
			b, _ := s.AddPointMass(vec.New(1, 0, 0), 1, false)
			c, _ := s.AddPointMass(vec.New(2, 0, 0), 1, false)
			_, _ = s.CreateLink(a, b)
			bc, _ := s.CreateLink(b, c)

			removed, err := s.BreakLink(bc)
			if err != nil {
				t.Fatal(err)
			}
			if len(removed) != tt.wantRemoved {
				t.Errorf("expected %d removed, got %v", tt.wantRemoved, removed)
			}
			if tt.wantRemoved == 1 && removed[0] != c {
				t.Errorf("expected %v removed, got %v", c, removed[0])
			}
			if n, _ := s.PointCount(); n != tt.wantPoints {
				t.Errorf("expected %d points, got %d", tt.wantPoints, n)
			}
			if _, err := s.Position(b); err != nil {
				t.Errorf("b still linked and must survive: %v", err)
			}
		})
	}
}

func TestSolver_BreakLinkNear(t *testing.T) {
	s := newTestSolver(t)
	a, _ := s.AddPointMass(vec.Zero, 1, true)
	b, _ := s.AddPointMass(vec.New(2, 0, 0), 1, false)
	c, _ := s.AddPointMass(vec.New(2, 2, 0), 1, false)
	ab, _ := s.CreateLink(a, b)
	bc, _ := s.CreateLink(b, c)

	if _, found, err := s.BreakLinkNear(vec.New(1, 3, 0), 0.5); err != nil || found {
		t.Errorf("expected no hit, got found=%v err=%v", found, err)
	}

	hit, found, err := s.BreakLinkNear(vec.New(1, 0.2, 0), 0.5)
	if err != nil || !found || hit != ab {
		t.Fatalf("expected %v broken, got %v found=%v err=%v", ab, hit, found, err)
	}
	if _, err := s.Link(ab); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("expected broken link stale, got %v", err)
	}
	if _, err := s.Link(bc); err != nil {
		t.Errorf("expected %v intact: %v", bc, err)
	}

	// Past the segment end the closest point clamps to the endpoint.
	if _, found, _ := s.BreakLinkNear(vec.New(2, 2.6, 0), 0.5); found {
		t.Error("point beyond the clamped endpoint should not hit")
	}
}

func TestSolver_AddAndConnect(t *testing.T) {
	s := newTestSolver(t)
	anchor, _ := s.AddPointMass(vec.Zero, 1, true)

	p, l, err := s.AddAndConnect(vec.New(0, -2, 0), 1, anchor)
	if err != nil {
		t.Fatal(err)
	}
	link, _ := s.Link(l)
	if link.RestLength != 2 || link.A != p || link.B != anchor {
		t.Errorf("unexpected link %+v", link)
	}

	_ = s.RemovePointMass(anchor)
	if _, _, err := s.AddAndConnect(vec.Zero, 1, anchor); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("expected ErrStaleHandle, got %v", err)
	}
	if n, _ := s.PointCount(); n != 1 {
		t.Errorf("failed AddAndConnect must not add a point, got %d", n)
	}
}

func TestSolver_ToggleLockAndTeleport(t *testing.T) {
	s := newTestSolver(t)
	p, _ := s.AddPointMass(vec.Zero, 1, false)

	locked, err := s.ToggleLock(p)
	if err != nil || !locked {
		t.Errorf("expected locked, got %v %v", locked, err)
	}
	locked, _ = s.ToggleLock(p)
	if locked {
		t.Error("expected unlocked after second toggle")
	}

	if err := s.Teleport(p, vec.New(3, 3, 3)); err != nil {
		t.Fatal(err)
	}
	pm, _ := s.Point(p)
	if pm.Velocity() != vec.Zero || pm.Position != vec.New(3, 3, 3) {
		t.Errorf("teleport should leave the point at rest: %+v", pm)
	}
	if err := s.Teleport(p, vec.New(math.Inf(1), 0, 0)); !errors.Is(err, ErrNonFinitePosition) {
		t.Errorf("expected ErrNonFinitePosition, got %v", err)
	}
}

func TestSolver_SnapshotIsConsistent(t *testing.T) {
	s := newTestSolver(t)
	a, _ := s.AddPointMass(vec.Zero, 1, true)
	b, _ := s.AddPointMass(vec.New(3, 0, 0), 1, false)
	_, _ = s.CreateLinkWithLength(a, b, 2)

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Points) != 2 || len(snap.Links) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	ls := snap.Links[0]
	if ls.Length != 3 || ls.PosB != vec.New(3, 0, 0) {
		t.Errorf("unexpected link state %+v", ls)
	}
	if math.Abs(ls.Strain()-0.5) > 1e-12 {
		t.Errorf("expected strain 0.5, got %v", ls.Strain())
	}
}

func TestIsolationPolicy_Parse(t *testing.T) {
	tests := []struct {
		in      string
		want    IsolationPolicy
		wantErr bool
	}{
		{"", KeepIsolated, false},
		{"keep", KeepIsolated, false},
		{"remove", RemoveIsolated, false},
		{"drop", KeepIsolated, true},
	}
	for _, tt := range tests {
		got, err := ParseIsolationPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseIsolationPolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestHandle_TextRoundTrip(t *testing.T) {
	s := newTestSolver(t)
	p, _ := s.AddPointMass(vec.Zero, 1, false)

	b, _ := p.MarshalText()
	var back PointID
	if err := back.UnmarshalText(b); err != nil {
		t.Fatal(err)
	}
	if back != p {
		t.Errorf("expected %v, got %v", p, back)
	}
}

func TestHandle_UnmarshalTextRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "p", "p3", "p3.", "p.1", "p3.1garbage", "p3.1 ", "l3.1", "p-1.1", "p3.1.2", "p99999999999.1"} {
		var id PointID
		if err := id.UnmarshalText([]byte(in)); err == nil {
			t.Errorf("%q: expected error, got %v", in, id)
		}
	}
	for _, in := range []string{"l2", "l2.1x", "p2.1"} {
		var id LinkID
		if err := id.UnmarshalText([]byte(in)); err == nil {
			t.Errorf("%q: expected error, got %v", in, id)
		}
	}

	var id LinkID
	if err := id.UnmarshalText([]byte("l4.2")); err != nil || id.index != 4 || id.gen != 2 {
		t.Errorf("expected l4.2, got %v (%v)", id, err)
	}
}

func TestSolver_NonFiniteForcesRejected(t *testing.T) {
	s := newTestSolver(t)
	a, _ := s.AddPointMass(vec.Zero, 1, false)

	if err := s.AddForce(a, vec.New(math.NaN(), 0, 0)); !errors.Is(err, ErrNonFiniteForce) {
		t.Errorf("AddForce: expected ErrNonFiniteForce, got %v", err)
	}
	if err := s.AddForceAll(vec.New(0, math.Inf(1), 0)); !errors.Is(err, ErrNonFiniteForce) {
		t.Errorf("AddForceAll: expected ErrNonFiniteForce, got %v", err)
	}
	if _, err := s.Step(0.01); err != nil {
		t.Fatal(err)
	}
	if pos, _ := s.Position(a); !pos.IsFinite() || pos != vec.Zero {
		t.Errorf("expected point at rest at origin, got %v", pos)
	}
}

func TestSolver_NextStepWaitsForObservers(t *testing.T) {
	s := newTestSolver(t)
	_, _ = s.AddPointMass(vec.Zero, 1, false)

	var (
		nestedErr error
		count     int
	)
	s.AddObserver(ObserverFunc(func(st StepStats) {
		_, nestedErr = s.Step(0.01)
		snap, err := s.Snapshot()
		if err != nil {
			t.Errorf("observer snapshot failed: %v", err)
		}
		count = snap.Step
		if snap.Step != st.Step {
			t.Errorf("observer saw step %d, stats say %d", snap.Step, st.Step)
		}
	}))

	if _, err := s.Step(0.01); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(nestedErr, ErrStepInFlight) {
		t.Errorf("step during observers: expected ErrStepInFlight, got %v", nestedErr)
	}
	if count != 1 || s.StepCount() != 1 {
		t.Errorf("expected exactly one step, got %d/%d", count, s.StepCount())
	}
	if _, err := s.Step(0.01); err != nil {
		t.Errorf("step after observers returned: %v", err)
	}
}

func BenchmarkSolver_StepCloth(b *testing.B) {
	s, _ := New(7, WithGravity(vec.New(0, -9.8, 0)))
	const w, h = 64, 32
	grid := make([]PointID, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			id, _ := s.AddPointMass(vec.New(float64(x), float64(-y), 0), 1, y == 0 && x%8 == 0)
			grid[y*w+x] = id
			if x > 0 {
				_, _ = s.CreateLink(grid[y*w+x-1], id)
			}
			if y > 0 {
				_, _ = s.CreateLink(grid[(y-1)*w+x], id)
			}
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Step(1.0 / 60)
	}
}
