// Package verlet simulates point masses joined by fixed-length links.
//
// The package is built from small pieces that the [Solver] composes:
//
//   - [Points]: arena of point masses addressed by generational [PointID]
//   - [Graph]: arena of links with per-point adjacency, addressed by [LinkID];
//     removing a point from its [Points] disconnects the point's links
//   - [Integrate]: position-Verlet step, parallel across point ranges
//   - [Relax]: Gauss-Seidel length relaxation, single-threaded
//   - [Solver]: topology mutation, force injection and stepping
//
// # Example
//
//	s, _ := verlet.New(7, verlet.WithGravity(vec.New(0, -9.8, 0)))
//	anchor, _ := s.AddPointMass(vec.New(0, 0, 0), 1, true)
//	bob, _ := s.AddPointMass(vec.New(1, 0, 0), 1, false)
//	s.CreateLink(anchor, bob)
//	stats, _ := s.Step(1.0 / 60)
//
// # Thread Safety
//
// Solver methods are safe to call from multiple goroutines. A step is an
// exclusive phase: while one is in flight every query and mutation fails
// with [ErrStepInFlight] rather than blocking or racing. [Points] and
// [Graph] on their own are NOT thread-safe.
package verlet
