package verlet_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/tethersim/internal/vec"
	"github.com/san-kum/tethersim/internal/verlet"
)

var _ = Describe("Solver", func() {
	var (
		s       *verlet.Solver
		gravity = vec.New(0, -9.8, 0)
	)

	BeforeEach(func() {
		var err error
		s, err = verlet.New(7, verlet.WithGravity(gravity), verlet.WithWorkers(2))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("a rope hanging from one locked end", func() {
		var rope []verlet.PointID

		BeforeEach(func() {
			rope = nil
			for i := 0; i < 10; i++ {
				id, err := s.AddPointMass(vec.New(float64(i)*0.5, 0, 0), 1, i == 0)
				Expect(err).NotTo(HaveOccurred())
				if i > 0 {
					_, err = s.CreateLink(rope[i-1], id)
					Expect(err).NotTo(HaveOccurred())
				}
				rope = append(rope, id)
			}
		})

		It("swings below the anchor without tearing away", func() {
			lowest := 0.0
			for i := 0; i < 300; i++ {
				_, err := s.Step(1.0 / 60)
				Expect(err).NotTo(HaveOccurred())
				tail, _ := s.Position(rope[len(rope)-1])
				lowest = math.Min(lowest, tail.Y)
			}
			Expect(lowest).To(BeNumerically("<", -3))

			anchor, err := s.Position(rope[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(anchor).To(Equal(vec.Zero))

			links, err := s.Links()
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(HaveLen(9))
			for _, l := range links {
				Expect(math.Abs(l.Strain())).To(BeNumerically("<", 0.3))
			}
		})

		It("drops the free part when the top link breaks", func() {
			n, _ := s.Neighbors(rope[0])
			Expect(n).To(HaveLen(1))
			_, err := s.BreakLink(n[0])
			Expect(err).NotTo(HaveOccurred())

			before, _ := s.Position(rope[5])
			for i := 0; i < 30; i++ {
				_, _ = s.Step(1.0 / 60)
			}
			after, _ := s.Position(rope[5])
			Expect(after.Y).To(BeNumerically("<", before.Y-0.5))

			count, _ := s.PointCount()
			Expect(count).To(Equal(10))
		})

		It("keeps handles valid across unrelated removals", func() {
			Expect(s.RemovePointMass(rope[3])).To(Succeed())
			Expect(s.RemovePointMass(rope[7])).To(Succeed())

			for i, id := range rope {
				_, err := s.Position(id)
				if i == 3 || i == 7 {
					Expect(err).To(MatchError(verlet.ErrStaleHandle))
				} else {
					Expect(err).NotTo(HaveOccurred())
				}
			}
			Expect(s.LinkCount()).To(Equal(5))
		})
	})

	Describe("the exclusive step phase", func() {
		It("rejects work while an async step runs and accepts it after", func() {
			for i := 0; i < 2000; i++ {
				_, err := s.AddPointMass(vec.New(float64(i), 0, 0), 1, false)
				Expect(err).NotTo(HaveOccurred())
			}

			p, err := s.StepAsync(0.01)
			Expect(err).NotTo(HaveOccurred())

			select {
			case <-p.Done():
			default:
				_, err := s.AddPointMass(vec.Zero, 1, false)
				Expect(err).To(Or(MatchError(verlet.ErrStepInFlight), Not(HaveOccurred())))
			}

			stats := p.Wait()
			Expect(stats.Step).To(Equal(1))
			Expect(s.InFlight()).To(BeFalse())
			_, err = s.Snapshot()
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("the remove-isolated policy", func() {
		BeforeEach(func() {
			Expect(s.SetIsolationPolicy(verlet.RemoveIsolated)).To(Succeed())
		})

		It("removes both endpoints of a lone link", func() {
			a, _ := s.AddPointMass(vec.Zero, 1, false)
			b, _ := s.AddPointMass(vec.New(1, 0, 0), 1, false)
			l, _ := s.CreateLink(a, b)

			removed, err := s.BreakLink(l)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(ConsistOf(a, b))
			Expect(s.PointCount()).To(Equal(0))
		})
	})
})
