package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/tethersim/internal/verlet"
)

// Collector exports solver step statistics to Prometheus. It implements
// verlet.Observer.
type Collector struct {
	steps      prometheus.Counter
	degenerate prometheus.Counter
	duration   *prometheus.HistogramVec
	points     prometheus.Gauge
	links      prometheus.Gauge
	maxError   prometheus.Gauge
	simTime    prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tethersim_steps_total",
			Help: "Total number of completed solver steps",
		}),
		degenerate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tethersim_degenerate_links_total",
			Help: "Link visits skipped because their endpoints coincided",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tethersim_phase_duration_seconds",
				Help:    "Wall time spent per step phase",
				Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
			},
			[]string{"phase"},
		),
		points: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tethersim_points",
			Help: "Live point masses",
		}),
		links: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tethersim_links",
			Help: "Live links",
		}),
		maxError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tethersim_constraint_error",
			Help: "Largest link length error seen in the last relaxation pass",
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tethersim_simulated_seconds",
			Help: "Accumulated simulated time",
		}),
	}
	reg.MustRegister(c.steps, c.degenerate, c.duration, c.points, c.links, c.maxError, c.simTime)
	return c
}

func (c *Collector) OnStep(st verlet.StepStats) {
	c.steps.Inc()
	c.degenerate.Add(float64(st.Degenerate))
	c.duration.WithLabelValues("integrate").Observe(st.IntegrateTime.Seconds())
	c.duration.WithLabelValues("relax").Observe(st.RelaxTime.Seconds())
	c.points.Set(float64(st.Points))
	c.links.Set(float64(st.Links))
	c.maxError.Set(st.MaxError)
	c.simTime.Set(st.Time)
}
