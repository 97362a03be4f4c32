package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunCollector bundles the Prometheus metrics of one consensus run and
// provides a ready-to-serve /metrics handler.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Iterations     prometheus.Counter
	SolveDurations *prometheus.HistogramVec
	BoundUpdates   *prometheus.CounterVec

	BestInnerBound prometheus.Gauge
	BestOuterBound prometheus.Gauge
	RelativeGap    prometheus.Gauge
	Residual       prometheus.Gauge
}

// NewRunCollector registers the run metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	iterations, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hedge_hub_iterations_total",
		Help: "Number of completed hub iterations.",
	}), "hedge_hub_iterations_total")
	if err != nil {
		return nil, err
	}

	solves := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hedge_solve_duration_seconds",
		Help:    "Scenario subproblem solve latency in seconds, labeled by cylinder.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"cylinder"})
	solves, err = registerHistogramVec(reg, solves, "hedge_solve_duration_seconds")
	if err != nil {
		return nil, err
	}

	boundUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_bound_updates_total",
		Help: "Bound reports merged by the hub, labeled by spoke and kind.",
	}, []string{"spoke", "kind"})
	boundUpdates, err = registerCounterVec(reg, boundUpdates, "hedge_bound_updates_total")
	if err != nil {
		return nil, err
	}

	inner, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_best_inner_bound",
		Help: "Best known feasible (inner) objective value.",
	}), "hedge_best_inner_bound")
	if err != nil {
		return nil, err
	}
	outer, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_best_outer_bound",
		Help: "Best known relaxation (outer) objective value.",
	}), "hedge_best_outer_bound")
	if err != nil {
		return nil, err
	}
	gap, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_relative_gap",
		Help: "Relative gap between the best outer and best inner bounds.",
	}), "hedge_relative_gap")
	if err != nil {
		return nil, err
	}
	residual, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_primal_residual",
		Help: "Probability-weighted proximal residual of the latest iteration.",
	}), "hedge_primal_residual")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:       gatherer,
		Iterations:     iterations,
		SolveDurations: solves,
		BoundUpdates:   boundUpdates,
		BestInnerBound: inner,
		BestOuterBound: outer,
		RelativeGap:    gap,
		Residual:       residual,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveIteration pushes one iteration's summary into the gauges. Any nil
// collector is a no-op so cylinders can run unmetered.
func (c *RunCollector) ObserveIteration(inner, outer, relGap, residual float64) {
	if c == nil {
		return
	}
	c.Iterations.Inc()
	c.BestInnerBound.Set(inner)
	c.BestOuterBound.Set(outer)
	c.RelativeGap.Set(relGap)
	c.Residual.Set(residual)
}

// CountBound records one merged bound report.
func (c *RunCollector) CountBound(spoke, kind string) {
	if c == nil {
		return
	}
	c.BoundUpdates.WithLabelValues(spoke, kind).Inc()
}

// TimeSolve records one solve duration for the named cylinder.
func (c *RunCollector) TimeSolve(cylinder string, seconds float64) {
	if c == nil {
		return
	}
	c.SolveDurations.WithLabelValues(cylinder).Observe(seconds)
}

func registerCounter(reg prometheus.Registerer, ctr prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(ctr); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return ctr, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
