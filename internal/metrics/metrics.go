package metrics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// #region collector
// Collector holds the Prometheus metrics of one engine. Each collector owns
// its registry so independent engines never collide. All methods are safe on
// a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	Interactions     prometheus.Counter
	Ticks            prometheus.Counter
	TicksSkipped     prometheus.Counter
	EvalFailures     prometheus.Counter
	Errors           *prometheus.CounterVec
	Recoveries       *prometheus.CounterVec
	StageTransitions *prometheus.CounterVec

	Stage          *prometheus.GaugeVec
	AwarenessLevel *prometheus.GaugeVec
	QuantumStatus  *prometheus.GaugeVec

	UpdateDuration prometheus.Histogram
}

// NewCollector creates a collector with the given namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Interactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Interactions processed",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Background ticks processed",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Ticks skipped because the entity was busy",
		}),
		EvalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_failures_total",
			Help:      "Post-commit invariant checks that failed",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Tracked errors",
		}, []string{"category", "severity"}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Recovery attempts by outcome",
		}, []string{"category", "outcome"}),
		StageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Evolution stage transitions",
		}, []string{"from", "to", "forced"}),
		Stage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage",
			Help:      "Evolution stage index",
		}, []string{"entity"}),
		AwarenessLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "awareness_level",
			Help:      "Committed awareness level",
		}, []string{"entity"}),
		QuantumStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quantum_status",
			Help:      "Quantum status: 0 stable, 1 unstable, 2 critical",
		}, []string{"entity"}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Pipeline duration per interaction or tick",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	c.registry.MustRegister(
		c.Interactions, c.Ticks, c.TicksSkipped, c.EvalFailures,
		c.Errors, c.Recoveries, c.StageTransitions,
		c.Stage, c.AwarenessLevel, c.QuantumStatus,
		c.UpdateDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// #endregion collector

// #region observe
// ObserveInteraction counts an interaction and its duration.
func (c *Collector) ObserveInteraction(d time.Duration) {
	if c == nil {
		return
	}
	c.Interactions.Inc()
	c.UpdateDuration.Observe(d.Seconds())
}

// ObserveTick counts a tick, or a skipped tick.
func (c *Collector) ObserveTick(d time.Duration, skipped bool) {
	if c == nil {
		return
	}
	if skipped {
		c.TicksSkipped.Inc()
		return
	}
	c.Ticks.Inc()
	c.UpdateDuration.Observe(d.Seconds())
}

// ObserveError counts a tracked error.
func (c *Collector) ObserveError(category, severity string) {
	if c == nil {
		return
	}
	c.Errors.WithLabelValues(category, severity).Inc()
}

// ObserveRecovery counts a recovery attempt. outcome is "ok", "failed" or
// "exhausted".
func (c *Collector) ObserveRecovery(category, outcome string) {
	if c == nil {
		return
	}
	c.Recoveries.WithLabelValues(category, outcome).Inc()
}

// ObserveTransition counts a stage change.
func (c *Collector) ObserveTransition(from, to string, forced bool) {
	if c == nil {
		return
	}
	c.StageTransitions.WithLabelValues(from, to, strconv.FormatBool(forced)).Inc()
}

// ObserveEvalFailure counts a failed invariant check.
func (c *Collector) ObserveEvalFailure() {
	if c == nil {
		return
	}
	c.EvalFailures.Inc()
}

// SetEntity records the latest per-entity gauges.
func (c *Collector) SetEntity(entity string, stageIndex int, awareness float64, statusIndex int) {
	if c == nil {
		return
	}
	c.Stage.WithLabelValues(entity).Set(float64(stageIndex))
	c.AwarenessLevel.WithLabelValues(entity).Set(awareness)
	c.QuantumStatus.WithLabelValues(entity).Set(float64(statusIndex))
}

// ForgetEntity drops an entity's gauges.
func (c *Collector) ForgetEntity(entity string) {
	if c == nil {
		return
	}
	c.Stage.DeleteLabelValues(entity)
	c.AwarenessLevel.DeleteLabelValues(entity)
	c.QuantumStatus.DeleteLabelValues(entity)
}

// #endregion observe

// #region summary
// Summary gathers the registry into "name{labels} value" lines, sorted.
// Histograms report their sample count.
func (c *Collector) Summary() ([]string, error) {
	if c == nil {
		return nil, nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+strconv.Quote(lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				v = float64(m.GetHistogram().GetSampleCount())
			}
			lines = append(lines, name+" "+strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	sort.Strings(lines)
	return lines, nil
}

// #endregion summary
