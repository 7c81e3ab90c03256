package platform

import (
	"github.com/prometheus/client_golang/prometheus"

	"carvolve/internal/ledger"
)

// Metrics exposes driver progress to prometheus.
type Metrics struct {
	Evaluations     prometheus.Counter
	EvaluatorErrors prometheus.Counter
	CacheOverwrites prometheus.Counter
	Generations     prometheus.Counter
	CacheSize       prometheus.Gauge
	AverageFitness  prometheus.Gauge
	MaxFitness      prometheus.Gauge
	Slots           *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carvolve_evaluations_total",
			Help: "Genomes scored by the evaluator.",
		}),
		EvaluatorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carvolve_evaluator_errors_total",
			Help: "Evaluations that failed or timed out and were scored 0.",
		}),
		CacheOverwrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carvolve_cache_overwrites_total",
			Help: "Fitness cache inserts for a genome that was already present.",
		}),
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carvolve_generations_total",
			Help: "Completed generation steps.",
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carvolve_cache_genomes",
			Help: "Distinct genomes in the fitness cache.",
		}),
		AverageFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carvolve_generation_average_fitness",
			Help: "Average fitness of the last stepped generation.",
		}),
		MaxFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carvolve_generation_max_fitness",
			Help: "Max fitness of the last stepped generation.",
		}),
		Slots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carvolve_ledger_slots",
			Help: "Ledger slots per status.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Evaluations,
			m.EvaluatorErrors,
			m.CacheOverwrites,
			m.Generations,
			m.CacheSize,
			m.AverageFitness,
			m.MaxFitness,
			m.Slots,
		)
	}
	return m
}

func (m *Metrics) observeLedger(l *ledger.Ledger) {
	if m == nil {
		return
	}
	for status, n := range l.Counts() {
		m.Slots.WithLabelValues(status.String()).Set(float64(n))
	}
}
