// Package metrics exports provider call outcomes as Prometheus counters.
package metrics

import (
	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/aschepis/backscratcher/llmguard/retry"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "llmguard"

// Completion modes.
const (
	ModeText       = "text"
	ModeStructured = "structured"
)

// Collector implements llm.Observer with Prometheus counters.
type Collector struct {
	retries          *prometheus.CounterVec
	failures         *prometheus.CounterVec
	budgetRejections *prometheus.CounterVec
	completions      *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its counters with reg.
// A nil reg skips registration.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retries scheduled after a retryable failure.",
		}, []string{"provider", "kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Calls that ended in a provider error.",
		}, []string{"provider", "kind"}),
		budgetRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_rejections_total",
			Help:      "Calls rejected before any network request because the prompt exceeded the token budget.",
		}, []string{"provider"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Successful completions.",
		}, []string{"provider", "mode"}),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{c.retries, c.failures, c.budgetRejections, c.completions} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// RetryScheduled implements llm.Observer.
func (c *Collector) RetryScheduled(provider string, ev retry.Event) {
	c.retries.WithLabelValues(provider, ev.Label).Inc()
}

// CallFailed implements llm.Observer.
func (c *Collector) CallFailed(provider string, err *llm.ProviderError) {
	kind := llm.ErrorKindUnknown
	if err != nil {
		kind = err.Kind
	}
	c.failures.WithLabelValues(provider, kind.String()).Inc()
}

// BudgetRejected implements llm.Observer.
func (c *Collector) BudgetRejected(provider string, _ llm.Budget) {
	c.budgetRejections.WithLabelValues(provider).Inc()
}

// CallSucceeded implements llm.Observer.
func (c *Collector) CallSucceeded(provider string, structured bool) {
	mode := ModeText
	if structured {
		mode = ModeStructured
	}
	c.completions.WithLabelValues(provider, mode).Inc()
}

var _ llm.Observer = (*Collector)(nil)
