package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics tracks guest-to-account merges.
type CartMetrics struct {
	merges      *prometheus.CounterVec
	mergedLines prometheus.Counter
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Guest cart merges by result (merged, noop, failed).",
	}, []string{"result"})
	mergedLines := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_merged_lines_total",
		Help: "Guest cart lines folded into account carts.",
	})
	reg.MustRegister(merges, mergedLines)
	return &CartMetrics{merges: merges, mergedLines: mergedLines}
}

func (m *CartMetrics) ObserveMerge(result string, lines int) {
	if m == nil || m.merges == nil {
		return
	}
	m.merges.WithLabelValues(normalizeLabel(result)).Inc()
	if lines > 0 {
		m.mergedLines.Add(float64(lines))
	}
}
