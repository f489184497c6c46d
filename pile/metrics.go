package pile

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "imagepile"
	metricsSubsystem = "store"
)

// Metrics exports a Store's counters as Prometheus metrics, for the
// optional stats HTTP endpoint (SPEC_FULL §6). It implements
// prometheus.Collector directly rather than holding separate Gauge/Counter
// fields that need manual updates, since Store.Stats is already the
// source of truth and a Collect-time snapshot keeps the two from drifting
// apart.
type Metrics struct {
	stats *Stats
	index *Index

	newBlocksDesc    *prometheus.Desc
	lookupHitsDesc   *prometheus.Desc
	hashFailuresDesc *prometheus.Desc
	blocksReadDesc   *prometheus.Desc
	dedupRatioDesc   *prometheus.Desc
	meanChainDesc    *prometheus.Desc
	maxChainDesc     *prometheus.Desc
}

// NewMetrics returns a Collector over stats and index, ready to register
// with a prometheus.Registry.
func NewMetrics(stats *Stats, index *Index) *Metrics {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, name), help, nil, nil)
	}
	return &Metrics{
		stats:            stats,
		index:            index,
		newBlocksDesc:    desc("new_blocks_total", "Blocks admitted as new pool records."),
		lookupHitsDesc:   desc("lookup_hits_total", "Candidate blocks resolved to an existing pool offset."),
		hashFailuresDesc: desc("hash_failures_total", "Fingerprint matches rejected by byte-wise verification."),
		blocksReadDesc:   desc("blocks_read_total", "Pool blocks read back during reconstruction."),
		dedupRatioDesc:   desc("dedup_ratio", "Fraction of admitted candidates resolved as duplicates."),
		meanChainDesc:    desc("index_chain_length_mean", "Mean fingerprint-index bucket chain length."),
		maxChainDesc:     desc("index_chain_length_max", "Longest fingerprint-index bucket chain."),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.newBlocksDesc
	ch <- m.lookupHitsDesc
	ch <- m.hashFailuresDesc
	ch <- m.blocksReadDesc
	ch <- m.dedupRatioDesc
	ch <- m.meanChainDesc
	ch <- m.maxChainDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(m.newBlocksDesc, prometheus.CounterValue, float64(m.stats.NewBlocks()))
	ch <- prometheus.MustNewConstMetric(m.lookupHitsDesc, prometheus.CounterValue, float64(m.stats.LookupHits()))
	ch <- prometheus.MustNewConstMetric(m.hashFailuresDesc, prometheus.CounterValue, float64(m.stats.HashFailures()))
	ch <- prometheus.MustNewConstMetric(m.blocksReadDesc, prometheus.CounterValue, float64(m.stats.BlocksRead()))
	ch <- prometheus.MustNewConstMetric(m.dedupRatioDesc, prometheus.GaugeValue, m.stats.DedupRatio())

	summary := Summarize(m.index)
	ch <- prometheus.MustNewConstMetric(m.meanChainDesc, prometheus.GaugeValue, summary.Mean)
	ch <- prometheus.MustNewConstMetric(m.maxChainDesc, prometheus.GaugeValue, summary.Max)
}
