package pile

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statsSummary is the JSON body returned by the /stats endpoint.
type statsSummary struct {
	NewBlocks    int64   `json:"new_blocks"`
	LookupHits   int64   `json:"lookup_hits"`
	HashFailures int64   `json:"hash_failures"`
	BlocksRead   int64   `json:"blocks_read"`
	DedupRatio   float64 `json:"dedup_ratio"`
	IndexEntries int64   `json:"index_entries"`
}

// NewStatsHandler builds the optional stats/metrics HTTP server described
// by SPEC_FULL §6: a human-readable JSON summary at /stats and a
// Prometheus-format scrape endpoint at /metrics.
func NewStatsHandler(store *Store) http.Handler {
	router := httprouter.New()
	router.GET("/stats", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		summary := statsSummary{
			NewBlocks:    store.Stats.NewBlocks(),
			LookupHits:   store.Stats.LookupHits(),
			HashFailures: store.Stats.HashFailures(),
			BlocksRead:   store.Stats.BlocksRead(),
			DedupRatio:   store.Stats.DedupRatio(),
			IndexEntries: store.Index.Entries(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewMetrics(store.Stats, store.Index))
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return router
}

// ServeStats starts an HTTP server on addr exposing the stats and metrics
// endpoints for store. It runs until the process exits or listening fails;
// callers typically launch it in its own goroutine and log a non-nil
// return value.
func ServeStats(addr string, store *Store) error {
	return http.ListenAndServe(addr, NewStatsHandler(store))
}
