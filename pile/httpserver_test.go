package pile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestStatsHandlerReportsCounts checks the /stats JSON endpoint reflects
// Store activity.
func TestStatsHandlerReportsCounts(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Admit(fill(0x55, BlockSize)); err != nil {
		t.Fatal(err)
	}

	handler := NewStatsHandler(s)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary statsSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if summary.NewBlocks != 1 {
		t.Fatalf("expected new_blocks=1, got %d", summary.NewBlocks)
	}
	if summary.IndexEntries != 1 {
		t.Fatalf("expected index_entries=1, got %d", summary.IndexEntries)
	}
}

// TestStatsHandlerExposesMetrics checks that the Prometheus scrape
// endpoint responds with plaintext metrics.
func TestStatsHandlerExposesMetrics(t *testing.T) {
	s := newTestStore(t)
	handler := NewStatsHandler(s)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected non-empty metrics body")
	}
}
