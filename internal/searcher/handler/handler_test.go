package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/searchlab/tweetindex/internal/analytics"
	"github.com/searchlab/tweetindex/internal/indexer/index"
	"github.com/searchlab/tweetindex/internal/searcher/cache"
	"github.com/searchlab/tweetindex/internal/searcher/executor"
	"github.com/searchlab/tweetindex/pkg/config"
	"github.com/searchlab/tweetindex/pkg/metrics"
	"github.com/searchlab/tweetindex/pkg/middleware"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type fixture struct {
	mux        *http.ServeMux
	aggregator *analytics.Aggregator
	registry   *prometheus.Registry
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	return newFixtureFor(t, withCache, index.Build([]index.Document{
		{ID: 1, Text: "Side effects include pain."},
		{ID: 2, Text: "No side effect reported"},
		{ID: 3, Text: "Vaccine side effect noted"},
		{ID: 4, Text: "side effect again"},
	}))
}

func newFixtureFor(t *testing.T, withCache bool, ix *index.Index) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	var qc *cache.QueryCache
	if withCache && ix != nil {
		qc = cache.New(&memStore{data: map[string]string{}}, time.Minute, ix.Fingerprint(), m)
	}
	agg := analytics.NewAggregator()
	h := New(executor.New(ix, m), qc, nil, agg, m, config.SearchConfig{DefaultLimit: 2, MaxResults: 3})
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{mux: mux, aggregator: agg, registry: reg}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	middleware.RequestID(f.mux).ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSearch(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		target string
		total  int
		ids    []index.DocID
	}{
		{"/api/v1/search?q=side+effect", 3, []index.DocID{2, 3}},
		{"/api/v1/search?q=side+AND+effect&limit=3", 3, []index.DocID{2, 3, 4}},
		{"/api/v1/search?q=side&limit=100", 4, []index.DocID{1, 2, 3}},
		{"/api/v1/search?q=malaria", 0, []index.DocID{}},
		{"/api/v1/search?q=%21%21%21", 0, []index.DocID{}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
			}
			res := decode[executor.SearchResult](t, rec)
			if res.TotalHits != tt.total || !slices.Equal(res.DocIDs, tt.ids) {
				t.Fatalf("result = %+v", res)
			}
		})
	}
	if got := f.aggregator.Stats(10).TotalSearches; got != int64(len(tests)) {
		t.Fatalf("aggregator saw %d searches", got)
	}
}

func TestSearchBadRequests(t *testing.T) {
	f := newFixture(t, false)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=side&limit=0",
		"/api/v1/search?q=side&limit=abc",
		"/api/v1/search?q=side+OR+effect",
		"/api/v1/search?q=one+two+three",
	} {
		rec := f.do(t, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error"`) {
			t.Errorf("%s: body = %s", target, rec.Body)
		}
	}
}

func TestSearchLowercaseOperatorWords(t *testing.T) {
	f := newFixtureFor(t, false, index.Build([]index.Document{
		{ID: 1, Text: "Vaccine and booster"},
		{ID: 2, Text: "do not panic"},
		{ID: 3, Text: "vaccine or not"},
	}))
	tests := []struct {
		target string
		ids    []index.DocID
	}{
		{"/api/v1/search?q=not", []index.DocID{2, 3}},
		{"/api/v1/search?q=vaccine+and", []index.DocID{1}},
		{"/api/v1/search?q=vaccine+or", []index.DocID{3}},
		{"/api/v1/search?q=vaccine+AND+not", []index.DocID{3}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
			}
			if res := decode[executor.SearchResult](t, rec); !slices.Equal(res.DocIDs, tt.ids) {
				t.Fatalf("DocIDs = %v, want %v", res.DocIDs, tt.ids)
			}
		})
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/search?q=vaccine+NOT+panic"); rec.Code != http.StatusBadRequest {
		t.Fatalf("upper-case NOT status = %d", rec.Code)
	}
}

func TestIndexNotReady(t *testing.T) {
	f := newFixtureFor(t, true, nil)
	for _, target := range []string{
		"/api/v1/search?q=side",
		"/api/v1/terms/side",
		"/api/v1/stats",
	} {
		rec := f.do(t, http.MethodGet, target)
		if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "index not ready") {
			t.Errorf("%s: %d %s", target, rec.Code, rec.Body)
		}
	}
}

func TestSearchUsesCache(t *testing.T) {
	f := newFixture(t, true)
	for i := 0; i < 2; i++ {
		if rec := f.do(t, http.MethodGet, "/api/v1/search?q=side+effect"); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	stats := decode[map[string]any](t, rec)
	if stats["hits"] != float64(1) || stats["misses"] != float64(1) {
		t.Fatalf("cache stats = %v", stats)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"keys_deleted":1`) {
		t.Fatalf("invalidate: %d %s", rec.Code, rec.Body)
	}

	scrape := httptest.NewRecorder()
	metrics.Handler(f.registry).ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, want := range []string{
		`search_latency_seconds_count{cache_status="hit"} 1`,
		`search_latency_seconds_count{cache_status="miss"} 1`,
		"cache_hits_total 1",
	} {
		if !strings.Contains(scrape.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	f := newFixture(t, false)
	if rec := f.do(t, http.MethodGet, "/api/v1/cache/stats"); !strings.Contains(rec.Body.String(), "disabled") {
		t.Fatalf("cache stats = %s", rec.Body)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/cache/invalidate"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("invalidate status = %d", rec.Code)
	}
}

func TestTerm(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/terms/Effect!")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[TermResponse](t, rec)
	if got.Normalized != "effect" || got.DocumentFrequency != 3 || got.Postings.String() != "2 3 4" {
		t.Fatalf("term = %+v", got)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/terms/unknown")
	got = decode[TermResponse](t, rec)
	if got.DocumentFrequency != 0 || got.Postings == nil || len(got.Postings) != 0 {
		t.Fatalf("unknown term = %+v", got)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/terms/%F0%9F%92%89"); rec.Code != http.StatusBadRequest {
		t.Fatalf("emoji-only term status = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, false)
	got := decode[StatsResponse](t, f.do(t, http.MethodGet, "/api/v1/stats"))
	if got.Documents != 4 || got.Terms == 0 || len(got.Fingerprint) != 64 {
		t.Fatalf("stats = %+v", got)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/stats")
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatal("request id header missing")
	}
}
