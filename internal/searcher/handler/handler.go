package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/searchlab/tweetindex/internal/analytics"
	"github.com/searchlab/tweetindex/internal/indexer/index"
	"github.com/searchlab/tweetindex/internal/indexer/tokenizer"
	"github.com/searchlab/tweetindex/internal/searcher/cache"
	"github.com/searchlab/tweetindex/internal/searcher/executor"
	"github.com/searchlab/tweetindex/internal/searcher/parser"
	"github.com/searchlab/tweetindex/pkg/config"
	apperrors "github.com/searchlab/tweetindex/pkg/errors"
	"github.com/searchlab/tweetindex/pkg/logger"
	"github.com/searchlab/tweetindex/pkg/metrics"
	"github.com/searchlab/tweetindex/pkg/middleware"
	"github.com/searchlab/tweetindex/pkg/tracing"
)

// TermResponse is the body of GET /api/v1/terms/{term}.
type TermResponse struct {
	Term              string            `json:"term"`
	Normalized        string            `json:"normalized"`
	DocumentFrequency int               `json:"document_frequency"`
	Postings          index.PostingList `json:"postings"`
}

type StatsResponse struct {
	Documents   int    `json:"documents"`
	Terms       int    `json:"terms"`
	Fingerprint string `json:"fingerprint"`
}

type Handler struct {
	executor     *executor.Executor
	cache        *cache.QueryCache
	collector    *analytics.Collector
	aggregator   *analytics.Aggregator
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires the search endpoints. queryCache, collector, aggregator and m
// may each be nil.
func New(
	exec *executor.Executor,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	aggregator *analytics.Aggregator,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		collector:    collector,
		aggregator:   aggregator,
		metrics:      m,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       logger.WithComponent("search-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/terms/{term}", h.Term)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	if _, err := h.index(); err != nil {
		h.writeAppError(w, err)
		return
	}

	ctx, span := tracing.Start(ctx, "search", middleware.GetRequestID(ctx))
	defer span.End(log)

	_, parseSpan := tracing.Start(ctx, "parse", "")
	plan, err := parser.Parse(query)
	parseSpan.End(nil)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	_, execSpan := tracing.Start(ctx, "execute", "")
	var result *executor.SearchResult
	cacheHit := false
	cacheStatus := "bypass"
	if h.cache != nil && len(plan.Terms) > 0 {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, plan, limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.executor.Execute(ctx, plan, limit)
	}
	execSpan.SetAttr("cache", cacheStatus)
	execSpan.End(nil)
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		if ctx.Err() != nil {
			h.writeAppError(w, apperrors.New(apperrors.ErrTimeout, http.StatusGatewayTimeout, "search cancelled"))
			return
		}
		h.writeAppError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "search failed"))
		return
	}

	latency := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"terms", plan.Terms,
		"total_hits", result.TotalHits,
		"returned", len(result.DocIDs),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)

	event := analytics.NewSearchEvent(query, plan.Terms, result.TotalHits, len(result.DocIDs), latency, cacheHit)
	event.RequestID = middleware.GetRequestID(ctx)
	if h.aggregator != nil {
		h.aggregator.RecordSearch(event)
	}
	if h.collector != nil {
		h.collector.TrackSearch(event)
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Term reports the postings of a single term. The path segment is
// normalised like a query, so /terms/Side! looks up "side"; anything that
// does not normalise to exactly one term is rejected.
func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("term")
	terms := tokenizer.Normalize(raw)
	if len(terms) != 1 {
		h.writeError(w, http.StatusBadRequest, "path must name exactly one term")
		return
	}
	ix, err := h.index()
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, TermResponse{
		Term:              raw,
		Normalized:        terms[0],
		DocumentFrequency: ix.DocumentFrequency(terms[0]),
		Postings:          ix.Lookup(terms[0]),
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ix, err := h.index()
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatsResponse{
		Documents:   ix.DocCount(),
		Terms:       ix.Terms(),
		Fingerprint: ix.Fingerprint(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) index() (*index.Index, error) {
	if h.executor == nil || h.executor.Index() == nil {
		return nil, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "no index has been built")
	}
	return h.executor.Index(), nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError answers with the status carried by err.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
}
