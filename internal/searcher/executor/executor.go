package executor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/searchlab/tweetindex/internal/indexer/index"
	"github.com/searchlab/tweetindex/internal/searcher/parser"
	apperrors "github.com/searchlab/tweetindex/pkg/errors"
	"github.com/searchlab/tweetindex/pkg/logger"
	"github.com/searchlab/tweetindex/pkg/metrics"
)

type SearchResult struct {
	Query     string         `json:"query"`
	Terms     []string       `json:"terms"`
	TotalHits int            `json:"total_hits"`
	DocIDs    []index.DocID  `json:"doc_ids"`
	TermStats map[string]int `json:"term_stats"`
}

type Executor struct {
	index   *index.Index
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Executor over a finalized index. m may be nil.
func New(ix *index.Index, m *metrics.Metrics) *Executor {
	return &Executor{
		index:   ix,
		metrics: m,
		logger:  logger.WithComponent("query-executor"),
	}
}

func (e *Executor) Index() *index.Index {
	return e.index
}

// Execute answers a one-term lookup or a two-term intersection. DocIDs are
// ascending and truncated to limit when limit > 0; TotalHits is never
// truncated.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		e.record("error", 0)
		return nil, err
	}
	if e.index == nil {
		e.record("error", 0)
		return nil, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "no index has been built")
	}
	start := time.Now()
	result := &SearchResult{
		Query:     plan.RawQuery,
		Terms:     plan.Terms,
		DocIDs:    []index.DocID{},
		TermStats: make(map[string]int, len(plan.Terms)),
	}
	for _, term := range plan.Terms {
		result.TermStats[term] = e.index.DocumentFrequency(term)
	}

	var hits index.PostingList
	resultType := "lookup"
	switch len(plan.Terms) {
	case 0:
		resultType = "zero_result"
	case 1:
		hits = e.index.Lookup(plan.Terms[0])
	default:
		resultType = "intersect"
		hits = e.index.Intersect(plan.Terms[0], plan.Terms[1])
	}
	result.TotalHits = len(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	result.DocIDs = append(result.DocIDs, hits...)
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}

	elapsed := time.Since(start)
	e.record(resultType, result.TotalHits)
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"total_hits", result.TotalHits,
		"returned", len(result.DocIDs),
		"duration", elapsed,
	)
	return result, nil
}

// record counts the query. Latency is observed by the caller, which knows
// whether the cache answered.
func (e *Executor) record(resultType string, hits int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	if resultType != "error" {
		e.metrics.SearchResultsCount.Observe(float64(hits))
	}
}
