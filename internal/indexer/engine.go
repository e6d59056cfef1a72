// Package indexer drives a document source through the index builder in a
// single batch pass and hands back the finalized, read-only index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/searchlab/tweetindex/internal/indexer/index"
	"github.com/searchlab/tweetindex/internal/loader"
	"github.com/searchlab/tweetindex/pkg/logger"
	"github.com/searchlab/tweetindex/pkg/metrics"
	"github.com/searchlab/tweetindex/pkg/tracing"
)

const progressEvery = 50000

// BuildStats summarises one build.
type BuildStats struct {
	Source      string        `json:"source"`
	Documents   int           `json:"documents"`
	Skipped     int           `json:"skipped"`
	EmptyDocs   int           `json:"empty_documents"`
	Terms       int           `json:"terms"`
	Fingerprint string        `json:"fingerprint"`
	Duration    time.Duration `json:"duration"`
}

type Engine struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{
		metrics: m,
		logger:  logger.WithComponent("indexer"),
	}
}

// Build streams every document from src into a fresh builder and finalizes
// it. A cancelled ctx aborts the build and no index is returned.
func (e *Engine) Build(ctx context.Context, src loader.Source) (*index.Index, BuildStats, error) {
	start := time.Now()
	stats := BuildStats{Source: src.Name()}
	b := index.NewBuilder()

	ctx, span := tracing.Start(ctx, "index.build", "build-"+src.Name())
	defer span.End(e.logger)

	e.logger.Info("index build started", "source", src.Name())
	_, streamSpan := tracing.Start(ctx, "stream", "")
	err := src.Stream(ctx, func(doc index.Document) error {
		terms := b.Add(doc)
		stats.Documents++
		if terms == 0 {
			stats.EmptyDocs++
		}
		if e.metrics != nil {
			e.metrics.DocsIndexedTotal.Inc()
		}
		e.logger.Debug("document indexed", "doc_id", doc.ID, "term_count", terms)
		if stats.Documents%progressEvery == 0 {
			e.logger.Info("index build progress",
				"documents", stats.Documents,
				"terms", b.Terms(),
			)
		}
		return nil
	})
	streamSpan.SetAttr("documents", stats.Documents)
	streamSpan.End(e.logger)
	stats.Skipped = src.Skipped()
	if e.metrics != nil {
		e.metrics.DocsSkippedTotal.Add(float64(stats.Skipped))
	}
	if err != nil {
		return nil, stats, fmt.Errorf("streaming %s: %w", src.Name(), err)
	}

	_, finalizeSpan := tracing.Start(ctx, "finalize", "")
	ix := b.Finalize()
	finalizeSpan.SetAttr("terms", ix.Terms())
	finalizeSpan.End(e.logger)
	stats.Terms = ix.Terms()
	stats.Fingerprint = ix.Fingerprint()
	stats.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.IndexTerms.Set(float64(ix.Terms()))
		e.metrics.IndexDocuments.Set(float64(ix.DocCount()))
		e.metrics.IndexBuildDuration.Observe(stats.Duration.Seconds())
	}
	e.logger.Info("index build complete",
		"source", src.Name(),
		"documents", stats.Documents,
		"distinct_documents", ix.DocCount(),
		"skipped", stats.Skipped,
		"empty_documents", stats.EmptyDocs,
		"terms", stats.Terms,
		"duration", stats.Duration,
	)
	return ix, stats, nil
}
