// Package loader supplies documents to the index builder. A Source streams
// (doc id, text) pairs in input order and drops rows it cannot parse; the
// builder only ever sees well-formed documents.
package loader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/searchlab/tweetindex/internal/indexer/index"
	"github.com/searchlab/tweetindex/pkg/config"
	apperrors "github.com/searchlab/tweetindex/pkg/errors"
	"github.com/searchlab/tweetindex/pkg/postgres"
)

// Source streams documents to fn. Stream stops at the first error returned
// by fn or at ctx cancellation.
type Source interface {
	Name() string
	Stream(ctx context.Context, fn func(index.Document) error) error
	// Skipped reports how many malformed rows the last Stream dropped.
	Skipped() int
}

// New builds the source selected by cfg. db is only used by the postgres
// source and may be nil otherwise.
func New(cfg config.LoaderConfig, db *sql.DB) (Source, error) {
	switch cfg.Source {
	case config.SourceTSV:
		return NewTSVSource(cfg.Path), nil
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres source requires a database connection")
		}
		return NewPostgresSource(db, cfg.Table, cfg.IDColumn, cfg.TextColumn), nil
	default:
		return nil, fmt.Errorf("unknown loader source %q", cfg.Source)
	}
}

// Open is New plus connection management: for the postgres source it opens
// a pool from cfg.Postgres first. The returned close func is never nil.
func Open(ctx context.Context, cfg *config.Config) (Source, func() error, error) {
	noop := func() error { return nil }
	if cfg.Loader.Source != config.SourcePostgres {
		src, err := New(cfg.Loader, nil)
		return src, noop, err
	}
	client, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, noop, apperrors.Newf(apperrors.ErrSourceUnavailable, 503, "connecting to postgres: %v", err)
	}
	src, err := New(cfg.Loader, client.DB)
	if err != nil {
		client.Close()
		return nil, noop, err
	}
	return src, client.Close, nil
}
