package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/searchlab/tweetindex/internal/indexer/index"
	apperrors "github.com/searchlab/tweetindex/pkg/errors"
	"github.com/searchlab/tweetindex/pkg/logger"
)

// Queryer is the subset of *sql.DB the postgres source needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresSource reads documents from a table ordered by id. Rows whose id
// is NULL are skipped; a NULL text is an empty document.
type PostgresSource struct {
	db         Queryer
	table      string
	idColumn   string
	textColumn string
	skipped    int
	logger     *slog.Logger
}

func NewPostgresSource(db Queryer, table, idColumn, textColumn string) *PostgresSource {
	return &PostgresSource{
		db:         db,
		table:      table,
		idColumn:   idColumn,
		textColumn: textColumn,
		logger:     logger.WithComponent("postgres-loader").With("table", table),
	}
}

func (s *PostgresSource) Name() string { return "postgres:" + s.table }

func (s *PostgresSource) Skipped() int { return s.skipped }

func (s *PostgresSource) query() string {
	id := pq.QuoteIdentifier(s.idColumn)
	return fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		id, pq.QuoteIdentifier(s.textColumn), pq.QuoteIdentifier(s.table), id)
}

func (s *PostgresSource) Stream(ctx context.Context, fn func(index.Document) error) error {
	s.skipped = 0
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return fmt.Errorf("querying %s: %w: %w", s.table, apperrors.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   sql.NullInt64
			text sql.NullString
		)
		if err := rows.Scan(&id, &text); err != nil {
			s.skipped++
			s.logger.Debug("skipping unscannable row", "error", err)
			continue
		}
		if !id.Valid {
			s.skipped++
			continue
		}
		if err := fn(index.Document{ID: index.DocID(id.Int64), Text: text.String}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s: %w", s.table, err)
	}
	return nil
}
