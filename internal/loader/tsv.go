package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/searchlab/tweetindex/internal/indexer/index"
	apperrors "github.com/searchlab/tweetindex/pkg/errors"
	"github.com/searchlab/tweetindex/pkg/logger"
)

// Column layout of the tweet export: timestamp, tweet id, user handle,
// display name, tweet text.
const (
	colTimestamp = iota
	colID
	colUser
	colName
	colText
	tsvColumns
)

// TSVSource reads a tab-separated tweet export.
type TSVSource struct {
	path    string
	skipped int
	logger  *slog.Logger
}

func NewTSVSource(path string) *TSVSource {
	return &TSVSource{
		path:   path,
		logger: logger.WithComponent("tsv-loader").With("path", path),
	}
}

func (s *TSVSource) Name() string { return "tsv:" + s.path }

func (s *TSVSource) Skipped() int { return s.skipped }

func (s *TSVSource) Stream(ctx context.Context, fn func(index.Document) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w: %w", s.path, apperrors.ErrSourceUnavailable, err)
	}
	defer f.Close()
	return s.stream(ctx, f, fn)
}

// StreamReader is Stream over an already-open reader.
func (s *TSVSource) StreamReader(ctx context.Context, r io.Reader, fn func(index.Document) error) error {
	return s.stream(ctx, r, fn)
}

func (s *TSVSource) stream(ctx context.Context, r io.Reader, fn func(index.Document) error) error {
	s.skipped = 0
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.skip("unparseable row", parseErr.StartLine, err)
				continue
			}
			return fmt.Errorf("reading %s: %w", s.path, err)
		}
		line, _ := cr.FieldPos(0)
		doc, err := parseRecord(record)
		if err != nil {
			s.skip("malformed row", line, err)
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

func (s *TSVSource) skip(reason string, line int, err error) {
	s.skipped++
	s.logger.Debug("skipping "+reason, "line", line, "error", err)
}

func parseRecord(record []string) (index.Document, error) {
	if len(record) != tsvColumns {
		return index.Document{}, fmt.Errorf("expected %d columns, got %d", tsvColumns, len(record))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(record[colID]), 10, 64)
	if err != nil {
		return index.Document{}, fmt.Errorf("parsing tweet id: %w", err)
	}
	return index.Document{
		ID:   index.DocID(id),
		Text: record[colText],
	}, nil
}
