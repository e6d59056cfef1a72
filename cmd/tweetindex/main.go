// Command tweetindex builds an inverted index over a tweet dump and answers
// one- or two-term AND queries from the command line:
//
//	tweetindex -file data/tweets.csv -q "side effect" -q malaria
//	tweetindex -file data/tweets.csv side effect
//	tweetindex -file data/tweets.csv -dump
//
// Each query prints "query<TAB>hits<TAB>ids" on stdout. -dump prints the
// whole dictionary as "term<TAB>df<TAB>ids" instead.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/searchlab/tweetindex/internal/indexer"
	"github.com/searchlab/tweetindex/internal/indexer/index"
	"github.com/searchlab/tweetindex/internal/loader"
	"github.com/searchlab/tweetindex/internal/searcher/executor"
	"github.com/searchlab/tweetindex/internal/searcher/parser"
	"github.com/searchlab/tweetindex/pkg/config"
	"github.com/searchlab/tweetindex/pkg/logger"
)

type options struct {
	queries []string
	limit   int
	stats   bool
	dump    bool
}

type queryFlags []string

func (q *queryFlags) String() string { return strings.Join(*q, ",") }

func (q *queryFlags) Set(v string) error {
	*q = append(*q, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	source := flag.String("source", "", "document source: tsv or postgres (overrides config)")
	file := flag.String("file", "", "path to the tab-separated tweet file (overrides config)")
	limit := flag.Int("limit", 0, "maximum ids printed per query (0 = all)")
	stats := flag.Bool("stats", false, "print build statistics as JSON on stderr")
	dump := flag.Bool("dump", false, "print every term with its postings and exit")
	var queries queryFlags
	flag.Var(&queries, "q", "query to run; repeatable")
	flag.Parse()

	if flag.NArg() > 0 {
		queries = append(queries, strings.Join(flag.Args(), " "))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Loader.Source = *source
	}
	if *file != "" {
		cfg.Loader.Path = *file
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{queries: queries, limit: *limit, stats: *stats, dump: *dump}
	if err := run(ctx, cfg, opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		slog.Error("tweetindex failed", "error", err)
		os.Exit(1)
	}
}

// run builds the index and answers queries. With no queries it reads one
// query per line from stdin.
func run(ctx context.Context, cfg *config.Config, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	src, closeSrc, err := loader.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	ix, stats, err := indexer.NewEngine(nil).Build(ctx, src)
	if err != nil {
		return err
	}
	if opts.stats {
		enc := json.NewEncoder(stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return err
		}
	}

	out := bufio.NewWriter(stdout)
	defer out.Flush()

	if opts.dump {
		for _, e := range ix.Snapshot() {
			if _, err := fmt.Fprintf(out, "%s\t%d\t%s\n", e.Term, e.DocFreq, e.Postings); err != nil {
				return err
			}
		}
		return nil
	}

	exec := executor.New(ix, nil)

	answer := func(q string) error {
		plan, err := parser.Parse(q)
		if err != nil {
			fmt.Fprintf(out, "%s\terror\t%v\n", q, err)
			return nil
		}
		res, err := exec.Execute(ctx, plan, opts.limit)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\t%d\t%s\n", q, res.TotalHits, index.PostingList(res.DocIDs))
		return err
	}

	if len(opts.queries) > 0 {
		for _, q := range opts.queries {
			if err := answer(q); err != nil {
				return err
			}
		}
		return nil
	}

	sc := bufio.NewScanner(stdin)
	for sc.Scan() {
		q := strings.TrimSpace(sc.Text())
		if q == "" {
			continue
		}
		if err := answer(q); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return sc.Err()
}
