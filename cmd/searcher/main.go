package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/searchlab/tweetindex/internal/analytics"
	"github.com/searchlab/tweetindex/internal/indexer"
	"github.com/searchlab/tweetindex/internal/loader"
	"github.com/searchlab/tweetindex/internal/searcher/cache"
	"github.com/searchlab/tweetindex/internal/searcher/executor"
	"github.com/searchlab/tweetindex/internal/searcher/handler"
	"github.com/searchlab/tweetindex/pkg/config"
	"github.com/searchlab/tweetindex/pkg/health"
	"github.com/searchlab/tweetindex/pkg/kafka"
	"github.com/searchlab/tweetindex/pkg/logger"
	"github.com/searchlab/tweetindex/pkg/metrics"
	"github.com/searchlab/tweetindex/pkg/middleware"
	pkgredis "github.com/searchlab/tweetindex/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service", "port", cfg.Server.Port, "source", cfg.Loader.Source)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	src, closeSrc, err := loader.Open(ctx, cfg)
	if err != nil {
		return err
	}
	ix, stats, err := indexer.NewEngine(m).Build(ctx, src)
	closeSrc()
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	aggregator := analytics.NewAggregator()
	buildEvent := analytics.IndexEvent{
		Type:        analytics.EventIndexBuild,
		Source:      stats.Source,
		Documents:   stats.Documents,
		Skipped:     stats.Skipped,
		Terms:       stats.Terms,
		Fingerprint: stats.Fingerprint,
		DurationMs:  stats.Duration.Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}
	aggregator.RecordIndex(buildEvent)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", ix.DocCount(), ix.Terms()),
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(cache.NewGuardedStore(redisClient, 250*time.Millisecond), cfg.Redis.CacheTTL, ix.Fingerprint(), m)
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := redisClient.Ping(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var searchCollector *analytics.Collector
	if cfg.Kafka.Enabled {
		searchProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer searchProducer.Close()
		searchCollector = analytics.NewCollector(searchProducer, analytics.CollectorConfig{})
		searchCollector.Start(ctx)
		defer searchCollector.Close()

		indexProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexEvents)
		publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := indexProducer.Publish(publishCtx, kafka.Event{Key: buildEvent.Source, Value: buildEvent}); err != nil {
			slog.Warn("index event not published", "error", err)
		}
		cancel()
		indexProducer.Close()
		slog.Info("analytics export enabled",
			"brokers", cfg.Kafka.Brokers,
			"search_topic", cfg.Kafka.Topics.SearchEvents,
		)
	}

	exec := executor.New(ix, m)
	h := handler.New(exec, queryCache, searchCollector, aggregator, m, cfg.Search)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.QueryTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	servers := []*http.Server{server}
	if cfg.Metrics.Enabled {
		servers = append(servers, metrics.NewServer(cfg.Metrics.Port, reg))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
