package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/geocoder-service/internal/adapter/googlev3"
	"github.com/couchcryptid/geocoder-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/geocoder-service/internal/adapter/kafka"
	"github.com/couchcryptid/geocoder-service/internal/adapter/rediscache"
	"github.com/couchcryptid/geocoder-service/internal/config"
	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	"github.com/couchcryptid/geocoder-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client, err := googlev3.NewClient(googlev3.Options{
		Domain:    cfg.GoogleDomain,
		Protocol:  cfg.GoogleProtocol,
		ClientID:  cfg.GoogleClientID,
		SecretKey: cfg.GoogleSecretKey,
		Timeout:   cfg.GoogleTimeout,
		ProxyURL:  cfg.GoogleProxyURL,
		QPS:       cfg.GoogleQPS,
	}, logger, metrics)
	if err != nil {
		logger.Error("failed to create geocoding client", "error", err)
		os.Exit(1)
	}
	logger.Info("google geocoding configured",
		"domain", cfg.GoogleDomain,
		"protocol", cfg.GoogleProtocol,
		"premium", client.Premium(),
		"qps", cfg.GoogleQPS,
	)

	checks := readiness{client}

	var geocoder domain.Geocoder = client
	if cfg.RedisURL != "" {
		rdb, err := rediscache.NewClient(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to configure redis cache", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		shared := rediscache.New(geocoder, rdb, cfg.CacheTTL, logger, metrics)
		geocoder = shared
		checks = append(checks, shared)
		logger.Info("shared geocode cache enabled", "ttl", cfg.CacheTTL)
	}
	if cfg.CacheSize > 0 {
		cached, err := googlev3.NewCachedGeocoder(geocoder, cfg.CacheSize, metrics)
		if err != nil {
			logger.Error("failed to configure geocode cache", "error", err)
			os.Exit(1)
		}
		geocoder = cached
		logger.Info("geocode cache enabled", "cache_size", cfg.CacheSize)
	}

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(geocoder, logger)
		p = pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		checks = append(checks, reader)
		logger.Info("kafka pipeline enabled",
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
			"group_id", cfg.KafkaGroupID,
		)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, geocoder, checks, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if p != nil {
		g.Go(func() error {
			return p.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
	}

	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// readiness reports ready only when every checker does.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
