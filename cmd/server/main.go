package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spacesedan/sentiscope/config"
	"github.com/spacesedan/sentiscope/internal/accounts"
	"github.com/spacesedan/sentiscope/internal/clients"
	"github.com/spacesedan/sentiscope/internal/clients/kafka_client"
	"github.com/spacesedan/sentiscope/internal/db"
	"github.com/spacesedan/sentiscope/internal/logging"
	"github.com/spacesedan/sentiscope/internal/metrics"
	"github.com/spacesedan/sentiscope/internal/monitoring"
	"github.com/spacesedan/sentiscope/internal/processing"
	"github.com/spacesedan/sentiscope/internal/sentiment"
	"github.com/spacesedan/sentiscope/internal/server"
	"golang.org/x/crypto/bcrypt"
)

const SHUTDOWN_TIMEOUT = 15 * time.Second

func main() {
	config.LoadEnv(os.Getenv("APP_ENV"))
	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := monitoring.NewMonitor(monitoring.HEALTHCHECK_INTERVAL)

	var source processing.DocumentSource = clients.NewTwitterClient(cfg.Twitter)
	var store accounts.Store = accounts.NewMemoryStore()

	if cfg.Valkey.Enabled() {
		vc, err := clients.NewValkeyClient(cfg.Valkey)
		if err != nil {
			slog.Error("[Main] Failed to connect to valkey", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer vc.Close()

		source = clients.NewCachedSource(source, vc, cfg.Valkey.TimelineTTL)
		store = accounts.NewValkeyStore(vc.Client)
		monitor.Register("valkey", vc.Ping)
	}

	if cfg.Postgres.Enabled() {
		pool, err := clients.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("[Main] Failed to connect to postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		pgStore := accounts.NewPostgresStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			slog.Error("[Main] Failed to prepare accounts table", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = pgStore
		monitor.Register("postgres", pool.Ping)
	}

	if !cfg.Valkey.Enabled() && !cfg.Postgres.Enabled() {
		slog.Warn("[Main] Neither POSTGRES_DSN nor VALKEY_INIT_ADDRESS is set, accounts are kept in memory")
	}

	var sinks []processing.Sink

	if cfg.Kafka.Enabled() {
		producer, err := initProducer(ctx, cfg.Kafka)
		if err != nil {
			slog.Error("[Main] Kafka unavailable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer producer.Close()

		sinks = append(sinks, producer)
		monitor.Register("kafka", producer.Ping)
	}

	if cfg.AWS.Enabled() {
		client, err := clients.NewDynamoDBClient(ctx, cfg.AWS)
		if err != nil {
			slog.Error("[Main] DynamoDB unavailable", slog.String("error", err.Error()))
			os.Exit(1)
		}

		sinks = append(sinks, db.NewRecordStore(client, cfg.AWS.DynamoDBTable))
		monitor.Register("dynamodb", func(ctx context.Context) error {
			_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(cfg.AWS.DynamoDBTable),
			})
			return err
		})
	}

	if cfg.OpenSearch.Enabled() {
		index, err := clients.NewReportIndex(ctx, cfg.OpenSearch, cfg.AWS.Region)
		if err != nil {
			slog.Error("[Main] OpenSearch unavailable", slog.String("error", err.Error()))
			os.Exit(1)
		}

		sinks = append(sinks, index)
		monitor.Register("opensearch", index.Ping)
	}

	svc, err := accounts.NewService(store, bcrypt.DefaultCost)
	if err != nil {
		slog.Error("[Main] Failed to prepare account service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipeline := processing.NewPipeline(source, sentiment.NewVaderScorer(),
		processing.WithLanguage(cfg.Language),
		processing.WithWorkers(cfg.Workers))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.NewServer(pipeline, svc, monitor, server.Options{
		RequireAuth:  cfg.RequireAuth,
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
		FetchTimeout: cfg.FetchTimeout,
		Metrics:      metrics.New(reg),
	}, sinks...)

	go monitor.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] Server stopped", slog.String("error", err.Error()))
		}
	case <-ctx.Done():
		slog.Info("[Main] Shutting down server gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("[Main] Shutdown failed", slog.String("error", err.Error()))
	}
}

// initProducer retries until the broker accepts the transactional producer or
// ctx ends.
func initProducer(ctx context.Context, cfg config.KafkaConfig) (*kafka_client.ResultsProducer, error) {
	for attempt := 1; ; attempt++ {
		producer, err := kafka_client.NewResultsProducer(ctx, kafka_client.NewKafkaConfig(cfg))
		if err == nil {
			return producer, nil
		}
		if attempt >= kafka_client.MAX_RETRIES {
			return nil, err
		}

		slog.Warn("[Main] Kafka init failed, retrying...",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}
