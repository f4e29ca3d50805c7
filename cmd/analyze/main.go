package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/sentiscope/config"
	"github.com/spacesedan/sentiscope/internal/clients"
	"github.com/spacesedan/sentiscope/internal/clients/kafka_client"
	"github.com/spacesedan/sentiscope/internal/db"
	"github.com/spacesedan/sentiscope/internal/logging"
	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/spacesedan/sentiscope/internal/processing"
	"github.com/spacesedan/sentiscope/internal/report"
	"github.com/spacesedan/sentiscope/internal/sentiment"
)

type flags struct {
	handle string
	limit  int
	recent bool
	format string
	export bool
}

func parseFlags(cfg config.Config) flags {
	var f flags
	flag.StringVar(&f.handle, "handle", "", "Twitter handle to analyze, with or without the leading @")
	flag.IntVar(&f.limit, "limit", cfg.DefaultLimit, "maximum number of tweets to fetch")
	flag.BoolVar(&f.recent, "recent", false, "list the fetched tweets without scoring them")
	flag.StringVar(&f.format, "format", "table", "output format: table, json, markdown or html")
	flag.BoolVar(&f.export, "export", false, "publish the report to every configured sink (Kafka, DynamoDB, OpenSearch)")
	flag.Parse()
	return f
}

func main() {
	config.LoadEnv(os.Getenv("APP_ENV"))
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.InitLogger(cfg.LogLevel)

	f := parseFlags(cfg)
	if f.handle == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, f, os.Stdout)
	if models.IsFetchKind(err, models.FetchUnknownHandle) {
		fmt.Println("no documents found")
		return
	}
	if err != nil {
		var fe *models.FetchError
		if errors.As(err, &fe) {
			fmt.Fprintf(os.Stderr, "fetch failed (%s, retryable=%t): %v\n", fe.Kind, fe.Retryable(), err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, f flags, out io.Writer) error {
	var source processing.DocumentSource = clients.NewTwitterClient(cfg.Twitter)
	if cfg.Valkey.Enabled() {
		vc, err := clients.NewValkeyClient(cfg.Valkey)
		if err != nil {
			slog.Warn("[Analyze] Timeline cache disabled", slog.String("error", err.Error()))
		} else {
			defer vc.Close()
			source = clients.NewCachedSource(source, vc, cfg.Valkey.TimelineTTL)
		}
	}

	pipeline := processing.NewPipeline(source, sentiment.NewVaderScorer(),
		processing.WithLanguage(cfg.Language),
		processing.WithWorkers(cfg.Workers))

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	if f.recent {
		result, err := pipeline.Recent(fetchCtx, f.handle, f.limit)
		if err != nil {
			return err
		}
		if len(result.Documents) == 0 {
			_, err := fmt.Fprintln(out, "no documents found")
			return err
		}
		return report.WriteDocuments(out, result.Documents)
	}

	result, err := pipeline.Analyze(fetchCtx, f.handle, f.limit)
	if err != nil {
		return err
	}
	rep := processing.NewReport(result)

	if err := render(out, f.format, rep); err != nil {
		return err
	}

	if f.export {
		sinks, closeSinks, err := buildSinks(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSinks()
		if err := processing.ExportAll(ctx, rep, sinks...); err != nil {
			return err
		}
	}
	return nil
}

func render(out io.Writer, format string, rep models.Report) error {
	switch format {
	case "json":
		return report.WriteJSON(out, rep)
	case "markdown":
		_, err := out.Write(report.Markdown(rep))
		return err
	case "html":
		_, err := out.Write(report.HTML(rep))
		return err
	case "table", "":
		if len(rep.Records) == 0 {
			_, err := fmt.Fprintln(out, "no documents found")
			return err
		}
		if err := report.WriteTable(out, rep.Records); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return report.WriteChart(out, rep.Counts)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func buildSinks(ctx context.Context, cfg config.Config) ([]processing.Sink, func(), error) {
	var sinks []processing.Sink
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Kafka.Enabled() {
		producer, err := kafka_client.NewResultsProducer(ctx, kafka_client.NewKafkaConfig(cfg.Kafka))
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, producer)
		closers = append(closers, producer.Close)
	}

	if cfg.AWS.Enabled() {
		client, err := clients.NewDynamoDBClient(ctx, cfg.AWS)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, db.NewRecordStore(client, cfg.AWS.DynamoDBTable))
	}

	if cfg.OpenSearch.Enabled() {
		index, err := clients.NewReportIndex(ctx, cfg.OpenSearch, cfg.AWS.Region)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, index)
	}

	if len(sinks) == 0 {
		slog.Warn("[Analyze] -export set but no Kafka broker, DynamoDB table or OpenSearch endpoint is configured")
	}
	return sinks, closeAll, nil
}
