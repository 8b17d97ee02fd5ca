package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/internal/config"
	"github.com/DecisionNerd/infoextract-cidoc/internal/metrics"
	"github.com/DecisionNerd/infoextract-cidoc/internal/queue"
	"github.com/DecisionNerd/infoextract-cidoc/internal/storage"
	"github.com/DecisionNerd/infoextract-cidoc/internal/util"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/export"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger/console"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/source"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store/neo4j"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store/pgx"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/validate"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// logger
	logger.Init(console.New(console.Params{
		Debug:  cfg.Debug,
		Prefix: "worker",
		Format: cfg.LogFormat,
	}))

	aiClient, err := cfg.NewAIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}
	pipeline, err := cfg.NewPipeline(aiClient)
	if err != nil {
		logger.Fatal("Could not create extraction pipeline", "err", err)
	}

	// Init pgx client
	if err := pgx.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("Unable to migrate database", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	reg := crm.Default()
	processor := &queue.Processor{
		Resolver:  pipeline,
		Web:       source.NewWebLoader(&http.Client{Timeout: 30 * time.Second}),
		Store:     pgx.NewResultDBStorage(pgConn),
		Leases:    pgx.NewRunLeaser(pgConn, pgx.LeaseOptions{TTL: 2 * time.Minute}),
		Registry:  reg,
		Validator: validate.New(reg),
		Severity:  cfg.Severity,
	}

	if cfg.S3Enabled {
		s3Client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Could not create S3 client", "err", err)
		}
		processor.S3 = source.NewS3Loader(cfg.AWSBucket, s3Client)
		processor.Exports = s3Client
		processor.ExportBucket = cfg.AWSBucket
	}

	if cfg.Neo4j.URL != "" {
		importer, err := neo4j.NewImporter(cfg.Neo4j, export.NewCypher(reg, export.DefaultCypherOptions()))
		if err != nil {
			logger.Fatal("Could not create Neo4j importer", "err", err)
		}
		defer importer.Close(context.Background())
		if err := importer.VerifyConnectivity(ctx); err != nil {
			logger.Fatal("Neo4j is not reachable", "err", err)
		}
		processor.Importer = importer
	}

	if cfg.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", "err", err)
			}
		}()
		defer srv.Close()
	}

	// Init rabbitmq
	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Unable to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.ExtractQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// prefetch=1 keeps one extraction in flight per worker
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.ExtractQueue,
		queue.ExtractQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ExtractQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.ExtractQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.ExtractQueue)
				return
			}

			startTime := time.Now()
			logger.Info("Received message", "queue", queue.ExtractQueue)

			if err := processor.ProcessExtractMessage(ctx, msg.Body); err != nil {
				logger.Error("Error processing message", "queue", queue.ExtractQueue, "err", err)
				queue.HandleProcessingError(ctx, consumerCh, msg, queue.ExtractQueue, err)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.ExtractQueue)
			}

			usage := aiClient.GetMetrics()
			metrics.RecordTokens(usage.InputTokens, usage.OutputTokens)
			logger.Info(
				"AI Metrics",
				"requests", usage.Requests,
				"input_tokens", usage.InputTokens,
				"output_tokens", usage.OutputTokens,
				"total_tokens", usage.TotalTokens,
				"duration", formatDuration(time.Duration(usage.DurationMs)*time.Millisecond),
			)
			logger.Info("Processing time", "duration", formatDuration(time.Since(startTime)))
			aiClient.ResetMetrics()
		}
	}
}
