package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DecisionNerd/infoextract-cidoc/internal/config"
	"github.com/DecisionNerd/infoextract-cidoc/internal/queue"
	"github.com/DecisionNerd/infoextract-cidoc/internal/server"
	mid "github.com/DecisionNerd/infoextract-cidoc/internal/server/middleware"
	"github.com/DecisionNerd/infoextract-cidoc/internal/util"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger/console"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store/pgx"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/validate"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Init(console.New(console.Params{
		Debug:  cfg.Debug,
		Prefix: "server",
		Format: cfg.LogFormat,
	}))

	ctx := context.Background()
	reg := crm.Default()
	app := &mid.App{
		Registry:  reg,
		Validator: validate.New(reg),
		Severity:  cfg.Severity,
		APIKey:    cfg.APIKey,
	}

	sources, err := cfg.NewSources(ctx, false)
	if err != nil {
		logger.Fatal("Could not create text sources", "err", err)
	}
	app.Sources = sources

	if cfg.AIModel != "" {
		aiClient, err := cfg.NewAIClient()
		if err != nil {
			logger.Fatal("Could not create AI client", "err", err)
		}
		pipeline, err := cfg.NewPipeline(aiClient)
		if err != nil {
			logger.Fatal("Could not create extraction pipeline", "err", err)
		}
		app.Resolver = pipeline
	} else {
		logger.Warn("AI_CHAT_EXTRACT_MODEL is not set, /api/extract is disabled")
	}

	if cfg.DatabaseURL != "" {
		if err := pgx.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("Unable to migrate database", "err", err)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}
		defer pool.Close()
		app.Store = pgx.NewResultDBStorage(pool)
	}

	if util.GetEnvString("RABBITMQ_HOST", "") != "" {
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
		app.Queue = ch
	}

	server.Run(app)
}
