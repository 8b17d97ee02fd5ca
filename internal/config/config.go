// Package config reads the service configuration from the environment and
// builds the components shared by the binaries.
package config

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/internal/storage"
	"github.com/DecisionNerd/infoextract-cidoc/internal/util"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/ai"
	oai "github.com/DecisionNerd/infoextract-cidoc/pkg/ai/ollama"
	gai "github.com/DecisionNerd/infoextract-cidoc/pkg/ai/openai"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extractor"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger/console"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/source"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store/neo4j"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/validate"
)

// Config is the environment of a binary. Empty connection settings
// disable the matching component.
type Config struct {
	Debug     bool
	LogFormat console.Format
	Port      string

	AIAdapter        string
	AIChatURL        string
	AIChatKey        string
	AIModel          string
	AIThinking       string
	AIParallel       int
	AIMaxRetries     int
	ExtractMaxTokens int
	ExtractEncoder   string
	PipelineParallel int

	DatabaseURL string
	Neo4j       neo4j.Config
	AWSBucket   string
	S3Enabled   bool
	APIKey      string
	MetricsPort string

	Severity validate.Severity
}

// Load reads the configuration. It fails only on values that cannot be
// parsed.
func Load() (Config, error) {
	sev, err := validate.ParseSeverity(util.GetEnvString("VALIDATION_SEVERITY", string(validate.SeverityWarn)))
	if err != nil {
		return Config{}, fmt.Errorf("VALIDATION_SEVERITY: %w", err)
	}

	format, err := console.ParseFormat(util.GetEnvString("LOG_FORMAT", ""))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_FORMAT: %w", err)
	}

	def := extractor.DefaultConfig()
	cfg := Config{
		Debug:     util.GetEnvBool("DEBUG", false),
		LogFormat: format,
		Port:      util.GetEnvString("PORT", "8080"),

		AIAdapter:        util.GetEnvString("AI_ADAPTER", "openai"),
		AIChatURL:        util.GetEnvString("AI_CHAT_URL", ""),
		AIChatKey:        util.GetEnvString("AI_CHAT_KEY", ""),
		AIModel:          util.GetEnvString("AI_CHAT_EXTRACT_MODEL", ""),
		AIThinking:       util.GetEnvString("AI_THINKING", ""),
		AIParallel:       util.GetEnvInt("AI_PARALLEL_REQ", def.ParallelRequests),
		AIMaxRetries:     util.GetEnvInt("AI_MAX_RETRIES", def.MaxRetries),
		ExtractMaxTokens: util.GetEnvInt("EXTRACT_MAX_TOKENS", def.MaxTokens),
		ExtractEncoder:   util.GetEnvString("EXTRACT_ENCODER", def.Encoder),
		PipelineParallel: util.GetEnvInt("PIPELINE_PARALLEL", 2),

		DatabaseURL: util.GetEnvString("DATABASE_URL", ""),
		Neo4j: neo4j.Config{
			URL:      util.GetEnvString("NEO4J_URL", ""),
			Username: util.GetEnvString("NEO4J_USER", ""),
			Password: util.GetEnvString("NEO4J_PASSWORD", ""),
			Database: util.GetEnvString("NEO4J_DATABASE", ""),
		},
		AWSBucket:   storage.Bucket(),
		S3Enabled:   util.GetEnvString("AWS_BUCKET", "") != "",
		APIKey:      util.GetEnvString("API_KEY", ""),
		MetricsPort: util.GetEnvString("METRICS_PORT", ""),

		Severity: sev,
	}
	if cfg.AIAdapter != "openai" && cfg.AIAdapter != "ollama" {
		return Config{}, fmt.Errorf("AI_ADAPTER: unknown adapter %q", cfg.AIAdapter)
	}
	return cfg, nil
}

// NewAIClient builds the extraction client for AI_ADAPTER.
func (c Config) NewAIClient() (ai.Client, error) {
	if c.AIAdapter == "ollama" {
		client, err := oai.NewExtractionClient(oai.NewExtractionClientParams{
			Model:                 c.AIModel,
			BaseURL:               c.AIChatURL,
			ApiKey:                c.AIChatKey,
			MaxConcurrentRequests: int64(c.AIParallel),
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return client, nil
	}
	return gai.NewExtractionClient(gai.NewExtractionClientParams{
		Model:   c.AIModel,
		ChatURL: c.AIChatURL,
		ChatKey: c.AIChatKey,
	}), nil
}

// NewPipeline builds the extract-and-resolve pipeline over client.
func (c Config) NewPipeline(client ai.Client, opts ...extractor.Option) (*extractor.Pipeline, error) {
	ex, err := extractor.New(client, extractor.Config{
		Model:            c.AIModel,
		Thinking:         c.AIThinking,
		Encoder:          c.ExtractEncoder,
		MaxTokens:        c.ExtractMaxTokens,
		ParallelRequests: c.AIParallel,
		MaxRetries:       c.AIMaxRetries,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return extractor.NewPipeline(ex, c.PipelineParallel), nil
}

// NewSources builds the text sources: web pages, S3 objects when a bucket
// is configured, and local files when local is set. Network-facing
// binaries leave local off.
func (c Config) NewSources(ctx context.Context, local bool) (*source.Router, error) {
	router := source.NewRouter().
		Handle(source.KindWeb, source.NewWebLoader(&http.Client{Timeout: 30 * time.Second}))
	if local {
		router.Handle(source.KindFile, source.NewFileLoader())
	}

	if c.S3Enabled {
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		router.Handle(source.KindS3, source.NewS3Loader(c.AWSBucket, client))
	}
	return router, nil
}
