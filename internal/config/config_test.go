package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/ai/ollama"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/ai/openai"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extractor"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger/console"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/validate"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"AI_ADAPTER", "VALIDATION_SEVERITY", "AWS_BUCKET", "EXTRACT_MAX_TOKENS", "PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AIAdapter != "openai" || cfg.Severity != validate.SeverityWarn || cfg.Port != "8080" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ExtractMaxTokens != extractor.DefaultConfig().MaxTokens || cfg.S3Enabled {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_ADAPTER", "ollama")
	t.Setenv("VALIDATION_SEVERITY", "raise")
	t.Setenv("EXTRACT_MAX_TOKENS", "500")
	t.Setenv("NEO4J_URL", "bolt://localhost:7687")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AIAdapter != "ollama" || cfg.Severity != validate.SeverityRaise || cfg.ExtractMaxTokens != 500 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.LogFormat != console.FormatJSON {
		t.Fatalf("log format = %q", cfg.LogFormat)
	}
	if cfg.Neo4j.URL != "bolt://localhost:7687" {
		t.Fatalf("neo4j = %+v", cfg.Neo4j)
	}

	client, err := cfg.NewAIClient()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := client.(*ollama.ExtractionClient); !ok {
		t.Fatalf("client = %T", client)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"AI_ADAPTER":          "bedrock",
		"VALIDATION_SEVERITY": "fatal",
		"LOG_FORMAT":          "logfmt",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s should fail", key, value)
			}
		})
	}
}

func TestNewComponents(t *testing.T) {
	t.Setenv("AI_ADAPTER", "")
	t.Setenv("AWS_BUCKET", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	client, err := cfg.NewAIClient()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := client.(*openai.ExtractionClient); !ok {
		t.Fatalf("client = %T", client)
	}

	words := func(s string) int { return len(s) }
	if _, err := cfg.NewPipeline(client, extractor.WithTokenCounter(words)); err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	router, err := cfg.NewSources(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := router.Load(context.Background(), "s3://bios/ada.txt"); err == nil {
		t.Fatal("s3 should be disabled without a bucket")
	}
	if _, err := router.Load(context.Background(), "/etc/hostname"); err == nil {
		t.Fatal("local files should be disabled")
	}

	path := filepath.Join(t.TempDir(), "ada.txt")
	if err := os.WriteFile(path, []byte("Ada Lovelace"), 0o600); err != nil {
		t.Fatal(err)
	}
	local, err := cfg.NewSources(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if text, err := local.Load(context.Background(), path); err != nil || text != "Ada Lovelace" {
		t.Fatalf("Load() = %q, %v", text, err)
	}
}
