// Package extractor turns biography text into lite extraction records by
// splitting it into token-bounded units and asking a language model for each.
package extractor

import (
	"context"
	"fmt"
	"math"

	"github.com/DecisionNerd/infoextract-cidoc/internal/util"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/ai"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	formatName        = "cidoc_extraction"
	formatDescription = "CIDOC CRM entities and relationships found in a biographical text"
)

// Config bounds the work of an Extractor.
type Config struct {
	Model            string
	Thinking         string
	Encoder          string
	MaxTokens        int
	ParallelRequests int
	MaxRetries       int
}

// DefaultConfig returns the settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		Encoder:          DefaultEncoder,
		MaxTokens:        2000,
		ParallelRequests: 4,
		MaxRetries:       3,
	}
}

// Extractor produces a LiteResult from free text.
type Extractor struct {
	client ai.Client
	cfg    Config
	count  TokenCounter
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithTokenCounter replaces the tiktoken based counter.
func WithTokenCounter(count TokenCounter) Option {
	return func(e *Extractor) {
		e.count = count
	}
}

// New creates an Extractor backed by client.
func New(client ai.Client, cfg Config, opts ...Option) (*Extractor, error) {
	def := DefaultConfig()
	if cfg.Encoder == "" {
		cfg.Encoder = def.Encoder
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.ParallelRequests <= 0 {
		cfg.ParallelRequests = def.ParallelRequests
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}

	e := &Extractor{client: client, cfg: cfg}
	for _, o := range opts {
		o(e)
	}

	if e.count == nil {
		count, err := TiktokenCounter(cfg.Encoder)
		if err != nil {
			return nil, fmt.Errorf("load encoder %s: %w", cfg.Encoder, err)
		}
		e.count = count
	}
	return e, nil
}

// Extract splits text into units, extracts each in parallel and merges the
// per-unit results in unit order. With more than one unit, ref ids are
// scoped as u{n}/{ref} so units cannot collide; entities that share a label
// across units still collapse during resolution.
func (e *Extractor) Extract(ctx context.Context, text string) (extraction.LiteResult, error) {
	units := SplitUnits(text, e.cfg.MaxTokens, e.count)
	if len(units) == 0 {
		return extraction.LiteResult{}, nil
	}

	results := make([]extraction.LiteResult, len(units))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ParallelRequests)

	for i, unit := range units {
		g.Go(func() error {
			lite, err := util.RetryWithContext(gCtx, e.cfg.MaxRetries, func(ctx context.Context) (extraction.LiteResult, error) {
				return e.extractUnit(ctx, unit)
			})
			if err != nil {
				return fmt.Errorf("extract unit %d: %w", unit.Index, err)
			}
			results[i] = lite
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return extraction.LiteResult{}, err
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return mergeUnits(results), nil
}

func (e *Extractor) extractUnit(ctx context.Context, unit Unit) (extraction.LiteResult, error) {
	opts := []ai.GenerateOption{ai.WithSystemPrompts(ai.ExtractSystemPrompt)}
	if e.cfg.Model != "" {
		opts = append(opts, ai.WithModel(e.cfg.Model))
	}
	if e.cfg.Thinking != "" {
		opts = append(opts, ai.WithThinking(e.cfg.Thinking))
	}

	var out unitResponse
	prompt := fmt.Sprintf(ai.ExtractPrompt, unit.Text)
	if err := e.client.GenerateCompletionWithFormat(ctx, formatName, formatDescription, prompt, &out, opts...); err != nil {
		return extraction.LiteResult{}, err
	}

	lite := out.toLite()
	if err := lite.Validate(); err != nil {
		logger.Warn("[Extract] Discarding malformed unit response", "unit", unit.Index, "err", err)
		return extraction.LiteResult{}, err
	}

	logger.Debug("[Extract] Unit extracted",
		"unit", unit.Index,
		"entities", len(lite.Entities),
		"relationships", len(lite.Relationships),
	)
	return lite, nil
}

func scopeRef(unit int, ref string) string {
	if ref == "" {
		return ""
	}
	return fmt.Sprintf("u%d/%s", unit+1, ref)
}

func mergeUnits(results []extraction.LiteResult) extraction.LiteResult {
	merged := extraction.LiteResult{OverallConfidence: math.Inf(1)}

	for i, r := range results {
		for _, ent := range r.Entities {
			ent.RefID = scopeRef(i, ent.RefID)
			merged.Entities = append(merged.Entities, ent)
		}
		for _, rel := range r.Relationships {
			rel.SourceRef = scopeRef(i, rel.SourceRef)
			rel.TargetRef = scopeRef(i, rel.TargetRef)
			merged.Relationships = append(merged.Relationships, rel)
		}
		merged.OverallConfidence = math.Min(merged.OverallConfidence, r.OverallConfidence)
	}
	return merged
}
