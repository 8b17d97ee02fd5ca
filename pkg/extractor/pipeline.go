package extractor

import (
	"context"
	"fmt"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Pipeline runs extraction and resolution over a batch of texts. Each text
// is resolved with its own entity registry.
type Pipeline struct {
	extractor *Extractor
	parallel  int
}

// NewPipeline processes up to parallel texts at a time.
func NewPipeline(extractor *Extractor, parallel int) *Pipeline {
	if parallel <= 0 {
		parallel = 1
	}
	return &Pipeline{extractor: extractor, parallel: parallel}
}

// ExtractAndResolve turns a single text into a resolved result.
func (p *Pipeline) ExtractAndResolve(ctx context.Context, text string) (extraction.Result, error) {
	lite, err := p.extractor.Extract(ctx, text)
	if err != nil {
		return extraction.Result{}, err
	}
	return extraction.Resolve(lite), nil
}

// Run returns one result per text in input order. The first failure cancels
// the remaining texts.
func (p *Pipeline) Run(ctx context.Context, texts []string) ([]extraction.Result, error) {
	results := make([]extraction.Result, len(texts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)

	for i, text := range texts {
		g.Go(func() error {
			res, err := p.ExtractAndResolve(gCtx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("[Extract] Batch resolved", "texts", len(texts))
	return results, nil
}
