package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/internal/metrics"
	"github.com/DecisionNerd/infoextract-cidoc/internal/storage"
	"github.com/DecisionNerd/infoextract-cidoc/internal/util"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/export"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/source"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/validate"
)

// Resolver turns text into a resolved result.
type Resolver interface {
	ExtractAndResolve(ctx context.Context, text string) (extraction.Result, error)
}

// GraphImporter writes a CRM graph to a graph database.
type GraphImporter interface {
	Import(ctx context.Context, graph *crm.Graph) error
}

// Processor runs extraction jobs: load text, extract and resolve, validate,
// save, then optionally import and export.
type Processor struct {
	Resolver  Resolver
	Web       source.Loader
	S3        source.Loader
	Store     store.ResultStorage
	Registry  *crm.Registry
	Validator *validate.Validator
	Severity  validate.Severity

	// Leases keeps redeliveries of one run from overlapping.
	Leases store.RunLocker

	// Optional sinks.
	Importer     GraphImporter
	Exports      storage.ObjectPutter
	ExportBucket string
}

func (p *Processor) loadText(ctx context.Context, job ExtractJob) (string, error) {
	switch {
	case job.Text != "":
		return job.Text, nil
	case job.URL != "":
		if p.Web == nil {
			return "", fmt.Errorf("%w: web sources are disabled", ErrInvalidJob)
		}
		return p.Web.Load(ctx, job.URL)
	default:
		if p.S3 == nil {
			return "", fmt.Errorf("%w: s3 sources are disabled", ErrInvalidJob)
		}
		return p.S3.Load(ctx, job.S3Key)
	}
}

// ProcessExtractMessage handles one extract_queue message body.
func (p *Processor) ProcessExtractMessage(ctx context.Context, body []byte) error {
	job, err := DecodeExtractJob(body)
	if err != nil {
		return err
	}

	start := time.Now()
	var result *extraction.Result
	if p.Leases != nil {
		err = p.Leases.WithRunLease(ctx, job.RunID, func(ctx context.Context) error {
			var runErr error
			result, runErr = p.run(ctx, job)
			return runErr
		})
	} else {
		result, err = p.run(ctx, job)
	}
	if errors.Is(err, store.ErrRunBusy) {
		logger.Warn("[Queue] Run is being processed elsewhere", "run_id", job.RunID)
		return fmt.Errorf("run %s: %w", job.RunID, err)
	}
	metrics.RecordRun(job.Source(), start, err)
	if err != nil {
		if markErr := p.Store.MarkFailed(ctx, job.RunID, err.Error()); markErr != nil {
			logger.Error("[Queue] Failed to mark run failed", "run_id", job.RunID, "err", markErr)
		}
		return fmt.Errorf("run %s: %w", job.RunID, err)
	}

	metrics.RecordResult(result)
	logger.Info(
		"[Queue] Extraction run completed",
		"run_id", job.RunID,
		"entities", len(result.Entities),
		"relationships", len(result.Relationships),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (p *Processor) run(ctx context.Context, job ExtractJob) (*extraction.Result, error) {
	text, err := p.loadText(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("load text: %w", err)
	}

	result, err := p.Resolver.ExtractAndResolve(ctx, text)
	if err != nil {
		return nil, err
	}

	reg := p.Registry
	if reg == nil {
		reg = crm.Default()
	}
	graph := extraction.ToCRM(&result, reg)

	v := p.Validator
	if v == nil {
		v = validate.New(reg)
	}
	sev := p.Severity
	if sev == "" {
		sev = validate.SeverityWarn
	}
	report, err := v.Check(&graph, sev)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["validation"] = map[string]any{
		"valid":                report.Valid(),
		"quantifier_issues":    report.Quantifiers.TotalIssues,
		"typing_issues":        report.Typing.TotalIssues,
		"entities_with_issues": report.Quantifiers.EntitiesWithIssues + report.Typing.EntitiesWithIssues,
	}

	if err := p.Store.SaveResult(ctx, job.RunID, &result); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}

	if p.Importer != nil {
		if err := p.Importer.Import(ctx, &graph); err != nil {
			return nil, fmt.Errorf("import graph: %w", err)
		}
	}
	if p.Exports != nil {
		if err := p.export(ctx, job.RunID, reg, &graph); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

var exportRetry = util.RetryPolicy{MaxTries: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second}

func (p *Processor) export(ctx context.Context, runID string, reg *crm.Registry, graph *crm.Graph) error {
	md, err := export.NewMarkdown(reg, export.WithGraph(graph)).RenderGraph(graph, export.StyleCard)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	script := export.NewCypher(reg, export.DefaultCypherOptions()).Script(graph)

	var errs []error
	for ext, data := range map[string]string{"md": md, "cypher": script} {
		key := storage.ExportKey(runID, ext)
		err := util.RetryErrWithContext(ctx, exportRetry, func(ctx context.Context) error {
			_, err := storage.PutFile(ctx, p.Exports, p.ExportBucket, key, []byte(data))
			return err
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
