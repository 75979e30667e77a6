// Package engine orchestrates query generation: layer merging, reference
// validation, query assembly, and template rendering. The engine holds no
// per-request state; every Generate call is a pure function of its inputs,
// so independent requests may run concurrently without coordination.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leapstack-labs/expsql/internal/macro"
	"github.com/leapstack-labs/expsql/internal/merge"
	"github.com/leapstack-labs/expsql/internal/plan"
	"github.com/leapstack-labs/expsql/internal/template"
	"github.com/leapstack-labs/expsql/internal/validate"
	"github.com/leapstack-labs/expsql/pkg/core"
	"go.starlark.net/starlark"
	"golang.org/x/sync/errgroup"
)

// Config holds engine configuration.
type Config struct {
	// MacrosDir is the directory of user .star macro files (optional).
	MacrosDir string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine generates analytical SQL from resolved configurations.
type Engine struct {
	logger *slog.Logger
	macros *macro.Registry
}

// New creates an engine, loading user macros when a macros directory is
// configured.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registry := macro.NewRegistry()
	if cfg.MacrosDir != "" {
		if err := registry.LoadDir(cfg.MacrosDir); err != nil {
			return nil, fmt.Errorf("failed to load macros: %w", err)
		}
	}
	logger.Debug("engine initialized", "macros", registry.Names())

	return &Engine{logger: logger, macros: registry}, nil
}

// Resolve merges the ordered layers into one configuration and validates
// it. Merge errors (malformed overrides) and validation findings are
// returned together; none of them abort resolution, since query generation
// can still proceed for unaffected entities.
func (e *Engine) Resolve(layers []*merge.Layer) (*core.Configuration, []error) {
	cfg, errs := merge.Merge(layers)
	errs = append(errs, validate.Validate(cfg)...)
	e.logger.Debug("configuration resolved",
		"layers", len(layers),
		"data_sources", len(cfg.DataSources),
		"metrics", len(cfg.Metrics),
		"problems", len(errs))
	return cfg, errs
}

// Result is the outcome of one generation request.
type Result struct {
	// RequestID tags log lines and reports for this invocation.
	RequestID string
	// SQL is the final statement with no dangling placeholders.
	SQL string
	// Excluded lists metrics dropped from the plan and why.
	Excluded []plan.Exclusion
	// Warnings are non-fatal notes, e.g. dropped duplicate join edges.
	Warnings []string
}

// Generate assembles and renders the SQL for one request against an
// already-resolved configuration. Reference problems exclude individual
// metrics and are reported on the Result; template errors (missing
// experiment context, unknown macros) are fatal because the generated SQL
// would be incomplete.
func (e *Engine) Generate(ctx context.Context, cfg *core.Configuration, req plan.Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := e.logger.With("request_id", id)

	qp, planErrs := plan.Assemble(req, cfg)
	for _, err := range planErrs {
		logger.Warn("metric excluded from plan", "reason", err)
	}
	if len(qp.Blocks) == 0 {
		return nil, fmt.Errorf("no metrics could be planned: %w", errors.Join(planErrs...))
	}

	raw := plan.BuildSQL(qp)

	tmplCtx := template.NewContext(e.macros.StringDict(), experimentValue(req.Experiment))
	sql, err := tmplCtx.Render(raw, "query:"+id)
	if err != nil {
		return nil, err
	}

	logger.Debug("query generated",
		"blocks", len(qp.Blocks),
		"joins", len(qp.Joins),
		"excluded", len(qp.Excluded))

	return &Result{
		RequestID: id,
		SQL:       sql,
		Excluded:  qp.Excluded,
		Warnings:  qp.Warnings,
	}, nil
}

// GenerateAll runs independent requests concurrently against the same
// configuration. The configuration is immutable, so no synchronization is
// needed beyond the errgroup itself. Results keep request order.
func (e *Engine) GenerateAll(ctx context.Context, cfg *core.Configuration, reqs []plan.Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	g, ctx := errgroup.WithContext(ctx)

	for i, req := range reqs {
		g.Go(func() error {
			result, err := e.Generate(ctx, cfg, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// experimentValue converts the request's experiment context into the
// Starlark struct exposed to template expressions. A nil context leaves the
// "experiment" name undefined so references to it fail loudly.
func experimentValue(exp *plan.ExperimentContext) starlark.Value {
	if exp == nil {
		return nil
	}
	return template.ExperimentValue(exp.Slug, exp.StartDateStr, exp.LastEnrollmentDateStr)
}
