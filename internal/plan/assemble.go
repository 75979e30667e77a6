package plan

import (
	"fmt"

	"github.com/leapstack-labs/expsql/pkg/core"
)

// Assemble partitions the requested metrics by data source, builds one
// aggregation block per data source (plus key-only blocks pulled in by join
// dependency chains), and composes the blocks into a full-outer-join chain
// anchored on the first data source in request order.
//
// Reference problems exclude only the affected metrics; the returned error
// slice mirrors the plan's Excluded entries so callers can report a partial
// result. The plan itself is always usable when at least one metric
// survives.
func Assemble(req Request, cfg *core.Configuration) (*QueryPlan, []error) {
	qp := &QueryPlan{
		GroupBy:    req.GroupBy,
		Experiment: req.Experiment,
	}
	var errs []error
	exclude := func(metric string, reason error) {
		qp.Excluded = append(qp.Excluded, Exclusion{Metric: metric, Reason: reason})
		errs = append(errs, reason)
	}

	// Column names already claimed within this query. Metric names must be
	// unique per generated query, not globally.
	usedNames := map[string]string{
		core.DefaultClientIDColumn:       "join key",
		core.DefaultSubmissionDateColumn: "join key",
	}
	for _, dim := range req.GroupBy {
		usedNames[dim.Name] = "dimension"
	}

	// Partition metrics by data source, first occurrence fixing the
	// iteration order. The first data source anchors the join chain.
	var sourceOrder []string
	metricsBySource := make(map[string][]core.Metric)
	seen := make(map[string]bool)

	for _, slug := range req.Metrics {
		if seen[slug] {
			continue
		}
		seen[slug] = true

		metric, ok := cfg.Metrics[slug]
		if !ok {
			exclude(slug, &core.UnknownMetricError{Slug: slug})
			continue
		}
		if _, ok := cfg.DataSources[metric.DataSource]; !ok {
			exclude(slug, &core.UnknownDataSourceError{
				Kind:       "metric",
				Slug:       slug,
				DataSource: metric.DataSource,
			})
			continue
		}
		if conflict, taken := usedNames[slug]; taken {
			exclude(slug, &core.DuplicateMetricNameError{Name: slug, Conflict: conflict})
			continue
		}
		usedNames[slug] = "metric"

		if len(metricsBySource[metric.DataSource]) == 0 {
			sourceOrder = append(sourceOrder, metric.DataSource)
		}
		metricsBySource[metric.DataSource] = append(metricsBySource[metric.DataSource], metric)
	}

	blockIndex := make(map[string]*Block)
	anchor := ""

	addBlock := func(block *Block, edge *JoinEdge) {
		qp.Blocks = append(qp.Blocks, block)
		blockIndex[block.DataSource] = block
		if edge != nil {
			qp.Joins = append(qp.Joins, *edge)
		}
	}

	for _, root := range sourceOrder {
		cp, err := ResolveJoins(root, cfg, req.GroupBy)
		if err != nil {
			// The whole join graph of this data source is unusable, but
			// only for the metrics assigned to it.
			for _, metric := range metricsBySource[root] {
				exclude(metric.Slug, err)
			}
			continue
		}
		qp.Warnings = append(qp.Warnings, cp.Warnings...)

		metrics := metricsBySource[root]
		if existing, ok := blockIndex[root]; ok {
			// Placed earlier as a key-only dependency of another root;
			// upgrade it in place.
			existing.KeyOnly = false
			existing.Metrics = metricColumns(metrics)
		} else {
			block := buildBlock(cfg.DataSources[root], metrics, req)
			var edge *JoinEdge
			if anchor != "" {
				edge = &JoinEdge{
					Left:         anchor,
					Right:        root,
					On:           synthesizeOn(anchor, root, req.GroupBy),
					Relationship: string(core.RelationshipManyToMany),
				}
			}
			addBlock(block, edge)
		}
		if anchor == "" {
			anchor = root
		}

		for _, depEdge := range cp.Edges {
			if _, ok := blockIndex[depEdge.Right]; ok {
				qp.Warnings = append(qp.Warnings,
					fmt.Sprintf("dropping join %s -> %s: %s already in query plan", depEdge.Left, depEdge.Right, depEdge.Right))
				continue
			}
			dep := buildBlock(cfg.DataSources[depEdge.Right], nil, req)
			dep.KeyOnly = true
			edge := depEdge
			addBlock(dep, &edge)
		}
	}

	return qp, errs
}

// buildBlock constructs the aggregation block for one data source. All
// blocks expose the shared keys and the grouping dimensions so synthesized
// join conditions can reference them; only non-key-only blocks carry metric
// columns.
func buildBlock(ds core.DataSource, metrics []core.Metric, req Request) *Block {
	block := &Block{
		DataSource:     ds.Slug,
		FromExpression: ds.FromExpression,
		ClientID:       Column{Name: core.DefaultClientIDColumn, Expression: ds.ClientIDColumn},
		SubmissionDate: Column{Name: core.DefaultSubmissionDateColumn, Expression: ds.SubmissionDateColumn},
		Metrics:        metricColumns(metrics),
	}
	for _, dim := range req.GroupBy {
		block.Dimensions = append(block.Dimensions, Column{Name: dim.Name, Expression: dim.Expression})
	}

	if req.Where != "" {
		block.Where = append(block.Where, req.Where)
	}
	switch {
	case req.Window != nil:
		block.Where = append(block.Where,
			fmt.Sprintf("%s BETWEEN '%s' AND '%s'", ds.SubmissionDateColumn, req.Window.Start, req.Window.End))
	case req.Experiment != nil:
		block.Where = append(block.Where,
			fmt.Sprintf("%s BETWEEN '{{ experiment.start_date_str }}' AND '{{ experiment.last_enrollment_date_str }}'", ds.SubmissionDateColumn))
	}
	if req.Experiment != nil {
		if filter := enrollmentFilter(ds.ExperimentsColumnType); filter != "" {
			block.Where = append(block.Where, filter)
		}
	}

	return block
}

func metricColumns(metrics []core.Metric) []Column {
	cols := make([]Column, 0, len(metrics))
	for _, m := range metrics {
		cols = append(cols, Column{Name: m.Slug, Expression: m.SelectExpression})
	}
	return cols
}

// enrollmentFilter returns the experiment-membership predicate for the
// given experiments column shape. Sources without an experiments column
// cannot be filtered; pre-enrollment rows stay in.
func enrollmentFilter(t core.ExperimentsColumnType) string {
	switch t {
	case core.ExperimentsColumnSimple:
		return "experiments['{{ experiment.slug }}'] IS NOT NULL"
	case core.ExperimentsColumnNative:
		return "experiments['{{ experiment.slug }}'].branch IS NOT NULL"
	case core.ExperimentsColumnGlean:
		return "mozfun.map.get_key(ping_info.experiments, '{{ experiment.slug }}') IS NOT NULL"
	default:
		return ""
	}
}
