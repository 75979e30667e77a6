// Package validate checks structural and referential consistency of a
// resolved configuration. Validation is pure: it never mutates the
// configuration, and every finding is returned rather than raised so a
// caller can report all problems in one pass.
package validate

import (
	"sort"

	"github.com/leapstack-labs/expsql/internal/graph"
	"github.com/leapstack-labs/expsql/pkg/core"
)

// Validate returns every consistency problem found in cfg. An empty slice
// means the configuration is structurally sound. Callers decide whether any
// finding is fatal; query generation can proceed for entities unaffected by
// the reported problems.
func Validate(cfg *core.Configuration) []error {
	var errs []error

	errs = append(errs, checkMetricReferences(cfg)...)
	errs = append(errs, checkSegmentReferences(cfg)...)
	errs = append(errs, checkDimensionReferences(cfg)...)
	errs = append(errs, checkJoinTargets(cfg)...)
	errs = append(errs, checkJoinCycles(cfg)...)
	errs = append(errs, checkMetricNames(cfg)...)
	errs = append(errs, checkStatisticParameters(cfg)...)

	return errs
}

func checkMetricReferences(cfg *core.Configuration) []error {
	var errs []error
	for _, slug := range cfg.MetricSlugs() {
		metric := cfg.Metrics[slug]
		if _, ok := cfg.DataSources[metric.DataSource]; !ok {
			errs = append(errs, &core.UnknownDataSourceError{
				Kind:       "metric",
				Slug:       slug,
				DataSource: metric.DataSource,
			})
		}
	}
	return errs
}

func checkSegmentReferences(cfg *core.Configuration) []error {
	var errs []error
	for _, slug := range cfg.SegmentSlugs() {
		segment := cfg.Segments[slug]
		if _, ok := cfg.SegmentDataSources[segment.DataSource]; !ok {
			errs = append(errs, &core.UnknownDataSourceError{
				Kind:       "segment",
				Slug:       slug,
				DataSource: segment.DataSource,
			})
		}
	}
	return errs
}

func checkDimensionReferences(cfg *core.Configuration) []error {
	var errs []error
	for _, slug := range sortedKeys(cfg.Dimensions) {
		dim := cfg.Dimensions[slug]
		if dim.DataSource == "" {
			continue
		}
		if _, ok := cfg.DataSources[dim.DataSource]; !ok {
			errs = append(errs, &core.UnknownDataSourceError{
				Kind:       "dimension",
				Slug:       slug,
				DataSource: dim.DataSource,
			})
		}
	}
	return errs
}

func checkJoinTargets(cfg *core.Configuration) []error {
	var errs []error
	for _, slug := range cfg.DataSourceSlugs() {
		ds := cfg.DataSources[slug]
		for _, target := range ds.JoinTargets() {
			if _, ok := cfg.DataSources[target]; !ok {
				errs = append(errs, &core.UnknownJoinTargetError{
					DataSource: slug,
					Target:     target,
				})
			}
		}
	}
	return errs
}

func checkJoinCycles(cfg *core.Configuration) []error {
	if cyclic, cycle := graph.FromConfiguration(cfg).HasCycle(); cyclic {
		return []error{&core.CyclicJoinGraphError{Cycle: cycle}}
	}
	return nil
}

// checkMetricNames rejects metric slugs that can never be emitted because
// they collide with the shared key columns every generated query exposes.
// Collisions between metrics and request-supplied dimensions are detected
// at assembly time, since they depend on the request.
func checkMetricNames(cfg *core.Configuration) []error {
	var errs []error
	for _, slug := range cfg.MetricSlugs() {
		if slug == core.DefaultClientIDColumn || slug == core.DefaultSubmissionDateColumn {
			errs = append(errs, &core.DuplicateMetricNameError{
				Name:     slug,
				Conflict: "join key",
			})
		}
	}
	return errs
}

func checkStatisticParameters(cfg *core.Configuration) []error {
	var errs []error
	for _, slug := range cfg.MetricSlugs() {
		metric := cfg.Metrics[slug]
		for _, statName := range sortedKeys(metric.Statistics) {
			stat, ok := cfg.Statistics[statName]
			if !ok {
				// Statistics without a defaults record accept free-form
				// parameters consumed only by downstream tooling.
				continue
			}
			for _, param := range sortedKeys(metric.Statistics[statName]) {
				if _, ok := stat.Defaults[param]; !ok {
					errs = append(errs, &core.UnknownStatisticParameterError{
						Metric:    slug,
						Statistic: statName,
						Parameter: param,
					})
				}
			}
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
