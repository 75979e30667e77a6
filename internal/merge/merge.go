// Package merge combines ordered configuration layers into a single
// resolved configuration. Layer order is significant: later layers override
// earlier ones field by field, and nested maps (joins, statistics) merge
// key by key. Merging never mutates its inputs.
package merge

import (
	"sort"

	"github.com/leapstack-labs/expsql/pkg/core"
)

// Layer is one ordered set of definitions (general, platform, app, or
// experiment-specific). Slug identifies the layer for diagnostics.
type Layer struct {
	Slug               string
	DataSources        map[string]*core.DataSourceDefinition
	Metrics            map[string]*core.MetricDefinition
	Segments           map[string]*core.SegmentDefinition
	SegmentDataSources map[string]*core.SegmentDataSourceDefinition
	Dimensions         map[string]*core.DimensionDefinition
	// Statistics holds default parameters per statistic name.
	Statistics map[string]map[string]any
}

// mergeable is the common surface of the per-entity definition records.
type mergeable[T any] interface {
	Clone() T
	Merge(other T)
}

// Merge combines layers in order, general first, most specific last, and
// resolves the accumulated definitions into records with every default
// filled. Errors (malformed overrides) are collected and returned together
// so a caller can report every problem in one pass; the configuration
// excludes the affected entities but is otherwise usable.
func Merge(layers []*Layer) (*core.Configuration, []error) {
	var errs []error

	dataSources := make(map[string]*core.DataSourceDefinition)
	metrics := make(map[string]*core.MetricDefinition)
	segments := make(map[string]*core.SegmentDefinition)
	segmentSources := make(map[string]*core.SegmentDataSourceDefinition)
	dimensions := make(map[string]*core.DimensionDefinition)
	statistics := make(map[string]map[string]any)

	cfg := &core.Configuration{
		DataSources:        make(map[string]core.DataSource),
		Metrics:            make(map[string]core.Metric),
		Segments:           make(map[string]core.Segment),
		SegmentDataSources: make(map[string]core.SegmentDataSource),
		Dimensions:         make(map[string]core.Dimension),
		Statistics:         make(map[string]core.Statistic),
	}

	for _, layer := range layers {
		cfg.Layers = append(cfg.Layers, layer.Slug)

		mergeSection(dataSources, layer.DataSources, func(d *core.DataSourceDefinition) bool { return d.Disabled })
		mergeSection(metrics, layer.Metrics, func(d *core.MetricDefinition) bool { return d.Disabled })
		mergeSection(segments, layer.Segments, func(d *core.SegmentDefinition) bool { return d.Disabled })
		mergeSection(segmentSources, layer.SegmentDataSources, func(d *core.SegmentDataSourceDefinition) bool { return d.Disabled })
		mergeSection(dimensions, layer.Dimensions, func(d *core.DimensionDefinition) bool { return d.Disabled })

		for name, params := range layer.Statistics {
			if existing, ok := statistics[name]; ok {
				for k, v := range params {
					existing[k] = v
				}
			} else {
				copied := make(map[string]any, len(params))
				for k, v := range params {
					copied[k] = v
				}
				statistics[name] = copied
			}
		}
	}

	errs = append(errs, resolveSection("data_sources", dataSources, cfg.DataSources)...)
	errs = append(errs, resolveSection("metrics", metrics, cfg.Metrics)...)
	errs = append(errs, resolveSection("segments", segments, cfg.Segments)...)
	errs = append(errs, resolveSection("segments.data_sources", segmentSources, cfg.SegmentDataSources)...)
	errs = append(errs, resolveSection("dimensions", dimensions, cfg.Dimensions)...)

	for name, params := range statistics {
		cfg.Statistics[name] = core.Statistic{Slug: name, Defaults: params}
	}

	return cfg, errs
}

// mergeSection applies one layer's section onto the accumulator. A new slug
// inserts a clone (layers are never mutated); an existing slug merges field
// by field. An explicit disabled marker removes the slug entirely: a
// present-but-empty redeclaration is an additive no-op, deletion is always
// explicit.
func mergeSection[T mergeable[T]](acc map[string]T, section map[string]T, disabled func(T) bool) {
	for _, slug := range sortedSlugs(section) {
		def := section[slug]
		if disabled(def) {
			delete(acc, slug)
			continue
		}
		if existing, ok := acc[slug]; ok {
			existing.Merge(def)
		} else {
			acc[slug] = def.Clone()
		}
	}
}

// resolvable is implemented by definitions that resolve into record R.
type resolvable[R any] interface {
	Resolve(slug string) (R, error)
}

func resolveSection[T resolvable[R], R any](section string, defs map[string]T, out map[string]R) []error {
	var errs []error
	for _, slug := range sortedSlugs(defs) {
		record, err := defs[slug].Resolve(slug)
		if err != nil {
			if merr, ok := err.(*core.MalformedOverrideError); ok && merr.Section == "" {
				merr.Section = section
			}
			errs = append(errs, err)
			continue
		}
		out[slug] = record
	}
	return errs
}

func sortedSlugs[V any](m map[string]V) []string {
	slugs := make([]string, 0, len(m))
	for slug := range m {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
