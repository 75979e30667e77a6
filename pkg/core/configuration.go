package core

import "sort"

// Configuration is the result of merging an ordered list of layers. All
// maps are keyed by slug. A Configuration is immutable once built; each
// analysis request owns its own copy and nothing is shared across requests.
type Configuration struct {
	DataSources        map[string]DataSource
	Metrics            map[string]Metric
	Segments           map[string]Segment
	SegmentDataSources map[string]SegmentDataSource
	Dimensions         map[string]Dimension
	Statistics         map[string]Statistic

	// Layers records the slugs of the layers that produced this
	// configuration, in merge order. Diagnostics only.
	Layers []string
}

// MetricSlugs returns all metric slugs in sorted order.
func (c *Configuration) MetricSlugs() []string {
	return sortedKeys(c.Metrics)
}

// DataSourceSlugs returns all data source slugs in sorted order.
func (c *Configuration) DataSourceSlugs() []string {
	return sortedKeys(c.DataSources)
}

// SegmentSlugs returns all segment slugs in sorted order.
func (c *Configuration) SegmentSlugs() []string {
	return sortedKeys(c.Segments)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
