package core

// Metric is a resolved metric definition. SelectExpression is a trusted SQL
// fragment that may embed {{ ... }} template expressions calling aggregation
// macros; it is rendered by the template layer, never parsed here.
type Metric struct {
	Slug             string
	DataSource       string
	SelectExpression string
	FriendlyName     string
	Description      string
	BiggerIsBetter   bool
	// Statistics maps a statistic name to its parameter overrides. The
	// parameters are opaque to the engine and consumed by downstream
	// analysis tooling.
	Statistics map[string]map[string]any
}

// MetricDefinition is the authored form of a Metric.
type MetricDefinition struct {
	DataSource       *string                   `koanf:"data_source"`
	SelectExpression *string                   `koanf:"select_expression"`
	FriendlyName     *string                   `koanf:"friendly_name"`
	Description      *string                   `koanf:"description"`
	BiggerIsBetter   *bool                     `koanf:"bigger_is_better"`
	Statistics       map[string]map[string]any `koanf:"statistics"`
	Disabled         bool                      `koanf:"disabled"`
}

// Clone returns a deep copy.
func (m *MetricDefinition) Clone() *MetricDefinition {
	if m == nil {
		return nil
	}
	out := &MetricDefinition{Disabled: m.Disabled}
	out.DataSource = cloneString(m.DataSource)
	out.SelectExpression = cloneString(m.SelectExpression)
	out.FriendlyName = cloneString(m.FriendlyName)
	out.Description = cloneString(m.Description)
	out.BiggerIsBetter = cloneBool(m.BiggerIsBetter)
	if m.Statistics != nil {
		out.Statistics = make(map[string]map[string]any, len(m.Statistics))
		for name, params := range m.Statistics {
			out.Statistics[name] = cloneParams(params)
		}
	}
	return out
}

// Merge overlays fields explicitly present in other onto m. Statistics merge
// key-by-key, and within one statistic parameter-by-parameter, so an
// override layer can tweak a single parameter without restating the rest.
func (m *MetricDefinition) Merge(other *MetricDefinition) {
	if other == nil {
		return
	}
	if other.DataSource != nil {
		m.DataSource = other.DataSource
	}
	if other.SelectExpression != nil {
		m.SelectExpression = other.SelectExpression
	}
	if other.FriendlyName != nil {
		m.FriendlyName = other.FriendlyName
	}
	if other.Description != nil {
		m.Description = other.Description
	}
	if other.BiggerIsBetter != nil {
		m.BiggerIsBetter = other.BiggerIsBetter
	}
	for name, params := range other.Statistics {
		if m.Statistics == nil {
			m.Statistics = make(map[string]map[string]any)
		}
		if existing, ok := m.Statistics[name]; ok {
			for k, v := range params {
				existing[k] = v
			}
		} else {
			m.Statistics[name] = cloneParams(params)
		}
	}
}

// Resolve produces the fully-defaulted record for slug.
func (m *MetricDefinition) Resolve(slug string) (Metric, error) {
	metric := Metric{
		Slug:           slug,
		BiggerIsBetter: true,
	}
	if m.DataSource != nil {
		metric.DataSource = *m.DataSource
	}
	if m.SelectExpression != nil {
		metric.SelectExpression = *m.SelectExpression
	}
	if m.FriendlyName != nil {
		metric.FriendlyName = *m.FriendlyName
	}
	if m.Description != nil {
		metric.Description = *m.Description
	}
	if m.BiggerIsBetter != nil {
		metric.BiggerIsBetter = *m.BiggerIsBetter
	}
	if m.Statistics != nil {
		metric.Statistics = make(map[string]map[string]any, len(m.Statistics))
		for name, params := range m.Statistics {
			metric.Statistics[name] = cloneParams(params)
		}
	}
	return metric, nil
}

// Statistic holds the default parameters for a named estimator. Metrics
// referencing the statistic may override individual parameters.
type Statistic struct {
	Slug     string
	Defaults map[string]any
}
