package core

import (
	"fmt"
	"strings"
)

// UnknownDataSourceError reports a metric, segment, or dimension naming a
// data source slug absent from the resolved configuration.
type UnknownDataSourceError struct {
	// Kind is the referencing entity kind: "metric", "segment", "dimension".
	Kind       string
	Slug       string
	DataSource string
}

func (e *UnknownDataSourceError) Error() string {
	return fmt.Sprintf("%s %q references unknown data source %q", e.Kind, e.Slug, e.DataSource)
}

// UnknownMetricError reports a requested metric slug with no definition in
// the resolved configuration.
type UnknownMetricError struct {
	Slug string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("no definition for metric %q", e.Slug)
}

// UnknownJoinTargetError reports a join naming a target data source absent
// from the resolved configuration.
type UnknownJoinTargetError struct {
	DataSource string
	Target     string
}

func (e *UnknownJoinTargetError) Error() string {
	return fmt.Sprintf("data source %q joins unknown data source %q", e.DataSource, e.Target)
}

// CyclicJoinGraphError reports a cycle in the join graph. Cycle holds the
// slugs along the cycle, first slug repeated at the end.
type CyclicJoinGraphError struct {
	Cycle []string
}

func (e *CyclicJoinGraphError) Error() string {
	return fmt.Sprintf("cyclic join graph: %s", strings.Join(e.Cycle, " -> "))
}

// DuplicateMetricNameError reports a metric whose emitted column name
// collides with another column in the same generated query.
type DuplicateMetricNameError struct {
	Name     string
	Conflict string // what the name collides with: "join key", "dimension", "metric"
}

func (e *DuplicateMetricNameError) Error() string {
	return fmt.Sprintf("metric name %q collides with %s of the same name", e.Name, e.Conflict)
}

// UnknownStatisticParameterError reports a metric statistic using a
// parameter not declared in the statistic's defaults.
type UnknownStatisticParameterError struct {
	Metric    string
	Statistic string
	Parameter string
}

func (e *UnknownStatisticParameterError) Error() string {
	return fmt.Sprintf("metric %q: statistic %q has unknown parameter %q", e.Metric, e.Statistic, e.Parameter)
}

// MalformedOverrideError reports a layer field whose value conflicts with
// the field's established type or enum domain.
type MalformedOverrideError struct {
	Layer   string
	Section string
	Slug    string
	Field   string
	Value   string
	Cause   error
}

func (e *MalformedOverrideError) Error() string {
	var b strings.Builder
	b.WriteString("malformed override")
	if e.Layer != "" {
		fmt.Fprintf(&b, " in layer %q", e.Layer)
	}
	if e.Section != "" {
		fmt.Fprintf(&b, " (%s)", e.Section)
	}
	if e.Slug != "" {
		fmt.Fprintf(&b, ": %s", e.Slug)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " has invalid value %q", e.Value)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *MalformedOverrideError) Unwrap() error { return e.Cause }

// MissingTemplateVariableError reports a template expression referencing a
// variable or macro that is not in scope. Unlike reference errors this is
// fatal to the whole request: the generated SQL would be incomplete.
type MissingTemplateVariableError struct {
	Expression string
	Cause      error
}

func (e *MissingTemplateVariableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template expression %q: %v", e.Expression, e.Cause)
	}
	return fmt.Sprintf("template expression %q: unresolved variable", e.Expression)
}

func (e *MissingTemplateVariableError) Unwrap() error { return e.Cause }
