// Package plan turns a resolved configuration and an analysis request into
// a query plan: per-data-source aggregation blocks composed with full outer
// joins over the shared key columns. The plan is a fully-specified
// intermediate structure; only the final text substitution of {{ ... }}
// expressions is delegated to the template layer.
package plan

// Column is a named SQL expression emitted by a block.
type Column struct {
	Name       string
	Expression string
}

// GroupBy is one requested grouping dimension, in request order.
type GroupBy struct {
	Name       string
	Expression string
}

// Window bounds the analysis on the submission date column, inclusive on
// both ends. Dates are preformatted strings; the engine does no date math.
type Window struct {
	Start string
	End   string
}

// ExperimentContext carries the experiment variables substituted into the
// generated SQL by the template layer.
type ExperimentContext struct {
	Slug                  string
	StartDateStr          string
	LastEnrollmentDateStr string
}

// Request describes one query generation invocation.
type Request struct {
	// Metrics lists the requested metric slugs. First-occurrence order of
	// their data sources anchors the outer-join chain.
	Metrics []string
	// GroupBy lists grouping dimensions in order.
	GroupBy []GroupBy
	// Where is an optional trusted SQL predicate applied inside every
	// aggregation block.
	Where string
	// Window bounds the analysis period. When nil and Experiment is set,
	// the experiment's date variables bound the period instead.
	Window *Window
	// Experiment, when set, enables enrollment filtering and experiment
	// variable substitution.
	Experiment *ExperimentContext
}

// Block is one per-data-source aggregation subquery.
type Block struct {
	DataSource string
	// KeyOnly blocks are pulled in purely to satisfy a join dependency
	// chain; they contribute no columns beyond the join keys.
	KeyOnly        bool
	FromExpression string
	ClientID       Column
	SubmissionDate Column
	Dimensions     []Column
	Metrics        []Column
	Where          []string
}

// Alias is the name the block is joined under.
func (b *Block) Alias() string { return b.DataSource }

// JoinEdge joins the Right block to the already-placed Left block.
type JoinEdge struct {
	Left         string
	Right        string
	On           string
	Relationship string
}

// CompositionPlan is the ordered expansion of one data source's join graph.
type CompositionPlan struct {
	Root string
	// Order lists data sources in placement (breadth-first) order,
	// starting with the root.
	Order    []string
	Edges    []JoinEdge
	Warnings []string
}

// Exclusion records a metric dropped from the plan and why. Exclusions are
// partial failures: the rest of the request still generates.
type Exclusion struct {
	Metric string
	Reason error
}

// QueryPlan is the assembled query, ready for SQL text generation and
// template rendering. Blocks[0] anchors the join chain; Joins[i] attaches
// Blocks[i+1].
type QueryPlan struct {
	Blocks     []*Block
	Joins      []JoinEdge
	GroupBy    []GroupBy
	Experiment *ExperimentContext
	Excluded   []Exclusion
	Warnings   []string
}
