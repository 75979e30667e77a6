package plan

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/expsql/pkg/core"
)

// ResolveJoins expands the possibly-transitive join graph rooted at root
// into an ordered composition plan. Traversal is breadth-first with join
// targets visited in sorted order, so the plan is deterministic. A data
// source already placed is never re-joined: the duplicate edge is dropped
// with a warning, which also guarantees termination on cyclic input.
//
// An unknown join target is fatal for this root only; the caller excludes
// the affected metrics and proceeds with the rest of the request.
func ResolveJoins(root string, cfg *core.Configuration, dims []GroupBy) (*CompositionPlan, error) {
	if _, ok := cfg.DataSources[root]; !ok {
		return nil, &core.UnknownDataSourceError{Kind: "data source", Slug: root, DataSource: root}
	}

	cp := &CompositionPlan{
		Root:  root,
		Order: []string{root},
	}
	placed := map[string]bool{root: true}
	queue := []string{root}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		ds := cfg.DataSources[current]
		for _, target := range ds.JoinTargets() {
			join := ds.Joins[target]
			if _, ok := cfg.DataSources[target]; !ok {
				return nil, &core.UnknownJoinTargetError{DataSource: current, Target: target}
			}
			if placed[target] {
				cp.Warnings = append(cp.Warnings,
					fmt.Sprintf("dropping join %s -> %s: %s already in composition plan", current, target, target))
				continue
			}

			on := join.OnExpression
			if on == "" {
				on = synthesizeOn(current, target, dims)
			}
			cp.Edges = append(cp.Edges, JoinEdge{
				Left:         current,
				Right:        target,
				On:           on,
				Relationship: string(join.Relationship),
			})
			cp.Order = append(cp.Order, target)
			placed[target] = true
			queue = append(queue, target)
		}
	}

	return cp, nil
}

// synthesizeOn builds the default equality condition over the shared key
// columns plus one conjunct per grouping dimension both sides expose. The
// condition references the emitted column names, not the underlying source
// columns, since every block aliases its keys to client_id and
// submission_date.
func synthesizeOn(left, right string, dims []GroupBy) string {
	parts := []string{
		fmt.Sprintf("%s.%s = %s.%s", left, core.DefaultClientIDColumn, right, core.DefaultClientIDColumn),
		fmt.Sprintf("%s.%s = %s.%s", left, core.DefaultSubmissionDateColumn, right, core.DefaultSubmissionDateColumn),
	}
	for _, dim := range dims {
		parts = append(parts, fmt.Sprintf("%s.%s = %s.%s", left, dim.Name, right, dim.Name))
	}
	return strings.Join(parts, " AND ")
}
