package plan

import (
	"fmt"
	"strings"
)

// BuildSQL renders the query plan into SQL text. The output may still carry
// {{ ... }} template expressions (aggregation macros, experiment context);
// the template layer substitutes those afterwards. Rendering is a pure
// function of the plan: same plan, byte-identical text.
//
// A single-block plan renders as the bare aggregation SELECT. Multi-block
// plans render as the anchor block followed by a FULL OUTER JOIN chain with
// a projection anchored on the first block's columns.
func BuildSQL(qp *QueryPlan) string {
	if len(qp.Blocks) == 0 {
		return ""
	}
	if len(qp.Blocks) == 1 {
		return blockSQL(qp.Blocks[0])
	}

	anchor := qp.Blocks[0].Alias()

	var proj []string
	proj = append(proj,
		fmt.Sprintf("%s.%s AS %s", anchor, qp.Blocks[0].ClientID.Name, qp.Blocks[0].ClientID.Name),
		fmt.Sprintf("%s.%s AS %s", anchor, qp.Blocks[0].SubmissionDate.Name, qp.Blocks[0].SubmissionDate.Name),
	)
	for _, dim := range qp.Blocks[0].Dimensions {
		proj = append(proj, fmt.Sprintf("%s.%s AS %s", anchor, dim.Name, dim.Name))
	}
	for _, block := range qp.Blocks {
		if block.KeyOnly {
			continue
		}
		for _, metric := range block.Metrics {
			proj = append(proj, fmt.Sprintf("%s.%s AS %s", block.Alias(), metric.Name, metric.Name))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT\n    ")
	b.WriteString(strings.Join(proj, ",\n    "))
	b.WriteString("\nFROM (\n    ")
	b.WriteString(blockSQL(qp.Blocks[0]))
	b.WriteString("\n) AS ")
	b.WriteString(anchor)

	for i, edge := range qp.Joins {
		block := qp.Blocks[i+1]
		b.WriteString("\nFULL OUTER JOIN (\n    ")
		b.WriteString(blockSQL(block))
		b.WriteString("\n) AS ")
		b.WriteString(block.Alias())
		b.WriteString("\n    ON ")
		b.WriteString(edge.On)
	}

	return b.String()
}

// blockSQL renders one aggregation block as a single-line SELECT. Columns
// whose expression already equals the emitted name are not re-aliased.
func blockSQL(block *Block) string {
	var cols []string
	cols = append(cols, columnSQL(block.ClientID), columnSQL(block.SubmissionDate))
	for _, dim := range block.Dimensions {
		cols = append(cols, columnSQL(dim))
	}
	for _, metric := range block.Metrics {
		cols = append(cols, fmt.Sprintf("%s AS %s", metric.Expression, metric.Name))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(block.FromExpression)
	if len(block.Where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(block.Where, " AND "))
	}

	groupBy := make([]string, 0, len(block.Dimensions)+2)
	for _, dim := range block.Dimensions {
		groupBy = append(groupBy, dim.Name)
	}
	groupBy = append(groupBy, block.ClientID.Name, block.SubmissionDate.Name)
	b.WriteString(" GROUP BY ")
	b.WriteString(strings.Join(groupBy, ", "))

	return b.String()
}

func columnSQL(col Column) string {
	if col.Expression == col.Name {
		return col.Name
	}
	return fmt.Sprintf("%s AS %s", col.Expression, col.Name)
}
