package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/expsql/internal/plan"
	"github.com/spf13/cobra"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Experiment         string
	StartDate          string
	LastEnrollmentDate string
	WindowStart        string
	WindowEnd          string
	Metrics            []string
	GroupBy            []string
	Where              string
	OutputFile         string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the analytical SQL for a set of metrics",
		Long: `Resolve the layered configuration and generate a single SQL query that
aggregates the requested metrics per client and day.

Metrics on different data sources are computed in separate subqueries and
combined with full outer joins over the shared key columns. Unresolvable
metrics are excluded with a report on stderr; the query still generates for
the rest.`,
		Example: `  # Generate a query for one metric
  expsql generate --metrics days_of_use

  # Generate for an experiment, with enrollment filtering
  expsql generate --experiment my-experiment --metrics days_of_use,ad_clicks \
      --start-date 2024-01-01 --last-enrollment-date 2024-01-14

  # Group by a dimension and bound the analysis window
  expsql generate --metrics ad_clicks --group-by country=cd.country \
      --window-start 2024-01-01 --window-end 2024-02-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Experiment, "experiment", "e", "", "Experiment slug (enables enrollment filtering)")
	cmd.Flags().StringVar(&opts.StartDate, "start-date", "", "Experiment start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.LastEnrollmentDate, "last-enrollment-date", "", "Last enrollment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.WindowStart, "window-start", "", "Explicit analysis window start (overrides experiment dates)")
	cmd.Flags().StringVar(&opts.WindowEnd, "window-end", "", "Explicit analysis window end")
	cmd.Flags().StringSliceVarP(&opts.Metrics, "metrics", "m", nil, "Metric slugs to include (required)")
	cmd.Flags().StringSliceVarP(&opts.GroupBy, "group-by", "g", nil, "Grouping dimensions as name or name=expression")
	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "Extra SQL predicate applied inside every aggregation block")
	cmd.Flags().StringVarP(&opts.OutputFile, "output-file", "f", "", "Write the SQL to a file instead of stdout")
	_ = cmd.MarkFlagRequired("metrics")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) error {
	req, err := buildRequest(opts)
	if err != nil {
		return err
	}

	eng, cfg, findings, err := resolveProject(cmd, opts.Experiment)
	if err != nil {
		return err
	}
	reportFindings(cmd, findings)

	result, err := eng.Generate(cmd.Context(), cfg, req)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), styled(warnStyle, "warning: ")+w)
	}
	for _, ex := range result.Excluded {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s metric %q: %v\n", styled(warnStyle, "excluded:"), ex.Metric, ex.Reason)
	}

	if opts.OutputFile != "" {
		if err := os.WriteFile(opts.OutputFile, []byte(result.SQL+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", opts.OutputFile, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote query %s to %s\n", result.RequestID, opts.OutputFile)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.SQL)
	return nil
}

// buildRequest translates the flags into a generation request.
func buildRequest(opts *GenerateOptions) (plan.Request, error) {
	req := plan.Request{
		Metrics: opts.Metrics,
		Where:   opts.Where,
	}

	for _, spec := range opts.GroupBy {
		name, expr, found := strings.Cut(spec, "=")
		if name == "" {
			return req, fmt.Errorf("invalid group-by %q: expected name or name=expression", spec)
		}
		if !found {
			expr = name
		}
		req.GroupBy = append(req.GroupBy, plan.GroupBy{Name: name, Expression: expr})
	}

	if (opts.WindowStart == "") != (opts.WindowEnd == "") {
		return req, fmt.Errorf("--window-start and --window-end must be given together")
	}
	if opts.WindowStart != "" {
		req.Window = &plan.Window{Start: opts.WindowStart, End: opts.WindowEnd}
	}

	if opts.Experiment != "" {
		if opts.StartDate == "" || opts.LastEnrollmentDate == "" {
			return req, fmt.Errorf("--experiment requires --start-date and --last-enrollment-date")
		}
		req.Experiment = &plan.ExperimentContext{
			Slug:                  opts.Experiment,
			StartDateStr:          opts.StartDate,
			LastEnrollmentDateStr: opts.LastEnrollmentDate,
		}
	}

	return req, nil
}

// reportFindings prints resolution problems to stderr. Findings do not abort
// generation; the affected entities are simply unusable.
func reportFindings(cmd *cobra.Command, findings []error) {
	for _, f := range findings {
		fmt.Fprintln(cmd.ErrOrStderr(), styled(warnStyle, "config: ")+f.Error())
	}
}
