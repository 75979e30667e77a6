package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/expsql/pkg/core"
	"github.com/spf13/cobra"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Experiment string
	JSON       bool
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the resolved metrics, data sources, and segments",
		Long: `Resolve the layered configuration and list what it contains. Shows each
entity as the layers left it, after all overrides.`,
		Example: `  # List the base configuration
  expsql list

  # List with an experiment layer applied
  expsql list --experiment my-experiment

  # Machine-readable output
  expsql list --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Experiment, "experiment", "e", "", "Experiment slug to layer on top")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output JSON instead of tables")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	_, cfg, findings, err := resolveProject(cmd, opts.Experiment)
	if err != nil {
		return err
	}
	reportFindings(cmd, findings)

	if opts.JSON {
		return listJSON(cmd, cfg)
	}
	return listTables(cmd, cfg)
}

func listTables(cmd *cobra.Command, cfg *core.Configuration) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Layers: %s\n\n", strings.Join(cfg.Layers, " < "))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Data Sources (%d)", len(cfg.DataSources)))
	t.AppendHeader(table.Row{"Slug", "From", "Experiments Column", "Joins"})
	for _, slug := range cfg.DataSourceSlugs() {
		ds := cfg.DataSources[slug]
		t.AppendRow(table.Row{slug, ds.FromExpression, string(ds.ExperimentsColumnType), strings.Join(ds.JoinTargets(), ", ")})
	}
	t.Render()
	fmt.Fprintln(out)

	t = table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Metrics (%d)", len(cfg.Metrics)))
	t.AppendHeader(table.Row{"Slug", "Data Source", "Friendly Name", "Statistics"})
	for _, slug := range cfg.MetricSlugs() {
		m := cfg.Metrics[slug]
		t.AppendRow(table.Row{slug, m.DataSource, m.FriendlyName, strings.Join(sortedNames(m.Statistics), ", ")})
	}
	t.Render()

	if len(cfg.Segments) > 0 {
		fmt.Fprintln(out)
		t = table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.SetTitle(fmt.Sprintf("Segments (%d)", len(cfg.Segments)))
		t.AppendHeader(table.Row{"Slug", "Data Source", "Friendly Name"})
		for _, slug := range cfg.SegmentSlugs() {
			s := cfg.Segments[slug]
			t.AppendRow(table.Row{slug, s.DataSource, s.FriendlyName})
		}
		t.Render()
	}

	return nil
}

func listJSON(cmd *cobra.Command, cfg *core.Configuration) error {
	type metricInfo struct {
		Slug         string   `json:"slug"`
		DataSource   string   `json:"data_source"`
		FriendlyName string   `json:"friendly_name,omitempty"`
		Description  string   `json:"description,omitempty"`
		Statistics   []string `json:"statistics,omitempty"`
	}
	type dataSourceInfo struct {
		Slug                  string   `json:"slug"`
		FromExpression        string   `json:"from_expression"`
		ExperimentsColumnType string   `json:"experiments_column_type"`
		Joins                 []string `json:"joins,omitempty"`
	}
	type segmentInfo struct {
		Slug         string `json:"slug"`
		DataSource   string `json:"data_source"`
		FriendlyName string `json:"friendly_name,omitempty"`
	}
	type listOutput struct {
		Layers      []string         `json:"layers"`
		DataSources []dataSourceInfo `json:"data_sources"`
		Metrics     []metricInfo     `json:"metrics"`
		Segments    []segmentInfo    `json:"segments"`
	}

	out := listOutput{
		Layers:      cfg.Layers,
		DataSources: []dataSourceInfo{},
		Metrics:     []metricInfo{},
		Segments:    []segmentInfo{},
	}
	for _, slug := range cfg.DataSourceSlugs() {
		ds := cfg.DataSources[slug]
		out.DataSources = append(out.DataSources, dataSourceInfo{
			Slug:                  slug,
			FromExpression:        ds.FromExpression,
			ExperimentsColumnType: string(ds.ExperimentsColumnType),
			Joins:                 ds.JoinTargets(),
		})
	}
	for _, slug := range cfg.MetricSlugs() {
		m := cfg.Metrics[slug]
		out.Metrics = append(out.Metrics, metricInfo{
			Slug:         slug,
			DataSource:   m.DataSource,
			FriendlyName: m.FriendlyName,
			Description:  m.Description,
			Statistics:   sortedNames(m.Statistics),
		})
	}
	for _, slug := range cfg.SegmentSlugs() {
		s := cfg.Segments[slug]
		out.Segments = append(out.Segments, segmentInfo{
			Slug:         slug,
			DataSource:   s.DataSource,
			FriendlyName: s.FriendlyName,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
