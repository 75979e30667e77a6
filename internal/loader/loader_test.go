package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/expsql/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const baseYAML = `
data_sources:
  clients_daily:
    from_expression: tbl.clients_daily
    experiments_column_type: simple
    joins:
      search_clients:
        relationship: one_to_many

metrics:
  days_of_use:
    data_source: clients_daily
    select_expression: COUNT(submission_date)
    friendly_name: Days of use
    bigger_is_better: true
    statistics:
      bootstrap_mean:
        num_samples: 1000

segments:
  data_sources:
    clients_last_seen:
      from_expression: tbl.clients_last_seen
  new_users:
    data_source: clients_last_seen
    select_expression: LOGICAL_OR(days_since_created < 7)

dimensions:
  country:
    data_source: clients_daily
    select_expression: country_code

statistics:
  bootstrap_mean:
    num_samples: 10000
    confidence: 0.95
`

func TestLoadFile_FullLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "definitions", "base.yaml")
	writeFile(t, path, baseYAML)

	layer, errs := LoadFile(path)
	require.Empty(t, errs)
	require.NotNil(t, layer)

	assert.Equal(t, "definitions/base", layer.Slug)

	require.Contains(t, layer.DataSources, "clients_daily")
	ds := layer.DataSources["clients_daily"]
	assert.Equal(t, "tbl.clients_daily", *ds.FromExpression)
	assert.Equal(t, "simple", *ds.ExperimentsColumnType)
	require.Contains(t, ds.Joins, "search_clients")
	assert.Equal(t, "one_to_many", *ds.Joins["search_clients"].Relationship)

	require.Contains(t, layer.Metrics, "days_of_use")
	m := layer.Metrics["days_of_use"]
	assert.Equal(t, "COUNT(submission_date)", *m.SelectExpression)
	assert.Equal(t, 1000, m.Statistics["bootstrap_mean"]["num_samples"])

	assert.Contains(t, layer.Segments, "new_users")
	assert.NotContains(t, layer.Segments, "data_sources", "nested key is extracted, not a segment")
	assert.Contains(t, layer.SegmentDataSources, "clients_last_seen")

	assert.Contains(t, layer.Dimensions, "country")

	require.Contains(t, layer.Statistics, "bootstrap_mean")
	assert.Equal(t, 0.95, layer.Statistics["bootstrap_mean"]["confidence"])
}

func TestLoadFile_EmptyDeclaration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults", "desktop.yaml")
	writeFile(t, path, "metrics:\n  days_of_use:\n")

	layer, errs := LoadFile(path)
	require.Empty(t, errs)
	require.Contains(t, layer.Metrics, "days_of_use")
	assert.Nil(t, layer.Metrics["days_of_use"].SelectExpression)
}

func TestLoadFile_UnexpectedSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "definitions", "base.yaml")
	writeFile(t, path, "widgets:\n  w1: {}\nmetrics:\n  m1:\n    data_source: ds\n")

	layer, errs := LoadFile(path)
	require.Len(t, errs, 1)

	var merr *core.MalformedOverrideError
	require.ErrorAs(t, errs[0], &merr)
	assert.Equal(t, "widgets", merr.Section)

	assert.Contains(t, layer.Metrics, "m1", "valid sections still load")
}

func TestLoadFile_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "definitions", "base.yaml")
	writeFile(t, path, `
metrics:
  good:
    data_source: ds
  bad:
    data_source: ds
    select_expresion: typo
`)

	layer, errs := LoadFile(path)
	require.Len(t, errs, 1)

	var merr *core.MalformedOverrideError
	require.ErrorAs(t, errs[0], &merr)
	assert.Equal(t, "bad", merr.Slug)

	assert.Contains(t, layer.Metrics, "good", "one bad record does not sink the section")
	assert.NotContains(t, layer.Metrics, "bad")
}

func TestLoadFile_ScalarSectionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "definitions", "base.yaml")
	writeFile(t, path, "metrics: 42\n")

	_, errs := LoadFile(path)
	require.Len(t, errs, 1)
	var merr *core.MalformedOverrideError
	require.ErrorAs(t, errs[0], &merr)
	assert.Equal(t, "metrics", merr.Section)
}

func TestLoadFile_Unreadable(t *testing.T) {
	layer, errs := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Nil(t, layer)
	require.Len(t, errs, 1)
}

func TestLoadProject_LayerOrdering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "definitions", "20_metrics.yaml"), "metrics: {}\n")
	writeFile(t, filepath.Join(dir, "definitions", "10_sources.yaml"), "data_sources: {}\n")
	writeFile(t, filepath.Join(dir, "defaults", "desktop.yaml"), "metrics: {}\n")
	writeFile(t, filepath.Join(dir, "experiments", "my-experiment.yaml"), "metrics: {}\n")

	layers, errs := LoadProject(dir, "my-experiment")
	require.Empty(t, errs)
	require.Len(t, layers, 4)

	slugs := make([]string, len(layers))
	for i, l := range layers {
		slugs[i] = l.Slug
	}
	assert.Equal(t, []string{
		"definitions/10_sources",
		"definitions/20_metrics",
		"defaults/desktop",
		"experiments/my-experiment",
	}, slugs, "definitions sorted by name, defaults next, experiment last")
}

func TestLoadProject_NoExperiment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "definitions", "base.yaml"), "metrics: {}\n")

	layers, errs := LoadProject(dir, "")
	require.Empty(t, errs)
	require.Len(t, layers, 1)
}

func TestLoadProject_MissingExperimentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "definitions", "base.yaml"), "metrics: {}\n")

	layers, errs := LoadProject(dir, "nonexistent")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "nonexistent")
	assert.Len(t, layers, 1, "base layers still load")
}

func TestLoadProject_IgnoresNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "definitions", "base.yaml"), "metrics: {}\n")
	writeFile(t, filepath.Join(dir, "definitions", "README.md"), "# notes\n")

	layers, errs := LoadProject(dir, "")
	require.Empty(t, errs)
	assert.Len(t, layers, 1)
}
