package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/expsql/internal/merge"
	"github.com/leapstack-labs/expsql/internal/plan"
	"github.com/leapstack-labs/expsql/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func testLayers() []*merge.Layer {
	return []*merge.Layer{{
		Slug: "definitions/base",
		DataSources: map[string]*core.DataSourceDefinition{
			"clients_daily": {
				FromExpression:        strPtr("tbl.clients_daily"),
				ExperimentsColumnType: strPtr("simple"),
			},
			"search_clients": {
				FromExpression: strPtr("tbl.search_clients"),
			},
		},
		Metrics: map[string]*core.MetricDefinition{
			"days_of_use": {
				DataSource:       strPtr("clients_daily"),
				SelectExpression: strPtr(`{{ agg_count("submission_date") }}`),
			},
			"searches": {
				DataSource:       strPtr("search_clients"),
				SelectExpression: strPtr(`{{ agg_sum("sap") }}`),
			},
		},
	}}
}

func newTestEngine(t *testing.T) (*Engine, *core.Configuration) {
	t.Helper()
	eng, err := New(Config{})
	require.NoError(t, err)

	cfg, errs := eng.Resolve(testLayers())
	require.Empty(t, errs)
	return eng, cfg
}

func TestGenerate_SingleMetric(t *testing.T) {
	eng, cfg := newTestEngine(t)

	result, err := eng.Generate(context.Background(), cfg, plan.Request{Metrics: []string{"days_of_use"}})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT client_id, submission_date, COUNT(submission_date) AS days_of_use "+
			"FROM tbl.clients_daily GROUP BY client_id, submission_date",
		result.SQL)
	assert.NotEmpty(t, result.RequestID)
	assert.Empty(t, result.Excluded)
}

func TestGenerate_ExperimentSubstitution(t *testing.T) {
	eng, cfg := newTestEngine(t)

	req := plan.Request{
		Metrics: []string{"days_of_use"},
		Experiment: &plan.ExperimentContext{
			Slug:                  "my-experiment",
			StartDateStr:          "2024-01-01",
			LastEnrollmentDateStr: "2024-01-14",
		},
	}
	result, err := eng.Generate(context.Background(), cfg, req)
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "submission_date BETWEEN '2024-01-01' AND '2024-01-14'")
	assert.Contains(t, result.SQL, "experiments['my-experiment'] IS NOT NULL")
	assert.NotContains(t, result.SQL, "{{", "no placeholders survive rendering")
}

func TestGenerate_MissingExperimentContextIsFatal(t *testing.T) {
	eng, err := New(Config{})
	require.NoError(t, err)

	layers := testLayers()
	layers[0].Metrics["enrolled_days"] = &core.MetricDefinition{
		DataSource:       strPtr("clients_daily"),
		SelectExpression: strPtr(`COUNTIF(experiments['{{ experiment.slug }}'] IS NOT NULL)`),
	}
	cfg, errs := eng.Resolve(layers)
	require.Empty(t, errs)

	_, err = eng.Generate(context.Background(), cfg, plan.Request{Metrics: []string{"enrolled_days"}})
	require.Error(t, err)

	var merr *core.MissingTemplateVariableError
	require.ErrorAs(t, err, &merr)
}

func TestGenerate_ExcludesUnknownMetrics(t *testing.T) {
	eng, cfg := newTestEngine(t)

	result, err := eng.Generate(context.Background(), cfg, plan.Request{Metrics: []string{"days_of_use", "ghost"}})
	require.NoError(t, err)

	require.Len(t, result.Excluded, 1)
	assert.Equal(t, "ghost", result.Excluded[0].Metric)
	assert.Contains(t, result.SQL, "days_of_use")
}

func TestGenerate_NoPlannableMetricsFails(t *testing.T) {
	eng, cfg := newTestEngine(t)

	_, err := eng.Generate(context.Background(), cfg, plan.Request{Metrics: []string{"ghost"}})
	require.Error(t, err)

	var uerr *core.UnknownMetricError
	assert.ErrorAs(t, err, &uerr)
}

func TestGenerate_Deterministic(t *testing.T) {
	eng, cfg := newTestEngine(t)
	req := plan.Request{
		Metrics: []string{"days_of_use", "searches"},
		GroupBy: []plan.GroupBy{{Name: "country", Expression: "country_code"}},
	}

	first, err := eng.Generate(context.Background(), cfg, req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		next, err := eng.Generate(context.Background(), cfg, req)
		require.NoError(t, err)
		assert.Equal(t, first.SQL, next.SQL, "same request, byte-identical SQL")
	}
}

func TestGenerate_CanceledContext(t *testing.T) {
	eng, cfg := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Generate(ctx, cfg, plan.Request{Metrics: []string{"days_of_use"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateAll_KeepsRequestOrder(t *testing.T) {
	eng, cfg := newTestEngine(t)

	reqs := []plan.Request{
		{Metrics: []string{"days_of_use"}},
		{Metrics: []string{"searches"}},
		{Metrics: []string{"days_of_use", "searches"}},
	}
	results, err := eng.GenerateAll(context.Background(), cfg, reqs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Contains(t, results[0].SQL, "tbl.clients_daily")
	assert.NotContains(t, results[0].SQL, "tbl.search_clients")
	assert.Contains(t, results[1].SQL, "tbl.search_clients")
	assert.Contains(t, results[2].SQL, "FULL OUTER JOIN")
}

func TestGenerateAll_FailureAbortsBatch(t *testing.T) {
	eng, cfg := newTestEngine(t)

	reqs := []plan.Request{
		{Metrics: []string{"days_of_use"}},
		{Metrics: []string{"ghost"}},
	}
	_, err := eng.GenerateAll(context.Background(), cfg, reqs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request 1")
}

func TestNew_LoadsUserMacros(t *testing.T) {
	dir := t.TempDir()
	src := `
def agg_max(expr):
    return "MAX(" + expr + ")"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.star"), []byte(src), 0o644))

	eng, err := New(Config{MacrosDir: dir})
	require.NoError(t, err)

	layers := testLayers()
	layers[0].Metrics["max_hours"] = &core.MetricDefinition{
		DataSource:       strPtr("clients_daily"),
		SelectExpression: strPtr(`{{ agg_max("active_hours_sum") }}`),
	}
	cfg, errs := eng.Resolve(layers)
	require.Empty(t, errs)

	result, err := eng.Generate(context.Background(), cfg, plan.Request{Metrics: []string{"max_hours"}})
	require.NoError(t, err)
	assert.Contains(t, result.SQL, "MAX(active_hours_sum) AS max_hours")
}
