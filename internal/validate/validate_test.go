package validate

import (
	"testing"

	"github.com/leapstack-labs/expsql/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *core.Configuration {
	return &core.Configuration{
		DataSources: map[string]core.DataSource{
			"clients_daily": {
				Slug:           "clients_daily",
				FromExpression: "tbl.clients_daily",
				Joins:          map[string]core.Join{"events": {}},
			},
			"events": {Slug: "events", FromExpression: "tbl.events"},
		},
		Metrics: map[string]core.Metric{
			"days_of_use": {
				Slug:             "days_of_use",
				DataSource:       "clients_daily",
				SelectExpression: "COUNT(submission_date)",
			},
		},
		Segments: map[string]core.Segment{
			"new_users": {Slug: "new_users", DataSource: "clients_last_seen"},
		},
		SegmentDataSources: map[string]core.SegmentDataSource{
			"clients_last_seen": {Slug: "clients_last_seen"},
		},
		Dimensions: map[string]core.Dimension{
			"country": {Slug: "country", DataSource: "clients_daily"},
		},
		Statistics: map[string]core.Statistic{},
	}
}

func TestValidate_CleanConfiguration(t *testing.T) {
	assert.Empty(t, Validate(validConfig()))
}

func TestValidate_MetricUnknownDataSource(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics["ad_clicks"] = core.Metric{Slug: "ad_clicks", DataSource: "search_clients"}

	errs := Validate(cfg)
	require.Len(t, errs, 1)

	var uerr *core.UnknownDataSourceError
	require.ErrorAs(t, errs[0], &uerr)
	assert.Equal(t, "metric", uerr.Kind)
	assert.Equal(t, "ad_clicks", uerr.Slug)
	assert.Equal(t, "search_clients", uerr.DataSource)
}

func TestValidate_SegmentUnknownDataSource(t *testing.T) {
	cfg := validConfig()
	// Segments resolve against segment data sources, not metric ones.
	cfg.Segments["heavy_users"] = core.Segment{Slug: "heavy_users", DataSource: "clients_daily"}

	errs := Validate(cfg)
	require.Len(t, errs, 1)

	var uerr *core.UnknownDataSourceError
	require.ErrorAs(t, errs[0], &uerr)
	assert.Equal(t, "segment", uerr.Kind)
}

func TestValidate_DimensionReferences(t *testing.T) {
	cfg := validConfig()
	cfg.Dimensions["locale"] = core.Dimension{Slug: "locale", DataSource: "nonexistent"}
	cfg.Dimensions["os"] = core.Dimension{Slug: "os"} // no data source is fine

	errs := Validate(cfg)
	require.Len(t, errs, 1)

	var uerr *core.UnknownDataSourceError
	require.ErrorAs(t, errs[0], &uerr)
	assert.Equal(t, "dimension", uerr.Kind)
	assert.Equal(t, "locale", uerr.Slug)
}

func TestValidate_UnknownJoinTarget(t *testing.T) {
	cfg := validConfig()
	ds := cfg.DataSources["events"]
	ds.Joins = map[string]core.Join{"ghost": {}}
	cfg.DataSources["events"] = ds

	errs := Validate(cfg)
	require.Len(t, errs, 1)

	var jerr *core.UnknownJoinTargetError
	require.ErrorAs(t, errs[0], &jerr)
	assert.Equal(t, "events", jerr.DataSource)
	assert.Equal(t, "ghost", jerr.Target)
}

func TestValidate_CyclicJoinGraph(t *testing.T) {
	cfg := validConfig()
	ds := cfg.DataSources["events"]
	ds.Joins = map[string]core.Join{"clients_daily": {}}
	cfg.DataSources["events"] = ds

	errs := Validate(cfg)
	require.Len(t, errs, 1)

	var cerr *core.CyclicJoinGraphError
	require.ErrorAs(t, errs[0], &cerr)
	assert.Equal(t, []string{"clients_daily", "events", "clients_daily"}, cerr.Cycle)
}

func TestValidate_MetricNameCollidesWithJoinKey(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics["client_id"] = core.Metric{Slug: "client_id", DataSource: "clients_daily"}

	errs := Validate(cfg)
	require.Len(t, errs, 1)

	var derr *core.DuplicateMetricNameError
	require.ErrorAs(t, errs[0], &derr)
	assert.Equal(t, "client_id", derr.Name)
	assert.Equal(t, "join key", derr.Conflict)
}

func TestValidate_StatisticParameters(t *testing.T) {
	cfg := validConfig()
	cfg.Statistics["bootstrap_mean"] = core.Statistic{
		Slug:     "bootstrap_mean",
		Defaults: map[string]any{"num_samples": 1000},
	}
	m := cfg.Metrics["days_of_use"]
	m.Statistics = map[string]map[string]any{
		"bootstrap_mean": {"num_samples": 5000, "confidence": 0.95},
		"deciles":        {"anything": true}, // no defaults record, free-form
	}
	cfg.Metrics["days_of_use"] = m

	errs := Validate(cfg)
	require.Len(t, errs, 1)

	var serr *core.UnknownStatisticParameterError
	require.ErrorAs(t, errs[0], &serr)
	assert.Equal(t, "days_of_use", serr.Metric)
	assert.Equal(t, "bootstrap_mean", serr.Statistic)
	assert.Equal(t, "confidence", serr.Parameter)
}
