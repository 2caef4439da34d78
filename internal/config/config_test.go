// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"
)

const fullConfig = `
metric_prefix: "Custom Metrics|Kinesis"
accounts:
  - display_account_name: Appd
    aws_access_key: AKIDEXAMPLE
    aws_secret_key: secret
    regions: [us-west-2, eu-west-1]
  - display_account_name: Audit
    role_arn: arn:aws:iam::123456789012:role/monitor
dimensions:
  - name: Application
    display_name: App
    values: ["Sample", "orders-.*"]
  - name: Flow
  - name: Id
    display_name: " "
metrics_config:
  include_metrics:
    - name: InputBytes
      alias: Input Bytes
      stat_type: SUM
      multiplier: 0.5
      aggregation_type: SUM
      time_roll_up_type: CURRENT
      cluster_roll_up_type: COLLECTIVE
      delta: true
    - name: MillisBehindLatest
  metrics_time_range:
    start_time_in_mins_before_now: 10
    end_time_in_mins_before_now: 2
  period_in_seconds: 300
  get_metric_statistics_rate_limit: 50
  max_error_retry_size: 0
concurrency:
  accounts: 2
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "Custom Metrics|Kinesis|", cfg.GetMetricPrefix())

	accounts := cfg.GetAccounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, []string{"us-west-2", "eu-west-1"}, accounts[0].Regions)
	assert.Equal(t, "arn:aws:iam::123456789012:role/monitor", accounts[1].RoleArn)
	assert.Empty(t, accounts[1].Regions)

	assert.Equal(t, []metric.Dimension{
		{Name: "Application", DisplayName: "App", Values: []string{"Sample", "orders-.*"}},
		{Name: "Flow", DisplayName: "Flow"},
		{Name: "Id", DisplayName: "Id"},
	}, cfg.GetDimensions())

	assert.Equal(t, []metric.IncludeMetric{
		{
			Name:              "InputBytes",
			Alias:             "Input Bytes",
			StatType:          metric.StatSum,
			Multiplier:        floatPtr(0.5),
			AggregationType:   "SUM",
			TimeRollUpType:    "CURRENT",
			ClusterRollUpType: "COLLECTIVE",
			Delta:             true,
		},
		{
			Name:              "MillisBehindLatest",
			StatType:          metric.StatAverage,
			Multiplier:        floatPtr(metric.DefaultMultiplier),
			AggregationType:   DefaultAggregationType,
			TimeRollUpType:    DefaultTimeRollUpType,
			ClusterRollUpType: DefaultClusterRollUpType,
		},
	}, cfg.GetIncludeMetrics())

	start, end := cfg.GetMetricsTimeRange()
	assert.Equal(t, 10*time.Minute, start)
	assert.Equal(t, 2*time.Minute, end)
	assert.EqualValues(t, 300, cfg.GetPeriod())
	assert.Equal(t, 50, cfg.GetRateLimit())
	assert.EqualValues(t, 0, cfg.GetMaxErrorRetrySize())
	assert.Equal(t, Concurrency{Accounts: 2, RegionsPerAccount: DefaultConcurrency, MetricsPerRegion: DefaultConcurrency}, cfg.GetConcurrency())
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
accounts:
  - display_account_name: Appd
metrics_config:
  include_metrics:
    - name: KPUs
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultMetricPrefix, cfg.GetMetricPrefix())
	start, end := cfg.GetMetricsTimeRange()
	assert.Equal(t, DefaultStartTimeInMins*time.Minute, start)
	assert.Equal(t, time.Duration(0), end)
	assert.EqualValues(t, DefaultPeriodInSeconds, cfg.GetPeriod())
	assert.Equal(t, DefaultRateLimit, cfg.GetRateLimit())
	assert.EqualValues(t, DefaultMaxErrorRetrySize, cfg.GetMaxErrorRetrySize())
	assert.Empty(t, cfg.GetDimensions())
}

func TestParseKeepsExplicitZeroMultiplier(t *testing.T) {
	cfg, err := Parse([]byte(`
accounts:
  - display_account_name: Appd
metrics_config:
  include_metrics:
    - name: KPUs
      multiplier: 0
    - name: InputBytes
`))
	require.NoError(t, err)

	includeMetrics := cfg.GetIncludeMetrics()
	require.Len(t, includeMetrics, 2)
	require.NotNil(t, includeMetrics[0].Multiplier)
	assert.Equal(t, 0.0, *includeMetrics[0].Multiplier)
	require.NotNil(t, includeMetrics[1].Multiplier)
	assert.Equal(t, metric.DefaultMultiplier, *includeMetrics[1].Multiplier)
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestParseErrors(t *testing.T) {
	testCases := map[string]struct {
		document string
		wantErr  error
	}{
		"Empty": {
			document: ``,
		},
		"UnknownKey": {
			document: "accounts: []\nmetrics_config: {include_metrics: []}\nregion: us-west-2\n",
		},
		"WrongType": {
			document: "accounts: {}\nmetrics_config: {include_metrics: []}\n",
		},
		"NoAccounts": {
			document: "accounts: []\nmetrics_config: {include_metrics: [{name: KPUs}]}\n",
			wantErr:  ErrNoAccounts,
		},
		"NoIncludeMetrics": {
			document: "accounts: [{display_account_name: Appd}]\nmetrics_config: {include_metrics: []}\n",
			wantErr:  ErrNoIncludeMetrics,
		},
		"BadStatType": {
			document: "accounts: [{display_account_name: Appd}]\nmetrics_config: {include_metrics: [{name: KPUs, stat_type: p99}]}\n",
			wantErr:  ErrInvalidStatType,
		},
		"InvertedTimeRange": {
			document: "accounts: [{display_account_name: Appd}]\nmetrics_config:\n  include_metrics: [{name: KPUs}]\n  metrics_time_range: {start_time_in_mins_before_now: 1, end_time_in_mins_before_now: 3}\n",
		},
	}
	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(testCase.document))
			require.Error(t, err)
			if testCase.wantErr != nil {
				assert.ErrorIs(t, err, testCase.wantErr)
			}
		})
	}
}

func TestNewConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.GetAccounts(), 2)

	_, err = NewConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(""))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KINESIS_MONITOR_TEST_KEY=from-file\n"), 0o600))
	t.Setenv("KINESIS_MONITOR_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("KINESIS_MONITOR_TEST_KEY"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("KINESIS_MONITOR_TEST_KEY"))

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
