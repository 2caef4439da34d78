// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/awsservice"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/config"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/processor/kinesisanalytics"
)

const testConfig = `
metric_prefix: "Custom Metrics|AWS Kinesis Analytics|"
accounts:
  - display_account_name: Appd
    regions: [us-west-2, us-east-1]
  - display_account_name: Instance
dimensions:
  - name: Application
  - name: Flow
  - name: Id
metrics_config:
  include_metrics:
    - name: InputBytes
      stat_type: sum
    - name: MillisBehindLatest
      stat_type: max
  max_error_retry_size: 0
`

type regionCloudWatch struct {
	metrics []types.Metric
	values  map[string]float64
	failFor string

	mu         sync.Mutex
	statistics []types.Statistic
}

func (r *regionCloudWatch) ListMetrics(context.Context, *cloudwatch.ListMetricsInput, ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error) {
	return &cloudwatch.ListMetricsOutput{Metrics: r.metrics}, nil
}

func (r *regionCloudWatch) GetMetricStatistics(_ context.Context, params *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	r.mu.Lock()
	r.statistics = append(r.statistics, params.Statistics...)
	r.mu.Unlock()

	name := aws.ToString(params.MetricName)
	if name == r.failFor {
		return nil, errors.New("boom")
	}
	value, ok := r.values[name]
	if !ok {
		return &cloudwatch.GetMetricStatisticsOutput{}, nil
	}
	dp := types.Datapoint{Timestamp: aws.Time(time.Now()), Unit: types.StandardUnitCount}
	switch params.Statistics[0] {
	case types.StatisticSum:
		dp.Sum = aws.Float64(value)
	case types.StatisticMaximum:
		dp.Maximum = aws.Float64(value)
	default:
		dp.Average = aws.Float64(value)
	}
	return &cloudwatch.GetMetricStatisticsOutput{Datapoints: []types.Datapoint{dp}}, nil
}

type fakeClients struct {
	apis          map[string]*regionCloudWatch
	defaultRegion string
	regionErr     error
}

func (f *fakeClients) CloudWatch(_ context.Context, account config.Account, region string) (awsservice.CloudWatchAPI, error) {
	api, ok := f.apis[account.DisplayAccountName+"/"+region]
	if !ok {
		return nil, errors.New("no client for " + region)
	}
	return api, nil
}

func (f *fakeClients) DefaultRegion(context.Context, config.Account) (string, error) {
	return f.defaultRegion, f.regionErr
}

func kinesisMetric(name, app, flow, id string) types.Metric {
	m := types.Metric{Namespace: aws.String(kinesisanalytics.Namespace), MetricName: aws.String(name)}
	for _, pair := range [][2]string{{"Application", app}, {"Flow", flow}, {"Id", id}} {
		if pair[1] == "" {
			continue
		}
		m.Dimensions = append(m.Dimensions, types.Dimension{Name: aws.String(pair[0]), Value: aws.String(pair[1])})
	}
	return m
}

func newTestCollector(t *testing.T, clients ClientFactory) (*Collector, *awsservice.RequestCounter) {
	t.Helper()
	return newCollectorFromConfig(t, testConfig, clients)
}

func newCollectorFromConfig(t *testing.T, document string, clients ClientFactory) (*Collector, *awsservice.RequestCounter) {
	t.Helper()
	cfg, err := config.Parse([]byte(document))
	require.NoError(t, err)
	processor := kinesisanalytics.NewMetricsProcessor(cfg.GetIncludeMetrics(), cfg.GetDimensions(), zap.NewNop())
	counter := awsservice.NewRequestCounter(nil)
	return NewCollector(cfg, processor, clients, counter, zap.NewNop()), counter
}

func TestCollect(t *testing.T) {
	west := &regionCloudWatch{
		metrics: []types.Metric{
			kinesisMetric("InputBytes", "Sample", "Input", "2.1"),
			kinesisMetric("MillisBehindLatest", "Sample", "", "2.1"),
			kinesisMetric("KPUs", "Sample", "", ""),
		},
		values: map[string]float64{"InputBytes": 1024, "MillisBehindLatest": 5},
	}
	east := &regionCloudWatch{
		metrics: []types.Metric{kinesisMetric("InputBytes", "Orders", "Output", "1.1")},
	}
	instance := &regionCloudWatch{
		metrics: []types.Metric{kinesisMetric("InputBytes", "Local", "Input", "")},
		values:  map[string]float64{"InputBytes": 0.5},
	}
	clients := &fakeClients{
		apis: map[string]*regionCloudWatch{
			"Appd/us-west-2":     west,
			"Appd/us-east-1":     east,
			"Instance/eu-west-1": instance,
		},
		defaultRegion: "eu-west-1",
	}
	collector, counter := newTestCollector(t, clients)

	metrics, err := collector.Collect(context.Background())
	require.NoError(t, err)

	paths := make([]string, 0, len(metrics))
	values := map[string]string{}
	for _, m := range metrics {
		paths = append(paths, m.MetricPath)
		values[m.MetricPath] = m.MetricValue
	}
	prefix := "Custom Metrics|AWS Kinesis Analytics|"
	assert.Equal(t, []string{
		prefix + "Appd|us-west-2|Application|Sample|Input|Id|2.1|InputBytes",
		prefix + "Appd|us-west-2|Application|Sample|Id|2.1|MillisBehindLatest",
		prefix + "Instance|eu-west-1|Application|Local|Input|InputBytes",
	}, paths)
	assert.Equal(t, "1024.0", values[paths[0]])
	assert.Equal(t, "5.0", values[paths[1]])
	assert.Equal(t, "0.5", values[paths[2]])

	assert.ElementsMatch(t, []types.Statistic{types.StatisticSum, types.StatisticMaximum}, west.statistics)
	// 3 ListMetrics pages plus 4 GetMetricStatistics calls.
	assert.EqualValues(t, 7, counter.Value())
}

func TestCollectKeepsGoingOnFailures(t *testing.T) {
	west := &regionCloudWatch{
		metrics: []types.Metric{
			kinesisMetric("InputBytes", "Sample", "Input", ""),
			kinesisMetric("MillisBehindLatest", "Sample", "", ""),
		},
		values:  map[string]float64{"InputBytes": 2},
		failFor: "MillisBehindLatest",
	}
	clients := &fakeClients{
		apis:      map[string]*regionCloudWatch{"Appd/us-west-2": west},
		regionErr: errors.New("imds unavailable"),
	}
	collector, _ := newTestCollector(t, clients)

	metrics, err := collector.Collect(context.Background())

	require.Error(t, err)
	// failed statistic, missing us-east-1 client, missing instance region
	assert.Len(t, multierr.Errors(err), 3)
	require.Len(t, metrics, 1)
	assert.Equal(t, "Custom Metrics|AWS Kinesis Analytics|Appd|us-west-2|Application|Sample|Input|InputBytes", metrics[0].MetricPath)
}

func TestCollectSharesRateLimitAcrossRegions(t *testing.T) {
	const rateLimitedConfig = `
accounts:
  - display_account_name: Appd
    regions: [us-west-1, us-west-2, us-east-1, us-east-2]
dimensions:
  - name: Application
metrics_config:
  include_metrics:
    - name: InputBytes
  get_metric_statistics_rate_limit: 2
concurrency:
  regions_per_account: 4
`
	clients := &fakeClients{apis: map[string]*regionCloudWatch{}}
	for _, region := range []string{"us-west-1", "us-west-2", "us-east-1", "us-east-2"} {
		clients.apis["Appd/"+region] = &regionCloudWatch{
			metrics: []types.Metric{kinesisMetric("InputBytes", "Sample", "", "")},
			values:  map[string]float64{"InputBytes": 1},
		}
	}
	collector, _ := newCollectorFromConfig(t, rateLimitedConfig, clients)

	start := time.Now()
	metrics, err := collector.Collect(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, metrics, 4)
	// burst of 2, then one call every 500ms
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
}
