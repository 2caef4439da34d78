// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package awsservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/smithy-go"
	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"
)

var retryableErrorCodes = []string{
	"Throttling",
	"ThrottlingException",
	"RequestLimitExceeded",
	"ServiceUnavailable",
	"InternalServiceError",
	"InternalFailure",
}

// CloudWatchAPI is the part of the CloudWatch client the monitor uses.
type CloudWatchAPI interface {
	cloudwatch.ListMetricsAPIClient
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

var _ CloudWatchAPI = (*cloudwatch.Client)(nil)

// NewCloudWatchClient returns a client bound to region.
func NewCloudWatchClient(awsCfg aws.Config, region string) *cloudwatch.Client {
	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		o.Region = region
	})
}

// ListMetrics pages through every metric of namespace matching the
// dimension filters. The counter is incremented once per request.
func ListMetrics(ctx context.Context, api CloudWatchAPI, counter *RequestCounter, namespace string, filters []types.DimensionFilter) ([]types.Metric, error) {
	paginator := cloudwatch.NewListMetricsPaginator(api, &cloudwatch.ListMetricsInput{
		Namespace:  aws.String(namespace),
		Dimensions: filters,
	})

	var metrics []types.Metric
	for paginator.HasMorePages() {
		counter.Inc()
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list metrics for namespace %s: %w", namespace, err)
		}
		metrics = append(metrics, page.Metrics...)
	}
	return metrics, nil
}

// StatisticsQuery describes one GetMetricStatistics call.
type StatisticsQuery struct {
	Namespace string
	Metric    types.Metric
	Statistic types.Statistic
	StartTime time.Time
	EndTime   time.Time
	Period    int32
}

// StatisticsFetcher issues rate-limited GetMetricStatistics calls with retries.
type StatisticsFetcher struct {
	api     CloudWatchAPI
	counter *RequestCounter
	limiter *rate.Limiter
	retries uint64
	logger  *zap.Logger
}

// NewRateLimiter allows at most ratePerSecond GetMetricStatistics calls per
// second across every fetcher sharing it. A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond int) *rate.Limiter {
	if ratePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond)
}

// NewStatisticsFetcher waits on limiter before every call. A nil limiter
// disables limiting.
func NewStatisticsFetcher(api CloudWatchAPI, counter *RequestCounter, limiter *rate.Limiter, retries uint64, logger *zap.Logger) *StatisticsFetcher {
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}
	return &StatisticsFetcher{
		api:     api,
		counter: counter,
		limiter: limiter,
		retries: retries,
		logger:  logger,
	}
}

// Fetch returns the datapoints of the query, retrying throttled and
// transient failures.
func (f *StatisticsFetcher) Fetch(ctx context.Context, q StatisticsQuery) ([]types.Datapoint, error) {
	input := &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.Namespace),
		MetricName: q.Metric.MetricName,
		Dimensions: q.Metric.Dimensions,
		StartTime:  aws.Time(q.StartTime),
		EndTime:    aws.Time(q.EndTime),
		Period:     aws.Int32(q.Period),
		Statistics: []types.Statistic{q.Statistic},
	}

	var output *cloudwatch.GetMetricStatisticsOutput
	operation := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		f.counter.Inc()
		out, err := f.api.GetMetricStatistics(ctx, input)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			f.logger.Debug("GetMetricStatistics failed, retrying",
				zap.String("metric", aws.ToString(q.Metric.MetricName)), zap.Error(err))
			return err
		}
		output = out
		return nil
	}

	if err := backoff.Retry(operation, StandardExponentialBackoff(ctx, f.retries)); err != nil {
		return nil, fmt.Errorf("get metric statistics for %s: %w", aws.ToString(q.Metric.MetricName), err)
	}
	return output.Datapoints, nil
}

// LatestDatapoint returns the most recent timestamped datapoint.
func LatestDatapoint(datapoints []types.Datapoint) (types.Datapoint, bool) {
	var latest *types.Datapoint
	for i := range datapoints {
		dp := &datapoints[i]
		if dp.Timestamp == nil {
			continue
		}
		if latest == nil || dp.Timestamp.After(*latest.Timestamp) {
			latest = dp
		}
	}
	if latest == nil {
		return types.Datapoint{}, false
	}
	return *latest, true
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return slices.Contains(retryableErrorCodes, apiErr.ErrorCode()) || apiErr.ErrorFault() == smithy.FaultServer
	}
	return true
}
