// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/awsservice"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/config"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/processor/kinesisanalytics"
)

// MetricsProcessor is the namespace-specific half of a collection cycle.
type MetricsProcessor interface {
	Namespace() string
	GetMetrics(ctx context.Context, api awsservice.CloudWatchAPI, accountName string, counter *awsservice.RequestCounter) ([]metric.AWSMetric, error)
	StatisticType(m metric.AWSMetric) metric.StatisticType
	CreateMetricStatsForUpload(namespaceStats *metric.NamespaceMetricStatistics) []metric.Metric
}

var _ MetricsProcessor = (*kinesisanalytics.MetricsProcessor)(nil)

type Collector struct {
	cfg       config.Config
	processor MetricsProcessor
	clients   ClientFactory
	counter   *awsservice.RequestCounter
	logger    *zap.Logger
	now       func() time.Time
}

func NewCollector(cfg config.Config, processor MetricsProcessor, clients ClientFactory, counter *awsservice.RequestCounter, logger *zap.Logger) *Collector {
	return &Collector{
		cfg:       cfg,
		processor: processor,
		clients:   clients,
		counter:   counter,
		logger:    logger,
		now:       time.Now,
	}
}

// errorSink gathers the failures of concurrently collected accounts,
// regions and metrics.
type errorSink struct {
	mu  sync.Mutex
	err error
}

func (s *errorSink) append(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = multierr.Append(s.err, err)
}

// Collect runs one cycle: every account and region is queried, the
// statistics tree is assembled in configuration order and formatted.
// All regions of the cycle share one GetMetricStatistics rate limit.
// Per-account, per-region and per-metric failures are returned together
// with the metrics that could be collected.
func (c *Collector) Collect(ctx context.Context) ([]metric.Metric, error) {
	var (
		cycleID     = uuid.NewString()
		startTime   = c.now()
		accounts    = c.cfg.GetAccounts()
		concurrency = c.cfg.GetConcurrency()
		errs        = &errorSink{}
		limiter     = awsservice.NewRateLimiter(c.cfg.GetRateLimit())
		accountTree = make([]metric.AccountMetricStatistics, len(accounts))
		logger      = c.logger.With(zap.String("cycle", cycleID))
	)
	logger.Info("Start collection cycle", zap.String("namespace", c.processor.Namespace()), zap.Int("accounts", len(accounts)))

	group := new(errgroup.Group)
	group.SetLimit(concurrency.Accounts)
	for i, account := range accounts {
		i, account := i, account
		group.Go(func() error {
			accountTree[i] = c.collectAccount(ctx, account, limiter, errs, logger)
			return nil
		})
	}
	_ = group.Wait()

	namespaceStats := &metric.NamespaceMetricStatistics{Namespace: c.processor.Namespace()}
	for _, accountStats := range accountTree {
		namespaceStats.Add(accountStats)
	}

	metrics := c.processor.CreateMetricStatsForUpload(namespaceStats)
	logger.Info("Finish collection cycle",
		zap.Int("statistics", namespaceStats.Len()),
		zap.Int("metrics", len(metrics)),
		zap.Int64("awsRequests", c.counter.Value()),
		zap.Duration("duration", c.now().Sub(startTime)),
		zap.NamedError("errors", errs.err))
	return metrics, errs.err
}

func (c *Collector) collectAccount(ctx context.Context, account config.Account, limiter *rate.Limiter, errs *errorSink, logger *zap.Logger) metric.AccountMetricStatistics {
	accountStats := metric.AccountMetricStatistics{AccountName: account.DisplayAccountName}
	logger = logger.With(zap.String("account", account.DisplayAccountName))

	regions := account.Regions
	if len(regions) == 0 {
		region, err := c.clients.DefaultRegion(ctx, account)
		if err != nil {
			errs.append(fmt.Errorf("account %s: no regions configured: %w", account.DisplayAccountName, err))
			return accountStats
		}
		logger.Debug("Using instance region", zap.String("region", region))
		regions = []string{region}
	}

	regionTree := make([]metric.RegionMetricStatistics, len(regions))
	group := new(errgroup.Group)
	group.SetLimit(c.cfg.GetConcurrency().RegionsPerAccount)
	for i, region := range regions {
		i, region := i, region
		group.Go(func() error {
			regionTree[i] = c.collectRegion(ctx, account, region, limiter, errs, logger.With(zap.String("region", region)))
			return nil
		})
	}
	_ = group.Wait()

	for _, regionStats := range regionTree {
		accountStats.Add(regionStats)
	}
	return accountStats
}

func (c *Collector) collectRegion(ctx context.Context, account config.Account, region string, limiter *rate.Limiter, errs *errorSink, logger *zap.Logger) metric.RegionMetricStatistics {
	regionStats := metric.RegionMetricStatistics{Region: region}

	api, err := c.clients.CloudWatch(ctx, account, region)
	if err != nil {
		errs.append(fmt.Errorf("account %s region %s: %w", account.DisplayAccountName, region, err))
		return regionStats
	}

	awsMetrics, err := c.processor.GetMetrics(ctx, api, account.DisplayAccountName, c.counter)
	if err != nil {
		errs.append(fmt.Errorf("region %s: %w", region, err))
		return regionStats
	}

	var (
		fetcher          = awsservice.NewStatisticsFetcher(api, c.counter, limiter, c.cfg.GetMaxErrorRetrySize(), logger)
		startAgo, endAgo = c.cfg.GetMetricsTimeRange()
		now              = c.now()
		statistics       = make([]metric.MetricStatistic, len(awsMetrics))
	)

	group := new(errgroup.Group)
	group.SetLimit(c.cfg.GetConcurrency().MetricsPerRegion)
	for i, awsMetric := range awsMetrics {
		i, awsMetric := i, awsMetric
		group.Go(func() error {
			statType := c.processor.StatisticType(awsMetric)
			datapoints, err := fetcher.Fetch(ctx, awsservice.StatisticsQuery{
				Namespace: c.processor.Namespace(),
				Metric:    awsMetric.Metric,
				Statistic: statType.Statistic(),
				StartTime: now.Add(-startAgo),
				EndTime:   now.Add(-endAgo),
				Period:    c.cfg.GetPeriod(),
			})
			if err != nil {
				logger.Warn("Unable to fetch statistics", zap.String("metric", aws.ToString(awsMetric.Metric.MetricName)), zap.Error(err))
				errs.append(fmt.Errorf("account %s region %s: %w", account.DisplayAccountName, region, err))
			}
			stat := metric.MetricStatistic{
				Metric:       awsMetric,
				MetricPrefix: c.cfg.GetMetricPrefix(),
			}
			if dp, ok := awsservice.LatestDatapoint(datapoints); ok {
				stat.Value = statType.ValueOf(dp)
			}
			statistics[i] = stat
			return nil
		})
	}
	_ = group.Wait()

	for _, stat := range statistics {
		regionStats.Add(stat)
	}
	return regionStats
}
