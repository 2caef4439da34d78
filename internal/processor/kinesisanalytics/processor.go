// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package kinesisanalytics

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/awsservice"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/predicate"
)

const (
	Namespace = "AWS/KinesisAnalytics"

	MetricPathSeparator = "|"

	ApplicationDimension = "Application"
	FlowDimension        = "Flow"
	IdDimension          = "Id"
)

// MetricsProcessor turns Kinesis Data Analytics statistics into metric
// paths of the form <Account>|<Region>|Application|<app>|<flow>|Id|<id>|<metric>.
type MetricsProcessor struct {
	includeMetrics  []metric.IncludeMetric
	includePatterns []*regexp.Regexp
	dimensions      []metric.Dimension
	logger          *zap.Logger
}

// NewMetricsProcessor compiles each include metric name as an anchored
// pattern. Names that are not valid patterns only match exactly.
func NewMetricsProcessor(includeMetrics []metric.IncludeMetric, dimensions []metric.Dimension, logger *zap.Logger) *MetricsProcessor {
	patterns := make([]*regexp.Regexp, len(includeMetrics))
	for i, includeMetric := range includeMetrics {
		re, err := regexp.Compile("^(?:" + includeMetric.Name + ")$")
		if err != nil {
			logger.Debug("include metric name is not a pattern", zap.String("name", includeMetric.Name), zap.Error(err))
			continue
		}
		patterns[i] = re
	}
	return &MetricsProcessor{
		includeMetrics:  includeMetrics,
		includePatterns: patterns,
		dimensions:      dimensions,
		logger:          logger,
	}
}

func (p *MetricsProcessor) Namespace() string {
	return Namespace
}

// DimensionFilters returns one name-only filter per configured dimension,
// in configuration order.
func (p *MetricsProcessor) DimensionFilters() []types.DimensionFilter {
	filters := make([]types.DimensionFilter, 0, len(p.dimensions))
	for _, dimension := range p.dimensions {
		filters = append(filters, types.DimensionFilter{Name: aws.String(dimension.Name)})
	}
	return filters
}

// GetMetrics lists the namespace's metrics carrying the configured
// dimensions and pairs each accepted one with its include metric. The
// paired include metric carries the listed metric's name, so metrics
// selected by one pattern keep distinct names.
func (p *MetricsProcessor) GetMetrics(ctx context.Context, api awsservice.CloudWatchAPI, accountName string, counter *awsservice.RequestCounter) ([]metric.AWSMetric, error) {
	dimensionPredicate, err := predicate.NewMultiDimensionPredicate(p.dimensions)
	if err != nil {
		return nil, err
	}

	listed, err := awsservice.ListMetrics(ctx, api, counter, Namespace, p.DimensionFilters())
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", accountName, err)
	}

	var awsMetrics []metric.AWSMetric
	for _, m := range listed {
		includeMetric, ok := p.findIncludeMetric(aws.ToString(m.MetricName))
		if !ok || !dimensionPredicate.Apply(m) {
			continue
		}
		includeMetric.Name = aws.ToString(m.MetricName)
		awsMetrics = append(awsMetrics, metric.AWSMetric{IncludeMetric: includeMetric, Metric: m})
	}
	p.logger.Debug("filtered metrics",
		zap.String("account", accountName), zap.Int("listed", len(listed)), zap.Int("selected", len(awsMetrics)))
	return awsMetrics, nil
}

// StatisticType returns the stat type configured for the metric, or
// StatAverage when no include metric matches.
func (p *MetricsProcessor) StatisticType(m metric.AWSMetric) metric.StatisticType {
	if includeMetric, ok := p.findIncludeMetric(m.IncludeMetric.Name); ok && includeMetric.StatType != "" {
		return includeMetric.StatType
	}
	return metric.StatAverage
}

// findIncludeMetric matches the name exactly first, then as an anchored pattern.
func (p *MetricsProcessor) findIncludeMetric(name string) (metric.IncludeMetric, bool) {
	for _, includeMetric := range p.includeMetrics {
		if includeMetric.Name == name {
			return includeMetric, true
		}
	}
	for i, re := range p.includePatterns {
		if re != nil && re.MatchString(name) {
			return p.includeMetrics[i], true
		}
	}
	return metric.IncludeMetric{}, false
}

// CreateMetricStatsForUpload flattens the statistics tree into output
// metrics. Statistics without a value are skipped.
func (p *MetricsProcessor) CreateMetricStatsForUpload(namespaceStats *metric.NamespaceMetricStatistics) []metric.Metric {
	var stats []metric.Metric
	if namespaceStats == nil {
		return stats
	}

	displayNames := make(map[string]string, len(p.dimensions))
	for _, dimension := range p.dimensions {
		displayNames[dimension.Name] = dimension.DisplayName
	}

	for _, accountStats := range namespaceStats.AccountStatistics {
		for _, regionStats := range accountStats.RegionStatistics {
			for _, metricStats := range regionStats.MetricStatistics {
				values := make(map[string]string)
				for _, d := range metricStats.Metric.RawDimensions() {
					values[d.Name] = d.Value
				}

				var path strings.Builder
				buildMetricPath(&path, true, accountStats.AccountName, regionStats.Region)
				arrangeMetricPathHierarchy(&path, displayNames, values)
				metricName := metricStats.Metric.IncludeMetric.Name
				buildMetricPath(&path, false, metricName)
				fullMetricPath := metricStats.MetricPrefix + path.String()

				if metricStats.Value == nil {
					p.logger.Debug(fmt.Sprintf("Ignoring metric [ %s ] which has value null", fullMetricPath))
					continue
				}

				properties, err := metricStats.Metric.IncludeMetric.Properties().ToMap()
				if err != nil {
					p.logger.Warn("unable to build metric properties", zap.String("path", fullMetricPath), zap.Error(err))
					continue
				}
				stats = append(stats, metric.Metric{
					MetricName:  metricName,
					MetricValue: metric.FormatValue(*metricStats.Value),
					MetricPath:  fullMetricPath,
					Properties:  properties,
				})
			}
		}
	}
	return stats
}

// buildMetricPath appends each suffix, followed by the separator when
// addSeparator is set.
func buildMetricPath(path *strings.Builder, addSeparator bool, suffixes ...string) {
	for _, suffix := range suffixes {
		path.WriteString(suffix)
		if addSeparator {
			path.WriteString(MetricPathSeparator)
		}
	}
}

// arrangeMetricPathHierarchy appends Application|<app>|<flow>|Id|<id>|.
// The Application segment is written even when its value is missing.
func arrangeMetricPathHierarchy(path *strings.Builder, displayNames, values map[string]string) {
	applicationDisplayName := displayNameOrDefault(displayNames, ApplicationDimension)
	idDisplayName := displayNameOrDefault(displayNames, IdDimension)

	buildMetricPath(path, true, applicationDisplayName, values[ApplicationDimension])
	if flow, ok := values[FlowDimension]; ok {
		buildMetricPath(path, true, flow)
	}
	if id, ok := values[IdDimension]; ok {
		buildMetricPath(path, true, idDisplayName, id)
	}
}

func displayNameOrDefault(displayNames map[string]string, name string) string {
	if displayName := strings.TrimSpace(displayNames[name]); displayName != "" {
		return displayNames[name]
	}
	return name
}
