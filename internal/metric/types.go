// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package metric // import "github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"

import (
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Dimension is a configured CloudWatch dimension. DisplayName replaces Name
// in metric paths and Values narrows the accepted dimension values.
type Dimension struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Values      []string `yaml:"values"`
}

// DefaultMultiplier applies when an include metric sets no multiplier.
const DefaultMultiplier = 1.0

// IncludeMetric selects a CloudWatch metric and carries the presentation
// settings handed to the host agent untouched.
type IncludeMetric struct {
	Name              string        `yaml:"name"`
	Alias             string        `yaml:"alias"`
	StatType          StatisticType `yaml:"stat_type"`
	Multiplier        *float64      `yaml:"multiplier"`
	AggregationType   string        `yaml:"aggregation_type"`
	TimeRollUpType    string        `yaml:"time_roll_up_type"`
	ClusterRollUpType string        `yaml:"cluster_roll_up_type"`
	Delta             bool          `yaml:"delta"`
}

// Properties extracts the pass-through fields of the include metric.
func (m IncludeMetric) Properties() MetricProperties {
	multiplier := DefaultMultiplier
	if m.Multiplier != nil {
		multiplier = *m.Multiplier
	}
	return MetricProperties{
		Alias:             m.Alias,
		Multiplier:        multiplier,
		AggregationType:   m.AggregationType,
		TimeRollUpType:    m.TimeRollUpType,
		ClusterRollUpType: m.ClusterRollUpType,
		Delta:             m.Delta,
	}
}

// AWSMetric pairs a listed CloudWatch metric with the configuration that selected it.
type AWSMetric struct {
	IncludeMetric IncludeMetric
	Metric        types.Metric
}

// RawDimensions returns the metric's dimension pairs in CloudWatch order,
// skipping entries without a name or a value.
func (m AWSMetric) RawDimensions() []DimensionValue {
	dims := make([]DimensionValue, 0, len(m.Metric.Dimensions))
	for _, d := range m.Metric.Dimensions {
		if d.Name == nil || d.Value == nil {
			continue
		}
		dims = append(dims, DimensionValue{Name: *d.Name, Value: *d.Value})
	}
	return dims
}

// DimensionValue is one name/value pair attached to a data point.
type DimensionValue struct {
	Name  string
	Value string
}

// MetricStatistic is one fetched data point. A nil Value means CloudWatch
// returned no datapoint for the requested window.
type MetricStatistic struct {
	Metric       AWSMetric
	Value        *float64
	MetricPrefix string
}

type RegionMetricStatistics struct {
	Region           string
	MetricStatistics []MetricStatistic
}

func (r *RegionMetricStatistics) Add(stat MetricStatistic) {
	r.MetricStatistics = append(r.MetricStatistics, stat)
}

type AccountMetricStatistics struct {
	AccountName      string
	RegionStatistics []RegionMetricStatistics
}

func (a *AccountMetricStatistics) Add(region RegionMetricStatistics) {
	a.RegionStatistics = append(a.RegionStatistics, region)
}

// NamespaceMetricStatistics is the account -> region -> statistic tree
// produced by one collection cycle.
type NamespaceMetricStatistics struct {
	Namespace         string
	AccountStatistics []AccountMetricStatistics
}

func (n *NamespaceMetricStatistics) Add(account AccountMetricStatistics) {
	n.AccountStatistics = append(n.AccountStatistics, account)
}

// Len counts the statistics across all accounts and regions.
func (n *NamespaceMetricStatistics) Len() int {
	if n == nil {
		return 0
	}
	total := 0
	for _, account := range n.AccountStatistics {
		for _, region := range account.RegionStatistics {
			total += len(region.MetricStatistics)
		}
	}
	return total
}
