// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package config // import "github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/config"

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"
)

const (
	DefaultMetricPrefix      = "Custom Metrics|AWS Kinesis Analytics|"
	DefaultAggregationType   = "AVERAGE"
	DefaultTimeRollUpType    = "AVERAGE"
	DefaultClusterRollUpType = "INDIVIDUAL"
	DefaultStartTimeInMins   = 5
	DefaultPeriodInSeconds   = 60
	DefaultRateLimit         = 400
	DefaultMaxErrorRetrySize = 3
	DefaultConcurrency       = 3

	metricPathSeparator = "|"
)

var (
	ErrNoAccounts       = errors.New("at least one account must be configured")
	ErrNoIncludeMetrics = errors.New("at least one include metric must be configured")
	ErrInvalidStatType  = errors.New("invalid stat type")
)

type Config interface {
	GetMetricPrefix() string
	GetAccounts() []Account
	GetDimensions() []metric.Dimension
	GetIncludeMetrics() []metric.IncludeMetric
	GetMetricsTimeRange() (start, end time.Duration)
	GetPeriod() int32
	GetRateLimit() int
	GetMaxErrorRetrySize() uint64
	GetConcurrency() Concurrency
}

type monitorConfig struct {
	MetricPrefix  string             `yaml:"metric_prefix"`
	Accounts      []Account          `yaml:"accounts"`
	Dimensions    []metric.Dimension `yaml:"dimensions"`
	MetricsConfig MetricsConfig      `yaml:"metrics_config"`
	Concurrency   Concurrency        `yaml:"concurrency"`
}

type Account struct {
	DisplayAccountName string   `yaml:"display_account_name"`
	AwsAccessKey       string   `yaml:"aws_access_key"`
	AwsSecretKey       string   `yaml:"aws_secret_key"`
	RoleArn            string   `yaml:"role_arn"`
	Regions            []string `yaml:"regions"`
}

type MetricsConfig struct {
	IncludeMetrics               []metric.IncludeMetric `yaml:"include_metrics"`
	MetricsTimeRange             MetricsTimeRange       `yaml:"metrics_time_range"`
	PeriodInSeconds              int32                  `yaml:"period_in_seconds"`
	GetMetricStatisticsRateLimit int                    `yaml:"get_metric_statistics_rate_limit"`
	MaxErrorRetrySize            *uint64                `yaml:"max_error_retry_size"`
}

type MetricsTimeRange struct {
	StartTimeInMinsBeforeNow int `yaml:"start_time_in_mins_before_now"`
	EndTimeInMinsBeforeNow   int `yaml:"end_time_in_mins_before_now"`
}

// Concurrency bounds the number of accounts, regions per account and
// metrics per region collected at once.
type Concurrency struct {
	Accounts          int `yaml:"accounts"`
	RegionsPerAccount int `yaml:"regions_per_account"`
	MetricsPerRegion  int `yaml:"metrics_per_region"`
}

// NewConfig reads, validates and defaults the configuration file at configPath.
func NewConfig(configPath string) (Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("%v with file %s", err, configPath)
	}
	return Parse(data)
}

// Parse validates a YAML document against the configuration schema and
// binds it.
func Parse(data []byte) (Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	cfg := monitorConfig{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile exports the variables of a .env file into the process
// environment, leaving variables that are already set untouched.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *monitorConfig) applyDefaults() error {
	if len(c.Accounts) == 0 {
		return ErrNoAccounts
	}
	if len(c.MetricsConfig.IncludeMetrics) == 0 {
		return ErrNoIncludeMetrics
	}

	if strings.TrimSpace(c.MetricPrefix) == "" {
		c.MetricPrefix = DefaultMetricPrefix
	}
	if !strings.HasSuffix(c.MetricPrefix, metricPathSeparator) {
		c.MetricPrefix += metricPathSeparator
	}

	for i := range c.Dimensions {
		if strings.TrimSpace(c.Dimensions[i].DisplayName) == "" {
			c.Dimensions[i].DisplayName = c.Dimensions[i].Name
		}
	}

	for i := range c.MetricsConfig.IncludeMetrics {
		m := &c.MetricsConfig.IncludeMetrics[i]
		statType, err := metric.ParseStatisticType(string(m.StatType))
		if err != nil {
			return fmt.Errorf("%w for metric %s: %v", ErrInvalidStatType, m.Name, err)
		}
		m.StatType = statType
		if m.Multiplier == nil {
			multiplier := metric.DefaultMultiplier
			m.Multiplier = &multiplier
		}
		if m.AggregationType == "" {
			m.AggregationType = DefaultAggregationType
		}
		if m.TimeRollUpType == "" {
			m.TimeRollUpType = DefaultTimeRollUpType
		}
		if m.ClusterRollUpType == "" {
			m.ClusterRollUpType = DefaultClusterRollUpType
		}
	}

	timeRange := &c.MetricsConfig.MetricsTimeRange
	if timeRange.StartTimeInMinsBeforeNow == 0 {
		timeRange.StartTimeInMinsBeforeNow = DefaultStartTimeInMins
	}
	if timeRange.StartTimeInMinsBeforeNow <= timeRange.EndTimeInMinsBeforeNow {
		return fmt.Errorf("metrics time range start (%d mins before now) must be earlier than end (%d mins before now)",
			timeRange.StartTimeInMinsBeforeNow, timeRange.EndTimeInMinsBeforeNow)
	}
	if c.MetricsConfig.PeriodInSeconds == 0 {
		c.MetricsConfig.PeriodInSeconds = DefaultPeriodInSeconds
	}
	if c.MetricsConfig.GetMetricStatisticsRateLimit == 0 {
		c.MetricsConfig.GetMetricStatisticsRateLimit = DefaultRateLimit
	}
	if c.MetricsConfig.MaxErrorRetrySize == nil {
		retries := uint64(DefaultMaxErrorRetrySize)
		c.MetricsConfig.MaxErrorRetrySize = &retries
	}

	for _, limit := range []*int{&c.Concurrency.Accounts, &c.Concurrency.RegionsPerAccount, &c.Concurrency.MetricsPerRegion} {
		if *limit <= 0 {
			*limit = DefaultConcurrency
		}
	}
	return nil
}

func (c *monitorConfig) GetMetricPrefix() string {
	return c.MetricPrefix
}

func (c *monitorConfig) GetAccounts() []Account {
	return c.Accounts
}

func (c *monitorConfig) GetDimensions() []metric.Dimension {
	return c.Dimensions
}

func (c *monitorConfig) GetIncludeMetrics() []metric.IncludeMetric {
	return c.MetricsConfig.IncludeMetrics
}

func (c *monitorConfig) GetMetricsTimeRange() (time.Duration, time.Duration) {
	timeRange := c.MetricsConfig.MetricsTimeRange
	return time.Duration(timeRange.StartTimeInMinsBeforeNow) * time.Minute,
		time.Duration(timeRange.EndTimeInMinsBeforeNow) * time.Minute
}

func (c *monitorConfig) GetPeriod() int32 {
	return c.MetricsConfig.PeriodInSeconds
}

func (c *monitorConfig) GetRateLimit() int {
	return c.MetricsConfig.GetMetricStatisticsRateLimit
}

func (c *monitorConfig) GetMaxErrorRetrySize() uint64 {
	return *c.MetricsConfig.MaxErrorRetrySize
}

func (c *monitorConfig) GetConcurrency() Concurrency {
	return c.Concurrency
}
