// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package metric

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type StatisticType string

const (
	StatAverage     StatisticType = "ave"
	StatMaximum     StatisticType = "max"
	StatMinimum     StatisticType = "min"
	StatSum         StatisticType = "sum"
	StatSampleCount StatisticType = "samplecount"
)

var statisticTypes = map[StatisticType]types.Statistic{
	StatAverage:     types.StatisticAverage,
	StatMaximum:     types.StatisticMaximum,
	StatMinimum:     types.StatisticMinimum,
	StatSum:         types.StatisticSum,
	StatSampleCount: types.StatisticSampleCount,
}

// ParseStatisticType accepts the configured stat type, case-insensitively.
// An empty string yields StatAverage.
func ParseStatisticType(s string) (StatisticType, error) {
	if s == "" {
		return StatAverage, nil
	}
	st := StatisticType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statisticTypes[st]; !ok {
		return "", fmt.Errorf("unknown stat type %q", s)
	}
	return st, nil
}

// Statistic is the CloudWatch statistic requested for this type.
func (s StatisticType) Statistic() types.Statistic {
	if stat, ok := statisticTypes[s]; ok {
		return stat
	}
	return types.StatisticAverage
}

// ValueOf picks the statistic of this type out of a datapoint.
func (s StatisticType) ValueOf(dp types.Datapoint) *float64 {
	switch s.Statistic() {
	case types.StatisticMaximum:
		return dp.Maximum
	case types.StatisticMinimum:
		return dp.Minimum
	case types.StatisticSum:
		return dp.Sum
	case types.StatisticSampleCount:
		return dp.SampleCount
	default:
		return dp.Average
	}
}
