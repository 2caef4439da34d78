// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package metric

import (
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	PropertyAlias             = "alias"
	PropertyMultiplier        = "multiplier"
	PropertyAggregationType   = "aggregationType"
	PropertyTimeRollUpType    = "timeRollUpType"
	PropertyClusterRollUpType = "clusterRollUpType"
	PropertyDelta             = "delta"
)

// MetricProperties are the presentation settings that travel with every
// emitted metric.
type MetricProperties struct {
	Alias             string  `mapstructure:"alias"`
	Multiplier        float64 `mapstructure:"multiplier"`
	AggregationType   string  `mapstructure:"aggregationType"`
	TimeRollUpType    string  `mapstructure:"timeRollUpType"`
	ClusterRollUpType string  `mapstructure:"clusterRollUpType"`
	Delta             bool    `mapstructure:"delta"`
}

// ToMap flattens the properties into the bag attached to an output metric.
func (p MetricProperties) ToMap() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := mapstructure.Decode(p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PropertiesFromMap is the inverse of ToMap.
func PropertiesFromMap(m map[string]interface{}) (MetricProperties, error) {
	var p MetricProperties
	err := mapstructure.Decode(m, &p)
	return p, err
}

// Metric is one record handed to the host agent.
type Metric struct {
	MetricName  string
	MetricValue string
	MetricPath  string
	Properties  map[string]interface{}
}

// FormatValue renders a double the way the host agent parses it: plain
// decimal notation with at least one fractional digit inside
// [1e-3, 1e7), computerized scientific notation ("1.0E7") outside.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}

	abs := math.Abs(v)
	if v == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(v, 'E', -1, 64)
	mantissa, exponent, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	exp, err := strconv.Atoi(exponent)
	if err != nil {
		return s
	}
	return mantissa + "E" + strconv.Itoa(exp)
}
