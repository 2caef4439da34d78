// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package publisher

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/prozz/aws-embedded-metrics-golang/emf"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"
)

const metricPathDimension = "MetricPath"

// EMFPublisher writes each metric as a CloudWatch embedded metric format
// document, keyed by its metric path.
type EMFPublisher struct {
	w         io.Writer
	namespace string
	logGroup  string
}

var _ Publisher = (*EMFPublisher)(nil)

func NewEMFPublisher(w io.Writer, namespace, logGroup string) *EMFPublisher {
	return &EMFPublisher{w: w, namespace: namespace, logGroup: logGroup}
}

func (p *EMFPublisher) Publish(metrics []metric.Metric) error {
	for _, m := range metrics {
		value, err := strconv.ParseFloat(m.MetricValue, 64)
		if err != nil {
			return fmt.Errorf("metric %s has non numeric value %q: %w", m.MetricPath, m.MetricValue, err)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}

		logger := emf.New(emf.WithWriter(p.w))
		if p.logGroup != "" {
			logger = emf.New(emf.WithWriter(p.w), emf.WithLogGroup(p.logGroup))
		}
		logger = logger.Namespace(p.namespace).Dimension(metricPathDimension, m.MetricPath)
		for key, prop := range m.Properties {
			logger = logger.Property(key, fmt.Sprint(prop))
		}
		logger.MetricFloat(m.MetricName, value).Log()
	}
	return nil
}
