// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package publisher

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"
)

// LinePublisher writes one line per metric in the host agent's script
// output format:
//
//	name=<path>,value=<value>,aggregator=<aggregation>,time-rollup=<time>,cluster-rollup=<cluster>
//
// The remaining properties are appended as key=value pairs.
type LinePublisher struct {
	w io.Writer
}

var _ Publisher = (*LinePublisher)(nil)

func NewLinePublisher(w io.Writer) *LinePublisher {
	return &LinePublisher{w: w}
}

func (p *LinePublisher) Publish(metrics []metric.Metric) error {
	bw := bufio.NewWriter(p.w)
	for _, m := range metrics {
		props, err := metric.PropertiesFromMap(m.Properties)
		if err != nil {
			return fmt.Errorf("metric %s: %w", m.MetricPath, err)
		}
		fields := []string{
			"name=" + m.MetricPath,
			"value=" + m.MetricValue,
			"aggregator=" + props.AggregationType,
			"time-rollup=" + props.TimeRollUpType,
			"cluster-rollup=" + props.ClusterRollUpType,
			"multiplier=" + metric.FormatValue(props.Multiplier),
			fmt.Sprintf("delta=%t", props.Delta),
		}
		if props.Alias != "" {
			fields = append(fields, "alias="+props.Alias)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, ",")); err != nil {
			return err
		}
	}
	return bw.Flush()
}
