// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package publisher

import (
	"fmt"
	"io"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"
)

// Publisher hands formatted metrics to the host agent.
type Publisher interface {
	Publish(metrics []metric.Metric) error
}

// New returns the publisher for output type "line" or "emf".
func New(outputType string, w io.Writer, namespace, logGroup string) (Publisher, error) {
	switch outputType {
	case "line":
		return NewLinePublisher(w), nil
	case "emf":
		return NewEMFPublisher(w, namespace, logGroup), nil
	default:
		return nil, fmt.Errorf("unknown output type %s", outputType)
	}
}
