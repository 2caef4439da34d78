// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package awsservice

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestCounter counts CloudWatch API requests across all goroutines of a
// collection cycle. A nil counter discards increments.
type RequestCounter struct {
	count  atomic.Int64
	mirror prometheus.Counter
}

// NewRequestCounter optionally mirrors every increment into a Prometheus counter.
func NewRequestCounter(mirror prometheus.Counter) *RequestCounter {
	return &RequestCounter{mirror: mirror}
}

func (c *RequestCounter) Inc() {
	if c == nil {
		return
	}
	c.count.Add(1)
	if c.mirror != nil {
		c.mirror.Inc()
	}
}

func (c *RequestCounter) Value() int64 {
	if c == nil {
		return 0
	}
	return c.count.Load()
}
