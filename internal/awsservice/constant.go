// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package awsservice

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

const (
	StandardRetries = 3

	// DefaultRegion is used for STS and IMDS calls made before a
	// collection region is known.
	DefaultRegion = "us-east-1"
)

// StandardExponentialBackoff returns the retry policy used for CloudWatch
// calls, bounded by retries and the lifetime of ctx.
func StandardExponentialBackoff(ctx context.Context, retries uint64) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     200 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, retries), ctx)
}
