// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package awsservice

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

type imdsAPI interface {
	GetRegion(ctx context.Context, params *imds.GetRegionInput, optFns ...func(*imds.Options)) (*imds.GetRegionOutput, error)
}

// RegionResolver looks up the region of the instance the monitor runs on.
type RegionResolver struct {
	client imdsAPI
}

func NewRegionResolver(awsCfg aws.Config) *RegionResolver {
	return &RegionResolver{client: imds.NewFromConfig(awsCfg)}
}

// GetRegion returns the region reported by the instance metadata service.
func (r *RegionResolver) GetRegion(ctx context.Context) (string, error) {
	out, err := r.client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("get region from imds: %w", err)
	}
	return out.Region, nil
}
