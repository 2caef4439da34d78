// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package awsservice

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const roleSessionName = "kinesis-analytics-monitor"

// AccountCredentials selects how an account authenticates. Static keys win
// over the default chain; RoleArn is assumed on top of either.
type AccountCredentials struct {
	AccessKey string
	SecretKey string
	RoleArn   string
}

// LoadAWSConfig builds the SDK configuration for one account.
func LoadAWSConfig(ctx context.Context, creds AccountCredentials) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(DefaultRegion),
	}
	if creds.AccessKey != "" && creds.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}

	if creds.RoleArn != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), creds.RoleArn, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = roleSessionName
		})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}
	return awsCfg, nil
}
