// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package collector

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/awsservice"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/config"
)

// ClientFactory hands out CloudWatch clients per account and region.
type ClientFactory interface {
	CloudWatch(ctx context.Context, account config.Account, region string) (awsservice.CloudWatchAPI, error)
	DefaultRegion(ctx context.Context, account config.Account) (string, error)
}

type awsClientFactory struct {
	mu      sync.Mutex
	configs map[string]aws.Config
}

var _ ClientFactory = (*awsClientFactory)(nil)

// NewAWSClientFactory loads one SDK configuration per account and reuses it
// for every region of that account.
func NewAWSClientFactory() ClientFactory {
	return &awsClientFactory{configs: map[string]aws.Config{}}
}

func (f *awsClientFactory) CloudWatch(ctx context.Context, account config.Account, region string) (awsservice.CloudWatchAPI, error) {
	awsCfg, err := f.accountConfig(ctx, account)
	if err != nil {
		return nil, err
	}
	return awsservice.NewCloudWatchClient(awsCfg, region), nil
}

func (f *awsClientFactory) DefaultRegion(ctx context.Context, account config.Account) (string, error) {
	awsCfg, err := f.accountConfig(ctx, account)
	if err != nil {
		return "", err
	}
	return awsservice.NewRegionResolver(awsCfg).GetRegion(ctx)
}

func (f *awsClientFactory) accountConfig(ctx context.Context, account config.Account) (aws.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if awsCfg, ok := f.configs[account.DisplayAccountName]; ok {
		return awsCfg, nil
	}
	awsCfg, err := awsservice.LoadAWSConfig(ctx, awsservice.AccountCredentials{
		AccessKey: account.AwsAccessKey,
		SecretKey: account.AwsSecretKey,
		RoleArn:   account.RoleArn,
	})
	if err != nil {
		return aws.Config{}, err
	}
	f.configs[account.DisplayAccountName] = awsCfg
	return awsCfg, nil
}
