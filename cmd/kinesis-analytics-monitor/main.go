// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/awsservice"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/collector"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/config"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/logger"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/processor/kinesisanalytics"
	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/publisher"
)

var (
	configPath  = flag.String("config", "config.yml", "A yaml file describing accounts, dimensions and metrics to collect")
	envFile     = flag.String("env-file", "", "Optional .env file exported before AWS credentials are resolved")
	interval    = flag.Duration("interval", 0, "Collection interval, 0 collects once and exits")
	reload      = flag.Bool("reload", false, "Re-read the config file before every collection cycle")
	output      = flag.String("output", "line", "Output format: line or emf")
	emfLogGroup = flag.String("emf-log-group", "", "Log group set on EMF documents")
	emfNs       = flag.String("emf-namespace", "KinesisAnalyticsMonitor", "Namespace set on EMF documents")
	logLevel    = flag.String("log-level", "info", "debug, info, warn or error")
	logEncoding = flag.String("log-encoding", "console", "console or json")
	metricsAddr = flag.String("metrics-addr", "", "Address serving Prometheus metrics, empty disables it")
)

func main() {
	flag.Parse()

	zapLogger, err := logger.New(*logLevel, *logEncoding)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, zapLogger); err != nil {
		zapLogger.Fatal("Monitor failed", zap.Error(err))
	}
}

func run(ctx context.Context, zapLogger *zap.Logger) error {
	if err := config.LoadEnvFile(*envFile); err != nil {
		return err
	}
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	pub, err := publisher.New(*output, os.Stdout, *emfNs, *emfLogGroup)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kinesis_analytics_monitor_aws_requests_total",
		Help: "CloudWatch API requests issued by the monitor.",
	})
	registry.MustRegister(requests)
	if *metricsAddr != "" {
		server := &http.Server{Addr: *metricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLogger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
		defer func() { _ = server.Shutdown(context.Background()) }()
	}

	clients := collector.NewAWSClientFactory()
	cycle := func() error {
		if *reload {
			if cfg, err = config.NewConfig(*configPath); err != nil {
				return fmt.Errorf("failed to reload config: %w", err)
			}
		}
		processor := kinesisanalytics.NewMetricsProcessor(cfg.GetIncludeMetrics(), cfg.GetDimensions(), zapLogger)
		counter := awsservice.NewRequestCounter(requests)
		metrics, collectErr := collector.NewCollector(cfg, processor, clients, counter, zapLogger).Collect(ctx)
		if collectErr != nil {
			zapLogger.Warn("Collection cycle finished with errors", zap.Error(collectErr))
		}
		return pub.Publish(metrics)
	}

	if *interval <= 0 {
		return cycle()
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		if err := cycle(); err != nil {
			zapLogger.Error("Collection cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
