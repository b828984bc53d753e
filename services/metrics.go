package services

import (
	"context"
	"time"
)

// MetricsRecorder is the part of aws_pkg.MetricsClient services report to.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordAmount(ctx context.Context, metricName string, amount int64, dimensions map[string]string) error
}

type nopMetrics struct{}

func (nopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }

func (nopMetrics) RecordAmount(context.Context, string, int64, map[string]string) error { return nil }

func metricsOrNop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// recordAsync sends metrics off the request path.
func recordAsync(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fn(ctx)
	}()
}
