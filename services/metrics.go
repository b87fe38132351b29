package services

import (
	"context"
	"errors"
	"time"

	aws_pkg "reservation-service/pkg/aws"

	"go.uber.org/zap"
)

// MetricsRecorder is the subset of the CloudWatch client the services use.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	IsEnabled() bool
}

var _ MetricsRecorder = (*aws_pkg.MetricsClient)(nil)

type noopMetrics struct{}

func (noopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }
func (noopMetrics) IsEnabled() bool                                              { return false }

func metricsOrNoop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// count records a metric off the request path. Failures are logged and dropped.
func count(m MetricsRecorder, log *zap.Logger, name string, dims map[string]string) {
	if !m.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.RecordCount(ctx, name, dims); err != nil {
			log.Debug("metric dropped", zap.String("metric", name), zap.Error(err))
		}
	}()
}

type multiRecorder []MetricsRecorder

// MultiRecorder fans counts out to every enabled recorder. Disabled ones are dropped up front.
func MultiRecorder(recorders ...MetricsRecorder) MetricsRecorder {
	var out multiRecorder
	for _, r := range recorders {
		if r != nil && r.IsEnabled() {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) RecordCount(ctx context.Context, name string, dims map[string]string) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordCount(ctx, name, dims); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiRecorder) IsEnabled() bool { return len(m) > 0 }
