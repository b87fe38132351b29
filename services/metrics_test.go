package services_test

import (
	"context"
	"errors"
	"testing"

	aws_pkg "reservation-service/pkg/aws"
	"reservation-service/services"

	"github.com/stretchr/testify/assert"
)

type countingRecorder struct {
	enabled bool
	names   []string
	err     error
}

func (c *countingRecorder) RecordCount(_ context.Context, name string, _ map[string]string) error {
	c.names = append(c.names, name)
	return c.err
}

func (c *countingRecorder) IsEnabled() bool { return c.enabled }

func TestMultiRecorder_SkipsDisabledAndJoinsErrors(t *testing.T) {
	on := &countingRecorder{enabled: true}
	failing := &countingRecorder{enabled: true, err: errors.New("cloudwatch down")}
	off := &countingRecorder{}
	var nilCloudWatch *aws_pkg.MetricsClient

	m := services.MultiRecorder(on, off, failing, nilCloudWatch)
	assert.True(t, m.IsEnabled())

	err := m.RecordCount(context.Background(), aws_pkg.MetricReservationsQueued, nil)
	assert.ErrorContains(t, err, "cloudwatch down")
	assert.Equal(t, []string{aws_pkg.MetricReservationsQueued}, on.names)
	assert.Empty(t, off.names)

	assert.False(t, services.MultiRecorder(off, nilCloudWatch).IsEnabled())
}
