package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type erroringLock struct{}

func (erroringLock) Acquire(context.Context) (bool, error) { return false, errors.New("redis down") }
func (erroringLock) Release(context.Context) error         { return nil }

func newTestService(t *testing.T, lock Lock, jobs ...Job) (*Service, *prometheus.Registry) {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	return svc, reg
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "payment-expiry", err: errors.New("boom")}
	after := &testJob{name: "outbox-retention"}
	svc, reg := newTestService(t, NewLocalLock(), ok, after)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, after.runs)

	families, err := reg.Gather()
	require.NoError(t, err)
	var runs float64
	for _, family := range families {
		if family.GetName() == "cron_job_runs_total" {
			for _, m := range family.GetMetric() {
				runs += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), runs)
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	lock := NewLocalLock()
	_, _ = lock.Acquire(context.Background())
	job := &testJob{name: "payment-expiry"}
	svc, _ := newTestService(t, lock, job)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunCycleReleasesLock(t *testing.T) {
	lock := NewLocalLock()
	job := &testJob{name: "payment-expiry"}
	svc, _ := newTestService(t, lock, job)

	require.NoError(t, svc.runCycle(context.Background()))
	require.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 2, job.runs)
}

func TestRunCycleReportsLockErrors(t *testing.T) {
	job := &testJob{name: "payment-expiry"}
	svc, _ := newTestService(t, erroringLock{}, job)

	assert.ErrorContains(t, svc.runCycle(context.Background()), "redis down")
	assert.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "payment-expiry"}
	svc, _ := newTestService(t, NewLocalLock(), job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	assert.Error(t, err)
}
