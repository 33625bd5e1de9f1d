package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/hireloop-backend/pkg/logger"
)

type fakeLock struct {
	acquired   bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.acquired = false
	f.releases++
	return nil
}

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

type fakeJobRecorder struct {
	mu        sync.Mutex
	successes map[string]int
	failures  map[string]int
	observed  []string
}

func newFakeJobRecorder() *fakeJobRecorder {
	return &fakeJobRecorder{successes: map[string]int{}, failures: map[string]int{}}
}

func (f *fakeJobRecorder) ObserveDuration(job string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, job)
}

func (f *fakeJobRecorder) IncSuccess(job string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes[job]++
}

func (f *fakeJobRecorder) IncFailure(job string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[job]++
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	rec := newFakeJobRecorder()
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(ok, failing),
		Lock:     lock,
		Metrics:  rec,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, rec.successes["success"])
	assert.Equal(t, 1, rec.failures["fail"])
	assert.Equal(t, []string{"success", "fail"}, rec.observed)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.acquired)
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestServiceRunCycleReportsLockErrors(t *testing.T) {
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquireErr: errors.New("redis down")},
	})
	require.NoError(t, err)

	assert.Error(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)
}

func TestServiceRunStopsOnCancelAndReleasesLock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &cancelingJob{cancel: cancel}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job, &testJob{name: "after"}),
		Lock:     lock,
		Interval: time.Hour,
	})
	require.NoError(t, err)

	err = service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, lock.releases)
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	assert.Error(t, err)

	service, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, service.interval)
	assert.Empty(t, service.registry.Jobs())
}

type expiringLock struct {
	fakeLock
	extends int
}

func (e *expiringLock) Extend(context.Context) (bool, error) {
	e.extends++
	return false, nil
}

func TestServiceStopsCycleWhenLeaseLost(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	lock := &expiringLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(first, second),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 1, first.runs)
	assert.Zero(t, second.runs)
	assert.Equal(t, 1, lock.extends)
	assert.Equal(t, 1, lock.releases)
}

type cancelingJob struct {
	cancel context.CancelFunc
}

func (c *cancelingJob) Name() string { return "cancel" }

func (c *cancelingJob) Run(context.Context) error {
	c.cancel()
	return nil
}
