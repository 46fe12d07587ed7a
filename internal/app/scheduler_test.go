package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachpay/internal/service"
)

type fakeSweeper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSweeper) Sweep(ctx context.Context) (*service.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &service.SweepResult{Attempted: 2, Transferred: 2}, nil
}

func (f *fakeSweeper) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	released []string
	err      error
}

func (f *fakeLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	if f.held {
		return "", false, nil
	}
	f.held = true
	return "token-1", true, nil
}

func (f *fakeLocker) Release(ctx context.Context, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.released = append(f.released, name+"/"+token)
	return nil
}

func TestScheduler_RunOnceTakesAndReleasesLock(t *testing.T) {
	log, _ := test.NewNullLogger()
	sweeper := &fakeSweeper{}
	locker := &fakeLocker{}
	s := NewScheduler(sweeper, locker, time.Minute, nil, log)

	assert.True(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, sweeper.Calls())
	assert.Equal(t, []string{"settlement-sweep/token-1"}, locker.released)
	assert.False(t, locker.held)
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	log, _ := test.NewNullLogger()
	sweeper := &fakeSweeper{}
	locker := &fakeLocker{held: true}
	s := NewScheduler(sweeper, locker, time.Minute, nil, log)

	assert.False(t, s.RunOnce(context.Background()))
	assert.Zero(t, sweeper.Calls())
	assert.Empty(t, locker.released)
}

func TestScheduler_SkipsWhenLockStoreDown(t *testing.T) {
	log, hook := test.NewNullLogger()
	sweeper := &fakeSweeper{}
	s := NewScheduler(sweeper, &fakeLocker{err: errors.New("connection refused")}, time.Minute, nil, log)

	assert.False(t, s.RunOnce(context.Background()))
	assert.Zero(t, sweeper.Calls())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "sweep lock unavailable, skipping", hook.LastEntry().Message)
}

func TestScheduler_ReleasesLockWhenSweepFails(t *testing.T) {
	log, hook := test.NewNullLogger()
	locker := &fakeLocker{}
	s := NewScheduler(&fakeSweeper{err: errors.New("db down")}, locker, time.Minute, nil, log)

	assert.True(t, s.RunOnce(context.Background()))
	assert.Len(t, locker.released, 1)
	assert.Equal(t, "settlement sweep failed", hook.LastEntry().Message)
}

func TestScheduler_RunsWithoutLocker(t *testing.T) {
	log, _ := test.NewNullLogger()
	sweeper := &fakeSweeper{}
	s := NewScheduler(sweeper, nil, time.Minute, nil, log)

	assert.True(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, sweeper.Calls())
}

func TestScheduler_StartRejectsBadSchedule(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewScheduler(&fakeSweeper{}, nil, time.Minute, nil, log)

	assert.Error(t, s.Start("every now and then"))
}

func TestScheduler_StartAndStop(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewScheduler(&fakeSweeper{}, nil, time.Minute, nil, log)

	require.NoError(t, s.Start("@every 1h"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
