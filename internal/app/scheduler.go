package app

import (
	"context"
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	internalRedis "coachpay/internal/redis"
	"coachpay/internal/service"
)

const sweepLockName = "settlement-sweep"

// Sweeper runs one settlement sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepResult, error)
}

// Scheduler triggers the settlement sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	locker  internalRedis.LockStoreInterface // optional; keeps replicas from sweeping at once
	lockTTL time.Duration
	nrApp   *newrelic.Application
	log     logrus.FieldLogger
}

// NewScheduler creates a scheduler. locker and nrApp may be nil.
func NewScheduler(sweeper Sweeper, locker internalRedis.LockStoreInterface, lockTTL time.Duration, nrApp *newrelic.Application, log logrus.FieldLogger) *Scheduler {
	log = log.WithField("component", "scheduler")
	logger := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		sweeper: sweeper,
		locker:  locker,
		lockTTL: lockTTL,
		nrApp:   nrApp,
		log:     log,
	}
}

// Start registers the sweep under spec (e.g. "@every 5m") and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.WithField("schedule", spec).Info("settlement sweep scheduled")
	return nil
}

// Stop stops scheduling and waits for a running sweep, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs one sweep if this replica wins the lock. It reports whether a sweep ran.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if s.nrApp != nil {
		txn := s.nrApp.StartTransaction("settlement-sweep")
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	if s.locker != nil {
		token, ok, err := s.locker.Acquire(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			s.log.WithError(err).Warn("sweep lock unavailable, skipping")
			return false
		}
		if !ok {
			s.log.Debug("sweep already running elsewhere")
			return false
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), sweepLockName, token); err != nil {
				s.log.WithError(err).Warn("failed to release sweep lock")
			}
		}()
	}

	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		if txn := newrelic.FromContext(ctx); txn != nil {
			txn.NoticeError(err)
		}
		s.log.WithError(err).Error("settlement sweep failed")
		return true
	}

	s.log.WithFields(logrus.Fields{
		"reclaimed":   result.Reclaimed,
		"attempted":   result.Attempted,
		"transferred": result.Transferred,
		"failed":      result.Failed,
		"blocked":     result.Blocked,
	}).Info("settlement sweep finished")
	return true
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(pairs(keysAndValues)).Error(msg)
}

func pairs(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
