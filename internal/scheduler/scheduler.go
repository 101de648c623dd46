package scheduler

import (
	"context"
	"time"

	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/services"
)

// Scheduler drives the background sweeps on fixed intervals: turn
// timer expiry, heartbeat staleness and session expiry. Each sweep is
// idempotent, so a failed tick just waits for the next one.
type Scheduler struct {
	log        logger.Logger
	supervisor services.SupervisorServicer
	lifecycle  services.LifecycleServicer

	timeoutInterval   time.Duration
	heartbeatInterval time.Duration
	expiryInterval    time.Duration
}

// New creates a new Scheduler with injected dependencies
func New(log logger.Logger, supervisor services.SupervisorServicer, lifecycle services.LifecycleServicer,
	timeoutInterval, heartbeatInterval, expiryInterval time.Duration) *Scheduler {
	return &Scheduler{
		log:               log,
		supervisor:        supervisor,
		lifecycle:         lifecycle,
		timeoutInterval:   timeoutInterval,
		heartbeatInterval: heartbeatInterval,
		expiryInterval:    expiryInterval,
	}
}

// Start launches the sweep goroutines. They run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, "timeout", s.timeoutInterval, func(ctx context.Context) (int, error) {
		return s.supervisor.SweepTimeouts(ctx)
	})
	go s.loop(ctx, "heartbeat", s.heartbeatInterval, func(ctx context.Context) (int, error) {
		return s.supervisor.SweepHeartbeats(ctx)
	})
	go s.loop(ctx, "expiry", s.expiryInterval, func(ctx context.Context) (int, error) {
		return s.lifecycle.ExpireStale(ctx)
	})
}

// loop runs one sweep on a fixed interval until the context ends
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context) (int, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sweep stopped", "sweep", name)
			return
		case <-ticker.C:
			acted, err := sweep(ctx)
			if err != nil {
				s.log.Error("Sweep failed", "sweep", name, "error", err)
				continue
			}
			if acted > 0 {
				s.log.Debug("Sweep acted", "sweep", name, "count", acted)
			}
		}
	}
}
