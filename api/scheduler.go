/*
scheduler.go - Background expired-hold sweeper

PURPOSE:
  Periodically releases holds whose expiry has passed, and re-evaluates
  min-stock alerts. The sweep is pure bookkeeping: availability math
  already ignores expired holds at read time, so the cadence here only
  affects how quickly stale rows get their terminal status stamped.

DESIGN:
  - Runs a background goroutine with configurable sweep interval
  - Each pass calls Service.ReleaseExpired (paged, contention-skipping)
  - Alert checks piggyback on the same tick
  - Stop() blocks until the in-flight pass finishes

CONFIGURATION:
  - Interval: How often to sweep (default: 1 minute)
  - Enabled:  Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewSweeper(svc, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - stock/holds.go: ReleaseExpired
  - handlers.go: Sweep endpoint (manual trigger)
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/stock-engine/stock"
)

// Sweeper periodically releases expired holds and checks alerts.
type Sweeper struct {
	Svc      *stock.Service
	Interval time.Duration
	Enabled  bool

	// CheckAlerts additionally evaluates min-stock thresholds each tick.
	CheckAlerts bool

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a sweeper with the default cadence.
func NewSweeper(svc *stock.Service, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		Svc:      svc,
		Interval: time.Minute,
		Enabled:  true,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("sweeper.disabled")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()

	s.log.Info("sweeper.started", zap.Duration("interval", s.Interval))
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.log.Info("sweeper.stopped")
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx := context.Background()

	released, err := s.Svc.ReleaseExpired(ctx)
	if err != nil {
		s.log.Error("sweeper.release_expired_failed", zap.Error(err))
	} else if released > 0 {
		s.log.Info("sweeper.released", zap.Int("count", released))
	}

	if !s.CheckAlerts {
		return
	}
	triggered, err := s.Svc.CheckAlerts(ctx, "")
	if err != nil {
		s.log.Error("sweeper.alert_check_failed", zap.Error(err))
	} else if len(triggered) > 0 {
		s.log.Info("sweeper.alerts_triggered", zap.Int("count", len(triggered)))
	}
}
