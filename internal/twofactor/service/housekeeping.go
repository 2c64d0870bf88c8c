package service

import (
	"log/slog"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
)

// HousekeepingService periodically evicts expired login sessions from
// scratchpads that do not expire entries on their own.
type HousekeepingService struct {
	Sweeper  scratchpad.Sweeper
	Logger   *slog.Logger
	Interval time.Duration

	now    func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService returns nil when sp needs no sweeping.
// If interval is 0 or negative, defaults to 1 minute.
func NewHousekeepingService(sp scratchpad.Scratchpad, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	sweeper, ok := sp.(scratchpad.Sweeper)
	if !ok {
		return nil
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &HousekeepingService{
		Sweeper:  sweeper,
		Logger:   logger,
		Interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() int {
	n := s.Sweeper.Sweep(s.now())
	if n > 0 {
		s.Logger.Debug("evicted expired login sessions", "count", n)
	}
	return n
}
