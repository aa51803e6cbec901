package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type expiredBlobSweeper interface {
	SweepExpired(maxAge time.Duration) (int, error)
}

// RetentionService periodically removes uploads older than maxAge. Order rows are never touched.
type RetentionService struct {
	blobs    expiredBlobSweeper
	maxAge   time.Duration
	interval time.Duration
	metrics  *MetricsService
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewRetentionService constructs the sweeper with 24h/1h defaults.
func NewRetentionService(blobs expiredBlobSweeper, maxAge, interval time.Duration, metrics *MetricsService, logger *zap.Logger) *RetentionService {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionService{blobs: blobs, maxAge: maxAge, interval: interval, metrics: metrics, logger: logger}
}

// Start sweeps once immediately and then on every interval until ctx is cancelled.
func (s *RetentionService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.Sweep()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Wait blocks until the loop started by Start has returned.
func (s *RetentionService) Wait() {
	s.wg.Wait()
}

// Sweep runs a single retention pass and returns the number of deleted files.
func (s *RetentionService) Sweep() int {
	deleted, err := s.blobs.SweepExpired(s.maxAge)
	if deleted > 0 {
		s.metrics.SweepDeleted(deleted)
	}
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Int("deleted", deleted), zap.Error(err))
		return deleted
	}
	s.logger.Info("retention sweep completed", zap.Int("deleted", deleted), zap.Duration("max_age", s.maxAge))
	return deleted
}
