package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driving"
)

// Scheduler runs the periodic cache maintenance jobs: the registry download
// and the staging retention sweep.
//
// For multi-instance deployments, configure a DistributedLock to prevent
// the same job running twice at once.
type Scheduler struct {
	cache  driving.CacheManager
	lock   driven.DistributedLock
	logger *slog.Logger

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	downloadInterval time.Duration
	tidyInterval     time.Duration
	pollInterval     time.Duration

	nextDownload time.Time
	nextTidy     time.Time

	// Lock configuration
	lockTTL      time.Duration
	lockRequired bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Cache  driving.CacheManager
	Lock   driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger *slog.Logger

	DownloadInterval time.Duration // How often to run the registry download (default: 1h)
	TidyInterval     time.Duration // How often to run the retention sweep (default: 24h)
	PollInterval     time.Duration // How often to check for due jobs (default: 30s)
	LockTTL          time.Duration // TTL for the distributed lock (default: 10m)
	LockRequired     bool          // If true, skip a job when the lock cannot be acquired
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	downloadInterval := cfg.DownloadInterval
	if downloadInterval == 0 {
		downloadInterval = time.Hour
	}
	tidyInterval := cfg.TidyInterval
	if tidyInterval == 0 {
		tidyInterval = 24 * time.Hour
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 30 * time.Second
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 10 * time.Minute
	}

	lockRequired := cfg.LockRequired
	if cfg.Lock != nil {
		// A configured lock is always honoured
		lockRequired = true
	}

	return &Scheduler{
		cache:            cfg.Cache,
		lock:             cfg.Lock,
		logger:           logger,
		downloadInterval: downloadInterval,
		tidyInterval:     tidyInterval,
		pollInterval:     pollInterval,
		lockTTL:          lockTTL,
		lockRequired:     lockRequired,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	now := time.Now()
	s.nextDownload = now
	s.nextTidy = now
	s.mu.Unlock()

	s.logger.Info("scheduler starting",
		"download_interval", s.downloadInterval,
		"tidy_interval", s.tidyInterval)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for the scheduler to finish
	select {
	case <-s.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
	return nil
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.runDueJobs(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runDueJobs(ctx)
		}
	}
}

// runDueJobs runs whichever maintenance jobs are due.
func (s *Scheduler) runDueJobs(ctx context.Context) {
	now := time.Now()

	s.mu.RLock()
	downloadDue := !now.Before(s.nextDownload)
	tidyDue := !now.Before(s.nextTidy)
	s.mu.RUnlock()

	if downloadDue {
		s.runJob(ctx, "cache-download", s.cache.DownloadToCache)
		s.mu.Lock()
		s.nextDownload = time.Now().Add(s.downloadInterval)
		s.mu.Unlock()
	}

	if tidyDue {
		s.runJob(ctx, "cache-tidy", s.cache.TidyCache)
		s.mu.Lock()
		s.nextTidy = time.Now().Add(s.tidyInterval)
		s.mu.Unlock()
	}
}

// runJob executes one job under the distributed lock when one is configured.
// The lock name doubles as the job name.
func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire job lock", "job", name, "error", err)
			if s.lockRequired {
				return // Skip this cycle
			}
		} else if !acquired {
			s.logger.Debug("job lock held by another instance, skipping", "job", name)
			return
		} else {
			defer func() {
				if err := s.lock.Release(ctx, name); err != nil {
					s.logger.Warn("failed to release job lock", "job", name, "error", err)
				}
			}()
		}
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	s.logger.Info("scheduled job complete", "job", name, "duration", time.Since(start))
}

// TriggerDownload immediately runs the registry download (ignoring schedule).
func (s *Scheduler) TriggerDownload(ctx context.Context) error {
	return s.cache.DownloadToCache(ctx)
}

// TriggerTidy immediately runs the retention sweep (ignoring schedule).
func (s *Scheduler) TriggerTidy(ctx context.Context) error {
	return s.cache.TidyCache(ctx)
}
