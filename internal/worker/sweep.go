package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SweepRegistry is the slice of the registry the sweep needs.
type SweepRegistry interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweepJob periodically removes push registrations whose last write is
// older than the retention window. Tokens the providers condemned are
// cleaned up inline by the dispatcher; the sweep catches devices that went
// silent without a rejection, for example after an app uninstall the
// provider never reported.
type SweepJob struct {
	interval  time.Duration
	retention time.Duration
	registry  SweepRegistry
	logger    zerolog.Logger

	metrics *SweepMetrics
	now     func() time.Time
}

// SweepMetrics tracks sweep statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	Runs        int64
	Failures    int64
	TotalPurged int64

	LastRunAt    time.Time
	LastDuration time.Duration
	LastPurged   int64
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Interval  time.Duration
	Retention time.Duration
	Registry  SweepRegistry
	Logger    zerolog.Logger
}

// NewSweepJob creates a registration sweep job. Zero interval or retention
// select the defaults.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.SweepInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}

	return &SweepJob{
		interval:  cfg.Interval,
		retention: cfg.Retention,
		registry:  cfg.Registry,
		logger:    cfg.Logger.With().Str("component", "registration_sweep").Logger(),
		metrics:   &SweepMetrics{},
		now:       time.Now,
	}
}

// Run executes one sweep and reports how many registrations were purged.
func (j *SweepJob) Run(ctx context.Context) (int64, error) {
	start := j.now()
	cutoff := start.Add(-j.retention)

	j.logger.Info().
		Time("cutoff", cutoff).
		Msg("starting registration sweep")

	purged, err := j.registry.Purge(ctx, cutoff)
	duration := j.now().Sub(start)
	j.updateMetrics(start, duration, purged, err)

	if err != nil {
		j.logger.Error().Err(err).Msg("registration sweep failed")
		return 0, err
	}

	j.logger.Info().
		Int64("purged", purged).
		Dur("duration", duration).
		Msg("registration sweep completed")

	return purged, nil
}

// Start runs the sweep on its interval until the context is canceled. One
// sweep runs immediately so a worker that restarts daily still makes
// progress. Failures are logged and the loop keeps going; the next tick
// retries.
func (j *SweepJob) Start(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("registration sweep stopping")
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}

func (j *SweepJob) updateMetrics(at time.Time, duration time.Duration, purged int64, err error) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.Runs++
	if err != nil {
		j.metrics.Failures++
	} else {
		j.metrics.TotalPurged += purged
		j.metrics.LastPurged = purged
	}
	j.metrics.LastRunAt = at
	j.metrics.LastDuration = duration
}

// Metrics returns a copy of the current sweep metrics.
func (j *SweepJob) Metrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		Runs:         j.metrics.Runs,
		Failures:     j.metrics.Failures,
		TotalPurged:  j.metrics.TotalPurged,
		LastRunAt:    j.metrics.LastRunAt,
		LastDuration: j.metrics.LastDuration,
		LastPurged:   j.metrics.LastPurged,
	}
}

// MetricsSnapshot returns the current metrics as a map for the worker's
// health endpoint.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.Metrics()
	return map[string]interface{}{
		"runs":          m.Runs,
		"failures":      m.Failures,
		"total_purged":  m.TotalPurged,
		"last_run_at":   m.LastRunAt,
		"last_duration": m.LastDuration.String(),
		"last_purged":   m.LastPurged,
	}
}
