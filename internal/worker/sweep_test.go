package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilchat/veilchat/internal/worker"
)

type stubRegistry struct {
	cutoff time.Time
	purged int64
	err    error
	calls  int
}

func (s *stubRegistry) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	s.calls++
	s.cutoff = cutoff
	return s.purged, s.err
}

func TestDefaultConfig(t *testing.T) {
	cfg := worker.DefaultConfig()

	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 90*24*time.Hour, cfg.Retention)
	assert.Equal(t, "call-events-sub", cfg.SubscriptionName)
	assert.Empty(t, cfg.ProjectID)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("WORKER_SWEEP_INTERVAL", "1h")
	t.Setenv("PUSH_REGISTRATION_RETENTION_DAYS", "30")
	t.Setenv("PUBSUB_PROJECT_ID", "veil-prod")
	t.Setenv("PUBSUB_CALL_EVENTS_SUBSCRIPTION", "call-events-eu")

	cfg := worker.ConfigFromEnv()

	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention)
	assert.Equal(t, "veil-prod", cfg.ProjectID)
	assert.Equal(t, "call-events-eu", cfg.SubscriptionName)
}

func TestConfigFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("WORKER_SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("PUSH_REGISTRATION_RETENTION_DAYS", "-5")

	cfg := worker.ConfigFromEnv()

	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 90*24*time.Hour, cfg.Retention)
}

func TestSweepJob_Run(t *testing.T) {
	registry := &stubRegistry{purged: 7}
	job := worker.NewSweepJob(worker.SweepJobConfig{
		Retention: 30 * 24 * time.Hour,
		Registry:  registry,
		Logger:    zerolog.Nop(),
	})

	before := time.Now()
	purged, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(7), purged)
	assert.Equal(t, 1, registry.calls)

	// Cutoff is retention back from now.
	wantCutoff := before.Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, registry.cutoff, 2*time.Second)

	m := job.Metrics()
	assert.Equal(t, int64(1), m.Runs)
	assert.Equal(t, int64(0), m.Failures)
	assert.Equal(t, int64(7), m.TotalPurged)
	assert.Equal(t, int64(7), m.LastPurged)
	assert.False(t, m.LastRunAt.IsZero())
}

func TestSweepJob_RunError(t *testing.T) {
	registry := &stubRegistry{err: errors.New("connection refused")}
	job := worker.NewSweepJob(worker.SweepJobConfig{
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	_, err := job.Run(context.Background())
	require.Error(t, err)

	m := job.Metrics()
	assert.Equal(t, int64(1), m.Runs)
	assert.Equal(t, int64(1), m.Failures)
	assert.Equal(t, int64(0), m.TotalPurged)
}

func TestSweepJob_Defaults(t *testing.T) {
	registry := &stubRegistry{}
	job := worker.NewSweepJob(worker.SweepJobConfig{
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	_, err := job.Run(context.Background())
	require.NoError(t, err)

	// Default retention is 90 days.
	wantCutoff := time.Now().Add(-90 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, registry.cutoff, 2*time.Second)
}

func TestSweepJob_MetricsSnapshot(t *testing.T) {
	registry := &stubRegistry{purged: 3}
	job := worker.NewSweepJob(worker.SweepJobConfig{
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	_, err := job.Run(context.Background())
	require.NoError(t, err)

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(1), snapshot["runs"])
	assert.Equal(t, int64(3), snapshot["total_purged"])
	assert.Contains(t, snapshot, "last_run_at")
	assert.Contains(t, snapshot, "last_duration")
}
