package store

import (
	"context"
	"testing"
	"time"

	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	created := time.Now().UTC().Add(-time.Minute)

	require.NoError(t, s.Create(ctx, domain.Job{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  "input.png",
		Outputs: []domain.OutputSpec{
			{ID: "thumb", Operations: []domain.OperationSpec{{Op: domain.OpResize, Width: 100, Height: 100}}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}))

	job, ok, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCreated, job.Status)
	require.Len(t, job.Outputs, 1)

	job, err = s.UpdateStatus(ctx, "job-1", domain.JobStatusQueued)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.True(t, job.UpdatedAt.After(created))
	assert.False(t, job.Terminal())

	job, err = s.Complete(ctx, "job-1", []domain.OutputResult{{ID: "thumb", Format: "png", Location: "outputs/job-1/thumb.png", Bytes: 42}})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	require.Len(t, job.Results, 1)
	assert.Equal(t, 42, job.Results[0].Bytes)

	job, err = s.Fail(ctx, "job-1", "crop: out of bounds")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "crop: out of bounds", job.Error)
	assert.True(t, job.Terminal())

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.UpdateStatus(ctx, "missing", domain.JobStatusQueued)
	require.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.Complete(ctx, "missing", nil)
	require.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.Fail(ctx, "missing", "x")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryJobStoreUsageLogs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	require.NoError(t, s.CreateUsageLog(ctx, domain.UsageLog{UserID: "a", JobID: "1", PixelsProcessed: 10}))
	require.NoError(t, s.CreateUsageLog(ctx, domain.UsageLog{UserID: "b", JobID: "2", PixelsProcessed: 20}))
	require.NoError(t, s.CreateUsageLog(ctx, domain.UsageLog{UserID: "a", JobID: "3", BytesSaved: -5}))

	logs := s.UsageLogs("a")
	require.Len(t, logs, 2)
	assert.Equal(t, "1", logs[0].JobID)
	assert.Equal(t, int64(-5), logs[1].BytesSaved)
	assert.Empty(t, s.UsageLogs("nobody"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	require.Error(t, err)

	s, err := Open(context.Background(), DriverMemory, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

var (
	_ Store      = (*MemoryJobStore)(nil)
	_ Store      = (*PostgresJobStore)(nil)
	_ JobStore   = (*MemoryJobStore)(nil)
	_ UsageStore = (*MemoryJobStore)(nil)
	_ JobStore   = (*PostgresJobStore)(nil)
	_ UsageStore = (*PostgresJobStore)(nil)
)
