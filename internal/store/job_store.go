package store

import (
	"context"
	"errors"

	"github.com/dunamismax/rasterflow/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Job, error)
	// Complete marks the job succeeded and records what it produced.
	Complete(ctx context.Context, id string, results []domain.OutputResult) (domain.Job, error)
	// Fail marks the job failed and keeps the reason for GET /v1/jobs/{id}.
	Fail(ctx context.Context, id, reason string) (domain.Job, error)
}

type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.UsageLog) error
}
