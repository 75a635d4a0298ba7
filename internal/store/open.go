package store

import (
	"context"
	"fmt"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Store is what the binaries hold: jobs, usage and a way to release both.
type Store interface {
	JobStore
	UsageStore
	Close() error
}

func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryJobStore(), nil
	case DriverPostgres:
		return NewPostgresJobStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported job store driver: %q", driver)
	}
}
