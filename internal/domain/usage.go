package domain

import "time"

// UsageLog records what one finished job cost. BytesSaved is negative when
// the outputs together are larger than the source.
type UsageLog struct {
	UserID          string
	JobID           string
	Outputs         int
	PixelsProcessed int64
	BytesSaved      int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
