package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

const (
	DefaultMaxRetry = 5
	DefaultTimeout  = 3 * time.Minute
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueProcessRaster schedules a job. The task ID is the job ID so a job
// that is started twice is only queued once.
func (c *Client) EnqueueProcessRaster(ctx context.Context, payload ProcessRasterPayload) (*asynq.TaskInfo, error) {
	task, err := NewProcessRasterTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(DefaultMaxRetry),
		asynq.Timeout(DefaultTimeout),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
