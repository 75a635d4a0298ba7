package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "localhost:9000", Bucket: " "})
	require.Error(t, err)
}

func TestPresignedURLsAreLocal(t *testing.T) {
	c, err := NewClient(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "rasterflow-jobs",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "rasterflow-jobs", c.Bucket())

	put, err := c.PresignedPutURL(context.Background(), "uploads/job-1/source", time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(put)
	require.NoError(t, err)
	assert.Equal(t, "/rasterflow-jobs/uploads/job-1/source", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	get, err := c.PresignedGetURL(context.Background(), "outputs/job-1/thumb.png", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, get, "/rasterflow-jobs/outputs/job-1/thumb.png")
}
