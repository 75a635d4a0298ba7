package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dunamismax/rasterflow/internal/pipeline"
	"github.com/dunamismax/rasterflow/internal/queue"
	"github.com/dunamismax/rasterflow/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultPresignTTL      = 15 * time.Minute
	DefaultMaxPreviewBytes = 20 << 20
	DefaultUserIDHeader    = "X-User-ID"
)

type Server struct {
	logger                *zap.Logger
	queueClient           queueEnqueuer
	jobStore              store.JobStore
	storage               objectStorage
	runner                *pipeline.Runner
	presignTTL            time.Duration
	maxPreviewBytes       int64
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	metrics               *metrics
	tracer                trace.Tracer
	router                chi.Router
}

type queueEnqueuer interface {
	EnqueueProcessRaster(ctx context.Context, payload queue.ProcessRasterPayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

type Option func(*Server)

func WithStorage(storage objectStorage) Option {
	return func(s *Server) {
		if storage != nil {
			s.storage = storage
		}
	}
}

func WithPresignTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.presignTTL = ttl
		}
	}
}

func WithMaxPreviewBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxPreviewBytes = n
		}
	}
}

// WithRateLimiter limits write requests per user. The user is read from
// userIDHeader.
func WithRateLimiter(limiter RateLimiter, userIDHeader string) Option {
	return func(s *Server) {
		s.rateLimiter = limiter
		if userIDHeader != "" {
			s.rateLimitUserIDHeader = userIDHeader
		}
	}
}

func NewServer(logger *zap.Logger, queueClient queueEnqueuer, jobStore store.JobStore, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:                logger,
		queueClient:           queueClient,
		jobStore:              jobStore,
		storage:               unavailableObjectStorage{},
		runner:                pipeline.NewRunner(),
		presignTTL:            DefaultPresignTTL,
		maxPreviewBytes:       DefaultMaxPreviewBytes,
		rateLimitUserIDHeader: DefaultUserIDHeader,
		metrics:               newMetrics(),
		tracer:                otel.Tracer("rasterflow/api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

type unavailableObjectStorage struct{}

var errStorageUnavailable = errors.New("object storage is unavailable")

func (unavailableObjectStorage) PresignedPutURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errStorageUnavailable
}

func (unavailableObjectStorage) PresignedGetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errStorageUnavailable
}

func (unavailableObjectStorage) ObjectExists(_ context.Context, _ string) (bool, error) {
	return false, errStorageUnavailable
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.withHTTPMetrics)
	r.Use(s.withTracing)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.With(s.withRateLimit).Post("/jobs", s.handleCreateJob)
		r.With(s.withRateLimit).Post("/jobs/{id}/start", s.handleStartJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/preview", s.handlePreview)
		r.Post("/collage", s.handleCollage)
	})
	s.router = r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
