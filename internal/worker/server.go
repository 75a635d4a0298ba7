package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/rasterflow/internal/config"
	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/pipeline"
	"github.com/dunamismax/rasterflow/internal/queue"
	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/dunamismax/rasterflow/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

type Server struct {
	logger          *zap.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  *pipeline.Processor
	objectProcessor *pipeline.Processor
	webhookClient   webhookSender
	jobStore        store.JobStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *zap.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	objects pipeline.ObjectStore,
	webhookClient webhookSender,
	jobStore store.JobStore,
	usageStore store.UsageStore,
) (*Server, error) {
	if objects == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []pipeline.ProcessorOption{
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithParallelism(workerCfg.OutputParallelism),
	}

	if usageStore == nil {
		if jobAndUsageStore, ok := jobStore.(store.UsageStore); ok {
			usageStore = jobAndUsageStore
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Warn("task failed",
						zap.String("type", task.Type()),
						zap.Int("retry", retried),
						zap.Int("max_retry", maxRetry),
						zap.Error(err),
					)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		localProcessor:  pipeline.NewLocalProcessor(workerCfg.LocalOutputDir, opts...),
		objectProcessor: pipeline.NewObjectStoreProcessor(objects, workerCfg.OutputPrefix, opts...),
		webhookClient:   webhookClient,
		jobStore:        jobStore,
		usageStore:      usageStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("rasterflow/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeProcessRaster, s.handleProcessRaster)
	return s.server.Run(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleProcessRaster(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseProcessRasterPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	return s.process(ctx, payload)
}

func (s *Server) process(ctx context.Context, payload queue.ProcessRasterPayload) error {
	if s.alreadySucceeded(ctx, payload.JobID) {
		s.logger.Info("job already succeeded, skipping", zap.String("job_id", payload.JobID))
		return nil
	}

	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	ctx, span := s.tracer.Start(ctx, "worker.process_raster", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_type", payload.SourceType),
		attribute.Int("job.outputs", len(payload.Outputs)),
		attribute.Int("job.operations", payload.Operations()),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("wait for job slot: %w", ctx.Err())
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	log := s.logger.With(zap.String("job_id", payload.JobID))
	log.Info("processing job",
		zap.String("source_type", payload.SourceType),
		zap.Int("outputs", len(payload.Outputs)),
		zap.String("object_key", payload.ObjectKey),
	)

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

	request := pipeline.Request{
		JobID:      payload.JobID,
		SourceType: payload.SourceType,
		ObjectKey:  payload.ObjectKey,
		Outputs:    payload.Outputs,
	}

	var (
		result pipeline.Result
		err    error
	)
	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		result, err = s.objectProcessor.Process(ctx, request)
	}
	if err != nil {
		return s.fail(ctx, span, payload, err)
	}

	log.Info("processed job", zap.Int("outputs", len(result.Outputs)), zap.Duration("elapsed", time.Since(startedAt)))
	s.completeJob(ctx, payload.JobID, result)
	s.metrics.pipelineOutputsTotal.Add(float64(len(result.Outputs)))
	s.recordUsage(ctx, payload.JobID, result, time.Since(startedAt))

	// The job is already complete; a lost notification must not rerun it.
	_ = s.dispatchWebhook(ctx, payload, EventJobCompleted, map[string]any{
		"job_id":        payload.JobID,
		"status":        domain.JobStatusSucceeded,
		"source_type":   payload.SourceType,
		"object_key":    payload.ObjectKey,
		"source_format": result.SourceFormat,
		"source_width":  result.SourceWidth,
		"source_height": result.SourceHeight,
		"requested_at":  payload.RequestedAt,
		"completed_at":  time.Now().UTC(),
		"outputs":       result.Outputs,
	})

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "processed")
	return nil
}

// fail records a pipeline error. Errors caused by the request itself end the
// job immediately; anything else is handed back to asynq for a retry unless
// this was the last attempt.
func (s *Server) fail(ctx context.Context, span trace.Span, payload queue.ProcessRasterPayload, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "pipeline failed")

	kind := raster.KindOf(err)
	op := "none"
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		op = stepErr.Op
	}
	s.metrics.stepFailuresTotal.WithLabelValues(op, kind).Inc()

	permanent := isPermanent(err)
	s.logger.Warn("pipeline failed",
		zap.String("job_id", payload.JobID),
		zap.String("op", op),
		zap.Int("step", pipeline.FailedStep(err)),
		zap.String("kind", kind),
		zap.Bool("permanent", permanent),
		zap.Error(err),
	)

	if !permanent && !lastAttempt(ctx) {
		s.updateJobStatus(ctx, payload.JobID, domain.JobStatusQueued)
		return fmt.Errorf("run pipeline: %w", err)
	}

	if s.jobStore != nil {
		if _, serr := s.jobStore.Fail(ctx, payload.JobID, err.Error()); serr != nil {
			s.logger.Error("job status update failed", zap.String("job_id", payload.JobID), zap.Error(serr))
		}
	}
	_ = s.dispatchWebhook(ctx, payload, EventJobFailed, map[string]any{
		"job_id":       payload.JobID,
		"status":       domain.JobStatusFailed,
		"source_type":  payload.SourceType,
		"object_key":   payload.ObjectKey,
		"requested_at": payload.RequestedAt,
		"failed_at":    time.Now().UTC(),
		"error":        err.Error(),
		"error_kind":   kind,
		"failed_step":  pipeline.FailedStep(err),
	})

	if permanent {
		return fmt.Errorf("run pipeline: %v: %w", err, asynq.SkipRetry)
	}
	return fmt.Errorf("run pipeline: %w", err)
}

func isPermanent(err error) bool {
	return raster.IsPermanent(err) || errors.Is(err, pipeline.ErrUnsupportedSourceType)
}

// lastAttempt reports whether asynq will not retry the current task. Outside
// an asynq handler there is no retry, so it reports true.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func (s *Server) alreadySucceeded(ctx context.Context, jobID string) bool {
	if s.jobStore == nil {
		return false
	}
	job, ok, err := s.jobStore.Get(ctx, jobID)
	return err == nil && ok && job.Status == domain.JobStatusSucceeded
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Error("job status update failed", zap.String("job_id", jobID), zap.String("status", status), zap.Error(err))
	}
}

func (s *Server) completeJob(ctx context.Context, jobID string, result pipeline.Result) {
	if s.jobStore == nil {
		return
	}
	records := make([]domain.OutputResult, len(result.Outputs))
	for i, out := range result.Outputs {
		records[i] = out.Record()
	}
	if _, err := s.jobStore.Complete(ctx, jobID, records); err != nil {
		s.logger.Error("job status update failed", zap.String("job_id", jobID), zap.String("status", domain.JobStatusSucceeded), zap.Error(err))
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.ProcessRasterPayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.metrics.webhookFailuresTotal.WithLabelValues(event).Inc()
		s.logger.Warn("webhook delivery failed", zap.String("job_id", payload.JobID), zap.String("event", event), zap.Error(err))
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, jobID string, result pipeline.Result, computeDuration time.Duration) {
	var (
		pixelsProcessed  int64
		totalOutputBytes int
	)
	for _, output := range result.Outputs {
		pixelsProcessed += int64(output.Width * output.Height)
		totalOutputBytes += output.Bytes
	}

	computeTimeMS := max(1, computeDuration.Milliseconds())

	s.metrics.pixelsProcessedTotal.Add(float64(pixelsProcessed))
	s.metrics.bytesInTotal.Add(float64(result.SourceBytes))
	s.metrics.bytesOutTotal.Add(float64(totalOutputBytes))
	s.metrics.computeTimeMSTotal.Add(float64(computeTimeMS))

	if s.usageStore == nil {
		return
	}

	userID := "anonymous"
	if s.jobStore != nil {
		job, ok, err := s.jobStore.Get(ctx, jobID)
		if err != nil {
			s.logger.Warn("usage lookup failed", zap.String("job_id", jobID), zap.Error(err))
		} else if ok && strings.TrimSpace(job.UserID) != "" {
			userID = job.UserID
		}
	}

	usage := domain.UsageLog{
		UserID:          userID,
		JobID:           jobID,
		Outputs:         len(result.Outputs),
		PixelsProcessed: pixelsProcessed,
		BytesSaved:      int64(result.SourceBytes - totalOutputBytes),
		ComputeTimeMS:   computeTimeMS,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Error("usage log write failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
