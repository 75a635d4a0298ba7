package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/rasterflow/internal/encoder"
	"github.com/dunamismax/rasterflow/internal/raster"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StepError reports which step of a pipeline failed.
type StepError struct {
	Index int
	Op    string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type StepTiming struct {
	Index   int
	Op      string
	Width   int
	Height  int
	Elapsed time.Duration
}

// ExecutionResult holds either Buffer or, when the pipeline ended in Encode,
// Encoded and Format.
type ExecutionResult struct {
	Buffer         raster.Buffer
	Encoded        []byte
	Format         encoder.Format
	InputByteSize  int
	OutputByteSize int
	Elapsed        time.Duration
	Steps          []StepTiming
}

func (r ExecutionResult) IsEncoded() bool { return r.Encoded != nil }

func (r ExecutionResult) ElapsedMillis() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

// Runner executes pipelines. It holds no per-run state, so one Runner may
// serve any number of concurrent runs.
type Runner struct {
	tracer trace.Tracer
}

func NewRunner() *Runner {
	return &Runner{tracer: otel.Tracer("rasterflow/pipeline")}
}

// Validate checks the shape of ops without touching any pixels.
func Validate(ops []Operation) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: pipeline is empty", raster.ErrInvalidPipeline)
	}
	for i, op := range ops {
		switch op.(type) {
		case nil:
			return &StepError{Index: i, Op: "nil", Err: fmt.Errorf("%w: nil operation", raster.ErrInvalidPipeline)}
		case Encode:
			if i != len(ops)-1 {
				return &StepError{Index: i, Op: op.Name(), Err: fmt.Errorf("%w: encode must be the last operation", raster.ErrInvalidPipeline)}
			}
		case RasterOperation:
		default:
			return &StepError{Index: i, Op: op.Name(), Err: fmt.Errorf("%w: unsupported operation %T", raster.ErrInvalidPipeline, op)}
		}
	}
	return nil
}

// Run threads input through ops in order. Cancellation is observed between
// steps. On failure nothing but the error is returned.
func (r *Runner) Run(ctx context.Context, input raster.Buffer, ops []Operation) (ExecutionResult, error) {
	if err := Validate(ops); err != nil {
		return ExecutionResult{}, err
	}
	if input.IsZero() {
		return ExecutionResult{}, fmt.Errorf("%w: input buffer is empty", raster.ErrInvalidParameter)
	}

	started := time.Now()
	res := ExecutionResult{
		InputByteSize: input.ByteSize(),
		Steps:         make([]StepTiming, 0, len(ops)),
	}

	buf := input
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return ExecutionResult{}, fmt.Errorf("pipeline stopped before step %d: %w", i, err)
		}

		stepStarted := time.Now()
		_, span := r.tracer.Start(ctx, "pipeline."+op.Name(), trace.WithAttributes(
			attribute.Int("step.index", i),
			attribute.Int("step.input_width", buf.Width()),
			attribute.Int("step.input_height", buf.Height()),
		))

		var err error
		switch op := op.(type) {
		case Encode:
			if op.Format.Lossy() {
				span.SetAttributes(attribute.Float64("encode.quality", op.Quality))
			}
			res.Encoded, err = op.Encode(buf)
			res.Format = op.Format
		case RasterOperation:
			buf, err = op.Apply(buf)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, raster.KindOf(err))
			span.End()
			return ExecutionResult{}, &StepError{Index: i, Op: op.Name(), Err: err}
		}
		span.End()

		res.Steps = append(res.Steps, StepTiming{
			Index:   i,
			Op:      op.Name(),
			Width:   buf.Width(),
			Height:  buf.Height(),
			Elapsed: time.Since(stepStarted),
		})
	}

	if res.IsEncoded() {
		res.OutputByteSize = len(res.Encoded)
	} else {
		res.Buffer = buf
		res.OutputByteSize = buf.ByteSize()
	}
	res.Elapsed = time.Since(started)
	return res, nil
}

// FailedStep returns the index of the failing step recorded in err, or -1.
func FailedStep(err error) int {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Index
	}
	return -1
}
