package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/encoder"
	"github.com/dunamismax/rasterflow/internal/raster"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const SourceTypeLocalFile = domain.SourceTypeLocalFile

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Outputs    []domain.OutputSpec
}

type Output struct {
	ID        string  `json:"id"`
	Format    string  `json:"format"`
	Path      string  `json:"path"`
	Bytes     int     `json:"bytes"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Steps     int     `json:"steps"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// Record converts o into the form stored on the job.
func (o Output) Record() domain.OutputResult {
	return domain.OutputResult{
		ID:       o.ID,
		Format:   o.Format,
		Location: o.Path,
		Bytes:    o.Bytes,
		Width:    o.Width,
		Height:   o.Height,
	}
}

type Result struct {
	SourceBytes  int
	SourceFormat encoder.Format
	SourceWidth  int
	SourceHeight int
	Outputs      []Output
}

// Rendered is one encoded output ready to be stored.
type Rendered struct {
	OutputID string
	Data     []byte
	Format   encoder.Format
	Width    int
	Height   int
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, r Rendered) (Output, error)
}

// Processor fetches a source image, runs every requested output pipeline over
// it and emits the encoded results.
type Processor struct {
	fetcher     Fetcher
	emitter     Emitter
	runner      *Runner
	logger      *zap.Logger
	parallelism int
}

type ProcessorOption func(*Processor)

func WithLogger(logger *zap.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// WithParallelism bounds how many outputs of one request render at once.
func WithParallelism(n int) ProcessorOption {
	return func(p *Processor) { p.parallelism = max(1, n) }
}

func NewProcessor(fetcher Fetcher, emitter Emitter, opts ...ProcessorOption) *Processor {
	p := &Processor{
		fetcher:     fetcher,
		emitter:     emitter,
		runner:      NewRunner(),
		logger:      zap.NewNop(),
		parallelism: 2,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func NewLocalProcessor(outputDir string, opts ...ProcessorOption) *Processor {
	return NewProcessor(LocalFileFetcher{}, LocalFileEmitter{OutputDir: outputDir}, opts...)
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}
	if len(req.Outputs) == 0 {
		return Result{}, fmt.Errorf("%w: request has no outputs", raster.ErrInvalidPipeline)
	}

	plans := make([][]Operation, len(req.Outputs))
	for i, out := range req.Outputs {
		ops, err := Plan(out.Operations)
		if err != nil {
			return Result{}, fmt.Errorf("output %s: %w", out.ID, err)
		}
		plans[i] = ops
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	src, srcFormat, err := encoder.Decode(sourceBytes)
	if err != nil {
		return Result{}, fmt.Errorf("decode stage: %w", err)
	}

	result := Result{
		SourceBytes:  len(sourceBytes),
		SourceFormat: srcFormat,
		SourceWidth:  src.Width(),
		SourceHeight: src.Height(),
		Outputs:      make([]Output, len(req.Outputs)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, out := range req.Outputs {
		ops := WithTerminalEncode(plans[i], srcFormat)
		g.Go(func() error {
			exec, err := p.runner.Run(gctx, src, ops)
			if err != nil {
				return fmt.Errorf("transform stage output=%s: %w", out.ID, err)
			}

			last := exec.Steps[len(exec.Steps)-1]
			written, err := p.emitter.Emit(gctx, req, Rendered{
				OutputID: out.ID,
				Data:     exec.Encoded,
				Format:   exec.Format,
				Width:    last.Width,
				Height:   last.Height,
			})
			if err != nil {
				return fmt.Errorf("emit stage output=%s: %w", out.ID, err)
			}
			written.Steps = len(exec.Steps)
			written.ElapsedMS = exec.ElapsedMillis()
			result.Outputs[i] = written

			p.logger.Debug("output rendered",
				zap.String("job_id", req.JobID),
				zap.String("output_id", out.ID),
				zap.String("format", written.Format),
				zap.Int("bytes", written.Bytes),
				zap.Float64("elapsed_ms", written.ElapsedMS),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return result, nil
}

// WithTerminalEncode keeps pipelines that already end in Encode and otherwise
// encodes in the source format.
func WithTerminalEncode(ops []Operation, source encoder.Format) []Operation {
	if _, ok := ops[len(ops)-1].(Encode); ok {
		return ops
	}
	out := make([]Operation, len(ops), len(ops)+1)
	copy(out, ops)
	return append(out, Encode{Format: source, Quality: DefaultQuality})
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, r Rendered) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(r.OutputID) == "" {
		return Output{}, errors.New("output id is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(jobDir, sanitizePathToken(r.OutputID)+r.Format.Extension())
	if err := os.WriteFile(fullPath, r.Data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return outputFor(r, fullPath), nil
}

func outputFor(r Rendered, path string) Output {
	return Output{
		ID:     r.OutputID,
		Format: string(r.Format),
		Path:   path,
		Bytes:  len(r.Data),
		Width:  r.Width,
		Height: r.Height,
	}
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
