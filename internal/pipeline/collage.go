package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dunamismax/rasterflow/internal/compositor"
	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/encoder"
	"github.com/dunamismax/rasterflow/internal/raster"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultCollageColumns = 2
	DefaultCollageCell    = 256
	DefaultCollageGap     = 8
)

// CollagePlan is a built CollageSpec. TileOps may be empty.
type CollagePlan struct {
	Layout  compositor.CollageLayout
	TileOps []Operation
	Encode  Encode
}

// CollageResult is the encoded canvas.
type CollageResult struct {
	Encoded []byte
	Format  encoder.Format
	Width   int
	Height  int
	Elapsed time.Duration
}

func PlanCollage(spec domain.CollageSpec) (CollagePlan, error) {
	plan := CollagePlan{
		Layout: compositor.CollageLayout{
			Columns:    spec.Columns,
			CellWidth:  spec.CellWidth,
			CellHeight: spec.CellHeight,
			Gap:        DefaultCollageGap,
			Background: raster.White,
		},
		Encode: Encode{Format: encoder.PNG, Quality: valueOr(spec.Quality, DefaultQuality)},
	}
	if plan.Layout.Columns == 0 {
		plan.Layout.Columns = DefaultCollageColumns
	}
	if plan.Layout.CellWidth == 0 {
		plan.Layout.CellWidth = DefaultCollageCell
	}
	if plan.Layout.CellHeight == 0 {
		plan.Layout.CellHeight = DefaultCollageCell
	}
	if spec.Gap != nil {
		plan.Layout.Gap = *spec.Gap
	}

	var err error
	if spec.Background != "" {
		if plan.Layout.Background, err = raster.ParseHexColor(spec.Background); err != nil {
			return CollagePlan{}, err
		}
	}
	if spec.Format != "" {
		if plan.Encode.Format, err = encoder.ParseFormat(spec.Format); err != nil {
			return CollagePlan{}, err
		}
	}

	if len(spec.Operations) > 0 {
		if plan.TileOps, err = Plan(spec.Operations); err != nil {
			return CollagePlan{}, err
		}
		for i, op := range plan.TileOps {
			if _, ok := op.(Encode); ok {
				return CollagePlan{}, &StepError{Index: i, Op: op.Name(), Err: fmt.Errorf("%w: tiles cannot be encoded", raster.ErrInvalidPipeline)}
			}
		}
	}
	return plan, nil
}

// Collage runs the tile pipeline over every tile, lays the results out on the
// grid and encodes the canvas. The first failing tile fails the collage.
func (r *Runner) Collage(ctx context.Context, tiles []raster.Buffer, plan CollagePlan, workers int) (CollageResult, error) {
	started := time.Now()
	ctx, span := r.tracer.Start(ctx, "pipeline.collage", trace.WithAttributes(
		attribute.Int("collage.tiles", len(tiles)),
		attribute.Int("collage.columns", plan.Layout.Columns),
	))
	defer span.End()

	if len(plan.TileOps) > 0 {
		items, err := r.RunBatch(ctx, tiles, plan.TileOps, workers)
		if err != nil {
			return CollageResult{}, err
		}
		processed := make([]raster.Buffer, len(items))
		for i, it := range items {
			if it.Err != nil {
				span.RecordError(it.Err)
				return CollageResult{}, fmt.Errorf("tile %d: %w", i, it.Err)
			}
			processed[i] = it.Result.Buffer
		}
		tiles = processed
	}
	if err := ctx.Err(); err != nil {
		return CollageResult{}, err
	}

	canvas, err := compositor.Collage(tiles, plan.Layout)
	if err != nil {
		return CollageResult{}, err
	}
	data, err := plan.Encode.Encode(canvas)
	if err != nil {
		return CollageResult{}, err
	}
	return CollageResult{
		Encoded: data,
		Format:  plan.Encode.Format,
		Width:   canvas.Width(),
		Height:  canvas.Height(),
		Elapsed: time.Since(started),
	}, nil
}
