package pipeline

import (
	"context"

	"github.com/dunamismax/rasterflow/internal/raster"
	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome for one input of RunBatch.
type BatchItem struct {
	Result ExecutionResult
	Err    error
}

// RunBatch runs the same pipeline over every input with at most workers runs
// in flight. Items come back in input order. A failing input only fails its
// own item; inputs not yet started when ctx is done fail with ctx's error.
func (r *Runner) RunBatch(ctx context.Context, inputs []raster.Buffer, ops []Operation, workers int) ([]BatchItem, error) {
	if err := Validate(ops); err != nil {
		return nil, err
	}

	items := make([]BatchItem, len(inputs))
	var g errgroup.Group
	g.SetLimit(max(1, workers))

	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Result, items[i].Err = r.Run(ctx, input, ops)
			return nil
		})
	}
	_ = g.Wait()

	return items, nil
}
