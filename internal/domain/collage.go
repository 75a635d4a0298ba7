package domain

import (
	"fmt"
	"strings"
)

const MaxCollageTiles = 16

// CollageSpec arranges uploaded images on a grid. Operations run on every
// tile before it is placed; the finished canvas is encoded as Format.
type CollageSpec struct {
	Columns    int             `json:"columns,omitempty" validate:"gte=0,lte=16"`
	CellWidth  int             `json:"cell_width,omitempty" validate:"gte=0,lte=4096"`
	CellHeight int             `json:"cell_height,omitempty" validate:"gte=0,lte=4096"`
	Gap        *int            `json:"gap,omitempty" validate:"omitempty,gte=0,lte=512"`
	Background string          `json:"background,omitempty" validate:"omitempty,hexcolor"`
	Format     string          `json:"format,omitempty" validate:"omitempty,oneof=png jpeg jpg webp"`
	Quality    *float64        `json:"quality,omitempty" validate:"omitempty,gte=0,lte=1"`
	Operations []OperationSpec `json:"operations,omitempty"`
}

func (c *CollageSpec) Normalize() {
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	for i := range c.Operations {
		c.Operations[i].Normalize()
	}
}

// Validate checks the layout for n tiles. Tile operations follow the usual
// rules except that encode is not allowed; the collage is encoded once.
func (c CollageSpec) Validate(n int) error {
	if n < 1 || n > MaxCollageTiles {
		return fmt.Errorf("%w: collage needs between 1 and %d images, got %d", ErrValidation, MaxCollageTiles, n)
	}
	if err := validateStruct(c); err != nil {
		return err
	}
	for i, op := range c.Operations {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operations[%d]: %w", i, err)
		}
		if op.Op == OpEncode {
			return fmt.Errorf("%w: operations[%d]: encode is not allowed on collage tiles", ErrValidation, i)
		}
	}
	return nil
}
