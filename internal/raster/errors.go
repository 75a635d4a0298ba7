package raster

import "errors"

// Error kinds shared by every stage of the raster core. Stages wrap them with
// fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrOutOfBounds       = errors.New("out of bounds")
	ErrInvalidPipeline   = errors.New("invalid pipeline")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

const (
	KindInvalidParameter  = "invalid_parameter"
	KindOutOfBounds       = "out_of_bounds"
	KindInvalidPipeline   = "invalid_pipeline"
	KindUnsupportedFormat = "unsupported_format"
	KindInternal          = "internal"
)

// KindOf returns a stable label for err, suitable for metrics and API payloads.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(err, ErrOutOfBounds):
		return KindOutOfBounds
	case errors.Is(err, ErrInvalidPipeline):
		return KindInvalidPipeline
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	default:
		return KindInternal
	}
}

// IsPermanent reports whether err is one of the core error kinds. Those are
// caused by the request itself and retrying cannot fix them.
func IsPermanent(err error) bool {
	return KindOf(err) != KindInternal && err != nil
}
