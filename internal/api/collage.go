package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/encoder"
	"github.com/dunamismax/rasterflow/internal/pipeline"
	"github.com/dunamismax/rasterflow/internal/raster"
	"go.uber.org/zap"
)

const collageWorkers = 4

// handleCollage lays uploaded images out on a grid. The request is multipart
// with one or more "images" files and an optional "layout" field holding a
// JSON CollageSpec. The whole upload shares the preview size limit.
func (s *Server) handleCollage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxPreviewBytes)
	if err := r.ParseMultipartForm(s.maxPreviewBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxPreviewBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with images")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var spec domain.CollageSpec
	if layout := r.FormValue("layout"); layout != "" {
		if err := json.UnmarshalFromString(layout, &spec); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid layout: %v", err))
			return
		}
	}
	spec.Normalize()

	files := r.MultipartForm.File["images"]
	if err := spec.Validate(len(files)); err != nil {
		writeFailure(w, err)
		return
	}
	plan, err := pipeline.PlanCollage(spec)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !s.spend(w, r, collageCost(len(files))) {
		return
	}

	tiles := make([]raster.Buffer, 0, len(files))
	inputBytes := 0
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read image %d", i))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read image %d", i))
			return
		}
		tile, _, err := encoder.Decode(data)
		if err != nil {
			writeFailure(w, fmt.Errorf("image %d: %w", i, err))
			return
		}
		inputBytes += len(data)
		tiles = append(tiles, tile)
	}

	res, err := s.runner.Collage(r.Context(), tiles, plan, collageWorkers)
	if err != nil {
		s.logger.Debug("collage failed", zap.Int("tiles", len(tiles)), zap.Error(err))
		writeFailure(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.Format.ContentType())
	h.Set(HeaderInputBytes, strconv.Itoa(inputBytes))
	h.Set(HeaderOutputBytes, strconv.Itoa(len(res.Encoded)))
	h.Set(HeaderElapsedMS, strconv.FormatFloat(float64(res.Elapsed.Microseconds())/1000, 'f', 3, 64))
	h.Set(HeaderWidth, strconv.Itoa(res.Width))
	h.Set(HeaderHeight, strconv.Itoa(res.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Encoded)
}
