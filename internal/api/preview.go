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
	"go.uber.org/zap"
)

// Response headers set by the preview endpoint.
const (
	HeaderInputBytes  = "X-Rasterflow-Input-Bytes"
	HeaderOutputBytes = "X-Rasterflow-Output-Bytes"
	HeaderElapsedMS   = "X-Rasterflow-Elapsed-Ms"
	HeaderWidth       = "X-Rasterflow-Width"
	HeaderHeight      = "X-Rasterflow-Height"
	HeaderSteps       = "X-Rasterflow-Steps"
)

// handlePreview runs one pipeline synchronously over an uploaded image and
// returns the encoded result. The request is multipart with an "image" file
// and an "operations" field holding a JSON array of operations.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxPreviewBytes)
	if err := r.ParseMultipartForm(s.maxPreviewBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxPreviewBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with image and operations")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var specs []domain.OperationSpec
	if err := json.UnmarshalFromString(r.FormValue("operations"), &specs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid operations: %v", err))
		return
	}
	for i := range specs {
		specs[i].Normalize()
	}
	if err := domain.ValidatePipeline(specs); err != nil {
		writeFailure(w, err)
		return
	}
	ops, err := pipeline.Plan(specs)
	if err != nil {
		writeFailure(w, err)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	src, format, err := encoder.Decode(data)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !s.spend(w, r, previewCost(src)) {
		return
	}

	exec, err := s.runner.Run(r.Context(), src, pipeline.WithTerminalEncode(ops, format))
	if err != nil {
		s.logger.Debug("preview failed", zap.Int("step", pipeline.FailedStep(err)), zap.Error(err))
		writeFailure(w, err)
		return
	}

	last := exec.Steps[len(exec.Steps)-1]
	h := w.Header()
	h.Set("Content-Type", exec.Format.ContentType())
	h.Set(HeaderInputBytes, strconv.Itoa(len(data)))
	h.Set(HeaderOutputBytes, strconv.Itoa(exec.OutputByteSize))
	h.Set(HeaderElapsedMS, strconv.FormatFloat(exec.ElapsedMillis(), 'f', 3, 64))
	h.Set(HeaderWidth, strconv.Itoa(last.Width))
	h.Set(HeaderHeight, strconv.Itoa(last.Height))
	h.Set(HeaderSteps, strconv.Itoa(len(exec.Steps)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exec.Encoded)
}
