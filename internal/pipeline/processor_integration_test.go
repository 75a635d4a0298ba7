package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/encoder"
	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProcessor_FileInTransformFileOut(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	outputDir := filepath.Join(tmp, "out")

	srcBytes := buildTestPNG(t, 240, 120)
	require.NoError(t, os.WriteFile(inputPath, srcBytes, 0o644))

	processor := NewLocalProcessor(outputDir)
	result, err := processor.Process(context.Background(), Request{
		JobID:      "job-local-1",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		Outputs: []domain.OutputSpec{
			{
				ID: "thumb_small",
				Operations: []domain.OperationSpec{
					{Op: domain.OpResize, Width: 80, Height: 40},
					{Op: domain.OpEncode, Format: "jpeg", Quality: ptr(0.75)},
				},
			},
			{
				ID: "watermarked",
				Operations: []domain.OperationSpec{
					{Op: domain.OpWatermark, Watermark: &domain.WatermarkSpec{Text: "rasterflow", Anchor: "center"}},
				},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, len(srcBytes), result.SourceBytes)
	assert.Equal(t, encoder.PNG, result.SourceFormat)
	assert.Equal(t, 240, result.SourceWidth)
	require.Len(t, result.Outputs, 2)

	resized := result.Outputs[0]
	assert.Equal(t, "thumb_small", resized.ID)
	assert.Equal(t, "jpeg", resized.Format)
	assert.Equal(t, 2, resized.Steps)
	assert.Equal(t, filepath.Join(outputDir, "job-local-1", "thumb_small.jpg"), resized.Path)
	verifyImageWidth(t, resized.Path, 80)

	// No explicit encode: the output keeps the source format.
	watermarked := result.Outputs[1]
	assert.Equal(t, "png", watermarked.Format)
	assert.Equal(t, 240, watermarked.Width)

	watermarkedBytes, err := os.ReadFile(watermarked.Path)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(srcBytes, watermarkedBytes), "watermark output should differ from the source")
	assert.Equal(t, len(watermarkedBytes), watermarked.Bytes)
}

func TestLocalProcessor_UnsupportedSourceType(t *testing.T) {
	_, err := NewLocalProcessor(t.TempDir()).Process(context.Background(), Request{
		JobID:      "job-unsupported",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/job/source",
		Outputs: []domain.OutputSpec{
			{ID: "thumb_small", Operations: []domain.OperationSpec{{Op: domain.OpResize, Width: 120, Height: 120}}},
		},
	})
	require.ErrorIs(t, err, ErrUnsupportedSourceType)
}

func TestProcessorRejectsBadPipelineBeforeFetching(t *testing.T) {
	fetcher := &countingFetcher{data: buildTestPNG(t, 10, 10)}
	p := NewProcessor(fetcher, discardEmitter{})

	_, err := p.Process(context.Background(), Request{
		JobID: "job-bad",
		Outputs: []domain.OutputSpec{{ID: "a", Operations: []domain.OperationSpec{
			{Op: domain.OpEncode, Format: "png"},
			{Op: domain.OpRotate, Degrees: 90},
		}}},
	})
	require.ErrorIs(t, err, raster.ErrInvalidPipeline)
	assert.True(t, raster.IsPermanent(err))
	assert.Zero(t, fetcher.calls)
}

func TestProcessorReportsStepFailure(t *testing.T) {
	p := NewProcessor(staticFetcher{data: buildTestPNG(t, 10, 10)}, discardEmitter{})

	_, err := p.Process(context.Background(), Request{
		JobID: "job-crop",
		Outputs: []domain.OutputSpec{{ID: "a", Operations: []domain.OperationSpec{
			{Op: domain.OpCrop, Width: 20, Height: 20},
		}}},
	})
	require.ErrorIs(t, err, raster.ErrOutOfBounds)
	assert.Equal(t, 0, FailedStep(err))
}

func TestProcessorRejectsUndecodableSource(t *testing.T) {
	p := NewProcessor(staticFetcher{data: []byte("plain text")}, discardEmitter{})

	_, err := p.Process(context.Background(), Request{
		JobID:   "job-text",
		Outputs: []domain.OutputSpec{{ID: "a", Operations: []domain.OperationSpec{{Op: domain.OpRotate}}}},
	})
	require.ErrorIs(t, err, raster.ErrUnsupportedFormat)
}

func TestObjectStoreProcessor(t *testing.T) {
	store := &memoryObjects{objects: map[string][]byte{"uploads/job-9/source": buildTestPNG(t, 64, 32)}}
	p := NewObjectStoreProcessor(store, "", WithParallelism(4))

	result, err := p.Process(context.Background(), Request{
		JobID:      "job-9",
		SourceType: SourceTypeS3Presigned,
		ObjectKey:  "uploads/job-9/source",
		Outputs: []domain.OutputSpec{
			{ID: "small", Operations: []domain.OperationSpec{
				{Op: domain.OpResize, Width: 16, Height: 16, Mode: "fit"},
				{Op: domain.OpEncode, Format: "webp", Quality: ptr(0.6)},
			}},
			{ID: "gray", Operations: []domain.OperationSpec{
				{Op: domain.OpAdjust, Adjust: &domain.AdjustSpec{Saturation: ptr(0.0)}},
			}},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Outputs, 2)

	assert.Equal(t, "outputs/job-9/small.webp", result.Outputs[0].Path)
	assert.Equal(t, "image/webp", store.contentTypes["outputs/job-9/small.webp"])
	assert.Equal(t, 16, result.Outputs[0].Width)

	gray, f, err := encoder.Decode(store.objects["outputs/job-9/gray.png"])
	require.NoError(t, err)
	assert.Equal(t, encoder.PNG, f)
	c := gray.At(40, 10)
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
}

type staticFetcher struct {
	data []byte
}

func (f staticFetcher) Fetch(_ context.Context, _ Request) ([]byte, error) {
	return f.data, nil
}

type countingFetcher struct {
	data  []byte
	calls int
}

func (f *countingFetcher) Fetch(_ context.Context, _ Request) ([]byte, error) {
	f.calls++
	return f.data, nil
}

type discardEmitter struct{}

func (discardEmitter) Emit(_ context.Context, _ Request, r Rendered) (Output, error) {
	return outputFor(r, ""), nil
}

type memoryObjects struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func (m *memoryObjects) ReadObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (m *memoryObjects) WriteObject(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.contentTypes == nil {
		m.contentTypes = make(map[string]string)
	}
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func verifyImageWidth(t *testing.T, path string, want int) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, _, err := encoder.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, want, img.Width())
}
