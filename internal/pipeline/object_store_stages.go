package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dunamismax/rasterflow/internal/domain"
)

const (
	SourceTypeS3Presigned = domain.SourceTypeS3Presigned
	DefaultOutputPrefix   = "outputs"
)

// ObjectReader and ObjectWriter are the parts of storage.Client the object
// store stages use.
type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

type ObjectWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

type ObjectStore interface {
	ObjectReader
	ObjectWriter
}

type ObjectStoreFetcher struct {
	Storage ObjectReader
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return f.Storage.ReadObject(ctx, req.ObjectKey)
}

type ObjectStoreEmitter struct {
	Storage      ObjectWriter
	OutputPrefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, r Rendered) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}
	if strings.TrimSpace(r.OutputID) == "" {
		return Output{}, errors.New("output id is required")
	}

	objectKey := OutputObjectKey(e.OutputPrefix, req.JobID, r.OutputID, r.Format.Extension())
	if err := e.Storage.WriteObject(ctx, objectKey, r.Data, r.Format.ContentType()); err != nil {
		return Output{}, err
	}
	return outputFor(r, objectKey), nil
}

// OutputObjectKey is where ObjectStoreEmitter stores an output.
func OutputObjectKey(prefix, jobID, outputID, ext string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultOutputPrefix
	}
	return path.Join(prefix, sanitizePathToken(jobID), sanitizePathToken(outputID)+ext)
}

func NewObjectStoreProcessor(store ObjectStore, outputPrefix string, opts ...ProcessorOption) *Processor {
	return NewProcessor(
		ObjectStoreFetcher{Storage: store},
		ObjectStoreEmitter{Storage: store, OutputPrefix: outputPrefix},
		opts...,
	)
}
