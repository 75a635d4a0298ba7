package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

// CreateJobRequest asks for one source image to be rendered into one or more
// outputs. Every output runs its own pipeline over the same decoded source.
type CreateJobRequest struct {
	SourceType string       `json:"source_type" validate:"required,oneof=local_file s3_presigned"`
	WebhookURL string       `json:"webhook_url,omitempty" validate:"omitempty,url"`
	ObjectKey  string       `json:"object_key,omitempty"`
	Outputs    []OutputSpec `json:"outputs" validate:"required,min=1,dive"`
}

// OutputSpec is a named pipeline. The ID names the produced object.
type OutputSpec struct {
	ID         string          `json:"id" validate:"required,max=64"`
	Operations []OperationSpec `json:"operations" validate:"required,min=1,dive"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	Outputs    []OutputSpec
	ObjectKey  string
	Results    []OutputResult
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OutputResult describes one rendered output of a finished job. Location is a
// file path for local jobs and an object key otherwise.
type OutputResult struct {
	ID       string `json:"id"`
	Format   string `json:"format"`
	Location string `json:"location"`
	Bytes    int    `json:"bytes"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j Job) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

func (r *CreateJobRequest) Normalize() {
	r.SourceType = strings.ToLower(strings.TrimSpace(r.SourceType))
	r.ObjectKey = strings.TrimSpace(r.ObjectKey)
	for i := range r.Outputs {
		r.Outputs[i].ID = strings.TrimSpace(r.Outputs[i].ID)
		for j := range r.Outputs[i].Operations {
			r.Outputs[i].Operations[j].Normalize()
		}
	}
}

func (r CreateJobRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.SourceType == SourceTypeLocalFile && r.ObjectKey == "" {
		return fmt.Errorf("%w: object_key is required for source_type=local_file", ErrValidation)
	}

	seen := make(map[string]struct{}, len(r.Outputs))
	for i, out := range r.Outputs {
		if _, dup := seen[out.ID]; dup {
			return fmt.Errorf("%w: outputs[%d].id %q is duplicated", ErrValidation, i, out.ID)
		}
		seen[out.ID] = struct{}{}

		if err := ValidatePipeline(out.Operations); err != nil {
			return fmt.Errorf("outputs[%d]: %w", i, err)
		}
	}
	return nil
}
