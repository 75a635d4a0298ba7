package queue

import (
	"fmt"
	"time"

	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
)

const TypeProcessRaster = "raster:process"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ProcessRasterPayload struct {
	JobID       string              `json:"job_id"`
	SourceType  string              `json:"source_type"`
	WebhookURL  string              `json:"webhook_url,omitempty"`
	ObjectKey   string              `json:"object_key"`
	Outputs     []domain.OutputSpec `json:"outputs"`
	RequestedAt time.Time           `json:"requested_at"`
}

// Operations counts the steps across all outputs.
func (p ProcessRasterPayload) Operations() int {
	n := 0
	for _, out := range p.Outputs {
		n += len(out.Operations)
	}
	return n
}

func NewProcessRasterTask(payload ProcessRasterPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal process payload: %w", err)
	}
	return asynq.NewTask(TypeProcessRaster, body), nil
}

func ParseProcessRasterPayload(task *asynq.Task) (ProcessRasterPayload, error) {
	var payload ProcessRasterPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ProcessRasterPayload{}, fmt.Errorf("unmarshal process payload: %w", err)
	}
	if payload.JobID == "" {
		return ProcessRasterPayload{}, fmt.Errorf("unmarshal process payload: job_id is empty")
	}
	return payload, nil
}
