package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskWarmNodes = "nodes:warm"
	QueueWarm     = "warm"
)

// WarmNodesPayload lists nodes (URI to default, null for none) to load into
// the shared cache ahead of rendering.
type WarmNodesPayload struct {
	Nodes map[string]*string `json:"nodes"`
}

// NewWarmNodesTask builds a warm task for the warm queue.
func NewWarmNodesTask(nodes map[string]*string) (*asynq.Task, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("warm task: no nodes")
	}
	payload, err := json.Marshal(WarmNodesPayload{Nodes: nodes})
	if err != nil {
		return nil, fmt.Errorf("warm task: %w", err)
	}
	return asynq.NewTask(TaskWarmNodes, payload,
		asynq.Queue(QueueWarm),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	), nil
}

// ParseWarmNodesPayload decodes a warm task payload.
func ParseWarmNodesPayload(t *asynq.Task) (WarmNodesPayload, error) {
	var p WarmNodesPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("warm task payload: %w", err)
	}
	return p, nil
}
