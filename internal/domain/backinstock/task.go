package backinstock

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDispatchRestock is the asynq task type for dispatching a restock event.
const TaskTypeDispatchRestock = "restock:dispatch"

// DispatchRestockPayload is the serialized payload for a dispatch task.
// Only the event log ID travels through the queue; the store holds the rest.
type DispatchRestockPayload struct {
	EventID string `json:"event_id"`
}

// NewDispatchRestockTask creates a new asynq task for a restock event.
func NewDispatchRestockTask(eventID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DispatchRestockPayload{EventID: eventID})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDispatchRestock, payload), nil
}

// ParseDispatchRestockPayload deserializes the task payload.
func ParseDispatchRestockPayload(data []byte) (*DispatchRestockPayload, error) {
	var p DispatchRestockPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	return &p, nil
}
