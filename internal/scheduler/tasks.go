package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskExportReconcile = "exports.reconcile"

// ExportReconcilePayload records what asked for a reconciliation pass.
type ExportReconcilePayload struct {
	Trigger string `json:"trigger"`
}

func NewExportReconcileTask(payload ExportReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportReconcile, data), nil
}

func ParseExportReconcilePayload(task *asynq.Task) (ExportReconcilePayload, error) {
	var payload ExportReconcilePayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExportReconcilePayload{}, err
	}
	return payload, nil
}
