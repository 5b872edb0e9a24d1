package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadExport = "leads.export"

type LeadExportPayload struct {
	JobID string `json:"jobId"`
}

func NewLeadExportTask(payload LeadExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadExport, data), nil
}

func ParseLeadExportPayload(task *asynq.Task) (LeadExportPayload, error) {
	var payload LeadExportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadExportPayload{}, err
	}
	return payload, nil
}
