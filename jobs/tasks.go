package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditRecord is the task type for persisting audit records.
	TaskTypeAuditRecord = "audit:record"
)

// AuditRecordPayload carries one audit event from the API process to the
// worker that persists it.
type AuditRecordPayload struct {
	EventKind    string         `json:"eventKind"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	ActorUserID  string         `json:"actorUserId"`
	Properties   map[string]any `json:"properties,omitempty"`
	OccurredAt   time.Time      `json:"occurredAt"`
}

// NewAuditRecordTask constructs an Asynq task.
func NewAuditRecordTask(payload AuditRecordPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditRecord, data), nil
}
