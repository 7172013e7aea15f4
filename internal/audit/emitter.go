package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatewarden/gatewarden/internal/group"
	"github.com/gatewarden/gatewarden/internal/role"
	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/jobs"
)

// Enqueuer submits audit-record tasks to the job queue.
type Enqueuer interface {
	EnqueueAuditRecord(ctx context.Context, payload jobs.AuditRecordPayload) (*asynq.TaskInfo, error)
}

// Emitter ships audit events to the background queue. Emission never fails
// the calling operation: an enqueue error is logged and dropped.
type Emitter struct {
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewEmitter constructs an emitter.
func NewEmitter(enqueuer Enqueuer, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{enqueuer: enqueuer, logger: logger, now: time.Now}
}

// Record enqueues one audit event with the actor taken from context.
func (e *Emitter) Record(ctx context.Context, eventKind, resourceType, resourceID string, properties map[string]any) {
	payload := jobs.AuditRecordPayload{
		EventKind:    eventKind,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Properties:   properties,
		OccurredAt:   e.now().UTC(),
	}
	if actor := shared.ActorFromContext(ctx); actor != nil {
		payload.ActorUserID = actor.UserID
	}
	if _, err := e.enqueuer.EnqueueAuditRecord(ctx, payload); err != nil {
		e.logger.Warn("audit enqueue failed",
			"eventKind", eventKind, "resourceType", resourceType,
			"resourceId", resourceID, "error", err)
	}
}

// RoleEvents adapts the emitter to the role module's audit surface.
type RoleEvents struct {
	emitter *Emitter
}

// NewRoleEvents constructs the role adapter.
func NewRoleEvents(emitter *Emitter) RoleEvents {
	return RoleEvents{emitter: emitter}
}

// Emit records a role event.
func (a RoleEvents) Emit(ctx context.Context, eventKind string, r role.Role, properties map[string]any) {
	a.emitter.Record(ctx, eventKind, ResourceRole, r.ID, properties)
}

// GroupEvents adapts the emitter to the group module's audit surface.
type GroupEvents struct {
	emitter *Emitter
}

// NewGroupEvents constructs the group adapter.
func NewGroupEvents(emitter *Emitter) GroupEvents {
	return GroupEvents{emitter: emitter}
}

// Emit records a group event.
func (a GroupEvents) Emit(ctx context.Context, eventKind string, g group.UserGroup, properties map[string]any) {
	a.emitter.Record(ctx, eventKind, ResourceGroup, g.ID, properties)
}

// RecordStore is the write surface the worker-side task handler needs.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) error
}

// NewRecordTaskHandler returns the Asynq handler that persists audit
// records on the worker.
func NewRecordTaskHandler(store RecordStore, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload jobs.AuditRecordPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("malformed audit payload", "error", err)
			return asynq.SkipRetry
		}
		return store.Insert(ctx, Record{
			EventKind:    payload.EventKind,
			ResourceType: payload.ResourceType,
			ResourceID:   payload.ResourceID,
			ActorUserID:  payload.ActorUserID,
			Properties:   payload.Properties,
			OccurredAt:   payload.OccurredAt,
		})
	}
}
