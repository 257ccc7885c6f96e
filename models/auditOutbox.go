package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRecord is the transactional outbox row for audit events. It is written
// inside the same transaction as the posting / activation it describes, then
// published after commit by the dispatcher. A failing audit sink can delay
// delivery but never roll back ledger state.
type AuditRecord struct {
	ID           int          `gorm:"primary_key;index:idx_audit_dispatch,priority:3" json:"id"`
	EventId      string       `gorm:"size:36;not null;uniqueIndex" json:"event_id"`
	ActorId      string       `gorm:"size:100;not null;index" json:"actor_id"`
	ActorName    string       `gorm:"size:255" json:"actor_name"`
	Action       AuditAction  `gorm:"type:enum('POST','REVERSE','ACTIVATE','CREATE','ARCHIVE');not null" json:"action"`
	ResourceType string       `gorm:"size:50;not null;index" json:"resource_type"`
	ResourceId   string       `gorm:"size:100;not null;index" json:"resource_id"`
	Outcome      AuditOutcome `gorm:"type:enum('SUCCESS','FAILURE');not null" json:"outcome"`
	Detail       []byte       `gorm:"type:blob" json:"detail"`
	OccurredAt   time.Time    `gorm:"not null;index" json:"occurred_at"`
	// Outbox metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_audit_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_audit_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// EmitAudit appends an audit outbox row inside the caller's transaction.
// Detail is stored as JSON; a detail that cannot marshal is dropped to an
// empty payload rather than failing the business transaction.
func EmitAudit(tx *gorm.DB, ctx context.Context, action AuditAction, resourceType string, resourceId string, outcome AuditOutcome, detail interface{}) error {
	actorId, _ := utils.GetActorIdFromContext(ctx)
	actorName, _ := utils.GetActorNameFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	var payload []byte
	if detail != nil {
		if b, err := json.Marshal(detail); err == nil {
			payload = b
		} else {
			config.LogError(config.GetLogger(), "models", "EmitAudit", "marshal detail", resourceId, err)
		}
	}

	record := AuditRecord{
		EventId:       uuid.NewString(),
		ActorId:       actorId,
		ActorName:     actorName,
		Action:        action,
		ResourceType:  resourceType,
		ResourceId:    resourceId,
		Outcome:       outcome,
		Detail:        payload,
		OccurredAt:    time.Now().UTC(),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}

// ConvertToAuditMessage maps an outbox row to the publishable message shape.
func ConvertToAuditMessage(record AuditRecord) config.AuditMessage {
	return config.AuditMessage{
		ID:            record.EventId,
		Actor:         record.ActorId,
		Action:        string(record.Action),
		ResourceType:  record.ResourceType,
		ResourceID:    record.ResourceId,
		Outcome:       string(record.Outcome),
		Detail:        record.Detail,
		CorrelationId: record.CorrelationId,
		OccurredAt:    record.OccurredAt,
	}
}
