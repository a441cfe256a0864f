package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicDecisionRecordedV1  = "governance.decision.recorded.v1"
	TopicStepStatusChangedV1 = "governance.step.status_changed.v1"
	TopicChainResolvedV1     = "governance.chain.resolved.v1"
	EventVersionV1           = 1
)

// DecisionRecordedV1 is published after a ballot is durably stored.
type DecisionRecordedV1 struct {
	EventID      uuid.UUID `json:"event_id"`
	EventVersion int       `json:"event_version"`
	RequestID    string    `json:"request_id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	ArtifactID   uuid.UUID `json:"artifact_id"`
	ChainID      uuid.UUID `json:"chain_id"`
	StepID       uuid.UUID `json:"step_id"`
	ApproverID   uuid.UUID `json:"approver_user_id"`
	ActorID      uuid.UUID `json:"actor_user_id"`
	Decision     string    `json:"decision"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// StepStatusChangedV1 is published when a recompute moves a step out
// of (or back into) pending.
type StepStatusChangedV1 struct {
	EventID      uuid.UUID `json:"event_id"`
	EventVersion int       `json:"event_version"`
	RequestID    string    `json:"request_id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	ArtifactID   uuid.UUID `json:"artifact_id"`
	ChainID      uuid.UUID `json:"chain_id"`
	StepID       uuid.UUID `json:"step_id"`
	StepOrder    int32     `json:"step_order"`
	Round        int32     `json:"round"`
	BeforeStatus string    `json:"before_status"`
	AfterStatus  string    `json:"after_status"`
	ChangedAt    time.Time `json:"changed_at"`
}

// ChainResolvedV1 is published once the overall chain reaches a
// terminal outcome for an artifact.
type ChainResolvedV1 struct {
	EventID      uuid.UUID `json:"event_id"`
	EventVersion int       `json:"event_version"`
	RequestID    string    `json:"request_id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	ArtifactID   uuid.UUID `json:"artifact_id"`
	ChainID      uuid.UUID `json:"chain_id"`
	ChainStatus  string    `json:"chain_status"`
	ResolvedAt   time.Time `json:"resolved_at"`
}
