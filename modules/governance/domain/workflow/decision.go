package workflow

import (
	"time"

	"github.com/google/uuid"
)

const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Decision is one approver's live ballot on one artifact step.
// ApproverID is the accountable identity; ActorID is whoever
// physically submitted it (they differ under delegation). At most one
// live decision exists per (step, approver); resubmission supersedes.
type Decision struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	ID         uuid.UUID `json:"id"`
	StepID     uuid.UUID `json:"step_id"`
	ChainID    uuid.UUID `json:"chain_id"`
	ApproverID uuid.UUID `json:"approver_user_id"`
	ActorID    uuid.UUID `json:"actor_user_id"`
	Decision   string    `json:"decision"`
	Reason     *string   `json:"reason,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
