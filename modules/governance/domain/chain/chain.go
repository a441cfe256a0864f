package chain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DecisionMode selects the rule family used to decide when a step is
// satisfied.
const (
	ModeVetoQuorum   = "VETO_QUORUM"
	ModeSimpleQuorum = "SIMPLE_QUORUM"
)

const (
	ApproverKindUser  = "user"
	ApproverKindEmail = "email"
	ApproverKindRole  = "role"
)

// ApproverRef is one statically configured member of a step's approver
// set. Exactly one of UserID/Email/Role is meaningful depending on
// Kind; email and role refs are resolved to concrete user ids when the
// chain engages for an artifact.
type ApproverRef struct {
	Kind   string    `json:"kind"`
	UserID uuid.UUID `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
	Role   string    `json:"role,omitempty"`
}

// StepTemplate is the configured definition of one chain step.
type StepTemplate struct {
	TenantID     uuid.UUID        `json:"tenant_id"`
	ID           uuid.UUID        `json:"id"`
	ChainID      uuid.UUID        `json:"chain_id"`
	StepOrder    int32            `json:"step_order"`
	Name         string           `json:"name"`
	Mode         string           `json:"mode"`
	MinApprovals *int32           `json:"min_approvals,omitempty"`
	RequiresAll  bool             `json:"requires_all"`
	Threshold    *decimal.Decimal `json:"threshold,omitempty"`
	IsActive     bool             `json:"is_active"`
	Approvers    []ApproverRef    `json:"approvers"`
}

// ApprovalChain is the active approval configuration for one
// (project, artifact type) pair. At most one active chain exists per
// pair; the configuration is owned by project setup and read-only to
// the engine.
type ApprovalChain struct {
	TenantID     uuid.UUID      `json:"tenant_id"`
	ID           uuid.UUID      `json:"id"`
	ProjectID    uuid.UUID      `json:"project_id"`
	ArtifactType string         `json:"artifact_type"`
	IsActive     bool           `json:"is_active"`
	Steps        []StepTemplate `json:"steps"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ActiveSteps returns the chain's active templates in step order.
func (c *ApprovalChain) ActiveSteps() []StepTemplate {
	out := make([]StepTemplate, 0, len(c.Steps))
	for _, step := range c.Steps {
		if step.IsActive {
			out = append(out, step)
		}
	}
	return out
}
