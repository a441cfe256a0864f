package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
)

const (
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
	StepStatusSkipped  = "skipped"
)

const (
	ChainStatusNotRequired = "not_required"
	ChainStatusPending     = "pending"
	ChainStatusApproved    = "approved"
	ChainStatusRejected    = "rejected"
)

// ArtifactStep is a per-artifact snapshot of a step template. Quorum
// configuration and the resolved approver set are copied at the moment
// the chain engages and are never re-read from the template, so edits
// to the chain cannot retroactively change the rules for artifacts
// already under review.
type ArtifactStep struct {
	TenantID       uuid.UUID        `json:"tenant_id"`
	ID             uuid.UUID        `json:"id"`
	ArtifactID     uuid.UUID        `json:"artifact_id"`
	ChainID        uuid.UUID        `json:"chain_id"`
	TemplateStepID uuid.UUID        `json:"template_step_id"`
	StepOrder      int32            `json:"step_order"`
	Name           string           `json:"name"`
	Mode           string           `json:"mode"`
	MinApprovals   *int32           `json:"min_approvals,omitempty"`
	RequiresAll    bool             `json:"requires_all"`
	Threshold      *decimal.Decimal `json:"threshold,omitempty"`
	Round          int32            `json:"round"`
	Status         string           `json:"status"`
	Approvers      []uuid.UUID      `json:"approvers"`
	ApproverRefs   []chain.ApproverRef `json:"approver_refs,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TerminalFavorable reports whether the step no longer blocks its
// successors.
func (s *ArtifactStep) TerminalFavorable() bool {
	return s.Status == StepStatusApproved || s.Status == StepStatusSkipped
}

// HasApprover reports whether userID belongs to the step's resolved
// approver set.
func (s *ArtifactStep) HasApprover(userID uuid.UUID) bool {
	for _, id := range s.Approvers {
		if id == userID {
			return true
		}
	}
	return false
}

// Actionable returns the unique step decisions may currently be
// recorded on: the lowest pending step whose predecessors are all
// approved or skipped. Actionability is derived at read time, never
// stored. steps must be ordered by step order.
func Actionable(steps []*ArtifactStep) *ArtifactStep {
	for _, step := range steps {
		switch step.Status {
		case StepStatusApproved, StepStatusSkipped:
			continue
		case StepStatusPending:
			return step
		default:
			// rejected: the chain is terminal, nothing is actionable
			return nil
		}
	}
	return nil
}

// DeriveChainStatus folds step statuses into the overall chain
// outcome: any rejection is chain-terminal, all steps
// terminal-favorable is approval, anything else is still pending.
func DeriveChainStatus(steps []*ArtifactStep) string {
	if len(steps) == 0 {
		return ChainStatusNotRequired
	}
	allFavorable := true
	for _, step := range steps {
		if step.Status == StepStatusRejected {
			return ChainStatusRejected
		}
		if !step.TerminalFavorable() {
			allFavorable = false
		}
	}
	if allFavorable {
		return ChainStatusApproved
	}
	return ChainStatusPending
}
