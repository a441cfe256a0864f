package workflow

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
)

// Evaluate derives a step's status from its snapshot configuration and
// the recorded decisions. It is a pure function of its arguments:
// recomputation from the persisted decision set always reproduces the
// same status.
//
// Rule precedence:
//  1. veto: in VETO_QUORUM mode a single rejection resolves the step
//     rejected, regardless of approval counts;
//  2. threshold: approved/total >= threshold;
//  3. min_approvals: approved >= min_approvals;
//  4. requires_all: every configured approver approved.
//
// When several positive rules are configured the most specific numeric
// one wins (threshold over min_approvals over requires_all).
func Evaluate(step *ArtifactStep, decisions []*Decision) string {
	approved := countDistinct(step, decisions, DecisionApproved)
	rejected := countDistinct(step, decisions, DecisionRejected)

	if step.Mode == chain.ModeVetoQuorum && rejected > 0 {
		return StepStatusRejected
	}

	total := len(step.Approvers)
	if total == 0 {
		return StepStatusPending
	}

	if step.Threshold != nil {
		ratio := decimal.NewFromInt(int64(approved)).Div(decimal.NewFromInt(int64(total)))
		if ratio.GreaterThanOrEqual(*step.Threshold) {
			return StepStatusApproved
		}
		return StepStatusPending
	}

	if step.MinApprovals != nil {
		if int32(approved) >= *step.MinApprovals {
			return StepStatusApproved
		}
		return StepStatusPending
	}

	if step.RequiresAll {
		if approved == total {
			return StepStatusApproved
		}
		return StepStatusPending
	}

	return StepStatusPending
}

// countDistinct counts approvers from the step's configured set whose
// live decision matches outcome. Decisions are already unique per
// approver at the storage layer; deduplication here keeps the function
// correct on arbitrary input.
func countDistinct(step *ArtifactStep, decisions []*Decision, outcome string) int {
	seen := make(map[uuid.UUID]struct{}, len(decisions))
	count := 0
	for _, d := range decisions {
		if d.Decision != outcome {
			continue
		}
		if !step.HasApprover(d.ApproverID) {
			continue
		}
		if _, dup := seen[d.ApproverID]; dup {
			continue
		}
		seen[d.ApproverID] = struct{}{}
		count++
	}
	return count
}
