package workflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
)

func i32(v int32) *int32 { return &v }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ballot(step *ArtifactStep, approver uuid.UUID, outcome string) *Decision {
	return &Decision{
		ID:         uuid.New(),
		StepID:     step.ID,
		ChainID:    step.ChainID,
		ApproverID: approver,
		ActorID:    approver,
		Decision:   outcome,
	}
}

func newStep(mode string, approvers ...uuid.UUID) *ArtifactStep {
	return &ArtifactStep{
		ID:        uuid.New(),
		ChainID:   uuid.New(),
		StepOrder: 1,
		Mode:      mode,
		Status:    StepStatusPending,
		Approvers: approvers,
	}
}

func TestEvaluate_VetoOverridesApprovals(t *testing.T) {
	t.Parallel()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	step := newStep(chain.ModeVetoQuorum, a, b, c)
	step.MinApprovals = i32(2)

	decisions := []*Decision{
		ballot(step, a, DecisionApproved),
		ballot(step, b, DecisionApproved),
		ballot(step, c, DecisionRejected),
	}
	require.Equal(t, StepStatusRejected, Evaluate(step, decisions))
}

func TestEvaluate_RejectionWithoutVetoModeDoesNotVeto(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	step := newStep(chain.ModeSimpleQuorum, a, b)
	step.MinApprovals = i32(1)

	decisions := []*Decision{
		ballot(step, a, DecisionRejected),
		ballot(step, b, DecisionApproved),
	}
	require.Equal(t, StepStatusApproved, Evaluate(step, decisions))
}

func TestEvaluate_MinApprovalsBoundary(t *testing.T) {
	t.Parallel()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	step := newStep(chain.ModeVetoQuorum, a, b, c)
	step.MinApprovals = i32(2)

	decisions := []*Decision{ballot(step, a, DecisionApproved)}
	require.Equal(t, StepStatusPending, Evaluate(step, decisions), "k-1 approvals must stay pending")

	decisions = append(decisions, ballot(step, b, DecisionApproved))
	require.Equal(t, StepStatusApproved, Evaluate(step, decisions))
}

func TestEvaluate_ThresholdTakesPrecedenceOverMinApprovals(t *testing.T) {
	t.Parallel()

	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	step := newStep(chain.ModeVetoQuorum, a, b, c, d)
	step.Threshold = dec("0.5")
	// min_approvals alone would already approve with one ballot; the
	// more specific threshold rule keeps the step pending until 2/4.
	step.MinApprovals = i32(1)

	decisions := []*Decision{ballot(step, a, DecisionApproved)}
	require.Equal(t, StepStatusPending, Evaluate(step, decisions))

	decisions = append(decisions, ballot(step, b, DecisionApproved))
	require.Equal(t, StepStatusApproved, Evaluate(step, decisions))
}

func TestEvaluate_RequiresAll(t *testing.T) {
	t.Parallel()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	step := newStep(chain.ModeVetoQuorum, a, b, c)
	step.RequiresAll = true

	decisions := []*Decision{
		ballot(step, a, DecisionApproved),
		ballot(step, b, DecisionApproved),
	}
	require.Equal(t, StepStatusPending, Evaluate(step, decisions), "missing one approver keeps it pending")

	decisions = append(decisions, ballot(step, c, DecisionApproved))
	require.Equal(t, StepStatusApproved, Evaluate(step, decisions))
}

func TestEvaluate_DistinctApproversNotRawRows(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	step := newStep(chain.ModeVetoQuorum, a, b)
	step.MinApprovals = i32(2)

	// Duplicate ballots from the same approver count once.
	decisions := []*Decision{
		ballot(step, a, DecisionApproved),
		ballot(step, a, DecisionApproved),
	}
	require.Equal(t, StepStatusPending, Evaluate(step, decisions))
}

func TestEvaluate_IgnoresBallotsOutsideApproverSet(t *testing.T) {
	t.Parallel()

	a := uuid.New()
	step := newStep(chain.ModeVetoQuorum, a)
	step.MinApprovals = i32(1)

	outsider := uuid.New()
	decisions := []*Decision{ballot(step, outsider, DecisionApproved)}
	require.Equal(t, StepStatusPending, Evaluate(step, decisions))
}

func TestEvaluate_EmptyApproverSetStaysPending(t *testing.T) {
	t.Parallel()

	step := newStep(chain.ModeVetoQuorum)
	step.RequiresAll = true
	require.Equal(t, StepStatusPending, Evaluate(step, nil))
}

func TestEvaluate_VetoScenarioFromReviewBoard(t *testing.T) {
	t.Parallel()

	// One step, VETO_QUORUM, approvers {A, B}, min_approvals=2.
	a, b := uuid.New(), uuid.New()
	step := newStep(chain.ModeVetoQuorum, a, b)
	step.MinApprovals = i32(2)

	decisions := []*Decision{ballot(step, a, DecisionApproved)}
	require.Equal(t, StepStatusPending, Evaluate(step, decisions))

	decisions = append(decisions, ballot(step, b, DecisionRejected))
	require.Equal(t, StepStatusRejected, Evaluate(step, decisions),
		"veto fires even though min_approvals was never reached")
}

func TestEvaluate_NoRuleConfiguredStaysPending(t *testing.T) {
	t.Parallel()

	a := uuid.New()
	step := newStep(chain.ModeSimpleQuorum, a)
	decisions := []*Decision{ballot(step, a, DecisionApproved)}
	require.Equal(t, StepStatusPending, Evaluate(step, decisions))
}
