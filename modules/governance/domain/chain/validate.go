package chain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quorumworks/govern-sdk/pkg/serrors"
)

var (
	one  = decimal.NewFromInt(1)
	zero = decimal.Zero
)

// Validate checks that the chain configuration is well-formed enough
// to engage. Configuration is owned by project setup; the engine
// refuses to materialize from a malformed chain rather than guessing.
func (c *ApprovalChain) Validate() error {
	if c.ArtifactType == "" {
		return serrors.NewFieldRequiredError("artifact_type", "governance.chain.artifact_type_required")
	}
	for _, step := range c.ActiveSteps() {
		if err := step.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *StepTemplate) validate() error {
	if t.Name == "" {
		return serrors.NewFieldRequiredError("name", "governance.step.name_required")
	}
	if t.StepOrder < 1 {
		return serrors.NewError(
			"STEP_ORDER_INVALID",
			fmt.Sprintf("step %q has step_order %d, must be >= 1", t.Name, t.StepOrder),
			"governance.step.order_invalid",
		).WithTemplateData(map[string]string{"Step": t.Name})
	}
	if t.Mode != ModeVetoQuorum && t.Mode != ModeSimpleQuorum {
		return serrors.NewError(
			"STEP_MODE_UNKNOWN",
			fmt.Sprintf("step %q has unknown decision mode %q", t.Name, t.Mode),
			"governance.step.mode_unknown",
		).WithTemplateData(map[string]string{"Step": t.Name, "Mode": t.Mode})
	}
	if t.MinApprovals != nil && *t.MinApprovals < 1 {
		return serrors.NewError(
			"STEP_MIN_APPROVALS_INVALID",
			fmt.Sprintf("step %q has min_approvals %d, must be >= 1", t.Name, *t.MinApprovals),
			"governance.step.min_approvals_invalid",
		).WithTemplateData(map[string]string{"Step": t.Name})
	}
	if t.Threshold != nil && (t.Threshold.LessThanOrEqual(zero) || t.Threshold.GreaterThan(one)) {
		return serrors.NewError(
			"STEP_THRESHOLD_INVALID",
			fmt.Sprintf("step %q has threshold %s, must be in (0, 1]", t.Name, t.Threshold),
			"governance.step.threshold_invalid",
		).WithTemplateData(map[string]string{"Step": t.Name})
	}
	for _, ref := range t.Approvers {
		if err := ref.validate(t.Name); err != nil {
			return err
		}
	}
	return nil
}

func (r ApproverRef) validate(stepName string) error {
	switch r.Kind {
	case ApproverKindUser:
		if r.UserID == uuid.Nil {
			return serrors.NewFieldRequiredError("user_id", "governance.approver.user_id_required")
		}
	case ApproverKindEmail:
		if r.Email == "" {
			return serrors.NewFieldRequiredError("email", "governance.approver.email_required")
		}
	case ApproverKindRole:
		if r.Role == "" {
			return serrors.NewFieldRequiredError("role", "governance.approver.role_required")
		}
	default:
		return serrors.NewError(
			"APPROVER_KIND_UNKNOWN",
			fmt.Sprintf("step %q has approver ref with unknown kind %q", stepName, r.Kind),
			"governance.approver.kind_unknown",
		).WithTemplateData(map[string]string{"Step": stepName, "Kind": r.Kind})
	}
	return nil
}
