package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
)

// ResolveActiveChain returns the unique active chain configured for
// the (project, artifact type) pair, or chain.ErrNoActiveChain when
// the artifact does not require approval.
func (s *ApprovalService) ResolveActiveChain(ctx context.Context, projectID uuid.UUID, artifactType string) (*chain.ApprovalChain, error) {
	return inTx(ctx, func(txCtx context.Context) (*chain.ApprovalChain, error) {
		return s.chains.GetActive(txCtx, projectID, artifactType)
	})
}

type PreviewParams struct {
	ProjectID    uuid.UUID
	ArtifactType string
	// ArtifactID, when set, lets the preview reflect live runtime state
	// for an artifact already under review.
	ArtifactID *uuid.UUID
}

type PreviewStep struct {
	StepID         *uuid.UUID       `json:"step_id,omitempty"`
	TemplateStepID uuid.UUID        `json:"template_step_id"`
	StepOrder      int32            `json:"step_order"`
	Name           string           `json:"name"`
	Mode           string           `json:"mode"`
	MinApprovals   *int32           `json:"min_approvals,omitempty"`
	RequiresAll    bool             `json:"requires_all"`
	Threshold      *decimal.Decimal `json:"threshold,omitempty"`
	Round          int32            `json:"round"`
	Status         string           `json:"status"`
	Actionable     bool             `json:"actionable"`
	Approvers      []uuid.UUID      `json:"approvers"`
}

type ChainPreview struct {
	Required    bool          `json:"required"`
	ChainID     uuid.UUID     `json:"chain_id,omitempty"`
	ChainStatus string        `json:"chain_status"`
	Steps       []PreviewStep `json:"steps,omitempty"`
}

// PreviewChain shows which approvals apply (or how far along they
// are) without side effects: it never materializes runtime steps, so
// it is safe to call before an artifact is submitted.
func (s *ApprovalService) PreviewChain(ctx context.Context, params PreviewParams) (*ChainPreview, error) {
	return inTx(ctx, func(txCtx context.Context) (*ChainPreview, error) {
		ch, err := s.chains.GetActive(txCtx, params.ProjectID, params.ArtifactType)
		if err == chain.ErrNoActiveChain {
			return &ChainPreview{Required: false, ChainStatus: workflow.ChainStatusNotRequired}, nil
		}
		if err != nil {
			return nil, err
		}

		if params.ArtifactID != nil {
			steps, err := s.steps.ListSteps(txCtx, *params.ArtifactID, ch.ID)
			if err != nil {
				return nil, err
			}
			if len(steps) > 0 {
				return previewFromRuntime(ch, steps), nil
			}
		}
		return s.previewFromTemplates(txCtx, ch)
	})
}

func previewFromRuntime(ch *chain.ApprovalChain, steps []*workflow.ArtifactStep) *ChainPreview {
	actionable := workflow.Actionable(steps)
	out := &ChainPreview{
		Required:    true,
		ChainID:     ch.ID,
		ChainStatus: workflow.DeriveChainStatus(steps),
		Steps:       make([]PreviewStep, 0, len(steps)),
	}
	for _, step := range steps {
		stepID := step.ID
		out.Steps = append(out.Steps, PreviewStep{
			StepID:         &stepID,
			TemplateStepID: step.TemplateStepID,
			StepOrder:      step.StepOrder,
			Name:           step.Name,
			Mode:           step.Mode,
			MinApprovals:   step.MinApprovals,
			RequiresAll:    step.RequiresAll,
			Threshold:      step.Threshold,
			Round:          step.Round,
			Status:         step.Status,
			Actionable:     actionable != nil && actionable.ID == step.ID,
			Approvers:      step.Approvers,
		})
	}
	return out
}

func (s *ApprovalService) previewFromTemplates(txCtx context.Context, ch *chain.ApprovalChain) (*ChainPreview, error) {
	templates := ch.ActiveSteps()
	out := &ChainPreview{
		Required:    true,
		ChainID:     ch.ID,
		ChainStatus: workflow.ChainStatusPending,
		Steps:       make([]PreviewStep, 0, len(templates)),
	}
	for i, tpl := range templates {
		approvers, err := s.identity.ResolveApprovers(txCtx, ch.ProjectID, tpl.Approvers)
		if err != nil {
			return nil, err
		}
		out.Steps = append(out.Steps, PreviewStep{
			TemplateStepID: tpl.ID,
			StepOrder:      tpl.StepOrder,
			Name:           tpl.Name,
			Mode:           tpl.Mode,
			MinApprovals:   tpl.MinApprovals,
			RequiresAll:    tpl.RequiresAll,
			Threshold:      tpl.Threshold,
			Round:          1,
			Status:         workflow.StepStatusPending,
			Actionable:     i == 0,
			Approvers:      approvers,
		})
	}
	return out, nil
}
