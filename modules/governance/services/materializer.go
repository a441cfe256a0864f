package services

import (
	"context"
	"net/http"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"

	"github.com/google/uuid"
)

// ensureSteps materializes runtime steps for the artifact from the
// chain's active templates. Callers must have checked that no runtime
// steps exist yet: materialization happens exactly once so that later
// template edits never change quorum rules for artifacts already under
// review. Email/role approver refs are resolved to user ids here and
// snapshotted.
func (s *ApprovalService) ensureSteps(txCtx context.Context, artifactID uuid.UUID, ch *chain.ApprovalChain) ([]*workflow.ArtifactStep, error) {
	if err := ch.Validate(); err != nil {
		return nil, newServiceError(http.StatusConflict, "APPROVAL_CHAIN_MISCONFIGURED", err.Error(), err)
	}
	templates := ch.ActiveSteps()
	if len(templates) == 0 {
		return nil, newServiceError(http.StatusConflict, "APPROVAL_EMPTY_CHAIN", "active chain has no active steps", nil)
	}

	steps := make([]*workflow.ArtifactStep, 0, len(templates))
	for _, tpl := range templates {
		approvers, err := s.identity.ResolveApprovers(txCtx, ch.ProjectID, tpl.Approvers)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &workflow.ArtifactStep{
			TenantID:       ch.TenantID,
			ArtifactID:     artifactID,
			ChainID:        ch.ID,
			TemplateStepID: tpl.ID,
			StepOrder:      tpl.StepOrder,
			Name:           tpl.Name,
			Mode:           tpl.Mode,
			MinApprovals:   tpl.MinApprovals,
			RequiresAll:    tpl.RequiresAll,
			Threshold:      tpl.Threshold,
			Round:          1,
			Status:         workflow.StepStatusPending,
			Approvers:      approvers,
			ApproverRefs:   tpl.Approvers,
		})
	}

	if err := s.steps.InsertSteps(txCtx, steps); err != nil {
		return nil, mapPgError(err)
	}
	return steps, nil
}
