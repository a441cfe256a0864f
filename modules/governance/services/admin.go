package services

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
	"github.com/quorumworks/govern-sdk/pkg/composables"
)

// SkipStep marks the artifact's currently actionable step as skipped,
// a terminal-favorable status that opens the next gate without any
// ballots. It is an administrative action; authorization is the
// caller's concern.
func (s *ApprovalService) SkipStep(ctx context.Context, stepID, actorID uuid.UUID) (*RecomputeResult, error) {
	if stepID == uuid.Nil || actorID == uuid.Nil {
		return nil, newServiceError(http.StatusBadRequest, "APPROVAL_INVALID_BODY", "step_id and actor_user_id are required", nil)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	type txOut struct {
		step   *workflow.ArtifactStep
		result *RecomputeResult
	}

	out, err := inTx(ctx, func(txCtx context.Context) (txOut, error) {
		step, err := s.steps.GetStep(txCtx, stepID)
		if err != nil {
			if err == workflow.ErrStepNotFound {
				return txOut{}, ErrNoPendingStep
			}
			return txOut{}, err
		}

		if _, err := s.activeChain(txCtx, step.ChainID); err != nil {
			return txOut{}, err
		}

		steps, err := s.steps.ListSteps(txCtx, step.ArtifactID, step.ChainID)
		if err != nil {
			return txOut{}, err
		}
		actionable := workflow.Actionable(steps)
		if actionable == nil || actionable.ID != stepID {
			return txOut{}, ErrNoPendingStep
		}

		if err := s.steps.UpdateStepStatus(txCtx, stepID, workflow.StepStatusSkipped); err != nil {
			return txOut{}, err
		}

		steps, err = s.steps.ListSteps(txCtx, step.ArtifactID, step.ChainID)
		if err != nil {
			return txOut{}, err
		}
		result := &RecomputeResult{
			StepStatus:  workflow.StepStatusSkipped,
			ChainStatus: workflow.DeriveChainStatus(steps),
		}
		if next := workflow.Actionable(steps); next != nil {
			nextID := next.ID
			result.NextStepID = &nextID
		}
		return txOut{step: step, result: result}, nil
	})
	if err != nil {
		return nil, err
	}

	requestID, _ := composables.UseRequestID(ctx)
	s.emitter.Emit(ctx, AuditEvent{
		TenantID:     tenantID,
		RequestID:    requestID,
		ActorID:      actorID,
		Action:       ActionStepSkipped,
		ArtifactID:   out.step.ArtifactID,
		ChainID:      out.step.ChainID,
		StepID:       stepID,
		BeforeStatus: workflow.StepStatusPending,
		AfterStatus:  workflow.StepStatusSkipped,
		OccurredAt:   time.Now().UTC(),
	})
	return out.result, nil
}

// ReopenStep starts a fresh round of a resolved step: a new pending
// copy with round incremented supersedes the old row, and the chain
// leaves its terminal state if it had one. The prior round's ballots
// stay attached to the superseded row for the record.
func (s *ApprovalService) ReopenStep(ctx context.Context, stepID, actorID uuid.UUID) (*workflow.ArtifactStep, error) {
	if stepID == uuid.Nil || actorID == uuid.Nil {
		return nil, newServiceError(http.StatusBadRequest, "APPROVAL_INVALID_BODY", "step_id and actor_user_id are required", nil)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	reopened, err := inTx(ctx, func(txCtx context.Context) (*workflow.ArtifactStep, error) {
		step, err := s.steps.GetStep(txCtx, stepID)
		if err != nil {
			return nil, err
		}
		if step.Status == workflow.StepStatusPending {
			return nil, newServiceError(http.StatusConflict, "APPROVAL_STEP_NOT_RESOLVED", "only a resolved step can be reopened", nil)
		}

		if _, err := s.activeChain(txCtx, step.ChainID); err != nil {
			return nil, err
		}

		reopened, err := s.steps.ReopenStep(txCtx, step)
		if err != nil {
			return nil, mapPgError(err)
		}
		return reopened, nil
	})
	if err != nil {
		return nil, err
	}

	requestID, _ := composables.UseRequestID(ctx)
	s.emitter.Emit(ctx, AuditEvent{
		TenantID:    tenantID,
		RequestID:   requestID,
		ActorID:     actorID,
		Action:      ActionStepReopened,
		ArtifactID:  reopened.ArtifactID,
		ChainID:     reopened.ChainID,
		StepID:      reopened.ID,
		AfterStatus: workflow.StepStatusPending,
		Payload: map[string]any{
			"previous_step_id": stepID.String(),
			"round":            reopened.Round,
		},
		OccurredAt: time.Now().UTC(),
	})
	return reopened, nil
}
