package services

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/events"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
	"github.com/quorumworks/govern-sdk/pkg/composables"
)

type RecordDecisionParams struct {
	StepID     uuid.UUID
	ActorID    uuid.UUID
	OnBehalfOf *uuid.UUID
	Decision   string
	Reason     *string
}

type recordInput struct {
	ActorID    uuid.UUID
	OnBehalfOf *uuid.UUID
	Decision   string
	Reason     *string
}

// RecordDecision is the single write path for ballots. It enforces the
// preconditions (unique pending-actionable step, delegation authority,
// chain still active) and upserts the decision, but deliberately does
// not touch step status: recomputation is a separate call, so the same
// logic can be re-run after manual data fixes.
//
// Recording the same (step, approver, decision) twice is a successful
// no-op; a different outcome for the same pair replaces the prior
// ballot rather than accumulating duplicates.
func (s *ApprovalService) RecordDecision(ctx context.Context, params RecordDecisionParams) (*workflow.Decision, error) {
	if params.StepID == uuid.Nil || params.ActorID == uuid.Nil {
		return nil, newServiceError(http.StatusBadRequest, "APPROVAL_INVALID_BODY", "step_id and actor_user_id are required", nil)
	}
	if params.Decision != workflow.DecisionApproved && params.Decision != workflow.DecisionRejected {
		return nil, newServiceError(http.StatusBadRequest, "APPROVAL_INVALID_DECISION", "decision must be approved or rejected", nil)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	type txOut struct {
		decision   *workflow.Decision
		artifactID uuid.UUID
	}

	out, err := inTx(ctx, func(txCtx context.Context) (txOut, error) {
		step, err := s.steps.GetStep(txCtx, params.StepID)
		if err != nil {
			if err == workflow.ErrStepNotFound {
				return txOut{}, ErrNoPendingStep
			}
			return txOut{}, err
		}

		ch, err := s.activeChain(txCtx, step.ChainID)
		if err != nil {
			return txOut{}, err
		}

		steps, err := s.steps.ListSteps(txCtx, step.ArtifactID, step.ChainID)
		if err != nil {
			return txOut{}, err
		}
		actionable := workflow.Actionable(steps)
		if actionable == nil || actionable.ID != step.ID {
			return txOut{}, ErrNoPendingStep
		}

		decision, err := s.recordDecisionTx(txCtx, ch, actionable, recordInput{
			ActorID:    params.ActorID,
			OnBehalfOf: params.OnBehalfOf,
			Decision:   params.Decision,
			Reason:     params.Reason,
		})
		if err != nil {
			return txOut{}, err
		}
		return txOut{decision: decision, artifactID: step.ArtifactID}, nil
	})
	if err != nil {
		return nil, err
	}

	decision, artifactID := out.decision, out.artifactID
	requestID, _ := composables.UseRequestID(ctx)
	now := time.Now().UTC()

	s.emitter.Emit(ctx, AuditEvent{
		TenantID:   tenantID,
		RequestID:  requestID,
		ActorID:    params.ActorID,
		Action:     ActionDecisionRecorded,
		ArtifactID: artifactID,
		ChainID:    decision.ChainID,
		StepID:     decision.StepID,
		Payload: map[string]any{
			"decision":         decision.Decision,
			"approver_user_id": decision.ApproverID.String(),
			"actor_user_id":    decision.ActorID.String(),
		},
		OccurredAt: now,
	})
	s.publish(&events.DecisionRecordedV1{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		RequestID:    requestID,
		TenantID:     tenantID,
		ArtifactID:   artifactID,
		ChainID:      decision.ChainID,
		StepID:       decision.StepID,
		ApproverID:   decision.ApproverID,
		ActorID:      decision.ActorID,
		Decision:     decision.Decision,
		RecordedAt:   now,
	})

	decisionsRecorded.WithLabelValues(decision.Decision).Inc()
	return decision, nil
}

// recordDecisionTx applies the delegation and membership checks and
// upserts the ballot. Callers have already verified the step is the
// unique pending-actionable step and the chain is active.
func (s *ApprovalService) recordDecisionTx(txCtx context.Context, ch *chain.ApprovalChain, step *workflow.ArtifactStep, in recordInput) (*workflow.Decision, error) {
	approverID := in.ActorID
	if in.OnBehalfOf != nil && *in.OnBehalfOf != uuid.Nil {
		approverID = *in.OnBehalfOf
	}

	if approverID != in.ActorID {
		allowed, err := s.identity.CanActFor(txCtx, in.ActorID, approverID, ch.ProjectID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrForbidden
		}
	}
	if !step.HasApprover(approverID) {
		return nil, ErrForbidden
	}

	decision, err := s.steps.UpsertDecision(txCtx, &workflow.Decision{
		TenantID:   ch.TenantID,
		StepID:     step.ID,
		ChainID:    ch.ID,
		ApproverID: approverID,
		ActorID:    in.ActorID,
		Decision:   in.Decision,
		Reason:     in.Reason,
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return decision, nil
}
