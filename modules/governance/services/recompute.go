package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/events"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
	"github.com/quorumworks/govern-sdk/pkg/composables"
)

type RecomputeResult struct {
	StepStatus  string     `json:"step_status"`
	ChainStatus string     `json:"chain_status"`
	NextStepID  *uuid.UUID `json:"next_step_id,omitempty"`
}

// Recompute re-derives the step's status from its persisted decisions
// and folds the result into the overall chain outcome. It is a pure
// function of stored state: calling it redundantly (including after
// manual data corrections) always reproduces the same statuses.
func (s *ApprovalService) Recompute(ctx context.Context, artifactID, chainID, stepID uuid.UUID) (*RecomputeResult, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	outcome, err := inTx(ctx, func(txCtx context.Context) (*recomputeOutcome, error) {
		return s.recomputeTx(txCtx, artifactID, chainID, stepID)
	})
	if err != nil {
		return nil, err
	}

	requestID, _ := composables.UseRequestID(ctx)
	actorID, _ := composables.UseUserID(ctx)
	for _, event := range outcome.auditEvents(tenantID, requestID, actorID, artifactID, chainID) {
		s.emitter.Emit(ctx, event)
	}
	for _, event := range outcome.busEvents(tenantID, requestID, artifactID, chainID) {
		s.publish(event)
	}
	if outcome.ChainStatus == workflow.ChainStatusApproved || outcome.ChainStatus == workflow.ChainStatusRejected {
		chainResolutions.WithLabelValues(outcome.ChainStatus).Inc()
	}

	return &RecomputeResult{
		StepStatus:  outcome.StepStatus,
		ChainStatus: outcome.ChainStatus,
		NextStepID:  outcome.NextStepID,
	}, nil
}

type recomputeOutcome struct {
	StepID       uuid.UUID
	StepOrder    int32
	Round        int32
	BeforeStatus string
	StepStatus   string
	ChainStatus  string
	NextStepID   *uuid.UUID
}

// recomputeTx is the single recompute entry point shared by Decide and
// the exported Recompute. Step rows are mutated here and nowhere else.
func (s *ApprovalService) recomputeTx(txCtx context.Context, artifactID, chainID, stepID uuid.UUID) (*recomputeOutcome, error) {
	step, err := s.steps.GetStep(txCtx, stepID)
	if err != nil {
		return nil, err
	}

	status := step.Status
	if status != workflow.StepStatusSkipped {
		// Skipped is an administrative status with no ballots behind
		// it; re-evaluating would overwrite it. Everything else is
		// re-derived from the decisions.
		decisions, err := s.steps.ListDecisions(txCtx, stepID)
		if err != nil {
			return nil, err
		}
		status = workflow.Evaluate(step, decisions)
		if status != step.Status {
			if err := s.steps.UpdateStepStatus(txCtx, stepID, status); err != nil {
				return nil, err
			}
		}
	}

	steps, err := s.steps.ListSteps(txCtx, artifactID, chainID)
	if err != nil {
		return nil, err
	}

	outcome := &recomputeOutcome{
		StepID:       stepID,
		StepOrder:    step.StepOrder,
		Round:        step.Round,
		BeforeStatus: step.Status,
		StepStatus:   status,
		ChainStatus:  workflow.DeriveChainStatus(steps),
	}

	// A rejected step is chain-terminal: later steps are never
	// evaluated. Only approval or an administrative skip opens the
	// next gate.
	if status == workflow.StepStatusApproved || status == workflow.StepStatusSkipped {
		if next := workflow.Actionable(steps); next != nil && next.ID != stepID {
			nextID := next.ID
			outcome.NextStepID = &nextID
		}
	}
	return outcome, nil
}

func (o *recomputeOutcome) auditEvents(tenantID uuid.UUID, requestID string, actorID, artifactID, chainID uuid.UUID) []AuditEvent {
	if o.BeforeStatus == o.StepStatus {
		return nil
	}
	now := time.Now().UTC()
	out := []AuditEvent{{
		TenantID:     tenantID,
		RequestID:    requestID,
		ActorID:      actorID,
		Action:       ActionStepStatusChanged,
		ArtifactID:   artifactID,
		ChainID:      chainID,
		StepID:       o.StepID,
		BeforeStatus: o.BeforeStatus,
		AfterStatus:  o.StepStatus,
		Payload: map[string]any{
			"step_order": o.StepOrder,
			"round":      o.Round,
		},
		OccurredAt: now,
	}}
	if o.ChainStatus == workflow.ChainStatusApproved || o.ChainStatus == workflow.ChainStatusRejected {
		out = append(out, AuditEvent{
			TenantID:    tenantID,
			RequestID:   requestID,
			ActorID:     actorID,
			Action:      ActionChainResolved,
			ArtifactID:  artifactID,
			ChainID:     chainID,
			AfterStatus: o.ChainStatus,
			OccurredAt:  now,
		})
	}
	return out
}

func (o *recomputeOutcome) busEvents(tenantID uuid.UUID, requestID string, artifactID, chainID uuid.UUID) []any {
	if o.BeforeStatus == o.StepStatus {
		return nil
	}
	now := time.Now().UTC()
	out := []any{&events.StepStatusChangedV1{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		RequestID:    requestID,
		TenantID:     tenantID,
		ArtifactID:   artifactID,
		ChainID:      chainID,
		StepID:       o.StepID,
		StepOrder:    o.StepOrder,
		Round:        o.Round,
		BeforeStatus: o.BeforeStatus,
		AfterStatus:  o.StepStatus,
		ChangedAt:    now,
	}}
	if o.ChainStatus == workflow.ChainStatusApproved || o.ChainStatus == workflow.ChainStatusRejected {
		out = append(out, &events.ChainResolvedV1{
			EventID:      uuid.New(),
			EventVersion: events.EventVersionV1,
			RequestID:    requestID,
			TenantID:     tenantID,
			ArtifactID:   artifactID,
			ChainID:      chainID,
			ChainStatus:  o.ChainStatus,
			ResolvedAt:   now,
		})
	}
	return out
}
