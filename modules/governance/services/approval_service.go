package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/events"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
	"github.com/quorumworks/govern-sdk/pkg/composables"
	"github.com/quorumworks/govern-sdk/pkg/eventbus"
)

// IdentityResolver is the external identity/delegation collaborator.
// The engine treats its answers as opaque authority.
type IdentityResolver interface {
	// CanActFor reports whether actorID may record a decision on
	// behalf of approverID within the project.
	CanActFor(ctx context.Context, actorID, approverID, projectID uuid.UUID) (bool, error)
	// ResolveApprovers expands email/role refs to concrete user ids.
	// User refs pass through unchanged.
	ResolveApprovers(ctx context.Context, projectID uuid.UUID, refs []chain.ApproverRef) ([]uuid.UUID, error)
}

// ApprovalService is the approval workflow engine: chain catalog,
// step materializer, decision recorder, state recomputer, and the
// audit emitter behind one façade. All state it owns is derived from
// persisted decisions, so every operation is safe to re-run.
type ApprovalService struct {
	chains   chain.Repository
	steps    workflow.Repository
	identity IdentityResolver
	emitter  *AuditEmitter
	bus      eventbus.EventBus
}

func NewApprovalService(
	chains chain.Repository,
	steps workflow.Repository,
	identity IdentityResolver,
	emitter *AuditEmitter,
	bus eventbus.EventBus,
) *ApprovalService {
	return &ApprovalService{
		chains:   chains,
		steps:    steps,
		identity: identity,
		emitter:  emitter,
		bus:      bus,
	}
}

type DecideParams struct {
	ProjectID    uuid.UUID
	ArtifactType string
	ArtifactID   uuid.UUID
	ActorID      uuid.UUID
	OnBehalfOf   *uuid.UUID
	Decision     string
	Reason       *string
}

type DecideResult struct {
	// Required is false when no active chain is configured: approval
	// is not required, a first-class outcome rather than a failure.
	Required    bool       `json:"required"`
	StepID      uuid.UUID  `json:"step_id,omitempty"`
	StepStatus  string     `json:"step_status,omitempty"`
	ChainStatus string     `json:"chain_status"`
	NextStepID  *uuid.UUID `json:"next_step_id,omitempty"`
}

// Decide is the decision-entry orchestration: ensure runtime steps
// exist, record the ballot, recompute step and chain state, and emit
// audit/timeline events after the governing transaction commits.
func (s *ApprovalService) Decide(ctx context.Context, params DecideParams) (*DecideResult, error) {
	if err := validateDecideParams(params); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	type txOut struct {
		result *DecideResult
		events []AuditEvent
		bus    []any
	}

	out, err := inTx(ctx, func(txCtx context.Context) (txOut, error) {
		ch, steps, materialized, err := s.engage(txCtx, params)
		if err != nil {
			return txOut{}, err
		}
		if ch == nil {
			return txOut{result: &DecideResult{Required: false, ChainStatus: workflow.ChainStatusNotRequired}}, nil
		}

		audit := make([]AuditEvent, 0, 4)
		busEvents := make([]any, 0, 3)
		requestID, _ := composables.UseRequestID(txCtx)
		now := time.Now().UTC()

		if materialized {
			audit = append(audit, AuditEvent{
				TenantID:    tenantID,
				RequestID:   requestID,
				ActorID:     params.ActorID,
				Action:      ActionStepsMaterialized,
				ArtifactID:  params.ArtifactID,
				ChainID:     ch.ID,
				AfterStatus: workflow.ChainStatusPending,
				Payload:     map[string]any{"step_count": len(steps)},
				OccurredAt:  now,
			})
		}

		step := workflow.Actionable(steps)
		if step == nil {
			return txOut{}, ErrNoPendingStep
		}

		decision, err := s.recordDecisionTx(txCtx, ch, step, recordInput{
			ActorID:    params.ActorID,
			OnBehalfOf: params.OnBehalfOf,
			Decision:   params.Decision,
			Reason:     params.Reason,
		})
		if err != nil {
			return txOut{}, err
		}

		audit = append(audit, AuditEvent{
			TenantID:   tenantID,
			RequestID:  requestID,
			ActorID:    params.ActorID,
			Action:     ActionDecisionRecorded,
			ArtifactID: params.ArtifactID,
			ChainID:    ch.ID,
			StepID:     step.ID,
			Payload: map[string]any{
				"decision":         decision.Decision,
				"approver_user_id": decision.ApproverID.String(),
				"actor_user_id":    decision.ActorID.String(),
			},
			OccurredAt: now,
		})
		busEvents = append(busEvents, &events.DecisionRecordedV1{
			EventID:      uuid.New(),
			EventVersion: events.EventVersionV1,
			RequestID:    requestID,
			TenantID:     tenantID,
			ArtifactID:   params.ArtifactID,
			ChainID:      ch.ID,
			StepID:       step.ID,
			ApproverID:   decision.ApproverID,
			ActorID:      decision.ActorID,
			Decision:     decision.Decision,
			RecordedAt:   now,
		})

		recomputed, err := s.recomputeTx(txCtx, params.ArtifactID, ch.ID, step.ID)
		if err != nil {
			return txOut{}, err
		}
		audit = append(audit, recomputed.auditEvents(tenantID, requestID, params.ActorID, params.ArtifactID, ch.ID)...)
		busEvents = append(busEvents, recomputed.busEvents(tenantID, requestID, params.ArtifactID, ch.ID)...)

		decisionsRecorded.WithLabelValues(decision.Decision).Inc()
		if recomputed.ChainStatus == workflow.ChainStatusApproved || recomputed.ChainStatus == workflow.ChainStatusRejected {
			chainResolutions.WithLabelValues(recomputed.ChainStatus).Inc()
		}

		return txOut{
			result: &DecideResult{
				Required:    true,
				StepID:      step.ID,
				StepStatus:  recomputed.StepStatus,
				ChainStatus: recomputed.ChainStatus,
				NextStepID:  recomputed.NextStepID,
			},
			events: audit,
			bus:    busEvents,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	for _, event := range out.events {
		s.emitter.Emit(ctx, event)
	}
	for _, event := range out.bus {
		s.publish(event)
	}
	return out.result, nil
}

// engage loads (or materializes) the artifact's runtime steps and the
// chain governing them. A nil chain means approval is not required.
func (s *ApprovalService) engage(txCtx context.Context, params DecideParams) (*chain.ApprovalChain, []*workflow.ArtifactStep, bool, error) {
	existing, err := s.steps.ListStepsForArtifact(txCtx, params.ArtifactID)
	if err != nil {
		return nil, nil, false, err
	}
	if len(existing) > 0 {
		ch, err := s.activeChain(txCtx, existing[0].ChainID)
		if err != nil {
			return nil, nil, false, err
		}
		return ch, existing, false, nil
	}

	ch, err := s.chains.GetActive(txCtx, params.ProjectID, params.ArtifactType)
	if err == chain.ErrNoActiveChain {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}

	steps, err := s.ensureSteps(txCtx, params.ArtifactID, ch)
	if err != nil {
		return nil, nil, false, err
	}
	return ch, steps, true, nil
}

// Flush blocks until in-flight audit/timeline writes have drained.
// Long-lived servers never need it; short-lived processes call it
// before exiting.
func (s *ApprovalService) Flush() {
	s.emitter.Wait()
}

// activeChain loads the chain governing in-flight steps and verifies
// it still accepts decisions. A missing or deactivated chain means the
// engine is unavailable for the artifact; any other failure is a real
// error and propagates as such.
func (s *ApprovalService) activeChain(txCtx context.Context, chainID uuid.UUID) (*chain.ApprovalChain, error) {
	ch, err := s.chains.GetByID(txCtx, chainID)
	if err != nil {
		if errors.Is(err, chain.ErrNoActiveChain) {
			return nil, ErrEngineUnavailable
		}
		return nil, mapPgError(err)
	}
	if !ch.IsActive {
		return nil, ErrEngineUnavailable
	}
	return ch, nil
}

func (s *ApprovalService) publish(event any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event)
}

func validateDecideParams(params DecideParams) error {
	if params.ArtifactID == uuid.Nil || params.ActorID == uuid.Nil {
		return newServiceError(http.StatusBadRequest, "APPROVAL_INVALID_BODY", "artifact_id and actor_user_id are required", nil)
	}
	if params.Decision != workflow.DecisionApproved && params.Decision != workflow.DecisionRejected {
		return newServiceError(http.StatusBadRequest, "APPROVAL_INVALID_DECISION", "decision must be approved or rejected", nil)
	}
	return nil
}

// inTx runs fn inside a database transaction when a pool is present.
// In-memory repositories carry no pool; they run fn directly and rely
// on their own synchronization.
func inTx[T any](ctx context.Context, fn func(txCtx context.Context) (T, error)) (T, error) {
	if _, err := composables.UsePool(ctx); err != nil {
		return fn(ctx)
	}
	return composables.InTxResult(ctx, fn)
}
