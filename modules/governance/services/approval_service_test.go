package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/events"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
	"github.com/quorumworks/govern-sdk/modules/governance/infrastructure/persistence"
	"github.com/quorumworks/govern-sdk/modules/governance/services"
	"github.com/quorumworks/govern-sdk/pkg/composables"
	"github.com/quorumworks/govern-sdk/pkg/eventbus"
	"github.com/quorumworks/govern-sdk/pkg/logging"
)

type delegationGrant struct {
	actor    uuid.UUID
	approver uuid.UUID
}

// stubIdentity is the external identity/delegation collaborator.
type stubIdentity struct {
	grants map[delegationGrant]bool
	roles  map[string][]uuid.UUID
}

func newStubIdentity() *stubIdentity {
	return &stubIdentity{
		grants: make(map[delegationGrant]bool),
		roles:  make(map[string][]uuid.UUID),
	}
}

func (s *stubIdentity) Grant(actor, approver uuid.UUID) {
	s.grants[delegationGrant{actor: actor, approver: approver}] = true
}

func (s *stubIdentity) CanActFor(_ context.Context, actorID, approverID, _ uuid.UUID) (bool, error) {
	return s.grants[delegationGrant{actor: actorID, approver: approverID}], nil
}

func (s *stubIdentity) ResolveApprovers(_ context.Context, _ uuid.UUID, refs []chain.ApproverRef) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, ref := range refs {
		switch ref.Kind {
		case chain.ApproverKindUser:
			out = append(out, ref.UserID)
		case chain.ApproverKindRole:
			out = append(out, s.roles[ref.Role]...)
		}
	}
	return out, nil
}

// recordingSink captures emitted audit events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []services.AuditEvent
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, event services.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []services.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]services.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

type testEnv struct {
	ctx      context.Context
	tenantID uuid.UUID
	chains   *persistence.InmemChainRepository
	steps    *persistence.InmemWorkflowRepository
	identity *stubIdentity
	sink     *recordingSink
	emitter  *services.AuditEmitter
	bus      eventbus.EventBus
	svc      *services.ApprovalService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tenantID := uuid.New()
	env := &testEnv{
		tenantID: tenantID,
		ctx:      composables.WithTenantID(context.Background(), tenantID),
		chains:   persistence.NewInmemChainRepository(),
		steps:    persistence.NewInmemWorkflowRepository(),
		identity: newStubIdentity(),
		sink:     &recordingSink{},
	}
	env.emitter = services.NewAuditEmitter(logging.ConsoleLogger(logrus.ErrorLevel), env.sink)
	env.bus = eventbus.NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	env.svc = services.NewApprovalService(env.chains, env.steps, env.identity, env.emitter, env.bus)
	return env
}

func userRef(id uuid.UUID) chain.ApproverRef {
	return chain.ApproverRef{Kind: chain.ApproverKindUser, UserID: id}
}

func userRefs(ids ...uuid.UUID) []chain.ApproverRef {
	out := make([]chain.ApproverRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, userRef(id))
	}
	return out
}

type stepSpec struct {
	name         string
	mode         string
	minApprovals *int32
	requiresAll  bool
	approvers    []chain.ApproverRef
}

func (env *testEnv) seedChain(projectID uuid.UUID, artifactType string, specs ...stepSpec) *chain.ApprovalChain {
	ch := &chain.ApprovalChain{
		TenantID:     env.tenantID,
		ID:           uuid.New(),
		ProjectID:    projectID,
		ArtifactType: artifactType,
		IsActive:     true,
	}
	for i, spec := range specs {
		mode := spec.mode
		if mode == "" {
			mode = chain.ModeVetoQuorum
		}
		ch.Steps = append(ch.Steps, chain.StepTemplate{
			TenantID:     env.tenantID,
			ID:           uuid.New(),
			ChainID:      ch.ID,
			StepOrder:    int32(i + 1),
			Name:         spec.name,
			Mode:         mode,
			MinApprovals: spec.minApprovals,
			RequiresAll:  spec.requiresAll,
			IsActive:     true,
			Approvers:    spec.approvers,
		})
	}
	env.chains.Save(ch)
	return ch
}

func i32(v int32) *int32 { return &v }

func decide(env *testEnv, ch *chain.ApprovalChain, artifactID, actorID uuid.UUID, decision string) (*services.DecideResult, error) {
	return env.svc.Decide(env.ctx, services.DecideParams{
		ProjectID:    ch.ProjectID,
		ArtifactType: ch.ArtifactType,
		ArtifactID:   artifactID,
		ActorID:      actorID,
		Decision:     decision,
	})
}

func TestDecide_NoActiveChainIsNotRequired(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	result, err := env.svc.Decide(env.ctx, services.DecideParams{
		ProjectID:    uuid.New(),
		ArtifactType: "change_request",
		ArtifactID:   uuid.New(),
		ActorID:      uuid.New(),
		Decision:     workflow.DecisionApproved,
	})
	require.NoError(t, err, "no active chain is a normal outcome, not an error")
	require.False(t, result.Required)
	require.Equal(t, workflow.ChainStatusNotRequired, result.ChainStatus)
}

func TestDecide_VetoOverridesMinApprovals(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Review Board",
		minApprovals: i32(2),
		approvers:    userRefs(a, b),
	})
	artifactID := uuid.New()

	result, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusPending, result.StepStatus)
	require.Equal(t, workflow.ChainStatusPending, result.ChainStatus)

	result, err = decide(env, ch, artifactID, b, workflow.DecisionRejected)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusRejected, result.StepStatus)
	require.Equal(t, workflow.ChainStatusRejected, result.ChainStatus)
	require.Nil(t, result.NextStepID)
}

func TestDecide_SequentialGating(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request",
		stepSpec{name: "Lead", minApprovals: i32(1), approvers: userRefs(a)},
		stepSpec{name: "Board", requiresAll: true, approvers: userRefs(b, c)},
	)
	artifactID := uuid.New()

	result, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusApproved, result.StepStatus)
	require.Equal(t, workflow.ChainStatusPending, result.ChainStatus)
	require.NotNil(t, result.NextStepID, "approving step 1 opens step 2")

	// Step 2 was untouched by step 1's approval.
	steps, err := env.steps.ListSteps(env.ctx, artifactID, ch.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.Equal(t, workflow.StepStatusPending, steps[1].Status)

	result, err = decide(env, ch, artifactID, b, workflow.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusPending, result.StepStatus, "requires_all with one of two ballots stays pending")

	result, err = decide(env, ch, artifactID, c, workflow.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusApproved, result.StepStatus)
	require.Equal(t, workflow.ChainStatusApproved, result.ChainStatus)
	require.Nil(t, result.NextStepID)
}

func TestDecide_RejectionIsChainTerminal(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request",
		stepSpec{name: "Lead", minApprovals: i32(1), approvers: userRefs(a)},
		stepSpec{name: "Board", minApprovals: i32(1), approvers: userRefs(b)},
	)
	artifactID := uuid.New()

	result, err := decide(env, ch, artifactID, a, workflow.DecisionRejected)
	require.NoError(t, err)
	require.Equal(t, workflow.ChainStatusRejected, result.ChainStatus)

	// Step 2 is never evaluated: any further decision hits NoPendingStep.
	_, err = decide(env, ch, artifactID, b, workflow.DecisionApproved)
	require.ErrorIs(t, err, services.ErrNoPendingStep)
}

func TestDecide_IdempotentResubmission(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Board",
		minApprovals: i32(2),
		approvers:    userRefs(a, b),
	})
	artifactID := uuid.New()

	first, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)
	second, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err, "identical resubmission is a successful no-op")
	require.Equal(t, first.StepStatus, second.StepStatus)
	require.Equal(t, first.ChainStatus, second.ChainStatus)
	require.Equal(t, 1, env.steps.DecisionCount(), "no duplicate ballots")
}

func TestDecide_LastWriteWinsOnChangedOutcome(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Board",
		mode:         chain.ModeSimpleQuorum,
		minApprovals: i32(2),
		approvers:    userRefs(a, b),
	})
	artifactID := uuid.New()

	_, err := decide(env, ch, artifactID, a, workflow.DecisionRejected)
	require.NoError(t, err)

	// A changes their mind; the prior ballot is replaced, not stacked.
	_, err = decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, 1, env.steps.DecisionCount())

	result, err := decide(env, ch, artifactID, b, workflow.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusApproved, result.StepStatus)
}

func TestDecide_DelegationWithoutGrantIsForbidden(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	approver := uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Board",
		minApprovals: i32(1),
		approvers:    userRefs(approver),
	})
	artifactID := uuid.New()
	intruder := uuid.New()

	_, err := env.svc.Decide(env.ctx, services.DecideParams{
		ProjectID:    ch.ProjectID,
		ArtifactType: ch.ArtifactType,
		ArtifactID:   artifactID,
		ActorID:      intruder,
		OnBehalfOf:   &approver,
		Decision:     workflow.DecisionApproved,
	})
	require.ErrorIs(t, err, services.ErrForbidden)
	require.Zero(t, env.steps.DecisionCount(), "forbidden decisions must leave no ballot")
}

func TestDecide_DelegationWithGrantRecordsAccountableApprover(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	approver, deputy := uuid.New(), uuid.New()
	env.identity.Grant(deputy, approver)
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Board",
		minApprovals: i32(1),
		approvers:    userRefs(approver),
	})
	artifactID := uuid.New()

	result, err := env.svc.Decide(env.ctx, services.DecideParams{
		ProjectID:    ch.ProjectID,
		ArtifactType: ch.ArtifactType,
		ArtifactID:   artifactID,
		ActorID:      deputy,
		OnBehalfOf:   &approver,
		Decision:     workflow.DecisionApproved,
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusApproved, result.StepStatus)

	decisions, err := env.steps.ListDecisions(env.ctx, result.StepID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	require.Equal(t, approver, decisions[0].ApproverID, "accountable identity is the approver")
	require.Equal(t, deputy, decisions[0].ActorID, "actor is who physically submitted")
}

func TestDecide_ActorOutsideApproverSetIsForbidden(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	approver := uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Board",
		minApprovals: i32(1),
		approvers:    userRefs(approver),
	})

	_, err := decide(env, ch, uuid.New(), uuid.New(), workflow.DecisionApproved)
	require.ErrorIs(t, err, services.ErrForbidden)
}

// failingChainRepo injects a lookup failure, standing in for a
// database outage.
type failingChainRepo struct {
	*persistence.InmemChainRepository
	getByIDErr error
}

func (r *failingChainRepo) GetByID(ctx context.Context, id uuid.UUID) (*chain.ApprovalChain, error) {
	if r.getByIDErr != nil {
		return nil, r.getByIDErr
	}
	return r.InmemChainRepository.GetByID(ctx, id)
}

func TestDecide_ChainLookupFailurePropagates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	repo := &failingChainRepo{InmemChainRepository: env.chains}
	env.svc = services.NewApprovalService(repo, env.steps, env.identity, env.emitter, env.bus)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Board",
		minApprovals: i32(2),
		approvers:    userRefs(a, b),
	})
	artifactID := uuid.New()

	_, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)

	// An infrastructure failure is not "chain deactivated, refresh":
	// the caller must see the real error.
	repo.getByIDErr = errors.New("connection refused")
	_, err = decide(env, ch, artifactID, b, workflow.DecisionApproved)
	require.Error(t, err)
	require.NotErrorIs(t, err, services.ErrEngineUnavailable)
	require.ErrorContains(t, err, "connection refused")
}

func TestDecide_ChainDeactivatedMidFlight(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Board",
		minApprovals: i32(2),
		approvers:    userRefs(a, b),
	})
	artifactID := uuid.New()

	_, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)

	ch.IsActive = false
	env.chains.Save(ch)

	_, err = decide(env, ch, artifactID, b, workflow.DecisionApproved)
	require.ErrorIs(t, err, services.ErrEngineUnavailable)
}

func TestDecide_MaterializationSnapshotsTemplates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Board",
		minApprovals: i32(2),
		approvers:    userRefs(a, b),
	})
	artifactID := uuid.New()

	_, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)

	// Loosening the template after engagement must not change the
	// rules for the in-flight artifact.
	ch.Steps[0].MinApprovals = i32(1)
	env.chains.Save(ch)

	steps, err := env.steps.ListSteps(env.ctx, artifactID, ch.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, int32(2), *steps[0].MinApprovals)
	require.Equal(t, workflow.StepStatusPending, steps[0].Status)
}

func TestRecordDecision_DoesNotMutateStatus(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a := uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Lead",
		minApprovals: i32(1),
		approvers:    userRefs(a),
	})
	artifactID := uuid.New()

	result, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)

	// Reopen so there is a pending step again, then use the low-level
	// recorder: the ballot lands but status stays pending until an
	// explicit recompute.
	reopened, err := env.svc.ReopenStep(env.ctx, result.StepID, a)
	require.NoError(t, err)

	_, err = env.svc.RecordDecision(env.ctx, services.RecordDecisionParams{
		StepID:   reopened.ID,
		ActorID:  a,
		Decision: workflow.DecisionApproved,
	})
	require.NoError(t, err)

	step, err := env.steps.GetStep(env.ctx, reopened.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusPending, step.Status, "recorder never mutates status")

	recomputed, err := env.svc.Recompute(env.ctx, artifactID, ch.ID, reopened.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusApproved, recomputed.StepStatus)
	require.Equal(t, workflow.ChainStatusApproved, recomputed.ChainStatus)
}

func TestRecompute_IsIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a := uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Lead",
		minApprovals: i32(1),
		approvers:    userRefs(a),
	})
	artifactID := uuid.New()

	result, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		recomputed, err := env.svc.Recompute(env.ctx, artifactID, ch.ID, result.StepID)
		require.NoError(t, err)
		require.Equal(t, workflow.StepStatusApproved, recomputed.StepStatus)
		require.Equal(t, workflow.ChainStatusApproved, recomputed.ChainStatus)
	}
}

func TestPreviewChain_DoesNotMaterialize(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request",
		stepSpec{name: "Lead", minApprovals: i32(1), approvers: userRefs(a)},
		stepSpec{name: "Board", requiresAll: true, approvers: userRefs(a, b)},
	)
	artifactID := uuid.New()

	preview, err := env.svc.PreviewChain(env.ctx, services.PreviewParams{
		ProjectID:    ch.ProjectID,
		ArtifactType: ch.ArtifactType,
		ArtifactID:   &artifactID,
	})
	require.NoError(t, err)
	require.True(t, preview.Required)
	require.Len(t, preview.Steps, 2)
	require.True(t, preview.Steps[0].Actionable)
	require.False(t, preview.Steps[1].Actionable)

	steps, err := env.steps.ListSteps(env.ctx, artifactID, ch.ID)
	require.NoError(t, err)
	require.Empty(t, steps, "preview must not create runtime steps")
}

func TestPreviewChain_NotRequiredWithoutChain(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	preview, err := env.svc.PreviewChain(env.ctx, services.PreviewParams{
		ProjectID:    uuid.New(),
		ArtifactType: "change_request",
	})
	require.NoError(t, err)
	require.False(t, preview.Required)
	require.Empty(t, preview.Steps)
}

func TestPreviewChain_ReflectsRuntimeState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request",
		stepSpec{name: "Lead", minApprovals: i32(1), approvers: userRefs(a)},
		stepSpec{name: "Board", minApprovals: i32(1), approvers: userRefs(b)},
	)
	artifactID := uuid.New()

	_, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)

	preview, err := env.svc.PreviewChain(env.ctx, services.PreviewParams{
		ProjectID:    ch.ProjectID,
		ArtifactType: ch.ArtifactType,
		ArtifactID:   &artifactID,
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusApproved, preview.Steps[0].Status)
	require.Equal(t, workflow.StepStatusPending, preview.Steps[1].Status)
	require.True(t, preview.Steps[1].Actionable)
	require.Equal(t, workflow.ChainStatusPending, preview.ChainStatus)
}

func TestSkipStep_OpensNextGate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request",
		stepSpec{name: "Lead", minApprovals: i32(1), approvers: userRefs(a)},
		stepSpec{name: "Board", minApprovals: i32(1), approvers: userRefs(b)},
	)
	artifactID := uuid.New()

	result, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)
	require.NotNil(t, result.NextStepID)

	skipResult, err := env.svc.SkipStep(env.ctx, *result.NextStepID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusSkipped, skipResult.StepStatus)
	require.Equal(t, workflow.ChainStatusApproved, skipResult.ChainStatus, "skipped is terminal-favorable")
}

func TestRecompute_PreservesSkippedStatus(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a, b := uuid.New(), uuid.New()
	ch := env.seedChain(uuid.New(), "change_request",
		stepSpec{name: "Lead", minApprovals: i32(1), approvers: userRefs(a)},
		stepSpec{name: "Board", minApprovals: i32(1), approvers: userRefs(b)},
	)
	artifactID := uuid.New()

	result, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)
	require.NotNil(t, result.NextStepID)

	skipped, err := env.svc.SkipStep(env.ctx, *result.NextStepID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, workflow.ChainStatusApproved, skipped.ChainStatus)

	// A skipped step has no ballots; re-deriving it from decisions must
	// not rewrite the administrative status or reopen the chain.
	recomputed, err := env.svc.Recompute(env.ctx, artifactID, ch.ID, *result.NextStepID)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusSkipped, recomputed.StepStatus)
	require.Equal(t, workflow.ChainStatusApproved, recomputed.ChainStatus)

	step, err := env.steps.GetStep(env.ctx, *result.NextStepID)
	require.NoError(t, err)
	require.Equal(t, workflow.StepStatusSkipped, step.Status)
}

func TestReopenStep_StartsNewRound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	a := uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Lead",
		minApprovals: i32(1),
		approvers:    userRefs(a),
	})
	artifactID := uuid.New()

	result, err := decide(env, ch, artifactID, a, workflow.DecisionRejected)
	require.NoError(t, err)
	require.Equal(t, workflow.ChainStatusRejected, result.ChainStatus)

	reopened, err := env.svc.ReopenStep(env.ctx, result.StepID, a)
	require.NoError(t, err)
	require.Equal(t, int32(2), reopened.Round)
	require.Equal(t, workflow.StepStatusPending, reopened.Status)

	steps, err := env.steps.ListSteps(env.ctx, artifactID, ch.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1, "new round supersedes the rejected row")
	require.Equal(t, workflow.ChainStatusPending, workflow.DeriveChainStatus(steps))

	again, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, workflow.ChainStatusApproved, again.ChainStatus)
}

func TestDecide_EmitsAuditTrailAndEvents(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	var resolved []*events.ChainResolvedV1
	env.bus.Subscribe(func(e *events.ChainResolvedV1) {
		resolved = append(resolved, e)
	})

	a := uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Lead",
		minApprovals: i32(1),
		approvers:    userRefs(a),
	})
	artifactID := uuid.New()

	_, err := decide(env, ch, artifactID, a, workflow.DecisionApproved)
	require.NoError(t, err)
	env.emitter.Wait()

	actions := make(map[string]int)
	for _, event := range env.sink.Events() {
		actions[event.Action]++
	}
	require.Equal(t, 1, actions[services.ActionStepsMaterialized])
	require.Equal(t, 1, actions[services.ActionDecisionRecorded])
	require.Equal(t, 1, actions[services.ActionStepStatusChanged])
	require.Equal(t, 1, actions[services.ActionChainResolved])

	require.Len(t, resolved, 1)
	require.Equal(t, workflow.ChainStatusApproved, resolved[0].ChainStatus)
	require.Equal(t, artifactID, resolved[0].ArtifactID)
}
