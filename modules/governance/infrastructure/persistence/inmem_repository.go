package persistence

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
	"github.com/quorumworks/govern-sdk/pkg/composables"
)

type SafeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		m: make(map[K]V),
	}
}

func (s *SafeMap[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *SafeMap[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, found := s.m[key]
	return val, found
}

func (s *SafeMap[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vals := make([]V, 0, len(s.m))
	for _, v := range s.m {
		vals = append(vals, v)
	}
	return vals
}

// InmemChainRepository backs chain.Repository with process memory.
// Used by service tests and local tooling; semantics match the pgx
// repository.
type InmemChainRepository struct {
	chains *SafeMap[uuid.UUID, *chain.ApprovalChain]
}

func NewInmemChainRepository() *InmemChainRepository {
	return &InmemChainRepository{
		chains: NewSafeMap[uuid.UUID, *chain.ApprovalChain](),
	}
}

// Save seeds or replaces a chain configuration. Configuration writes
// are owned by project setup, not the engine; this exists for seeding.
func (r *InmemChainRepository) Save(c *chain.ApprovalChain) {
	r.chains.Set(c.ID, c)
}

func (r *InmemChainRepository) GetActive(ctx context.Context, projectID uuid.UUID, artifactType string) (*chain.ApprovalChain, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range r.chains.Values() {
		if c.TenantID == tenantID && c.ProjectID == projectID && c.ArtifactType == artifactType && c.IsActive {
			return cloneChain(c), nil
		}
	}
	return nil, chain.ErrNoActiveChain
}

func (r *InmemChainRepository) GetByID(ctx context.Context, id uuid.UUID) (*chain.ApprovalChain, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := r.chains.Get(id)
	if !ok || c.TenantID != tenantID {
		return nil, chain.ErrNoActiveChain
	}
	return cloneChain(c), nil
}

func cloneChain(c *chain.ApprovalChain) *chain.ApprovalChain {
	clone := *c
	clone.Steps = slices.Clone(c.Steps)
	return &clone
}

type decisionKey struct {
	stepID     uuid.UUID
	approverID uuid.UUID
}

// InmemWorkflowRepository backs workflow.Repository with process
// memory, honoring the same uniqueness keys the schema enforces.
type InmemWorkflowRepository struct {
	mu        sync.RWMutex
	steps     map[uuid.UUID]*workflow.ArtifactStep
	decisions map[decisionKey]*workflow.Decision
}

func NewInmemWorkflowRepository() *InmemWorkflowRepository {
	return &InmemWorkflowRepository{
		steps:     make(map[uuid.UUID]*workflow.ArtifactStep),
		decisions: make(map[decisionKey]*workflow.Decision),
	}
}

func (r *InmemWorkflowRepository) ListSteps(ctx context.Context, artifactID, chainID uuid.UUID) ([]*workflow.ArtifactStep, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentRound(func(s *workflow.ArtifactStep) bool {
		return s.TenantID == tenantID && s.ArtifactID == artifactID && s.ChainID == chainID
	}), nil
}

func (r *InmemWorkflowRepository) ListStepsForArtifact(ctx context.Context, artifactID uuid.UUID) ([]*workflow.ArtifactStep, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentRound(func(s *workflow.ArtifactStep) bool {
		return s.TenantID == tenantID && s.ArtifactID == artifactID
	}), nil
}

// currentRound filters steps and keeps only the highest round per
// (chain, step order), ordered by step order. Callers hold r.mu.
func (r *InmemWorkflowRepository) currentRound(match func(*workflow.ArtifactStep) bool) []*workflow.ArtifactStep {
	type orderKey struct {
		chainID uuid.UUID
		order   int32
	}
	latest := make(map[orderKey]*workflow.ArtifactStep)
	for _, s := range r.steps {
		if !match(s) {
			continue
		}
		key := orderKey{chainID: s.ChainID, order: s.StepOrder}
		if cur, ok := latest[key]; !ok || s.Round > cur.Round {
			latest[key] = s
		}
	}

	out := make([]*workflow.ArtifactStep, 0, len(latest))
	for _, s := range latest {
		clone := *s
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID != out[j].ChainID {
			return out[i].ChainID.String() < out[j].ChainID.String()
		}
		return out[i].StepOrder < out[j].StepOrder
	})
	return out
}

func (r *InmemWorkflowRepository) InsertSteps(ctx context.Context, steps []*workflow.ArtifactStep) error {
	if _, err := composables.UseTenantID(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, step := range steps {
		for _, existing := range r.steps {
			if existing.TenantID == step.TenantID &&
				existing.ArtifactID == step.ArtifactID &&
				existing.StepOrder == step.StepOrder &&
				existing.Round == step.Round {
				return ErrStepRoundExists
			}
		}
		if step.ID == uuid.Nil {
			step.ID = uuid.New()
		}
		step.CreatedAt = now
		step.UpdatedAt = now
		clone := *step
		r.steps[step.ID] = &clone
	}
	return nil
}

func (r *InmemWorkflowRepository) GetStep(ctx context.Context, stepID uuid.UUID) (*workflow.ArtifactStep, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	step, ok := r.steps[stepID]
	if !ok || step.TenantID != tenantID {
		return nil, workflow.ErrStepNotFound
	}
	clone := *step
	return &clone, nil
}

func (r *InmemWorkflowRepository) UpdateStepStatus(ctx context.Context, stepID uuid.UUID, status string) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps[stepID]
	if !ok || step.TenantID != tenantID {
		return workflow.ErrStepNotFound
	}
	step.Status = status
	step.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InmemWorkflowRepository) ReopenStep(ctx context.Context, step *workflow.ArtifactStep) (*workflow.ArtifactStep, error) {
	reopened := *step
	reopened.ID = uuid.Nil
	reopened.Round = step.Round + 1
	reopened.Status = workflow.StepStatusPending

	if err := r.InsertSteps(ctx, []*workflow.ArtifactStep{&reopened}); err != nil {
		return nil, err
	}
	return &reopened, nil
}

func (r *InmemWorkflowRepository) ListDecisions(ctx context.Context, stepID uuid.UUID) ([]*workflow.Decision, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*workflow.Decision
	for _, d := range r.decisions {
		if d.TenantID == tenantID && d.StepID == stepID {
			clone := *d
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DecidedAt.Before(out[j].DecidedAt) })
	return out, nil
}

func (r *InmemWorkflowRepository) UpsertDecision(ctx context.Context, decision *workflow.Decision) (*workflow.Decision, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	key := decisionKey{stepID: decision.StepID, approverID: decision.ApproverID}
	if existing, ok := r.decisions[key]; ok {
		existing.Decision = decision.Decision
		existing.ActorID = decision.ActorID
		existing.Reason = decision.Reason
		existing.UpdatedAt = now
		clone := *existing
		return &clone, nil
	}

	stored := *decision
	stored.TenantID = tenantID
	stored.ID = uuid.New()
	stored.DecidedAt = now
	stored.UpdatedAt = now
	r.decisions[key] = &stored
	clone := stored
	return &clone, nil
}

// DecisionCount reports stored live decisions, for test assertions.
func (r *InmemWorkflowRepository) DecisionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decisions)
}

// ErrStepRoundExists mirrors the artifact_approval_steps_unique
// constraint for the in-memory implementation.
var ErrStepRoundExists = errors.New("artifact approval step already exists for this round")
