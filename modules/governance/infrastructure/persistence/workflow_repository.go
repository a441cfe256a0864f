package persistence

import (
	"context"
	"encoding/json"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
	"github.com/quorumworks/govern-sdk/pkg/composables"
)

type WorkflowRepository struct{}

func NewWorkflowRepository() workflow.Repository {
	return &WorkflowRepository{}
}

const artifactStepColumns = `
	tenant_id, id, artifact_id, chain_id, template_step_id, step_order,
	name, mode, min_approvals, requires_all, threshold, round, status,
	approvers, approver_refs, created_at, updated_at`

func (r *WorkflowRepository) ListSteps(ctx context.Context, artifactID, chainID uuid.UUID) ([]*workflow.ArtifactStep, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	// Current round only: a reopened step supersedes its earlier rounds.
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT ON (step_order) `+artifactStepColumns+`
		FROM artifact_approval_steps
		WHERE tenant_id = $1 AND artifact_id = $2 AND chain_id = $3
		ORDER BY step_order ASC, round DESC
	`, pgUUID(tenantID), pgUUID(artifactID), pgUUID(chainID))
	if err != nil {
		return nil, gerrors.Wrap(err, "list artifact approval steps")
	}
	defer rows.Close()

	var out []*workflow.ArtifactStep
	for rows.Next() {
		step, err := scanArtifactStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

func (r *WorkflowRepository) ListStepsForArtifact(ctx context.Context, artifactID uuid.UUID) ([]*workflow.ArtifactStep, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT DISTINCT ON (chain_id, step_order) `+artifactStepColumns+`
		FROM artifact_approval_steps
		WHERE tenant_id = $1 AND artifact_id = $2
		ORDER BY chain_id, step_order ASC, round DESC
	`, pgUUID(tenantID), pgUUID(artifactID))
	if err != nil {
		return nil, gerrors.Wrap(err, "list artifact approval steps by artifact")
	}
	defer rows.Close()

	var out []*workflow.ArtifactStep
	for rows.Next() {
		step, err := scanArtifactStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

func (r *WorkflowRepository) InsertSteps(ctx context.Context, steps []*workflow.ArtifactStep) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	for _, step := range steps {
		approvers, err := json.Marshal(step.Approvers)
		if err != nil {
			return gerrors.Wrap(err, "encode step approvers")
		}
		refs, err := json.Marshal(step.ApproverRefs)
		if err != nil {
			return gerrors.Wrap(err, "encode step approver refs")
		}
		var threshold any
		if step.Threshold != nil {
			threshold = step.Threshold.String()
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO artifact_approval_steps (
				tenant_id, artifact_id, chain_id, template_step_id, step_order,
				name, mode, min_approvals, requires_all, threshold, round, status,
				approvers, approver_refs
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::jsonb,$14::jsonb)
			RETURNING id, created_at, updated_at
		`,
			pgUUID(step.TenantID),
			pgUUID(step.ArtifactID),
			pgUUID(step.ChainID),
			pgUUID(step.TemplateStepID),
			step.StepOrder,
			step.Name,
			step.Mode,
			pgInt4(step.MinApprovals),
			step.RequiresAll,
			threshold,
			step.Round,
			step.Status,
			string(approvers),
			string(refs),
		).Scan(&step.ID, &step.CreatedAt, &step.UpdatedAt)
		if err != nil {
			return gerrors.Wrap(err, "insert artifact approval step")
		}
	}
	return nil
}

func (r *WorkflowRepository) GetStep(ctx context.Context, stepID uuid.UUID) (*workflow.ArtifactStep, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+artifactStepColumns+`
		FROM artifact_approval_steps
		WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(stepID))

	step, err := scanArtifactStep(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workflow.ErrStepNotFound
	}
	if err != nil {
		return nil, err
	}
	return step, nil
}

func (r *WorkflowRepository) UpdateStepStatus(ctx context.Context, stepID uuid.UUID, status string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE artifact_approval_steps
		SET status = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(stepID), status)
	if err != nil {
		return gerrors.Wrap(err, "update artifact step status")
	}
	if tag.RowsAffected() == 0 {
		return workflow.ErrStepNotFound
	}
	return nil
}

func (r *WorkflowRepository) ReopenStep(ctx context.Context, step *workflow.ArtifactStep) (*workflow.ArtifactStep, error) {
	reopened := *step
	reopened.ID = uuid.Nil
	reopened.Round = step.Round + 1
	reopened.Status = workflow.StepStatusPending

	if err := r.InsertSteps(ctx, []*workflow.ArtifactStep{&reopened}); err != nil {
		return nil, err
	}
	return &reopened, nil
}

func (r *WorkflowRepository) ListDecisions(ctx context.Context, stepID uuid.UUID) ([]*workflow.Decision, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT tenant_id, id, step_id, chain_id, approver_user_id, actor_user_id,
		       decision, reason, decided_at, updated_at
		FROM approval_decisions
		WHERE tenant_id = $1 AND step_id = $2
		ORDER BY decided_at ASC
	`, pgUUID(tenantID), pgUUID(stepID))
	if err != nil {
		return nil, gerrors.Wrap(err, "list step decisions")
	}
	defer rows.Close()

	var out []*workflow.Decision
	for rows.Next() {
		var (
			tenant    pgtype.UUID
			id        pgtype.UUID
			step      pgtype.UUID
			chainID   pgtype.UUID
			approver  pgtype.UUID
			actor     pgtype.UUID
			decision  string
			reason    pgtype.Text
			decidedAt pgtype.Timestamptz
			updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&tenant, &id, &step, &chainID, &approver, &actor,
			&decision, &reason, &decidedAt, &updatedAt); err != nil {
			return nil, gerrors.Wrap(err, "scan step decision")
		}
		out = append(out, &workflow.Decision{
			TenantID:   asUUID(tenant),
			ID:         asUUID(id),
			StepID:     asUUID(step),
			ChainID:    asUUID(chainID),
			ApproverID: asUUID(approver),
			ActorID:    asUUID(actor),
			Decision:   decision,
			Reason:     asTextPtr(reason),
			DecidedAt:  asTime(decidedAt),
			UpdatedAt:  asTime(updatedAt),
		})
	}
	return out, rows.Err()
}

func (r *WorkflowRepository) UpsertDecision(ctx context.Context, decision *workflow.Decision) (*workflow.Decision, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO approval_decisions (
			tenant_id, step_id, chain_id, approver_user_id, actor_user_id, decision, reason
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (step_id, approver_user_id) DO UPDATE
		SET decision = EXCLUDED.decision,
		    actor_user_id = EXCLUDED.actor_user_id,
		    reason = EXCLUDED.reason,
		    updated_at = now()
		RETURNING tenant_id, id, step_id, chain_id, approver_user_id, actor_user_id,
		          decision, reason, decided_at, updated_at
	`,
		pgUUID(tenantID),
		pgUUID(decision.StepID),
		pgUUID(decision.ChainID),
		pgUUID(decision.ApproverID),
		pgUUID(decision.ActorID),
		decision.Decision,
		pgText(decision.Reason),
	)

	var (
		tenant    pgtype.UUID
		id        pgtype.UUID
		step      pgtype.UUID
		chID      pgtype.UUID
		approver  pgtype.UUID
		actor     pgtype.UUID
		outcome   string
		reason    pgtype.Text
		decidedAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&tenant, &id, &step, &chID, &approver, &actor,
		&outcome, &reason, &decidedAt, &updatedAt); err != nil {
		return nil, gerrors.Wrap(err, "upsert decision")
	}
	return &workflow.Decision{
		TenantID:   asUUID(tenant),
		ID:         asUUID(id),
		StepID:     asUUID(step),
		ChainID:    asUUID(chID),
		ApproverID: asUUID(approver),
		ActorID:    asUUID(actor),
		Decision:   outcome,
		Reason:     asTextPtr(reason),
		DecidedAt:  asTime(decidedAt),
		UpdatedAt:  asTime(updatedAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifactStep(row rowScanner) (*workflow.ArtifactStep, error) {
	var (
		tenantID     pgtype.UUID
		id           pgtype.UUID
		artifactID   pgtype.UUID
		chainID      pgtype.UUID
		templateID   pgtype.UUID
		stepOrder    int32
		name         string
		mode         string
		minApprovals pgtype.Int4
		requiresAll  bool
		threshold    pgtype.Numeric
		round        int32
		status       string
		approvers    []byte
		approverRefs []byte
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	if err := row.Scan(&tenantID, &id, &artifactID, &chainID, &templateID, &stepOrder,
		&name, &mode, &minApprovals, &requiresAll, &threshold, &round, &status,
		&approvers, &approverRefs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	step := &workflow.ArtifactStep{
		TenantID:       asUUID(tenantID),
		ID:             asUUID(id),
		ArtifactID:     asUUID(artifactID),
		ChainID:        asUUID(chainID),
		TemplateStepID: asUUID(templateID),
		StepOrder:      stepOrder,
		Name:           name,
		Mode:           mode,
		MinApprovals:   asInt4Ptr(minApprovals),
		RequiresAll:    requiresAll,
		Round:          round,
		Status:         status,
		CreatedAt:      asTime(createdAt),
		UpdatedAt:      asTime(updatedAt),
	}
	var err error
	step.Threshold, err = asDecimalPtr(threshold)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(approvers, &step.Approvers); err != nil {
		return nil, gerrors.Wrap(err, "decode artifact step approvers")
	}
	if len(approverRefs) > 0 {
		var refs []chain.ApproverRef
		if err := json.Unmarshal(approverRefs, &refs); err != nil {
			return nil, gerrors.Wrap(err, "decode artifact step approver refs")
		}
		step.ApproverRefs = refs
	}
	return step, nil
}
