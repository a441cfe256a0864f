package persistence

import (
	"context"
	"encoding/json"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/pkg/composables"
)

type ChainRepository struct{}

func NewChainRepository() chain.Repository {
	return &ChainRepository{}
}

func (r *ChainRepository) GetActive(ctx context.Context, projectID uuid.UUID, artifactType string) (*chain.ApprovalChain, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		SELECT tenant_id, id, project_id, artifact_type, is_active, created_at, updated_at
		FROM approval_chains
		WHERE tenant_id = $1 AND project_id = $2 AND artifact_type = $3 AND is_active
	`, pgUUID(tenantID), pgUUID(projectID), artifactType)

	out, err := scanChain(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chain.ErrNoActiveChain
	}
	if err != nil {
		return nil, gerrors.Wrap(err, "load active approval chain")
	}

	out.Steps, err = r.listSteps(ctx, out.ID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ChainRepository) GetByID(ctx context.Context, id uuid.UUID) (*chain.ApprovalChain, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		SELECT tenant_id, id, project_id, artifact_type, is_active, created_at, updated_at
		FROM approval_chains
		WHERE tenant_id = $1 AND id = $2
	`, pgUUID(tenantID), pgUUID(id))

	out, err := scanChain(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chain.ErrNoActiveChain
	}
	if err != nil {
		return nil, gerrors.Wrap(err, "load approval chain by id")
	}

	out.Steps, err = r.listSteps(ctx, out.ID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ChainRepository) listSteps(ctx context.Context, chainID uuid.UUID) ([]chain.StepTemplate, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT tenant_id, id, chain_id, step_order, name, mode,
		       min_approvals, requires_all, threshold, is_active, approvers
		FROM approval_chain_steps
		WHERE chain_id = $1
		ORDER BY step_order ASC
	`, pgUUID(chainID))
	if err != nil {
		return nil, gerrors.Wrap(err, "list chain step templates")
	}
	defer rows.Close()

	var out []chain.StepTemplate
	for rows.Next() {
		var (
			tenantID     pgtype.UUID
			id           pgtype.UUID
			chID         pgtype.UUID
			stepOrder    int32
			name         string
			mode         string
			minApprovals pgtype.Int4
			requiresAll  bool
			threshold    pgtype.Numeric
			isActive     bool
			approvers    []byte
		)
		if err := rows.Scan(&tenantID, &id, &chID, &stepOrder, &name, &mode,
			&minApprovals, &requiresAll, &threshold, &isActive, &approvers); err != nil {
			return nil, gerrors.Wrap(err, "scan chain step template")
		}

		step := chain.StepTemplate{
			TenantID:     asUUID(tenantID),
			ID:           asUUID(id),
			ChainID:      asUUID(chID),
			StepOrder:    stepOrder,
			Name:         name,
			Mode:         mode,
			MinApprovals: asInt4Ptr(minApprovals),
			RequiresAll:  requiresAll,
			IsActive:     isActive,
		}
		step.Threshold, err = asDecimalPtr(threshold)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(approvers, &step.Approvers); err != nil {
			return nil, gerrors.Wrap(err, "decode step approvers")
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

func scanChain(row pgx.Row) (*chain.ApprovalChain, error) {
	var (
		tenantID     pgtype.UUID
		id           pgtype.UUID
		projectID    pgtype.UUID
		artifactType string
		isActive     bool
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	if err := row.Scan(&tenantID, &id, &projectID, &artifactType, &isActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &chain.ApprovalChain{
		TenantID:     asUUID(tenantID),
		ID:           asUUID(id),
		ProjectID:    asUUID(projectID),
		ArtifactType: artifactType,
		IsActive:     isActive,
		CreatedAt:    asTime(createdAt),
		UpdatedAt:    asTime(updatedAt),
	}, nil
}

// asDecimalPtr converts without a float round-trip: the numeric's
// big-int digits and exponent carry over exactly.
func asDecimalPtr(v pgtype.Numeric) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	if v.NaN || v.InfinityModifier != pgtype.Finite {
		return nil, gerrors.New("threshold is not a finite numeric")
	}
	d := decimal.NewFromBigInt(v.Int, v.Exp)
	return &d, nil
}
