package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrStepNotFound = errors.New("artifact approval step not found")

type Repository interface {
	// ListSteps returns the artifact's runtime steps for the chain,
	// current round only, ordered by step order.
	ListSteps(ctx context.Context, artifactID, chainID uuid.UUID) ([]*ArtifactStep, error)
	// ListStepsForArtifact returns runtime steps across any chain, for
	// callers that only know the artifact (the decision-entry surface).
	ListStepsForArtifact(ctx context.Context, artifactID uuid.UUID) ([]*ArtifactStep, error)
	// InsertSteps materializes runtime steps. Fails on the unique
	// (artifact, step order, round) key if a concurrent caller won the
	// race.
	InsertSteps(ctx context.Context, steps []*ArtifactStep) error
	GetStep(ctx context.Context, stepID uuid.UUID) (*ArtifactStep, error)
	UpdateStepStatus(ctx context.Context, stepID uuid.UUID, status string) error
	// ReopenStep inserts a fresh pending copy of a resolved step with
	// round incremented.
	ReopenStep(ctx context.Context, step *ArtifactStep) (*ArtifactStep, error)

	ListDecisions(ctx context.Context, stepID uuid.UUID) ([]*Decision, error)
	// UpsertDecision records a ballot keyed by (step, approver);
	// resubmission replaces the stored outcome and reason.
	UpsertDecision(ctx context.Context, decision *Decision) (*Decision, error)
}
