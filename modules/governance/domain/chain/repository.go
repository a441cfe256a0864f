package chain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoActiveChain signals that no active chain is configured for the
// (project, artifact type) pair. It marks the "approval not required"
// outcome and is not a failure.
var ErrNoActiveChain = errors.New("no active approval chain configured")

type Repository interface {
	// GetActive returns the unique active chain for the pair, with its
	// step templates in step order, or ErrNoActiveChain.
	GetActive(ctx context.Context, projectID uuid.UUID, artifactType string) (*ApprovalChain, error)
	// GetByID returns the chain regardless of its active flag so the
	// engine can detect mid-flight deactivation.
	GetByID(ctx context.Context, id uuid.UUID) (*ApprovalChain, error)
}
