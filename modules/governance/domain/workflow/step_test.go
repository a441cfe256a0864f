package workflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func chainOf(statuses ...string) []*ArtifactStep {
	steps := make([]*ArtifactStep, 0, len(statuses))
	for i, status := range statuses {
		steps = append(steps, &ArtifactStep{
			ID:        uuid.New(),
			StepOrder: int32(i + 1),
			Status:    status,
		})
	}
	return steps
}

func TestActionable_LowestPendingWithFavorablePredecessors(t *testing.T) {
	t.Parallel()

	steps := chainOf(StepStatusApproved, StepStatusPending, StepStatusPending)
	got := Actionable(steps)
	require.NotNil(t, got)
	require.Equal(t, int32(2), got.StepOrder)
}

func TestActionable_SkippedCountsAsFavorable(t *testing.T) {
	t.Parallel()

	steps := chainOf(StepStatusSkipped, StepStatusPending)
	got := Actionable(steps)
	require.NotNil(t, got)
	require.Equal(t, int32(2), got.StepOrder)
}

func TestActionable_RejectedChainHasNoActionableStep(t *testing.T) {
	t.Parallel()

	steps := chainOf(StepStatusRejected, StepStatusPending)
	require.Nil(t, Actionable(steps))
}

func TestActionable_AllResolved(t *testing.T) {
	t.Parallel()

	steps := chainOf(StepStatusApproved, StepStatusApproved)
	require.Nil(t, Actionable(steps))
	require.Nil(t, Actionable(nil))
}

func TestDeriveChainStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"empty", nil, ChainStatusNotRequired},
		{"all pending", []string{StepStatusPending, StepStatusPending}, ChainStatusPending},
		{"first approved", []string{StepStatusApproved, StepStatusPending}, ChainStatusPending},
		{"all approved", []string{StepStatusApproved, StepStatusApproved}, ChainStatusApproved},
		{"approved and skipped", []string{StepStatusApproved, StepStatusSkipped}, ChainStatusApproved},
		{"any rejected is terminal", []string{StepStatusApproved, StepStatusRejected, StepStatusPending}, ChainStatusRejected},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DeriveChainStatus(chainOf(tc.statuses...)))
		})
	}
}
