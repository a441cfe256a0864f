package services_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/workflow"
	"github.com/quorumworks/govern-sdk/modules/governance/services"
	"github.com/quorumworks/govern-sdk/pkg/logging"
)

type failingSink struct {
	attempts atomic.Int64
}

func (s *failingSink) Name() string { return "failing" }

func (s *failingSink) Write(context.Context, services.AuditEvent) error {
	s.attempts.Add(1)
	return errors.New("sink unavailable")
}

func TestAuditEmitter_SinkFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	failing := &failingSink{}
	emitter := services.NewAuditEmitter(logging.ConsoleLogger(logrus.PanicLevel), failing)
	env.svc = services.NewApprovalService(env.chains, env.steps, env.identity, emitter, env.bus)

	a := uuid.New()
	ch := env.seedChain(uuid.New(), "change_request", stepSpec{
		name:         "Lead",
		minApprovals: i32(1),
		approvers:    userRefs(a),
	})

	result, err := decide(env, ch, uuid.New(), a, workflow.DecisionApproved)
	require.NoError(t, err, "audit failures never fail the decision")
	require.Equal(t, workflow.ChainStatusApproved, result.ChainStatus)

	emitter.Wait()
	require.Positive(t, failing.attempts.Load())
}

func TestAuditEmitter_EachSinkGetsEveryEvent(t *testing.T) {
	t.Parallel()
	failing := &failingSink{}
	recording := &recordingSink{}
	emitter := services.NewAuditEmitter(logging.ConsoleLogger(logrus.PanicLevel), failing, recording)

	emitter.Emit(context.Background(), services.AuditEvent{
		TenantID:   uuid.New(),
		ActorID:    uuid.New(),
		Action:     services.ActionDecisionRecorded,
		ArtifactID: uuid.New(),
	})
	emitter.Wait()

	require.EqualValues(t, 1, failing.attempts.Load(), "a failing sink is still offered the event")
	require.Len(t, recording.Events(), 1, "one sink's failure does not starve the others")
}
