package governance_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/govern-sdk/modules/governance"
	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/services"
	"github.com/quorumworks/govern-sdk/pkg/application"
	"github.com/quorumworks/govern-sdk/pkg/eventbus"
	"github.com/quorumworks/govern-sdk/pkg/logging"
)

type noopIdentity struct{}

func (noopIdentity) CanActFor(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (noopIdentity) ResolveApprovers(_ context.Context, _ uuid.UUID, refs []chain.ApproverRef) ([]uuid.UUID, error) {
	return nil, nil
}

func TestModuleRegister(t *testing.T) {
	t.Parallel()

	log := logging.ConsoleLogger(logrus.ErrorLevel)
	app := application.New(&application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(log),
	})

	module := governance.NewModule(noopIdentity{}, log)
	require.Equal(t, "governance", module.Name())
	require.NoError(t, application.Load(app, module))

	svc := app.Service(services.ApprovalService{})
	require.IsType(t, &services.ApprovalService{}, svc)
	require.Len(t, app.Schemas(), 1)

	schema, err := app.Schemas()[0].ReadFile(governance.SchemaPath)
	require.NoError(t, err)
	require.Contains(t, string(schema), "artifact_approval_steps")
}
