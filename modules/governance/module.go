package governance

import (
	"embed"

	"github.com/sirupsen/logrus"

	"github.com/quorumworks/govern-sdk/modules/governance/infrastructure/persistence"
	"github.com/quorumworks/govern-sdk/modules/governance/services"
	"github.com/quorumworks/govern-sdk/pkg/application"
)

//go:embed infrastructure/persistence/schema/governance-schema.sql
var migrationFiles embed.FS

// SchemaFS exposes the embedded schema for tooling.
var SchemaFS = &migrationFiles

const SchemaPath = "infrastructure/persistence/schema/governance-schema.sql"

// NewModule wires the approval engine. The identity/delegation
// resolver is an external collaborator and must be supplied by the
// host application.
func NewModule(identity services.IdentityResolver, log *logrus.Logger) application.Module {
	return &Module{identity: identity, log: log}
}

type Module struct {
	identity services.IdentityResolver
	log      *logrus.Logger
}

func (m *Module) Register(app application.Application) error {
	app.RegisterSchema(&migrationFiles)

	emitter := services.NewAuditEmitter(
		m.log,
		persistence.NewAuditLogSink(),
		persistence.NewTimelineSink(),
	)

	app.RegisterServices(
		services.NewApprovalService(
			persistence.NewChainRepository(),
			persistence.NewWorkflowRepository(),
			m.identity,
			emitter,
			app.EventPublisher(),
		),
	)

	return nil
}

func (m *Module) Name() string {
	return "governance"
}
