package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/quorumworks/govern-sdk/modules/governance/domain/chain"
	"github.com/quorumworks/govern-sdk/modules/governance/infrastructure/persistence"
	"github.com/quorumworks/govern-sdk/modules/governance/services"
	"github.com/quorumworks/govern-sdk/pkg/composables"
	"github.com/quorumworks/govern-sdk/pkg/configuration"
	"github.com/quorumworks/govern-sdk/pkg/eventbus"
	"github.com/quorumworks/govern-sdk/pkg/logging"
)

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conf := configuration.Use()
	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return pool, nil
}

func newLogger() *logrus.Logger {
	return logging.ConsoleLogger(configuration.Use().LogrusLevel())
}

func newService(log *logrus.Logger) *services.ApprovalService {
	emitter := services.NewAuditEmitter(log,
		persistence.NewAuditLogSink(),
		persistence.NewTimelineSink(),
	)
	return services.NewApprovalService(
		persistence.NewChainRepository(),
		persistence.NewWorkflowRepository(),
		identityPassthrough{},
		emitter,
		eventbus.NewEventPublisher(log),
	)
}

// identityPassthrough is the CLI's identity collaborator: user refs
// pass through, email and role refs resolve to nothing, and delegation
// is always denied. governctl acts as the approver it is told to act
// as; delegation authority is the platform's concern.
type identityPassthrough struct{}

func (identityPassthrough) CanActFor(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (identityPassthrough) ResolveApprovers(_ context.Context, _ uuid.UUID, refs []chain.ApproverRef) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, ref := range refs {
		if ref.Kind == chain.ApproverKindUser {
			out = append(out, ref.UserID)
		}
	}
	return out, nil
}

func cliContext(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) context.Context {
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithTenantID(ctx, tenantID)
	return composables.WithRequestID(ctx, uuid.NewString())
}
