package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/quorumworks/govern-sdk/modules/governance/services"
	"github.com/quorumworks/govern-sdk/pkg/composables"
)

// AuditLogSink appends engine actions to approval_audit_logs. It is
// invoked outside the governing transaction: UseTx falls back to the
// pool, so a failed write can never roll anything back.
type AuditLogSink struct{}

func NewAuditLogSink() *AuditLogSink {
	return &AuditLogSink{}
}

func (s *AuditLogSink) Name() string { return "audit_log" }

func (s *AuditLogSink) Write(ctx context.Context, event services.AuditEvent) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	payload, err := marshalPayload(event.Payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO approval_audit_logs (
			tenant_id, request_id, actor_id, action, artifact_id, chain_id,
			step_id, before_status, after_status, payload, occurred_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11)
	`,
		pgUUID(event.TenantID),
		event.RequestID,
		pgUUID(event.ActorID),
		event.Action,
		pgUUID(event.ArtifactID),
		nullableUUID(event.ChainID),
		nullableUUID(event.StepID),
		nullableText(event.BeforeStatus),
		nullableText(event.AfterStatus),
		payload,
		event.OccurredAt.UTC(),
	)
	if err != nil {
		return gerrors.Wrap(err, "insert audit log")
	}
	return nil
}

// TimelineSink appends a human-readable entry to the artifact's
// timeline for every engine action.
type TimelineSink struct{}

func NewTimelineSink() *TimelineSink {
	return &TimelineSink{}
}

func (s *TimelineSink) Name() string { return "timeline" }

func (s *TimelineSink) Write(ctx context.Context, event services.AuditEvent) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	payload, err := marshalPayload(event.Payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO approval_timeline_events (
			tenant_id, artifact_id, actor_id, message, payload, occurred_at
		)
		VALUES ($1,$2,$3,$4,$5::jsonb,$6)
	`,
		pgUUID(event.TenantID),
		pgUUID(event.ArtifactID),
		pgUUID(event.ActorID),
		timelineMessage(event),
		payload,
		event.OccurredAt.UTC(),
	)
	if err != nil {
		return gerrors.Wrap(err, "insert timeline event")
	}
	return nil
}

func timelineMessage(event services.AuditEvent) string {
	switch event.Action {
	case services.ActionStepsMaterialized:
		return "Approval steps created"
	case services.ActionDecisionRecorded:
		if decision, ok := event.Payload["decision"].(string); ok {
			return fmt.Sprintf("Decision recorded: %s", decision)
		}
		return "Decision recorded"
	case services.ActionStepStatusChanged:
		return fmt.Sprintf("Approval step moved from %s to %s", event.BeforeStatus, event.AfterStatus)
	case services.ActionChainResolved:
		return fmt.Sprintf("Approval resolved: %s", event.AfterStatus)
	case services.ActionStepSkipped:
		return "Approval step skipped"
	case services.ActionStepReopened:
		return "Approval step reopened"
	default:
		return event.Action
	}
}

func marshalPayload(payload map[string]any) (string, error) {
	if payload == nil {
		return "{}", nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", gerrors.Wrap(err, "encode audit payload")
	}
	return string(b), nil
}

func nullableUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgUUID(id)
}

func nullableText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
