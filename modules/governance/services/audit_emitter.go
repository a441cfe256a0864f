package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Audit action types.
const (
	ActionStepsMaterialized = "steps_materialized"
	ActionDecisionRecorded  = "decision_recorded"
	ActionStepStatusChanged = "step_status_changed"
	ActionChainResolved     = "chain_resolved"
	ActionStepSkipped       = "step_skipped"
	ActionStepReopened      = "step_reopened"
)

// AuditEvent is the record of one consequential engine action, written
// best-effort to every configured sink.
type AuditEvent struct {
	TenantID     uuid.UUID      `json:"tenant_id"`
	RequestID    string         `json:"request_id,omitempty"`
	ActorID      uuid.UUID      `json:"actor_id"`
	Action       string         `json:"action"`
	ArtifactID   uuid.UUID      `json:"artifact_id"`
	ChainID      uuid.UUID      `json:"chain_id,omitempty"`
	StepID       uuid.UUID      `json:"step_id,omitempty"`
	BeforeStatus string         `json:"before_status,omitempty"`
	AfterStatus  string         `json:"after_status,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// AuditSink is one append-only destination (audit log, timeline, ...).
// Sinks fail independently; a failing sink never affects the others or
// the governing transaction.
type AuditSink interface {
	Name() string
	Write(ctx context.Context, event AuditEvent) error
}

// AuditEmitter dual-writes events to its sinks, fire-and-forget
// relative to the caller. Failures are logged and swallowed: governance
// correctness must not depend on the health of a secondary
// observability store.
type AuditEmitter struct {
	log   *logrus.Logger
	sinks []AuditSink
	wg    sync.WaitGroup
}

func NewAuditEmitter(log *logrus.Logger, sinks ...AuditSink) *AuditEmitter {
	return &AuditEmitter{log: log, sinks: sinks}
}

// Emit dispatches the event without blocking the caller's response.
// The write outlives the request context: a caller timing out after
// commit must not cancel its own audit trail.
func (e *AuditEmitter) Emit(ctx context.Context, event AuditEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	detached := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		writeCtx, cancel := context.WithTimeout(detached, 5*time.Second)
		defer cancel()

		for _, sink := range e.sinks {
			if err := sink.Write(writeCtx, event); err != nil {
				auditSinkFailures.WithLabelValues(sink.Name()).Inc()
				if e.log != nil {
					e.log.WithFields(logrus.Fields{
						"sink":        sink.Name(),
						"action":      event.Action,
						"artifact_id": event.ArtifactID.String(),
						"step_id":     event.StepID.String(),
					}).WithError(pkgerrors.Wrap(err, "audit write failed")).
						Warn("governance.audit.write_failed")
				}
			}
		}
	}()
}

// Wait blocks until all dispatched writes have finished. Used on
// shutdown and in tests.
func (e *AuditEmitter) Wait() {
	e.wg.Wait()
}
