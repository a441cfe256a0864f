package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func mapPgError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, "APPROVAL_NOT_FOUND", "not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		switch pgErr.ConstraintName {
		case "artifact_approval_steps_unique":
			// Concurrent materialization: another request engaged the
			// chain first. The caller retries and sees the winner's rows.
			return newServiceError(http.StatusConflict, "APPROVAL_MATERIALIZE_RACE", "steps already materialized", err)
		case "approval_decisions_one_per_approver":
			return newServiceError(http.StatusConflict, "APPROVAL_DECISION_CONFLICT", "decision already recorded", err)
		default:
			return newServiceError(http.StatusConflict, "APPROVAL_CONFLICT", "unique constraint violated", err)
		}
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return newServiceError(http.StatusUnprocessableEntity, "APPROVAL_REFERENCE_NOT_FOUND", "referenced row not found", err)
	default:
		return newServiceError(http.StatusInternalServerError, "APPROVAL_INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
